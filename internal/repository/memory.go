package repository

import (
	"context"
	"sync"
	"time"

	"bellavita/internal/models"
)

// MemorySessionRepository is the in-process fallback used when Redis is
// unavailable. Sessions expire lazily on read.
type MemorySessionRepository struct {
	sessions   sync.Map
	rateLimits sync.Map
	ttl        time.Duration
}

type sessionEntry struct {
	session   models.Session
	expiresAt time.Time
}

func NewMemorySessionRepository(ttl time.Duration) *MemorySessionRepository {
	if ttl <= 0 {
		ttl = models.DefaultSessionTTL
	}
	return &MemorySessionRepository{ttl: ttl}
}

func (r *MemorySessionRepository) GetSession(ctx context.Context, actorID string) (*models.Session, error) {
	val, ok := r.sessions.Load(actorID)
	if !ok {
		return nil, nil
	}
	entry := val.(sessionEntry)
	if time.Now().After(entry.expiresAt) {
		r.sessions.Delete(actorID)
		return nil, nil
	}
	session := entry.session
	return &session, nil
}

func (r *MemorySessionRepository) SetSession(ctx context.Context, session *models.Session) error {
	r.sessions.Store(session.ActorID, sessionEntry{
		session:   *session,
		expiresAt: time.Now().Add(r.ttl),
	})
	return nil
}

func (r *MemorySessionRepository) ClearSession(ctx context.Context, actorID string) error {
	r.sessions.Delete(actorID)
	return nil
}

type rateLimitEntry struct {
	mu        sync.Mutex
	count     int
	expiresAt time.Time
}

func (r *MemorySessionRepository) CheckRateLimit(ctx context.Context, actorID string, limit int, window time.Duration) (bool, error) {
	val, _ := r.rateLimits.LoadOrStore(actorID, &rateLimitEntry{})
	entry := val.(*rateLimitEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	if now.After(entry.expiresAt) {
		entry.count = 0
		entry.expiresAt = now.Add(window)
	}
	entry.count++

	return entry.count <= limit, nil
}
