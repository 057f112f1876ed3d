package service

import (
	"context"
	"time"

	"bellavita/internal/domain"
	"bellavita/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionService manages per-actor dialog state on top of a session repository.
type SessionService struct {
	repo   domain.SessionRepository
	logger zerolog.Logger
}

func NewSessionService(repo domain.SessionRepository, logger *zerolog.Logger) *SessionService {
	var l zerolog.Logger
	if logger != nil {
		l = logger.With().Str("component", "session-service").Logger()
	}
	return &SessionService{repo: repo, logger: l}
}

// GetOrCreate returns the actor's session, creating a fresh collecting
// session on first contact.
func (s *SessionService) GetOrCreate(ctx context.Context, actorID string) (*models.Session, error) {
	session, err := s.repo.GetSession(ctx, actorID)
	if err != nil {
		s.logger.Error().Err(err).Str("actor_id", actorID).Msg("failed to get session")
		return nil, err
	}
	if session == nil {
		session = &models.Session{
			ActorID:   actorID,
			SessionID: uuid.NewString(),
			Step:      models.StepCollecting,
		}
	}
	return session, nil
}

// Save persists the session with a refreshed timestamp.
func (s *SessionService) Save(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now()
	return s.repo.SetSession(ctx, session)
}

// MergeDraft folds newly parsed fields into the actor's draft and persists it.
func (s *SessionService) MergeDraft(ctx context.Context, actorID string, draft models.Draft) (*models.Session, error) {
	session, err := s.GetOrCreate(ctx, actorID)
	if err != nil {
		return nil, err
	}
	session.Draft.Merge(draft)
	if err := s.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Clear removes the actor's session after a finished or abandoned flow.
func (s *SessionService) Clear(ctx context.Context, actorID string) error {
	return s.repo.ClearSession(ctx, actorID)
}

// CheckRateLimit reports whether the actor is within the message budget.
func (s *SessionService) CheckRateLimit(ctx context.Context, actorID string, limit int, window time.Duration) (bool, error) {
	return s.repo.CheckRateLimit(ctx, actorID, limit, window)
}
