package ledger

import (
	"context"
	"sync"

	"bellavita/internal/models"
)

// MemoryStore is an in-memory ledger store for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.PaymentRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.PaymentRecord)}
}

func (s *MemoryStore) Get(ctx context.Context, bookingID string) (*models.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	copy := record
	return &copy, nil
}

func (s *MemoryStore) Put(ctx context.Context, record *models.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.BookingID] = *record
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*models.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.PaymentRecord, 0, len(s.records))
	for _, record := range s.records {
		copy := record
		out = append(out, &copy)
	}
	return out, nil
}
