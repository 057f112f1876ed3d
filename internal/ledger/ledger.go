package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bellavita/internal/domain"
	"bellavita/internal/events"
	"bellavita/internal/metrics"
	"bellavita/internal/models"

	"github.com/rs/zerolog"
)

// Service implements the payment ledger state machine: pending -> confirmed
// or pending -> cancelled, both terminal. Every mutation is a full
// read-modify-write against the persisted record, serialized per booking id.
type Service struct {
	store      domain.LedgerStore
	eventBus   domain.EventPublisher
	logger     zerolog.Logger
	paymentURL string
	expiry     time.Duration
	now        func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService builds a ledger over a store. paymentURL is the base for
// per-booking pay links.
func NewService(store domain.LedgerStore, eventBus domain.EventPublisher, paymentURL string, logger *zerolog.Logger) *Service {
	var l zerolog.Logger
	if logger != nil {
		l = logger.With().Str("component", "ledger").Logger()
	}
	if paymentURL == "" {
		paymentURL = "https://pay.coinbase.com/demo"
	}
	return &Service{
		store:      store,
		eventBus:   eventBus,
		logger:     l,
		paymentURL: paymentURL,
		expiry:     models.PaymentExpiry,
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex),
	}
}

// lock serializes mutations per booking id. Each id is an independent
// partition; no cross-record locking is needed.
func (s *Service) lock(bookingID string) func() {
	s.mu.Lock()
	l, ok := s.locks[bookingID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[bookingID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// RequestPayment creates a pending record for the booking, or returns the
// existing one. Idempotent by booking id.
func (s *Service) RequestPayment(ctx context.Context, amount float64, bookingID, description string) (*models.PaymentRecord, error) {
	if bookingID == "" {
		return nil, fmt.Errorf("booking id is required")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %v", amount)
	}

	unlock := s.lock(bookingID)
	defer unlock()

	existing, err := s.store.Get(ctx, bookingID)
	if err == nil {
		s.logger.Debug().Str("booking_id", bookingID).Msg("payment request already exists")
		return existing, nil
	}
	if err != ErrNotFound {
		return nil, fmt.Errorf("read payment record: %w", err)
	}

	now := s.now().UTC()
	record := &models.PaymentRecord{
		Protocol:    models.PaymentProtocol,
		Standard:    models.PaymentStandard,
		Amount:      amount,
		Currency:    models.PaymentCurrency,
		Recipient:   models.PaymentRecipient,
		BookingID:   bookingID,
		Description: description,
		PaymentURL:  fmt.Sprintf("%s/%s", s.paymentURL, bookingID),
		ExpiresAt:   now.Add(s.expiry),
		Status:      models.PaymentPending,
		CreatedAt:   now,
	}

	if err := s.store.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("store payment record: %w", err)
	}

	metrics.IncPaymentStatus(models.PaymentPending)
	s.publish(events.EventPaymentRequested, record)
	s.logger.Info().Str("booking_id", bookingID).Float64("amount", amount).Msg("payment requested")
	return record, nil
}

// CheckStatus returns the current record, reading the store directly.
func (s *Service) CheckStatus(ctx context.Context, bookingID string) (*models.PaymentRecord, error) {
	return s.store.Get(ctx, bookingID)
}

// Approve transitions pending -> confirmed (human-in-the-loop). It re-reads
// the record under the per-id lock so a racing mutation cannot flip an
// already-terminal state. Idempotent when already confirmed.
func (s *Service) Approve(ctx context.Context, bookingID string) (*models.PaymentRecord, error) {
	unlock := s.lock(bookingID)
	defer unlock()

	record, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	switch record.Status {
	case models.PaymentConfirmed:
		return record, nil
	case models.PaymentCancelled:
		return nil, fmt.Errorf("%w: booking %s", ErrAlreadyCancelled, bookingID)
	}

	now := s.now().UTC()
	record.Status = models.PaymentConfirmed
	record.ApprovedAt = &now
	record.TxHash = txHash(bookingID)

	if err := s.store.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("store payment record: %w", err)
	}

	metrics.IncPaymentStatus(models.PaymentConfirmed)
	s.publish(events.EventPaymentConfirmed, record)
	s.logger.Info().Str("booking_id", bookingID).Str("tx_hash", record.TxHash).Msg("payment approved")
	return record, nil
}

// Cancel transitions pending -> cancelled. Fails with ErrAlreadyConfirmed on
// confirmed records; idempotent when already cancelled.
func (s *Service) Cancel(ctx context.Context, bookingID string) (*models.PaymentRecord, error) {
	unlock := s.lock(bookingID)
	defer unlock()

	record, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	switch record.Status {
	case models.PaymentCancelled:
		return record, nil
	case models.PaymentConfirmed:
		return nil, fmt.Errorf("%w: booking %s", ErrAlreadyConfirmed, bookingID)
	}

	now := s.now().UTC()
	record.Status = models.PaymentCancelled
	record.CancelledAt = &now

	if err := s.store.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("store payment record: %w", err)
	}

	metrics.IncPaymentStatus(models.PaymentCancelled)
	s.publish(events.EventPaymentCancelled, record)
	s.logger.Info().Str("booking_id", bookingID).Msg("payment cancelled")
	return record, nil
}

// SweepExpired cancels pending records past their expiry deadline and
// returns how many were swept.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list payment records: %w", err)
	}

	swept := 0
	now := s.now().UTC()
	for _, record := range records {
		if !record.Expired(now) {
			continue
		}
		if _, err := s.Cancel(ctx, record.BookingID); err != nil {
			// A concurrent approve may have won; skip, the record is terminal.
			s.logger.Warn().Err(err).Str("booking_id", record.BookingID).Msg("expiry sweep skip")
			continue
		}
		swept++
	}
	return swept, nil
}

func (s *Service) publish(eventType string, record *models.PaymentRecord) {
	if s.eventBus == nil {
		return
	}
	payload := events.PaymentEventPayload{
		BookingID: record.BookingID,
		Amount:    record.Amount,
		Currency:  record.Currency,
		Status:    record.Status,
		TxHash:    record.TxHash,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", record.BookingID).Msg("publish event error")
	}
}

func txHash(bookingID string) string {
	id := bookingID
	if len(id) > 8 {
		id = id[:8]
	}
	return "0xdemo" + id
}
