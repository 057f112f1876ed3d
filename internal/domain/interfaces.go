package domain

import (
	"context"
	"time"

	"bellavita/internal/models"
)

// Calendar is the remote calendar backend. All calls are blocking remote
// calls; callers own timeouts via ctx.
type Calendar interface {
	// CheckAvailability reflects the backend state at call time. Results are
	// never cached.
	CheckAvailability(ctx context.Context, calendarID string, start, end time.Time) (*models.AvailabilityResult, error)
	// CreateEvent is the only legitimate source of a real event id. It is not
	// idempotent: calling it twice creates two events.
	CreateEvent(ctx context.Context, calendarID string, event models.BookingEvent) (*models.BookingEvent, error)
	ListEvents(ctx context.Context, calendarID string, start, end time.Time, maxResults int) ([]models.EventRef, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// LedgerStore persists one payment record per booking id.
type LedgerStore interface {
	Get(ctx context.Context, bookingID string) (*models.PaymentRecord, error)
	Put(ctx context.Context, record *models.PaymentRecord) error
	List(ctx context.Context) ([]*models.PaymentRecord, error)
}

// Ledger is the payment workflow contract used by the guard and the API.
type Ledger interface {
	RequestPayment(ctx context.Context, amount float64, bookingID, description string) (*models.PaymentRecord, error)
	CheckStatus(ctx context.Context, bookingID string) (*models.PaymentRecord, error)
	Approve(ctx context.Context, bookingID string) (*models.PaymentRecord, error)
	Cancel(ctx context.Context, bookingID string) (*models.PaymentRecord, error)
}

// SessionRepository keeps per-actor dialog state between messages.
type SessionRepository interface {
	GetSession(ctx context.Context, actorID string) (*models.Session, error)
	SetSession(ctx context.Context, session *models.Session) error
	ClearSession(ctx context.Context, actorID string) error
	CheckRateLimit(ctx context.Context, actorID string, limit int, window time.Duration) (bool, error)
}

// Messenger delivers outbound messages to the chat channel.
type Messenger interface {
	SendText(ctx context.Context, to, body string) (string, error)
	// MarkRead acknowledges an inbound message; withTyping also shows the
	// typing indicator until the next outbound message.
	MarkRead(ctx context.Context, messageID string, withTyping bool) error
}

// EventPublisher notifies in-process subscribers of domain events.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// BookingAudit records calendar writes locally for listing and export.
type BookingAudit interface {
	RecordCreated(ctx context.Context, event *models.BookingEvent, req models.BookingRequest) error
	MarkCancelled(ctx context.Context, eventID string) error
	GetByEventID(ctx context.Context, eventID string) (*models.AuditedBooking, error)
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]*models.AuditedBooking, error)
	ListByPhone(ctx context.Context, phone string) ([]*models.AuditedBooking, error)
}
