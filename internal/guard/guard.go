package guard

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"bellavita/internal/calendar"
	"bellavita/internal/domain"
	"bellavita/internal/ledger"
	"bellavita/internal/metrics"
	"bellavita/internal/models"
	"bellavita/internal/service"
	"bellavita/internal/worker"

	"github.com/rs/zerolog"
)

// State is a position in the booking confirmation flow.
type State string

const (
	StateCollecting      State = "collecting"
	StateChecking        State = "checking"
	StateAvailable       State = "available"
	StateBooking         State = "booking"
	StateAwaitingPayment State = "awaiting_payment"
	StatePaymentPending  State = "payment_pending"
	StateConfirmed       State = "confirmed"
	StateDeclined        State = "declined"
	StateFailed          State = "failed"
)

// ErrCreateAlreadyAttempted fires when a guard instance is driven through
// Run twice. Each instance may issue at most one calendar write.
var ErrCreateAlreadyAttempted = errors.New("booking create already attempted by this guard")

// Outcome is the structured result of a guard run, rendered for the user by
// the conversation layer.
type Outcome struct {
	State        State
	Missing      []string
	Event        *models.BookingEvent
	Payment      *models.PaymentRecord
	Alternatives []time.Time
	Reason       string
}

// Bookings is the slice of the booking service the guard drives.
type Bookings interface {
	Resolve(req models.BookingRequest) (time.Time, time.Time, error)
	CheckAvailability(ctx context.Context, calendarID string, start, end time.Time) (*models.AvailabilityResult, error)
	CreateBooking(ctx context.Context, req models.BookingRequest, start, end time.Time) (*models.BookingEvent, error)
	CancelBooking(ctx context.Context, calendarID, eventID string) error
	Alternatives(conflicts []models.EventRef) []time.Time
}

// Guard sequences availability check, calendar write, and payment request,
// and lets each step's observed result gate the next. One instance serves
// one inbound message; the create latch is therefore per booking attempt,
// not per process.
type Guard struct {
	bookings    Bookings
	ledger      domain.Ledger
	deposit     float64
	callTimeout time.Duration
	retry       worker.RetryPolicy
	logger      zerolog.Logger

	created atomic.Bool
}

func New(bookings Bookings, paymentLedger domain.Ledger, depositPerGuest float64, callTimeout time.Duration, logger *zerolog.Logger) *Guard {
	if depositPerGuest <= 0 {
		depositPerGuest = models.DefaultDepositPerGuest
	}
	if callTimeout <= 0 {
		callTimeout = 8 * time.Second
	}
	var l zerolog.Logger
	if logger != nil {
		l = logger.With().Str("component", "guard").Logger()
	}
	return &Guard{
		bookings:    bookings,
		ledger:      paymentLedger,
		deposit:     depositPerGuest,
		callTimeout: callTimeout,
		retry: worker.RetryPolicy{
			MaxRetries:    2,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2,
		},
		logger: l,
	}
}

func (g *Guard) transition(from, to State) State {
	metrics.IncGuardTransition(string(from), string(to))
	g.logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("guard transition")
	return to
}

// Run drives a booking request through the state machine until the first
// terminal or externally-gated state: declined, failed, or payment pending.
// Confirmed is never reached here; it requires an approval observed later
// through CheckApproval.
func (g *Guard) Run(ctx context.Context, req models.BookingRequest) (*Outcome, error) {
	state := StateCollecting

	start, end, err := g.bookings.Resolve(req)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			// Stay in collecting until the dialog supplies the rest.
			return &Outcome{State: StateCollecting, Missing: verr.Missing}, nil
		}
		state = g.transition(state, StateDeclined)
		return &Outcome{State: state, Reason: err.Error()}, nil
	}

	state = g.transition(state, StateChecking)
	avail, err := g.checkWithRetry(ctx, req.CalendarID, start, end)
	if err != nil {
		state = g.transition(state, StateFailed)
		return &Outcome{State: state, Reason: "calendar is temporarily unavailable, please try again"}, err
	}

	if !avail.Available {
		state = g.transition(state, StateDeclined)
		return &Outcome{
			State:        state,
			Alternatives: g.bookings.Alternatives(avail.Conflicts),
			Reason:       fmt.Sprintf("the requested time conflicts with %d existing booking(s)", len(avail.Conflicts)),
		}, nil
	}
	state = g.transition(state, StateAvailable)

	// One-shot latch: the calendar write is not idempotent, so no code path
	// below this point may execute twice for one guard instance.
	if !g.created.CompareAndSwap(false, true) {
		return nil, ErrCreateAlreadyAttempted
	}
	state = g.transition(state, StateBooking)

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	event, err := g.bookings.CreateBooking(callCtx, req, start, end)
	cancel()
	if err != nil {
		state = g.transition(state, StateFailed)
		return &Outcome{State: state, Reason: "could not write the booking to the calendar"}, err
	}
	if event == nil || event.EventID == "" {
		// A success report without a real event id is exactly what this
		// state machine exists to prevent.
		state = g.transition(state, StateFailed)
		return &Outcome{State: state, Reason: "calendar returned no event id"}, fmt.Errorf("create returned no event id")
	}
	state = g.transition(state, StateAwaitingPayment)

	amount := float64(req.PartySize) * g.deposit
	description := fmt.Sprintf("Deposit for %s, party of %d", req.CustomerName, req.PartySize)
	record, err := g.ledger.RequestPayment(ctx, amount, event.EventID, description)
	if err != nil {
		state = g.transition(state, StateFailed)
		return &Outcome{State: state, Event: event, Reason: "booking created, but the payment request failed"}, err
	}
	state = g.transition(state, StatePaymentPending)

	g.logger.Info().
		Str("event_id", event.EventID).
		Float64("amount", amount).
		Msg("booking pending payment approval")
	return &Outcome{State: state, Event: event, Payment: record}, nil
}

// checkWithRetry queries availability, retrying only transient backend
// failures. Conflicts are business outcomes and return immediately.
func (g *Guard) checkWithRetry(ctx context.Context, calendarID string, start, end time.Time) (*models.AvailabilityResult, error) {
	var lastErr error
	for attempt := 1; attempt <= g.retry.MaxRetries+1; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
		avail, err := g.bookings.CheckAvailability(callCtx, calendarID, start, end)
		cancel()
		if err == nil {
			return avail, nil
		}
		if !errors.Is(err, calendar.ErrBackendUnavailable) {
			return nil, err
		}
		lastErr = err
		if attempt <= g.retry.MaxRetries {
			g.logger.Warn().Err(err).Int("attempt", attempt).Msg("availability check failed, retrying")
			if err := g.retry.Wait(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

// CheckApproval reports whether the human approval for a pending booking has
// landed. It only ever reflects observed ledger state.
func (g *Guard) CheckApproval(ctx context.Context, bookingID string) (*Outcome, error) {
	record, err := g.ledger.CheckStatus(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	switch record.Status {
	case models.PaymentConfirmed:
		g.transition(StatePaymentPending, StateConfirmed)
		return &Outcome{State: StateConfirmed, Payment: record}, nil
	case models.PaymentCancelled:
		g.transition(StatePaymentPending, StateDeclined)
		return &Outcome{State: StateDeclined, Payment: record, Reason: "payment was cancelled"}, nil
	default:
		return &Outcome{State: StatePaymentPending, Payment: record}, nil
	}
}

// CancelBooking removes the booking. The calendar delete is authoritative:
// the ledger record is only cancelled after the event is gone, so a failed
// delete leaves both sides untouched.
func (g *Guard) CancelBooking(ctx context.Context, calendarID, bookingID string) error {
	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	err := g.bookings.CancelBooking(callCtx, calendarID, bookingID)
	cancel()
	if err != nil && !errors.Is(err, calendar.ErrNotFound) {
		return err
	}

	if _, err := g.ledger.Cancel(ctx, bookingID); err != nil {
		// The event is already gone at this point. A missing or terminal
		// ledger record does not undo that, so it is not a failure.
		if errors.Is(err, ledger.ErrNotFound) || errors.Is(err, ledger.ErrAlreadyCancelled) || errors.Is(err, ledger.ErrAlreadyConfirmed) {
			return nil
		}
		return err
	}
	return nil
}
