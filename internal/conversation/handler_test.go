package conversation

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"bellavita/internal/config"
	"bellavita/internal/ledger"
	"bellavita/internal/models"
	"bellavita/internal/repository"
	"bellavita/internal/service"
	"bellavita/internal/whatsapp"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCalendar struct {
	mu          sync.Mutex
	available   bool
	conflicts   []models.EventRef
	createCalls int
	deleted     []string
	nextID      int
}

func (f *fakeCalendar) CheckAvailability(ctx context.Context, calendarID string, start, end time.Time) (*models.AvailabilityResult, error) {
	return &models.AvailabilityResult{Available: f.available, Conflicts: f.conflicts}, nil
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, calendarID string, event models.BookingEvent) (*models.BookingEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.nextID++
	created := event
	created.EventID = fmt.Sprintf("evt-%d", f.nextID)
	created.CalendarID = calendarID
	return &created, nil
}

func (f *fakeCalendar) ListEvents(ctx context.Context, calendarID string, start, end time.Time, maxResults int) ([]models.EventRef, error) {
	return nil, nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, eventID)
	return nil
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeMessenger) SendText(ctx context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, body)
	return "wamid.out", nil
}

func (f *fakeMessenger) MarkRead(ctx context.Context, messageID string, withTyping bool) error {
	return nil
}

func (f *fakeMessenger) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

type testEnv struct {
	handler   *Handler
	calendar  *fakeCalendar
	messenger *fakeMessenger
	ledger    *ledger.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	cfg := &config.Config{}
	cfg.Calendar.ID = "restaurant@example.com"
	cfg.Calendar.TimeoutSeconds = 2
	cfg.Booking.DepositPerGuest = 10
	cfg.Booking.DurationHours = 2
	cfg.Booking.MaxAdvanceDays = 90

	cal := &fakeCalendar{available: true}
	bookings := service.NewBookingService(cal, nil, nil, config.DefaultBusinessHours(), cfg.Booking, &logger)
	sessions := service.NewSessionService(repository.NewMemorySessionRepository(time.Hour), &logger)
	paymentLedger := ledger.NewService(ledger.NewMemoryStore(), nil, "", &logger)
	messenger := &fakeMessenger{}

	handler := NewHandler(cfg, sessions, bookings, paymentLedger, messenger, nil, &logger)
	return &testEnv{handler: handler, calendar: cal, messenger: messenger, ledger: paymentLedger}
}

// futureSlot returns a weekday date a week out, formatted for the draft.
func futureSlot() string {
	return time.Now().In(models.UTCPlus4).AddDate(0, 0, 7).Format("2006-01-02")
}

func inbound(text string) whatsapp.InboundMessage {
	return whatsapp.InboundMessage{
		From:      "79991234567",
		Name:      "Elena",
		MessageID: "wamid.in",
		Text:      text,
	}
}

func TestFullBookingFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	text := fmt.Sprintf("book a table for 4 on %s at 19:00, my name is Elena", futureSlot())
	env.handler.HandleInbound(ctx, inbound(text))

	assert.Equal(t, 1, env.calendar.createCalls)
	reply := env.messenger.last()
	assert.Contains(t, reply, "reserved")
	assert.Contains(t, reply, "deposit")

	// The ledger now holds a pending record for the event.
	record, err := env.ledger.CheckStatus(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, record.Status)
	assert.Equal(t, 40.0, record.Amount)
}

func TestIncrementalSlotCollection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.handler.HandleInbound(ctx, inbound("I'd like to book a table"))
	assert.Contains(t, env.messenger.last(), "I still need")
	assert.Equal(t, 0, env.calendar.createCalls)

	env.handler.HandleInbound(ctx, inbound(fmt.Sprintf("on %s at 19:00", futureSlot())))
	assert.Contains(t, env.messenger.last(), "I still need")
	assert.Equal(t, 0, env.calendar.createCalls)

	env.handler.HandleInbound(ctx, inbound("4 people"))
	assert.Contains(t, env.messenger.last(), "reserved")
	assert.Equal(t, 1, env.calendar.createCalls)
}

func TestDuplicateConfirmDoesNotRebook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	text := fmt.Sprintf("book a table for 2 on %s at 19:00, my name is Elena", futureSlot())
	env.handler.HandleInbound(ctx, inbound(text))
	require.Equal(t, 1, env.calendar.createCalls)

	env.handler.HandleInbound(ctx, inbound("yes, book it!"))
	env.handler.HandleInbound(ctx, inbound("confirm"))

	assert.Equal(t, 1, env.calendar.createCalls)
	assert.Contains(t, env.messenger.last(), "awaiting approval")
}

func TestConflictOffersAlternatives(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conflictStart := time.Now().In(models.UTCPlus4).AddDate(0, 0, 7)
	conflictStart = time.Date(conflictStart.Year(), conflictStart.Month(), conflictStart.Day(), 19, 0, 0, 0, models.UTCPlus4)
	env.calendar.available = false
	env.calendar.conflicts = []models.EventRef{{
		EventID: "other",
		Start:   conflictStart,
		End:     conflictStart.Add(time.Hour),
	}}

	text := fmt.Sprintf("book a table for 2 on %s at 19:00, my name is Elena", futureSlot())
	env.handler.HandleInbound(ctx, inbound(text))

	assert.Equal(t, 0, env.calendar.createCalls)
	reply := env.messenger.last()
	assert.Contains(t, reply, "not available")
	assert.Contains(t, reply, "Free nearby slots")
}

func TestStatusAfterApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	text := fmt.Sprintf("book a table for 2 on %s at 19:00, my name is Elena", futureSlot())
	env.handler.HandleInbound(ctx, inbound(text))

	env.handler.HandleInbound(ctx, inbound("what's the status?"))
	assert.Contains(t, env.messenger.last(), "awaiting approval")

	_, err := env.ledger.Approve(ctx, "evt-1")
	require.NoError(t, err)

	env.handler.HandleInbound(ctx, inbound("status?"))
	assert.Contains(t, env.messenger.last(), "fully confirmed")
}

func TestCancelDeletesEventAndLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	text := fmt.Sprintf("book a table for 2 on %s at 19:00, my name is Elena", futureSlot())
	env.handler.HandleInbound(ctx, inbound(text))

	env.handler.HandleInbound(ctx, inbound("please cancel my booking"))

	assert.Equal(t, []string{"evt-1"}, env.calendar.deleted)
	assert.Contains(t, env.messenger.last(), "cancelled")

	record, err := env.ledger.CheckStatus(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCancelled, record.Status)
}

func TestCancelWithNothingPending(t *testing.T) {
	env := newTestEnv(t)
	env.handler.HandleInbound(context.Background(), inbound("cancel"))
	assert.Contains(t, env.messenger.last(), "no active booking")
}

func TestOutsideBusinessHoursDeclined(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	text := fmt.Sprintf("book a table for 2 on %s at 23:30, my name is Elena", futureSlot())
	env.handler.HandleInbound(ctx, inbound(text))

	assert.Equal(t, 0, env.calendar.createCalls)
	assert.Contains(t, env.messenger.last(), "not available")
}

func TestBlacklistedActorIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.handler.blacklist["badactor"] = true

	env.handler.HandleInbound(context.Background(), whatsapp.InboundMessage{
		From: "badactor",
		Text: "book a table",
	})
	assert.Empty(t, env.messenger.sent)
}

func TestHelpFallback(t *testing.T) {
	env := newTestEnv(t)
	env.handler.HandleInbound(context.Background(), inbound("help"))
	assert.Contains(t, env.messenger.last(), "La Bella Vita")
}
