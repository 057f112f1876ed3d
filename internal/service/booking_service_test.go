package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"bellavita/internal/config"
	"bellavita/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCalendar struct {
	availability *models.AvailabilityResult
	checkErr     error
	created      []models.BookingEvent
	createErr    error
	busy         []models.EventRef
	deleted      []string
	deleteErr    error
}

func (c *stubCalendar) CheckAvailability(ctx context.Context, calendarID string, start, end time.Time) (*models.AvailabilityResult, error) {
	if c.checkErr != nil {
		return nil, c.checkErr
	}
	if c.availability != nil {
		return c.availability, nil
	}
	return &models.AvailabilityResult{Available: true}, nil
}

func (c *stubCalendar) CreateEvent(ctx context.Context, calendarID string, event models.BookingEvent) (*models.BookingEvent, error) {
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.created = append(c.created, event)
	out := event
	out.EventID = "evt-stub"
	out.CalendarID = calendarID
	return &out, nil
}

func (c *stubCalendar) ListEvents(ctx context.Context, calendarID string, start, end time.Time, maxResults int) ([]models.EventRef, error) {
	return c.busy, nil
}

func (c *stubCalendar) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deleted = append(c.deleted, eventID)
	return nil
}

// testClock pins "now" to a Wednesday morning so relative window checks are
// stable.
var testNow = time.Date(2026, 9, 2, 10, 0, 0, 0, models.UTCPlus4)

func newTestBookingService(cal *stubCalendar) *BookingService {
	logger := zerolog.Nop()
	svc := NewBookingService(cal, nil, nil, config.DefaultBusinessHours(), config.BookingConfig{
		DurationHours:  2,
		MaxAdvanceDays: 90,
	}, &logger)
	svc.now = func() time.Time { return testNow }
	return svc
}

func validRequest() models.BookingRequest {
	return models.BookingRequest{
		Date:         "2026-09-04",
		Time:         "19:00",
		PartySize:    4,
		CustomerName: "Elena",
		Phone:        "79991234567",
		CalendarID:   "restaurant@example.com",
	}
}

func TestResolveValidRequest(t *testing.T) {
	svc := newTestBookingService(&stubCalendar{})

	start, end, err := svc.Resolve(validRequest())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 4, 19, 0, 0, 0, models.UTCPlus4), start)
	assert.Equal(t, 2*time.Hour, end.Sub(start))
}

func TestResolveMissingFields(t *testing.T) {
	svc := newTestBookingService(&stubCalendar{})

	req := validRequest()
	req.Time = ""
	req.CustomerName = ""

	_, _, err := svc.Resolve(req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"time", "customer_name"}, verr.Missing)
}

func TestResolveBusinessRules(t *testing.T) {
	svc := newTestBookingService(&stubCalendar{})

	past := validRequest()
	past.Date = "2026-09-01"
	_, _, err := svc.Resolve(past)
	assert.ErrorIs(t, err, ErrPastDate)

	far := validRequest()
	far.Date = "2027-01-15"
	_, _, err = svc.Resolve(far)
	assert.ErrorIs(t, err, ErrDateTooFar)

	late := validRequest()
	late.Time = "23:00"
	_, _, err = svc.Resolve(late)
	assert.ErrorIs(t, err, ErrOutsideBusinessHours)
}

func TestCreateBookingShapesEvent(t *testing.T) {
	cal := &stubCalendar{}
	svc := newTestBookingService(cal)

	req := validRequest()
	start, end, err := svc.Resolve(req)
	require.NoError(t, err)

	created, err := svc.CreateBooking(context.Background(), req, start, end)
	require.NoError(t, err)
	assert.Equal(t, "evt-stub", created.EventID)
	assert.Equal(t, "Restaurant Booking - Elena (4 guests)", created.Summary)

	require.Len(t, cal.created, 1)
	assert.Contains(t, cal.created[0].Description, "79991234567")
}

func TestCreateBookingPropagatesBackendError(t *testing.T) {
	cal := &stubCalendar{createErr: errors.New("calendar down")}
	svc := newTestBookingService(cal)

	req := validRequest()
	start, end, err := svc.Resolve(req)
	require.NoError(t, err)

	_, err = svc.CreateBooking(context.Background(), req, start, end)
	assert.Error(t, err)
	assert.Empty(t, cal.created)
}

func TestCancelBookingDeletesEvent(t *testing.T) {
	cal := &stubCalendar{}
	svc := newTestBookingService(cal)

	err := svc.CancelBooking(context.Background(), "restaurant@example.com", "evt-9")
	require.NoError(t, err)
	assert.Equal(t, []string{"evt-9"}, cal.deleted)
}

func TestProposeSlotsSkipsBusyAndPast(t *testing.T) {
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, models.UTCPlus4)
	cal := &stubCalendar{busy: []models.EventRef{{
		EventID: "busy",
		Start:   day.Add(11 * time.Hour),
		End:     day.Add(13 * time.Hour),
	}}}
	svc := newTestBookingService(cal)

	slots, err := svc.ProposeSlots(context.Background(), "restaurant@example.com", day, 3)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	// Every slot from opening until the busy block ends would overlap it,
	// so the first free start is 13:00.
	assert.Equal(t, day.Add(13*time.Hour), slots[0])
	assert.Equal(t, day.Add(13*time.Hour+30*time.Minute), slots[1])
}

func TestAlternativesFromConflicts(t *testing.T) {
	svc := newTestBookingService(&stubCalendar{})

	day := time.Date(2026, 9, 4, 0, 0, 0, 0, models.UTCPlus4)
	alts := svc.Alternatives([]models.EventRef{{
		EventID: "other",
		Start:   day.Add(19 * time.Hour),
		End:     day.Add(20 * time.Hour),
	}})

	require.Len(t, alts, 2)
	assert.Equal(t, day.Add(17*time.Hour), alts[0])
	assert.Equal(t, day.Add(20*time.Hour), alts[1])
}

func TestAlternativesDropOutsideHours(t *testing.T) {
	svc := newTestBookingService(&stubCalendar{})

	day := time.Date(2026, 9, 2, 0, 0, 0, 0, models.UTCPlus4)
	// Conflict at closing time: the slot after it would run past close, the
	// slot before it is fine.
	alts := svc.Alternatives([]models.EventRef{{
		EventID: "late",
		Start:   day.Add(20 * time.Hour),
		End:     day.Add(22 * time.Hour),
	}})

	require.Len(t, alts, 1)
	assert.Equal(t, day.Add(18*time.Hour), alts[0])
}
