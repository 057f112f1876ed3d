package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bellavita/internal/config"
	"bellavita/internal/domain"
	"bellavita/internal/events"
	"bellavita/internal/models"

	"github.com/rs/zerolog"
)

// BookingService wraps the calendar backend with booking validation. The
// calendar stays the single source of truth for "a reservation exists"; this
// layer only validates requests, shapes events, and keeps the local audit.
type BookingService struct {
	calendar       domain.Calendar
	audit          domain.BookingAudit
	eventBus       domain.EventPublisher
	hours          config.BusinessHours
	loc            *time.Location
	duration       time.Duration
	maxAdvanceDays int
	logger         zerolog.Logger
	now            func() time.Time
}

func NewBookingService(cal domain.Calendar, audit domain.BookingAudit, eventBus domain.EventPublisher, hours config.BusinessHours, booking config.BookingConfig, logger *zerolog.Logger) *BookingService {
	duration := time.Duration(booking.DurationHours) * time.Hour
	if duration <= 0 {
		duration = models.DefaultBookingDuration
	}
	maxAdvance := booking.MaxAdvanceDays
	if maxAdvance <= 0 {
		maxAdvance = 90
	}
	var l zerolog.Logger
	if logger != nil {
		l = logger.With().Str("component", "booking-service").Logger()
	}
	return &BookingService{
		calendar:       cal,
		audit:          audit,
		eventBus:       eventBus,
		hours:          hours,
		loc:            models.UTCPlus4,
		duration:       duration,
		maxAdvanceDays: maxAdvance,
		logger:         l,
		now:            time.Now,
	}
}

// Duration returns the configured booking duration.
func (s *BookingService) Duration() time.Duration {
	return s.duration
}

// Resolve validates a request and maps it onto a concrete time window.
// Returns *ValidationError when required fields are missing, and the
// business-rule sentinels for out-of-range times.
func (s *BookingService) Resolve(req models.BookingRequest) (time.Time, time.Time, error) {
	if missing := req.MissingFields(); len(missing) > 0 {
		return time.Time{}, time.Time{}, &ValidationError{Missing: missing}
	}

	start, end, err := req.Window(s.loc, s.duration)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	now := s.now().In(s.loc)
	if start.Before(now) {
		return time.Time{}, time.Time{}, ErrPastDate
	}
	if start.After(now.AddDate(0, 0, s.maxAdvanceDays)) {
		return time.Time{}, time.Time{}, ErrDateTooFar
	}
	if !s.hours.Allows(start, end) {
		return time.Time{}, time.Time{}, ErrOutsideBusinessHours
	}

	return start, end, nil
}

// CheckAvailability queries the backend for the window. The result reflects
// backend state at call time only and must not be reused across other writes.
func (s *BookingService) CheckAvailability(ctx context.Context, calendarID string, start, end time.Time) (*models.AvailabilityResult, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("invalid window: start %s is not before end %s", start, end)
	}
	return s.calendar.CheckAvailability(ctx, calendarID, start, end)
}

// CreateBooking writes the calendar event. The caller (the confirmation
// guard) is responsible for calling this at most once per booking attempt.
func (s *BookingService) CreateBooking(ctx context.Context, req models.BookingRequest, start, end time.Time) (*models.BookingEvent, error) {
	event := models.BookingEvent{
		Summary:     req.Summary(),
		Description: fmt.Sprintf("Phone: %s\nParty size: %d", req.Phone, req.PartySize),
		Start:       start,
		End:         end,
	}

	created, err := s.calendar.CreateEvent(ctx, req.CalendarID, event)
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		if err := s.audit.RecordCreated(ctx, created, req); err != nil {
			s.logger.Error().Err(err).Str("event_id", created.EventID).Msg("audit record error")
		}
	}
	s.publishBooking(events.EventBookingCreated, created, req)

	s.logger.Info().
		Str("event_id", created.EventID).
		Str("customer", req.CustomerName).
		Int("party_size", req.PartySize).
		Time("start", start).
		Msg("booking created")
	return created, nil
}

// CancelBooking deletes the calendar event. Deletion is the authoritative
// act; callers must not touch ledger state unless it succeeds.
func (s *BookingService) CancelBooking(ctx context.Context, calendarID, eventID string) error {
	if err := s.calendar.DeleteEvent(ctx, calendarID, eventID); err != nil {
		return err
	}

	if s.audit != nil {
		if err := s.audit.MarkCancelled(ctx, eventID); err != nil {
			s.logger.Error().Err(err).Str("event_id", eventID).Msg("audit cancel error")
		}
	}
	s.publishBooking(events.EventBookingCancelled, &models.BookingEvent{EventID: eventID, CalendarID: calendarID}, models.BookingRequest{})

	s.logger.Info().Str("event_id", eventID).Msg("booking cancelled")
	return nil
}

// ListBookings returns events in the window straight from the backend.
func (s *BookingService) ListBookings(ctx context.Context, calendarID string, start, end time.Time, maxResults int) ([]models.EventRef, error) {
	return s.calendar.ListEvents(ctx, calendarID, start, end, maxResults)
}

// ProposeSlots returns up to max free start times for the date, walking the
// business-hours grid in half-hour steps.
func (s *BookingService) ProposeSlots(ctx context.Context, calendarID string, date time.Time, max int) ([]time.Time, error) {
	if max <= 0 {
		max = 5
	}

	open, close_, ok := s.hours.OpenWindow(date.Weekday())
	if !ok {
		return nil, nil
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.loc)
	dayStart := day.Add(time.Duration(open) * time.Minute)
	dayEnd := day.Add(time.Duration(close_) * time.Minute)

	busy, err := s.calendar.ListEvents(ctx, calendarID, dayStart, dayEnd, 0)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	var slots []time.Time
	for slot := dayStart; !slot.Add(s.duration).After(dayEnd); slot = slot.Add(models.SlotStep) {
		if slot.Before(now) {
			continue
		}
		if overlapsAny(busy, slot, slot.Add(s.duration)) {
			continue
		}
		slots = append(slots, slot)
		if len(slots) == max {
			break
		}
	}
	return slots, nil
}

// Alternatives derives candidate start times from conflicting events'
// boundaries: right after each conflict ends, and right before it starts.
// Candidates outside business hours are dropped.
func (s *BookingService) Alternatives(conflicts []models.EventRef) []time.Time {
	seen := make(map[time.Time]bool)
	var out []time.Time
	for _, conflict := range conflicts {
		for _, candidate := range []time.Time{
			conflict.End.In(s.loc),
			conflict.Start.In(s.loc).Add(-s.duration),
		} {
			if seen[candidate] {
				continue
			}
			if !s.hours.Allows(candidate, candidate.Add(s.duration)) {
				continue
			}
			seen[candidate] = true
			out = append(out, candidate)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (s *BookingService) publishBooking(eventType string, event *models.BookingEvent, req models.BookingRequest) {
	if s.eventBus == nil {
		return
	}
	payload := events.BookingEventPayload{
		EventID:      event.EventID,
		CalendarID:   event.CalendarID,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		PartySize:    req.PartySize,
		Start:        event.Start,
		End:          event.End,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("event_id", event.EventID).Msg("publish event error")
	}
}

func overlapsAny(events []models.EventRef, start, end time.Time) bool {
	for _, ev := range events {
		if ev.Start.Before(end) && ev.End.After(start) {
			return true
		}
	}
	return false
}
