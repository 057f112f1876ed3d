package calendar

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"bellavita/internal/metrics"
	"bellavita/internal/models"

	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleClient talks to Google Calendar directly with service-account
// credentials, bypassing the calendar service.
type GoogleClient struct {
	service *gcal.Service
}

// NewGoogleClient builds a client from a service-account credentials file.
func NewGoogleClient(ctx context.Context, credentialsFile string) (*GoogleClient, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	srv, err := gcal.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %v", err)
	}

	return &GoogleClient{service: srv}, nil
}

func (g *GoogleClient) CheckAvailability(ctx context.Context, calendarID string, start, end time.Time) (*models.AvailabilityResult, error) {
	events, err := g.listRange(ctx, calendarID, start, end, 0)
	if err != nil {
		metrics.IncCalendarCall(actionCheckAvailability, "unavailable")
		return nil, err
	}

	metrics.IncCalendarCall(actionCheckAvailability, "ok")
	result := &models.AvailabilityResult{Available: true}
	for _, ev := range events {
		if ev.Start.Before(end) && ev.End.After(start) {
			result.Available = false
			result.Conflicts = append(result.Conflicts, ev)
		}
	}
	return result, nil
}

func (g *GoogleClient) CreateEvent(ctx context.Context, calendarID string, event models.BookingEvent) (*models.BookingEvent, error) {
	inserted, err := g.service.Events.Insert(calendarID, &gcal.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Start:       &gcal.EventDateTime{DateTime: event.Start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: event.End.Format(time.RFC3339)},
	}).Context(ctx).Do()
	if err != nil {
		metrics.IncCalendarCall(actionCreateEvent, "unavailable")
		return nil, mapGoogleError(err)
	}
	if inserted.Id == "" {
		metrics.IncCalendarCall(actionCreateEvent, "error")
		return nil, fmt.Errorf("calendar insert returned no event id")
	}

	metrics.IncCalendarCall(actionCreateEvent, "ok")
	created := event
	created.EventID = inserted.Id
	created.CalendarID = calendarID
	return &created, nil
}

func (g *GoogleClient) ListEvents(ctx context.Context, calendarID string, start, end time.Time, maxResults int) ([]models.EventRef, error) {
	events, err := g.listRange(ctx, calendarID, start, end, maxResults)
	if err != nil {
		metrics.IncCalendarCall(actionListEvents, "unavailable")
		return nil, err
	}
	metrics.IncCalendarCall(actionListEvents, "ok")
	return events, nil
}

func (g *GoogleClient) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := g.service.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		mapped := mapGoogleError(err)
		if errors.Is(mapped, ErrNotFound) {
			metrics.IncCalendarCall(actionDeleteEvent, "not_found")
		} else {
			metrics.IncCalendarCall(actionDeleteEvent, "unavailable")
		}
		return mapped
	}
	metrics.IncCalendarCall(actionDeleteEvent, "ok")
	return nil
}

func (g *GoogleClient) listRange(ctx context.Context, calendarID string, start, end time.Time, maxResults int) ([]models.EventRef, error) {
	call := g.service.Events.List(calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)
	if maxResults > 0 {
		call = call.MaxResults(int64(maxResults))
	}

	list, err := call.Do()
	if err != nil {
		return nil, mapGoogleError(err)
	}

	events := make([]models.EventRef, 0, len(list.Items))
	for _, item := range list.Items {
		if item.Start == nil || item.End == nil || item.Start.DateTime == "" || item.End.DateTime == "" {
			// Skip all-day events; bookings are always timed.
			continue
		}
		evStart, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			continue
		}
		evEnd, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			continue
		}
		events = append(events, models.EventRef{
			EventID: item.Id,
			Summary: item.Summary,
			Start:   evStart,
			End:     evEnd,
		})
	}
	return events, nil
}

func mapGoogleError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 404 || apiErr.Code == 410:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case apiErr.Code >= 500 || apiErr.Code == 429:
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		default:
			return err
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return err
}
