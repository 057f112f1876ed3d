package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bellavita/internal/metrics"
	"bellavita/internal/models"

	"github.com/rs/zerolog"
)

const (
	actionCheckAvailability = "checkAvailability"
	actionCreateEvent       = "createEvent"
	actionListEvents        = "listEvents"
	actionDeleteEvent       = "deleteEvent"
)

// Client talks to the calendar service over its action-based JSON protocol.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient constructs a client for the calendar service endpoint.
func NewClient(endpoint string, timeout time.Duration, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	var l zerolog.Logger
	if logger != nil {
		l = logger.With().Str("component", "calendar-client").Logger()
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     l,
	}
}

type wireRequest struct {
	Action      string `json:"action"`
	CalendarID  string `json:"calendarId"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
	EventID     string `json:"eventId,omitempty"`
	MaxResults  int    `json:"maxResults,omitempty"`
}

type wireEvent struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type wireBody struct {
	Success   bool        `json:"success"`
	Available *bool       `json:"available,omitempty"`
	EventID   string      `json:"eventId,omitempty"`
	Events    []wireEvent `json:"events,omitempty"`
	Error     string      `json:"error,omitempty"`
}

type wireResponse struct {
	StatusCode int      `json:"statusCode"`
	Body       wireBody `json:"body"`
}

func (c *Client) do(ctx context.Context, req wireRequest) (*wireBody, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode calendar request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build calendar request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.IncCalendarCall(req.Action, "unavailable")
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= http.StatusInternalServerError {
		metrics.IncCalendarCall(req.Action, "unavailable")
		return nil, fmt.Errorf("%w: http %d", ErrBackendUnavailable, httpResp.StatusCode)
	}

	var resp wireResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		metrics.IncCalendarCall(req.Action, "unavailable")
		return nil, fmt.Errorf("%w: decode response: %v", ErrBackendUnavailable, err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		metrics.IncCalendarCall(req.Action, "unavailable")
		return nil, fmt.Errorf("%w: backend status %d: %s", ErrBackendUnavailable, resp.StatusCode, resp.Body.Error)
	case resp.StatusCode == http.StatusNotFound:
		metrics.IncCalendarCall(req.Action, "not_found")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, resp.Body.Error)
	case !resp.Body.Success:
		metrics.IncCalendarCall(req.Action, "error")
		return nil, fmt.Errorf("calendar %s failed: %s", req.Action, resp.Body.Error)
	}

	metrics.IncCalendarCall(req.Action, "ok")
	return &resp.Body, nil
}

// CheckAvailability queries the backend for conflicts in [start, end).
func (c *Client) CheckAvailability(ctx context.Context, calendarID string, start, end time.Time) (*models.AvailabilityResult, error) {
	body, err := c.do(ctx, wireRequest{
		Action:     actionCheckAvailability,
		CalendarID: calendarID,
		Start:      start.Format(time.RFC3339),
		End:        end.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	if body.Available == nil {
		return nil, fmt.Errorf("calendar %s: response missing available flag", actionCheckAvailability)
	}

	result := &models.AvailabilityResult{Available: *body.Available}
	for _, ev := range body.Events {
		ref, err := decodeEvent(ev)
		if err != nil {
			c.logger.Warn().Err(err).Str("event_id", ev.ID).Msg("skip malformed conflict event")
			continue
		}
		result.Conflicts = append(result.Conflicts, ref)
	}
	return result, nil
}

// CreateEvent writes a new event and returns it with the backend-assigned id.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, event models.BookingEvent) (*models.BookingEvent, error) {
	body, err := c.do(ctx, wireRequest{
		Action:      actionCreateEvent,
		CalendarID:  calendarID,
		Start:       event.Start.Format(time.RFC3339),
		End:         event.End.Format(time.RFC3339),
		Summary:     event.Summary,
		Description: event.Description,
	})
	if err != nil {
		return nil, err
	}
	if body.EventID == "" {
		return nil, fmt.Errorf("calendar %s: response missing eventId", actionCreateEvent)
	}

	created := event
	created.EventID = body.EventID
	created.CalendarID = calendarID
	return &created, nil
}

// ListEvents returns events overlapping [start, end).
func (c *Client) ListEvents(ctx context.Context, calendarID string, start, end time.Time, maxResults int) ([]models.EventRef, error) {
	body, err := c.do(ctx, wireRequest{
		Action:     actionListEvents,
		CalendarID: calendarID,
		Start:      start.Format(time.RFC3339),
		End:        end.Format(time.RFC3339),
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, err
	}

	events := make([]models.EventRef, 0, len(body.Events))
	for _, ev := range body.Events {
		ref, err := decodeEvent(ev)
		if err != nil {
			c.logger.Warn().Err(err).Str("event_id", ev.ID).Msg("skip malformed event")
			continue
		}
		events = append(events, ref)
	}
	return events, nil
}

// DeleteEvent removes an event. Fails with ErrNotFound for unknown ids.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	_, err := c.do(ctx, wireRequest{
		Action:     actionDeleteEvent,
		CalendarID: calendarID,
		EventID:    eventID,
	})
	return err
}

func decodeEvent(ev wireEvent) (models.EventRef, error) {
	start, err := time.Parse(time.RFC3339, ev.Start)
	if err != nil {
		return models.EventRef{}, fmt.Errorf("event %s: bad start %q: %w", ev.ID, ev.Start, err)
	}
	end, err := time.Parse(time.RFC3339, ev.End)
	if err != nil {
		return models.EventRef{}, fmt.Errorf("event %s: bad end %q: %w", ev.ID, ev.End, err)
	}
	return models.EventRef{EventID: ev.ID, Summary: ev.Summary, Start: start, End: end}, nil
}
