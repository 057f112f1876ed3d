package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bellavita/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWindow() (time.Time, time.Time) {
	start := time.Date(2025, 10, 17, 19, 0, 0, 0, models.UTCPlus4)
	return start, start.Add(2 * time.Hour)
}

func newTestServer(t *testing.T, handler func(wireRequest) wireResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wireRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := handler(req)
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestCheckAvailabilityFree(t *testing.T) {
	srv := newTestServer(t, func(req wireRequest) wireResponse {
		assert.Equal(t, actionCheckAvailability, req.Action)
		assert.Equal(t, "cal-1", req.CalendarID)
		available := true
		return wireResponse{StatusCode: 200, Body: wireBody{Success: true, Available: &available}}
	})
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	start, end := testWindow()

	result, err := client.CheckAvailability(context.Background(), "cal-1", start, end)
	require.NoError(t, err)
	assert.True(t, result.Available)
	assert.Empty(t, result.Conflicts)
}

func TestCheckAvailabilityConflict(t *testing.T) {
	start, end := testWindow()
	srv := newTestServer(t, func(req wireRequest) wireResponse {
		available := false
		return wireResponse{StatusCode: 200, Body: wireBody{
			Success:   true,
			Available: &available,
			Events: []wireEvent{
				{ID: "ev-1", Summary: "Restaurant Booking - Anna (2 guests)", Start: start.Format(time.RFC3339), End: end.Format(time.RFC3339)},
			},
		}}
	})
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	result, err := client.CheckAvailability(context.Background(), "cal-1", start, end)
	require.NoError(t, err)
	assert.False(t, result.Available)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "ev-1", result.Conflicts[0].EventID)
	assert.True(t, result.Conflicts[0].Start.Equal(start))
}

func TestCheckAvailabilityBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	start, end := testWindow()

	_, err := client.CheckAvailability(context.Background(), "cal-1", start, end)
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestCheckAvailabilityConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	start, end := testWindow()

	_, err := client.CheckAvailability(context.Background(), "cal-1", start, end)
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestCreateEventReturnsBackendID(t *testing.T) {
	srv := newTestServer(t, func(req wireRequest) wireResponse {
		assert.Equal(t, actionCreateEvent, req.Action)
		assert.Equal(t, "Restaurant Booking - Anna (2 guests)", req.Summary)
		return wireResponse{StatusCode: 200, Body: wireBody{Success: true, EventID: "abc123xyz456"}}
	})
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	start, end := testWindow()

	created, err := client.CreateEvent(context.Background(), "cal-1", models.BookingEvent{
		Summary: "Restaurant Booking - Anna (2 guests)",
		Start:   start,
		End:     end,
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123xyz456", created.EventID)
	assert.Equal(t, "cal-1", created.CalendarID)
}

func TestCreateEventMissingIDFails(t *testing.T) {
	srv := newTestServer(t, func(req wireRequest) wireResponse {
		return wireResponse{StatusCode: 200, Body: wireBody{Success: true}}
	})
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	start, end := testWindow()

	_, err := client.CreateEvent(context.Background(), "cal-1", models.BookingEvent{Start: start, End: end})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eventId")
}

func TestCreateEventBackendError(t *testing.T) {
	srv := newTestServer(t, func(req wireRequest) wireResponse {
		return wireResponse{StatusCode: 400, Body: wireBody{Success: false, Error: "invalid time range"}}
	})
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	start, end := testWindow()

	_, err := client.CreateEvent(context.Background(), "cal-1", models.BookingEvent{Start: start, End: end})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "invalid time range")
}

func TestDeleteEventNotFound(t *testing.T) {
	srv := newTestServer(t, func(req wireRequest) wireResponse {
		assert.Equal(t, actionDeleteEvent, req.Action)
		assert.Equal(t, "ghost", req.EventID)
		return wireResponse{StatusCode: 404, Body: wireBody{Success: false, Error: "event not found"}}
	})
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	err := client.DeleteEvent(context.Background(), "cal-1", "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListEventsSkipsMalformed(t *testing.T) {
	start, end := testWindow()
	srv := newTestServer(t, func(req wireRequest) wireResponse {
		assert.Equal(t, actionListEvents, req.Action)
		assert.Equal(t, 10, req.MaxResults)
		return wireResponse{StatusCode: 200, Body: wireBody{
			Success: true,
			Events: []wireEvent{
				{ID: "good", Start: start.Format(time.RFC3339), End: end.Format(time.RFC3339)},
				{ID: "bad", Start: "yesterday", End: "later"},
			},
		}}
	})
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	events, err := client.ListEvents(context.Background(), "cal-1", start, end, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "good", events[0].EventID)
}
