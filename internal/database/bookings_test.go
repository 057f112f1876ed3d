package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"bellavita/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "audit.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleEvent(eventID string, start time.Time) *models.BookingEvent {
	return &models.BookingEvent{
		EventID:    eventID,
		CalendarID: "restaurant@example.com",
		Summary:    "Restaurant Booking - Elena (4 guests)",
		Start:      start,
		End:        start.Add(2 * time.Hour),
	}
}

func sampleRequest() models.BookingRequest {
	return models.BookingRequest{
		Date:         "2026-09-10",
		Time:         "19:00",
		PartySize:    4,
		CustomerName: "Elena",
		Phone:        "79991234567",
		CalendarID:   "restaurant@example.com",
	}
}

func TestRecordAndGetBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 10, 19, 0, 0, 0, time.UTC)

	require.NoError(t, db.RecordCreated(ctx, sampleEvent("evt-1", start), sampleRequest()))

	got, err := db.GetByEventID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "evt-1", got.EventID)
	assert.Equal(t, "Elena", got.CustomerName)
	assert.Equal(t, 4, got.PartySize)
	assert.Equal(t, models.BookingActive, got.Status)
	assert.True(t, got.Start.Equal(start))
}

func TestRecordCreatedIsIdempotentPerEventID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 10, 19, 0, 0, 0, time.UTC)

	require.NoError(t, db.RecordCreated(ctx, sampleEvent("evt-dup", start), sampleRequest()))
	require.NoError(t, db.RecordCreated(ctx, sampleEvent("evt-dup", start), sampleRequest()))

	rows, err := db.ListRange(ctx, start.Add(-time.Hour), start.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestGetByEventIDNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByEventID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestMarkCancelled(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 10, 19, 0, 0, 0, time.UTC)

	require.NoError(t, db.RecordCreated(ctx, sampleEvent("evt-2", start), sampleRequest()))
	require.NoError(t, db.MarkCancelled(ctx, "evt-2"))

	got, err := db.GetByEventID(ctx, "evt-2")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, got.Status)

	assert.ErrorIs(t, db.MarkCancelled(ctx, "missing"), ErrBookingNotFound)
}

func TestListUpcoming(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 10, 19, 0, 0, 0, time.UTC)

	require.NoError(t, db.RecordCreated(ctx, sampleEvent("evt-past", base.AddDate(0, 0, -2)), sampleRequest()))
	require.NoError(t, db.RecordCreated(ctx, sampleEvent("evt-later", base.AddDate(0, 0, 2)), sampleRequest()))
	require.NoError(t, db.RecordCreated(ctx, sampleEvent("evt-soon", base.AddDate(0, 0, 1)), sampleRequest()))
	require.NoError(t, db.RecordCreated(ctx, sampleEvent("evt-cancelled", base.AddDate(0, 0, 3)), sampleRequest()))
	require.NoError(t, db.MarkCancelled(ctx, "evt-cancelled"))

	got, err := db.ListUpcoming(ctx, base, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "evt-soon", got[0].EventID)
	assert.Equal(t, "evt-later", got[1].EventID)
}

func TestListByPhone(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 10, 19, 0, 0, 0, time.UTC)

	req := sampleRequest()
	require.NoError(t, db.RecordCreated(ctx, sampleEvent("evt-a", base), req))
	require.NoError(t, db.RecordCreated(ctx, sampleEvent("evt-b", base.AddDate(0, 0, 1)), req))

	other := sampleRequest()
	other.Phone = "70000000000"
	require.NoError(t, db.RecordCreated(ctx, sampleEvent("evt-other", base), other))

	got, err := db.ListByPhone(ctx, req.Phone)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "evt-b", got[0].EventID)
}

func TestListRange(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 10, 19, 0, 0, 0, time.UTC)

	require.NoError(t, db.RecordCreated(ctx, sampleEvent("evt-in", base), sampleRequest()))
	require.NoError(t, db.RecordCreated(ctx, sampleEvent("evt-out", base.AddDate(0, 1, 0)), sampleRequest()))

	got, err := db.ListRange(ctx, base.AddDate(0, 0, -1), base.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "evt-in", got[0].EventID)
}
