package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingRequestMissingFields(t *testing.T) {
	req := BookingRequest{}
	assert.ElementsMatch(t, []string{"date", "time", "party_size", "customer_name"}, req.MissingFields())

	req = BookingRequest{Date: "2025-10-17", Time: "19:00", PartySize: 4, CustomerName: "Maria"}
	assert.Empty(t, req.MissingFields())

	req.PartySize = 0
	assert.Equal(t, []string{"party_size"}, req.MissingFields())
}

func TestBookingRequestWindow(t *testing.T) {
	req := BookingRequest{Date: "2025-10-17", Time: "19:30"}

	start, end, err := req.Window(UTCPlus4, 0)
	require.NoError(t, err)
	assert.Equal(t, "2025-10-17T19:30:00+04:00", start.Format(time.RFC3339))
	assert.Equal(t, DefaultBookingDuration, end.Sub(start))

	_, _, err = req.Window(UTCPlus4, time.Hour)
	require.NoError(t, err)

	bad := BookingRequest{Date: "17/10/2025", Time: "19:30"}
	_, _, err = bad.Window(UTCPlus4, time.Hour)
	assert.Error(t, err)
}

func TestPaymentRecordTerminal(t *testing.T) {
	rec := PaymentRecord{Status: PaymentPending}
	assert.False(t, rec.Terminal())

	rec.Status = PaymentConfirmed
	assert.True(t, rec.Terminal())

	rec.Status = PaymentCancelled
	assert.True(t, rec.Terminal())
}

func TestPaymentRecordExpired(t *testing.T) {
	now := time.Now()
	rec := PaymentRecord{Status: PaymentPending, ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, rec.Expired(now))

	rec.ExpiresAt = now.Add(time.Minute)
	assert.False(t, rec.Expired(now))

	rec.Status = PaymentConfirmed
	rec.ExpiresAt = now.Add(-time.Minute)
	assert.False(t, rec.Expired(now))
}

func TestDraftMerge(t *testing.T) {
	d := Draft{Date: "2025-10-17"}
	d.Merge(Draft{Time: "19:00", PartySize: 2})
	d.Merge(Draft{Date: "2025-10-18", Name: "Paul"})

	assert.Equal(t, "2025-10-18", d.Date)
	assert.Equal(t, "19:00", d.Time)
	assert.Equal(t, 2, d.PartySize)
	assert.Equal(t, "Paul", d.Name)

	req := d.Request("+23057123456", "cal-1")
	assert.Equal(t, "+23057123456", req.Phone)
	assert.Equal(t, "cal-1", req.CalendarID)
	assert.Empty(t, req.MissingFields())
}
