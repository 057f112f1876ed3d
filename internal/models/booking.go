package models

import (
	"fmt"
	"time"
)

// BookingRequest is the structured intent handed to the confirmation guard.
// Immutable once a guard instance takes it.
type BookingRequest struct {
	Date         string `json:"date"`       // YYYY-MM-DD
	Time         string `json:"time"`       // HH:MM, 24h
	PartySize    int    `json:"party_size"`
	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
	CalendarID   string `json:"calendar_id"`
}

// MissingFields returns the required fields that are still empty.
// Phone is implicit from the channel identity and is not required here.
func (r BookingRequest) MissingFields() []string {
	var missing []string
	if r.Date == "" {
		missing = append(missing, "date")
	}
	if r.Time == "" {
		missing = append(missing, "time")
	}
	if r.PartySize <= 0 {
		missing = append(missing, "party_size")
	}
	if r.CustomerName == "" {
		missing = append(missing, "customer_name")
	}
	return missing
}

// Window resolves the request into a concrete [start, end) interval in the
// given location.
func (r BookingRequest) Window(loc *time.Location, duration time.Duration) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", r.Date+" "+r.Time, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date/time %q %q: %w", r.Date, r.Time, err)
	}
	if duration <= 0 {
		duration = DefaultBookingDuration
	}
	return start, start.Add(duration), nil
}

// Summary builds the calendar event title in the fixed booking format.
func (r BookingRequest) Summary() string {
	return fmt.Sprintf("Restaurant Booking - %s (%d guests)", r.CustomerName, r.PartySize)
}

// EventRef identifies an existing calendar event that overlaps a requested slot.
type EventRef struct {
	EventID string    `json:"event_id"`
	Summary string    `json:"summary"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// AvailabilityResult is produced fresh on every check and never cached.
type AvailabilityResult struct {
	Available bool       `json:"available"`
	Conflicts []EventRef `json:"conflicts,omitempty"`
}

// AuditedBooking is the local audit row kept for every calendar write.
// The calendar stays the source of truth; this record only supports listing
// and exports.
type AuditedBooking struct {
	ID           int64     `json:"id"`
	EventID      string    `json:"event_id"`
	CalendarID   string    `json:"calendar_id"`
	CustomerName string    `json:"customer_name"`
	Phone        string    `json:"phone"`
	PartySize    int       `json:"party_size"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BookingEvent is the only record that proves a reservation exists.
// EventID is opaque and assigned by the calendar backend.
type BookingEvent struct {
	EventID     string    `json:"event_id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	CalendarID  string    `json:"calendar_id"`
}
