package models

import "time"

// Session holds the per-actor dialog state while booking fields are being
// collected across WhatsApp messages. ActorID is the customer phone number.
type Session struct {
	ActorID          string    `json:"actor_id"`
	SessionID        string    `json:"session_id"`
	Step             string    `json:"step"`
	Draft            Draft     `json:"draft"`
	PendingBookingID string    `json:"pending_booking_id,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Draft accumulates parsed booking fields until all required ones are present.
type Draft struct {
	Date      string `json:"date,omitempty"`
	Time      string `json:"time,omitempty"`
	PartySize int    `json:"party_size,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Merge fills empty draft fields from another draft; present fields win.
func (d *Draft) Merge(in Draft) {
	if in.Date != "" {
		d.Date = in.Date
	}
	if in.Time != "" {
		d.Time = in.Time
	}
	if in.PartySize > 0 {
		d.PartySize = in.PartySize
	}
	if in.Name != "" {
		d.Name = in.Name
	}
}

// Request converts the draft into a BookingRequest for the guard.
func (d Draft) Request(phone, calendarID string) BookingRequest {
	return BookingRequest{
		Date:         d.Date,
		Time:         d.Time,
		PartySize:    d.PartySize,
		CustomerName: d.Name,
		Phone:        phone,
		CalendarID:   calendarID,
	}
}
