package models

import "time"

// PaymentRecord is the persisted payment request for a booking. Keyed 1:1
// by booking id. Status moves pending -> confirmed or pending -> cancelled,
// both terminal.
type PaymentRecord struct {
	Protocol    string     `json:"protocol"`
	Standard    string     `json:"standard"`
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	Recipient   string     `json:"recipient"`
	BookingID   string     `json:"booking_id"`
	Description string     `json:"description"`
	PaymentURL  string     `json:"payment_url"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	TxHash      string     `json:"tx_hash,omitempty"`
}

// Terminal reports whether the record can no longer change status.
func (p PaymentRecord) Terminal() bool {
	return p.Status == PaymentConfirmed || p.Status == PaymentCancelled
}

// Expired reports whether a pending record passed its expiry deadline.
func (p PaymentRecord) Expired(now time.Time) bool {
	return p.Status == PaymentPending && !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}
