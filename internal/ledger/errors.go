package ledger

import "errors"

var (
	// ErrNotFound is returned when no payment record exists for a booking id.
	ErrNotFound = errors.New("payment record not found")

	// ErrAlreadyConfirmed guards the terminal confirmed state against cancel.
	ErrAlreadyConfirmed = errors.New("payment already confirmed")

	// ErrAlreadyCancelled guards the terminal cancelled state against approve.
	ErrAlreadyCancelled = errors.New("payment already cancelled")
)
