package calendar

import "errors"

var (
	// ErrBackendUnavailable marks a transient remote failure. Callers may
	// retry; it must never be read as "slot is available".
	ErrBackendUnavailable = errors.New("calendar backend unavailable")

	// ErrNotFound is returned when an event id does not exist.
	ErrNotFound = errors.New("event not found")
)
