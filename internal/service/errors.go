package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPastDate             = errors.New("booking date is in the past")
	ErrDateTooFar           = errors.New("booking date is too far in the future")
	ErrOutsideBusinessHours = errors.New("requested time is outside business hours")
)

// ValidationError lists the required booking fields that are still missing.
// The caller re-prompts for exactly these fields.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing booking fields: %s", strings.Join(e.Missing, ", "))
}
