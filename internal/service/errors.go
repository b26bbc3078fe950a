package service

import (
	"errors"

	"github.com/iliyamo/timeslot-reservation/internal/booking"
)

var (
	// ErrInvalidInput marks requests that fail basic validation, such as an
	// empty name or an unparseable open time.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned by Login for a wrong password.
	ErrUnauthorized = errors.New("invalid credentials")
)

// RejectedError reports that the booking rules refused a request.
type RejectedError struct {
	Reason booking.Reason
}

func (e *RejectedError) Error() string { return e.Reason.Message() }

func rejected(r booking.Reason) error { return &RejectedError{Reason: r} }

// ReasonOf extracts the rejection reason from err, or "" when err is not a
// rejection.
func ReasonOf(err error) booking.Reason {
	var re *RejectedError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}
