package geolocate

import "fmt"

// Reason classifies why a position could not be obtained.
type Reason string

const (
	ReasonDenied      Reason = "denied"
	ReasonUnavailable Reason = "unavailable"
	ReasonTimeout     Reason = "timeout"
)

// Error is a failed geolocation attempt. Compare with errors.Is against
// ErrDenied, ErrUnavailable or ErrTimeout.
type Error struct {
	Reason Reason
	Err    error
}

var (
	ErrDenied      = &Error{Reason: ReasonDenied}
	ErrUnavailable = &Error{Reason: ReasonUnavailable}
	ErrTimeout     = &Error{Reason: ReasonTimeout}
)

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("geolocation %s", e.Reason)
	}
	return fmt.Sprintf("geolocation %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

// UserMessage is the text shown when an explicit locate request fails.
const UserMessage = "ไม่สามารถระบุตำแหน่งของคุณได้"

// ParseReason maps a browser PositionError-style name to a Reason.
// Anything unrecognised is treated as unavailable.
func ParseReason(s string) Reason {
	switch Reason(s) {
	case ReasonDenied, ReasonTimeout:
		return Reason(s)
	}
	return ReasonUnavailable
}
