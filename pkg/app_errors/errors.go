package apperrors

import (
	"errors"
	"strings"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotBookable       = errors.New("event is not bookable")
	ErrInsufficientSeats = errors.New("insufficient seats")
	ErrNotCancellable    = errors.New("booking cannot be cancelled")
	ErrTooLateToCancel   = errors.New("cancellation window has elapsed")
	ErrDuplicateBooking  = errors.New("duplicate booking")
	ErrConflict          = errors.New("concurrent update conflict")
	ErrLockTimeout       = errors.New("lock wait timeout")
	ErrEventHasBookings  = errors.New("event has bookings")
)

// Kind is the coarse classification the HTTP layer maps to a status code.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindUnauthorized Kind = "unauthorized"
	KindBadRequest   Kind = "bad_request"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field level details and matches ErrInvalidInput.
type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrInvalidInput.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEventNotFound),
		errors.Is(err, ErrBookingNotFound),
		errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrNotBookable),
		errors.Is(err, ErrNotCancellable),
		errors.Is(err, ErrTooLateToCancel):
		return KindBadRequest
	case errors.Is(err, ErrInsufficientSeats),
		errors.Is(err, ErrDuplicateBooking),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrLockTimeout),
		errors.Is(err, ErrEventHasBookings):
		return KindConflict
	default:
		return KindInternal
	}
}

// IsRetryable reports whether the caller may safely resubmit the same request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrLockTimeout)
}
