package apperrors_test

import (
	"errors"
	"fmt"
	"testing"

	apperrors "event-booking-api/pkg/app_errors"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want apperrors.Kind
	}{
		{"EventNotFound", apperrors.ErrEventNotFound, apperrors.KindNotFound},
		{"WrappedBookingNotFound", fmt.Errorf("load: %w", apperrors.ErrBookingNotFound), apperrors.KindNotFound},
		{"Forbidden", apperrors.ErrForbidden, apperrors.KindForbidden},
		{"Unauthorized", apperrors.ErrUnauthorized, apperrors.KindUnauthorized},
		{"Validation", apperrors.NewValidationError(apperrors.FieldError{Field: "numberOfSeats", Message: "must be 1..10"}), apperrors.KindBadRequest},
		{"NotBookable", apperrors.ErrNotBookable, apperrors.KindBadRequest},
		{"TooLate", apperrors.ErrTooLateToCancel, apperrors.KindBadRequest},
		{"InsufficientSeats", apperrors.ErrInsufficientSeats, apperrors.KindConflict},
		{"LockTimeout", apperrors.ErrLockTimeout, apperrors.KindConflict},
		{"Unknown", errors.New("boom"), apperrors.KindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, apperrors.KindOf(tc.err))
		})
	}
}

func TestValidationError(t *testing.T) {
	err := apperrors.NewValidationError(
		apperrors.FieldError{Field: "eventId", Message: "required"},
		apperrors.FieldError{Field: "numberOfSeats", Message: "must be between 1 and 10"},
	)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, "invalid input: eventId: required; numberOfSeats: must be between 1 and 10", err.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, apperrors.IsRetryable(fmt.Errorf("tx: %w", apperrors.ErrLockTimeout)))
	assert.True(t, apperrors.IsRetryable(apperrors.ErrConflict))
	assert.False(t, apperrors.IsRetryable(apperrors.ErrInsufficientSeats))
}
