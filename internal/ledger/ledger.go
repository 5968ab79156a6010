// Package ledger holds the seat admission rules and inventory arithmetic
// shared by every booking mutation. Functions are pure; callers hold the
// event row lock while applying them.
package ledger

import (
	"math"
	"time"

	"event-booking-api/internal/model"
	apperrors "event-booking-api/pkg/app_errors"
)

const DefaultCancellationWindow = 24 * time.Hour

// IsOpen 活動進行中且尚未開始
func IsOpen(event *model.Event, now time.Time) bool {
	return event.Status == model.EventStatusActive && event.EventDate.After(now)
}

// IsBookable 活動是否開放訂位
func IsBookable(event *model.Event, now time.Time) bool {
	return IsOpen(event, now) && event.AvailableSeats > 0
}

func HasCapacity(event *model.Event, seats int) bool {
	return event.Status == model.EventStatusActive && event.AvailableSeats >= seats
}

// Reserve 扣除座位，不允許低於 0
func Reserve(event *model.Event, seats int) error {
	if seats <= 0 {
		return apperrors.ErrInvalidInput
	}
	if event.AvailableSeats < seats {
		return apperrors.ErrInsufficientSeats
	}
	event.AvailableSeats -= seats
	return nil
}

// Release 歸還座位，不允許超過總座位數
func Release(event *model.Event, seats int) error {
	if seats <= 0 {
		return apperrors.ErrInvalidInput
	}
	if event.AvailableSeats+seats > event.TotalSeats {
		return apperrors.ErrConflict
	}
	event.AvailableSeats += seats
	return nil
}

func CanCancel(booking *model.Booking) bool {
	return booking.Status == model.BookingStatusConfirmed &&
		booking.PaymentStatus == model.PaymentStatusCompleted
}

// WithinCancellationWindow reports whether the event starts in less than window from now.
func WithinCancellationWindow(eventDate, now time.Time, window time.Duration) bool {
	return eventDate.Sub(now) < window
}

// SeatDelta returns how many seats a status transition takes from inventory.
// Positive means seats are reserved, negative means seats are returned.
func SeatDelta(from, to model.BookingStatus, seats int) int {
	switch {
	case from == to:
		return 0
	case from == model.BookingStatusConfirmed:
		return -seats
	case to == model.BookingStatusConfirmed:
		return seats
	}
	return 0
}

func TotalAmount(price float64, seats int) float64 {
	return RoundCents(price * float64(seats))
}

func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func BookedSeats(event *model.Event) int {
	return event.TotalSeats - event.AvailableSeats
}

// OccupancyRate 佔用率（百分比，兩位小數）
func OccupancyRate(event *model.Event) float64 {
	if event.TotalSeats == 0 {
		return 0
	}
	return RoundCents(float64(BookedSeats(event)) / float64(event.TotalSeats) * 100)
}

// ResizeCapacity changes the total seat count while keeping booked seats fixed.
func ResizeCapacity(event *model.Event, newTotal int) error {
	if newTotal <= 0 {
		return apperrors.NewValidationError(apperrors.FieldError{Field: "totalSeats", Message: "must be at least 1"})
	}
	booked := BookedSeats(event)
	if newTotal < booked {
		return apperrors.NewValidationError(apperrors.FieldError{Field: "totalSeats", Message: "cannot be lower than booked seats"})
	}
	event.TotalSeats = newTotal
	event.AvailableSeats = newTotal - booked
	return nil
}

// Detail 組合活動詳情投影
func Detail(event *model.Event) *model.EventDetail {
	return &model.EventDetail{
		Event:         event,
		BookedSeats:   BookedSeats(event),
		OccupancyRate: OccupancyRate(event),
	}
}
