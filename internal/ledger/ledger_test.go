package ledger_test

import (
	"testing"
	"time"

	"event-booking-api/internal/ledger"
	"event-booking-api/internal/model"
	apperrors "event-booking-api/pkg/app_errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newEvent(total, available int) *model.Event {
	return &model.Event{
		TotalSeats:     total,
		AvailableSeats: available,
		TicketPrice:    20,
		Status:         model.EventStatusActive,
		EventDate:      now.Add(72 * time.Hour),
	}
}

func TestIsBookable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *model.Event)
		want   bool
	}{
		{"active future event with seats", func(e *model.Event) {}, true},
		{"sold out", func(e *model.Event) { e.AvailableSeats = 0 }, false},
		{"cancelled", func(e *model.Event) { e.Status = model.EventStatusCancelled }, false},
		{"completed", func(e *model.Event) { e.Status = model.EventStatusCompleted }, false},
		{"starts now", func(e *model.Event) { e.EventDate = now }, false},
		{"in the past", func(e *model.Event) { e.EventDate = now.Add(-time.Hour) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEvent(50, 10)
			tt.mutate(e)
			assert.Equal(t, tt.want, ledger.IsBookable(e, now))
		})
	}
}

// 已售完仍算開放，訂位時回報座位不足
func TestIsOpen(t *testing.T) {
	e := newEvent(50, 0)
	assert.True(t, ledger.IsOpen(e, now))
	assert.False(t, ledger.IsBookable(e, now))

	e.EventDate = now.Add(-time.Minute)
	assert.False(t, ledger.IsOpen(e, now))

	e.EventDate = now.Add(time.Hour)
	e.Status = model.EventStatusCancelled
	assert.False(t, ledger.IsOpen(e, now))
}

func TestHasCapacity(t *testing.T) {
	e := newEvent(50, 3)
	assert.True(t, ledger.HasCapacity(e, 3))
	assert.False(t, ledger.HasCapacity(e, 4))

	e.Status = model.EventStatusCancelled
	assert.False(t, ledger.HasCapacity(e, 1))
}

func TestReserveAndRelease(t *testing.T) {
	e := newEvent(50, 50)

	require.NoError(t, ledger.Reserve(e, 3))
	assert.Equal(t, 47, e.AvailableSeats)

	require.NoError(t, ledger.Release(e, 3))
	assert.Equal(t, 50, e.AvailableSeats)

	assert.ErrorIs(t, ledger.Release(e, 1), apperrors.ErrConflict)
	assert.Equal(t, 50, e.AvailableSeats)

	e.AvailableSeats = 2
	assert.ErrorIs(t, ledger.Reserve(e, 3), apperrors.ErrInsufficientSeats)
	assert.Equal(t, 2, e.AvailableSeats)

	assert.ErrorIs(t, ledger.Reserve(e, 0), apperrors.ErrInvalidInput)
}

func TestCanCancel(t *testing.T) {
	b := &model.Booking{Status: model.BookingStatusConfirmed, PaymentStatus: model.PaymentStatusCompleted}
	assert.True(t, ledger.CanCancel(b))

	b.PaymentStatus = model.PaymentStatusPending
	assert.False(t, ledger.CanCancel(b))

	b = &model.Booking{Status: model.BookingStatusCancelled, PaymentStatus: model.PaymentStatusRefunded}
	assert.False(t, ledger.CanCancel(b))
}

func TestWithinCancellationWindow(t *testing.T) {
	window := ledger.DefaultCancellationWindow

	assert.True(t, ledger.WithinCancellationWindow(now.Add(23*time.Hour), now, window))
	assert.True(t, ledger.WithinCancellationWindow(now.Add(24*time.Hour-time.Second), now, window))
	assert.False(t, ledger.WithinCancellationWindow(now.Add(24*time.Hour), now, window))
	assert.False(t, ledger.WithinCancellationWindow(now.Add(25*time.Hour), now, window))
}

func TestSeatDelta(t *testing.T) {
	tests := []struct {
		from, to model.BookingStatus
		want     int
	}{
		{model.BookingStatusConfirmed, model.BookingStatusCancelled, -4},
		{model.BookingStatusConfirmed, model.BookingStatusRefunded, -4},
		{model.BookingStatusConfirmed, model.BookingStatusPending, -4},
		{model.BookingStatusPending, model.BookingStatusConfirmed, 4},
		{model.BookingStatusCancelled, model.BookingStatusConfirmed, 4},
		{model.BookingStatusCancelled, model.BookingStatusRefunded, 0},
		{model.BookingStatusConfirmed, model.BookingStatusConfirmed, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, ledger.SeatDelta(tt.from, tt.to, 4))
		})
	}
}

func TestTotalAmount(t *testing.T) {
	assert.Equal(t, 60.0, ledger.TotalAmount(20, 3))
	assert.Equal(t, 0.3, ledger.TotalAmount(0.1, 3))
	assert.Equal(t, 0.0, ledger.TotalAmount(0, 5))
}

func TestProjections(t *testing.T) {
	e := newEvent(200, 150)
	assert.Equal(t, 50, ledger.BookedSeats(e))
	assert.Equal(t, 25.0, ledger.OccupancyRate(e))

	d := ledger.Detail(e)
	assert.Equal(t, 50, d.BookedSeats)
	assert.Equal(t, 25.0, d.OccupancyRate)

	e = newEvent(3, 2)
	assert.Equal(t, 33.33, ledger.OccupancyRate(e))
}

func TestResizeCapacity(t *testing.T) {
	e := newEvent(50, 40)

	require.NoError(t, ledger.ResizeCapacity(e, 60))
	assert.Equal(t, 60, e.TotalSeats)
	assert.Equal(t, 50, e.AvailableSeats)

	require.NoError(t, ledger.ResizeCapacity(e, 10))
	assert.Equal(t, 10, e.TotalSeats)
	assert.Equal(t, 0, e.AvailableSeats)

	err := ledger.ResizeCapacity(e, 9)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 10, e.TotalSeats)
}
