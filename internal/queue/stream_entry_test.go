package queue

import (
	"testing"
	"time"

	"event-booking-api/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEntry_WritesIndexFields(t *testing.T) {
	msg := &model.BookingMessage{
		Type: model.BookingMessageCancelled,
		Booking: &model.Booking{
			ID:            uuid.New(),
			EventID:       uuid.New(),
			Reference:     "BK12345678ENCD",
			NumberOfSeats: 3,
			Status:        model.BookingStatusCancelled,
		},
		OccurredAt: time.Date(2026, 3, 1, 9, 30, 0, 123456000, time.UTC),
	}

	values, err := encodeEntry(msg)
	require.NoError(t, err)

	assert.Equal(t, "cancelled", values[fieldType])
	assert.Equal(t, msg.Booking.ID.String(), values[fieldBookingID])
	assert.Equal(t, msg.Booking.EventID.String(), values[fieldEventID])
	assert.Equal(t, "BK12345678ENCD", values[fieldReference])
	assert.Equal(t, "2026-03-01T09:30:00.123456Z", values[fieldOccurredAt])

	// Redis 回傳的欄位值皆為字串
	decoded, err := decodeEntry(values)
	require.NoError(t, err)
	assert.Equal(t, msg.Type, decoded.Type)
	assert.Equal(t, msg.Booking.ID, decoded.Booking.ID)
	assert.Equal(t, 3, decoded.Booking.NumberOfSeats)
	assert.True(t, msg.OccurredAt.Equal(decoded.OccurredAt))
}

func TestEncodeEntry_RejectsInvalidMessages(t *testing.T) {
	_, err := encodeEntry(nil)
	assert.ErrorIs(t, err, errMissingBooking)

	_, err = encodeEntry(&model.BookingMessage{Type: model.BookingMessageCreated})
	assert.ErrorIs(t, err, errMissingBooking)

	_, err = encodeEntry(&model.BookingMessage{Type: "refund_requested", Booking: &model.Booking{}})
	assert.ErrorIs(t, err, errUnknownMessageType)
}

func TestDecodeEntry_Errors(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
		want   error
	}{
		{"missing type", map[string]interface{}{fieldBooking: `{}`}, errUnknownMessageType},
		{"unknown type", map[string]interface{}{fieldType: "refund_requested", fieldBooking: `{}`}, errUnknownMessageType},
		{"missing booking", map[string]interface{}{fieldType: "created"}, errMissingBooking},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeEntry(tt.values)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := decodeEntry(map[string]interface{}{fieldType: "created", fieldBooking: "{not json"})
	assert.Error(t, err)

	_, err = decodeEntry(map[string]interface{}{fieldType: "created", fieldBooking: `{}`, fieldOccurredAt: "yesterday"})
	assert.Error(t, err)
}
