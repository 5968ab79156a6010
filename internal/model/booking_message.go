package model

import "time"

type BookingMessageType string

const (
	BookingMessageCreated       BookingMessageType = "created"
	BookingMessageCancelled     BookingMessageType = "cancelled"
	BookingMessageStatusChanged BookingMessageType = "status_changed"
)

func (t BookingMessageType) IsValid() bool {
	switch t {
	case BookingMessageCreated, BookingMessageCancelled, BookingMessageStatusChanged:
		return true
	}
	return false
}

// BookingMessage 訂位生命週期事件，提交後發佈到 stream
type BookingMessage struct {
	Type       BookingMessageType `json:"type"`
	Booking    *Booking           `json:"booking"`
	OccurredAt time.Time          `json:"occurredAt"`
}
