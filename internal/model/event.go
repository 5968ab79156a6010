package model

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus 活動狀態
type EventStatus string

const (
	EventStatusActive    EventStatus = "active"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

func (s EventStatus) IsValid() bool {
	switch s {
	case EventStatusActive, EventStatusCancelled, EventStatusCompleted:
		return true
	}
	return false
}

type EventCategory string

const (
	CategoryConference EventCategory = "conference"
	CategoryWorkshop   EventCategory = "workshop"
	CategorySeminar    EventCategory = "seminar"
	CategoryConcert    EventCategory = "concert"
	CategorySports     EventCategory = "sports"
	CategoryOther      EventCategory = "other"
)

func (c EventCategory) IsValid() bool {
	switch c {
	case CategoryConference, CategoryWorkshop, CategorySeminar, CategoryConcert, CategorySports, CategoryOther:
		return true
	}
	return false
}

type Event struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	Title          string        `json:"title" db:"title"`
	Description    string        `json:"description" db:"description"`
	Venue          string        `json:"venue" db:"venue"`
	EventDate      time.Time     `json:"eventDate" db:"event_date"`
	TotalSeats     int           `json:"totalSeats" db:"total_seats"`
	AvailableSeats int           `json:"availableSeats" db:"available_seats"`
	TicketPrice    float64       `json:"ticketPrice" db:"ticket_price"`
	Category       EventCategory `json:"category" db:"category"`
	Status         EventStatus   `json:"status" db:"status"`
	ImageURL       *string       `json:"imageUrl,omitempty" db:"image_url"`
	CreatedBy      uuid.UUID     `json:"createdBy" db:"created_by"`
	CreatedAt      time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time     `json:"updatedAt" db:"updated_at"`
}

// UpdateEventParams 管理員編輯活動；nil 代表不變
type UpdateEventParams struct {
	Title       *string
	Description *string
	Venue       *string
	EventDate   *time.Time
	TotalSeats  *int
	TicketPrice *float64
	Category    *EventCategory
	Status      *EventStatus
	ImageURL    *string

	// 由 ledger.ResizeCapacity 計算，不由客戶端提供
	AvailableSeats *int
}

func (p UpdateEventParams) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Venue == nil && p.EventDate == nil &&
		p.TotalSeats == nil && p.TicketPrice == nil && p.Category == nil && p.Status == nil &&
		p.ImageURL == nil && p.AvailableSeats == nil
}

// CreateEventRequest 建立活動請求
type CreateEventRequest struct {
	Title       string        `json:"title" binding:"required,min=3,max=200"`
	Description string        `json:"description" binding:"required,min=10,max=2000"`
	Venue       string        `json:"venue" binding:"required,min=3,max=200"`
	EventDate   time.Time     `json:"eventDate" binding:"required"`
	TotalSeats  int           `json:"totalSeats" binding:"required,min=1,max=50000"`
	TicketPrice *float64      `json:"ticketPrice" binding:"required,min=0"`
	Category    EventCategory `json:"category" binding:"required"`
	ImageURL    *string       `json:"imageUrl" binding:"omitempty,max=500"`
}

// UpdateEventRequest 編輯活動請求，所有欄位可選
type UpdateEventRequest struct {
	Title       *string        `json:"title" binding:"omitempty,min=3,max=200"`
	Description *string        `json:"description" binding:"omitempty,min=10,max=2000"`
	Venue       *string        `json:"venue" binding:"omitempty,min=3,max=200"`
	EventDate   *time.Time     `json:"eventDate"`
	TotalSeats  *int           `json:"totalSeats" binding:"omitempty,min=1,max=50000"`
	TicketPrice *float64       `json:"ticketPrice" binding:"omitempty,min=0"`
	Category    *EventCategory `json:"category"`
	Status      *EventStatus   `json:"status"`
	ImageURL    *string        `json:"imageUrl" binding:"omitempty,max=500"`
}

func (r UpdateEventRequest) Params() UpdateEventParams {
	return UpdateEventParams{
		Title:       r.Title,
		Description: r.Description,
		Venue:       r.Venue,
		EventDate:   r.EventDate,
		TotalSeats:  r.TotalSeats,
		TicketPrice: r.TicketPrice,
		Category:    r.Category,
		Status:      r.Status,
		ImageURL:    r.ImageURL,
	}
}

// EventDetail 活動詳情，附帶座位統計
type EventDetail struct {
	*Event
	BookedSeats   int     `json:"bookedSeats"`
	OccupancyRate float64 `json:"occupancyRate"`
	IsBookable    bool    `json:"isBookable"`
}

// EventSummary 訂單回應中內嵌的活動摘要
type EventSummary struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Venue       string      `json:"venue"`
	EventDate   time.Time   `json:"eventDate"`
	TicketPrice float64     `json:"ticketPrice"`
	Status      EventStatus `json:"status"`
}

// Availability 快取中的座位快照
type Availability struct {
	EventID        uuid.UUID   `json:"eventId"`
	AvailableSeats int         `json:"availableSeats"`
	TotalSeats     int         `json:"totalSeats"`
	Status         EventStatus `json:"status"`
	Version        int64       `json:"version"`
}

func (e *Event) Availability() Availability {
	return Availability{
		EventID:        e.ID,
		AvailableSeats: e.AvailableSeats,
		TotalSeats:     e.TotalSeats,
		Status:         e.Status,
		Version:        e.UpdatedAt.UnixMicro(),
	}
}

// EventStats 單一活動的訂位與營收統計（管理員）
type EventStats struct {
	EventInfo      EventStatsInfo      `json:"eventInfo"`
	BookingStats   EventBookingStats   `json:"bookingStats"`
	FinancialStats EventFinancialStats `json:"financialStats"`
}

type EventStatsInfo struct {
	ID             uuid.UUID   `json:"id"`
	Title          string      `json:"title"`
	Status         EventStatus `json:"status"`
	TotalSeats     int         `json:"totalSeats"`
	AvailableSeats int         `json:"availableSeats"`
}

type EventBookingStats struct {
	TotalBookings     int     `json:"totalBookings"`
	ConfirmedBookings int     `json:"confirmedBookings"`
	CancelledBookings int     `json:"cancelledBookings"`
	TotalSeatsBooked  int     `json:"totalSeatsBooked"`
	OccupancyRate     float64 `json:"occupancyRate"`
}

type EventFinancialStats struct {
	TotalRevenue        float64 `json:"totalRevenue"`
	AverageBookingValue float64 `json:"averageBookingValue"`
}
