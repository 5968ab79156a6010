package model

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus 訂位狀態類型
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusRefunded  BookingStatus = "refunded"
)

// IsValid 驗證狀態是否有效
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusRefunded:
		return true
	}
	return false
}

// PaymentStatus 付款狀態（模擬）
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

const (
	MinSeatsPerBooking = 1
	MaxSeatsPerBooking = 10
)

// Booking 訂位模型
type Booking struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	Reference       string        `json:"bookingReference" db:"booking_reference"`
	UserID          uuid.UUID     `json:"userId" db:"user_id"`
	EventID         uuid.UUID     `json:"eventId" db:"event_id"`
	NumberOfSeats   int           `json:"numberOfSeats" db:"number_of_seats"`
	TotalAmount     float64       `json:"totalAmount" db:"total_amount"`
	Status          BookingStatus `json:"status" db:"status"`
	PaymentStatus   PaymentStatus `json:"paymentStatus" db:"payment_status"`
	SpecialRequests *string       `json:"specialRequests,omitempty" db:"special_requests"`
	AdminNotes      *string       `json:"adminNotes,omitempty" db:"admin_notes"`
	BookedAt        time.Time     `json:"bookedAt" db:"booked_at"`
	CancelledAt     *time.Time    `json:"cancelledAt,omitempty" db:"cancelled_at"`
	CreatedAt       time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time     `json:"updatedAt" db:"updated_at"`

	Event *EventSummary `json:"event,omitempty" db:"-"`
	User  *UserSummary  `json:"user,omitempty" db:"-"`
}

// CreateBookingRequest 建立訂位請求
type CreateBookingRequest struct {
	EventID         string  `json:"eventId" binding:"required,uuid"`
	NumberOfSeats   int     `json:"numberOfSeats" binding:"required,min=1,max=10"`
	SpecialRequests *string `json:"specialRequests" binding:"omitempty,max=500"`
}

// UpdateBookingStatusRequest 管理員修改訂位狀態
type UpdateBookingStatusRequest struct {
	Status        *BookingStatus `json:"status"`
	PaymentStatus *PaymentStatus `json:"paymentStatus"`
	AdminNotes    *string        `json:"adminNotes" binding:"omitempty,max=1000"`
}

// CreateBookingInput 服務層的建立參數
type CreateBookingInput struct {
	UserID          uuid.UUID
	EventID         uuid.UUID
	NumberOfSeats   int
	SpecialRequests *string
}

type StatusChangeInput struct {
	Status        *BookingStatus
	PaymentStatus *PaymentStatus
	AdminNotes    *string
}

// MaxPage 分頁頁碼上限，避免 offset 溢位
const MaxPage = 10000

// BookingFilter 查詢條件；零值欄位不過濾
type BookingFilter struct {
	UserID   *uuid.UUID
	EventID  *uuid.UUID
	Status   *BookingStatus
	Upcoming bool
	Page     int
	Limit    int

	// OldestFirst 依訂位時間升冪排序（預設為降冪）
	OldestFirst bool
}

func (f BookingFilter) Offset() int {
	if f.Page <= 1 || f.Limit <= 0 {
		return 0
	}
	page := min(f.Page, MaxPage)
	return (page - 1) * f.Limit
}

type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

func NewPagination(total, page, limit int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Total: total, Page: page, Limit: limit, Pages: pages}
}

type BookingPage struct {
	Bookings   []*Booking `json:"bookings"`
	Pagination Pagination `json:"pagination"`
}

// BookingStats 訂位統計
type BookingStats struct {
	TotalBookings     int     `json:"totalBookings"`
	ConfirmedBookings int     `json:"confirmedBookings"`
	CancelledBookings int     `json:"cancelledBookings"`
	PendingBookings   int     `json:"pendingBookings"`
	RefundedBookings  int     `json:"refundedBookings"`
	TotalRevenue      float64 `json:"totalRevenue"`
	RecentBookings    int     `json:"recentBookings"`
	CancellationRate  float64 `json:"cancellationRate"`
}
