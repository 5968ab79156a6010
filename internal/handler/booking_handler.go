package handler

import (
	"regexp"

	"event-booking-api/internal/middleware"
	"event-booking-api/internal/model"
	"event-booking-api/internal/service"
	apperrors "event-booking-api/pkg/app_errors"
	"event-booking-api/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var referencePattern = regexp.MustCompile(`^BK[0-9A-Z]{8,18}$`)

type BookingHandler struct {
	service     service.BookingService
	requireAuth gin.HandlerFunc
	idempotency gin.HandlerFunc
}

// NewBookingHandler idempotency 可為 nil
func NewBookingHandler(service service.BookingService, requireAuth gin.HandlerFunc, idempotency gin.HandlerFunc) *BookingHandler {
	return &BookingHandler{service: service, requireAuth: requireAuth, idempotency: idempotency}
}

func (h *BookingHandler) RegisterRoutes(r *gin.Engine) {
	router := r.Group("/api/v1/bookings", h.requireAuth)
	{
		create := []gin.HandlerFunc{}
		if h.idempotency != nil {
			create = append(create, h.idempotency)
		}
		create = append(create, h.CreateBooking)

		router.POST("", create...)
		router.GET("", h.ListMyBookings)
		router.GET("stats", middleware.RequireAdmin(), h.GetStats)
		router.GET("reference/:reference", h.GetBookingByReference)
		router.GET(":id", h.GetBooking)
		router.PUT(":id/cancel", h.CancelBooking)
		router.PUT(":id/status", middleware.RequireAdmin(), h.UpdateBookingStatus)
	}
}

func (h *BookingHandler) CreateBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req model.CreateBookingRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	booking, err := h.service.Create(c.Request.Context(), model.CreateBookingInput{
		UserID:          p.UserID,
		EventID:         uuid.MustParse(req.EventID),
		NumberOfSeats:   req.NumberOfSeats,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		handleError(c, err, "CreateBooking")
		return
	}

	response.Created(c, "Booking created successfully", booking)
}

type listBookingsQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1,max=10000"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=50"`
	Status   string `form:"status" binding:"omitempty,oneof=pending confirmed cancelled refunded"`
	Upcoming bool   `form:"upcoming"`
}

func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var q listBookingsQuery
	if err := BindQuery(c, &q); err != nil {
		return
	}

	filter := model.BookingFilter{Page: q.Page, Limit: q.Limit, Upcoming: q.Upcoming}
	if q.Status != "" {
		status := model.BookingStatus(q.Status)
		filter.Status = &status
	}

	page, err := h.service.ListForUser(c.Request.Context(), p.UserID, filter)
	if err != nil {
		handleError(c, err, "ListMyBookings")
		return
	}

	response.OK(c, "Bookings retrieved successfully", page)
}

type statsQuery struct {
	EventID string `form:"eventId" binding:"omitempty,uuid"`
}

func (h *BookingHandler) GetStats(c *gin.Context) {
	var q statsQuery
	if err := BindQuery(c, &q); err != nil {
		return
	}

	var eventID *uuid.UUID
	if q.EventID != "" {
		id := uuid.MustParse(q.EventID)
		eventID = &id
	}

	stats, err := h.service.Stats(c.Request.Context(), eventID)
	if err != nil {
		handleError(c, err, "GetStats")
		return
	}

	response.OK(c, "Booking statistics retrieved successfully", stats)
}

func (h *BookingHandler) GetBookingByReference(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	reference := c.Param("reference")
	if !referencePattern.MatchString(reference) {
		response.BadRequest(c, "Invalid path parameters",
			apperrors.FieldError{Field: "reference", Message: "must be a valid booking reference"})
		return
	}

	booking, err := h.service.GetByReference(c.Request.Context(), reference, p)
	if err != nil {
		handleError(c, err, "GetBookingByReference")
		return
	}

	response.OK(c, "Booking retrieved successfully", booking)
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}

	booking, err := h.service.GetByID(c.Request.Context(), id, p)
	if err != nil {
		handleError(c, err, "GetBooking")
		return
	}

	response.OK(c, "Booking retrieved successfully", booking)
}

func (h *BookingHandler) CancelBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}

	booking, err := h.service.Cancel(c.Request.Context(), id, p)
	if err != nil {
		handleError(c, err, "CancelBooking")
		return
	}

	response.OK(c, "Booking cancelled successfully", booking)
}

func (h *BookingHandler) UpdateBookingStatus(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	var req model.UpdateBookingStatusRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	booking, err := h.service.ChangeStatus(c.Request.Context(), id, model.StatusChangeInput{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
		AdminNotes:    req.AdminNotes,
	})
	if err != nil {
		handleError(c, err, "UpdateBookingStatus")
		return
	}

	response.OK(c, "Booking status updated successfully", booking)
}
