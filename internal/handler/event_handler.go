package handler

import (
	"event-booking-api/internal/middleware"
	"event-booking-api/internal/model"
	"event-booking-api/internal/service"
	"event-booking-api/pkg/response"

	"github.com/gin-gonic/gin"
)

type EventHandler struct {
	service     service.EventService
	bookings    service.BookingService
	requireAuth gin.HandlerFunc
}

func NewEventHandler(service service.EventService, bookings service.BookingService, requireAuth gin.HandlerFunc) *EventHandler {
	return &EventHandler{service: service, bookings: bookings, requireAuth: requireAuth}
}

func (h *EventHandler) RegisterRoutes(r *gin.Engine) {
	public := r.Group("/api/v1/events")
	{
		public.GET(":id", h.GetEvent)
		public.GET(":id/availability", h.GetAvailability)
	}

	admin := r.Group("/api/v1/events", h.requireAuth, middleware.RequireAdmin())
	{
		admin.POST("", h.CreateEvent)
		admin.PUT(":id", h.UpdateEvent)
		admin.DELETE(":id", h.DeleteEvent)
		admin.GET(":id/bookings", h.ListEventBookings)
		admin.GET(":id/stats", h.GetEventStats)
	}
}

func (h *EventHandler) GetEvent(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	event, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "GetEvent")
		return
	}

	response.OK(c, "Event retrieved successfully", event)
}

func (h *EventHandler) GetAvailability(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	availability, err := h.service.Availability(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "GetAvailability")
		return
	}

	response.OK(c, "Availability retrieved successfully", availability)
}

func (h *EventHandler) CreateEvent(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req model.CreateEventRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	event, err := h.service.Create(c.Request.Context(), p.UserID, req)
	if err != nil {
		handleError(c, err, "CreateEvent")
		return
	}

	response.Created(c, "Event created successfully", event)
}

func (h *EventHandler) UpdateEvent(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	var req model.UpdateEventRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	params := req.Params()
	if params.IsEmpty() {
		response.BadRequest(c, "No fields to update")
		return
	}

	event, err := h.service.Update(c.Request.Context(), id, params)
	if err != nil {
		handleError(c, err, "UpdateEvent")
		return
	}

	response.OK(c, "Event updated successfully", event)
}

func (h *EventHandler) DeleteEvent(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err, "DeleteEvent")
		return
	}

	response.OK(c, "Event deleted successfully", nil)
}

type eventBookingsQuery struct {
	Page   int    `form:"page" binding:"omitempty,min=1,max=10000"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Status string `form:"status" binding:"omitempty,oneof=pending confirmed cancelled refunded"`
}

func (h *EventHandler) ListEventBookings(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	var q eventBookingsQuery
	if err := BindQuery(c, &q); err != nil {
		return
	}

	var status *model.BookingStatus
	if q.Status != "" {
		s := model.BookingStatus(q.Status)
		status = &s
	}

	page, err := h.bookings.ListForEvent(c.Request.Context(), id, q.Page, q.Limit, status)
	if err != nil {
		handleError(c, err, "ListEventBookings")
		return
	}

	response.OK(c, "Event bookings retrieved successfully", page)
}

func (h *EventHandler) GetEventStats(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "GetEventStats")
		return
	}

	response.OK(c, "Event statistics retrieved successfully", stats)
}
