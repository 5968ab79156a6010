package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"event-booking-api/internal/model"
	apperrors "event-booking-api/pkg/app_errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestEventHandler_GetEvent_IsPublic(t *testing.T) {
	s := newTestServer()
	event := &model.Event{ID: uuid.New(), Title: "Go Conference", TotalSeats: 50, AvailableSeats: 47}
	s.events.On("GetByID", mock.Anything, event.ID).Return(&model.EventDetail{Event: event, BookedSeats: 3, OccupancyRate: 6}, nil)

	w := s.do(http.MethodGet, "/api/v1/events/"+event.ID.String(), "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := string(decode(t, w).Data)
	assert.Contains(t, data, `"bookedSeats":3`)
	assert.Contains(t, data, `"availableSeats":47`)
}

func TestEventHandler_GetEvent_NotFound(t *testing.T) {
	s := newTestServer()
	id := uuid.New()
	s.events.On("GetByID", mock.Anything, id).Return(nil, apperrors.ErrEventNotFound)

	w := s.do(http.MethodGet, "/api/v1/events/"+id.String(), "", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Event not found", decode(t, w).Message)
}

func TestEventHandler_GetAvailability(t *testing.T) {
	s := newTestServer()
	id := uuid.New()
	s.events.On("Availability", mock.Anything, id).Return(model.Availability{
		EventID: id, AvailableSeats: 12, TotalSeats: 20, Status: model.EventStatusActive, Version: 42,
	}, nil)

	w := s.do(http.MethodGet, "/api/v1/events/"+id.String()+"/availability", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), `"availableSeats":12`)
}

func TestEventHandler_CreateEvent(t *testing.T) {
	s := newTestServer()
	_, userToken := s.loginAs(t, model.RoleUser)
	admin, adminToken := s.loginAs(t, model.RoleAdmin)

	body := map[string]interface{}{
		"title":       "Go Conference",
		"description": "A day of talks about Go",
		"venue":       "Main Hall",
		"eventDate":   time.Now().UTC().Add(30 * 24 * time.Hour).Format(time.RFC3339),
		"totalSeats":  50,
		"ticketPrice": 20,
		"category":    "conference",
	}

	w := s.do(http.MethodPost, "/api/v1/events", userToken, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	created := &model.Event{ID: uuid.New(), Title: "Go Conference", TotalSeats: 50, AvailableSeats: 50}
	s.events.On("Create", mock.Anything, admin.ID, mock.MatchedBy(func(req model.CreateEventRequest) bool {
		return req.Title == "Go Conference" && req.TicketPrice != nil && *req.TicketPrice == 20
	})).Return(&model.EventDetail{Event: created}, nil)

	w = s.do(http.MethodPost, "/api/v1/events", adminToken, body)
	assert.Equal(t, http.StatusCreated, w.Code)
	s.events.AssertExpectations(t)
}

func TestEventHandler_CreateEvent_Validation(t *testing.T) {
	s := newTestServer()
	_, adminToken := s.loginAs(t, model.RoleAdmin)

	w := s.do(http.MethodPost, "/api/v1/events", adminToken, map[string]interface{}{
		"title":       "Go",
		"description": "too short",
		"venue":       "Main Hall",
		"eventDate":   time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
		"totalSeats":  50,
		"category":    "conference",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	fields := map[string]bool{}
	for _, fe := range decode(t, w).Errors {
		fields[fe.Field] = true
	}
	assert.True(t, fields["title"])
	assert.True(t, fields["description"])
	assert.True(t, fields["ticketPrice"])
	s.events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestEventHandler_UpdateEvent(t *testing.T) {
	s := newTestServer()
	_, adminToken := s.loginAs(t, model.RoleAdmin)
	id := uuid.New()

	w := s.do(http.MethodPut, "/api/v1/events/"+id.String(), adminToken, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	seats := 10
	s.events.On("Update", mock.Anything, id, model.UpdateEventParams{TotalSeats: &seats}).
		Return(nil, apperrors.NewValidationError(apperrors.FieldError{Field: "totalSeats", Message: "cannot be lower than booked seats"}))

	w = s.do(http.MethodPut, "/api/v1/events/"+id.String(), adminToken, map[string]interface{}{"totalSeats": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	if assert.Len(t, env.Errors, 1) {
		assert.Equal(t, "totalSeats", env.Errors[0].Field)
	}
}

func TestEventHandler_DeleteEvent(t *testing.T) {
	s := newTestServer()
	_, adminToken := s.loginAs(t, model.RoleAdmin)
	booked, empty := uuid.New(), uuid.New()

	s.events.On("Delete", mock.Anything, booked).Return(apperrors.ErrEventHasBookings)
	s.events.On("Delete", mock.Anything, empty).Return(nil)

	w := s.do(http.MethodDelete, "/api/v1/events/"+booked.String(), adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodDelete, "/api/v1/events/"+empty.String(), adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEventHandler_ListEventBookings(t *testing.T) {
	s := newTestServer()
	_, userToken := s.loginAs(t, model.RoleUser)
	_, adminToken := s.loginAs(t, model.RoleAdmin)
	id := uuid.New()

	w := s.do(http.MethodGet, "/api/v1/events/"+id.String()+"/bookings", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/v1/events/"+id.String()+"/bookings?limit=101", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/events/"+id.String()+"/bookings?page=10001", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.bookings.On("ListForEvent", mock.Anything, id, 1, 100, (*model.BookingStatus)(nil)).
		Return(&model.BookingPage{Bookings: []*model.Booking{}, Pagination: model.NewPagination(0, 1, 100)}, nil)
	w = s.do(http.MethodGet, "/api/v1/events/"+id.String()+"/bookings?page=1&limit=100", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	s.bookings.AssertExpectations(t)
}

func TestEventHandler_ListEventBookings_StatusFilter(t *testing.T) {
	s := newTestServer()
	_, adminToken := s.loginAs(t, model.RoleAdmin)
	id := uuid.New()

	w := s.do(http.MethodGet, "/api/v1/events/"+id.String()+"/bookings?status=archived", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.bookings.On("ListForEvent", mock.Anything, id, 0, 0, mock.MatchedBy(func(status *model.BookingStatus) bool {
		return status != nil && *status == model.BookingStatusRefunded
	})).Return(&model.BookingPage{Bookings: []*model.Booking{}, Pagination: model.NewPagination(0, 1, 10)}, nil)

	w = s.do(http.MethodGet, "/api/v1/events/"+id.String()+"/bookings?status=refunded", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	s.bookings.AssertExpectations(t)
}

func TestEventHandler_GetEventStats(t *testing.T) {
	s := newTestServer()
	_, userToken := s.loginAs(t, model.RoleUser)
	_, adminToken := s.loginAs(t, model.RoleAdmin)
	id, missing := uuid.New(), uuid.New()

	w := s.do(http.MethodGet, "/api/v1/events/"+id.String()+"/stats", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	s.events.On("Stats", mock.Anything, id).Return(&model.EventStats{
		EventInfo:      model.EventStatsInfo{ID: id, TotalSeats: 50, AvailableSeats: 40},
		BookingStats:   model.EventBookingStats{TotalBookings: 3, ConfirmedBookings: 3, TotalSeatsBooked: 10, OccupancyRate: 20},
		FinancialStats: model.EventFinancialStats{TotalRevenue: 200, AverageBookingValue: 66.67},
	}, nil)
	s.events.On("Stats", mock.Anything, missing).Return(nil, apperrors.ErrEventNotFound)

	w = s.do(http.MethodGet, "/api/v1/events/"+id.String()+"/stats", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalSeatsBooked":10`)
	assert.Contains(t, w.Body.String(), `"averageBookingValue":66.67`)

	w = s.do(http.MethodGet, "/api/v1/events/"+missing.String()+"/stats", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	healthy := NewRouter(NewHealthHandler(map[string]HealthCheck{
		"database": func(ctx context.Context) error { return nil },
	}))
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	healthy.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"up"`)

	degraded := NewRouter(NewHealthHandler(map[string]HealthCheck{
		"database": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	}))
	w = httptest.NewRecorder()
	degraded.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"down"`)
}
