package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"event-booking-api/internal/middleware"
	"event-booking-api/internal/mocks/repositories"
	"event-booking-api/internal/mocks/services"
	"event-booking-api/internal/model"
	apperrors "event-booking-api/pkg/app_errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

var InvalidJSON = `{"invalid": json}`

type testServer struct {
	router   *gin.Engine
	bookings *services.BookingServiceMock
	events   *services.EventServiceMock
	users    *repositories.UserRepositoryMock
}

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)

	s := &testServer{
		bookings: services.NewBookingServiceMock(),
		events:   services.NewEventServiceMock(),
		users:    repositories.NewUserRepositoryMock(),
	}
	auth := middleware.NewAuthenticator(testSecret, s.users)
	s.router = NewRouter(
		NewEventHandler(s.events, s.bookings, auth.RequireAuth()),
		NewBookingHandler(s.bookings, auth.RequireAuth(), nil),
	)
	return s
}

// loginAs 註冊使用者並回傳其 token
func (s *testServer) loginAs(t *testing.T, role model.Role) (*model.User, string) {
	t.Helper()
	user := &model.User{ID: uuid.New(), Email: string(role) + "@test.com", Role: role, IsActive: true}
	s.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	token, err := middleware.SignToken(testSecret, user, time.Hour)
	require.NoError(t, err)
	return user, token
}

func (s *testServer) do(method, url, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reader = bytes.NewBuffer(nil)
	case string:
		reader = bytes.NewBufferString(b)
	default:
		reader = createJSONRequest(b)
	}

	req, _ := http.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// create JSON request body
func createJSONRequest(data interface{}) *bytes.Buffer {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return bytes.NewBuffer([]byte(""))
	}
	return bytes.NewBuffer(jsonData)
}

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Errors  []apperrors.FieldError `json:"errors"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}
