package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"event-booking-api/internal/mocks/repositories"
	"event-booking-api/internal/model"
	apperrors "event-booking-api/pkg/app_errors"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret"

func newAuthRouter(users *repositories.UserRepositoryMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := NewAuthenticator(testSecret, users)

	r := gin.New()
	r.GET("/me", auth.RequireAuth(), func(c *gin.Context) {
		p, _ := GetPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"userId": p.UserID.String(), "role": p.Role})
	})
	r.GET("/admin", auth.RequireAuth(), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func get(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	active := &model.User{ID: uuid.New(), Email: "active@test.com", Role: model.RoleUser, IsActive: true}
	inactive := &model.User{ID: uuid.New(), Email: "inactive@test.com", Role: model.RoleUser}
	missing := &model.User{ID: uuid.New(), Email: "gone@test.com", Role: model.RoleUser}
	broken := &model.User{ID: uuid.New(), Email: "broken@test.com", Role: model.RoleUser}

	users := repositories.NewUserRepositoryMock()
	users.On("FindByID", mock.Anything, active.ID).Return(active, nil)
	users.On("FindByID", mock.Anything, inactive.ID).Return(inactive, nil)
	users.On("FindByID", mock.Anything, missing.ID).Return(nil, apperrors.ErrUserNotFound)
	users.On("FindByID", mock.Anything, broken.ID).Return(nil, errors.New("connection refused"))
	r := newAuthRouter(users)

	sign := func(user *model.User, ttl time.Duration) string {
		token, err := SignToken(testSecret, user, ttl)
		require.NoError(t, err)
		return token
	}
	otherSecret, err := SignToken("another-secret", active, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantBody   string
	}{
		{name: "no token", token: "", wantStatus: http.StatusUnauthorized, wantBody: "No token provided"},
		{name: "garbage", token: "abc.def.ghi", wantStatus: http.StatusUnauthorized, wantBody: "Invalid token"},
		{name: "wrong secret", token: otherSecret, wantStatus: http.StatusUnauthorized, wantBody: "Invalid token"},
		{name: "expired", token: sign(active, -time.Minute), wantStatus: http.StatusUnauthorized, wantBody: "Token expired"},
		{name: "user not found", token: sign(missing, time.Hour), wantStatus: http.StatusUnauthorized, wantBody: "User not found"},
		{name: "deactivated", token: sign(inactive, time.Hour), wantStatus: http.StatusUnauthorized, wantBody: "deactivated"},
		{name: "lookup failure", token: sign(broken, time.Hour), wantStatus: http.StatusInternalServerError, wantBody: "Internal server error"},
		{name: "valid", token: sign(active, time.Hour), wantStatus: http.StatusOK, wantBody: active.ID.String()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, "/me", tt.token)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

// 角色以資料庫為準，token 內的 role 不可信
func TestRequireAuth_RoleFromDatabase(t *testing.T) {
	demoted := &model.User{ID: uuid.New(), Email: "demoted@test.com", Role: model.RoleUser, IsActive: true}
	users := repositories.NewUserRepositoryMock()
	users.On("FindByID", mock.Anything, demoted.ID).Return(demoted, nil)
	r := newAuthRouter(users)

	token, err := SignToken(testSecret, &model.User{ID: demoted.ID, Email: demoted.Email, Role: model.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	w := get(r, "/admin", token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	admin := &model.User{ID: uuid.New(), Email: "admin@test.com", Role: model.RoleAdmin, IsActive: true}
	users := repositories.NewUserRepositoryMock()
	users.On("FindByID", mock.Anything, admin.ID).Return(admin, nil)
	r := newAuthRouter(users)

	token, err := SignToken(testSecret, admin, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, get(r, "/admin", token).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin", "").Code)
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	auth := NewAuthenticator(testSecret, nil)
	claims := Claims{
		UserID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = auth.ParseToken(token)
	assert.Error(t, err)
}
