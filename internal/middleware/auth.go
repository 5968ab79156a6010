package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"event-booking-api/internal/model"
	apperrors "event-booking-api/pkg/app_errors"
	"event-booking-api/pkg/logger"
	"event-booking-api/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ContextKeyPrincipal = "principal"
	bearerPrefix        = "Bearer "
)

// Claims 由外部認證服務簽發
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// UserLookup 用於確認使用者仍存在且啟用
type UserLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type Authenticator struct {
	secret []byte
	users  UserLookup
}

func NewAuthenticator(secret string, users UserLookup) *Authenticator {
	return &Authenticator{secret: []byte(secret), users: users}
}

// ParseToken 驗證簽章與到期時間
func (a *Authenticator) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, apperrors.ErrUnauthorized
	}
	return claims, nil
}

// RequireAuth 驗證 Bearer token，並將 Principal 放入 context
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.WithComponent("auth")

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) || len(header) <= len(bearerPrefix) {
			response.Unauthorized(c, "Access denied. No token provided.")
			return
		}

		claims, err := a.ParseToken(strings.TrimSpace(header[len(bearerPrefix):]))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				response.Unauthorized(c, "Token expired")
				return
			}
			log.Debug("invalid token", zap.Error(err))
			response.Unauthorized(c, "Invalid token")
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			response.Unauthorized(c, "Invalid token")
			return
		}

		user, err := a.users.FindByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, apperrors.ErrUserNotFound) {
				response.Unauthorized(c, "Invalid token. User not found.")
				return
			}
			log.Error("user lookup failed", zap.String("user_id", userID.String()), zap.Error(err))
			response.Fail(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		if !user.IsActive {
			response.Unauthorized(c, "Account is deactivated")
			return
		}

		// 以資料庫中的角色為準
		c.Set(ContextKeyPrincipal, model.Principal{
			UserID: user.ID,
			Email:  user.Email,
			Role:   user.Role,
		})
		c.Next()
	}
}

// RequireAdmin 必須在 RequireAuth 之後
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			response.Unauthorized(c, "Access denied. No token provided.")
			return
		}
		if !principal.IsAdmin() {
			response.Forbidden(c, "Access denied. Admin privileges required.")
			return
		}
		c.Next()
	}
}

func GetPrincipal(c *gin.Context) (model.Principal, bool) {
	v, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return model.Principal{}, false
	}
	p, ok := v.(model.Principal)
	return p, ok
}

// SignToken 簽發 HS256 token；正式環境由認證服務簽發，這裡供本地開發與測試使用
func SignToken(secret string, user *model.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID.String(),
		Email:  user.Email,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
