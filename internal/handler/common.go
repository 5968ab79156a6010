package handler

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"event-booking-api/internal/middleware"
	"event-booking-api/internal/model"
	apperrors "event-booking-api/pkg/app_errors"
	"event-booking-api/pkg/logger"
	"event-booking-api/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const retryAfterSeconds = 1

// 欄位錯誤使用 json / form / uri 標籤名稱
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(tagName)
	}
}

func tagName(fld reflect.StructField) string {
	for _, key := range []string{"json", "form", "uri"} {
		name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

func BindJson(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		response.BadRequest(c, "Invalid request format", fieldErrors(err)...)
		return err
	}
	return nil
}

func BindQuery(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindQuery(obj); err != nil {
		response.BadRequest(c, "Invalid query parameters", fieldErrors(err)...)
		return err
	}
	return nil
}

func BindUri(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindUri(obj); err != nil {
		response.BadRequest(c, "Invalid path parameters", fieldErrors(err)...)
		return err
	}
	return nil
}

// fieldErrors 將 validator 錯誤轉成欄位錯誤
func fieldErrors(err error) []apperrors.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.FieldError{
			Field:   lowerFirst(fe.Field()),
			Message: describeTag(fe),
		})
	}
	return fields
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "is invalid"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

type idUri struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// bindID 解析路徑上的 :id
func bindID(c *gin.Context) (uuid.UUID, bool) {
	var uri idUri
	if err := BindUri(c, &uri); err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(uri.ID)
	if err != nil {
		response.BadRequest(c, "Invalid path parameters", apperrors.FieldError{Field: "id", Message: "must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func principal(c *gin.Context) (model.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Unauthorized(c, "Access denied. No token provided.")
	}
	return p, ok
}

// handleError 依錯誤分類回應；業務錯誤記 Warn，非預期錯誤記 Error
func handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))

	kind := apperrors.KindOf(err)
	status := response.StatusFor(kind)

	if kind == apperrors.KindInternal {
		log.Error("unexpected error")
		response.Fail(c, status, "Internal server error")
		return
	}

	log.Warn("request rejected", zap.String("kind", string(kind)))

	if apperrors.IsRetryable(err) {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	}

	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		response.BadRequest(c, "Validation failed", verr.Fields...)
		return
	}

	response.Fail(c, status, messageFor(err))
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrEventNotFound):
		return "Event not found"
	case errors.Is(err, apperrors.ErrBookingNotFound):
		return "Booking not found"
	case errors.Is(err, apperrors.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, apperrors.ErrForbidden):
		return "Access denied"
	case errors.Is(err, apperrors.ErrNotBookable):
		return "Event is not available for booking"
	case errors.Is(err, apperrors.ErrInsufficientSeats):
		return "Not enough seats available"
	case errors.Is(err, apperrors.ErrNotCancellable):
		return "Booking cannot be cancelled"
	case errors.Is(err, apperrors.ErrTooLateToCancel):
		return "Bookings can no longer be cancelled this close to the event"
	case errors.Is(err, apperrors.ErrDuplicateBooking):
		return "You already have a booking for this event"
	case errors.Is(err, apperrors.ErrLockTimeout), errors.Is(err, apperrors.ErrConflict):
		return "The event is busy, please retry"
	case errors.Is(err, apperrors.ErrEventHasBookings):
		return "Cannot delete an event that has bookings"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "Invalid input"
	}
	return err.Error()
}
