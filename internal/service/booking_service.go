package service

import (
	"context"
	"time"

	"event-booking-api/internal/cache"
	"event-booking-api/internal/clock"
	"event-booking-api/internal/ledger"
	"event-booking-api/internal/model"
	"event-booking-api/internal/queue"
	"event-booking-api/internal/repository"
	apperrors "event-booking-api/pkg/app_errors"
	"event-booking-api/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultPageSize     = 10
	MaxUserPageSize     = 50
	MaxEventPageSize    = 100
	statsRecentWindow   = 7 * 24 * time.Hour
	sideEffectTimeout   = 2 * time.Second
	tracerInstrumenting = "event-booking-api/service"
)

var tracer = otel.Tracer(tracerInstrumenting)

type BookingService interface {
	// 建立訂位：鎖定活動列，檢查可訂、座位與重複訂位後扣座
	Create(ctx context.Context, input model.CreateBookingInput) (*model.Booking, error)
	// 取消訂位：僅擁有者或管理員，且須在取消期限前
	Cancel(ctx context.Context, bookingID uuid.UUID, principal model.Principal) (*model.Booking, error)
	// 管理員修改訂位狀態，座位隨狀態轉換移動
	ChangeStatus(ctx context.Context, bookingID uuid.UUID, input model.StatusChangeInput) (*model.Booking, error)

	GetByID(ctx context.Context, bookingID uuid.UUID, principal model.Principal) (*model.Booking, error)
	GetByReference(ctx context.Context, reference string, principal model.Principal) (*model.Booking, error)
	ListForUser(ctx context.Context, userID uuid.UUID, filter model.BookingFilter) (*model.BookingPage, error)
	// ListForEvent 管理員查看單一活動的訂位；status 為 nil 時不過濾
	ListForEvent(ctx context.Context, eventID uuid.UUID, page, limit int, status *model.BookingStatus) (*model.BookingPage, error)
	Stats(ctx context.Context, eventID *uuid.UUID) (*model.BookingStats, error)
}

type BookingServiceImpl struct {
	txm                repository.TxManager
	bookings           repository.BookingRepository
	events             repository.EventRepository
	availability       cache.AvailabilityCache
	bookingQueue       queue.BookingQueue
	clock              clock.Clock
	cancellationWindow time.Duration
}

// NewBookingService availability 與 bookingQueue 可為 nil，此時略過提交後的副作用
func NewBookingService(
	txm repository.TxManager,
	bookingRepository repository.BookingRepository,
	eventRepository repository.EventRepository,
	availability cache.AvailabilityCache,
	bookingQueue queue.BookingQueue,
	clk clock.Clock,
	cancellationWindow time.Duration,
) BookingService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if cancellationWindow <= 0 {
		cancellationWindow = ledger.DefaultCancellationWindow
	}
	return &BookingServiceImpl{
		txm:                txm,
		bookings:           bookingRepository,
		events:             eventRepository,
		availability:       availability,
		bookingQueue:       bookingQueue,
		clock:              clk,
		cancellationWindow: cancellationWindow,
	}
}

func (s *BookingServiceImpl) Create(ctx context.Context, input model.CreateBookingInput) (*model.Booking, error) {
	ctx, span := tracer.Start(ctx, "BookingService.Create", trace.WithAttributes(
		attribute.String("user_id", input.UserID.String()),
		attribute.String("event_id", input.EventID.String()),
		attribute.Int("seats", input.NumberOfSeats),
	))
	defer span.End()

	if input.NumberOfSeats < model.MinSeatsPerBooking || input.NumberOfSeats > model.MaxSeatsPerBooking {
		err := apperrors.NewValidationError(apperrors.FieldError{Field: "numberOfSeats", Message: "must be between 1 and 10"})
		return nil, failSpan(span, err)
	}

	var (
		booking *model.Booking
		event   *model.Event
	)
	err := s.txm.WithTx(ctx, func(tx pgx.Tx) error {
		// 1. 鎖定活動列
		locked, err := s.events.FindByIDWithLock(ctx, tx, input.EventID)
		if err != nil {
			return err
		}

		// 2. 可訂、座位、重複訂位檢查；已售完的活動回報座位不足
		now := s.clock.Now()
		if !ledger.IsOpen(locked, now) {
			return apperrors.ErrNotBookable
		}
		if !ledger.HasCapacity(locked, input.NumberOfSeats) {
			return apperrors.ErrInsufficientSeats
		}
		duplicate, err := s.bookings.HasConfirmedBooking(ctx, tx, input.UserID, input.EventID)
		if err != nil {
			return err
		}
		if duplicate {
			return apperrors.ErrDuplicateBooking
		}
		if err := ledger.Reserve(locked, input.NumberOfSeats); err != nil {
			return err
		}

		// 3. 寫入訂位
		reference, err := newBookingReference(now)
		if err != nil {
			return err
		}
		created, err := s.bookings.Create(ctx, tx, &model.Booking{
			Reference:       reference,
			UserID:          input.UserID,
			EventID:         input.EventID,
			NumberOfSeats:   input.NumberOfSeats,
			TotalAmount:     ledger.TotalAmount(locked.TicketPrice, input.NumberOfSeats),
			Status:          model.BookingStatusConfirmed,
			PaymentStatus:   model.PaymentStatusCompleted,
			SpecialRequests: input.SpecialRequests,
			BookedAt:        now,
		})
		if err != nil {
			return err
		}

		// 4. 扣除座位
		event, err = s.events.DecrementSeats(ctx, tx, input.EventID, input.NumberOfSeats)
		if err != nil {
			return err
		}

		booking, err = s.bookings.FindByIDTx(ctx, tx, created.ID)
		return err
	})
	if err != nil {
		return nil, failSpan(span, err)
	}

	span.SetAttributes(attribute.String("booking_id", booking.ID.String()))
	span.SetStatus(codes.Ok, "")
	s.afterCommit(ctx, model.BookingMessageCreated, booking, event)
	return booking, nil
}

func (s *BookingServiceImpl) Cancel(ctx context.Context, bookingID uuid.UUID, principal model.Principal) (*model.Booking, error) {
	ctx, span := tracer.Start(ctx, "BookingService.Cancel", trace.WithAttributes(
		attribute.String("booking_id", bookingID.String()),
		attribute.String("user_id", principal.UserID.String()),
	))
	defer span.End()

	var (
		booking *model.Booking
		event   *model.Event
	)
	err := s.txm.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := s.bookings.FindByIDTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !principal.CanAccess(current.UserID) {
			return apperrors.ErrForbidden
		}

		// 鎖定順序：活動列 → 訂位列
		locked, err := s.events.FindByIDWithLock(ctx, tx, current.EventID)
		if err != nil {
			return err
		}
		b, err := s.bookings.FindByIDWithLock(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		if !ledger.CanCancel(b) {
			return apperrors.ErrNotCancellable
		}
		now := s.clock.Now()
		if ledger.WithinCancellationWindow(locked.EventDate, now, s.cancellationWindow) {
			return apperrors.ErrTooLateToCancel
		}
		if err := ledger.Release(locked, b.NumberOfSeats); err != nil {
			return err
		}

		b.Status = model.BookingStatusCancelled
		b.PaymentStatus = model.PaymentStatusRefunded
		b.CancelledAt = &now
		if _, err := s.bookings.UpdateState(ctx, tx, b); err != nil {
			return err
		}

		event, err = s.events.IncrementSeats(ctx, tx, b.EventID, b.NumberOfSeats)
		if err != nil {
			return err
		}

		booking, err = s.bookings.FindByIDTx(ctx, tx, bookingID)
		return err
	})
	if err != nil {
		return nil, failSpan(span, err)
	}

	span.SetStatus(codes.Ok, "")
	s.afterCommit(ctx, model.BookingMessageCancelled, booking, event)
	return booking, nil
}

func (s *BookingServiceImpl) ChangeStatus(ctx context.Context, bookingID uuid.UUID, input model.StatusChangeInput) (*model.Booking, error) {
	ctx, span := tracer.Start(ctx, "BookingService.ChangeStatus", trace.WithAttributes(
		attribute.String("booking_id", bookingID.String()),
	))
	defer span.End()

	if err := validateStatusChange(input); err != nil {
		return nil, failSpan(span, err)
	}

	var (
		booking *model.Booking
		event   *model.Event
	)
	err := s.txm.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := s.bookings.FindByIDTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		locked, err := s.events.FindByIDWithLock(ctx, tx, current.EventID)
		if err != nil {
			return err
		}
		b, err := s.bookings.FindByIDWithLock(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		from := b.Status
		to := from
		if input.Status != nil {
			to = *input.Status
		}

		delta := ledger.SeatDelta(from, to, b.NumberOfSeats)
		switch {
		case delta > 0:
			if !ledger.HasCapacity(locked, delta) {
				return apperrors.ErrInsufficientSeats
			}
			duplicate, err := s.bookings.HasConfirmedBooking(ctx, tx, b.UserID, b.EventID)
			if err != nil {
				return err
			}
			if duplicate {
				return apperrors.ErrDuplicateBooking
			}
			if err := ledger.Reserve(locked, delta); err != nil {
				return err
			}
		case delta < 0:
			if err := ledger.Release(locked, -delta); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		b.Status = to
		if input.PaymentStatus != nil {
			b.PaymentStatus = *input.PaymentStatus
		}
		if input.AdminNotes != nil {
			b.AdminNotes = input.AdminNotes
		}
		if to == model.BookingStatusCancelled && from != model.BookingStatusCancelled {
			b.CancelledAt = &now
		}
		if to == model.BookingStatusConfirmed {
			b.CancelledAt = nil
		}

		if _, err := s.bookings.UpdateState(ctx, tx, b); err != nil {
			return err
		}

		switch {
		case delta > 0:
			event, err = s.events.DecrementSeats(ctx, tx, b.EventID, delta)
		case delta < 0:
			event, err = s.events.IncrementSeats(ctx, tx, b.EventID, -delta)
		}
		if err != nil {
			return err
		}

		booking, err = s.bookings.FindByIDTx(ctx, tx, bookingID)
		return err
	})
	if err != nil {
		return nil, failSpan(span, err)
	}

	span.SetStatus(codes.Ok, "")
	s.afterCommit(ctx, model.BookingMessageStatusChanged, booking, event)
	return booking, nil
}

func validateStatusChange(input model.StatusChangeInput) error {
	if input.Status == nil && input.PaymentStatus == nil && input.AdminNotes == nil {
		return apperrors.NewValidationError(apperrors.FieldError{Field: "status", Message: "at least one of status, paymentStatus or adminNotes is required"})
	}

	var fields []apperrors.FieldError
	if input.Status != nil && !input.Status.IsValid() {
		fields = append(fields, apperrors.FieldError{Field: "status", Message: "must be one of pending, confirmed, cancelled, refunded"})
	}
	if input.PaymentStatus != nil && !input.PaymentStatus.IsValid() {
		fields = append(fields, apperrors.FieldError{Field: "paymentStatus", Message: "must be one of pending, completed, failed, refunded"})
	}
	if input.AdminNotes != nil && len(*input.AdminNotes) > 1000 {
		fields = append(fields, apperrors.FieldError{Field: "adminNotes", Message: "must be at most 1000 characters"})
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError(fields...)
	}
	return nil
}

func (s *BookingServiceImpl) GetByID(ctx context.Context, bookingID uuid.UUID, principal model.Principal) (*model.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !principal.CanAccess(booking.UserID) {
		return nil, apperrors.ErrForbidden
	}
	return booking, nil
}

func (s *BookingServiceImpl) GetByReference(ctx context.Context, reference string, principal model.Principal) (*model.Booking, error) {
	booking, err := s.bookings.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !principal.CanAccess(booking.UserID) {
		return nil, apperrors.ErrForbidden
	}
	return booking, nil
}

func (s *BookingServiceImpl) ListForUser(ctx context.Context, userID uuid.UUID, filter model.BookingFilter) (*model.BookingPage, error) {
	filter.UserID = &userID
	filter.EventID = nil
	filter.OldestFirst = false
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit, MaxUserPageSize)
	return s.list(ctx, filter)
}

func (s *BookingServiceImpl) ListForEvent(ctx context.Context, eventID uuid.UUID, page, limit int, status *model.BookingStatus) (*model.BookingPage, error) {
	if status != nil && !status.IsValid() {
		return nil, apperrors.NewValidationError(apperrors.FieldError{Field: "status", Message: "must be one of pending, confirmed, cancelled, refunded"})
	}
	if _, err := s.events.FindByID(ctx, eventID); err != nil {
		return nil, err
	}
	page, limit = normalizePage(page, limit, MaxEventPageSize)
	return s.list(ctx, model.BookingFilter{
		EventID:     &eventID,
		Status:      status,
		Page:        page,
		Limit:       limit,
		OldestFirst: true,
	})
}

func (s *BookingServiceImpl) list(ctx context.Context, filter model.BookingFilter) (*model.BookingPage, error) {
	bookings, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &model.BookingPage{
		Bookings:   bookings,
		Pagination: model.NewPagination(total, filter.Page, filter.Limit),
	}, nil
}

func (s *BookingServiceImpl) Stats(ctx context.Context, eventID *uuid.UUID) (*model.BookingStats, error) {
	stats, err := s.bookings.Stats(ctx, eventID, s.clock.Now().Add(-statsRecentWindow))
	if err != nil {
		return nil, err
	}
	stats.TotalRevenue = ledger.RoundCents(stats.TotalRevenue)
	if stats.TotalBookings > 0 {
		stats.CancellationRate = ledger.RoundCents(float64(stats.CancelledBookings) / float64(stats.TotalBookings) * 100)
	}
	return stats, nil
}

func normalizePage(page, limit, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > model.MaxPage {
		page = model.MaxPage
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// afterCommit 刷新座位快取並發佈訂位事件；失敗只記錄，不影響已提交的交易
func (s *BookingServiceImpl) afterCommit(ctx context.Context, kind model.BookingMessageType, booking *model.Booking, event *model.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	log := logger.WithComponent("booking_service").With(
		zap.String("booking_id", booking.ID.String()),
		zap.String("type", string(kind)),
	)

	if s.availability != nil && event != nil {
		if _, err := s.availability.Set(ctx, event.Availability()); err != nil {
			log.Warn("failed to refresh availability cache", zap.Error(err))
		}
	}

	if s.bookingQueue != nil {
		msg := &model.BookingMessage{Type: kind, Booking: booking, OccurredAt: s.clock.Now()}
		if err := s.bookingQueue.Publish(ctx, msg); err != nil {
			log.Warn("failed to publish booking message", zap.Error(err))
		}
	}
}

func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
