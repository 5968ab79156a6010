package service

import (
	"context"
	"errors"

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
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type EventService interface {
	Create(ctx context.Context, createdBy uuid.UUID, req model.CreateEventRequest) (*model.EventDetail, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.EventDetail, error)
	// Availability 先讀快取，未命中或 Redis 失敗時回源資料庫並回填
	Availability(ctx context.Context, id uuid.UUID) (model.Availability, error)
	// Update 管理員編輯；修改總座位時保持已訂座位不變。
	// 狀態改為 cancelled 時，同一交易內取消所有已確認訂位並歸還座位
	Update(ctx context.Context, id uuid.UUID, params model.UpdateEventParams) (*model.EventDetail, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context, id uuid.UUID) (*model.EventStats, error)
}

type EventServiceImpl struct {
	txm          repository.TxManager
	repo         repository.EventRepository
	bookings     repository.BookingRepository
	availability cache.AvailabilityCache
	bookingQueue queue.BookingQueue
	clock        clock.Clock
}

func NewEventService(
	txm repository.TxManager,
	repo repository.EventRepository,
	bookings repository.BookingRepository,
	availability cache.AvailabilityCache,
	bookingQueue queue.BookingQueue,
	clk clock.Clock,
) EventService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &EventServiceImpl{
		txm:          txm,
		repo:         repo,
		bookings:     bookings,
		availability: availability,
		bookingQueue: bookingQueue,
		clock:        clk,
	}
}

func (s *EventServiceImpl) Create(ctx context.Context, createdBy uuid.UUID, req model.CreateEventRequest) (*model.EventDetail, error) {
	ctx, span := tracer.Start(ctx, "EventService.Create")
	defer span.End()

	var fields []apperrors.FieldError
	if !req.EventDate.After(s.clock.Now()) {
		fields = append(fields, apperrors.FieldError{Field: "eventDate", Message: "must be in the future"})
	}
	if req.TicketPrice == nil {
		fields = append(fields, apperrors.FieldError{Field: "ticketPrice", Message: "is required"})
	} else {
		fields = append(fields, validatePrice(*req.TicketPrice)...)
	}
	if !req.Category.IsValid() {
		fields = append(fields, apperrors.FieldError{Field: "category", Message: "must be one of conference, workshop, seminar, concert, sports, other"})
	}
	if req.TotalSeats < 1 || req.TotalSeats > 50000 {
		fields = append(fields, apperrors.FieldError{Field: "totalSeats", Message: "must be between 1 and 50000"})
	}
	if len(fields) > 0 {
		return nil, failSpan(span, apperrors.NewValidationError(fields...))
	}

	event, err := s.repo.Create(ctx, &model.Event{
		Title:          req.Title,
		Description:    req.Description,
		Venue:          req.Venue,
		EventDate:      req.EventDate.UTC(),
		TotalSeats:     req.TotalSeats,
		AvailableSeats: req.TotalSeats,
		TicketPrice:    *req.TicketPrice,
		Category:       req.Category,
		Status:         model.EventStatusActive,
		ImageURL:       req.ImageURL,
		CreatedBy:      createdBy,
	})
	if err != nil {
		return nil, failSpan(span, err)
	}

	span.SetAttributes(attribute.String("event_id", event.ID.String()))
	s.refresh(ctx, event)
	return s.detail(event), nil
}

func (s *EventServiceImpl) GetByID(ctx context.Context, id uuid.UUID) (*model.EventDetail, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(event), nil
}

func (s *EventServiceImpl) Availability(ctx context.Context, id uuid.UUID) (model.Availability, error) {
	if s.availability != nil {
		a, err := s.availability.Get(ctx, id)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.WithComponent("event_service").Warn("availability cache read failed",
				zap.String("event_id", id.String()), zap.Error(err))
		}
	}

	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return model.Availability{}, err
	}
	s.refresh(ctx, event)
	return event.Availability(), nil
}

func (s *EventServiceImpl) Update(ctx context.Context, id uuid.UUID, params model.UpdateEventParams) (*model.EventDetail, error) {
	ctx, span := tracer.Start(ctx, "EventService.Update", trace.WithAttributes(
		attribute.String("event_id", id.String()),
	))
	defer span.End()

	params.AvailableSeats = nil
	if params.IsEmpty() {
		return nil, failSpan(span, apperrors.NewValidationError(apperrors.FieldError{Field: "body", Message: "no fields to update"}))
	}
	if err := s.validateUpdate(params); err != nil {
		return nil, failSpan(span, err)
	}

	var (
		updated   *model.Event
		cancelled []*model.Booking
	)
	err := s.txm.WithTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.repo.FindByIDWithLock(ctx, tx, id)
		if err != nil {
			return err
		}

		if params.Status != nil && *params.Status == model.EventStatusCancelled && locked.Status != model.EventStatusCancelled {
			cancelled, err = s.bookings.CancelConfirmedForEvent(ctx, tx, id, s.clock.Now())
			if err != nil {
				return err
			}
			if locked, err = s.releaseSeats(ctx, tx, locked, cancelled); err != nil {
				return err
			}
		}

		if params.TotalSeats != nil {
			if err := ledger.ResizeCapacity(locked, *params.TotalSeats); err != nil {
				return err
			}
			available := locked.AvailableSeats
			params.AvailableSeats = &available
		}

		updated, err = s.repo.Update(ctx, tx, id, params)
		return err
	})
	if err != nil {
		return nil, failSpan(span, err)
	}

	span.SetAttributes(attribute.Int("cancelled_bookings", len(cancelled)))
	span.SetStatus(codes.Ok, "")
	s.refresh(ctx, updated)
	s.publishCancelled(ctx, cancelled)
	return s.detail(updated), nil
}

// releaseSeats 歸還被連帶取消的訂位座位，回傳更新後的活動
func (s *EventServiceImpl) releaseSeats(ctx context.Context, tx pgx.Tx, locked *model.Event, cancelled []*model.Booking) (*model.Event, error) {
	seats := 0
	for _, b := range cancelled {
		seats += b.NumberOfSeats
	}
	if seats == 0 {
		return locked, nil
	}
	if err := ledger.Release(locked, seats); err != nil {
		return nil, err
	}
	return s.repo.IncrementSeats(ctx, tx, locked.ID, seats)
}

func (s *EventServiceImpl) publishCancelled(ctx context.Context, cancelled []*model.Booking) {
	if s.bookingQueue == nil || len(cancelled) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	now := s.clock.Now()
	for _, b := range cancelled {
		msg := &model.BookingMessage{Type: model.BookingMessageCancelled, Booking: b, OccurredAt: now}
		if err := s.bookingQueue.Publish(ctx, msg); err != nil {
			logger.WithComponent("event_service").Warn("failed to publish booking message",
				zap.String("booking_id", b.ID.String()), zap.Error(err))
		}
	}
}

func (s *EventServiceImpl) validateUpdate(params model.UpdateEventParams) error {
	var fields []apperrors.FieldError
	if params.EventDate != nil && !params.EventDate.After(s.clock.Now()) {
		fields = append(fields, apperrors.FieldError{Field: "eventDate", Message: "must be in the future"})
	}
	if params.TicketPrice != nil {
		fields = append(fields, validatePrice(*params.TicketPrice)...)
	}
	if params.Category != nil && !params.Category.IsValid() {
		fields = append(fields, apperrors.FieldError{Field: "category", Message: "must be one of conference, workshop, seminar, concert, sports, other"})
	}
	if params.Status != nil && !params.Status.IsValid() {
		fields = append(fields, apperrors.FieldError{Field: "status", Message: "must be one of active, cancelled, completed"})
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError(fields...)
	}
	return nil
}

func validatePrice(price float64) []apperrors.FieldError {
	if price < 0 {
		return []apperrors.FieldError{{Field: "ticketPrice", Message: "must not be negative"}}
	}
	if ledger.RoundCents(price) != price {
		return []apperrors.FieldError{{Field: "ticketPrice", Message: "must have at most 2 decimal places"}}
	}
	return nil
}

// Delete 仍有訂位紀錄時回傳 ErrEventHasBookings
func (s *EventServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.txm.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.repo.FindByIDWithLock(ctx, tx, id); err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	if s.availability != nil {
		if err := s.availability.Invalidate(context.WithoutCancel(ctx), id); err != nil {
			logger.WithComponent("event_service").Warn("failed to invalidate availability cache",
				zap.String("event_id", id.String()), zap.Error(err))
		}
	}
	return nil
}

// Stats 單一活動統計；平均訂位金額以已確認訂位計算
func (s *EventServiceImpl) Stats(ctx context.Context, id uuid.UUID) (*model.EventStats, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.bookings.Stats(ctx, &id, s.clock.Now().Add(-statsRecentWindow))
	if err != nil {
		return nil, err
	}

	d := ledger.Detail(event)
	revenue := ledger.RoundCents(counts.TotalRevenue)
	average := 0.0
	if counts.ConfirmedBookings > 0 {
		average = ledger.RoundCents(revenue / float64(counts.ConfirmedBookings))
	}

	return &model.EventStats{
		EventInfo: model.EventStatsInfo{
			ID:             event.ID,
			Title:          event.Title,
			Status:         event.Status,
			TotalSeats:     event.TotalSeats,
			AvailableSeats: event.AvailableSeats,
		},
		BookingStats: model.EventBookingStats{
			TotalBookings:     counts.TotalBookings,
			ConfirmedBookings: counts.ConfirmedBookings,
			CancelledBookings: counts.CancelledBookings,
			TotalSeatsBooked:  d.BookedSeats,
			OccupancyRate:     d.OccupancyRate,
		},
		FinancialStats: model.EventFinancialStats{
			TotalRevenue:        revenue,
			AverageBookingValue: average,
		},
	}, nil
}

func (s *EventServiceImpl) refresh(ctx context.Context, event *model.Event) {
	if s.availability == nil || event == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if _, err := s.availability.Set(ctx, event.Availability()); err != nil {
		logger.WithComponent("event_service").Warn("failed to refresh availability cache",
			zap.String("event_id", event.ID.String()), zap.Error(err))
	}
}

func (s *EventServiceImpl) detail(event *model.Event) *model.EventDetail {
	d := ledger.Detail(event)
	d.IsBookable = ledger.IsBookable(event, s.clock.Now())
	return d
}
