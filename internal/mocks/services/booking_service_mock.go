package services

import (
	"context"

	"event-booking-api/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type BookingServiceMock struct {
	mock.Mock
}

func NewBookingServiceMock() *BookingServiceMock {
	return &BookingServiceMock{}
}

func (m *BookingServiceMock) Create(ctx context.Context, input model.CreateBookingInput) (*model.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *BookingServiceMock) Cancel(ctx context.Context, bookingID uuid.UUID, principal model.Principal) (*model.Booking, error) {
	args := m.Called(ctx, bookingID, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *BookingServiceMock) ChangeStatus(ctx context.Context, bookingID uuid.UUID, input model.StatusChangeInput) (*model.Booking, error) {
	args := m.Called(ctx, bookingID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *BookingServiceMock) GetByID(ctx context.Context, bookingID uuid.UUID, principal model.Principal) (*model.Booking, error) {
	args := m.Called(ctx, bookingID, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *BookingServiceMock) GetByReference(ctx context.Context, reference string, principal model.Principal) (*model.Booking, error) {
	args := m.Called(ctx, reference, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *BookingServiceMock) ListForUser(ctx context.Context, userID uuid.UUID, filter model.BookingFilter) (*model.BookingPage, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BookingPage), args.Error(1)
}

func (m *BookingServiceMock) ListForEvent(ctx context.Context, eventID uuid.UUID, page, limit int, status *model.BookingStatus) (*model.BookingPage, error) {
	args := m.Called(ctx, eventID, page, limit, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BookingPage), args.Error(1)
}

func (m *BookingServiceMock) Stats(ctx context.Context, eventID *uuid.UUID) (*model.BookingStats, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BookingStats), args.Error(1)
}
