package services

import (
	"context"

	"event-booking-api/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type EventServiceMock struct {
	mock.Mock
}

func NewEventServiceMock() *EventServiceMock {
	return &EventServiceMock{}
}

func (m *EventServiceMock) Create(ctx context.Context, createdBy uuid.UUID, req model.CreateEventRequest) (*model.EventDetail, error) {
	args := m.Called(ctx, createdBy, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EventDetail), args.Error(1)
}

func (m *EventServiceMock) GetByID(ctx context.Context, id uuid.UUID) (*model.EventDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EventDetail), args.Error(1)
}

func (m *EventServiceMock) Availability(ctx context.Context, id uuid.UUID) (model.Availability, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Availability), args.Error(1)
}

func (m *EventServiceMock) Update(ctx context.Context, id uuid.UUID, params model.UpdateEventParams) (*model.EventDetail, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EventDetail), args.Error(1)
}

func (m *EventServiceMock) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *EventServiceMock) Stats(ctx context.Context, id uuid.UUID) (*model.EventStats, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EventStats), args.Error(1)
}
