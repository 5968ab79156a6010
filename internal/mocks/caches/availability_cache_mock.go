package caches

import (
	"context"

	"event-booking-api/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type AvailabilityCacheMock struct {
	mock.Mock
}

func NewAvailabilityCacheMock() *AvailabilityCacheMock {
	return &AvailabilityCacheMock{}
}

func (m *AvailabilityCacheMock) Set(ctx context.Context, a model.Availability) (bool, error) {
	args := m.Called(ctx, a)
	return args.Bool(0), args.Error(1)
}

func (m *AvailabilityCacheMock) Get(ctx context.Context, eventID uuid.UUID) (model.Availability, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(model.Availability), args.Error(1)
}

func (m *AvailabilityCacheMock) Invalidate(ctx context.Context, eventID uuid.UUID) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}
