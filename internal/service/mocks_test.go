package service

import (
	"context"

	"placement-tests/internal/domain"

	"github.com/stretchr/testify/mock"
)

// --- MockTestCache ---
type MockTestCache struct {
	mock.Mock
}

func (m *MockTestCache) Initialize(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTestCache) Hydrated() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockTestCache) Reload(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTestCache) GetAllTests() []domain.Test {
	args := m.Called()
	return args.Get(0).([]domain.Test)
}

func (m *MockTestCache) GetActiveTests() []domain.Test {
	args := m.Called()
	return args.Get(0).([]domain.Test)
}

func (m *MockTestCache) GetTestByID(id string) (domain.Test, bool) {
	args := m.Called(id)
	return args.Get(0).(domain.Test), args.Bool(1)
}

func (m *MockTestCache) AddTest(ctx context.Context, test domain.Test) (domain.Test, error) {
	args := m.Called(ctx, test)
	return args.Get(0).(domain.Test), args.Error(1)
}

func (m *MockTestCache) UpdateTest(ctx context.Context, id string, patch domain.TestPatch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

func (m *MockTestCache) DeleteTest(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTestCache) Clear() {
	m.Called()
}

// --- MockChangeBus ---
type MockChangeBus struct {
	mock.Mock
}

func (m *MockChangeBus) Publish(ctx context.Context, event domain.ChangeEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockChangeBus) Subscribe(ctx context.Context) (<-chan domain.ChangeEvent, func() error, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(<-chan domain.ChangeEvent), args.Get(1).(func() error), args.Error(2)
}

// --- MockEventPublisher ---
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishTestEvent(ctx context.Context, event domain.ChangeEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
