package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/model"
)

// MockLifecycleService is a mock for the LifecycleService interface
type MockLifecycleService struct {
	mock.Mock
}

// RecordVisit mocks the RecordVisit method
func (m *MockLifecycleService) RecordVisit(ctx context.Context, visit model.Visit) (*model.StageChangeEvent, error) {
	args := m.Called(ctx, visit)
	var event *model.StageChangeEvent
	if args.Get(0) != nil {
		event = args.Get(0).(*model.StageChangeEvent)
	}
	return event, args.Error(1)
}

// RecordActivity mocks the RecordActivity method
func (m *MockLifecycleService) RecordActivity(ctx context.Context, leadID string, occurredAt time.Time) (*model.StageChangeEvent, error) {
	args := m.Called(ctx, leadID, occurredAt)
	var event *model.StageChangeEvent
	if args.Get(0) != nil {
		event = args.Get(0).(*model.StageChangeEvent)
	}
	return event, args.Error(1)
}

// Reactivate mocks the Reactivate method
func (m *MockLifecycleService) Reactivate(ctx context.Context, leadID string, occurredAt time.Time) (*model.StageChangeEvent, error) {
	args := m.Called(ctx, leadID, occurredAt)
	var event *model.StageChangeEvent
	if args.Get(0) != nil {
		event = args.Get(0).(*model.StageChangeEvent)
	}
	return event, args.Error(1)
}

// RunSweep mocks the RunSweep method
func (m *MockLifecycleService) RunSweep(ctx context.Context, now time.Time) (*model.SweepSummary, error) {
	args := m.Called(ctx, now)
	var summary *model.SweepSummary
	if args.Get(0) != nil {
		summary = args.Get(0).(*model.SweepSummary)
	}
	return summary, args.Error(1)
}
