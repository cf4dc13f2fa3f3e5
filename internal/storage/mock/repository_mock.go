package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/model"
)

// --- LeadRepo Mock ---

// LeadRepoMock mocks the LeadRepo interface
type LeadRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *LeadRepoMock) Save(ctx context.Context, lead model.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *LeadRepoMock) FindByID(ctx context.Context, id string) (*model.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

// FindDueForEvaluation mocks the FindDueForEvaluation method
func (m *LeadRepoMock) FindDueForEvaluation(ctx context.Context, afterChangedAt time.Time, afterID string, limit int) ([]model.Lead, error) {
	args := m.Called(ctx, afterChangedAt, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Lead), args.Error(1)
}

// UpdateStage mocks the UpdateStage method
func (m *LeadRepoMock) UpdateStage(ctx context.Context, id string, expectedVersion int64, newStage model.Stage, changedAt time.Time) error {
	args := m.Called(ctx, id, expectedVersion, newStage, changedAt)
	return args.Error(0)
}

// TouchActivity mocks the TouchActivity method
func (m *LeadRepoMock) TouchActivity(ctx context.Context, id string, activityAt time.Time) error {
	args := m.Called(ctx, id, activityAt)
	return args.Error(0)
}

// Close mocks the Close method
func (m *LeadRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- VisitRepo Mock ---

// VisitRepoMock mocks the VisitRepo interface
type VisitRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *VisitRepoMock) Save(ctx context.Context, visit model.Visit) error {
	args := m.Called(ctx, visit)
	return args.Error(0)
}

// HasAnyVisit mocks the HasAnyVisit method
func (m *VisitRepoMock) HasAnyVisit(ctx context.Context, leadID string) (bool, error) {
	args := m.Called(ctx, leadID)
	return args.Bool(0), args.Error(1)
}

// FindLatestVisit mocks the FindLatestVisit method
func (m *VisitRepoMock) FindLatestVisit(ctx context.Context, leadID string) (*model.Visit, error) {
	args := m.Called(ctx, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Visit), args.Error(1)
}

// Close mocks the Close method
func (m *VisitRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- OutboxRepo Mock ---

// OutboxRepoMock mocks the OutboxRepo interface
type OutboxRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *OutboxRepoMock) Save(ctx context.Context, row model.StageEventOutbox) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

// FindPending mocks the FindPending method
func (m *OutboxRepoMock) FindPending(ctx context.Context, limit int) ([]model.StageEventOutbox, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StageEventOutbox), args.Error(1)
}

// Delete mocks the Delete method
func (m *OutboxRepoMock) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MarkAttempt mocks the MarkAttempt method
func (m *OutboxRepoMock) MarkAttempt(ctx context.Context, id int64, attemptErr string) error {
	args := m.Called(ctx, id, attemptErr)
	return args.Error(0)
}

// CountPending mocks the CountPending method
func (m *OutboxRepoMock) CountPending(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Close mocks the Close method
func (m *OutboxRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
