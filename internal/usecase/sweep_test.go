package usecase

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/apperrors"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/config"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/model"
	"gitlab.com/havenrow/api/lead-lifecycle-service/pkg/logger"
)

func sweepPoolConfig() config.SweepWorkerPoolConfig {
	return config.SweepWorkerPoolConfig{
		PoolSize:   4,
		QueueSize:  1000,
		MaxBlock:   time.Second,
		ExpiryTime: time.Minute,
	}
}

func TestRunSweep_AllLeadsTransition(t *testing.T) {
	f := newEngineFixture(t)
	ctx := testContext(t)
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	leads := make([]model.Lead, 10)
	for i := range leads {
		leads[i] = *staleLead(now, model.StageNewLead, 7)
		leads[i].ID = fmt.Sprintf("lead-%d", i)
	}

	f.leadRepo.On("FindDueForEvaluation", mock.Anything, time.Time{}, "", 500).Return(leads, nil).Once()
	for i := range leads {
		lead := leads[i]
		f.leadRepo.On("FindByID", mock.Anything, lead.ID).Return(&lead, nil)
		f.leadRepo.On("UpdateStage", mock.Anything, lead.ID, int64(1), model.StageAtRiskLead, now).Return(nil)
	}
	f.visitRepo.On("HasAnyVisit", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)
	f.client.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	summary, err := f.engine.RunSweep(ctx, now)

	require.NoError(t, err)
	assert.Equal(t, 10, summary.Evaluated)
	assert.Equal(t, 10, summary.Transitioned)
	assert.Empty(t, summary.Failed)
}

func TestRunSweep_OneFailureDoesNotAbortTheRest(t *testing.T) {
	f := newEngineFixture(t)
	ctx := testContext(t)
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	leads := make([]model.Lead, 100)
	for i := range leads {
		leads[i] = *staleLead(now, model.StageNewLead, 7)
		leads[i].ID = fmt.Sprintf("lead-%03d", i)
	}

	f.leadRepo.On("FindDueForEvaluation", mock.Anything, time.Time{}, "", 500).Return(leads, nil).Once()
	f.visitRepo.On("HasAnyVisit", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)
	f.client.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	conflictErr := fmt.Errorf("%w: lead lead-042 version 1 is stale", apperrors.ErrConflict)
	for i := range leads {
		lead := leads[i]
		f.leadRepo.On("FindByID", mock.Anything, lead.ID).Return(&lead, nil)
		if lead.ID == "lead-042" {
			// Lead 42 loses the optimistic lock race on every attempt.
			f.leadRepo.On("UpdateStage", mock.Anything, lead.ID, int64(1), model.StageAtRiskLead, now).Return(conflictErr)
		} else {
			f.leadRepo.On("UpdateStage", mock.Anything, lead.ID, int64(1), model.StageAtRiskLead, now).Return(nil)
		}
	}

	summary, err := f.engine.RunSweep(ctx, now)

	require.NoError(t, err)
	assert.Equal(t, 100, summary.Evaluated)
	assert.Equal(t, 99, summary.Transitioned)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "lead-042", summary.Failed[0].LeadID)
	assert.Contains(t, summary.Failed[0].Error, "stale")
}

func TestRunSweep_FetchErrorIsFatal(t *testing.T) {
	f := newEngineFixture(t)
	ctx := testContext(t)
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	dbErr := errors.New("database connection refused")
	f.leadRepo.On("FindDueForEvaluation", mock.Anything, time.Time{}, "", 500).Return(nil, dbErr)

	summary, err := f.engine.RunSweep(ctx, now)

	assert.Nil(t, summary)
	assert.ErrorIs(t, err, dbErr)
}

func TestRunSweep_PaginatesBatches(t *testing.T) {
	f := newEngineFixture(t)
	ctx := testContext(t)
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	// First page is full, second page is short, so exactly two fetches.
	first := make([]model.Lead, 500)
	for i := range first {
		first[i] = *staleLead(now, model.StageQualified, 2) // no transition due
		first[i].ID = fmt.Sprintf("lead-a-%03d", i)
	}
	second := make([]model.Lead, 3)
	for i := range second {
		second[i] = *staleLead(now, model.StageQualified, 2)
		second[i].ID = fmt.Sprintf("lead-b-%d", i)
	}

	f.leadRepo.On("FindDueForEvaluation", mock.Anything, time.Time{}, "", 500).Return(first, nil).Once()
	f.leadRepo.On("FindDueForEvaluation", mock.Anything, first[499].LastStageChangedAt, "lead-a-499", 500).Return(second, nil).Once()
	f.leadRepo.On("FindByID", mock.Anything, mock.AnythingOfType("string")).Return(staleLead(now, model.StageQualified, 2), nil)
	f.visitRepo.On("HasAnyVisit", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)

	summary, err := f.engine.RunSweep(ctx, now)

	require.NoError(t, err)
	assert.Equal(t, 503, summary.Evaluated)
	assert.Equal(t, 0, summary.Transitioned)
	f.leadRepo.AssertNumberOfCalls(t, "FindDueForEvaluation", 2)
}

func TestRunSweep_WithWorkerPool(t *testing.T) {
	f := newEngineFixture(t)
	ctx := testContext(t)
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	worker, err := NewSweepWorker(sweepPoolConfig(), f.engine, logger.Log)
	require.NoError(t, err)
	defer worker.Stop()
	f.engine.SetSweepWorker(worker)

	leads := make([]model.Lead, 20)
	for i := range leads {
		leads[i] = *staleLead(now, model.StageNewLead, 7)
		leads[i].ID = fmt.Sprintf("lead-%02d", i)
	}

	f.leadRepo.On("FindDueForEvaluation", mock.Anything, time.Time{}, "", 500).Return(leads, nil).Once()
	f.visitRepo.On("HasAnyVisit", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)
	f.client.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	for i := range leads {
		lead := leads[i]
		f.leadRepo.On("FindByID", mock.Anything, lead.ID).Return(&lead, nil)
		f.leadRepo.On("UpdateStage", mock.Anything, lead.ID, int64(1), model.StageAtRiskLead, now).Return(nil)
	}

	summary, err := f.engine.RunSweep(ctx, now)

	require.NoError(t, err)
	assert.Equal(t, 20, summary.Evaluated)
	assert.Equal(t, 20, summary.Transitioned)
	assert.Empty(t, summary.Failed)
}

func TestRunSweep_FullPageDoesNotSkipOrDoubleCountLeads(t *testing.T) {
	f := newEngineFixture(t)
	ctx := testContext(t)
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	// One more stale lead than a full page. Applying a transition rewrites
	// last_stage_changed_at and keeps the row inside the sweep's stage
	// filter, so the snapshot must finish before any stage write and the
	// second page must continue from the cursor instead of refetching rows
	// the sweep itself moved.
	first := make([]model.Lead, 500)
	for i := range first {
		first[i] = *staleLead(now, model.StageNewLead, 7)
		first[i].ID = fmt.Sprintf("lead-%03d", i)
	}
	second := []model.Lead{*staleLead(now, model.StageNewLead, 7)}
	second[0].ID = "lead-500"

	var transitioned bool
	f.leadRepo.On("FindDueForEvaluation", mock.Anything, time.Time{}, "", 500).Return(first, nil).Once()
	f.leadRepo.On("FindDueForEvaluation", mock.Anything, first[499].LastStageChangedAt, "lead-499", 500).
		Run(func(args mock.Arguments) {
			assert.False(t, transitioned, "paging overlapped the applied transitions")
		}).
		Return(second, nil).Once()

	f.visitRepo.On("HasAnyVisit", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)
	f.client.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	all := append(append([]model.Lead{}, first...), second...)
	for i := range all {
		lead := all[i]
		f.leadRepo.On("FindByID", mock.Anything, lead.ID).Return(&lead, nil).Once()
		f.leadRepo.On("UpdateStage", mock.Anything, lead.ID, int64(1), model.StageAtRiskLead, now).
			Run(func(args mock.Arguments) { transitioned = true }).
			Return(nil).Once()
	}

	summary, err := f.engine.RunSweep(ctx, now)

	require.NoError(t, err)
	assert.Equal(t, 501, summary.Evaluated)
	assert.Equal(t, 501, summary.Transitioned)
	assert.Empty(t, summary.Failed)
	f.leadRepo.AssertExpectations(t)
}

func TestRunSweep_RowMovedPastCursorEvaluatedOnce(t *testing.T) {
	f := newEngineFixture(t)
	ctx := testContext(t)
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	first := make([]model.Lead, 500)
	for i := range first {
		first[i] = *staleLead(now, model.StageQualified, 2) // no transition due
		first[i].ID = fmt.Sprintf("lead-%03d", i)
	}
	// A concurrent trigger moved lead-250 past the cursor between pages, so
	// the second page returns it again alongside the genuinely new row.
	moved := first[250]
	moved.LastStageChangedAt = now
	second := []model.Lead{moved, *staleLead(now, model.StageQualified, 2)}
	second[1].ID = "lead-500"

	f.leadRepo.On("FindDueForEvaluation", mock.Anything, time.Time{}, "", 500).Return(first, nil).Once()
	f.leadRepo.On("FindDueForEvaluation", mock.Anything, first[499].LastStageChangedAt, "lead-499", 500).Return(second, nil).Once()
	f.visitRepo.On("HasAnyVisit", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)

	for i := range first {
		lead := first[i]
		f.leadRepo.On("FindByID", mock.Anything, lead.ID).Return(&lead, nil).Once()
	}
	f.leadRepo.On("FindByID", mock.Anything, "lead-500").Return(&second[1], nil).Once()

	summary, err := f.engine.RunSweep(ctx, now)

	require.NoError(t, err)
	assert.Equal(t, 501, summary.Evaluated)
	assert.Equal(t, 0, summary.Transitioned)
	f.leadRepo.AssertExpectations(t)
}
