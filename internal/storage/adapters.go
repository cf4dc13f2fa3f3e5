package storage

import (
	"context"
	"time"

	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/model"
)

// LeadRepoAdapter adapts the PostgresRepo to the LeadRepo interface
type LeadRepoAdapter struct {
	postgres *PostgresRepo
}

// NewLeadRepoAdapter creates a new lead repository adapter
func NewLeadRepoAdapter(postgres *PostgresRepo) LeadRepo {
	return &LeadRepoAdapter{postgres: postgres}
}

// Save saves a lead
func (a *LeadRepoAdapter) Save(ctx context.Context, lead model.Lead) error {
	return a.postgres.SaveLead(ctx, lead)
}

// FindByID finds a lead by ID
func (a *LeadRepoAdapter) FindByID(ctx context.Context, id string) (*model.Lead, error) {
	return a.postgres.FindLeadByID(ctx, id)
}

// FindDueForEvaluation finds leads eligible for the decay sweep
func (a *LeadRepoAdapter) FindDueForEvaluation(ctx context.Context, afterChangedAt time.Time, afterID string, limit int) ([]model.Lead, error) {
	return a.postgres.FindLeadsDueForEvaluation(ctx, afterChangedAt, afterID, limit)
}

// UpdateStage writes a stage transition guarded by the row version
func (a *LeadRepoAdapter) UpdateStage(ctx context.Context, id string, expectedVersion int64, newStage model.Stage, changedAt time.Time) error {
	return a.postgres.UpdateLeadStage(ctx, id, expectedVersion, newStage, changedAt)
}

// TouchActivity records an engagement instant on the lead
func (a *LeadRepoAdapter) TouchActivity(ctx context.Context, id string, activityAt time.Time) error {
	return a.postgres.TouchLeadActivity(ctx, id, activityAt)
}

func (a *LeadRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// VisitRepoAdapter adapts the PostgresRepo to the VisitRepo interface
type VisitRepoAdapter struct {
	postgres *PostgresRepo
}

// NewVisitRepoAdapter creates a new visit repository adapter
func NewVisitRepoAdapter(postgres *PostgresRepo) VisitRepo {
	return &VisitRepoAdapter{postgres: postgres}
}

// Save saves a visit
func (a *VisitRepoAdapter) Save(ctx context.Context, visit model.Visit) error {
	return a.postgres.SaveVisit(ctx, visit)
}

// HasAnyVisit reports whether the lead has any recorded visit
func (a *VisitRepoAdapter) HasAnyVisit(ctx context.Context, leadID string) (bool, error) {
	return a.postgres.HasAnyVisit(ctx, leadID)
}

// FindLatestVisit returns the most recent visit for the lead
func (a *VisitRepoAdapter) FindLatestVisit(ctx context.Context, leadID string) (*model.Visit, error) {
	return a.postgres.FindLatestVisit(ctx, leadID)
}

func (a *VisitRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// OutboxRepoAdapter adapts the PostgresRepo to the OutboxRepo interface
type OutboxRepoAdapter struct {
	postgres *PostgresRepo
}

// NewOutboxRepoAdapter creates a new outbox repository adapter
func NewOutboxRepoAdapter(postgres *PostgresRepo) OutboxRepo {
	return &OutboxRepoAdapter{postgres: postgres}
}

// Save parks a stage change event
func (a *OutboxRepoAdapter) Save(ctx context.Context, row model.StageEventOutbox) error {
	return a.postgres.SaveOutboxEvent(ctx, row)
}

// FindPending returns the oldest pending rows
func (a *OutboxRepoAdapter) FindPending(ctx context.Context, limit int) ([]model.StageEventOutbox, error) {
	return a.postgres.FindPendingOutboxEvents(ctx, limit)
}

// Delete removes a republished row
func (a *OutboxRepoAdapter) Delete(ctx context.Context, id int64) error {
	return a.postgres.DeleteOutboxEvent(ctx, id)
}

// MarkAttempt bumps the attempt counter for a row
func (a *OutboxRepoAdapter) MarkAttempt(ctx context.Context, id int64, attemptErr string) error {
	return a.postgres.MarkOutboxAttempt(ctx, id, attemptErr)
}

// CountPending returns the number of rows waiting to be republished
func (a *OutboxRepoAdapter) CountPending(ctx context.Context) (int64, error) {
	return a.postgres.CountPendingOutboxEvents(ctx)
}

func (a *OutboxRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}
