package storage

import (
	"context"
	"time"

	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/model"
)

// LeadRepo defines lead storage operations
type LeadRepo interface {
	Save(ctx context.Context, lead model.Lead) error
	FindByID(ctx context.Context, id string) (*model.Lead, error)
	// FindDueForEvaluation returns leads whose stage is eligible for the
	// decay sweep, keyset-paged by (last_stage_changed_at, id) strictly
	// after the given cursor. Leads in a terminal inactive stage are
	// excluded. The zero time and empty ID select the first page.
	FindDueForEvaluation(ctx context.Context, afterChangedAt time.Time, afterID string, limit int) ([]model.Lead, error)
	// UpdateStage writes the new stage and stage-change instant guarded by
	// the expected row version. It fails with apperrors.ErrConflict when
	// the lead changed since it was read.
	UpdateStage(ctx context.Context, id string, expectedVersion int64, newStage model.Stage, changedAt time.Time) error
	// TouchActivity records an engagement instant without touching the stage.
	TouchActivity(ctx context.Context, id string, activityAt time.Time) error
	Close(ctx context.Context) error
}

// VisitRepo defines visit storage operations
type VisitRepo interface {
	Save(ctx context.Context, visit model.Visit) error
	HasAnyVisit(ctx context.Context, leadID string) (bool, error)
	FindLatestVisit(ctx context.Context, leadID string) (*model.Visit, error)
	Close(ctx context.Context) error
}

// OutboxRepo defines stage event outbox storage operations
type OutboxRepo interface {
	Save(ctx context.Context, row model.StageEventOutbox) error
	FindPending(ctx context.Context, limit int) ([]model.StageEventOutbox, error)
	Delete(ctx context.Context, id int64) error
	MarkAttempt(ctx context.Context, id int64, attemptErr string) error
	CountPending(ctx context.Context) (int64, error)
	Close(ctx context.Context) error
}
