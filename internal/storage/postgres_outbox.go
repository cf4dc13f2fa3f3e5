package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/apperrors"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/model"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/observer"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/tenant"
	"gitlab.com/havenrow/api/lead-lifecycle-service/pkg/logger"
	"gitlab.com/havenrow/api/lead-lifecycle-service/pkg/utils"
)

// --- Stage Event Outbox Repository Methods ---

// SaveOutboxEvent parks a stage change event whose publish failed.
// Re-parking the same event ID is a no-op.
func (r *PostgresRepo) SaveOutboxEvent(ctx context.Context, row model.StageEventOutbox) error {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).Create(&row)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveOutboxEvent", operation)
	observer.ObserveDbOperationDuration("save", "stage_event_outbox", companyID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to park stage event in outbox after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindPendingOutboxEvents returns the oldest pending rows up to limit.
func (r *PostgresRepo) FindPendingOutboxEvents(ctx context.Context, limit int) ([]model.StageEventOutbox, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var rows []model.StageEventOutbox
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("company_id = ?", companyID).
			Order("created_at ASC").
			Limit(limit).
			Find(&rows)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindPendingOutboxEvents", operation)
	observer.ObserveDbOperationDuration("find_pending", "stage_event_outbox", companyID, time.Since(startTime), findErr)

	if findErr != nil {
		loggerCtx.Error("Failed to find pending outbox events after retries",
			zap.String("company_id", companyID),
			zap.Int("limit", limit),
			zap.Error(findErr))
		return nil, findErr
	}
	if rows == nil {
		return []model.StageEventOutbox{}, nil
	}
	return rows, nil
}

// DeleteOutboxEvent removes a successfully republished row.
func (r *PostgresRepo) DeleteOutboxEvent(ctx context.Context, id int64) error {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("id = ? AND company_id = ?", id, companyID).
			Delete(&model.StageEventOutbox{})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	deleteErr := retryableOperation(ctx, commitPolicy, "DeleteOutboxEvent", operation)
	observer.ObserveDbOperationDuration("delete", "stage_event_outbox", companyID, time.Since(startTime), deleteErr)
	if deleteErr != nil {
		logger.FromContext(ctx).Error("Failed to delete outbox event after retries",
			zap.Int64("outbox_id", id),
			zap.Error(deleteErr))
		return deleteErr
	}
	return nil
}

// MarkOutboxAttempt bumps the attempt counter and records the last error.
func (r *PostgresRepo) MarkOutboxAttempt(ctx context.Context, id int64, attemptErr string) error {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	now := utils.Now()
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.StageEventOutbox{}).
			Where("id = ? AND company_id = ?", id, companyID).
			Updates(map[string]interface{}{
				"attempts":        gorm.Expr("attempts + ?", 1),
				"last_error":      attemptErr,
				"last_attempt_at": now,
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	markErr := retryableOperation(ctx, commitPolicy, "MarkOutboxAttempt", operation)
	observer.ObserveDbOperationDuration("mark_attempt", "stage_event_outbox", companyID, time.Since(startTime), markErr)
	if markErr != nil {
		logger.FromContext(ctx).Error("Failed to mark outbox attempt after retries",
			zap.Int64("outbox_id", id),
			zap.Error(markErr))
		return markErr
	}
	return nil
}

// CountPendingOutboxEvents returns the number of rows waiting to be republished.
func (r *PostgresRepo) CountPendingOutboxEvents(ctx context.Context) (int64, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var count int64
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.StageEventOutbox{}).
			Where("company_id = ?", companyID).
			Count(&count)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	countErr := retryableOperation(ctx, readPolicy, "CountPendingOutboxEvents", operation)
	observer.ObserveDbOperationDuration("count_pending", "stage_event_outbox", companyID, time.Since(startTime), countErr)
	if countErr != nil {
		logger.FromContext(ctx).Error("Failed to count pending outbox events after retries", zap.Error(countErr))
		return 0, countErr
	}
	return count, nil
}
