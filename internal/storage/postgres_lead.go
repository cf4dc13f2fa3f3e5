package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
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

// --- Lead Repository Methods ---

// SaveLead saves or updates a lead record.
func (r *PostgresRepo) SaveLead(ctx context.Context, lead model.Lead) error {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if companyID != lead.CompanyID {
		return fmt.Errorf("%w: lead CompanyID %s does not match tenant ID %s", apperrors.ErrBadRequest, lead.CompanyID, companyID)
	}

	operation := func() error {
		tx := r.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return fmt.Errorf("%w: failed to begin transaction: %w", apperrors.ErrDatabase, tx.Error)
		}
		var txErr error
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			} else if txErr != nil {
				if rbErr := tx.Rollback().Error; rbErr != nil {
					logger.FromContext(ctx).Error("Failed to rollback transaction after error", zap.Error(rbErr), zap.NamedError("originalTxError", txErr))
				}
			}
		}()

		var existingLead model.Lead
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", lead.ID).
			First(&existingLead)
		findErr := result.Error

		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				// Lead doesn't exist, create it
				if createErr := tx.Create(&lead).Error; createErr != nil {
					txErr = checkConstraintViolation(createErr)
					return txErr
				}
			} else {
				txErr = fmt.Errorf("%w: failed to lock lead row: %w", apperrors.ErrDatabase, findErr)
				return txErr
			}
		} else {
			// Lead exists, update it
			if updateErr := tx.Model(&existingLead).Updates(lead).Error; updateErr != nil {
				txErr = checkConstraintViolation(updateErr)
				return txErr
			}
		}
		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit save transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveLead Commit", operation)
	observer.ObserveDbOperationDuration("save", "lead", companyID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save lead after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindLeadByID finds a lead by its ID.
func (r *PostgresRepo) FindLeadByID(ctx context.Context, id string) (*model.Lead, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var lead model.Lead
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ? AND company_id = ?", id, companyID).First(&lead)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: lead_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindLeadByID", operation)
	observer.ObserveDbOperationDuration("find_by_id", "lead", companyID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find lead by ID after retries",
			zap.String("lead_id", id),
			zap.String("company_id", companyID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &lead, nil
}

// FindLeadsDueForEvaluation returns leads whose stage can still decay,
// ordered by how long they have sat in their current stage. Paging uses a
// keyset cursor over (last_stage_changed_at, id) instead of OFFSET: the
// sweep itself rewrites last_stage_changed_at on the rows it transitions,
// which would shift offset pages under the caller mid-sweep. Pass the zero
// time and empty ID for the first page and the last returned row's values
// for each page after it.
func (r *PostgresRepo) FindLeadsDueForEvaluation(ctx context.Context, afterChangedAt time.Time, afterID string, limit int) ([]model.Lead, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	stages := model.SweepStages()
	stageValues := make([]string, 0, len(stages))
	for _, s := range stages {
		stageValues = append(stageValues, string(s))
	}

	var leads []model.Lead
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("company_id = ? AND stage IN ? AND (last_stage_changed_at, id) > (?, ?)", companyID, stageValues, afterChangedAt, afterID).
			Order("last_stage_changed_at ASC, id ASC").
			Limit(limit).
			Find(&leads)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil // Success, even if no records found
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindLeadsDueForEvaluation", operation)
	observer.ObserveDbOperationDuration("find_due_for_evaluation", "lead", companyID, time.Since(startTime), findErr)

	if findErr != nil {
		loggerCtx.Error("Failed to find leads due for evaluation after retries",
			zap.String("company_id", companyID),
			zap.Int("limit", limit),
			zap.Time("after_changed_at", afterChangedAt),
			zap.String("after_id", afterID),
			zap.Error(findErr))
		return nil, findErr
	}
	if leads == nil { // Ensure empty slice is returned, not nil
		return []model.Lead{}, nil
	}
	return leads, nil
}

// UpdateLeadStage writes the new stage guarded by the expected row version.
// RowsAffected of zero means another writer won the race; the caller must
// re-read and re-evaluate before trying again.
func (r *PostgresRepo) UpdateLeadStage(ctx context.Context, id string, expectedVersion int64, newStage model.Stage, changedAt time.Time) error {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Lead{}).
			Where("id = ? AND company_id = ? AND version = ?", id, companyID, expectedVersion).
			Updates(map[string]interface{}{
				"stage":                 string(newStage),
				"last_stage_changed_at": changedAt,
				"version":               gorm.Expr("version + ?", 1),
				"updated_at":            utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return backoff.Permanent(fmt.Errorf("%w: lead %s version %d is stale", apperrors.ErrConflict, id, expectedVersion))
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	updateErr := retryableOperation(ctx, commitPolicy, "UpdateLeadStage", operation)
	observer.ObserveDbOperationDuration("update_stage", "lead", companyID, time.Since(startTime), updateErr)

	if updateErr != nil {
		if errors.Is(updateErr, apperrors.ErrConflict) {
			// Expected under concurrent triggers, the caller handles retrying
			loggerCtx.Debug("Stage update lost optimistic lock race",
				zap.String("lead_id", id),
				zap.Int64("expected_version", expectedVersion),
				zap.String("new_stage", string(newStage)))
			return updateErr
		}
		loggerCtx.Error("Failed to update lead stage after retries",
			zap.String("lead_id", id),
			zap.String("new_stage", string(newStage)),
			zap.Error(updateErr))
		return updateErr
	}
	return nil
}

// TouchLeadActivity records an engagement instant on the lead. The stage
// and version are untouched so an activity write never races a stage write.
// Older activity instants than the one stored are ignored.
func (r *PostgresRepo) TouchLeadActivity(ctx context.Context, id string, activityAt time.Time) error {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Lead{}).
			Where("id = ? AND company_id = ? AND (last_activity_at IS NULL OR last_activity_at < ?)", id, companyID, activityAt).
			Updates(map[string]interface{}{
				"last_activity_at": activityAt,
				"updated_at":       utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			loggerCtx.Debug("Activity touch had no effect, instant not newer than stored",
				zap.String("lead_id", id),
				zap.Time("activity_at", activityAt))
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	touchErr := retryableOperation(ctx, commitPolicy, "TouchLeadActivity", operation)
	observer.ObserveDbOperationDuration("touch_activity", "lead", companyID, time.Since(startTime), touchErr)

	if touchErr != nil {
		loggerCtx.Error("Failed to touch lead activity after retries",
			zap.String("lead_id", id),
			zap.Error(touchErr))
		return touchErr
	}
	return nil
}
