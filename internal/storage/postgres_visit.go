package storage

import (
	"context"
	"errors"
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

// --- Visit Repository Methods ---

// SaveVisit persists a completed visit. Replayed events with the same
// visit ID are absorbed by the conflict clause.
func (r *PostgresRepo) SaveVisit(ctx context.Context, visit model.Visit) error {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if companyID != visit.CompanyID {
		return fmt.Errorf("%w: visit CompanyID %s does not match tenant ID %s", apperrors.ErrBadRequest, visit.CompanyID, companyID)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&visit)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveVisit", operation)
	observer.ObserveDbOperationDuration("save", "visit", companyID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save visit after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// HasAnyVisit reports whether the lead has at least one recorded visit.
func (r *PostgresRepo) HasAnyVisit(ctx context.Context, leadID string) (bool, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var count int64
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Visit{}).
			Where("lead_id = ? AND company_id = ?", leadID, companyID).
			Count(&count)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "HasAnyVisit", operation)
	observer.ObserveDbOperationDuration("has_any_visit", "visit", companyID, time.Since(startTime), findErr)

	if findErr != nil {
		loggerCtx.Error("Failed to check visits after retries",
			zap.String("lead_id", leadID),
			zap.String("company_id", companyID),
			zap.Error(findErr))
		return false, findErr
	}
	return count > 0, nil
}

// FindLatestVisit returns the most recent visit for the lead.
func (r *PostgresRepo) FindLatestVisit(ctx context.Context, leadID string) (*model.Visit, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var visit model.Visit
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("lead_id = ? AND company_id = ?", leadID, companyID).
			Order("occurred_at DESC").
			First(&visit)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: no visits for lead %s: %w", apperrors.ErrNotFound, leadID, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindLatestVisit", operation)
	observer.ObserveDbOperationDuration("find_latest", "visit", companyID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find latest visit after retries",
			zap.String("lead_id", leadID),
			zap.String("company_id", companyID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &visit, nil
}
