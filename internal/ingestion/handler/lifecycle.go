package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/apperrors"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/model"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/tenant"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/validator"
	"gitlab.com/havenrow/api/lead-lifecycle-service/pkg/logger"
	"gitlab.com/havenrow/api/lead-lifecycle-service/pkg/utils"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// LifecycleHandler processes inbound lifecycle events
type LifecycleHandler struct {
	service LifecycleService
}

// LifecycleService defines the interface for lifecycle event processing
type LifecycleService interface {
	RecordVisit(ctx context.Context, visit model.Visit) (*model.StageChangeEvent, error)
	RecordActivity(ctx context.Context, leadID string, occurredAt time.Time) (*model.StageChangeEvent, error)
	Reactivate(ctx context.Context, leadID string, occurredAt time.Time) (*model.StageChangeEvent, error)
	RunSweep(ctx context.Context, now time.Time) (*model.SweepSummary, error)
}

// NewLifecycleHandler creates a new lifecycle event handler
func NewLifecycleHandler(service LifecycleService) *LifecycleHandler {
	return &LifecycleHandler{
		service: service,
	}
}

// HandleEvent processes lifecycle events
func (h *LifecycleHandler) HandleEvent(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
	// Generate request ID
	requestID := uuid.NewString()
	ctx = tenant.WithRequestID(ctx, requestID)

	log := logger.FromContext(ctx)
	log.Info("Processing lifecycle event", zap.String("type", string(eventType)))

	lastMetadata := metadata.ToLastMetadata()
	var err error
	switch eventType {
	case model.V1VisitCreated:
		err = h.handleVisitCreated(ctx, lastMetadata, rawEvent)
	case model.V1ActivityLogged:
		err = h.handleActivityLogged(ctx, lastMetadata, rawEvent)
	case model.V1LeadReactivate:
		err = h.handleReactivate(ctx, lastMetadata, rawEvent)
	case model.V1SweepTrigger:
		err = h.handleSweepTrigger(ctx, lastMetadata, rawEvent)
	default:
		unsupportedErr := fmt.Errorf("unsupported lifecycle event type: %s", eventType)
		log.Error("Unsupported lifecycle event type", zap.String("eventType", string(eventType)))
		err = apperrors.NewFatal(unsupportedErr, "unsupported lifecycle event type")
	}
	return err // Return error (already wrapped by handlers or service)
}

// handleVisitCreated processes completed property visit events
func (h *LifecycleHandler) handleVisitCreated(ctx context.Context, metadata *model.LastMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	var payload model.VisitCreatedPayload
	if err := json.Unmarshal(rawEvent, &payload); err != nil {
		log.Error("Failed to unmarshal visit created payload", zap.Error(err))
		return apperrors.NewFatal(err, "failed to unmarshal visit created payload")
	}

	// Enrich payload with CompanyID from metadata
	if payload.CompanyID == "" {
		payload.CompanyID = metadata.CompanyID
	}

	if err := validator.Validate(payload); err != nil {
		log.Error("Visit created validation failed",
			zap.String("visit_id", payload.VisitID),
			zap.String("lead_id", payload.LeadID),
			zap.Error(err),
		)
		return apperrors.NewFatal(err, "visit created validation failed")
	}

	if err := validateEventTenant(ctx, payload.CompanyID); err != nil {
		log.Error("CompanyID validation failed for visit",
			zap.String("visit_id", payload.VisitID),
			zap.String("company_id", payload.CompanyID),
			zap.Error(err),
		)
		return apperrors.NewFatal(err, "company ID mismatch for visit")
	}

	visit := model.Visit{
		ID:           payload.VisitID,
		LeadID:       payload.LeadID,
		CompanyID:    payload.CompanyID,
		AgentID:      payload.AgentID,
		PropertyID:   payload.PropertyID,
		Channel:      payload.Channel,
		Notes:        payload.Notes,
		OccurredAt:   utils.UnixToTime(payload.OccurredAt),
		LastMetadata: datatypes.JSON(utils.MustMarshalJSON(metadata)),
	}

	log.Info("Processing visit created", zap.String("visit_id", visit.ID), zap.String("lead_id", visit.LeadID))
	_, err := h.service.RecordVisit(ctx, visit)
	return err
}

// handleActivityLogged processes lead engagement events
func (h *LifecycleHandler) handleActivityLogged(ctx context.Context, metadata *model.LastMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	var payload model.ActivityLoggedPayload
	if err := json.Unmarshal(rawEvent, &payload); err != nil {
		log.Error("Failed to unmarshal activity logged payload", zap.Error(err))
		return apperrors.NewFatal(err, "failed to unmarshal activity logged payload")
	}

	if payload.CompanyID == "" {
		payload.CompanyID = metadata.CompanyID
	}

	if err := validator.Validate(payload); err != nil {
		log.Error("Activity logged validation failed",
			zap.String("lead_id", payload.LeadID),
			zap.Error(err),
		)
		return apperrors.NewFatal(err, "activity logged validation failed")
	}

	if err := validateEventTenant(ctx, payload.CompanyID); err != nil {
		log.Error("CompanyID validation failed for activity",
			zap.String("lead_id", payload.LeadID),
			zap.String("company_id", payload.CompanyID),
			zap.Error(err),
		)
		return apperrors.NewFatal(err, "company ID mismatch for activity")
	}

	log.Info("Processing activity logged",
		zap.String("lead_id", payload.LeadID),
		zap.String("activity_type", payload.ActivityType),
	)
	_, err := h.service.RecordActivity(ctx, payload.LeadID, utils.UnixToTime(payload.OccurredAt))
	return err
}

// handleReactivate processes explicit manual reactivation requests
func (h *LifecycleHandler) handleReactivate(ctx context.Context, metadata *model.LastMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	var payload model.ReactivateLeadPayload
	if err := json.Unmarshal(rawEvent, &payload); err != nil {
		log.Error("Failed to unmarshal reactivate payload", zap.Error(err))
		return apperrors.NewFatal(err, "failed to unmarshal reactivate payload")
	}

	if payload.CompanyID == "" {
		payload.CompanyID = metadata.CompanyID
	}

	if err := validator.Validate(payload); err != nil {
		log.Error("Reactivate validation failed",
			zap.String("lead_id", payload.LeadID),
			zap.Error(err),
		)
		return apperrors.NewFatal(err, "reactivate validation failed")
	}

	if err := validateEventTenant(ctx, payload.CompanyID); err != nil {
		log.Error("CompanyID validation failed for reactivation",
			zap.String("lead_id", payload.LeadID),
			zap.String("company_id", payload.CompanyID),
			zap.Error(err),
		)
		return apperrors.NewFatal(err, "company ID mismatch for reactivation")
	}

	var occurredAt time.Time
	if payload.OccurredAt > 0 {
		occurredAt = utils.UnixToTime(payload.OccurredAt)
	}

	log.Info("Processing lead reactivation",
		zap.String("lead_id", payload.LeadID),
		zap.String("reason", payload.Reason),
	)
	_, err := h.service.Reactivate(ctx, payload.LeadID, occurredAt)
	return err
}

// handleSweepTrigger processes scheduled decay sweep requests
func (h *LifecycleHandler) handleSweepTrigger(ctx context.Context, metadata *model.LastMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	var payload model.SweepTriggerPayload
	if err := json.Unmarshal(rawEvent, &payload); err != nil {
		log.Error("Failed to unmarshal sweep trigger payload", zap.Error(err))
		return apperrors.NewFatal(err, "failed to unmarshal sweep trigger payload")
	}

	if payload.CompanyID == "" {
		payload.CompanyID = metadata.CompanyID
	}

	if err := validator.Validate(payload); err != nil {
		log.Error("Sweep trigger validation failed", zap.Error(err))
		return apperrors.NewFatal(err, "sweep trigger validation failed")
	}

	if err := validateEventTenant(ctx, payload.CompanyID); err != nil {
		log.Error("CompanyID validation failed for sweep trigger",
			zap.String("company_id", payload.CompanyID),
			zap.Error(err),
		)
		return apperrors.NewFatal(err, "company ID mismatch for sweep trigger")
	}

	log.Info("Processing sweep trigger", zap.String("company_id", payload.CompanyID))
	summary, err := h.service.RunSweep(ctx, utils.Now())
	if err != nil {
		return err
	}

	log.Info("Sweep trigger completed",
		zap.Int("evaluated", summary.Evaluated),
		zap.Int("transitioned", summary.Transitioned),
		zap.Int("failed", len(summary.Failed)),
	)
	return nil
}

// validateEventTenant ensures the payload CompanyID matches the consumer tenant.
func validateEventTenant(ctx context.Context, companyID string) error {
	if companyID == "" {
		return nil // Skip validation if company is not provided
	}

	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get tenant ID: %w", err)
	}

	if companyID != tenantID {
		return fmt.Errorf("company (%s) does not match tenant ID (%s)", companyID, tenantID)
	}

	return nil
}
