package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/apperrors"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/config"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/jetstream"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/model"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/observer"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/storage"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/tenant"
	"gitlab.com/havenrow/api/lead-lifecycle-service/pkg/logger"
	"gitlab.com/havenrow/api/lead-lifecycle-service/pkg/utils"
)

// Engine drives the stage evaluator against persisted leads. It is
// stateless between invocations; callers supply the instant to evaluate
// against so tests stay deterministic.
type Engine struct {
	leadRepo   storage.LeadRepo
	visitRepo  storage.VisitRepo
	outboxRepo storage.OutboxRepo
	publisher  jetstream.ClientInterface

	thresholds         Thresholds
	maxConflictRetries int
	stageSubject       string
	sweepBatchSize     int
	sweepWorker        ISweepWorker

	now func() time.Time
}

// NewEngine creates a lifecycle engine.
func NewEngine(
	cfg *config.Config,
	leadRepo storage.LeadRepo,
	visitRepo storage.VisitRepo,
	outboxRepo storage.OutboxRepo,
	publisher jetstream.ClientInterface,
) *Engine {
	return &Engine{
		leadRepo:           leadRepo,
		visitRepo:          visitRepo,
		outboxRepo:         outboxRepo,
		publisher:          publisher,
		thresholds:         ThresholdsFromConfig(cfg.Lifecycle),
		maxConflictRetries: cfg.Lifecycle.MaxConflictRetries,
		stageSubject:       cfg.NATS.StageSubject,
		sweepBatchSize:     cfg.Lifecycle.SweepBatchSize,
		now:                utils.Now,
	}
}

// SetSweepWorker attaches the worker pool used by RunSweep. Wired after
// construction because the pool's task function closes over the engine.
func (e *Engine) SetSweepWorker(w ISweepWorker) {
	e.sweepWorker = w
}

// SetClock overrides the engine clock. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// EvaluateAndApply evaluates a single lead against the given instant and
// applies the resulting transition, if any. A lost optimistic lock race is
// resolved by re-reading and re-evaluating, bounded by maxConflictRetries.
// The returned event is nil when no transition was due.
func (e *Engine) EvaluateAndApply(ctx context.Context, leadID string, now time.Time) (*model.StageChangeEvent, error) {
	log := logger.FromContext(ctx).With(zap.String("lead_id", leadID))

	var lastErr error
	for attempt := 0; attempt <= e.maxConflictRetries; attempt++ {
		lead, err := e.leadRepo.FindByID(ctx, leadID)
		if err != nil {
			return nil, err
		}

		fromStage, ok := lead.CurrentStage()
		if !ok {
			return nil, apperrors.NewFatal(
				fmt.Errorf("%w: lead %s has stage %q", apperrors.ErrInvalidStage, leadID, lead.Stage),
				"cannot evaluate lead")
		}

		hasVisit, err := e.visitRepo.HasAnyVisit(ctx, leadID)
		if err != nil {
			return nil, err
		}

		decision, err := Evaluate(LeadSnapshot{
			Stage:              fromStage,
			LastStageChangedAt: lead.LastStageChangedAt,
			LastActivityAt:     lead.LastActivityAt,
			HasVisit:           hasVisit,
		}, now, e.thresholds)
		if err != nil {
			return nil, apperrors.NewFatal(err, "cannot evaluate lead")
		}

		if !decision.Transition {
			return nil, nil
		}

		if !fromStage.CanTransition(decision.To) {
			return nil, apperrors.NewFatal(
				fmt.Errorf("%w: %s -> %s is not a lifecycle edge", apperrors.ErrInvalidStage, fromStage, decision.To),
				"evaluator produced an invalid transition")
		}

		err = e.leadRepo.UpdateStage(ctx, leadID, lead.Version, decision.To, now)
		if err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				// Another trigger won the race; re-read and decide again
				// against the post-update state.
				lastErr = err
				log.Debug("Stage write conflicted, re-evaluating",
					zap.Int("attempt", attempt+1),
					zap.String("from_stage", string(fromStage)),
					zap.String("to_stage", string(decision.To)))
				continue
			}
			return nil, err
		}

		event := &model.StageChangeEvent{
			EventID:    uuid.New().String(),
			LeadID:     leadID,
			CompanyID:  lead.CompanyID,
			FromStage:  fromStage,
			ToStage:    decision.To,
			Trigger:    decision.Trigger,
			OccurredAt: now,
		}

		observer.IncTransitionApplied(string(fromStage), string(decision.To), lead.CompanyID, string(decision.Trigger))
		log.Info("Applied stage transition",
			zap.String("from_stage", string(fromStage)),
			zap.String("to_stage", string(decision.To)),
			zap.String("trigger", string(decision.Trigger)))

		// The stage write is already committed; emission failure parks the
		// event in the outbox and never surfaces to the caller.
		e.emitStageChange(ctx, event)
		return event, nil
	}

	return nil, fmt.Errorf("%w: lead %s still conflicting after %d retries: %w",
		apperrors.ErrConflict, leadID, e.maxConflictRetries, lastErr)
}

// RecordVisit persists a visit, records it as engagement, and evaluates
// the lead. The first visit moves any pre-visit lead to ACTIVE_VISITOR.
func (e *Engine) RecordVisit(ctx context.Context, visit model.Visit) (*model.StageChangeEvent, error) {
	if err := e.visitRepo.Save(ctx, visit); err != nil {
		return nil, err
	}
	if err := e.leadRepo.TouchActivity(ctx, visit.LeadID, visit.OccurredAt); err != nil {
		return nil, err
	}
	return e.EvaluateAndApply(ctx, visit.LeadID, e.now())
}

// RecordActivity records an inbound engagement instant and evaluates the
// lead. Qualifying activity moves NEW_LEAD to QUALIFIED and any at-risk or
// inactive stage to REACTIVATED.
func (e *Engine) RecordActivity(ctx context.Context, leadID string, occurredAt time.Time) (*model.StageChangeEvent, error) {
	if err := e.leadRepo.TouchActivity(ctx, leadID, occurredAt); err != nil {
		return nil, err
	}
	return e.EvaluateAndApply(ctx, leadID, e.now())
}

// Reactivate handles an explicit manual reactivation. It is recorded as
// engagement so the evaluator routes at-risk and inactive leads to
// REACTIVATED; leads in a healthy stage are left untouched.
func (e *Engine) Reactivate(ctx context.Context, leadID string, occurredAt time.Time) (*model.StageChangeEvent, error) {
	if occurredAt.IsZero() {
		occurredAt = e.now()
	}
	return e.RecordActivity(ctx, leadID, occurredAt)
}

// emitStageChange publishes the stage change event, parking it in the
// outbox when the publish fails so delivery stays at-least-once.
func (e *Engine) emitStageChange(ctx context.Context, event *model.StageChangeEvent) {
	log := logger.FromContext(ctx).With(
		zap.String("lead_id", event.LeadID),
		zap.String("event_id", event.EventID))

	subject := fmt.Sprintf("%s.%s", e.stageSubject, event.CompanyID)
	payload := utils.MustMarshalJSON(event)

	err := e.publisher.Publish(subject, payload, map[string]string{
		"Nats-Msg-Id": event.EventID,
	})
	if err == nil {
		log.Debug("Published stage change event", zap.String("subject", subject))
		return
	}

	observer.IncStagePublishFailure(event.CompanyID)
	log.Warn("Failed to publish stage change event, parking in outbox",
		zap.String("subject", subject),
		zap.Error(err))

	row := model.StageEventOutbox{
		EventID:   event.EventID,
		LeadID:    event.LeadID,
		CompanyID: event.CompanyID,
		Subject:   subject,
		Payload:   datatypes.JSON(payload),
		LastError: err.Error(),
	}
	if saveErr := e.outboxRepo.Save(ctx, row); saveErr != nil {
		// Both the publish and the park failed. The stage write stands;
		// log loudly and leave recovery to the operator.
		log.Error("Failed to park stage change event in outbox",
			zap.NamedError("publish_error", err),
			zap.Error(saveErr))
	}
}

// companyFromContext is a small helper for callers that log per tenant.
func companyFromContext(ctx context.Context) string {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return ""
	}
	return companyID
}
