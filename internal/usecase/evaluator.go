package usecase

import (
	"fmt"
	"time"

	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/apperrors"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/config"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/model"
	"gitlab.com/havenrow/api/lead-lifecycle-service/pkg/utils"
)

// Thresholds holds the decay thresholds in IST calendar days.
type Thresholds struct {
	QualifyWindowDays     int // NEW_LEAD window before decaying to AT_RISK_LEAD
	QualifiedIdleDays     int // QUALIFIED idle window before AT_RISK_LEAD
	AtRiskLeadIdleDays    int // AT_RISK_LEAD idle window before INACTIVE_LEAD
	ActiveVisitorIdleDays int // ACTIVE_VISITOR idle window before AT_RISK_VISITOR
	AtRiskVisitorIdleDays int // AT_RISK_VISITOR idle window before INACTIVE_VISITOR
}

// ThresholdsFromConfig builds evaluator thresholds from service configuration.
func ThresholdsFromConfig(cfg config.LifecycleConfig) Thresholds {
	return Thresholds{
		QualifyWindowDays:     cfg.QualifyWindowDays,
		QualifiedIdleDays:     cfg.QualifiedIdleDays,
		AtRiskLeadIdleDays:    cfg.AtRiskLeadIdleDays,
		ActiveVisitorIdleDays: cfg.ActiveVisitorIdleDays,
		AtRiskVisitorIdleDays: cfg.AtRiskVisitorIdleDays,
	}
}

// LeadSnapshot is the evaluator's read-only view of a lead.
type LeadSnapshot struct {
	Stage              model.Stage
	LastStageChangedAt time.Time
	LastActivityAt     *time.Time
	HasVisit           bool
}

// Decision is the evaluator's output: either no transition, or the stage
// to move to together with what triggered the move.
type Decision struct {
	Transition bool
	To         model.Stage
	Trigger    model.TransitionTrigger
}

// NoTransition is the idempotent decision.
var NoTransition = Decision{}

// transitionTo builds an applied decision.
func transitionTo(to model.Stage, trigger model.TransitionTrigger) Decision {
	return Decision{Transition: true, To: to, Trigger: trigger}
}

// Evaluate maps a lead snapshot and an instant to the next stage, or to no
// transition. It is deterministic and side-effect free. A snapshot carrying
// a stage outside the lifecycle enum is corrupt data and returns an error
// rather than being treated as no transition.
//
// Decision order: the one-time visit gate wins over everything, then fresh
// engagement (qualification or reactivation), then time decay. Decay
// windows are counted in IST midnight crossings from the decay anchor, and
// an elapsed count equal to the threshold is already eligible.
func Evaluate(lead LeadSnapshot, now time.Time, th Thresholds) (Decision, error) {
	if !lead.Stage.IsValid() {
		return NoTransition, fmt.Errorf("%w: unknown stage %q", apperrors.ErrInvalidStage, lead.Stage)
	}

	// First visit reclassifies any pre-visit stage, exactly once.
	if lead.HasVisit && lead.Stage.IsPreVisit() {
		return transitionTo(model.StageActiveVisitor, model.TriggerVisit), nil
	}

	activitySinceStage := lead.LastActivityAt != nil && lead.LastActivityAt.After(lead.LastStageChangedAt)

	if activitySinceStage {
		switch lead.Stage {
		case model.StageNewLead:
			return transitionTo(model.StageQualified, model.TriggerActivity), nil
		case model.StageAtRiskLead, model.StageInactiveLead,
			model.StageAtRiskVisitor, model.StageInactiveVisitor:
			return transitionTo(model.StageReactivated, model.TriggerReactivation), nil
		}
		// QUALIFIED, ACTIVE_VISITOR and REACTIVATED absorb activity by
		// refreshing the decay anchor below.
	}

	// Terminal inactive stages never decay further.
	if lead.Stage.IsInactive() {
		return NoTransition, nil
	}

	anchor := lead.LastStageChangedAt
	switch lead.Stage {
	case model.StageQualified, model.StageActiveVisitor, model.StageReactivated:
		if lead.LastActivityAt != nil && lead.LastActivityAt.After(anchor) {
			anchor = *lead.LastActivityAt
		}
	}

	elapsed := utils.CalendarDaysBetween(anchor, now)

	switch lead.Stage {
	case model.StageNewLead:
		if elapsed >= th.QualifyWindowDays {
			return transitionTo(model.StageAtRiskLead, model.TriggerDecay), nil
		}
	case model.StageQualified:
		if elapsed >= th.QualifiedIdleDays {
			return transitionTo(model.StageAtRiskLead, model.TriggerDecay), nil
		}
	case model.StageAtRiskLead:
		if elapsed >= th.AtRiskLeadIdleDays {
			return transitionTo(model.StageInactiveLead, model.TriggerDecay), nil
		}
	case model.StageActiveVisitor:
		if elapsed >= th.ActiveVisitorIdleDays {
			return transitionTo(model.StageAtRiskVisitor, model.TriggerDecay), nil
		}
	case model.StageAtRiskVisitor:
		if elapsed >= th.AtRiskVisitorIdleDays {
			return transitionTo(model.StageInactiveVisitor, model.TriggerDecay), nil
		}
	case model.StageReactivated:
		// Decay re-enters the visitor track when the lead has a visit,
		// and the pre-visit track otherwise.
		if lead.HasVisit {
			if elapsed >= th.ActiveVisitorIdleDays {
				return transitionTo(model.StageAtRiskVisitor, model.TriggerDecay), nil
			}
		} else {
			if elapsed >= th.QualifiedIdleDays {
				return transitionTo(model.StageAtRiskLead, model.TriggerDecay), nil
			}
		}
	}

	return NoTransition, nil
}
