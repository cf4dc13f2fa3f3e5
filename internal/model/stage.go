package model

// Stage represents a lead's position in the lifecycle funnel.
type Stage string

// Lifecycle stage constants. Pre-visit stages decay toward INACTIVE_LEAD,
// visitor stages decay toward INACTIVE_VISITOR, and REACTIVATED re-enters
// whichever decay path matches the lead's visit history.
const (
	StageNewLead         Stage = "NEW_LEAD"
	StageQualified       Stage = "QUALIFIED"
	StageAtRiskLead      Stage = "AT_RISK_LEAD"
	StageInactiveLead    Stage = "INACTIVE_LEAD"
	StageActiveVisitor   Stage = "ACTIVE_VISITOR"
	StageAtRiskVisitor   Stage = "AT_RISK_VISITOR"
	StageInactiveVisitor Stage = "INACTIVE_VISITOR"
	StageReactivated     Stage = "REACTIVATED"
)

// stageTransitions is the closed directed graph of allowed stage moves.
// Any transition not listed here is rejected before it reaches storage.
var stageTransitions = map[Stage][]Stage{
	StageNewLead:         {StageQualified, StageAtRiskLead, StageActiveVisitor},
	StageQualified:       {StageAtRiskLead, StageActiveVisitor},
	StageAtRiskLead:      {StageInactiveLead, StageActiveVisitor, StageReactivated},
	StageInactiveLead:    {StageActiveVisitor, StageReactivated},
	StageActiveVisitor:   {StageAtRiskVisitor},
	StageAtRiskVisitor:   {StageInactiveVisitor, StageReactivated},
	StageInactiveVisitor: {StageReactivated},
	StageReactivated:     {StageActiveVisitor, StageAtRiskLead, StageAtRiskVisitor},
}

// ParseStage maps an input string to a known Stage constant.
// It returns the mapped Stage and true if successful, or an empty Stage ("")
// and false if the value is outside the known set.
func ParseStage(input string) (Stage, bool) {
	s := Stage(input)
	if _, ok := stageTransitions[s]; ok {
		return s, true
	}
	return "", false
}

// IsValid reports whether the stage is a member of the known set.
func (s Stage) IsValid() bool {
	_, ok := stageTransitions[s]
	return ok
}

// CanTransition reports whether moving from s to the target stage is an
// edge of the lifecycle graph.
func (s Stage) CanTransition(to Stage) bool {
	for _, next := range stageTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsPreVisit reports whether the stage belongs to the pre-visit track.
// A lead in one of these stages that records its first visit is
// reclassified to ACTIVE_VISITOR.
func (s Stage) IsPreVisit() bool {
	switch s {
	case StageNewLead, StageQualified, StageAtRiskLead, StageInactiveLead:
		return true
	}
	return false
}

// IsAtRisk reports whether the stage is one of the at-risk decay stages.
func (s Stage) IsAtRisk() bool {
	return s == StageAtRiskLead || s == StageAtRiskVisitor
}

// IsInactive reports whether the stage is a terminal inactivity stage.
// Inactive leads are skipped by the decay sweep and only leave via a
// triggered reactivation.
func (s Stage) IsInactive() bool {
	return s == StageInactiveLead || s == StageInactiveVisitor
}

// SweepStages returns the stages eligible for the periodic decay sweep.
// Inactive stages are excluded since time alone never moves them.
func SweepStages() []Stage {
	return []Stage{
		StageNewLead,
		StageQualified,
		StageAtRiskLead,
		StageActiveVisitor,
		StageAtRiskVisitor,
		StageReactivated,
	}
}
