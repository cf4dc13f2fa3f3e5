package model

import (
	"strings"
	"time"
)

// EventType represents different types of events
type EventType string

// Common event type constants (with versioning)
const (
	// Version 1 inbound lifecycle event types
	V1VisitCreated   EventType = "v1.visits.created"
	V1ActivityLogged EventType = "v1.leads.activity"
	V1LeadReactivate EventType = "v1.leads.reactivate"
	V1SweepTrigger   EventType = "v1.leads.sweep"

	// Version 1 outbound event types
	V1LeadStageChanged EventType = "v1.leads.stage"
)

// TransitionTrigger labels what caused a stage transition.
type TransitionTrigger string

const (
	TriggerVisit        TransitionTrigger = "visit"
	TriggerActivity     TransitionTrigger = "activity"
	TriggerReactivation TransitionTrigger = "reactivation"
	TriggerDecay        TransitionTrigger = "decay"
)

// MapToBaseEventType attempts to map an input string (potentially carrying a
// trailing company identifier) back to a known base EventType constant.
// It returns the mapped EventType and true if successful, or an empty
// EventType ("") and false if no mapping is found.
func MapToBaseEventType(input string) (EventType, bool) {
	// First, check if the input string *directly* matches a known EventType value.
	switch EventType(input) {
	case V1VisitCreated, V1ActivityLogged, V1LeadReactivate, V1SweepTrigger, V1LeadStageChanged:
		return EventType(input), true // Direct match found
	}

	// If no direct match, try stripping the last component after the final dot.
	lastDotIndex := strings.LastIndex(input, ".")

	// Ensure a dot exists and it's not the first character.
	if lastDotIndex <= 0 {
		// Cannot strip a component, and it wasn't a direct match.
		return "", false
	}

	// Extract the base part of the string before the last dot.
	base := input[:lastDotIndex]

	// Check if this extracted base matches any known EventType value.
	switch EventType(base) {
	case V1VisitCreated:
		return V1VisitCreated, true
	case V1ActivityLogged:
		return V1ActivityLogged, true
	case V1LeadReactivate:
		return V1LeadReactivate, true
	case V1SweepTrigger:
		return V1SweepTrigger, true
	case V1LeadStageChanged:
		return V1LeadStageChanged, true
	default:
		// The extracted base doesn't match any known type.
		return "", false
	}
}

// GetVersion extracts the version from an event type
// Returns the version string (e.g., "v1") or an empty string if no version specified
func (e EventType) GetVersion() string {
	parts := strings.SplitN(string(e), ".", 2)
	if len(parts) < 2 {
		return ""
	}

	// Check if the first part starts with 'v' followed by a number
	if len(parts[0]) >= 2 && parts[0][0] == 'v' {
		return parts[0]
	}

	return ""
}

// GetBaseType returns the event type without the version prefix
// For example: "v1.visits.created" -> "visits.created"
func (e EventType) GetBaseType() EventType {
	version := e.GetVersion()
	if version == "" {
		return e
	}

	// Remove the version prefix and the following dot
	return EventType(strings.TrimPrefix(string(e), version+"."))
}

// StageChangeEvent is the payload published to the automation and
// notification consumers after an applied transition.
type StageChangeEvent struct {
	EventID    string            `json:"event_id"`
	LeadID     string            `json:"lead_id"`
	CompanyID  string            `json:"company_id"`
	FromStage  Stage             `json:"from_stage"`
	ToStage    Stage             `json:"to_stage"`
	Trigger    TransitionTrigger `json:"trigger"`
	OccurredAt time.Time         `json:"occurred_at"`
}

type MessageMetadata struct {
	ConsumerSequence uint64
	StreamSequence   uint64
	NumDelivered     uint64
	NumPending       uint64
	Timestamp        time.Time
	Stream           string
	Consumer         string
	Domain           string
	MessageID        string
	MessageSubject   string
	CompanyID        string
}

// ToLastMetadata converts MessageMetadata to LastMetadata
func (e MessageMetadata) ToLastMetadata() *LastMetadata {
	return &LastMetadata{
		ConsumerSequence: int64(e.ConsumerSequence),
		StreamSequence:   int64(e.StreamSequence),
		Stream:           e.Stream,
		Consumer:         e.Consumer,
		Domain:           e.Domain,
		MessageID:        e.MessageID,
		MessageSubject:   e.MessageSubject,
		CompanyID:        e.CompanyID,
	}
}

// LastMetadata represents a last message metadata from nats
type LastMetadata struct {
	ConsumerSequence int64  `json:"consumer_sequence"`
	StreamSequence   int64  `json:"stream_sequence"`
	Stream           string `json:"stream"`
	Consumer         string `json:"consumer"`
	Domain           string `json:"domain"`
	MessageID        string `json:"message_id"`
	MessageSubject   string `json:"message_subject"`
	CompanyID        string `json:"company_id"`
}
