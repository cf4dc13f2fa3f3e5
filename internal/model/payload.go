package model

import (
	"encoding/json"
	"time"
)

// --- Visit NATS Payload --- //
// VisitCreatedPayload is the payload for a completed property visit.
type VisitCreatedPayload struct {
	VisitID    string `json:"visit_id,omitempty" validate:"required"`
	LeadID     string `json:"lead_id,omitempty" validate:"required"`
	CompanyID  string `json:"company_id,omitempty" validate:"required"`
	AgentID    string `json:"agent_id,omitempty" validate:"omitempty"`
	PropertyID string `json:"property_id,omitempty" validate:"omitempty"`
	Channel    string `json:"channel,omitempty" validate:"omitempty,oneof=ON_SITE VIRTUAL"`
	Notes      string `json:"notes,omitempty" validate:"omitempty"`
	OccurredAt int64  `json:"occurred_at,omitempty" validate:"required,gte=0"` // Unix seconds
}

// --- Activity NATS Payload --- //
// ActivityLoggedPayload is the payload for an inbound engagement event
// (call, message, site enquiry) logged against a lead.
type ActivityLoggedPayload struct {
	LeadID       string `json:"lead_id,omitempty" validate:"required"`
	CompanyID    string `json:"company_id,omitempty" validate:"required"`
	ActivityType string `json:"activity_type,omitempty" validate:"omitempty"`
	Note         string `json:"note,omitempty" validate:"omitempty"`
	OccurredAt   int64  `json:"occurred_at,omitempty" validate:"required,gte=0"` // Unix seconds
}

// --- Reactivation NATS Payload --- //
// ReactivateLeadPayload is the payload for an explicit manual reactivation.
type ReactivateLeadPayload struct {
	LeadID     string `json:"lead_id,omitempty" validate:"required"`
	CompanyID  string `json:"company_id,omitempty" validate:"required"`
	Reason     string `json:"reason,omitempty" validate:"omitempty"`
	OccurredAt int64  `json:"occurred_at,omitempty" validate:"omitempty,gte=0"` // Unix seconds
}

// --- Sweep NATS Payload --- //
// SweepTriggerPayload is the payload for a scheduled decay sweep request.
type SweepTriggerPayload struct {
	CompanyID   string `json:"company_id,omitempty" validate:"required"`
	RequestedAt int64  `json:"requested_at,omitempty" validate:"omitempty,gte=0"` // Unix seconds
}

// --- DLQ Payload --- //
// DLQPayload represents the structure of messages sent to the Dead Letter Queue.
type DLQPayload struct {
	SourceSubject   string          `json:"source_subject"`          // The original subject the message was published to
	Company         string          `json:"company"`                 // The company ID associated with the message
	OriginalPayload json.RawMessage `json:"original_payload"`        // The raw JSON payload of the original message
	Error           string          `json:"error"`                   // The full error message encountered during processing
	ErrorType       string          `json:"error_type"`              // Type of error ('fatal', 'retryable', 'unknown')
	RetryCount      uint64          `json:"retry_count"`             // How many times delivery was attempted (NumDelivered from NATS metadata)
	MaxRetry        int             `json:"max_retry"`               // The configured maximum delivery attempts for the consumer
	NextRetryAt     *time.Time      `json:"next_retry_at,omitempty"` // Timestamp for the next scheduled retry attempt
	Timestamp       time.Time       `json:"ts"`                      // Timestamp when the message was sent to the DLQ
}
