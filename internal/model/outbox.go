package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

// StageEventOutbox persists stage-change events whose publish to NATS
// failed. A republisher drains pending rows so delivery stays
// at-least-once without ever rolling back the stage write.
type StageEventOutbox struct {
	ID            int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	EventID       string         `json:"event_id" gorm:"column:event_id;uniqueIndex;type:text"`
	LeadID        string         `json:"lead_id" gorm:"column:lead_id;index;type:text"`
	CompanyID     string         `json:"company_id" gorm:"column:company_id;index"`
	Subject       string         `json:"subject" gorm:"type:text"`
	Payload       datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	Attempts      int            `json:"attempts" gorm:"default:0"`
	LastError     string         `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt     time.Time      `json:"created_at,omitempty" gorm:"autoCreateTime"`
	LastAttemptAt *time.Time     `json:"last_attempt_at,omitempty" gorm:"column:last_attempt_at"`
}

// TableName specifies the table name for the StageEventOutbox model, respecting the Namer.
func (StageEventOutbox) TableName(namer schema.Namer) string {
	return namer.TableName("stage_event_outbox")
}
