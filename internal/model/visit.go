package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

// Visit represents a completed property visit tied to a lead.
type Visit struct {
	ID           string         `json:"id" gorm:"primaryKey;type:text"`
	LeadID       string         `json:"lead_id" gorm:"column:lead_id;index;type:text" validate:"required"`
	CompanyID    string         `json:"company_id,omitempty" gorm:"column:company_id;index"`
	AgentID      string         `json:"agent_id,omitempty" gorm:"type:text"`
	PropertyID   string         `json:"property_id,omitempty" gorm:"type:text"`
	Channel      string         `json:"channel,omitempty" gorm:"type:text;default:ON_SITE"` // ON_SITE or VIRTUAL
	Notes        string         `json:"notes,omitempty" gorm:"type:text"`
	OccurredAt   time.Time      `json:"occurred_at" gorm:"column:occurred_at;index"`
	CreatedAt    time.Time      `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
	LastMetadata datatypes.JSON `json:"last_metadata,omitempty" gorm:"type:jsonb;column:last_metadata"`
}

// TableName specifies the table name for the Visit model, respecting the Namer.
func (Visit) TableName(namer schema.Namer) string {
	return namer.TableName("visits")
}
