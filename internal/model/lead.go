package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

// Lead represents a prospective buyer in the PostgreSQL database.
type Lead struct {
	ID                 string         `json:"id" gorm:"primaryKey;type:text"`
	CompanyID          string         `json:"company_id,omitempty" gorm:"column:company_id;index"` // Brokerage / company ID
	PhoneNumber        string         `json:"phone_number,omitempty" gorm:"type:text"`
	FullName           string         `json:"full_name,omitempty" gorm:"type:text"`
	Source             string         `json:"source,omitempty" gorm:"type:text"`                          // Intake source (portal, referral, walk-in)
	AssignedTo         string         `json:"assigned_to,omitempty" gorm:"index;type:text"`               // Assigned agent ID (optional)
	Stage              string         `json:"stage" gorm:"type:text;default:NEW_LEAD;index" validate:"required"`
	Version            int64          `json:"version" gorm:"column:version;default:1"`                    // Optimistic lock counter, bumped on every stage write
	LastStageChangedAt time.Time      `json:"last_stage_changed_at" gorm:"column:last_stage_changed_at"`  // Anchors decay countdowns
	LastActivityAt     *time.Time     `json:"last_activity_at,omitempty" gorm:"column:last_activity_at"`  // Nil means no engagement recorded
	CreatedAt          time.Time      `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt          time.Time      `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
	LastMetadata       datatypes.JSON `json:"last_metadata,omitempty" gorm:"type:jsonb;column:last_metadata"`
}

// TableName specifies the table name for the Lead model, respecting the Namer.
func (Lead) TableName(namer schema.Namer) string {
	return namer.TableName("leads")
}

// CurrentStage returns the stored stage parsed against the known set.
func (l *Lead) CurrentStage() (Stage, bool) {
	return ParseStage(l.Stage)
}

// HasActivitySinceStageChange reports whether the lead recorded engagement
// after entering its current stage. This is the qualifying-activity signal
// for qualification and reactivation.
func (l *Lead) HasActivitySinceStageChange() bool {
	return l.LastActivityAt != nil && l.LastActivityAt.After(l.LastStageChangedAt)
}
