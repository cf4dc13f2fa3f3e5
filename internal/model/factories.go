package model

import (
	"encoding/json"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/datatypes"

	"gitlab.com/havenrow/api/lead-lifecycle-service/pkg/utils"
)

// RandomJSONB generates random JSON data for testing.
func RandomJSONB() datatypes.JSON {
	jsonData := map[string]interface{}{
		"stub_key": gofakeit.Word(),
		"stub_num": gofakeit.Number(1, 100),
	}
	bytes, _ := json.Marshal(jsonData)
	return datatypes.JSON(bytes)
}

// init ensures gofakeit is seeded.
func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// NewLead creates a new Lead instance with default fake data.
func NewLead(overrideDefaults ...*Lead) *Lead {
	created := utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour)
	base := &Lead{
		ID:                 gofakeit.UUID(),
		CompanyID:          "tenant_" + gofakeit.LetterN(10),
		PhoneNumber:        gofakeit.Phone(),
		FullName:           gofakeit.Name(),
		Source:             gofakeit.RandomString([]string{"portal", "referral", "walk-in"}),
		AssignedTo:         gofakeit.UUID(),
		Stage:              string(StageNewLead),
		Version:            1,
		LastStageChangedAt: created,
		CreatedAt:          created,
		UpdatedAt:          utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.CompanyID != "" {
			base.CompanyID = ovr.CompanyID
		}
		if ovr.PhoneNumber != "" {
			base.PhoneNumber = ovr.PhoneNumber
		}
		if ovr.FullName != "" {
			base.FullName = ovr.FullName
		}
		if ovr.Source != "" {
			base.Source = ovr.Source
		}
		if ovr.AssignedTo != "" {
			base.AssignedTo = ovr.AssignedTo
		}
		if ovr.Stage != "" {
			base.Stage = ovr.Stage
		}
		if ovr.Version != 0 {
			base.Version = ovr.Version
		}
		if !ovr.LastStageChangedAt.IsZero() {
			base.LastStageChangedAt = ovr.LastStageChangedAt
		}
		if ovr.LastActivityAt != nil {
			base.LastActivityAt = ovr.LastActivityAt
		}
		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
		if !ovr.UpdatedAt.IsZero() {
			base.UpdatedAt = ovr.UpdatedAt
		}
		if ovr.LastMetadata != nil {
			base.LastMetadata = ovr.LastMetadata
		}
	}
	return base
}

// NewVisit creates a new Visit instance with default fake data.
func NewVisit(overrideDefaults ...*Visit) *Visit {
	occurred := utils.Now().Add(-time.Duration(gofakeit.Number(1, 72)) * time.Hour)
	base := &Visit{
		ID:         gofakeit.UUID(),
		LeadID:     gofakeit.UUID(),
		CompanyID:  "tenant_" + gofakeit.LetterN(10),
		AgentID:    gofakeit.UUID(),
		PropertyID: gofakeit.UUID(),
		Channel:    gofakeit.RandomString([]string{"ON_SITE", "VIRTUAL"}),
		Notes:      gofakeit.Sentence(6),
		OccurredAt: occurred,
		CreatedAt:  occurred,
		UpdatedAt:  utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.LeadID != "" {
			base.LeadID = ovr.LeadID
		}
		if ovr.CompanyID != "" {
			base.CompanyID = ovr.CompanyID
		}
		if ovr.AgentID != "" {
			base.AgentID = ovr.AgentID
		}
		if ovr.PropertyID != "" {
			base.PropertyID = ovr.PropertyID
		}
		if ovr.Channel != "" {
			base.Channel = ovr.Channel
		}
		if ovr.Notes != "" {
			base.Notes = ovr.Notes
		}
		if !ovr.OccurredAt.IsZero() {
			base.OccurredAt = ovr.OccurredAt
		}
		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
		if !ovr.UpdatedAt.IsZero() {
			base.UpdatedAt = ovr.UpdatedAt
		}
		if ovr.LastMetadata != nil {
			base.LastMetadata = ovr.LastMetadata
		}
	}
	return base
}
