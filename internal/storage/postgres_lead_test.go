package storage

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/apperrors"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/model"
	"gitlab.com/havenrow/api/lead-lifecycle-service/pkg/utils"
)

func TestPostgresRepo_SaveLead_Insert(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := contextWithTestTenant()
	lead := model.NewLead(&model.Lead{
		ID:                 "lead-insert-1",
		CompanyID:          testCompanyID,
		Stage:              string(model.StageNewLead),
		Version:            1,
		LastStageChangedAt: utils.Now().Add(-time.Hour),
		LastMetadata:       model.RandomJSONB(),
	})

	mock.ExpectBegin()
	selectQuery := `SELECT * FROM "leads" WHERE id = $1 ORDER BY "leads"."id" LIMIT $2 FOR UPDATE`
	mock.ExpectQuery(selectQuery).WithArgs(lead.ID, 1).WillReturnError(gorm.ErrRecordNotFound)
	insertPattern := `INSERT INTO "leads" ("id","company_id","phone_number","full_name","source","assigned_to","stage","version","last_stage_changed_at","last_activity_at","created_at","updated_at","last_metadata") VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	mock.ExpectExec(insertPattern).
		WithArgs(
			lead.ID, lead.CompanyID, lead.PhoneNumber, lead.FullName, lead.Source,
			lead.AssignedTo, lead.Stage, lead.Version, AnyTime{}, nil,
			AnyTime{}, AnyTime{}, lead.LastMetadata,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SaveLead(ctx, *lead)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_SaveLead_Update(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := contextWithTestTenant()
	now := utils.Now()
	lead := model.NewLead(&model.Lead{
		ID:        "lead-update-1",
		CompanyID: testCompanyID,
		Stage:     string(model.StageQualified),
	})

	existingCols := []string{"id", "company_id", "stage", "version", "last_stage_changed_at", "created_at", "updated_at"}
	existingRows := sqlmock.NewRows(existingCols).
		AddRow(lead.ID, lead.CompanyID, string(model.StageNewLead), int64(1), now.Add(-48*time.Hour), now.Add(-48*time.Hour), now.Add(-time.Hour))

	mock.ExpectBegin()
	selectQuery := `SELECT * FROM "leads" WHERE id = $1 ORDER BY "leads"."id" LIMIT $2 FOR UPDATE`
	mock.ExpectQuery(selectQuery).WithArgs(lead.ID, 1).WillReturnRows(existingRows)
	updatePattern := `UPDATE "leads" SET "id"=$1,"company_id"=$2,"phone_number"=$3,"full_name"=$4,"source"=$5,"assigned_to"=$6,"stage"=$7,"version"=$8,"last_stage_changed_at"=$9,"created_at"=$10,"updated_at"=$11 WHERE "id" = $12`
	mock.ExpectExec(updatePattern).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SaveLead(ctx, *lead)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_SaveLead_TenantMismatch(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := contextWithTestTenant()
	lead := model.NewLead(&model.Lead{ID: "lead-tenant-mismatch", CompanyID: "wrong-brokerage"})

	err := repo.SaveLead(ctx, *lead)
	assert.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_FindLeadByID_Found(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := contextWithTestTenant()
	now := utils.Now()

	cols := []string{"id", "company_id", "stage", "version", "last_stage_changed_at", "last_activity_at"}
	rows := sqlmock.NewRows(cols).
		AddRow("lead-id-1", testCompanyID, string(model.StageQualified), int64(3), now.Add(-72*time.Hour), now.Add(-time.Hour))

	selectQuery := `SELECT * FROM "leads" WHERE id = $1 AND company_id = $2 ORDER BY "leads"."id" LIMIT $3`
	mock.ExpectQuery(selectQuery).WithArgs("lead-id-1", testCompanyID, 1).WillReturnRows(rows)

	found, err := repo.FindLeadByID(ctx, "lead-id-1")
	assert.NoError(t, err)
	assert.NotNil(t, found)
	assert.Equal(t, "lead-id-1", found.ID)
	assert.Equal(t, string(model.StageQualified), found.Stage)
	assert.Equal(t, int64(3), found.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_FindLeadByID_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := contextWithTestTenant()

	selectQuery := `SELECT * FROM "leads" WHERE id = $1 AND company_id = $2 ORDER BY "leads"."id" LIMIT $3`
	mock.ExpectQuery(selectQuery).WithArgs("lead-id-404", testCompanyID, 1).WillReturnError(gorm.ErrRecordNotFound)

	found, err := repo.FindLeadByID(ctx, "lead-id-404")
	assert.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Nil(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_FindLeadsDueForEvaluation(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := contextWithTestTenant()
	now := utils.Now()

	cols := []string{"id", "company_id", "stage", "version", "last_stage_changed_at"}
	rows := sqlmock.NewRows(cols).
		AddRow("lead-sweep-1", testCompanyID, string(model.StageNewLead), int64(1), now.Add(-200*time.Hour)).
		AddRow("lead-sweep-2", testCompanyID, string(model.StageQualified), int64(2), now.Add(-180*time.Hour))

	cursorAt := now.Add(-240 * time.Hour)
	selectQuery := `SELECT * FROM "leads" WHERE company_id = $1 AND stage IN ($2,$3,$4,$5,$6,$7) AND (last_stage_changed_at, id) > ($8, $9) ORDER BY last_stage_changed_at ASC, id ASC LIMIT $10`
	mock.ExpectQuery(selectQuery).
		WithArgs(
			testCompanyID,
			string(model.StageNewLead), string(model.StageQualified), string(model.StageAtRiskLead),
			string(model.StageActiveVisitor), string(model.StageAtRiskVisitor), string(model.StageReactivated),
			cursorAt, "lead-sweep-0", 100,
		).
		WillReturnRows(rows)

	leads, err := repo.FindLeadsDueForEvaluation(ctx, cursorAt, "lead-sweep-0", 100)
	assert.NoError(t, err)
	assert.Len(t, leads, 2)
	assert.Equal(t, "lead-sweep-1", leads[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_FindLeadsDueForEvaluation_Empty(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := contextWithTestTenant()

	cols := []string{"id", "company_id", "stage"}
	selectQuery := `SELECT * FROM "leads" WHERE company_id = $1 AND stage IN ($2,$3,$4,$5,$6,$7) AND (last_stage_changed_at, id) > ($8, $9) ORDER BY last_stage_changed_at ASC, id ASC LIMIT $10`
	mock.ExpectQuery(selectQuery).
		WithArgs(
			testCompanyID,
			string(model.StageNewLead), string(model.StageQualified), string(model.StageAtRiskLead),
			string(model.StageActiveVisitor), string(model.StageAtRiskVisitor), string(model.StageReactivated),
			time.Time{}, "", 50,
		).
		WillReturnRows(sqlmock.NewRows(cols))

	leads, err := repo.FindLeadsDueForEvaluation(ctx, time.Time{}, "", 50)
	assert.NoError(t, err)
	assert.NotNil(t, leads)
	assert.Empty(t, leads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_UpdateLeadStage_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := contextWithTestTenant()
	changedAt := utils.Now()

	updatePattern := `UPDATE "leads" SET "last_stage_changed_at"=$1,"stage"=$2,"updated_at"=$3,"version"=version + $4 WHERE id = $5 AND company_id = $6 AND version = $7`
	mock.ExpectExec(updatePattern).
		WithArgs(changedAt, string(model.StageQualified), AnyTime{}, 1, "lead-stage-1", testCompanyID, int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateLeadStage(ctx, "lead-stage-1", 2, model.StageQualified, changedAt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_UpdateLeadStage_StaleVersionConflict(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := contextWithTestTenant()
	changedAt := utils.Now()

	updatePattern := `UPDATE "leads" SET "last_stage_changed_at"=$1,"stage"=$2,"updated_at"=$3,"version"=version + $4 WHERE id = $5 AND company_id = $6 AND version = $7`
	mock.ExpectExec(updatePattern).
		WithArgs(changedAt, string(model.StageAtRiskLead), AnyTime{}, 1, "lead-stage-stale", testCompanyID, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateLeadStage(ctx, "lead-stage-stale", 1, model.StageAtRiskLead, changedAt)
	assert.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_TouchLeadActivity_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := contextWithTestTenant()
	activityAt := utils.Now()

	updatePattern := `UPDATE "leads" SET "last_activity_at"=$1,"updated_at"=$2 WHERE id = $3 AND company_id = $4 AND (last_activity_at IS NULL OR last_activity_at < $5)`
	mock.ExpectExec(updatePattern).
		WithArgs(activityAt, AnyTime{}, "lead-touch-1", testCompanyID, activityAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.TouchLeadActivity(ctx, "lead-touch-1", activityAt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_TouchLeadActivity_OlderInstantIsNoOp(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := contextWithTestTenant()
	activityAt := utils.Now().Add(-24 * time.Hour)

	updatePattern := `UPDATE "leads" SET "last_activity_at"=$1,"updated_at"=$2 WHERE id = $3 AND company_id = $4 AND (last_activity_at IS NULL OR last_activity_at < $5)`
	mock.ExpectExec(updatePattern).
		WithArgs(activityAt, AnyTime{}, "lead-touch-old", testCompanyID, activityAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.TouchLeadActivity(ctx, "lead-touch-old", activityAt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
