package claim

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimdesk/internal/claims/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

var claimRowColumns = []string{"id", "claim_number", "tenant_id", "policy_id", "title", "description", "status",
	"claim_amount_cents", "approved_amount_cents", "assigned_to", "incident_date", "created_at", "updated_at"}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	p := id.Partition{TenantID: id.NewTenantID(), Schema: "acme"}
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	t.Run("create returns the serial id", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "acme"."claims"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

		c := &models.Claim{Number: "CLM-0000-0000-0007", TenantID: p.TenantID, PolicyID: 1, Status: models.StatusReported}
		require.NoError(t, NewPostgres(db).Create(ctx, p, c))
		assert.Equal(t, id.ClaimID(7), c.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate claim number", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "acme"."claims"`)).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "claims_claim_number_key"})

		err = NewPostgres(db).Create(ctx, p, &models.Claim{Number: "CLM-0000-0000-0007"})
		assert.ErrorIs(t, err, ErrNumberTaken)
	})

	t.Run("find scans nullable columns", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		assignee := uuid.New()
		rows := sqlmock.NewRows(claimRowColumns).
			AddRow(int64(7), "CLM-0000-0000-0007", uuid.UUID(p.TenantID).String(), int64(1), "Hail", "", "assigned",
				int64(125000), nil, assignee.String(), now, now, now)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM "acme"."claims" WHERE id = $1`)).
			WithArgs(int64(7)).
			WillReturnRows(rows)

		c, err := NewPostgres(db).FindByID(ctx, p, 7)
		require.NoError(t, err)
		assert.Equal(t, models.StatusAssigned, c.Status)
		require.NotNil(t, c.ClaimAmount)
		assert.Equal(t, id.Amount(125000), *c.ClaimAmount)
		assert.Nil(t, c.ApprovedAmount)
		require.NotNil(t, c.AssignedTo)
		assert.Equal(t, id.UserID(assignee), *c.AssignedTo)
	})

	t.Run("find of a missing claim", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`FROM "acme"."claims" WHERE id = $1`)).
			WillReturnError(sql.ErrNoRows)

		_, err = NewPostgres(db).FindByID(ctx, p, 7)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("status update lost the race", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "acme"."claims" SET status = $3`)).
			WithArgs(int64(7), "reported", "assigned", now).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM "acme"."claims" WHERE id = $1`)).
			WillReturnRows(sqlmock.NewRows(claimRowColumns).
				AddRow(int64(7), "CLM-0000-0000-0007", uuid.UUID(p.TenantID).String(), int64(1), "Hail", "", "denied",
					nil, nil, nil, now, now, now))

		err = NewPostgres(db).UpdateStatus(ctx, p, 7, models.StatusReported, models.StatusAssigned, now)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("edit guarded by the observed status", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		c := &models.Claim{ID: 7, Title: "Hail", Status: models.StatusReported, IncidentDate: now, UpdatedAt: now}
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "acme"."claims" SET title = $2`)).
			WithArgs(int64(7), "Hail", "", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), now, now, "reported").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM "acme"."claims" WHERE id = $1`)).
			WillReturnRows(sqlmock.NewRows(claimRowColumns).
				AddRow(int64(7), "CLM-0000-0000-0007", uuid.UUID(p.TenantID).String(), int64(1), "Hail", "", "under_review",
					nil, nil, nil, now, now, now))

		err = NewPostgres(db).Update(ctx, p, c)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("note on a deleted claim", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "acme"."claim_notes"`)).
			WillReturnError(&pgconn.PgError{Code: "23503"})

		err = NewPostgres(db).AddNote(ctx, p, &models.Note{ClaimID: 7, Text: "x"})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("release assignee", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		userID := id.NewUserID()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "acme"."claims" SET assigned_to = NULL WHERE assigned_to = $1`)).
			WithArgs(uuid.UUID(userID)).
			WillReturnResult(sqlmock.NewResult(0, 2))

		require.NoError(t, NewPostgres(db).ReleaseAssignee(ctx, p, userID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete document of another partition", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "globex"."claim_documents" WHERE id = $1`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = NewPostgres(db).DeleteDocument(ctx, id.Partition{Schema: "globex"}, 3)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
