package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "claimdesk/pkg/domain"
	audit "claimdesk/pkg/platform/audit"
)

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("append derives the category from the action", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		tenantID := id.NewTenantID()
		now := time.Now()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_events")).
			WithArgs("user_deleted", "compliance", "", tenantID.String(), "jane", "", "req-1", now).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err = New(db).Append(ctx, audit.Event{
			Action:    string(audit.EventUserDeleted),
			TenantID:  tenantID,
			Subject:   "jane",
			RequestID: "req-1",
			Timestamp: now,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list by tenant scans rows", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		tenantID := id.NewTenantID()
		actorID := id.NewUserID()
		rows := sqlmock.NewRows([]string{"action", "category", "actor_id", "tenant_id", "subject", "reason", "request_id", "created_at"}).
			AddRow("claim_created", "operations", actorID.String(), tenantID.String(), "CLM-0001-0002-0003", "", "req", time.Now())
		mock.ExpectQuery(regexp.QuoteMeta("FROM audit_events")).
			WithArgs(tenantID.String()).
			WillReturnRows(rows)

		events, err := New(db).ListByTenant(ctx, tenantID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, actorID, events[0].ActorID)
		assert.Equal(t, tenantID, events[0].TenantID)
		assert.Equal(t, audit.CategoryOperations, events[0].Category)
	})
}
