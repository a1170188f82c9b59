package tenant

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimdesk/internal/tenant/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), mock
}

func TestPostgresStore_CreateWithDomain(t *testing.T) {
	ctx := context.Background()
	tenant := &models.Tenant{
		ID: id.NewTenantID(), Name: "Acme", Code: "ACM123456", BusinessType: models.BusinessAuto,
		DefaultCurrency: "USD", SubscriptionPlan: models.PlanBasic, Schema: "acme",
		Status: models.TenantStatusProvisioning, CreatedAt: time.Now(),
	}
	domain := &models.Domain{Hostname: "acme.localhost", TenantID: tenant.ID, IsPrimary: true}

	t.Run("inserts tenant and domain in one transaction", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tenants")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO domains")).
			WithArgs("acme.localhost", sqlmock.AnyArg(), true).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, store.CreateWithDomain(ctx, tenant, domain))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps the domain primary key to ErrDomainTaken and rolls back", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tenants")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO domains")).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "domains_pkey"})
		mock.ExpectRollback()

		err := store.CreateWithDomain(ctx, tenant, domain)
		require.ErrorIs(t, err, ErrDomainTaken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps the schema constraint to ErrPartitionTaken", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tenants")).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "tenants_schema_name_key"})
		mock.ExpectRollback()

		require.ErrorIs(t, store.CreateWithDomain(ctx, tenant, domain), ErrPartitionTaken)
	})
}

func TestPostgresStore_FindActiveByHost(t *testing.T) {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	columns := []string{"id", "name", "code", "business_type", "contact_email", "contact_phone", "linkedin",
		"address", "default_currency", "subscription_plan", "schema_name", "status", "created_at"}

	t.Run("scans the tenant", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM domains d JOIN tenants t")).
			WithArgs("acme.localhost").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				tenantID.String(), "Acme", "ACM123456", "auto", "ops@acme.test", "555", "", "",
				"USD", "basic", "acme", "active", time.Now()))

		got, err := store.FindActiveByHost(ctx, "acme.localhost")
		require.NoError(t, err)
		assert.Equal(t, tenantID, got.ID)
		assert.Equal(t, "acme", got.Schema)
		assert.True(t, got.IsActive())
	})

	t.Run("unknown host is ErrNotFound", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM domains d JOIN tenants t")).
			WillReturnRows(sqlmock.NewRows(columns))

		_, err := store.FindActiveByHost(ctx, "nobody.localhost")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tenants")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Delete(context.Background(), id.NewTenantID())
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}
