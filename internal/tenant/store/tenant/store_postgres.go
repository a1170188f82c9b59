package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"claimdesk/internal/platform/postgres"
	"claimdesk/internal/tenant/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
	"claimdesk/pkg/platform/tx"
)

// PostgresStore persists tenants and domains in the public schema.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const tenantColumns = `t.id, t.name, t.code, t.business_type, t.contact_email, t.contact_phone, t.linkedin,
	t.address, t.default_currency, t.subscription_plan, t.schema_name, t.status, t.created_at`

// CreateWithDomain inserts the tenant and its primary domain in one
// transaction. It joins the caller's transaction when one is open.
func (s *PostgresStore) CreateWithDomain(ctx context.Context, t *models.Tenant, d *models.Domain) error {
	return tx.NewPostgresRunner(s.db).RunInTx(ctx, func(ctx context.Context) error {
		conn := tx.Conn(ctx, s.db)
		_, err := conn.ExecContext(ctx, `
			INSERT INTO tenants (id, name, code, business_type, contact_email, contact_phone, linkedin,
				address, default_currency, subscription_plan, schema_name, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			uuid.UUID(t.ID), t.Name, t.Code, string(t.BusinessType), t.ContactEmail, t.ContactPhone,
			t.LinkedIn, t.Address, t.DefaultCurrency, string(t.SubscriptionPlan), t.Schema,
			string(t.Status), t.CreatedAt,
		)
		if err != nil {
			return classify(err, "insert tenant")
		}
		_, err = conn.ExecContext(ctx,
			`INSERT INTO domains (hostname, tenant_id, is_primary) VALUES ($1, $2, $3)`,
			d.Hostname, uuid.UUID(d.TenantID), d.IsPrimary,
		)
		if err != nil {
			return classify(err, "insert domain")
		}
		return nil
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants t WHERE t.id = $1`
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(tenantID))
	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tenant not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) FindActiveByHost(ctx context.Context, host string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + `
		FROM domains d JOIN tenants t ON t.id = d.tenant_id
		WHERE d.hostname = $1 AND t.status = 'active'`
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, query, host)
	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("domain %s: %w", host, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find tenant by host: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) DomainExists(ctx context.Context, host string) (bool, error) {
	var exists bool
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM domains WHERE hostname = $1)`, host).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check domain: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) NameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE LOWER(name) = LOWER($1))`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check tenant name: %w", err)
	}
	return exists, nil
}

// Activate flips a provisioning tenant to active with a compare-and-set.
func (s *PostgresStore) Activate(ctx context.Context, tenantID id.TenantID) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE tenants SET status = 'active' WHERE id = $1 AND status = 'provisioning'`,
		uuid.UUID(tenantID))
	if err != nil {
		return fmt.Errorf("activate tenant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("activate tenant: %w", err)
	}
	if n == 0 {
		if _, err := s.FindByID(ctx, tenantID); err != nil {
			return err
		}
		return fmt.Errorf("activate tenant: %w", sentinel.ErrInvalidState)
	}
	return nil
}

// Delete removes the tenant row; domains go with it through ON DELETE CASCADE.
func (s *PostgresStore) Delete(ctx context.Context, tenantID id.TenantID) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM tenants WHERE id = $1`, uuid.UUID(tenantID))
	if err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("tenant not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListStale(ctx context.Context, cutoff time.Time) ([]*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants t WHERE t.status = 'provisioning' AND t.created_at < $1`
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale tenants: %w", err)
	}
	defer rows.Close()
	var out []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTenant(row scanner) (*models.Tenant, error) {
	var (
		t            models.Tenant
		tenantID     uuid.UUID
		businessType string
		plan         string
		status       string
	)
	err := row.Scan(&tenantID, &t.Name, &t.Code, &businessType, &t.ContactEmail, &t.ContactPhone,
		&t.LinkedIn, &t.Address, &t.DefaultCurrency, &plan, &t.Schema, &status, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.ID = id.TenantID(tenantID)
	t.BusinessType = models.BusinessType(businessType)
	t.SubscriptionPlan = models.Plan(plan)
	t.Status = models.TenantStatus(status)
	return &t, nil
}

func classify(err error, op string) error {
	constraint, ok := postgres.UniqueViolation(err)
	if !ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch constraint {
	case "tenants_name_key", "tenants_name_lower_key":
		return ErrNameTaken
	case "tenants_code_key":
		return ErrCodeTaken
	case "tenants_schema_name_key":
		return ErrPartitionTaken
	case "domains_pkey":
		return ErrDomainTaken
	}
	return fmt.Errorf("%s %s: %w", op, constraint, sentinel.ErrAlreadyUsed)
}
