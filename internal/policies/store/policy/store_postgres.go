package policy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"claimdesk/internal/platform/postgres"
	"claimdesk/internal/policies/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/tx"
)

// PostgresStore persists policies in the policies table of the partition
// schema.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const policyColumns = `id, policy_number, tenant_id, holder_name, holder_email, policy_type,
	coverage_cents, premium_cents, start_date, end_date, is_active, created_at`

func (s *PostgresStore) Create(ctx context.Context, p id.Partition, pol *models.Policy) error {
	query := fmt.Sprintf(`INSERT INTO %s (policy_number, tenant_id, holder_name, holder_email, policy_type,
		coverage_cents, premium_cents, start_date, end_date, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`, postgres.Table(p, "policies"))
	var policyID int64
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, query,
		pol.Number, uuid.UUID(pol.TenantID), pol.HolderName, pol.HolderEmail, string(pol.Type),
		int64(pol.CoverageAmount), int64(pol.Premium), pol.StartDate, pol.EndDate, pol.Active, pol.CreatedAt,
	).Scan(&policyID)
	if err != nil {
		if constraint, ok := postgres.UniqueViolation(err); ok && constraint == "policies_policy_number_key" {
			return ErrNumberTaken
		}
		return fmt.Errorf("create policy: %w", err)
	}
	pol.ID = id.PolicyID(policyID)
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, p id.Partition, policyID id.PolicyID) (*models.Policy, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, policyColumns, postgres.Table(p, "policies"))
	pol, err := scanPolicy(tx.Conn(ctx, s.db).QueryRowContext(ctx, query, int64(policyID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errPolicyNotFound
		}
		return nil, fmt.Errorf("find policy: %w", err)
	}
	return pol, nil
}

func (s *PostgresStore) List(ctx context.Context, p id.Partition) ([]*models.Policy, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id`, policyColumns, postgres.Table(p, "policies"))
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()
	var out []*models.Policy
	for rows.Next() {
		pol, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		out = append(out, pol)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, p id.Partition, pol *models.Policy) error {
	query := fmt.Sprintf(`UPDATE %s SET holder_name = $2, holder_email = $3, policy_type = $4,
		coverage_cents = $5, premium_cents = $6, start_date = $7, end_date = $8, is_active = $9
		WHERE id = $1`, postgres.Table(p, "policies"))
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		int64(pol.ID), pol.HolderName, pol.HolderEmail, string(pol.Type),
		int64(pol.CoverageAmount), int64(pol.Premium), pol.StartDate, pol.EndDate, pol.Active,
	)
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	return expectOne(res)
}

func (s *PostgresStore) Delete(ctx context.Context, p id.Partition, policyID id.PolicyID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, postgres.Table(p, "policies"))
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, int64(policyID))
	if err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return errPolicyNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row scanner) (*models.Policy, error) {
	var (
		pol               models.Policy
		policyID          int64
		tenantID          uuid.UUID
		policyType        string
		coverage, premium int64
	)
	err := row.Scan(&policyID, &pol.Number, &tenantID, &pol.HolderName, &pol.HolderEmail, &policyType,
		&coverage, &premium, &pol.StartDate, &pol.EndDate, &pol.Active, &pol.CreatedAt)
	if err != nil {
		return nil, err
	}
	pol.ID = id.PolicyID(policyID)
	pol.TenantID = id.TenantID(tenantID)
	pol.Type = models.PolicyType(policyType)
	pol.CoverageAmount = id.Amount(coverage)
	pol.Premium = id.Amount(premium)
	return &pol, nil
}
