package registration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"claimdesk/internal/platform/postgres"
	"claimdesk/internal/tenant/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
	"claimdesk/pkg/platform/tx"
)

// PostgresStore persists requests in public.registration_requests.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `id, company_name, business_type, contact_email, contact_phone, linkedin, address,
	default_currency, subscription_plan, requested_domain, admin_email, admin_username, admin_phone,
	admin_first_name, admin_last_name, admin_password_hash, status, created_at, approval_started_at`

// LockDomain takes a transaction-scoped advisory lock on host. Submissions
// for the same hostname serialize on it until their transaction ends.
func (s *PostgresStore) LockDomain(ctx context.Context, host string) error {
	if _, open := tx.From(ctx); !open {
		return errors.New("lock domain: no open transaction")
	}
	if _, err := tx.Conn(ctx, s.db).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, host); err != nil {
		return fmt.Errorf("lock domain: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, r *models.RegistrationRequest) error {
	var regID int64
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO registration_requests (company_name, business_type, contact_email, contact_phone,
			linkedin, address, default_currency, subscription_plan, requested_domain, admin_email,
			admin_username, admin_phone, admin_first_name, admin_last_name, admin_password_hash,
			status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`,
		r.CompanyName, string(r.BusinessType), r.ContactEmail, r.ContactPhone, r.LinkedIn, r.Address,
		r.DefaultCurrency, string(r.SubscriptionPlan), r.RequestedDomain, r.AdminEmail, r.AdminUsername,
		r.AdminPhone, r.AdminFirstName, r.AdminLastName, r.AdminPasswordHash, string(r.Status), r.CreatedAt,
	).Scan(&regID)
	if err != nil {
		if constraint, ok := postgres.UniqueViolation(err); ok && constraint == "registration_requests_domain_key" {
			return ErrDomainPending
		}
		return fmt.Errorf("create registration request: %w", err)
	}
	r.ID = id.RegistrationID(regID)
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, regID id.RegistrationID) (*models.RegistrationRequest, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM registration_requests WHERE id = $1`, int64(regID))
	r, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("registration request not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find registration request: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) DomainPending(ctx context.Context, host string) (bool, error) {
	var exists bool
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM registration_requests WHERE requested_domain = $1)`, host).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check requested domain: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.RegistrationRequest, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+requestColumns+` FROM registration_requests ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list registration requests: %w", err)
	}
	defer rows.Close()
	out := []*models.RegistrationRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// BeginApproval is a compare-and-set from pending to approving.
func (s *PostgresStore) BeginApproval(ctx context.Context, regID id.RegistrationID, now time.Time) (*models.RegistrationRequest, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, `
		UPDATE registration_requests SET status = 'approving', approval_started_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING `+requestColumns, int64(regID), now)
	r, err := scanRequest(row)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("begin approval: %w", err)
	}
	if _, err := s.FindByID(ctx, regID); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("begin approval: %w", sentinel.ErrConflict)
}

func (s *PostgresStore) ResetToPending(ctx context.Context, regID id.RegistrationID) error {
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE registration_requests SET status = 'pending', approval_started_at = NULL WHERE id = $1`,
		int64(regID))
	if err != nil {
		return fmt.Errorf("reset registration request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, regID id.RegistrationID) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM registration_requests WHERE id = $1`, int64(regID))
	if err != nil {
		return fmt.Errorf("delete registration request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete registration request: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("registration request not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ResetStale(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE registration_requests SET status = 'pending', approval_started_at = NULL
		WHERE status = 'approving' AND approval_started_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reset stale registration requests: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset stale registration requests: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*models.RegistrationRequest, error) {
	var (
		r            models.RegistrationRequest
		regID        int64
		businessType string
		plan         string
		status       string
		started      sql.NullTime
	)
	err := row.Scan(&regID, &r.CompanyName, &businessType, &r.ContactEmail, &r.ContactPhone, &r.LinkedIn,
		&r.Address, &r.DefaultCurrency, &plan, &r.RequestedDomain, &r.AdminEmail, &r.AdminUsername,
		&r.AdminPhone, &r.AdminFirstName, &r.AdminLastName, &r.AdminPasswordHash, &status, &r.CreatedAt, &started)
	if err != nil {
		return nil, err
	}
	r.ID = id.RegistrationID(regID)
	r.BusinessType = models.BusinessType(businessType)
	r.SubscriptionPlan = models.Plan(plan)
	r.Status = models.RegistrationStatus(status)
	if started.Valid {
		t := started.Time
		r.ApprovalStartedAt = &t
	}
	return &r, nil
}
