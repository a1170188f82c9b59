package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"claimdesk/internal/identity/models"
	"claimdesk/internal/platform/postgres"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
	"claimdesk/pkg/platform/tx"
)

// PostgresStore persists users in the users table of the partition schema.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, email, username, phone_number, first_name, last_name, password_hash, role, scope, tenant_id, created_at`

func (s *PostgresStore) Create(ctx context.Context, p id.Partition, u *models.User) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		postgres.Table(p, "users"), userColumns)
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(u.ID), u.Email, u.Username, u.Phone, u.FirstName, u.LastName,
		u.PasswordHash, string(u.Role), string(u.Scope), nullTenant(u.TenantID), u.CreatedAt,
	)
	if err != nil {
		if constraint, ok := postgres.UniqueViolation(err); ok {
			return duplicateFor(constraint)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, p id.Partition, userID id.UserID) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, userColumns, postgres.Table(p, "users"))
	return s.scanOne(ctx, query, uuid.UUID(userID))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, p id.Partition, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE email = $1`, userColumns, postgres.Table(p, "users"))
	return s.scanOne(ctx, query, email)
}

// Delete removes the user. Claims assigned to the user are released by the
// assigned_to foreign key (ON DELETE SET NULL).
func (s *PostgresStore) Delete(ctx context.Context, p id.Partition, userID id.UserID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, postgres.Table(p, "users"))
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) scanOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var (
		u        models.User
		userID   uuid.UUID
		role     string
		scope    string
		tenantID uuid.NullUUID
	)
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, query, arg).Scan(
		&userID, &u.Email, &u.Username, &u.Phone, &u.FirstName, &u.LastName,
		&u.PasswordHash, &role, &scope, &tenantID, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.ID = id.UserID(userID)
	u.Role = models.Role(role)
	u.Scope = models.Scope(scope)
	if tenantID.Valid {
		u.TenantID = id.TenantID(tenantID.UUID)
	}
	return &u, nil
}

func nullTenant(t id.TenantID) uuid.NullUUID {
	if t.IsNil() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(t), Valid: true}
}

func duplicateFor(constraint string) error {
	switch constraint {
	case "users_email_key":
		return ErrEmailTaken
	case "users_username_key":
		return ErrUsernameTaken
	case "users_phone_number_key":
		return ErrPhoneTaken
	}
	return fmt.Errorf("user %s: %w", constraint, sentinel.ErrAlreadyUsed)
}
