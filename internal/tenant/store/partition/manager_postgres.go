package partition

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"claimdesk/internal/platform/postgres"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/tx"
)

// Postgres maps a partition to a schema holding the tenant tables.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Create runs CREATE SCHEMA and the tenant DDL in one transaction, so a
// failure leaves no half-built schema behind.
func (m *Postgres) Create(ctx context.Context, schema string) error {
	if id.ReservedSchemaName(schema) {
		return ErrExists
	}
	ddl, err := postgres.TenantDDL(schema)
	if err != nil {
		return err
	}
	return tx.NewPostgresRunner(m.db).RunInTx(ctx, func(ctx context.Context) error {
		conn := tx.Conn(ctx, m.db)
		if _, err := conn.ExecContext(ctx, "CREATE SCHEMA "+pq.QuoteIdentifier(schema)); err != nil {
			if postgres.DuplicateSchema(err) {
				return ErrExists
			}
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := conn.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create tenant tables: %w", err)
		}
		return nil
	})
}

func (m *Postgres) Drop(ctx context.Context, schema string) error {
	if !id.ValidSchemaName(schema) || id.ReservedSchemaName(schema) {
		return fmt.Errorf("refusing to drop schema %q", schema)
	}
	if _, err := tx.Conn(ctx, m.db).ExecContext(ctx, "DROP SCHEMA IF EXISTS "+pq.QuoteIdentifier(schema)+" CASCADE"); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	return nil
}

func (m *Postgres) Exists(ctx context.Context, schema string) (bool, error) {
	var exists bool
	err := tx.Conn(ctx, m.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`, schema).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check schema: %w", err)
	}
	return exists, nil
}
