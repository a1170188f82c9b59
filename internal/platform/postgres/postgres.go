// Package postgres opens the database, applies the platform schema and
// renders per-tenant schema DDL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"claimdesk/internal/platform/config"
	id "claimdesk/pkg/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeDuplicateSchema     = "42P06"
)

// Open connects through the pgx stdlib driver and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate applies the platform tables in the public schema. Statements are
// idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	ddl, err := migrations.ReadFile("migrations/public.sql")
	if err != nil {
		return fmt.Errorf("read public migration: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(ddl)); err != nil {
		return fmt.Errorf("apply public migration: %w", err)
	}
	return nil
}

// TenantDDL renders the tables of one tenant partition. The schema name is
// validated and quoted; it is never interpolated raw.
func TenantDDL(schema string) (string, error) {
	if !id.ValidSchemaName(schema) {
		return "", fmt.Errorf("invalid schema name %q", schema)
	}
	ddl, err := migrations.ReadFile("migrations/tenant.sql")
	if err != nil {
		return "", fmt.Errorf("read tenant migration: %w", err)
	}
	return strings.ReplaceAll(string(ddl), "{{schema}}", pq.QuoteIdentifier(schema)), nil
}

// Table returns the schema-qualified, quoted name of a table inside p.
func Table(p id.Partition, table string) string {
	return pq.QuoteIdentifier(p.Schema) + "." + pq.QuoteIdentifier(table)
}

// UniqueViolation reports whether err is a unique-constraint violation and
// returns the constraint name.
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// DuplicateSchema reports whether err is CREATE SCHEMA on an existing name.
func DuplicateSchema(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeDuplicateSchema
}

// ForeignKeyViolation reports whether err is a foreign-key violation, e.g. a
// note inserted for a claim that no longer exists.
func ForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}
