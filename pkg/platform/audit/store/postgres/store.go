package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "claimdesk/pkg/domain"
	audit "claimdesk/pkg/platform/audit"
	"claimdesk/pkg/platform/tx"
)

// Store implements audit.Store on the public audit_events table. Appends
// join an open transaction so an event commits with the change it records.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}
	query := `
		INSERT INTO audit_events (action, category, actor_id, tenant_id, subject, reason, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		event.Action,
		string(category),
		optionalID(uuid.UUID(event.ActorID)),
		optionalID(uuid.UUID(event.TenantID)),
		event.Subject,
		event.Reason,
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]audit.Event, error) {
	query := `
		SELECT action, category, actor_id, tenant_id, subject, reason, request_id, created_at
		FROM audit_events
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT action, category, actor_id, tenant_id, subject, reason, request_id, created_at
		FROM audit_events
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			e                 audit.Event
			category          string
			actorID, tenantID string
		)
		if err := rows.Scan(&e.Action, &category, &actorID, &tenantID, &e.Subject, &e.Reason, &e.RequestID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		if u, err := uuid.Parse(actorID); err == nil {
			e.ActorID = id.UserID(u)
		}
		if u, err := uuid.Parse(tenantID); err == nil {
			e.TenantID = id.TenantID(u)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func optionalID(u uuid.UUID) string {
	if u == uuid.Nil {
		return ""
	}
	return u.String()
}
