package claim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"claimdesk/internal/claims/models"
	"claimdesk/internal/platform/postgres"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/tx"
)

// PostgresStore persists claims in the claims, claim_notes and
// claim_documents tables of the partition schema.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const claimColumns = `id, claim_number, tenant_id, policy_id, title, description, status,
	claim_amount_cents, approved_amount_cents, assigned_to, incident_date, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) Create(ctx context.Context, p id.Partition, c *models.Claim) error {
	query := fmt.Sprintf(`INSERT INTO %s (claim_number, tenant_id, policy_id, title, description, status,
		claim_amount_cents, approved_amount_cents, assigned_to, incident_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`, postgres.Table(p, "claims"))
	var claimID int64
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, query,
		c.Number, uuid.UUID(c.TenantID), int64(c.PolicyID), c.Title, c.Description, string(c.Status),
		nullAmount(c.ClaimAmount), nullAmount(c.ApprovedAmount), nullUser(c.AssignedTo),
		c.IncidentDate, c.CreatedAt, c.UpdatedAt,
	).Scan(&claimID)
	if err != nil {
		if constraint, ok := postgres.UniqueViolation(err); ok && constraint == "claims_claim_number_key" {
			return ErrNumberTaken
		}
		return fmt.Errorf("create claim: %w", err)
	}
	c.ID = id.ClaimID(claimID)
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, p id.Partition, claimID id.ClaimID) (*models.Claim, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, claimColumns, postgres.Table(p, "claims"))
	c, err := scanClaim(tx.Conn(ctx, s.db).QueryRowContext(ctx, query, int64(claimID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errClaimNotFound
		}
		return nil, fmt.Errorf("find claim: %w", err)
	}
	return c, nil
}

// Update writes the editable fields if the claim is still in c.Status. The
// status is changed by UpdateStatus only.
func (s *PostgresStore) Update(ctx context.Context, p id.Partition, c *models.Claim) error {
	query := fmt.Sprintf(`UPDATE %s SET title = $2, description = $3, claim_amount_cents = $4,
		approved_amount_cents = $5, assigned_to = $6, incident_date = $7, updated_at = $8
		WHERE id = $1 AND status = $9`, postgres.Table(p, "claims"))
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		int64(c.ID), c.Title, c.Description, nullAmount(c.ClaimAmount), nullAmount(c.ApprovedAmount),
		nullUser(c.AssignedTo), c.IncidentDate, c.UpdatedAt, string(c.Status),
	)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	return s.casResult(ctx, p, c.ID, res)
}

// UpdateStatus is a compare-and-set on the status column.
func (s *PostgresStore) UpdateStatus(ctx context.Context, p id.Partition, claimID id.ClaimID, from, to models.Status, now time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		postgres.Table(p, "claims"))
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, int64(claimID), string(from), string(to), now)
	if err != nil {
		return fmt.Errorf("update claim status: %w", err)
	}
	return s.casResult(ctx, p, claimID, res)
}

// casResult tells a missing claim apart from one whose status moved on.
func (s *PostgresStore) casResult(ctx context.Context, p id.Partition, claimID id.ClaimID, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.FindByID(ctx, p, claimID); err != nil {
		return err
	}
	return errStatusChanged
}

// Delete removes the claim; notes and documents follow by ON DELETE CASCADE.
func (s *PostgresStore) Delete(ctx context.Context, p id.Partition, claimID id.ClaimID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, postgres.Table(p, "claims"))
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, int64(claimID))
	if err != nil {
		return fmt.Errorf("delete claim: %w", err)
	}
	return expectOne(res, errClaimNotFound)
}

func (s *PostgresStore) ListByPolicy(ctx context.Context, p id.Partition, policyID id.PolicyID) ([]*models.Claim, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE policy_id = $1 ORDER BY id`, claimColumns, postgres.Table(p, "claims"))
	return s.listClaims(ctx, query, int64(policyID))
}

func (s *PostgresStore) ListByAssignee(ctx context.Context, p id.Partition, userID id.UserID) ([]*models.Claim, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE assigned_to = $1 ORDER BY id`, claimColumns, postgres.Table(p, "claims"))
	return s.listClaims(ctx, query, uuid.UUID(userID))
}

func (s *PostgresStore) listClaims(ctx context.Context, query string, arg any) ([]*models.Claim, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()
	var out []*models.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReleaseAssignee clears assigned_to on the user's claims. The foreign key
// does the same on user deletion; this keeps the memory and SQL stores
// interchangeable behind the identity service.
func (s *PostgresStore) ReleaseAssignee(ctx context.Context, p id.Partition, userID id.UserID) error {
	query := fmt.Sprintf(`UPDATE %s SET assigned_to = NULL WHERE assigned_to = $1`, postgres.Table(p, "claims"))
	if _, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, uuid.UUID(userID)); err != nil {
		return fmt.Errorf("release assignee: %w", err)
	}
	return nil
}

const noteColumns = `id, claim_id, author_id, body, is_internal, created_at, updated_at`

func (s *PostgresStore) AddNote(ctx context.Context, p id.Partition, n *models.Note) error {
	query := fmt.Sprintf(`INSERT INTO %s (claim_id, author_id, body, is_internal, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`, postgres.Table(p, "claim_notes"))
	var noteID int64
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, query,
		int64(n.ClaimID), nullUserID(n.AuthorID), n.Text, n.Internal, n.CreatedAt, n.UpdatedAt,
	).Scan(&noteID)
	if err != nil {
		if postgres.ForeignKeyViolation(err) {
			return errClaimNotFound
		}
		return fmt.Errorf("add note: %w", err)
	}
	n.ID = id.NoteID(noteID)
	return nil
}

func (s *PostgresStore) FindNote(ctx context.Context, p id.Partition, noteID id.NoteID) (*models.Note, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, noteColumns, postgres.Table(p, "claim_notes"))
	n, err := scanNote(tx.Conn(ctx, s.db).QueryRowContext(ctx, query, int64(noteID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNoteNotFound
		}
		return nil, fmt.Errorf("find note: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) UpdateNote(ctx context.Context, p id.Partition, n *models.Note) error {
	query := fmt.Sprintf(`UPDATE %s SET body = $2, is_internal = $3, updated_at = $4 WHERE id = $1`,
		postgres.Table(p, "claim_notes"))
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, int64(n.ID), n.Text, n.Internal, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	return expectOne(res, errNoteNotFound)
}

func (s *PostgresStore) DeleteNote(ctx context.Context, p id.Partition, noteID id.NoteID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, postgres.Table(p, "claim_notes"))
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, int64(noteID))
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return expectOne(res, errNoteNotFound)
}

func (s *PostgresStore) ListNotes(ctx context.Context, p id.Partition, claimID id.ClaimID) ([]*models.Note, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE claim_id = $1 ORDER BY id`, noteColumns, postgres.Table(p, "claim_notes"))
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, int64(claimID))
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()
	var out []*models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

const documentColumns = `id, claim_id, document_type, uploaded_by, file_ref, description, uploaded_at`

func (s *PostgresStore) AddDocument(ctx context.Context, p id.Partition, d *models.Document) error {
	query := fmt.Sprintf(`INSERT INTO %s (claim_id, document_type, uploaded_by, file_ref, description, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`, postgres.Table(p, "claim_documents"))
	var docID int64
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, query,
		int64(d.ClaimID), string(d.Type), nullUserID(d.UploadedBy), d.FileRef, d.Description, d.UploadedAt,
	).Scan(&docID)
	if err != nil {
		if postgres.ForeignKeyViolation(err) {
			return errClaimNotFound
		}
		return fmt.Errorf("add document: %w", err)
	}
	d.ID = id.DocumentID(docID)
	return nil
}

func (s *PostgresStore) FindDocument(ctx context.Context, p id.Partition, docID id.DocumentID) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, documentColumns, postgres.Table(p, "claim_documents"))
	d, err := scanDocument(tx.Conn(ctx, s.db).QueryRowContext(ctx, query, int64(docID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errDocumentNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, p id.Partition, docID id.DocumentID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, postgres.Table(p, "claim_documents"))
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, int64(docID))
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return expectOne(res, errDocumentNotFound)
}

func (s *PostgresStore) ListDocuments(ctx context.Context, p id.Partition, claimID id.ClaimID) ([]*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE claim_id = $1 ORDER BY id`, documentColumns, postgres.Table(p, "claim_documents"))
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, int64(claimID))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	var out []*models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanClaim(row scanner) (*models.Claim, error) {
	var (
		c                 models.Claim
		claimID, policyID int64
		tenantID          uuid.UUID
		status            string
		claimAmount       sql.NullInt64
		approvedAmount    sql.NullInt64
		assignedTo        uuid.NullUUID
	)
	err := row.Scan(&claimID, &c.Number, &tenantID, &policyID, &c.Title, &c.Description, &status,
		&claimAmount, &approvedAmount, &assignedTo, &c.IncidentDate, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.ID = id.ClaimID(claimID)
	c.PolicyID = id.PolicyID(policyID)
	c.TenantID = id.TenantID(tenantID)
	c.Status = models.Status(status)
	c.ClaimAmount = amountFrom(claimAmount)
	c.ApprovedAmount = amountFrom(approvedAmount)
	if assignedTo.Valid {
		u := id.UserID(assignedTo.UUID)
		c.AssignedTo = &u
	}
	return &c, nil
}

func scanNote(row scanner) (*models.Note, error) {
	var (
		n                models.Note
		noteID, claimRef int64
		author           uuid.NullUUID
	)
	if err := row.Scan(&noteID, &claimRef, &author, &n.Text, &n.Internal, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.ID = id.NoteID(noteID)
	n.ClaimID = id.ClaimID(claimRef)
	if author.Valid {
		n.AuthorID = id.UserID(author.UUID)
	}
	return &n, nil
}

func scanDocument(row scanner) (*models.Document, error) {
	var (
		d               models.Document
		docID, claimRef int64
		docType         string
		uploader        uuid.NullUUID
	)
	if err := row.Scan(&docID, &claimRef, &docType, &uploader, &d.FileRef, &d.Description, &d.UploadedAt); err != nil {
		return nil, err
	}
	d.ID = id.DocumentID(docID)
	d.ClaimID = id.ClaimID(claimRef)
	d.Type = models.DocumentType(docType)
	if uploader.Valid {
		d.UploadedBy = id.UserID(uploader.UUID)
	}
	return &d, nil
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullAmount(a *id.Amount) sql.NullInt64 {
	if a == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*a), Valid: true}
}

func amountFrom(n sql.NullInt64) *id.Amount {
	if !n.Valid {
		return nil
	}
	a := id.Amount(n.Int64)
	return &a
}

func nullUser(u *id.UserID) uuid.NullUUID {
	if u == nil {
		return uuid.NullUUID{}
	}
	return nullUserID(*u)
}

func nullUserID(u id.UserID) uuid.NullUUID {
	if u.IsNil() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(u), Valid: true}
}
