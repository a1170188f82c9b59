// Package service runs the claim lifecycle for one partition at a time:
// creation under a policy, edits, assignment, status transitions, and the
// notes and documents a claim owns.
//
// Role-only gates (create, assign, status change, note and document
// creation) are checked before anything is loaded, so an unauthorized role
// sees Forbidden whether or not the object exists. Gates that depend on the
// object (claim edit and delete, note and document edit and delete) run
// after the fetch, so a missing object reports NotFound first.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"claimdesk/internal/access"
	"claimdesk/internal/claims/metrics"
	"claimdesk/internal/claims/models"
	claimstore "claimdesk/internal/claims/store/claim"
	idmodels "claimdesk/internal/identity/models"
	"claimdesk/internal/platform/tracing"
	policymodels "claimdesk/internal/policies/models"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/audit"
	"claimdesk/pkg/platform/sentinel"
	"claimdesk/pkg/platform/tx"
	"claimdesk/pkg/requestcontext"
)

var tracer = tracing.Tracer("claimdesk/claims")

type ClaimStore interface {
	Create(ctx context.Context, p id.Partition, c *models.Claim) error
	FindByID(ctx context.Context, p id.Partition, claimID id.ClaimID) (*models.Claim, error)
	Update(ctx context.Context, p id.Partition, c *models.Claim) error
	UpdateStatus(ctx context.Context, p id.Partition, claimID id.ClaimID, from, to models.Status, now time.Time) error
	Delete(ctx context.Context, p id.Partition, claimID id.ClaimID) error
	ListByPolicy(ctx context.Context, p id.Partition, policyID id.PolicyID) ([]*models.Claim, error)
	ListByAssignee(ctx context.Context, p id.Partition, userID id.UserID) ([]*models.Claim, error)

	AddNote(ctx context.Context, p id.Partition, n *models.Note) error
	FindNote(ctx context.Context, p id.Partition, noteID id.NoteID) (*models.Note, error)
	UpdateNote(ctx context.Context, p id.Partition, n *models.Note) error
	DeleteNote(ctx context.Context, p id.Partition, noteID id.NoteID) error
	ListNotes(ctx context.Context, p id.Partition, claimID id.ClaimID) ([]*models.Note, error)

	AddDocument(ctx context.Context, p id.Partition, d *models.Document) error
	FindDocument(ctx context.Context, p id.Partition, docID id.DocumentID) (*models.Document, error)
	DeleteDocument(ctx context.Context, p id.Partition, docID id.DocumentID) error
	ListDocuments(ctx context.Context, p id.Partition, claimID id.ClaimID) ([]*models.Document, error)
}

type PolicyLookup interface {
	FindByID(ctx context.Context, p id.Partition, policyID id.PolicyID) (*policymodels.Policy, error)
}

type UserDirectory interface {
	FindByID(ctx context.Context, p id.Partition, userID id.UserID) (*idmodels.User, error)
}

// FileStore keeps document contents. Store returns an opaque reference that
// Delete accepts.
type FileStore interface {
	Store(ctx context.Context, r io.Reader, name string) (string, error)
	Delete(ctx context.Context, ref string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Notifier interface {
	Notify(ctx context.Context, to, subject, body string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const defaultNumberAttempts = 5

type Service struct {
	claims         ClaimStore
	policies       PolicyLookup
	users          UserDirectory
	files          FileStore
	tx             tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	events         EventPublisher
	eventsTopic    string
	notifier       Notifier
	rand           models.RandSource
	maxAttempts    int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEventPublisher publishes a record to topic for every status change.
func WithEventPublisher(publisher EventPublisher, topic string) Option {
	return func(s *Service) {
		s.events = publisher
		s.eventsTopic = topic
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithRand(r models.RandSource) Option {
	return func(s *Service) { s.rand = r }
}

// WithNumberAttempts bounds claim number generation.
func WithNumberAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func New(claims ClaimStore, policies PolicyLookup, users UserDirectory, files FileStore, opts ...Option) *Service {
	s := &Service{
		claims:      claims,
		policies:    policies,
		users:       users,
		files:       files,
		rand:        models.DefaultRand{},
		maxAttempts: defaultNumberAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewLockRunner()
	}
	return s
}

// ClaimDetail is a claim with the notes and documents it owns.
type ClaimDetail struct {
	Claim     *models.Claim
	Notes     []*models.Note
	Documents []*models.Document
}

// CreateClaim files a reported claim against an existing policy. The claim
// number is drawn at random and retried on collision a bounded number of
// times.
func (s *Service) CreateClaim(ctx context.Context, p id.Partition, actor access.Actor, policyID id.PolicyID, req *models.CreateClaimRequest) (*models.Claim, error) {
	if err := s.authorize(ctx, p, actor, access.ActionCreateClaim, access.Subject{}, ""); err != nil {
		return nil, err
	}
	if _, err := s.policies.FindByID(ctx, p, policyID); err != nil {
		return nil, wrapNotFound(err, "policy")
	}

	now := requestcontext.Now(ctx)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		claim, err := models.NewClaim(p.TenantID, policyID, req, models.GenerateClaimNumber(s.rand), now)
		if err != nil {
			return nil, err
		}
		err = s.claims.Create(ctx, p, claim)
		if err == nil {
			s.metrics.IncrementCreated()
			s.emit(ctx, audit.Event{
				Action:   string(audit.EventClaimCreated),
				ActorID:  actor.UserID,
				TenantID: p.TenantID,
				Subject:  claim.Number,
			})
			return claim, nil
		}
		if !errors.Is(err, claimstore.ErrNumberTaken) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create claim")
		}
		s.metrics.IncrementCollision()
		if s.logger != nil {
			s.logger.WarnContext(ctx, "claim number collision", "attempt", attempt, "tenant_id", p.TenantID.String())
		}
	}
	return nil, dErrors.Newf(dErrors.CodeGenerationFailed,
		"could not allocate a unique claim number after %d attempts", s.maxAttempts)
}

// GetClaim returns a claim of policyID together with its notes and
// documents.
func (s *Service) GetClaim(ctx context.Context, p id.Partition, policyID id.PolicyID, claimID id.ClaimID) (*ClaimDetail, error) {
	claim, err := s.claimOfPolicy(ctx, p, policyID, claimID)
	if err != nil {
		return nil, err
	}
	notes, err := s.claims.ListNotes(ctx, p, claimID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notes")
	}
	docs, err := s.claims.ListDocuments(ctx, p, claimID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list documents")
	}
	return &ClaimDetail{Claim: claim, Notes: notes, Documents: docs}, nil
}

func (s *Service) ListClaims(ctx context.Context, p id.Partition, policyID id.PolicyID) ([]*models.Claim, error) {
	if _, err := s.policies.FindByID(ctx, p, policyID); err != nil {
		return nil, wrapNotFound(err, "policy")
	}
	list, err := s.claims.ListByPolicy(ctx, p, policyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claims")
	}
	return list, nil
}

// UpdateClaim applies a partial edit. Who may edit depends on whether the
// claim is still reported.
func (s *Service) UpdateClaim(ctx context.Context, p id.Partition, actor access.Actor, policyID id.PolicyID, claimID id.ClaimID, req *models.UpdateClaimRequest) (*models.Claim, error) {
	var updated *models.Claim
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		claim, err := s.claimOfPolicy(txCtx, p, policyID, claimID)
		if err != nil {
			return err
		}
		subject := access.Subject{ClaimReported: claim.IsReported()}
		if err := s.authorize(ctx, p, actor, access.ActionEditClaim, subject, claim.Number); err != nil {
			return err
		}
		if err := claim.ApplyUpdate(req, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.claims.Update(txCtx, p, claim); err != nil {
			return wrapClaimWrite(err)
		}
		updated = claim
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.Event{
		Action:   string(audit.EventClaimUpdated),
		ActorID:  actor.UserID,
		TenantID: p.TenantID,
		Subject:  updated.Number,
	})
	return updated, nil
}

// DeleteClaim removes a claim with its notes and documents. Stored files are
// released before the records go.
func (s *Service) DeleteClaim(ctx context.Context, p id.Partition, actor access.Actor, policyID id.PolicyID, claimID id.ClaimID) error {
	claim, err := s.claimOfPolicy(ctx, p, policyID, claimID)
	if err != nil {
		return err
	}
	subject := access.Subject{ClaimReported: claim.IsReported()}
	if err := s.authorize(ctx, p, actor, access.ActionDeleteClaim, subject, claim.Number); err != nil {
		return err
	}
	docs, err := s.claims.ListDocuments(ctx, p, claimID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list documents")
	}
	for _, doc := range docs {
		if err := s.files.Delete(ctx, doc.FileRef); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete document file")
		}
	}
	if err := s.claims.Delete(ctx, p, claimID); err != nil {
		return wrapNotFound(err, "claim")
	}
	s.emit(ctx, audit.Event{
		Action:   string(audit.EventClaimDeleted),
		ActorID:  actor.UserID,
		TenantID: p.TenantID,
		Subject:  claim.Number,
	})
	return nil
}

// AssignClaim sets the handling user of a claim. The status is left alone;
// moving a claim to assigned is a separate transition.
func (s *Service) AssignClaim(ctx context.Context, p id.Partition, actor access.Actor, claimID id.ClaimID, req *models.AssignClaimRequest) (*models.Claim, error) {
	if err := s.authorize(ctx, p, actor, access.ActionAssignClaim, access.Subject{}, ""); err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	assignee, err := s.users.FindByID(ctx, p, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "assignee does not exist")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load assignee")
	}

	var assigned *models.Claim
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		claim, err := s.claims.FindByID(txCtx, p, claimID)
		if err != nil {
			return wrapNotFound(err, "claim")
		}
		claim.Assign(assignee.ID, requestcontext.Now(ctx))
		if err := s.claims.Update(txCtx, p, claim); err != nil {
			return wrapClaimWrite(err)
		}
		assigned = claim
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, audit.Event{
		Action:   string(audit.EventClaimAssigned),
		ActorID:  actor.UserID,
		TenantID: p.TenantID,
		Subject:  assigned.Number,
		Reason:   assignee.ID.String(),
	})
	s.notify(ctx, assignee.Email, "Claim assigned",
		fmt.Sprintf("Claim %s (%s) has been assigned to you.", assigned.Number, assigned.Title))
	return assigned, nil
}

// TransitionClaim moves a claim to next along the lifecycle table. Only the
// status and the update time change. A concurrent status change between the
// read and the write is reported as a conflict.
func (s *Service) TransitionClaim(ctx context.Context, p id.Partition, actor access.Actor, claimID id.ClaimID, next models.Status) (*models.Claim, error) {
	ctx, span := tracer.Start(ctx, "claims.Transition")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("claim.id", int64(claimID)),
		attribute.String("claim.next_status", next.String()),
		attribute.String("tenant.partition", p.Schema),
	)

	claim, from, err := s.transition(ctx, p, actor, claimID, next)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
		return nil, err
	}
	span.SetAttributes(attribute.String("claim.previous_status", from.String()))
	s.metrics.IncrementTransition(next.String())

	s.publishStatusChange(ctx, p, actor, claim, from)
	s.emit(ctx, audit.Event{
		Action:   string(audit.EventClaimStatusChanged),
		ActorID:  actor.UserID,
		TenantID: p.TenantID,
		Subject:  claim.Number,
		Reason:   from.String() + "->" + next.String(),
	})
	return claim, nil
}

func (s *Service) transition(ctx context.Context, p id.Partition, actor access.Actor, claimID id.ClaimID, next models.Status) (*models.Claim, models.Status, error) {
	if err := s.authorize(ctx, p, actor, access.ActionUpdateClaimStatus, access.Subject{}, ""); err != nil {
		return nil, "", err
	}
	if !next.IsValid() {
		return nil, "", dErrors.Newf(dErrors.CodeValidation, "unknown status %q", next)
	}
	claim, err := s.claims.FindByID(ctx, p, claimID)
	if err != nil {
		return nil, "", wrapNotFound(err, "claim")
	}
	from := claim.Status
	now := requestcontext.Now(ctx)
	if err := claim.Transition(next, now); err != nil {
		s.metrics.IncrementRejected(from.String())
		return nil, "", err
	}
	if err := s.claims.UpdateStatus(ctx, p, claimID, from, next, now); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, "", dErrors.New(dErrors.CodeConflict, "claim status changed concurrently; reload and retry")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, "", dErrors.New(dErrors.CodeNotFound, "claim not found")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to update claim status")
	}
	return claim, from, nil
}

type statusChangedEvent struct {
	Tenant     string    `json:"tenant"`
	ClaimID    int64     `json:"claim_id"`
	Number     string    `json:"claim_number"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *Service) publishStatusChange(ctx context.Context, p id.Partition, actor access.Actor, claim *models.Claim, from models.Status) {
	if s.events == nil || s.eventsTopic == "" {
		return
	}
	value, err := json.Marshal(statusChangedEvent{
		Tenant:     p.TenantID.String(),
		ClaimID:    int64(claim.ID),
		Number:     claim.Number,
		From:       from.String(),
		To:         claim.Status.String(),
		ActorID:    actor.UserID.String(),
		OccurredAt: claim.UpdatedAt,
	})
	if err != nil {
		return
	}
	if err := s.events.Publish(ctx, s.eventsTopic, []byte(claim.Number), value); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to publish claim status event",
			"claim_number", claim.Number, "error", err)
	}
}

// AddNote attaches a note to a claim, authored by the actor.
func (s *Service) AddNote(ctx context.Context, p id.Partition, actor access.Actor, claimID id.ClaimID, req *models.NoteRequest) (*models.Note, error) {
	if err := s.authorize(ctx, p, actor, access.ActionCreateNote, access.Subject{}, ""); err != nil {
		return nil, err
	}
	claim, err := s.claims.FindByID(ctx, p, claimID)
	if err != nil {
		return nil, wrapNotFound(err, "claim")
	}
	now := requestcontext.Now(ctx)
	note := &models.Note{
		ClaimID:   claimID,
		AuthorID:  actor.UserID,
		Text:      req.Text,
		Internal:  req.Internal,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.claims.AddNote(ctx, p, note); err != nil {
		return nil, wrapNotFound(err, "claim")
	}
	s.emit(ctx, audit.Event{
		Action:   string(audit.EventNoteAdded),
		ActorID:  actor.UserID,
		TenantID: p.TenantID,
		Subject:  claim.Number,
	})
	return note, nil
}

func (s *Service) UpdateNote(ctx context.Context, p id.Partition, actor access.Actor, noteID id.NoteID, req *models.NoteRequest) (*models.Note, error) {
	note, err := s.claims.FindNote(ctx, p, noteID)
	if err != nil {
		return nil, wrapNotFound(err, "note")
	}
	if err := s.authorize(ctx, p, actor, access.ActionEditNote, access.Subject{OwnerID: note.AuthorID}, ""); err != nil {
		return nil, err
	}
	note.Text = req.Text
	note.Internal = req.Internal
	note.UpdatedAt = requestcontext.Now(ctx)
	if err := s.claims.UpdateNote(ctx, p, note); err != nil {
		return nil, wrapNotFound(err, "note")
	}
	s.emit(ctx, audit.Event{
		Action:   string(audit.EventNoteUpdated),
		ActorID:  actor.UserID,
		TenantID: p.TenantID,
		Subject:  fmt.Sprintf("note:%d", note.ID),
	})
	return note, nil
}

func (s *Service) DeleteNote(ctx context.Context, p id.Partition, actor access.Actor, noteID id.NoteID) error {
	note, err := s.claims.FindNote(ctx, p, noteID)
	if err != nil {
		return wrapNotFound(err, "note")
	}
	if err := s.authorize(ctx, p, actor, access.ActionDeleteNote, access.Subject{OwnerID: note.AuthorID}, ""); err != nil {
		return err
	}
	if err := s.claims.DeleteNote(ctx, p, noteID); err != nil {
		return wrapNotFound(err, "note")
	}
	s.emit(ctx, audit.Event{
		Action:   string(audit.EventNoteDeleted),
		ActorID:  actor.UserID,
		TenantID: p.TenantID,
		Subject:  fmt.Sprintf("note:%d", noteID),
	})
	return nil
}

// Upload is a document to attach to a claim.
type Upload struct {
	Type        models.DocumentType
	Description string
	Filename    string
	Content     io.Reader
}

// UploadDocument stores the file and records it against the claim. If the
// record cannot be written the stored file is removed again.
func (s *Service) UploadDocument(ctx context.Context, p id.Partition, actor access.Actor, claimID id.ClaimID, up Upload) (*models.Document, error) {
	if err := s.authorize(ctx, p, actor, access.ActionCreateDocument, access.Subject{}, ""); err != nil {
		return nil, err
	}
	if !up.Type.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "invalid document_type %q", up.Type)
	}
	name := sanitizeFilename(up.Filename)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "file is required")
	}
	claim, err := s.claims.FindByID(ctx, p, claimID)
	if err != nil {
		return nil, wrapNotFound(err, "claim")
	}

	objectPath := path.Join(p.Schema, "claims", fmt.Sprint(int64(claimID)), uuid.NewString()+"-"+name)
	ref, err := s.files.Store(ctx, up.Content, objectPath)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document")
	}

	doc := &models.Document{
		ClaimID:     claimID,
		Type:        up.Type,
		UploadedBy:  actor.UserID,
		FileRef:     ref,
		Description: up.Description,
		UploadedAt:  requestcontext.Now(ctx),
	}
	if err := s.claims.AddDocument(ctx, p, doc); err != nil {
		if delErr := s.files.Delete(context.WithoutCancel(ctx), ref); delErr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to remove orphaned document file", "ref", ref, "error", delErr)
		}
		return nil, wrapNotFound(err, "claim")
	}
	s.metrics.IncrementUploaded()
	s.emit(ctx, audit.Event{
		Action:   string(audit.EventDocumentUploaded),
		ActorID:  actor.UserID,
		TenantID: p.TenantID,
		Subject:  claim.Number,
		Reason:   string(up.Type),
	})
	return doc, nil
}

// DeleteDocument releases the stored file and then removes the record.
func (s *Service) DeleteDocument(ctx context.Context, p id.Partition, actor access.Actor, docID id.DocumentID) error {
	doc, err := s.claims.FindDocument(ctx, p, docID)
	if err != nil {
		return wrapNotFound(err, "document")
	}
	if err := s.authorize(ctx, p, actor, access.ActionDeleteDocument, access.Subject{OwnerID: doc.UploadedBy}, ""); err != nil {
		return err
	}
	if err := s.files.Delete(ctx, doc.FileRef); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete document file")
	}
	if err := s.claims.DeleteDocument(ctx, p, docID); err != nil {
		return wrapNotFound(err, "document")
	}
	s.emit(ctx, audit.Event{
		Action:   string(audit.EventDocumentDeleted),
		ActorID:  actor.UserID,
		TenantID: p.TenantID,
		Subject:  fmt.Sprintf("document:%d", docID),
	})
	return nil
}

// AssignedClaims lists the claims assigned to a user of the partition.
func (s *Service) AssignedClaims(ctx context.Context, p id.Partition, userID id.UserID) ([]*models.Claim, error) {
	if _, err := s.users.FindByID(ctx, p, userID); err != nil {
		return nil, wrapNotFound(err, "user")
	}
	list, err := s.claims.ListByAssignee(ctx, p, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list assigned claims")
	}
	return list, nil
}

func (s *Service) claimOfPolicy(ctx context.Context, p id.Partition, policyID id.PolicyID, claimID id.ClaimID) (*models.Claim, error) {
	claim, err := s.claims.FindByID(ctx, p, claimID)
	if err != nil {
		return nil, wrapNotFound(err, "claim")
	}
	if claim.PolicyID != policyID {
		return nil, dErrors.New(dErrors.CodeNotFound, "claim not found")
	}
	return claim, nil
}

func (s *Service) authorize(ctx context.Context, p id.Partition, actor access.Actor, action access.Action, subject access.Subject, target string) error {
	err := access.Authorize(actor, action, subject)
	if err == nil {
		return nil
	}
	s.metrics.IncrementDenied(string(action))
	s.emit(ctx, audit.Event{
		Action:   string(audit.EventAccessDenied),
		ActorID:  actor.UserID,
		TenantID: p.TenantID,
		Subject:  target,
		Reason:   string(action),
	})
	return err
}

// wrapClaimWrite maps a guarded claim write. A conflict means the status
// the caller's decision was based on no longer holds.
func wrapClaimWrite(err error) error {
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.New(dErrors.CodeConflict, "claim status changed concurrently; reload and retry")
	}
	return wrapNotFound(err, "claim")
}

func wrapNotFound(err error, what string) error {
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeNotFound, "%s not found", what)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load "+what)
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

func (s *Service) notify(ctx context.Context, to, subject, body string) {
	if s.notifier == nil || to == "" {
		return
	}
	if err := s.notifier.Notify(ctx, to, subject, body); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "notification failed", "subject", subject, "error", err)
	}
}

// emit publishes best-effort; audit failures are logged, never returned.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if s.auditPublisher == nil {
		if s.logger != nil {
			s.logger.InfoContext(ctx, event.Action,
				"log_type", "audit",
				"request_id", event.RequestID,
				"tenant_id", event.TenantID.String(),
				"subject", event.Subject,
			)
		}
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}
