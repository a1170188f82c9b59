package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"claimdesk/internal/access"
	"claimdesk/internal/claims/models"
	"claimdesk/internal/claims/service"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/httputil"
	request "claimdesk/pkg/platform/middleware/request"
	"claimdesk/pkg/requestcontext"
)

// maxUploadBytes caps a single document upload.
const maxUploadBytes = 20 << 20

type Service interface {
	CreateClaim(ctx context.Context, p id.Partition, actor access.Actor, policyID id.PolicyID, req *models.CreateClaimRequest) (*models.Claim, error)
	GetClaim(ctx context.Context, p id.Partition, policyID id.PolicyID, claimID id.ClaimID) (*service.ClaimDetail, error)
	ListClaims(ctx context.Context, p id.Partition, policyID id.PolicyID) ([]*models.Claim, error)
	UpdateClaim(ctx context.Context, p id.Partition, actor access.Actor, policyID id.PolicyID, claimID id.ClaimID, req *models.UpdateClaimRequest) (*models.Claim, error)
	DeleteClaim(ctx context.Context, p id.Partition, actor access.Actor, policyID id.PolicyID, claimID id.ClaimID) error
	AssignClaim(ctx context.Context, p id.Partition, actor access.Actor, claimID id.ClaimID, req *models.AssignClaimRequest) (*models.Claim, error)
	TransitionClaim(ctx context.Context, p id.Partition, actor access.Actor, claimID id.ClaimID, next models.Status) (*models.Claim, error)
	AddNote(ctx context.Context, p id.Partition, actor access.Actor, claimID id.ClaimID, req *models.NoteRequest) (*models.Note, error)
	UpdateNote(ctx context.Context, p id.Partition, actor access.Actor, noteID id.NoteID, req *models.NoteRequest) (*models.Note, error)
	DeleteNote(ctx context.Context, p id.Partition, actor access.Actor, noteID id.NoteID) error
	UploadDocument(ctx context.Context, p id.Partition, actor access.Actor, claimID id.ClaimID, up service.Upload) (*models.Document, error)
	DeleteDocument(ctx context.Context, p id.Partition, actor access.Actor, docID id.DocumentID) error
	AssignedClaims(ctx context.Context, p id.Partition, userID id.UserID) ([]*models.Claim, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers claim routes for authenticated members of the
// partition.
func (h *Handler) Register(r chi.Router) {
	r.Route("/policy/{policyID}/claims", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{claimID}", h.HandleGet)
		r.Patch("/{claimID}", h.HandleUpdate)
		r.Delete("/{claimID}", h.HandleDelete)
	})
	r.Post("/claims/{claimID}/assign", h.HandleAssign)
	r.Post("/claims/{claimID}/status", h.HandleTransition)
	r.Post("/claims/{claimID}/notes", h.HandleAddNote)
	r.Post("/claims/{claimID}/documents", h.HandleUploadDocument)
	r.Patch("/notes/{noteID}", h.HandleUpdateNote)
	r.Delete("/notes/{noteID}", h.HandleDeleteNote)
	r.Delete("/documents/{documentID}", h.HandleDeleteDocument)
	r.Get("/users/{userID}/claims", h.HandleAssignedClaims)
}

type claimResponse struct {
	ID             int64      `json:"id"`
	Number         string     `json:"claim_number"`
	PolicyID       int64      `json:"policy"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	ClaimAmount    *id.Amount `json:"claim_amount"`
	ApprovedAmount *id.Amount `json:"approved_amount"`
	AssignedTo     *string    `json:"assigned_to"`
	IncidentDate   string     `json:"incident_date"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	AllowedNext    []string   `json:"allowed_transitions"`
}

func toClaimResponse(c *models.Claim) claimResponse {
	resp := claimResponse{
		ID:             int64(c.ID),
		Number:         c.Number,
		PolicyID:       int64(c.PolicyID),
		Title:          c.Title,
		Description:    c.Description,
		Status:         c.Status.String(),
		ClaimAmount:    c.ClaimAmount,
		ApprovedAmount: c.ApprovedAmount,
		IncidentDate:   c.IncidentDate.Format(time.DateOnly),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		AllowedNext:    []string{},
	}
	if c.AssignedTo != nil {
		s := c.AssignedTo.String()
		resp.AssignedTo = &s
	}
	for _, next := range c.Status.AllowedNext() {
		resp.AllowedNext = append(resp.AllowedNext, next.String())
	}
	return resp
}

func toClaimList(list []*models.Claim) []claimResponse {
	resp := make([]claimResponse, 0, len(list))
	for _, c := range list {
		resp = append(resp, toClaimResponse(c))
	}
	return resp
}

type noteResponse struct {
	ID        int64     `json:"id"`
	ClaimID   int64     `json:"claim"`
	AuthorID  string    `json:"author"`
	Text      string    `json:"text"`
	Internal  bool      `json:"is_internal"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toNoteResponse(n *models.Note) noteResponse {
	return noteResponse{
		ID:        int64(n.ID),
		ClaimID:   int64(n.ClaimID),
		AuthorID:  n.AuthorID.String(),
		Text:      n.Text,
		Internal:  n.Internal,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

type documentResponse struct {
	ID          int64     `json:"id"`
	ClaimID     int64     `json:"claim"`
	Type        string    `json:"document_type"`
	UploadedBy  string    `json:"uploaded_by"`
	File        string    `json:"file"`
	Description string    `json:"description"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

func toDocumentResponse(d *models.Document) documentResponse {
	return documentResponse{
		ID:          int64(d.ID),
		ClaimID:     int64(d.ClaimID),
		Type:        string(d.Type),
		UploadedBy:  d.UploadedBy.String(),
		File:        d.FileRef,
		Description: d.Description,
		UploadedAt:  d.UploadedAt,
	}
}

type claimDetailResponse struct {
	claimResponse
	Notes     []noteResponse     `json:"notes"`
	Documents []documentResponse `json:"documents"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, ok := h.policyID(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListClaims(ctx, requestcontext.Partition(ctx), policyID)
	if err != nil {
		h.fail(ctx, w, err, "failed to list claims")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toClaimList(list))
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, ok := h.policyID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CreateClaimRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	claim, err := h.service.CreateClaim(ctx, requestcontext.Partition(ctx), actorFrom(ctx), policyID, req)
	if err != nil {
		h.fail(ctx, w, err, "failed to create claim")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toClaimResponse(claim))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, claimID, ok := h.policyAndClaim(w, r)
	if !ok {
		return
	}
	detail, err := h.service.GetClaim(ctx, requestcontext.Partition(ctx), policyID, claimID)
	if err != nil {
		h.fail(ctx, w, err, "failed to get claim")
		return
	}
	resp := claimDetailResponse{
		claimResponse: toClaimResponse(detail.Claim),
		Notes:         make([]noteResponse, 0, len(detail.Notes)),
		Documents:     make([]documentResponse, 0, len(detail.Documents)),
	}
	for _, n := range detail.Notes {
		resp.Notes = append(resp.Notes, toNoteResponse(n))
	}
	for _, d := range detail.Documents {
		resp.Documents = append(resp.Documents, toDocumentResponse(d))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, claimID, ok := h.policyAndClaim(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateClaimRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	claim, err := h.service.UpdateClaim(ctx, requestcontext.Partition(ctx), actorFrom(ctx), policyID, claimID, req)
	if err != nil {
		h.fail(ctx, w, err, "failed to update claim")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toClaimResponse(claim))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, claimID, ok := h.policyAndClaim(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteClaim(ctx, requestcontext.Partition(ctx), actorFrom(ctx), policyID, claimID); err != nil {
		h.fail(ctx, w, err, "failed to delete claim")
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID, ok := h.claimID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.AssignClaimRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	claim, err := h.service.AssignClaim(ctx, requestcontext.Partition(ctx), actorFrom(ctx), claimID, req)
	if err != nil {
		h.fail(ctx, w, err, "failed to assign claim")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toClaimResponse(claim))
}

func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID, ok := h.claimID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.TransitionRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	next, err := models.ParseStatus(req.Status)
	if err != nil {
		h.fail(ctx, w, err, "invalid status")
		return
	}
	claim, err := h.service.TransitionClaim(ctx, requestcontext.Partition(ctx), actorFrom(ctx), claimID, next)
	if err != nil {
		h.fail(ctx, w, err, "failed to change claim status")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toClaimResponse(claim))
}

func (h *Handler) HandleAddNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID, ok := h.claimID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.NoteRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	note, err := h.service.AddNote(ctx, requestcontext.Partition(ctx), actorFrom(ctx), claimID, req)
	if err != nil {
		h.fail(ctx, w, err, "failed to add note")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toNoteResponse(note))
}

func (h *Handler) HandleUpdateNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	noteID, err := id.ParseNoteID(chi.URLParam(r, "noteID"))
	if err != nil {
		h.fail(ctx, w, err, "invalid note id")
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.NoteRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	note, err := h.service.UpdateNote(ctx, requestcontext.Partition(ctx), actorFrom(ctx), noteID, req)
	if err != nil {
		h.fail(ctx, w, err, "failed to update note")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toNoteResponse(note))
}

func (h *Handler) HandleDeleteNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	noteID, err := id.ParseNoteID(chi.URLParam(r, "noteID"))
	if err != nil {
		h.fail(ctx, w, err, "invalid note id")
		return
	}
	if err := h.service.DeleteNote(ctx, requestcontext.Partition(ctx), actorFrom(ctx), noteID); err != nil {
		h.fail(ctx, w, err, "failed to delete note")
		return
	}
	httputil.WriteNoContent(w)
}

// HandleUploadDocument accepts multipart/form-data with a "file" part and
// "document_type" and optional "description" fields.
func (h *Handler) HandleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID, ok := h.claimID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(ctx, w, dErrors.New(dErrors.CodeValidation, "file is too large"), "upload too large")
			return
		}
		h.fail(ctx, w, dErrors.Wrap(err, dErrors.CodeBadRequest, "expected a multipart form"), "invalid upload")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(ctx, w, dErrors.New(dErrors.CodeValidation, "file is required"), "invalid upload")
		return
	}
	defer file.Close()

	doc, err := h.service.UploadDocument(ctx, requestcontext.Partition(ctx), actorFrom(ctx), claimID, service.Upload{
		Type:        models.DocumentType(strings.TrimSpace(r.FormValue("document_type"))),
		Description: strings.TrimSpace(r.FormValue("description")),
		Filename:    header.Filename,
		Content:     file,
	})
	if err != nil {
		h.fail(ctx, w, err, "failed to upload document")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (h *Handler) HandleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		h.fail(ctx, w, err, "invalid document id")
		return
	}
	if err := h.service.DeleteDocument(ctx, requestcontext.Partition(ctx), actorFrom(ctx), docID); err != nil {
		h.fail(ctx, w, err, "failed to delete document")
		return
	}
	httputil.WriteNoContent(w)
}

// HandleAssignedClaims lists the claims assigned to a user. The id must be
// a version 4 UUID.
func (h *Handler) HandleAssignedClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(ctx, w, err, "invalid user id")
		return
	}
	list, err := h.service.AssignedClaims(ctx, requestcontext.Partition(ctx), userID)
	if err != nil {
		h.fail(ctx, w, err, "failed to list assigned claims")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toClaimList(list))
}

func (h *Handler) policyID(w http.ResponseWriter, r *http.Request) (id.PolicyID, bool) {
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		h.fail(r.Context(), w, err, "invalid policy id")
		return 0, false
	}
	return policyID, true
}

func (h *Handler) claimID(w http.ResponseWriter, r *http.Request) (id.ClaimID, bool) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		h.fail(r.Context(), w, err, "invalid claim id")
		return 0, false
	}
	return claimID, true
}

func (h *Handler) policyAndClaim(w http.ResponseWriter, r *http.Request) (id.PolicyID, id.ClaimID, bool) {
	policyID, ok := h.policyID(w, r)
	if !ok {
		return 0, 0, false
	}
	claimID, ok := h.claimID(w, r)
	return policyID, claimID, ok
}

func actorFrom(ctx context.Context) access.Actor {
	return access.ActorFrom(requestcontext.Principal(ctx))
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	httputil.LogAndWriteError(ctx, w, h.logger, request.GetRequestID(ctx), err, msg)
}
