package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"claimdesk/internal/access"
	"claimdesk/internal/policies/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/httputil"
	request "claimdesk/pkg/platform/middleware/request"
	"claimdesk/pkg/requestcontext"
)

type Service interface {
	CreatePolicy(ctx context.Context, p id.Partition, actor access.Actor, req *models.CreatePolicyRequest) (*models.Policy, error)
	GetPolicy(ctx context.Context, p id.Partition, policyID id.PolicyID) (*models.Policy, error)
	ListPolicies(ctx context.Context, p id.Partition) ([]*models.Policy, error)
	UpdatePolicy(ctx context.Context, p id.Partition, actor access.Actor, policyID id.PolicyID, req *models.UpdatePolicyRequest) (*models.Policy, error)
	DeletePolicy(ctx context.Context, p id.Partition, actor access.Actor, policyID id.PolicyID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers policy routes for authenticated partition members.
func (h *Handler) Register(r chi.Router) {
	r.Get("/policies", h.HandleList)
	r.Post("/policies", h.HandleCreate)
	r.Get("/policies/{policyID}", h.HandleGet)
	r.Patch("/policies/{policyID}", h.HandleUpdate)
	r.Delete("/policies/{policyID}", h.HandleDelete)
}

type policyResponse struct {
	ID             int64     `json:"id"`
	Number         string    `json:"policy_number"`
	TenantID       string    `json:"tenant"`
	HolderName     string    `json:"policyholder_name"`
	HolderEmail    string    `json:"policyholder_email"`
	Type           string    `json:"policy_type"`
	CoverageAmount id.Amount `json:"coverage_amount"`
	Premium        id.Amount `json:"premium"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	Active         bool      `json:"is_active"`
	Valid          bool      `json:"is_valid"`
}

func toPolicyResponse(p *models.Policy, today time.Time) policyResponse {
	return policyResponse{
		ID:             int64(p.ID),
		Number:         p.Number,
		TenantID:       p.TenantID.String(),
		HolderName:     p.HolderName,
		HolderEmail:    p.HolderEmail,
		Type:           string(p.Type),
		CoverageAmount: p.CoverageAmount,
		Premium:        p.Premium,
		StartDate:      p.StartDate.Format(time.DateOnly),
		EndDate:        p.EndDate.Format(time.DateOnly),
		Active:         p.Active,
		Valid:          p.IsValid(today),
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.service.ListPolicies(ctx, requestcontext.Partition(ctx))
	if err != nil {
		h.fail(ctx, w, err, "failed to list policies")
		return
	}
	today := requestcontext.Now(ctx)
	resp := make([]policyResponse, 0, len(list))
	for _, p := range list {
		resp = append(resp, toPolicyResponse(p, today))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreatePolicyRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	actor := access.ActorFrom(requestcontext.Principal(ctx))
	pol, err := h.service.CreatePolicy(ctx, requestcontext.Partition(ctx), actor, req)
	if err != nil {
		h.fail(ctx, w, err, "failed to create policy")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPolicyResponse(pol, requestcontext.Now(ctx)))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		h.fail(ctx, w, err, "invalid policy id")
		return
	}
	pol, err := h.service.GetPolicy(ctx, requestcontext.Partition(ctx), policyID)
	if err != nil {
		h.fail(ctx, w, err, "failed to get policy")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPolicyResponse(pol, requestcontext.Now(ctx)))
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		h.fail(ctx, w, err, "invalid policy id")
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdatePolicyRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	actor := access.ActorFrom(requestcontext.Principal(ctx))
	pol, err := h.service.UpdatePolicy(ctx, requestcontext.Partition(ctx), actor, policyID, req)
	if err != nil {
		h.fail(ctx, w, err, "failed to update policy")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPolicyResponse(pol, requestcontext.Now(ctx)))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		h.fail(ctx, w, err, "invalid policy id")
		return
	}
	actor := access.ActorFrom(requestcontext.Principal(ctx))
	if err := h.service.DeletePolicy(ctx, requestcontext.Partition(ctx), actor, policyID); err != nil {
		h.fail(ctx, w, err, "failed to delete policy")
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	httputil.LogAndWriteError(ctx, w, h.logger, request.GetRequestID(ctx), err, msg)
}
