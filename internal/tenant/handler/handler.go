package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"claimdesk/internal/tenant/models"
	"claimdesk/internal/tenant/service"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/httputil"
	request "claimdesk/pkg/platform/middleware/request"
)

// Service defines the provisioning operations used by the handler.
type Service interface {
	SubmitRegistration(ctx context.Context, req *models.SubmitRegistrationRequest) (*models.RegistrationRequest, error)
	ListRegistrations(ctx context.Context) ([]*models.RegistrationRequest, error)
	ApproveRegistration(ctx context.Context, regID id.RegistrationID) (*service.Provisioned, error)
	RejectRegistration(ctx context.Context, regID id.RegistrationID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic registers self-service registration on the platform host.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/register", h.HandleSubmitRegistration)
}

// RegisterOperator registers the routes platform operators use to review
// registrations.
func (h *Handler) RegisterOperator(r chi.Router) {
	r.Get("/administration/registration-requests", h.HandleListRegistrations)
	r.Post("/administration/registration-requests/{registrationID}/approve", h.HandleApproveRegistration)
	r.Post("/administration/registration-requests/{registrationID}/reject", h.HandleRejectRegistration)
}

type registrationResponse struct {
	ID               int64     `json:"id"`
	CompanyName      string    `json:"company_name"`
	BusinessType     string    `json:"business_type"`
	ContactEmail     string    `json:"contact_email"`
	ContactPhone     string    `json:"company_phone"`
	DefaultCurrency  string    `json:"default_currency"`
	SubscriptionPlan string    `json:"subscription_plan"`
	RequestedDomain  string    `json:"requested_domain"`
	AdminEmail       string    `json:"admin_email"`
	AdminUsername    string    `json:"admin_username"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

func toRegistrationResponse(r *models.RegistrationRequest) registrationResponse {
	return registrationResponse{
		ID:               int64(r.ID),
		CompanyName:      r.CompanyName,
		BusinessType:     string(r.BusinessType),
		ContactEmail:     r.ContactEmail,
		ContactPhone:     r.ContactPhone,
		DefaultCurrency:  r.DefaultCurrency,
		SubscriptionPlan: string(r.SubscriptionPlan),
		RequestedDomain:  r.RequestedDomain,
		AdminEmail:       r.AdminEmail,
		AdminUsername:    r.AdminUsername,
		Status:           string(r.Status),
		CreatedAt:        r.CreatedAt,
	}
}

type tenantResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Code             string `json:"code"`
	BusinessType     string `json:"business_type"`
	SubscriptionPlan string `json:"subscription_plan"`
	Schema           string `json:"schema_name"`
	Status           string `json:"status"`
	Domain           string `json:"domain"`
}

func (h *Handler) HandleSubmitRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.SubmitRegistrationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	reg, err := h.service.SubmitRegistration(ctx, req)
	if err != nil {
		h.fail(ctx, w, err, "failed to submit registration")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRegistrationResponse(reg))
}

func (h *Handler) HandleListRegistrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	regs, err := h.service.ListRegistrations(ctx)
	if err != nil {
		h.fail(ctx, w, err, "failed to list registrations")
		return
	}
	resp := make([]registrationResponse, 0, len(regs))
	for _, reg := range regs {
		resp = append(resp, toRegistrationResponse(reg))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleApproveRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	regID, err := id.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		h.fail(ctx, w, err, "invalid registration id")
		return
	}
	res, err := h.service.ApproveRegistration(ctx, regID)
	if err != nil {
		h.fail(ctx, w, err, "failed to approve registration")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tenantResponse{
		ID:               res.Tenant.ID.String(),
		Name:             res.Tenant.Name,
		Code:             res.Tenant.Code,
		BusinessType:     string(res.Tenant.BusinessType),
		SubscriptionPlan: string(res.Tenant.SubscriptionPlan),
		Schema:           res.Tenant.Schema,
		Status:           string(res.Tenant.Status),
		Domain:           res.Domain.Hostname,
	})
}

func (h *Handler) HandleRejectRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	regID, err := id.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		h.fail(ctx, w, err, "invalid registration id")
		return
	}
	if err := h.service.RejectRegistration(ctx, regID); err != nil {
		h.fail(ctx, w, err, "failed to reject registration")
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	httputil.LogAndWriteError(ctx, w, h.logger, request.GetRequestID(ctx), err, msg)
}
