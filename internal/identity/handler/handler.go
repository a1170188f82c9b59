package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"claimdesk/internal/access"
	"claimdesk/internal/identity/models"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/httputil"
	request "claimdesk/pkg/platform/middleware/request"
	"claimdesk/pkg/requestcontext"
)

// Service defines the identity operations used by the handler.
type Service interface {
	CreateUser(ctx context.Context, p id.Partition, actor access.Actor, req *models.CreateUserRequest) (*models.User, error)
	CreateGlobalAdmin(ctx context.Context, req *models.CreateUserRequest) (*models.User, error)
	Login(ctx context.Context, p id.Partition, req *models.LoginRequest) (*models.TokenResult, error)
	GetUser(ctx context.Context, p id.Partition, userID id.UserID) (*models.User, error)
	DeleteUser(ctx context.Context, p id.Partition, actor access.Actor, userID id.UserID) error
}

// TenantRefValidator checks a tenant id supplied in a request body against
// the partition resolved from the host.
type TenantRefValidator interface {
	ValidateTenantRef(p id.Partition, supplied id.TenantID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
	refs    TenantRefValidator
}

type HandlerOption func(*Handler)

// WithTenantRefs enables checking of the tenant_id field on user creation.
func WithTenantRefs(v TenantRefValidator) HandlerOption {
	return func(h *Handler) { h.refs = v }
}

func New(service Service, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterPublic registers routes that need a resolved partition but no
// bearer token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/token", h.HandleLogin)
	r.Get("/users/{userID}", h.HandleGetUser)
}

// Register registers routes for authenticated members of the partition.
func (h *Handler) Register(r chi.Router) {
	r.Post("/users", h.HandleCreateUser)
	r.Delete("/users/{userID}", h.HandleDeleteUser)
}

// RegisterOperator registers platform-operator routes.
func (h *Handler) RegisterOperator(r chi.Router) {
	r.Post("/administration/global-admins", h.HandleCreateGlobalAdmin)
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Phone     string    `json:"phone_number"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	Scope     string    `json:"scope"`
	TenantID  string    `json:"tenant_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *models.User) userResponse {
	resp := userResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		Username:  u.Username,
		Phone:     u.Phone,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
		Scope:     string(u.Scope),
		CreatedAt: u.CreatedAt,
	}
	if !u.TenantID.IsNil() {
		resp.TenantID = u.TenantID.String()
	}
	return resp
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.service.Login(ctx, requestcontext.Partition(ctx), req)
	if err != nil {
		h.fail(ctx, w, err, "login failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(ctx, w, err, "invalid user id")
		return
	}
	user, err := h.service.GetUser(ctx, requestcontext.Partition(ctx), userID)
	if err != nil {
		h.fail(ctx, w, err, "failed to get user")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p := requestcontext.Partition(ctx)
	if err := h.checkTenantRef(p, req.TenantID); err != nil {
		h.fail(ctx, w, err, "tenant reference rejected")
		return
	}
	actor := access.ActorFrom(requestcontext.Principal(ctx))
	user, err := h.service.CreateUser(ctx, p, actor, req)
	if err != nil {
		h.fail(ctx, w, err, "failed to create user")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(ctx, w, err, "invalid user id")
		return
	}
	actor := access.ActorFrom(requestcontext.Principal(ctx))
	if err := h.service.DeleteUser(ctx, requestcontext.Partition(ctx), actor, userID); err != nil {
		h.fail(ctx, w, err, "failed to delete user")
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handler) HandleCreateGlobalAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	user, err := h.service.CreateGlobalAdmin(ctx, req)
	if err != nil {
		h.fail(ctx, w, err, "failed to create global admin")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) checkTenantRef(p id.Partition, raw string) error {
	if raw == "" {
		return nil
	}
	supplied, err := id.ParseTenantID(raw)
	if err != nil {
		return err
	}
	if h.refs == nil {
		if supplied != p.TenantID {
			return dErrors.New(dErrors.CodeForbidden, "tenant does not match the request host")
		}
		return nil
	}
	return h.refs.ValidateTenantRef(p, supplied)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	httputil.LogAndWriteError(ctx, w, h.logger, request.GetRequestID(ctx), err, msg)
}
