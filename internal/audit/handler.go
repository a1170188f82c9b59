// Package audit exposes the audit trail to platform operators.
package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/platform/audit"
	"claimdesk/pkg/platform/httputil"
	request "claimdesk/pkg/platform/middleware/request"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type Reader interface {
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]audit.Event, error)
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

type Handler struct {
	reader Reader
	logger *slog.Logger
}

func NewHandler(reader Reader, logger *slog.Logger) *Handler {
	return &Handler{reader: reader, logger: logger}
}

// RegisterOperator registers the audit trail routes for platform operators.
func (h *Handler) RegisterOperator(r chi.Router) {
	r.Get("/administration/audit-events", h.HandleList)
}

type eventResponse struct {
	Action    string    `json:"action"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id,omitempty"`
	TenantID  string    `json:"tenant_id,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

func toEventResponse(e audit.Event) eventResponse {
	resp := eventResponse{
		Action:    e.Action,
		Category:  string(e.Category),
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Reason:    e.Reason,
		RequestID: e.RequestID,
	}
	if !e.ActorID.IsNil() {
		resp.ActorID = e.ActorID.String()
	}
	if !e.TenantID.IsNil() {
		resp.TenantID = e.TenantID.String()
	}
	return resp
}

// HandleList returns recent events, newest first, optionally for one tenant
// (?tenant_id=) and capped by ?limit=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			h.fail(ctx, w, dErrors.Newf(dErrors.CodeValidation, "limit must be between 1 and %d", maxListLimit))
			return
		}
		limit = n
	}

	var (
		events []audit.Event
		err    error
	)
	if raw := r.URL.Query().Get("tenant_id"); raw != "" {
		tenantID, perr := id.ParseTenantID(raw)
		if perr != nil {
			h.fail(ctx, w, perr)
			return
		}
		events, err = h.reader.ListByTenant(ctx, tenantID)
		if len(events) > limit {
			events = events[:limit]
		}
	} else {
		events, err = h.reader.ListRecent(ctx, limit)
	}
	if err != nil {
		h.fail(ctx, w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events"))
		return
	}

	resp := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, toEventResponse(e))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	httputil.LogAndWriteError(ctx, w, h.logger, request.GetRequestID(ctx), err, "failed to list audit events")
}
