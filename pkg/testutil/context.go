package testutil

import (
	"net/http"

	id "claimdesk/pkg/domain"
	"claimdesk/pkg/requestcontext"
)

// WithPrincipal attaches an authenticated principal to the request, as the
// auth middleware would after validating a bearer token.
func WithPrincipal(req *http.Request, userID id.UserID, role, scope string, tenantID id.TenantID) *http.Request {
	ctx := requestcontext.WithPrincipal(req.Context(), requestcontext.AuthPrincipal{
		UserID:   userID,
		Role:     role,
		Scope:    scope,
		TenantID: tenantID,
	})
	return req.WithContext(ctx)
}

// WithPartition attaches a resolved partition, as the tenant resolver would.
func WithPartition(req *http.Request, p id.Partition) *http.Request {
	return req.WithContext(requestcontext.WithPartition(req.Context(), p))
}
