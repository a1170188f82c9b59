// Package httpapi assembles the module routers behind the shared middleware
// stack.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	audithandler "claimdesk/internal/audit"
	claimhandler "claimdesk/internal/claims/handler"
	identityhandler "claimdesk/internal/identity/handler"
	"claimdesk/internal/platform/metrics"
	policyhandler "claimdesk/internal/policies/handler"
	tenanthandler "claimdesk/internal/tenant/handler"
	"claimdesk/pkg/platform/httputil"
	adminmw "claimdesk/pkg/platform/middleware/admin"
	authmw "claimdesk/pkg/platform/middleware/auth"
	"claimdesk/pkg/platform/middleware/metadata"
	request "claimdesk/pkg/platform/middleware/request"
	"claimdesk/pkg/platform/middleware/requesttime"
)

const readyTimeout = 2 * time.Second

// Check reports whether a backing dependency is reachable.
type Check func(ctx context.Context) error

// Handlers holds one HTTP handler per module.
type Handlers struct {
	Tenant   *tenanthandler.Handler
	Identity *identityhandler.Handler
	Policies *policyhandler.Handler
	Claims   *claimhandler.Handler
	Audit    *audithandler.Handler
}

type Deps struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	Resolver     tenanthandler.Resolver
	PlatformHost string
	Tokens       authmw.JWTValidator
	BootstrapKey string
	// Checks back /ready, keyed by dependency name.
	Checks map[string]Check
}

// NewRouter wires health checks, /metrics and every module route.
//
// Module routes sit behind host resolution. The platform host serves
// registration and the /administration routes; tenant hosts serve policies,
// claims and users to authenticated members of that tenant.
func NewRouter(d Deps, h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(d.Logger))
	r.Use(request.Logger(d.Logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	if d.Metrics != nil {
		r.Use(d.Metrics.Latency)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", readyHandler(d.Checks, d.Logger))
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(tenanthandler.ResolvePartition(d.Resolver, d.PlatformHost, d.Logger))

		r.Group(func(r chi.Router) {
			r.Use(authmw.OptionalAuth(d.Tokens, d.Logger))
			r.Use(authmw.RequirePartitionMember(d.Logger))
			h.Identity.RegisterPublic(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(tenanthandler.RequirePublicPartition)
			h.Tenant.RegisterPublic(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(tenanthandler.RequirePublicPartition)
			r.Use(authmw.OptionalAuth(d.Tokens, d.Logger))
			r.Use(authmw.RequirePartitionMember(d.Logger))
			r.Use(adminmw.RequirePlatformOperator(d.BootstrapKey, d.Logger))
			h.Tenant.RegisterOperator(r)
			h.Identity.RegisterOperator(r)
			h.Audit.RegisterOperator(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(d.Tokens, d.Logger))
			r.Use(authmw.RequirePartitionMember(d.Logger))
			h.Identity.Register(r)
			h.Policies.Register(r)
			h.Claims.Register(r)
		})
	})
	return r
}

func readyHandler(checks map[string]Check, logger *slog.Logger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		status := http.StatusOK
		result := make(map[string]string, len(names))
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err)
				result[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			result[name] = "ok"
		}
		httputil.WriteJSON(w, status, result)
	}
}
