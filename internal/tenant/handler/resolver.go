package handler

import (
	"context"
	"log/slog"
	"net/http"

	"claimdesk/internal/tenant/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/httputil"
	request "claimdesk/pkg/platform/middleware/request"
	"claimdesk/pkg/requestcontext"
)

// Resolver maps a request host to a partition.
type Resolver interface {
	Resolve(ctx context.Context, host string) (id.Partition, error)
}

// ResolvePartition attaches the partition owning the request's Host to the
// request context. The platform host maps to the public partition. Unknown
// hosts get 404 before any handler runs.
func ResolvePartition(resolver Resolver, platformHost string, logger *slog.Logger) func(http.Handler) http.Handler {
	platformHost = models.NormalizeHost(platformHost)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			host := models.NormalizeHost(r.Host)

			p := id.PublicPartition
			if host != platformHost {
				var err error
				p, err = resolver.Resolve(ctx, host)
				if err != nil {
					httputil.LogAndWriteError(ctx, w, logger, request.GetRequestID(ctx), err, "tenant resolution failed")
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithPartition(ctx, p)))
		})
	}
}

// RequirePublicPartition admits only requests on the platform host.
func RequirePublicPartition(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requestcontext.Partition(r.Context()).IsPublic() {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
