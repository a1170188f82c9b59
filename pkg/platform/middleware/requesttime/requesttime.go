// Package requesttime pins "now" for the lifetime of a request, so a claim's
// UpdatedAt and the audit event recording the change carry the same instant.
package requesttime

import (
	"net/http"
	"time"

	"claimdesk/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(requestcontext.WithTime(r.Context(), time.Now().UTC())))
	})
}
