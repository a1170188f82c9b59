package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	request "claimdesk/pkg/platform/middleware/request"
	"claimdesk/pkg/requestcontext"
)

// RequirePlatformOperator admits global-scope admins, or callers presenting
// the bootstrap X-Admin-Token when one is configured. The token exists so
// the first global admin can be created on an empty deployment.
func RequirePlatformOperator(bootstrapToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal := requestcontext.Principal(ctx)
			if principal.Scope == "global" && principal.Role == "admin" {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("X-Admin-Token")
			// Use constant-time comparison to prevent timing attacks
			if bootstrapToken != "" && token != "" &&
				subtle.ConstantTimeCompare([]byte(token), []byte(bootstrapToken)) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			logger.WarnContext(ctx, "platform operator check failed",
				"request_id", request.GetRequestID(ctx),
				"user_id", principal.UserID.String(),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"platform operator required"}`))
		})
	}
}
