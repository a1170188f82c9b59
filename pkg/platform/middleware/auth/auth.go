package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "claimdesk/pkg/domain"
	request "claimdesk/pkg/platform/middleware/request"
	"claimdesk/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	UserID   string
	Role     string
	Scope    string
	TenantID string // empty for global-scope users
	JTI      string
}

const scopeGlobal = "global"

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

func principalFromClaims(claims *JWTClaims) (requestcontext.AuthPrincipal, error) {
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return requestcontext.AuthPrincipal{}, err
	}
	p := requestcontext.AuthPrincipal{UserID: userID, Role: claims.Role, Scope: claims.Scope}
	if claims.TenantID != "" {
		tenantID, err := id.ParseTenantID(claims.TenantID)
		if err != nil {
			return requestcontext.AuthPrincipal{}, err
		}
		p.TenantID = tenantID
	}
	return p, nil
}

// OptionalAuth attaches the principal when a valid bearer token is present
// and lets anonymous requests through. Invalid tokens are still rejected.
func OptionalAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return authenticate(validator, logger, false)
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return authenticate(validator, logger, true)
}

func authenticate(validator JWTValidator, logger *slog.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if token, ok := strings.CutPrefix(authHeader, bearerPrefix); ok {
				claims, err := validator.ValidateToken(token)
				if err != nil {
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err,
						"request_id", request.GetRequestID(ctx),
					)
					writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
					return
				}
				principal, err := principalFromClaims(claims)
				if err != nil {
					logger.WarnContext(ctx, "unauthorized access - malformed token subject",
						"error", err,
						"request_id", request.GetRequestID(ctx),
					)
					writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
					return
				}
				next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(ctx, principal)))
				return
			}

			if !required && authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			logger.WarnContext(ctx, "unauthorized access - missing token",
				"request_id", request.GetRequestID(ctx),
			)
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
		})
	}
}

// RequirePartitionMember rejects authenticated principals whose tenant does
// not own the partition resolved for this request. Global-scope principals
// are only accepted on the public partition.
func RequirePartitionMember(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal := requestcontext.Principal(ctx)
			if principal.UserID.IsNil() {
				next.ServeHTTP(w, r)
				return
			}
			partition := requestcontext.Partition(ctx)
			member := principal.TenantID == partition.TenantID
			if principal.Scope == scopeGlobal {
				member = partition.IsPublic()
			}
			if !member {
				logger.WarnContext(ctx, "cross-partition access rejected",
					"user_id", principal.UserID.String(),
					"partition", partition.Schema,
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Token is not valid for this tenant")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
