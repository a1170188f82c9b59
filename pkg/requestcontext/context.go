// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values once per request; handlers read them and pass
// what services need as explicit arguments. The resolved tenant partition in
// particular is read here only by handlers, never by services or stores.
//
// Usage in handlers:
//
//	p := requestcontext.Partition(ctx)
//	principal := requestcontext.Principal(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithPartition(ctx, id.Partition{Schema: "acme"})
package requestcontext

import (
	"context"
	"time"

	id "claimdesk/pkg/domain"
)

type (
	principalKey   struct{}
	partitionKey   struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

var (
	ContextKeyPrincipal   = principalKey{}
	ContextKeyPartition   = partitionKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Authenticated principal
// -----------------------------------------------------------------------------

// AuthPrincipal is the verified identity carried by a bearer token.
// Role and Scope are the raw token values; callers parse them into their
// domain enums.
type AuthPrincipal struct {
	UserID   id.UserID
	Role     string
	Scope    string
	TenantID id.TenantID
}

// Principal returns the authenticated principal, or the zero value when the
// request is anonymous.
func Principal(ctx context.Context) AuthPrincipal {
	if p, ok := ctx.Value(ContextKeyPrincipal).(AuthPrincipal); ok {
		return p
	}
	return AuthPrincipal{}
}

func WithPrincipal(ctx context.Context, p AuthPrincipal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// UserID is shorthand for Principal(ctx).UserID.
func UserID(ctx context.Context) id.UserID {
	return Principal(ctx).UserID
}

// -----------------------------------------------------------------------------
// Tenant partition
// -----------------------------------------------------------------------------

// Partition returns the partition resolved for this request's host.
// Returns the zero Partition when no resolver ran.
func Partition(ctx context.Context) id.Partition {
	if p, ok := ctx.Value(ContextKeyPartition).(id.Partition); ok {
		return p
	}
	return id.Partition{}
}

func WithPartition(ctx context.Context, p id.Partition) context.Context {
	return context.WithValue(ctx, ContextKeyPartition, p)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
