package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	audithandler "claimdesk/internal/audit"
	claimhandler "claimdesk/internal/claims/handler"
	identityhandler "claimdesk/internal/identity/handler"
	policyhandler "claimdesk/internal/policies/handler"
	tenanthandler "claimdesk/internal/tenant/handler"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	authmw "claimdesk/pkg/platform/middleware/auth"
	"claimdesk/pkg/testutil"
)

type noTenants struct{}

func (noTenants) Resolve(context.Context, string) (id.Partition, error) {
	return id.Partition{}, dErrors.New(dErrors.CodeUnknownTenant, "unknown tenant")
}

type rejectAll struct{}

func (rejectAll) ValidateToken(string) (*authmw.JWTClaims, error) {
	return nil, errors.New("invalid token")
}

func newTestRouter(checks map[string]Check) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(Deps{
		Logger:       logger,
		Resolver:     noTenants{},
		PlatformHost: "localhost",
		Tokens:       rejectAll{},
		Checks:       checks,
	}, Handlers{
		Tenant:   tenanthandler.New(nil, logger),
		Identity: identityhandler.New(nil, logger),
		Policies: policyhandler.New(nil, logger),
		Claims:   claimhandler.New(nil, logger),
		Audit:    audithandler.NewHandler(nil, logger),
	})
}

func get(h http.Handler, host, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Host = host
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthChecksSkipHostResolution(t *testing.T) {
	router := newTestRouter(nil)

	rec := get(router, "ghost.example", "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	assert.Equal(t, http.StatusOK, get(router, "ghost.example", "/ready").Code)
}

func TestReadyReportsFailingDependency(t *testing.T) {
	router := newTestRouter(map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})

	rec := get(router, "localhost", "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"postgres":"ok","redis":"unavailable"}`, rec.Body.String())
}

func TestModuleRoutesResolveHost(t *testing.T) {
	testutil.Given(t, "the assembled router", func(t *testing.T) {
		router := newTestRouter(nil)

		testutil.When(t, "the host belongs to no tenant", func(t *testing.T) {
			rec := get(router, "ghost.example", "/policies")

			testutil.Then(t, "resolution fails before any handler runs", func(t *testing.T) {
				assert.Equal(t, http.StatusNotFound, rec.Code)
				assert.Contains(t, rec.Body.String(), "unknown_tenant")
			})
		})

		testutil.When(t, "a member route is called without a token", func(t *testing.T) {
			rec := get(router, "localhost", "/policies")

			testutil.Then(t, "it is rejected as unauthenticated", func(t *testing.T) {
				assert.Equal(t, http.StatusUnauthorized, rec.Code)
			})
		})

		testutil.When(t, "an operator route is called anonymously", func(t *testing.T) {
			rec := get(router, "localhost", "/administration/registration-requests")

			testutil.Then(t, "it is forbidden", func(t *testing.T) {
				assert.Equal(t, http.StatusForbidden, rec.Code)
			})
		})
	})
}
