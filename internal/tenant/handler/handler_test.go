package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	userstore "claimdesk/internal/identity/store/user"
	"claimdesk/internal/tenant/service"
	"claimdesk/internal/tenant/store/partition"
	"claimdesk/internal/tenant/store/registration"
	tenantstore "claimdesk/internal/tenant/store/tenant"
	"claimdesk/pkg/secrets"
)

func newTenantRouter(t *testing.T) (http.Handler, *service.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tenants := tenantstore.NewInMemory()
	users := userstore.New()
	provisioner := service.NewProvisioner(tenants, registration.NewInMemory(), partition.NewInMemory(users),
		users, secrets.Hasher{Cost: bcrypt.MinCost}, service.WithLogger(logger))
	registry := service.NewRegistry(tenants)

	h := New(provisioner, logger)
	r := chi.NewRouter()
	r.Use(ResolvePartition(registry, "localhost", logger))
	r.Group(func(r chi.Router) {
		r.Use(RequirePublicPartition)
		h.RegisterPublic(r)
		h.RegisterOperator(r)
	})
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return r, registry
}

func do(t *testing.T, router http.Handler, method, host, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Host = host
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registrationPayload() map[string]string {
	return map[string]string{
		"company_name":     "Acme",
		"business_type":    "auto",
		"company_phone":    "5550100",
		"contact_email":    "ops@acme.test",
		"requested_domain": "acme",
		"admin_email":      "admin@acme.test",
		"admin_phone":      "5550101",
		"admin_username":   "acmeadmin",
		"admin_password":   "s3cret-pass",
	}
}

func TestRegistrationFlow(t *testing.T) {
	router, _ := newTenantRouter(t)

	rec := do(t, router, http.MethodPost, "localhost:8080", "/register", registrationPayload())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg registrationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reg))
	assert.Equal(t, "acme.localhost", reg.RequestedDomain)
	assert.Equal(t, "pending", reg.Status)
	assert.NotContains(t, rec.Body.String(), "s3cret-pass")

	rec = do(t, router, http.MethodPost, "localhost", "/register", registrationPayload())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "domain_conflict")

	rec = do(t, router, http.MethodGet, "localhost", "/administration/registration-requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []registrationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)

	rec = do(t, router, http.MethodGet, "acme.localhost", "/whoami", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "tenant host is not routable before approval")

	rec = do(t, router, http.MethodPost, "localhost", "/administration/registration-requests/1/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tenant tenantResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tenant))
	assert.Equal(t, "acme", tenant.Schema)
	assert.Equal(t, "active", tenant.Status)
	assert.Equal(t, "acme.localhost", tenant.Domain)

	rec = do(t, router, http.MethodGet, "acme.localhost", "/whoami", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "localhost", "/administration/registration-requests/1/approve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRejectRegistration(t *testing.T) {
	router, _ := newTenantRouter(t)
	rec := do(t, router, http.MethodPost, "localhost", "/register", registrationPayload())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPost, "localhost", "/administration/registration-requests/1/reject", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, router, http.MethodPost, "localhost", "/administration/registration-requests/1/reject", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegistrationValidation(t *testing.T) {
	router, _ := newTenantRouter(t)

	t.Run("malformed registration id", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "localhost", "/administration/registration-requests/abc/approve", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "validation_error")
	})

	t.Run("invalid payload", func(t *testing.T) {
		payload := registrationPayload()
		payload["business_type"] = "marine"
		rec := do(t, router, http.MethodPost, "localhost", "/register", payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("registration is not served on tenant hosts", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "ghost.localhost", "/register", registrationPayload())
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "unknown_tenant")
	})
}
