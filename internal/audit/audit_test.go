package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/audit"
	"claimdesk/pkg/platform/audit/store/memory"
)

func TestHandlerList(t *testing.T) {
	ctx := context.Background()
	store := memory.NewInMemoryStore()
	acme := id.NewTenantID()
	actor := id.NewUserID()
	require.NoError(t, store.Append(ctx, audit.Event{Action: "claim_created", TenantID: acme, ActorID: actor}))
	require.NoError(t, store.Append(ctx, audit.Event{Action: "claim_assigned", TenantID: acme}))
	require.NoError(t, store.Append(ctx, audit.Event{Action: "tenant_provisioned"}))

	r := chi.NewRouter()
	NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterOperator(r)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}
	decode := func(rec *httptest.ResponseRecorder) []eventResponse {
		var out []eventResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
		return out
	}

	t.Run("recent first", func(t *testing.T) {
		rec := get("/administration/audit-events")
		require.Equal(t, http.StatusOK, rec.Code)
		all := decode(rec)
		require.Len(t, all, 3)
		assert.Equal(t, "tenant_provisioned", all[0].Action)
		assert.Empty(t, all[0].TenantID)
	})

	t.Run("limit", func(t *testing.T) {
		rec := get("/administration/audit-events?limit=1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode(rec), 1)
	})

	t.Run("by tenant", func(t *testing.T) {
		rec := get("/administration/audit-events?tenant_id=" + acme.String() + "&limit=1")
		require.Equal(t, http.StatusOK, rec.Code)
		scoped := decode(rec)
		require.Len(t, scoped, 1)
		assert.Equal(t, acme.String(), scoped[0].TenantID)
	})

	t.Run("bad input", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get("/administration/audit-events?limit=0").Code)
		assert.Equal(t, http.StatusBadRequest, get("/administration/audit-events?limit=abc").Code)
		assert.Equal(t, http.StatusBadRequest, get("/administration/audit-events?tenant_id=nope").Code)
	})
}
