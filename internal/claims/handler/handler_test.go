package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"claimdesk/internal/claims/service"
	claimstore "claimdesk/internal/claims/store/claim"
	idmodels "claimdesk/internal/identity/models"
	userstore "claimdesk/internal/identity/store/user"
	"claimdesk/internal/platform/filestore"
	policymodels "claimdesk/internal/policies/models"
	policystore "claimdesk/internal/policies/store/policy"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/requestcontext"
)

type ClaimHandlerSuite struct {
	suite.Suite
	router   http.Handler
	p        id.Partition
	staff    map[idmodels.Role]id.UserID
	policyID id.PolicyID
}

func TestClaimHandlerSuite(t *testing.T) {
	suite.Run(t, new(ClaimHandlerSuite))
}

// withStaff authenticates every request as the staff member whose role is
// named in the X-Role header.
func (s *ClaimHandlerSuite) withStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := idmodels.Role(r.Header.Get("X-Role"))
		ctx := requestcontext.WithPartition(r.Context(), s.p)
		ctx = requestcontext.WithPrincipal(ctx, requestcontext.AuthPrincipal{
			UserID:   s.staff[role],
			Role:     string(role),
			TenantID: s.p.TenantID,
		})
		ctx = requestcontext.WithTime(ctx, time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *ClaimHandlerSuite) SetupTest() {
	ctx := context.Background()
	s.p = id.Partition{TenantID: id.NewTenantID(), Schema: "acme"}
	claims := claimstore.NewInMemory()
	policies := policystore.NewInMemory()
	users := userstore.New()
	for _, create := range []func(context.Context, string) error{claims.CreatePartition, policies.CreatePartition, users.CreatePartition} {
		s.Require().NoError(create(ctx, s.p.Schema))
	}

	s.staff = map[idmodels.Role]id.UserID{}
	for i, role := range []idmodels.Role{idmodels.RoleCallCenter, idmodels.RoleAdjuster, idmodels.RoleManager} {
		u, err := idmodels.NewUser(idmodels.NewUserParams{
			Email:        fmt.Sprintf("%s@acme.test", role),
			Username:     string(role),
			Phone:        fmt.Sprintf("555010%d", i),
			PasswordHash: "hash",
			Role:         role,
			Scope:        idmodels.ScopeTenant,
			TenantID:     s.p.TenantID,
		}, time.Now())
		s.Require().NoError(err)
		s.Require().NoError(users.Create(ctx, s.p, u))
		s.staff[role] = u.ID
	}

	pol := &policymodels.Policy{Number: "1111-2222-3333", TenantID: s.p.TenantID, Type: policymodels.TypeHome, Active: true}
	s.Require().NoError(policies.Create(ctx, s.p, pol))
	s.policyID = pol.ID

	files, err := filestore.NewLocal(s.T().TempDir())
	s.Require().NoError(err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(service.New(claims, policies, users, files), logger)

	r := chi.NewRouter()
	r.Use(s.withStaff)
	h.Register(r)
	s.router = r
}

func (s *ClaimHandlerSuite) do(role idmodels.Role, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Role", string(role))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *ClaimHandlerSuite) createClaim() claimResponse {
	rec := s.do(idmodels.RoleCallCenter, http.MethodPost, fmt.Sprintf("/policy/%d/claims", s.policyID), map[string]any{
		"title":         "Kitchen fire",
		"claim_amount":  "1520.50",
		"incident_date": "2026-06-28",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var c claimResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&c))
	return c
}

func (s *ClaimHandlerSuite) TestCreateAndRead() {
	c := s.createClaim()
	s.Equal("reported", c.Status)
	s.Regexp(`^CLM-\d{4}-\d{4}-\d{4}$`, c.Number)
	s.Equal([]string{"assigned", "denied"}, c.AllowedNext)
	s.Require().NotNil(c.ClaimAmount)
	s.Equal(id.Amount(152050), *c.ClaimAmount)

	rec := s.do(idmodels.RoleAdjuster, http.MethodGet, fmt.Sprintf("/policy/%d/claims/%d", s.policyID, c.ID), nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"notes":[]`)
	s.Contains(rec.Body.String(), `"documents":[]`)

	rec = s.do(idmodels.RoleAdjuster, http.MethodGet, fmt.Sprintf("/policy/%d/claims", s.policyID), nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var list []claimResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&list))
	s.Len(list, 1)
}

func (s *ClaimHandlerSuite) TestStatusChanges() {
	c := s.createClaim()
	path := fmt.Sprintf("/claims/%d/status", c.ID)

	rec := s.do(idmodels.RoleCallCenter, http.MethodPost, path, map[string]string{"status": "assigned"})
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(idmodels.RoleAdjuster, http.MethodPost, path, map[string]string{"status": "paid"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "invalid_transition")

	rec = s.do(idmodels.RoleAdjuster, http.MethodPost, path, map[string]string{"status": "lost"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "validation_error")

	rec = s.do(idmodels.RoleAdjuster, http.MethodPost, path, map[string]string{"status": "assigned"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Contains(rec.Body.String(), `"status":"assigned"`)
}

func (s *ClaimHandlerSuite) TestAssignAndListByUser() {
	c := s.createClaim()
	adjuster := s.staff[idmodels.RoleAdjuster]

	rec := s.do(idmodels.RoleCallCenter, http.MethodPost, fmt.Sprintf("/claims/%d/assign", c.ID),
		map[string]string{"user_id": adjuster.String()})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(idmodels.RoleAdjuster, http.MethodGet, fmt.Sprintf("/users/%s/claims", adjuster), nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var list []claimResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&list))
	s.Require().Len(list, 1)
	s.Equal("reported", list[0].Status)

	rec = s.do(idmodels.RoleAdjuster, http.MethodGet, "/users/6ba7b810-9dad-11d1-80b4-00c04fd430c8/claims", nil)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(idmodels.RoleAdjuster, http.MethodGet, fmt.Sprintf("/users/%s/claims", id.NewUserID()), nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ClaimHandlerSuite) TestNotes() {
	c := s.createClaim()

	rec := s.do(idmodels.RoleAdjuster, http.MethodPost, fmt.Sprintf("/claims/%d/notes", c.ID),
		map[string]any{"text": "spoke with the insured", "is_internal": true})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var note noteResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&note))

	rec = s.do(idmodels.RoleCallCenter, http.MethodPatch, fmt.Sprintf("/notes/%d", note.ID), map[string]any{"text": "edited"})
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(idmodels.RoleAdjuster, http.MethodPatch, fmt.Sprintf("/notes/%d", note.ID), map[string]any{"text": "edited"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"text":"edited"`)

	rec = s.do(idmodels.RoleManager, http.MethodDelete, fmt.Sprintf("/notes/%d", note.ID), nil)
	s.Equal(http.StatusNoContent, rec.Code)
	rec = s.do(idmodels.RoleManager, http.MethodDelete, fmt.Sprintf("/notes/%d", note.ID), nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ClaimHandlerSuite) TestDocuments() {
	c := s.createClaim()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	s.Require().NoError(mw.WriteField("document_type", "estimate"))
	part, err := mw.CreateFormFile("file", "estimate.pdf")
	s.Require().NoError(err)
	_, err = part.Write([]byte("%PDF-1.7"))
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/claims/%d/documents", c.ID), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Role", string(idmodels.RoleAdjuster))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var doc documentResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&doc))
	s.Equal("estimate", doc.Type)
	s.Contains(doc.File, fmt.Sprintf("acme/claims/%d/", c.ID))

	rec = s.do(idmodels.RoleAdjuster, http.MethodPost, fmt.Sprintf("/claims/%d/documents", c.ID), nil)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(idmodels.RoleAdjuster, http.MethodDelete, fmt.Sprintf("/documents/%d", doc.ID), nil)
	s.Equal(http.StatusNoContent, rec.Code)
}

func (s *ClaimHandlerSuite) TestDeleteClaim() {
	c := s.createClaim()
	path := fmt.Sprintf("/policy/%d/claims/%d", s.policyID, c.ID)

	rec := s.do(idmodels.RoleAdjuster, http.MethodDelete, path, nil)
	s.Equal(http.StatusForbidden, rec.Code, "adjusters cannot delete reported claims")

	rec = s.do(idmodels.RoleCallCenter, http.MethodDelete, path, nil)
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(idmodels.RoleCallCenter, http.MethodGet, path, nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func TestMalformedIDs(t *testing.T) {
	h := New(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)

	for _, path := range []string{"/policy/abc/claims", "/policy/1/claims/x", "/notes/-1", "/documents/0"} {
		method := http.MethodGet
		if path == "/notes/-1" || path == "/documents/0" {
			method = http.MethodDelete
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "validation_error", path)
	}
}
