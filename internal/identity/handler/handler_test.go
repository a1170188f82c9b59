package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"claimdesk/internal/identity/models"
	"claimdesk/internal/identity/service"
	userStore "claimdesk/internal/identity/store/user"
	"claimdesk/internal/jwttoken"
	tenantservice "claimdesk/internal/tenant/service"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/secrets"
	"claimdesk/pkg/testutil"
)

type IdentityHandlerSuite struct {
	suite.Suite
	router    chi.Router
	users     *userStore.InMemoryUserStore
	jwt       *jwttoken.JWTService
	partition id.Partition
	admin     *models.User
}

func TestIdentityHandlerSuite(t *testing.T) {
	suite.Run(t, new(IdentityHandlerSuite))
}

func (s *IdentityHandlerSuite) SetupTest() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher := secrets.Hasher{Cost: bcrypt.MinCost}

	s.users = userStore.New()
	s.jwt = jwttoken.NewJWTService("key", "claimdesk", "claimdesk")
	s.partition = id.Partition{TenantID: id.NewTenantID(), Schema: "acme"}
	s.Require().NoError(s.users.CreatePartition(ctx, s.partition.Schema))

	hash, err := hasher.Hash("admin-password")
	s.Require().NoError(err)
	s.admin, err = models.NewUser(models.NewUserParams{
		Email: "admin@acme.test", Username: "admin", Phone: "100",
		PasswordHash: hash, Role: models.RoleAdmin,
		Scope: models.ScopeTenant, TenantID: s.partition.TenantID,
	}, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.users.Create(ctx, s.partition, s.admin))

	svc := service.New(s.users, nil, hasher, s.jwt, service.WithLogger(logger))
	h := New(svc, logger, WithTenantRefs(tenantservice.NewRegistry(nil)))

	s.router = chi.NewRouter()
	h.RegisterPublic(s.router)
	h.Register(s.router)
	h.RegisterOperator(s.router)
}

func (s *IdentityHandlerSuite) do(req *http.Request, principal *models.User) *http.Request {
	req = testutil.WithPartition(req, s.partition)
	if principal != nil {
		req = testutil.WithPrincipal(req, principal.ID, string(principal.Role), string(principal.Scope), principal.TenantID)
	}
	return req
}

func (s *IdentityHandlerSuite) TestLogin() {
	s.Run("valid credentials return a bearer token", func() {
		req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/token",
			map[string]string{"email": "ADMIN@acme.test", "password": "admin-password"}), nil)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)

		res := testutil.UnmarshalResponse[models.TokenResult](s.T(), rr)
		claims, err := s.jwt.ValidateToken(res.AccessToken)
		s.Require().NoError(err)
		s.Equal(s.admin.ID.String(), claims.UserID)
		s.Equal("admin", claims.Role)
		s.Equal(s.partition.TenantID.String(), claims.TenantID)
	})

	s.Run("wrong password", func() {
		req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/token",
			map[string]string{"email": "admin@acme.test", "password": "nope"}), nil)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("missing fields", func() {
		req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/token",
			map[string]string{"email": "admin@acme.test"}), nil)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *IdentityHandlerSuite) TestGetUser() {
	s.Run("returns the profile without the password hash", func() {
		req := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/users/"+s.admin.ID.String()), nil)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		s.NotContains(rr.Body.String(), "password")
		s.Contains(rr.Body.String(), `"role":"admin"`)
	})

	s.Run("rejects ids that are not version 4 uuids", func() {
		for _, raw := range []string{"not-a-uuid", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"} {
			req := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/users/"+raw), nil)
			rr := testutil.DoRequest(s.router, req)
			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
		}
		req := s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/users/not-a-uuid"), s.admin)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("unknown user", func() {
		req := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/users/"+id.NewUserID().String()), nil)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func (s *IdentityHandlerSuite) TestCreateAndDeleteUser() {
	body := map[string]string{
		"email": "adj@acme.test", "username": "adj", "phone_number": "200",
		"password": "adjuster-pass", "role": "adjuster",
	}

	req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/users", body), s.admin)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	created := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	userID := (*created)["id"].(string)

	s.Run("duplicate is a conflict", func() {
		req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/users", body), s.admin)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})

	s.Run("non-admin cannot delete", func() {
		adj, err := s.users.FindByEmail(context.Background(), s.partition, "adj@acme.test")
		s.Require().NoError(err)
		req := s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/users/"+s.admin.ID.String()), adj)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("admin deletes", func() {
		req := s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/users/"+userID), s.admin)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
	})
}

func (s *IdentityHandlerSuite) TestCreateUserTenantReference() {
	body := func(username, tenantID string) map[string]string {
		return map[string]string{
			"email": username + "@acme.test", "username": username, "phone_number": "3" + username,
			"password": "adjuster-pass", "role": "adjuster", "tenant_id": tenantID,
		}
	}

	s.Run("another tenant is forbidden", func() {
		req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/users", body("other", id.NewTenantID().String())), s.admin)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
		_, err := s.users.FindByEmail(context.Background(), s.partition, "other@acme.test")
		s.Error(err)
	})

	s.Run("malformed tenant id", func() {
		req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/users", body("broken", "acme")), s.admin)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("own tenant is accepted", func() {
		req := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/users", body("own", s.partition.TenantID.String())), s.admin)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	})
}

func (s *IdentityHandlerSuite) TestCreateGlobalAdmin() {
	body := map[string]string{
		"email": "root@platform.test", "username": "root", "phone_number": "1",
		"password": "platform-pass",
	}
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/administration/global-admins", body)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	s.Contains(rr.Body.String(), `"scope":"global"`)
	s.NotContains(rr.Body.String(), "tenant_id")

	_, err := s.users.FindByEmail(context.Background(), id.PublicPartition, "root@platform.test")
	s.NoError(err)
}
