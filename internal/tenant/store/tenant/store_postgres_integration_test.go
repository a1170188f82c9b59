//go:build integration

package tenant_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"claimdesk/internal/tenant/models"
	"claimdesk/internal/tenant/store/tenant"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
	"claimdesk/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *tenant.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = tenant.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "domains", "tenants")
	s.Require().NoError(err)
}

func newTestTenant(name, schema string) (*models.Tenant, *models.Domain) {
	t := &models.Tenant{
		ID:               id.NewTenantID(),
		Name:             name,
		Code:             strings.ToUpper(uuid.NewString()[:10]),
		BusinessType:     models.BusinessProperty,
		DefaultCurrency:  "USD",
		SubscriptionPlan: models.PlanBasic,
		Schema:           schema,
		Status:           models.TenantStatusProvisioning,
		CreatedAt:        time.Now(),
	}
	return t, &models.Domain{Hostname: schema + ".localhost", TenantID: t.ID, IsPrimary: true}
}

// TestConcurrentDomainClaim verifies that concurrent attempts to claim one
// hostname yield exactly one tenant.
func (s *PostgresStoreSuite) TestConcurrentDomainClaim() {
	ctx := context.Background()
	const goroutines = 30

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			t, d := newTestTenant(fmt.Sprintf("Racer %d", i), fmt.Sprintf("racer_%d", i))
			d.Hostname = "contested.localhost"
			err := s.store.CreateWithDomain(ctx, t, d)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, tenant.ErrDomainTaken):
				conflictCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one create should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *PostgresStoreSuite) TestCaseInsensitiveName() {
	ctx := context.Background()
	t1, d1 := newTestTenant("Acme Insurance", "acme_insurance")
	s.Require().NoError(s.store.CreateWithDomain(ctx, t1, d1))

	t2, d2 := newTestTenant("ACME INSURANCE", "acme_two")
	err := s.store.CreateWithDomain(ctx, t2, d2)
	s.Require().ErrorIs(err, tenant.ErrNameTaken)

	exists, err := s.store.DomainExists(ctx, d2.Hostname)
	s.Require().NoError(err)
	s.False(exists, "failed create leaves no domain behind")
}

func (s *PostgresStoreSuite) TestActivateAndResolve() {
	ctx := context.Background()
	t, d := newTestTenant("Resolve Co", "resolve_co")
	s.Require().NoError(s.store.CreateWithDomain(ctx, t, d))

	_, err := s.store.FindActiveByHost(ctx, d.Hostname)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.Activate(ctx, t.ID))
	found, err := s.store.FindActiveByHost(ctx, d.Hostname)
	s.Require().NoError(err)
	s.Equal(t.ID, found.ID)

	s.Require().ErrorIs(s.store.Activate(ctx, t.ID), sentinel.ErrInvalidState)

	s.Require().NoError(s.store.Delete(ctx, t.ID))
	exists, err := s.store.DomainExists(ctx, d.Hostname)
	s.Require().NoError(err)
	s.False(exists)
}
