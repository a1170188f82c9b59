package registration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"claimdesk/internal/tenant/models"
	"claimdesk/pkg/platform/sentinel"
)

type RegistrationStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestRegistrationStoreSuite(t *testing.T) {
	suite.Run(t, new(RegistrationStoreSuite))
}

func (s *RegistrationStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *RegistrationStoreSuite) newRequest(domain string) *models.RegistrationRequest {
	return &models.RegistrationRequest{
		CompanyName:     "Acme",
		RequestedDomain: domain,
		Status:          models.RegistrationPending,
		CreatedAt:       time.Now(),
	}
}

func (s *RegistrationStoreSuite) TestCreate() {
	s.Run("assigns increasing ids", func() {
		a := s.newRequest("a.localhost")
		b := s.newRequest("b.localhost")
		s.Require().NoError(s.store.Create(s.ctx, a))
		s.Require().NoError(s.store.Create(s.ctx, b))
		s.Less(a.ID, b.ID)
	})

	s.Run("rejects a second request for the same domain", func() {
		err := s.store.Create(s.ctx, s.newRequest("a.localhost"))
		s.Require().ErrorIs(err, ErrDomainPending)
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)

		pending, err := s.store.DomainPending(s.ctx, "a.localhost")
		s.Require().NoError(err)
		s.True(pending)
	})
}

func (s *RegistrationStoreSuite) TestApprovalStates() {
	r := s.newRequest("acme.localhost")
	s.Require().NoError(s.store.Create(s.ctx, r))

	s.Run("begin approval is a compare-and-set", func() {
		got, err := s.store.BeginApproval(s.ctx, r.ID, time.Now())
		s.Require().NoError(err)
		s.Equal(models.RegistrationApproving, got.Status)

		_, err = s.store.BeginApproval(s.ctx, r.ID, time.Now())
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("reset returns the request to pending", func() {
		s.Require().NoError(s.store.ResetToPending(s.ctx, r.ID))
		got, err := s.store.FindByID(s.ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(models.RegistrationPending, got.Status)
		s.Nil(got.ApprovalStartedAt)
	})

	s.Run("stale approvals are reset", func() {
		_, err := s.store.BeginApproval(s.ctx, r.ID, time.Now().Add(-time.Hour))
		s.Require().NoError(err)
		n, err := s.store.ResetStale(s.ctx, time.Now().Add(-time.Minute))
		s.Require().NoError(err)
		s.Equal(1, n)
	})

	s.Run("delete twice is not found", func() {
		s.Require().NoError(s.store.Delete(s.ctx, r.ID))
		s.Require().ErrorIs(s.store.Delete(s.ctx, r.ID), sentinel.ErrNotFound)
		_, err := s.store.BeginApproval(s.ctx, r.ID, time.Now())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}
