package claim

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"claimdesk/internal/claims/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

type InMemoryClaimStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	p     id.Partition
	now   time.Time
}

func TestInMemoryClaimStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryClaimStoreSuite))
}

func (s *InMemoryClaimStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.p = id.Partition{TenantID: id.NewTenantID(), Schema: "acme"}
	s.now = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.CreatePartition(s.ctx, s.p.Schema))
}

func (s *InMemoryClaimStoreSuite) newClaim(number string) *models.Claim {
	return &models.Claim{
		Number:    number,
		TenantID:  s.p.TenantID,
		PolicyID:  1,
		Title:     "Hail damage",
		Status:    models.StatusReported,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
}

func (s *InMemoryClaimStoreSuite) TestCreateAssignsIDsAndRejectsDuplicateNumbers() {
	first := s.newClaim("CLM-0000-0000-0001")
	s.Require().NoError(s.store.Create(s.ctx, s.p, first))
	s.Equal(id.ClaimID(1), first.ID)

	err := s.store.Create(s.ctx, s.p, s.newClaim("CLM-0000-0000-0001"))
	s.ErrorIs(err, ErrNumberTaken)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *InMemoryClaimStoreSuite) TestPartitionsAreIsolated() {
	other := id.Partition{TenantID: id.NewTenantID(), Schema: "globex"}
	s.Require().NoError(s.store.CreatePartition(s.ctx, other.Schema))

	c := s.newClaim("CLM-0000-0000-0001")
	s.Require().NoError(s.store.Create(s.ctx, s.p, c))

	_, err := s.store.FindByID(s.ctx, other, c.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.NoError(s.store.Create(s.ctx, other, s.newClaim("CLM-0000-0000-0001")), "numbers are unique per partition")
}

func (s *InMemoryClaimStoreSuite) TestCreateInUnknownPartition() {
	err := s.store.Create(s.ctx, id.Partition{Schema: "ghost"}, s.newClaim("CLM-0000-0000-0001"))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryClaimStoreSuite) TestReturnedClaimsAreCopies() {
	c := s.newClaim("CLM-0000-0000-0001")
	s.Require().NoError(s.store.Create(s.ctx, s.p, c))

	got, err := s.store.FindByID(s.ctx, s.p, c.ID)
	s.Require().NoError(err)
	got.Title = "mutated"

	again, err := s.store.FindByID(s.ctx, s.p, c.ID)
	s.Require().NoError(err)
	s.Equal("Hail damage", again.Title)
}

func (s *InMemoryClaimStoreSuite) TestUpdateIsGuardedByStatus() {
	c := s.newClaim("CLM-0000-0000-0001")
	s.Require().NoError(s.store.Create(s.ctx, s.p, c))

	c.Title = "Flood damage"
	s.Require().NoError(s.store.Update(s.ctx, s.p, c))
	got, err := s.store.FindByID(s.ctx, s.p, c.ID)
	s.Require().NoError(err)
	s.Equal("Flood damage", got.Title)
	s.Equal(models.StatusReported, got.Status)

	stale, err := s.store.FindByID(s.ctx, s.p, c.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpdateStatus(s.ctx, s.p, c.ID, models.StatusReported, models.StatusAssigned, s.now))
	stale.Title = "Edited after the status moved"
	s.ErrorIs(s.store.Update(s.ctx, s.p, stale), sentinel.ErrConflict)

	got, err = s.store.FindByID(s.ctx, s.p, c.ID)
	s.Require().NoError(err)
	s.Equal("Flood damage", got.Title)
	s.Equal(models.StatusAssigned, got.Status)

	missing := s.newClaim("CLM-0000-0000-0099")
	missing.ID = 99
	s.ErrorIs(s.store.Update(s.ctx, s.p, missing), sentinel.ErrNotFound)
}

func (s *InMemoryClaimStoreSuite) TestUpdateStatusIsCompareAndSet() {
	c := s.newClaim("CLM-0000-0000-0001")
	s.Require().NoError(s.store.Create(s.ctx, s.p, c))
	later := s.now.Add(time.Minute)

	s.Require().NoError(s.store.UpdateStatus(s.ctx, s.p, c.ID, models.StatusReported, models.StatusAssigned, later))
	err := s.store.UpdateStatus(s.ctx, s.p, c.ID, models.StatusReported, models.StatusDenied, later)
	s.ErrorIs(err, sentinel.ErrConflict)

	got, _ := s.store.FindByID(s.ctx, s.p, c.ID)
	s.Equal(models.StatusAssigned, got.Status)
	s.Equal(later, got.UpdatedAt)

	err = s.store.UpdateStatus(s.ctx, s.p, 99, models.StatusReported, models.StatusAssigned, later)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryClaimStoreSuite) TestDeleteCascades() {
	c := s.newClaim("CLM-0000-0000-0001")
	s.Require().NoError(s.store.Create(s.ctx, s.p, c))
	note := &models.Note{ClaimID: c.ID, Text: "called insured"}
	doc := &models.Document{ClaimID: c.ID, Type: models.DocumentPhoto, FileRef: "acme/1/a.jpg"}
	s.Require().NoError(s.store.AddNote(s.ctx, s.p, note))
	s.Require().NoError(s.store.AddDocument(s.ctx, s.p, doc))

	s.Require().NoError(s.store.Delete(s.ctx, s.p, c.ID))

	_, err := s.store.FindNote(s.ctx, s.p, note.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindDocument(s.ctx, s.p, doc.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, s.p, c.ID), sentinel.ErrNotFound)
}

func (s *InMemoryClaimStoreSuite) TestNotesRequireClaim() {
	err := s.store.AddNote(s.ctx, s.p, &models.Note{ClaimID: 42, Text: "x"})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryClaimStoreSuite) TestReleaseAssigneeAndListByAssignee() {
	adjuster := id.NewUserID()
	for i := 1; i <= 3; i++ {
		c := s.newClaim(fmt.Sprintf("CLM-0000-0000-000%d", i))
		if i != 2 {
			c.AssignedTo = &adjuster
		}
		s.Require().NoError(s.store.Create(s.ctx, s.p, c))
	}

	assigned, err := s.store.ListByAssignee(s.ctx, s.p, adjuster)
	s.Require().NoError(err)
	s.Require().Len(assigned, 2)
	s.Equal(id.ClaimID(1), assigned[0].ID)
	s.Equal(id.ClaimID(3), assigned[1].ID)

	s.Require().NoError(s.store.ReleaseAssignee(s.ctx, s.p, adjuster))
	assigned, err = s.store.ListByAssignee(s.ctx, s.p, adjuster)
	s.Require().NoError(err)
	s.Empty(assigned)
}

func (s *InMemoryClaimStoreSuite) TestDropPartitionDiscardsClaims() {
	c := s.newClaim("CLM-0000-0000-0001")
	s.Require().NoError(s.store.Create(s.ctx, s.p, c))
	s.Require().NoError(s.store.DropPartition(s.ctx, s.p.Schema))

	_, err := s.store.FindByID(s.ctx, s.p, c.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	list, err := s.store.ListByPolicy(s.ctx, s.p, 1)
	s.NoError(err)
	s.Empty(list)
}

func TestInMemory_ConcurrentCreateSameNumber(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	p := id.Partition{TenantID: id.NewTenantID(), Schema: "acme"}
	require.NoError(t, store.CreatePartition(ctx, p.Schema))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Create(ctx, p, &models.Claim{Number: "CLM-1234-1234-1234", Status: models.StatusReported})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}
