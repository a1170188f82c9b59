package registration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"claimdesk/internal/tenant/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

// Error Contract:
// - ErrDomainPending when another request holds the hostname
// - sentinel.ErrNotFound for unknown ids
// - sentinel.ErrConflict when BeginApproval finds the request already approving
type InMemory struct {
	mu       sync.RWMutex
	nextID   id.RegistrationID
	requests map[id.RegistrationID]*models.RegistrationRequest
}

func NewInMemory() *InMemory {
	return &InMemory{requests: make(map[id.RegistrationID]*models.RegistrationRequest)}
}

// LockDomain is a no-op; callers serialize through tx.LockRunner.
func (s *InMemory) LockDomain(context.Context, string) error {
	return nil
}

// Create assigns the next id and stores r.
func (s *InMemory) Create(_ context.Context, r *models.RegistrationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.RequestedDomain == r.RequestedDomain {
			return ErrDomainPending
		}
	}
	s.nextID++
	r.ID = s.nextID
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, regID id.RegistrationID) (*models.RegistrationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.requests[regID]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, fmt.Errorf("registration request not found: %w", sentinel.ErrNotFound)
}

func (s *InMemory) DomainPending(_ context.Context, host string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.requests {
		if r.RequestedDomain == host {
			return true, nil
		}
	}
	return false, nil
}

// List returns every open request, oldest first.
func (s *InMemory) List(_ context.Context) ([]*models.RegistrationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.RegistrationRequest, 0, len(s.requests))
	for _, r := range s.requests {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// BeginApproval moves a pending request to approving and returns it.
func (s *InMemory) BeginApproval(_ context.Context, regID id.RegistrationID, now time.Time) (*models.RegistrationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[regID]
	if !ok {
		return nil, fmt.Errorf("registration request not found: %w", sentinel.ErrNotFound)
	}
	if err := r.CanBeginApproval(); err != nil {
		return nil, fmt.Errorf("begin approval: %w", sentinel.ErrConflict)
	}
	r.ApplyBeginApproval(now)
	cp := *r
	return &cp, nil
}

func (s *InMemory) ResetToPending(_ context.Context, regID id.RegistrationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[regID]
	if !ok {
		return fmt.Errorf("registration request not found: %w", sentinel.ErrNotFound)
	}
	r.ApplyReset()
	return nil
}

func (s *InMemory) Delete(_ context.Context, regID id.RegistrationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[regID]; !ok {
		return fmt.Errorf("registration request not found: %w", sentinel.ErrNotFound)
	}
	delete(s.requests, regID)
	return nil
}

// ResetStale returns requests stuck in approving since before cutoff to
// pending and reports how many it reset.
func (s *InMemory) ResetStale(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Status == models.RegistrationApproving && r.ApprovalStartedAt != nil && r.ApprovalStartedAt.Before(cutoff) {
			r.ApplyReset()
			n++
		}
	}
	return n, nil
}
