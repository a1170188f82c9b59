package policy

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"claimdesk/internal/policies/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

type table struct {
	rows map[id.PolicyID]*models.Policy
	next id.PolicyID
}

// InMemory keeps one policy table per partition.
type InMemory struct {
	mu         sync.RWMutex
	partitions map[string]*table
}

func NewInMemory() *InMemory {
	return &InMemory{partitions: map[string]*table{}}
}

func (s *InMemory) CreatePartition(_ context.Context, schema string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.partitions[schema]; !ok {
		s.partitions[schema] = &table{rows: map[id.PolicyID]*models.Policy{}}
	}
	return nil
}

func (s *InMemory) DropPartition(_ context.Context, schema string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.partitions, schema)
	return nil
}

func (s *InMemory) Create(_ context.Context, p id.Partition, pol *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.partitions[p.Schema]
	if !ok {
		return fmt.Errorf("partition %s: %w", p.Schema, sentinel.ErrNotFound)
	}
	for _, existing := range t.rows {
		if existing.Number == pol.Number {
			return ErrNumberTaken
		}
	}
	t.next++
	pol.ID = t.next
	cp := *pol
	t.rows[pol.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, p id.Partition, policyID id.PolicyID) (*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t := s.partitions[p.Schema]; t != nil {
		if pol, ok := t.rows[policyID]; ok {
			cp := *pol
			return &cp, nil
		}
	}
	return nil, errPolicyNotFound
}

func (s *InMemory) List(_ context.Context, p id.Partition) ([]*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Policy
	if t := s.partitions[p.Schema]; t != nil {
		for _, pol := range t.rows {
			cp := *pol
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.Policy) int { return int(a.ID - b.ID) })
	return out, nil
}

// Update overwrites every field except the number.
func (s *InMemory) Update(_ context.Context, p id.Partition, pol *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.partitions[p.Schema]
	if t == nil || t.rows[pol.ID] == nil {
		return errPolicyNotFound
	}
	cp := *pol
	cp.Number = t.rows[pol.ID].Number
	t.rows[pol.ID] = &cp
	return nil
}

func (s *InMemory) Delete(_ context.Context, p id.Partition, policyID id.PolicyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.partitions[p.Schema]
	if t == nil || t.rows[policyID] == nil {
		return errPolicyNotFound
	}
	delete(t.rows, policyID)
	return nil
}
