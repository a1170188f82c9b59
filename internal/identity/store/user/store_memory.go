package user

import (
	"context"
	"fmt"
	"sync"

	"claimdesk/internal/identity/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

// Error Contract:
// - ErrNotFound when the user does not exist in the partition
// - ErrEmailTaken / ErrUsernameTaken / ErrPhoneTaken on uniqueness failure
// - ErrNotFound when the partition itself was never created
//
// InMemoryUserStore keeps one user table per partition schema.
type InMemoryUserStore struct {
	mu         sync.RWMutex
	partitions map[string]map[id.UserID]*models.User
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{
		partitions: map[string]map[id.UserID]*models.User{
			id.PublicSchema: {},
		},
	}
}

// CreatePartition prepares an empty user table for schema.
func (s *InMemoryUserStore) CreatePartition(_ context.Context, schema string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.partitions[schema]; !ok {
		s.partitions[schema] = map[id.UserID]*models.User{}
	}
	return nil
}

// DropPartition discards every user stored in schema.
func (s *InMemoryUserStore) DropPartition(_ context.Context, schema string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.partitions, schema)
	return nil
}

func (s *InMemoryUserStore) Create(_ context.Context, p id.Partition, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, ok := s.partitions[p.Schema]
	if !ok {
		return fmt.Errorf("partition %s: %w", p.Schema, sentinel.ErrNotFound)
	}
	for _, existing := range table {
		switch {
		case existing.Email == u.Email:
			return ErrEmailTaken
		case existing.Username == u.Username:
			return ErrUsernameTaken
		case existing.Phone == u.Phone:
			return ErrPhoneTaken
		}
	}
	cp := *u
	table[u.ID] = &cp
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, p id.Partition, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.partitions[p.Schema][userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, p id.Partition, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.partitions[p.Schema] {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryUserStore) Delete(_ context.Context, p id.Partition, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := s.partitions[p.Schema]
	if _, ok := table[userID]; !ok {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	delete(table, userID)
	return nil
}
