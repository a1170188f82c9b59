package tenant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"claimdesk/internal/tenant/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

// Error Contract:
// - ErrNameTaken / ErrCodeTaken / ErrPartitionTaken / ErrDomainTaken from CreateWithDomain
// - sentinel.ErrNotFound when the tenant or host is unknown
// - sentinel.ErrInvalidState when Activate finds a tenant that is not provisioning
//
// InMemory keeps tenants and domains behind one mutex so every uniqueness
// check and insert is a single critical section.
type InMemory struct {
	mu      sync.RWMutex
	tenants map[id.TenantID]*models.Tenant
	domains map[string]*models.Domain
}

func NewInMemory() *InMemory {
	return &InMemory{
		tenants: make(map[id.TenantID]*models.Tenant),
		domains: make(map[string]*models.Domain),
	}
}

// CreateWithDomain inserts the tenant and its primary domain together.
func (s *InMemory) CreateWithDomain(_ context.Context, t *models.Tenant, d *models.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.ToLower(t.Name)
	for _, existing := range s.tenants {
		switch {
		case strings.ToLower(existing.Name) == name:
			return ErrNameTaken
		case existing.Code == t.Code:
			return ErrCodeTaken
		case existing.Schema == t.Schema:
			return ErrPartitionTaken
		}
	}
	if _, taken := s.domains[d.Hostname]; taken {
		return ErrDomainTaken
	}

	tc := *t
	dc := *d
	s.tenants[t.ID] = &tc
	s.domains[d.Hostname] = &dc
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tenants[tenantID]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, fmt.Errorf("tenant not found: %w", sentinel.ErrNotFound)
}

// FindActiveByHost returns the active tenant routed by host.
func (s *InMemory) FindActiveByHost(_ context.Context, host string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.domains[host]
	if !ok {
		return nil, fmt.Errorf("domain %s: %w", host, sentinel.ErrNotFound)
	}
	t, ok := s.tenants[d.TenantID]
	if !ok || !t.IsActive() {
		return nil, fmt.Errorf("domain %s: %w", host, sentinel.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *InMemory) DomainExists(_ context.Context, host string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.domains[host]
	return ok, nil
}

// NameExists compares case-insensitively.
func (s *InMemory) NameExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name = strings.ToLower(name)
	for _, t := range s.tenants {
		if strings.ToLower(t.Name) == name {
			return true, nil
		}
	}
	return false, nil
}

// Activate moves a provisioning tenant to active.
func (s *InMemory) Activate(_ context.Context, tenantID id.TenantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return fmt.Errorf("tenant not found: %w", sentinel.ErrNotFound)
	}
	if err := t.CanActivate(); err != nil {
		return fmt.Errorf("activate tenant: %w", sentinel.ErrInvalidState)
	}
	t.ApplyActivation()
	return nil
}

// Delete removes the tenant and every domain that routes to it.
func (s *InMemory) Delete(_ context.Context, tenantID id.TenantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[tenantID]; !ok {
		return fmt.Errorf("tenant not found: %w", sentinel.ErrNotFound)
	}
	delete(s.tenants, tenantID)
	for host, d := range s.domains {
		if d.TenantID == tenantID {
			delete(s.domains, host)
		}
	}
	return nil
}

// ListStale returns tenants still provisioning that were created before cutoff.
func (s *InMemory) ListStale(_ context.Context, cutoff time.Time) ([]*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Tenant
	for _, t := range s.tenants {
		if t.Status == models.TenantStatusProvisioning && t.CreatedAt.Before(cutoff) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}
