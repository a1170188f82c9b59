package partition

import (
	"context"
	"fmt"
	"sync"

	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
)

// Hook is implemented by in-memory stores that keep one table per partition.
type Hook interface {
	CreatePartition(ctx context.Context, schema string) error
	DropPartition(ctx context.Context, schema string) error
}

// InMemory tracks partition ids and fans create/drop out to registered
// stores.
type InMemory struct {
	mu      sync.Mutex
	schemas map[string]struct{}
	hooks   []Hook
}

func NewInMemory(hooks ...Hook) *InMemory {
	return &InMemory{
		schemas: map[string]struct{}{id.PublicSchema: {}},
		hooks:   hooks,
	}
}

// Create reserves schema and prepares it in every hooked store. On a hook
// failure the stores already prepared are dropped again.
func (m *InMemory) Create(ctx context.Context, schema string) error {
	if !id.ValidSchemaName(schema) {
		return fmt.Errorf("invalid partition id %q", schema)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schemas[schema]; ok || id.ReservedSchemaName(schema) {
		return ErrExists
	}
	for i, h := range m.hooks {
		if err := h.CreatePartition(ctx, schema); err != nil {
			for _, done := range m.hooks[:i] {
				_ = done.DropPartition(ctx, schema)
			}
			return fmt.Errorf("create partition %s: %w", schema, err)
		}
	}
	m.schemas[schema] = struct{}{}
	return nil
}

func (m *InMemory) Drop(ctx context.Context, schema string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schemas[schema]; !ok {
		return fmt.Errorf("partition %s: %w", schema, sentinel.ErrNotFound)
	}
	var firstErr error
	for _, h := range m.hooks {
		if err := h.DropPartition(ctx, schema); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	delete(m.schemas, schema)
	return firstErr
}

func (m *InMemory) Exists(_ context.Context, schema string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.schemas[schema]
	return ok, nil
}
