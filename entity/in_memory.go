package entity

import (
	"context"
	"strings"
	"sync"

	"github.com/Fasthei/charmine/core"
)

// InMemoryStore is a naive process-local EntityStore. List performs a
// linear scan with substring name matching (case insensitive). Suitable
// for tests and demos; swap for the sqlite store in real deployments.
//
// Concurrency: protected by RWMutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	entities map[string]*core.Entity
}

// NewInMemoryStore creates a new in-memory entity store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entities: make(map[string]*core.Entity)}
}

// Put inserts or replaces an entity. Used to seed test and demo data.
func (m *InMemoryStore) Put(e *core.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := cloneEntity(e)
	m.entities[clone.ID] = clone
}

// Get returns the entity with the given id or core.ErrEntityNotFound.
func (m *InMemoryStore) Get(_ context.Context, id string) (*core.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	if !ok {
		return nil, core.ErrEntityNotFound
	}
	return cloneEntity(e), nil
}

// List returns entities matching the filter in unspecified order.
func (m *InMemoryStore) List(_ context.Context, filter core.EntityFilter) ([]*core.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]*core.Entity, 0, len(m.entities))
	needle := strings.ToLower(filter.Name)
	for _, e := range m.entities {
		if needle != "" && !strings.Contains(strings.ToLower(e.Name), needle) {
			continue
		}
		results = append(results, cloneEntity(e))
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}
	return results, nil
}

func cloneEntity(e *core.Entity) *core.Entity {
	clone := &core.Entity{ID: e.ID, Name: e.Name}
	if e.Attributes != nil {
		clone.Attributes = make(map[string]any, len(e.Attributes))
		for k, v := range e.Attributes {
			clone.Attributes[k] = v
		}
	}
	return clone
}
