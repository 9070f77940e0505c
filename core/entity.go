package core

import "context"

// Entity is an opaque attribute bag describing a named person or
// organization. The engine consumes entities read-only; persistence and
// indexing belong to external collaborators.
type Entity struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// EntityFilter narrows List results.
type EntityFilter struct {
	// Name, when non-empty, restricts results to entities whose name
	// contains the value.
	Name string
	// Limit caps the number of results; 0 means no cap.
	Limit int
}

// EntityStore is the read-only contract against the external entity
// storage collaborator.
type EntityStore interface {
	// Get returns the entity with the given id or ErrEntityNotFound.
	Get(ctx context.Context, id string) (*Entity, error)

	// List returns entities matching the filter.
	List(ctx context.Context, filter EntityFilter) ([]*Entity, error)
}
