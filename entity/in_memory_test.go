package entity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fasthei/charmine/core"
)

func TestInMemoryStore_GetAndNotFound(t *testing.T) {
	s := NewInMemoryStore()
	s.Put(&core.Entity{ID: "e1", Name: "Ann", Attributes: map[string]any{"role": "engineer"}})

	got, err := s.Get(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)
	assert.Equal(t, "engineer", got.Attributes["role"])

	_, err = s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrEntityNotFound)
}

func TestInMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewInMemoryStore()
	s.Put(&core.Entity{ID: "e1", Name: "Ann", Attributes: map[string]any{"role": "engineer"}})

	got, err := s.Get(context.Background(), "e1")
	require.NoError(t, err)
	got.Attributes["role"] = "manager"

	again, err := s.Get(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "engineer", again.Attributes["role"])
}

func TestInMemoryStore_ListFilters(t *testing.T) {
	s := NewInMemoryStore()
	s.Put(&core.Entity{ID: "e1", Name: "Ann Baker"})
	s.Put(&core.Entity{ID: "e2", Name: "Bob Carver"})
	s.Put(&core.Entity{ID: "e3", Name: "Annika Dale"})

	all, err := s.List(context.Background(), core.EntityFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	anns, err := s.List(context.Background(), core.EntityFilter{Name: "ann"})
	require.NoError(t, err)
	assert.Len(t, anns, 2)

	limited, err := s.List(context.Background(), core.EntityFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
