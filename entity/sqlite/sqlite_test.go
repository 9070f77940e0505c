package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fasthei/charmine/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "entities.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Put(ctx, &core.Entity{
		ID:         "e1",
		Name:       "Ann",
		Attributes: map[string]any{"role": "engineer", "team": "platform"},
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)
	assert.Equal(t, "engineer", got.Attributes["role"])
}

func TestStore_GetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrEntityNotFound)
}

func TestStore_PutReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, &core.Entity{ID: "e1", Name: "Ann"}))
	require.NoError(t, s.Put(ctx, &core.Entity{ID: "e1", Name: "Ann Baker"}))

	got, err := s.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Ann Baker", got.Name)
}

func TestStore_ListFilterAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, &core.Entity{ID: "e2", Name: "Bob Carver"}))
	require.NoError(t, s.Put(ctx, &core.Entity{ID: "e1", Name: "Ann Baker"}))
	require.NoError(t, s.Put(ctx, &core.Entity{ID: "e3", Name: "Annika Dale"}))

	all, err := s.List(ctx, core.EntityFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Ann Baker", all[0].Name)

	anns, err := s.List(ctx, core.EntityFilter{Name: "Ann"})
	require.NoError(t, err)
	assert.Len(t, anns, 2)

	limited, err := s.List(ctx, core.EntityFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
