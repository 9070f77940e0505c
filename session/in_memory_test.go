package session

import (
	"errors"
	"testing"
	"time"

	"github.com/Fasthei/charmine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *InMemoryStore {
	return NewInMemoryStore(func(o *Options) { o.TTL = 0 })
}

func TestInMemoryStore_CreateAndGet(t *testing.T) {
	store := newTestStore()
	defer store.Close()

	sess, err := store.Create("who is connected", []string{"e1"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, core.StatusInitializing, sess.Status)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	// Clones must not alias canonical state.
	got.AppendMessage(core.NewUserMessage("Coordinator", "hi"))
	again, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Messages)

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStore_IssueTokenSupersedes(t *testing.T) {
	store := newTestStore()
	defer store.Close()

	sess, err := store.Create("q", nil)
	require.NoError(t, err)

	tok1, err := store.IssueToken(sess.ID)
	require.NoError(t, err)
	assert.False(t, tok1.Cancelled())

	tok2, err := store.IssueToken(sess.ID)
	require.NoError(t, err)

	assert.True(t, tok1.Cancelled(), "issuing a new token must cancel the previous one")
	assert.False(t, tok2.Cancelled())
	assert.Greater(t, tok2.Generation(), tok1.Generation())
}

func TestInMemoryStore_CommitRefusesStaleToken(t *testing.T) {
	store := newTestStore()
	defer store.Close()

	sess, err := store.Create("q", nil)
	require.NoError(t, err)

	tok1, err := store.IssueToken(sess.ID)
	require.NoError(t, err)
	_, err = store.IssueToken(sess.ID)
	require.NoError(t, err)

	err = store.Commit(tok1, func(s *core.Session) error {
		s.SetStatus(core.StatusCompleted)
		return nil
	})
	assert.ErrorIs(t, err, core.ErrSuperseded)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusInitializing, got.Status, "stale run's write must be discarded, not merged")
}

func TestInMemoryStore_CommitWithLiveToken(t *testing.T) {
	store := newTestStore()
	defer store.Close()

	sess, err := store.Create("q", nil)
	require.NoError(t, err)
	tok, err := store.IssueToken(sess.ID)
	require.NoError(t, err)

	err = store.Commit(tok, func(s *core.Session) error {
		s.AppendMessage(core.NewMessage("RelationshipAnalyst", "Coordinator", "found one"))
		return nil
	})
	require.NoError(t, err)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "found one", got.Messages[0].Content)
}

func TestInMemoryStore_FinalizeToleratesCancelled(t *testing.T) {
	store := newTestStore()
	defer store.Close()

	sess, err := store.Create("q", nil)
	require.NoError(t, err)
	tok, err := store.IssueToken(sess.ID)
	require.NoError(t, err)

	require.NoError(t, store.Cancel(sess.ID))
	assert.True(t, tok.Cancelled())

	// Commit refuses a cancelled token.
	err = store.Commit(tok, func(s *core.Session) error { return nil })
	assert.ErrorIs(t, err, core.ErrSuperseded)

	// Finalize still lets the cancelled run record its terminal status.
	err = store.Finalize(tok, func(s *core.Session) error {
		s.SetStatus(core.StatusCancelled)
		return nil
	})
	require.NoError(t, err)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, got.Status)
}

func TestInMemoryStore_CancelWithoutRun(t *testing.T) {
	store := newTestStore()
	defer store.Close()

	sess, err := store.Create("q", nil)
	require.NoError(t, err)

	err = store.Cancel(sess.ID)
	assert.ErrorIs(t, err, core.ErrNoActiveRun)

	err = store.Cancel("missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStore_ReleaseClearsLiveTokenOnly(t *testing.T) {
	store := newTestStore()
	defer store.Close()

	sess, err := store.Create("q", nil)
	require.NoError(t, err)

	tok1, err := store.IssueToken(sess.ID)
	require.NoError(t, err)
	tok2, err := store.IssueToken(sess.ID)
	require.NoError(t, err)

	// Releasing the stale token must not clear the live one.
	store.Release(tok1)
	require.NoError(t, store.Cancel(sess.ID))
	assert.True(t, tok2.Cancelled())

	store.Release(tok2)
	err = store.Cancel(sess.ID)
	assert.ErrorIs(t, err, core.ErrNoActiveRun)
}

func TestInMemoryStore_RestoreLoadsSession(t *testing.T) {
	store := newTestStore()
	defer store.Close()

	snap := core.NewSession("restored-1", "old query", []string{"e9"})
	snap.SetStatus(core.StatusCompleted)

	store.Restore(snap)

	got, err := store.Get("restored-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusLoaded, got.Status, "loaded status is reachable only via restore")
	assert.Equal(t, "old query", got.Query)
}

func TestInMemoryStore_EvictsIdleTerminalSessions(t *testing.T) {
	store := NewInMemoryStore(func(o *Options) {
		o.TTL = 10 * time.Millisecond
		o.SweepInterval = time.Hour // sweep manually below
	})
	defer store.Close()

	done, err := store.Create("done", nil)
	require.NoError(t, err)
	busy, err := store.Create("busy", nil)
	require.NoError(t, err)

	tok, err := store.IssueToken(done.ID)
	require.NoError(t, err)
	require.NoError(t, store.Commit(tok, func(s *core.Session) error {
		s.SetStatus(core.StatusCompleted)
		return nil
	}))
	store.Release(tok)

	_, err = store.IssueToken(busy.ID)
	require.NoError(t, err)

	store.evictExpired(time.Now().Add(time.Minute))

	_, err = store.Get(done.ID)
	assert.ErrorIs(t, err, core.ErrSessionNotFound, "idle terminal session should be evicted")

	_, err = store.Get(busy.ID)
	assert.NoError(t, err, "session with a live token must survive eviction")
}

func TestInMemoryStore_CommitMissingSession(t *testing.T) {
	store := newTestStore()
	defer store.Close()

	tok := core.NewRunToken("ghost", 1)
	err := store.Commit(tok, func(s *core.Session) error { return nil })
	assert.True(t, errors.Is(err, core.ErrSessionNotFound))
}
