package session

import (
	"sync"
	"time"

	"github.com/Fasthei/charmine/core"
)

// Options tune the in-memory store.
type Options struct {
	// TTL is how long an idle terminal session survives before the janitor
	// evicts it. 0 disables eviction.
	TTL time.Duration
	// SweepInterval is how often the janitor scans for expired sessions.
	SweepInterval time.Duration
}

// InMemoryStore is a volatile core.SessionStore keeping sessions, live
// tokens and generation counters in process-local maps. It is safe for
// concurrent access. Reads return clones to prevent external mutation of
// canonical state.
type InMemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*core.Session
	tokens      map[string]*core.RunToken
	generations map[string]uint64

	ttl   time.Duration
	sweep time.Duration
	stop  chan struct{}
	once  sync.Once
}

// NewInMemoryStore constructs an empty store. Eviction defaults: 24h TTL
// swept every 10 minutes; the janitor only starts when TTL > 0.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{
		TTL:           24 * time.Hour,
		SweepInterval: 10 * time.Minute,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &InMemoryStore{
		sessions:    make(map[string]*core.Session),
		tokens:      make(map[string]*core.RunToken),
		generations: make(map[string]uint64),
		ttl:         opts.TTL,
		sweep:       opts.SweepInterval,
		stop:        make(chan struct{}),
	}

	if s.ttl > 0 && s.sweep > 0 {
		go s.janitor()
	}

	return s
}

// Create registers a new session in the initializing state.
func (s *InMemoryStore) Create(query string, entityIDs []string) (*core.Session, error) {
	sess := core.NewSession(core.NewID(), query, entityIDs)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess.Clone(), nil
}

// Get returns a clone of the session or core.ErrSessionNotFound.
func (s *InMemoryStore) Get(id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, core.ErrSessionNotFound
	}

	return sess.Clone(), nil
}

// IssueToken cancels any live token for the session, bumps the generation
// counter and returns a fresh token. The superseded run keeps its stale
// token but every subsequent Commit with it fails.
func (s *InMemoryStore) IssueToken(id string) (*core.RunToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return nil, core.ErrSessionNotFound
	}

	if old, ok := s.tokens[id]; ok {
		old.Cancel()
	}

	s.generations[id]++
	tok := core.NewRunToken(id, s.generations[id])
	s.tokens[id] = tok

	return tok, nil
}

// Commit applies fn to the canonical session iff the token is still the
// live, uncancelled token at the current generation. The check happens
// under the store lock so a superseded run cannot slip a write between
// token replacement and its own commit.
func (s *InMemoryStore) Commit(t *core.RunToken, fn func(*core.Session) error) error {
	return s.guardedWrite(t, fn, false)
}

// Finalize is Commit for terminal bookkeeping: a cancelled (but not
// replaced) token may still record its terminal status.
func (s *InMemoryStore) Finalize(t *core.RunToken, fn func(*core.Session) error) error {
	return s.guardedWrite(t, fn, true)
}

func (s *InMemoryStore) guardedWrite(t *core.RunToken, fn func(*core.Session) error, allowCancelled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[t.SessionID()]
	if !ok {
		return core.ErrSessionNotFound
	}

	if s.tokens[t.SessionID()] != t || s.generations[t.SessionID()] != t.Generation() {
		return core.ErrSuperseded
	}

	if !allowCancelled && t.Cancelled() {
		return core.ErrSuperseded
	}

	return fn(sess)
}

// Release retires the token after its run terminated. A token already
// replaced by a newer one is left alone.
func (s *InMemoryStore) Release(t *core.RunToken) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokens[t.SessionID()] == t {
		delete(s.tokens, t.SessionID())
	}
}

// Cancel marks the session's live token cancelled. The in-flight run
// observes this at its next checkpoint; no forced preemption happens.
func (s *InMemoryStore) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return core.ErrSessionNotFound
	}

	tok, ok := s.tokens[id]
	if !ok {
		return core.ErrNoActiveRun
	}

	tok.Cancel()

	return nil
}

// Restore installs a session snapshot in the loaded state.
func (s *InMemoryStore) Restore(sess *core.Session) {
	clone := sess.Clone()
	clone.SetStatus(core.StatusLoaded)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[clone.ID] = clone
}

// Snapshot returns clones of every stored session, used by state
// persistence.
func (s *InMemoryStore) Snapshot() []*core.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}

	return out
}

// Len returns the number of stored sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the eviction janitor. Safe to call multiple times.
func (s *InMemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *InMemoryStore) janitor() {
	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evictExpired(time.Now())
		}
	}
}

// evictExpired removes terminal sessions idle longer than the TTL.
// Sessions with a run in flight are never evicted.
func (s *InMemoryStore) evictExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if _, active := s.tokens[id]; active {
			continue
		}

		snap := sess.Clone()
		if snap.Status.Terminal() && now.Sub(snap.Updated) > s.ttl {
			delete(s.sessions, id)
			delete(s.generations, id)
		}
	}
}
