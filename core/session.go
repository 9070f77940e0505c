package core

import (
	"sync"
	"time"
)

// SessionStatus tracks where a session is in its lifecycle.
type SessionStatus string

const (
	// StatusInitializing is set when a session is created by a start request.
	StatusInitializing SessionStatus = "initializing"
	// StatusProcessing is set while a pipeline run is in flight.
	StatusProcessing SessionStatus = "processing"
	// StatusCompleted is the terminal status of a successful run.
	StatusCompleted SessionStatus = "completed"
	// StatusFailed is the terminal status of a run that raised an error.
	StatusFailed SessionStatus = "failed"
	// StatusCancelled is the terminal status of an explicitly cancelled run.
	// Cancellation is not an error condition.
	StatusCancelled SessionStatus = "cancelled"
	// StatusLoaded marks a session restored from persisted orchestrator
	// state. Reachable only via a load operation.
	StatusLoaded SessionStatus = "loaded"
)

// Terminal reports whether no pipeline run is in flight for this status.
func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusLoaded:
		return true
	default:
		return false
	}
}

// Session is a unit of ongoing relationship-discovery work: its status,
// the append-only message log emitted by pipeline runs, and the derived
// relationships/summary/visualization committed at successful completion.
// It is safe for concurrent access.
//
// Contract:
//   - Messages are appended in emission order and never mutated
//   - Derived fields are only written by the run currently holding the
//     session's live cancellation token
//   - Clone performs deep copies for safe divergence.
type Session struct {
	ID            string         `json:"id"`
	Status        SessionStatus  `json:"status"`
	Query         string         `json:"query"`
	EntityIDs     []string       `json:"entity_ids"`
	Messages      []Message      `json:"messages"`
	Relationships []Relationship `json:"relationships"`
	Summary       string         `json:"summary"`
	Visualization *Visualization `json:"visualization,omitempty"`
	Error         string         `json:"error,omitempty"`
	Created       time.Time      `json:"created"`
	Updated       time.Time      `json:"updated"`
	mu            sync.RWMutex
}

// NewSession creates a session in the initializing state.
func NewSession(id, query string, entityIDs []string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:            id,
		Status:        StatusInitializing,
		Query:         query,
		EntityIDs:     append([]string{}, entityIDs...),
		Messages:      []Message{},
		Relationships: []Relationship{},
		Created:       now,
		Updated:       now,
	}
}

// AppendMessage adds a message to the log updating the Updated timestamp.
func (s *Session) AppendMessage(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, m)
	s.Updated = time.Now().UTC()
}

// SetStatus transitions the session status.
func (s *Session) SetStatus(status SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
	s.Updated = time.Now().UTC()
}

// GetStatus returns the current status.
func (s *Session) GetStatus() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// GetMessages returns a defensive copy of the message log.
func (s *Session) GetMessages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]Message, len(s.Messages))
	copy(msgs, s.Messages)
	return msgs
}

// History returns the message contents in emission order, used as prior
// dialogue context for a superseding run.
func (s *Session) History() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := make([]string, 0, len(s.Messages))
	for _, m := range s.Messages {
		history = append(history, m.Content)
	}
	return history
}

// CommitDerived atomically replaces the derived extraction results. Every
// field comes from the committing run: a nil visualization clears any
// earlier one rather than letting results from different runs mix. Callers
// must hold the session's live cancellation token; the store enforces this
// via its commit path.
func (s *Session) CommitDerived(rels []Relationship, summary string, vis *Visualization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Relationships = append([]Relationship{}, rels...)
	s.Summary = summary
	s.Visualization = nil
	if vis != nil {
		v := *vis
		s.Visualization = &v
	}
	s.Updated = time.Now().UTC()
}

// SetError records a failure message alongside the failed status.
func (s *Session) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = StatusFailed
	s.Error = msg
	s.Updated = time.Now().UTC()
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:            s.ID,
		Status:        s.Status,
		Query:         s.Query,
		EntityIDs:     append([]string{}, s.EntityIDs...),
		Messages:      make([]Message, len(s.Messages)),
		Relationships: make([]Relationship, len(s.Relationships)),
		Summary:       s.Summary,
		Error:         s.Error,
		Created:       s.Created,
		Updated:       s.Updated,
	}
	copy(clone.Messages, s.Messages)
	copy(clone.Relationships, s.Relationships)
	if s.Visualization != nil {
		v := *s.Visualization
		clone.Visualization = &v
	}
	return clone
}

// SessionStore is the single source of truth for session state. It is
// mutated by the pipeline run holding the session's live token and read
// by API callers.
type SessionStore interface {
	// Create registers a new session in the initializing state and returns it.
	Create(query string, entityIDs []string) (*Session, error)

	// Get returns a clone of the session or ErrSessionNotFound.
	Get(id string) (*Session, error)

	// IssueToken cancels and replaces any existing token for the session,
	// bumping the per-session generation counter. The superseded run's
	// subsequent writes are discarded, not merged.
	IssueToken(id string) (*RunToken, error)

	// Commit runs fn against the canonical session iff the token is still
	// authoritative (live, matching generation, not cancelled); returns
	// ErrSuperseded otherwise.
	Commit(t *RunToken, fn func(*Session) error) error

	// Finalize is Commit for terminal bookkeeping: it tolerates a cancelled
	// token (so a cancelled run can record its own terminal status) but
	// still refuses a superseded one.
	Finalize(t *RunToken, fn func(*Session) error) error

	// Release retires the token once its run has terminated. No-op if the
	// token was already replaced.
	Release(t *RunToken)

	// Cancel marks the session's live token cancelled, or returns
	// ErrNoActiveRun (wrapped with ErrSessionNotFound semantics for the API
	// layer) when none exists.
	Cancel(id string) error

	// Restore installs a session snapshot in the loaded state, replacing
	// any stored session with the same id.
	Restore(s *Session)
}
