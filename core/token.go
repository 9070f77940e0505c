package core

import "sync/atomic"

// RunToken represents "is this run still authoritative" for a session.
// Exactly one token is live per session; issuing a new one cancels and
// replaces the previous token. A run must check its token at every stage
// boundary and immediately before every commit.
//
// The generation counter is a stronger guard than the cancelled flag
// alone: a superseded run that raced past the flag check is still refused
// at commit time because the store's current generation has moved on.
type RunToken struct {
	sessionID  string
	generation uint64
	cancelled  atomic.Bool
}

// NewRunToken creates a token bound to a session and generation. Callers
// normally obtain tokens from SessionStore.IssueToken rather than
// constructing them directly.
func NewRunToken(sessionID string, generation uint64) *RunToken {
	return &RunToken{sessionID: sessionID, generation: generation}
}

// SessionID returns the session this token is authoritative for.
func (t *RunToken) SessionID() string { return t.sessionID }

// Generation returns the monotonic per-session counter assigned at issue
// time.
func (t *RunToken) Generation() uint64 { return t.generation }

// Cancel marks the token cancelled. Idempotent and safe for concurrent use.
func (t *RunToken) Cancel() { t.cancelled.Store(true) }

// Cancelled reports whether the token has been cancelled.
func (t *RunToken) Cancelled() bool { return t.cancelled.Load() }
