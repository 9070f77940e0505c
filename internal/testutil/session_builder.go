package testutil

import "github.com/Fasthei/charmine/core"

// SessionBuilder provides a fluent helper for constructing sessions in
// tests. Example:
//
//	sess := NewSessionBuilder("s1").Query("who knows whom?").
//		Message("RelationshipAnalyst", "Coordinator", "Ann relation: friend of Bob").
//		Status(core.StatusCompleted).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type SessionBuilder struct {
	sess *core.Session
}

// NewSessionBuilder creates a builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{sess: core.NewSession(id, "test query", []string{"e1", "e2"})}
}

// Query sets the discovery query (chainable).
func (b *SessionBuilder) Query(q string) *SessionBuilder {
	b.sess.Query = q
	return b
}

// EntityIDs replaces the session's entity ids (chainable).
func (b *SessionBuilder) EntityIDs(ids ...string) *SessionBuilder {
	b.sess.EntityIDs = ids
	return b
}

// Message appends an assistant message to the log (chainable).
func (b *SessionBuilder) Message(sender, recipient, content string) *SessionBuilder {
	b.sess.AppendMessage(core.NewMessage(sender, recipient, content))
	return b
}

// Status sets the lifecycle status (chainable).
func (b *SessionBuilder) Status(s core.SessionStatus) *SessionBuilder {
	b.sess.SetStatus(s)
	return b
}

// Summary sets the derived summary (chainable).
func (b *SessionBuilder) Summary(s string) *SessionBuilder {
	b.sess.Summary = s
	return b
}

// Build returns the constructed session.
func (b *SessionBuilder) Build() *core.Session { return b.sess }

// Entity constructs an entity with optional attributes.
func Entity(id, name string, attrs map[string]any) *core.Entity {
	return &core.Entity{ID: id, Name: name, Attributes: attrs}
}
