// Package session provides the in-memory SessionStore: the process-wide
// registry mapping session id to session state, the per-session
// cancellation tokens with their generation counters, and a TTL janitor
// that evicts idle terminal sessions.
package session
