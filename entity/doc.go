// Package entity provides implementations of the read-only entity store
// the engine resolves query subjects against: a process-local map for
// tests and demos, and a SQLite-backed store under entity/sqlite for
// real deployments.
package entity
