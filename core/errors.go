package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned for operations on unknown session ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrEntityNotFound is returned by entity stores for unknown ids.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrNoActiveRun is returned when cancelling a session that has no live
	// cancellation token.
	ErrNoActiveRun = errors.New("no active run for session")

	// ErrSuperseded is returned when a run attempts to write session state
	// after its token has been cancelled or replaced by a newer run.
	ErrSuperseded = errors.New("run superseded")
)

// ValidationError rejects a client request before any work is started,
// e.g. a start request whose entity ids resolve to nothing.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// NewValidationError constructs a ValidationError with a formatted reason.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
