// Package logging provides a minimal logging interface and adapters for
// the relationship-discovery engine.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the pipeline, stores, and server use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - EngineLogger with session/run context and domain helpers
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	orch := charmine.New(model, charmine.WithLogger(logger))
//
// The design intentionally keeps the interface minimal to avoid vendor
// lock-in while supporting structured logging where available.
package logging
