// Package server exposes the orchestrator over HTTP: conversation
// lifecycle endpoints, result reads, an SSE stream of run events, the
// deterministic extraction skill endpoint, entity pass-through reads, and
// state save/load. Responses are JSON; the stream endpoint speaks
// text/event-stream.
package server
