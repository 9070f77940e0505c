package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/Fasthei/charmine/core"
)

// Request captures the normalized input to a generation call.
type Request struct {
	// Instructions is the system context for the call (role prompt).
	Instructions string `json:"instructions"`
	// History carries prior dialogue turns in emission order.
	History []core.Message `json:"history"`
	// Input is the current prompt.
	Input string `json:"input"`
}

// Chunk is one fragment of a streamed reply.
type Chunk struct {
	Text string `json:"text"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Model is the agent capability contract: an opaque text-generation
// service. Both methods must honor context cancellation; generation in
// progress is not forcibly preempted but no further work may start after
// cancellation.
type Model interface {
	// Generate produces the complete reply text for the request.
	Generate(ctx context.Context, req Request) (string, error)

	// GenerateStream emits the reply as a sequence of chunks. The chunk
	// channel is closed on completion; the error channel (buffered, size 1)
	// carries a terminal error if generation failed.
	GenerateStream(ctx context.Context, req Request) (<-chan Chunk, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model for tests and examples.
// Replies are looked up by exact Input, then by Instructions, then fall
// back to a deterministic echo. Safe for concurrent use.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	err       error
	gate      <-chan struct{}
	calls     int
}

// NewMockModel constructs an empty MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a canned reply for an exact Input or Instructions
// value.
func (m *MockModel) AddResponse(key, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[key] = response
}

// FailWith makes every subsequent call return err.
func (m *MockModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// GateOn blocks every call until ch is closed (or the context ends),
// letting tests observe a run mid-flight deterministically.
func (m *MockModel) GateOn(ch <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = ch
}

// Calls returns the number of Generate/GenerateStream invocations.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.calls++
	gate := m.gate
	err := m.err
	reply := m.lookupLocked(req)
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err != nil {
		return "", err
	}

	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	return reply, nil
}

// GenerateStream implements Model, emitting the canned reply in small
// chunks.
func (m *MockModel) GenerateStream(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		reply, err := m.Generate(ctx, req)
		if err != nil {
			errCh <- err
			return
		}

		for _, r := range reply {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- Chunk{Text: string(r)}:
			}
		}
	}()

	return out, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

func (m *MockModel) lookupLocked(req Request) string {
	if r, ok := m.responses[req.Input]; ok {
		return r
	}
	if r, ok := m.responses[req.Instructions]; ok {
		return r
	}
	return fmt.Sprintf("Mock reply to: %s", req.Input)
}
