package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Fasthei/charmine/core"
	"github.com/Fasthei/charmine/extract"
	"github.com/Fasthei/charmine/logging"
	"github.com/Fasthei/charmine/model"
	"github.com/Fasthei/charmine/stream"
)

const (
	// DefaultMaxRounds caps the group discussion stage.
	DefaultMaxRounds = 10

	// terminateMarker ends the group stage early when a participant emits it.
	terminateMarker = "TERMINATE"
)

// Options holds dependency + configuration overrides passed to NewExecutor().
type Options struct {
	// MaxRounds limits round-robin passes in the group stage.
	MaxRounds int
	// RunTimeout bounds a whole pipeline run; zero means no limit.
	RunTimeout time.Duration
	// Roster overrides the participant cast, mainly for tests.
	Roster Roster
	// Logger receives run diagnostics.
	Logger logging.Logger
}

// Input is everything a run needs beyond the session itself.
type Input struct {
	// Query is the discovery question driving the run.
	Query string
	// Entities are the resolved subjects of the query.
	Entities []*core.Entity
	// History carries prior message contents when a run supersedes an
	// earlier one on the same session.
	History []string
	// FollowUp is the user message that triggered a superseding run;
	// empty for the initial run.
	FollowUp string
}

// Executor runs discovery pipelines. Each run executes detached from the
// caller's request context: cancellation happens through the session
// store's run token, never by tearing down the goroutine mid-write.
// Public methods are safe for concurrent use.
type Executor struct {
	mdl    model.Model
	store  core.SessionStore
	broker *stream.Broker
	roster Roster
	logger logging.Logger

	maxRounds  int
	runTimeout time.Duration

	activeRuns map[string]chan struct{}
	mu         sync.Mutex
}

// NewExecutor constructs an Executor with optional overrides.
func NewExecutor(mdl model.Model, store core.SessionStore, broker *stream.Broker, optFns ...func(o *Options)) *Executor {
	opts := Options{
		MaxRounds: DefaultMaxRounds,
		Roster:    DefaultRoster(),
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Executor{
		mdl:        mdl,
		store:      store,
		broker:     broker,
		roster:     opts.Roster,
		logger:     opts.Logger,
		maxRounds:  opts.MaxRounds,
		runTimeout: opts.RunTimeout,
		activeRuns: make(map[string]chan struct{}),
	}
}

// Roster returns the participant cast the executor runs with.
func (e *Executor) Roster() Roster { return e.roster }

// Start launches an asynchronous pipeline run for the session under the
// given token and returns the run id. The token must be the session's
// live token, freshly issued by the store.
func (e *Executor) Start(token *core.RunToken, in Input) string {
	runID := core.NewID()
	done := make(chan struct{})

	e.mu.Lock()
	e.activeRuns[runID] = done
	e.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			e.mu.Lock()
			delete(e.activeRuns, runID)
			e.mu.Unlock()
		}()
		e.run(runID, token, in)
	}()

	return runID
}

// Wait blocks until the run has terminated. Unknown run ids return
// immediately: the run already finished.
func (e *Executor) Wait(runID string) {
	e.mu.Lock()
	done, ok := e.activeRuns[runID]
	e.mu.Unlock()
	if ok {
		<-done
	}
}

func (e *Executor) run(runID string, token *core.RunToken, in Input) {
	sessionID := token.SessionID()
	logger := e.logger
	start := time.Now()

	ctx := context.Background()
	if e.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.runTimeout)
		defer cancel()
	}

	defer e.store.Release(token)

	if err := e.store.Commit(token, func(s *core.Session) error {
		s.SetStatus(core.StatusProcessing)
		return nil
	}); err != nil {
		logger.Debug("run superseded before start session_id=%s run_id=%s", sessionID, runID)
		return
	}

	messages, err := e.converse(ctx, token, in)
	switch {
	case err == nil:
		e.complete(token, in, messages)
		logger.Info("run completed session_id=%s run_id=%s messages=%d duration=%s", sessionID, runID, len(messages), time.Since(start))
	case errors.Is(err, core.ErrSuperseded):
		if token.Cancelled() && e.finalizeCancelled(token) {
			logger.Info("run cancelled session_id=%s run_id=%s duration=%s", sessionID, runID, time.Since(start))
		} else {
			logger.Debug("run superseded session_id=%s run_id=%s", sessionID, runID)
		}
	default:
		e.fail(token, err)
		logger.Error("run failed session_id=%s run_id=%s err=%v", sessionID, runID, err)
	}
}

// converse executes the three conversation stages, appending each turn to
// the session through the token-guarded commit path. It returns the full
// message log of this run, or ErrSuperseded as soon as the token stops
// being authoritative.
func (e *Executor) converse(ctx context.Context, token *core.RunToken, in Input) ([]core.Message, error) {
	var messages []core.Message

	// Stage 1: the analyst reads the full context document.
	reply, err := e.callModel(ctx, token, e.roster.Analyst, messages, e.contextDocument(in))
	if err != nil {
		return messages, err
	}
	msg := core.NewMessage(e.roster.Analyst.Name, e.roster.Coordinator.Name, reply)
	if err := e.appendMessage(token, &messages, msg); err != nil {
		return messages, err
	}

	// Stage 2: round-robin group discussion, at most maxRounds passes,
	// ended early by the terminate marker.
	terminated := false
	for round := 0; round < e.maxRounds && !terminated; round++ {
		for _, role := range e.roster.GroupOrder() {
			last := messages[len(messages)-1].Content
			reply, err := e.callModel(ctx, token, role, messages, last)
			if err != nil {
				return messages, err
			}
			if strings.Contains(reply, terminateMarker) {
				reply = strings.TrimSpace(strings.ReplaceAll(reply, terminateMarker, ""))
				terminated = true
			}
			if reply != "" {
				msg := core.NewMessage(role.Name, e.roster.Coordinator.Name, reply)
				if err := e.appendMessage(token, &messages, msg); err != nil {
					return messages, err
				}
			}
			if terminated {
				break
			}
		}
	}

	// Stage 3: a dedicated summary turn addressed to the coordinator.
	summary, err := e.callModel(ctx, token, e.roster.Summarizer, messages,
		"Summarize the relationships discovered in this discussion in one short paragraph.")
	if err != nil {
		return messages, err
	}
	summary = strings.TrimSpace(strings.ReplaceAll(summary, terminateMarker, ""))
	msg = core.NewMessage(e.roster.Summarizer.Name, e.roster.Coordinator.Name, summary)
	if err := e.appendMessage(token, &messages, msg); err != nil {
		return messages, err
	}

	return messages, nil
}

// callModel invokes the model for one turn, refusing to start a call once
// the token is no longer authoritative.
func (e *Executor) callModel(ctx context.Context, token *core.RunToken, role Role, history []core.Message, input string) (string, error) {
	if token.Cancelled() {
		return "", core.ErrSuperseded
	}

	start := time.Now()
	reply, err := e.mdl.Generate(ctx, model.Request{
		Instructions: role.Instructions,
		History:      history,
		Input:        input,
	})
	if err != nil {
		e.logger.Debug("model call failed role=%s duration=%s err=%v", role.Name, time.Since(start), err)
		return "", fmt.Errorf("%s turn: %w", role.Name, err)
	}
	e.logger.Debug("model call completed role=%s duration=%s", role.Name, time.Since(start))

	return reply, nil
}

// appendMessage commits one turn to the session and mirrors it onto the
// run's local log and the event stream.
func (e *Executor) appendMessage(token *core.RunToken, messages *[]core.Message, msg core.Message) error {
	if err := e.store.Commit(token, func(s *core.Session) error {
		s.AppendMessage(msg)
		return nil
	}); err != nil {
		return err
	}
	*messages = append(*messages, msg)
	e.broker.Publish(token.SessionID(), token.Generation(), stream.Event{Type: stream.EventMessage, Sender: msg.Sender, Content: msg.Content})
	return nil
}

// complete parses the dialogue, commits the derived results together with
// the completed status, and ends the stream.
func (e *Executor) complete(token *core.RunToken, in Input, messages []core.Message) {
	names := make([]string, 0, len(in.Entities))
	for _, ent := range in.Entities {
		names = append(names, ent.Name)
	}

	parsed := extract.ParseDialogue(messages, names, e.roster.DialogueRoles())
	if parsed.Summary == "" && len(messages) > 0 {
		parsed.Summary = messages[len(messages)-1].Content
	}

	err := e.store.Commit(token, func(s *core.Session) error {
		s.CommitDerived(parsed.Relationships, parsed.Summary, parsed.Visualization)
		s.SetStatus(core.StatusCompleted)
		return nil
	})
	if err != nil {
		// Superseded at the last moment: the newer run owns the session
		// and the stream.
		return
	}

	e.broker.Publish(token.SessionID(), token.Generation(), stream.Event{Type: stream.EventSummary, Content: parsed.Summary})
	e.broker.Close(token.SessionID(), token.Generation())
}

// finalizeCancelled records the cancelled status for a run whose own token
// was cancelled (not superseded) and ends the stream. Reports whether the
// token was still the session's latest.
func (e *Executor) finalizeCancelled(token *core.RunToken) bool {
	err := e.store.Finalize(token, func(s *core.Session) error {
		s.SetStatus(core.StatusCancelled)
		return nil
	})
	if err != nil {
		return false
	}
	e.broker.Close(token.SessionID(), token.Generation())
	return true
}

// fail records the failure and ends the stream with an error event.
func (e *Executor) fail(token *core.RunToken, runErr error) {
	err := e.store.Finalize(token, func(s *core.Session) error {
		s.SetError(runErr.Error())
		return nil
	})
	if err != nil {
		return
	}
	e.broker.Publish(token.SessionID(), token.Generation(), stream.Event{Type: stream.EventError, Content: runErr.Error()})
	e.broker.Close(token.SessionID(), token.Generation())
}

// contextDocument renders the analyst's briefing: the query, the entity
// records as JSON, prior history for superseding runs, and the follow-up
// message when present.
func (e *Executor) contextDocument(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Task: discover relationships between the following entities.\n")
	fmt.Fprintf(&b, "Query: %s\n\n", in.Query)

	b.WriteString("Entities:\n")
	for _, ent := range in.Entities {
		doc, err := json.Marshal(ent)
		if err != nil {
			fmt.Fprintf(&b, "- %s\n", ent.Name)
			continue
		}
		fmt.Fprintf(&b, "- %s\n", doc)
	}

	if len(in.History) > 0 {
		b.WriteString("\nPrior discussion:\n")
		for _, h := range in.History {
			fmt.Fprintf(&b, "%s\n", h)
		}
	}

	if in.FollowUp != "" {
		fmt.Fprintf(&b, "\nFollow-up from the user: %s\n", in.FollowUp)
	}

	return b.String()
}
