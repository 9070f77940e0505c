// Package charmine provides a high-level façade over the
// relationship-discovery engine: session management, the multi-role
// conversation pipeline, deterministic co-occurrence extraction, event
// streaming, and state persistence. Most applications interact with this
// package by:
//  1. Creating an Orchestrator via New() (optionally overriding the
//     default in-memory stores)
//  2. Starting conversations (StartConversation) or posting follow-ups
//     (PostMessage)
//  3. Watching progress via Subscribe and reading results from GetSession
//
// All defaults are safe for local development and testing; production
// deployments typically supply a durable entity store and a structured
// logger.
package charmine

import (
	"context"
	"time"

	"github.com/Fasthei/charmine/core"
	"github.com/Fasthei/charmine/entity"
	"github.com/Fasthei/charmine/extract"
	"github.com/Fasthei/charmine/logging"
	"github.com/Fasthei/charmine/model"
	"github.com/Fasthei/charmine/pipeline"
	"github.com/Fasthei/charmine/session"
	"github.com/Fasthei/charmine/state"
	"github.com/Fasthei/charmine/stream"
)

// Options configures the Orchestrator instance.
type Options struct {
	// MaxRounds limits round-robin passes of the group discussion stage.
	MaxRounds int

	// RunTimeout bounds a whole pipeline run; zero means no limit.
	RunTimeout time.Duration

	// Roster overrides the participant cast.
	Roster pipeline.Roster

	// CoOccurWindow and KeywordWindow size the deterministic extraction
	// windows, in characters. Zero keeps the defaults.
	CoOccurWindow int
	KeywordWindow int

	// Stores (default to in-memory implementations if not provided).
	SessionStore core.SessionStore
	EntityStore  core.EntityStore

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Orchestrator is the high-level façade aggregating the pipeline executor
// and the engine's services.
type Orchestrator struct {
	store      core.SessionStore
	entities   core.EntityStore
	broker     *stream.Broker
	executor   *pipeline.Executor
	extractor  *extract.Extractor
	logger     logging.Logger
	maxRounds  int
	ownedStore *session.InMemoryStore
}

// New creates an Orchestrator driven by the given model. Any unset store
// is initialized with an in-memory implementation; call Close to stop the
// background work those defaults own.
func New(mdl model.Model, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		MaxRounds:   pipeline.DefaultMaxRounds,
		Roster:      pipeline.DefaultRoster(),
		EntityStore: entity.NewInMemoryStore(),
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var owned *session.InMemoryStore
	if opts.SessionStore == nil {
		owned = session.NewInMemoryStore()
		opts.SessionStore = owned
	}

	broker := stream.NewBroker()

	executor := pipeline.NewExecutor(mdl, opts.SessionStore, broker, func(o *pipeline.Options) {
		o.MaxRounds = opts.MaxRounds
		o.RunTimeout = opts.RunTimeout
		o.Roster = opts.Roster
		o.Logger = opts.Logger
	})

	extractor := extract.NewExtractor(func(o *extract.Options) {
		if opts.CoOccurWindow > 0 {
			o.CoOccurWindow = opts.CoOccurWindow
		}
		if opts.KeywordWindow > 0 {
			o.KeywordWindow = opts.KeywordWindow
		}
	})

	return &Orchestrator{
		store:      opts.SessionStore,
		entities:   opts.EntityStore,
		broker:     broker,
		executor:   executor,
		extractor:  extractor,
		logger:     opts.Logger,
		maxRounds:  opts.MaxRounds,
		ownedStore: owned,
	}
}

// Close releases resources the Orchestrator owns, stopping the default
// session store's eviction janitor. Caller-supplied stores are left
// untouched. Safe to call multiple times.
func (o *Orchestrator) Close() {
	if o.ownedStore != nil {
		o.ownedStore.Close()
	}
}

// StartConversation validates the request, creates a session, and launches
// the discovery pipeline for it. It returns the new session id and run id
// without waiting for the run to finish.
func (o *Orchestrator) StartConversation(ctx context.Context, query string, entityIDs []string) (sessionID, runID string, err error) {
	entities, err := o.resolveEntities(ctx, entityIDs)
	if err != nil {
		return "", "", err
	}

	sess, err := o.store.Create(query, entityIDs)
	if err != nil {
		return "", "", err
	}

	token, err := o.store.IssueToken(sess.ID)
	if err != nil {
		return "", "", err
	}

	o.broker.Reset(sess.ID, token.Generation())
	runID = o.executor.Start(token, pipeline.Input{Query: query, Entities: entities})

	o.logger.Info("conversation started session_id=%s run_id=%s entities=%d", sess.ID, runID, len(entities))
	return sess.ID, runID, nil
}

// PostMessage starts a superseding run on an existing session: the current
// run, if any, loses authority immediately and its pending writes are
// discarded. The user's message joins the session log, and the prior log
// is carried into the new run as history.
func (o *Orchestrator) PostMessage(ctx context.Context, sessionID, content string) (runID string, err error) {
	sess, err := o.store.Get(sessionID)
	if err != nil {
		return "", err
	}

	entities, err := o.resolveEntities(ctx, sess.EntityIDs)
	if err != nil {
		return "", err
	}

	token, err := o.store.IssueToken(sessionID)
	if err != nil {
		return "", err
	}

	coordinator := o.executor.Roster().Coordinator.Name
	if err := o.store.Commit(token, func(s *core.Session) error {
		s.AppendMessage(core.NewUserMessage(coordinator, content))
		return nil
	}); err != nil {
		return "", err
	}

	o.broker.Reset(sessionID, token.Generation())
	runID = o.executor.Start(token, pipeline.Input{
		Query:    sess.Query,
		Entities: entities,
		History:  sess.History(),
		FollowUp: content,
	})

	o.logger.Info("follow-up accepted session_id=%s run_id=%s", sessionID, runID)
	return runID, nil
}

// GetSession returns a clone of the session or core.ErrSessionNotFound.
func (o *Orchestrator) GetSession(sessionID string) (*core.Session, error) {
	return o.store.Get(sessionID)
}

// CancelRun cancels the session's active run. Returns core.ErrNoActiveRun
// when the session has no run in flight.
func (o *Orchestrator) CancelRun(sessionID string) error {
	return o.store.Cancel(sessionID)
}

// Subscribe attaches a listener to the session's event stream.
func (o *Orchestrator) Subscribe(sessionID string) (<-chan stream.Event, func()) {
	return o.broker.Subscribe(sessionID)
}

// Wait blocks until the given run has terminated. Mainly for tests and
// synchronous callers.
func (o *Orchestrator) Wait(runID string) { o.executor.Wait(runID) }

// Extract runs the deterministic co-occurrence extraction over the text
// for the named entities, without any model involvement.
func (o *Orchestrator) Extract(names []string, text string) []core.Relationship {
	return o.extractor.Extract(names, text)
}

// Entities exposes the configured entity store.
func (o *Orchestrator) Entities() core.EntityStore { return o.entities }

// SaveState snapshots the orchestrator (roster, parameters, sessions) to
// the given path.
func (o *Orchestrator) SaveState(path string) error {
	snap, ok := o.store.(interface{ Snapshot() []*core.Session })
	if !ok {
		return core.NewValidationError("session store does not support snapshots")
	}
	return state.Save(path, &state.OrchestratorState{
		Roster:    o.executor.Roster(),
		MaxRounds: o.maxRounds,
		Sessions:  snap.Snapshot(),
	})
}

// LoadState restores sessions from a snapshot written by SaveState.
// Restored sessions carry the loaded status; their message logs and
// derived results are readable but no run is attached, so their streams
// are closed immediately rather than left waiting for events that will
// never come.
func (o *Orchestrator) LoadState(path string) (int, error) {
	st, err := state.Load(path)
	if err != nil {
		return 0, err
	}
	for _, sess := range st.Sessions {
		o.store.Restore(sess)
		o.broker.Close(sess.ID, 0)
	}
	o.logger.Info("state loaded sessions=%d saved_at=%s", len(st.Sessions), st.SavedAt)
	return len(st.Sessions), nil
}

// resolveEntities validates that every id resolves, returning a
// ValidationError naming the first unknown id.
func (o *Orchestrator) resolveEntities(ctx context.Context, ids []string) ([]*core.Entity, error) {
	if len(ids) == 0 {
		return nil, core.NewValidationError("at least one entity id is required")
	}

	entities := make([]*core.Entity, 0, len(ids))
	for _, id := range ids {
		e, err := o.entities.Get(ctx, id)
		if err != nil {
			return nil, core.NewValidationError("unknown entity id %q", id)
		}
		entities = append(entities, e)
	}
	return entities, nil
}
