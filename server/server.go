package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	charmine "github.com/Fasthei/charmine"
	"github.com/Fasthei/charmine/core"
	"github.com/Fasthei/charmine/logging"
	"github.com/Fasthei/charmine/stream"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// Addr is the listen address for Serve.
	Addr string
	// StatePath is the default snapshot location when a state request
	// does not name one.
	StatePath string
	// Logger receives request diagnostics.
	Logger logging.Logger
}

// Server wires the orchestrator into an http.Handler.
type Server struct {
	orch      *charmine.Orchestrator
	addr      string
	statePath string
	logger    logging.Logger
	mux       *http.ServeMux
}

// New constructs a Server with optional overrides.
func New(orch *charmine.Orchestrator, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:      ":8000",
		StatePath: "charmine-state.json",
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		orch:      orch,
		addr:      opts.Addr,
		statePath: opts.StatePath,
		logger:    opts.Logger,
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/conversations/start", s.handleStart)
	s.mux.HandleFunc("GET /api/conversations/{id}", s.handleGetSession)
	s.mux.HandleFunc("POST /api/conversations/{id}/messages", s.handlePostMessage)
	s.mux.HandleFunc("GET /api/conversations/{id}/relationships", s.handleRelationships)
	s.mux.HandleFunc("GET /api/conversations/{id}/summary", s.handleSummary)
	s.mux.HandleFunc("GET /api/conversations/{id}/visualization", s.handleVisualization)
	s.mux.HandleFunc("GET /api/conversations/{id}/stream", s.handleStream)
	s.mux.HandleFunc("POST /api/conversations/{id}/cancel", s.handleCancel)
	s.mux.HandleFunc("POST /api/state/save", s.handleSaveState)
	s.mux.HandleFunc("POST /api/state/load", s.handleLoadState)
	s.mux.HandleFunc("GET /api/entities", s.handleListEntities)
	s.mux.HandleFunc("GET /api/entities/{id}", s.handleGetEntity)
	s.mux.HandleFunc("POST /api/extract", s.handleExtract)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Serve runs the HTTP server until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	s.logger.Info("http server listening addr=%s", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type startRequest struct {
	Query     string   `json:"query"`
	EntityIDs []string `json:"entity_ids"`
}

type startResponse struct {
	SessionID string `json:"session_id"`
	RunID     string `json:"run_id"`
	Status    string `json:"status"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	sessionID, runID, err := s.orch.StartConversation(r.Context(), req.Query, req.EntityIDs)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, startResponse{
		SessionID: sessionID,
		RunID:     runID,
		Status:    string(core.StatusInitializing),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.GetSession(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	SessionID string `json:"session_id"`
	RunID     string `json:"run_id"`
	Status    string `json:"status"`
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Message == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("message must not be empty"))
		return
	}

	runID, err := s.orch.PostMessage(r.Context(), id, req.Message)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, messageResponse{
		SessionID: id,
		RunID:     runID,
		Status:    string(core.StatusProcessing),
	})
}

func (s *Server) handleRelationships(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.GetSession(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id":    sess.ID,
		"status":        sess.Status,
		"relationships": sess.Relationships,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.GetSession(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"status":     sess.Status,
		"summary":    sess.Summary,
	})
}

func (s *Server) handleVisualization(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.GetSession(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id":    sess.ID,
		"status":        sess.Status,
		"visualization": sess.Visualization,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.orch.CancelRun(id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"status":     core.StatusCancelled,
	})
}

// handleStream replays the session's live events as server-sent events.
// The stream always ends with a done event, even when the client attaches
// to a session whose run already finished.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.orch.GetSession(id); err != nil {
		s.writeDomainError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	events, cancel := s.orch.Subscribe(id)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			doc, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", doc)
			flusher.Flush()
			if ev.Type == stream.EventDone {
				return
			}
		}
	}
}

type stateRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleSaveState(w http.ResponseWriter, r *http.Request) {
	path := s.statePath
	var req stateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Path != "" {
		path = req.Path
	}

	if err := s.orch.SaveState(path); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"path": path})
}

func (s *Server) handleLoadState(w http.ResponseWriter, r *http.Request) {
	path := s.statePath
	var req stateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Path != "" {
		path = req.Path
	}

	n, err := s.orch.LoadState(path)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"path": path, "sessions": n})
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	filter := core.EntityFilter{Name: r.URL.Query().Get("name")}
	entities, err := s.orch.Entities().List(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entities == nil {
		entities = []*core.Entity{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entities": entities})
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	e, err := s.orch.Entities().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encoding failed err=%v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeDomainError maps engine errors onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var vErr *core.ValidationError
	switch {
	case errors.As(err, &vErr):
		s.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, core.ErrSessionNotFound), errors.Is(err, core.ErrEntityNotFound), errors.Is(err, core.ErrNoActiveRun):
		s.writeError(w, http.StatusNotFound, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}
