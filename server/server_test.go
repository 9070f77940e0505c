package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	charmine "github.com/Fasthei/charmine"
	"github.com/Fasthei/charmine/core"
	"github.com/Fasthei/charmine/entity"
	"github.com/Fasthei/charmine/internal/testutil"
	"github.com/Fasthei/charmine/model"
	"github.com/Fasthei/charmine/stream"
)

func newTestServer(t *testing.T) (*Server, *charmine.Orchestrator) {
	t.Helper()

	m := model.NewMockModel("test")
	m.AddResponse("Summarize the relationships discovered in this discussion in one short paragraph.",
		"Ann and Bob work together.")

	entities := entity.NewInMemoryStore()
	entities.Put(testutil.Entity("e1", "Ann", nil))
	entities.Put(testutil.Entity("e2", "Bob", nil))

	orch := charmine.New(m, func(o *charmine.Options) {
		o.EntityStore = entities
	})
	t.Cleanup(orch.Close)
	return New(orch), orch
}

func doJSON(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func startConversation(t *testing.T, srv *Server, orch *charmine.Orchestrator) string {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/conversations/start",
		map[string]any{"query": "how are Ann and Bob connected?", "entity_ids": []string{"e1", "e2"}})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decode[map[string]string](t, rec)
	require.NotEmpty(t, resp["session_id"])
	orch.Wait(resp["run_id"])
	return resp["session_id"]
}

func TestStartConversation(t *testing.T) {
	srv, orch := newTestServer(t)

	id := startConversation(t, srv, orch)

	rec := doJSON(t, srv, http.MethodGet, "/api/conversations/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	sess := decode[*core.Session](t, rec)
	assert.Equal(t, core.StatusCompleted, sess.Status)
	assert.Equal(t, "Ann and Bob work together.", sess.Summary)
}

func TestStartConversationRejectsUnknownEntities(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/conversations/start",
		map[string]any{"query": "q", "entity_ids": []string{"ghost"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[map[string]string](t, rec)
	assert.Contains(t, resp["error"], "ghost")
}

func TestGetSessionNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/conversations/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostMessageSupersedes(t *testing.T) {
	srv, orch := newTestServer(t)
	id := startConversation(t, srv, orch)

	rec := doJSON(t, srv, http.MethodPost, "/api/conversations/"+id+"/messages",
		map[string]string{"message": "focus on shared employers"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	resp := decode[map[string]string](t, rec)
	orch.Wait(resp["run_id"])

	get := doJSON(t, srv, http.MethodGet, "/api/conversations/"+id, nil)
	sess := decode[*core.Session](t, get)
	assert.Equal(t, core.StatusCompleted, sess.Status)
}

func TestPostMessageValidation(t *testing.T) {
	srv, orch := newTestServer(t)
	id := startConversation(t, srv, orch)

	rec := doJSON(t, srv, http.MethodPost, "/api/conversations/"+id+"/messages",
		map[string]string{"message": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/conversations/absent/messages",
		map[string]string{"message": "hello"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResultEndpoints(t *testing.T) {
	srv, orch := newTestServer(t)
	id := startConversation(t, srv, orch)

	rec := doJSON(t, srv, http.MethodGet, "/api/conversations/"+id+"/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[map[string]any](t, rec)
	assert.Equal(t, "Ann and Bob work together.", summary["summary"])

	rec = doJSON(t, srv, http.MethodGet, "/api/conversations/"+id+"/relationships", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/conversations/"+id+"/visualization", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCancelWithoutActiveRun(t *testing.T) {
	srv, orch := newTestServer(t)
	id := startConversation(t, srv, orch)

	// The run already finished and released its token.
	rec := doJSON(t, srv, http.MethodPost, "/api/conversations/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamDeliversDone(t *testing.T) {
	srv, orch := newTestServer(t)
	id := startConversation(t, srv, orch)

	// The run already finished: the stream must still terminate with done.
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(ts.URL + "/api/conversations/" + id + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events []stream.Event
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev stream.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}

	require.NotEmpty(t, events)
	assert.Equal(t, stream.EventDone, events[len(events)-1].Type)
}

func TestStreamUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/conversations/absent/stream", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEntityEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/entities", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string][]core.Entity](t, rec)
	assert.Len(t, list["entities"], 2)

	rec = doJSON(t, srv, http.MethodGet, "/api/entities/e1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	e := decode[core.Entity](t, rec)
	assert.Equal(t, "Ann", e.Name)

	rec = doJSON(t, srv, http.MethodGet, "/api/entities/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtractSkillEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/extract", map[string]any{
		"values": []map[string]any{
			{
				"recordId": "r1",
				"data": map[string]any{
					"text":    "Ann is married to Bob.",
					"persons": []string{"Ann", "Bob"},
				},
			},
			{
				"recordId": "r2",
				"data":     map[string]any{"persons": []string{"Ann"}},
			},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[extractResponse](t, rec)
	require.Len(t, resp.Values, 2)

	assert.Equal(t, "r1", resp.Values[0].RecordID)
	require.NotNil(t, resp.Values[0].Data)
	require.Len(t, resp.Values[0].Data.Relationships, 2)
	assert.Equal(t, core.RelationStrong, resp.Values[0].Data.Relationships[0].Type)

	assert.Equal(t, "r2", resp.Values[1].RecordID)
	assert.Nil(t, resp.Values[1].Data)
	require.Len(t, resp.Values[1].Errors, 1)
}

func TestStateSaveAndLoad(t *testing.T) {
	srv, orch := newTestServer(t)
	id := startConversation(t, srv, orch)

	path := filepath.Join(t.TempDir(), "state.json")
	rec := doJSON(t, srv, http.MethodPost, "/api/state/save", map[string]string{"path": path})
	require.Equal(t, http.StatusOK, rec.Code)

	srv2, _ := newTestServer(t)
	rec = doJSON(t, srv2, http.MethodPost, "/api/state/load", map[string]string{"path": path})
	require.Equal(t, http.StatusOK, rec.Code)

	loaded := decode[map[string]any](t, rec)
	assert.Equal(t, float64(1), loaded["sessions"])

	get := doJSON(t, srv2, http.MethodGet, "/api/conversations/"+id, nil)
	require.Equal(t, http.StatusOK, get.Code)
	sess := decode[*core.Session](t, get)
	assert.Equal(t, core.StatusLoaded, sess.Status)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
