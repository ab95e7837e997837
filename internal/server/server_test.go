package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/textflow/internal/engine"
	"github.com/roach88/textflow/internal/graph"
	"github.com/roach88/textflow/internal/journal"
	"github.com/roach88/textflow/internal/operator"
	"github.com/roach88/textflow/internal/value"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func setupTestServer(t *testing.T, opts ...engine.Option) (*Server, *engine.Engine) {
	t.Helper()
	opts = append([]engine.Option{
		engine.WithLogger(discardLogger),
		engine.WithIDGenerator(graph.NewSequentialGenerator("n")),
	}, opts...)
	e := engine.New(opts...)
	srv := New(e, WithLogger(discardLogger))
	t.Cleanup(srv.Close)
	return srv, e
}

// do sends a request and returns the status and the body.
func do(t *testing.T, srv *Server, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

func TestListOperators(t *testing.T) {
	srv, _ := setupTestServer(t)

	status, body := do(t, srv, http.MethodGet, "/operators", "")
	require.Equal(t, http.StatusOK, status)

	ops := decode[[]operatorJSON](t, body)
	require.Len(t, ops, 7)
	assert.Equal(t, operator.KindTextInput, ops[0].Kind)
	assert.JSONEq(t, `{"text":"Hello World"}`, string(ops[0].Defaults))
	assert.Empty(t, ops[0].Inputs)

	display := ops[1]
	assert.Equal(t, operator.KindTextDisplay, display.Kind)
	assert.True(t, display.Display)
	assert.Equal(t, []operator.Port{{ID: "text", Name: "Text"}}, display.Inputs)
}

func TestNodeLifecycle(t *testing.T) {
	srv, _ := setupTestServer(t)

	status, body := do(t, srv, http.MethodPost, "/nodes", `{"kind":"textInput","config":{"text":"Hello"}}`)
	require.Equal(t, http.StatusCreated, status, string(body))
	created := decode[addNodeResponse](t, body)
	assert.Equal(t, graph.NodeID("n-1"), created.ID)
	assert.JSONEq(t, `{"text":"Hello"}`, string(created.Node.Outputs))
	assert.Nil(t, created.Node.Incoming)

	status, _ = do(t, srv, http.MethodPost, "/nodes", `{"kind":"base64"}`)
	require.Equal(t, http.StatusCreated, status)
	status, body = do(t, srv, http.MethodPost, "/nodes", `{"kind":"textDisplay"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.JSONEq(t, "null", string(decode[addNodeResponse](t, body).Node.Incoming))

	status, body = do(t, srv, http.MethodPost, "/edges", `{"source":"n-1","sourcePort":"text","target":"n-2","targetPort":"input"}`)
	require.Equal(t, http.StatusCreated, status, string(body))
	status, _ = do(t, srv, http.MethodPost, "/edges", `{"source":"n-2","sourcePort":"output","target":"n-3","targetPort":"text"}`)
	require.Equal(t, http.StatusCreated, status)

	status, body = do(t, srv, http.MethodGet, "/nodes/n-3", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `"SGVsbG8="`, string(decode[nodeJSON](t, body).Incoming))

	status, body = do(t, srv, http.MethodPatch, "/nodes/n-1/config", `{"text":"World"}`)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, `{"text":"World"}`, string(decode[nodeJSON](t, body).Config))

	status, body = do(t, srv, http.MethodGet, "/nodes/n-3", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `"V29ybGQ="`, string(decode[nodeJSON](t, body).Incoming))

	status, _ = do(t, srv, http.MethodDelete, "/edges", `{"source":"n-2","sourcePort":"output","target":"n-3","targetPort":"text"}`)
	require.Equal(t, http.StatusNoContent, status)

	status, body = do(t, srv, http.MethodGet, "/graph", "")
	require.Equal(t, http.StatusOK, status)
	g := decode[graphJSON](t, body)
	assert.Len(t, g.Nodes, 3)
	assert.Equal(t, []graph.Edge{{Source: "n-1", SourcePort: "text", Target: "n-2", TargetPort: "input"}}, g.Edges)
	assert.Nil(t, g.Cycle)

	status, _ = do(t, srv, http.MethodDelete, "/nodes/n-2", "")
	require.Equal(t, http.StatusNoContent, status)

	status, body = do(t, srv, http.MethodGet, "/nodes", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]nodeJSON](t, body), 2)

	status, _ = do(t, srv, http.MethodDelete, "/nodes", `{"ids":["n-1","n-3"]}`)
	require.Equal(t, http.StatusNoContent, status)

	status, body = do(t, srv, http.MethodGet, "/graph", "")
	require.Equal(t, http.StatusOK, status)
	g = decode[graphJSON](t, body)
	assert.Empty(t, g.Nodes)
	assert.NotNil(t, g.Edges)
}

func TestNodeValuesKeepLiterals(t *testing.T) {
	srv, _ := setupTestServer(t)

	status, body := do(t, srv, http.MethodPost, "/nodes", `{"kind":"textInput","config":{"text":"e\u0301","weight":1.0}}`)
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = do(t, srv, http.MethodGet, "/nodes/n-1", "")
	require.Equal(t, http.StatusOK, status)
	nv := decode[nodeJSON](t, body)
	assert.Equal(t, "{\"text\":\"e\u0301\",\"weight\":1.0}", string(nv.Config))
	assert.Equal(t, "{\"text\":\"e\u0301\"}", string(nv.Outputs))
}

func TestErrorResponses(t *testing.T) {
	srv, e := setupTestServer(t)
	ctx := context.Background()
	in, err := e.AddNode(ctx, operator.KindTextInput, nil)
	require.NoError(t, err)
	h, err := e.AddNode(ctx, operator.KindHash, nil)
	require.NoError(t, err)
	require.NoError(t, e.AddEdge(ctx, graph.Edge{Source: in, SourcePort: "text", Target: h, TargetPort: "input"}))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"malformed body", http.MethodPost, "/nodes", "{", http.StatusBadRequest, "BAD_REQUEST"},
		{"missing kind", http.MethodPost, "/nodes", `{}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"config not an object", http.MethodPost, "/nodes", `{"kind":"hash","config":[1]}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown kind", http.MethodPost, "/nodes", `{"kind":"rot13"}`, http.StatusUnprocessableEntity, "UNKNOWN_OPERATOR"},
		{"get missing node", http.MethodGet, "/nodes/ghost", "", http.StatusNotFound, "NODE_NOT_FOUND"},
		{"remove missing node", http.MethodDelete, "/nodes/ghost", "", http.StatusNotFound, "NODE_NOT_FOUND"},
		{"empty selection", http.MethodDelete, "/nodes", `{"ids":[]}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"patch missing node", http.MethodPatch, "/nodes/ghost/config", `{}`, http.StatusNotFound, "NODE_NOT_FOUND"},
		{"patch with array", http.MethodPatch, "/nodes/n-1/config", `[1]`, http.StatusBadRequest, "BAD_REQUEST"},
		{"patch without body", http.MethodPatch, "/nodes/n-1/config", "", http.StatusBadRequest, "BAD_REQUEST"},
		{"bad port", http.MethodPost, "/edges", `{"source":"n-1","sourcePort":"nope","target":"n-2","targetPort":"input"}`, http.StatusUnprocessableEntity, "INVALID_EDGE"},
		{"occupied port", http.MethodPost, "/edges", `{"source":"n-1","sourcePort":"text","target":"n-2","targetPort":"input"}`, http.StatusConflict, "PORT_OCCUPIED"},
		{"missing edge", http.MethodDelete, "/edges", `{"source":"n-2","sourcePort":"output","target":"n-1","targetPort":"text"}`, http.StatusNotFound, "EDGE_NOT_FOUND"},
		{"no journal", http.MethodGet, "/passes", "", http.StatusNotFound, "NO_JOURNAL"},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status, string(body))
			eb := decode[errorBody](t, body)
			assert.Equal(t, tt.code, eb.Code)
			assert.NotEmpty(t, eb.Error)
		})
	}

	assert.Len(t, e.View().Nodes, 2, "rejected requests leave the graph alone")
	assert.Len(t, e.View().Edges, 1)
}

func TestRecompute(t *testing.T) {
	srv, e := setupTestServer(t)
	_, err := e.AddNode(context.Background(), operator.KindTextInput, nil)
	require.NoError(t, err)

	status, body := do(t, srv, http.MethodPost, "/recompute", "")
	require.Equal(t, http.StatusOK, status)

	p := decode[passJSON](t, body)
	assert.Equal(t, int64(2), p.Seq)
	assert.Equal(t, engine.CauseRecompute, p.Cause)
	assert.False(t, p.Changed)
	assert.Empty(t, p.Evaluated)
	assert.Equal(t, []graph.NodeID{"n-1"}, p.Skipped)
	assert.Empty(t, p.Errors)
	assert.Nil(t, p.Cycle)
}

func TestGraphReportsCycle(t *testing.T) {
	srv, e := setupTestServer(t)
	ctx := context.Background()
	a, err := e.AddNode(ctx, operator.KindBase64, nil)
	require.NoError(t, err)
	b, err := e.AddNode(ctx, operator.KindBase64, nil)
	require.NoError(t, err)
	require.NoError(t, e.AddEdge(ctx, graph.Edge{Source: a, SourcePort: "output", Target: b, TargetPort: "input"}))
	require.NoError(t, e.AddEdge(ctx, graph.Edge{Source: b, SourcePort: "output", Target: a, TargetPort: "input"}))

	status, body := do(t, srv, http.MethodGet, "/graph", "")
	require.Equal(t, http.StatusOK, status)

	g := decode[graphJSON](t, body)
	require.NotNil(t, g.Cycle)
	assert.Equal(t, []graph.NodeID{a, b}, g.Cycle.Nodes)
	assert.Equal(t, [][]graph.NodeID{{a, b, a}}, g.Cycle.Cycles)
	for _, n := range g.Nodes {
		assert.False(t, n.Error, "a cycle is not a node failure")
	}
}

func TestJournalRoutes(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	e := engine.New(
		engine.WithLogger(discardLogger),
		engine.WithJournal(j),
		engine.WithIDGenerator(graph.NewSequentialGenerator("n")),
	)
	srv := New(e, WithJournal(j), WithLogger(discardLogger))
	t.Cleanup(srv.Close)

	_, err = e.AddNode(context.Background(), operator.KindTextInput, value.Object{"text": value.String("hi")})
	require.NoError(t, err)

	status, body := do(t, srv, http.MethodGet, "/passes", "")
	require.Equal(t, http.StatusOK, status)
	passes := decode[[]journal.PassRecord](t, body)
	require.Len(t, passes, 1)
	assert.Equal(t, "add_node", passes[0].Cause)

	status, body = do(t, srv, http.MethodGet, "/passes/1", "")
	require.Equal(t, http.StatusOK, status)
	detail := decode[passDetail](t, body)
	require.Len(t, detail.Evaluations, 1)
	assert.Equal(t, journal.StatusEvaluated, detail.Evaluations[0].Status)

	status, _ = do(t, srv, http.MethodGet, "/passes/9", "")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = do(t, srv, http.MethodGet, "/passes/first", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, srv, http.MethodGet, "/nodes/n-1/history", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]journal.EvaluationRecord](t, body), 1)

	status, body = do(t, srv, http.MethodGet, "/nodes/ghost/history", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, "[]", string(body))
}

func TestBroadcaster(t *testing.T) {
	srv, e := setupTestServer(t)

	updates, cancel := srv.events.subscribe()
	_, err := e.AddNode(context.Background(), operator.KindTextInput, nil)
	require.NoError(t, err)

	var u updateJSON
	select {
	case data := <-updates:
		require.NoError(t, json.Unmarshal(data, &u))
	default:
		t.Fatal("listener ran inside the pass, so the update should be buffered")
	}
	assert.Equal(t, int64(1), u.Pass.Seq)
	assert.Equal(t, []graph.NodeID{"n-1"}, u.Pass.Evaluated)
	require.Len(t, u.Graph.Nodes, 1)

	cancel()
	_, open := <-updates
	assert.False(t, open)
	cancel()

	srv.Close()
	late, _ := srv.events.subscribe()
	_, open = <-late
	assert.False(t, open, "streams opened after Close end immediately")
}
