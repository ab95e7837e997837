package graph

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/textflow/internal/operator"
	"github.com/roach88/textflow/internal/value"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(operator.Builtins(), WithIDGenerator(NewSequentialGenerator("n")))
}

func mustAdd(t *testing.T, s *Store, kind operator.Kind, cfg value.Object) NodeID {
	t.Helper()
	id, err := s.AddNode(kind, cfg)
	require.NoError(t, err)
	return id
}

func TestAddNodeCopiesDefaults(t *testing.T) {
	s := setupTestStore(t)

	id := mustAdd(t, s, operator.KindRegex, nil)
	assert.Equal(t, NodeID("n-1"), id)

	n, ok := s.Node(id)
	require.True(t, ok)
	assert.Equal(t, operator.KindRegex, n.Kind)
	assert.Equal(t, value.Object{"pattern": value.String("(Hello)"), "flags": value.String("gi")}, n.Config)
	assert.False(t, n.Memo.Evaluated)

	// Mutating the returned copy does not reach the store or the defaults.
	n.Config["pattern"] = value.String("x")
	again, _ := s.Node(id)
	assert.Equal(t, value.String("(Hello)"), again.Config["pattern"])
	def, _ := operator.Builtins().Lookup(operator.KindRegex)
	assert.Equal(t, value.String("(Hello)"), def.Defaults["pattern"])
}

func TestAddNodeInitialConfigOverlaysDefaults(t *testing.T) {
	s := setupTestStore(t)

	id := mustAdd(t, s, operator.KindCrypto, value.Object{"key": value.String("k")})
	n, _ := s.Node(id)
	assert.Equal(t, value.Object{"mode": value.String("encrypt"), "key": value.String("k")}, n.Config)
}

func TestAddNodeUnknownKind(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.AddNode("rot13", nil)
	require.Error(t, err)
	assert.Equal(t, ErrCodeUnknownOperator, Code(err))
	assert.True(t, operator.IsUnknownOperator(err), "registry error is wrapped")
	assert.Equal(t, 0, s.Len())
}

func TestDefaultIDsAreUUIDv7(t *testing.T) {
	s := NewStore(nil)

	id, err := s.AddNode(operator.KindTextInput, nil)
	require.NoError(t, err)

	parsed, err := uuid.Parse(string(id))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestAddEdge(t *testing.T) {
	s := setupTestStore(t)
	in := mustAdd(t, s, operator.KindTextInput, nil)
	b64 := mustAdd(t, s, operator.KindBase64, nil)
	out := mustAdd(t, s, operator.KindTextDisplay, nil)

	require.NoError(t, s.AddEdge(Edge{in, "text", b64, "input"}))
	require.NoError(t, s.AddEdge(Edge{b64, "output", out, "text"}))

	assert.Equal(t, []Edge{
		{in, "text", b64, "input"},
		{b64, "output", out, "text"},
	}, s.Edges())
}

func TestAddEdgeInvalid(t *testing.T) {
	s := setupTestStore(t)
	in := mustAdd(t, s, operator.KindTextInput, nil)
	b64 := mustAdd(t, s, operator.KindBase64, nil)

	tests := []struct {
		name string
		edge Edge
	}{
		{"missing source", Edge{"ghost", "text", b64, "input"}},
		{"missing target", Edge{in, "text", "ghost", "input"}},
		{"bad source port", Edge{in, "output", b64, "input"}},
		{"bad target port", Edge{in, "text", b64, "text"}},
		{"input used as source", Edge{b64, "input", in, "text"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.AddEdge(tt.edge)
			require.Error(t, err)
			assert.True(t, IsInvalidEdge(err), "got %v", err)
			assert.Empty(t, s.Edges(), "graph unchanged")
		})
	}
}

func TestAddEdgePortOccupied(t *testing.T) {
	s := setupTestStore(t)
	a := mustAdd(t, s, operator.KindTextInput, nil)
	b := mustAdd(t, s, operator.KindTextInput, nil)
	h := mustAdd(t, s, operator.KindHash, nil)
	d1 := mustAdd(t, s, operator.KindTextDisplay, nil)
	d2 := mustAdd(t, s, operator.KindTextDisplay, nil)

	require.NoError(t, s.AddEdge(Edge{a, "text", h, "input"}))

	err := s.AddEdge(Edge{b, "text", h, "input"})
	require.Error(t, err)
	assert.True(t, IsPortOccupied(err))

	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, h, ge.NodeID)
	assert.Equal(t, "input", ge.Port)

	err = s.AddEdge(Edge{a, "text", h, "input"})
	assert.True(t, IsPortOccupied(err), "duplicate edge occupies its own slot")

	// Fan-out from one output is allowed.
	require.NoError(t, s.AddEdge(Edge{h, "output", d1, "text"}))
	require.NoError(t, s.AddEdge(Edge{h, "output", d2, "text"}))
	assert.Len(t, s.Edges(), 3)
}

func TestAddEdgeSelfLoopAccepted(t *testing.T) {
	s := setupTestStore(t)
	b := mustAdd(t, s, operator.KindBase64, nil)

	require.NoError(t, s.AddEdge(Edge{b, "output", b, "input"}))
}

func TestRemoveNodeCascades(t *testing.T) {
	s := setupTestStore(t)
	in := mustAdd(t, s, operator.KindTextInput, nil)
	b64 := mustAdd(t, s, operator.KindBase64, nil)
	out := mustAdd(t, s, operator.KindTextDisplay, nil)
	require.NoError(t, s.AddEdge(Edge{in, "text", b64, "input"}))
	require.NoError(t, s.AddEdge(Edge{b64, "output", out, "text"}))

	require.NoError(t, s.RemoveNode(b64))

	assert.Equal(t, 2, s.Len())
	assert.Empty(t, s.Edges())
	_, ok := s.Node(b64)
	assert.False(t, ok)
	assert.Equal(t, []NodeID{in, out}, s.Snapshot().IDs())

	err := s.RemoveNode(b64)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, ErrCodeNodeNotFound, Code(err))
}

func TestRemoveNodesIsAtomic(t *testing.T) {
	s := setupTestStore(t)
	a := mustAdd(t, s, operator.KindTextInput, nil)
	b := mustAdd(t, s, operator.KindBase64, nil)
	c := mustAdd(t, s, operator.KindTextDisplay, nil)
	require.NoError(t, s.AddEdge(Edge{a, "text", b, "input"}))
	require.NoError(t, s.AddEdge(Edge{b, "output", c, "text"}))

	err := s.RemoveNodes([]NodeID{a, "ghost"})
	require.Error(t, err)
	assert.Equal(t, 3, s.Len(), "nothing removed")
	assert.Len(t, s.Edges(), 2)

	require.NoError(t, s.RemoveNodes([]NodeID{a, c, a}))
	assert.Equal(t, []NodeID{b}, s.Snapshot().IDs())
	assert.Empty(t, s.Edges())
}

func TestRemoveEdge(t *testing.T) {
	s := setupTestStore(t)
	a := mustAdd(t, s, operator.KindTextInput, nil)
	b := mustAdd(t, s, operator.KindHash, nil)
	e := Edge{a, "text", b, "input"}
	require.NoError(t, s.AddEdge(e))

	require.NoError(t, s.RemoveEdge(e))
	assert.Empty(t, s.Edges())

	err := s.RemoveEdge(e)
	require.Error(t, err)
	assert.Equal(t, ErrCodeEdgeNotFound, Code(err))

	// The slot is free again.
	require.NoError(t, s.AddEdge(e))
}

func TestPatchConfig(t *testing.T) {
	s := setupTestStore(t)
	id := mustAdd(t, s, operator.KindCrypto, nil)

	changed, err := s.PatchConfig(id, value.Object{"key": value.String("k")})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.PatchConfig(id, value.Object{"key": value.String("k")})
	require.NoError(t, err)
	assert.False(t, changed, "identical value is not a change")

	changed, err = s.PatchConfig(id, value.Object{})
	require.NoError(t, err)
	assert.False(t, changed)

	n, _ := s.Node(id)
	assert.Equal(t, value.Object{"mode": value.String("encrypt"), "key": value.String("k")}, n.Config, "merge is shallow and keeps other keys")

	_, err = s.PatchConfig("ghost", value.Object{})
	assert.True(t, IsNotFound(err))
}

func TestPatchConfigDoesNotAliasCaller(t *testing.T) {
	s := setupTestStore(t)
	id := mustAdd(t, s, operator.KindTextInput, nil)

	partial := value.Object{"text": value.Array{value.String("a")}}
	_, err := s.PatchConfig(id, partial)
	require.NoError(t, err)

	partial["text"].(value.Array)[0] = value.String("mutated")
	n, _ := s.Node(id)
	assert.Equal(t, value.Array{value.String("a")}, n.Config["text"])
}

func TestSnapshotIsolation(t *testing.T) {
	s := setupTestStore(t)
	a := mustAdd(t, s, operator.KindTextInput, value.Object{"text": value.String("Hello")})
	b := mustAdd(t, s, operator.KindBase64, nil)
	require.NoError(t, s.AddEdge(Edge{a, "text", b, "input"}))

	snap := s.Snapshot()

	_, err := s.PatchConfig(a, value.Object{"text": value.String("changed")})
	require.NoError(t, err)
	require.NoError(t, s.RemoveNode(b))

	require.Len(t, snap.Nodes, 2)
	require.Len(t, snap.Edges, 1)
	n, ok := snap.Node(a)
	require.True(t, ok)
	assert.Equal(t, value.String("Hello"), n.Config["text"])

	// Writing into the snapshot does not reach the store.
	snap.Nodes[0].Config["text"] = value.String("snap")
	live, _ := s.Node(a)
	assert.Equal(t, value.String("changed"), live.Config["text"])
}

func TestCommit(t *testing.T) {
	s := setupTestStore(t)
	a := mustAdd(t, s, operator.KindTextInput, nil)
	b := mustAdd(t, s, operator.KindBase64, nil)

	snap := s.Snapshot()
	st := snap.Nodes[0]
	st.Outputs = value.Object{"text": value.String("Hello World")}
	st.Memo = Memo{Evaluated: true, Inputs: []value.Value{}, Config: st.Config.Clone()}
	st.Config = value.Object{"text": value.String("ignored")}

	gone := snap.Nodes[1]
	require.NoError(t, s.RemoveNode(b))

	applied := s.Commit([]NodeState{st, gone})
	assert.Equal(t, 1, applied, "removed node is skipped")

	n, _ := s.Node(a)
	assert.Equal(t, value.String("Hello World"), n.Output("text"))
	assert.True(t, n.Memo.Evaluated)
	assert.Equal(t, value.String("Hello World"), n.Config["text"], "config never comes from a commit")
	assert.Equal(t, value.Undefined{}, n.Output("missing"))
}

func TestErrorMessages(t *testing.T) {
	err := &Error{Code: ErrCodePortOccupied, Message: "taken", NodeID: "n-1", Port: "input"}
	assert.Equal(t, "PORT_OCCUPIED: taken (node=n-1, port=input)", err.Error())

	err = nodeNotFound("n-2")
	assert.Equal(t, "NODE_NOT_FOUND: node does not exist (node=n-2)", err.Error())

	assert.Equal(t, ErrorCode(""), Code(assert.AnError))
}

func TestSequentialGenerator(t *testing.T) {
	g := NewSequentialGenerator("")
	assert.Equal(t, NodeID("node-1"), g.NewID())
	assert.Equal(t, NodeID("node-2"), g.NewID())
}
