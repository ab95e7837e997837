package graphfile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/textflow/internal/engine"
	"github.com/roach88/textflow/internal/graph"
	"github.com/roach88/textflow/internal/value"
)

func pipelineDefinition() *Definition {
	return &Definition{
		Nodes: []Node{
			{Name: "input", Kind: "textInput", Config: value.Object{"text": value.String("Hello")}},
			{Name: "enc", Kind: "base64", Config: value.Object{"mode": value.String("encode")}},
			{Name: "digest", Kind: "hash", Config: value.Object{"algorithm": value.String("SHA256")}},
			{Name: "out", Kind: "textDisplay", Config: value.Object{}},
		},
		Edges: []Connection{
			{From: Endpoint{"input", "text"}, To: Endpoint{"enc", "input"}},
			{From: Endpoint{"enc", "output"}, To: Endpoint{"out", "text"}},
			{From: Endpoint{"input", "text"}, To: Endpoint{"digest", "input"}},
		},
	}
}

func loadErrorCode(t *testing.T, err error) string {
	t.Helper()
	var le *LoadError
	require.True(t, errors.As(err, &le), "expected *LoadError, got %v", err)
	return le.Code
}

func TestLoadPipeline(t *testing.T) {
	for _, name := range []string{"pipeline.cue", "pipeline.hcl"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join("testdata", name)
			def, err := Load(path)
			require.NoError(t, err)

			assert.Equal(t, path, def.Source)
			if diff := cmp.Diff(pipelineDefinition(), def, cmpopts.IgnoreFields(Definition{}, "Source")); diff != "" {
				t.Errorf("definition mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseCUESchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown kind", `nodes: x: {kind: "rot13"}`},
		{"bad enum", `nodes: x: {kind: "hash", config: algorithm: "sha256"}`},
		{"unknown config field", `nodes: x: {kind: "base64", config: shift: 3}`},
		{"bad regex flags", `nodes: x: {kind: "regex", config: flags: "gq"}`},
		{"bad endpoint", `nodes: x: {kind: "textInput"}, edges: [{from: "x", to: "x.text"}]`},
		{"dotted name", `nodes: "a.b": {kind: "textInput"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCUE("test.cue", []byte(tt.src))
			require.Error(t, err)
			assert.Equal(t, ErrCodeSchema, loadErrorCode(t, err))
		})
	}
}

func TestParseCUESyntaxError(t *testing.T) {
	_, err := ParseCUE("broken.cue", []byte(`nodes: {`))
	require.Error(t, err)
	assert.Equal(t, ErrCodeParse, loadErrorCode(t, err))
}

func TestLoadBadModeFromFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "bad_mode.cue"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeSchema, loadErrorCode(t, err))
	assert.Contains(t, err.Error(), "bad_mode.cue")
}

func TestParseCUEWithoutEdges(t *testing.T) {
	def, err := ParseCUE("solo.cue", []byte(`nodes: only: {kind: "textInput"}`))
	require.NoError(t, err)
	require.Len(t, def.Nodes, 1)
	assert.Empty(t, def.Edges)
	assert.Equal(t, value.Object{}, def.Nodes[0].Config)
}

func TestParseHCLConfigValues(t *testing.T) {
	src := `
node "x" {
  kind = "textInput"
  config = {
    text  = "hi"
    count = 3
    ratio = 1.5
    on    = true
    tags  = ["a", "b"]
    none  = null
  }
}
`
	def, err := ParseHCL("values.hcl", []byte(src))
	require.NoError(t, err)
	require.Len(t, def.Nodes, 1)

	want := value.Object{
		"text":  value.String("hi"),
		"count": value.Number("3"),
		"ratio": value.Number("1.5"),
		"on":    value.Bool(true),
		"tags":  value.Array{value.String("a"), value.String("b")},
		"none":  value.Null{},
	}
	if diff := cmp.Diff(want, def.Nodes[0].Config); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseHCLErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{"syntax", `node "x" {`, ErrCodeParse},
		{"missing kind", `node "x" {}`, ErrCodeSchema},
		{"unknown block", `widget "x" {}`, ErrCodeSchema},
		{"config not object", "node \"x\" {\n kind = \"textInput\"\n config = \"hi\"\n}", ErrCodeSchema},
		{"variable in config", "node \"x\" {\n kind = \"textInput\"\n config = { text = var.x }\n}", ErrCodeSchema},
		{"bad endpoint", "node \"x\" {\n kind = \"textInput\"\n}\nedge {\n from = \"x\"\n to = \"x.text\"\n}", ErrCodeInvalidEndpoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHCL("test.hcl", []byte(tt.src))
			require.Error(t, err)
			assert.Equal(t, tt.code, loadErrorCode(t, err))
		})
	}
}

func TestValidate(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "unknown_node.hcl"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeUnknownNode, loadErrorCode(t, err))

	dup := "node \"a\" {\n kind = \"textInput\"\n}\nnode \"a\" {\n kind = \"textDisplay\"\n}\n"
	_, err = Parse("dup.hcl", []byte(dup))
	require.Error(t, err)
	assert.Equal(t, ErrCodeDuplicateNode, loadErrorCode(t, err))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.cue"))
	assert.Equal(t, ErrCodeNotFound, loadErrorCode(t, err))

	_, err = Parse("graph.yaml", []byte("nodes: {}"))
	assert.Equal(t, ErrCodeUnsupportedFormat, loadErrorCode(t, err))
}

func TestParseEndpoint(t *testing.T) {
	ep, err := ParseEndpoint("enc.output")
	require.NoError(t, err)
	assert.Equal(t, Endpoint{Node: "enc", Port: "output"}, ep)
	assert.Equal(t, "enc.output", ep.String())

	for _, bad := range []string{"", "enc", ".output", "enc.", "a.b.c"} {
		_, err := ParseEndpoint(bad)
		assert.Error(t, err, "endpoint %q", bad)
	}
}

func newEngine() *engine.Engine {
	return engine.New(
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithIDGenerator(graph.NewSequentialGenerator("n")),
	)
}

func TestApply(t *testing.T) {
	def, err := Load(filepath.Join("testdata", "pipeline.cue"))
	require.NoError(t, err)

	e := newEngine()
	ids, err := Apply(context.Background(), def, e)
	require.NoError(t, err)

	assert.Equal(t, map[string]graph.NodeID{"input": "n-1", "enc": "n-2", "digest": "n-3", "out": "n-4"}, ids)

	out, ok := e.NodeView(ids["out"])
	require.True(t, ok)
	assert.Equal(t, value.String("SGVsbG8="), out.Incoming)

	digest, _ := e.NodeView(ids["digest"])
	assert.Equal(t, value.String("185f8db32271fe25f561a6fc938b2e264306ec304eda518007d1764826381969"), digest.Output("output"))

	assert.Equal(t, map[graph.NodeID]string{"n-1": "input", "n-2": "enc", "n-3": "digest", "n-4": "out"}, Names(ids))
}

func TestApplyCycle(t *testing.T) {
	def, err := Load(filepath.Join("testdata", "cycle.cue"))
	require.NoError(t, err)

	e := newEngine()
	ids, err := Apply(context.Background(), def, e)
	require.NoError(t, err, "a cycle is a graph condition, not a load error")

	view := e.View()
	require.NotNil(t, view.Cycle)
	assert.Equal(t, []graph.NodeID{ids["a"], ids["b"]}, view.Cycle.Nodes)
}

func TestApplyRejectsBadPort(t *testing.T) {
	def := &Definition{
		Nodes: []Node{
			{Name: "in", Kind: "textInput"},
			{Name: "out", Kind: "textDisplay"},
		},
		Edges: []Connection{{From: Endpoint{"in", "nope"}, To: Endpoint{"out", "text"}}},
	}

	ids, err := Apply(context.Background(), def, newEngine())
	require.Error(t, err)
	assert.True(t, graph.IsInvalidEdge(err))
	assert.Contains(t, err.Error(), "in.nope -> out.text")
	assert.Len(t, ids, 2)
}

func TestApplyUnknownKind(t *testing.T) {
	def := &Definition{Nodes: []Node{{Name: "x", Kind: "rot13"}}}

	_, err := Apply(context.Background(), def, newEngine())
	require.Error(t, err)
	assert.Equal(t, graph.ErrCodeUnknownOperator, graph.Code(err))
}
