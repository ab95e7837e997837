package server

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/textflow/internal/engine"
	"github.com/roach88/textflow/internal/graph"
	"github.com/roach88/textflow/internal/operator"
	"github.com/roach88/textflow/internal/scheduler"
	"github.com/roach88/textflow/internal/value"
)

// Node values are written as stored, with object keys sorted so responses
// are stable.

type nodeJSON struct {
	ID           graph.NodeID    `json:"id"`
	Kind         operator.Kind   `json:"kind"`
	Name         string          `json:"name"`
	Config       json.RawMessage `json:"config"`
	Outputs      json.RawMessage `json:"outputs"`
	Error        bool            `json:"error"`
	ErrorMessage string          `json:"errorMessage,omitempty"`

	// Incoming is only present on display nodes; null when nothing arrives.
	Incoming json.RawMessage `json:"incoming,omitempty"`
}

type cycleJSON struct {
	Nodes  []graph.NodeID   `json:"nodes"`
	Cycles [][]graph.NodeID `json:"cycles"`
}

type graphJSON struct {
	Seq   int64        `json:"seq"`
	Nodes []nodeJSON   `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
	Cycle *cycleJSON   `json:"cycle"`
}

type transformErrorJSON struct {
	Node    graph.NodeID  `json:"node"`
	Kind    operator.Kind `json:"kind"`
	Message string        `json:"message"`
}

type passJSON struct {
	Seq       int64                `json:"seq"`
	Cause     engine.Cause         `json:"cause"`
	Order     []graph.NodeID       `json:"order"`
	Evaluated []graph.NodeID       `json:"evaluated"`
	Failed    []graph.NodeID       `json:"failed"`
	Skipped   []graph.NodeID       `json:"skipped"`
	Blocked   []graph.NodeID       `json:"blocked"`
	Errors    []transformErrorJSON `json:"errors"`
	Changed   bool                 `json:"changed"`
	Cycle     *cycleJSON           `json:"cycle"`
}

type updateJSON struct {
	Pass  passJSON  `json:"pass"`
	Graph graphJSON `json:"graph"`
}

type operatorJSON struct {
	Kind     operator.Kind   `json:"kind"`
	Name     string          `json:"name"`
	Inputs   []operator.Port `json:"inputs"`
	Outputs  []operator.Port `json:"outputs"`
	Defaults json.RawMessage `json:"defaults"`
	Display  bool            `json:"display"`
}

// rawJSON encodes v exactly as stored, with no Unicode or number
// normalization.
func rawJSON(v value.Value) (json.RawMessage, error) {
	data, err := value.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func encodeNode(nv engine.NodeView) (nodeJSON, error) {
	config, err := rawJSON(nv.Config)
	if err != nil {
		return nodeJSON{}, fmt.Errorf("node %s config: %w", nv.ID, err)
	}
	outputs, err := rawJSON(nv.Outputs)
	if err != nil {
		return nodeJSON{}, fmt.Errorf("node %s outputs: %w", nv.ID, err)
	}
	out := nodeJSON{
		ID:           nv.ID,
		Kind:         nv.Kind,
		Name:         nv.Name,
		Config:       config,
		Outputs:      outputs,
		Error:        nv.Error,
		ErrorMessage: nv.ErrorMessage,
	}
	if nv.Incoming != nil {
		if out.Incoming, err = rawJSON(nv.Incoming); err != nil {
			return nodeJSON{}, fmt.Errorf("node %s incoming: %w", nv.ID, err)
		}
	}
	return out, nil
}

func encodeNodes(nodes []engine.NodeView) ([]nodeJSON, error) {
	out := make([]nodeJSON, len(nodes))
	for i, nv := range nodes {
		n, err := encodeNode(nv)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func encodeGraph(v engine.View) (graphJSON, error) {
	nodes, err := encodeNodes(v.Nodes)
	if err != nil {
		return graphJSON{}, err
	}
	edges := v.Edges
	if edges == nil {
		edges = []graph.Edge{}
	}
	return graphJSON{Seq: v.Seq, Nodes: nodes, Edges: edges, Cycle: encodeCycle(v.Cycle)}, nil
}

func encodeCycle(c *scheduler.CycleError) *cycleJSON {
	if c == nil {
		return nil
	}
	cycles := make([][]graph.NodeID, len(c.Cycles))
	for i, path := range c.Cycles {
		cycles[i] = ids(path)
	}
	return &cycleJSON{Nodes: ids(c.Nodes), Cycles: cycles}
}

func encodePass(s engine.PassSummary) passJSON {
	out := passJSON{
		Seq:       s.Seq,
		Cause:     s.Cause,
		Order:     ids(s.Order),
		Evaluated: ids(s.Evaluated),
		Failed:    ids(s.Failed),
		Skipped:   ids(s.Skipped),
		Blocked:   ids(s.Blocked),
		Errors:    make([]transformErrorJSON, len(s.Errors)),
		Changed:   s.Changed,
		Cycle:     encodeCycle(s.Cycle),
	}
	for i, terr := range s.Errors {
		out.Errors[i] = transformErrorJSON{Node: terr.NodeID, Kind: terr.Kind, Message: terr.Cause.Error()}
	}
	return out
}

func encodeOperator(def operator.Definition) (operatorJSON, error) {
	defaults, err := rawJSON(def.Defaults)
	if err != nil {
		return operatorJSON{}, fmt.Errorf("operator %s defaults: %w", def.Kind, err)
	}
	inputs, outputs := def.Inputs, def.Outputs
	if inputs == nil {
		inputs = []operator.Port{}
	}
	if outputs == nil {
		outputs = []operator.Port{}
	}
	return operatorJSON{
		Kind:     def.Kind,
		Name:     def.Name,
		Inputs:   inputs,
		Outputs:  outputs,
		Defaults: defaults,
		Display:  def.Display,
	}, nil
}

// ids keeps empty lists as [] rather than null.
func ids(in []graph.NodeID) []graph.NodeID {
	if in == nil {
		return []graph.NodeID{}
	}
	return in
}
