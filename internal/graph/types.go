package graph

import (
	"fmt"

	"github.com/roach88/textflow/internal/operator"
	"github.com/roach88/textflow/internal/value"
)

// Edge connects a source node's output slot to a target node's input slot.
// Its identity is the four-tuple; it carries no other state.
type Edge struct {
	Source     NodeID `json:"source"`
	SourcePort string `json:"sourcePort"`
	Target     NodeID `json:"target"`
	TargetPort string `json:"targetPort"`
}

func (e Edge) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", e.Source, e.SourcePort, e.Target, e.TargetPort)
}

// Memo is the memoization state of a node: the input tuple and configuration
// its transform last ran with.
type Memo struct {
	Evaluated bool
	Inputs    []value.Value
	Config    value.Object
}

// NodeState is one node record.
//
// Config is written by host mutations. Outputs, Failed, ErrMessage, Incoming
// and Memo are written only through Commit.
type NodeState struct {
	ID     NodeID
	Kind   operator.Kind
	Config value.Object

	// Outputs holds the last computed value per output slot. A missing slot
	// has no value yet.
	Outputs value.Object

	// Failed is set when the last evaluation failed. Outputs then still hold
	// the last good values.
	Failed     bool
	ErrMessage string

	// Incoming is the value arriving at a display operator's input.
	Incoming value.Value

	Memo Memo
}

// Output returns the value of an output slot, or value.Undefined.
func (n NodeState) Output(port string) value.Value {
	v, ok := n.Outputs[port]
	if !ok || v == nil {
		return value.Undefined{}
	}
	return v
}

// Clone returns a deep copy of n.
func (n NodeState) Clone() NodeState {
	out := n
	out.Config = n.Config.Clone()
	out.Outputs = n.Outputs.Clone()
	if n.Incoming != nil {
		out.Incoming = value.Clone(n.Incoming)
	}
	out.Memo = Memo{
		Evaluated: n.Memo.Evaluated,
		Inputs:    value.CloneTuple(n.Memo.Inputs),
	}
	if n.Memo.Config != nil {
		out.Memo.Config = n.Memo.Config.Clone()
	}
	return out
}

// Snapshot is an immutable view of the graph taken at one instant.
// Nodes and Edges are in insertion order.
type Snapshot struct {
	Nodes []NodeState
	Edges []Edge

	index map[NodeID]int
}

// NewSnapshot builds a snapshot over the given records without copying them.
func NewSnapshot(nodes []NodeState, edges []Edge) Snapshot {
	index := make(map[NodeID]int, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
	}
	return Snapshot{Nodes: nodes, Edges: edges, index: index}
}

// Index returns the insertion position of id.
func (s Snapshot) Index(id NodeID) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Node returns the record for id.
func (s Snapshot) Node(id NodeID) (NodeState, bool) {
	i, ok := s.index[id]
	if !ok {
		return NodeState{}, false
	}
	return s.Nodes[i], true
}

// IDs returns node ids in insertion order.
func (s Snapshot) IDs() []NodeID {
	ids := make([]NodeID, len(s.Nodes))
	for i, n := range s.Nodes {
		ids[i] = n.ID
	}
	return ids
}
