package engine

import (
	"github.com/roach88/textflow/internal/graph"
	"github.com/roach88/textflow/internal/operator"
	"github.com/roach88/textflow/internal/scheduler"
	"github.com/roach88/textflow/internal/value"
)

// NodeView is the host-facing, read-only state of one node.
type NodeView struct {
	ID     graph.NodeID
	Kind   operator.Kind
	Name   string // Operator display name
	Config value.Object

	// Outputs holds the current value per output slot; a missing slot has
	// no value.
	Outputs value.Object

	Error        bool
	ErrorMessage string

	// Incoming is the value arriving at a display operator. It is nil for
	// every other operator.
	Incoming value.Value
}

// Output returns the value of an output slot, or value.Undefined.
func (v NodeView) Output(port string) value.Value {
	out, ok := v.Outputs[port]
	if !ok || out == nil {
		return value.Undefined{}
	}
	return out
}

// View is the host-facing snapshot of the whole graph after a pass.
type View struct {
	// Seq is the pass the view reflects. 0 before the first pass.
	Seq   int64
	Nodes []NodeView
	Edges []graph.Edge

	// Cycle is set while the graph cannot be fully ordered. It is a
	// structural condition, reported apart from node errors.
	Cycle *scheduler.CycleError
}

// Node returns the view of id.
func (v View) Node(id graph.NodeID) (NodeView, bool) {
	for _, n := range v.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeView{}, false
}

// View returns the current state of every node in insertion order.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view()
}

// NodeView returns the current state of one node.
func (e *Engine) NodeView(id graph.NodeID) (NodeView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.store.Node(id)
	if !ok {
		return NodeView{}, false
	}
	return e.nodeView(st), true
}

// view builds a View. Caller must hold e.mu.
func (e *Engine) view() View {
	snap := e.store.Snapshot()
	v := View{
		Seq:   e.last.Seq,
		Nodes: make([]NodeView, len(snap.Nodes)),
		Edges: snap.Edges,
		Cycle: cloneCycle(e.cycle),
	}
	for i, st := range snap.Nodes {
		v.Nodes[i] = e.nodeView(st)
	}
	return v
}

// nodeView projects a record that the caller already owns.
func (e *Engine) nodeView(st graph.NodeState) NodeView {
	nv := NodeView{
		ID:           st.ID,
		Kind:         st.Kind,
		Config:       st.Config,
		Outputs:      st.Outputs,
		Error:        st.Failed,
		ErrorMessage: st.ErrMessage,
	}
	def, err := e.registry.Lookup(st.Kind)
	if err != nil {
		return nv
	}
	nv.Name = def.Name
	if def.Display {
		nv.Incoming = st.Incoming
		if nv.Incoming == nil {
			nv.Incoming = value.Undefined{}
		}
	}
	return nv
}
