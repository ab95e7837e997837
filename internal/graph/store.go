package graph

import (
	"fmt"
	"slices"

	"github.com/roach88/textflow/internal/operator"
	"github.com/roach88/textflow/internal/value"
)

// Store is the arena of nodes and edges.
type Store struct {
	registry *operator.Registry
	ids      IDGenerator

	nodes map[NodeID]*NodeState
	order []NodeID // Insertion order, the scheduler's tie-break
	edges []Edge   // Insertion order
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets the node id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// NewStore creates an empty graph whose node kinds resolve against reg.
// A nil registry means operator.Builtins().
func NewStore(reg *operator.Registry, opts ...Option) *Store {
	if reg == nil {
		reg = operator.Builtins()
	}
	s := &Store{
		registry: reg,
		ids:      UUIDv7Generator{},
		nodes:    make(map[NodeID]*NodeState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the registry node kinds resolve against.
func (s *Store) Registry() *operator.Registry {
	return s.registry
}

// Len returns the number of nodes.
func (s *Store) Len() int {
	return len(s.order)
}

// AddNode inserts a node of the given kind. Its configuration is the
// operator's defaults overlaid with initial (which may be nil).
func (s *Store) AddNode(kind operator.Kind, initial value.Object) (NodeID, error) {
	def, err := s.registry.Lookup(kind)
	if err != nil {
		return "", &Error{Code: ErrCodeUnknownOperator, Message: err.Error(), Err: err}
	}

	id := s.ids.NewID()
	if _, exists := s.nodes[id]; exists {
		return "", fmt.Errorf("add node: id generator returned duplicate id %q", id)
	}

	s.nodes[id] = &NodeState{
		ID:      id,
		Kind:    kind,
		Config:  def.Defaults.Merge(initial).Clone(),
		Outputs: value.Object{},
	}
	s.order = append(s.order, id)
	return id, nil
}

// RemoveNode deletes a node and every edge incident to it.
func (s *Store) RemoveNode(id NodeID) error {
	return s.RemoveNodes([]NodeID{id})
}

// RemoveNodes deletes a set of nodes and their incident edges as one
// mutation. If any id is missing nothing is removed.
func (s *Store) RemoveNodes(ids []NodeID) error {
	doomed := make(map[NodeID]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.nodes[id]; !ok {
			return nodeNotFound(id)
		}
		doomed[id] = true
	}

	for id := range doomed {
		delete(s.nodes, id)
	}
	s.order = slices.DeleteFunc(s.order, func(id NodeID) bool { return doomed[id] })
	s.edges = slices.DeleteFunc(s.edges, func(e Edge) bool { return doomed[e.Source] || doomed[e.Target] })
	return nil
}

// AddEdge connects two slots.
//
// Fails with INVALID_EDGE if an endpoint node or port does not exist on that
// node's operator, and with PORT_OCCUPIED if the target slot already has a
// producer. Self-loops are accepted; the scheduler reports them as cycles.
func (s *Store) AddEdge(e Edge) error {
	src, ok := s.nodes[e.Source]
	if !ok {
		return invalidEdge(e.Source, e.SourcePort, "source node does not exist")
	}
	srcDef, err := s.registry.Lookup(src.Kind)
	if err != nil {
		return invalidEdge(e.Source, e.SourcePort, err.Error())
	}
	if srcDef.OutputIndex(e.SourcePort) < 0 {
		return invalidEdge(e.Source, e.SourcePort, fmt.Sprintf("%s has no output %q", src.Kind, e.SourcePort))
	}

	tgt, ok := s.nodes[e.Target]
	if !ok {
		return invalidEdge(e.Target, e.TargetPort, "target node does not exist")
	}
	tgtDef, err := s.registry.Lookup(tgt.Kind)
	if err != nil {
		return invalidEdge(e.Target, e.TargetPort, err.Error())
	}
	if tgtDef.InputIndex(e.TargetPort) < 0 {
		return invalidEdge(e.Target, e.TargetPort, fmt.Sprintf("%s has no input %q", tgt.Kind, e.TargetPort))
	}

	if producer, ok := s.Producer(e.Target, e.TargetPort); ok {
		return &Error{
			Code:    ErrCodePortOccupied,
			Message: fmt.Sprintf("input already fed by %s.%s", producer.Source, producer.SourcePort),
			NodeID:  e.Target,
			Port:    e.TargetPort,
		}
	}

	s.edges = append(s.edges, e)
	return nil
}

// RemoveEdge deletes an edge matched on all four endpoint fields.
func (s *Store) RemoveEdge(e Edge) error {
	i := slices.Index(s.edges, e)
	if i < 0 {
		return &Error{Code: ErrCodeEdgeNotFound, Message: fmt.Sprintf("no edge %s", e), NodeID: e.Target, Port: e.TargetPort}
	}
	s.edges = slices.Delete(s.edges, i, i+1)
	return nil
}

// Producer returns the edge feeding the given input slot.
func (s *Store) Producer(target NodeID, port string) (Edge, bool) {
	for _, e := range s.edges {
		if e.Target == target && e.TargetPort == port {
			return e, true
		}
	}
	return Edge{}, false
}

// PatchConfig shallow-merges partial into the node's configuration and
// reports whether the result differs structurally from before.
func (s *Store) PatchConfig(id NodeID, partial value.Object) (bool, error) {
	n, ok := s.nodes[id]
	if !ok {
		return false, nodeNotFound(id)
	}
	merged := n.Config.Merge(partial.Clone())
	changed := !value.Equal(n.Config, merged)
	n.Config = merged
	return changed, nil
}

// Node returns a copy of the node record.
func (s *Store) Node(id NodeID) (NodeState, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return NodeState{}, false
	}
	return n.Clone(), true
}

// Edges returns the edges in insertion order.
func (s *Store) Edges() []Edge {
	return slices.Clone(s.edges)
}

// Snapshot returns a deep copy of the graph. Later mutations of the Store
// are not visible through it, and changes to it do not reach the Store.
func (s *Store) Snapshot() Snapshot {
	nodes := make([]NodeState, len(s.order))
	for i, id := range s.order {
		nodes[i] = s.nodes[id].Clone()
	}
	return NewSnapshot(nodes, slices.Clone(s.edges))
}

// Commit writes evaluation results back: outputs, failure state, incoming
// value and memo. Configuration is never taken from states. Records for
// nodes that no longer exist, or whose kind differs, are ignored. Returns
// the number of records applied.
func (s *Store) Commit(states []NodeState) int {
	applied := 0
	for _, st := range states {
		n, ok := s.nodes[st.ID]
		if !ok || n.Kind != st.Kind {
			continue
		}
		c := st.Clone()
		n.Outputs = c.Outputs
		n.Failed = c.Failed
		n.ErrMessage = c.ErrMessage
		n.Incoming = c.Incoming
		n.Memo = c.Memo
		applied++
	}
	return applied
}
