package testutil

import (
	"sync"

	"github.com/roach88/textflow/internal/graph"
)

// FixedIDGenerator returns predetermined node ids in order, so tests can
// name nodes and compare views against literal ids.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedIDGenerator struct {
	mu  sync.Mutex
	ids []graph.NodeID
	idx int
}

// NewFixedIDGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedIDGenerator("in", "b64", "out")
//	gen.NewID() // "in"
//	gen.NewID() // "b64"
//	gen.NewID() // "out"
//	gen.NewID() // panic: all ids exhausted
func NewFixedIDGenerator(ids ...string) *FixedIDGenerator {
	g := &FixedIDGenerator{ids: make([]graph.NodeID, len(ids))}
	for i, id := range ids {
		g.ids[i] = graph.NodeID(id)
	}
	return g
}

// NewID returns the next predetermined id.
//
// Panics if all ids have been consumed. A test that adds more nodes than it
// named is misconfigured.
func (g *FixedIDGenerator) NewID() graph.NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedIDGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
