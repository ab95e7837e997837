package graph

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// NodeID is the opaque, stable identity of a node.
type NodeID string

// IDGenerator mints node ids. Implemented by UUIDv7Generator (default) and
// SequentialGenerator (tests, CLI runs that need reproducible ids).
type IDGenerator interface {
	NewID() NodeID
}

// UUIDv7Generator generates time-sortable UUIDv7 node ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID returns a new UUIDv7 as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) NewID() NodeID {
	return NodeID(uuid.Must(uuid.NewV7()).String())
}

// SequentialGenerator returns prefix-1, prefix-2, ... in order.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialGenerator creates a generator. An empty prefix means "node".
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "node"
	}
	return &SequentialGenerator{prefix: prefix}
}

// NewID returns the next id in the sequence.
func (g *SequentialGenerator) NewID() NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return NodeID(fmt.Sprintf("%s-%d", g.prefix, g.n))
}
