// Package graph owns the authoritative set of nodes and edges.
//
// Nodes live in an arena keyed by opaque NodeID values. Insertion order is
// kept for both nodes and edges; the scheduler breaks ties by it, so it is
// part of the deterministic contract. Cross-references are ids only: an Edge
// names its endpoints by NodeID and port name, never by pointer.
//
// The Store is mutated by host operations (AddNode, AddEdge, PatchConfig...)
// and by Commit, which writes evaluator results back. Readers take a
// Snapshot, a deep copy that later mutations cannot reach.
//
// The Store is not safe for concurrent use. The engine serializes access.
package graph
