// Package engine is the seam between a host (UI, HTTP adapter, CLI) and the
// dataflow core.
//
// The host mutates the graph through the inbound operations: AddNode,
// RemoveNode, RemoveNodes, AddEdge, RemoveEdge, PatchConfig. Every
// successful mutation runs exactly one pass:
//
//  1. Snapshot the graph store
//  2. Order the snapshot (scheduler), honoring the cycle policy
//  3. Evaluate the plan (evaluator) against the memoized node state
//  4. Commit results back to the store
//  5. Journal the pass, if a journal is configured
//  6. Queue an update for listeners, if the pass changed anything; it is
//     delivered once the engine lock is released
//
// The host reads results through View and NodeView: outputs per slot, the
// error flag and, for display operators, the incoming value. A cycle is
// reported on the view, apart from per-node failures.
//
// CRITICAL: passes never overlap. A mutex serializes host calls, and a call
// made from inside a pass (a listener using the context it was handed)
// fails with ErrReentrantPass instead of starting a nested pass.
package engine
