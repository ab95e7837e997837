// Package journal records evaluation passes in SQLite.
//
// Each pass writes one row to passes and one row per node to evaluations,
// in a single transaction. Rows carry fingerprints of a node's inputs,
// configuration and outputs rather than the values themselves: the journal
// is a trace of what ran and why, not a copy of the graph.
//
// Reads are ordered deterministically: passes by seq, evaluations by
// (seq, ordinal), where ordinal is the node's position in the pass.
package journal
