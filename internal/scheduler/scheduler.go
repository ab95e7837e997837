// Package scheduler computes the evaluation order of a graph snapshot.
//
// Order is Kahn's algorithm with a FIFO ready queue. The queue is seeded
// with zero in-degree nodes in insertion order and out-edges are visited in
// edge insertion order, so an unchanged graph always yields the same order.
//
// When nodes remain unresolved the graph has a cycle. The baseline policy,
// AllOrNothing, schedules nothing. Partial schedules the acyclic part and
// reports the rest as blocked.
package scheduler

import (
	"fmt"
	"slices"

	"github.com/roach88/textflow/internal/graph"
)

// CyclePolicy decides what a cyclic graph schedules.
type CyclePolicy int

const (
	// AllOrNothing reports the cycle and schedules no node at all.
	AllOrNothing CyclePolicy = iota

	// Partial schedules every node that neither sits on a cycle nor depends
	// on one.
	Partial
)

func (p CyclePolicy) String() string {
	switch p {
	case AllOrNothing:
		return "all-or-nothing"
	case Partial:
		return "partial"
	default:
		return fmt.Sprintf("CyclePolicy(%d)", int(p))
	}
}

// ParsePolicy maps a policy name back to a CyclePolicy.
func ParsePolicy(name string) (CyclePolicy, error) {
	switch name {
	case "", "all-or-nothing":
		return AllOrNothing, nil
	case "partial":
		return Partial, nil
	default:
		return 0, fmt.Errorf("unknown cycle policy %q (want all-or-nothing or partial)", name)
	}
}

// Plan is the outcome of scheduling.
type Plan struct {
	// Order lists nodes to evaluate; every node follows its producers.
	Order []graph.NodeID

	// Blocked lists nodes on or downstream of a cycle, in insertion order.
	Blocked []graph.NodeID
}

// Order schedules snap. With a cycle present it returns a *CycleError along
// with a plan shaped by policy.
func Order(snap graph.Snapshot, policy CyclePolicy) (Plan, error) {
	n := len(snap.Nodes)
	indegree := make([]int, n)
	adj := make([][]int, n)

	for _, e := range snap.Edges {
		src, ok := snap.Index(e.Source)
		if !ok {
			continue
		}
		tgt, ok := snap.Index(e.Target)
		if !ok {
			continue
		}
		adj[src] = append(adj[src], tgt)
		indegree[tgt]++
	}

	queue := make([]int, 0, n)
	for i := range n {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]graph.NodeID, 0, n)
	for head := 0; head < len(queue); head++ {
		i := queue[head]
		order = append(order, snap.Nodes[i].ID)
		for _, j := range adj[i] {
			indegree[j]--
			if indegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}

	if len(order) == n {
		return Plan{Order: order}, nil
	}

	var unresolved []int
	for i := range n {
		if indegree[i] > 0 {
			unresolved = append(unresolved, i)
		}
	}

	cerr := &CycleError{
		Nodes:  make([]graph.NodeID, len(unresolved)),
		Cycles: findCycles(snap, adj, unresolved),
	}
	for k, i := range unresolved {
		cerr.Nodes[k] = snap.Nodes[i].ID
	}

	plan := Plan{Blocked: slices.Clone(cerr.Nodes)}
	if policy == Partial {
		plan.Order = order
	}
	return plan, cerr
}
