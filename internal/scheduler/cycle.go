package scheduler

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/textflow/internal/graph"
)

// ErrCodeCyclicGraph is the error code carried by CycleError.
const ErrCodeCyclicGraph = "CYCLIC_GRAPH"

// CycleError reports a graph that cannot be fully ordered. It is a
// structural condition of the graph, distinct from a node failing.
type CycleError struct {
	// Nodes are all unresolved nodes, in insertion order: every node on a
	// cycle plus everything downstream of one.
	Nodes []graph.NodeID

	// Cycles lists one closed path per strongly connected component, each
	// starting and ending at the component's earliest inserted node.
	// A self-loop appears as [a, a].
	Cycles [][]graph.NodeID
}

func (e *CycleError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d node(s) cannot be ordered", ErrCodeCyclicGraph, len(e.Nodes))
	for _, c := range e.Cycles {
		parts := make([]string, len(c))
		for i, id := range c {
			parts[i] = string(id)
		}
		fmt.Fprintf(&b, "; cycle %s", strings.Join(parts, " -> "))
	}
	return b.String()
}

// IsCycleError reports whether err is or wraps a *CycleError.
func IsCycleError(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}

// findCycles runs Tarjan's algorithm over the unresolved subgraph and
// returns one cycle path per non-trivial component, ordered by the
// component's earliest node.
func findCycles(snap graph.Snapshot, adj [][]int, unresolved []int) [][]graph.NodeID {
	member := make(map[int]bool, len(unresolved))
	for _, i := range unresolved {
		member[i] = true
	}

	var (
		next    = 0
		stack   []int
		indices = make(map[int]int)
		lowlink = make(map[int]int)
		onStack = make(map[int]bool)
		sccs    [][]int
	)

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = next
		lowlink[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if !member[w] {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, i := range unresolved {
		if _, visited := indices[i]; !visited {
			strongConnect(i)
		}
	}

	var cycles [][]int
	for _, scc := range sccs {
		if len(scc) == 1 && !slices.Contains(adj[scc[0]], scc[0]) {
			continue
		}
		slices.Sort(scc)
		cycles = append(cycles, cyclePath(scc, adj))
	}
	slices.SortFunc(cycles, func(a, b []int) int { return a[0] - b[0] })

	out := make([][]graph.NodeID, len(cycles))
	for k, c := range cycles {
		out[k] = make([]graph.NodeID, len(c))
		for j, i := range c {
			out[k][j] = snap.Nodes[i].ID
		}
	}
	return out
}

// cyclePath returns the shortest closed walk from the component's first
// (sorted) node back to itself, staying inside the component. Breadth-first
// search in edge order keeps the result deterministic.
func cyclePath(scc []int, adj [][]int) []int {
	start := scc[0]
	inSCC := make(map[int]bool, len(scc))
	for _, i := range scc {
		inSCC[i] = true
	}

	parent := make(map[int]int, len(scc))
	queue := []int{start}
	for head := 0; head < len(queue); head++ {
		v := queue[head]
		for _, w := range adj[v] {
			if !inSCC[w] {
				continue
			}
			if w == start {
				path := []int{start}
				for u := v; u != start; u = parent[u] {
					path = append(path, u)
				}
				path = append(path, start)
				slices.Reverse(path)
				return path
			}
			if _, seen := parent[w]; !seen {
				parent[w] = v
				queue = append(queue, w)
			}
		}
	}
	return []int{start, start}
}
