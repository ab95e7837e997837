package harness

import "github.com/roach88/textflow/internal/value"

// TraceEvent records one step and the pass it triggered.
type TraceEvent struct {
	Step   int
	Op     string
	Target string

	// Seq is the pass the step ran. 0 when the step was rejected.
	Seq int64

	// Error is the code a rejected step failed with.
	Error string

	Evaluated []string
	Failed    []string
	Skipped   []string
	Blocked   []string
	Changed   bool
}

// NodeResult is the final state of one node, by scenario name.
type NodeResult struct {
	Name     string
	Kind     string
	Outputs  value.Object
	Error    string // Failure message; empty when the node is healthy
	Incoming value.Value
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step and expectation held.
	Pass bool

	// Trace has one event per step, in order.
	Trace []TraceEvent

	// Errors lists every failed expectation or unexpected step error.
	Errors []string

	// Final is the graph after the last step, in insertion order.
	Final []NodeResult

	// Cycle names the blocked nodes after the last step.
	Cycle []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Cycle:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
