// Package evaluator runs one pass over a scheduled snapshot.
//
// For each node in plan order the evaluator gathers inputs from upstream
// output slots, compares the input tuple and configuration with the node's
// memo, and invokes the transform only when either differs or the node has
// never run. Failures stay local to the node: its error flag is set, its
// previous outputs are kept, and the pass continues.
//
// The evaluator never touches the graph store. It works on copies of the
// snapshot records and returns the new records for the caller to commit.
package evaluator

import (
	"log/slog"

	"github.com/roach88/textflow/internal/graph"
	"github.com/roach88/textflow/internal/operator"
	"github.com/roach88/textflow/internal/scheduler"
	"github.com/roach88/textflow/internal/value"
)

// Result is the outcome of one pass.
type Result struct {
	// States holds every node record of the snapshot, in insertion order,
	// with this pass's outputs, error flags, incoming values and memos.
	States []graph.NodeState

	Evaluated []graph.NodeID // Transform invoked
	Failed    []graph.NodeID // Transform invoked and failed
	Skipped   []graph.NodeID // Memo matched, transform not invoked

	Errors []*NodeTransformError

	// Changed is set when any output, error flag, incoming value or memo
	// differs from the snapshot.
	Changed bool
}

// Evaluator invokes operator transforms.
type Evaluator struct {
	registry *operator.Registry
	logger   *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(ev *Evaluator) {
		ev.logger = l
	}
}

// New creates an Evaluator resolving kinds against reg.
// A nil registry means operator.Builtins().
func New(reg *operator.Registry, opts ...Option) *Evaluator {
	if reg == nil {
		reg = operator.Builtins()
	}
	ev := &Evaluator{registry: reg, logger: slog.Default()}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

// Evaluate runs one pass with a default Evaluator.
func Evaluate(snap graph.Snapshot, plan scheduler.Plan, reg *operator.Registry) Result {
	return New(reg).Evaluate(snap, plan)
}

type slot struct {
	node graph.NodeID
	port string
}

// Evaluate runs the nodes of plan.Order against snap. Nodes not in the plan
// keep their records unchanged.
func (ev *Evaluator) Evaluate(snap graph.Snapshot, plan scheduler.Plan) Result {
	states := make([]graph.NodeState, len(snap.Nodes))
	for i, n := range snap.Nodes {
		states[i] = n.Clone()
	}

	producers := make(map[slot]graph.Edge, len(snap.Edges))
	for _, e := range snap.Edges {
		producers[slot{e.Target, e.TargetPort}] = e
	}

	var res Result
	for _, id := range plan.Order {
		i, ok := snap.Index(id)
		if !ok {
			continue
		}
		st := &states[i]

		def, err := ev.registry.Lookup(st.Kind)
		if err != nil {
			ev.fail(&res, st, err)
			continue
		}

		inputs := make([]value.Value, len(def.Inputs))
		for k, port := range def.Inputs {
			inputs[k] = value.Undefined{}
			e, ok := producers[slot{st.ID, port.ID}]
			if !ok {
				continue
			}
			if j, ok := snap.Index(e.Source); ok {
				inputs[k] = value.Clone(states[j].Output(e.SourcePort))
			}
		}

		if def.Display && len(inputs) > 0 {
			st.Incoming = value.Clone(inputs[0])
		}

		if st.Memo.Evaluated && value.TupleEqual(st.Memo.Inputs, inputs) && value.Equal(st.Memo.Config, st.Config) {
			res.Skipped = append(res.Skipped, st.ID)
			continue
		}

		res.Evaluated = append(res.Evaluated, st.ID)
		out, err := invoke(def.Transform, value.CloneTuple(inputs), st.Config.Clone())
		st.Memo = graph.Memo{Evaluated: true, Inputs: inputs, Config: st.Config.Clone()}
		if err != nil {
			ev.fail(&res, st, err)
			continue
		}

		outputs := make(value.Object, len(def.Outputs))
		for k, port := range def.Outputs {
			if k < len(out) && !value.IsUndefined(out[k]) {
				outputs[port.ID] = out[k]
			}
		}
		st.Outputs = outputs
		st.Failed = false
		st.ErrMessage = ""
		ev.logger.Debug("node evaluated", "node", st.ID, "kind", st.Kind)
	}

	res.States = states
	for i := range states {
		if stateChanged(snap.Nodes[i], states[i]) {
			res.Changed = true
			break
		}
	}
	return res
}

// fail records a failed evaluation. Outputs are left as they were.
func (ev *Evaluator) fail(res *Result, st *graph.NodeState, cause error) {
	terr := &NodeTransformError{NodeID: st.ID, Kind: st.Kind, Cause: cause}
	st.Failed = true
	st.ErrMessage = cause.Error()
	res.Failed = append(res.Failed, st.ID)
	res.Errors = append(res.Errors, terr)
	ev.logger.Warn("node transform failed", "node", st.ID, "kind", st.Kind, "error", cause)
}

// invoke calls fn, converting a panic into an error.
func invoke(fn operator.TransformFunc, inputs []value.Value, cfg value.Object) (out []value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &PanicError{Value: r}
		}
	}()
	return fn(inputs, cfg)
}

func stateChanged(before, after graph.NodeState) bool {
	return before.Failed != after.Failed ||
		before.ErrMessage != after.ErrMessage ||
		!value.Equal(before.Outputs, after.Outputs) ||
		!value.Equal(before.Incoming, after.Incoming) ||
		before.Memo.Evaluated != after.Memo.Evaluated ||
		!value.TupleEqual(before.Memo.Inputs, after.Memo.Inputs) ||
		!value.Equal(before.Memo.Config, after.Memo.Config)
}
