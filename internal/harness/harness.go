package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/textflow/internal/engine"
	"github.com/roach88/textflow/internal/graph"
	"github.com/roach88/textflow/internal/graphfile"
	"github.com/roach88/textflow/internal/operator"
	"github.com/roach88/textflow/internal/scheduler"
	"github.com/roach88/textflow/internal/testutil"
	"github.com/roach88/textflow/internal/value"
)

// Harness runs one scenario against a fresh engine.
type Harness struct {
	engine  *engine.Engine
	counter *testutil.Counter
	ids     map[string]graph.NodeID
	names   map[graph.NodeID]string
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Create an engine over the counting test registry
//  2. Run each step, recording the pass it triggered
//  3. Check the step's expectations against the engine
//  4. Record the final graph
//
// The returned error is reserved for scenarios that cannot run at all;
// failed expectations are reported on the Result.
func Run(scenario *Scenario) (*Result, error) {
	policy := scheduler.AllOrNothing
	if scenario.Policy != "" {
		p, err := scheduler.ParsePolicy(scenario.Policy)
		if err != nil {
			return nil, err
		}
		policy = p
	}

	reg, counter := testutil.NewTestRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &Harness{
		engine: engine.New(
			engine.WithRegistry(reg),
			engine.WithLogger(logger),
			engine.WithCyclePolicy(policy),
			engine.WithIDGenerator(graph.NewSequentialGenerator("node")),
		),
		counter: counter,
		ids:     make(map[string]graph.NodeID),
		names:   make(map[graph.NodeID]string),
		logger:  logger,
	}

	ctx := context.Background()
	result := NewResult()

	for i := range scenario.Steps {
		if err := h.runStep(ctx, i, &scenario.Steps[i], result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	h.recordFinal(result)
	return result, nil
}

// runStep applies one step and checks its expectations.
func (h *Harness) runStep(ctx context.Context, i int, step *Step, result *Result) error {
	h.counter.Reset()
	before := h.engine.LastPass().Seq

	opErr, err := h.apply(ctx, step)
	if err != nil {
		return err
	}

	event := TraceEvent{
		Step:   i,
		Op:     step.Op(),
		Target: step.Target(),
	}
	pass := h.engine.LastPass()
	ran := pass.Seq != before
	if ran {
		event.Seq = pass.Seq
		event.Evaluated = h.nameAll(pass.Evaluated)
		event.Failed = h.nameAll(pass.Failed)
		event.Skipped = h.nameAll(pass.Skipped)
		event.Blocked = h.nameAll(pass.Blocked)
		event.Changed = pass.Changed
	}
	if opErr != nil {
		event.Error = errorCode(opErr)
	}
	result.Trace = append(result.Trace, event)

	switch {
	case step.ExpectError != "" && opErr == nil:
		result.AddError(fmt.Sprintf("step %d (%s): expected error %s, operation succeeded", i, event.Op, step.ExpectError))
	case step.ExpectError != "" && event.Error != step.ExpectError:
		result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %s: %v", i, event.Op, step.ExpectError, event.Error, opErr))
	case step.ExpectError == "" && opErr != nil:
		result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", i, event.Op, opErr))
	}

	if step.Expect != nil {
		actx := &AssertionContext{
			Step:    i,
			View:    h.engine.View(),
			Changed: ran && pass.Changed,
			Counter: h.counter,
			IDs:     h.id,
			Names:   h.nameAll,
		}
		for _, aerr := range EvaluateExpect(step.Expect, actx) {
			result.AddError(aerr.Error())
		}
	}

	h.logger.Info("scenario step completed",
		"step", i,
		"op", event.Op,
		"target", event.Target,
		"seq", event.Seq,
		"error", event.Error,
	)
	return nil
}

// apply runs the step's operation. opErr is the engine's answer to the
// operation; err means the step itself could not be prepared.
func (h *Harness) apply(ctx context.Context, step *Step) (opErr, err error) {
	switch step.Op() {
	case OpAddNode:
		cfg, err := value.ObjectFromAny(step.AddNode.Config)
		if err != nil {
			return nil, fmt.Errorf("add_node %s config: %w", step.AddNode.Name, err)
		}
		id, opErr := h.engine.AddNode(ctx, operator.Kind(step.AddNode.Kind), cfg)
		if opErr == nil {
			h.ids[step.AddNode.Name] = id
			h.names[id] = step.AddNode.Name
		}
		return opErr, nil

	case OpAddEdge:
		edge, err := h.edge(step.AddEdge)
		if err != nil {
			return nil, err
		}
		return h.engine.AddEdge(ctx, edge), nil

	case OpRemoveEdge:
		edge, err := h.edge(step.RemoveEdge)
		if err != nil {
			return nil, err
		}
		return h.engine.RemoveEdge(ctx, edge), nil

	case OpRemoveNode:
		ids := make([]graph.NodeID, len(step.RemoveNode))
		for k, name := range step.RemoveNode {
			ids[k] = h.id(name)
		}
		return h.engine.RemoveNodes(ctx, ids), nil

	case OpPatch:
		cfg, err := value.ObjectFromAny(step.Patch.Config)
		if err != nil {
			return nil, fmt.Errorf("patch %s config: %w", step.Patch.Node, err)
		}
		return h.engine.PatchConfig(ctx, h.id(step.Patch.Node), cfg), nil

	case OpRecompute:
		_, opErr := h.engine.Recompute(ctx)
		return opErr, nil

	default:
		return nil, fmt.Errorf("exactly one operation is required")
	}
}

func (h *Harness) edge(e *EdgeStep) (graph.Edge, error) {
	from, err := graphfile.ParseEndpoint(e.From)
	if err != nil {
		return graph.Edge{}, err
	}
	to, err := graphfile.ParseEndpoint(e.To)
	if err != nil {
		return graph.Edge{}, err
	}
	return graph.Edge{
		Source:     h.id(from.Node),
		SourcePort: from.Port,
		Target:     h.id(to.Node),
		TargetPort: to.Port,
	}, nil
}

// id resolves a scenario name. Names never added resolve to themselves so
// the engine reports them as missing.
func (h *Harness) id(name string) graph.NodeID {
	if id, ok := h.ids[name]; ok {
		return id
	}
	return graph.NodeID(name)
}

func (h *Harness) name(id graph.NodeID) string {
	if name, ok := h.names[id]; ok {
		return name
	}
	return string(id)
}

func (h *Harness) nameAll(ids []graph.NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = h.name(id)
	}
	return out
}

func (h *Harness) recordFinal(result *Result) {
	view := h.engine.View()
	for _, nv := range view.Nodes {
		nr := NodeResult{
			Name:     h.name(nv.ID),
			Kind:     string(nv.Kind),
			Outputs:  nv.Outputs,
			Incoming: nv.Incoming,
		}
		if nv.Error {
			nr.Error = nv.ErrorMessage
		}
		result.Final = append(result.Final, nr)
	}
	if view.Cycle != nil {
		result.Cycle = h.nameAll(view.Cycle.Nodes)
	}
}

// errorCode maps an engine error to its code.
func errorCode(err error) string {
	if errors.Is(err, engine.ErrReentrantPass) {
		return "REENTRANT_PASS"
	}
	if code := graph.Code(err); code != "" {
		return string(code)
	}
	if operator.IsUnknownOperator(err) {
		return "UNKNOWN_OPERATOR"
	}
	return "ERROR"
}
