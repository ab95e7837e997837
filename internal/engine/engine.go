package engine

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/textflow/internal/evaluator"
	"github.com/roach88/textflow/internal/graph"
	"github.com/roach88/textflow/internal/journal"
	"github.com/roach88/textflow/internal/operator"
	"github.com/roach88/textflow/internal/scheduler"
	"github.com/roach88/textflow/internal/value"
)

// Cause names the host operation that triggered a pass.
type Cause string

const (
	CauseAddNode     Cause = "add_node"
	CauseRemoveNodes Cause = "remove_nodes"
	CauseAddEdge     Cause = "add_edge"
	CauseRemoveEdge  Cause = "remove_edge"
	CausePatchConfig Cause = "patch_config"
	CauseRecompute   Cause = "recompute"
)

// Engine owns one graph and runs a pass after every mutation.
//
// Thread-safety model:
//   - All exported methods are safe from any goroutine; a mutex serializes
//     them, so passes never overlap
//   - Listeners run after the mutex is released, one update at a time in
//     pass order, so they may read views and mutate with their own context
//   - Engine calls made with a listener's context return ErrReentrantPass
type Engine struct {
	mu sync.Mutex

	store     *graph.Store
	registry  *operator.Registry
	evaluator *evaluator.Evaluator
	policy    scheduler.CyclePolicy
	journal   *journal.Journal
	logger    *slog.Logger
	clock     *Clock
	ids       graph.IDGenerator

	cycle *scheduler.CycleError // Cycle state after the last pass
	last  PassSummary

	queue []pending // Updates awaiting delivery, guarded by mu

	deliverMu    sync.Mutex // Held by the goroutine draining queue
	listenersMu  sync.Mutex
	listeners    map[int]Listener
	nextListener int
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry sets the operator registry. Default: operator.Builtins().
func WithRegistry(r *operator.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithJournal records every pass in j.
func WithJournal(j *journal.Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithCyclePolicy sets what a cyclic graph evaluates.
// Default: scheduler.AllOrNothing.
func WithCyclePolicy(p scheduler.CyclePolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithIDGenerator sets the node id source. Default: graph.UUIDv7Generator.
func WithIDGenerator(g graph.IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithClock sets the pass clock. Use NewClockAt to continue the seqs of an
// existing journal.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine over an empty graph.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry:  operator.Builtins(),
		policy:    scheduler.AllOrNothing,
		logger:    slog.Default(),
		clock:     NewClock(),
		ids:       graph.UUIDv7Generator{},
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.store = graph.NewStore(e.registry, graph.WithIDGenerator(e.ids))
	e.evaluator = evaluator.New(e.registry, evaluator.WithLogger(e.logger))
	return e
}

// Registry returns the operator registry the engine resolves kinds against.
func (e *Engine) Registry() *operator.Registry {
	return e.registry
}

// Policy returns the cycle policy.
func (e *Engine) Policy() scheduler.CyclePolicy {
	return e.policy
}

// AddNode inserts a node configured with the operator defaults overlaid by
// cfg, then runs a pass.
func (e *Engine) AddNode(ctx context.Context, kind operator.Kind, cfg value.Object) (graph.NodeID, error) {
	if _, ok := InPass(ctx); ok {
		return "", ErrReentrantPass
	}
	var id graph.NodeID
	var err error
	e.locked(func() {
		if id, err = e.store.AddNode(kind, cfg); err != nil {
			return
		}
		e.logger.Debug("node added", "node", id, "kind", kind)
		e.runPass(ctx, CauseAddNode, true)
	})
	return id, err
}

// RemoveNode deletes a node and its incident edges, then runs a pass.
func (e *Engine) RemoveNode(ctx context.Context, id graph.NodeID) error {
	return e.RemoveNodes(ctx, []graph.NodeID{id})
}

// RemoveNodes deletes a selection of nodes as one mutation with one pass.
// If any id is missing nothing is removed.
func (e *Engine) RemoveNodes(ctx context.Context, ids []graph.NodeID) error {
	if _, ok := InPass(ctx); ok {
		return ErrReentrantPass
	}
	var err error
	e.locked(func() {
		if err = e.store.RemoveNodes(ids); err != nil {
			return
		}
		e.logger.Debug("nodes removed", "nodes", ids)
		e.runPass(ctx, CauseRemoveNodes, true)
	})
	return err
}

// AddEdge connects two slots, then runs a pass.
func (e *Engine) AddEdge(ctx context.Context, edge graph.Edge) error {
	if _, ok := InPass(ctx); ok {
		return ErrReentrantPass
	}
	var err error
	e.locked(func() {
		if err = e.store.AddEdge(edge); err != nil {
			return
		}
		e.logger.Debug("edge added", "edge", edge.String())
		e.runPass(ctx, CauseAddEdge, true)
	})
	return err
}

// RemoveEdge disconnects two slots, then runs a pass.
func (e *Engine) RemoveEdge(ctx context.Context, edge graph.Edge) error {
	if _, ok := InPass(ctx); ok {
		return ErrReentrantPass
	}
	var err error
	e.locked(func() {
		if err = e.store.RemoveEdge(edge); err != nil {
			return
		}
		e.logger.Debug("edge removed", "edge", edge.String())
		e.runPass(ctx, CauseRemoveEdge, true)
	})
	return err
}

// PatchConfig shallow-merges partial into a node's configuration, then runs
// a pass. Patching to an identical configuration still runs the pass, and
// the memo check turns it into a no-op.
func (e *Engine) PatchConfig(ctx context.Context, id graph.NodeID, partial value.Object) error {
	if _, ok := InPass(ctx); ok {
		return ErrReentrantPass
	}
	var err error
	e.locked(func() {
		var changed bool
		if changed, err = e.store.PatchConfig(id, partial); err != nil {
			return
		}
		e.logger.Debug("config patched", "node", id, "changed", changed)
		e.runPass(ctx, CausePatchConfig, changed)
	})
	return err
}

// Recompute runs a pass without mutating the graph. The returned error is
// a journal write failure; node failures and cycles are reported on the
// summary and the view.
func (e *Engine) Recompute(ctx context.Context) (PassSummary, error) {
	if _, ok := InPass(ctx); ok {
		return PassSummary{}, ErrReentrantPass
	}
	var summary PassSummary
	var err error
	e.locked(func() {
		summary, err = e.runPass(ctx, CauseRecompute, false)
	})
	return summary, err
}

// LastPass returns the summary of the most recent pass.
func (e *Engine) LastPass() PassSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	last := e.last
	last.Cycle = cloneCycle(last.Cycle)
	return last
}

// locked runs fn under e.mu, then delivers any updates fn's pass queued.
func (e *Engine) locked(fn func()) {
	func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		fn()
	}()
	e.deliver()
}

// runPass runs one scheduling and evaluation pass. structural reports that
// the triggering mutation changed the graph itself, so listeners hear about
// it even when no node output moved. Caller must hold e.mu.
func (e *Engine) runPass(ctx context.Context, cause Cause, structural bool) (PassSummary, error) {
	seq := e.clock.Next()
	e.logger.Debug("pass starting", "seq", seq, "cause", cause)

	snap := e.store.Snapshot()
	plan, err := scheduler.Order(snap, e.policy)
	var cerr *scheduler.CycleError
	if err != nil && !errors.As(err, &cerr) {
		// Order only fails with a cycle.
		e.logger.Error("scheduling failed", "seq", seq, "error", err)
	}
	if cerr != nil {
		e.logger.Warn("graph has a cycle", "seq", seq, "nodes", cerr.Nodes, "policy", e.policy.String())
	}

	res := e.evaluator.Evaluate(snap, plan)
	e.store.Commit(res.States)

	cycleChanged := !sameCycle(e.cycle, cerr)
	e.cycle = cerr

	summary := PassSummary{
		Seq:       seq,
		Cause:     cause,
		Order:     plan.Order,
		Evaluated: res.Evaluated,
		Failed:    res.Failed,
		Skipped:   res.Skipped,
		Blocked:   plan.Blocked,
		Errors:    res.Errors,
		Cycle:     cloneCycle(cerr),
		Changed:   res.Changed,
	}
	e.last = summary
	e.last.Cycle = cloneCycle(cerr)

	e.logger.Info("pass complete",
		"seq", seq,
		"cause", cause,
		"evaluated", len(res.Evaluated),
		"failed", len(res.Failed),
		"skipped", len(res.Skipped),
		"blocked", len(plan.Blocked),
		"changed", res.Changed,
	)

	var jerr error
	if e.journal != nil {
		pass, evals := journalRecords(summary, res.States, len(snap.Edges), e.policy)
		if jerr = e.journal.WritePass(ctx, pass, evals); jerr != nil {
			e.logger.Error("journal write failed", "seq", seq, "error", jerr)
		}
	}

	if structural || res.Changed || cycleChanged {
		e.enqueue(ctx, summary)
	}
	return summary, jerr
}

func sameCycle(a, b *scheduler.CycleError) bool {
	if a == nil || b == nil {
		return a == b
	}
	return slices.Equal(a.Nodes, b.Nodes)
}

func cloneCycle(c *scheduler.CycleError) *scheduler.CycleError {
	if c == nil {
		return nil
	}
	out := &scheduler.CycleError{Nodes: slices.Clone(c.Nodes)}
	if c.Cycles != nil {
		out.Cycles = make([][]graph.NodeID, len(c.Cycles))
		for i, path := range c.Cycles {
			out.Cycles[i] = slices.Clone(path)
		}
	}
	return out
}
