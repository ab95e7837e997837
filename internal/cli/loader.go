package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/textflow/internal/engine"
	"github.com/roach88/textflow/internal/graph"
	"github.com/roach88/textflow/internal/graphfile"
	"github.com/roach88/textflow/internal/journal"
	"github.com/roach88/textflow/internal/scheduler"
)

// GraphOptions are the flags shared by commands that build an engine.
type GraphOptions struct {
	Database string // Journal path; empty disables journaling
	Partial  bool   // Evaluate the acyclic part of a cyclic graph

	// IDGenerator overrides node ids (for testing). Defaults to UUIDv7.
	IDGenerator graph.IDGenerator
}

func (o *GraphOptions) policy() scheduler.CyclePolicy {
	if o.Partial {
		return scheduler.Partial
	}
	return scheduler.AllOrNothing
}

// Workspace is an engine, its optional journal, and the graph file
// applied to it.
type Workspace struct {
	Engine  *engine.Engine
	Journal *journal.Journal
	Def     *graphfile.Definition // nil when started empty
	IDs     map[string]graph.NodeID
	Names   map[graph.NodeID]string
}

// Close closes the journal, if any.
func (w *Workspace) Close() error {
	if w.Journal == nil {
		return nil
	}
	return w.Journal.Close()
}

// Name returns the file name of id, or the id itself.
func (w *Workspace) Name(id graph.NodeID) string {
	if name, ok := w.Names[id]; ok {
		return name
	}
	return string(id)
}

// OpenWorkspace creates an engine and applies the graph file at path to
// it. An empty path gives an empty graph. A journal that already holds
// passes is resumed so seqs stay unique.
func OpenWorkspace(ctx context.Context, path string, opts *GraphOptions, logger *slog.Logger) (*Workspace, error) {
	var def *graphfile.Definition
	if path != "" {
		d, err := graphfile.Load(path)
		if err != nil {
			return nil, graphLoadError(err)
		}
		def = d
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithCyclePolicy(opts.policy()),
	}
	if opts.IDGenerator != nil {
		engineOpts = append(engineOpts, engine.WithIDGenerator(opts.IDGenerator))
	}

	w := &Workspace{IDs: map[string]graph.NodeID{}, Names: map[graph.NodeID]string{}}
	if opts.Database != "" {
		j, err := journal.Open(opts.Database)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		last, err := j.LastSeq(ctx)
		if err != nil {
			j.Close()
			return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		logger.Debug("journal opened", "path", opts.Database, "last_seq", last)
		w.Journal = j
		engineOpts = append(engineOpts, engine.WithJournal(j), engine.WithClock(engine.NewClockAt(last)))
	}
	w.Engine = engine.New(engineOpts...)

	if def == nil {
		return w, nil
	}
	w.Def = def
	ids, err := graphfile.Apply(ctx, def, w.Engine)
	if err != nil {
		w.Close()
		return nil, WrapExitError(ExitFailure, "failed to build graph", err)
	}
	w.IDs = ids
	w.Names = graphfile.Names(ids)
	logger.Debug("graph applied", "file", path, "nodes", len(def.Nodes), "edges", len(def.Edges))
	return w, nil
}

// graphLoadError assigns an exit code: a missing file is a command error,
// anything wrong inside the file is a failure.
func graphLoadError(err error) error {
	var le *graphfile.LoadError
	if errors.As(err, &le) {
		if le.Code == graphfile.ErrCodeNotFound {
			return WrapExitError(ExitCommandError, "failed to load graph", err)
		}
		return WrapExitError(ExitFailure, "invalid graph file", err)
	}
	return WrapExitError(ExitCommandError, "failed to load graph", err)
}

// errorCode names err for JSON output.
func errorCode(err error) string {
	var le *graphfile.LoadError
	switch {
	case errors.As(err, &le):
		if le.Code == graphfile.ErrCodeNotFound {
			return ErrCodeNotFound
		}
		return ErrCodeInvalidGraph
	case graph.Code(err) != "":
		return ErrCodeInvalidGraph
	default:
		return ErrCodeGeneric
	}
}
