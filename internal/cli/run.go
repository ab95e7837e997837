package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/textflow/internal/engine"
	"github.com/roach88/textflow/internal/graphfile"
	"github.com/roach88/textflow/internal/value"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	GraphOptions
	Set []string // "node.key=value" config patches applied after loading
}

// RunResult is the graph after the final pass.
type RunResult struct {
	Seq    int64        `json:"seq"`
	Nodes  []NodeResult `json:"nodes"`
	Cycle  []string     `json:"cycle,omitempty"`
	Failed int          `json:"failed"`
}

// NodeResult is one node of a RunResult.
type NodeResult struct {
	Name    string         `json:"name"`
	Kind    string         `json:"kind"`
	Outputs map[string]any `json:"outputs"`
	Display bool           `json:"display,omitempty"`
	Value   any            `json:"value,omitempty"` // Incoming value of a display node
	Error   string         `json:"error,omitempty"`

	incoming value.Value
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <graph-file>",
		Short: "Evaluate a graph file and print its displays",
		Long: `Load a CUE or HCL graph file, evaluate it, and print what every display
node receives.

Config values can be overridden after loading with --set; each patch runs
its own pass, exactly as an edit in a live session would.

Exit codes:
  0 - Every node evaluated
  1 - A node failed, the graph has a cycle, or the file is invalid
  2 - Command error (missing file, unreadable journal)

Examples:
  textflow run ./pipeline.cue
  textflow run ./pipeline.hcl --set input.text="Hello again"
  textflow run ./pipeline.cue --db ./textflow.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (optional)")
	cmd.Flags().BoolVar(&opts.Partial, "partial", false, "evaluate the acyclic part of a cyclic graph")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "override a config value as node.key=value (repeatable)")

	return cmd
}

func runGraph(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ws, err := OpenWorkspace(ctx, path, &opts.GraphOptions, logger)
	if err != nil {
		return reportError(formatter, err)
	}
	defer func() {
		if closeErr := ws.Close(); closeErr != nil {
			logger.Error("error closing journal", "error", closeErr)
		}
	}()

	for _, set := range opts.Set {
		if err := applySet(ctx, ws, set); err != nil {
			return reportError(formatter, err)
		}
		formatter.VerboseLog("patched %s", set)
	}

	result := buildRunResult(ws, ws.Engine.View())

	var failure *ExitError
	switch {
	case result.Failed > 0:
		failure = NewExitError(ExitFailure, fmt.Sprintf("%d node(s) failed", result.Failed))
	case len(result.Cycle) > 0:
		failure = NewExitError(ExitFailure, fmt.Sprintf("graph has a cycle through %s", strings.Join(result.Cycle, ", ")))
	}

	if formatter.JSON() {
		code, message := "", ""
		if failure != nil {
			code, message = ErrCodeNodeFailed, failure.Message
			if result.Failed == 0 {
				code = ErrCodeCycle
			}
		}
		if err := formatter.Result(result, code, message); err != nil {
			return err
		}
	} else {
		printRunResult(formatter, result)
	}

	if failure != nil {
		return failure
	}
	return nil
}

// applySet parses "node.key=value" and patches the node's config.
func applySet(ctx context.Context, ws *Workspace, set string) error {
	target, raw, ok := strings.Cut(set, "=")
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("--set %q: want node.key=value", set))
	}
	ep, err := graphfile.ParseEndpoint(target)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("--set %q", set), err)
	}
	id, ok := ws.IDs[ep.Node]
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("--set %q: no node named %q", set, ep.Node))
	}
	if err := ws.Engine.PatchConfig(ctx, id, value.Object{ep.Port: value.String(raw)}); err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("--set %q", set), err)
	}
	return nil
}

func buildRunResult(ws *Workspace, view engine.View) RunResult {
	result := RunResult{Seq: view.Seq, Nodes: make([]NodeResult, 0, len(view.Nodes))}
	for _, nv := range view.Nodes {
		nr := NodeResult{
			Name:    ws.Name(nv.ID),
			Kind:    string(nv.Kind),
			Outputs: value.ToAny(nv.Outputs).(map[string]any),
		}
		if nv.Incoming != nil {
			nr.Display = true
			nr.Value = value.ToAny(nv.Incoming)
			nr.incoming = nv.Incoming
		}
		if nv.Error {
			nr.Error = nv.ErrorMessage
			result.Failed++
		}
		result.Nodes = append(result.Nodes, nr)
	}
	if view.Cycle != nil {
		for _, id := range view.Cycle.Nodes {
			result.Cycle = append(result.Cycle, ws.Name(id))
		}
	}
	return result
}

func printRunResult(f *OutputFormatter, result RunResult) {
	w := f.Writer
	for _, n := range result.Nodes {
		switch {
		case n.Error != "":
			fmt.Fprintf(w, "✗ %s (%s): %s\n", n.Name, n.Kind, n.Error)
		case n.Display:
			if value.IsUndefined(n.incoming) {
				fmt.Fprintf(w, "%s: (no value)\n", n.Name)
			} else {
				fmt.Fprintf(w, "%s: %s\n", n.Name, value.Text(n.incoming))
			}
		default:
			f.VerboseLog("%s (%s): %v", n.Name, n.Kind, n.Outputs)
		}
	}
	if len(result.Cycle) > 0 {
		fmt.Fprintf(w, "cycle: %s\n", strings.Join(result.Cycle, ", "))
	}
}

// reportError writes err in JSON mode and returns it with an exit code.
func reportError(f *OutputFormatter, err error) error {
	if f.JSON() {
		if outErr := f.Error(errorCode(err), err.Error(), nil); outErr != nil {
			return outErr
		}
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return WrapExitError(ExitFailure, "run failed", err)
}
