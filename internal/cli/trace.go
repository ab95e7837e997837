package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/textflow/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Pass     int64  // Show the evaluations of one pass
	Node     string // Show the history of one node
}

// TraceResult holds the trace output. Only the section asked for is set.
type TraceResult struct {
	Passes      []journal.PassRecord       `json:"passes,omitempty"`
	Pass        *journal.PassRecord        `json:"pass,omitempty"`
	Evaluations []journal.EvaluationRecord `json:"evaluations,omitempty"`
	Stats       TraceStats                 `json:"stats"`
}

// TraceStats summarizes the journal, or the selected pass or node.
type TraceStats struct {
	Passes    int `json:"passes"`
	Changed   int `json:"changed"`
	Cyclic    int `json:"cyclic"`
	Evaluated int `json:"evaluated"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Blocked   int `json:"blocked"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the pass history recorded in a journal",
		Long: `Show the passes recorded in a textflow journal.

Without --pass or --node, prints one line per pass: its cause, whether it
changed anything, and the cycle it found. --pass lists what happened to
every node in one pass; --node lists every evaluation of one node.

Examples:
  textflow trace --db ./textflow.db
  textflow trace --db ./textflow.db --pass 3
  textflow trace --db ./textflow.db --node 0190c9e2-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().Int64Var(&opts.Pass, "pass", 0, "show the evaluations of one pass")
	cmd.Flags().StringVar(&opts.Node, "node", "", "show the history of one node")
	cmd.MarkFlagsMutuallyExclusive("pass", "node")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Open would create a missing database; a trace of nothing is an error.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	var result TraceResult
	switch {
	case opts.Pass != 0:
		result, err = tracePass(ctx, j, opts.Pass)
	case opts.Node != "":
		result, err = traceNode(ctx, j, opts.Node)
	default:
		result, err = tracePasses(ctx, j)
	}
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(result)
	}
	return printTrace(cmd, opts, result)
}

func tracePasses(ctx context.Context, j *journal.Journal) (TraceResult, error) {
	passes, err := j.ReadPasses(ctx)
	if err != nil {
		return TraceResult{}, WrapExitError(ExitCommandError, "failed to read passes", err)
	}
	result := TraceResult{Passes: passes}
	for _, p := range passes {
		result.Stats.Passes++
		if p.Changed {
			result.Stats.Changed++
		}
		if len(p.Cycle) > 0 {
			result.Stats.Cyclic++
		}
	}
	return result, nil
}

func tracePass(ctx context.Context, j *journal.Journal, seq int64) (TraceResult, error) {
	passes, err := j.ReadPasses(ctx)
	if err != nil {
		return TraceResult{}, WrapExitError(ExitCommandError, "failed to read passes", err)
	}
	for i := range passes {
		if passes[i].Seq != seq {
			continue
		}
		evals, err := j.ReadEvaluations(ctx, seq)
		if err != nil {
			return TraceResult{}, WrapExitError(ExitCommandError, "failed to read evaluations", err)
		}
		result := TraceResult{Pass: &passes[i], Evaluations: evals}
		result.Stats = countStatuses(evals)
		result.Stats.Passes = 1
		return result, nil
	}
	return TraceResult{}, NewExitError(ExitFailure, fmt.Sprintf("pass %d not found", seq))
}

func traceNode(ctx context.Context, j *journal.Journal, node string) (TraceResult, error) {
	evals, err := j.NodeHistory(ctx, node)
	if err != nil {
		return TraceResult{}, WrapExitError(ExitCommandError, "failed to read node history", err)
	}
	result := TraceResult{Evaluations: evals, Stats: countStatuses(evals)}
	seen := map[int64]bool{}
	for _, ev := range evals {
		seen[ev.Seq] = true
	}
	result.Stats.Passes = len(seen)
	return result, nil
}

func countStatuses(evals []journal.EvaluationRecord) TraceStats {
	var stats TraceStats
	for _, ev := range evals {
		switch ev.Status {
		case journal.StatusEvaluated:
			stats.Evaluated++
		case journal.StatusFailed:
			stats.Failed++
		case journal.StatusSkipped:
			stats.Skipped++
		case journal.StatusBlocked:
			stats.Blocked++
		}
	}
	return stats
}

func printTrace(cmd *cobra.Command, opts *TraceOptions, result TraceResult) error {
	w := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	switch {
	case result.Pass != nil:
		p := result.Pass
		fmt.Fprintf(w, "Pass %d (%s, %s)\n\n", p.Seq, p.Cause, p.Policy)
		printEvaluations(tw, result.Evaluations, false)
	case opts.Node != "":
		if len(result.Evaluations) == 0 {
			fmt.Fprintf(w, "No history for node: %s\n", opts.Node)
			return nil
		}
		fmt.Fprintf(w, "Node %s\n\n", opts.Node)
		printEvaluations(tw, result.Evaluations, true)
	default:
		if len(result.Passes) == 0 {
			fmt.Fprintln(w, "No passes recorded.")
			return nil
		}
		fmt.Fprintln(tw, "SEQ\tCAUSE\tCHANGED\tNODES\tEDGES\tCYCLE")
		for _, p := range result.Passes {
			cycle := "-"
			if len(p.Cycle) > 0 {
				cycle = strings.Join(p.Cycle, ",")
			}
			fmt.Fprintf(tw, "%d\t%s\t%t\t%d\t%d\t%s\n", p.Seq, p.Cause, p.Changed, p.NodeCount, p.EdgeCount, cycle)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := result.Stats
	fmt.Fprintln(w)
	if result.Passes != nil {
		fmt.Fprintf(w, "Passes: %d (%d changed, %d cyclic)\n", s.Passes, s.Changed, s.Cyclic)
	} else {
		fmt.Fprintf(w, "Evaluated: %d  Failed: %d  Skipped: %d  Blocked: %d\n", s.Evaluated, s.Failed, s.Skipped, s.Blocked)
	}
	return nil
}

func printEvaluations(tw *tabwriter.Writer, evals []journal.EvaluationRecord, bySeq bool) {
	if bySeq {
		fmt.Fprintln(tw, "SEQ\tSTATUS\tOUTPUTS\tERROR")
	} else {
		fmt.Fprintln(tw, "#\tNODE\tKIND\tSTATUS\tOUTPUTS\tERROR")
	}
	for _, ev := range evals {
		outputs := shortHash(ev.OutputsHash)
		if bySeq {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", ev.Seq, ev.Status, outputs, ev.Error)
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", ev.Ordinal, ev.NodeID, ev.Kind, ev.Status, outputs, ev.Error)
	}
}

// shortHash trims a fingerprint for display.
func shortHash(h string) string {
	if h == "" {
		return "-"
	}
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
