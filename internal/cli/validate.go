package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/textflow/internal/engine"
	"github.com/roach88/textflow/internal/graph"
	"github.com/roach88/textflow/internal/graphfile"
)

// FileValidation is the outcome for one graph file.
type FileValidation struct {
	File  string    `json:"file"`
	Valid bool      `json:"valid"`
	Nodes int       `json:"nodes"`
	Edges int       `json:"edges"`
	Error *CLIError `json:"error,omitempty"`

	// Cycle names the nodes a cycle would block. A cycle is legal in a
	// graph file but nothing on or after it evaluates.
	Cycle []string `json:"cycle,omitempty"`
}

// ValidationResult holds validation results for every file.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <graph-file>...",
		Short: "Check graph files without printing results",
		Long: `Check CUE or HCL graph files: syntax, schema, node names, operator
kinds, ports and edge endpoints. Each file is built in a scratch engine, so
anything the engine would reject is reported here.

Cycles are reported as warnings; they do not make a file invalid.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(paths))}
	for _, path := range paths {
		formatter.VerboseLog("Validating %s", path)
		fv := validateFile(path)
		if !fv.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	if formatter.JSON() {
		code, message := "", ""
		if !result.Valid {
			code, message = ErrCodeInvalidGraph, "one or more graph files are invalid"
		}
		if err := formatter.Result(result, code, message); err != nil {
			return err
		}
	} else {
		printValidation(formatter.Writer, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

// validateFile loads path and builds it in a scratch engine.
func validateFile(path string) FileValidation {
	fv := FileValidation{File: path}

	def, err := graphfile.Load(path)
	if err != nil {
		fv.Error = validationError(err)
		return fv
	}
	fv.Nodes, fv.Edges = len(def.Nodes), len(def.Edges)

	e := engine.New(
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithIDGenerator(graph.NewSequentialGenerator("node")),
	)
	ids, err := graphfile.Apply(context.Background(), def, e)
	if err != nil {
		fv.Error = validationError(err)
		return fv
	}

	fv.Valid = true
	if cycle := e.View().Cycle; cycle != nil {
		names := graphfile.Names(ids)
		for _, id := range cycle.Nodes {
			fv.Cycle = append(fv.Cycle, names[id])
		}
	}
	return fv
}

func validationError(err error) *CLIError {
	ce := &CLIError{Code: errorCode(err), Message: err.Error()}
	var le *graphfile.LoadError
	if errors.As(err, &le) {
		ce.Code = le.Code
		ce.Message = le.Message
		if le.Pos != "" {
			ce.Details = map[string]string{"pos": le.Pos}
		}
		return ce
	}
	if code := graph.Code(err); code != "" {
		ce.Code = string(code)
	}
	return ce
}

func printValidation(w io.Writer, result ValidationResult) {
	for _, fv := range result.Files {
		if !fv.Valid {
			fmt.Fprintf(w, "✗ %s\n", fv.File)
			if details, ok := fv.Error.Details.(map[string]string); ok {
				fmt.Fprintf(w, "  %s: [%s] %s\n", details["pos"], fv.Error.Code, fv.Error.Message)
			} else {
				fmt.Fprintf(w, "  [%s] %s\n", fv.Error.Code, fv.Error.Message)
			}
			continue
		}
		fmt.Fprintf(w, "✓ %s (%d nodes, %d edges)\n", fv.File, fv.Nodes, fv.Edges)
		if len(fv.Cycle) > 0 {
			fmt.Fprintf(w, "  warning: cycle blocks %v\n", fv.Cycle)
		}
	}
	if result.Valid {
		fmt.Fprintln(w, "✓ All graph files valid")
	}
}
