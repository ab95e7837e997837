package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/textflow/internal/operator"
	"github.com/roach88/textflow/internal/value"
)

// OperatorInfo describes one operator kind.
type OperatorInfo struct {
	Kind     string         `json:"kind"`
	Name     string         `json:"name"`
	Inputs   []string       `json:"inputs"`
	Outputs  []string       `json:"outputs"`
	Defaults map[string]any `json:"defaults"`
}

// NewOperatorsCommand creates the operators command.
func NewOperatorsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "operators",
		Short:         "List the operator kinds a graph may use",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return listOperators(formatter, operator.Builtins())
		},
	}
}

func listOperators(f *OutputFormatter, reg *operator.Registry) error {
	defs := reg.Definitions()
	infos := make([]OperatorInfo, len(defs))
	for i, def := range defs {
		infos[i] = OperatorInfo{
			Kind:     string(def.Kind),
			Name:     def.Name,
			Inputs:   portIDs(def.Inputs),
			Outputs:  portIDs(def.Outputs),
			Defaults: value.ToAny(def.Defaults).(map[string]any),
		}
	}
	if f.JSON() {
		return f.Success(infos)
	}

	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNAME\tINPUTS\tOUTPUTS\tDEFAULTS")
	for i, info := range infos {
		defaults, err := value.Marshal(defs[i].Defaults)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			info.Kind, info.Name, orDash(info.Inputs), orDash(info.Outputs), defaults)
	}
	return tw.Flush()
}

func portIDs(ports []operator.Port) []string {
	ids := make([]string, len(ports))
	for i, p := range ports {
		ids[i] = p.ID
	}
	return ids
}

func orDash(ss []string) string {
	if len(ss) == 0 {
		return "-"
	}
	return strings.Join(ss, ",")
}
