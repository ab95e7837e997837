// Command textflow evaluates and serves text transformation graphs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/textflow/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
