// Command reduceflow runs differential dataflow graphs over NDJSON input,
// snapshots and inspects their state, and serves read-only introspection
// over the Model Context Protocol.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowcore/differential/cmd/reduceflow/commands"
	"github.com/flowcore/differential/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	root := &cobra.Command{
		Use:           "reduceflow",
		Short:         "A differential dataflow engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		commands.NewRunCommand(),
		commands.NewExplainCommand(),
		commands.NewRenderCommand(),
		commands.NewServeMCPCommand(),
		commands.NewVersionCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
