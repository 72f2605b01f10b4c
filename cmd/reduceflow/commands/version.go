package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowcore/differential/pkg/version"
)

// NewVersionCommand builds the `version` subcommand.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the reduceflow version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "reduceflow %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.Date)
			return nil
		},
	}
}
