package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowcore/differential/internal/mcp"
	"github.com/flowcore/differential/pkg/config"
	"github.com/flowcore/differential/pkg/observability"
	"github.com/flowcore/differential/pkg/version"
)

// ServeMCPCommand holds the flags for `reduceflow serve-mcp`.
type ServeMCPCommand struct {
	configFile string
}

// NewServeMCPCommand builds the `serve-mcp` subcommand.
func NewServeMCPCommand() *cobra.Command {
	sc := &ServeMCPCommand{}

	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve read-only snapshot introspection over the Model Context Protocol",
		RunE:  sc.run,
	}

	cmd.Flags().StringVar(&sc.configFile, "config", "", "Path to the reduceflow YAML config file")

	return cmd
}

func (sc *ServeMCPCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(sc.configFile)
	if err != nil {
		return fmt.Errorf("serve-mcp: load config: %w", err)
	}

	obsCfg := observabilityConfigFrom(cfg)
	obsCfg.Mode = observability.ModeMCP

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("serve-mcp: init observability: %w", err)
	}

	ctx := cmd.Context()

	defer func() {
		if shutdownErr := providers.Shutdown(ctx); shutdownErr != nil && providers.Logger != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	redMetrics, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("serve-mcp: build RED metrics: %w", err)
	}

	server := mcp.NewServer(version.Version, mcp.ServerDeps{
		Metrics: redMetrics,
		Tracer:  providers.Tracer,
	})

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("serve-mcp: %w", err)
	}

	return nil
}
