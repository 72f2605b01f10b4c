package commands

import (
	"log/slog"
	"strings"

	"github.com/flowcore/differential/pkg/config"
	"github.com/flowcore/differential/pkg/observability"
	"github.com/flowcore/differential/pkg/version"
)

// observabilityConfigFrom maps a loaded pkg/config.Config onto the
// observability.Config shape Init expects, the same translation the
// teacher's run command performs between its own config and observability
// packages.
func observabilityConfigFrom(cfg *config.Config) observability.Config {
	out := observability.DefaultConfig()
	out.ServiceVersion = version.Version
	out.LogLevel = parseLogLevel(cfg.Observability.Logging.Level)
	out.LogJSON = strings.EqualFold(cfg.Observability.Logging.Format, "json")

	if cfg.Observability.Tracing.Enabled {
		out.OTLPEndpoint = cfg.Observability.Tracing.OTLPEndpoint
		out.SampleRatio = cfg.Observability.Tracing.SampleRatio
	}

	if cfg.Observability.Metrics.Enabled {
		out.PrometheusListenAddr = cfg.Observability.Metrics.ListenAddr
	}

	return out
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}

	return l
}
