// Package observability provides OpenTelemetry-based tracing, metrics, and
// structured logging for reduceflow's CLI, MCP, and engine-embedding modes.
package observability

import "log/slog"

// AppMode identifies the application execution mode.
type AppMode string

const (
	// ModeCLI is a one-shot "reduceflow run"/"explain"/"render" invocation.
	ModeCLI AppMode = "cli"
	// ModeMCP is the "reduceflow serve-mcp" stdio server mode.
	ModeMCP AppMode = "mcp"
)

const (
	// defaultServiceName is the default OTel service name.
	defaultServiceName = "reduceflow"

	// defaultShutdownTimeoutSec is the default shutdown timeout in seconds.
	defaultShutdownTimeoutSec = 5
)

// Config holds all observability configuration, populated from
// pkg/config.ObservabilityConfig by the command layer.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the semantic version of the running binary.
	ServiceVersion string

	// Environment is the deployment environment (e.g. "production", "dev").
	Environment string

	// Mode identifies how the binary was launched.
	Mode AppMode

	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables export; providers become no-op.
	OTLPEndpoint string

	// OTLPHeaders are additional gRPC metadata headers for the OTLP exporter.
	OTLPHeaders map[string]string

	// OTLPInsecure disables TLS for the OTLP gRPC connection.
	OTLPInsecure bool

	// DebugTrace forces 100% trace sampling when true.
	DebugTrace bool

	// SampleRatio is the trace sampling ratio (0.0 to 1.0) when DebugTrace is
	// false. Zero uses the OTel SDK default (parent-based with always-on
	// root).
	SampleRatio float64

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// LogJSON enables JSON-formatted log output.
	LogJSON bool

	// PrometheusListenAddr, when non-empty, serves the OTel Prometheus
	// exporter's /metrics endpoint on this address instead of (or alongside)
	// OTLP metric export.
	PrometheusListenAddr string

	// ShutdownTimeoutSec is the maximum seconds to wait for flush on
	// shutdown.
	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config with sensible defaults for zero-config
// startup.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
