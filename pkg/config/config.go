// Package config loads and validates reduceflow's configuration: viper-backed
// YAML with a REDUCEFLOW_-prefixed environment overlay, grounded on the
// teacher's own pkg/config idiom (DESIGN.md).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/xeipuuv/gojsonschema"
)

// Sentinel validation errors.
var (
	ErrInvalidRoundBudget      = errors.New("engine round budget must be positive")
	ErrInvalidCompactionWindow = errors.New("compaction interval must be positive")
	ErrInvalidSampleRatio      = errors.New("tracing sample ratio must be within [0,1]")
	ErrInvalidSnapshotInterval = errors.New("snapshot interval must be positive")
	ErrInvalidCompression      = errors.New("snapshot compression must be \"lz4\" or \"none\"")
	ErrGraphSchemaInvalid      = errors.New("graph description failed schema validation")
)

// Default configuration values.
const (
	defaultRoundBudgetKeys    = 1024
	defaultCompactionInterval = 100
	defaultSnapshotInterval   = 500
	defaultSampleRatio        = 0.1
)

// Config holds all configuration for a reduceflow engine run.
type Config struct {
	Engine        EngineConfig        `mapstructure:"engine"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Snapshot      SnapshotConfig      `mapstructure:"snapshot"`
	Graph         GraphConfig         `mapstructure:"graph"`
}

// EngineConfig holds scheduler-specific configuration.
type EngineConfig struct {
	// RoundBudgetKeys is the configured per-pass key budget. Load rejects a
	// non-positive value; no engine or reducer code reads it.
	RoundBudgetKeys int `mapstructure:"round_budget_keys"`
	// CompactionInterval is the configured number of rounds between
	// logical-compaction advances. Load rejects a non-positive value; no
	// engine or trace code reads it.
	CompactionInterval int `mapstructure:"compaction_interval"`
	// CompactionRetention is the configured distance logical compaction may
	// trail the current frontier. Only its default is set; nothing validates
	// or reads it.
	CompactionRetention int `mapstructure:"compaction_retention"`
}

// LoggingConfig holds slog-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig holds Prometheus/OTel metrics configuration.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// TracingConfig holds OTLP tracing configuration.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
}

// ObservabilityConfig groups the logging/metrics/tracing sub-configs.
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// SnapshotConfig holds checkpoint-writer configuration.
type SnapshotConfig struct {
	Directory   string `mapstructure:"directory"`
	Interval    int    `mapstructure:"interval"`
	Compression string `mapstructure:"compression"`
}

// GraphConfig points at a YAML dataflow-graph description and its schema.
type GraphConfig struct {
	Path       string `mapstructure:"path"`
	SchemaPath string `mapstructure:"schema_path"`
}

// Load reads configuration from file and environment variables, applying
// defaults and validating the result.
func Load(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("config")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/reduceflow")
	}

	viperCfg.SetEnvPrefix("REDUCEFLOW")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	if validateErr := validateConfig(&cfg); validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	if cfg.Graph.Path != "" && cfg.Graph.SchemaPath != "" {
		if schemaErr := ValidateGraphFile(cfg.Graph.SchemaPath, cfg.Graph.Path); schemaErr != nil {
			return nil, schemaErr
		}
	}

	return &cfg, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("engine.round_budget_keys", defaultRoundBudgetKeys)
	viperCfg.SetDefault("engine.compaction_interval", defaultCompactionInterval)
	viperCfg.SetDefault("engine.compaction_retention", defaultCompactionInterval)

	viperCfg.SetDefault("observability.logging.level", "info")
	viperCfg.SetDefault("observability.logging.format", "json")
	viperCfg.SetDefault("observability.logging.output", "stdout")
	viperCfg.SetDefault("observability.metrics.enabled", false)
	viperCfg.SetDefault("observability.metrics.listen_addr", ":9090")
	viperCfg.SetDefault("observability.tracing.enabled", false)
	viperCfg.SetDefault("observability.tracing.sample_ratio", defaultSampleRatio)

	viperCfg.SetDefault("snapshot.directory", "./snapshots")
	viperCfg.SetDefault("snapshot.interval", defaultSnapshotInterval)
	viperCfg.SetDefault("snapshot.compression", "lz4")
}

func validateConfig(cfg *Config) error {
	if cfg.Engine.RoundBudgetKeys <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRoundBudget, cfg.Engine.RoundBudgetKeys)
	}

	if cfg.Engine.CompactionInterval <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCompactionWindow, cfg.Engine.CompactionInterval)
	}

	if cfg.Observability.Tracing.SampleRatio < 0 || cfg.Observability.Tracing.SampleRatio > 1 {
		return fmt.Errorf("%w: %f", ErrInvalidSampleRatio, cfg.Observability.Tracing.SampleRatio)
	}

	if cfg.Snapshot.Interval <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSnapshotInterval, cfg.Snapshot.Interval)
	}

	switch cfg.Snapshot.Compression {
	case "lz4", "none", "":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCompression, cfg.Snapshot.Compression)
	}

	return nil
}

// ValidateGraphFile validates a YAML graph description against a JSON
// Schema before the engine builds a Collection from it. gojsonschema works
// over JSON documents, so YAML is decoded to a generic map/slice value first
// (the Config layer already depends on gopkg.in/yaml.v3 for this shape).
func ValidateGraphFile(schemaPath, graphPath string) error {
	schemaBytes, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read graph schema: %w", err)
	}

	graphBytes, err := os.ReadFile(graphPath)
	if err != nil {
		return fmt.Errorf("failed to read graph description: %w", err)
	}

	doc, err := yamlToJSONDocument(graphBytes)
	if err != nil {
		return fmt.Errorf("failed to decode graph description: %w", err)
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaBytes)
	docLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("failed to validate graph description: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}

		return fmt.Errorf("%w: %s", ErrGraphSchemaInvalid, strings.Join(msgs, "; "))
	}

	return nil
}

