package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/differential/pkg/config"
)

func TestLoadAppliesDefaultsWhenFileMissing(t *testing.T) {
	// No configPath: Load falls back to searching "." / "./config" /
	// "/etc/reduceflow" for "config.yaml", none of which exist in the
	// test's working directory, so the missing file is tolerated and
	// defaults apply. A caller-supplied path that doesn't exist, by
	// contrast, is a hard error.
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Greater(t, cfg.Engine.RoundBudgetKeys, 0)
	assert.Equal(t, "lz4", cfg.Snapshot.Compression)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
}

func TestLoadReadsFileAndValidatesGraph(t *testing.T) {
	cfg, err := config.Load("testdata/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 256, cfg.Engine.RoundBudgetKeys)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
	assert.InDelta(t, 0.5, cfg.Observability.Tracing.SampleRatio, 1e-9)
	assert.Equal(t, "lz4", cfg.Snapshot.Compression)
}

func TestLoadRejectsInvalidEngineValues(t *testing.T) {
	_, err := config.Load("testdata/config_bad_engine.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidRoundBudget)
}

func TestValidateGraphFileAcceptsConformingGraph(t *testing.T) {
	err := config.ValidateGraphFile("schema/graph.schema.json", "testdata/graph_valid.yaml")
	assert.NoError(t, err)
}

func TestValidateGraphFileRejectsUnknownOperator(t *testing.T) {
	err := config.ValidateGraphFile("schema/graph.schema.json", "testdata/graph_invalid.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrGraphSchemaInvalid)
}

func TestLoadFailsWhenGraphFailsSchemaValidation(t *testing.T) {
	_, err := config.Load("testdata/config_bad_graph.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrGraphSchemaInvalid)
}
