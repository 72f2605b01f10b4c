package mcp

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/reduce"
	"github.com/flowcore/differential/internal/snapshot"
	"github.com/flowcore/differential/internal/trace"
)

func writeTestSnapshot(t *testing.T) string {
	t.Helper()

	st := snapshotState{
		LowerElems: []lattice.Nat{2},
		Interesting: []reduce.KeyTime[string, lattice.Nat]{
			{Key: "k1", Time: lattice.Nat(2)},
		},
		OutputUpdates: []trace.Update[string, float64, lattice.Nat, diff.Int]{
			{Key: "k1", Value: 1, Time: lattice.Nat(0), Diff: 1},
			{Key: "k1", Value: 1, Time: lattice.Nat(1), Diff: -1},
			{Key: "k1", Value: 2, Time: lattice.Nat(1), Diff: 1},
			{Key: "k2", Value: 5, Time: lattice.Nat(0), Diff: 1},
		},
	}

	path := filepath.Join(t.TempDir(), "test.snap")

	w := snapshot.NewWriter(snapshot.CompressionNone)
	require.NoError(t, snapshot.Capture(w, path, st))

	return path
}

func TestHandleDescribeTrace(t *testing.T) {
	path := writeTestSnapshot(t)

	_, out, err := handleDescribeTrace(context.Background(), nil, SnapshotInput{SnapshotPath: path})
	require.NoError(t, err)

	summary, ok := out.Data.(DescribeTraceOutput)
	require.True(t, ok)
	assert.Equal(t, 2, summary.Keys)
	assert.Equal(t, 4, summary.Rows)
	assert.Equal(t, []string{"0", "1"}, summary.Times)
	assert.Equal(t, 1, summary.InterestingN)
	assert.Equal(t, 1, summary.CapabilityLen)
}

func TestHandleDescribeTraceMissingPath(t *testing.T) {
	result, _, err := handleDescribeTrace(context.Background(), nil, SnapshotInput{})
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestHandleListInteresting(t *testing.T) {
	path := writeTestSnapshot(t)

	_, out, err := handleListInteresting(context.Background(), nil, SnapshotInput{SnapshotPath: path})
	require.NoError(t, err)

	entries, ok := out.Data.([]InterestingEntry)
	require.True(t, ok)
	assert.Equal(t, []InterestingEntry{{Key: "k1", Time: "2"}}, entries)
}

func TestHandleCapabilityFrontier(t *testing.T) {
	path := writeTestSnapshot(t)

	_, out, err := handleCapabilityFrontier(context.Background(), nil, SnapshotInput{SnapshotPath: path})
	require.NoError(t, err)

	frontier, ok := out.Data.(CapabilityFrontierOutput)
	require.True(t, ok)
	assert.Equal(t, []string{"2"}, frontier.Elements)
}

func TestNewServerRegistersAllTools(t *testing.T) {
	s := NewServer("test", ServerDeps{})
	assert.ElementsMatch(t, []string{toolNameDescribeTrace, toolNameListInteresting, toolNameCapabilityFrontier}, s.Tools())
}
