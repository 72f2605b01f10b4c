package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/trace"
)

func TestReadNDJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.ndjson")
	content := "{\"key\":\"a\",\"value\":1,\"time\":0,\"diff\":1}\n\n{\"key\":\"b\",\"value\":2,\"time\":1,\"diff\":-1}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rows, err := readNDJSON(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ndjsonRow{Key: "a", Value: 1, Time: 0, Diff: 1}, rows[0])
	assert.Equal(t, ndjsonRow{Key: "b", Value: 2, Time: 1, Diff: -1}, rows[1])
}

func TestReadNDJSONRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.ndjson")
	require.NoError(t, os.WriteFile(path, []byte("not json\n"), 0o644))

	_, err := readNDJSON(path)
	assert.Error(t, err)
}

func TestRowsForShardPartitionsDisjointly(t *testing.T) {
	rows := []ndjsonRow{
		{Key: "alpha"}, {Key: "beta"}, {Key: "gamma"}, {Key: "delta"},
	}

	const shardCount = 3

	seen := map[string]bool{}

	for shard := 0; shard < shardCount; shard++ {
		for _, r := range rowsForShard(rows, shard, shardCount) {
			assert.Equal(t, shard, keyShard(r.Key, shardCount))
			assert.False(t, seen[r.Key], "key %s assigned to more than one shard", r.Key)
			seen[r.Key] = true
		}
	}

	assert.Len(t, seen, len(rows))
}

func TestRowsForShardSingleShardReturnsAll(t *testing.T) {
	rows := []ndjsonRow{{Key: "a"}, {Key: "b"}}
	assert.Equal(t, rows, rowsForShard(rows, 0, 1))
}

func TestGroupByTimeAndSortedTimes(t *testing.T) {
	rows := []ndjsonRow{
		{Key: "a", Time: 2}, {Key: "b", Time: 0}, {Key: "c", Time: 1}, {Key: "d", Time: 0},
	}

	byTime := groupByTime(rows)
	require.Len(t, byTime[0], 2)
	require.Len(t, byTime[1], 1)
	require.Len(t, byTime[2], 1)

	assert.Equal(t, []uint64{0, 1, 2}, sortedTimes(byTime))
}

func TestConsolidateFinalDropsZeroSum(t *testing.T) {
	updates := []trace.Update[string, float64, lattice.Nat, diff.Int]{
		{Key: "k", Value: 1, Time: lattice.Nat(0), Diff: diff.Int(1)},
		{Key: "k", Value: 1, Time: lattice.Nat(1), Diff: diff.Int(-1)},
		{Key: "k", Value: 2, Time: lattice.Nat(2), Diff: diff.Int(3)},
	}

	final := consolidateFinal(updates)

	require.Contains(t, final, "k")
	assert.Equal(t, []diff.Item[float64, diff.Int]{{Value: 2, Diff: diff.Int(3)}}, final["k"])
}

func TestPrintFinalRendersTable(t *testing.T) {
	final := map[string][]diff.Item[float64, diff.Int]{
		"k1": {{Value: 1, Diff: diff.Int(2)}},
		"k2": {{Value: -1, Diff: diff.Int(-1)}},
	}

	var buf bytes.Buffer
	printFinal(&buf, final)

	out := buf.String()
	assert.Contains(t, out, "k1")
	assert.Contains(t, out, "k2")
	assert.Contains(t, out, "Total")
}
