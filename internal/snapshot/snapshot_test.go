package snapshot_test

import (
	"context"
	"os"
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

// corruptAppend flips the last byte of the file at path, landing inside the
// payload and tripping Capture's checksum without disturbing the framing
// lengths Restore parses first.
func corruptAppend(t *testing.T, path string) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	data[len(data)-1] ^= 0xFF

	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func strLess(a, b string) bool { return a < b }

func natLess(a, b lattice.Nat) bool { return a < b }

func intLess(a, b int) bool { return a < b }

func unitLess(a, b struct{}) bool { return false }

type outEntry struct {
	Key  string
	Val  int
	Time lattice.Nat
	Diff diff.Int
}

func collectOutput(b *trace.Batch[string, int, lattice.Nat, diff.Int]) []outEntry {
	var out []outEntry

	cur := b.Cursor()
	for cur.KeyValid() {
		k := cur.Key()

		for cur.ValValid() {
			v := cur.Val()
			cur.MapTimes(func(t lattice.Nat, d diff.Int) {
				out = append(out, outEntry{Key: k, Val: v, Time: t, Diff: d})
			})
			cur.StepVal()
		}

		cur.StepKey()
	}

	return out
}

func countLogic(_ string, input []diff.Item[struct{}, diff.Int], output []diff.Item[int, diff.Int]) []diff.Item[int, diff.Int] {
	var newCount int64
	if len(input) > 0 {
		newCount = int64(input[0].Diff)
	}

	hadOld := len(output) > 0

	var oldCount int64
	if hadOld {
		oldCount = int64(output[0].Value)
	}

	var out []diff.Item[int, diff.Int]

	if hadOld && oldCount != newCount {
		out = append(out, diff.Item[int, diff.Int]{Value: int(oldCount), Diff: -1})
	}

	if newCount != 0 && (!hadOld || oldCount != newCount) {
		out = append(out, diff.Item[int, diff.Int]{Value: int(newCount), Diff: 1})
	}

	return out
}

func countConfig() reduce.Config[string, struct{}, lattice.Nat, diff.Int, int] {
	return reduce.Config[string, struct{}, lattice.Nat, diff.Int, int]{
		KeyLess:  strLess,
		ValLess:  unitLess,
		OutLess:  intLess,
		TimeLess: natLess,
		Logic:    countLogic,
	}
}

func round0Batch() *trace.Batch[string, struct{}, lattice.Nat, diff.Int] {
	b := trace.NewBuilder[string, struct{}, lattice.Nat, diff.Int](strLess, unitLess, natLess)
	b.Push("k1", struct{}{}, 0, 1)
	b.Push("k1", struct{}{}, 0, 1)
	b.Push("k2", struct{}{}, 0, 1)

	return b.Done(lattice.New(lattice.Nat(0)), lattice.New(lattice.Nat(1)), lattice.New(lattice.Nat(0)))
}

func round1Batch() *trace.Batch[string, struct{}, lattice.Nat, diff.Int] {
	b := trace.NewBuilder[string, struct{}, lattice.Nat, diff.Int](strLess, unitLess, natLess)
	b.Push("k1", struct{}{}, 1, -1)

	return b.Done(lattice.New(lattice.Nat(1)), lattice.New(lattice.Nat(2)), lattice.New(lattice.Nat(1)))
}

// TestSnapshotRoundTripResumesCount captures a snapshot after round 0 of
// the Count reducer, restores it into a fresh Reducer, then feeds
// it the same round-1 input the original would have seen. The resumed
// reducer's round-1 output must match a reducer that ran both rounds
// without ever being snapshotted.
func TestSnapshotRoundTripResumesCount(t *testing.T) {
	ctx := context.Background()

	baselineSource := trace.NewMemTrace[string, struct{}, lattice.Nat, diff.Int](lattice.New(lattice.Nat(0)), strLess, unitLess, natLess)
	baseline := reduce.New[string, struct{}, lattice.Nat, diff.Int, int](baselineSource, lattice.New(lattice.Nat(0)), countConfig())

	baseOut1, err := baseline.Poll(ctx, round0Batch())
	require.NoError(t, err)
	require.NotNil(t, baseOut1)

	baseOut2, err := baseline.Poll(ctx, round1Batch())
	require.NoError(t, err)
	require.NotNil(t, baseOut2)

	liveSource := trace.NewMemTrace[string, struct{}, lattice.Nat, diff.Int](lattice.New(lattice.Nat(0)), strLess, unitLess, natLess)
	live := reduce.New[string, struct{}, lattice.Nat, diff.Int, int](liveSource, lattice.New(lattice.Nat(0)), countConfig())

	liveOut1, err := live.Poll(ctx, round0Batch())
	require.NoError(t, err)
	require.NotNil(t, liveOut1)
	assert.ElementsMatch(t, collectOutput(baseOut1), collectOutput(liveOut1))

	path := filepath.Join(t.TempDir(), "count.snap")

	writer := snapshot.NewWriter(snapshot.CompressionLZ4)
	require.NoError(t, snapshot.Capture(writer, path, live.Capture()))

	reader := snapshot.NewReader()

	resumed, err := snapshot.Restore(reader, path, countConfig())
	require.NoError(t, err)
	require.Equal(t, live.Interesting(), resumed.Interesting())

	resumedOut2, err := resumed.Poll(ctx, round1Batch())
	require.NoError(t, err)
	require.NotNil(t, resumedOut2)

	assert.ElementsMatch(t, collectOutput(baseOut2), collectOutput(resumedOut2))
}

// TestSnapshotRestoreRejectsCorruptFile ensures a checksum mismatch surfaces
// as ErrCorrupt rather than decoding garbage into a Reducer.
func TestSnapshotRestoreRejectsCorruptFile(t *testing.T) {
	source := trace.NewMemTrace[string, struct{}, lattice.Nat, diff.Int](lattice.New(lattice.Nat(0)), strLess, unitLess, natLess)
	r := reduce.New[string, struct{}, lattice.Nat, diff.Int, int](source, lattice.New(lattice.Nat(0)), countConfig())

	_, err := r.Poll(context.Background(), round0Batch())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "count.snap")

	writer := snapshot.NewWriter(snapshot.CompressionNone)
	require.NoError(t, snapshot.Capture(writer, path, r.Capture()))

	corruptAppend(t, path)

	reader := snapshot.NewReader()
	_, err = snapshot.Restore(reader, path, countConfig())
	assert.ErrorIs(t, err, snapshot.ErrCorrupt)
}
