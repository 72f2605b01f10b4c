package replay_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/replay"
)

func strLess(a, b string) bool { return a < b }

func natLess(a, b lattice.Nat) bool { return a < b }

func TestReplayerTimeAndStepWhileTimeIs(t *testing.T) {
	entries := []replay.Entry[string, lattice.Nat, diff.Int]{
		{Value: "b", Time: 2, Diff: 1},
		{Value: "a", Time: 0, Diff: 1},
		{Value: "a", Time: 1, Diff: 1},
	}

	r := replay.New[string, lattice.Nat, diff.Int](entries, strLess, natLess)

	tm, ok := r.Time()
	require.True(t, ok)
	assert.Equal(t, lattice.Nat(0), tm)

	assert.True(t, r.StepWhileTimeIs(0))
	assert.Len(t, r.Buffer(), 1)

	tm, ok = r.Time()
	require.True(t, ok)
	assert.Equal(t, lattice.Nat(1), tm)

	assert.False(t, r.StepWhileTimeIs(0), "stepping a time with nothing pending at it moves nothing")

	assert.True(t, r.StepWhileTimeIs(1))
	assert.True(t, r.StepWhileTimeIs(2))

	_, ok = r.Time()
	assert.False(t, ok, "all entries consumed")
}

func TestReplayerMeetOfRemaining(t *testing.T) {
	entries := []replay.Entry[string, lattice.Nat, diff.Int]{
		{Value: "a", Time: 5, Diff: 1},
		{Value: "a", Time: 2, Diff: 1},
		{Value: "a", Time: 8, Diff: 1},
	}

	r := replay.New[string, lattice.Nat, diff.Int](entries, strLess, natLess)

	m, ok := r.Meet()
	require.True(t, ok)
	assert.Equal(t, lattice.Nat(2), m)

	r.StepWhileTimeIs(2)
	m, ok = r.Meet()
	require.True(t, ok)
	assert.Equal(t, lattice.Nat(5), m)
}

func TestReplayerMeetEmptyIsNotOk(t *testing.T) {
	r := replay.New[string, lattice.Nat, diff.Int](nil, strLess, natLess)

	_, ok := r.Meet()
	assert.False(t, ok)

	_, ok = r.Time()
	assert.False(t, ok)
}

func TestReplayerAdvanceBufferByConsolidates(t *testing.T) {
	entries := []replay.Entry[string, lattice.Nat, diff.Int]{
		{Value: "a", Time: 1, Diff: 1},
		{Value: "a", Time: 3, Diff: 1},
	}

	r := replay.New[string, lattice.Nat, diff.Int](entries, strLess, natLess)
	r.StepWhileTimeIs(1)
	r.StepWhileTimeIs(3)

	require.Len(t, r.Buffer(), 2)

	r.AdvanceBufferBy(lattice.Nat(5))

	buf := r.Buffer()
	require.Len(t, buf, 1, "both entries join to the same time and consolidate into one")
	assert.Equal(t, lattice.Nat(5), buf[0].Time)
	assert.Equal(t, diff.Int(2), buf[0].Diff)
}

func TestReplayerAdvanceBufferByDropsZero(t *testing.T) {
	entries := []replay.Entry[string, lattice.Nat, diff.Int]{
		{Value: "a", Time: 1, Diff: 1},
		{Value: "a", Time: 3, Diff: -1},
	}

	r := replay.New[string, lattice.Nat, diff.Int](entries, strLess, natLess)
	r.StepWhileTimeIs(1)
	r.StepWhileTimeIs(3)
	r.AdvanceBufferBy(lattice.Nat(5))

	assert.Empty(t, r.Buffer())
}
