package graphbuild

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/trace"
)

func oneRound(t *testing.T, built *Built) {
	t.Helper()

	order, err := built.Graph.Compile()
	require.NoError(t, err)

	for _, n := range order {
		_, err := n.Step(context.Background())
		require.NoError(t, err)
	}
}

func TestBuildSourceFilterReduceCounts(t *testing.T) {
	specNodes := []nodeSpec{
		{Name: "src", Op: "source"},
		{Name: "positive", Op: "filter", Upstream: upstreamList{"src"}, Params: map[string]string{"predicate": "value > 0"}},
		{Name: "counted", Op: "reduce", Upstream: upstreamList{"positive"}, Params: map[string]string{"logic": "count"}},
	}

	built, err := Build(specNodes)
	require.NoError(t, err)
	require.Same(t, built.Nodes["src"], built.Source)
	require.Same(t, built.Nodes["counted"], built.Sink)

	lower := lattice.New(lattice.Nat(0))
	upper := lattice.New(lattice.Nat(1))

	b := trace.NewBuilder[string, float64, lattice.Nat, diff.Int](strLess, floatLess, natLess)
	b.Push("k1", 1, lattice.Nat(0), diff.Int(1))
	b.Push("k1", 1, lattice.Nat(0), diff.Int(1))
	b.Push("k2", -5, lattice.Nat(0), diff.Int(1))

	require.NoError(t, built.Source.Push(b.Done(lower, upper, lower)))

	oneRound(t, built)

	out := built.Sink.LastBatch()
	require.NotNil(t, out)

	cur := out.Cursor()

	found := map[string]float64{}

	for cur.KeyValid() {
		for cur.ValValid() {
			k, v := cur.Key(), cur.Val()
			cur.MapTimes(func(_ lattice.Nat, d diff.Int) {
				if d > 0 {
					found[k] = v
				}
			})
			cur.StepVal()
		}
		cur.StepKey()
	}

	assert.Equal(t, map[string]float64{"k1": 2}, found, "only k1's two positive-valued rows survive the filter")
}

func TestBuildRejectsUnknownOperator(t *testing.T) {
	_, err := Build([]nodeSpec{{Name: "src", Op: "not_a_real_operator"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownOp)
}

func TestBuildRejectsUnknownUpstream(t *testing.T) {
	specNodes := []nodeSpec{
		{Name: "src", Op: "source"},
		{Name: "orphan", Op: "negate", Upstream: upstreamList{"does-not-exist"}},
	}

	_, err := Build(specNodes)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownUpstream)
}

func TestBuildRejectsMissingSource(t *testing.T) {
	_, err := Build(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestFilterPredRejectsMalformedExpression(t *testing.T) {
	_, err := filterPred("value squiggly 3")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadParam)
}
