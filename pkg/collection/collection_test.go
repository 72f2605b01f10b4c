package collection_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/trace"
	"github.com/flowcore/differential/pkg/collection"
)

func strLess(a, b string) bool { return a < b }

func natLess(a, b lattice.Nat) bool { return a < b }

func oneRound(t *testing.T, nodes []collection.Node) {
	t.Helper()

	for _, n := range nodes {
		_, err := n.Step(context.Background())
		require.NoError(t, err)
	}
}

func accumulate(b *trace.Batch[string, string, lattice.Nat, diff.Int]) map[string]int64 {
	out := map[string]int64{}
	if b == nil {
		return out
	}

	cur := b.Cursor()
	for cur.KeyValid() {
		for cur.ValValid() {
			k, v := cur.Key(), cur.Val()
			cur.MapTimes(func(_ lattice.Nat, d diff.Int) {
				out[k+"/"+v] += int64(d)
			})
			cur.StepVal()
		}
		cur.StepKey()
	}

	return out
}

func TestNegatePlusSourceCancelsToEmpty(t *testing.T) {
	g := collection.NewGraph()
	lower := lattice.New(lattice.Nat(0))

	src := collection.Source[string, string, lattice.Nat, diff.Int](g, "src", lower, strLess, strLess, natLess)
	neg := collection.Negate[string, string, lattice.Nat, diff.Int](src, "neg")
	sum := collection.Concat[string, string, lattice.Nat, diff.Int]("sum", src, neg)

	nodes, err := g.Compile()
	require.NoError(t, err)

	b := trace.NewBuilder[string, string, lattice.Nat, diff.Int](strLess, strLess, natLess)
	b.Push("a", "x", lattice.Nat(0), diff.Int(1))
	b.Push("b", "y", lattice.Nat(0), diff.Int(2))
	upper := lattice.New(lattice.Nat(1))
	require.NoError(t, src.Push(b.Done(lower, upper, lower)))

	oneRound(t, nodes)

	got := accumulate(sum.LastBatch())
	assert.Empty(t, got, "X plus its negation must cancel to nothing")
}

func TestConcatOfComplementaryFiltersEqualsSource(t *testing.T) {
	g := collection.NewGraph()
	lower := lattice.New(lattice.Nat(0))

	src := collection.Source[string, string, lattice.Nat, diff.Int](g, "src", lower, strLess, strLess, natLess)
	isA := collection.Filter[string, string, lattice.Nat, diff.Int](src, "isA", func(k, v string) bool { return k == "a" })
	notA := collection.Filter[string, string, lattice.Nat, diff.Int](src, "notA", func(k, v string) bool { return k != "a" })
	rejoined := collection.Concat[string, string, lattice.Nat, diff.Int]("rejoined", isA, notA)

	nodes, err := g.Compile()
	require.NoError(t, err)

	b := trace.NewBuilder[string, string, lattice.Nat, diff.Int](strLess, strLess, natLess)
	b.Push("a", "x", lattice.Nat(0), diff.Int(1))
	b.Push("b", "y", lattice.Nat(0), diff.Int(2))
	b.Push("c", "z", lattice.Nat(0), diff.Int(3))
	upper := lattice.New(lattice.Nat(1))
	require.NoError(t, src.Push(b.Done(lower, upper, lower)))

	oneRound(t, nodes)

	want := accumulate(src.LastBatch())
	got := accumulate(rejoined.LastBatch())
	assert.Equal(t, want, got, "concat(filter(p), filter(not p)) must reconstruct the source exactly")
}

func unitLess(struct{}, struct{}) bool { return false }

func distinctLikeLogic(_ string, input []diff.Item[struct{}, diff.Int], output []diff.Item[struct{}, diff.Int]) []diff.Item[struct{}, diff.Int] {
	present := len(input) > 0 && !input[0].Diff.IsZero()
	wasPresent := len(output) > 0

	switch {
	case present && !wasPresent:
		return []diff.Item[struct{}, diff.Int]{{Value: struct{}{}, Diff: 1}}
	case !present && wasPresent:
		return []diff.Item[struct{}, diff.Int]{{Value: struct{}{}, Diff: -1}}
	default:
		return nil
	}
}

func accumulateUnit(b *trace.Batch[string, struct{}, lattice.Nat, diff.Int]) map[string]int64 {
	out := map[string]int64{}
	if b == nil {
		return out
	}

	cur := b.Cursor()
	for cur.KeyValid() {
		k := cur.Key()
		for cur.ValValid() {
			cur.MapTimes(func(_ lattice.Nat, d diff.Int) { out[k] += int64(d) })
			cur.StepVal()
		}
		cur.StepKey()
	}

	return out
}

func TestReduceEnterLeaveMatchesDirectReduce(t *testing.T) {
	lower := lattice.New(lattice.Nat(0))

	seal := func(src *collection.Collection[string, struct{}, lattice.Nat, diff.Int]) {
		b := trace.NewBuilder[string, struct{}, lattice.Nat, diff.Int](strLess, unitLess, natLess)
		b.Push("a", struct{}{}, lattice.Nat(0), diff.Int(1))
		b.Push("a", struct{}{}, lattice.Nat(0), diff.Int(1))
		b.Push("b", struct{}{}, lattice.Nat(0), diff.Int(1))
		upper := lattice.New(lattice.Nat(1))
		require.NoError(t, src.Push(b.Done(lower, upper, lower)))
	}

	// Direct reduce.
	gDirect := collection.NewGraph()
	srcDirect := collection.Source[string, struct{}, lattice.Nat, diff.Int](gDirect, "src", lower, strLess, unitLess, natLess)
	reducedDirect := collection.Reduce[string, struct{}, lattice.Nat, diff.Int, struct{}](srcDirect, "reduced", distinctLikeLogic, unitLess, nil)
	nodesDirect, err := gDirect.Compile()
	require.NoError(t, err)
	seal(srcDirect)
	oneRound(t, nodesDirect)

	// reduce(enter(leave(X))).
	gRound := collection.NewGraph()
	srcRound := collection.Source[string, struct{}, lattice.Nat, diff.Int](gRound, "src", lower, strLess, unitLess, natLess)

	var region lattice.RegionRefinement[lattice.Nat]
	entered := collection.Enter[string, struct{}, lattice.Nat, lattice.Nat, diff.Int](srcRound, "entered", region, natLess)
	left := collection.Leave[string, struct{}, lattice.Nat, lattice.Nat, diff.Int](entered, "left", region, natLess)
	reducedRound := collection.Reduce[string, struct{}, lattice.Nat, diff.Int, struct{}](left, "reduced", distinctLikeLogic, unitLess, nil)

	nodesRound, err := gRound.Compile()
	require.NoError(t, err)
	seal(srcRound)
	oneRound(t, nodesRound)

	want := accumulateUnit(reducedDirect.LastBatch())
	got := accumulateUnit(reducedRound.LastBatch())
	assert.Equal(t, want, got, "reduce(enter(leave(X))) must equal reduce(X)")
}
