package collection

import (
	"context"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/reduce"
	"github.com/flowcore/differential/internal/trace"
)

// Reduce wraps internal/reduce.Reducer: the general per-key aggregation
// path, available whenever T is only partially ordered.
func Reduce[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D], O any](
	src *Collection[K, V, T, D],
	name string,
	logic reduce.Logic[K, V, D, O],
	outLess func(a, b O) bool,
	metrics *reduce.Metrics,
) *Collection[K, O, T, D] {
	r := reduce.New[K, V, T, D, O](src.out, src.lower, reduce.Config[K, V, T, D, O]{
		KeyLess:  src.keyLess,
		ValLess:  src.valLess,
		OutLess:  outLess,
		TimeLess: src.timeLess,
		Logic:    logic,
		Metrics:  metrics,
	})

	out := &Collection[K, O, T, D]{
		name: name, g: src.g,
		keyLess: src.keyLess, valLess: outLess, timeLess: src.timeLess,
		lower:       src.lower,
		out:         r.Output(),
		interesting: r.Interesting,
	}

	var consumed *trace.Batch[K, V, T, D]

	out.step = func(ctx context.Context) (bool, error) {
		in := src.LastBatch()
		if in == nil || in == consumed {
			return false, nil
		}
		consumed = in

		batch, err := r.Poll(ctx, in)
		if err != nil {
			return false, err
		}

		out.lower = in.Desc.Upper
		out.lastBatch = batch

		return batch != nil && batch.Len() > 0, nil
	}

	src.g.register(name, []string{src.name}, out)

	return out
}

// ReduceTotal wraps internal/reduce.Threshold: the totally-ordered fast
// path, available when T additionally satisfies lattice.Total and D is
// diff.Int (the fast path's whole premise is a single running count).
func ReduceTotal[K any, V any, T lattice.Total[T], O any](
	src *Collection[K, V, T, diff.Int],
	name string,
	thresh reduce.ThreshFunc[K, O],
	keyOf func(k K) string,
	outLess func(a, b O) bool,
) *Collection[K, O, T, diff.Int] {
	th := reduce.NewThreshold[K, V, T, O](src.out, src.lower, reduce.ThresholdConfig[K, V, T, O]{
		KeyLess:  src.keyLess,
		OutLess:  outLess,
		TimeLess: src.timeLess,
		Thresh:   thresh,
		KeyOf:    keyOf,
	})

	out := &Collection[K, O, T, diff.Int]{
		name: name, g: src.g,
		keyLess: src.keyLess, valLess: outLess, timeLess: src.timeLess,
		lower: src.lower,
		out:   th.Output(),
	}

	var consumed *trace.Batch[K, V, T, diff.Int]

	out.step = func(ctx context.Context) (bool, error) {
		in := src.LastBatch()
		if in == nil || in == consumed {
			return false, nil
		}
		consumed = in

		batch, err := th.Poll(in)
		if err != nil {
			return false, err
		}

		out.lower = in.Desc.Upper
		out.lastBatch = batch

		return batch != nil && batch.Len() > 0, nil
	}

	src.g.register(name, []string{src.name}, out)

	return out
}

func distinctLogic[K any](_ K, input []diff.Item[struct{}, diff.Int], output []diff.Item[struct{}, diff.Int]) []diff.Item[struct{}, diff.Int] {
	present := len(input) > 0 && input[0].Diff > 0
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

// Distinct collapses each key's accumulated multiplicity to {0,1} presence,
// specializing Reduce to the trivial Logic above — the reduce-to-threshold
// idiom.
func Distinct[K any, T lattice.PartialOrder[T]](
	src *Collection[K, struct{}, T, diff.Int],
	name string,
) *Collection[K, struct{}, T, diff.Int] {
	unitLess := func(struct{}, struct{}) bool { return false }
	return Reduce[K, struct{}, T, diff.Int, struct{}](src, name, distinctLogic[K], unitLess, nil)
}

// DistinctTotal is Distinct specialized to the totally-ordered fast path.
func DistinctTotal[K any, T lattice.Total[T]](
	src *Collection[K, struct{}, T, diff.Int],
	name string,
	keyOf func(k K) string,
) *Collection[K, struct{}, T, diff.Int] {
	unitLess := func(struct{}, struct{}) bool { return false }

	thresh := func(_ K, newCount int64, oldCount *int64) (struct{}, diff.Int) {
		present := newCount > 0
		wasPresent := oldCount != nil && *oldCount > 0

		switch {
		case present && !wasPresent:
			return struct{}{}, 1
		case !present && wasPresent:
			return struct{}{}, -1
		default:
			return struct{}{}, 0
		}
	}

	return ReduceTotal[K, struct{}, T, struct{}](src, name, thresh, keyOf, unitLess)
}
