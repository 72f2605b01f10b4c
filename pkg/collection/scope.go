package collection

import (
	"context"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/trace"
)

func mapAntichain[Outer lattice.PartialOrder[Outer], Inner lattice.PartialOrder[Inner]](
	ac lattice.Antichain[Outer],
	f func(Outer) Inner,
) lattice.Antichain[Inner] {
	elems := ac.Elements()
	mapped := make([]Inner, len(elems))

	for i, e := range elems {
		mapped[i] = f(e)
	}

	return lattice.New(mapped...)
}

// Enter pushes a collection into a nested scope by refining its times from
// Outer to Inner (e.g. pairing a fixed outer time with an inner iteration
// counter starting at the lattice bottom, per lattice.ProductRefinement).
// Built on trace.TraceLeave, which performs exactly this Outer->Inner
// remapping despite the name mismatch with this operator — see the type's
// doc comment.
func Enter[K any, V any, Outer lattice.PartialOrder[Outer], Inner lattice.PartialOrder[Inner], D diff.Semigroup[D]](
	src *Collection[K, V, Outer, D],
	name string,
	refinement lattice.Refinement[Outer, Inner],
	innerLess func(a, b Inner) bool,
) *Collection[K, V, Inner, D] {
	innerLower := mapAntichain[Outer, Inner](src.lower, refinement.ToInner)

	out := &Collection[K, V, Inner, D]{
		name: name, g: src.g,
		keyLess: src.keyLess, valLess: src.valLess, timeLess: innerLess,
		lower: innerLower,
		out:   trace.NewMemTrace[K, V, Inner, D](innerLower, src.keyLess, src.valLess, innerLess),
	}

	var consumed *trace.Batch[K, V, Outer, D]

	out.step = func(ctx context.Context) (bool, error) {
		in := src.LastBatch()
		if in == nil || in == consumed {
			return false, nil
		}

		consumed = in

		b := trace.NewBuilder[K, V, Inner, D](src.keyLess, src.valLess, innerLess)
		cur := trace.NewTraceLeave[Outer, Inner, K, V, D](in.Cursor(), refinement)

		for cur.KeyValid() {
			for cur.ValValid() {
				k, v := cur.Key(), cur.Val()
				cur.MapTimes(func(t Inner, d D) { b.Push(k, v, t, d) })
				cur.StepVal()
			}
			cur.StepKey()
		}

		upper := mapAntichain[Outer, Inner](in.Desc.Upper, refinement.ToInner)

		return seal(out, b, upper)
	}

	src.g.register(name, []string{src.name}, out)

	return out
}

// Leave pulls a nested-scope collection back out by mapping its Inner times
// through refinement.ToOuter. Built on trace.TraceEnter, which performs
// exactly this Inner->Outer remapping.
func Leave[K any, V any, Outer lattice.PartialOrder[Outer], Inner lattice.PartialOrder[Inner], D diff.Semigroup[D]](
	src *Collection[K, V, Inner, D],
	name string,
	refinement lattice.Refinement[Outer, Inner],
	outerLess func(a, b Outer) bool,
) *Collection[K, V, Outer, D] {
	outerLower := mapAntichain[Inner, Outer](src.lower, refinement.ToOuter)

	out := &Collection[K, V, Outer, D]{
		name: name, g: src.g,
		keyLess: src.keyLess, valLess: src.valLess, timeLess: outerLess,
		lower: outerLower,
		out:   trace.NewMemTrace[K, V, Outer, D](outerLower, src.keyLess, src.valLess, outerLess),
	}

	var consumed *trace.Batch[K, V, Inner, D]

	out.step = func(ctx context.Context) (bool, error) {
		in := src.LastBatch()
		if in == nil || in == consumed {
			return false, nil
		}

		consumed = in

		b := trace.NewBuilder[K, V, Outer, D](src.keyLess, src.valLess, outerLess)
		cur := trace.NewTraceEnter[Outer, Inner, K, V, D](in.Cursor(), refinement)

		for cur.KeyValid() {
			for cur.ValValid() {
				k, v := cur.Key(), cur.Val()
				cur.MapTimes(func(t Outer, d D) { b.Push(k, v, t, d) })
				cur.StepVal()
			}
			cur.StepKey()
		}

		upper := mapAntichain[Inner, Outer](in.Desc.Upper, refinement.ToOuter)

		return seal(out, b, upper)
	}

	src.g.register(name, []string{src.name}, out)

	return out
}
