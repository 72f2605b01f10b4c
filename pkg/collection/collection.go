package collection

import (
	"context"
	"fmt"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/trace"
)

// Collection is one node of a dataflow graph: an arrangement of (K, V)
// pairs changing over T, maintained incrementally batch by batch. Every
// combinator in this package returns a new Collection wired as a
// downstream node of its input(s).
type Collection[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D]] struct {
	name string
	g    *Graph

	out      *trace.MemTrace[K, V, T, D]
	keyLess  func(a, b K) bool
	valLess  func(a, b V) bool
	timeLess func(a, b T) bool

	lower     lattice.Antichain[T]
	lastBatch *trace.Batch[K, V, T, D]
	step      func(ctx context.Context) (bool, error)

	interesting func() int
}

// Name implements Node.
func (c *Collection[K, V, T, D]) Name() string { return c.name }

// Step implements Node: runs one round, producing c's batch for the round
// (if any) from its upstream's latest batch.
func (c *Collection[K, V, T, D]) Step(ctx context.Context) (bool, error) {
	if c.step == nil {
		return false, nil
	}

	return c.step(ctx)
}

// FrontierSize implements engine.Frontiered: the number of incomparable
// times in this collection's current lower frontier, the engine's proxy for
// "one capability" in the capabilities-held metric.
func (c *Collection[K, V, T, D]) FrontierSize() int {
	return len(c.lower.Elements())
}

// InterestingSize implements engine.Instrumented: the size of the
// underlying reducer's interesting set, or 0 for combinators that carry no
// such state (every combinator except Reduce).
func (c *Collection[K, V, T, D]) InterestingSize() int {
	if c.interesting == nil {
		return 0
	}

	return c.interesting()
}

// Output returns the trace this collection has accumulated so far.
func (c *Collection[K, V, T, D]) Output() *trace.MemTrace[K, V, T, D] { return c.out }

// LastBatch returns the batch this collection sealed on the most recent
// round Step ran, or nil if it produced nothing (including rounds before
// the first Step call).
func (c *Collection[K, V, T, D]) LastBatch() *trace.Batch[K, V, T, D] { return c.lastBatch }

// Source constructs a root Collection with no upstream: the caller admits
// batches directly via Push (e.g. the CLI's NDJSON reader, or a test).
func Source[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D]](
	g *Graph,
	name string,
	lower lattice.Antichain[T],
	keyLess func(a, b K) bool,
	valLess func(a, b V) bool,
	timeLess func(a, b T) bool,
) *Collection[K, V, T, D] {
	c := &Collection[K, V, T, D]{
		name:     name,
		g:        g,
		keyLess:  keyLess,
		valLess:  valLess,
		timeLess: timeLess,
		lower:    lower,
		out:      trace.NewMemTrace[K, V, T, D](lower, keyLess, valLess, timeLess),
	}

	g.register(name, nil, c)

	return c
}

// Push admits a newly sealed batch, advancing this collection's frontier.
// batch.Desc.Lower must equal the collection's current upper.
func (c *Collection[K, V, T, D]) Push(batch *trace.Batch[K, V, T, D]) error {
	if err := c.out.Insert(batch); err != nil {
		return fmt.Errorf("collection: push into %q: %w", c.name, err)
	}

	c.lower = batch.Desc.Upper
	c.lastBatch = batch

	return nil
}

func bottomOf[T lattice.PartialOrder[T]]() lattice.Antichain[T] {
	var zero T
	return lattice.New(zero.Bottom())
}

// walkBatch calls visit once per (key, value, time, diff) quadruple in b, in
// cursor order.
func walkBatch[K any, V any, T any, D any](b *trace.Batch[K, V, T, D], visit func(k K, v V, t T, d D)) {
	cur := b.Cursor()
	for cur.KeyValid() {
		for cur.ValValid() {
			k, v := cur.Key(), cur.Val()
			cur.MapTimes(func(t T, d D) { visit(k, v, t, d) })
			cur.StepVal()
		}
		cur.StepKey()
	}
}

// Map applies f to every (key, value) pair, preserving times and diffs.
func Map[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D], K2 any, V2 any](
	src *Collection[K, V, T, D],
	name string,
	f func(key K, val V) (K2, V2),
	key2Less func(a, b K2) bool,
	val2Less func(a, b V2) bool,
) *Collection[K2, V2, T, D] {
	out := &Collection[K2, V2, T, D]{
		name: name, g: src.g,
		keyLess: key2Less, valLess: val2Less, timeLess: src.timeLess,
		lower: src.lower,
		out:   trace.NewMemTrace[K2, V2, T, D](src.lower, key2Less, val2Less, src.timeLess),
	}

	var consumed *trace.Batch[K, V, T, D]

	out.step = func(ctx context.Context) (bool, error) {
		in := src.LastBatch()
		if in == nil || in == consumed {
			return false, nil
		}
		consumed = in

		b := trace.NewBuilder[K2, V2, T, D](key2Less, val2Less, src.timeLess)
		walkBatch(in, func(k K, v V, t T, d D) {
			k2, v2 := f(k, v)
			b.Push(k2, v2, t, d)
		})

		return seal(out, b, in.Desc.Upper)
	}

	src.g.register(name, []string{src.name}, out)

	return out
}

// Filter keeps only the (key, value) pairs for which pred is true.
func Filter[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D]](
	src *Collection[K, V, T, D],
	name string,
	pred func(key K, val V) bool,
) *Collection[K, V, T, D] {
	out := &Collection[K, V, T, D]{
		name: name, g: src.g,
		keyLess: src.keyLess, valLess: src.valLess, timeLess: src.timeLess,
		lower: src.lower,
		out:   trace.NewMemTrace[K, V, T, D](src.lower, src.keyLess, src.valLess, src.timeLess),
	}

	var consumed *trace.Batch[K, V, T, D]

	out.step = func(ctx context.Context) (bool, error) {
		in := src.LastBatch()
		if in == nil || in == consumed {
			return false, nil
		}
		consumed = in

		b := trace.NewBuilder[K, V, T, D](src.keyLess, src.valLess, src.timeLess)
		cur := trace.NewTraceFilter[K, V, T, D](in.Cursor(), pred)

		for cur.KeyValid() {
			for cur.ValValid() {
				k, v := cur.Key(), cur.Val()
				cur.MapTimes(func(t T, d D) { b.Push(k, v, t, d) })
				cur.StepVal()
			}
			cur.StepKey()
		}

		return seal(out, b, in.Desc.Upper)
	}

	src.g.register(name, []string{src.name}, out)

	return out
}

// FlatItem is one output (value, diff) a FlatMap function produces for a
// single input row.
type FlatItem[K2 any, V2 any, D any] struct {
	Key  K2
	Val  V2
	Diff D
}

// FlatMap applies f to every (key, value, diff) triple, which may expand
// into zero, one, or many output rows at the same time.
func FlatMap[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D], K2 any, V2 any](
	src *Collection[K, V, T, D],
	name string,
	f func(key K, val V, d D) []FlatItem[K2, V2, D],
	key2Less func(a, b K2) bool,
	val2Less func(a, b V2) bool,
) *Collection[K2, V2, T, D] {
	out := &Collection[K2, V2, T, D]{
		name: name, g: src.g,
		keyLess: key2Less, valLess: val2Less, timeLess: src.timeLess,
		lower: src.lower,
		out:   trace.NewMemTrace[K2, V2, T, D](src.lower, key2Less, val2Less, src.timeLess),
	}

	var consumed *trace.Batch[K, V, T, D]

	out.step = func(ctx context.Context) (bool, error) {
		in := src.LastBatch()
		if in == nil || in == consumed {
			return false, nil
		}
		consumed = in

		b := trace.NewBuilder[K2, V2, T, D](key2Less, val2Less, src.timeLess)
		walkBatch(in, func(k K, v V, t T, d D) {
			for _, item := range f(k, v, d) {
				b.Push(item.Key, item.Val, t, item.Diff)
			}
		})

		return seal(out, b, in.Desc.Upper)
	}

	src.g.register(name, []string{src.name}, out)

	return out
}

// Negate flips the sign of every diff, the building block behind the
// negate+X→empty round-trip law and the "retract everything" idiom used
// when rewriting a prior output.
func Negate[K any, V any, T lattice.PartialOrder[T], D diff.Abelian[D]](
	src *Collection[K, V, T, D],
	name string,
) *Collection[K, V, T, D] {
	out := &Collection[K, V, T, D]{
		name: name, g: src.g,
		keyLess: src.keyLess, valLess: src.valLess, timeLess: src.timeLess,
		lower: src.lower,
		out:   trace.NewMemTrace[K, V, T, D](src.lower, src.keyLess, src.valLess, src.timeLess),
	}

	var consumed *trace.Batch[K, V, T, D]

	out.step = func(ctx context.Context) (bool, error) {
		in := src.LastBatch()
		if in == nil || in == consumed {
			return false, nil
		}
		consumed = in

		b := trace.NewBuilder[K, V, T, D](src.keyLess, src.valLess, src.timeLess)
		walkBatch(in, func(k K, v V, t T, d D) {
			b.Push(k, v, t, d.Negate())
		})

		return seal(out, b, in.Desc.Upper)
	}

	src.g.register(name, []string{src.name}, out)

	return out
}

// Concat fans two same-typed collections into one, merging whichever of
// them produced a batch this round through a single builder — the same
// effect trace.fuseCursors achieves for a read-side multi-batch cursor,
// applied here on the write side since Concat operates batch-by-batch
// rather than over a persistent arrangement.
func Concat[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D]](
	name string,
	a, b *Collection[K, V, T, D],
) *Collection[K, V, T, D] {
	out := &Collection[K, V, T, D]{
		name: name, g: a.g,
		keyLess: a.keyLess, valLess: a.valLess, timeLess: a.timeLess,
		lower: a.lower,
		out:   trace.NewMemTrace[K, V, T, D](a.lower, a.keyLess, a.valLess, a.timeLess),
	}

	var consumedA, consumedB *trace.Batch[K, V, T, D]

	out.step = func(ctx context.Context) (bool, error) {
		ba, bb := a.LastBatch(), b.LastBatch()
		if ba == consumedA {
			ba = nil
		}
		if bb == consumedB {
			bb = nil
		}
		if ba == nil && bb == nil {
			return false, nil
		}
		consumedA, consumedB = a.LastBatch(), b.LastBatch()

		var upper lattice.Antichain[T]

		switch {
		case ba != nil && bb != nil:
			if !ba.Desc.Upper.Equal(bb.Desc.Upper) {
				return false, fmt.Errorf("collection: concat %q: inputs sealed to different frontiers", name)
			}
			upper = ba.Desc.Upper
		case ba != nil:
			upper = ba.Desc.Upper
		default:
			upper = bb.Desc.Upper
		}

		bld := trace.NewBuilder[K, V, T, D](a.keyLess, a.valLess, a.timeLess)

		if ba != nil {
			walkBatch(ba, func(k K, v V, t T, d D) { bld.Push(k, v, t, d) })
		}

		if bb != nil {
			walkBatch(bb, func(k K, v V, t T, d D) { bld.Push(k, v, t, d) })
		}

		return seal(out, bld, upper)
	}

	a.g.register(name, []string{a.name, b.name}, out)

	return out
}

func seal[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D]](
	out *Collection[K, V, T, D],
	b *trace.Builder[K, V, T, D],
	upper lattice.Antichain[T],
) (bool, error) {
	batch := b.Done(out.lower, upper, bottomOf[T]())
	if err := out.out.Insert(batch); err != nil {
		return false, fmt.Errorf("collection: seal %q: %w", out.name, err)
	}

	out.lower = upper
	out.lastBatch = batch

	return batch.Len() > 0, nil
}

// Probe attaches a frontier observer: onAdvance is called with the
// collection's new upper every round it progresses, for
// introspection/testing (e.g. watching for a graph reaching fixpoint).
func Probe[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D]](
	src *Collection[K, V, T, D],
	name string,
	onAdvance func(upper lattice.Antichain[T]),
) *Collection[K, V, T, D] {
	out := &Collection[K, V, T, D]{
		name: name, g: src.g,
		keyLess: src.keyLess, valLess: src.valLess, timeLess: src.timeLess,
		lower: src.lower,
		out:   trace.NewMemTrace[K, V, T, D](src.lower, src.keyLess, src.valLess, src.timeLess),
	}

	var consumed *trace.Batch[K, V, T, D]

	out.step = func(ctx context.Context) (bool, error) {
		in := src.LastBatch()
		if in == nil || in == consumed {
			return false, nil
		}
		consumed = in

		b := trace.NewBuilder[K, V, T, D](src.keyLess, src.valLess, src.timeLess)
		walkBatch(in, func(k K, v V, t T, d D) { b.Push(k, v, t, d) })

		progressed, err := seal(out, b, in.Desc.Upper)
		if err != nil {
			return false, err
		}

		if onAdvance != nil {
			onAdvance(out.lower)
		}

		return progressed, nil
	}

	src.g.register(name, []string{src.name}, out)

	return out
}
