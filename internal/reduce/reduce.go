// Package reduce implements the reducer operator: the incremental-view-
// maintenance core that, given an arranged input trace and a per-key
// aggregation function, maintains an arranged output trace such that the
// accumulation at every reachable time equals the function applied to the
// accumulated input at that time.
//
// Reducer.Poll ingests a batch of work, runs the aggregation function over
// every key the batch touched, and drains progress to completion, the unit
// of progress being a frontier of abstract time rather than a range of
// commits.
package reduce

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/sortutil"
	"github.com/flowcore/differential/internal/trace"
)

// Logic is the user-supplied per-key aggregation function. It reads input
// as the accumulated input multiset at the evaluation time,
// output as the previously emitted accumulation at that time, and returns
// the signed delta that would bring the accumulation in line with applying
// the reduction to input.
type Logic[K any, V any, D any, O any] func(key K, input []diff.Item[V, D], output []diff.Item[O, D]) []diff.Item[O, D]

// AbelianFunc is the other user-logic shape: given the accumulated input
// multiset at a time, it returns the complete new output multiset rather
// than a delta against the previous one.
type AbelianFunc[K any, V any, D any, O any] func(key K, input []diff.Item[V, D]) []diff.Item[O, D]

// AbelianLogic adapts an AbelianFunc into the delta-form Logic a Reducer
// takes, by negating the previously emitted output and consolidating it
// against the freshly computed one. D must be Abelian here even though
// Logic itself only requires a Semigroup, since negation is exactly the
// step this adapter performs and the core form does not.
func AbelianLogic[K any, V any, D diff.Abelian[D], O any](outLess func(a, b O) bool, f AbelianFunc[K, V, D, O]) Logic[K, V, D, O] {
	return func(key K, input []diff.Item[V, D], output []diff.Item[O, D]) []diff.Item[O, D] {
		merged := f(key, input)

		for _, item := range output {
			merged = append(merged, diff.Item[O, D]{Value: item.Value, Diff: item.Diff.Negate()})
		}

		return diff.Consolidate(merged, diff.Less[O](outLess))
	}
}

// keyTime pairs a key with an interesting time for that key.
type keyTime[K any, T any] struct {
	Key  K
	Time T
}

// Reducer maintains an output trace incrementally from an input trace via
// Logic. It holds a single capability at a time rather than a general
// capability list; see DESIGN.md for why that simplification is safe here.
type Reducer[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D], O any] struct {
	source *trace.MemTrace[K, V, T, D]
	output *trace.MemTrace[K, O, T, D]
	logic  Logic[K, V, D, O]

	keyLess  func(a, b K) bool
	valLess  func(a, b V) bool
	outLess  func(a, b O) bool
	timeLess func(a, b T) bool

	lower       lattice.Antichain[T]
	interesting []keyTime[K, T]

	metrics *Metrics
}

// Config groups the comparators and logic a Reducer needs at construction.
type Config[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D], O any] struct {
	KeyLess  func(a, b K) bool
	ValLess  func(a, b V) bool
	OutLess  func(a, b O) bool
	TimeLess func(a, b T) bool
	Logic    Logic[K, V, D, O]
	Metrics  *Metrics
}

// New constructs a Reducer reading from source and writing a fresh output
// trace, both rooted at lower.
func New[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D], O any](
	source *trace.MemTrace[K, V, T, D],
	lower lattice.Antichain[T],
	cfg Config[K, V, T, D, O],
) *Reducer[K, V, T, D, O] {
	output := trace.NewMemTrace[K, O, T, D](lower, cfg.KeyLess, cfg.OutLess, cfg.TimeLess)

	return &Reducer[K, V, T, D, O]{
		source:   source,
		output:   output,
		logic:    cfg.Logic,
		keyLess:  cfg.KeyLess,
		valLess:  cfg.ValLess,
		outLess:  cfg.OutLess,
		timeLess: cfg.TimeLess,
		lower:    lower,
		metrics:  cfg.Metrics,
	}
}

// Output returns the maintained output trace.
func (r *Reducer[K, V, T, D, O]) Output() *trace.MemTrace[K, O, T, D] {
	return r.output
}

// Interesting reports the number of (key, time) pairs still carried between
// rounds. A drained reducer has this reach zero once no batch will ever
// touch a previously flagged time again.
func (r *Reducer[K, V, T, D, O]) Interesting() int {
	return len(r.interesting)
}

// Poll ingests one newly sealed input batch and runs one round of the
// incremental reduction algorithm, returning the output batch it seals (nil
// if the round produced no output updates, e.g. an empty-progress round).
func (r *Reducer[K, V, T, D, O]) Poll(ctx context.Context, batch *trace.Batch[K, V, T, D]) (*trace.Batch[K, O, T, D], error) {
	ctx, endSpan := r.metrics.startRound(ctx)

	var batchesSealed, keysTouched, carriedOver, exposedCount int

	defer func() {
		endSpan(
			attribute.Int("round.keys_touched", keysTouched),
			attribute.Int("round.interesting_carried_over", carriedOver),
			attribute.Int("round.interesting_exposed", exposedCount),
			attribute.Int("round.batches_sealed", batchesSealed),
		)
	}()

	upperLimit := batch.Desc.Upper

	if upperLimit.Equal(r.lower) {
		return nil, nil
	}

	if err := r.source.Insert(batch); err != nil {
		return nil, fmt.Errorf("reduce: ingest batch: %w", err)
	}

	carryOver, exposed := r.partitionInteresting(upperLimit)
	carriedOver, exposedCount = len(carryOver), len(exposed)

	sourceCursor, _, ok := r.source.CursorThrough(r.lower)
	if !ok {
		return nil, fmt.Errorf("reduce: source cursor_through(%v) returned none: scheduling invariant violated", r.lower)
	}

	outputCursor, _, ok := r.output.CursorThrough(r.lower)
	if !ok {
		return nil, fmt.Errorf("reduce: output cursor_through(%v) returned none: scheduling invariant violated", r.lower)
	}

	batchCursor := batch.Cursor()

	builder := trace.NewBuilder[K, O, T, D](r.keyLess, r.outLess, r.timeLess)

	merged := r.mergeKeys(exposed, batch)

	exposedIdx := 0

	var newInteresting []keyTime[K, T]

	for _, k := range merged {
		var times []T
		for exposedIdx < len(exposed) && !r.keyLess(exposed[exposedIdx].Key, k) && !r.keyLess(k, exposed[exposedIdx].Key) {
			times = append(times, exposed[exposedIdx].Time)
			exposedIdx++
		}

		keysTouched++
		start := time.Now()
		out, nextInteresting := r.computeKey(k, times, sourceCursor, outputCursor, batchCursor, upperLimit)
		r.metrics.observeKeyCompute(ctx, time.Since(start))

		for _, item := range out {
			builder.Push(k, item.Value, item.Time, item.Diff)
		}

		for _, t := range nextInteresting {
			newInteresting = append(newInteresting, keyTime[K, T]{Key: k, Time: t})
		}
	}

	var zero T
	since := lattice.New(zero.Bottom())

	outBatch := builder.Done(r.lower, upperLimit, since)
	if err := r.output.Insert(outBatch); err != nil {
		return nil, fmt.Errorf("reduce: seal output batch: %w", err)
	}

	nextRound := append(carryOver, newInteresting...)

	r.interesting = sortutil.SortDedup(nextRound, func(a, b keyTime[K, T]) bool {
		if r.keyLess(a.Key, b.Key) {
			return true
		}
		if r.keyLess(b.Key, a.Key) {
			return false
		}
		return r.timeLess(a.Time, b.Time)
	})

	r.source.SetLogicalCompaction(upperLimit)
	r.source.SetPhysicalCompaction(upperLimit)
	r.output.SetLogicalCompaction(upperLimit)
	r.output.SetPhysicalCompaction(upperLimit)

	r.lower = upperLimit

	if outBatch.Len() == 0 {
		return nil, nil
	}

	batchesSealed = 1

	return outBatch, nil
}

// partitionInteresting splits r.interesting (after sort_dedup) into pairs
// already at or beyond upperLimit (carried to next round unchanged) and
// pairs strictly below it (exposed for processing this round).
func (r *Reducer[K, V, T, D, O]) partitionInteresting(upperLimit lattice.Antichain[T]) ([]keyTime[K, T], []keyTime[K, T]) {
	deduped := sortutil.SortDedup(r.interesting, func(a, b keyTime[K, T]) bool {
		if r.keyLess(a.Key, b.Key) {
			return true
		}
		if r.keyLess(b.Key, a.Key) {
			return false
		}
		return r.timeLess(a.Time, b.Time)
	})

	var carryOver, exposed []keyTime[K, T]

	for _, kt := range deduped {
		if upperLimit.LessEqual(kt.Time) {
			carryOver = append(carryOver, kt)
		} else {
			exposed = append(exposed, kt)
		}
	}

	return carryOver, exposed
}

// mergeKeys returns the ascending, deduped union of every key appearing in
// exposed (already sorted by key then time) and every key present in batch.
func (r *Reducer[K, V, T, D, O]) mergeKeys(exposed []keyTime[K, T], batch *trace.Batch[K, V, T, D]) []K {
	var keys []K

	for i, kt := range exposed {
		if i == 0 || r.keyLess(exposed[i-1].Key, kt.Key) {
			keys = append(keys, kt.Key)
		}
	}

	walk := batch.Cursor()
	for walk.KeyValid() {
		keys = append(keys, walk.Key())
		walk.StepKey()
	}

	return sortutil.SortDedup(keys, r.keyLess)
}
