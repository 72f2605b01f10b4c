package reduce

import (
	"fmt"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/trace"
)

// ThreshFunc computes the output value and signed delta for a key given the
// new accumulated count and, if one was previously produced, the old count.
// A zero delta means nothing is emitted this step. It mirrors the core
// reducer's Logic but specialized to the single-accumulator shape the
// totally-ordered fast path affords. The fast path only applies to
// diff.Int-valued collections: its whole premise is that a key's
// accumulation collapses to one running integer count.
type ThreshFunc[K any, O any] func(key K, newCount int64, oldCount *int64) (value O, delta diff.Int)

// Threshold is the totally-ordered fast path: when T is totally ordered, a
// key's accumulation at any time is a single running count, so no history
// replay or synthetic-time bookkeeping is needed — just a forward walk of
// each batch's map_times in time order.
type Threshold[K any, V any, T lattice.Total[T], O any] struct {
	source *trace.MemTrace[K, V, T, diff.Int]
	output *trace.MemTrace[K, O, T, diff.Int]
	thresh ThreshFunc[K, O]

	keyLess  func(a, b K) bool
	outLess  func(a, b O) bool
	timeLess func(a, b T) bool

	counts map[string]int64
	seen   map[string]bool
	keyOf  func(k K) string

	lower lattice.Antichain[T]
}

// ThresholdConfig groups a Threshold's comparators and logic.
type ThresholdConfig[K any, V any, T lattice.Total[T], O any] struct {
	KeyLess  func(a, b K) bool
	OutLess  func(a, b O) bool
	TimeLess func(a, b T) bool
	Thresh   ThreshFunc[K, O]
	KeyOf    func(k K) string // stable string key used for the running-count map
}

// NewThreshold constructs a Threshold reducer rooted at lower.
func NewThreshold[K any, V any, T lattice.Total[T], O any](
	source *trace.MemTrace[K, V, T, diff.Int],
	lower lattice.Antichain[T],
	cfg ThresholdConfig[K, V, T, O],
) *Threshold[K, V, T, O] {
	output := trace.NewMemTrace[K, O, T, diff.Int](lower, cfg.KeyLess, cfg.OutLess, cfg.TimeLess)

	return &Threshold[K, V, T, O]{
		source:   source,
		output:   output,
		thresh:   cfg.Thresh,
		keyLess:  cfg.KeyLess,
		outLess:  cfg.OutLess,
		timeLess: cfg.TimeLess,
		counts:   make(map[string]int64),
		seen:     make(map[string]bool),
		keyOf:    cfg.KeyOf,
		lower:    lower,
	}
}

// Output returns the maintained output trace.
func (th *Threshold[K, V, T, O]) Output() *trace.MemTrace[K, O, T, diff.Int] {
	return th.output
}

type timedDiff[T any] struct {
	time T
	diff diff.Int
}

// Poll ingests one batch and emits, for each touched key, a single output
// update per (time, diff) the batch contributes, per the §4.6 fast path.
func (th *Threshold[K, V, T, O]) Poll(batch *trace.Batch[K, V, T, diff.Int]) (*trace.Batch[K, O, T, diff.Int], error) {
	upperLimit := batch.Desc.Upper

	if upperLimit.Equal(th.lower) {
		return nil, nil
	}

	if err := th.source.Insert(batch); err != nil {
		return nil, fmt.Errorf("reduce: threshold ingest batch: %w", err)
	}

	builder := trace.NewBuilder[K, O, T, diff.Int](th.keyLess, th.outLess, th.timeLess)

	cur := batch.Cursor()

	for cur.KeyValid() {
		k := cur.Key()
		keyID := th.keyOf(k)

		count := th.counts[keyID]
		hadPrevious := th.seen[keyID]

		var deltas []timedDiff[T]

		for cur.ValValid() {
			cur.MapTimes(func(t T, d diff.Int) {
				deltas = append(deltas, timedDiff[T]{time: t, diff: d})
			})
			cur.StepVal()
		}

		sortByTime(deltas, th.timeLess)

		for _, td := range deltas {
			newCount := count + int64(td.diff)

			var oldPtr *int64
			if hadPrevious {
				oldPtr = &count
			}

			value, delta := th.thresh(k, newCount, oldPtr)
			if !delta.IsZero() {
				builder.Push(k, value, td.time, delta)
			}

			count = newCount
			hadPrevious = true
		}

		th.counts[keyID] = count
		th.seen[keyID] = true
		cur.StepKey()
	}

	var zero T
	since := lattice.New(zero.Bottom())

	outBatch := builder.Done(th.lower, upperLimit, since)
	if err := th.output.Insert(outBatch); err != nil {
		return nil, fmt.Errorf("reduce: threshold seal output batch: %w", err)
	}

	th.source.SetLogicalCompaction(upperLimit)
	th.source.SetPhysicalCompaction(upperLimit)
	th.output.SetLogicalCompaction(upperLimit)
	th.output.SetPhysicalCompaction(upperLimit)

	th.lower = upperLimit

	if outBatch.Len() == 0 {
		return nil, nil
	}

	return outBatch, nil
}

func sortByTime[T any](entries []timedDiff[T], timeLess func(a, b T) bool) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && timeLess(entries[j].time, entries[j-1].time); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}
