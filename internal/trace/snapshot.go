package trace

import (
	"fmt"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
)

// Snapshot flattens every update recorded in the trace, from its root up to
// its current Upper, into a single ordered list. It discards batch
// boundaries and compaction history: a trace rebuilt from this list with
// Restore is logically equivalent to the original (same accumulation at
// every time still at or above Upper) but may reseal the same content into
// a different batch layout.
func (mt *MemTrace[K, V, T, D]) Snapshot() []Update[K, V, T, D] {
	cur, _, ok := mt.CursorThrough(mt.Upper())
	if !ok {
		return nil
	}

	var out []Update[K, V, T, D]

	for cur.KeyValid() {
		k := cur.Key()

		for cur.ValValid() {
			v := cur.Val()
			cur.MapTimes(func(t T, d D) {
				out = append(out, Update[K, V, T, D]{Key: k, Value: v, Time: t, Diff: d})
			})
			cur.StepVal()
		}

		cur.StepKey()
	}

	return out
}

// Restore rebuilds a trace rooted at the empty antichain, sealing updates
// into a single batch whose lower is that empty antichain and whose upper is
// upper. reduce.Restore uses this to reconstruct the source and output
// traces a Reducer captured.
func Restore[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D]](
	upper lattice.Antichain[T],
	updates []Update[K, V, T, D],
	keyLess func(a, b K) bool,
	valLess func(a, b V) bool,
	timeLess func(a, b T) bool,
) (*MemTrace[K, V, T, D], error) {
	var bottom lattice.Antichain[T]

	mt := NewMemTrace[K, V, T, D](bottom, keyLess, valLess, timeLess)

	if upper.Equal(bottom) {
		return mt, nil
	}

	builder := NewBuilder[K, V, T, D](keyLess, valLess, timeLess)
	for _, u := range updates {
		builder.Push(u.Key, u.Value, u.Time, u.Diff)
	}

	batch := builder.Done(bottom, upper, bottom)

	if err := mt.Insert(batch); err != nil {
		return nil, fmt.Errorf("trace: restore: %w", err)
	}

	return mt, nil
}
