package trace

import (
	"slices"

	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/sortutil"
)

// TimeDiff is one (time, diff) entry recorded against a (key, value) pair.
type TimeDiff[T any, D any] struct {
	Time T
	Diff D
}

// Update is one input tuple to a Builder: ((key, value), time, diff).
type Update[K any, V any, T any, D any] struct {
	Key   K
	Value V
	Time  T
	Diff  D
}

// valueEntry is one value and every (time, diff) recorded against it within
// a single key, batch-local.
type valueEntry[V any, T any, D any] struct {
	Value   V
	Entries []TimeDiff[T, D]
}

// keyEntry is one key and its values, sorted ascending by value.
type keyEntry[K any, V any, T any, D any] struct {
	Key    K
	Values []valueEntry[V, T, D]
}

// Batch is an immutable collection of updates covering Desc.Lower..Desc.Upper,
// indexed key-then-value for cursor navigation. Batches are produced by a
// Builder and shared read-only across every consumer.
type Batch[K any, V any, T lattice.PartialOrder[T], D any] struct {
	Desc Description[T]
	keys []keyEntry[K, V, T, D]

	keyLess  sortutil.Less[K]
	valLess  sortutil.Less[V]
	timeLess sortutil.Less[T]
}

// Len reports the number of distinct keys in the batch.
func (b *Batch[K, V, T, D]) Len() int {
	if b == nil {
		return 0
	}

	return len(b.keys)
}

// Cursor returns a fresh cursor over the batch, rewound to the first key.
func (b *Batch[K, V, T, D]) Cursor() Cursor[K, V, T, D] {
	if b == nil {
		return &batchCursor[K, V, T, D]{}
	}

	return &batchCursor[K, V, T, D]{batch: b}
}

// batchCursor walks a Batch in key-then-value order.
type batchCursor[K any, V any, T lattice.PartialOrder[T], D any] struct {
	batch *Batch[K, V, T, D]
	ki    int
	vi    int
}

func (c *batchCursor[K, V, T, D]) KeyValid() bool {
	return c.batch != nil && c.ki < len(c.batch.keys)
}

func (c *batchCursor[K, V, T, D]) Key() K {
	return c.batch.keys[c.ki].Key
}

func (c *batchCursor[K, V, T, D]) ValValid() bool {
	return c.KeyValid() && c.vi < len(c.batch.keys[c.ki].Values)
}

func (c *batchCursor[K, V, T, D]) Val() V {
	return c.batch.keys[c.ki].Values[c.vi].Value
}

func (c *batchCursor[K, V, T, D]) StepKey() {
	c.ki++
	c.vi = 0
}

func (c *batchCursor[K, V, T, D]) SeekKey(key K) {
	for c.KeyValid() && c.batch.keyLess(c.Key(), key) {
		c.ki++
	}

	c.vi = 0
}

func (c *batchCursor[K, V, T, D]) StepVal() {
	c.vi++
}

func (c *batchCursor[K, V, T, D]) SeekVal(val V) {
	for c.ValValid() && c.batch.valLess(c.Val(), val) {
		c.vi++
	}
}

func (c *batchCursor[K, V, T, D]) MapTimes(f func(t T, d D)) {
	if !c.ValValid() {
		return
	}

	for _, td := range c.batch.keys[c.ki].Values[c.vi].Entries {
		f(td.Time, td.Diff)
	}
}

func (c *batchCursor[K, V, T, D]) RewindKeys() {
	c.ki = 0
	c.vi = 0
}

func (c *batchCursor[K, V, T, D]) RewindVals() {
	c.vi = 0
}

// cloneKeys deep-copies the key/value/time index, used when a trace merges a
// newly appended batch's entries into its own backing store.
func cloneKeys[K any, V any, T any, D any](keys []keyEntry[K, V, T, D]) []keyEntry[K, V, T, D] {
	out := make([]keyEntry[K, V, T, D], len(keys))

	for i, ke := range keys {
		values := make([]valueEntry[V, T, D], len(ke.Values))

		for j, ve := range ke.Values {
			entries := slices.Clone(ve.Entries)
			values[j] = valueEntry[V, T, D]{Value: ve.Value, Entries: entries}
		}

		out[i] = keyEntry[K, V, T, D]{Key: ke.Key, Values: values}
	}

	return out
}
