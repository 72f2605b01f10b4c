// Package replay implements the per-key value-history replayer: given every
// ((value, time), diff) entry recorded against one key, it buffers and
// releases them in time order so the reducer (internal/reduce) can
// reconstruct the input or output multiset at any evaluation time without
// re-scanning the whole history each round.
package replay

import (
	"slices"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
)

// Entry is one recorded ((value, time), diff) tuple for a single key.
type Entry[V any, T any, D any] struct {
	Value V
	Time  T
	Diff  D
}

// Replayer buffers the history of one key and admits entries into an active
// working buffer in non-decreasing time order.
type Replayer[V any, T lattice.PartialOrder[T], D diff.Semigroup[D]] struct {
	pending []Entry[V, T, D]
	active  []Entry[V, T, D]

	valLess  func(a, b V) bool
	timeLess func(a, b T) bool
}

// New constructs a Replayer over entries, sorted ascending by time. valLess
// and timeLess are the storage-level total orders used to consolidate the
// active buffer; they need not agree with T's semantic PartialOrder.
func New[V any, T lattice.PartialOrder[T], D diff.Semigroup[D]](
	entries []Entry[V, T, D],
	valLess func(a, b V) bool,
	timeLess func(a, b T) bool,
) *Replayer[V, T, D] {
	pending := slices.Clone(entries)
	slices.SortFunc(pending, func(a, b Entry[V, T, D]) int {
		switch {
		case timeLess(a.Time, b.Time):
			return -1
		case timeLess(b.Time, a.Time):
			return 1
		default:
			return 0
		}
	})

	return &Replayer[V, T, D]{pending: pending, valLess: valLess, timeLess: timeLess}
}

// Time returns the next unconsumed time in the pending suffix, and whether
// one remains.
func (r *Replayer[V, T, D]) Time() (T, bool) {
	if len(r.pending) == 0 {
		var zero T
		return zero, false
	}

	return r.pending[0].Time, true
}

// sameTime reports whether a and b are equal under the storage-level total
// order (neither strictly precedes the other).
func (r *Replayer[V, T, D]) sameTime(a, b T) bool {
	return !r.timeLess(a, b) && !r.timeLess(b, a)
}

// StepWhileTimeIs moves every pending entry at time t into the active
// buffer, in encounter order. Reports whether anything moved.
func (r *Replayer[V, T, D]) StepWhileTimeIs(t T) bool {
	moved := false

	for len(r.pending) > 0 && r.sameTime(r.pending[0].Time, t) {
		r.active = append(r.active, r.pending[0])
		r.pending = r.pending[1:]
		moved = true
	}

	return moved
}

// Meet returns the lattice meet of every remaining (not yet stepped) time,
// and whether any remain. An empty pending suffix has no meet; callers
// combining several replayers' meets must skip a (_, false) result rather
// than treating it as a lattice element.
func (r *Replayer[V, T, D]) Meet() (T, bool) {
	if len(r.pending) == 0 {
		var zero T
		return zero, false
	}

	times := make([]T, len(r.pending))
	for i, e := range r.pending {
		times[i] = e.Time
	}

	return lattice.MeetAll(times), true
}

// Buffer returns the current active buffer. The slice is owned by the
// Replayer and must not be mutated by the caller.
func (r *Replayer[V, T, D]) Buffer() []Entry[V, T, D] {
	return r.active
}

// AdvanceBufferBy joins every active entry's time with f and re-consolidates
// entries that become equal under (value, joined time), summing diffs via
// D's Plus and dropping zero results.
func (r *Replayer[V, T, D]) AdvanceBufferBy(f T) {
	for i := range r.active {
		r.active[i].Time = r.active[i].Time.Join(f)
	}

	r.active = Consolidate(r.active, r.valLess, r.timeLess)
}

// Consolidate sorts entries by (value, time) and sums the diffs of entries
// that agree on both, dropping zero results. Exported so the reducer
// (internal/reduce) can apply the same (value, time) consolidation to its
// own output_produced bookkeeping without duplicating the merge logic.
func Consolidate[V any, T any, D diff.Semigroup[D]](
	entries []Entry[V, T, D],
	valLess func(a, b V) bool,
	timeLess func(a, b T) bool,
) []Entry[V, T, D] {
	return consolidateEntries(entries, valLess, timeLess)
}

func consolidateEntries[V any, T any, D diff.Semigroup[D]](
	entries []Entry[V, T, D],
	valLess func(a, b V) bool,
	timeLess func(a, b T) bool,
) []Entry[V, T, D] {
	if len(entries) < 2 {
		return dropZeroEntries(entries)
	}

	slices.SortFunc(entries, func(a, b Entry[V, T, D]) int {
		switch {
		case valLess(a.Value, b.Value):
			return -1
		case valLess(b.Value, a.Value):
			return 1
		case timeLess(a.Time, b.Time):
			return -1
		case timeLess(b.Time, a.Time):
			return 1
		default:
			return 0
		}
	})

	out := entries[:0]

	i := 0
	for i < len(entries) {
		j := i + 1
		sum := entries[i].Diff

		for j < len(entries) &&
			!valLess(entries[i].Value, entries[j].Value) && !valLess(entries[j].Value, entries[i].Value) &&
			!timeLess(entries[i].Time, entries[j].Time) && !timeLess(entries[j].Time, entries[i].Time) {
			sum = sum.Plus(entries[j].Diff)
			j++
		}

		if !sum.IsZero() {
			out = append(out, Entry[V, T, D]{Value: entries[i].Value, Time: entries[i].Time, Diff: sum})
		}

		i = j
	}

	return out
}

func dropZeroEntries[V any, T any, D diff.Semigroup[D]](entries []Entry[V, T, D]) []Entry[V, T, D] {
	out := entries[:0]

	for _, e := range entries {
		if !e.Diff.IsZero() {
			out = append(out, e)
		}
	}

	return out
}
