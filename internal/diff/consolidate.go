package diff

import "slices"

// Less orders values of type V. Consolidate and the ordered index layers
// above (internal/trace, internal/replay) all take an explicit Less rather
// than requiring V to satisfy cmp.Ordered, since keys and values in the
// reducer are caller-defined record types, not just builtin scalars.
type Less[V any] func(a, b V) bool

// Consolidate sorts items by value (ascending, per Less) and sums the diffs
// of equal values, dropping results that consolidate to zero. It mutates
// and returns a prefix of items, following the slices idiom of reusing the
// input's backing array.
//
// The source this is ported from applies dedup before sorting
// (dedup; sort; dedup) — a leftover of how its interesting-time lists grew
// incrementally. That only cancels identical *adjacent* entries, so when
// dedup is called against still-unsorted input the first pass catches
// nothing: it is equivalent to a single sort+dedup pass, and only depends
// on sort being stable is it not even needed. We use the canonical
// sort; dedup order here and throughout the engine.
func Consolidate[V any, D Semigroup[D]](items []Item[V, D], less Less[V]) []Item[V, D] {
	if len(items) < 2 {
		return dropZero(items)
	}

	slices.SortFunc(items, func(a, b Item[V, D]) int {
		switch {
		case less(a.Value, b.Value):
			return -1
		case less(b.Value, a.Value):
			return 1
		default:
			return 0
		}
	})

	out := items[:0]

	i := 0
	for i < len(items) {
		j := i + 1
		sum := items[i].Diff

		for j < len(items) && !less(items[i].Value, items[j].Value) && !less(items[j].Value, items[i].Value) {
			sum = sum.Plus(items[j].Diff)
			j++
		}

		if !sum.IsZero() {
			out = append(out, Item[V, D]{Value: items[i].Value, Diff: sum})
		}

		i = j
	}

	return out
}

// dropZero removes zero-diff entries without sorting, the fast path for the
// 0- and 1-element cases where no two entries could combine.
func dropZero[V any, D Semigroup[D]](items []Item[V, D]) []Item[V, D] {
	out := items[:0]

	for _, it := range items {
		if !it.Diff.IsZero() {
			out = append(out, it)
		}
	}

	return out
}
