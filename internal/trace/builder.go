package trace

import (
	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/sortutil"
)

// Builder accumulates updates and seals them into an immutable Batch. It is
// the writer side of the external builder contract: callers push updates in
// any order, then call Done with the half-open time interval the resulting
// batch covers.
type Builder[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D]] struct {
	keyLess  sortutil.Less[K]
	valLess  sortutil.Less[V]
	timeLess sortutil.Less[T]

	updates []Update[K, V, T, D]
}

// NewBuilder constructs a Builder. keyLess and valLess order keys and values
// for batch indexing; timeLess is a deterministic storage-level total order
// over T used only to make batch layout reproducible — it is unrelated to
// T's semantic PartialOrder.
func NewBuilder[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D]](
	keyLess sortutil.Less[K],
	valLess sortutil.Less[V],
	timeLess sortutil.Less[T],
) *Builder[K, V, T, D] {
	return &Builder[K, V, T, D]{keyLess: keyLess, valLess: valLess, timeLess: timeLess}
}

// Push records one update. Order of pushes does not matter.
func (b *Builder[K, V, T, D]) Push(key K, val V, t T, d D) {
	b.updates = append(b.updates, Update[K, V, T, D]{Key: key, Value: val, Time: t, Diff: d})
}

// Done seals the accumulated updates into a Batch covering [lower, upper).
// Updates are grouped by key, then by value, then by time; entries sharing a
// (key, value, time) are summed via D's Plus and dropped if the sum is zero.
func (b *Builder[K, V, T, D]) Done(lower, upper, since lattice.Antichain[T]) *Batch[K, V, T, D] {
	type keyGroup struct {
		key     K
		updates []Update[K, V, T, D]
	}

	var groups []keyGroup

	find := func(k K) int {
		for i := range groups {
			if !b.keyLess(groups[i].key, k) && !b.keyLess(k, groups[i].key) {
				return i
			}
		}

		return -1
	}

	for _, u := range b.updates {
		if i := find(u.Key); i >= 0 {
			groups[i].updates = append(groups[i].updates, u)
			continue
		}

		groups = append(groups, keyGroup{key: u.Key, updates: []Update[K, V, T, D]{u}})
	}

	keyLess := b.keyLess
	sortutil.SortDedup(groups, func(a, c keyGroup) bool { return keyLess(a.key, c.key) })

	entries := make([]keyEntry[K, V, T, D], 0, len(groups))

	for _, g := range groups {
		ke := b.buildKeyEntry(g.key, g.updates)
		if len(ke.Values) == 0 {
			continue
		}

		entries = append(entries, ke)
	}

	return &Batch[K, V, T, D]{
		Desc:     Description[T]{Lower: lower, Upper: upper, Since: since},
		keys:     entries,
		keyLess:  b.keyLess,
		valLess:  b.valLess,
		timeLess: b.timeLess,
	}
}

func (b *Builder[K, V, T, D]) buildKeyEntry(key K, updates []Update[K, V, T, D]) keyEntry[K, V, T, D] {
	type valGroup struct {
		value V
		times []diff.Item[T, D]
	}

	var groups []valGroup

	find := func(v V) int {
		for i := range groups {
			if !b.valLess(groups[i].value, v) && !b.valLess(v, groups[i].value) {
				return i
			}
		}

		return -1
	}

	for _, u := range updates {
		item := diff.Item[T, D]{Value: u.Time, Diff: u.Diff}

		if i := find(u.Value); i >= 0 {
			groups[i].times = append(groups[i].times, item)
			continue
		}

		groups = append(groups, valGroup{value: u.Value, times: []diff.Item[T, D]{item}})
	}

	valLess := b.valLess
	sortutil.SortDedup(groups, func(a, c valGroup) bool { return valLess(a.value, c.value) })

	valueEntries := make([]valueEntry[V, T, D], 0, len(groups))

	timeLess := diff.Less[T](b.timeLess)

	for _, g := range groups {
		consolidated := diff.Consolidate(g.times, timeLess)
		tds := make([]TimeDiff[T, D], 0, len(consolidated))

		for _, item := range consolidated {
			tds = append(tds, TimeDiff[T, D]{Time: item.Value, Diff: item.Diff})
		}

		if len(tds) == 0 {
			continue
		}

		valueEntries = append(valueEntries, valueEntry[V, T, D]{Value: g.value, Entries: tds})
	}

	return keyEntry[K, V, T, D]{Key: key, Values: valueEntries}
}
