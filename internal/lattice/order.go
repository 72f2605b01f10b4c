// Package lattice implements the partially ordered time lattice the engine
// schedules against: a bounded join-semilattice with meet, plus antichains
// used as frontiers.
package lattice

// PartialOrder is a bounded lattice of times: LessEqual is the partial
// order, Join is the least upper bound, Meet is the greatest lower bound,
// and Bottom is the lattice minimum. T is constrained to PartialOrder[T]
// itself (F-bounded), so concrete time types implement these as methods on
// themselves.
type PartialOrder[T any] interface {
	LessEqual(other T) bool
	Join(other T) T
	Meet(other T) T
	Bottom() T
}

// Total marks a PartialOrder that is additionally totally ordered: for any
// two elements a, b, exactly one of a<b, a==b, a>b holds. Compare returns
// -1, 0, or 1 accordingly. Operators that only work correctly under a total
// order (internal/reduce.Threshold, the §4.6 fast path) require Total[T]
// rather than PartialOrder[T], so a genuinely partial time type cannot be
// passed to them by accident.
type Total[T any] interface {
	PartialOrder[T]
	Compare(other T) int
}

// LessThan reports whether a is strictly below b: a <= b and not b <= a.
func LessThan[T PartialOrder[T]](a, b T) bool {
	return a.LessEqual(b) && !b.LessEqual(a)
}

// Equal reports whether a and b denote the same point: a <= b and b <= a.
func Equal[T PartialOrder[T]](a, b T) bool {
	return a.LessEqual(b) && b.LessEqual(a)
}

// MeetAll folds Meet across times, which must be non-empty: the meet of zero
// times has no universal representation in an unbounded-above lattice, so
// callers must special-case the empty set themselves (most callers skip the
// term entirely when their source list is empty, rather than folding in a
// synthetic top).
func MeetAll[T PartialOrder[T]](times []T) T {
	m := times[0]
	for _, t := range times[1:] {
		m = m.Meet(t)
	}

	return m
}

// JoinAll folds Join across times, which must be non-empty.
func JoinAll[T PartialOrder[T]](times []T) T {
	j := times[0]
	for _, t := range times[1:] {
		j = j.Join(t)
	}

	return j
}
