package lattice

// Antichain is a set of mutually incomparable times, used throughout the
// engine as a frontier: the exclusive lower bound of times that may still
// occur. The zero value is the empty antichain (no elements => no
// constraint; semantically "less-equal" to nothing and dominated by
// everything, matching the empty frontier used as `since` before any
// compaction has occurred).
type Antichain[T PartialOrder[T]] struct {
	elems []T
}

// New builds an antichain from the given elements, reducing them to the
// minimal mutually-incomparable subset.
func New[T PartialOrder[T]](elems ...T) Antichain[T] {
	var a Antichain[T]
	for _, e := range elems {
		a.Insert(e)
	}

	return a
}

// Insert adds t to the antichain, discarding any existing element that t
// dominates, and refusing to add t if it is itself dominated by an existing
// element. Reports whether the antichain changed.
func (a *Antichain[T]) Insert(t T) bool {
	for _, e := range a.elems {
		if e.LessEqual(t) {
			return false
		}
	}

	kept := a.elems[:0]

	for _, e := range a.elems {
		if !t.LessEqual(e) {
			kept = append(kept, e)
		}
	}

	a.elems = append(kept, t)

	return true
}

// Elements returns the antichain's members in no particular order. Callers
// must not mutate the returned slice.
func (a Antichain[T]) Elements() []T {
	return a.elems
}

// IsEmpty reports whether the antichain has no elements.
func (a Antichain[T]) IsEmpty() bool {
	return len(a.elems) == 0
}

// LessEqual reports whether the frontier is <= t: some element of the
// antichain is <= t.
func (a Antichain[T]) LessEqual(t T) bool {
	for _, e := range a.elems {
		if e.LessEqual(t) {
			return true
		}
	}

	return false
}

// LessThan reports the strict variant: some element of the antichain is
// strictly below t.
func (a Antichain[T]) LessThan(t T) bool {
	for _, e := range a.elems {
		if LessThan(e, t) {
			return true
		}
	}

	return false
}

// Dominates reports whether every element of other is dominated by some
// element of a (other's frontier has progressed at least as far as a's).
func (a Antichain[T]) Dominates(other Antichain[T]) bool {
	for _, o := range other.elems {
		if !a.LessEqual(o) {
			return false
		}
	}

	return true
}

// Equal reports whether a and other denote the same frontier.
func (a Antichain[T]) Equal(other Antichain[T]) bool {
	return a.Dominates(other) && other.Dominates(a)
}

// Clone returns an independent copy of the antichain.
func (a Antichain[T]) Clone() Antichain[T] {
	elems := make([]T, len(a.elems))
	copy(elems, a.elems)

	return Antichain[T]{elems: elems}
}

// Union returns the antichain formed by inserting every element of both
// inputs.
func Union[T PartialOrder[T]](a, b Antichain[T]) Antichain[T] {
	out := a.Clone()
	for _, e := range b.elems {
		out.Insert(e)
	}

	return out
}
