package diff

// Int is the common diff type: a signed multiplicity. Int satisfies Abelian.
type Int int64

// Plus implements Semigroup.
func (d Int) Plus(other Int) Int { return d + other }

// IsZero implements Semigroup.
func (d Int) IsZero() bool { return d == 0 }

// Negate implements Abelian.
func (d Int) Negate() Int { return -d }

// Pair combines two Abelian diffs into one, e.g. tracking a count alongside
// a sum so an average can be derived downstream without a second pass over
// the input. A and B are themselves constrained to Abelian so Pair can
// implement Abelian by delegation.
type Pair[A Abelian[A], B Abelian[B]] struct {
	First  A
	Second B
}

// Plus implements Semigroup.
func (p Pair[A, B]) Plus(other Pair[A, B]) Pair[A, B] {
	return Pair[A, B]{First: p.First.Plus(other.First), Second: p.Second.Plus(other.Second)}
}

// IsZero implements Semigroup.
func (p Pair[A, B]) IsZero() bool {
	return p.First.IsZero() && p.Second.IsZero()
}

// Negate implements Abelian.
func (p Pair[A, B]) Negate() Pair[A, B] {
	return Pair[A, B]{First: p.First.Negate(), Second: p.Second.Negate()}
}
