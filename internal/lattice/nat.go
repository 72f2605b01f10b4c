package lattice

import "strconv"

// Nat is a totally ordered logical time: a plain tick counter. It is the
// time type that exercises internal/reduce's totally-ordered threshold fast
// path.
type Nat uint64

// LessEqual implements PartialOrder.
func (n Nat) LessEqual(other Nat) bool { return n <= other }

// Join implements PartialOrder: the maximum.
func (n Nat) Join(other Nat) Nat {
	if n > other {
		return n
	}

	return other
}

// Meet implements PartialOrder: the minimum.
func (n Nat) Meet(other Nat) Nat {
	if n < other {
		return n
	}

	return other
}

// Bottom implements PartialOrder.
func (n Nat) Bottom() Nat { return 0 }

// Compare implements Total.
func (n Nat) Compare(other Nat) int {
	switch {
	case n < other:
		return -1
	case n > other:
		return 1
	default:
		return 0
	}
}

// String renders the tick as a decimal number.
func (n Nat) String() string { return strconv.FormatUint(uint64(n), 10) }

// MarshalText implements encoding.TextMarshaler for NDJSON/snapshot encoding.
func (n Nat) MarshalText() ([]byte, error) { return []byte(n.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Nat) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(string(text), 10, 64)
	if err != nil {
		return err
	}

	*n = Nat(v)

	return nil
}
