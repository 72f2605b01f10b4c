package lattice

import "fmt"

// Product2 is the componentwise partial order over two independent time
// dimensions — the canonical example of a genuinely partially ordered time,
// used by nested scopes (an outer time paired with an inner iteration
// counter) and by two commits landing on unrelated branches of history.
type Product2[A PartialOrder[A], B PartialOrder[B]] struct {
	First  A
	Second B
}

// LessEqual implements PartialOrder: both components must be <=.
func (p Product2[A, B]) LessEqual(other Product2[A, B]) bool {
	return p.First.LessEqual(other.First) && p.Second.LessEqual(other.Second)
}

// Join implements PartialOrder.
func (p Product2[A, B]) Join(other Product2[A, B]) Product2[A, B] {
	return Product2[A, B]{First: p.First.Join(other.First), Second: p.Second.Join(other.Second)}
}

// Meet implements PartialOrder.
func (p Product2[A, B]) Meet(other Product2[A, B]) Product2[A, B] {
	return Product2[A, B]{First: p.First.Meet(other.First), Second: p.Second.Meet(other.Second)}
}

// Bottom implements PartialOrder.
func (p Product2[A, B]) Bottom() Product2[A, B] {
	return Product2[A, B]{First: p.First.Bottom(), Second: p.Second.Bottom()}
}

// String renders the pair for debug output and snapshot dumps.
func (p Product2[A, B]) String() string {
	return fmt.Sprintf("(%v,%v)", p.First, p.Second)
}

// Product3 extends Product2 with a third dimension, used by nested scopes
// stacked two deep (an outer time, an iteration counter, and a per-worker
// epoch).
type Product3[A PartialOrder[A], B PartialOrder[B], C PartialOrder[C]] struct {
	First  A
	Second B
	Third  C
}

// LessEqual implements PartialOrder.
func (p Product3[A, B, C]) LessEqual(other Product3[A, B, C]) bool {
	return p.First.LessEqual(other.First) && p.Second.LessEqual(other.Second) && p.Third.LessEqual(other.Third)
}

// Join implements PartialOrder.
func (p Product3[A, B, C]) Join(other Product3[A, B, C]) Product3[A, B, C] {
	return Product3[A, B, C]{
		First:  p.First.Join(other.First),
		Second: p.Second.Join(other.Second),
		Third:  p.Third.Join(other.Third),
	}
}

// Meet implements PartialOrder.
func (p Product3[A, B, C]) Meet(other Product3[A, B, C]) Product3[A, B, C] {
	return Product3[A, B, C]{
		First:  p.First.Meet(other.First),
		Second: p.Second.Meet(other.Second),
		Third:  p.Third.Meet(other.Third),
	}
}

// Bottom implements PartialOrder.
func (p Product3[A, B, C]) Bottom() Product3[A, B, C] {
	return Product3[A, B, C]{First: p.First.Bottom(), Second: p.Second.Bottom(), Third: p.Third.Bottom()}
}

// String renders the triple for debug output and snapshot dumps.
func (p Product3[A, B, C]) String() string {
	return fmt.Sprintf("(%v,%v,%v)", p.First, p.Second, p.Third)
}
