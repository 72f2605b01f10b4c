package lattice

// Refinement embeds an outer time into a nested scope's inner time and back.
// ToOuter(ToInner(t)) == t must hold for all t (§9 "Scope entry/exit as time
// refinement"); trace.TraceEnter composes this over descriptions, frontiers,
// and per-time diff entries without copying underlying data.
type Refinement[Outer any, Inner any] interface {
	ToInner(t Outer) Inner
	ToOuter(t Inner) Outer
}

// RegionRefinement is the trivial refinement used when entering a "region"
// scope that adds no new time dimension: Inner == Outer, ToInner/ToOuter are
// both the identity. It exists so reduce(logic, X.enter(region).leave()) ==
// reduce(logic, X) has a concrete instance to test against without
// requiring a real nested-iteration scope.
type RegionRefinement[T any] struct{}

// ToInner implements Refinement.
func (RegionRefinement[T]) ToInner(t T) T { return t }

// ToOuter implements Refinement.
func (RegionRefinement[T]) ToOuter(t T) T { return t }

// ProductRefinement refines an outer time Outer into Product2[Outer, Nat],
// pairing it with an inner iteration counter that starts at the lattice
// bottom on entry. This is the refinement nested iterative scopes use in
// practice (as opposed to the trivial RegionRefinement).
type ProductRefinement[Outer PartialOrder[Outer]] struct{}

// ToInner implements Refinement.
func (ProductRefinement[Outer]) ToInner(t Outer) Product2[Outer, Nat] {
	return Product2[Outer, Nat]{First: t, Second: Nat(0)}
}

// ToOuter implements Refinement.
func (ProductRefinement[Outer]) ToOuter(t Product2[Outer, Nat]) Outer {
	return t.First
}
