package lattice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowcore/differential/internal/lattice"
)

func TestNatTotalOrder(t *testing.T) {
	a, b := lattice.Nat(3), lattice.Nat(5)
	assert.True(t, a.LessEqual(b))
	assert.False(t, b.LessEqual(a))
	assert.Equal(t, lattice.Nat(5), a.Join(b))
	assert.Equal(t, lattice.Nat(3), a.Meet(b))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestAntichainInsertKeepsMinimal(t *testing.T) {
	var f lattice.Antichain[lattice.Nat]

	assert.True(t, f.Insert(5))
	assert.True(t, f.Insert(3)) // dominates 5, 5 should be dropped
	assert.ElementsMatch(t, []lattice.Nat{3}, f.Elements())

	assert.False(t, f.Insert(7)) // dominated by 3, ignored
	assert.ElementsMatch(t, []lattice.Nat{3}, f.Elements())
}

func TestAntichainPartialOrderIncomparableElementsSurvive(t *testing.T) {
	type P = lattice.Product2[lattice.Nat, lattice.Nat]

	var f lattice.Antichain[P]

	f.Insert(P{First: 1, Second: 0})
	f.Insert(P{First: 0, Second: 1})

	assert.Len(t, f.Elements(), 2, "incomparable elements must both survive")

	assert.True(t, f.LessEqual(P{First: 1, Second: 1}))
	assert.False(t, f.LessEqual(P{First: 0, Second: 0}))
}

func TestAntichainLessEqualAndLessThan(t *testing.T) {
	f := lattice.New(lattice.Nat(2))

	assert.True(t, f.LessEqual(2))
	assert.True(t, f.LessEqual(3))
	assert.False(t, f.LessEqual(1))

	assert.False(t, f.LessThan(2))
	assert.True(t, f.LessThan(3))
}

func TestAntichainEqualAndUnion(t *testing.T) {
	a := lattice.New(lattice.Nat(2), lattice.Nat(4))
	b := lattice.New(lattice.Nat(2))

	assert.True(t, a.Equal(b), "New drops 4 because 2 <= 4, leaving {2}")

	u := lattice.Union(a, b)
	assert.True(t, u.Equal(a), "union with a dominated antichain changes nothing")
}

func TestMeetAllAndJoinAll(t *testing.T) {
	ts := []lattice.Nat{5, 2, 8, 1}
	assert.Equal(t, lattice.Nat(1), lattice.MeetAll(ts))
	assert.Equal(t, lattice.Nat(8), lattice.JoinAll(ts))
}

func TestProduct2Lattice(t *testing.T) {
	type P = lattice.Product2[lattice.Nat, lattice.Nat]

	a := P{First: 5, Second: 0}
	b := P{First: 3, Second: 1}
	c := P{First: 0, Second: 1}

	ab := a.Join(b)
	assert.Equal(t, P{First: 5, Second: 1}, ab)

	ac := a.Join(c)
	assert.Equal(t, P{First: 5, Second: 1}, ac)

	bc := b.Join(c)
	assert.Equal(t, P{First: 3, Second: 1}, bc)

	assert.True(t, b.Meet(c).LessEqual(b))
}

func TestRegionRefinementRoundTrips(t *testing.T) {
	var ref lattice.RegionRefinement[lattice.Nat]
	assert.Equal(t, lattice.Nat(9), ref.ToOuter(ref.ToInner(9)))
}

func TestProductRefinementRoundTrips(t *testing.T) {
	var ref lattice.ProductRefinement[lattice.Nat]
	inner := ref.ToInner(lattice.Nat(4))
	assert.Equal(t, lattice.Nat(4), inner.First)
	assert.Equal(t, lattice.Nat(0), inner.Second)
	assert.Equal(t, lattice.Nat(4), ref.ToOuter(inner))
}
