package trace

import (
	"fmt"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
)

// MemTrace is the in-memory Trace/Writer implementation. It holds a chain of
// sealed batches, each batch's Lower equal to the previous batch's Upper,
// and answers CursorThrough only at frontiers that land exactly on a chain
// boundary.
type MemTrace[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D]] struct {
	batches []*Batch[K, V, T, D]

	logicalCompaction  lattice.Antichain[T]
	physicalCompaction lattice.Antichain[T]

	keyLess  func(a, b K) bool
	valLess  func(a, b V) bool
	timeLess func(a, b T) bool
}

// NewMemTrace constructs an empty trace rooted at lower (typically the
// lattice bottom antichain).
func NewMemTrace[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D]](
	lower lattice.Antichain[T],
	keyLess func(a, b K) bool,
	valLess func(a, b V) bool,
	timeLess func(a, b T) bool,
) *MemTrace[K, V, T, D] {
	empty := &Batch[K, V, T, D]{
		Desc:     Description[T]{Lower: lower, Upper: lower, Since: lower},
		keyLess:  keyLess,
		valLess:  valLess,
		timeLess: timeLess,
	}

	return &MemTrace[K, V, T, D]{
		batches:            []*Batch[K, V, T, D]{empty},
		logicalCompaction:  lower,
		physicalCompaction: lower,
		keyLess:            keyLess,
		valLess:            valLess,
		timeLess:           timeLess,
	}
}

// Upper returns the trace's current upper frontier — the Upper of its last
// sealed batch.
func (mt *MemTrace[K, V, T, D]) Upper() lattice.Antichain[T] {
	return mt.batches[len(mt.batches)-1].Desc.Upper
}

// Insert appends a newly sealed batch to the chain. batch.Desc.Lower must
// equal the trace's current upper exactly; callers (the reducer's per-round
// scheduler) are responsible for sealing batches back to back.
func (mt *MemTrace[K, V, T, D]) Insert(batch *Batch[K, V, T, D]) error {
	if !batch.Desc.Lower.Equal(mt.Upper()) {
		return fmt.Errorf("trace: batch lower does not match trace upper: batch starts at a frontier the trace has not reached")
	}

	mt.batches = append(mt.batches, batch)

	return nil
}

// SetLogicalCompaction advances the frontier below which distinct times may
// be coalesced in future reads. It never loses information that is still
// observable at or above the new frontier.
func (mt *MemTrace[K, V, T, D]) SetLogicalCompaction(f lattice.Antichain[T]) {
	mt.logicalCompaction = f.Clone()
}

// SetPhysicalCompaction advances the frontier below which batches may be
// merged and their storage reclaimed. It must never exceed the logical
// compaction frontier.
func (mt *MemTrace[K, V, T, D]) SetPhysicalCompaction(f lattice.Antichain[T]) {
	mt.physicalCompaction = f.Clone()
}

// CursorThrough returns a cursor fused over every sealed batch whose Upper
// is dominated by the requested upper, provided upper lands exactly on a
// chain boundary (some prefix of batches whose cumulative Upper equals
// upper). If upper falls strictly inside an unsealed batch's range, ok is
// false — a fatal "cursor_through returns none" condition that callers must
// treat as a scheduling bug, not retry.
func (mt *MemTrace[K, V, T, D]) CursorThrough(upper lattice.Antichain[T]) (Cursor[K, V, T, D], Storage, bool) {
	for i, b := range mt.batches {
		if b.Desc.Upper.Equal(upper) {
			cursors := collectCursors(mt.batches[:i+1])
			return fuseCursors(cursors, mt.keyLess, mt.valLess), Storage{}, true
		}
	}

	return nil, Storage{}, false
}

func collectCursors[K any, V any, T lattice.PartialOrder[T], D any](batches []*Batch[K, V, T, D]) []Cursor[K, V, T, D] {
	cursors := make([]Cursor[K, V, T, D], 0, len(batches))

	for _, b := range batches {
		if b.Len() == 0 {
			continue
		}

		cursors = append(cursors, b.Cursor())
	}

	return cursors
}
