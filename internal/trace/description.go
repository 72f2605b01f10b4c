// Package trace implements the indexed, time-versioned Batch/Trace/Cursor
// abstraction the reducer reads its input from and writes its output to: a
// map key -> value -> [(time, diff)], cursor-navigable in key-then-value
// order, with logical and physical compaction frontiers.
package trace

import "github.com/flowcore/differential/internal/lattice"

// Description is the half-open time interval a batch or trace covers, plus
// the compaction frontier already applied to times within it: every
// update's time is >= some element of Lower, Lower <= Upper, and
// Since <= Lower.
type Description[T lattice.PartialOrder[T]] struct {
	Lower lattice.Antichain[T]
	Upper lattice.Antichain[T]
	Since lattice.Antichain[T]
}

// Storage is the snapshot a Cursor borrows from for its lifetime. It carries
// no data of its own in this in-memory implementation — cursors hold
// everything they need directly — but the type exists so the Cursor/Storage
// split in the arrangement contract is visible in the API, and so a future
// backing store (e.g. one that pages data in) has somewhere to hang a
// borrowed handle without changing Cursor's shape.
type Storage struct{}
