package reduce

import (
	"fmt"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/trace"
)

// KeyTime is the exported form of keyTime: a key paired with one of its
// still-outstanding interesting times. internal/snapshot encodes a slice of
// these as part of a captured State.
type KeyTime[K any, T any] = keyTime[K, T]

// State is everything needed to reconstruct a Reducer: the capability
// frontier it has advanced to, the (key, time) pairs still carried as
// interesting between rounds, and the logical content of its source and
// output traces. internal/snapshot.Writer encodes a State; internal/snapshot.Reader
// decodes one and hands it to Restore.
type State[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D], O any] struct {
	LowerElems    []T
	Interesting   []KeyTime[K, T]
	SourceUpdates []trace.Update[K, V, T, D]
	OutputUpdates []trace.Update[K, O, T, D]
}

// Capture extracts r's bookkeeping state. It does not pause, drain, or
// mutate r, so the engine can capture a snapshot between rounds without
// taking r out of rotation.
func (r *Reducer[K, V, T, D, O]) Capture() State[K, V, T, D, O] {
	return State[K, V, T, D, O]{
		LowerElems:    append([]T{}, r.lower.Elements()...),
		Interesting:   append([]KeyTime[K, T]{}, r.interesting...),
		SourceUpdates: r.source.Snapshot(),
		OutputUpdates: r.output.Snapshot(),
	}
}

// Restore rebuilds a Reducer from a previously captured State, using cfg for
// the comparators and logic a fresh Reducer needs (these are never part of
// the serialized State: they are Go closures, supplied fresh by the caller
// at restore time). Admitting a batch with the same content as the
// captured Reducer's next input reproduces the same output the original
// would have produced from that point on — the correctness bar snapshot
// restoration must meet (history before the capture's frontier may already
// have been compacted away and is not reconstructed).
func Restore[K any, V any, T lattice.PartialOrder[T], D diff.Semigroup[D], O any](
	st State[K, V, T, D, O],
	cfg Config[K, V, T, D, O],
) (*Reducer[K, V, T, D, O], error) {
	lower := lattice.New(st.LowerElems...)

	source, err := trace.Restore[K, V, T, D](lower, st.SourceUpdates, cfg.KeyLess, cfg.ValLess, cfg.TimeLess)
	if err != nil {
		return nil, fmt.Errorf("reduce: restore source trace: %w", err)
	}

	output, err := trace.Restore[K, O, T, D](lower, st.OutputUpdates, cfg.KeyLess, cfg.OutLess, cfg.TimeLess)
	if err != nil {
		return nil, fmt.Errorf("reduce: restore output trace: %w", err)
	}

	return &Reducer[K, V, T, D, O]{
		source:      source,
		output:      output,
		logic:       cfg.Logic,
		keyLess:     cfg.KeyLess,
		valLess:     cfg.ValLess,
		outLess:     cfg.OutLess,
		timeLess:    cfg.TimeLess,
		lower:       lower,
		interesting: append([]keyTime[K, T]{}, st.Interesting...),
		metrics:     cfg.Metrics,
	}, nil
}
