package reduce

import (
	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/replay"
	"github.com/flowcore/differential/internal/sortutil"
	"github.com/flowcore/differential/internal/trace"
)

// collectAndAdvance gathers every ((value, time), diff) entry the cursor
// holds for key k, then advances the cursor past k so the next call can
// reuse it for a larger key. The cursor must already have been sought to
// k (or past it, if it holds no entries for k).
func collectAndAdvance[K any, V any, T any, D any](
	cur trace.Cursor[K, V, T, D],
	k K,
	keyLess func(a, b K) bool,
) []replay.Entry[V, T, D] {
	if !cur.KeyValid() || keyLess(cur.Key(), k) || keyLess(k, cur.Key()) {
		return nil
	}

	var out []replay.Entry[V, T, D]

	for cur.ValValid() {
		v := cur.Val()
		cur.MapTimes(func(t T, d D) {
			out = append(out, replay.Entry[V, T, D]{Value: v, Time: t, Diff: d})
		})
		cur.StepVal()
	}

	cur.StepKey()

	return out
}

// computeKey runs the per-key history replay for key k. exposedTimes must
// already be sorted ascending (by timeLess) and
// deduped. Returns the output deltas produced this round and the times that
// must be carried forward as newly interesting for k.
func (r *Reducer[K, V, T, D, O]) computeKey(
	k K,
	exposedTimes []T,
	sourceCursor trace.Cursor[K, V, T, D],
	outputCursor trace.Cursor[K, O, T, D],
	batchCursor trace.Cursor[K, V, T, D],
	upperLimit lattice.Antichain[T],
) ([]replay.Entry[O, T, D], []T) {
	sourceCursor.SeekKey(k)
	inputEntries := collectAndAdvance[K, V, T, D](sourceCursor, k, r.keyLess)

	outputCursor.SeekKey(k)
	outputEntries := collectAndAdvance[K, O, T, D](outputCursor, k, r.keyLess)

	batchCursor.SeekKey(k)
	batchEntries := collectAndAdvance[K, V, T, D](batchCursor, k, r.keyLess)

	inputReplay := replay.New[V, T, D](inputEntries, r.valLess, r.timeLess)
	outputReplay := replay.New[O, T, D](outputEntries, r.outLess, r.timeLess)
	batchReplay := replay.New[V, T, D](batchEntries, r.valLess, r.timeLess)

	timesSlice := exposedTimes
	timesIdx := 0

	meet := r.recomputeMeet(inputReplay, outputReplay, batchReplay, timesSlice[timesIdx:])

	var timesCurrent []T
	var synthTimes []T // kept sorted ascending; the next candidate is the first element
	var outputProduced []replay.Entry[O, T, D]
	var outputs []replay.Entry[O, T, D]
	var newInteresting []T

	for {
		batchT, batchOk := batchReplay.Time()
		var sliceT T
		sliceOk := timesIdx < len(timesSlice)
		if sliceOk {
			sliceT = timesSlice[timesIdx]
		}
		inputT, inputOk := inputReplay.Time()
		outputT, outputOk := outputReplay.Time()
		var synthT T
		synthOk := len(synthTimes) > 0
		if synthOk {
			synthT = synthTimes[0]
		}

		nextTime, any := minTime(r.timeLess,
			candidate[T]{batchT, batchOk},
			candidate[T]{sliceT, sliceOk},
			candidate[T]{inputT, inputOk},
			candidate[T]{outputT, outputOk},
			candidate[T]{synthT, synthOk},
		)
		if !any {
			break
		}

		interesting := false

		inputReplay.StepWhileTimeIs(nextTime)
		outputReplay.StepWhileTimeIs(nextTime)

		if batchReplay.StepWhileTimeIs(nextTime) {
			batchReplay.AdvanceBufferBy(meet)
			interesting = true
		}

		for synthOk && sameTime(r.timeLess, synthTimes[0], nextTime) {
			timesCurrent = append(timesCurrent, synthTimes[0])
			synthTimes = synthTimes[1:]
			interesting = true
			synthOk = len(synthTimes) > 0
		}

		for timesIdx < len(timesSlice) && sameTime(r.timeLess, timesSlice[timesIdx], nextTime) {
			timesCurrent = append(timesCurrent, timesSlice[timesIdx])
			timesIdx++
			interesting = true
		}

		for _, u := range batchReplay.Buffer() {
			if u.Time.LessEqual(nextTime) {
				interesting = true
				break
			}
		}

		if !interesting {
			for _, t := range timesCurrent {
				if t.LessEqual(nextTime) {
					interesting = true
					break
				}
			}
		}

		var temporary []T

		if upperLimit.LessEqual(nextTime) {
			if interesting {
				newInteresting = append(newInteresting, nextTime)
			}
		} else if interesting {
			inputBuf, synthFromInput := buildValueBuffer(inputReplay.Buffer(), batchReplay.Buffer(), nextTime, r.valLess, r.timeLess)
			outputRaw := append(append([]replay.Entry[O, T, D]{}, outputReplay.Buffer()...), outputProduced...)
			outputBuf, synthFromOutput := buildValueBuffer[O, T, D](nil, outputRaw, nextTime, r.outLess, r.timeLess)

			temporary = append(temporary, synthFromInput...)
			temporary = append(temporary, synthFromOutput...)

			if len(inputBuf) > 0 || len(outputBuf) > 0 {
				updateBuf := r.logic(k, inputBuf, outputBuf)
				updateBuf = diff.Consolidate(updateBuf, diff.Less[O](r.outLess))

				if len(updateBuf) > 0 {
					for _, item := range updateBuf {
						outputProduced = append(outputProduced, replay.Entry[O, T, D]{Value: item.Value, Time: nextTime, Diff: item.Diff})
						outputs = append(outputs, replay.Entry[O, T, D]{Value: item.Value, Time: nextTime, Diff: item.Diff})
					}

					for i := range outputProduced {
						outputProduced[i].Time = outputProduced[i].Time.Join(meet)
					}

					outputProduced = replay.Consolidate(outputProduced, r.outLess, r.timeLess)
				}
			}
		}

		for _, u := range batchReplay.Buffer() {
			if !u.Time.LessEqual(nextTime) {
				temporary = append(temporary, u.Time.Join(nextTime))
			}
		}

		for _, t := range timesCurrent {
			if !t.LessEqual(nextTime) {
				temporary = append(temporary, t.Join(nextTime))
			}
		}

		if len(temporary) > 0 {
			temporary = sortutil.SortDedup(temporary, r.timeLess)

			for _, s := range temporary {
				if upperLimit.LessEqual(s) {
					newInteresting = append(newInteresting, s)
				} else {
					synthTimes = append(synthTimes, s)
				}
			}

			synthTimes = sortutil.SortDedup(synthTimes, r.timeLess)
		}

		meet = r.recomputeMeetLoop(batchReplay, inputReplay, outputReplay, synthTimes, timesSlice[timesIdx:])

		for i := range timesCurrent {
			timesCurrent[i] = timesCurrent[i].Join(meet)
		}

		timesCurrent = sortutil.SortDedup(timesCurrent, r.timeLess)
	}

	newInteresting = sortutil.SortDedup(newInteresting, r.timeLess)

	return outputs, newInteresting
}

type candidate[T any] struct {
	t  T
	ok bool
}

func minTime[T any](less func(a, b T) bool, cands ...candidate[T]) (T, bool) {
	var best T
	found := false

	for _, c := range cands {
		if !c.ok {
			continue
		}

		if !found || less(c.t, best) {
			best = c.t
			found = true
		}
	}

	return best, found
}

func sameTime[T any](less func(a, b T) bool, a, b T) bool {
	return !less(a, b) && !less(b, a)
}

// buildValueBuffer scans primary and secondary entry lists and splits them
// into those usable at next_time (t_raw <= next_time, consolidated by
// value) and those that must generate a synthetic time (next_time ∨ t_raw).
func buildValueBuffer[V any, T lattice.PartialOrder[T], D diff.Semigroup[D]](
	primary, secondary []replay.Entry[V, T, D],
	nextTime T,
	valLess func(a, b V) bool,
	timeLess func(a, b T) bool,
) ([]diff.Item[V, D], []T) {
	var items []diff.Item[V, D]
	var synthetic []T

	consider := func(e replay.Entry[V, T, D]) {
		if e.Time.LessEqual(nextTime) {
			items = append(items, diff.Item[V, D]{Value: e.Value, Diff: e.Diff})
		} else {
			synthetic = append(synthetic, nextTime.Join(e.Time))
		}
	}

	for _, e := range primary {
		consider(e)
	}

	for _, e := range secondary {
		consider(e)
	}

	items = diff.Consolidate(items, diff.Less[V](valLess))

	return items, synthetic
}

func (r *Reducer[K, V, T, D, O]) recomputeMeet(
	inputReplay *replay.Replayer[V, T, D],
	outputReplay *replay.Replayer[O, T, D],
	batchReplay *replay.Replayer[V, T, D],
	remainingSlice []T,
) T {
	var candidates []T

	if m, ok := inputReplay.Meet(); ok {
		candidates = append(candidates, m)
	}

	if m, ok := outputReplay.Meet(); ok {
		candidates = append(candidates, m)
	}

	if m, ok := batchReplay.Meet(); ok {
		candidates = append(candidates, m)
	}

	if len(remainingSlice) > 0 {
		candidates = append(candidates, lattice.MeetAll(remainingSlice))
	}

	if len(candidates) == 0 {
		var zero T
		return zero.Bottom()
	}

	return lattice.MeetAll(candidates)
}

func (r *Reducer[K, V, T, D, O]) recomputeMeetLoop(
	batchReplay *replay.Replayer[V, T, D],
	inputReplay *replay.Replayer[V, T, D],
	outputReplay *replay.Replayer[O, T, D],
	synthTimes []T,
	remainingSlice []T,
) T {
	var candidates []T

	if m, ok := batchReplay.Meet(); ok {
		candidates = append(candidates, m)
	}

	if m, ok := inputReplay.Meet(); ok {
		candidates = append(candidates, m)
	}

	if m, ok := outputReplay.Meet(); ok {
		candidates = append(candidates, m)
	}

	candidates = append(candidates, synthTimes...)

	if len(remainingSlice) > 0 {
		candidates = append(candidates, lattice.MeetAll(remainingSlice))
	}

	if len(candidates) == 0 {
		var zero T
		return zero.Bottom()
	}

	return lattice.MeetAll(candidates)
}
