package epoch

import "math"

// MinPinned computes the minimum epoch pinned across all workers, treating
// force-unpinned workers as if they held no pin at all (spec §4.7: "the
// reclaimer consults [force_unpinned] when computing min_pinned"). Returns
// (epoch, true) if at least one worker holds a real pin, else (0, false)
// meaning nothing constrains reclamation.
func MinPinned(workers []*WorkerState) (uint64, bool) {
	min := uint64(math.MaxUint64)
	found := false
	for _, w := range workers {
		if w.ForceUnpinned() {
			continue
		}
		e, ok := w.Pinned()
		if !ok {
			continue
		}
		if e < min {
			min = e
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return min, true
}

// SafeToReclaim reports whether a generation published at genEpoch may be
// reclaimed given the current min_pinned, per spec §4.7: "Generations with
// epoch < min_pinned - 1 are safe to reclaim." When no worker holds a pin
// (minPinnedOK is false) everything is safe to reclaim.
func SafeToReclaim(genEpoch uint64, minPinned uint64, minPinnedOK bool) bool {
	if !minPinnedOK {
		return true
	}
	if minPinned == 0 {
		return false
	}
	return genEpoch < minPinned-1
}
