package epoch

import "testing"

func TestCounterAdvanceIsMonotonic(t *testing.T) {
	var c Counter
	if c.Current() != 0 {
		t.Fatalf("Current() = %d, want 0", c.Current())
	}
	if got := c.Advance(); got != 1 {
		t.Fatalf("first Advance() = %d, want 1", got)
	}
	if got := c.Advance(); got != 2 {
		t.Fatalf("second Advance() = %d, want 2", got)
	}
	if c.Current() != 2 {
		t.Fatalf("Current() = %d, want 2", c.Current())
	}
}

func TestRingLatestReturnsFalseWhenEmpty(t *testing.T) {
	r := NewRing(4)
	if _, ok := r.Latest(); ok {
		t.Fatal("expected Latest() to report false on an empty ring")
	}
}

func TestRingLatestReturnsMostRecentPush(t *testing.T) {
	r := NewRing(4)
	r.Push(Entry{Epoch: 1})
	r.Push(Entry{Epoch: 2})
	r.Push(Entry{Epoch: 3})
	e, ok := r.Latest()
	if !ok || e.Epoch != 3 {
		t.Fatalf("Latest() = (%+v, %v), want epoch 3", e, ok)
	}
}

func TestRingEvictsOldestWhenFull(t *testing.T) {
	r := NewRing(2)
	r.Push(Entry{Epoch: 1})
	r.Push(Entry{Epoch: 2})
	r.Push(Entry{Epoch: 3}) // evicts epoch 1's slot
	if _, ok := r.Find(1); ok {
		t.Fatal("expected epoch 1 to have been evicted once the ring wrapped")
	}
	if _, ok := r.Find(2); !ok {
		t.Fatal("expected epoch 2 to still be resident")
	}
	if _, ok := r.Find(3); !ok {
		t.Fatal("expected epoch 3 to be resident")
	}
}

func TestRingFindMissingEpochReturnsFalse(t *testing.T) {
	r := NewRing(4)
	r.Push(Entry{Epoch: 1})
	if _, ok := r.Find(99); ok {
		t.Fatal("expected Find to report false for an epoch never pushed")
	}
}

func TestRingMinAliveEpochTracksSmallestResident(t *testing.T) {
	r := NewRing(4)
	r.Push(Entry{Epoch: 5})
	r.Push(Entry{Epoch: 2})
	r.Push(Entry{Epoch: 8})
	min, ok := r.MinAliveEpoch()
	if !ok || min != 2 {
		t.Fatalf("MinAliveEpoch() = (%d, %v), want (2, true)", min, ok)
	}
}

func TestRingMinAliveEpochFalseWhenEmpty(t *testing.T) {
	r := NewRing(2)
	if _, ok := r.MinAliveEpoch(); ok {
		t.Fatal("expected MinAliveEpoch to report false on an empty ring")
	}
}

func TestWorkerStateStartsUnpinned(t *testing.T) {
	w := NewWorkerState(1)
	if _, ok := w.Pinned(); ok {
		t.Fatal("expected a fresh worker state to start unpinned")
	}
}

func TestWorkerStatePinAndUnpin(t *testing.T) {
	w := NewWorkerState(1)
	w.Pin(42)
	e, ok := w.Pinned()
	if !ok || e != 42 {
		t.Fatalf("Pinned() = (%d, %v), want (42, true)", e, ok)
	}
	w.Unpin(1000)
	if _, ok := w.Pinned(); ok {
		t.Fatal("expected Unpin to clear the pin")
	}
	if w.LastQuiesce() != 1000 {
		t.Fatalf("LastQuiesce() = %d, want 1000", w.LastQuiesce())
	}
}

func TestWorkerStateCancelFlagNeverClearedByReclaimer(t *testing.T) {
	w := NewWorkerState(1)
	w.RequestCancel()
	if !w.CancelRequested() {
		t.Fatal("expected CancelRequested() to report true after RequestCancel")
	}
	// Only the worker's own ClearCancel resets the flag.
	w.ClearCancel()
	if w.CancelRequested() {
		t.Fatal("expected ClearCancel to reset the cancel flag")
	}
}

func TestWorkerStateForceUnpinDoesNotTouchPinnedField(t *testing.T) {
	w := NewWorkerState(1)
	w.Pin(7)
	w.ForceUnpin()
	if !w.ForceUnpinned() {
		t.Fatal("expected ForceUnpinned() to report true")
	}
	e, ok := w.Pinned()
	if !ok || e != 7 {
		t.Fatal("expected ForceUnpin to leave the worker's own pinned field untouched")
	}
	w.ClearForceUnpin()
	if w.ForceUnpinned() {
		t.Fatal("expected ClearForceUnpin to reset the force-unpin flag")
	}
}

func TestMinPinnedIgnoresForceUnpinnedWorkers(t *testing.T) {
	w1 := NewWorkerState(1)
	w1.Pin(3)
	w2 := NewWorkerState(2)
	w2.Pin(1)
	w2.ForceUnpin()

	min, ok := MinPinned([]*WorkerState{w1, w2})
	if !ok || min != 3 {
		t.Fatalf("MinPinned = (%d, %v), want (3, true) ignoring the force-unpinned worker's pin of 1", min, ok)
	}
}

func TestMinPinnedFalseWhenNoWorkerPinned(t *testing.T) {
	w1 := NewWorkerState(1)
	w2 := NewWorkerState(2)
	if _, ok := MinPinned([]*WorkerState{w1, w2}); ok {
		t.Fatal("expected MinPinned to report false when no worker holds a pin")
	}
}

func TestSafeToReclaimWhenNoWorkerPinned(t *testing.T) {
	if !SafeToReclaim(100, 0, false) {
		t.Fatal("expected everything to be safe to reclaim when no worker is pinned")
	}
}

func TestSafeToReclaimBelowMinPinnedMinusOne(t *testing.T) {
	if !SafeToReclaim(3, 5, true) {
		t.Fatal("expected epoch 3 to be safe to reclaim when min_pinned is 5 (3 < 5-1)")
	}
	if SafeToReclaim(4, 5, true) {
		t.Fatal("expected epoch 4 to NOT be safe to reclaim when min_pinned is 5 (4 is not < 5-1)")
	}
}

func TestSafeToReclaimFalseWhenMinPinnedIsZero(t *testing.T) {
	if SafeToReclaim(0, 0, true) {
		t.Fatal("expected nothing to be safe to reclaim when min_pinned is 0 (would underflow)")
	}
}
