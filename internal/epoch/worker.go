package epoch

import "sync/atomic"

// Unpinned is the sentinel pinned-epoch value meaning "not currently
// reading a snapshot" (spec §3 worker epoch state).
const Unpinned uint64 = ^uint64(0)

// WorkerState is one observation worker's pin/cancel/quiesce state. It is
// padded to at least a cache line (128 bytes, conservative for platforms
// with 64-128B lines) to prevent false sharing between workers whose
// states would otherwise sit in adjacent cache lines (spec §3).
type WorkerState struct {
	pinned      atomic.Uint64 // Unpinned, or the epoch currently held
	lastQuiesce atomic.Int64  // UnixNano of the last unpin
	cancel      atomic.Bool
	forceUnpin  atomic.Bool // set by the reclaimer when stalled+grace expired
	workerID    int

	_ [128 - 8 - 8 - 1 - 1 - 8]byte // pad to >=128 bytes; workerID counted as 8
}

// NewWorkerState constructs an initially-unpinned worker state.
func NewWorkerState(id int) *WorkerState {
	w := &WorkerState{workerID: id}
	w.pinned.Store(Unpinned)
	return w
}

// ID returns the worker's stable identifier.
func (w *WorkerState) ID() int { return w.workerID }

// Pin records that this worker is about to read the snapshot published at
// the given epoch (release semantics via atomic store).
func (w *WorkerState) Pin(epoch uint64) { w.pinned.Store(epoch) }

// Unpin clears the pin and records the quiesce time (caller supplies
// UnixNano so the package stays free of wall-clock calls in hot paths that
// are exercised from deterministic tests).
func (w *WorkerState) Unpin(nowUnixNano int64) {
	w.pinned.Store(Unpinned)
	w.lastQuiesce.Store(nowUnixNano)
}

// Pinned returns the epoch this worker currently holds, or (0, false) if
// unpinned.
func (w *WorkerState) Pinned() (uint64, bool) {
	e := w.pinned.Load()
	if e == Unpinned {
		return 0, false
	}
	return e, true
}

// LastQuiesce returns the UnixNano timestamp of the worker's last unpin.
func (w *WorkerState) LastQuiesce() int64 { return w.lastQuiesce.Load() }

// RequestCancel sets the cooperative cancellation flag. Checked by the
// worker between plan regions, never per-cell (spec §5).
func (w *WorkerState) RequestCancel() { w.cancel.Store(true) }

// CancelRequested reports whether cancellation has been requested.
func (w *WorkerState) CancelRequested() bool { return w.cancel.Load() }

// ClearCancel is called by the worker itself on entering its next task —
// never by the reclaimer (spec §5: "cancellation flag is never reset by
// the reclaimer").
func (w *WorkerState) ClearCancel() { w.cancel.Store(false) }

// ForceUnpin marks this worker as force-unpinned for the purposes of
// min-pinned computation, without touching the worker's own pinned field
// (spec §4.7: "The reclaimer never writes to the worker's pinned field").
func (w *WorkerState) ForceUnpin() { w.forceUnpin.Store(true) }

// ClearForceUnpin is called once the worker's in-flight request actually
// completes and it re-enters the idle state.
func (w *WorkerState) ClearForceUnpin() { w.forceUnpin.Store(false) }

// ForceUnpinned reports whether this worker is currently in the
// force_unpinned set.
func (w *WorkerState) ForceUnpinned() bool { return w.forceUnpin.Load() }
