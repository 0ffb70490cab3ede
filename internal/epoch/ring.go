package epoch

import (
	"sync/atomic"

	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/internal/arena"
)

// Entry is one published generation as held in the ring (spec §3).
type Entry struct {
	TickId     core.TickId
	Generation core.Generation
	Epoch      uint64
	Snapshot   arena.Snapshot
}

// Ring is the realtime runtime's bounded snapshot ring (spec §4.7).
// push is single-writer (the publisher); the read path (Latest, Find) is
// lock-free and safe for concurrent callers. Slots are overwritten
// regardless of pin state when the ring is full — eviction is the
// reclaimer's/worker's problem to detect via the Epoch-vs-tag protocol,
// not the ring's.
type Ring struct {
	capacity int
	slots    []atomic.Pointer[Entry]
	tags     []atomic.Uint64 // tags[i] == the write sequence last stored at slot i
	writeSeq atomic.Uint64   // monotonically increasing write sequence, 1-based
}

// NewRing constructs a ring of the given capacity (spec §6: >=2, default
// 8, max 64 — enforced by the config and realtime packages, not here, so this type stays
// reusable for tests with smaller windows).
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		capacity: capacity,
		slots:    make([]atomic.Pointer[Entry], capacity),
		tags:     make([]atomic.Uint64, capacity),
	}
}

// Capacity returns the ring's fixed slot count.
func (r *Ring) Capacity() int { return r.capacity }

// Push appends a new entry, evicting the oldest slot if full (spec §4.7:
// "if full, the oldest entry is evicted regardless of pin state").
func (r *Ring) Push(e Entry) {
	seq := r.writeSeq.Add(1)
	idx := int((seq - 1) % uint64(r.capacity))
	ent := e
	r.slots[idx].Store(&ent)
	r.tags[idx].Store(seq)
}

// Latest returns the most recently pushed entry. It reads write_pos, then
// the slot, then re-reads write_pos and retries on mismatch (spec §4.7);
// after a bounded number of retries it falls back to scanning all slots
// for the maximum valid tag rather than reporting empty.
func (r *Ring) Latest() (Entry, bool) {
	const maxRetries = 4
	for attempt := 0; attempt < maxRetries; attempt++ {
		wp := r.writeSeq.Load()
		if wp == 0 {
			return Entry{}, false
		}
		idx := int((wp - 1) % uint64(r.capacity))
		e := r.slots[idx].Load()
		tag := r.tags[idx].Load()
		wp2 := r.writeSeq.Load()
		if wp2 == wp && tag == wp && e != nil {
			return *e, true
		}
	}
	return r.scanForMax()
}

func (r *Ring) scanForMax() (Entry, bool) {
	var best *Entry
	var bestTag uint64
	for i := range r.slots {
		t := r.tags[i].Load()
		if t > bestTag {
			e := r.slots[i].Load()
			if e != nil {
				bestTag = t
				best = e
			}
		}
	}
	if best == nil {
		return Entry{}, false
	}
	return *best, true
}

// Find looks for an entry matching the given epoch still resident in the
// ring. Returns ok=false if that epoch's generation has been evicted —
// callers translate this into PlanInvalidated / NotAvailable (spec §4.7,
// §8 scenario 4).
func (r *Ring) Find(epoch uint64) (Entry, bool) {
	for i := range r.slots {
		e := r.slots[i].Load()
		if e != nil && r.tags[i].Load() != 0 && e.Epoch == epoch {
			return *e, true
		}
	}
	return Entry{}, false
}

// MinAliveEpoch returns the smallest epoch currently resident in the ring,
// used by the reclaimer to bound how far back a worker may still validly
// be pinned. ok is false when the ring is empty.
func (r *Ring) MinAliveEpoch() (uint64, bool) {
	min := uint64(0)
	found := false
	for i := range r.slots {
		if r.tags[i].Load() == 0 {
			continue
		}
		e := r.slots[i].Load()
		if e == nil {
			continue
		}
		if !found || e.Epoch < min {
			min = e.Epoch
			found = true
		}
	}
	return min, found
}
