// Package epoch implements the realtime runtime's epoch-based reclamation
// scheme: a monotonic publisher-owned EpochCounter, a bounded snapshot Ring
// with tagged slots, and cache-line-padded per-worker pin state (spec
// §4.7, §5).
//
// Grounded on Voskan/arena-cache's atomic-counter idiom
// (internal/genring.generation.bytes atomic.Int64, shard.hits/misses
// atomic.Uint64) generalized from "cheap lock-free accounting" to a full
// acquire/release epoch-pinning protocol — the teacher has no concurrent
// reader population to reclaim against, so the protocol itself is this
// spec's, but the "no mutex on the hot path" discipline is the teacher's
// throughout.
//
// © 2025 murk authors. MIT License.
package epoch

import "sync/atomic"

// Counter is the publisher's monotonic epoch counter (spec §4.7). It never
// wraps in practice; like core.Generation, comparisons should treat it as
// an ever-increasing value, not a modular one.
type Counter struct {
	v atomic.Uint64
}

// Current returns the counter's present value without advancing it.
func (c *Counter) Current() uint64 { return c.v.Load() }

// Advance increments the counter and returns the new value. Only the
// publisher calls this.
func (c *Counter) Advance() uint64 { return c.v.Add(1) }
