// Package replay implements the replay hash contract and wire frame
// format of spec §4.9 and §6 — the only persisted external artefact the
// core touches; recording and diff tooling remain external collaborators.
//
// Grounded on promoting xxhash to a direct dependency: it was already
// present in the teacher's indirect dependency graph via badger (dropped
// from this module, spec.md's "Persisted state: None" means Murk itself
// never needs an embedded KV store), so the hash primitive the teacher's
// stack already reaches for carries over even though its storage engine
// does not.
//
// © 2025 murk authors. MIT License.
package replay

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/internal/arena"
	"github.com/tachyon-beep/murk/internal/unsafehelpers"
)

// absentTag and presentTag distinguish a field that was never written
// from a present-but-zero-length one in the hash input stream (spec
// §4.9: "Empty/unallocated fields hash as 'absent' — never as zero-length
// present").
const (
	absentTag  byte = 0x00
	presentTag byte = 0x01
)

// Hash computes a deterministic content hash over snap's field slices in
// ascending field-id order (spec §4.9). Two snapshots with bit-identical
// field slices under identical schemas always hash identically
// (Testable Property 7); the hash never folds in generation, tick id, or
// parameter version, keeping it a pure function of published field data
// alone — those travel in the replay frame header instead (see frame.go).
func Hash(snap arena.Snapshot) uint64 {
	h := xxhash.New()
	var lenBuf [8]byte

	fields := snap.Fields()
	for i := range fields {
		data, ok := snap.Read(core.FieldId(i))
		if !ok {
			h.Write([]byte{absentTag})
			continue
		}
		h.Write([]byte{presentTag})
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(data)))
		h.Write(lenBuf[:])
		h.Write(unsafehelpers.Float32SliceToBytes(data))
	}
	return h.Sum64()
}
