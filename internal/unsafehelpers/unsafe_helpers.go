// Package unsafehelpers centralises the one unavoidable use of the
// `unsafe` standard-library package in Murk, so the rest of the module
// stays clean and this use is easy to audit.
//
// Adapted from the teacher's internal/unsafehelpers: same
// zero-copy-pointer-reinterpretation idiom (ByteSliceFrom), narrowed down
// to the single conversion Murk's hashing path actually needs —
// replay.Hash reinterpreting a field's []float32 generation buffer as
// []byte so xxhash can consume it directly instead of four-byte-at-a-time
// through encoding/binary. The teacher's string/PtrSlice/alignment
// helpers have no caller in this domain (no []byte-keyed maps, no raw
// arena pointer arithmetic) and are dropped rather than kept unexercised.
//
// © 2025 murk authors. MIT License.
package unsafehelpers

import "unsafe"

// Float32SliceToBytes returns a zero-copy []byte view of data's backing
// array, length len(data)*4. The caller must not retain or mutate the
// returned slice beyond data's own lifetime; it is meant for feeding a
// hash function immediately, not for storage.
func Float32SliceToBytes(data []float32) []byte {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
}
