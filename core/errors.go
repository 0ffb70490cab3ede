package core

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy of spec.md §7. Kinds are grouped by
// owning subsystem; the grouping is informational only (no code branches
// on the group, only on the specific Kind).
type Kind uint8

const (
	_ Kind = iota

	// Configuration
	KindInvalidDimensions
	KindInvertedBounds
	KindEmptyPipeline
	KindWriteConflict
	KindUndefinedField
	KindDtOutOfRange
	KindBackoffInvariant
	KindRingTooSmall

	// Arena
	KindCapacityExceeded
	KindStaleHandle
	KindUnknownField
	KindNotWritable
	KindInvalidState
	KindCellCountOverflow
	KindFieldBufferOverflow

	// Space
	KindCoordOutOfBounds
	KindInvalidRegion
	KindEmptySpace
	KindDimensionTooLarge
	KindInvalidComposition

	// Ingress
	KindQueueFull
	KindStale
	KindChannelFull
	KindShuttingDown

	// Tick
	KindPropagatorFailed
	KindAllocationFailed
	KindTickRolledBack
	KindTickDisabled

	// Observation
	KindPlanInvalidated
	KindInvalidSpec
	KindExecutionFailed
	KindObserveTimeout
	KindNotAvailable
	KindWorkerStalled

	// Replay (external contract surface only)
	KindInvalidMagic
	KindUnsupportedVersion
	KindMalformedFrame
	KindConfigMismatch
	KindHashMismatch
)

var kindNames = map[Kind]string{
	KindInvalidDimensions:   "invalid_dimensions",
	KindInvertedBounds:      "inverted_bounds",
	KindEmptyPipeline:       "empty_pipeline",
	KindWriteConflict:       "write_conflict",
	KindUndefinedField:      "undefined_field",
	KindDtOutOfRange:        "dt_out_of_range",
	KindBackoffInvariant:    "backoff_invariant",
	KindRingTooSmall:        "ring_too_small",
	KindCapacityExceeded:    "capacity_exceeded",
	KindStaleHandle:         "stale_handle",
	KindUnknownField:        "unknown_field",
	KindNotWritable:         "not_writable",
	KindInvalidState:        "invalid_state",
	KindCellCountOverflow:   "cell_count_overflow",
	KindFieldBufferOverflow: "field_buffer_overflow",
	KindCoordOutOfBounds:    "coord_out_of_bounds",
	KindInvalidRegion:       "invalid_region",
	KindEmptySpace:          "empty_space",
	KindDimensionTooLarge:   "dimension_too_large",
	KindInvalidComposition:  "invalid_composition",
	KindQueueFull:           "queue_full",
	KindStale:               "stale",
	KindChannelFull:         "channel_full",
	KindShuttingDown:        "shutting_down",
	KindPropagatorFailed:    "propagator_failed",
	KindAllocationFailed:    "allocation_failed",
	KindTickRolledBack:      "tick_rolled_back",
	KindTickDisabled:        "tick_disabled",
	KindPlanInvalidated:     "plan_invalidated",
	KindInvalidSpec:         "invalid_spec",
	KindExecutionFailed:     "execution_failed",
	KindObserveTimeout:      "observe_timeout",
	KindNotAvailable:        "not_available",
	KindWorkerStalled:       "worker_stalled",
	KindInvalidMagic:        "invalid_magic",
	KindUnsupportedVersion:  "unsupported_version",
	KindMalformedFrame:      "malformed_frame",
	KindConfigMismatch:      "config_mismatch",
	KindHashMismatch:        "hash_mismatch",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is the structured error value every subsystem boundary converts
// its failures into. It never crosses a boundary as a bare string — callers
// are expected to switch on Kind.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("murk: %s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("murk: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// NewError constructs a Kind-tagged error with a message.
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap tags an underlying error with a Kind, preserving it for errors.Is/As.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Wrapped: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error; ok is false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
