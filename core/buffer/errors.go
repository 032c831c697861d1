package buffer

import "errors"

var (
	// ErrNotFound is returned for unknown ids and for buffers whose count already reached zero.
	ErrNotFound = errors.New("buffer not found")

	// ErrAllocation is returned when the platform cannot back a new region.
	ErrAllocation = errors.New("buffer allocation failed")

	// ErrInvalidSize is returned for non-positive sizes or sizes above the configured maximum.
	ErrInvalidSize = errors.New("invalid buffer size")

	// ErrInconsistent is returned when a reference operation would violate the table invariants.
	ErrInconsistent = errors.New("buffer reference count inconsistency")

	// ErrAllocatorNil is returned by New when no allocator is supplied.
	ErrAllocatorNil = errors.New("buffer allocator is nil")
)
