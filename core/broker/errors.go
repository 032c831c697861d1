package broker

import "errors"

var (
	// ErrNotFound is returned for unknown buffers, topics and subscribers.
	ErrNotFound = errors.New("not found")

	// ErrAllocation is returned when a shared-memory region cannot be backed.
	ErrAllocation = errors.New("allocation failed")

	// ErrTimeout is returned when a pull wait expires.
	ErrTimeout = errors.New("timed out")

	// ErrPending is returned while a topic registration has not been observed yet.
	// It is not a failure; callers retry.
	ErrPending = errors.New("pending")

	// ErrInternal is returned when an invariant was violated while serving a request.
	ErrInternal = errors.New("internal inconsistency")

	// ErrInvalidArgument is returned for malformed requests.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCanceled is returned when the caller went away before the request completed.
	ErrCanceled = errors.New("canceled")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("broker closed")

	// ErrNilDependency is returned by New when the buffer table or registry is missing.
	ErrNilDependency = errors.New("broker dependency is nil")
)
