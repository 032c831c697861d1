package shm

import "errors"

var (
	// ErrAllocate is returned when the platform cannot back a new region.
	ErrAllocate = errors.New("shm: failed to allocate region")

	// ErrInvalidName is returned for empty names or names containing a path separator.
	ErrInvalidName = errors.New("shm: invalid region name")

	// ErrInvalidSize is returned when a region size is not positive.
	ErrInvalidSize = errors.New("shm: region size must be positive")

	// ErrAlreadyFreed is returned when a region is freed more than once.
	ErrAlreadyFreed = errors.New("shm: region already freed")

	// ErrRegionExists is returned when a region with the same name is still live.
	ErrRegionExists = errors.New("shm: region already exists")

	// ErrSizeMismatch is returned when a region is smaller than the requested mapping.
	ErrSizeMismatch = errors.New("shm: region smaller than requested size")

	// ErrUnsupported is returned on platforms without named shared memory.
	ErrUnsupported = errors.New("shm: shared memory is not supported on this platform")
)
