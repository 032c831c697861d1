package shm

import (
	"fmt"
	"sync"
)

// MemoryStats describes the allocations a MemoryAllocator has served.
type MemoryStats struct {
	Live       int   // Regions allocated and not yet freed
	LiveBytes  int64 // Sum of live region sizes
	Allocated  int64 // Total successful allocations
	Freed      int64 // Total successful frees
	DoubleFree int64 // Free calls on regions that were already freed
}

// MemoryAllocator keeps regions in process memory.
type MemoryAllocator struct {
	mu       sync.Mutex
	regions  map[string]*memoryRegion
	limit    int64
	failNext int
	stats    MemoryStats
}

// MemoryOption configures a MemoryAllocator.
type MemoryOption func(*MemoryAllocator)

// WithCapacity limits the total number of live bytes. Allocations past the
// limit fail with ErrAllocate, mimicking an exhausted tmpfs.
func WithCapacity(bytes int64) MemoryOption {
	return func(a *MemoryAllocator) {
		if bytes > 0 {
			a.limit = bytes
		}
	}
}

// NewMemoryAllocator creates an empty in-process allocator.
func NewMemoryAllocator(opts ...MemoryOption) *MemoryAllocator {
	a := &MemoryAllocator{
		regions: make(map[string]*memoryRegion),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FailNext makes the next n allocations fail with ErrAllocate.
func (a *MemoryAllocator) FailNext(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failNext = n
}

// Allocate creates a zeroed region of size bytes.
func (a *MemoryAllocator) Allocate(name string, size int64) (Region, error) {
	if err := validate(name, size); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failNext > 0 {
		a.failNext--
		return nil, fmt.Errorf("%w: injected failure for %s", ErrAllocate, name)
	}
	if _, exists := a.regions[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRegionExists, name)
	}
	if a.limit > 0 && a.stats.LiveBytes+size > a.limit {
		return nil, fmt.Errorf("%w: %d bytes requested, %d of %d in use", ErrAllocate, size, a.stats.LiveBytes, a.limit)
	}

	r := &memoryRegion{
		owner: a,
		name:  name,
		data:  make([]byte, size),
	}
	a.regions[name] = r
	a.stats.Live++
	a.stats.LiveBytes += size
	a.stats.Allocated++

	return r, nil
}

// Bytes returns the backing memory of a live region.
func (a *MemoryAllocator) Bytes(name string) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.regions[name]
	if !ok {
		return nil, false
	}
	return r.data, true
}

// Live reports whether a region with the given name is allocated.
func (a *MemoryAllocator) Live(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.regions[name]
	return ok
}

// Stats returns a snapshot of allocation counters.
func (a *MemoryAllocator) Stats() MemoryStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

func (a *MemoryAllocator) free(r *memoryRegion) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if r.freed {
		a.stats.DoubleFree++
		return fmt.Errorf("%w: %s", ErrAlreadyFreed, r.name)
	}
	r.freed = true
	delete(a.regions, r.name)
	a.stats.Live--
	a.stats.LiveBytes -= int64(len(r.data))
	a.stats.Freed++

	return nil
}

type memoryRegion struct {
	owner *MemoryAllocator
	name  string
	data  []byte
	freed bool // guarded by owner.mu
}

func (r *memoryRegion) Name() string { return r.name }
func (r *memoryRegion) Size() int64  { return int64(len(r.data)) }
func (r *memoryRegion) Free() error  { return r.owner.free(r) }
