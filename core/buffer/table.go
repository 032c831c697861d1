package buffer

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dmitrymomot/shmbroker/core/logger"
	"github.com/dmitrymomot/shmbroker/core/shm"
)

const (
	// DefaultPrefix is the leading part of generated buffer names.
	DefaultPrefix = "shmbroker"

	// DefaultReleasedCacheSize is the number of freed ids remembered for diagnostics.
	DefaultReleasedCacheSize = 1024

	// maxNameAttempts bounds retries when a generated name collides with a
	// leftover region from an earlier process.
	maxNameAttempts = 3
)

// Stats is a snapshot of the table.
type Stats struct {
	Live           int   // Buffers with a positive reference count
	LiveBytes      int64 // Sum of live buffer sizes
	Created        int64 // Successful Create calls
	Freed          int64 // Buffers whose count reached zero
	AllocFailures  int64 // Create calls the allocator could not serve
	DoubleReleases int64 // Release calls on recently freed ids
	FreeErrors     int64 // Regions the allocator failed to free
}

type entry struct {
	region shm.Region
	refs   int
}

// Table owns every live buffer. Safe for concurrent use.
type Table struct {
	mu      sync.Mutex
	buffers map[string]*entry

	alloc        shm.Allocator
	prefix       string
	instance     string
	seq          atomic.Uint64
	maxSize      int64
	releasedSize int
	released     *lru.Cache[string, struct{}]
	logger       *slog.Logger

	created        atomic.Int64
	freed          atomic.Int64
	allocFailures  atomic.Int64
	doubleReleases atomic.Int64
	freeErrors     atomic.Int64
}

// New creates an empty table backed by alloc.
func New(alloc shm.Allocator, opts ...Option) (*Table, error) {
	if alloc == nil {
		return nil, ErrAllocatorNil
	}

	t := &Table{
		buffers:      make(map[string]*entry),
		alloc:        alloc,
		prefix:       DefaultPrefix,
		instance:     uuid.NewString()[:8],
		releasedSize: DefaultReleasedCacheSize,
		logger:       logger.Discard(),
	}

	for _, opt := range opts {
		opt(t)
	}

	released, err := lru.New[string, struct{}](t.releasedSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create released-buffer cache: %w", err)
	}
	t.released = released

	return t, nil
}

// Create allocates a region of size bytes and returns its id with a reference
// count of one, held by the caller.
func (t *Table) Create(size int64) (string, error) {
	if size <= 0 || (t.maxSize > 0 && size > t.maxSize) {
		return "", fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	var (
		region shm.Region
		err    error
	)
	for range maxNameAttempts {
		name := t.nextName()
		region, err = t.alloc.Allocate(name, size)
		if !errors.Is(err, shm.ErrRegionExists) {
			break
		}
		t.logger.Warn("buffer name already in use, retrying", logger.Buffer(name))
	}
	if err != nil {
		t.allocFailures.Add(1)
		t.logger.Error("buffer allocation failed", logger.Size(size), logger.Error(err))
		return "", fmt.Errorf("%w: %w", ErrAllocation, err)
	}

	id := region.Name()

	t.mu.Lock()
	t.buffers[id] = &entry{region: region, refs: 1}
	t.mu.Unlock()

	t.created.Add(1)
	t.logger.Debug("buffer allocated", logger.Buffer(id), logger.Size(size))

	return id, nil
}

// Get returns the size of a live buffer.
func (t *Table) Get(id string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.buffers[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.region.Size(), nil
}

// Refcount returns the current reference count of a live buffer.
func (t *Table) Refcount(id string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.buffers[id]
	if !ok {
		return 0, false
	}
	return e.refs, true
}

// AddRef adds n references to a live buffer in one step. A buffer that is no
// longer live cannot be revived.
func (t *Table) AddRef(id string, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative reference delta %d for %s", ErrInconsistent, n, id)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.buffers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.refs += n
	return nil
}

// Release drops one reference. The region is freed when the count reaches zero.
func (t *Table) Release(id string) error {
	return t.ReleaseN(id, 1)
}

// ReleaseN drops n references at once. Dropping more references than the
// buffer holds fails with ErrInconsistent and leaves the count untouched.
func (t *Table) ReleaseN(id string, n int) error {
	if n <= 0 {
		return nil
	}

	t.mu.Lock()
	e, ok := t.buffers[id]
	if !ok {
		t.mu.Unlock()
		if t.released.Contains(id) {
			t.doubleReleases.Add(1)
			t.logger.Warn("release of already freed buffer", logger.Buffer(id))
		}
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if n > e.refs {
		refs := e.refs
		t.mu.Unlock()
		t.logger.Error("buffer release exceeds reference count",
			logger.Buffer(id), logger.Refs(refs), logger.Count("release", n))
		return fmt.Errorf("%w: release %d of %d references on %s", ErrInconsistent, n, refs, id)
	}

	e.refs -= n
	if e.refs > 0 {
		t.mu.Unlock()
		return nil
	}

	delete(t.buffers, id)
	t.released.Add(id, struct{}{})
	t.mu.Unlock()

	return t.free(e.region)
}

// ReleaseAll frees every live buffer regardless of its reference count. It is
// meant for shutdown, when no client can use the regions any more.
func (t *Table) ReleaseAll() error {
	t.mu.Lock()
	buffers := t.buffers
	t.buffers = make(map[string]*entry)
	for id := range buffers {
		t.released.Add(id, struct{}{})
	}
	t.mu.Unlock()

	var errs []error
	for _, e := range buffers {
		if err := t.free(e.region); err != nil {
			errs = append(errs, err)
		}
	}

	if len(buffers) > 0 {
		t.logger.Info("released all buffers", logger.Count("buffers", len(buffers)))
	}

	return errors.Join(errs...)
}

// Stats returns a snapshot of the table counters.
func (t *Table) Stats() Stats {
	t.mu.Lock()
	live := len(t.buffers)
	var liveBytes int64
	for _, e := range t.buffers {
		liveBytes += e.region.Size()
	}
	t.mu.Unlock()

	return Stats{
		Live:           live,
		LiveBytes:      liveBytes,
		Created:        t.created.Load(),
		Freed:          t.freed.Load(),
		AllocFailures:  t.allocFailures.Load(),
		DoubleReleases: t.doubleReleases.Load(),
		FreeErrors:     t.freeErrors.Load(),
	}
}

func (t *Table) free(region shm.Region) error {
	t.freed.Add(1)
	if err := region.Free(); err != nil {
		t.freeErrors.Add(1)
		t.logger.Error("failed to free buffer region", logger.Buffer(region.Name()), logger.Error(err))
		return fmt.Errorf("free %s: %w", region.Name(), err)
	}
	t.logger.Debug("buffer freed", logger.Buffer(region.Name()))
	return nil
}

func (t *Table) nextName() string {
	return t.prefix + "_" + t.instance + "_" + strconv.FormatUint(t.seq.Add(1), 10)
}
