//go:build unix

package shm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// PosixAllocator backs regions with files in a tmpfs directory.
type PosixAllocator struct {
	dir  string
	mode uint32
}

// PosixOption configures a PosixAllocator.
type PosixOption func(*PosixAllocator)

// WithDir overrides the directory regions are created in.
func WithDir(dir string) PosixOption {
	return func(a *PosixAllocator) {
		if dir != "" {
			a.dir = dir
		}
	}
}

// WithMode sets the permission bits of new regions. Defaults to 0660 so
// processes of the same group can map them.
func WithMode(mode os.FileMode) PosixOption {
	return func(a *PosixAllocator) {
		if mode != 0 {
			a.mode = uint32(mode.Perm())
		}
	}
}

// NewPosixAllocator creates an allocator rooted at DefaultDir unless overridden.
func NewPosixAllocator(opts ...PosixOption) *PosixAllocator {
	a := &PosixAllocator{
		dir:  DefaultDir(),
		mode: 0o660,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Dir returns the directory regions live in.
func (a *PosixAllocator) Dir() string {
	return a.dir
}

// Allocate creates a new region of exactly size bytes. The name must not be in use.
func (a *PosixAllocator) Allocate(name string, size int64) (Region, error) {
	if err := validate(name, size); err != nil {
		return nil, err
	}

	path := filepath.Join(a.dir, name)
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR|unix.O_CLOEXEC, a.mode)
	if err != nil {
		if errors.Is(err, unix.EEXIST) {
			return nil, fmt.Errorf("%w: %s", ErrRegionExists, name)
		}
		return nil, fmt.Errorf("%w: open %s: %w", ErrAllocate, path, err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, size); err != nil {
		_ = unix.Unlink(path)
		return nil, fmt.Errorf("%w: truncate %s to %d bytes: %w", ErrAllocate, path, size, err)
	}

	return &posixRegion{name: name, path: path, size: size}, nil
}

type posixRegion struct {
	name  string
	path  string
	size  int64
	freed atomic.Bool
}

func (r *posixRegion) Name() string { return r.name }
func (r *posixRegion) Size() int64  { return r.size }

func (r *posixRegion) Free() error {
	if !r.freed.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s", ErrAlreadyFreed, r.name)
	}
	if err := unix.Unlink(r.path); err != nil {
		return fmt.Errorf("shm: unlink %s: %w", r.path, err)
	}
	return nil
}

// Map maps the named region in dir into the current process. The region must
// be at least size bytes long.
func Map(dir, name string, size int64) (*Mapping, error) {
	if err := validate(name, size); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, name)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("shm: stat %s: %w", path, err)
	}
	if st.Size < size {
		return nil, fmt.Errorf("%w: %s has %d bytes, want %d", ErrSizeMismatch, name, st.Size, size)
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	return &Mapping{name: name, data: data, unmap: unix.Munmap}, nil
}
