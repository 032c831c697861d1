//go:build !unix

package shm

import "os"

// PosixAllocator is unavailable on this platform; Allocate always fails.
type PosixAllocator struct {
	dir string
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

// WithMode is accepted for API compatibility and ignored.
func WithMode(os.FileMode) PosixOption {
	return func(*PosixAllocator) {}
}

// NewPosixAllocator returns an allocator that reports ErrUnsupported.
func NewPosixAllocator(opts ...PosixOption) *PosixAllocator {
	a := &PosixAllocator{dir: DefaultDir()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Dir returns the configured directory.
func (a *PosixAllocator) Dir() string {
	return a.dir
}

// Allocate always returns ErrUnsupported.
func (a *PosixAllocator) Allocate(string, int64) (Region, error) {
	return nil, ErrUnsupported
}

// Map always returns ErrUnsupported.
func Map(string, string, int64) (*Mapping, error) {
	return nil, ErrUnsupported
}
