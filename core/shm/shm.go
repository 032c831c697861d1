package shm

import (
	"fmt"
	"os"
	"strings"
)

// DevShmDir is the preferred location for shared memory files on Linux.
const DevShmDir = "/dev/shm"

// Region is a named block of shared memory owned by the allocating process.
type Region interface {
	// Name is the identifier other processes use to map the region.
	Name() string

	// Size is the length of the region in bytes.
	Size() int64

	// Free releases the region. Mappings that still exist in other processes
	// stay valid until they are unmapped, but the name can no longer be opened.
	Free() error
}

// Allocator creates named regions.
type Allocator interface {
	Allocate(name string, size int64) (Region, error)
}

// DefaultDir returns /dev/shm when it exists and the temporary directory otherwise.
func DefaultDir() string {
	if info, err := os.Stat(DevShmDir); err == nil && info.IsDir() {
		return DevShmDir
	}
	return os.TempDir()
}

// ValidateName reports whether name can be used as a region identifier.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func validate(name string, size int64) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return nil
}

// Mapping is a region mapped into the current process.
type Mapping struct {
	name  string
	data  []byte
	unmap func([]byte) error
}

// Name returns the region name.
func (m *Mapping) Name() string {
	return m.name
}

// Bytes returns the mapped memory. The slice is invalid after Unmap.
func (m *Mapping) Bytes() []byte {
	return m.data
}

// Unmap removes the mapping. Calling it more than once is a no-op.
func (m *Mapping) Unmap() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	if m.unmap == nil {
		return nil
	}
	return m.unmap(data)
}
