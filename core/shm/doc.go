// Package shm provides the platform shared-memory primitive used by the broker.
//
// The broker side allocates named regions and frees them when they are no longer
// referenced. Client processes resolve the same name to a mapping of the region
// and read or write payload bytes directly; the broker never touches them.
//
// On Unix systems regions are regular files in a tmpfs directory (/dev/shm on
// Linux, the temporary directory elsewhere), which is what POSIX shm_open does
// under the hood. A process that knows the name and size can map the region:
//
//	alloc := shm.NewPosixAllocator()
//	region, err := alloc.Allocate("frames_0", 4096)
//	if err != nil {
//		return err
//	}
//	defer region.Free()
//
//	m, err := shm.Map(alloc.Dir(), region.Name(), region.Size())
//	if err != nil {
//		return err
//	}
//	defer m.Unmap()
//	copy(m.Bytes(), payload)
//
// MemoryAllocator is an in-process implementation used by tests and on
// platforms without shared memory. It records every allocation and free so
// leaks and double frees are observable.
package shm
