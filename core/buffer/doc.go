// Package buffer implements the broker's table of live shared-memory buffers.
//
// A buffer is a named shm region plus a reference count. Create allocates the
// region and hands the creator one reference. Every delivery of the buffer to a
// subscriber adds one more (AddRef), and every Release drops one. When the count
// reaches zero the entry is removed and the region freed, so a buffer with no
// references is never visible to Get.
//
// The table is the only place reference counts change. Releasing an unknown
// or already freed buffer fails with ErrNotFound and never frees twice.
//
//	table, err := buffer.New(shm.NewPosixAllocator(), buffer.WithLogger(log))
//	id, err := table.Create(4096)
//	// ... publisher writes into the region, broker fans it out ...
//	err = table.Release(id)
package buffer
