package shm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/shmbroker/core/shm"
)

func TestMemoryAllocator(t *testing.T) {
	t.Parallel()

	t.Run("allocates zeroed regions of the requested size", func(t *testing.T) {
		t.Parallel()

		alloc := shm.NewMemoryAllocator()
		r, err := alloc.Allocate("buf_1", 16)
		require.NoError(t, err)
		assert.Equal(t, "buf_1", r.Name())
		assert.Equal(t, int64(16), r.Size())

		data, ok := alloc.Bytes("buf_1")
		require.True(t, ok)
		assert.Equal(t, make([]byte, 16), data)

		stats := alloc.Stats()
		assert.Equal(t, 1, stats.Live)
		assert.Equal(t, int64(16), stats.LiveBytes)
	})

	t.Run("rejects invalid names and sizes", func(t *testing.T) {
		t.Parallel()

		alloc := shm.NewMemoryAllocator()
		_, err := alloc.Allocate("", 1)
		assert.ErrorIs(t, err, shm.ErrInvalidName)
		_, err = alloc.Allocate("a/b", 1)
		assert.ErrorIs(t, err, shm.ErrInvalidName)
		_, err = alloc.Allocate("ok", 0)
		assert.ErrorIs(t, err, shm.ErrInvalidSize)
	})

	t.Run("rejects duplicate live names", func(t *testing.T) {
		t.Parallel()

		alloc := shm.NewMemoryAllocator()
		_, err := alloc.Allocate("dup", 1)
		require.NoError(t, err)
		_, err = alloc.Allocate("dup", 1)
		assert.ErrorIs(t, err, shm.ErrRegionExists)
	})

	t.Run("reports double free without corrupting counters", func(t *testing.T) {
		t.Parallel()

		alloc := shm.NewMemoryAllocator()
		r, err := alloc.Allocate("once", 8)
		require.NoError(t, err)

		require.NoError(t, r.Free())
		assert.ErrorIs(t, r.Free(), shm.ErrAlreadyFreed)

		stats := alloc.Stats()
		assert.Equal(t, 0, stats.Live)
		assert.Equal(t, int64(0), stats.LiveBytes)
		assert.Equal(t, int64(1), stats.Freed)
		assert.Equal(t, int64(1), stats.DoubleFree)
		assert.False(t, alloc.Live("once"))
	})

	t.Run("enforces capacity", func(t *testing.T) {
		t.Parallel()

		alloc := shm.NewMemoryAllocator(shm.WithCapacity(10))
		r, err := alloc.Allocate("a", 8)
		require.NoError(t, err)
		_, err = alloc.Allocate("b", 8)
		assert.ErrorIs(t, err, shm.ErrAllocate)

		require.NoError(t, r.Free())
		_, err = alloc.Allocate("b", 8)
		assert.NoError(t, err)
	})

	t.Run("injects failures", func(t *testing.T) {
		t.Parallel()

		alloc := shm.NewMemoryAllocator()
		alloc.FailNext(1)
		_, err := alloc.Allocate("a", 1)
		assert.ErrorIs(t, err, shm.ErrAllocate)
		_, err = alloc.Allocate("a", 1)
		assert.NoError(t, err)
	})
}

func TestValidateName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain", "shmbroker_ab12cd34_1", false},
		{"empty", "", true},
		{"dot", ".", true},
		{"dotdot", "..", true},
		{"slash", "/shmsvr_0", true},
		{"backslash", `a\b`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := shm.ValidateName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, shm.ErrInvalidName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
