package vectorstore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGet(t *testing.T) {
	s := New(4)

	err := s.Set(0, []float32{1, 2, 3, 4})
	require.NoError(t, err)

	v, ok := s.Get(0)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3, 4}, v)

	_, ok = s.Get(1)
	assert.False(t, ok)
}

func TestSetCopies(t *testing.T) {
	s := New(2)
	src := []float32{1, 2}
	require.NoError(t, s.Set(0, src))

	src[0] = 99
	v, _ := s.Get(0)
	assert.Equal(t, float32(1), v[0])
}

func TestSetWrongDimension(t *testing.T) {
	s := New(4)
	err := s.Set(0, []float32{1, 2})
	assert.ErrorIs(t, err, ErrDimension)
	assert.Zero(t, s.Len())
}

func TestCollect(t *testing.T) {
	s := New(2)
	for slot := uint32(0); slot < 100; slot++ {
		require.NoError(t, s.Set(slot, []float32{float32(slot), 0}))
	}
	s.Delete(10)

	all := s.Collect()
	assert.Len(t, all, 99)

	seen := make(map[uint32]bool)
	for _, sv := range all {
		assert.Equal(t, float32(sv.Slot), sv.Vector[0])
		seen[sv.Slot] = true
	}
	assert.False(t, seen[10])
}

func TestConcurrentSetGet(t *testing.T) {
	s := New(8)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				slot := uint32(w*250 + i)
				vec := make([]float32, 8)
				vec[0] = float32(slot)
				assert.NoError(t, s.Set(slot, vec))
				got, ok := s.Get(slot)
				assert.True(t, ok)
				assert.Equal(t, float32(slot), got[0])
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 2000, s.Len())
}

func TestPrefetchNoPanic(t *testing.T) {
	s := New(4)
	require.NoError(t, s.Set(3, []float32{1, 2, 3, 4}))

	// Includes a missing slot; prefetch is a hint and must tolerate it.
	s.Prefetch([]uint32{3, 77})
	s.Prefetch(nil)
}
