package queue

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinHeapOrdering(t *testing.T) {
	h := NewMin(8)
	for _, d := range []float32{5, 1, 3, 2, 4} {
		h.Push(Item{Slot: uint32(d), Dist: d})
	}

	var got []float32
	for h.Len() > 0 {
		it, ok := h.Pop()
		require.True(t, ok)
		got = append(got, it.Dist)
	}
	assert.Equal(t, []float32{1, 2, 3, 4, 5}, got)
}

func TestMaxHeapOrdering(t *testing.T) {
	h := NewMax(8)
	for _, d := range []float32{5, 1, 3, 2, 4} {
		h.Push(Item{Slot: uint32(d), Dist: d})
	}

	top, ok := h.Top()
	require.True(t, ok)
	assert.Equal(t, float32(5), top.Dist)

	min, ok := h.Min()
	require.True(t, ok)
	assert.Equal(t, float32(1), min.Dist)
}

func TestDrainAscending(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, newHeap := range []func(int) *Heap{NewMin, NewMax} {
		h := newHeap(16)
		want := make([]float32, 50)
		for i := range want {
			d := rng.Float32()
			want[i] = d
			h.Push(Item{Slot: uint32(i), Dist: d})
		}
		sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

		items := h.Drain()
		require.Len(t, items, len(want))
		for i, it := range items {
			assert.Equal(t, want[i], it.Dist)
		}
		assert.Zero(t, h.Len())
	}
}

func TestEmptyHeap(t *testing.T) {
	h := NewMin(0)
	_, ok := h.Pop()
	assert.False(t, ok)
	_, ok = h.Top()
	assert.False(t, ok)
	_, ok = h.Min()
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	h := NewMax(4)
	h.Push(Item{Slot: 1, Dist: 1})
	h.Reset()
	assert.Zero(t, h.Len())
}
