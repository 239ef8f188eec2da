package vexdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexdb/vexdb/distance"
	"github.com/vexdb/vexdb/testutil"
)

func TestNew(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		idx, err := New(128, distance.Euclidean)
		require.NoError(t, err)
		assert.Equal(t, 128, idx.Dimension())
		assert.Equal(t, distance.Euclidean, idx.Metric())
		assert.True(t, idx.IsEmpty())
	})

	t.Run("invalid dimension", func(t *testing.T) {
		_, err := New(0, distance.Euclidean)
		assert.ErrorIs(t, err, ErrInvalidDimension)
	})

	t.Run("derived parameters", func(t *testing.T) {
		idx, err := New(128, distance.Euclidean)
		require.NoError(t, err)
		p := idx.Params()
		assert.Greater(t, p.M, 0)
		assert.Greater(t, p.EFConstruction, 0)
	})
}

func TestInsert(t *testing.T) {
	idx, err := New(4, distance.Euclidean)
	require.NoError(t, err)

	require.NoError(t, idx.Insert(1, []float32{1, 0, 0, 0}))
	require.NoError(t, idx.Insert(2, []float32{0, 1, 0, 0}))
	assert.Equal(t, 2, idx.Len())

	t.Run("duplicate id", func(t *testing.T) {
		err := idx.Insert(1, []float32{0, 0, 1, 0})
		assert.ErrorIs(t, err, ErrIDExists)
		assert.Equal(t, 2, idx.Len())
	})

	t.Run("dimension mismatch panics", func(t *testing.T) {
		assert.PanicsWithError(t, "vexdb: dimension mismatch: expected 4, got 3", func() {
			_ = idx.Insert(3, []float32{1, 2, 3})
		})
		// State untouched by the failed call.
		assert.Equal(t, 2, idx.Len())
	})
}

func TestSearchDimensionPanic(t *testing.T) {
	idx, err := New(4, distance.Euclidean)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(1, []float32{1, 0, 0, 0}))

	assert.Panics(t, func() {
		_, _ = idx.Search([]float32{1, 0}, 1)
	})
}

func TestRemove(t *testing.T) {
	idx, err := New(4, distance.Euclidean)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, idx.Insert(uint64(i), testutil.Vector(i, 4)))
	}

	assert.True(t, idx.Remove(3))
	assert.False(t, idx.Remove(3), "second remove must report not found")
	assert.Equal(t, 9, idx.Len())

	t.Run("removed id never returned", func(t *testing.T) {
		rs, err := idx.Search(testutil.Vector(3, 4), 9)
		require.NoError(t, err)
		for _, r := range rs {
			assert.NotEqual(t, uint64(3), r.ID)
		}
	})

	t.Run("slot not reused", func(t *testing.T) {
		before := idx.Stats().NextSlot
		require.NoError(t, idx.Insert(3, testutil.Vector(3, 4)))
		assert.Equal(t, before+1, idx.Stats().NextSlot)
	})
}

func TestGetVector(t *testing.T) {
	idx, err := New(4, distance.Euclidean)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(1, []float32{1, 2, 3, 4}))

	t.Run("returns stored vector", func(t *testing.T) {
		vec, err := idx.GetVector(1)
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2, 3, 4}, vec)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := idx.GetVector(99)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("removed id", func(t *testing.T) {
		require.NoError(t, idx.Insert(2, []float32{0, 0, 0, 1}))
		idx.Remove(2)
		_, err := idx.GetVector(2)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("fast-insert index", func(t *testing.T) {
		fast, err := New(4, distance.Euclidean, func(o *Options) {
			o.VectorStorage = false
		})
		require.NoError(t, err)
		require.NoError(t, fast.Insert(1, []float32{1, 0, 0, 0}))

		_, err = fast.GetVector(1)
		assert.ErrorIs(t, err, ErrNoVectorStorage)
	})
}

func TestUpdate(t *testing.T) {
	idx, err := New(4, distance.Euclidean)
	require.NoError(t, err)

	require.NoError(t, idx.Insert(1, []float32{1, 0, 0, 0}))
	require.NoError(t, idx.Update(1, []float32{0, 0, 0, 1}))
	assert.Equal(t, 1, idx.Len())

	rs, err := idx.SearchBruteForce([]float32{0, 0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, uint64(1), rs[0].ID)
	assert.InDelta(t, 0.0, rs[0].Score, 1e-6)
}

func TestInsertBatch(t *testing.T) {
	idx, err := New(8, distance.Euclidean)
	require.NoError(t, err)

	items := make([]InsertItem, 100)
	for i := range items {
		items[i] = InsertItem{ID: uint64(i), Vector: testutil.Vector(i, 8)}
	}
	// A duplicate in the batch is skipped, not fatal.
	items = append(items, InsertItem{ID: 0, Vector: testutil.Vector(0, 8)})

	require.NoError(t, idx.InsertBatch(items))
	assert.Equal(t, 100, idx.Len())
}

func TestStats(t *testing.T) {
	idx, err := New(4, distance.Euclidean)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, idx.Insert(uint64(i), testutil.Vector(i, 4)))
	}
	idx.Remove(5)

	st := idx.Stats()
	assert.Equal(t, 19, st.LiveVectors)
	assert.Equal(t, uint32(20), st.NextSlot)
	assert.Equal(t, 1, st.Graph.TombstonedSlots)
	assert.True(t, st.VectorStorage)
	assert.False(t, st.QuantizerTrained)
}

func TestFastInsertMode(t *testing.T) {
	idx, err := New(4, distance.Euclidean, func(o *Options) {
		o.VectorStorage = false
	})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		require.NoError(t, idx.Insert(uint64(i), testutil.Vector(i, 4)))
	}

	// Brute force degrades to a wide graph search but still answers.
	rs, err := idx.SearchBruteForce(testutil.Vector(7, 4), 5)
	require.NoError(t, err)
	require.NotEmpty(t, rs)
	assert.Equal(t, uint64(7), rs[0].ID)

	assert.False(t, idx.Stats().VectorStorage)
}

func TestForceTrainQuantizer(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		idx, err := New(4, distance.Euclidean)
		require.NoError(t, err)
		assert.ErrorIs(t, idx.ForceTrainQuantizer(), ErrNotSupported)
	})

	t.Run("trains from buffered samples", func(t *testing.T) {
		idx, err := New(4, distance.Euclidean, func(o *Options) {
			o.Quantization = true
			o.MaxElements = 100
		})
		require.NoError(t, err)

		for i := 0; i < 50; i++ {
			require.NoError(t, idx.Insert(uint64(i), testutil.Vector(i, 4)))
		}
		assert.False(t, idx.IsQuantizerTrained())

		require.NoError(t, idx.ForceTrainQuantizer())
		assert.True(t, idx.IsQuantizerTrained())
	})
}
