package hnsw

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexdb/vexdb/distance"
)

func testConfig() Config {
	return Config{
		M:              8,
		EFConstruction: 200,
		Metric:         distance.Euclidean,
		Seed:           42,
	}
}

func randomVectors(rng *rand.Rand, n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()
		}
		out[i] = v
	}
	return out
}

// exactNearest returns the slots of the k nearest vectors by linear scan.
func exactNearest(vectors [][]float32, query []float32, k int) map[uint32]bool {
	type pair struct {
		slot uint32
		dist float32
	}
	pairs := make([]pair, len(vectors))
	for i, v := range vectors {
		pairs[i] = pair{uint32(i), distance.Score(distance.Euclidean, query, v)}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].dist < pairs[j].dist })

	want := make(map[uint32]bool, k)
	for _, p := range pairs[:k] {
		want[p.slot] = true
	}
	return want
}

func TestInsertSearchRecall(t *testing.T) {
	const (
		n   = 1000
		dim = 16
		k   = 10
	)

	rng := rand.New(rand.NewSource(1))
	vectors := randomVectors(rng, n, dim)

	g := New(testConfig())
	for i, v := range vectors {
		require.NoError(t, g.Insert(uint32(i), v))
	}
	assert.Equal(t, n, g.Len())

	// Average recall over several queries must be high at generous ef.
	var hits, total int
	for q := 0; q < 20; q++ {
		query := vectors[rng.Intn(n)]
		want := exactNearest(vectors, query, k)

		got := g.Search(query, k, 256)
		require.LessOrEqual(t, len(got), k)
		for _, item := range got {
			if want[item.Slot] {
				hits++
			}
		}
		total += k
	}
	recall := float64(hits) / float64(total)
	assert.Greater(t, recall, 0.95, "recall %f too low", recall)
}

func TestSearchReturnsAscendingDistance(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	vectors := randomVectors(rng, 200, 8)

	g := New(testConfig())
	for i, v := range vectors {
		require.NoError(t, g.Insert(uint32(i), v))
	}

	got := g.Search(vectors[0], 10, 128)
	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].Dist, got[i-1].Dist)
	}
	assert.Equal(t, uint32(0), got[0].Slot, "query vector itself must rank first")
}

func TestInsertDuplicateSlot(t *testing.T) {
	g := New(testConfig())
	require.NoError(t, g.Insert(0, []float32{1, 2}))
	assert.ErrorIs(t, g.Insert(0, []float32{3, 4}), ErrSlotOccupied)
}

func TestRemoveTombstones(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	vectors := randomVectors(rng, 100, 8)

	g := New(testConfig())
	for i, v := range vectors {
		require.NoError(t, g.Insert(uint32(i), v))
	}

	assert.True(t, g.Remove(5))
	assert.False(t, g.Remove(5), "double remove reports false")
	assert.Equal(t, 99, g.Len())
	assert.True(t, g.IsTombstoned(5))

	// The removed slot never appears in results, even searching for its
	// own vector.
	got := g.Search(vectors[5], 10, 256)
	for _, item := range got {
		assert.NotEqual(t, uint32(5), item.Slot)
	}

	// The vector stays physically present (no compaction).
	_, ok := g.Vector(5)
	assert.True(t, ok)
}

func TestRemoveEntryPointReassigns(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	vectors := randomVectors(rng, 50, 4)

	g := New(testConfig())
	for i, v := range vectors {
		require.NoError(t, g.Insert(uint32(i), v))
	}

	ep := g.Stats().EntryPoint
	require.True(t, g.Remove(ep))

	stats := g.Stats()
	assert.NotEqual(t, ep, stats.EntryPoint)
	assert.False(t, g.IsTombstoned(stats.EntryPoint))

	// Searches still work after entry point reassignment.
	got := g.Search(vectors[0], 5, 128)
	assert.NotEmpty(t, got)
}

func TestRemoveAllEmptiesGraph(t *testing.T) {
	g := New(testConfig())
	require.NoError(t, g.Insert(0, []float32{1, 1}))
	require.NoError(t, g.Insert(1, []float32{2, 2}))

	g.Remove(0)
	g.Remove(1)
	assert.Zero(t, g.Len())
	assert.Empty(t, g.Search([]float32{1, 1}, 5, 64))
}

func TestInsertBatch(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	vectors := randomVectors(rng, 500, 8)

	items := make([]BatchItem, len(vectors))
	for i, v := range vectors {
		items[i] = BatchItem{Slot: uint32(i), Vector: v}
	}

	g := New(testConfig())
	require.NoError(t, g.InsertBatch(items))
	assert.Equal(t, 500, g.Len())

	got := g.Search(vectors[42], 1, 128)
	require.NotEmpty(t, got)
	assert.Equal(t, uint32(42), got[0].Slot)
}

func TestSearchWithCustomDistance(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	vectors := randomVectors(rng, 300, 8)

	g := New(testConfig())
	for i, v := range vectors {
		require.NoError(t, g.Insert(uint32(i), v))
	}

	query := vectors[7]
	qd := func(_ uint32, vec []float32) float32 {
		return distance.Score(distance.Euclidean, query, vec)
	}

	got := g.SearchWith(qd, query, 5, 128)
	require.NotEmpty(t, got)
	assert.Equal(t, uint32(7), got[0].Slot)
}

func TestDumpRestore(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vectors := randomVectors(rng, 200, 8)

	g := New(testConfig())
	for i, v := range vectors {
		require.NoError(t, g.Insert(uint32(i), v))
	}
	g.Remove(3)

	d := g.Dump()
	dumpSlots := make([]uint32, len(d.Nodes))
	for i, nd := range d.Nodes {
		dumpSlots[i] = nd.Slot
	}
	wantSlots := make([]uint32, len(vectors))
	for i := range vectors {
		wantSlots[i] = uint32(i)
	}
	assert.ElementsMatch(t, wantSlots, dumpSlots)

	restored := New(testConfig())
	restored.Restore(d)

	assert.Equal(t, g.Len(), restored.Len())
	assert.Equal(t, g.Stats().MaxLevel, restored.Stats().MaxLevel)
	assert.Equal(t, g.Stats().EntryPoint, restored.Stats().EntryPoint)
	assert.True(t, restored.IsTombstoned(3))

	query := vectors[11]
	want := g.Search(query, 10, 256)
	got := restored.Search(query, 10, 256)
	assert.Equal(t, want, got)
}

func TestStats(t *testing.T) {
	g := New(testConfig())
	assert.Equal(t, -1, g.Stats().MaxLevel)

	rng := rand.New(rand.NewSource(8))
	for i, v := range randomVectors(rng, 100, 4) {
		require.NoError(t, g.Insert(uint32(i), v))
	}
	g.Remove(0)

	s := g.Stats()
	assert.Equal(t, 99, s.LiveNodes)
	assert.Equal(t, 1, s.TombstonedSlots)
	assert.GreaterOrEqual(t, s.MaxLevel, 0)

	total := 0
	for _, c := range s.LevelHistogram {
		total += c
	}
	assert.Equal(t, 99, total)
}

func TestHigherIsBetterMetric(t *testing.T) {
	cfg := testConfig()
	cfg.Metric = distance.DotProduct

	g := New(cfg)
	require.NoError(t, g.Insert(0, []float32{1, 0}))
	require.NoError(t, g.Insert(1, []float32{10, 0}))
	require.NoError(t, g.Insert(2, []float32{5, 0}))

	got := g.Search([]float32{1, 0}, 3, 64)
	require.Len(t, got, 3)
	assert.Equal(t, uint32(1), got[0].Slot, "largest dot product first")
	assert.Equal(t, float32(10), g.DistToScore(got[0].Dist))
}
