package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	a := []float32{1, 0, 2, 3}
	b := []float32{1, 1, 0, 3}

	tests := []struct {
		name   string
		metric Metric
		want   float32
	}{
		{name: "dot product", metric: DotProduct, want: 10},
		{name: "euclidean squared", metric: Euclidean, want: 5},
		{name: "hamming", metric: Hamming, want: 2},
		{name: "jaccard", metric: Jaccard, want: 4.0 / 7.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.metric, a, b)
			assert.InDelta(t, tt.want, got, 1e-5)
		})
	}
}

func TestScoreCosineNormalized(t *testing.T) {
	a := []float32{3, 4}
	b := []float32{3, 4}
	require.True(t, NormalizeInPlace(a))
	require.True(t, NormalizeInPlace(b))

	assert.InDelta(t, 1.0, Score(Cosine, a, b), 1e-5)
}

func TestMetricOrdering(t *testing.T) {
	assert.True(t, Cosine.HigherIsBetter())
	assert.True(t, DotProduct.HigherIsBetter())
	assert.True(t, Jaccard.HigherIsBetter())
	assert.False(t, Euclidean.HigherIsBetter())
	assert.False(t, Hamming.HigherIsBetter())

	assert.True(t, Cosine.Less(0.9, 0.1))
	assert.True(t, Euclidean.Less(0.1, 0.9))
}

func TestSortResults(t *testing.T) {
	type result struct {
		id    uint64
		score float32
	}

	rs := []result{{1, 0.5}, {2, 0.9}, {3, 0.1}}
	SortResults(Cosine, rs, func(r result) float32 { return r.score })
	assert.Equal(t, []result{{2, 0.9}, {1, 0.5}, {3, 0.1}}, rs)

	rs = []result{{1, 0.5}, {2, 0.9}, {3, 0.1}}
	SortResults(Euclidean, rs, func(r result) float32 { return r.score })
	assert.Equal(t, []result{{3, 0.1}, {1, 0.5}, {2, 0.9}}, rs)
}

func TestMetricFromByte(t *testing.T) {
	for _, m := range []Metric{Cosine, Euclidean, DotProduct, Hamming, Jaccard} {
		got, err := MetricFromByte(uint8(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	_, err := MetricFromByte(42)
	assert.Error(t, err)
}

func TestNormalizeZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	assert.False(t, NormalizeInPlace(v))
	assert.Equal(t, []float32{0, 0, 0}, v)
}

func TestScoreEuclideanIdentical(t *testing.T) {
	v := []float32{0.25, -1.5, 3}
	assert.InDelta(t, 0, Score(Euclidean, v, v), 1e-6)
	assert.False(t, math.IsNaN(float64(Score(Euclidean, v, v))))
}
