package vexdb

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexdb/vexdb/distance"
	"github.com/vexdb/vexdb/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	idx, err := New(4, distance.Euclidean, func(o *Options) {
		o.Metrics = m
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, idx.Insert(uint64(i), testutil.Vector(i, 4)))
	}
	idx.Remove(0)

	_, err = idx.Search(testutil.Vector(1, 4), 2)
	require.NoError(t, err)

	assert.Equal(t, 3.0, promtestutil.ToFloat64(m.inserts))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.removes))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.liveVectors))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.searches.WithLabelValues("small_exact")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	idx, err := New(4, distance.Euclidean)
	require.NoError(t, err)

	// No Metrics option configured; the nil receiver paths must not panic.
	require.NoError(t, idx.Insert(1, testutil.Vector(1, 4)))
	idx.Remove(1)
}
