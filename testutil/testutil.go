// Package testutil generates deterministic vector datasets and ground
// truth for tests. Vectors vary smoothly with the point number, so nearby
// points are also near in vector space and expectations are stable across
// runs without stored fixtures.
package testutil

import (
	"math"

	"github.com/vexdb/vexdb/distance"
)

// Vector returns the deterministic vector for a point number.
func Vector(point, dim int) []float32 {
	v := make([]float32, dim)
	for j := range v {
		v[j] = float32(math.Sin(float64(point)*0.1 + float64(j)*0.05))
	}
	return v
}

// Vectors returns the vectors for points 0..n-1.
func Vectors(n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = Vector(i, dim)
	}
	return out
}

// ExactTopK computes ground-truth nearest neighbor IDs for a query by
// exhaustive scan. IDs index into dataset.
func ExactTopK(m distance.Metric, query []float32, dataset [][]float32, k int) []uint64 {
	type scored struct {
		id    uint64
		score float32
	}
	rs := make([]scored, len(dataset))
	for i, v := range dataset {
		rs[i] = scored{id: uint64(i), score: distance.Score(m, query, v)}
	}
	distance.SortResults(m, rs, func(s scored) float32 { return s.score })

	if k > len(rs) {
		k = len(rs)
	}
	ids := make([]uint64, k)
	for i := range ids {
		ids[i] = rs[i].id
	}
	return ids
}

// Recall returns the fraction of truth IDs present in got.
func Recall(got, truth []uint64) float64 {
	if len(truth) == 0 {
		return 1
	}
	set := make(map[uint64]struct{}, len(got))
	for _, id := range got {
		set[id] = struct{}{}
	}
	hits := 0
	for _, id := range truth {
		if _, ok := set[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(truth))
}
