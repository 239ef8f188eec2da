package distance

import (
	"fmt"
	"math"
	"sort"

	"github.com/viterin/vek/vek32"
)

// Metric identifies the distance metric used for vector comparison.
//
// The numeric values are part of the persisted on-disk format and must not
// be reordered.
type Metric uint8

const (
	// Cosine measures angular similarity. Vectors are expected to be
	// L2-normalized before scoring; the score is then the dot product.
	// Higher is better.
	Cosine Metric = iota

	// Euclidean is the squared L2 distance. Lower is better.
	Euclidean

	// DotProduct is the raw inner product. Higher is better.
	DotProduct

	// Hamming counts mismatching components. Lower is better.
	Hamming

	// Jaccard is the weighted Jaccard similarity sum(min)/sum(max).
	// Higher is better.
	Jaccard
)

func (m Metric) String() string {
	switch m {
	case Cosine:
		return "Cosine"
	case Euclidean:
		return "Euclidean"
	case DotProduct:
		return "DotProduct"
	case Hamming:
		return "Hamming"
	case Jaccard:
		return "Jaccard"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(m))
	}
}

// MetricFromByte decodes a persisted metric code.
func MetricFromByte(b uint8) (Metric, error) {
	m := Metric(b)
	switch m {
	case Cosine, Euclidean, DotProduct, Hamming, Jaccard:
		return m, nil
	default:
		return 0, fmt.Errorf("distance: unknown metric code %d", b)
	}
}

// HigherIsBetter reports whether larger scores rank closer under m.
func (m Metric) HigherIsBetter() bool {
	switch m {
	case Cosine, DotProduct, Jaccard:
		return true
	default:
		return false
	}
}

// Less reports whether score a ranks strictly better than score b under m.
func (m Metric) Less(a, b float32) bool {
	if m.HigherIsBetter() {
		return a > b
	}
	return a < b
}

// Score computes the metric-specific score between two vectors.
// Both slices must have equal length; validating dimensions is the caller's
// responsibility.
func Score(m Metric, a, b []float32) float32 {
	switch m {
	case Cosine, DotProduct:
		return vek32.Dot(a, b)
	case Euclidean:
		d := vek32.Distance(a, b)
		return d * d
	case Hamming:
		var n float32
		for i := range a {
			if a[i] != b[i] {
				n++
			}
		}
		return n
	case Jaccard:
		var minSum, maxSum float32
		for i := range a {
			if a[i] < b[i] {
				minSum += a[i]
				maxSum += b[i]
			} else {
				minSum += b[i]
				maxSum += a[i]
			}
		}
		if maxSum == 0 {
			return 0
		}
		return minSum / maxSum
	default:
		return float32(math.NaN())
	}
}

// SortResults orders rs best-first according to the metric's ordering rule.
// score extracts the raw metric score from an element.
func SortResults[S ~[]E, E any](m Metric, rs S, score func(E) float32) {
	sort.SliceStable(rs, func(i, j int) bool {
		return m.Less(score(rs[i]), score(rs[j]))
	})
}

// NormalizeInPlace L2-normalizes v in place.
// Returns false if v has zero norm, leaving v untouched.
func NormalizeInPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := vek32.Dot(v, v)
	if norm2 == 0 {
		return false
	}
	vek32.MulNumber_Inplace(v, 1/float32(math.Sqrt(float64(norm2))))
	return true
}
