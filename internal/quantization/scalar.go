// Package quantization provides int8 scalar quantization for
// memory-bandwidth-efficient graph traversal.
//
// A ScalarQuantizer is trained once from a bounded sample and is immutable
// afterwards; changing quantization parameters requires building a new index.
package quantization

import (
	"errors"
	"math"
)

var (
	// ErrNoSamples is returned when training on an empty sample set.
	ErrNoSamples = errors.New("quantization: no training samples")

	// ErrDimension is returned on a sample/vector dimension mismatch.
	ErrDimension = errors.New("quantization: dimension mismatch")
)

const codeLevels = 255 // int8 codes span [-128, 127]

// ScalarQuantizer maps float32 vectors to int8 codes using per-dimension
// affine parameters. Per-dimension bounds preserve substantially more
// precision than a single global range.
type ScalarQuantizer struct {
	mins      []float32
	maxs      []float32
	scales    []float32 // codeLevels / (max - min)
	invScales []float32 // (max - min) / codeLevels
	dimension int
}

// Train builds a quantizer from a sample of vectors by finding per-dimension
// bounds. The sample is typically the insert buffer of a DualStore.
func Train(samples [][]float32) (*ScalarQuantizer, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	dim := len(samples[0])

	mins := make([]float32, dim)
	maxs := make([]float32, dim)
	for i := range mins {
		mins[i] = math.MaxFloat32
		maxs[i] = -math.MaxFloat32
	}

	for _, v := range samples {
		if len(v) != dim {
			return nil, ErrDimension
		}
		for i, x := range v {
			if x < mins[i] {
				mins[i] = x
			}
			if x > maxs[i] {
				maxs[i] = x
			}
		}
	}

	return NewFromBounds(mins, maxs)
}

// NewFromBounds builds a quantizer from persisted per-dimension bounds.
func NewFromBounds(mins, maxs []float32) (*ScalarQuantizer, error) {
	if len(mins) == 0 || len(mins) != len(maxs) {
		return nil, ErrDimension
	}
	dim := len(mins)

	sq := &ScalarQuantizer{
		mins:      make([]float32, dim),
		maxs:      make([]float32, dim),
		scales:    make([]float32, dim),
		invScales: make([]float32, dim),
		dimension: dim,
	}
	copy(sq.mins, mins)
	copy(sq.maxs, maxs)

	for i := range sq.mins {
		// Constant dimensions quantize to a single level.
		r := sq.maxs[i] - sq.mins[i]
		if r < 1e-9 {
			sq.scales[i] = 0
			sq.invScales[i] = 0
			continue
		}
		sq.scales[i] = codeLevels / r
		sq.invScales[i] = r / codeLevels
	}
	return sq, nil
}

// Dimension returns the vector dimension the quantizer was trained for.
func (sq *ScalarQuantizer) Dimension() int { return sq.dimension }

// Bounds returns the per-dimension min and max values, for persistence.
func (sq *ScalarQuantizer) Bounds() (mins, maxs []float32) {
	return sq.mins, sq.maxs
}

// Encode quantizes v to int8 codes. Out-of-range values are clamped to the
// trained bounds.
func (sq *ScalarQuantizer) Encode(v []float32) ([]int8, error) {
	if len(v) != sq.dimension {
		return nil, ErrDimension
	}
	code := make([]int8, len(v))
	for i, x := range v {
		if x < sq.mins[i] {
			x = sq.mins[i]
		} else if x > sq.maxs[i] {
			x = sq.maxs[i]
		}
		// Map [min, max] onto [-128, 127], rounding to nearest.
		code[i] = int8(math.Round(float64((x-sq.mins[i])*sq.scales[i])) - 128)
	}
	return code, nil
}

// Decode reconstructs the approximate float32 vector for a code.
func (sq *ScalarQuantizer) Decode(code []int8) ([]float32, error) {
	if len(code) != sq.dimension {
		return nil, ErrDimension
	}
	v := make([]float32, len(code))
	for i, c := range code {
		v[i] = sq.reconstruct(i, c)
	}
	return v, nil
}

func (sq *ScalarQuantizer) reconstruct(dim int, c int8) float32 {
	return sq.mins[dim] + float32(int32(c)+128)*sq.invScales[dim]
}

// AsymmetricL2 computes the squared L2 distance between a full-precision
// query and a quantized vector without materializing the decoded vector.
func (sq *ScalarQuantizer) AsymmetricL2(q []float32, code []int8) float32 {
	var dist float32
	for i := range q {
		d := q[i] - sq.reconstruct(i, code[i])
		dist += d * d
	}
	return dist
}

// AsymmetricDot computes the dot product between a full-precision query and
// a quantized vector.
func (sq *ScalarQuantizer) AsymmetricDot(q []float32, code []int8) float32 {
	var dot float32
	for i := range q {
		dot += q[i] * sq.reconstruct(i, code[i])
	}
	return dot
}
