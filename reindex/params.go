package reindex

import "math"

// Params are the tunable graph construction parameters.
type Params struct {
	M              int
	EFConstruction int
	MaxLayers      int
}

// OptimalParams returns construction parameters suited to a collection of
// the given dimensionality and size. Larger collections and higher
// dimensions get denser graphs.
func OptimalParams(dimension, size int) Params {
	m := 16
	switch {
	case size <= 10_000:
		m = 12
	case size <= 100_000:
		m = 16
	case size <= 1_000_000:
		m = 24
	default:
		m = 32
	}
	if dimension >= 512 {
		m += 8
	}

	ef := m * 12
	if ef < 200 {
		ef = 200
	}

	layers := 16
	if size > 1 {
		layers = int(math.Ceil(math.Log(float64(size))/math.Log(float64(m)))) + 1
		if layers < 4 {
			layers = 4
		}
		if layers > 16 {
			layers = 16
		}
	}

	return Params{M: m, EFConstruction: ef, MaxLayers: layers}
}

// DivergenceCheck reports how far a collection's current parameters have
// drifted from the optimum for its present size.
type DivergenceCheck struct {
	Current     Params
	Optimal     Params
	Ratio       float64
	Recommended bool
	Reason      string
}
