package vexdb

import (
	"github.com/vexdb/vexdb/reindex"
)

// Options configures an Index.
type Options struct {
	// M is the maximum number of bidirectional links per node per layer.
	// Zero derives it from (dimension, MaxElements).
	M int

	// EFConstruction is the candidate list size during graph construction.
	// Zero derives it alongside M.
	EFConstruction int

	// MaxLayers caps layer assignment. Zero derives it.
	MaxLayers int

	// MaxElements is the expected collection size, used for parameter
	// derivation and the quantizer training threshold.
	MaxElements int

	// VectorStorage keeps full-precision vectors for brute force and
	// re-ranking. Disabling it ("fast-insert" mode) trades those
	// capabilities for maximum insert throughput.
	VectorStorage bool

	// Quantization enables the dual-precision path: int8 traversal after
	// the scalar quantizer trains, exact re-ranking on top.
	Quantization bool

	// RandomSeed controls level assignment. Nil uses a fixed default
	// seed, so graphs are reproducible unless a seed is supplied.
	RandomSeed *int64

	// Logger receives structured operation logs. Nil defaults to a text
	// logger at Info level.
	Logger *Logger

	// Metrics receives operation counters and latencies. Nil disables
	// metric collection.
	Metrics *Metrics
}

// DefaultOptions are the options used by New before applying overrides.
var DefaultOptions = Options{
	MaxElements:   100_000,
	VectorStorage: true,
	Quantization:  false,
}

// deriveParams fills zero graph parameters from the auto-tuning heuristic
// shared with the reindex manager.
func (o *Options) deriveParams(dimension int) {
	p := reindex.OptimalParams(dimension, o.MaxElements)
	if o.M == 0 {
		o.M = p.M
	}
	if o.EFConstruction == 0 {
		o.EFConstruction = p.EFConstruction
	}
	if o.MaxLayers == 0 {
		o.MaxLayers = p.MaxLayers
	}
}
