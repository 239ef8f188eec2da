package vexdb

import (
	"github.com/vexdb/vexdb/distance"
	"github.com/vexdb/vexdb/internal/hnsw"
	"github.com/vexdb/vexdb/internal/mapping"
	"github.com/vexdb/vexdb/internal/quantization"
	"github.com/vexdb/vexdb/internal/vectorstore"
	"github.com/vexdb/vexdb/reindex"
)

// smallCollectionThreshold is the live-vector count at or below which
// brute force beats graph traversal and is used automatically.
const smallCollectionThreshold = 100

// Index is an approximate nearest neighbor index over float32 vectors,
// addressed by caller-chosen uint64 IDs. All methods are safe for
// concurrent use.
type Index struct {
	dimension int
	metric    distance.Metric
	opts      Options

	logger  *Logger
	metrics *Metrics

	mapping *mapping.Map
	vectors *vectorstore.Store      // nil in fast-insert mode
	dual    *quantization.DualStore // nil unless quantization is enabled
	graph   *hnsw.Graph

	reindexer *reindex.Manager
}

// New creates an empty index.
func New(dimension int, metric distance.Metric, optFns ...func(o *Options)) (*Index, error) {
	if dimension <= 0 {
		return nil, ErrInvalidDimension
	}

	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.deriveParams(dimension)

	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}

	var seed int64
	if opts.RandomSeed != nil {
		seed = *opts.RandomSeed
	}

	idx := &Index{
		dimension: dimension,
		metric:    metric,
		opts:      opts,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		mapping:   mapping.New(),
		graph: hnsw.New(hnsw.Config{
			M:              opts.M,
			EFConstruction: opts.EFConstruction,
			MaxLayers:      opts.MaxLayers,
			Metric:         metric,
			Seed:           seed,
		}),
		reindexer: reindex.New(),
	}

	if opts.VectorStorage {
		idx.vectors = vectorstore.New(dimension)
	}
	if opts.Quantization {
		idx.dual = quantization.NewDualStore(dimension, opts.MaxElements)
	}

	return idx, nil
}

// prepare returns the vector as stored: a private copy, L2-normalized for
// the cosine metric.
func (idx *Index) prepare(v []float32) []float32 {
	vec := make([]float32, len(v))
	copy(vec, v)
	if idx.metric == distance.Cosine {
		distance.NormalizeInPlace(vec)
	}
	return vec
}

// Insert adds a vector under the given ID. Inserting an ID that is already
// live returns ErrIDExists; use Update for replace semantics. A vector of
// the wrong length panics with *DimensionMismatchError.
func (idx *Index) Insert(id uint64, vector []float32) error {
	assertDimension(idx.dimension, vector)

	vec := idx.prepare(vector)

	slot, ok := idx.mapping.Register(id)
	if !ok {
		idx.logger.LogInsert(id, ErrIDExists)
		return ErrIDExists
	}

	if idx.vectors != nil {
		if err := idx.vectors.Set(slot, vec); err != nil {
			idx.logger.LogInsert(id, err)
			return err
		}
	}

	if err := idx.graph.Insert(slot, vec); err != nil {
		idx.logger.LogInsert(id, err)
		return err
	}

	idx.observeQuantizer(slot, vec)

	idx.metrics.observeInsert()
	idx.logger.LogInsert(id, nil)
	return nil
}

// InsertItem pairs an ID with its vector for batch insertion.
type InsertItem struct {
	ID     uint64
	Vector []float32
}

// InsertBatch inserts many vectors, building the graph with a bounded
// worker pool. Items with already-live IDs are skipped. The first storage
// or graph error aborts the batch; earlier items stay inserted.
func (idx *Index) InsertBatch(items []InsertItem) error {
	batch := make([]hnsw.BatchItem, 0, len(items))
	for _, it := range items {
		assertDimension(idx.dimension, it.Vector)

		vec := idx.prepare(it.Vector)
		slot, ok := idx.mapping.Register(it.ID)
		if !ok {
			continue
		}
		if idx.vectors != nil {
			if err := idx.vectors.Set(slot, vec); err != nil {
				return err
			}
		}
		batch = append(batch, hnsw.BatchItem{Slot: slot, Vector: vec})
	}

	if err := idx.graph.InsertBatch(batch); err != nil {
		return err
	}

	for _, it := range batch {
		idx.observeQuantizer(it.Slot, it.Vector)
		idx.metrics.observeInsert()
	}
	return nil
}

func (idx *Index) observeQuantizer(slot uint32, vec []float32) {
	if idx.dual == nil {
		return
	}
	trainedBefore := idx.dual.Trained()
	_ = idx.dual.Observe(slot, vec)
	if !trainedBefore && idx.dual.Trained() {
		idx.logger.LogQuantizerTrained(idx.dual.Threshold())
	}
}

// Remove deletes the vector with the given ID. The slot is tombstoned in
// the graph and never reused; the ID becomes free immediately. Returns
// false if the ID was not live.
func (idx *Index) Remove(id uint64) bool {
	slot, ok := idx.mapping.Remove(id)
	if !ok {
		idx.logger.LogRemove(id, false)
		return false
	}

	idx.graph.Remove(slot)
	if idx.vectors != nil {
		idx.vectors.Delete(slot)
	}
	if idx.dual != nil {
		idx.dual.Drop(slot)
	}

	idx.metrics.observeRemove()
	idx.logger.LogRemove(id, true)
	return true
}

// Update replaces the vector stored under id. The old slot is tombstoned
// and a fresh slot is allocated, like a remove followed by an insert.
func (idx *Index) Update(id uint64, vector []float32) error {
	assertDimension(idx.dimension, vector)
	idx.Remove(id)
	return idx.Insert(id, vector)
}

// GetVector returns a copy of the full-precision vector stored under id.
// Cosine indexes return the normalized form. Returns ErrNoVectorStorage on
// a fast-insert index and ErrNotFound when the ID is not live.
func (idx *Index) GetVector(id uint64) ([]float32, error) {
	if idx.vectors == nil {
		return nil, ErrNoVectorStorage
	}
	slot, ok := idx.mapping.GetSlot(id)
	if !ok {
		return nil, ErrNotFound
	}
	vec, ok := idx.vectors.Get(slot)
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, nil
}

// Len returns the number of live vectors.
func (idx *Index) Len() int {
	return idx.mapping.Len()
}

// IsEmpty reports whether the index holds no live vectors.
func (idx *Index) IsEmpty() bool {
	return idx.Len() == 0
}

// Dimension returns the vector dimensionality.
func (idx *Index) Dimension() int { return idx.dimension }

// Metric returns the distance metric.
func (idx *Index) Metric() distance.Metric { return idx.metric }

// Params returns the graph construction parameters in the form the
// reindex manager consumes.
func (idx *Index) Params() reindex.Params {
	cfg := idx.graph.Config()
	return reindex.Params{
		M:              cfg.M,
		EFConstruction: cfg.EFConstruction,
		MaxLayers:      cfg.MaxLayers,
	}
}

// Reindexer returns the manager that tracks parameter drift for this
// index. The caller drives the rebuild itself; the manager owns the state
// machine and the benchmark gate.
func (idx *Index) Reindexer() *reindex.Manager { return idx.reindexer }

// IsQuantizerTrained reports whether the int8 traversal path is active.
func (idx *Index) IsQuantizerTrained() bool {
	return idx.dual != nil && idx.dual.Trained()
}

// ForceTrainQuantizer trains the scalar quantizer from the samples
// buffered so far instead of waiting for the training threshold. Returns
// ErrNotSupported when quantization is disabled.
func (idx *Index) ForceTrainQuantizer() error {
	if idx.dual == nil {
		return ErrNotSupported
	}
	return idx.dual.ForceTrain()
}

// Stats is a point-in-time snapshot of index shape.
type Stats struct {
	LiveVectors      int
	NextSlot         uint32
	Graph            hnsw.Stats
	VectorStorage    bool
	QuantizerTrained bool
}

// Stats returns a snapshot of index shape.
func (idx *Index) Stats() Stats {
	return Stats{
		LiveVectors:      idx.mapping.Len(),
		NextSlot:         idx.mapping.NextSlot(),
		Graph:            idx.graph.Stats(),
		VectorStorage:    idx.vectors != nil,
		QuantizerTrained: idx.IsQuantizerTrained(),
	}
}
