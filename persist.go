package vexdb

import (
	"github.com/vexdb/vexdb/distance"
	"github.com/vexdb/vexdb/internal/quantization"
	"github.com/vexdb/vexdb/persistence"
)

// Save writes the index state into dir. Concurrent writes during a save
// produce a consistent snapshot of some interleaving, not necessarily the
// latest one.
func (idx *Index) Save(dir string, optFns ...func(o *persistence.Options)) error {
	cfg := idx.graph.Config()
	pairs, nextSlot := idx.mapping.Snapshot()

	snap := &persistence.Snapshot{
		Meta: persistence.Metadata{
			Dimension:      idx.dimension,
			Metric:         idx.metric,
			VectorStorage:  idx.vectors != nil,
			M:              cfg.M,
			EFConstruction: cfg.EFConstruction,
			MaxLayers:      cfg.MaxLayers,
			Seed:           cfg.Seed,
		},
		Graph:    idx.graph.Dump(),
		IDToSlot: pairs,
		NextSlot: nextSlot,
	}

	if idx.vectors != nil {
		snap.Vectors = idx.vectors.Collect()
	}
	if idx.IsQuantizerTrained() {
		snap.QuantizerMins, snap.QuantizerMaxs = idx.dual.Quantizer().Bounds()
		snap.Codes = idx.dual.Codes()
	}

	err := persistence.Save(dir, snap, optFns...)
	idx.logger.LogPersistence("save", dir, err)
	return err
}

// Load reads an index from dir. dimension and metric are hints only: the
// persisted metadata is authoritative, and a stale hint is logged, never
// fatal. Option overrides apply on top of the persisted configuration;
// graph parameters and the storage mode always come from disk.
func Load(dir string, dimension int, metric distance.Metric, optFns ...func(o *Options)) (*Index, error) {
	snap, err := persistence.Load(dir)
	if err != nil {
		return nil, err
	}

	quantized := snap.QuantizerMins != nil

	idx, err := New(snap.Meta.Dimension, snap.Meta.Metric, func(o *Options) {
		for _, fn := range optFns {
			fn(o)
		}
		o.M = snap.Meta.M
		o.EFConstruction = snap.Meta.EFConstruction
		o.MaxLayers = snap.Meta.MaxLayers
		o.VectorStorage = snap.Meta.VectorStorage
		if quantized {
			o.Quantization = true
		}
		seed := snap.Meta.Seed
		o.RandomSeed = &seed
	})
	if err != nil {
		return nil, err
	}

	if dimension != 0 && dimension != snap.Meta.Dimension {
		idx.logger.Warn("ignoring stale dimension hint",
			"hint", dimension, "persisted", snap.Meta.Dimension)
	}
	if metric != snap.Meta.Metric {
		idx.logger.Warn("ignoring stale metric hint",
			"hint", metric.String(), "persisted", snap.Meta.Metric.String())
	}

	idx.graph.Restore(snap.Graph)
	idx.mapping.Restore(snap.IDToSlot, snap.NextSlot)

	if idx.vectors != nil {
		for _, sv := range snap.Vectors {
			if err := idx.vectors.Set(sv.Slot, sv.Vector); err != nil {
				return nil, err
			}
		}
	}

	if quantized && idx.dual != nil {
		sq, err := quantization.NewFromBounds(snap.QuantizerMins, snap.QuantizerMaxs)
		if err != nil {
			return nil, err
		}
		idx.dual.Restore(sq, snap.Codes)
	}

	idx.logger.LogPersistence("load", dir, nil)
	return idx, nil
}
