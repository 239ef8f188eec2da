package vexdb

import (
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vexdb/vexdb/distance"
	"github.com/vexdb/vexdb/internal/queue"
	"github.com/vexdb/vexdb/internal/vectorstore"
)

// Quality selects the speed/recall trade-off of a search.
type Quality int

const (
	// Fast favors latency, beam width 64.
	Fast Quality = iota
	// Balanced is the default, beam width 128.
	Balanced
	// Accurate favors recall, beam width 256.
	Accurate
	// Perfect bypasses the graph and scans every live vector.
	Perfect
)

func (q Quality) String() string {
	switch q {
	case Fast:
		return "fast"
	case Balanced:
		return "balanced"
	case Accurate:
		return "accurate"
	case Perfect:
		return "perfect"
	default:
		return "unknown"
	}
}

// EFSearch returns the traversal beam width for the quality level.
// Perfect returns 0: it does not traverse.
func (q Quality) EFSearch() int {
	switch q {
	case Fast:
		return 64
	case Accurate:
		return 256
	case Perfect:
		return 0
	default:
		return 128
	}
}

// SearchResult is one nearest neighbor. Score is in the metric's native
// orientation: squared distance for Euclidean (lower is better), similarity
// for cosine, dot product and Jaccard (higher is better).
type SearchResult struct {
	ID    uint64
	Score float32
}

// Search returns the k approximate nearest neighbors of query at Balanced
// quality.
func (idx *Index) Search(query []float32, k int) ([]SearchResult, error) {
	return idx.SearchWithQuality(query, k, Balanced)
}

// SearchWithQuality returns the k approximate nearest neighbors of query.
// Perfect quality and collections of at most 100 live vectors use an exact
// scan when vector storage is enabled. A query of the wrong length panics
// with *DimensionMismatchError.
func (idx *Index) SearchWithQuality(query []float32, k int, quality Quality) ([]SearchResult, error) {
	assertDimension(idx.dimension, query)
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if idx.IsEmpty() {
		return nil, nil
	}

	q := idx.prepare(query)

	if quality == Perfect {
		return idx.bruteForce(q, k)
	}
	if idx.vectors != nil && idx.Len() <= smallCollectionThreshold {
		start := time.Now()
		rs, err := idx.scanStore(q, k)
		idx.metrics.observeSearch("small_exact", start)
		idx.logger.LogSearch(k, len(rs), "small_exact")
		return rs, err
	}

	if idx.IsQuantizerTrained() && quantizedTraversal(idx.metric) {
		return idx.searchDualPrecision(q, k, quality)
	}
	return idx.searchGraph(q, k, quality)
}

// quantizedTraversal reports whether the metric has a meaningful asymmetric
// distance against int8 codes. Hamming and Jaccard do not; they stay on the
// full-precision path even when the quantizer is trained.
func quantizedTraversal(m distance.Metric) bool {
	switch m {
	case distance.Euclidean, distance.Cosine, distance.DotProduct:
		return true
	default:
		return false
	}
}

// searchGraph is the full-precision graph path.
func (idx *Index) searchGraph(q []float32, k int, quality Quality) ([]SearchResult, error) {
	start := time.Now()

	ef := quality.EFSearch()
	if ef < k {
		ef = k
	}
	items := idx.graph.Search(q, ef, ef)

	rs := idx.resolve(items, k)
	idx.metrics.observeSearch("graph", start)
	idx.logger.LogSearch(k, len(rs), "graph")
	return rs, nil
}

// searchDualPrecision traverses with asymmetric int8 distances, then
// re-ranks an enlarged candidate set with exact distances. The widened
// fetch absorbs the quantization noise in the traversal ordering.
func (idx *Index) searchDualPrecision(q []float32, k int, quality Quality) ([]SearchResult, error) {
	start := time.Now()

	ef := quality.EFSearch()
	if ef < k {
		ef = k
	}
	rerankK := 2 * ef
	if 4*k > rerankK {
		rerankK = 4 * k
	}

	sq := idx.dual.Quantizer()
	qd := func(slot uint32, vec []float32) float32 {
		code, ok := idx.dual.Code(slot)
		if !ok {
			// Slot has no code (removed, or inserted before training);
			// score its full-precision vector, which the traversal hands
			// over so the graph lock is never re-entered here.
			return idx.exactDist(q, vec)
		}
		if idx.metric == distance.Euclidean {
			return sq.AsymmetricL2(q, code)
		}
		return -sq.AsymmetricDot(q, code)
	}

	beam := rerankK
	if ef > beam {
		beam = ef
	}
	items := idx.graph.SearchWith(qd, q, rerankK, beam)

	rs := idx.rerank(q, items, k)
	idx.metrics.observeSearch("dual_precision", start)
	idx.logger.LogSearch(k, len(rs), "dual_precision")
	return rs, nil
}

// SearchWithRerank fetches rerankK candidates at Accurate quality and
// re-scores them with exact distances before truncating to k. rerankK
// values below k are raised to k.
func (idx *Index) SearchWithRerank(query []float32, k, rerankK int) ([]SearchResult, error) {
	assertDimension(idx.dimension, query)
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if rerankK < k {
		rerankK = k
	}
	if idx.IsEmpty() {
		return nil, nil
	}

	start := time.Now()
	q := idx.prepare(query)

	ef := Accurate.EFSearch()
	if ef < rerankK {
		ef = rerankK
	}
	items := idx.graph.Search(q, rerankK, ef)

	rs := idx.rerank(q, items, k)
	idx.metrics.observeSearch("rerank", start)
	idx.logger.LogSearch(k, len(rs), "rerank")
	return rs, nil
}

// rerank maps candidates to live IDs and re-scores them with exact
// distances, preferring stored full-precision vectors and falling back to
// the graph's copies.
func (idx *Index) rerank(q []float32, items []queue.Item, k int) []SearchResult {
	if idx.vectors != nil {
		slots := make([]uint32, len(items))
		for i, it := range items {
			slots[i] = it.Slot
		}
		idx.vectors.Prefetch(slots)
	}

	rs := make([]SearchResult, 0, len(items))
	for _, it := range items {
		id, ok := idx.mapping.GetID(it.Slot)
		if !ok {
			continue
		}
		vec, ok := idx.lookupVector(it.Slot)
		if !ok {
			continue
		}
		rs = append(rs, SearchResult{ID: id, Score: distance.Score(idx.metric, q, vec)})
	}

	distance.SortResults(idx.metric, rs, func(r SearchResult) float32 { return r.Score })
	if len(rs) > k {
		rs = rs[:k]
	}
	return rs
}

func (idx *Index) lookupVector(slot uint32) ([]float32, bool) {
	if idx.vectors != nil {
		if vec, ok := idx.vectors.Get(slot); ok {
			return vec, true
		}
	}
	return idx.graph.Vector(slot)
}

// resolve maps graph candidates to live IDs, converting internal distances
// back to metric-native scores, and truncates to k. Slots whose mapping
// was removed after tombstoning are dropped.
func (idx *Index) resolve(items []queue.Item, k int) []SearchResult {
	rs := make([]SearchResult, 0, minInt(k, len(items)))
	for _, it := range items {
		id, ok := idx.mapping.GetID(it.Slot)
		if !ok {
			continue
		}
		rs = append(rs, SearchResult{ID: id, Score: idx.graph.DistToScore(it.Dist)})
		if len(rs) == k {
			break
		}
	}
	return rs
}

// SearchBruteForce computes the exact k nearest neighbors with a parallel
// scan over every live vector. On a fast-insert index it degrades to an
// Accurate graph search over the graph's internal vectors.
func (idx *Index) SearchBruteForce(query []float32, k int) ([]SearchResult, error) {
	assertDimension(idx.dimension, query)
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if idx.IsEmpty() {
		return nil, nil
	}

	q := idx.prepare(query)
	return idx.bruteForce(q, k)
}

func (idx *Index) bruteForce(q []float32, k int) ([]SearchResult, error) {
	start := time.Now()

	if idx.vectors == nil {
		ef := Accurate.EFSearch() * 4
		if ef < k {
			ef = k
		}
		items := idx.graph.Search(q, ef, ef)
		rs := idx.resolve(items, k)
		idx.metrics.observeSearch("brute_force_degraded", start)
		idx.logger.LogSearch(k, len(rs), "brute_force_degraded")
		return rs, nil
	}

	rs, err := idx.scanStore(q, k)
	idx.metrics.observeSearch("brute_force", start)
	idx.logger.LogSearch(k, len(rs), "brute_force")
	return rs, err
}

// scanStore scores every stored vector, sharding the scan across
// GOMAXPROCS workers with per-worker top-k heaps.
func (idx *Index) scanStore(q []float32, k int) ([]SearchResult, error) {
	all := idx.vectors.Collect()
	if len(all) == 0 {
		return nil, nil
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(all) {
		workers = len(all)
	}
	chunk := (len(all) + workers - 1) / workers

	heaps := make([]*queue.Heap, workers)
	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := minInt(lo+chunk, len(all))
		eg.Go(func() error {
			heaps[w] = idx.scanChunk(q, all[lo:hi], k)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	merged := queue.NewMax(k)
	for _, h := range heaps {
		for {
			it, ok := h.Pop()
			if !ok {
				break
			}
			pushBounded(merged, it, k)
		}
	}

	items := merged.Drain()
	return idx.resolve(items, k), nil
}

func (idx *Index) scanChunk(q []float32, vecs []vectorstore.SlotVector, k int) *queue.Heap {
	h := queue.NewMax(k)
	for _, sv := range vecs {
		pushBounded(h, queue.Item{Slot: sv.Slot, Dist: idx.exactDist(q, sv.Vector)}, k)
	}
	return h
}

// pushBounded keeps h at most k items, evicting the worst.
func pushBounded(h *queue.Heap, it queue.Item, k int) {
	if h.Len() < k {
		h.Push(it)
		return
	}
	if worst, ok := h.Top(); ok && it.Dist < worst.Dist {
		h.Pop()
		h.Push(it)
	}
}

// exactDist is the internal lower-is-better distance between the prepared
// query and a stored vector.
func (idx *Index) exactDist(q, v []float32) float32 {
	s := distance.Score(idx.metric, q, v)
	if idx.metric.HigherIsBetter() {
		return -s
	}
	return s
}

// SearchBatchParallel runs one search per query with a bounded worker
// pool. results[i] corresponds to queries[i].
func (idx *Index) SearchBatchParallel(queries [][]float32, k int, quality Quality) ([][]SearchResult, error) {
	for _, q := range queries {
		assertDimension(idx.dimension, q)
	}
	if k <= 0 {
		return nil, ErrInvalidK
	}

	results := make([][]SearchResult, len(queries))

	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, q := range queries {
		eg.Go(func() error {
			rs, err := idx.SearchWithQuality(q, k, quality)
			if err != nil {
				return err
			}
			results[i] = rs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SearchBruteForceGPU is a placeholder for an accelerated exact scan.
// No accelerator backend is wired in; it always returns ErrNotSupported
// and callers fall back to SearchBruteForce.
func (idx *Index) SearchBruteForceGPU(query []float32, k int) ([]SearchResult, error) {
	assertDimension(idx.dimension, query)
	return nil, ErrNotSupported
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
