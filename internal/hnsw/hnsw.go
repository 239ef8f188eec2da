package hnsw

import (
	"errors"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/vexdb/vexdb/distance"
	"github.com/vexdb/vexdb/internal/queue"
	"github.com/vexdb/vexdb/internal/visited"
)

const (
	// DefaultM is the default number of bidirectional links per node.
	DefaultM = 16

	// DefaultEFConstruction is the default candidate list size during
	// construction.
	DefaultEFConstruction = 200

	// DefaultMaxLayers caps the level assignment.
	DefaultMaxLayers = 16

	// mmax0Multiplier doubles the connection budget at layer 0.
	mmax0Multiplier = 2
)

var (
	// ErrSlotOccupied is returned when inserting into a slot that already
	// holds a node.
	ErrSlotOccupied = errors.New("hnsw: slot already occupied")
)

// Config holds the graph construction parameters. They are immutable for
// the lifetime of a graph; changing them requires a full rebuild.
type Config struct {
	M              int
	EFConstruction int
	MaxLayers      int
	Metric         distance.Metric
	Seed           int64
}

// withDefaults fills zero fields with defaults.
func (c Config) withDefaults() Config {
	if c.M < 2 {
		c.M = DefaultM
	}
	if c.EFConstruction <= 0 {
		c.EFConstruction = DefaultEFConstruction
	}
	if c.MaxLayers <= 0 {
		c.MaxLayers = DefaultMaxLayers
	}
	return c
}

// node is a slot's participation in the graph: its level and one bounded
// adjacency list per layer it occupies.
type node struct {
	vec   []float32
	conns [][]uint32 // conns[layer]
}

// Graph is the layered proximity graph.
type Graph struct {
	mu sync.RWMutex

	cfg             Config
	mmax0           int
	layerMultiplier float64

	nodes      []*node // indexed by slot
	entryPoint uint32
	maxLevel   int // -1 while empty
	liveCount  int

	tombstones *roaring.Bitmap

	rng   *rand.Rand
	rngMu sync.Mutex

	visitedPool sync.Pool
}

// New creates an empty graph.
func New(cfg Config) *Graph {
	cfg = cfg.withDefaults()
	return &Graph{
		cfg:             cfg,
		mmax0:           cfg.M * mmax0Multiplier,
		layerMultiplier: 1.0 / math.Log(float64(cfg.M)),
		maxLevel:        -1,
		tombstones:      roaring.New(),
		rng:             rand.New(rand.NewSource(cfg.Seed)),
		visitedPool: sync.Pool{
			New: func() any { return visited.New(1024) },
		},
	}
}

// Config returns the construction parameters.
func (g *Graph) Config() Config { return g.cfg }

// Len returns the number of live (non-tombstoned) nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.liveCount
}

// dist converts the metric score into an internal distance where lower is
// always better.
func (g *Graph) dist(a, b []float32) float32 {
	s := distance.Score(g.cfg.Metric, a, b)
	if g.cfg.Metric.HigherIsBetter() {
		return -s
	}
	return s
}

// DistToScore converts an internal traversal distance back to the
// metric-native score.
func (g *Graph) DistToScore(d float32) float32 {
	if g.cfg.Metric.HigherIsBetter() {
		return -d
	}
	return d
}

// randomLevel draws a level from the standard exponential distribution,
// capped by MaxLayers.
func (g *Graph) randomLevel() int {
	g.rngMu.Lock()
	r := g.rng.Float64()
	g.rngMu.Unlock()
	if r == 0 {
		r = math.SmallestNonzeroFloat64
	}
	level := int(math.Floor(-math.Log(r) * g.layerMultiplier))
	if max := g.cfg.MaxLayers - 1; level > max {
		level = max
	}
	return level
}

// Insert wires slot into the graph with the given vector. For cosine
// indexes the caller normalizes beforehand.
func (g *Graph) Insert(slot uint32, vec []float32) error {
	level := g.randomLevel()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.growTo(slot)
	if g.nodes[slot] != nil {
		return ErrSlotOccupied
	}

	n := &node{vec: vec, conns: make([][]uint32, level+1)}
	g.nodes[slot] = n
	g.liveCount++

	// First node becomes the entry point.
	if g.maxLevel == -1 {
		g.entryPoint = slot
		g.maxLevel = level
		return nil
	}

	// Greedy descent through layers above the new node's level.
	curr := g.entryPoint
	currDist := g.dist(vec, g.nodes[curr].vec)
	for l := g.maxLevel; l > level; l-- {
		curr, currDist = g.greedyStep(vec, curr, currDist, l)
	}

	// Wire into each layer from min(level, maxLevel) down to 0.
	for l := minInt(level, g.maxLevel); l >= 0; l-- {
		results := g.searchLayer(g.floatDist(vec), curr, currDist, l, g.cfg.EFConstruction, true)

		maxConns := g.cfg.M
		if l == 0 {
			maxConns = g.mmax0
		}

		neighbors := g.selectNeighbors(vec, results, maxConns)
		n.conns[l] = neighbors

		for _, nb := range neighbors {
			g.linkBack(nb, slot, l, maxConns)
		}

		if len(results) > 0 {
			curr = results[0].Slot
			currDist = results[0].Dist
		}
	}

	if level > g.maxLevel {
		g.maxLevel = level
		g.entryPoint = slot
	}
	return nil
}

// BatchItem pairs a slot with the vector to insert.
type BatchItem struct {
	Slot   uint32
	Vector []float32
}

// InsertBatch inserts many vectors using a bounded worker pool. Items may
// complete in any order; the write lock serializes structure mutation.
func (g *Graph) InsertBatch(items []BatchItem) error {
	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for _, it := range items {
		eg.Go(func() error {
			return g.Insert(it.Slot, it.Vector)
		})
	}
	return eg.Wait()
}

// Remove tombstones a slot. The node stays structurally present (its
// adjacency survives so traversal can route through it) but is never
// returned from searches. Reports whether the slot held a live node.
//
// If the removed slot was the entry point, a new entry point is selected
// immediately from the remaining live nodes.
func (g *Graph) Remove(slot uint32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if int(slot) >= len(g.nodes) || g.nodes[slot] == nil || g.tombstones.Contains(slot) {
		return false
	}

	g.tombstones.Add(slot)
	g.liveCount--

	if slot == g.entryPoint {
		g.reassignEntryPointLocked()
	}
	return true
}

// reassignEntryPointLocked scans for the live node with the highest level.
// O(n), but removal of the entry point is rare.
func (g *Graph) reassignEntryPointLocked() {
	bestSlot := uint32(0)
	bestLevel := -1
	for s, n := range g.nodes {
		if n == nil || g.tombstones.Contains(uint32(s)) {
			continue
		}
		if l := len(n.conns) - 1; l > bestLevel {
			bestLevel = l
			bestSlot = uint32(s)
		}
	}
	if bestLevel == -1 {
		g.maxLevel = -1
		g.entryPoint = 0
		return
	}
	g.entryPoint = bestSlot
	g.maxLevel = bestLevel
}

// Search returns up to k live candidates ordered by ascending internal
// distance, using full-precision vectors for traversal.
func (g *Graph) Search(query []float32, k, ef int) []queue.Item {
	return g.SearchWith(nil, query, k, ef)
}

// SearchWith runs the same traversal with a custom per-slot distance (used
// for quantized traversal). The callback receives the slot's stored vector
// and runs while the graph's read lock is held: it must not call back into
// the graph, and it must honor the internal lower-is-better orientation.
// Pass nil to score against stored vectors.
func (g *Graph) SearchWith(qd func(slot uint32, vec []float32) float32, query []float32, k, ef int) []queue.Item {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.maxLevel == -1 {
		return nil
	}
	if ef < k {
		ef = k
	}

	dist := qd
	if dist == nil {
		dist = g.floatDist(query)
	}

	// Greedy descent to layer 1.
	curr := g.entryPoint
	currDist := dist(curr, g.nodes[curr].vec)
	for l := g.maxLevel; l > 0; l-- {
		curr, currDist = g.greedyStepWith(dist, curr, currDist, l)
	}

	results := g.searchLayer(dist, curr, currDist, 0, ef, false)
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// floatDist builds a per-slot distance against stored vectors.
func (g *Graph) floatDist(query []float32) func(uint32, []float32) float32 {
	return func(_ uint32, vec []float32) float32 {
		return g.dist(query, vec)
	}
}

// greedyStep moves to the closest neighbor at the given layer until no
// neighbor improves, using stored vectors.
func (g *Graph) greedyStep(query []float32, curr uint32, currDist float32, layer int) (uint32, float32) {
	return g.greedyStepWith(g.floatDist(query), curr, currDist, layer)
}

func (g *Graph) greedyStepWith(dist func(uint32, []float32) float32, curr uint32, currDist float32, layer int) (uint32, float32) {
	for changed := true; changed; {
		changed = false
		n := g.nodes[curr]
		if layer >= len(n.conns) {
			break
		}
		for _, nb := range n.conns[layer] {
			if d := dist(nb, g.nodes[nb].vec); d < currDist {
				curr = nb
				currDist = d
				changed = true
			}
		}
	}
	return curr, currDist
}

// searchLayer runs a best-first beam search bounded by ef at one layer.
// Tombstoned slots route traversal but never enter the result set, except
// during construction (includeTombstones) where the full neighborhood is
// wanted for wiring.
//
// Results are returned ordered by ascending distance.
func (g *Graph) searchLayer(dist func(uint32, []float32) float32, ep uint32, epDist float32, layer, ef int, includeTombstones bool) []queue.Item {
	vs := g.visitedPool.Get().(*visited.Set)
	defer func() {
		vs.Reset()
		g.visitedPool.Put(vs)
	}()

	candidates := queue.NewMin(ef)
	results := queue.NewMax(ef)

	vs.Visit(ep)
	candidates.Push(queue.Item{Slot: ep, Dist: epDist})
	if includeTombstones || !g.tombstones.Contains(ep) {
		results.Push(queue.Item{Slot: ep, Dist: epDist})
	}

	for candidates.Len() > 0 {
		curr, _ := candidates.Pop()

		if results.Len() >= ef {
			if worst, ok := results.Top(); ok && curr.Dist > worst.Dist {
				break
			}
		}

		n := g.nodes[curr.Slot]
		if layer >= len(n.conns) {
			continue
		}

		for _, nb := range n.conns[layer] {
			if vs.Visited(nb) {
				continue
			}
			vs.Visit(nb)

			d := dist(nb, g.nodes[nb].vec)

			// Skip obviously-bad candidates once the beam is full.
			if results.Len() >= ef {
				if worst, ok := results.Top(); ok && d > worst.Dist {
					continue
				}
			}

			candidates.Push(queue.Item{Slot: nb, Dist: d})
			if includeTombstones || !g.tombstones.Contains(nb) {
				results.Push(queue.Item{Slot: nb, Dist: d})
				if results.Len() > ef {
					results.Pop()
				}
			}
		}
	}

	return results.Drain()
}

// selectNeighbors picks up to m diverse neighbors from candidates (ordered
// by ascending distance). A candidate is kept only if it is closer to the
// new node than to any already-selected neighbor; remaining capacity is
// filled with the nearest rejected candidates.
func (g *Graph) selectNeighbors(vec []float32, candidates []queue.Item, m int) []uint32 {
	if len(candidates) <= m {
		out := make([]uint32, len(candidates))
		for i, c := range candidates {
			out[i] = c.Slot
		}
		return out
	}

	selected := make([]uint32, 0, m)
	var rejected []queue.Item

	for _, c := range candidates {
		if len(selected) >= m {
			break
		}
		cv := g.nodes[c.Slot].vec
		diverse := true
		for _, s := range selected {
			if g.dist(cv, g.nodes[s].vec) < c.Dist {
				diverse = false
				break
			}
		}
		if diverse {
			selected = append(selected, c.Slot)
		} else {
			rejected = append(rejected, c)
		}
	}

	for _, c := range rejected {
		if len(selected) >= m {
			break
		}
		selected = append(selected, c.Slot)
	}
	return selected
}

// linkBack adds a reverse edge from nb to slot at the given layer,
// pruning nb's worst edge when it is at capacity.
func (g *Graph) linkBack(nb, slot uint32, layer, maxConns int) {
	n := g.nodes[nb]
	if layer >= len(n.conns) {
		return
	}

	conns := n.conns[layer]
	for _, c := range conns {
		if c == slot {
			return
		}
	}

	if len(conns) < maxConns {
		n.conns[layer] = append(conns, slot)
		return
	}

	// At capacity: replace the farthest existing edge if the new node is
	// closer than it.
	worstIdx := -1
	worstDist := float32(math.Inf(-1))
	for i, c := range conns {
		if d := g.dist(n.vec, g.nodes[c].vec); d > worstDist {
			worstDist = d
			worstIdx = i
		}
	}
	if worstIdx >= 0 && g.dist(n.vec, g.nodes[slot].vec) < worstDist {
		n.conns[layer][worstIdx] = slot
	}
}

// Vector returns the stored vector for a slot, live or tombstoned.
func (g *Graph) Vector(slot uint32) ([]float32, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if int(slot) >= len(g.nodes) || g.nodes[slot] == nil {
		return nil, false
	}
	return g.nodes[slot].vec, true
}

// IsTombstoned reports whether a slot has been removed.
func (g *Graph) IsTombstoned(slot uint32) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tombstones.Contains(slot)
}

func (g *Graph) growTo(slot uint32) {
	for int(slot) >= len(g.nodes) {
		g.nodes = append(g.nodes, nil)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
