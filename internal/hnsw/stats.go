package hnsw

// Stats is a point-in-time snapshot of graph shape, useful for debugging
// recall problems and for reindex divergence reporting.
type Stats struct {
	LiveNodes       int
	TombstonedSlots int
	MaxLevel        int
	EntryPoint      uint32
	LevelHistogram  []int // count of nodes whose top layer is the index
}

// Stats returns a snapshot of the graph shape.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Stats{
		LiveNodes:       g.liveCount,
		TombstonedSlots: int(g.tombstones.GetCardinality()),
		MaxLevel:        g.maxLevel,
		EntryPoint:      g.entryPoint,
	}
	if g.maxLevel >= 0 {
		s.LevelHistogram = make([]int, g.maxLevel+1)
		for slot, n := range g.nodes {
			if n == nil || g.tombstones.Contains(uint32(slot)) {
				continue
			}
			top := len(n.conns) - 1
			if top >= 0 && top <= g.maxLevel {
				s.LevelHistogram[top]++
			}
		}
	}
	return s
}
