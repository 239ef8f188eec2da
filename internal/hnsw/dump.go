package hnsw

import "github.com/RoaringBitmap/roaring/v2"

// NodeDump is the serializable form of one graph node.
type NodeDump struct {
	Slot   uint32
	Conns  [][]uint32
	Vector []float32
}

// Dump is the serializable form of the whole graph. It round-trips the
// structure exactly: adjacency, levels, entry point and tombstones.
type Dump struct {
	Nodes      []NodeDump
	EntryPoint uint32
	MaxLevel   int
	Tombstones *roaring.Bitmap
}

// Dump snapshots the graph for persistence.
func (g *Graph) Dump() *Dump {
	g.mu.RLock()
	defer g.mu.RUnlock()

	d := &Dump{
		EntryPoint: g.entryPoint,
		MaxLevel:   g.maxLevel,
		Tombstones: g.tombstones.Clone(),
	}
	for slot, n := range g.nodes {
		if n == nil {
			continue
		}
		conns := make([][]uint32, len(n.conns))
		for l, c := range n.conns {
			cp := make([]uint32, len(c))
			copy(cp, c)
			conns[l] = cp
		}
		vec := make([]float32, len(n.vec))
		copy(vec, n.vec)
		d.Nodes = append(d.Nodes, NodeDump{Slot: uint32(slot), Conns: conns, Vector: vec})
	}
	return d
}

// Restore replaces the graph contents from a dump.
// Not safe for use concurrently with other operations.
func (g *Graph) Restore(d *Dump) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = nil
	g.liveCount = 0
	for _, nd := range d.Nodes {
		g.growTo(nd.Slot)
		g.nodes[nd.Slot] = &node{vec: nd.Vector, conns: nd.Conns}
		g.liveCount++
	}

	g.entryPoint = d.EntryPoint
	g.maxLevel = d.MaxLevel
	if d.Tombstones != nil {
		g.tombstones = d.Tombstones.Clone()
		g.liveCount -= int(g.tombstones.GetCardinality())
	} else {
		g.tombstones = roaring.New()
	}
}
