// Package mapping maintains the bidirectional association between external
// point IDs and internal dense slot indices.
//
// The map is partitioned into shards with independent locks so concurrent
// registrations and lookups of different IDs rarely contend. Sharding is
// invisible to callers. Slots are allocated from a dense counter and are
// never reused: removal releases the ID for the caller but leaves the slot
// tombstoned until a full rebuild.
package mapping

import (
	"sync"
	"sync/atomic"
)

const numShards = 16

type idShard struct {
	mu    sync.RWMutex
	slots map[uint64]uint32
}

type slotShard struct {
	mu  sync.RWMutex
	ids map[uint32]uint64
}

// Map is the sharded ID⇄slot mapping.
type Map struct {
	byID     [numShards]idShard
	bySlot   [numShards]slotShard
	nextSlot atomic.Uint32
	live     atomic.Int64
}

// New creates an empty mapping.
func New() *Map {
	m := &Map{}
	for i := range m.byID {
		m.byID[i].slots = make(map[uint64]uint32)
	}
	for i := range m.bySlot {
		m.bySlot[i].ids = make(map[uint32]uint64)
	}
	return m
}

func idShardFor(id uint64) int    { return int(id % numShards) }
func slotShardFor(slot uint32) int { return int(slot % numShards) }

// Register allocates a slot for id.
// Registration is idempotent: if id is already live, no slot is allocated
// and ok is false — the caller must look up the existing slot via GetSlot.
func (m *Map) Register(id uint64) (slot uint32, ok bool) {
	fs := &m.byID[idShardFor(id)]

	fs.mu.Lock()
	if _, exists := fs.slots[id]; exists {
		fs.mu.Unlock()
		return 0, false
	}
	slot = m.nextSlot.Add(1) - 1
	fs.slots[id] = slot
	fs.mu.Unlock()

	rs := &m.bySlot[slotShardFor(slot)]
	rs.mu.Lock()
	rs.ids[slot] = id
	rs.mu.Unlock()

	m.live.Add(1)
	return slot, true
}

// GetSlot returns the slot for a live id.
func (m *Map) GetSlot(id uint64) (uint32, bool) {
	fs := &m.byID[idShardFor(id)]
	fs.mu.RLock()
	slot, ok := fs.slots[id]
	fs.mu.RUnlock()
	return slot, ok
}

// GetID returns the live id occupying a slot.
func (m *Map) GetID(slot uint32) (uint64, bool) {
	rs := &m.bySlot[slotShardFor(slot)]
	rs.mu.RLock()
	id, ok := rs.ids[slot]
	rs.mu.RUnlock()
	return id, ok
}

// Remove deletes the mapping for id and returns its former slot.
// Both directions are cleared immediately; the underlying graph slot stays
// allocated (tombstone) until a rebuild.
func (m *Map) Remove(id uint64) (uint32, bool) {
	fs := &m.byID[idShardFor(id)]

	fs.mu.Lock()
	slot, ok := fs.slots[id]
	if !ok {
		fs.mu.Unlock()
		return 0, false
	}
	delete(fs.slots, id)
	fs.mu.Unlock()

	rs := &m.bySlot[slotShardFor(slot)]
	rs.mu.Lock()
	delete(rs.ids, slot)
	rs.mu.Unlock()

	m.live.Add(-1)
	return slot, true
}

// Len returns the number of live mappings.
func (m *Map) Len() int {
	return int(m.live.Load())
}

// NextSlot returns the next slot that would be allocated.
func (m *Map) NextSlot() uint32 {
	return m.nextSlot.Load()
}

// Snapshot returns a copy of all live (id, slot) pairs and the slot counter.
// Shards are read one at a time without a global lock; callers persist from
// a quiesced context, so cross-shard interleaving is acceptable.
func (m *Map) Snapshot() (pairs map[uint64]uint32, nextSlot uint32) {
	pairs = make(map[uint64]uint32, m.Len())
	for i := range m.byID {
		fs := &m.byID[i]
		fs.mu.RLock()
		for id, slot := range fs.slots {
			pairs[id] = slot
		}
		fs.mu.RUnlock()
	}
	return pairs, m.nextSlot.Load()
}

// Restore replaces the mapping contents from a snapshot.
// Not safe for use concurrently with other operations.
func (m *Map) Restore(pairs map[uint64]uint32, nextSlot uint32) {
	for i := range m.byID {
		m.byID[i].slots = make(map[uint64]uint32)
	}
	for i := range m.bySlot {
		m.bySlot[i].ids = make(map[uint32]uint64)
	}
	for id, slot := range pairs {
		m.byID[idShardFor(id)].slots[id] = slot
		m.bySlot[slotShardFor(slot)].ids[slot] = id
	}
	m.nextSlot.Store(nextSlot)
	m.live.Store(int64(len(pairs)))
}
