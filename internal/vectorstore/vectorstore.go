// Package vectorstore provides sharded storage for full-precision vectors.
//
// Vectors are partitioned across shards keyed by slot so concurrent inserts
// and reads of different slots rarely contend on the same lock. Storage is
// optional per index instance: in fast-insert mode no store exists at all
// and callers degrade to graph-only answers.
package vectorstore

import (
	"errors"
	"sync"
)

// ErrDimension is returned when a vector does not match the store dimension.
var ErrDimension = errors.New("vectorstore: wrong vector dimension")

const numShards = 16

// SlotVector pairs a slot with its stored vector.
type SlotVector struct {
	Slot   uint32
	Vector []float32
}

type shard struct {
	mu      sync.RWMutex
	vectors map[uint32][]float32
}

// Store holds full-precision vectors keyed by slot.
type Store struct {
	dimension int
	shards    [numShards]shard
}

// New creates a store for vectors of the given dimension.
func New(dimension int) *Store {
	s := &Store{dimension: dimension}
	for i := range s.shards {
		s.shards[i].vectors = make(map[uint32][]float32)
	}
	return s
}

// Dimension returns the configured vector dimension.
func (s *Store) Dimension() int { return s.dimension }

func (s *Store) shardFor(slot uint32) *shard {
	return &s.shards[slot%numShards]
}

// Set stores a copy of v under slot. Written once per slot in normal
// operation; a second write overwrites.
func (s *Store) Set(slot uint32, v []float32) error {
	if len(v) != s.dimension {
		return ErrDimension
	}
	cp := make([]float32, len(v))
	copy(cp, v)

	sh := s.shardFor(slot)
	sh.mu.Lock()
	sh.vectors[slot] = cp
	sh.mu.Unlock()
	return nil
}

// Get returns the vector stored under slot.
// The returned slice aliases internal memory and must not be mutated.
func (s *Store) Get(slot uint32) ([]float32, bool) {
	sh := s.shardFor(slot)
	sh.mu.RLock()
	v, ok := sh.vectors[slot]
	sh.mu.RUnlock()
	return v, ok
}

// Delete removes the vector stored under slot.
func (s *Store) Delete(slot uint32) {
	sh := s.shardFor(slot)
	sh.mu.Lock()
	delete(sh.vectors, slot)
	sh.mu.Unlock()
}

// Len returns the number of stored vectors.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.vectors)
		sh.mu.RUnlock()
	}
	return n
}

// Collect returns a snapshot of all stored vectors, suitable for parallel
// iteration (brute-force scans, re-ranking, quantizer training).
//
// Shards are read one at a time without a global lock; mutations racing the
// snapshot may or may not be included. Callers needing exactness snapshot
// from a quiesced context.
func (s *Store) Collect() []SlotVector {
	out := make([]SlotVector, 0, s.Len())
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for slot, v := range sh.vectors {
			out = append(out, SlotVector{Slot: slot, Vector: v})
		}
		sh.mu.RUnlock()
	}
	return out
}
