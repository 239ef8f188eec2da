package quantization

import (
	"sync"
)

// DefaultTrainingThreshold is the natural sample size that triggers training.
const DefaultTrainingThreshold = 1000

// buffered is a vector waiting for the quantizer to be trained.
type buffered struct {
	slot uint32
	vec  []float32
}

// DualStore manages the untrained→trained lifecycle of scalar quantization.
//
// The store is an explicit two-state machine. While untrained, every
// observed vector is buffered. When the buffer reaches the training
// threshold, the quantizer is trained once over the buffer and all buffered
// vectors are encoded and flushed; subsequent observations are encoded
// immediately. The transition is one-way.
//
// Callers never branch on the trained state: Code returns (nil, false)
// while untrained and search paths fall back to full-precision scoring.
type DualStore struct {
	mu        sync.RWMutex
	dimension int
	threshold int

	// untrained state
	buffer []buffered

	// trained state
	sq    *ScalarQuantizer
	codes map[uint32][]int8
}

// NewDualStore creates an untrained dual store. The training threshold is
// min(DefaultTrainingThreshold, maxElements).
func NewDualStore(dimension, maxElements int) *DualStore {
	threshold := DefaultTrainingThreshold
	if maxElements > 0 && maxElements < threshold {
		threshold = maxElements
	}
	return &DualStore{
		dimension: dimension,
		threshold: threshold,
		buffer:    make([]buffered, 0, threshold),
	}
}

// Trained reports whether the quantizer has been trained.
func (d *DualStore) Trained() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sq != nil
}

// Quantizer returns the trained quantizer, or nil while untrained.
func (d *DualStore) Quantizer() *ScalarQuantizer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sq
}

// Threshold returns the training threshold.
func (d *DualStore) Threshold() int { return d.threshold }

// Observe records a newly inserted vector. While untrained it is buffered
// (triggering training when the buffer fills); once trained it is encoded
// immediately.
func (d *DualStore) Observe(slot uint32, v []float32) error {
	if len(v) != d.dimension {
		return ErrDimension
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sq != nil {
		code, err := d.sq.Encode(v)
		if err != nil {
			return err
		}
		d.codes[slot] = code
		return nil
	}

	cp := make([]float32, len(v))
	copy(cp, v)
	d.buffer = append(d.buffer, buffered{slot: slot, vec: cp})

	if len(d.buffer) >= d.threshold {
		return d.trainLocked()
	}
	return nil
}

// ForceTrain trains immediately on the current buffer, regardless of the
// threshold. Useful for small collections that would never fill the buffer.
// Training twice is a no-op.
func (d *DualStore) ForceTrain() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sq != nil {
		return nil
	}
	return d.trainLocked()
}

// trainLocked trains over the buffer, encodes and flushes it.
func (d *DualStore) trainLocked() error {
	samples := make([][]float32, len(d.buffer))
	for i, b := range d.buffer {
		samples[i] = b.vec
	}

	sq, err := Train(samples)
	if err != nil {
		return err
	}

	codes := make(map[uint32][]int8, len(d.buffer))
	for _, b := range d.buffer {
		code, err := sq.Encode(b.vec)
		if err != nil {
			return err
		}
		codes[b.slot] = code
	}

	d.sq = sq
	d.codes = codes
	d.buffer = nil
	return nil
}

// Restore rebuilds a trained store from persisted state.
// Not safe for use concurrently with other operations.
func (d *DualStore) Restore(sq *ScalarQuantizer, codes map[uint32][]int8) {
	d.mu.Lock()
	d.sq = sq
	d.codes = codes
	d.buffer = nil
	d.mu.Unlock()
}

// Code returns the int8 code for a slot, or false while untrained or for
// slots without quantized data.
func (d *DualStore) Code(slot uint32) ([]int8, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.sq == nil {
		return nil, false
	}
	code, ok := d.codes[slot]
	return code, ok
}

// Codes returns a snapshot of all quantized vectors, for persistence.
func (d *DualStore) Codes() map[uint32][]int8 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[uint32][]int8, len(d.codes))
	for slot, code := range d.codes {
		out[slot] = code
	}
	return out
}

// Drop removes the quantized data for a slot.
func (d *DualStore) Drop(slot uint32) {
	d.mu.Lock()
	if d.sq != nil {
		delete(d.codes, slot)
	} else {
		for i := range d.buffer {
			if d.buffer[i].slot == slot {
				d.buffer = append(d.buffer[:i], d.buffer[i+1:]...)
				break
			}
		}
	}
	d.mu.Unlock()
}
