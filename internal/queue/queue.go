// Package queue provides value-based binary heaps for graph traversal.
package queue

// Item is a candidate slot with its distance from the query.
// Value-based (no pointers) for cache locality and zero allocations.
type Item struct {
	Slot uint32
	Dist float32
}

// Heap is a binary heap of Items ordered by distance.
// A min-heap keeps the closest candidate on top (exploration frontier);
// a max-heap keeps the farthest on top (bounded result set).
type Heap struct {
	max   bool
	items []Item
}

// NewMin creates a min-heap with the given initial capacity.
func NewMin(capacity int) *Heap {
	return &Heap{max: false, items: make([]Item, 0, capacity)}
}

// NewMax creates a max-heap with the given initial capacity.
func NewMax(capacity int) *Heap {
	return &Heap{max: true, items: make([]Item, 0, capacity)}
}

// Len returns the number of items in the heap.
func (h *Heap) Len() int { return len(h.items) }

// Reset empties the heap, keeping the backing storage.
func (h *Heap) Reset() { h.items = h.items[:0] }

// Top returns the root item without removing it.
func (h *Heap) Top() (Item, bool) {
	if len(h.items) == 0 {
		return Item{}, false
	}
	return h.items[0], true
}

// Push inserts an item, maintaining the heap invariant.
func (h *Heap) Push(it Item) {
	h.items = append(h.items, it)
	h.siftUp(len(h.items) - 1)
}

// Pop removes and returns the root item.
func (h *Heap) Pop() (Item, bool) {
	n := len(h.items)
	if n == 0 {
		return Item{}, false
	}
	root := h.items[0]
	last := h.items[n-1]
	h.items = h.items[:n-1]
	if n-1 > 0 {
		h.items[0] = last
		h.siftDown(0)
	}
	return root, true
}

// Min returns the item with the smallest distance currently in the heap.
// For min-heaps this is the root; for max-heaps this scans the backing slice.
func (h *Heap) Min() (Item, bool) {
	if len(h.items) == 0 {
		return Item{}, false
	}
	if !h.max {
		return h.items[0], true
	}
	best := h.items[0]
	for _, it := range h.items[1:] {
		if it.Dist < best.Dist {
			best = it
		}
	}
	return best, true
}

// Drain removes all items and returns them ordered by ascending distance.
func (h *Heap) Drain() []Item {
	out := make([]Item, len(h.items))
	if h.max {
		for i := len(out) - 1; i >= 0; i-- {
			out[i], _ = h.Pop()
		}
	} else {
		for i := range out {
			out[i], _ = h.Pop()
		}
	}
	return out
}

func (h *Heap) less(i, j int) bool {
	if h.max {
		return h.items[i].Dist > h.items[j].Dist
	}
	return h.items[i].Dist < h.items[j].Dist
}

func (h *Heap) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !h.less(i, p) {
			return
		}
		h.items[i], h.items[p] = h.items[p], h.items[i]
		i = p
	}
}

func (h *Heap) siftDown(i int) {
	n := len(h.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && h.less(r, l) {
			best = r
		}
		if !h.less(best, i) {
			return
		}
		h.items[i], h.items[best] = h.items[best], h.items[i]
		i = best
	}
}
