// Package visited tracks traversal state with a bitset and a dirty list,
// allowing O(visited) reset instead of O(capacity).
package visited

// Set tracks visited slots during a single graph traversal.
type Set struct {
	bits  []uint64
	dirty []uint32
}

// New creates a set sized for the given number of slots.
func New(capacity int) *Set {
	return &Set{
		bits:  make([]uint64, (capacity+63)/64),
		dirty: make([]uint32, 0, 128),
	}
}

// Visit marks a slot as visited.
func (s *Set) Visit(slot uint32) {
	word := int(slot >> 6)
	mask := uint64(1) << (slot & 63)

	if word >= len(s.bits) {
		s.grow(word + 1)
	}

	if s.bits[word]&mask == 0 {
		s.bits[word] |= mask
		s.dirty = append(s.dirty, slot)
	}
}

// Visited reports whether the slot has been visited.
func (s *Set) Visited(slot uint32) bool {
	word := int(slot >> 6)
	if word >= len(s.bits) {
		return false
	}
	return s.bits[word]&(uint64(1)<<(slot&63)) != 0
}

// Reset clears only the slots touched since the last reset.
func (s *Set) Reset() {
	for _, slot := range s.dirty {
		s.bits[slot>>6] &^= uint64(1) << (slot & 63)
	}
	s.dirty = s.dirty[:0]
}

func (s *Set) grow(words int) {
	newCap := len(s.bits) * 2
	if newCap < words {
		newCap = words
	}
	bits := make([]uint64, newCap)
	copy(bits, s.bits)
	s.bits = bits
}
