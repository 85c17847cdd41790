package engine

import "math/bits"

// BitSet is a compact set of small non-negative integers backed by a bitmap.
// Sized for the dense index spaces the pipeline works over (local slot
// indices, instruction positions).
type BitSet struct {
	words []uint64
}

// NewBitSet creates a BitSet able to hold values up to maxVal (inclusive)
// without growing.
func NewBitSet(maxVal int) *BitSet {
	return &BitSet{words: make([]uint64, maxVal/64+1)}
}

// Set adds val to the set, growing the bitmap if needed.
func (b *BitSet) Set(val int) {
	w := val / 64
	if w >= len(b.words) {
		b.grow(w + 1)
	}
	b.words[w] |= 1 << (val % 64)
}

// Clear removes val from the set.
func (b *BitSet) Clear(val int) {
	w := val / 64
	if w < len(b.words) {
		b.words[w] &^= 1 << (val % 64)
	}
}

// Has reports whether val is in the set.
func (b *BitSet) Has(val int) bool {
	w := val / 64
	return w < len(b.words) && b.words[w]&(1<<(val%64)) != 0
}

// Count returns the number of elements in the set.
func (b *BitSet) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Max returns the largest element in the set and true, or 0 and false when
// the set is empty.
func (b *BitSet) Max() (int, bool) {
	for i := len(b.words) - 1; i >= 0; i-- {
		if b.words[i] == 0 {
			continue
		}
		return i*64 + 63 - bits.LeadingZeros64(b.words[i]), true
	}
	return 0, false
}

// grow expands the bitmap to n words. Callers guarantee n > len(b.words).
func (b *BitSet) grow(n int) {
	words := make([]uint64, n)
	copy(words, b.words)
	b.words = words
}
