package engine

import (
	"testing"
)

func TestBitSet_SetHasClear(t *testing.T) {
	b := NewBitSet(100)

	if b.Has(42) {
		t.Error("new bitset should not have 42")
	}

	b.Set(42)
	if !b.Has(42) {
		t.Error("bitset should have 42 after Set")
	}

	b.Clear(42)
	if b.Has(42) {
		t.Error("bitset should not have 42 after Clear")
	}
}

func TestBitSet_GrowsAutomatically(t *testing.T) {
	b := NewBitSet(10)

	b.Set(200)
	if !b.Has(200) {
		t.Error("bitset should have 200 after grow")
	}

	b.Set(5)
	if !b.Has(5) {
		t.Error("bitset should have 5")
	}
}

func TestBitSet_OutOfRange(t *testing.T) {
	b := NewBitSet(10)
	b.Set(5)
	b.Clear(1000) // beyond capacity, no-op
	if !b.Has(5) {
		t.Error("should still have 5")
	}
	if b.Has(1000) {
		t.Error("should not have 1000")
	}
}

func TestBitSet_Count(t *testing.T) {
	b := NewBitSet(100)
	if b.Count() != 0 {
		t.Error("empty bitset should have count 0")
	}

	b.Set(1)
	b.Set(63)
	b.Set(64)
	b.Set(65)

	if b.Count() != 4 {
		t.Errorf("count = %d, want 4", b.Count())
	}
}

func TestBitSet_Max(t *testing.T) {
	b := NewBitSet(100)
	if _, ok := b.Max(); ok {
		t.Error("empty bitset should have no max")
	}

	for _, v := range []int{0, 63, 64, 127, 5} {
		b.Set(v)
	}
	if max, ok := b.Max(); !ok || max != 127 {
		t.Errorf("max = %d, %v, want 127", max, ok)
	}

	b.Clear(127)
	if max, ok := b.Max(); !ok || max != 64 {
		t.Errorf("max after clear = %d, %v, want 64", max, ok)
	}
}
