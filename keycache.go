package jconv

import "sync/atomic"

const (
	fnvOffset32 = 2166136261
	fnvPrime32  = 16777619
)

// KeyCache interns short object keys so repeated keys share one string.  It
// is a fixed-size table indexed by the low bits of a key hash; a slot holds
// the most recent key that hashed to it and is replaced on mismatch.
//
// A KeyCache is safe for concurrent use.  Racing readers may replace each
// other's entries, which only costs an allocation.
type KeyCache struct {
	mask  uint32
	slots []atomic.Pointer[string]
}

// NewKeyCache returns a cache with 2^log2Size slots.  Sizes below 1 are
// treated as 1.
func NewKeyCache(log2Size int) *KeyCache {
	size := 2
	for i := 1; i < log2Size; i++ {
		size *= 2
	}
	return &KeyCache{
		mask:  uint32(size - 1),
		slots: make([]atomic.Pointer[string], size),
	}
}

// Size returns the number of slots.
func (c *KeyCache) Size() int { return len(c.slots) }

// Key returns a string equal to b, reusing the cached string in the slot
// selected by hash when its length and content match.
func (c *KeyCache) Key(hash uint32, b []byte) string {
	slot := &c.slots[hash&c.mask]
	if p := slot.Load(); p != nil && len(*p) == len(b) && *p == string(b) {
		return *p
	}
	s := string(b)
	slot.Store(&s)
	return s
}

// hashKey is 32-bit FNV-1a.
func hashKey(b []byte) uint32 {
	h := uint32(fnvOffset32)
	for _, c := range b {
		h ^= uint32(c)
		h *= fnvPrime32
	}
	return h
}
