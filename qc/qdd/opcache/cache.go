// Package opcache implements component D: a best-effort memoisation
// table over recursive DAG operations, keyed by (op, a, b, c) with
// weights stripped out of the key so that structural sharing is not
// defeated by incidental scalar factors (spec.md sec4.6's "essential
// trick").
package opcache

import (
	"sync"
)

// Op identifies which recursive DAG operation a cache entry belongs to.
type Op uint8

const (
	OpApply Op = iota
	OpApplyControlled
	OpPlus
	OpMul
	OpDiv
	OpAdd
	OpSub
	OpMatVec
	OpMatMat
)

// Key is the 4-operand cache key (spec.md sec4.4: "(op_id, a, b, c) ->
// result"). C is left at 0 for operations that only need two operands.
type Key struct {
	Op      Op
	A, B, C uint64
}

// entry is a single bounded-cache slot. A zero-value entry (valid=false)
// means the slot is empty.
type entry struct {
	key   Key
	value uint64
	valid bool
}

// Cache is a concurrent, bounded, replace-on-collision hash table
// (spec.md sec4.4). It is direct-mapped: each key hashes to exactly one
// slot, and a colliding insert simply overwrites whatever was there --
// misses are always safe because the caller recomputes.
type Cache struct {
	mu          sync.Mutex
	slots       []entry
	mask        uint64
	granularity int

	probes, hits uint64
}

// New creates a cache with room for `size` entries (rounded up to the
// next power of two) and the given recursion-level granularity
// (cache_granularity, spec.md sec6: 1 = probe every level).
func New(size, granularity int) *Cache {
	if size <= 0 {
		size = 1 << 16
	}
	n := nextPow2(size)
	if granularity <= 0 {
		granularity = 1
	}
	return &Cache{slots: make([]entry, n), mask: uint64(n - 1), granularity: granularity}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Granularity returns the configured recursion-skip level; apply() uses
// it to decide whether to probe at the current depth.
func (c *Cache) Granularity() int { return c.granularity }

// ShouldProbe reports whether the given recursion depth is a probe point
// under the configured granularity.
func (c *Cache) ShouldProbe(depth int) bool {
	return depth%c.granularity == 0
}

func hash(k Key) uint64 {
	h := uint64(14695981039346656037) // FNV offset basis
	mix := func(x uint64) {
		h ^= x
		h *= 1099511628211
	}
	mix(uint64(k.Op))
	mix(k.A)
	mix(k.B)
	mix(k.C)
	return h
}

// Get probes the cache; a miss is always safe (recompute).
func (c *Cache) Get(k Key) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes++
	idx := hash(k) & c.mask
	e := c.slots[idx]
	if e.valid && e.key == k {
		c.hits++
		return e.value, true
	}
	return 0, false
}

// Put inserts (k -> v), overwriting any colliding entry.
func (c *Cache) Put(k Key, v uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := hash(k) & c.mask
	c.slots[idx] = entry{key: k, value: v, valid: true}
}

// PutCommutative canonicalises operand order (smaller handle first) so
// that add/mul cache hits are symmetric (spec.md sec4.4), then inserts.
func (c *Cache) PutCommutative(op Op, a, b, v uint64) {
	if a > b {
		a, b = b, a
	}
	c.Put(Key{Op: op, A: a, B: b}, v)
}

// GetCommutative mirrors PutCommutative's canonicalisation on lookup.
func (c *Cache) GetCommutative(op Op, a, b uint64) (uint64, bool) {
	if a > b {
		a, b = b, a
	}
	return c.Get(Key{Op: op, A: a, B: b})
}

// PutMulWithInverses inserts a*b=c and, when cheap and logically sound
// (neither operand is the absorbing zero), also inserts the inverse
// relations c/a=b and c/b=a (spec.md sec4.4).
func (c *Cache) PutMulWithInverses(a, b, result uint64, isZero func(uint64) bool) {
	c.PutCommutative(OpMul, a, b, result)
	if isZero(a) || isZero(b) {
		return
	}
	c.Put(Key{Op: OpDiv, A: result, B: a}, b)
	c.Put(Key{Op: OpDiv, A: result, B: b}, a)
}

// Clear wipes every entry. Called eagerly on GC cycles and whenever the
// dynamic-gate ring wraps (spec.md sec4.4, sec4.9).
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.slots {
		c.slots[i] = entry{}
	}
	c.probes, c.hits = 0, 0
}

// Stats exposes probe/hit counters for cache-effectiveness measurement
// (spec.md sec4.5 "mul_downward ... statistically counted separately").
type Stats struct {
	Probes, Hits uint64
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Probes: c.probes, Hits: c.hits}
}
