package weight

import (
	"sync"
	"sync/atomic"

	"github.com/kegliz/qplay/qc/qdd"
)

// complexKey is the quantised (re, im) bucket used to hash-cons complex
// values under the tolerance equivalence (spec.md sec4.1 COMPLEX_MAP).
type complexKey struct{ re, im int64 }

// complexMap interns (re, im) pairs directly, one shared map keyed by the
// quantised pair. Grounded on rudd's tables.unique map[[N]byte]int
// hash-consing idiom (other_examples/..._hudd.go.go), adapted from a
// triplet-of-ints key to a pair-of-floats key.
type complexMap struct {
	mu        sync.RWMutex
	tolerance float64
	capacity  int
	values    []Value
	index     map[complexKey]qdd.WeightHandle
	seq       uint64

	lookups, hits, misses atomic.Uint64
}

func newComplexMap(capacity int, tolerance float64) *complexMap {
	if capacity <= 0 {
		capacity = 1 << 16
	}
	s := &complexMap{
		tolerance: tolerance,
		capacity:  capacity,
		values:    make([]Value, 0, capacity),
		index:     make(map[complexKey]qdd.WeightHandle, capacity),
		seq:       newSeq(),
	}
	s.bindReserved()
	return s
}

func (s *complexMap) bindReserved() {
	s.forceInsert(qdd.WZero, Value{0, 0})
	s.forceInsert(qdd.WOne, Value{1, 0})
	s.forceInsert(qdd.WMinusOne, Value{-1, 0})
}

// forceInsert places v at exactly handle h, growing values as needed.
// Only used during construction/GC-rebuild to preserve reserved handles.
func (s *complexMap) forceInsert(h qdd.WeightHandle, v Value) {
	for qdd.WeightHandle(len(s.values)) <= h {
		s.values = append(s.values, Value{})
	}
	s.values[h] = v
	s.index[s.key(v)] = h
}

func (s *complexMap) key(v Value) complexKey {
	return complexKey{quantise(v.Re, s.tolerance), quantise(v.Im, s.tolerance)}
}

func (s *complexMap) FindOrPut(v Value) (qdd.WeightHandle, bool, error) {
	s.lookups.Add(1)
	k := s.key(v)

	s.mu.RLock()
	if h, ok := s.index[k]; ok {
		s.mu.RUnlock()
		s.hits.Add(1)
		return h, false, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check: another writer may have inserted while we waited for the lock.
	if h, ok := s.index[k]; ok {
		s.hits.Add(1)
		return h, false, nil
	}
	if len(s.values) >= s.capacity {
		return 0, false, qdd.ErrTableFull
	}
	s.misses.Add(1)
	h := qdd.WeightHandle(len(s.values))
	s.values = append(s.values, v)
	s.index[k] = h
	return h, true, nil
}

func (s *complexMap) Get(h qdd.WeightHandle) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(h) >= len(s.values) {
		return Value{}, false
	}
	return s.values[h], true
}

func (s *complexMap) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

func (s *complexMap) Tolerance() float64 { return s.tolerance }

func (s *complexMap) Stats() Stats {
	return Stats{Lookups: s.lookups.Load(), Hits: s.hits.Load(), Misses: s.misses.Load()}
}

func (s *complexMap) Free() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = nil
	s.index = nil
}
