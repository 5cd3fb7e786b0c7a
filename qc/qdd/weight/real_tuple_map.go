package weight

import (
	"sync"
	"sync/atomic"

	"github.com/kegliz/qplay/qc/qdd"
)

// realHandle indexes the independent real-valued intern map.
type realHandle uint32

// realTupleMap interns the real and imaginary components independently
// (each in its own real-valued map), then interns the resulting pair of
// real-handles to produce the outer WeightHandle (spec.md sec4.1
// REAL_TUPLE_MAP). Sharing real components across many complex values is
// the point: e.g. every edge weight with Im=0 shares one imaginary-part
// slot.
type realTupleMap struct {
	mu        sync.RWMutex
	tolerance float64
	capacity  int

	reals     []float64
	realIndex map[int64]realHandle

	pairs     []Value
	pairIndex map[[2]realHandle]qdd.WeightHandle

	seq uint64

	lookups, hits, misses atomic.Uint64
}

func newRealTupleMap(capacity int, tolerance float64) *realTupleMap {
	if capacity <= 0 {
		capacity = 1 << 16
	}
	s := &realTupleMap{
		tolerance: tolerance,
		capacity:  capacity,
		reals:     make([]float64, 0, capacity),
		realIndex: make(map[int64]realHandle, capacity),
		pairs:     make([]Value, 0, capacity),
		pairIndex: make(map[[2]realHandle]qdd.WeightHandle, capacity),
		seq:       newSeq(),
	}
	s.bindReserved()
	return s
}

func (s *realTupleMap) bindReserved() {
	s.forceInsert(qdd.WZero, Value{0, 0})
	s.forceInsert(qdd.WOne, Value{1, 0})
	s.forceInsert(qdd.WMinusOne, Value{-1, 0})
}

func (s *realTupleMap) forceInsert(h qdd.WeightHandle, v Value) {
	re := s.internReal(v.Re)
	im := s.internReal(v.Im)
	for qdd.WeightHandle(len(s.pairs)) <= h {
		s.pairs = append(s.pairs, Value{})
	}
	s.pairs[h] = v
	s.pairIndex[[2]realHandle{re, im}] = h
}

// internReal finds-or-puts a single real component. Unbounded by
// capacity on its own; the outer pair insertion is what is governed by
// capacity/ErrTableFull.
func (s *realTupleMap) internReal(f float64) realHandle {
	k := quantise(f, s.tolerance)
	if h, ok := s.realIndex[k]; ok {
		return h
	}
	h := realHandle(len(s.reals))
	s.reals = append(s.reals, f)
	s.realIndex[k] = h
	return h
}

func (s *realTupleMap) FindOrPut(v Value) (qdd.WeightHandle, bool, error) {
	s.lookups.Add(1)

	s.mu.RLock()
	reK, reOK := s.realIndex[quantise(v.Re, s.tolerance)]
	imK, imOK := s.realIndex[quantise(v.Im, s.tolerance)]
	if reOK && imOK {
		if h, ok := s.pairIndex[[2]realHandle{reK, imK}]; ok {
			s.mu.RUnlock()
			s.hits.Add(1)
			return h, false, nil
		}
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	re := s.internReal(v.Re)
	im := s.internReal(v.Im)
	key := [2]realHandle{re, im}
	if h, ok := s.pairIndex[key]; ok {
		s.hits.Add(1)
		return h, false, nil
	}
	if len(s.pairs) >= s.capacity {
		return 0, false, qdd.ErrTableFull
	}
	s.misses.Add(1)
	h := qdd.WeightHandle(len(s.pairs))
	s.pairs = append(s.pairs, v)
	s.pairIndex[key] = h
	return h, true, nil
}

func (s *realTupleMap) Get(h qdd.WeightHandle) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(h) >= len(s.pairs) {
		return Value{}, false
	}
	return s.pairs[h], true
}

func (s *realTupleMap) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pairs)
}

func (s *realTupleMap) Tolerance() float64 { return s.tolerance }

func (s *realTupleMap) Stats() Stats {
	return Stats{Lookups: s.lookups.Load(), Hits: s.hits.Load(), Misses: s.misses.Load()}
}

func (s *realTupleMap) Free() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reals, s.realIndex, s.pairs, s.pairIndex = nil, nil, nil, nil
}
