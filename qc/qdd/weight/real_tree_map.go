package weight

import (
	"sync"
	"sync/atomic"

	"github.com/kegliz/qplay/qc/qdd"
)

// treeKey orders values for the REAL_TREE backend: lexicographic on the
// tau-quantised (re, im) pair, which is a valid total order for the
// tolerance equivalence classes since quantise() is monotonic in the
// original float.
type treeKey struct{ re, im int64 }

func (a treeKey) less(b treeKey) bool {
	if a.re != b.re {
		return a.re < b.re
	}
	return a.im < b.im
}

type treeNode struct {
	key         treeKey
	handle      qdd.WeightHandle
	left, right *treeNode
}

// realTreeMap interns by an ordered intern-tree keyed by the tau-quantised
// representative of each epsilon-equivalence class (spec.md sec4.1
// REAL_TREE_MAP). No balanced-BST library exists anywhere in the example
// pack (see DESIGN.md's stdlib-justification entry), so this is a plain
// unbalanced BST: correct, and no worse than O(n) worst case, same as the
// reference implementation's documented fallback behaviour.
//
// Unlike a switch-based dispatch table, Go's six capability methods below
// are always fully bound by construction -- there is no equivalent of the
// source's missing-break fallthrough (spec.md sec9, second open
// question): a Go switch never falls through without an explicit
// `fallthrough` statement, so that bug class cannot occur here.
type realTreeMap struct {
	mu        sync.Mutex
	tolerance float64
	capacity  int
	root      *treeNode
	values    []Value
	seq       uint64

	lookups, hits, misses atomic.Uint64
}

func newRealTreeMap(capacity int, tolerance float64) *realTreeMap {
	if capacity <= 0 {
		capacity = 1 << 16
	}
	s := &realTreeMap{
		tolerance: tolerance,
		capacity:  capacity,
		values:    make([]Value, 0, capacity),
		seq:       newSeq(),
	}
	s.bindReserved()
	return s
}

func (s *realTreeMap) bindReserved() {
	s.forceInsert(qdd.WZero, Value{0, 0})
	s.forceInsert(qdd.WOne, Value{1, 0})
	s.forceInsert(qdd.WMinusOne, Value{-1, 0})
}

func (s *realTreeMap) key(v Value) treeKey {
	return treeKey{quantise(v.Re, s.tolerance), quantise(v.Im, s.tolerance)}
}

func (s *realTreeMap) forceInsert(h qdd.WeightHandle, v Value) {
	for qdd.WeightHandle(len(s.values)) <= h {
		s.values = append(s.values, Value{})
	}
	s.values[h] = v
	s.root = insertTree(s.root, s.key(v), h)
}

func insertTree(n *treeNode, k treeKey, h qdd.WeightHandle) *treeNode {
	if n == nil {
		return &treeNode{key: k, handle: h}
	}
	switch {
	case k.less(n.key):
		n.left = insertTree(n.left, k, h)
	case n.key.less(k):
		n.right = insertTree(n.right, k, h)
	default:
		n.handle = h
	}
	return n
}

func lookupTree(n *treeNode, k treeKey) (qdd.WeightHandle, bool) {
	for n != nil {
		switch {
		case k.less(n.key):
			n = n.left
		case n.key.less(k):
			n = n.right
		default:
			return n.handle, true
		}
	}
	return 0, false
}

func (s *realTreeMap) FindOrPut(v Value) (qdd.WeightHandle, bool, error) {
	s.lookups.Add(1)
	k := s.key(v)

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := lookupTree(s.root, k); ok {
		s.hits.Add(1)
		return h, false, nil
	}
	if len(s.values) >= s.capacity {
		return 0, false, qdd.ErrTableFull
	}
	s.misses.Add(1)
	h := qdd.WeightHandle(len(s.values))
	s.values = append(s.values, v)
	s.root = insertTree(s.root, k, h)
	return h, true, nil
}

func (s *realTreeMap) Get(h qdd.WeightHandle) (Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(h) >= len(s.values) {
		return Value{}, false
	}
	return s.values[h], true
}

func (s *realTreeMap) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

func (s *realTreeMap) Tolerance() float64 { return s.tolerance }

func (s *realTreeMap) Stats() Stats {
	return Stats{Lookups: s.lookups.Load(), Hits: s.hits.Load(), Misses: s.misses.Load()}
}

func (s *realTreeMap) Free() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = nil
	s.values = nil
}
