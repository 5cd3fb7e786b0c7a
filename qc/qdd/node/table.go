// Package node implements component B of the QDD engine: the node table
// that interns reduced, canonical QDD nodes keyed by (var, low, high) and
// hands out stable 64-bit handles, sharing identical sub-graphs across
// every QDD built from this table.
package node

import (
	"sync"

	"github.com/kegliz/qplay/qc/qdd"
)

// Key is the triplet every node is hash-consed on (spec.md sec4.2).
type Key struct {
	Var  int
	Low  qdd.Edge
	High qdd.Edge
}

// Record is what Lookup returns: the full triplet for a live node.
type Record struct {
	Var  int
	Low  qdd.Edge
	High qdd.Edge
}

// Table is the node intern table. Grounded on rudd's hash-consing
// tables.unique map + huddnode slot array (other_examples
// ..._hudd.go.go), generalised from a plain BDD triplet (level, int,
// int) to the weighted QDD triplet (var, Edge, Edge).
type Table struct {
	mu       sync.RWMutex
	capacity int
	nodes    []Record
	index    map[Key]qdd.NodeID
}

// New creates a node table of the given capacity (terminal occupies slot
// 0, reserved per spec.md sec3).
func New(capacity int) *Table {
	if capacity <= 0 {
		capacity = 1 << 16
	}
	t := &Table{
		capacity: capacity,
		nodes:    make([]Record, 1, capacity), // slot 0 = terminal
		index:    make(map[Key]qdd.NodeID, capacity),
	}
	t.nodes[0] = Record{Var: -1} // terminal has no children
	return t
}

// FindOrPut interns (v, low, high), enforcing invariant 1 (variable
// ordering) on the caller's behalf is NOT done here -- the normaliser and
// apply() are responsible for only ever proposing well-ordered triplets;
// the table's job is uniqueness (invariant 3) alone.
func (t *Table) FindOrPut(v int, low, high qdd.Edge) (qdd.NodeID, bool, error) {
	k := Key{Var: v, Low: low, High: high}

	t.mu.RLock()
	if id, ok := t.index[k]; ok {
		t.mu.RUnlock()
		return id, false, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.index[k]; ok {
		return id, false, nil
	}
	if len(t.nodes) >= t.capacity {
		return 0, false, qdd.ErrTableFull
	}
	id := qdd.NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Record{Var: v, Low: low, High: high})
	t.index[k] = id
	return id, true, nil
}

// Lookup returns the (var, low, high) triplet for a node handle.
func (t *Table) Lookup(id qdd.NodeID) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.nodes) {
		return Record{}, false
	}
	return t.nodes[id], true
}

// Var is a convenience accessor used heavily by apply()'s recursion.
func (t *Table) Var(id qdd.NodeID) int {
	if id == qdd.TerminalID {
		return -1
	}
	r, ok := t.Lookup(id)
	if !ok {
		return -1
	}
	return r.Var
}

// Count returns the number of live-or-not entries currently stored
// (terminal included).
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// IterateLive calls fn for every node currently stored, terminal
// excluded, in handle order. The GC's rebuild pass and CountNodes walk
// from roots instead and do not call it.
func (t *Table) IterateLive(fn func(id qdd.NodeID, rec Record)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := 1; i < len(t.nodes); i++ {
		fn(qdd.NodeID(i), t.nodes[i])
	}
}

// Free releases the backing storage; used by GC when disposing the old
// table after a rebuild.
func (t *Table) Free() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes = nil
	t.index = nil
}
