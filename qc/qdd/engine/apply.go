package engine

import (
	"fmt"
	"sort"

	"github.com/kegliz/qplay/qc/qdd"
	"github.com/kegliz/qplay/qc/qdd/gatecat"
	"github.com/kegliz/qplay/qc/qdd/opcache"
)

// Component F: the recursive DAG operations apply_gate, apply_controlled
// and plus. All three are expressed through childrenAt/finalize
// (engine.go) so that "this level doesn't exist yet" and "this level is a
// real node" are handled by one code path rather than duplicated per
// case -- spec.md sec4.6 describes apply_gate's v>t and v==t cases
// separately, but both reduce to "combine U against childrenAt(node, t)",
// so they are merged here.

// plus computes the structural edge-edge sum a+b (spec.md sec4.6).
func (e *Engine) plus(a, b qdd.Edge) (qdd.Edge, error) {
	if a.Node == b.Node {
		w, err := e.add(a.Weight, b.Weight)
		if err != nil {
			return qdd.Edge{}, err
		}
		if w == qdd.WZero {
			return qdd.ZeroEdge, nil
		}
		return qdd.Edge{Weight: w, Node: a.Node}, nil
	}
	if a.IsZero() {
		return b, nil
	}
	if b.IsZero() {
		return a, nil
	}

	if edgeKey(a) > edgeKey(b) {
		a, b = b, a
	}
	key := opcache.Key{Op: opcache.OpPlus, A: edgeKey(a), B: edgeKey(b)}
	if v, ok := e.cache.Get(key); ok {
		return decodeEdge(v), nil
	}

	v := e.varOf(a.Node)
	if vb := e.varOf(b.Node); vb < v {
		v = vb
	}
	aLow0, aHigh0 := e.childrenAt(a.Node, v)
	bLow0, bHigh0 := e.childrenAt(b.Node, v)
	aLow, err := e.scale(a.Weight, aLow0)
	if err != nil {
		return qdd.Edge{}, err
	}
	aHigh, err := e.scale(a.Weight, aHigh0)
	if err != nil {
		return qdd.Edge{}, err
	}
	bLow, err := e.scale(b.Weight, bLow0)
	if err != nil {
		return qdd.Edge{}, err
	}
	bHigh, err := e.scale(b.Weight, bHigh0)
	if err != nil {
		return qdd.Edge{}, err
	}

	newLow, err := e.plus(aLow, bLow)
	if err != nil {
		return qdd.Edge{}, err
	}
	newHigh, err := e.plus(aHigh, bHigh)
	if err != nil {
		return qdd.Edge{}, err
	}
	out, err := e.finalize(v, newLow, newHigh)
	if err != nil {
		return qdd.Edge{}, err
	}
	e.cache.Put(key, encodeEdge(out))
	return out, nil
}

// applyFull is apply_gate's public shape: it multiplies the incoming
// edge weight back in once applyRec (cache-friendly, weight-stripped)
// has produced its unit-relative result.
func (e *Engine) applyFull(edge qdd.Edge, entry gatecat.Entry, t, depth int) (qdd.Edge, error) {
	if edge.IsZero() {
		return qdd.ZeroEdge, nil
	}
	res, err := e.applyRec(edge.Node, entry, t, depth)
	if err != nil {
		return qdd.Edge{}, err
	}
	w, err := e.mulDownward(edge.Weight, res.Weight)
	if err != nil {
		return qdd.Edge{}, err
	}
	if w == qdd.WZero {
		return qdd.ZeroEdge, nil
	}
	return qdd.Edge{Weight: w, Node: res.Node}, nil
}

// applyRec applies entry to the unit edge {W_ONE, nodeID}. v<t descends
// past this node unchanged (spec.md sec4.6 "v<t: recurse both children,
// reassemble"); v>=t (including the terminal, treated as +inf) combines
// entry's four elements against childrenAt(nodeID, t), which already
// yields the identical-virtual-children pair when nodeID's own variable
// is strictly above t.
func (e *Engine) applyRec(nodeID qdd.NodeID, entry gatecat.Entry, t, depth int) (qdd.Edge, error) {
	probe := e.cache.ShouldProbe(depth)
	key := opcache.Key{Op: opcache.OpApply, A: uint64(nodeID), B: uint64(t), C: entryKey(entry)}
	if probe {
		if v, ok := e.cache.Get(key); ok {
			return decodeEdge(v), nil
		}
	}

	v := e.varOf(nodeID)
	out, err := e.applyRecCombine(nodeID, v, entry, t, depth)
	if err != nil {
		return qdd.Edge{}, err
	}
	if probe {
		e.cache.Put(key, encodeEdge(out))
	}
	return out, nil
}

func (e *Engine) applyRecCombine(nodeID qdd.NodeID, v int, entry gatecat.Entry, t, depth int) (qdd.Edge, error) {
	if v < t {
		rec, ok := e.nodes.Lookup(nodeID)
		if !ok {
			return qdd.Edge{}, fmt.Errorf("qdd: apply: dangling node id %d", nodeID)
		}
		lo, err := e.applyFull(rec.Low, entry, t, depth+1)
		if err != nil {
			return qdd.Edge{}, err
		}
		hi, err := e.applyFull(rec.High, entry, t, depth+1)
		if err != nil {
			return qdd.Edge{}, err
		}
		return e.finalize(v, lo, hi)
	}
	low, high := e.childrenAt(nodeID, t)
	newLow, err := e.combineRow(entry[0], entry[1], low, high)
	if err != nil {
		return qdd.Edge{}, err
	}
	newHigh, err := e.combineRow(entry[2], entry[3], low, high)
	if err != nil {
		return qdd.Edge{}, err
	}
	return e.finalize(t, newLow, newHigh)
}

// combineRow computes plus(scale(c0,low), scale(c1,high)), the dot
// product of one matrix row against the (low, high) amplitude pair.
func (e *Engine) combineRow(c0, c1 qdd.WeightHandle, low, high qdd.Edge) (qdd.Edge, error) {
	sl, err := e.scale(c0, low)
	if err != nil {
		return qdd.Edge{}, err
	}
	sh, err := e.scale(c1, high)
	if err != nil {
		return qdd.Edge{}, err
	}
	return e.plus(sl, sh)
}

// ApplyGate applies the gate identified by id to qubit t of q's state.
func (e *Engine) ApplyGate(q *qdd.QDD, id gatecat.GateID, t int) (*qdd.QDD, error) {
	if err := e.checkAlive(); err != nil {
		return nil, err
	}
	if t < 0 || t >= q.NVars {
		return nil, qdd.ErrBadQubitIndex
	}
	defer e.touch(q)()
	entry, ok := e.catalog.Lookup(id)
	if !ok {
		return nil, qdd.ErrUnknownGate{GateID: int(id)}
	}
	root, err := withRetry(e, func() (qdd.Edge, error) { return e.applyFull(q.Root, entry, t, 0) })
	if err != nil {
		return nil, err
	}
	return &qdd.QDD{Root: root, NVars: q.NVars}, nil
}

// controlledApplyFull mirrors applyFull but additionally gates on
// controls, all of which must have a lower variable index than target
// (spec.md sec4.6's "applies U only along the high child" phrasing
// implies controls are encountered first during descent; every control
// gate in qc/gate's catalogue -- CNOT, Toffoli, CZ, Fredkin -- indeed
// orders its control qubits below its target(s), so this is the
// supported case rather than an arbitrary restriction).
func (e *Engine) controlledApplyFull(edge qdd.Edge, entry gatecat.Entry, controls []int, t, depth int) (qdd.Edge, error) {
	if edge.IsZero() {
		return qdd.ZeroEdge, nil
	}
	res, err := e.controlledApplyRec(edge.Node, entry, controls, t, depth)
	if err != nil {
		return qdd.Edge{}, err
	}
	w, err := e.mulDownward(edge.Weight, res.Weight)
	if err != nil {
		return qdd.Edge{}, err
	}
	if w == qdd.WZero {
		return qdd.ZeroEdge, nil
	}
	return qdd.Edge{Weight: w, Node: res.Node}, nil
}

func (e *Engine) controlledApplyRec(nodeID qdd.NodeID, entry gatecat.Entry, controls []int, t, depth int) (qdd.Edge, error) {
	if len(controls) == 0 {
		return e.applyRec(nodeID, entry, t, depth)
	}
	c := controls[0]
	v := e.varOf(nodeID)
	if v < c {
		rec, ok := e.nodes.Lookup(nodeID)
		if !ok {
			return qdd.Edge{}, fmt.Errorf("qdd: apply_controlled: dangling node id %d", nodeID)
		}
		lo, err := e.controlledApplyFull(rec.Low, entry, controls, t, depth+1)
		if err != nil {
			return qdd.Edge{}, err
		}
		hi, err := e.controlledApplyFull(rec.High, entry, controls, t, depth+1)
		if err != nil {
			return qdd.Edge{}, err
		}
		return e.finalize(v, lo, hi)
	}
	low, high := e.childrenAt(nodeID, c)
	// Control = 0: the gate never fires, the low branch passes through
	// exactly as it was.
	newLow := low
	// Control = 1: AND in the remaining controls (and eventually the
	// target) along the high branch only.
	newHigh, err := e.controlledApplyFull(high, entry, controls[1:], t, depth+1)
	if err != nil {
		return qdd.Edge{}, err
	}
	return e.finalize(c, newLow, newHigh)
}

// ApplyControlledGate applies entry to qubit t whenever every qubit in
// controls is 1, generalising a single control to an AND over an
// arbitrary control set (spec.md sec4.6).
func (e *Engine) ApplyControlledGate(q *qdd.QDD, id gatecat.GateID, controls []int, t int) (*qdd.QDD, error) {
	if err := e.checkAlive(); err != nil {
		return nil, err
	}
	if t < 0 || t >= q.NVars {
		return nil, qdd.ErrBadQubitIndex
	}
	sorted := append([]int(nil), controls...)
	sort.Ints(sorted)
	for i, c := range sorted {
		if c < 0 || c >= q.NVars || c == t {
			return nil, qdd.ErrBadQubitIndex
		}
		if i > 0 && sorted[i] == sorted[i-1] {
			return nil, fmt.Errorf("qdd: duplicate control qubit %d", c)
		}
		if c >= t {
			return nil, fmt.Errorf("qdd: control qubit %d must precede target qubit %d in variable order", c, t)
		}
	}
	defer e.touch(q)()
	entry, ok := e.catalog.Lookup(id)
	if !ok {
		return nil, qdd.ErrUnknownGate{GateID: int(id)}
	}
	root, err := withRetry(e, func() (qdd.Edge, error) { return e.controlledApplyFull(q.Root, entry, sorted, t, 0) })
	if err != nil {
		return nil, err
	}
	return &qdd.QDD{Root: root, NVars: q.NVars}, nil
}

// --- op-cache value packing: an Edge packed into the single uint64 the
// cache stores, low 32 bits node id, high 32 bits weight handle. Tables
// bounded well under 2^32 entries make this lossless in practice; a
// table that large would already have exceeded any configured
// node_table_size/weight_table_size by orders of magnitude. ---

func encodeEdge(e qdd.Edge) uint64 {
	return uint64(e.Node)&0xffffffff | (uint64(e.Weight)&0xffffffff)<<32
}

func decodeEdge(v uint64) qdd.Edge {
	return qdd.Edge{Node: qdd.NodeID(v & 0xffffffff), Weight: qdd.WeightHandle(v >> 32)}
}

func edgeKey(e qdd.Edge) uint64 { return encodeEdge(e) }
