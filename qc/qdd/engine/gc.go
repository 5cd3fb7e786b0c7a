package engine

import (
	"fmt"

	"github.com/kegliz/qplay/qc/qdd"
	"github.com/kegliz/qplay/qc/qdd/node"
	"github.com/kegliz/qplay/qc/qdd/weight"
)

// Component H: mark-and-rebuild garbage collection. Grounded on
// other_examples' rudd BDD implementation's markrec/allnodesfrom mark
// pass, generalised here from "mark in place, sweep dead slots" to
// "rebuild fresh tables by copying only what's reachable" -- append-only
// tables make an in-place sweep awkward (freed slots can't be reused
// without a free-list the rest of the engine doesn't otherwise need), so
// a full rebuild plays the same role with less bookkeeping, at the cost
// of a one-shot full copy (paid only on a GC cycle, not on the hot path).
//
// Steps (spec.md sec4.8):
//  1. Quiesce: e.mu's write lock is a global barrier, so no other
//     operation holding e.mu is mid-flight during the rebuild. GC runs
//     from the TABLE_FULL unwind in withRetry and also from direct calls
//     to the exported GC method.
//  2. Rename: oldNodes/oldWeights are kept around read-only while
//     newNodes/newWeights are built fresh.
//  3. Rebuild: walk every registered root, copying each reachable
//     (var, low, high) triplet and interned weight into the new tables,
//     memoising old->new so shared structure stays shared.
//  4. Rewrite: every *qdd.QDD in e.roots has its Root field updated to
//     the new handles in place.
//  5. Dispose: the old tables are freed and the op-cache is cleared in
//     full (stale entries reference handles that no longer resolve to
//     anything meaningful in the new tables).
func (e *Engine) GC() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	oldNodes, oldWeights := e.nodes, e.weights
	newWeights, err := weight.New(e.cfg.WeightBackend, e.cfg.WeightTableSize, e.cfg.Tolerance)
	if err != nil {
		return fmt.Errorf("qdd: gc: allocating weight table: %w", err)
	}
	newNodes := node.New(e.cfg.NodeTableSize)

	r := &gcRebuild{
		oldNodes: oldNodes, oldWeights: oldWeights,
		newNodes: newNodes, newWeights: newWeights,
		weightMemo: make(map[qdd.WeightHandle]qdd.WeightHandle),
		nodeMemo:   make(map[qdd.NodeID]qdd.NodeID),
	}

	e.rootsMu.Lock()
	roots := make([]*qdd.QDD, 0, len(e.roots))
	for q := range e.roots {
		roots = append(roots, q)
	}
	e.rootsMu.Unlock()

	before := oldNodes.Count()
	for _, q := range roots {
		nw, err := r.copyWeight(q.Root.Weight)
		if err != nil {
			return err
		}
		nn, err := r.copyNode(q.Root.Node)
		if err != nil {
			return err
		}
		q.Root = qdd.Edge{Weight: nw, Node: nn}
	}

	oldNodes.Free()
	oldWeights.Free()
	e.nodes = newNodes
	e.weights = newWeights
	e.cache.Clear()
	e.gcCount++

	e.log.Info().Str("run_id", e.runID).
		Int("nodes_before", before).Int("nodes_after", newNodes.Count()).
		Uint64("gc_count", e.gcCount).Msg("qdd gc cycle complete")
	return nil
}

// ShouldGC reports whether the node table's fill fraction has crossed
// gc_threshold (spec.md sec6), for callers that want to GC proactively
// rather than waiting for TABLE_FULL.
func (e *Engine) ShouldGC() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return float64(e.nodes.Count())/float64(e.cfg.NodeTableSize) >= e.cfg.GCThreshold
}

type gcRebuild struct {
	oldNodes   *node.Table
	oldWeights weight.Store
	newNodes   *node.Table
	newWeights weight.Store
	weightMemo map[qdd.WeightHandle]qdd.WeightHandle
	nodeMemo   map[qdd.NodeID]qdd.NodeID
}

func (r *gcRebuild) copyWeight(old qdd.WeightHandle) (qdd.WeightHandle, error) {
	switch old {
	case qdd.WZero, qdd.WOne, qdd.WMinusOne:
		return old, nil
	}
	if nh, ok := r.weightMemo[old]; ok {
		return nh, nil
	}
	v, ok := r.oldWeights.Get(old)
	if !ok {
		return 0, fmt.Errorf("qdd: gc: dangling weight handle %d", old)
	}
	nh, _, err := r.newWeights.FindOrPut(v)
	if err != nil {
		return 0, fmt.Errorf("qdd: gc: rebuilt weight table too small: %w", err)
	}
	r.weightMemo[old] = nh
	return nh, nil
}

func (r *gcRebuild) copyEdge(old qdd.Edge) (qdd.Edge, error) {
	nw, err := r.copyWeight(old.Weight)
	if err != nil {
		return qdd.Edge{}, err
	}
	nn, err := r.copyNode(old.Node)
	if err != nil {
		return qdd.Edge{}, err
	}
	return qdd.Edge{Weight: nw, Node: nn}, nil
}

func (r *gcRebuild) copyNode(old qdd.NodeID) (qdd.NodeID, error) {
	if old == qdd.TerminalID {
		return qdd.TerminalID, nil
	}
	if nn, ok := r.nodeMemo[old]; ok {
		return nn, nil
	}
	rec, ok := r.oldNodes.Lookup(old)
	if !ok {
		return 0, fmt.Errorf("qdd: gc: dangling node id %d", old)
	}
	newLow, err := r.copyEdge(rec.Low)
	if err != nil {
		return 0, err
	}
	newHigh, err := r.copyEdge(rec.High)
	if err != nil {
		return 0, err
	}
	id, _, err := r.newNodes.FindOrPut(rec.Var, newLow, newHigh)
	if err != nil {
		return 0, fmt.Errorf("qdd: gc: rebuilt node table too small: %w", err)
	}
	r.nodeMemo[old] = id
	return id, nil
}
