// Package engine ties components A-I together into the operational QDD
// engine (spec.md sec5 lifecycle, sec4 operations): weight store, node
// table, normaliser, op-cache, gate catalogue, garbage collector and task
// pool, all addressed through a single Engine value.
package engine

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/kegliz/qplay/internal/logger"
	"github.com/kegliz/qplay/qc/qdd"
	"github.com/kegliz/qplay/qc/qdd/gatecat"
	"github.com/kegliz/qplay/qc/qdd/node"
	"github.com/kegliz/qplay/qc/qdd/normalize"
	"github.com/kegliz/qplay/qc/qdd/opcache"
	"github.com/kegliz/qplay/qc/qdd/weight"
)

// Engine is the single entry point every qc/simulator/qdd runner drives.
// Grounded on qc/simulator/qsim/state.go's single-struct-owns-everything
// shape, generalised from a flat statevector to the shared node/weight
// tables.
type Engine struct {
	cfg Config

	mu       sync.RWMutex // guards the tables during GC's quiesce-and-swap
	weights  weight.Store
	nodes    *node.Table
	cache    *opcache.Cache
	catalog  *gatecat.Catalogue
	pool     *Pool
	rand     *rand.Rand
	randMu   sync.Mutex

	rootsMu sync.Mutex
	roots   map[*qdd.QDD]struct{}

	log   logger.Logger
	runID string

	gcCount    uint64
	mulCount   uint64
	mulDownCnt uint64

	shutdown bool
}

// New constructs an Engine from cfg, seeding the weight store's three
// reserved handles and the gate catalogue's static matrices.
func New(cfg Config) (*Engine, error) {
	ws, err := weight.New(cfg.WeightBackend, cfg.WeightTableSize, cfg.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("qdd: constructing weight store: %w", err)
	}
	nt := node.New(cfg.NodeTableSize)
	oc := opcache.New(cfg.OpCacheSize, cfg.CacheGranularity)

	e := &Engine{
		cfg:     cfg,
		weights: ws,
		nodes:   nt,
		cache:   oc,
		roots:   make(map[*qdd.QDD]struct{}),
		log:     *logger.NewLogger(logger.LoggerOptions{Debug: cfg.Debug}),
		runID:   uuid.NewString(),
	}
	e.log = *e.log.SpawnForService("qdd")
	e.pool = NewPool(cfg.Workers)

	seed := cfg.Seed
	if seed == 0 {
		seed = int64(1) // deterministic fallback; callers wanting entropy pass an explicit non-zero seed
	}
	e.rand = rand.New(rand.NewSource(seed))

	cat, err := gatecat.New(e.internerAdapter(), cfg.GateRingSize)
	if err != nil {
		return nil, fmt.Errorf("qdd: seeding gate catalogue: %w", err)
	}
	e.catalog = cat

	e.log.Info().Str("run_id", e.runID).Str("weight_backend", string(cfg.WeightBackend)).
		Str("normalisation", string(cfg.Normalisation)).Msg("qdd engine initialised")
	return e, nil
}

// Shutdown releases the engine's tables; every subsequent call on e
// returns ErrShutdown.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shutdown {
		return nil
	}
	e.shutdown = true
	e.weights.Free()
	e.nodes.Free()
	e.pool.Close()
	e.log.Info().Str("run_id", e.runID).Msg("qdd engine shut down")
	return nil
}

func (e *Engine) checkAlive() error {
	if e.shutdown {
		return qdd.ErrShutdown
	}
	return nil
}

// CreateAllZeroState builds the QDD for |0...0> over nvars qubits: an
// explicit chain of nvars nodes, one per variable, low={W_ONE, next} and
// high=ZeroEdge. A bare edge straight to the terminal would instead mean
// every level is elided, which childrenAt treats as low==high -- that is
// the uniform vector (every amplitude 1), not the ground state, so the
// chain has to be built node by node even though it encodes no
// superposition yet.
func (e *Engine) CreateAllZeroState(nvars int) (*qdd.QDD, error) {
	if err := e.checkAlive(); err != nil {
		return nil, err
	}
	if nvars < 0 {
		return nil, qdd.ErrBadQubitIndex
	}
	if nvars == 0 {
		return &qdd.QDD{Root: qdd.Edge{Weight: qdd.WOne, Node: qdd.TerminalID}, NVars: 0}, nil
	}
	root, err := withRetry(e, func() (qdd.Edge, error) {
		return e.buildAllZeroChain(nvars)
	})
	if err != nil {
		return nil, err
	}
	return &qdd.QDD{Root: root, NVars: nvars}, nil
}

// buildAllZeroChain builds |0...0> explicitly: a chain of nvars nodes,
// one per variable, each with high = ZeroEdge and low = {WOne, child}.
// high != low at every level (the high branch is the absorbing zero
// edge, the low branch is not) so none of these nodes is ever redundant
// -- unlike an elided level, which childrenAt/squaredNorm treat as two
// *equal* branches and would make this read as the uniform vector
// instead of the all-zero basis state.
func (e *Engine) buildAllZeroChain(nvars int) (qdd.Edge, error) {
	child := qdd.Edge{Weight: qdd.WOne, Node: qdd.TerminalID}
	for v := nvars - 1; v >= 0; v-- {
		id, err := e.internNode(v, child, qdd.ZeroEdge)
		if err != nil {
			return qdd.Edge{}, err
		}
		child = qdd.Edge{Weight: qdd.WOne, Node: id}
	}
	return child, nil
}

// RegisterRoot keeps q reachable across GC cycles. UnregisterRoot lets
// the GC reclaim whatever q alone was keeping alive.
func (e *Engine) RegisterRoot(q *qdd.QDD) {
	e.rootsMu.Lock()
	defer e.rootsMu.Unlock()
	e.roots[q] = struct{}{}
}

func (e *Engine) UnregisterRoot(q *qdd.QDD) {
	e.rootsMu.Lock()
	defer e.rootsMu.Unlock()
	delete(e.roots, q)
}

// touch registers every operand of a public entry point as a root for
// the duration of the call and returns the matching unregister. Every
// public operation does this around its body so that if GC fires mid-
// operation (triggered by a TABLE_FULL deep in the recursion), its
// operands are rewritten to valid post-GC handles in place -- which is
// what makes "discard partial work, retry the whole call" (spec.md
// sec4.6) actually safe: the retried closure re-reads q.Root, and by the
// time it runs again that field has already been fixed up.
func (e *Engine) touch(qs ...*qdd.QDD) func() {
	for _, q := range qs {
		e.RegisterRoot(q)
	}
	return func() {
		for _, q := range qs {
			e.UnregisterRoot(q)
		}
	}
}

// CountNodes returns the number of distinct nodes reachable from q's
// root, not counting the terminal (spec.md sec8's Bell/GHZ assertions).
func (e *Engine) CountNodes(q *qdd.QDD) int {
	seen := make(map[qdd.NodeID]struct{})
	var walk func(id qdd.NodeID)
	walk = func(id qdd.NodeID) {
		if id == qdd.TerminalID {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		rec, ok := e.nodes.Lookup(id)
		if !ok {
			return
		}
		walk(rec.Low.Node)
		walk(rec.High.Node)
	}
	walk(q.Root.Node)
	return len(seen)
}

// AddDynamicGate interns a parameterised Rx/Ry/Rz rotation and returns
// its gate id. When the dynamic ring wraps, the op-cache is cleared in
// full (spec.md sec4.9: a wrapped ring slot now holds a different
// matrix, so any cached apply() result keyed by the old id would be
// silently wrong).
func (e *Engine) AddDynamicGate(kind gatecat.DynamicKind, theta float64) (gatecat.GateID, error) {
	if err := e.checkAlive(); err != nil {
		return 0, err
	}
	id, wrapped, err := e.catalog.AddDynamic(e.internerAdapter(), kind, theta)
	if err != nil {
		return 0, err
	}
	if wrapped {
		e.cache.Clear()
		e.log.Debug().Str("run_id", e.runID).Msg("dynamic gate ring wrapped, op-cache cleared")
	}
	return id, nil
}

// --- shared low-level helpers used by arith.go, apply.go, matvec.go, measure.go ---

func (e *Engine) value(h qdd.WeightHandle) weight.Value {
	v, _ := e.weights.Get(h)
	return v
}

// intern performs a bare find-or-put. TABLE_FULL is not retried here: per
// spec.md sec4.6's failure-handling note, it must unwind all the way to
// the top-level operation, which discards its partial work, triggers GC,
// and retries the whole operation from scratch -- a half-built result
// that survives a GC pass by accident (because some of its nodes
// happened to already be reachable from an older root) is exactly the
// kind of inconsistency the "retry from scratch" rule exists to avoid.
func (e *Engine) intern(v weight.Value) (qdd.WeightHandle, error) {
	h, _, err := e.weights.FindOrPut(v)
	return h, err
}

// internNode finds-or-puts (v, low, high) in the node table. See intern's
// comment on why ErrTableFull propagates rather than retrying locally.
func (e *Engine) internNode(v int, low, high qdd.Edge) (qdd.NodeID, error) {
	id, _, err := e.nodes.FindOrPut(v, low, high)
	return id, err
}

// withRetry runs op once under a read-lock on the table pair (so a
// concurrent GC's write-lock quiesce actually has teeth); if it fails
// with ErrTableFull, it releases the read-lock, triggers a full GC
// cycle, and runs op exactly one more time (spec.md sec4.6 / sec4.8). A
// second ErrTableFull is escalated to the caller -- the tables are sized
// wrong for this workload, not merely fragmented.
func withRetry[T any](e *Engine, op func() (T, error)) (T, error) {
	e.mu.RLock()
	out, err := op()
	e.mu.RUnlock()
	if err == qdd.ErrTableFull {
		if gerr := e.GC(); gerr != nil {
			var zero T
			return zero, gerr
		}
		e.mu.RLock()
		out, err = op()
		e.mu.RUnlock()
	}
	return out, err
}

// varOf treats the terminal as lying beyond every real variable, so
// childrenAt's "skip" branch degrades to the terminal naturally. Any other
// id gets the node table's answer, which is -1 for an unknown id.
func (e *Engine) varOf(id qdd.NodeID) int {
	if id == qdd.TerminalID {
		return math.MaxInt32
	}
	return e.nodes.Var(id)
}

// childrenAt returns the (low, high) children id owns at variable v,
// unscaled by any incoming edge weight. When id's own variable is strictly
// below v (including the terminal), both children are synthesised as the
// identical unit edge {W_ONE, id} -- the "virtual node" trick that lets
// every recursive operation (plus, apply, matvec) treat skipped levels
// uniformly instead of special-casing them (spec.md sec3 invariant 2:
// elided levels are semantically a no-op, not a branch).
func (e *Engine) childrenAt(id qdd.NodeID, v int) (low, high qdd.Edge) {
	nv := e.varOf(id)
	if nv > v {
		unit := qdd.Edge{Weight: qdd.WOne, Node: id}
		return unit, unit
	}
	rec, ok := e.nodes.Lookup(id)
	if !ok {
		unit := qdd.Edge{Weight: qdd.WOne, Node: id}
		return unit, unit
	}
	return rec.Low, rec.High
}

// scale returns the edge representing w * (contents of child).
func (e *Engine) scale(w qdd.WeightHandle, child qdd.Edge) (qdd.Edge, error) {
	nw, err := e.mul(w, child.Weight)
	if err != nil {
		return qdd.Edge{}, err
	}
	if nw == qdd.WZero {
		return qdd.ZeroEdge, nil
	}
	return qdd.Edge{Weight: nw, Node: child.Node}, nil
}

// finalize applies Normalize and either hands back the redundant child
// directly or interns a fresh node at variable v (component C plus B
// wired together -- every recursive operation funnels its proposed
// (low, high) pair through this single chokepoint).
func (e *Engine) finalize(v int, low, high qdd.Edge) (qdd.Edge, error) {
	res, err := normalize.Normalize(e.cfg.Normalisation, e.normalizeOps(), low, high)
	if err != nil {
		return qdd.Edge{}, err
	}
	if res.Redundant {
		return e.scale(res.Extracted, res.NewLow), nil
	}
	id, err := e.internNode(v, res.NewLow, res.NewHigh)
	if err != nil {
		return qdd.Edge{}, err
	}
	return qdd.Edge{Weight: res.Extracted, Node: id}, nil
}

// entryKey folds a gatecat.Entry's four handles into a single uint64 for
// use as an op-cache operand; two structurally distinct gates can only
// collide here if their matrix elements intern to the exact same four
// handles, in which case they are the same unitary and collapsing the
// cache key is correct, not a bug.
func entryKey(e gatecat.Entry) uint64 {
	h := uint64(14695981039346656037)
	for _, v := range e {
		h ^= uint64(v)
		h *= 1099511628211
	}
	return h
}

// --- adapters satisfying the narrow interfaces normalize and gatecat need ---

type normOps struct{ e *Engine }

func (o normOps) Value(h qdd.WeightHandle) weight.Value { return o.e.value(h) }
func (o normOps) Intern(v weight.Value) (qdd.WeightHandle, error) { return o.e.intern(v) }

func (e *Engine) normalizeOps() normalize.Ops { return normOps{e} }

type internerAdapter struct{ e *Engine }

func (a internerAdapter) Intern(v weight.Value) (qdd.WeightHandle, error) { return a.e.intern(v) }

func (e *Engine) internerAdapter() gatecat.Interner { return internerAdapter{e} }
