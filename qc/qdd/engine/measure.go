package engine

import (
	"fmt"
	"math"

	"github.com/kegliz/qplay/qc/qdd"
	"github.com/kegliz/qplay/qc/qdd/weight"
)

// Component G: amplitude extraction and measurement. Measurement is
// eager (spec.md sec14's open-question decision): MeasureQubit collapses
// and renormalises the live QDD immediately rather than deferring to a
// later commit step.

// GetAmplitude walks the single basis-state path described by bits
// (length must equal q.NVars) and returns its complex amplitude.
func (e *Engine) GetAmplitude(q *qdd.QDD, bits []int) (complex128, error) {
	if err := e.checkAlive(); err != nil {
		return 0, err
	}
	if len(bits) != q.NVars {
		return 0, fmt.Errorf("qdd: get_amplitude: expected %d bits, got %d", q.NVars, len(bits))
	}
	total := e.value(q.Root.Weight)
	nodeID := q.Root.Node
	for lvl := 0; lvl < q.NVars; lvl++ {
		low, high := e.childrenAt(nodeID, lvl)
		var branch qdd.Edge
		if bits[lvl] == 0 {
			branch = low
		} else {
			branch = high
		}
		total = total.Mul(e.value(branch.Weight))
		nodeID = branch.Node
		if branch.Weight == qdd.WZero {
			return 0, nil
		}
	}
	return complex(total.Re, total.Im), nil
}

// squaredNorm sums |amplitude|^2 over every basis assignment of
// variables [atVar, nvars) reachable from edge, doubling at every level
// the DAG elides (spec.md sec13: an elided level is two equal branches,
// not one, so omitting it from the structure must not omit it from the
// probability accounting).
func (e *Engine) squaredNorm(edge qdd.Edge, atVar, nvars int) (float64, error) {
	w2 := e.value(edge.Weight).AbsSq()
	if w2 == 0 {
		return 0, nil
	}
	if atVar >= nvars {
		return w2, nil
	}
	nv := e.varOf(edge.Node)
	if nv > atVar {
		inner, err := e.squaredNorm(edge, atVar+1, nvars)
		return 2 * inner, err
	}
	rec, ok := e.nodes.Lookup(edge.Node)
	if !ok {
		return 0, fmt.Errorf("qdd: squared_norm: dangling node id %d", edge.Node)
	}
	lo, err := e.scale(edge.Weight, rec.Low)
	if err != nil {
		return 0, err
	}
	hi, err := e.scale(edge.Weight, rec.High)
	if err != nil {
		return 0, err
	}
	pl, err := e.squaredNorm(lo, atVar+1, nvars)
	if err != nil {
		return 0, err
	}
	ph, err := e.squaredNorm(hi, atVar+1, nvars)
	if err != nil {
		return 0, err
	}
	return pl + ph, nil
}

// condMass sums |amplitude|^2 over every basis assignment whose qubit
// target equals targetBit, otherwise summing freely (spec.md sec4.7
// marginal-probability computation).
func (e *Engine) condMass(edge qdd.Edge, atVar, target, targetBit, nvars int) (float64, error) {
	w2 := e.value(edge.Weight).AbsSq()
	if w2 == 0 {
		return 0, nil
	}
	if atVar >= nvars {
		return w2, nil
	}
	nv := e.varOf(edge.Node)
	if nv > atVar {
		if atVar == target {
			// Amplitude is independent of this bit; take exactly one of
			// the two (identical) branches instead of summing both.
			return e.condMass(edge, atVar+1, target, targetBit, nvars)
		}
		inner, err := e.condMass(edge, atVar+1, target, targetBit, nvars)
		return 2 * inner, err
	}
	rec, ok := e.nodes.Lookup(edge.Node)
	if !ok {
		return 0, fmt.Errorf("qdd: cond_mass: dangling node id %d", edge.Node)
	}
	lo, err := e.scale(edge.Weight, rec.Low)
	if err != nil {
		return 0, err
	}
	hi, err := e.scale(edge.Weight, rec.High)
	if err != nil {
		return 0, err
	}
	if atVar == target {
		if targetBit == 0 {
			return e.condMass(lo, atVar+1, target, targetBit, nvars)
		}
		return e.condMass(hi, atVar+1, target, targetBit, nvars)
	}
	pl, err := e.condMass(lo, atVar+1, target, targetBit, nvars)
	if err != nil {
		return 0, err
	}
	ph, err := e.condMass(hi, atVar+1, target, targetBit, nvars)
	if err != nil {
		return 0, err
	}
	return pl + ph, nil
}

// collapseFull rebuilds the sub-DAG rooted at edge so that qubit target
// is fixed to keepBit, without renormalising (MeasureQubit does that
// once, at the top).
func (e *Engine) collapseFull(edge qdd.Edge, atVar, target, keepBit int) (qdd.Edge, error) {
	if edge.IsZero() {
		return qdd.ZeroEdge, nil
	}
	res, err := e.collapseRec(edge.Node, atVar, target, keepBit)
	if err != nil {
		return qdd.Edge{}, err
	}
	w, err := e.mul(edge.Weight, res.Weight)
	if err != nil {
		return qdd.Edge{}, err
	}
	if w == qdd.WZero {
		return qdd.ZeroEdge, nil
	}
	return qdd.Edge{Weight: w, Node: res.Node}, nil
}

func (e *Engine) collapseRec(nodeID qdd.NodeID, atVar, target, keepBit int) (qdd.Edge, error) {
	low, high := e.childrenAt(nodeID, atVar)
	if atVar == target {
		if keepBit == 0 {
			return low, nil
		}
		return high, nil
	}
	lo, err := e.collapseFull(low, atVar+1, target, keepBit)
	if err != nil {
		return qdd.Edge{}, err
	}
	hi, err := e.collapseFull(high, atVar+1, target, keepBit)
	if err != nil {
		return qdd.Edge{}, err
	}
	return e.finalize(atVar, lo, hi)
}

// MeasureQubit samples qubit target's outcome weighted by its marginal
// probability, collapses q accordingly, and renormalises by 1/sqrt(p).
func (e *Engine) MeasureQubit(q *qdd.QDD, target int) (bit int, prob float64, collapsed *qdd.QDD, err error) {
	if err = e.checkAlive(); err != nil {
		return 0, 0, nil, err
	}
	if target < 0 || target >= q.NVars {
		return 0, 0, nil, qdd.ErrBadQubitIndex
	}
	defer e.touch(q)()
	p0, err := e.condMass(q.Root, 0, target, 0, q.NVars)
	if err != nil {
		return 0, 0, nil, err
	}

	e.randMu.Lock()
	u := e.rand.Float64()
	e.randMu.Unlock()

	bit = 0
	prob = p0
	if u >= p0 {
		bit = 1
		prob = 1 - p0
	}
	if prob < e.cfg.Tolerance {
		return 0, 0, nil, qdd.ErrPrecisionLoss{Detail: fmt.Sprintf("measured outcome has near-zero probability %g", prob)}
	}

	scaled, err := withRetry(e, func() (qdd.Edge, error) {
		raw, err := e.collapseFull(q.Root, 0, target, bit)
		if err != nil {
			return qdd.Edge{}, err
		}
		normFactor, err := e.intern(weight.Value{Re: 1 / math.Sqrt(prob)})
		if err != nil {
			return qdd.Edge{}, err
		}
		return e.scale(normFactor, raw)
	})
	if err != nil {
		return 0, 0, nil, err
	}
	return bit, prob, &qdd.QDD{Root: scaled, NVars: q.NVars}, nil
}

// MeasureAll measures every qubit of q in index order, each measurement
// acting on the live, already-collapsed result of the previous one.
func (e *Engine) MeasureAll(q *qdd.QDD) (bits []int, probs []float64, err error) {
	cur := q
	bits = make([]int, cur.NVars)
	probs = make([]float64, cur.NVars)
	for i := 0; i < cur.NVars; i++ {
		bit, p, next, merr := e.MeasureQubit(cur, i)
		if merr != nil {
			return nil, nil, merr
		}
		bits[i], probs[i] = bit, p
		cur = next
	}
	return bits, probs, nil
}

// CheckNormalized is the self-test hook (spec.md sec13): returns
// ErrInvariantViolation instead of aborting the process when Sigma|amp|^2
// strays from 1 by more than tolerance*(NVars+1).
func (e *Engine) CheckNormalized(q *qdd.QDD) error {
	total, err := e.squaredNorm(q.Root, 0, q.NVars)
	if err != nil {
		return err
	}
	if math.Abs(total-1) > e.cfg.Tolerance*float64(q.NVars+1) {
		return qdd.ErrInvariantViolation
	}
	return nil
}
