package engine

import "github.com/kegliz/qplay/qc/qdd"

// Component F continued: matvec_mult and matmat_mult. Per spec.md sec13
// (supplemented from original_source's sylvan_qdd_complex.c), an n-qubit
// unitary is represented as a QDD over 2n interleaved variables -- row
// bit k at variable 2k, column bit k at variable 2k+1 -- so that every
// node's four grandchildren (low.low, low.high, high.low, high.high) are
// exactly the four quadrant submatrices of a standard block-recursive
// matrix decomposition. quadrants/splitVec below expose that structure;
// matvecRec/matmatRec are then ordinary block matrix-vector and
// matrix-matrix multiplication, expressed with plus() doing the summing.

// quadrants returns the four quadrant edges of the matrix rooted at
// medge, where rowVar is the variable index of the row bit at this
// recursion level (its column bit is rowVar+1).
func (e *Engine) quadrants(medge qdd.Edge, rowVar int) (q00, q01, q10, q11 qdd.Edge, err error) {
	rowLow0, rowHigh0 := e.childrenAt(medge.Node, rowVar)
	rowLow, err := e.scale(medge.Weight, rowLow0)
	if err != nil {
		return
	}
	rowHigh, err := e.scale(medge.Weight, rowHigh0)
	if err != nil {
		return
	}
	l0, l1 := e.childrenAt(rowLow.Node, rowVar+1)
	q00, err = e.scale(rowLow.Weight, l0)
	if err != nil {
		return
	}
	q01, err = e.scale(rowLow.Weight, l1)
	if err != nil {
		return
	}
	h0, h1 := e.childrenAt(rowHigh.Node, rowVar+1)
	q10, err = e.scale(rowHigh.Weight, h0)
	if err != nil {
		return
	}
	q11, err = e.scale(rowHigh.Weight, h1)
	return
}

// splitVec returns the (bit=0, bit=1) children of the vector rooted at
// vedge at variable v.
func (e *Engine) splitVec(vedge qdd.Edge, v int) (low, high qdd.Edge, err error) {
	l0, h0 := e.childrenAt(vedge.Node, v)
	low, err = e.scale(vedge.Weight, l0)
	if err != nil {
		return
	}
	high, err = e.scale(vedge.Weight, h0)
	return
}

func (e *Engine) matvecRec(medge, vedge qdd.Edge, level, nvars int) (qdd.Edge, error) {
	if level == nvars {
		w, err := e.mul(medge.Weight, vedge.Weight)
		if err != nil {
			return qdd.Edge{}, err
		}
		if w == qdd.WZero {
			return qdd.ZeroEdge, nil
		}
		return qdd.Edge{Weight: w, Node: qdd.TerminalID}, nil
	}
	q00, q01, q10, q11, err := e.quadrants(medge, 2*level)
	if err != nil {
		return qdd.Edge{}, err
	}
	v0, v1, err := e.splitVec(vedge, level)
	if err != nil {
		return qdd.Edge{}, err
	}

	t00 := spawn(e.pool, func() (qdd.Edge, error) { return e.matvecRec(q00, v0, level+1, nvars) })
	t01 := spawn(e.pool, func() (qdd.Edge, error) { return e.matvecRec(q01, v1, level+1, nvars) })
	t10 := spawn(e.pool, func() (qdd.Edge, error) { return e.matvecRec(q10, v0, level+1, nvars) })
	t11 := spawn(e.pool, func() (qdd.Edge, error) { return e.matvecRec(q11, v1, level+1, nvars) })

	r00, err := join(t00)
	if err != nil {
		return qdd.Edge{}, err
	}
	r01, err := join(t01)
	if err != nil {
		return qdd.Edge{}, err
	}
	r10, err := join(t10)
	if err != nil {
		return qdd.Edge{}, err
	}
	r11, err := join(t11)
	if err != nil {
		return qdd.Edge{}, err
	}

	outLow, err := e.plus(r00, r01)
	if err != nil {
		return qdd.Edge{}, err
	}
	outHigh, err := e.plus(r10, r11)
	if err != nil {
		return qdd.Edge{}, err
	}
	return e.finalize(level, outLow, outHigh)
}

// MatVecMult computes m*v where m is a unitary QDD over 2n interleaved
// variables and v is a state QDD over n variables.
func (e *Engine) MatVecMult(m, v *qdd.QDD, nvars int) (*qdd.QDD, error) {
	if err := e.checkAlive(); err != nil {
		return nil, err
	}
	defer e.touch(m, v)()
	root, err := withRetry(e, func() (qdd.Edge, error) { return e.matvecRec(m.Root, v.Root, 0, nvars) })
	if err != nil {
		return nil, err
	}
	return &qdd.QDD{Root: root, NVars: nvars}, nil
}

func (e *Engine) matmatRec(aedge, bedge qdd.Edge, level, nvars int) (qdd.Edge, error) {
	if level == nvars {
		w, err := e.mul(aedge.Weight, bedge.Weight)
		if err != nil {
			return qdd.Edge{}, err
		}
		if w == qdd.WZero {
			return qdd.ZeroEdge, nil
		}
		return qdd.Edge{Weight: w, Node: qdd.TerminalID}, nil
	}
	a00, a01, a10, a11, err := e.quadrants(aedge, 2*level)
	if err != nil {
		return qdd.Edge{}, err
	}
	b00, b01, b10, b11, err := e.quadrants(bedge, 2*level)
	if err != nil {
		return qdd.Edge{}, err
	}

	term := func(x, y qdd.Edge) func() (qdd.Edge, error) {
		return func() (qdd.Edge, error) { return e.matmatRec(x, y, level+1, nvars) }
	}
	c00a, c00b := spawn(e.pool, term(a00, b00)), spawn(e.pool, term(a01, b10))
	c01a, c01b := spawn(e.pool, term(a00, b01)), spawn(e.pool, term(a01, b11))
	c10a, c10b := spawn(e.pool, term(a10, b00)), spawn(e.pool, term(a11, b10))
	c11a, c11b := spawn(e.pool, term(a10, b01)), spawn(e.pool, term(a11, b11))

	c00, err := e.joinAndSum(c00a, c00b)
	if err != nil {
		return qdd.Edge{}, err
	}
	c01, err := e.joinAndSum(c01a, c01b)
	if err != nil {
		return qdd.Edge{}, err
	}
	c10, err := e.joinAndSum(c10a, c10b)
	if err != nil {
		return qdd.Edge{}, err
	}
	c11, err := e.joinAndSum(c11a, c11b)
	if err != nil {
		return qdd.Edge{}, err
	}

	row0, err := e.finalize(2*level+1, c00, c01)
	if err != nil {
		return qdd.Edge{}, err
	}
	row1, err := e.finalize(2*level+1, c10, c11)
	if err != nil {
		return qdd.Edge{}, err
	}
	return e.finalize(2*level, row0, row1)
}

func (e *Engine) joinAndSum(a, b *task[qdd.Edge]) (qdd.Edge, error) {
	ra, err := join(a)
	if err != nil {
		return qdd.Edge{}, err
	}
	rb, err := join(b)
	if err != nil {
		return qdd.Edge{}, err
	}
	return e.plus(ra, rb)
}

// MatMatMult computes a*b, both unitary QDDs over 2n interleaved
// variables.
func (e *Engine) MatMatMult(a, b *qdd.QDD, nvars int) (*qdd.QDD, error) {
	if err := e.checkAlive(); err != nil {
		return nil, err
	}
	defer e.touch(a, b)()
	root, err := withRetry(e, func() (qdd.Edge, error) { return e.matmatRec(a.Root, b.Root, 0, nvars) })
	if err != nil {
		return nil, err
	}
	return &qdd.QDD{Root: root, NVars: 2 * nvars}, nil
}
