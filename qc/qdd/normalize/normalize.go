// Package normalize implements component C: the canonicalisation rule
// applied at every node construction so that two semantically-equal QDDs
// always share the same (weight, node) handles bit-for-bit (spec.md
// sec3 invariant 4, sec4.3).
package normalize

import (
	"math"

	"github.com/kegliz/qplay/qc/qdd"
	"github.com/kegliz/qplay/qc/qdd/weight"
)

// Scheme names the active normalisation rule, bound once at engine Init
// (spec.md sec6 "normalisation").
type Scheme string

const (
	LowNonZero Scheme = "low-nonzero"
	Largest    Scheme = "largest"
	L2         Scheme = "l2"
)

// Ops is the minimal capability the normaliser needs from the weight
// store: read a handle's value, and intern a freshly-computed value.
// Kept narrow so normalize has no dependency on the engine or op-cache.
type Ops interface {
	Value(h qdd.WeightHandle) weight.Value
	Intern(v weight.Value) (qdd.WeightHandle, error)
}

// Result is the canonical triple the caller (apply()/engine) must use:
// factor the edge weight entering the parent by Extracted, and insert (or
// reuse, if Redundant) a node with (NewLow, NewHigh) as children.
type Result struct {
	Extracted qdd.WeightHandle
	NewLow    qdd.Edge
	NewHigh   qdd.Edge
	// Redundant signals invariant 2: NewLow and NewHigh are identical, so
	// no node should be inserted -- the caller uses NewLow directly
	// (scaled by Extracted) as the child edge.
	Redundant bool
}

// Normalize applies scheme to the proposed (low, high) child-edge pair,
// returning the canonical extracted weight and rescaled children.
func Normalize(scheme Scheme, ops Ops, low, high qdd.Edge) (Result, error) {
	// Pre-check: identical proposed edges collapse outright (invariant 2),
	// regardless of scheme.
	if low == high {
		if low == qdd.ZeroEdge {
			return Result{Extracted: qdd.WZero, NewLow: low, NewHigh: high, Redundant: true}, nil
		}
		return Result{Extracted: qdd.WOne, NewLow: low, NewHigh: high, Redundant: true}, nil
	}

	var res Result
	var err error
	switch scheme {
	case Largest, "":
		res, err = normalizeLargest(ops, low, high)
	case L2:
		res, err = normalizeL2(ops, low, high)
	case LowNonZero:
		res, err = normalizeLowNonZero(ops, low, high)
	default:
		res, err = normalizeLowNonZero(ops, low, high)
	}
	if err != nil {
		return Result{}, err
	}
	if res.NewLow == res.NewHigh {
		res.Redundant = true
	}
	return res, nil
}

func divHandle(ops Ops, a, b qdd.WeightHandle) (qdd.WeightHandle, error) {
	if a == b {
		return qdd.WOne, nil
	}
	if a == qdd.WZero {
		return qdd.WZero, nil
	}
	va, vb := ops.Value(a), ops.Value(b)
	return ops.Intern(va.Div(vb))
}

func normalizeLowNonZero(ops Ops, low, high qdd.Edge) (Result, error) {
	if low.Weight != qdd.WZero {
		newHighW, err := divHandle(ops, high.Weight, low.Weight)
		if err != nil {
			return Result{}, err
		}
		newHigh := high
		newHigh.Weight = newHighW
		if newHigh.Weight == qdd.WZero {
			newHigh.Node = qdd.TerminalID
		}
		return Result{
			Extracted: low.Weight,
			NewLow:    qdd.Edge{Weight: qdd.WOne, Node: low.Node},
			NewHigh:   newHigh,
		}, nil
	}
	// low is the zero edge: extract high's weight instead.
	if high.Weight == qdd.WZero {
		// Both children are zero -- the whole node is the absorbing zero.
		return Result{Extracted: qdd.WZero, NewLow: qdd.ZeroEdge, NewHigh: qdd.ZeroEdge}, nil
	}
	return Result{
		Extracted: high.Weight,
		NewLow:    qdd.ZeroEdge,
		NewHigh:   qdd.Edge{Weight: qdd.WOne, Node: high.Node},
	}, nil
}

func normalizeLargest(ops Ops, low, high qdd.Edge) (Result, error) {
	if low.Weight == qdd.WZero && high.Weight == qdd.WZero {
		return Result{Extracted: qdd.WZero, NewLow: qdd.ZeroEdge, NewHigh: qdd.ZeroEdge}, nil
	}
	lowAbs := ops.Value(low.Weight).Abs()
	highAbs := ops.Value(high.Weight).Abs()
	// Tie-breaking: prefer low (spec.md sec4.3).
	if lowAbs >= highAbs {
		newHighW, err := divHandle(ops, high.Weight, low.Weight)
		if err != nil {
			return Result{}, err
		}
		newHigh := high
		newHigh.Weight = newHighW
		if newHigh.Weight == qdd.WZero {
			newHigh.Node = qdd.TerminalID
		}
		return Result{
			Extracted: low.Weight,
			NewLow:    qdd.Edge{Weight: qdd.WOne, Node: low.Node},
			NewHigh:   newHigh,
		}, nil
	}
	newLowW, err := divHandle(ops, low.Weight, high.Weight)
	if err != nil {
		return Result{}, err
	}
	newLow := low
	newLow.Weight = newLowW
	if newLow.Weight == qdd.WZero {
		newLow.Node = qdd.TerminalID
	}
	return Result{
		Extracted: high.Weight,
		NewLow:    newLow,
		NewHigh:   qdd.Edge{Weight: qdd.WOne, Node: high.Node},
	}, nil
}

// normalizeL2 extracts the common L2 norm of (low, high) so that
// |wl|^2+|wh|^2 = 1 on every node, additionally fixing the remaining
// global phase by making the low weight real and non-negative (spec.md
// sec4.3 "variant extracts by the L2-norm").
func normalizeL2(ops Ops, low, high qdd.Edge) (Result, error) {
	vl, vh := ops.Value(low.Weight), ops.Value(high.Weight)
	norm := math.Sqrt(vl.AbsSq() + vh.AbsSq())
	if norm == 0 {
		return Result{Extracted: qdd.WZero, NewLow: qdd.ZeroEdge, NewHigh: qdd.ZeroEdge}, nil
	}

	// Phase of the extracted factor: align so that the rescaled low
	// weight is real and non-negative. extractedPhase = vl / |vl| (or 1
	// if vl is zero, in which case align on high instead).
	var phaseRe, phaseIm float64
	magL := vl.Abs()
	if magL > 0 {
		phaseRe, phaseIm = vl.Re/magL, vl.Im/magL
	} else {
		magH := vh.Abs()
		if magH > 0 {
			phaseRe, phaseIm = vh.Re/magH, vh.Im/magH
		} else {
			phaseRe, phaseIm = 1, 0
		}
	}
	extractedVal := weight.Value{Re: norm * phaseRe, Im: norm * phaseIm}

	newLowVal := vl.Div(extractedVal)
	newHighVal := vh.Div(extractedVal)

	extracted, err := ops.Intern(extractedVal)
	if err != nil {
		return Result{}, err
	}
	newLowW, err := ops.Intern(newLowVal)
	if err != nil {
		return Result{}, err
	}
	newHighW, err := ops.Intern(newHighVal)
	if err != nil {
		return Result{}, err
	}

	newLow := qdd.Edge{Weight: newLowW, Node: low.Node}
	newHigh := qdd.Edge{Weight: newHighW, Node: high.Node}
	if newLow.Weight == qdd.WZero {
		newLow.Node = qdd.TerminalID
	}
	if newHigh.Weight == qdd.WZero {
		newHigh.Node = qdd.TerminalID
	}
	return Result{Extracted: extracted, NewLow: newLow, NewHigh: newHigh}, nil
}
