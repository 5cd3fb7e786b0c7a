package normalize

import (
	"math"
	"testing"

	"github.com/kegliz/qplay/qc/qdd"
	"github.com/kegliz/qplay/qc/qdd/weight"
	"github.com/stretchr/testify/require"
)

// storeOps adapts a weight.Store to normalize.Ops for tests.
type storeOps struct{ s weight.Store }

func (o storeOps) Value(h qdd.WeightHandle) weight.Value {
	v, _ := o.s.Get(h)
	return v
}

func (o storeOps) Intern(v weight.Value) (qdd.WeightHandle, error) {
	h, _, err := o.s.FindOrPut(v)
	return h, err
}

func newOps(t *testing.T) storeOps {
	t.Helper()
	s, err := weight.New(weight.ComplexMap, 1<<12, 1e-9)
	require.NoError(t, err)
	return storeOps{s}
}

func TestNormalize_IdenticalEdgesCollapse(t *testing.T) {
	ops := newOps(t)
	e := qdd.Edge{Weight: qdd.WOne, Node: qdd.TerminalID}
	res, err := Normalize(Largest, ops, e, e)
	require.NoError(t, err)
	require.True(t, res.Redundant)
}

func TestNormalize_LowNonZero(t *testing.T) {
	ops := newOps(t)
	invSqrt2, _, err := ops.s.FindOrPut(weight.Value{Re: 1 / math.Sqrt2})
	require.NoError(t, err)

	low := qdd.Edge{Weight: invSqrt2, Node: 5}
	high := qdd.Edge{Weight: invSqrt2, Node: 6}

	res, err := Normalize(LowNonZero, ops, low, high)
	require.NoError(t, err)
	require.False(t, res.Redundant)
	require.Equal(t, qdd.WOne, res.NewLow.Weight)
	require.Equal(t, invSqrt2, res.Extracted)
	// high/low == 1 since both equal invSqrt2
	require.Equal(t, qdd.WOne, res.NewHigh.Weight)
}

func TestNormalize_Largest_TieBreaksLow(t *testing.T) {
	ops := newOps(t)
	res, err := Normalize(Largest, ops,
		qdd.Edge{Weight: qdd.WOne, Node: 1},
		qdd.Edge{Weight: qdd.WOne, Node: 2})
	require.NoError(t, err)
	require.Equal(t, qdd.WOne, res.Extracted) // low's weight extracted on a tie
	require.Equal(t, qdd.NodeID(1), res.NewLow.Node)
}

func TestNormalize_ZeroBothCollapsesToZero(t *testing.T) {
	ops := newOps(t)
	res, err := Normalize(Largest, ops, qdd.ZeroEdge, qdd.ZeroEdge)
	require.NoError(t, err)
	require.True(t, res.Redundant)
	require.Equal(t, qdd.WZero, res.Extracted)
}

func TestNormalize_L2_UnitNormAndRealLow(t *testing.T) {
	ops := newOps(t)
	three, _, _ := ops.s.FindOrPut(weight.Value{Re: 3})
	four, _, _ := ops.s.FindOrPut(weight.Value{Re: 4})

	res, err := Normalize(L2, ops,
		qdd.Edge{Weight: three, Node: 1},
		qdd.Edge{Weight: four, Node: 2})
	require.NoError(t, err)

	lowV := ops.Value(res.NewLow.Weight)
	highV := ops.Value(res.NewHigh.Weight)
	sumSq := lowV.AbsSq() + highV.AbsSq()
	require.InDelta(t, 1.0, sumSq, 1e-9)
	require.GreaterOrEqual(t, lowV.Re, -1e-9)
	require.InDelta(t, 0, lowV.Im, 1e-9)
}
