package gatecat

import (
	"math"
	"testing"

	"github.com/kegliz/qplay/qc/qdd"
	"github.com/kegliz/qplay/qc/qdd/weight"
	"github.com/stretchr/testify/require"
)

type testInterner struct{ s weight.Store }

func (t testInterner) Intern(v weight.Value) (qdd.WeightHandle, error) {
	h, _, err := t.s.FindOrPut(v)
	return h, err
}

func newInterner(t *testing.T) testInterner {
	t.Helper()
	s, err := weight.New(weight.ComplexMap, 1<<14, 1e-9)
	require.NoError(t, err)
	return testInterner{s}
}

func TestCatalogue_StableIDs(t *testing.T) {
	require.Equal(t, GateID(0), I)
	require.Equal(t, GateID(1), X)
	require.Equal(t, GateID(2), Y)
	require.Equal(t, GateID(3), Z)
	require.Equal(t, GateID(4), H)
	require.Equal(t, GateID(5), S)
	require.Equal(t, GateID(6), T)
	require.Equal(t, GateID(7), Tdag)
	require.Equal(t, GateID(8), SqrtX)
	require.Equal(t, GateID(9), SqrtY)
}

func TestCatalogue_HMatrixUnitary(t *testing.T) {
	ops := newInterner(t)
	cat, err := New(ops, 64)
	require.NoError(t, err)

	entry, ok := cat.Lookup(H)
	require.True(t, ok)

	get := func(h qdd.WeightHandle) weight.Value { v, _ := ops.s.Get(h); return v }

	m00, m01, m10, m11 := get(entry[0]), get(entry[1]), get(entry[2]), get(entry[3])
	require.InDelta(t, 1/math.Sqrt2, m00.Re, 1e-9)
	require.InDelta(t, 1/math.Sqrt2, m01.Re, 1e-9)
	require.InDelta(t, 1/math.Sqrt2, m10.Re, 1e-9)
	require.InDelta(t, -1/math.Sqrt2, m11.Re, 1e-9)
}

func TestCatalogue_XDistinctFromIdentity(t *testing.T) {
	ops := newInterner(t)
	cat, err := New(ops, 64)
	require.NoError(t, err)

	x, _ := cat.Lookup(X)
	i, _ := cat.Lookup(I)
	require.NotEqual(t, x, i)
}

func TestCatalogue_DynamicRingWraps(t *testing.T) {
	ops := newInterner(t)
	cat, err := New(ops, 4)
	require.NoError(t, err)

	var lastWrapped bool
	for i := 0; i < 5; i++ {
		_, wrapped, err := cat.AddDynamic(ops, DynRx, float64(i)*0.1)
		require.NoError(t, err)
		lastWrapped = wrapped
	}
	require.True(t, lastWrapped, "ring of size 4 must wrap by the 5th insertion")
}

func TestCatalogue_DynamicLookup(t *testing.T) {
	ops := newInterner(t)
	cat, err := New(ops, 64)
	require.NoError(t, err)

	id, _, err := cat.AddDynamic(ops, DynRz, math.Pi/3)
	require.NoError(t, err)

	_, ok := cat.Lookup(id)
	require.True(t, ok)
}
