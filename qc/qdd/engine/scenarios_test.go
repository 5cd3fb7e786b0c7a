package engine

import (
	"math"
	"testing"

	"github.com/kegliz/qplay/qc/qdd"
	"github.com/kegliz/qplay/qc/qdd/gatecat"
	"github.com/stretchr/testify/require"
)

var sqrt2 = math.Sqrt2

// TestBellState reproduces spec.md sec8's literal Bell scenario: n=2, H
// on q0, CX(0,1), node count 3 (internal nodes; the terminal is not
// counted), amplitudes
// 1/sqrt2 at 00 and 11, zero at 01 and 10.
func TestBellState(t *testing.T) {
	e := newTestEngine(t)
	q, err := e.CreateAllZeroState(2)
	require.NoError(t, err)

	q, err = e.ApplyGate(q, gatecat.H, 0)
	require.NoError(t, err)
	q, err = e.ApplyControlledGate(q, gatecat.X, []int{0}, 1)
	require.NoError(t, err)

	require.Equal(t, 3, e.CountNodes(q))

	a00, err := e.GetAmplitude(q, []int{0, 0})
	require.NoError(t, err)
	a01, err := e.GetAmplitude(q, []int{0, 1})
	require.NoError(t, err)
	a10, err := e.GetAmplitude(q, []int{1, 0})
	require.NoError(t, err)
	a11, err := e.GetAmplitude(q, []int{1, 1})
	require.NoError(t, err)

	inv := 1 / sqrt2
	require.InDelta(t, inv, real(a00), 1e-9)
	require.InDelta(t, 0, real(a01), 1e-9)
	require.InDelta(t, 0, real(a10), 1e-9)
	require.InDelta(t, inv, real(a11), 1e-9)
}

// TestGHZ3 reproduces spec.md sec8's GHZ-3 scenario: n=3, H on q0,
// CX(0,1), CX(1,2). Non-zero amplitudes only at 000 and 111, node count 4.
func TestGHZ3(t *testing.T) {
	e := newTestEngine(t)
	q, err := e.CreateAllZeroState(3)
	require.NoError(t, err)

	q, err = e.ApplyGate(q, gatecat.H, 0)
	require.NoError(t, err)
	q, err = e.ApplyControlledGate(q, gatecat.X, []int{0}, 1)
	require.NoError(t, err)
	q, err = e.ApplyControlledGate(q, gatecat.X, []int{1}, 2)
	require.NoError(t, err)

	require.Equal(t, 4, e.CountNodes(q))

	inv := 1 / sqrt2
	a000, err := e.GetAmplitude(q, []int{0, 0, 0})
	require.NoError(t, err)
	a111, err := e.GetAmplitude(q, []int{1, 1, 1})
	require.NoError(t, err)
	require.InDelta(t, inv, real(a000), 1e-9)
	require.InDelta(t, inv, real(a111), 1e-9)

	for _, bits := range [][]int{
		{0, 0, 1}, {0, 1, 0}, {0, 1, 1},
		{1, 0, 0}, {1, 0, 1}, {1, 1, 0},
	} {
		amp, err := e.GetAmplitude(q, bits)
		require.NoError(t, err)
		require.InDelta(t, 0, real(amp), 1e-9)
		require.InDelta(t, 0, imag(amp), 1e-9)
	}
}

// TestPhaseKickback_HZHEqualsX verifies spec.md sec8's handle-equality
// scenario: H.Z.H on q0 must equal a direct X on q0, bitwise.
func TestPhaseKickback_HZHEqualsX(t *testing.T) {
	e := newTestEngine(t)
	q0, err := e.CreateAllZeroState(1)
	require.NoError(t, err)

	want, err := e.ApplyGate(q0, gatecat.X, 0)
	require.NoError(t, err)

	got, err := e.ApplyGate(q0, gatecat.H, 0)
	require.NoError(t, err)
	got, err = e.ApplyGate(got, gatecat.Z, 0)
	require.NoError(t, err)
	got, err = e.ApplyGate(got, gatecat.H, 0)
	require.NoError(t, err)

	require.Equal(t, want.Root, got.Root)
}

// TestCommutativity_DisjointQubits checks spec.md invariant 8: gates on
// disjoint qubits commute as QDD handles.
func TestCommutativity_DisjointQubits(t *testing.T) {
	e := newTestEngine(t)
	q, err := e.CreateAllZeroState(2)
	require.NoError(t, err)

	a, err := e.ApplyGate(q, gatecat.H, 0)
	require.NoError(t, err)
	a, err = e.ApplyGate(a, gatecat.X, 1)
	require.NoError(t, err)

	b, err := e.ApplyGate(q, gatecat.X, 1)
	require.NoError(t, err)
	b, err = e.ApplyGate(b, gatecat.H, 0)
	require.NoError(t, err)

	require.Equal(t, a.Root, b.Root)
}

// TestGrover3_MarksFlagWithHighProbability reproduces spec.md sec8's
// Grover scenario: n=3, flag=101, 2 iterations, Pr(|101>) >= 0.78.
func TestGrover3_MarksFlagWithHighProbability(t *testing.T) {
	e := newTestEngine(t)
	q, err := e.CreateAllZeroState(3)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		q, err = e.ApplyGate(q, gatecat.H, i)
		require.NoError(t, err)
	}

	oracle := func(q *qdd.QDD) *qdd.QDD {
		var err error
		q, err = e.ApplyGate(q, gatecat.X, 1) // flag bit 1 of "101" is 0
		require.NoError(t, err)
		q, err = e.ApplyControlledGate(q, gatecat.Z, []int{0, 1}, 2)
		require.NoError(t, err)
		q, err = e.ApplyGate(q, gatecat.X, 1)
		require.NoError(t, err)
		return q
	}

	diffuse := func(q *qdd.QDD) *qdd.QDD {
		var err error
		for i := 0; i < 3; i++ {
			q, err = e.ApplyGate(q, gatecat.H, i)
			require.NoError(t, err)
		}
		for i := 0; i < 3; i++ {
			q, err = e.ApplyGate(q, gatecat.X, i)
			require.NoError(t, err)
		}
		q, err = e.ApplyControlledGate(q, gatecat.Z, []int{0, 1}, 2)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			q, err = e.ApplyGate(q, gatecat.X, i)
			require.NoError(t, err)
		}
		for i := 0; i < 3; i++ {
			q, err = e.ApplyGate(q, gatecat.H, i)
			require.NoError(t, err)
		}
		return q
	}

	for iter := 0; iter < 2; iter++ {
		q = oracle(q)
		q = diffuse(q)
	}

	amp, err := e.GetAmplitude(q, []int{1, 0, 1})
	require.NoError(t, err)
	prob := real(amp)*real(amp) + imag(amp)*imag(amp)
	require.GreaterOrEqual(t, prob, 0.78)
}
