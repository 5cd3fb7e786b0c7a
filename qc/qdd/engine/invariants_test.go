package engine

import (
	"math/rand"
	"testing"

	"github.com/kegliz/qplay/qc/qdd"
	"github.com/kegliz/qplay/qc/qdd/gatecat"
	"github.com/stretchr/testify/require"
)

var singleQubitGates = []gatecat.GateID{
	gatecat.I, gatecat.X, gatecat.Y, gatecat.Z, gatecat.H,
	gatecat.S, gatecat.T, gatecat.Tdag, gatecat.SqrtX, gatecat.SqrtY,
}

// TestRandomSequence_StaysNormalized reproduces spec.md sec8's random
// single-qubit sequence scenario: 1000 gates over 20 qubits, fixed seed,
// Sigma|amplitude|^2 over all basis states equals 1 within CheckNormalized's
// bound of Tolerance*(NVars+1).
func TestRandomSequence_StaysNormalized(t *testing.T) {
	const nvars = 20
	const ngates = 1000

	e := newTestEngine(t)
	q, err := e.CreateAllZeroState(nvars)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < ngates; i++ {
		target := rng.Intn(nvars)
		gate := singleQubitGates[rng.Intn(len(singleQubitGates))]
		q, err = e.ApplyGate(q, gate, target)
		require.NoError(t, err)
	}

	require.NoError(t, e.CheckNormalized(q))
}

// TestGCRoundTrip_PreservesAmplitudes reproduces spec.md invariant 9:
// rebuilding the tables preserves get_amplitude on every basis state.
func TestGCRoundTrip_PreservesAmplitudes(t *testing.T) {
	e := newTestEngine(t)
	q, err := e.CreateAllZeroState(3)
	require.NoError(t, err)

	q, err = e.ApplyGate(q, gatecat.H, 0)
	require.NoError(t, err)
	q, err = e.ApplyControlledGate(q, gatecat.X, []int{0}, 1)
	require.NoError(t, err)
	q, err = e.ApplyControlledGate(q, gatecat.X, []int{1}, 2)
	require.NoError(t, err)

	e.RegisterRoot(q)
	defer e.UnregisterRoot(q)

	before := make([]complex128, 0, 8)
	for b := 0; b < 8; b++ {
		bits := []int{(b >> 2) & 1, (b >> 1) & 1, b & 1}
		amp, err := e.GetAmplitude(q, bits)
		require.NoError(t, err)
		before = append(before, amp)
	}

	require.NoError(t, e.GC())

	for b := 0; b < 8; b++ {
		bits := []int{(b >> 2) & 1, (b >> 1) & 1, b & 1}
		amp, err := e.GetAmplitude(q, bits)
		require.NoError(t, err)
		require.InDelta(t, real(before[b]), real(amp), 1e-9)
		require.InDelta(t, imag(before[b]), imag(amp), 1e-9)
	}
}

// TestGC_TriggeredByTableFull exercises the TABLE_FULL -> GC -> retry
// path end to end against a node table sized to force at least one GC
// cycle partway through circuit construction.
func TestGC_TriggeredByTableFull(t *testing.T) {
	cfg := testConfig()
	cfg.NodeTableSize = 8 // tiny: a handful of H/CX applications will fill it
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Shutdown() })

	q, err := e.CreateAllZeroState(4)
	require.NoError(t, err)
	e.RegisterRoot(q)
	defer e.UnregisterRoot(q)

	for i := 0; i < 4; i++ {
		q, err = e.ApplyGate(q, gatecat.H, i)
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		q, err = e.ApplyControlledGate(q, gatecat.X, []int{i}, i+1)
		require.NoError(t, err)
	}

	require.NoError(t, e.CheckNormalized(q))
	require.GreaterOrEqual(t, e.gcCount, uint64(1), "a node table of size 8 must have forced at least one GC cycle")
}

// TestCacheSoundness_ColdVsWarm checks spec.md invariant 10: running the
// same circuit twice, once against a fresh op-cache and once against one
// already warmed by an identical prior run, must yield identical results.
func TestCacheSoundness_ColdVsWarm(t *testing.T) {
	e := newTestEngine(t)

	run := func() *qdd.QDD {
		q, err := e.CreateAllZeroState(3)
		require.NoError(t, err)
		q, err = e.ApplyGate(q, gatecat.H, 0)
		require.NoError(t, err)
		q, err = e.ApplyGate(q, gatecat.H, 1)
		require.NoError(t, err)
		q, err = e.ApplyControlledGate(q, gatecat.X, []int{0}, 1)
		require.NoError(t, err)
		q, err = e.ApplyControlledGate(q, gatecat.X, []int{1}, 2)
		require.NoError(t, err)
		q, err = e.ApplyGate(q, gatecat.T, 2)
		require.NoError(t, err)
		return q
	}

	cold := run() // op-cache empty on first pass through this exact sequence
	warm := run() // identical sequence, now fully cache-hot

	require.Equal(t, cold.Root, warm.Root)
}
