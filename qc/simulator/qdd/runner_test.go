package qdd

import (
	"testing"

	"github.com/kegliz/qplay/qc/builder"
	"github.com/kegliz/qplay/qc/qdd/engine"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.NodeTableSize = 1 << 12
	cfg.WeightTableSize = 1 << 12
	cfg.OpCacheSize = 1 << 10
	r, err := NewRunner(cfg)
	require.NoError(t, err)
	return r
}

func TestRunner_HadamardThenMeasureIsZeroOrOne(t *testing.T) {
	r := newTestRunner(t)

	b := builder.New(builder.Q(1), builder.C(1))
	b.H(0)
	b.Measure(0, 0)
	c, err := b.BuildCircuit()
	require.NoError(t, err)

	result, err := r.RunOnce(c)
	require.NoError(t, err)
	require.Contains(t, []string{"0", "1"}, result)
}

func TestRunner_BellStateMeasuresCorrelated(t *testing.T) {
	r := newTestRunner(t)

	b := builder.New(builder.Q(2), builder.C(2))
	b.H(0)
	b.CNOT(0, 1)
	b.Measure(0, 0)
	b.Measure(1, 1)
	c, err := b.BuildCircuit()
	require.NoError(t, err)

	result, err := r.RunOnce(c)
	require.NoError(t, err)
	require.Contains(t, []string{"00", "11"}, result, "Bell state must only ever measure correlated outcomes")
}

func TestRunner_ValidateCircuit_RejectsSwap(t *testing.T) {
	r := newTestRunner(t)

	b := builder.New(builder.Q(2), builder.C(0))
	b.SWAP(0, 1)
	c, err := b.BuildCircuit()
	require.NoError(t, err)

	require.Error(t, r.ValidateCircuit(c))
}

func TestRunner_ValidateCircuit_RejectsDescendingControl(t *testing.T) {
	r := newTestRunner(t)

	b := builder.New(builder.Q(2), builder.C(0))
	b.CNOT(1, 0)
	c, err := b.BuildCircuit()
	require.NoError(t, err)

	require.Error(t, r.ValidateCircuit(c))
}

func TestRunner_ValidateCircuit_AcceptsAscendingCNOT(t *testing.T) {
	r := newTestRunner(t)

	b := builder.New(builder.Q(2), builder.C(2))
	b.H(0)
	b.CNOT(0, 1)
	b.Measure(0, 0)
	b.Measure(1, 1)
	c, err := b.BuildCircuit()
	require.NoError(t, err)

	require.NoError(t, r.ValidateCircuit(c))
}

func TestRunner_GetBackendInfo(t *testing.T) {
	r := newTestRunner(t)
	info := r.GetBackendInfo()
	require.Equal(t, "qplay", info.Vendor)
	require.Equal(t, "decision_diagram_simulator", info.Metadata["backend_type"])
}

func TestRunner_MetricsTrackRuns(t *testing.T) {
	r := newTestRunner(t)

	b := builder.New(builder.Q(1), builder.C(1))
	b.H(0)
	b.Measure(0, 0)
	c, err := b.BuildCircuit()
	require.NoError(t, err)

	_, err = r.RunOnce(c)
	require.NoError(t, err)

	m := r.GetMetrics()
	require.Equal(t, int64(1), m.TotalExecutions)
	require.Equal(t, int64(1), m.SuccessfulRuns)
	require.Equal(t, int64(0), m.FailedRuns)

	r.ResetMetrics()
	m = r.GetMetrics()
	require.Equal(t, int64(0), m.TotalExecutions)
}
