package node

import (
	"testing"

	"github.com/kegliz/qplay/qc/qdd"
	"github.com/stretchr/testify/require"
)

func TestTable_TerminalReserved(t *testing.T) {
	tb := New(16)
	rec, ok := tb.Lookup(qdd.TerminalID)
	require.True(t, ok)
	require.Equal(t, -1, rec.Var)
}

func TestTable_FindOrPut_Uniqueness(t *testing.T) {
	tb := New(16)
	low := qdd.Edge{Weight: qdd.WOne, Node: qdd.TerminalID}
	high := qdd.Edge{Weight: qdd.WZero, Node: qdd.TerminalID}

	id1, inserted1, err := tb.FindOrPut(2, low, high)
	require.NoError(t, err)
	require.True(t, inserted1)

	id2, inserted2, err := tb.FindOrPut(2, low, high)
	require.NoError(t, err)
	require.False(t, inserted2)
	require.Equal(t, id1, id2)

	// Distinct var must produce a distinct entry even with identical edges.
	id3, inserted3, err := tb.FindOrPut(3, low, high)
	require.NoError(t, err)
	require.True(t, inserted3)
	require.NotEqual(t, id1, id3)
}

func TestTable_FullReturnsErrTableFull(t *testing.T) {
	tb := New(2) // terminal + 1 slot
	low := qdd.Edge{Weight: qdd.WOne, Node: qdd.TerminalID}
	high := qdd.Edge{Weight: qdd.WZero, Node: qdd.TerminalID}

	_, _, err := tb.FindOrPut(1, low, high)
	require.NoError(t, err)

	_, _, err = tb.FindOrPut(2, low, high)
	require.ErrorIs(t, err, qdd.ErrTableFull)
}

func TestTable_IterateLive(t *testing.T) {
	tb := New(16)
	low := qdd.Edge{Weight: qdd.WOne, Node: qdd.TerminalID}
	high := qdd.Edge{Weight: qdd.WZero, Node: qdd.TerminalID}
	id, _, err := tb.FindOrPut(0, low, high)
	require.NoError(t, err)

	seen := map[qdd.NodeID]Record{}
	tb.IterateLive(func(i qdd.NodeID, rec Record) { seen[i] = rec })
	require.Contains(t, seen, id)
	require.NotContains(t, seen, qdd.TerminalID, "terminal must be excluded from IterateLive")
}
