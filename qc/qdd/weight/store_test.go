package weight

import (
	"testing"

	"github.com/kegliz/qplay/qc/qdd"
	"github.com/stretchr/testify/require"
)

func allBackends() []Backend { return []Backend{ComplexMap, RealTupleMap, RealTreeMap} }

func TestStore_ReservedHandles(t *testing.T) {
	for _, b := range allBackends() {
		t.Run(string(b), func(t *testing.T) {
			s, err := New(b, 64, 1e-9)
			require.NoError(t, err)
			defer s.Free()

			v, ok := s.Get(qdd.WZero)
			require.True(t, ok)
			require.Equal(t, Value{0, 0}, v)

			v, ok = s.Get(qdd.WOne)
			require.True(t, ok)
			require.Equal(t, Value{1, 0}, v)

			v, ok = s.Get(qdd.WMinusOne)
			require.True(t, ok)
			require.Equal(t, Value{-1, 0}, v)
		})
	}
}

func TestStore_FindOrPut_Interns(t *testing.T) {
	for _, b := range allBackends() {
		t.Run(string(b), func(t *testing.T) {
			s, err := New(b, 64, 1e-9)
			require.NoError(t, err)
			defer s.Free()

			h1, inserted1, err := s.FindOrPut(Value{0.5, 0.25})
			require.NoError(t, err)
			require.True(t, inserted1)

			h2, inserted2, err := s.FindOrPut(Value{0.5, 0.25})
			require.NoError(t, err)
			require.False(t, inserted2)
			require.Equal(t, h1, h2)
		})
	}
}

func TestStore_ToleranceEquivalence(t *testing.T) {
	for _, b := range allBackends() {
		t.Run(string(b), func(t *testing.T) {
			s, err := New(b, 64, 1e-6)
			require.NoError(t, err)
			defer s.Free()

			h1, _, err := s.FindOrPut(Value{1.0 / 3.0, 0})
			require.NoError(t, err)
			h2, _, err := s.FindOrPut(Value{1.0/3.0 + 1e-9, 0})
			require.NoError(t, err)
			require.Equal(t, h1, h2, "values within tolerance must share a handle")
		})
	}
}

func TestStore_FullReturnsErrTableFull(t *testing.T) {
	for _, b := range allBackends() {
		t.Run(string(b), func(t *testing.T) {
			s, err := New(b, 4, 1e-9)
			require.NoError(t, err)
			defer s.Free()

			// 3 reserved handles already occupy slots; one more fits.
			_, _, err = s.FindOrPut(Value{7, 7})
			require.NoError(t, err)

			_, _, err = s.FindOrPut(Value{9, 9})
			require.ErrorIs(t, err, qdd.ErrTableFull)
		})
	}
}

func TestStore_Stats(t *testing.T) {
	s, err := New(ComplexMap, 64, 1e-9)
	require.NoError(t, err)
	defer s.Free()

	_, _, _ = s.FindOrPut(Value{2, 2})
	_, _, _ = s.FindOrPut(Value{2, 2})

	stats := s.Stats()
	require.GreaterOrEqual(t, stats.Lookups, uint64(2))
	require.GreaterOrEqual(t, stats.Hits, uint64(1))
}
