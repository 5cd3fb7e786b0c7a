package opcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	c := New(16, 1)
	c.Put(Key{Op: OpApply, A: 1, B: 2}, 99)
	v, ok := c.Get(Key{Op: OpApply, A: 1, B: 2})
	require.True(t, ok)
	require.Equal(t, uint64(99), v)
}

func TestCache_MissIsSafe(t *testing.T) {
	c := New(16, 1)
	_, ok := c.Get(Key{Op: OpApply, A: 42})
	require.False(t, ok)
}

func TestCache_CommutativeCanonicalisation(t *testing.T) {
	c := New(16, 1)
	c.PutCommutative(OpAdd, 5, 2, 77)
	v, ok := c.GetCommutative(OpAdd, 2, 5)
	require.True(t, ok)
	require.Equal(t, uint64(77), v)
}

func TestCache_MulInversesInserted(t *testing.T) {
	c := New(16, 1)
	isZero := func(h uint64) bool { return h == 0 }
	c.PutMulWithInverses(3, 4, 12, isZero)

	v, ok := c.Get(Key{Op: OpMul, A: 3, B: 4})
	require.True(t, ok)
	require.Equal(t, uint64(12), v)

	v, ok = c.Get(Key{Op: OpDiv, A: 12, B: 3})
	require.True(t, ok)
	require.Equal(t, uint64(4), v)

	v, ok = c.Get(Key{Op: OpDiv, A: 12, B: 4})
	require.True(t, ok)
	require.Equal(t, uint64(3), v)
}

func TestCache_MulInversesSkippedOnZero(t *testing.T) {
	c := New(16, 1)
	isZero := func(h uint64) bool { return h == 0 }
	c.PutMulWithInverses(0, 4, 0, isZero)

	_, ok := c.Get(Key{Op: OpDiv, A: 0, B: 0})
	require.False(t, ok)
}

func TestCache_Clear(t *testing.T) {
	c := New(16, 1)
	c.Put(Key{Op: OpApply, A: 1}, 1)
	c.Clear()
	_, ok := c.Get(Key{Op: OpApply, A: 1})
	require.False(t, ok)
	stats := c.Stats()
	require.Equal(t, uint64(0), stats.Probes)
}

func TestCache_Granularity(t *testing.T) {
	c := New(16, 2)
	require.True(t, c.ShouldProbe(0))
	require.False(t, c.ShouldProbe(1))
	require.True(t, c.ShouldProbe(2))
}
