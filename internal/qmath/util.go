package qmath

import (
	"github.com/itsubaki/q"
)

type QRand struct {
	*q.Q
}

//var qrand = &QRand{q.New()}

func (qrand QRand) RandomBit() int64 {
	q0 := qrand.Zero()
	qrand.H(q0)
	m0 := qrand.Measure(q0)
	return m0.Int()
}

// RandomSeed draws 63 independent random bits the same way RandomBit
// does (fresh qubit, Hadamard, measure) and packs them into a
// non-negative int64, suitable as a math/rand seed for callers that want
// a fresh seed per process rather than a fixed one.
func (qrand QRand) RandomSeed() int64 {
	var seed int64
	for i := 0; i < 63; i++ {
		seed = seed<<1 | qrand.RandomBit()
	}
	return seed
}
