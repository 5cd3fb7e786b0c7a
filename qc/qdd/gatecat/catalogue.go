// Package gatecat implements component I: the fixed catalogue of 2x2
// unitaries indexed by a stable integer gate-id, plus the bounded ring of
// dynamic (parameterised) gate slots used for Rx/Ry/Rz rotations.
package gatecat

import (
	"math"
	"sync"

	"github.com/kegliz/qplay/qc/qdd"
	"github.com/kegliz/qplay/qc/qdd/weight"
)

// GateID is the stable integer identifying a unitary (spec.md sec6).
type GateID int

// Static gate ids. I through SqrtY match spec.md sec6's stable constants
// verbatim (I=0 ... sqrtY=9). Sdag and the Rk/Rk-dagger family are named
// by sec4.9's catalogue text but sec6's "stable constants" enumeration
// stops at sqrtY=9 without reserving a slot for Sdag; it therefore takes
// the next id immediately above the sec6 list, and the Rk family follows.
const (
	I GateID = iota
	X
	Y
	Z
	H
	S
	T
	Tdag
	SqrtX
	SqrtY
	Sdag
	rkRangeStart
)

// maxRkK bounds how many distinct Rk/Rk-dagger depths get a static id.
// The dynamic ring holds only Rx/Ry/Rz entries; there is no dynamic Rk
// kind.
const maxRkK = 32

// Rk returns the id of the k-th root of Z, Rk_dag the id of its adjoint.
func Rk(k int) GateID    { return rkRangeStart + GateID(2*k) }
func RkDag(k int) GateID { return rkRangeStart + GateID(2*k+1) }

// dynamicRingStart is the first id available to dynamic Rx/Ry/Rz gates.
const dynamicRingStart = rkRangeStart + GateID(2*maxRkK)

// DynamicKind selects which parameterised family a dynamic gate belongs
// to.
type DynamicKind int

const (
	DynRx DynamicKind = iota
	DynRy
	DynRz
)

// Entry is a gate's four interned matrix-element weight handles, stored
// row-major: [M00, M01, M10, M11].
type Entry [4]qdd.WeightHandle

// Interner is the minimal capability the catalogue needs to turn raw
// complex matrix elements into weight handles.
type Interner interface {
	Intern(v weight.Value) (qdd.WeightHandle, error)
}

// Catalogue holds every interned static entry plus the dynamic ring.
// Concurrency: static entries are write-once at construction and never
// mutated; the dynamic ring is guarded by a mutex since AddDynamic both
// reads and advances ring state.
type Catalogue struct {
	static map[GateID]Entry

	mu       sync.Mutex
	ringSize int
	ringPos  int
	dynamic  map[GateID]Entry
	nextID   GateID
}

// New builds the static catalogue (I, X, Y, Z, H, S, Sdag, T, Tdag,
// sqrtX, sqrtY, and Rk/Rk-dagger up to maxRkK) by interning each matrix's
// four entries through ops, and reserves ringSize dynamic slots above
// them.
func New(ops Interner, ringSize int) (*Catalogue, error) {
	if ringSize <= 0 {
		ringSize = 4096
	}
	c := &Catalogue{
		static:   make(map[GateID]Entry),
		ringSize: ringSize,
		dynamic:  make(map[GateID]Entry, ringSize),
		nextID:   dynamicRingStart,
	}
	if err := c.seedStatic(ops); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalogue) intern(ops Interner, m [4]complex128) (Entry, error) {
	var e Entry
	for i, v := range m {
		h, err := ops.Intern(weight.Value{Re: real(v), Im: imag(v)})
		if err != nil {
			return Entry{}, err
		}
		e[i] = h
	}
	return e, nil
}

func (c *Catalogue) seedStatic(ops Interner) error {
	inv2 := 1 / math.Sqrt2
	matrices := map[GateID][4]complex128{
		I:     {1, 0, 0, 1},
		X:     {0, 1, 1, 0},
		Y:     {0, complex(0, -1), complex(0, 1), 0},
		Z:     {1, 0, 0, -1},
		H:     {complex(inv2, 0), complex(inv2, 0), complex(inv2, 0), complex(-inv2, 0)},
		S:     {1, 0, 0, complex(0, 1)},
		Sdag:  {1, 0, 0, complex(0, -1)},
		T:     {1, 0, 0, cmplxExp(math.Pi / 4)},
		Tdag:  {1, 0, 0, cmplxExp(-math.Pi / 4)},
		SqrtX: sqrtXMatrix(),
		SqrtY: sqrtYMatrix(),
	}
	for id, m := range matrices {
		e, err := c.intern(ops, m)
		if err != nil {
			return err
		}
		c.static[id] = e
	}
	for k := 0; k < maxRkK; k++ {
		phase := math.Pi / math.Pow(2, float64(k))
		rk := [4]complex128{1, 0, 0, cmplxExp(phase)}
		rkDag := [4]complex128{1, 0, 0, cmplxExp(-phase)}
		e, err := c.intern(ops, rk)
		if err != nil {
			return err
		}
		c.static[Rk(k)] = e
		e, err = c.intern(ops, rkDag)
		if err != nil {
			return err
		}
		c.static[RkDag(k)] = e
	}
	return nil
}

func cmplxExp(theta float64) complex128 { return complex(math.Cos(theta), math.Sin(theta)) }

func sqrtXMatrix() [4]complex128 {
	half := complex(0.5, 0.5)
	halfConj := complex(0.5, -0.5)
	return [4]complex128{half, halfConj, halfConj, half}
}

func sqrtYMatrix() [4]complex128 {
	half := complex(0.5, 0.5)
	return [4]complex128{half, complex(-0.5, -0.5), complex(0.5, 0.5), half}
}

// Lookup resolves any gate id, static or dynamic, to its matrix entry.
func (c *Catalogue) Lookup(id GateID) (Entry, bool) {
	if id < dynamicRingStart {
		e, ok := c.static[id]
		return e, ok
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.dynamic[id]
	return e, ok
}

// AddDynamic interns a parameterised rotation's matrix elements and
// consumes the next ring slot, returning its id and whether inserting it
// wrapped the ring (in which case the caller must clear the op-cache,
// spec.md sec4.9: "stale gate ids would yield incorrect memoised
// results").
func (c *Catalogue) AddDynamic(ops Interner, kind DynamicKind, theta float64) (GateID, bool, error) {
	m := dynamicMatrix(kind, theta)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.intern(ops, m)
	if err != nil {
		return 0, false, err
	}

	id := dynamicRingStart + GateID(c.ringPos)
	_, wrapped := c.dynamic[id] // reusing an occupied slot means the ring wrapped
	delete(c.dynamic, id)       // evict whatever previously lived at this slot
	c.dynamic[id] = e
	c.ringPos++
	if c.ringPos >= c.ringSize {
		c.ringPos = 0
	}
	return id, wrapped, nil
}

func dynamicMatrix(kind DynamicKind, theta float64) [4]complex128 {
	cos := complex(math.Cos(theta/2), 0)
	sin := complex(math.Sin(theta/2), 0)
	switch kind {
	case DynRx:
		return [4]complex128{cos, complex(0, -1) * sin, complex(0, -1) * sin, cos}
	case DynRy:
		return [4]complex128{cos, -sin, sin, cos}
	case DynRz:
		return [4]complex128{cmplxExp(-theta / 2), 0, 0, cmplxExp(theta / 2)}
	default:
		return [4]complex128{1, 0, 0, 1}
	}
}
