// Package weight implements component A of the QDD engine: the
// edge-weight interning table. Complex amplitudes are canonicalised under
// an epsilon-tolerance equivalence and handed out as stable 64-bit
// handles so that two semantically-equal values always compare equal by
// handle, not by floating-point comparison.
package weight

import (
	"math"
	"sync/atomic"

	"github.com/kegliz/qplay/qc/qdd"
)

// Value is a double-precision complex amplitude component pair.
type Value struct {
	Re, Im float64
}

// Add, Sub, Mul, Div, Neg, Abs implement plain complex arithmetic on
// values; component E (engine/arith.go) calls these on the slow path
// after a cache miss.
func (v Value) Add(o Value) Value { return Value{v.Re + o.Re, v.Im + o.Im} }
func (v Value) Sub(o Value) Value { return Value{v.Re - o.Re, v.Im - o.Im} }
func (v Value) Mul(o Value) Value {
	return Value{v.Re*o.Re - v.Im*o.Im, v.Re*o.Im + v.Im*o.Re}
}
func (v Value) Div(o Value) Value {
	d := o.Re*o.Re + o.Im*o.Im
	if d == 0 {
		return Value{math.Inf(1), math.Inf(1)}
	}
	return Value{(v.Re*o.Re + v.Im*o.Im) / d, (v.Im*o.Re - v.Re*o.Im) / d}
}
func (v Value) Neg() Value       { return Value{-v.Re, -v.Im} }
func (v Value) Abs() float64     { return math.Hypot(v.Re, v.Im) }
func (v Value) AbsSq() float64   { return v.Re*v.Re + v.Im*v.Im }
func (v Value) IsZero(tau float64) bool {
	return math.Abs(v.Re) < tau && math.Abs(v.Im) < tau
}

// Backend selects the intern-table implementation bound at Init
// (spec.md sec4.1 / sec6 "weight_backend").
type Backend string

const (
	ComplexMap   Backend = "complex-map"
	RealTupleMap Backend = "real-tuple-map"
	RealTreeMap  Backend = "real-tree"
)

// Stats exposes per-backend counters (sec13 supplemented feature,
// grounded on original_source's wgt_storage_interface.c lookup counters).
type Stats struct {
	Lookups uint64
	Hits    uint64
	Misses  uint64
}

// Store is the capability set every weight backend must implement
// (spec.md sec4.1, sec9 "dynamic dispatch over weight backend"). All
// methods must be safe for concurrent readers; FindOrPut must be
// linearisable among concurrent writers.
type Store interface {
	FindOrPut(v Value) (qdd.WeightHandle, bool, error)
	Get(h qdd.WeightHandle) (Value, bool)
	Count() int
	Tolerance() float64
	Stats() Stats
	Free()
}

// New constructs the requested backend with capacity slots and the given
// tolerance, pre-binding the three reserved handles (WZero, WOne,
// WMinusOne) first so their numeric value survives GC rebuilds verbatim.
func New(backend Backend, capacity int, tolerance float64) (Store, error) {
	switch backend {
	case ComplexMap, "":
		return newComplexMap(capacity, tolerance), nil
	case RealTupleMap:
		return newRealTupleMap(capacity, tolerance), nil
	case RealTreeMap:
		return newRealTreeMap(capacity, tolerance), nil
	default:
		return nil, &ErrUnknownBackend{Backend: backend}
	}
}

// ErrUnknownBackend is returned by New for an unrecognised backend name.
type ErrUnknownBackend struct{ Backend Backend }

func (e *ErrUnknownBackend) Error() string { return "weight: unknown backend " + string(e.Backend) }

// quantise maps a float to an integer bucket at resolution tau, used by
// every backend to build a hashable/orderable key for the epsilon
// equivalence classes (spec.md sec3 "two values are equal iff both
// components differ by less than tolerance").
func quantise(f, tau float64) int64 {
	if tau <= 0 {
		tau = 1e-14
	}
	return int64(math.Round(f / tau))
}

// nextSeq is shared across backend instances purely to give GC-rebuilt
// stores distinguishable debug sequence numbers; it has no bearing on
// handle values.
var nextSeq uint64

func newSeq() uint64 { return atomic.AddUint64(&nextSeq, 1) }
