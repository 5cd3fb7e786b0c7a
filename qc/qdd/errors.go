package qdd

import "fmt"

// Public error sentinels, following qc/dag/errors.go's style: simple
// conditions are package-level fmt.Errorf values; conditions that carry
// data are typed structs (qc/gate.ErrUnknownGate's pattern).
var (
	// ErrTableFull is returned by find_or_put on the weight store or node
	// table when the load factor is exceeded. Recoverable: the caller
	// triggers GC and retries once.
	ErrTableFull = fmt.Errorf("qdd: table full")

	// ErrInvariantViolation is returned by self-test mode when a
	// canonicity or unitarity check fails. Treated as fatal by callers
	// that enabled self-test.
	ErrInvariantViolation = fmt.Errorf("qdd: invariant violation")

	// ErrBadQubitIndex is rejected at the public boundary.
	ErrBadQubitIndex = fmt.Errorf("qdd: qubit index out of range")

	// ErrShutdown is returned by any engine operation invoked after
	// Shutdown().
	ErrShutdown = fmt.Errorf("qdd: engine has been shut down")
)

// ErrUnknownGate is returned when a gate id does not resolve to a
// catalogue entry or dynamic-ring slot. Parser-side per spec.md sec7; the
// engine returns it rather than panicking so callers can surface a no-op.
type ErrUnknownGate struct{ GateID int }

func (e ErrUnknownGate) Error() string { return fmt.Sprintf("qdd: unknown gate id %d", e.GateID) }

// ErrPrecisionLoss reports a non-fatal numerical failure. MeasureQubit
// returns it when the sampled outcome's probability is below the
// configured tolerance, and then returns no post-measurement state (nil),
// only the error.
type ErrPrecisionLoss struct{ Detail string }

func (e ErrPrecisionLoss) Error() string { return "qdd: precision loss: " + e.Detail }
