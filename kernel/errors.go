package kernel

import "errors"

var (
	// ErrStackTooSmall is reported by the stack planner when the
	// working region left after rounding and reservation cannot hold
	// the initial frame plus a minimum working stack. It is the one
	// recoverable failure in this package; everything else is a
	// caller-contract violation and panics.
	ErrStackTooSmall = errors.New("stack too small for an initial context")

	// ErrBadConfig is reported by New when the kernel configuration
	// cannot produce a working context core.
	ErrBadConfig = errors.New("bad kernel configuration")
)
