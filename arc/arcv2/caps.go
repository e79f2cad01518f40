package arcv2

import (
	"errors"
	"fmt"
)

var ErrInvalidCapabilities = errors.New("invalid capability descriptor")

// RoundPolicy selects how stack allocations are rounded to something
// the MPU can actually fence. Which policy applies is a property of
// the MPU generation and comes from the capability descriptor, never
// from inference at run time.
type RoundPolicy uint8

const (
	// RoundNone performs no rounding. Cores without an MPU.
	RoundNone RoundPolicy = iota
	// RoundPow2 rounds region sizes up to a power of two, with a
	// floor at the MPU's minimum region size. Older MPU generations.
	RoundPow2
	// RoundAlign rounds region sizes up to a fixed granularity.
	// Newer MPU generations with fine-grained regions.
	RoundAlign
)

func (p RoundPolicy) String() string {
	switch p {
	case RoundNone:
		return "none"
	case RoundPow2:
		return "pow2"
	case RoundAlign:
		return "align"
	}
	return fmt.Sprintf("policy(%d)", uint8(p))
}

// Capabilities describes one core configuration. It is resolved once
// at startup (normally from a target descriptor) and from then on the
// stack planner and context builder are pure functions of their
// inputs and this value.
type Capabilities struct {
	// StackAlign is the stack pointer alignment in bytes. Power of
	// two, at least 4.
	StackAlign uint32

	// Rounding and Granularity describe the MPU generation. For
	// RoundPow2, Granularity is the minimum region size; for
	// RoundAlign it is the rounding unit.
	Rounding    RoundPolicy
	Granularity uint32

	// GuardSize is the size of the MPU stack guard region. Zero when
	// the core cannot fence a guard.
	GuardSize uint32

	// PrivStackSize is the privileged stack allowance reserved inside
	// every stack allocation on cores that support user mode, so a
	// running kernel thread can later lower its privilege in place.
	PrivStackSize uint32

	// Userspace reports whether the core supports reduced-privilege
	// execution at all.
	Userspace bool

	// SecureWorld reports SecureShield support. It widens the initial
	// stack frame by the SEC_STAT snapshot word.
	SecureWorld bool

	// StackChecking reports hardware stack bounds checking. It drives
	// the SC bit in new threads' STATUS32.
	StackChecking bool

	// StackPoison fills fresh working stacks with a known byte so
	// high-water marks can be measured later.
	StackPoison bool

	// CoopPriorities is the number of cooperative priorities; they
	// occupy [-CoopPriorities, -1]. PreemptPriorities is the number
	// of preemptible priorities, occupying [0, PreemptPriorities-1].
	// PreemptPriorities itself is the idle priority.
	CoopPriorities    int
	PreemptPriorities int
}

// Validate reports whether the descriptor is internally consistent.
// An inconsistent descriptor is a build configuration error, so
// callers generally treat a failure here as fatal.
func (c Capabilities) Validate() error {
	var errs []error
	if c.StackAlign < 4 || !isPow2(c.StackAlign) {
		errs = append(errs, fmt.Errorf("stack alignment %d is not a power of two >= 4", c.StackAlign))
	}
	switch c.Rounding {
	case RoundNone:
		if c.Granularity != 0 {
			errs = append(errs, fmt.Errorf("granularity %d given without an MPU rounding policy", c.Granularity))
		}
	case RoundPow2, RoundAlign:
		if c.Granularity == 0 || !isPow2(c.Granularity) {
			errs = append(errs, fmt.Errorf("granularity %d is not a power of two", c.Granularity))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown rounding policy %d", c.Rounding))
	}
	if c.StackAlign != 0 && c.GuardSize%c.StackAlign != 0 {
		errs = append(errs, fmt.Errorf("guard size %d is not a multiple of the stack alignment", c.GuardSize))
	}
	if c.Userspace {
		if c.PrivStackSize == 0 {
			errs = append(errs, errors.New("user mode requires a privileged stack allowance"))
		}
		if c.Rounding == RoundNone {
			errs = append(errs, errors.New("user mode requires an MPU rounding policy"))
		}
	}
	if c.StackAlign != 0 && c.PrivStackSize%c.StackAlign != 0 {
		errs = append(errs, fmt.Errorf("privileged stack allowance %d is not a multiple of the stack alignment", c.PrivStackSize))
	}
	if c.CoopPriorities < 0 || c.PreemptPriorities < 1 {
		errs = append(errs, errors.New("at least one preemptible priority is required"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidCapabilities}, errs...)...)
	}
	return nil
}

// RoundRegion rounds a size up to what the MPU can fence.
func (c Capabilities) RoundRegion(size uint32) uint32 {
	switch c.Rounding {
	case RoundPow2:
		if size < c.Granularity {
			return c.Granularity
		}
		return Pow2Ceil(size)
	case RoundAlign:
		return AlignUp(size, c.Granularity)
	}
	return size
}

// Frame returns the initial stack frame layout for this core variant.
func (c Capabilities) Frame() FrameLayout {
	return FrameLayout{secure: c.SecureWorld}
}

// IdlePriority is the one priority below every application thread,
// reserved for the idle entry point.
func (c Capabilities) IdlePriority() int {
	return c.PreemptPriorities
}

// LowestAppPriority and HighestAppPriority bound the range ordinary
// threads may use. Numerically lower is more urgent.
func (c Capabilities) LowestAppPriority() int {
	return c.PreemptPriorities - 1
}

func (c Capabilities) HighestAppPriority() int {
	return -c.CoopPriorities
}

func isPow2(n uint32) bool {
	return n != 0 && n&(n-1) == 0
}
