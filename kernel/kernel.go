// Package kernel builds the initial register context of new threads
// and performs the one-way drop from kernel to user privilege. It
// computes where things go inside a caller-supplied stack allocation
// and writes the one frame the first context restore pops; it never
// allocates, blocks, or retains state beyond the thread control
// block.
package kernel

import (
	"fmt"
	"unsafe"

	"omibyte.io/kestrel/arc/arcv2"
)

// Port is the architecture-specific machinery the context core calls
// into. A real port backs these with the entry stubs and privileged
// instructions of the target; hosted ports fake them for tests and
// tooling.
type Port interface {
	// KernelEntryVector and UserEntryVector are the addresses of the
	// first-entry stubs. Each unpacks the frame's argument registers
	// and calls the thread body at the matching privilege; resuming a
	// thread through the wrong one is undefined.
	KernelEntryVector() arcv2.Word
	UserEntryVector() arcv2.Word

	// SecureStatus reads the creator's SEC_STAT register. Only
	// consulted on SecureShield cores.
	SecureStatus() arcv2.SecStat

	// LockInterrupts raises the interrupt threshold and returns the
	// key UnlockInterrupts restores it from.
	LockInterrupts() arcv2.Word
	UnlockInterrupts(key arcv2.Word)

	// EnterUserspace lowers the calling thread's privilege and
	// resumes it at entry on the given stack. On hardware it does not
	// return; a hosted port may return nil to hand control back. A
	// non-nil error means the transition failed partway and the
	// system cannot continue.
	EnterUserspace(entry arcv2.Word, args [3]arcv2.Word, stack arcv2.Region) error
}

// MPU programs protection regions. Base and size of every region
// handed to it come pre-rounded by the stack planner.
type MPU interface {
	ProgramStackGuard(r arcv2.Region) error
	ProgramUserStack(r arcv2.Region) error
}

// Monitor is notified of new threads. Informational only; no result
// is consulted.
type Monitor interface {
	ThreadCreated(t *Thread)
}

// Config assembles a Kernel. Monitor may be nil; MPU may be nil only
// when the capability descriptor fences nothing.
type Config struct {
	Capabilities arcv2.Capabilities
	Port         Port
	MPU          MPU
	Monitor      Monitor

	// IdleEntry is the one entry point allowed to run at the idle
	// priority.
	IdleEntry arcv2.Word
}

// Kernel is the context-initialization core for one resolved core
// configuration. Planner and builder behavior is a pure function of
// the capability descriptor and per-call inputs; the Kernel itself
// holds no per-thread state.
type Kernel struct {
	caps      arcv2.Capabilities
	port      Port
	mpu       MPU
	monitor   Monitor
	idleEntry arcv2.Word
}

func New(cfg Config) (*Kernel, error) {
	if err := cfg.Capabilities.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadConfig, err)
	}
	if cfg.Port == nil {
		return nil, fmt.Errorf("%w: no port", ErrBadConfig)
	}
	if cfg.MPU == nil && (cfg.Capabilities.Userspace || cfg.Capabilities.GuardSize > 0) {
		return nil, fmt.Errorf("%w: capability descriptor fences stacks but no MPU was given", ErrBadConfig)
	}
	return &Kernel{
		caps:      cfg.Capabilities,
		port:      cfg.Port,
		mpu:       cfg.MPU,
		monitor:   cfg.Monitor,
		idleEntry: cfg.IdleEntry,
	}, nil
}

// Capabilities returns the descriptor the kernel was configured with.
func (k *Kernel) Capabilities() arcv2.Capabilities {
	return k.caps
}

// stackPoison is the fill byte for fresh working stacks, chosen so
// high-water marks stand out in a dump.
const stackPoison = 0xAA

// NewThread initializes t to run entry(args) at the given priority on
// the supplied stack allocation. size is the requested working-stack
// size; stack must be at least StackObjectSize(size, ...) long so the
// guard, privileged reservation and rounding fit. On return the
// initial frame is written, t is ready for the scheduler, and the
// first context restore will begin the thread inside the matching
// entry stub.
//
// The checked failure is an undersized request (ErrStackTooSmall), in
// which case t is untouched. A nil entry, an out-of-range priority or
// an allocation that breaks the caller contract is a configuration
// bug the kernel cannot continue past, and panics.
func (k *Kernel) NewThread(t *Thread, stack []byte, size uint32, entry arcv2.Word, args [3]arcv2.Word, priority int, opts Options) error {
	if entry == 0 {
		panic("kernel: new thread with nil entry point")
	}
	user := opts&User != 0
	if user && !k.caps.Userspace {
		panic("kernel: user thread on a core without userspace support")
	}
	k.checkPriority(entry, priority, user)

	if len(stack) == 0 {
		panic("kernel: new thread with no stack")
	}
	base := arcv2.Addr(unsafe.Pointer(&stack[0]))
	if base != arcv2.AlignDown(base, k.caps.StackAlign) {
		panic(fmt.Sprintf("kernel: stack base %#x breaks the %d-byte stack alignment", uintptr(base), k.caps.StackAlign))
	}

	part, err := PlanStackLayout(base, size, user, k.protected(), k.caps)
	if err != nil {
		return err
	}
	if total := part.Total(); total > uint32(len(stack)) {
		panic(fmt.Sprintf("kernel: stack allocation is %d bytes, layout needs %d", len(stack), total))
	}

	if k.caps.StackPoison {
		poison(part.Working)
	}

	layout := k.caps.Frame()
	frameAddr := arcv2.AlignDown(part.Working.End(), k.caps.StackAlign) - arcv2.Addr(layout.Size())

	var frame arcv2.Frame
	if user {
		frame.PC = k.port.UserEntryVector()
	} else {
		frame.PC = k.port.KernelEntryVector()
	}
	if k.caps.SecureWorld {
		// The new thread starts in its creator's secure world.
		frame.SecStat = k.port.SecureStatus()
	}
	frame.R0 = entry
	frame.R1 = args[0]
	frame.R2 = args[1]
	frame.R3 = args[2]

	// Interrupts stay disabled in the frame; the seti ending the
	// first switch-in re-enables them from the intlock key.
	frame.Status32.SetE(arcv2.DefaultIRQPriority)
	if k.caps.StackChecking {
		frame.Status32.SetSC(true)
	}
	if k.caps.Userspace {
		// US reads as zero in user mode; setting it for every thread
		// lets user code use sleep instructions.
		frame.Status32.SetUS(true)
	}

	framePtr := unsafe.Pointer(uintptr(frameAddr))
	layout.Store(framePtr, frame)

	t.stackObj = arcv2.Region{Base: base, Size: part.Total()}
	t.StackInfo = part.Working
	t.SavedSP = frameAddr - arcv2.CalleeSavedSize
	t.PrivStack = part.Priv
	if k.caps.StackChecking {
		t.StackCheckBase = part.Working.End()
	}
	t.IntlockKey = arcv2.IntlockKeyDefault
	t.Relinquish = arcv2.CauseCoop
	t.Priority = priority
	t.Options = opts
	if user {
		t.privilege = PrivilegeUser
	} else {
		t.privilege = PrivilegeKernel
	}
	t.entryFrame = nil
	if k.monitor != nil {
		t.entryFrame = framePtr
		k.monitor.ThreadCreated(t)
	}
	return nil
}

// EnterUserMode drops the calling thread to user privilege and
// resumes it at entry(args), never to run privileged again. The
// thread's existing allocation is re-partitioned in place so the
// merged privileged allowance becomes its exception stack, the MPU is
// programmed with the new regions, and only then does the port lower
// the privilege; interrupts are locked across that window so nothing
// runs under a half-switched configuration.
//
// On hardware the call does not return. A hosted port may hand
// control back after a successful transition, in which case t
// reflects the post-transition state. Any failure after the
// re-partition has begun is unrecoverable and panics.
func (k *Kernel) EnterUserMode(t *Thread, entry arcv2.Word, args [3]arcv2.Word) {
	if !k.caps.Userspace {
		panic("kernel: user mode transition on a core without userspace support")
	}
	if t.privilege != PrivilegeKernel {
		panic("kernel: thread is already running in user mode")
	}
	if entry == 0 {
		panic("kernel: user mode transition with nil entry point")
	}

	t.privilege = PrivilegeUser
	t.Options |= User
	t.entryFrame = nil

	// Re-partition in place: the guard moves from the allocation base
	// to below the vacated allowance, leaving the creation-time user
	// layout [working][guard][priv].
	guard := uint32(t.StackInfo.Base - t.stackObj.Base)
	t.StackInfo = arcv2.Region{
		Base: t.stackObj.Base,
		Size: t.StackInfo.Size - k.caps.PrivStackSize,
	}
	t.PrivStack = arcv2.Region{
		Base: t.StackInfo.End() + arcv2.Addr(guard),
		Size: k.caps.PrivStackSize,
	}
	if k.caps.StackChecking {
		t.StackCheckBase = t.StackInfo.End()
	}

	key := k.port.LockInterrupts()
	if guard > 0 {
		if err := k.mpu.ProgramStackGuard(arcv2.Region{Base: t.StackInfo.End(), Size: guard}); err != nil {
			panic(fmt.Sprintf("kernel: stack guard programming failed mid-transition: %v", err))
		}
	}
	if err := k.mpu.ProgramUserStack(t.StackInfo); err != nil {
		panic(fmt.Sprintf("kernel: user stack programming failed mid-transition: %v", err))
	}
	if err := k.port.EnterUserspace(entry, args, t.StackInfo); err != nil {
		panic(fmt.Sprintf("kernel: userspace enter failed: %v", err))
	}

	// Only a hosted port gets here.
	k.port.UnlockInterrupts(key)
}

func (k *Kernel) protected() bool {
	return k.caps.GuardSize > 0
}

// checkPriority enforces the legal priority range for an entry point.
// Violations are caller bugs: a thread the scheduler cannot place is
// unschedulable, so creation must not proceed.
func (k *Kernel) checkPriority(entry arcv2.Word, priority int, user bool) {
	if priority == k.caps.IdlePriority() && entry == k.idleEntry && entry != 0 {
		return
	}
	low, high := k.caps.LowestAppPriority(), k.caps.HighestAppPriority()
	if user {
		// User threads may not hold cooperative priorities.
		high = 0
	}
	if priority < high || priority > low {
		panic(fmt.Sprintf("kernel: priority %d outside the legal range [%d, %d]", priority, high, low))
	}
}

func poison(r arcv2.Region) {
	b := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(r.Base))), r.Size)
	for i := range b {
		b[i] = stackPoison
	}
}
