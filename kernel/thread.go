package kernel

import (
	"unsafe"

	"omibyte.io/kestrel/arc/arcv2"
)

// Options is the thread option bitset supplied at creation.
type Options uint32

const (
	// User requests a reduced-privilege thread. The working stack is
	// fenced by the MPU and a privileged stack is reserved above it
	// for exception entry.
	User Options = 1 << iota

	// Essential marks a thread the system cannot run without. The
	// context core carries the bit through to the thread control
	// block; acting on it is the scheduler's business.
	Essential
)

// Privilege is a thread's privilege level. The only transition is
// PrivilegeKernel to PrivilegeUser, performed by EnterUserMode; there
// is no operation that restores kernel privilege.
type Privilege uint8

const (
	PrivilegeKernel Privilege = iota
	PrivilegeUser
)

func (p Privilege) String() string {
	if p == PrivilegeUser {
		return "user"
	}
	return "kernel"
}

// Thread is the subset of a thread control block this package owns.
// The scheduler and context-switch path own the rest; of the fields
// here, SavedSP passes to the context-switch path once the thread is
// runnable and is never written by this package again.
type Thread struct {
	// StackInfo is the region the thread may execute on. For a
	// protected thread it is also the region the MPU fences.
	StackInfo arcv2.Region

	// SavedSP is the address the first context switch restores the
	// stack pointer from. It sits one callee-saved save area below
	// the initial frame.
	SavedSP arcv2.Addr

	// PrivStack is the exception stack of a user thread. Zero for
	// kernel threads.
	PrivStack arcv2.Region

	// StackCheckBase is the fence the hardware stack checker is
	// programmed with, on cores that have one. It is the numeric top
	// of the working region.
	StackCheckBase arcv2.Addr

	// IntlockKey seeds the seti at the end of the first switch-in,
	// encoded the way CLRI writes it. New threads start with
	// interrupts enabled at the default threshold.
	IntlockKey arcv2.Word

	// Relinquish records which restore sequence the switch-in uses.
	// New threads restore like a cooperative switch.
	Relinquish arcv2.RelinquishCause

	Priority int
	Options  Options

	// entryFrame points at the initial frame so monitoring tooling
	// can read the entry point and arguments back. Set only when the
	// kernel has a monitor; read-only after creation.
	entryFrame unsafe.Pointer

	// stackObj is the full allocation StackInfo was carved from,
	// kept so EnterUserMode can re-partition it in place.
	stackObj arcv2.Region

	privilege Privilege
}

// Privilege reports the thread's current privilege level.
func (t *Thread) Privilege() Privilege {
	return t.privilege
}

// EntryInfo reads back the entry point and arguments from the
// thread's initial frame. It reports false when the kernel has no
// monitor or after a privilege transition, and must not be called
// once the thread has run: the frame's storage is stack space again.
func (t *Thread) EntryInfo(layout arcv2.FrameLayout) (entry arcv2.Word, args [3]arcv2.Word, ok bool) {
	if t.entryFrame == nil {
		return 0, [3]arcv2.Word{}, false
	}
	f := layout.Load(t.entryFrame)
	return f.R0, [3]arcv2.Word{f.R1, f.R2, f.R3}, true
}
