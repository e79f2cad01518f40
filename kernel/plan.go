package kernel

import (
	"errors"
	"fmt"

	"omibyte.io/kestrel/arc/arcv2"
)

// Partition is the split of one stack allocation into the regions the
// MPU driver and the context builder consume. It is derived state:
// the planner emits it, the builder writes its results into the
// thread control block, and nothing retains it afterwards.
//
// Stacks are full-descending, so each diagram below reads low address
// at the left. A kernel thread on a userspace-capable core gets the
// privileged allowance merged into its working stack, with the guard
// fencing overflow at the allocation base:
//
//	[ guard ][ working stack, privileged allowance included ]
//
// A user thread keeps the allowance out of reach above a guard, so
// exception entry has a stack the thread itself cannot touch and a
// privileged-stack overflow lands in the guard:
//
//	[ working stack ][ guard ][ privileged stack ]
type Partition struct {
	Guard   arcv2.Region
	Working arcv2.Region
	Priv    arcv2.Region
}

// Total is the size of the allocation the partition covers.
func (p Partition) Total() uint32 {
	return p.Guard.Size + p.Working.Size + p.Priv.Size
}

// PlanStackLayout partitions the allocation at base for a thread
// requesting size bytes of working stack. Guard and privileged
// reservations are added on top of the request, and on MPU-fenced
// configurations the total is rounded up to what the MPU can program;
// rounding slack enlarges the working region. base must already meet
// the architecture's stack alignment; that is a caller contract, not
// checked here.
//
// The planner is a pure function of its arguments. The one checked
// failure is ErrStackTooSmall: a working region that cannot hold the
// initial frame plus one callee-saved save area is unusable.
func PlanStackLayout(base arcv2.Addr, size uint32, user, protected bool, caps arcv2.Capabilities) (Partition, error) {
	var guard, priv uint32
	if protected {
		guard = caps.GuardSize
	}
	if caps.Userspace {
		priv = caps.PrivStackSize
	}

	total := size + guard + priv
	if caps.Rounding != arcv2.RoundNone && (user || guard+priv > 0) {
		total = caps.RoundRegion(total)
	}

	var p Partition
	if user {
		working := total - guard - priv
		p.Working = arcv2.Region{Base: base, Size: working}
		p.Guard = arcv2.Region{Base: p.Working.End(), Size: guard}
		p.Priv = arcv2.Region{Base: p.Guard.End(), Size: priv}
	} else {
		// The privileged allowance stays merged into the working
		// stack until the thread lowers its own privilege.
		p.Guard = arcv2.Region{Base: base, Size: guard}
		p.Working = arcv2.Region{Base: p.Guard.End(), Size: total - guard}
	}

	if min := caps.Frame().Size() + arcv2.CalleeSavedSize; p.Working.Size < min {
		return Partition{}, errors.Join(ErrStackTooSmall,
			fmt.Errorf("working region %d bytes, need at least %d", p.Working.Size, min))
	}
	return p, nil
}

// StackObjectSize is the allocation size a caller must supply for a
// thread requesting size bytes of working stack, overhead and
// rounding included. It mirrors the sizing the planner performs.
func StackObjectSize(size uint32, user, protected bool, caps arcv2.Capabilities) (uint32, error) {
	p, err := PlanStackLayout(0, size, user, protected, caps)
	if err != nil {
		return 0, err
	}
	return p.Total(), nil
}
