// Package arcv2 holds the ARCv2 register and memory conventions the
// kernel depends on: machine word and address types, the STATUS32
// word, the initial stack frame layout consumed by the context-restore
// path, and the capability descriptor that selects between core
// variants (MPU generation, SecureShield, stack checking).
//
// Stacks are full-descending. A region's Base is its lowest address
// and the stack pointer moves from End toward Base as frames push.
package arcv2

// Word is a 32-bit machine word as held in a register or stored on a
// thread stack.
type Word uint32

// Addr is an address in the target address space. On real hardware it
// is 32 bits wide; hosted builds use the platform pointer width so
// buffers allocated by the Go runtime can stand in for target memory.
type Addr uintptr

// Region is a contiguous address range [Base, Base+Size).
type Region struct {
	Base Addr
	Size uint32
}

func (r Region) End() Addr {
	return r.Base + Addr(r.Size)
}

func (r Region) Empty() bool {
	return r.Size == 0
}

func (r Region) Contains(a Addr) bool {
	return a >= r.Base && a < r.End()
}

func (r Region) Overlaps(o Region) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.Base < o.End() && o.Base < r.End()
}

// AlignDown rounds a down to the given power-of-two alignment.
func AlignDown(a Addr, align uint32) Addr {
	return a &^ Addr(align-1)
}

// AlignUp rounds n up to the given power-of-two alignment.
func AlignUp(n, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}

// Pow2Ceil returns the smallest power of two that is >= n.
func Pow2Ceil(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

// CalleeSavedSize is the size in bytes of the callee-saved save area a
// context switch pushes below a thread's last frame: r13 through r25,
// gp, fp and r30, sixteen words in all. The initial stack pointer of a
// new thread is recorded this far below its entry frame so the first
// switch out has room to push without clobbering the frame.
const CalleeSavedSize = 16 * 4

// DefaultIRQPriority is the interrupt priority threshold programmed
// into a new thread's STATUS32 E field. Interrupts stay disabled in
// the frame itself; the context-restore path re-enables them from the
// thread's intlock key.
const DefaultIRQPriority = 15

// IntlockKeyDefault is the interrupt lock key a new thread starts
// with, encoded the way CLRI writes its destination register:
// bit 5 set, bit 4 the saved STATUS32.IE, bits 3:0 the saved E field.
// 0x3F therefore means "interrupts were enabled at threshold 15".
const IntlockKeyDefault Word = 0x3F

// RelinquishCause records how a thread last gave up the CPU, which
// selects the matching restore sequence on the way back in.
type RelinquishCause uint32

const (
	CauseCoop RelinquishCause = iota // cooperative switch, callee-saved frame
	CauseRIRQ                        // regular interrupt
	CauseFIRQ                        // fast interrupt
)

// SecStat is a snapshot of the SEC_STAT auxiliary register on cores
// with SecureShield. A new thread inherits its creator's snapshot so
// it starts in the same secure world. The value is opaque to the
// kernel and replayed verbatim by the context-restore path.
type SecStat Word
