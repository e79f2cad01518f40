package arcv2

import "unsafe"

// Frame is the initial stack frame the context-restore path pops when
// a thread runs for the first time. R0 carries the thread's real entry
// point and R1 through R3 its three arguments; PC points at the entry
// stub that unpacks them. The frame is one-shot: once the thread has
// resumed, its storage is ordinary stack space again.
type Frame struct {
	PC       Word
	SecStat  SecStat // present in memory only on SecureShield cores
	Status32 Status32
	R3       Word
	R2       Word
	R1       Word
	R0       Word
}

// FrameLayout is the binary layout of Frame for one core variant. All
// offset arithmetic for the frame lives here; callers store and load
// whole frames and never touch individual words.
//
// The in-memory order, from the frame base upward, is
//
//	pc, sec_stat (SecureShield only), status32, r3, r2, r1, r0
//
// matching the pop order of the first context restore.
type FrameLayout struct {
	secure bool
}

const frameBaseWords = 6 // pc, status32, r3..r0

// Size is the frame size in bytes. It depends only on the core
// variant, never on per-thread options.
func (l FrameLayout) Size() uint32 {
	n := uint32(frameBaseWords)
	if l.secure {
		n++
	}
	return n * 4
}

func (l FrameLayout) Secure() bool {
	return l.secure
}

// Store writes every field of f at p in layout order. p must be word
// aligned and have Size bytes of backing memory.
func (l FrameLayout) Store(p unsafe.Pointer, f Frame) {
	off := storeWord(p, 0, f.PC)
	if l.secure {
		off = storeWord(p, off, Word(f.SecStat))
	}
	off = storeWord(p, off, Word(f.Status32))
	off = storeWord(p, off, f.R3)
	off = storeWord(p, off, f.R2)
	off = storeWord(p, off, f.R1)
	storeWord(p, off, f.R0)
}

// Load reads a frame back from p. On non-secure variants the SecStat
// field of the result is zero.
func (l FrameLayout) Load(p unsafe.Pointer) Frame {
	var f Frame
	f.PC = loadWord(p, 0)
	off := uintptr(4)
	if l.secure {
		f.SecStat = SecStat(loadWord(p, off))
		off += 4
	}
	f.Status32 = Status32(loadWord(p, off))
	f.R3 = loadWord(p, off+4)
	f.R2 = loadWord(p, off+8)
	f.R1 = loadWord(p, off+12)
	f.R0 = loadWord(p, off+16)
	return f
}

func storeWord(p unsafe.Pointer, off uintptr, w Word) uintptr {
	*(*Word)(unsafe.Add(p, off)) = w
	return off + 4
}

func loadWord(p unsafe.Pointer, off uintptr) Word {
	return *(*Word)(unsafe.Add(p, off))
}
