package arcv2

// Status32 is the ARCv2 STATUS32 word as written into an initial
// stack frame. Only the fields the kernel constructs are broken out;
// the rest of the word is left zero for a fresh thread.
type Status32 Word

const (
	statusH  Status32 = 0x1 << 0  // halt
	statusU  Status32 = 0x1 << 7  // user mode
	statusSC Status32 = 0x1 << 14 // stack checking enable
	statusUS Status32 = 0x1 << 20 // user-mode sleep enable
	statusIE Status32 = 0x1 << 31 // interrupt enable

	statusEShift = 1
	statusEMask  = 0xF << statusEShift // E[3:0], interrupt priority threshold
)

func (s *Status32) SetH(enable bool) {
	s.set(statusH, enable)
}

func (s Status32) GetH() bool {
	return s&statusH != 0
}

// SetU marks the word as user mode. The kernel never sets this in an
// initial frame; the drop to user mode happens in the entry stub, not
// in the restored STATUS32.
func (s *Status32) SetU(enable bool) {
	s.set(statusU, enable)
}

func (s Status32) GetU() bool {
	return s&statusU != 0
}

func (s *Status32) SetSC(enable bool) {
	s.set(statusSC, enable)
}

func (s Status32) GetSC() bool {
	return s&statusSC != 0
}

func (s *Status32) SetUS(enable bool) {
	s.set(statusUS, enable)
}

func (s Status32) GetUS() bool {
	return s&statusUS != 0
}

func (s *Status32) SetIE(enable bool) {
	s.set(statusIE, enable)
}

func (s Status32) GetIE() bool {
	return s&statusIE != 0
}

// SetE programs the interrupt priority threshold field. Levels above
// 15 do not exist on ARCv2 and are masked off.
func (s *Status32) SetE(level uint8) {
	*s = (*s &^ statusEMask) | (Status32(level)<<statusEShift)&statusEMask
}

func (s Status32) GetE() uint8 {
	return uint8((s & statusEMask) >> statusEShift)
}

func (s *Status32) set(bit Status32, enable bool) {
	if enable {
		*s |= bit
	} else {
		*s &^= bit
	}
}
