package gekko

import "math"

// State is the guest CPU state read and written by translated code.
//
// Translated code addresses the fields through the offsets below, so the field order must not change
// without updating them.
type State struct {
	// PS holds the 32 paired-single floating-point registers. Lane 0 (ps0) is the value used by
	// double-precision instructions; single-precision results are duplicated into lane 1 (ps1).
	PS [32][2]uint64
	// CR holds the eight condition register fields in their internal representation. See ToInternal.
	CR [8]uint64
	// PC is the address of the next instruction to execute.
	PC uint32
	// FPSCR is the floating-point status and control register.
	FPSCR uint32
}

// Native code manipulates the State's fields with these constants.
const (
	StatePSOffset    = 0
	StateCROffset    = 512
	StatePCOffset    = 576
	StateFPSCROffset = 580
	StateSize        = 584
)

// PSOffset returns the offset of the paired register i within State.
func PSOffset(i int) int64 {
	return StatePSOffset + int64(i)*16
}

// CROffset returns the offset of the condition register field i within State.
func CROffset(i int) int64 {
	return StateCROffset + int64(i)*8
}

// PS0 returns lane 0 of the paired register i as a float64.
func (s *State) PS0(i int) float64 { return math.Float64frombits(s.PS[i][0]) }

// PS1 returns lane 1 of the paired register i as a float64.
func (s *State) PS1(i int) float64 { return math.Float64frombits(s.PS[i][1]) }

// SetPS sets both lanes of the paired register i.
func (s *State) SetPS(i int, ps0, ps1 float64) {
	s.PS[i][0], s.PS[i][1] = math.Float64bits(ps0), math.Float64bits(ps1)
}

// CRField returns the public 4-bit value (LT|GT|EQ|SO) of the condition register field i.
func (s *State) CRField(i int) uint8 {
	return FromInternal(s.CR[i])
}

// SetCRField stores the public 4-bit value of the condition register field i.
func (s *State) SetCRField(i int, bits uint8) {
	s.CR[i] = ToInternal(bits)
}
