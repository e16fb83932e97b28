// Package gekko describes the guest side of the translator: the instruction word layout, the CPU state
// shared with translated code and the condition register representation.
package gekko

import "fmt"

// Instruction is a decoded view over one 32-bit guest instruction word.
//
// Field accessors follow the PowerPC bit numbering, where bit 0 is the most significant bit.
// For example, OPCD is bits 0-5 and Rc is bit 31.
type Instruction uint32

// Primary opcodes of the floating-point instruction groups.
const (
	// OpcodeSingle holds the single-precision A-form instructions (fadds, fmadds, ...).
	OpcodeSingle uint32 = 59
	// OpcodeDouble holds the double-precision A-form and the X-form instructions (fadd, fcmpu, fneg, ...).
	OpcodeDouble uint32 = 63
)

// A-form extended opcodes, found in SUBOP5.
const (
	SubOpDiv    uint32 = 18
	SubOpSub    uint32 = 20
	SubOpAdd    uint32 = 21
	SubOpSqrt   uint32 = 22
	SubOpSel    uint32 = 23
	SubOpRes    uint32 = 24
	SubOpMul    uint32 = 25
	SubOpRsqrte uint32 = 26
	SubOpMsub   uint32 = 28
	SubOpMadd   uint32 = 29
	SubOpNmsub  uint32 = 30
	SubOpNmadd  uint32 = 31
)

// X-form extended opcodes of OpcodeDouble, found in SUBOP10.
const (
	SubOp10Fcmpu  uint32 = 0
	SubOp10Frsp   uint32 = 12
	SubOp10Fctiw  uint32 = 14
	SubOp10Fctiwz uint32 = 15
	SubOp10Fcmpo  uint32 = 32
	SubOp10Mtfsb1 uint32 = 38
	SubOp10Fneg   uint32 = 40
	SubOp10Mcrfs  uint32 = 64
	SubOp10Mtfsb0 uint32 = 70
	SubOp10Fmr    uint32 = 72
	SubOp10Mtfsfi uint32 = 134
	SubOp10Fnabs  uint32 = 136
	SubOp10Fabs   uint32 = 264
	SubOp10Mffs   uint32 = 583
	SubOp10Mtfsf  uint32 = 711
)

// OPCD returns the primary opcode.
func (i Instruction) OPCD() uint32 { return uint32(i) >> 26 }

// FD returns the destination floating-point register.
func (i Instruction) FD() int { return int(uint32(i)>>21) & 0x1f }

// RD is FD read as an integer register field.
func (i Instruction) RD() int { return i.FD() }

// FA returns the operand A register.
func (i Instruction) FA() int { return int(uint32(i)>>16) & 0x1f }

// FB returns the operand B register.
func (i Instruction) FB() int { return int(uint32(i)>>11) & 0x1f }

// RB is FB read as an integer register field.
func (i Instruction) RB() int { return i.FB() }

// FC returns the operand C register of A-form instructions.
func (i Instruction) FC() int { return int(uint32(i)>>6) & 0x1f }

// CRFD returns the destination condition register field of compare instructions.
func (i Instruction) CRFD() int { return int(uint32(i)>>23) & 0x7 }

// SUBOP5 returns the A-form extended opcode.
func (i Instruction) SUBOP5() uint32 { return (uint32(i) >> 1) & 0x1f }

// SUBOP10 returns the X-form extended opcode.
func (i Instruction) SUBOP10() uint32 { return (uint32(i) >> 1) & 0x3ff }

// Rc is true when the instruction records its exception summary into CR1.
func (i Instruction) Rc() bool { return i&1 == 1 }

// IsSingle is true for the single-precision A-form group.
func (i Instruction) IsSingle() bool { return i.OPCD() == OpcodeSingle }

// EncodeA builds an A-form instruction word such as fadd or fmadd.
func EncodeA(opcd uint32, d, a, b, c int, subop5 uint32, rc bool) Instruction {
	w := opcd<<26 | uint32(d&0x1f)<<21 | uint32(a&0x1f)<<16 | uint32(b&0x1f)<<11 | uint32(c&0x1f)<<6 | (subop5&0x1f)<<1
	if rc {
		w |= 1
	}
	return Instruction(w)
}

// EncodeX builds an X-form instruction word of OpcodeDouble such as fneg or fctiw.
func EncodeX(d, a, b int, subop10 uint32, rc bool) Instruction {
	w := OpcodeDouble<<26 | uint32(d&0x1f)<<21 | uint32(a&0x1f)<<16 | uint32(b&0x1f)<<11 | (subop10&0x3ff)<<1
	if rc {
		w |= 1
	}
	return Instruction(w)
}

// EncodeCompare builds fcmpu (ordered=false) or fcmpo (ordered=true) writing into field crf.
func EncodeCompare(crf, a, b int, ordered bool) Instruction {
	subop := SubOp10Fcmpu
	if ordered {
		subop = SubOp10Fcmpo
	}
	return EncodeX((crf&0x7)<<2, a, b, subop, false)
}

// Mnemonic returns the assembler name of floating-point instructions, or "unknown".
func (i Instruction) Mnemonic() (ret string) {
	ret = "unknown"
	switch i.OPCD() {
	case OpcodeSingle, OpcodeDouble:
	default:
		return
	}
	suffix := ""
	if i.IsSingle() {
		suffix = "s"
	}
	switch i.SUBOP5() {
	case SubOpDiv:
		ret = "fdiv" + suffix
	case SubOpSub:
		ret = "fsub" + suffix
	case SubOpAdd:
		ret = "fadd" + suffix
	case SubOpSqrt:
		ret = "fsqrt" + suffix
	case SubOpSel:
		ret = "fsel"
	case SubOpRes:
		ret = "fres"
	case SubOpMul:
		ret = "fmul" + suffix
	case SubOpRsqrte:
		ret = "frsqrte"
	case SubOpMsub:
		ret = "fmsub" + suffix
	case SubOpMadd:
		ret = "fmadd" + suffix
	case SubOpNmsub:
		ret = "fnmsub" + suffix
	case SubOpNmadd:
		ret = "fnmadd" + suffix
	}
	if ret != "unknown" || i.IsSingle() {
		return
	}
	switch i.SUBOP10() {
	case SubOp10Fcmpu:
		ret = "fcmpu"
	case SubOp10Frsp:
		ret = "frsp"
	case SubOp10Fctiw:
		ret = "fctiw"
	case SubOp10Fctiwz:
		ret = "fctiwz"
	case SubOp10Fcmpo:
		ret = "fcmpo"
	case SubOp10Mtfsb1:
		ret = "mtfsb1"
	case SubOp10Fneg:
		ret = "fneg"
	case SubOp10Mcrfs:
		ret = "mcrfs"
	case SubOp10Mtfsb0:
		ret = "mtfsb0"
	case SubOp10Fmr:
		ret = "fmr"
	case SubOp10Mtfsfi:
		ret = "mtfsfi"
	case SubOp10Fnabs:
		ret = "fnabs"
	case SubOp10Fabs:
		ret = "fabs"
	case SubOp10Mffs:
		ret = "mffs"
	case SubOp10Mtfsf:
		ret = "mtfsf"
	}
	return
}

// String implements fmt.Stringer.
func (i Instruction) String() string {
	m := i.Mnemonic()
	if i.Rc() {
		m += "."
	}
	return fmt.Sprintf("%s(%#08x)", m, uint32(i))
}
