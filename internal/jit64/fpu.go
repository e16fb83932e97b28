package jit64

import (
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/ppcjit/ppcjit/internal/gekko"
)

// arithOp is the operation of the fadd/fsub/fmul/fdiv family.
type arithOp byte

const (
	arithOpAdd arithOp = iota
	arithOpSub
	arithOpMul
	arithOpDiv
)

// reversible returns true if the operands of the operation can be swapped.
func (o arithOp) reversible() bool {
	return o == arithOpAdd || o == arithOpMul
}

func (o arithOp) instruction() (ret obj.As) {
	switch o {
	case arithOpAdd:
		ret = x86.AADDSD
	case arithOpSub:
		ret = x86.ASUBSD
	case arithOpMul:
		ret = x86.AMULSD
	case arithOpDiv:
		ret = x86.ADIVSD
	}
	return
}

func (o arithOp) String() (ret string) {
	switch o {
	case arithOpAdd:
		ret = "add"
	case arithOpSub:
		ret = "sub"
	case arithOpMul:
		ret = "mul"
	case arithOpDiv:
		ret = "div"
	}
	return
}

// triOpCase is how "d = a op b" is emitted depending on which operands alias the destination.
type triOpCase byte

const (
	// triOpInPlace means d == a: d op= b.
	triOpInPlace triOpCase = iota
	// triOpSwapped means d == b with a reversible operation: d op= a.
	triOpSwapped
	// triOpSaveB means d == b with a non-reversible operation: b is saved to scratch, then d = a; d op= scratch.
	triOpSaveB
	// triOpFresh means d is neither a nor b: d = a; d op= b.
	triOpFresh
)

func classifyTriOp(d, a, b int, reversible bool) triOpCase {
	switch {
	case d == a:
		return triOpInPlace
	case d == b && reversible:
		return triOpSwapped
	case d == b:
		return triOpSaveB
	default:
		return triOpFresh
	}
}

// fpArith translates fadd(s), fsub(s), fmul(s) and fdiv(s).
func (c *compiler) fpArith(inst gekko.Instruction) error {
	var op arithOp
	switch inst.SUBOP5() {
	case gekko.SubOpDiv:
		op = arithOpDiv
	case gekko.SubOpSub:
		op = arithOpSub
	case gekko.SubOpAdd:
		op = arithOpAdd
	case gekko.SubOpMul:
		// fmul takes its second operand from C.
		return c.fpTriOp(inst.FD(), inst.FA(), inst.FC(), arithOpMul, inst.IsSingle())
	default:
		return ErrUnknownSubOpcode
	}
	return c.fpTriOp(inst.FD(), inst.FA(), inst.FB(), op, inst.IsSingle())
}

// fpTriOp emits d = a op b on lane 0, then for single precision rounds the result and copies it into lane 1.
func (c *compiler) fpTriOp(d, a, b int, op arithOp, single bool) error {
	c.fpr.Lock(d, a, b)
	defer c.fpr.UnlockAll()

	// A double precision result only replaces lane 0 of d, so d must be loaded before it is written.
	loadD := !single
	instruction := op.instruction()
	switch classifyTriOp(d, a, b, op.reversible()) {
	case triOpInPlace:
		c.fpr.BindToRegister(d, true, true)
		c.emitOperandToReg(instruction, c.fpr.R(b), c.fpr.RX(d))
	case triOpSwapped:
		c.fpr.BindToRegister(d, true, true)
		c.emitOperandToReg(instruction, c.fpr.R(a), c.fpr.RX(d))
	case triOpSaveB:
		c.emitOperandToReg(x86.AMOVSD, c.fpr.R(b), reservedRegisterForScratch)
		c.fpr.BindToRegister(d, true, loadD)
		c.emitMoveLane0(a, c.fpr.RX(d), single)
		c.emitRegToReg(instruction, reservedRegisterForScratch, c.fpr.RX(d))
	case triOpFresh:
		c.fpr.BindToRegister(d, true, loadD)
		c.emitMoveLane0(a, c.fpr.RX(d), single)
		c.emitOperandToReg(instruction, c.fpr.R(b), c.fpr.RX(d))
	}
	if single {
		c.forceSinglePrecision(c.fpr.RX(d))
	}
	return nil
}

// emitMoveLane0 copies ps0 of the guest register src into lane 0 of dst.
// A MOVSD from memory clears lane 1 of dst, so src is brought into a register when lane 1 of dst matters.
func (c *compiler) emitMoveLane0(src int, dst int16, lane1DontCare bool) {
	if !lane1DontCare {
		c.fpr.BindToRegister(src, false, true)
	}
	c.emitOperandToReg(x86.AMOVSD, c.fpr.R(src), dst)
}

// forceSinglePrecision rounds lane 0 of reg to single precision and duplicates it into lane 1.
func (c *compiler) forceSinglePrecision(reg int16) {
	c.emitRegToReg(x86.ACVTSD2SS, reg, reg)
	c.emitRegToReg(x86.ACVTSS2SD, reg, reg)
	c.duplicateLane0(reg, reg)
}

// duplicateLane0 sets both lanes of dst to lane 0 of src.
func (c *compiler) duplicateLane0(src, dst int16) {
	if c.opts.NoSSE3 {
		if src != dst {
			c.emitRegToReg(x86.AMOVAPD, src, dst)
		}
		c.emitRegToReg(x86.AUNPCKLPD, dst, dst)
		return
	}
	c.emitRegToReg(x86.AMOVDDUP, src, dst)
}

// fmaddXX translates fmadd(s), fmsub(s), fnmadd(s) and fnmsub(s): d = ±(a*c ± b).
func (c *compiler) fmaddXX(inst gekko.Instruction) error {
	a, b, cc, d := inst.FA(), inst.FB(), inst.FC(), inst.FD()
	single := inst.IsSingle()

	c.fpr.Lock(a, b, cc, d)
	defer c.fpr.UnlockAll()

	var accumulate obj.As
	var negate bool
	switch inst.SUBOP5() {
	case gekko.SubOpMsub:
		accumulate = x86.ASUBSD
	case gekko.SubOpMadd:
		accumulate = x86.AADDSD
	case gekko.SubOpNmsub:
		accumulate, negate = x86.ASUBSD, true
	case gekko.SubOpNmadd:
		accumulate, negate = x86.AADDSD, true
	default:
		return ErrUnknownSubOpcode
	}

	scratch := reservedRegisterForScratch
	c.emitOperandToReg(x86.AMOVSD, c.fpr.R(a), scratch)
	c.emitOperandToReg(x86.AMULSD, c.fpr.R(cc), scratch)
	c.emitOperandToReg(accumulate, c.fpr.R(b), scratch)
	if negate {
		c.emitFrameToReg(x86.AMOVUPD, frameSignMaskOffset, reservedRegisterForFloatMasks)
		c.emitRegToReg(x86.APXOR, reservedRegisterForFloatMasks, scratch)
	}

	// Only the double precision result keeps lane 1 of d.
	c.fpr.BindToRegister(d, true, !single)
	if single {
		c.emitRegToReg(x86.ACVTSD2SS, scratch, scratch)
		c.emitRegToReg(x86.ACVTSS2SD, scratch, scratch)
		c.duplicateLane0(scratch, c.fpr.RX(d))
	} else {
		c.emitRegToReg(x86.AMOVSD, scratch, c.fpr.RX(d))
	}
	return nil
}

// fsign translates fneg, fabs and fnabs: lane 0 of d is lane 0 of b with its sign bit
// flipped, cleared or set. Lane 1 of d is kept.
func (c *compiler) fsign(inst gekko.Instruction) error {
	d, b := inst.FD(), inst.FB()
	c.fpr.Lock(b, d)
	defer c.fpr.UnlockAll()

	c.fpr.BindToRegister(d, true, true)
	scratch := reservedRegisterForScratch
	c.emitOperandToReg(x86.AMOVSD, c.fpr.R(b), scratch)
	switch inst.SUBOP10() {
	case gekko.SubOp10Fneg:
		c.emitFrameToReg(x86.AMOVUPD, frameSignMaskOffset, reservedRegisterForFloatMasks)
		c.emitRegToReg(x86.APXOR, reservedRegisterForFloatMasks, scratch)
	case gekko.SubOp10Fabs:
		c.emitFrameToReg(x86.AMOVUPD, frameAbsMaskOffset, reservedRegisterForFloatMasks)
		c.emitRegToReg(x86.APAND, reservedRegisterForFloatMasks, scratch)
	case gekko.SubOp10Fnabs:
		c.emitFrameToReg(x86.AMOVUPD, frameSignMaskOffset, reservedRegisterForFloatMasks)
		c.emitRegToReg(x86.APOR, reservedRegisterForFloatMasks, scratch)
	default:
		// d gets b unchanged.
		c.log.Error(ErrUnknownSubOpcode, "fsign translated as a plain move", "instruction", inst.String())
	}
	c.emitRegToReg(x86.AMOVSD, scratch, c.fpr.RX(d))
	return nil
}

// fmrx translates fmr: lane 0 of d is lane 0 of b, lane 1 of d is kept.
func (c *compiler) fmrx(inst gekko.Instruction) error {
	d, b := inst.FD(), inst.FB()
	if d == b {
		return nil
	}
	c.fpr.Lock(b, d)
	defer c.fpr.UnlockAll()

	// A bound d must be marked dirty, otherwise the cached copy would be considered clean
	// while the guest register file is written directly.
	if c.fpr.IsBound(d) {
		c.fpr.BindToRegister(d, true, true)
	}
	c.fpr.BindToRegister(b, false, true)
	c.emitRegToOperand(x86.AMOVSD, c.fpr.RX(b), c.fpr.R(d))
	return nil
}

// fcmpx translates fcmpu and fcmpo into a store of the comparison outcome into CR[crfd].
func (c *compiler) fcmpx(inst gekko.Instruction) error {
	a, b, crf := inst.FA(), inst.FB(), inst.CRFD()
	c.fpr.Lock(a, b)
	defer c.fpr.UnlockAll()

	c.fpr.BindToRegister(b, false, true)
	// UCOMISD b, a in Intel order: CF=1 when b < a, ZF=1 when equal, all of ZF/PF/CF when unordered.
	c.emitOperandToReg(x86.AUCOMISD, c.fpr.R(a), c.fpr.RX(b))

	// a == b can only be equal or unordered, so the ordering branches are omitted.
	distinct := a != b
	var jmpLess, jmpGreater *obj.Prog
	if distinct {
		jmpLess = c.emitJump(x86.AJHI)
	}
	jmpUnordered := c.emitJump(x86.AJPS)
	if distinct {
		jmpGreater = c.emitJump(x86.AJCS)
	}

	tmp := reservedRegisterForTemporary
	c.emitConstToReg(x86.AMOVQ, int64(gekko.OutcomeEqual.Internal()), tmp)
	jmpEqualDone := c.emitJump(obj.AJMP)

	c.addSetJmpOrigins(jmpUnordered)
	c.emitConstToReg(x86.AMOVQ, int64(gekko.OutcomeUnordered.Internal()), tmp)
	if distinct {
		jmpUnorderedDone := c.emitJump(obj.AJMP)

		c.addSetJmpOrigins(jmpGreater)
		c.emitConstToReg(x86.AMOVQ, int64(gekko.OutcomeGreater.Internal()), tmp)
		jmpGreaterDone := c.emitJump(obj.AJMP)

		c.addSetJmpOrigins(jmpLess)
		c.emitConstToReg(x86.AMOVQ, int64(gekko.OutcomeLess.Internal()), tmp)

		c.addSetJmpOrigins(jmpUnorderedDone, jmpGreaterDone)
	}
	c.addSetJmpOrigins(jmpEqualDone)
	c.emitRegToFrame(x86.AMOVQ, tmp, gekko.CROffset(crf))
	return nil
}

// fctiwx translates fctiw (current rounding) and fctiwz (toward zero).
//
// The input is clamped to 2^31-1 first since the host conversion reports any overflow as
// 0x80000000, while the guest saturates positive overflow to 0x7fffffff. A NaN input passes
// the clamp and also yields 0x80000000, like on the guest.
func (c *compiler) fctiwx(inst gekko.Instruction) error {
	d, b := inst.FD(), inst.FB()
	c.fpr.Lock(d, b)
	defer c.fpr.UnlockAll()

	var convert obj.As
	switch inst.SUBOP10() {
	case gekko.SubOp10Fctiw:
		convert = x86.ACVTPD2PL
	case gekko.SubOp10Fctiwz:
		convert = x86.ACVTTPD2PL
	default:
		return ErrUnknownSubOpcode
	}

	c.fpr.BindToRegister(d, true, true)
	scratch := reservedRegisterForScratch
	c.emitFrameToReg(x86.AMOVUPD, frameClampPairOffset, scratch)
	c.emitOperandToReg(x86.AMINSD, c.fpr.R(b), scratch)
	// Both lanes are converted: the low 64 bits of scratch become {int32(b), int32(clampTag)}.
	c.emitRegToReg(convert, scratch, scratch)
	c.emitRegToReg(x86.AMOVSD, scratch, c.fpr.RX(d))
	return nil
}

// emitRecordCR1 copies the exception summary bits FX|FEX|VX|OX of FPSCR into CR1.
func (c *compiler) emitRecordCR1() {
	tmp := reservedRegisterForTemporary
	c.emitFrameToReg(x86.AMOVL, gekko.StateFPSCROffset, tmp)
	c.emitConstToReg(x86.ASHRL, 28, tmp)

	lookup := c.newProg()
	lookup.As = x86.AMOVQ
	lookup.From.Type = obj.TYPE_MEM
	lookup.From.Reg = reservedRegisterForFrame
	lookup.From.Index = tmp
	lookup.From.Scale = 8
	lookup.From.Offset = frameCRTableOffset
	lookup.To.Type = obj.TYPE_REG
	lookup.To.Reg = tmp
	c.addInstruction(lookup)

	c.emitRegToFrame(x86.AMOVQ, tmp, gekko.CROffset(1))
}
