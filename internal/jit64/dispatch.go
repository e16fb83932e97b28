package jit64

import (
	"errors"

	"github.com/ppcjit/ppcjit/internal/buildoptions"
	"github.com/ppcjit/ppcjit/internal/gekko"
)

// ErrUnknownSubOpcode is returned when a translator is handed a sub-opcode it has no case for.
// This is a translator defect and aborts the translation of the whole block.
var ErrUnknownSubOpcode = errors.New("unknown sub-opcode")

// FallbackReason tells why an instruction is left to the interpreter.
type FallbackReason string

const (
	FallbackJITOff           FallbackReason = "jit off"
	FallbackFloatingPointOff FallbackReason = "floating point off"
	// FallbackNotTranslated is for instructions this package has no translator for,
	// including the integer, load/store and branch groups.
	FallbackNotTranslated FallbackReason = "not translated"
	FallbackRecordForm    FallbackReason = "record form"
	FallbackFPRF          FallbackReason = "fprf"
	FallbackAccurateFcmp  FallbackReason = "accurate fcmp"
)

type translateFunc func(c *compiler, inst gekko.Instruction) error

// lookupTranslator returns the translator of the instruction, or nil if there is none.
func lookupTranslator(inst gekko.Instruction) translateFunc {
	switch inst.OPCD() {
	case gekko.OpcodeSingle, gekko.OpcodeDouble:
	default:
		return nil
	}

	switch inst.SUBOP5() {
	case gekko.SubOpDiv, gekko.SubOpSub, gekko.SubOpAdd, gekko.SubOpMul:
		return (*compiler).fpArith
	case gekko.SubOpMsub, gekko.SubOpMadd, gekko.SubOpNmsub, gekko.SubOpNmadd:
		return (*compiler).fmaddXX
	}
	if inst.IsSingle() {
		return nil
	}

	switch inst.SUBOP10() {
	case gekko.SubOp10Fcmpu, gekko.SubOp10Fcmpo:
		return (*compiler).fcmpx
	case gekko.SubOp10Fneg, gekko.SubOp10Fabs, gekko.SubOp10Fnabs:
		return (*compiler).fsign
	case gekko.SubOp10Fmr:
		return (*compiler).fmrx
	case gekko.SubOp10Fctiw, gekko.SubOp10Fctiwz:
		return (*compiler).fctiwx
	}
	return nil
}

func isCompare(inst gekko.Instruction) bool {
	if inst.OPCD() != gekko.OpcodeDouble || inst.SUBOP5() >= gekko.SubOpDiv {
		return false
	}
	sub := inst.SUBOP10()
	return sub == gekko.SubOp10Fcmpu || sub == gekko.SubOp10Fcmpo
}

// fallbackReason returns why a translatable instruction must still be interpreted under the
// current options, or "" if it can be translated natively.
func (c *compiler) fallbackReason(inst gekko.Instruction) FallbackReason {
	if c.opts.Disabled.Get(FeatureFloatingPointOff) {
		return FallbackFloatingPointOff
	}
	if isCompare(inst) {
		if c.opts.AccurateFcmp {
			return FallbackAccurateFcmp
		}
		return ""
	}
	if inst.Rc() && c.opts.AccurateRecordFlags {
		return FallbackRecordForm
	}
	if c.opts.EnableFPRF {
		switch inst.SUBOP5() {
		case gekko.SubOpMul, gekko.SubOpMadd:
			return FallbackFPRF
		}
	}
	return ""
}

// compileInstruction emits the translation of inst, or returns the reason it was declined without
// emitting anything.
func (c *compiler) compileInstruction(inst gekko.Instruction) (FallbackReason, error) {
	if c.opts.Disabled.Get(FeatureJITOff) {
		return FallbackJITOff, nil
	}
	translate := lookupTranslator(inst)
	if translate == nil {
		return FallbackNotTranslated, nil
	}
	if reason := c.fallbackReason(inst); reason != "" {
		return reason, nil
	}

	if err := translate(c, inst); err != nil {
		return "", err
	}
	if inst.Rc() && !isCompare(inst) {
		c.emitRecordCR1()
	}
	if buildoptions.IsDebugMode && c.fpr.locking {
		panic("BUG: translator of " + inst.String() + " returned with locked registers")
	}
	return "", nil
}
