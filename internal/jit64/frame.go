package jit64

import (
	"math"

	"github.com/ppcjit/ppcjit/internal/gekko"
)

// nativeFrame is the memory translated code runs against. reservedRegisterForFrame holds its address
// for the whole lifetime of a block, so every guest register, condition field and constant is a
// [frame+offset] memory operand.
type nativeFrame struct {
	// state must stay the first field: guest offsets are used as frame offsets.
	state gekko.State
	// exitStatus is written by translated code right before it returns to Go.
	exitStatus exitStatus
	// exitSite identifies the fallback exit taken when exitStatus == exitStatusFallback.
	exitSite uint32
	consts   constPool
}

// constPool holds the 128-bit operands of the float translators.
type constPool struct {
	signMask  [2]uint64
	absMask   [2]uint64
	clampPair [2]uint64
	// crTable maps a 4-bit condition field to its internal representation.
	crTable [16]uint64
}

// Native code manipulates the nativeFrame's fields with these constants.
const (
	frameExitStatusOffset = 584
	frameExitSiteOffset   = 588
	frameSignMaskOffset   = 592
	frameAbsMaskOffset    = 608
	frameClampPairOffset  = 624
	frameCRTableOffset    = 640
)

const (
	float64SignBitMask uint64 = 1 << 63
	float64RestBitMask uint64 = ^float64SignBitMask
	// clampHigh is the largest float64 fctiw can convert without saturating.
	clampHigh float64 = math.MaxInt32
	// clampTag is converted alongside the input. Its int32 image, 0xfff80000, lands in the upper
	// word of ps0, which is what the hardware leaves there for every input except -0.0.
	clampTag float64 = -0x80000
)

func newNativeFrame() *nativeFrame {
	f := &nativeFrame{}
	f.consts.signMask = [2]uint64{float64SignBitMask, float64SignBitMask}
	f.consts.absMask = [2]uint64{float64RestBitMask, float64RestBitMask}
	f.consts.clampPair = [2]uint64{math.Float64bits(clampHigh), math.Float64bits(clampTag)}
	for i := range f.consts.crTable {
		f.consts.crTable[i] = gekko.ToInternal(uint8(i))
	}
	return f
}

// exitStatus tells Go why translated code returned.
type exitStatus uint32

const (
	// exitStatusReturned means the block ran to its end.
	exitStatusReturned exitStatus = iota
	// exitStatusFallback means the block stopped before an instruction the interpreter must execute.
	exitStatusFallback
)

func (s exitStatus) String() (ret string) {
	switch s {
	case exitStatusReturned:
		ret = "returned"
	case exitStatusFallback:
		ret = "fallback"
	default:
		ret = "unknown"
	}
	return
}
