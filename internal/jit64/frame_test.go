package jit64

import (
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/ppcjit/ppcjit/internal/gekko"
)

// Ensures that the offset consts do not drift when we manipulate the nativeFrame struct.
func TestNativeFrame_verifyOffsetValue(t *testing.T) {
	var f nativeFrame
	require.Equal(t, 0, int(unsafe.Offsetof(f.state)))
	require.Equal(t, gekko.StateSize, int(unsafe.Sizeof(f.state)))
	require.Equal(t, frameExitStatusOffset, int(unsafe.Offsetof(f.exitStatus)))
	require.Equal(t, frameExitSiteOffset, int(unsafe.Offsetof(f.exitSite)))
	consts := int(unsafe.Offsetof(f.consts))
	require.Equal(t, frameSignMaskOffset, consts+int(unsafe.Offsetof(f.consts.signMask)))
	require.Equal(t, frameAbsMaskOffset, consts+int(unsafe.Offsetof(f.consts.absMask)))
	require.Equal(t, frameClampPairOffset, consts+int(unsafe.Offsetof(f.consts.clampPair)))
	require.Equal(t, frameCRTableOffset, consts+int(unsafe.Offsetof(f.consts.crTable)))
}

func TestNewNativeFrame(t *testing.T) {
	f := newNativeFrame()
	require.Equal(t, [2]uint64{0x8000_0000_0000_0000, 0x8000_0000_0000_0000}, f.consts.signMask)
	require.Equal(t, [2]uint64{0x7fff_ffff_ffff_ffff, 0x7fff_ffff_ffff_ffff}, f.consts.absMask)
	require.Equal(t, float64(2147483647), math.Float64frombits(f.consts.clampPair[0]))
	require.Equal(t, float64(-524288), math.Float64frombits(f.consts.clampPair[1]))
	for i, v := range f.consts.crTable {
		require.Equal(t, uint8(i), gekko.FromInternal(v))
	}
}

func TestExitStatus_String(t *testing.T) {
	require.Equal(t, "returned", exitStatusReturned.String())
	require.Equal(t, "fallback", exitStatusFallback.String())
	require.Equal(t, "unknown", exitStatus(100).String())
}
