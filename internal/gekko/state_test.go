package gekko

import (
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestState_offsets(t *testing.T) {
	var s State
	require.Equal(t, StatePSOffset, int(unsafe.Offsetof(s.PS)))
	require.Equal(t, StateCROffset, int(unsafe.Offsetof(s.CR)))
	require.Equal(t, StatePCOffset, int(unsafe.Offsetof(s.PC)))
	require.Equal(t, StateFPSCROffset, int(unsafe.Offsetof(s.FPSCR)))
	require.Equal(t, StateSize, int(unsafe.Sizeof(s)))

	base := uintptr(unsafe.Pointer(&s))
	require.Equal(t, int64(uintptr(unsafe.Pointer(&s.PS[7]))-base), PSOffset(7))
	require.Equal(t, int64(uintptr(unsafe.Pointer(&s.CR[3]))-base), CROffset(3))
}

func TestState_PS(t *testing.T) {
	var s State
	s.SetPS(4, 1.5, math.Inf(-1))
	require.Equal(t, 1.5, s.PS0(4))
	require.True(t, math.IsInf(s.PS1(4), -1))
	require.Equal(t, math.Float64bits(1.5), s.PS[4][0])
}

func TestState_SetCRField(t *testing.T) {
	var s State
	s.SetCRField(6, CRLT|CRSO)
	require.Equal(t, ToInternal(CRLT|CRSO), s.CR[6])
	require.Equal(t, CRLT|CRSO, s.CRField(6))
}
