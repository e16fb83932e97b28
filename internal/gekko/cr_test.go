package gekko

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToInternal_roundTrip(t *testing.T) {
	seen := map[uint64]uint8{}
	for field := uint8(0); field < 16; field++ {
		v := ToInternal(field)
		require.Equal(t, field, FromInternal(v), "field %#x", field)
		prev, ok := seen[v]
		require.False(t, ok, "fields %#x and %#x share %#x", prev, field, v)
		seen[v] = field
	}
}

func TestOutcome_Internal(t *testing.T) {
	for _, tc := range []struct {
		outcome  Outcome
		expected uint64
		bits     uint8
	}{
		{outcome: OutcomeLess, expected: 0xC000_0001_0000_0001, bits: CRLT},
		{outcome: OutcomeGreater, expected: 0x0000_0001_0000_0001, bits: CRGT},
		{outcome: OutcomeEqual, expected: 0x8000_0001_0000_0000, bits: CREQ},
		{outcome: OutcomeUnordered, expected: 0xA000_0001_0000_0001, bits: CRSO},
	} {
		tc := tc
		t.Run(tc.outcome.String(), func(t *testing.T) {
			require.Equal(t, tc.expected, tc.outcome.Internal())
			require.Equal(t, tc.bits, FromInternal(tc.outcome.Internal()))
		})
	}
}

func TestState_CRField(t *testing.T) {
	var s State
	s.SetCRField(3, CRLT|CRSO)
	require.Equal(t, CRLT|CRSO, s.CRField(3))
	require.Equal(t, ToInternal(CRLT|CRSO), s.CR[3])
	// The zero internal value reads back as EQ.
	require.Equal(t, CREQ, s.CRField(0))
}
