package gekko

// Bits of a public condition register field.
const (
	CRSO uint8 = 1 << iota
	CREQ
	CRGT
	CRLT
)

// Bits of the internal representation which are tested directly.
const (
	internalLTBit = 62
	internalSOBit = 61
)

// ToInternal converts the public 4-bit condition field into the internal 64-bit representation.
//
// The internal value is tested without unpacking: LT is bit 62, SO is bit 61, EQ holds when the low
// 32 bits are zero, and GT holds when the value is positive as a signed integer. Bit 32 is always set so
// that clearing EQ does not need the low word to carry the other flags.
func ToInternal(field uint8) uint64 {
	v := uint64(1) << 32
	if field&CRSO != 0 {
		v |= 1 << internalSOBit
	}
	if field&CREQ == 0 {
		v |= 1
	}
	if field&CRGT == 0 {
		v |= 1 << 63
	}
	if field&CRLT != 0 {
		v |= 1 << internalLTBit
	}
	return v
}

// FromInternal converts the internal representation back into the public 4-bit condition field.
func FromInternal(v uint64) (field uint8) {
	if v&(1<<internalSOBit) != 0 {
		field |= CRSO
	}
	if uint32(v) == 0 {
		field |= CREQ
	}
	if int64(v) > 0 {
		field |= CRGT
	}
	if v&(1<<internalLTBit) != 0 {
		field |= CRLT
	}
	return
}

// Outcome is the result of a floating-point comparison.
type Outcome byte

const (
	OutcomeLess Outcome = iota
	OutcomeGreater
	OutcomeEqual
	OutcomeUnordered
)

// Bits returns the public condition field for the outcome. Unordered is reported through SO.
func (o Outcome) Bits() (ret uint8) {
	switch o {
	case OutcomeLess:
		ret = CRLT
	case OutcomeGreater:
		ret = CRGT
	case OutcomeEqual:
		ret = CREQ
	case OutcomeUnordered:
		ret = CRSO
	}
	return
}

// Internal returns the internal condition value stored by compare instructions for the outcome.
func (o Outcome) Internal() uint64 {
	return ToInternal(o.Bits())
}

func (o Outcome) String() (ret string) {
	switch o {
	case OutcomeLess:
		ret = "less"
	case OutcomeGreater:
		ret = "greater"
	case OutcomeEqual:
		ret = "equal"
	case OutcomeUnordered:
		ret = "unordered"
	}
	return
}
