package jit64

import (
	"fmt"

	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/ppcjit/ppcjit/internal/gekko"
)

// nilRegister is used to indicate a guest register which is not bound to any host register.
const nilRegister int16 = -1

// guestFPRCount is the number of guest floating-point registers.
const guestFPRCount = 32

// Reserved registers. Translators may clobber the scratch registers freely inside one guest instruction.
const (
	reservedRegisterForFrame      int16 = x86.REG_R13
	reservedRegisterForTemporary  int16 = x86.REG_AX
	reservedRegisterForScratch    int16 = x86.REG_X0
	reservedRegisterForFloatMasks int16 = x86.REG_X1
)

// allocatableFloatRegisters lists the host registers the cache hands out, in allocation order.
var allocatableFloatRegisters = []int16{
	x86.REG_X2, x86.REG_X3, x86.REG_X4, x86.REG_X5, x86.REG_X6, x86.REG_X7, x86.REG_X8,
	x86.REG_X9, x86.REG_X10, x86.REG_X11, x86.REG_X12, x86.REG_X13, x86.REG_X14, x86.REG_X15,
}

// operand is where the current value of a guest register lives: either a host register,
// or the guest register file in the native frame.
type operand struct {
	register int16
	offset   int64
}

func (o operand) onRegister() bool {
	return o.register != nilRegister
}

// setTo writes the operand into one side of a Prog.
func (o operand) setTo(a *obj.Addr) {
	if o.onRegister() {
		a.Type = obj.TYPE_REG
		a.Reg = o.register
	} else {
		a.Type = obj.TYPE_MEM
		a.Reg = reservedRegisterForFrame
		a.Offset = o.offset
	}
}

func (o operand) String() string {
	if o.onRegister() {
		return obj.Rconv(int(o.register))
	}
	return fmt.Sprintf("%d(%s)", o.offset, obj.Rconv(int(reservedRegisterForFrame)))
}

// fprBinding records which host register caches a guest register.
type fprBinding struct {
	register int16
	// dirty is true when the host register holds a value newer than the guest register file.
	dirty bool
	// locked prevents eviction until the next UnlockAll.
	locked bool
}

// fprEmitter is the subset of the compiler the cache uses to move values between the
// guest register file and the host registers.
type fprEmitter interface {
	emitLoadFPR(guest int, reg int16)
	emitStoreFPR(reg int16, guest int)
}

// fprCache binds guest floating-point registers to host XMM registers during the translation of a block.
//
// The usual pattern of a translator is
//
//	c.fpr.Lock(d, a, b)
//	c.fpr.BindToRegister(d, true, true)
//	... emit code reading c.fpr.R(a) and c.fpr.R(b), writing c.fpr.RX(d)
//	c.fpr.UnlockAll()
//
// Each guest register is bound to at most one host register and the host register always
// holds the newest value of it.
type fprCache struct {
	emitter  fprEmitter
	bindings [guestFPRCount]fprBinding
	// owners maps the host register (indexed by reg-x86.REG_X0) to the guest register it caches,
	// or -1 when free.
	owners [16]int
	// locking is true between Lock and UnlockAll.
	locking bool
}

func newFPRCache(e fprEmitter) *fprCache {
	c := &fprCache{emitter: e}
	for i := range c.bindings {
		c.bindings[i].register = nilRegister
	}
	for i := range c.owners {
		c.owners[i] = -1
	}
	return c
}

// Lock marks the given guest registers as in use by the current instruction so they cannot be
// evicted while it is translated. Calling Lock twice without UnlockAll in between is a bug.
func (c *fprCache) Lock(indices ...int) {
	if c.locking {
		panic("BUG: fpr Lock called again before UnlockAll")
	}
	c.locking = true
	for _, i := range indices {
		c.bindings[i].locked = true
	}
}

// UnlockAll releases every lock taken since the last Lock.
func (c *fprCache) UnlockAll() {
	for i := range c.bindings {
		c.bindings[i].locked = false
	}
	c.locking = false
}

// IsBound returns true if the guest register currently lives in a host register.
func (c *fprCache) IsBound(i int) bool {
	return c.bindings[i].register != nilRegister
}

// BindToRegister makes sure the guest register lives in a host register.
// forRead loads the current value when the register was not bound yet.
// forWrite marks the binding dirty, so it gets written back on eviction or flush.
func (c *fprCache) BindToRegister(i int, forWrite, forRead bool) {
	b := &c.bindings[i]
	if b.register == nilRegister {
		reg := c.takeFreeRegister()
		if forRead {
			c.emitter.emitLoadFPR(i, reg)
		}
		b.register = reg
		c.owners[reg-x86.REG_X0] = i
	}
	if forWrite {
		b.dirty = true
	}
}

// R returns the operand holding the guest register: the host register if bound,
// the guest register file slot otherwise. A memory operand addresses ps0 only.
func (c *fprCache) R(i int) operand {
	if reg := c.bindings[i].register; reg != nilRegister {
		return operand{register: reg}
	}
	return operand{register: nilRegister, offset: gekko.PSOffset(i)}
}

// RX returns the host register bound to the guest register. The register must be bound.
func (c *fprCache) RX(i int) int16 {
	reg := c.bindings[i].register
	if reg == nilRegister {
		panic(fmt.Sprintf("BUG: fpr %d is not bound to a host register", i))
	}
	return reg
}

// StoreFromRegister drops the binding of the guest register, writing it back if dirty.
func (c *fprCache) StoreFromRegister(i int) {
	b := &c.bindings[i]
	if b.register == nilRegister {
		return
	}
	if b.dirty {
		c.emitter.emitStoreFPR(b.register, i)
	}
	c.owners[b.register-x86.REG_X0] = -1
	b.register = nilRegister
	b.dirty = false
}

// Flush writes back every dirty binding and leaves all guest registers unbound.
func (c *fprCache) Flush() {
	if c.locking {
		panic("BUG: fpr Flush called while registers are locked")
	}
	for i := range c.bindings {
		c.StoreFromRegister(i)
	}
}

// isDirty is true when the guest register is bound and has not been written back yet.
func (c *fprCache) isDirty(i int) bool {
	return c.bindings[i].register != nilRegister && c.bindings[i].dirty
}

// boundCount returns the number of guest registers living in host registers.
func (c *fprCache) boundCount() (n int) {
	for i := range c.bindings {
		if c.bindings[i].register != nilRegister {
			n++
		}
	}
	return
}

// takeFreeRegister returns a free host register, evicting an unlocked binding when all of them
// are in use. Clean bindings are evicted before dirty ones since they need no write-back.
func (c *fprCache) takeFreeRegister() int16 {
	for _, reg := range allocatableFloatRegisters {
		if c.owners[reg-x86.REG_X0] < 0 {
			return reg
		}
	}

	victim := -1
	for _, reg := range allocatableFloatRegisters {
		guest := c.owners[reg-x86.REG_X0]
		if b := c.bindings[guest]; !b.locked {
			if !b.dirty {
				victim = guest
				break
			} else if victim < 0 {
				victim = guest
			}
		}
	}
	if victim < 0 {
		panic("BUG: every host float register is locked")
	}

	reg := c.bindings[victim].register
	c.StoreFromRegister(victim)
	return reg
}
