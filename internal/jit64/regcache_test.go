package jit64

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/ppcjit/ppcjit/internal/gekko"
)

type fprTransfer struct {
	store bool
	guest int
	reg   int16
}

// recordingEmitter remembers the loads and stores the cache asks for instead of emitting them.
type recordingEmitter struct {
	transfers []fprTransfer
}

func (e *recordingEmitter) emitLoadFPR(guest int, reg int16) {
	e.transfers = append(e.transfers, fprTransfer{guest: guest, reg: reg})
}

func (e *recordingEmitter) emitStoreFPR(reg int16, guest int) {
	e.transfers = append(e.transfers, fprTransfer{store: true, guest: guest, reg: reg})
}

func (e *recordingEmitter) reset() {
	e.transfers = nil
}

func TestFPRCache_BindToRegister(t *testing.T) {
	for _, tc := range []struct {
		name              string
		forWrite, forRead bool
		expLoad, expDirty bool
	}{
		{name: "read", forRead: true, expLoad: true},
		{name: "write", forWrite: true, expDirty: true},
		{name: "read write", forWrite: true, forRead: true, expLoad: true, expDirty: true},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			e := &recordingEmitter{}
			c := newFPRCache(e)
			require.False(t, c.IsBound(5))
			require.Equal(t, operand{register: nilRegister, offset: gekko.PSOffset(5)}, c.R(5))

			c.Lock(5)
			c.BindToRegister(5, tc.forWrite, tc.forRead)
			require.True(t, c.IsBound(5))
			require.Equal(t, int16(x86.REG_X2), c.RX(5))
			require.Equal(t, operand{register: x86.REG_X2}, c.R(5))
			require.Equal(t, tc.expDirty, c.isDirty(5))
			if tc.expLoad {
				require.Equal(t, []fprTransfer{{guest: 5, reg: x86.REG_X2}}, e.transfers)
			} else {
				require.Empty(t, e.transfers)
			}

			// Binding again never reloads, but a write marks the binding dirty.
			e.reset()
			c.BindToRegister(5, true, true)
			require.Empty(t, e.transfers)
			require.True(t, c.isDirty(5))
			c.UnlockAll()
		})
	}
}

func TestFPRCache_allocationOrder(t *testing.T) {
	e := &recordingEmitter{}
	c := newFPRCache(e)
	for i, reg := range allocatableFloatRegisters {
		c.BindToRegister(i, false, true)
		require.Equal(t, reg, c.RX(i))
	}
	require.Equal(t, len(allocatableFloatRegisters), c.boundCount())
	for _, reg := range allocatableFloatRegisters {
		require.NotEqual(t, reservedRegisterForScratch, reg)
		require.NotEqual(t, reservedRegisterForFloatMasks, reg)
	}
}

func TestFPRCache_eviction(t *testing.T) {
	t.Run("clean before dirty", func(t *testing.T) {
		e := &recordingEmitter{}
		c := newFPRCache(e)
		// Guest 0 is dirty, guest 1 is clean, the rest are dirty.
		for i := range allocatableFloatRegisters {
			c.BindToRegister(i, i != 1, true)
		}
		e.reset()

		c.BindToRegister(20, true, true)
		require.False(t, c.IsBound(1))
		require.True(t, c.IsBound(0))
		require.Equal(t, int16(x86.REG_X3), c.RX(20))
		// No write-back for the clean victim.
		require.Equal(t, []fprTransfer{{guest: 20, reg: x86.REG_X3}}, e.transfers)
	})
	t.Run("dirty victim is written back", func(t *testing.T) {
		e := &recordingEmitter{}
		c := newFPRCache(e)
		for i := range allocatableFloatRegisters {
			c.BindToRegister(i, true, false)
		}
		e.reset()

		c.BindToRegister(20, true, false)
		require.False(t, c.IsBound(0))
		require.Equal(t, int16(x86.REG_X2), c.RX(20))
		require.Equal(t, []fprTransfer{{store: true, guest: 0, reg: x86.REG_X2}}, e.transfers)
		require.False(t, c.isDirty(0))
	})
	t.Run("locked registers are kept", func(t *testing.T) {
		e := &recordingEmitter{}
		c := newFPRCache(e)
		for i := range allocatableFloatRegisters {
			c.BindToRegister(i, false, true)
		}
		c.Lock(0, 1, 2, 20)
		c.BindToRegister(20, true, true)
		c.UnlockAll()
		require.True(t, c.IsBound(0))
		require.True(t, c.IsBound(1))
		require.True(t, c.IsBound(2))
		require.False(t, c.IsBound(3))
		require.Equal(t, int16(x86.REG_X5), c.RX(20))
	})
	t.Run("every register locked", func(t *testing.T) {
		c := newFPRCache(&recordingEmitter{})
		var indices []int
		for i := range allocatableFloatRegisters {
			c.BindToRegister(i, false, true)
			indices = append(indices, i)
		}
		c.Lock(append(indices, 31)...)
		require.Panics(t, func() { c.BindToRegister(31, true, true) })
	})
}

func TestFPRCache_Lock(t *testing.T) {
	c := newFPRCache(&recordingEmitter{})
	c.Lock(1, 2)
	require.Panics(t, func() { c.Lock(3) })
	c.UnlockAll()
	require.NotPanics(t, func() { c.Lock(3) })
	c.UnlockAll()
	for i := range c.bindings {
		require.False(t, c.bindings[i].locked)
	}
}

func TestFPRCache_Flush(t *testing.T) {
	e := &recordingEmitter{}
	c := newFPRCache(e)
	c.BindToRegister(3, true, true)
	c.BindToRegister(7, false, true)
	c.BindToRegister(30, true, false)
	e.reset()

	c.Flush()
	require.Zero(t, c.boundCount())
	require.Equal(t, []fprTransfer{
		{store: true, guest: 3, reg: x86.REG_X2},
		{store: true, guest: 30, reg: x86.REG_X4},
	}, e.transfers)

	// Every host register is free again.
	c.BindToRegister(9, false, true)
	require.Equal(t, int16(x86.REG_X2), c.RX(9))

	c.Lock(9)
	require.Panics(t, c.Flush)
}

func TestFPRCache_RX_unbound(t *testing.T) {
	c := newFPRCache(&recordingEmitter{})
	require.Panics(t, func() { c.RX(0) })
}

func TestOperand_String(t *testing.T) {
	require.Equal(t, "X3", operand{register: x86.REG_X3}.String())
	require.Equal(t, "32(R13)", operand{register: nilRegister, offset: gekko.PSOffset(2)}.String())
}
