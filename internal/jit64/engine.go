package jit64

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/ppcjit/ppcjit/internal/buildoptions"
	"github.com/ppcjit/ppcjit/internal/gekko"
)

// Interpreter executes the instructions translated code falls back on.
type Interpreter interface {
	// Interpret executes inst, located at state.PC, and leaves in state.PC the address of the
	// next instruction to execute.
	Interpret(state *gekko.State, inst gekko.Instruction)
}

var (
	// ErrUnsupportedPlatform is returned when translated code cannot be executed on runtime.GOOS/runtime.GOARCH.
	// Translation itself works everywhere.
	ErrUnsupportedPlatform = errors.New("executing translated code is not supported on " + runtime.GOOS + "/" + runtime.GOARCH)
	// ErrNoInterpreter is returned when a block falls back but the Machine has no Interpreter.
	ErrNoInterpreter = errors.New("no interpreter to fall back on")
)

// IsSupported returns true if translated code can be executed on this platform.
func IsSupported() bool {
	return runtime.GOARCH == "amd64" && mmapSupported
}

// Executable is a Block mapped into executable memory.
type Executable struct {
	block              *Block
	code               []byte
	codeInitialAddress uintptr
}

// NewExecutable copies the code of the block into executable memory. Close releases it.
func NewExecutable(b *Block) (*Executable, error) {
	if !IsSupported() {
		return nil, ErrUnsupportedPlatform
	}
	code, err := mmapCodeSegment(b.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to map the code of block %#08x: %w", b.Address, err)
	}
	return &Executable{
		block:              b,
		code:               code,
		codeInitialAddress: uintptr(unsafe.Pointer(&code[0])),
	}, nil
}

// Block returns the translation this executable was made from.
func (x *Executable) Block() *Block {
	return x.block
}

// Close unmaps the code. The executable must not be run afterwards.
func (x *Executable) Close() (err error) {
	if x.code != nil {
		err = munmapCodeSegment(x.code)
		x.code, x.codeInitialAddress = nil, 0
	}
	return
}

// Machine runs executables against one guest CPU state. It must not be used concurrently.
type Machine struct {
	frame  *nativeFrame
	interp Interpreter
}

// NewMachine returns a Machine with a zeroed guest state. interp may be nil when no block falls back.
func NewMachine(interp Interpreter) *Machine {
	return &Machine{frame: newNativeFrame(), interp: interp}
}

// State returns the guest state the machine runs against.
func (m *Machine) State() *gekko.State {
	return &m.frame.state
}

// Run executes the block from its first instruction until it ends or the interpreter moves PC
// out of the straight-line path of the block.
func (m *Machine) Run(x *Executable) error {
	if x.code == nil {
		return fmt.Errorf("block %#08x is closed", x.block.Address)
	}
	entry := x.codeInitialAddress
	for {
		m.frame.exitStatus = exitStatusReturned
		jitcall(entry, uintptr(unsafe.Pointer(m.frame)))
		runtime.KeepAlive(m.frame)

		switch status := m.frame.exitStatus; status {
		case exitStatusReturned:
			return nil
		case exitStatusFallback:
			site := int(m.frame.exitSite)
			if site >= len(x.block.exits) {
				return fmt.Errorf("block %#08x exited from unknown site %d", x.block.Address, site)
			}
			exit := x.block.exits[site]
			if m.interp == nil {
				return fmt.Errorf("%s at %#08x: %w", exit.instruction, exit.pc, ErrNoInterpreter)
			}
			if buildoptions.IsDebugMode && m.frame.state.PC != exit.pc {
				panic(fmt.Sprintf("BUG: fallback exit %d stored PC %#08x instead of %#08x", site, m.frame.state.PC, exit.pc))
			}
			m.interp.Interpret(&m.frame.state, exit.instruction)
			if m.frame.state.PC != exit.pc+4 {
				return nil
			}
			entry = x.codeInitialAddress + uintptr(exit.resumeOffset)
		default:
			return fmt.Errorf("block %#08x returned with %s exit status (%d)", x.block.Address, status, uint32(status))
		}
	}
}
