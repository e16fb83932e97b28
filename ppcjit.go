// Package ppcjit translates Gekko/Broadway (PowerPC) floating-point instructions into x86-64 code at
// run time and executes them against a guest CPU state.
//
// Instructions without a translator are executed by an Interpreter supplied by the embedder:
//
//	e, err := ppcjit.NewEngine(ppcjit.NewConfig(), interp)
//	...
//	if _, err = e.Compile(0x80003000, words); err != nil { ... }
//	err = e.Run(0x80003000)
package ppcjit

import (
	"errors"
	"fmt"

	"github.com/ppcjit/ppcjit/internal/gekko"
	"github.com/ppcjit/ppcjit/internal/jit64"
	"github.com/ppcjit/ppcjit/internal/jitcache"
)

type (
	// State is the guest CPU state translated code runs against.
	State = gekko.State
	// Instruction is one guest instruction word.
	Instruction = gekko.Instruction
	// Interpreter executes the instructions the translator leaves behind. See Engine.Run.
	Interpreter = jit64.Interpreter
	// Block is the translation of a run of consecutive guest instructions.
	Block = jit64.Block
	// Decision records how one guest instruction of a Block was handled.
	Decision = jit64.Decision
	// FallbackReason tells why an instruction was left to the Interpreter.
	FallbackReason = jit64.FallbackReason
)

var (
	// ErrUnknownSubOpcode is returned by Compile when a translator meets a sub-opcode it has no case
	// for. The block is not translated.
	ErrUnknownSubOpcode = jit64.ErrUnknownSubOpcode
	// ErrUnsupportedPlatform is returned by NewEngine where translated code cannot be executed.
	// Translate works on every platform.
	ErrUnsupportedPlatform = jit64.ErrUnsupportedPlatform
	// ErrNoInterpreter is returned by Run when a block falls back but the Engine has no Interpreter.
	ErrNoInterpreter = jit64.ErrNoInterpreter
	// ErrBlockNotFound is returned by Run when no block was compiled at the address.
	ErrBlockNotFound = errors.New("no block compiled at address")
)

// Translate translates the instruction words starting at the guest address without mapping
// the result executable. A nil config is NewConfig.
func Translate(config *Config, address uint32, words []uint32) (*Block, error) {
	if config == nil {
		config = NewConfig()
	}
	return jit64.Compile(config.options(), address, words)
}

// Engine compiles blocks, caches them by guest address and runs them against one guest State.
// It must not be used concurrently.
type Engine struct {
	config  *Config
	machine *jit64.Machine
	blocks  *jitcache.Cache[*cachedBlock]
}

// cachedBlock implements jitcache.Block.
type cachedBlock struct {
	*jit64.Executable
}

func (b *cachedBlock) Span() (start, end uint32) {
	return b.Block().Address, b.Block().End()
}

func (b *cachedBlock) CodeSize() int {
	return len(b.Block().Code)
}

// NewEngine returns an Engine with a zeroed State. interp may be nil when no compiled block falls back.
func NewEngine(config *Config, interp Interpreter) (*Engine, error) {
	if !jit64.IsSupported() {
		return nil, ErrUnsupportedPlatform
	}
	if config == nil {
		config = NewConfig()
	}
	e := &Engine{config: config, machine: jit64.NewMachine(interp)}
	e.blocks = jitcache.New(int(config.codeCacheSize), e.release)
	return e, nil
}

func (e *Engine) release(b *cachedBlock) {
	if err := b.Close(); err != nil {
		e.config.logger.Error(err, "failed to release block", "address", b.Block().Address)
	}
}

// State returns the guest state. It may be modified between runs.
func (e *Engine) State() *State {
	return e.machine.State()
}

// Compile translates the words starting at the guest address and keeps the result for Run,
// replacing a block previously compiled at the same address.
func (e *Engine) Compile(address uint32, words []uint32) (*Block, error) {
	block, err := jit64.Compile(e.config.options(), address, words)
	if err != nil {
		return nil, err
	}
	x, err := jit64.NewExecutable(block)
	if err != nil {
		return nil, err
	}
	e.blocks.Insert(&cachedBlock{x})
	return block, nil
}

// Run executes the block compiled at the guest address, calling the Interpreter for every
// instruction that was not translated. It returns when the block ends, or as soon as the
// Interpreter moves PC out of the block.
func (e *Engine) Run(address uint32) error {
	b, ok := e.blocks.Lookup(address)
	if !ok {
		return fmt.Errorf("%#08x: %w", address, ErrBlockNotFound)
	}
	e.machine.State().PC = address
	return e.machine.Run(b.Executable)
}

// Invalidate drops every block translated from guest code in [address, address+size), typically
// after the guest wrote to it. It returns the number of dropped blocks.
func (e *Engine) Invalidate(address, size uint32) int {
	return e.blocks.Invalidate(address, size)
}

// Close releases every compiled block. The Engine can still be used afterwards.
func (e *Engine) Close() error {
	e.blocks.Clear()
	return nil
}
