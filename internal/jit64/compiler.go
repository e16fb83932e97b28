package jit64

// This file implements the block compiler which owns the golang-asm builder.
// Please refer to https://www.felixcloutier.com/x86/index.html
// if unfamiliar with amd64 instructions used here.
// Note that x86 pkg used here prefixes all the instructions with "A"
// e.g. MOVSD will be given as x86.AMOVSD.
// For the SSE arithmetic, Prog.From is the source and Prog.To the destination.

import (
	"fmt"

	"github.com/go-logr/logr"
	asm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/ppcjit/ppcjit/internal/gekko"
)

// Block is the translation of a run of consecutive guest instructions.
type Block struct {
	// Address is the guest address of the first instruction.
	Address uint32
	// Decisions holds one entry per guest instruction, in order.
	Decisions []Decision
	// Code is the assembled host code. It is not executable until mapped by NewExecutable.
	Code []byte
	// exits are the interpreter fallback exits, indexed by exit site id.
	exits []blockExit
}

// Decision records how one guest instruction was handled.
type Decision struct {
	PC          uint32
	Instruction gekko.Instruction
	// Fallback is empty when the instruction was translated natively.
	Fallback FallbackReason
}

// Native returns true if the instruction was translated to host code.
func (d Decision) Native() bool {
	return d.Fallback == ""
}

// blockExit is a point where translated code returns to Go so the interpreter runs one instruction.
type blockExit struct {
	pc          uint32
	instruction gekko.Instruction
	// resumeOffset is the offset within Block.Code where execution continues afterwards.
	resumeOffset int64
}

// Size returns the number of guest bytes the block covers.
func (b *Block) Size() uint32 {
	return uint32(len(b.Decisions)) * 4
}

// End returns the guest address right after the last instruction of the block.
func (b *Block) End() uint32 {
	return b.Address + b.Size()
}

// Fallbacks returns the decisions of the instructions left to the interpreter.
func (b *Block) Fallbacks() (ret []Decision) {
	for _, d := range b.Decisions {
		if !d.Native() {
			ret = append(ret, d)
		}
	}
	return
}

// Compile translates the instruction words starting at the guest address into host code.
//
// A nil opts is DefaultOptions. Compile fails only for translator defects (see ErrUnknownSubOpcode):
// instructions the translator declines become interpreter fallbacks.
func Compile(opts *Options, address uint32, words []uint32) (*Block, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	c, err := newCompiler(opts)
	if err != nil {
		return nil, err
	}
	return c.compileBlock(address, words)
}

type compiler struct {
	opts *Options
	log  logr.Logger
	// Set a jmp kind instruction where you want to set the next coming
	// instruction as the destination of the jmp instruction.
	setJmpOrigins []*obj.Prog
	builder       *asm.Builder
	fpr           *fprCache
	// exits are the fallback exits emitted so far.
	exits []*exitSite
	// pendingResumes are exits whose resume point is the next instruction added.
	pendingResumes []*exitSite
}

type exitSite struct {
	pc          uint32
	instruction gekko.Instruction
	resume      *obj.Prog
}

func newCompiler(opts *Options) (*compiler, error) {
	// We can choose arbitrary number instead of 1024 which indicates the cache size in the compiler.
	b, err := asm.NewBuilder("amd64", 1024)
	if err != nil {
		return nil, fmt.Errorf("failed to create a new assembly builder: %w", err)
	}
	c := &compiler{opts: opts, log: opts.Logger, builder: b}
	c.fpr = newFPRCache(c)
	return c, nil
}

func (c *compiler) compileBlock(address uint32, words []uint32) (*Block, error) {
	block := &Block{Address: address, Decisions: make([]Decision, 0, len(words))}
	for i, w := range words {
		inst := gekko.Instruction(w)
		pc := address + uint32(i)*4

		reason, err := c.compileInstruction(inst)
		if err != nil {
			return nil, fmt.Errorf("failed to translate %s at %#08x: %w", inst, pc, err)
		}
		if reason != "" {
			c.log.V(1).Info("falling back to the interpreter", "pc", pc, "instruction", inst.String(), "reason", string(reason))
			c.emitFallbackExit(pc, inst)
		}
		block.Decisions = append(block.Decisions, Decision{PC: pc, Instruction: inst, Fallback: reason})
	}
	c.emitBlockEpilogue(block.End())

	block.Code = c.builder.Assemble()
	for _, e := range c.exits {
		block.exits = append(block.exits, blockExit{pc: e.pc, instruction: e.instruction, resumeOffset: e.resume.Pc})
	}
	return block, nil
}

// root returns the first instruction added to the builder, or nil.
func (c *compiler) root() *obj.Prog {
	return c.builder.Root()
}

func (c *compiler) addInstruction(prog *obj.Prog) {
	c.builder.AddInstruction(prog)
	for _, origin := range c.setJmpOrigins {
		origin.To.SetTarget(prog)
	}
	c.setJmpOrigins = nil
	for _, e := range c.pendingResumes {
		e.resume = prog
	}
	c.pendingResumes = nil
}

func (c *compiler) addSetJmpOrigins(progs ...*obj.Prog) {
	c.setJmpOrigins = append(c.setJmpOrigins, progs...)
}

func (c *compiler) newProg() (prog *obj.Prog) {
	prog = c.builder.NewProg()
	return
}

// emitFallbackExit writes every cached register back, then returns to Go so the interpreter
// executes inst. Execution resumes right after this exit.
func (c *compiler) emitFallbackExit(pc uint32, inst gekko.Instruction) {
	c.fpr.Flush()
	c.emitConstToFrame(x86.AMOVL, int64(pc), gekko.StatePCOffset)
	c.emitConstToFrame(x86.AMOVL, int64(len(c.exits)), frameExitSiteOffset)
	c.setExitStatus(exitStatusFallback)
	c.emitReturn()

	site := &exitSite{pc: pc, instruction: inst}
	c.exits = append(c.exits, site)
	c.pendingResumes = append(c.pendingResumes, site)
}

// emitBlockEpilogue writes every cached register back and returns to Go with the next guest address in PC.
func (c *compiler) emitBlockEpilogue(next uint32) {
	c.fpr.Flush()
	c.emitConstToFrame(x86.AMOVL, int64(next), gekko.StatePCOffset)
	c.setExitStatus(exitStatusReturned)
	c.emitReturn()
}

func (c *compiler) setExitStatus(status exitStatus) {
	c.emitConstToFrame(x86.AMOVL, int64(status), frameExitStatusOffset)
}

func (c *compiler) emitReturn() {
	ret := c.newProg()
	ret.As = obj.ARET
	c.addInstruction(ret)
}

// emitLoadFPR implements fprEmitter.emitLoadFPR. Both lanes are loaded.
func (c *compiler) emitLoadFPR(guest int, reg int16) {
	c.emitFrameToReg(x86.AMOVUPD, gekko.PSOffset(guest), reg)
}

// emitStoreFPR implements fprEmitter.emitStoreFPR. Both lanes are stored.
func (c *compiler) emitStoreFPR(reg int16, guest int) {
	c.emitRegToFrame(x86.AMOVUPD, reg, gekko.PSOffset(guest))
}

// emitOperandToReg emits "instruction src, dst" in Go assembler order.
func (c *compiler) emitOperandToReg(instruction obj.As, src operand, dst int16) {
	prog := c.newProg()
	prog.As = instruction
	src.setTo(&prog.From)
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	c.addInstruction(prog)
}

func (c *compiler) emitRegToOperand(instruction obj.As, src int16, dst operand) {
	prog := c.newProg()
	prog.As = instruction
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = src
	dst.setTo(&prog.To)
	c.addInstruction(prog)
}

func (c *compiler) emitRegToReg(instruction obj.As, src, dst int16) {
	prog := c.newProg()
	prog.As = instruction
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = src
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	c.addInstruction(prog)
}

func (c *compiler) emitFrameToReg(instruction obj.As, offset int64, dst int16) {
	prog := c.newProg()
	prog.As = instruction
	prog.From.Type = obj.TYPE_MEM
	prog.From.Reg = reservedRegisterForFrame
	prog.From.Offset = offset
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	c.addInstruction(prog)
}

func (c *compiler) emitRegToFrame(instruction obj.As, src int16, offset int64) {
	prog := c.newProg()
	prog.As = instruction
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = src
	prog.To.Type = obj.TYPE_MEM
	prog.To.Reg = reservedRegisterForFrame
	prog.To.Offset = offset
	c.addInstruction(prog)
}

func (c *compiler) emitConstToFrame(instruction obj.As, value, offset int64) {
	prog := c.newProg()
	prog.As = instruction
	prog.From.Type = obj.TYPE_CONST
	prog.From.Offset = value
	prog.To.Type = obj.TYPE_MEM
	prog.To.Reg = reservedRegisterForFrame
	prog.To.Offset = offset
	c.addInstruction(prog)
}

func (c *compiler) emitConstToReg(instruction obj.As, value int64, dst int16) {
	prog := c.newProg()
	prog.As = instruction
	prog.From.Type = obj.TYPE_CONST
	prog.From.Offset = value
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	c.addInstruction(prog)
}

// emitJump emits a (conditional) jump whose target is set later with addSetJmpOrigins.
func (c *compiler) emitJump(instruction obj.As) *obj.Prog {
	prog := c.newProg()
	prog.As = instruction
	prog.To.Type = obj.TYPE_BRANCH
	c.addInstruction(prog)
	return prog
}
