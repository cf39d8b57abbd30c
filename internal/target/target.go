// Package target defines the target-independent interfaces a backend target
// implements (register info, instruction adapter) and the process-wide
// registry mapping target-name strings to factories, per spec §6.
package target

import (
	"nanoc/internal/ir"
	"nanoc/internal/machine"
)

// RegInfo is the ids of sp/ra/zero, argument-passing register lists,
// callee-saved sets, the reserved set, and the full integer/float register
// sets — everything the register allocator and frame lowering need without
// knowing the target's concrete register numbering.
type RegInfo interface {
	SPReg() machine.Register
	RAReg() machine.Register
	ZeroReg() machine.Register

	IntArgRegs() []machine.Register
	FloatArgRegs() []machine.Register

	CalleeSavedInt() []machine.Register
	CalleeSavedFloat() []machine.Register

	Reserved() []machine.Register
	IntRegs() []machine.Register
	FloatRegs() []machine.Register

	// ScratchInt/ScratchFloat name the reserved registers the register
	// allocator shuttles spilled values through around a single reload-use
	// or def-spill pair.
	ScratchInt() machine.Register
	ScratchFloat() machine.Register
}

// InstrAdapter is the register allocator's and PHI eliminator's only window
// into target-specific machine instructions, per spec §4.5.
type InstrAdapter interface {
	IsCall(inst machine.Instruction) bool
	IsReturn(inst machine.Instruction) bool
	IsUncondBranch(inst machine.Instruction) bool
	IsCondBranch(inst machine.Instruction) bool
	ExtractBranchTargets(inst machine.Instruction) []int

	EnumUses(inst machine.Instruction) []machine.Register
	EnumDefs(inst machine.Instruction) []machine.Register
	EnumPhysRegs(inst machine.Instruction) []machine.Register

	ReplaceUse(inst machine.Instruction, from, to machine.Register)
	ReplaceDef(inst machine.Instruction, from, to machine.Register)

	InsertReloadBefore(block *machine.Block, idx int, physReg machine.Register, frameIndex int)
	InsertSpillAfter(block *machine.Block, idx int, physReg machine.Register, frameIndex int)

	// NewMove materializes a register-to-register (or immediate-to-register)
	// copy, used by PHI elimination's parallel-copy resolution.
	NewMove(dst machine.Register, src machine.MachineOperand) machine.Instruction

	// NewUncondBranch builds a bare jump to target, used to populate a
	// freshly split critical-edge block.
	NewUncondBranch(target int) machine.Instruction

	// RedirectBranchTarget rewrites every occurrence of from in inst's
	// branch targets to to, used when splitting a critical edge.
	RedirectBranchTarget(inst machine.Instruction, from, to int)

	// PendingFrameIndex reports whether inst still addresses a frame slot
	// symbolically (set by isel's alloca lowering or the register
	// allocator's spill/reload insertion), and which slot.
	PendingFrameIndex(inst machine.Instruction) (int, bool)

	// ResolveFrameIndex rewrites inst's pending frame-index addressing into
	// the concrete stack-pointer-relative byte offset frame lowering
	// computed.
	ResolveFrameIndex(inst machine.Instruction, offset int64)

	// NewFrameAdjust builds an in-place sp += delta (delta negative to grow
	// the frame), used in the prologue/epilogue.
	NewFrameAdjust(sp machine.Register, delta int64) machine.Instruction

	// NewFrameLoad/NewFrameStore build a plain base+offset load/store used
	// to save and restore the return address and callee-saved registers.
	NewFrameLoad(dst, base machine.Register, offset int64) machine.Instruction
	NewFrameStore(base, src machine.Register, offset int64) machine.Instruction
}

// Target constructs the concrete reg info and instruction adapter and runs
// the full pipeline for one translation unit.
type Target interface {
	RegInfo() RegInfo
	InstrAdapter() InstrAdapter
	RunPipeline(irModule *ir.Module, out OutputWriter) error
}

// OutputWriter is the minimal write surface code emission needs; satisfied
// by *os.File/bytes.Buffer/strings.Builder without pulling io into every
// target package's exported surface.
type OutputWriter interface {
	WriteString(s string) (int, error)
}

type factory func() Target

var registry = make(map[string]factory)

// Register adds name -> factory to the process-wide registry. Idempotent:
// registering the same name twice simply overwrites the factory.
func Register(name string, f factory) {
	registry[name] = f
}

// Lookup constructs a fresh Target for name, or reports ok=false for an
// unknown target — the caller turns that into the fatal "unknown target"
// diagnostic spec §7 requires.
func Lookup(name string) (Target, bool) {
	f, ok := registry[name]
	if !ok {
		return nil, false
	}
	return f(), true
}
