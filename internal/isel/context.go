// Package isel implements instruction selection: lowering internal/ir into
// internal/machine. Two equivalent paths are provided — a selection-DAG
// path (dag.go, legalize.go, schedule.go, driven through RunDAG) and a
// direct-IR path (RunDirect, in selector.go) — both sharing the
// per-function/per-block context defined here and both driven through the
// target-supplied Selector.
package isel

import (
	"nanoc/internal/ir"
	"nanoc/internal/machine"
)

// FuncContext is shared across both selection paths and across every block
// of one function: the irReg->vReg map must be function-wide so a phi's
// incoming value, selected in a different block, resolves to the same
// virtual register; the alloca->frame-index map is populated by a pre-pass
// over the IR function's AllocaInsts before any block is selected.
type FuncContext struct {
	MFunc    *machine.Function
	VReg     map[ir.Reg]machine.Register
	AllocaFI map[ir.Reg]int
	IRToM    map[ir.BlockID]int
}

func NewFuncContext(mf *machine.Function) *FuncContext {
	return &FuncContext{
		MFunc:    mf,
		VReg:     make(map[ir.Reg]machine.Register),
		AllocaFI: make(map[ir.Reg]int),
		IRToM:    make(map[ir.BlockID]int),
	}
}

// PrepareBlocks creates one machine block per IR block, preserving the IR's
// order, before any instruction is selected — both selection paths need
// every branch target's machine block id available up front.
func PrepareBlocks(f *ir.Function, ctx *FuncContext) {
	for _, b := range f.BlocksInOrder() {
		mb := ctx.MFunc.NewBlock()
		ctx.IRToM[b.ID] = mb.ID
	}
}

// ResolveOperand turns an ir.Operand into the equivalent MachineOperand:
// registers resolve through VRegFor, labels through IRToM, everything else
// (immediates, symbols) carries over unchanged.
func ResolveOperand(ctx *FuncContext, o ir.Operand) machine.MachineOperand {
	switch o.Kind {
	case ir.OperandReg:
		return machine.RegOperand(ctx.VRegFor(o.Reg, o.Type))
	case ir.OperandImmInt:
		return machine.ImmIntOperand(o.ImmInt)
	case ir.OperandImmFloat:
		return machine.ImmFloatOperand(o.ImmF32)
	case ir.OperandSymbol:
		return machine.SymbolOperand(o.Symbol)
	case ir.OperandLabel:
		return machine.LabelOperand(ctx.IRToM[o.Label])
	default:
		return machine.ImmIntOperand(0)
	}
}

// VRegFor returns the virtual register standing in for irReg, materializing
// a fresh one of the right class on first use.
func (c *FuncContext) VRegFor(r ir.Reg, t ir.DataType) machine.Register {
	if v, ok := c.VReg[r]; ok {
		return v
	}
	class := machine.ClassInt
	if t.Kind == ir.KindFloating {
		class = machine.ClassFloat
	}
	v := c.MFunc.VRegs.New(class)
	c.VReg[r] = v
	return v
}

// CollectAllocas walks f.AllocaInsts, assigning each a fresh frame-index
// slot in MFunc's frame info and recording it in AllocaFI — the pre-pass
// both selection paths run before touching any block.
func CollectAllocas(f *ir.Function, ctx *FuncContext) {
	for _, inst := range f.AllocaInsts {
		size := int(inst.AllocaCount) * elementSize(inst.Type)
		if size <= 0 {
			size = 8
		}
		idx := ctx.MFunc.FrameInfo.NewSpillSlot(align(size, 8))
		ctx.AllocaFI[inst.Result] = idx
	}
}

func elementSize(t ir.DataType) int {
	switch t.Kind {
	case ir.KindPointer:
		return 8
	default:
		return t.Width / 8
	}
}

func align(n, to int) int {
	if n%to == 0 {
		return n
	}
	return n + (to - n%to)
}

// SetupParameters materializes a virtual register for each IR parameter and
// records it on the machine function in order, so the target's calling-
// convention pre-coloring (arg registers at entry) has a stable list to
// walk during register allocation.
func SetupParameters(f *ir.Function, ctx *FuncContext) {
	for i, p := range f.Params {
		ctx.MFunc.Params = append(ctx.MFunc.Params, ctx.VRegFor(p, f.ParamTypes[i]))
	}
}

// BlockContext is reset per block: it holds nothing in the direct-IR path
// (selection there is already one-IR-instruction-to-N-machine-instructions,
// in program order) but the DAG path keys per-node results into it.
type BlockContext struct {
	NodeToVReg map[*SDNode]machine.Register
	Selected   map[*SDNode]bool
}

func NewBlockContext() *BlockContext {
	return &BlockContext{NodeToVReg: make(map[*SDNode]machine.Register), Selected: make(map[*SDNode]bool)}
}
