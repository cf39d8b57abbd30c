package isel

import (
	"nanoc/internal/ir"
	"nanoc/internal/machine"
)

// Selector is the target-specific pattern-selection callback both paths
// drive: given one IR instruction (already legalized, in the case of the
// DAG path) it appends the machine instructions realizing it to mb. Phi
// instructions never reach Selector — both drivers lower them to a
// machine.Phi pseudo directly, since that lowering is target-independent.
type Selector interface {
	SelectInstruction(mb *machine.Block, ctx *FuncContext, inst *ir.Instruction)
}

// RunDirect walks f's blocks and instructions in program order, selecting
// each immediately — the simpler of the two paths, with no DAG construction
// or scheduling, at the cost of never reordering instructions for register
// pressure.
func RunDirect(f *ir.Function, ctx *FuncContext, sel Selector) {
	SetupParameters(f, ctx)
	CollectAllocas(f, ctx)
	PrepareBlocks(f, ctx)
	for _, b := range f.BlocksInOrder() {
		mb := ctx.MFunc.Blocks[ctx.IRToM[b.ID]]
		for _, inst := range b.Insts {
			if inst.Op == ir.OpPhi {
				selectPhi(mb, ctx, inst)
				continue
			}
			sel.SelectInstruction(mb, ctx, inst)
		}
	}
}

// RunDAG builds, legalizes, and schedules one selection DAG per block, then
// selects each scheduled node in schedule order — letting the scheduler's
// post-order traversal (data- and token-dependency respecting) place
// instructions in an order that can differ from the IR's program order
// when that shortens live ranges.
func RunDAG(f *ir.Function, ctx *FuncContext, sel Selector) {
	SetupParameters(f, ctx)
	CollectAllocas(f, ctx)
	PrepareBlocks(f, ctx)
	for _, b := range f.BlocksInOrder() {
		mb := ctx.MFunc.Blocks[ctx.IRToM[b.ID]]
		dag := BuildDAG(b)
		Legalize(dag)
		order := Schedule(dag)

		bctx := NewBlockContext()
		for _, n := range order {
			if bctx.Selected[n] || n.Inst == nil {
				continue
			}
			bctx.Selected[n] = true
			if n.Inst.Op == ir.OpPhi {
				selectPhi(mb, ctx, n.Inst)
				continue
			}
			sel.SelectInstruction(mb, ctx, n.Inst)
		}
	}
}

func selectPhi(mb *machine.Block, ctx *FuncContext, inst *ir.Instruction) {
	phi := &machine.Phi{Dest: ctx.VRegFor(inst.Result, inst.Type)}
	for i, pb := range inst.PhiBlocks {
		phi.AddIncoming(ctx.IRToM[pb], ResolveOperand(ctx, inst.PhiOperand[i]))
	}
	mb.Append(phi)
}
