package passes

import (
	"nanoc/internal/analysis"
	"nanoc/internal/ir"
)

// UnifyReturn consolidates multiple returns into one: a dedicated exit
// block with a phi over return values (for non-void functions), with every
// original return rewritten as a jump to it.
type UnifyReturn struct{}

func (*UnifyReturn) Name() string { return "unifyreturn" }

func (*UnifyReturn) RunOnFunction(f *ir.Function, am *analysis.Manager) bool {
	var rets []*ir.Instruction
	var retBlocks []ir.BlockID
	for _, b := range f.BlocksInOrder() {
		term := b.Terminator()
		if term != nil && term.Op == ir.OpRet {
			rets = append(rets, term)
			retBlocks = append(retBlocks, b.ID)
		}
	}
	if len(rets) <= 1 {
		return false
	}

	exit := f.NewBlock()
	isVoid := f.ReturnType.Kind == ir.KindVoid

	var resultPhi *ir.Instruction
	if !isVoid {
		resultPhi = ir.NewPhi(f.NewReg(f.ReturnType), f.ReturnType)
		exit.Insts = append(exit.Insts, resultPhi)
	}

	for idx, term := range rets {
		b := f.Blocks[retBlocks[idx]]
		if !isVoid && len(term.Operands) > 0 {
			resultPhi.AddIncoming(retBlocks[idx], term.Operands[0])
		}
		b.Insts[len(b.Insts)-1] = ir.NewBrUncond(exit.ID)
	}

	if isVoid {
		exit.Insts = append(exit.Insts, ir.NewRet(nil))
	} else {
		val := ir.RegOperand(resultPhi.Result, f.ReturnType)
		exit.Insts = append(exit.Insts, ir.NewRet(&val))
	}

	f.RecomputeEdges()
	return true
}
