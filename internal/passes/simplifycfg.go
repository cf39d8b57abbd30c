package passes

import (
	"nanoc/internal/analysis"
	"nanoc/internal/ir"
)

// SimplifyCFG deletes, to fixpoint, blocks whose single instruction is an
// unconditional jump to another block, provided no phi in the target
// references the deleted block — redirecting every predecessor's branch to
// the target instead.
type SimplifyCFG struct{}

func (*SimplifyCFG) Name() string { return "simplifycfg" }

func (*SimplifyCFG) RunOnFunction(f *ir.Function, am *analysis.Manager) bool {
	f.RecomputeEdges()
	changed := false

	for {
		roundChanged := false
		for _, b := range f.BlocksInOrder() {
			if b.ID == 0 {
				continue // entry is never elided
			}
			if len(b.Insts) != 1 || b.Insts[0].Op != ir.OpBrUncond {
				continue
			}
			target := b.Insts[0].Operands[0].Label
			if target == b.ID {
				continue
			}
			if targetHasPhiReferencing(f, target, b.ID) {
				continue
			}
			redirectPredecessors(f, b.ID, target)
			f.RemoveBlock(b.ID)
			roundChanged = true
		}
		if !roundChanged {
			break
		}
		changed = true
		f.RecomputeEdges()
	}

	return changed
}

func targetHasPhiReferencing(f *ir.Function, target, pred ir.BlockID) bool {
	block := f.Blocks[target]
	if block == nil {
		return false
	}
	for _, phi := range block.Phis() {
		if _, ok := phi.IncomingFrom(pred); ok {
			return true
		}
	}
	return false
}

func redirectPredecessors(f *ir.Function, from, to ir.BlockID) {
	for _, b := range f.BlocksInOrder() {
		if b.ID == from {
			continue
		}
		term := b.Terminator()
		if term == nil {
			continue
		}
		switch term.Op {
		case ir.OpBrUncond:
			if term.Operands[0].Label == from {
				term.Operands[0] = ir.LabelOperand(to)
			}
		case ir.OpBrCond:
			if term.Operands[1].Label == from {
				term.Operands[1] = ir.LabelOperand(to)
			}
			if term.Operands[2].Label == from {
				term.Operands[2] = ir.LabelOperand(to)
			}
		}
	}
}
