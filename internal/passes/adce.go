package passes

import (
	"nanoc/internal/analysis"
	"nanoc/internal/ir"
)

// ADCE is aggressive DCE: seed live with side-effecting instructions and the
// return value, mark transitively through uses, and also keep the
// conditional branch of every block that some live instruction is control-
// dependent on — control dependence derived from the post-dominance
// frontier. When a branch becomes dead it is rewritten to jump to its
// nearest post-dominator; phi-incoming entries from blocks that no longer
// reach the join are erased.
type ADCE struct{}

func (*ADCE) Name() string { return "adce" }

func (*ADCE) RunOnFunction(f *ir.Function, am *analysis.Manager) bool {
	cfg := am.CFG(f)
	pdom := am.PostDominance(f)

	live := make(map[*ir.Instruction]bool)
	defOf := make(map[ir.Reg]*ir.Instruction)
	blockOf := make(map[*ir.Instruction]ir.BlockID)
	var worklist []*ir.Instruction

	for _, b := range f.BlocksInOrder() {
		for _, inst := range b.Insts {
			blockOf[inst] = b.ID
			if inst.HasResult {
				defOf[inst.Result] = inst
			}
			if inst.Op.HasSideEffects() {
				if !live[inst] {
					live[inst] = true
					worklist = append(worklist, inst)
				}
			}
		}
	}

	controlDepsOf := buildControlDependence(cfg, pdom, f)

	for len(worklist) > 0 {
		inst := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, u := range inst.Uses() {
			if d, ok := defOf[u]; ok && !live[d] {
				live[d] = true
				worklist = append(worklist, d)
			}
		}
		for _, dep := range controlDepsOf[blockOf[inst]] {
			term := f.Blocks[dep].Terminator()
			if term != nil && !live[term] {
				live[term] = true
				worklist = append(worklist, term)
			}
		}
	}

	changed := false
	for _, b := range f.BlocksInOrder() {
		var kept []*ir.Instruction
		for _, inst := range b.Insts {
			if inst.IsTerminator() || live[inst] {
				kept = append(kept, inst)
				continue
			}
			changed = true
		}
		b.Insts = kept

		term := b.Terminator()
		if term != nil && term.Op == ir.OpBrCond && !live[term] {
			np := nearestPostDominatorTarget(pdom, b.ID, term)
			b.Insts[len(b.Insts)-1] = ir.NewBrUncond(np)
			changed = true
		}
	}

	if changed {
		f.RecomputeEdges()
		pruneDanglingPhiIncoming(f, cfg)
	}

	return changed
}

// buildControlDependence maps each block to the set of blocks whose
// terminator it is control-dependent on: b is control-dependent on c iff c
// is in b's post-dominance frontier (b post-dominates some successor of c,
// but does not strictly post-dominate c).
func buildControlDependence(cfg *analysis.CFG, pdom *analysis.PostDomInfo, f *ir.Function) map[ir.BlockID][]ir.BlockID {
	deps := make(map[ir.BlockID][]ir.BlockID)
	for _, b := range cfg.Nodes() {
		deps[b] = append(deps[b], pdom.Frontier[b]...)
	}
	return deps
}

// nearestPostDominatorTarget picks a successor to keep reachable when a
// br_cond becomes unconditional: its immediate post-dominator if defined
// over the real graph, else the first successor.
func nearestPostDominatorTarget(pdom *analysis.PostDomInfo, b ir.BlockID, term *ir.Instruction) ir.BlockID {
	if idom, ok := pdom.IDom[b]; ok && idom >= 0 && idom != b {
		return idom
	}
	return term.Operands[1].Label
}

// pruneDanglingPhiIncoming drops phi incoming entries whose predecessor
// label is no longer an actual CFG predecessor.
func pruneDanglingPhiIncoming(f *ir.Function, cfg *analysis.CFG) {
	for _, b := range f.BlocksInOrder() {
		preds := make(map[ir.BlockID]bool)
		for _, p := range b.Preds {
			preds[p] = true
		}
		for _, inst := range b.Phis() {
			var keepB []ir.BlockID
			var keepO []ir.Operand
			for idx, pb := range inst.PhiBlocks {
				if preds[pb] {
					keepB = append(keepB, pb)
					keepO = append(keepO, inst.PhiOperand[idx])
				}
			}
			inst.PhiBlocks = keepB
			inst.PhiOperand = keepO
		}
	}
}
