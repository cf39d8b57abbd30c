package passes

import (
	"nanoc/internal/analysis"
	"nanoc/internal/ir"
)

// DCE deletes, to fixpoint, any producing instruction whose result has zero
// uses and which lacks side effects.
type DCE struct{}

func (*DCE) Name() string { return "dce" }

func (*DCE) RunOnFunction(f *ir.Function, am *analysis.Manager) bool {
	changed := false
	for {
		useCount := countUses(f)
		roundChanged := false
		for _, b := range f.BlocksInOrder() {
			var kept []*ir.Instruction
			for _, inst := range b.Insts {
				if inst.HasResult && !inst.Op.HasSideEffects() && useCount[inst.Result] == 0 {
					roundChanged = true
					continue
				}
				kept = append(kept, inst)
			}
			b.Insts = kept
		}
		if !roundChanged {
			break
		}
		changed = true
	}
	return changed
}

func countUses(f *ir.Function) map[ir.Reg]int {
	counts := make(map[ir.Reg]int)
	for _, b := range f.BlocksInOrder() {
		for _, inst := range b.Insts {
			for _, u := range inst.Uses() {
				counts[u]++
			}
		}
	}
	return counts
}
