package passes

import (
	"fmt"
	"strings"

	"nanoc/internal/analysis"
	"nanoc/internal/ir"
)

// CSE eliminates redundant pure expressions in two stages: a block-local
// pass, then a dominator-tree-global pass where the prior definition
// dominates the current use. Loads, stores, calls, allocas, and phis are
// never candidates.
type CSE struct{}

func (*CSE) Name() string { return "cse" }

func isCSECandidate(op ir.Opcode) bool {
	switch op {
	case ir.OpLoad, ir.OpStore, ir.OpCall, ir.OpAlloca, ir.OpPhi,
		ir.OpBrUncond, ir.OpBrCond, ir.OpRet:
		return false
	default:
		return true
	}
}

// exprKey canonicalizes an instruction's kind, data type, and operands,
// sorting commutative operands and swapping comparison predicates to match,
// so `a+b` and `b+a` (or `a<b` and `b>a`) collide on the same key.
func exprKey(inst *ir.Instruction) string {
	ops := make([]string, len(inst.Operands))
	for i, o := range inst.Operands {
		ops[i] = o.String()
	}
	pred := inst.Pred
	if inst.Op.IsCommutative() && len(ops) == 2 && ops[0] > ops[1] {
		ops[0], ops[1] = ops[1], ops[0]
	} else if inst.Op == ir.OpICmp && len(ops) == 2 && ops[0] > ops[1] {
		ops[0], ops[1] = ops[1], ops[0]
		pred = pred.Swapped()
	}
	return fmt.Sprintf("%d|%d|%s|%s", inst.Op, pred, inst.Type, strings.Join(ops, ","))
}

func (p *CSE) RunOnFunction(f *ir.Function, am *analysis.Manager) bool {
	changed := p.blockLocal(f)
	if p.globalDomTree(f, am) {
		changed = true
	}
	return changed
}

func (p *CSE) blockLocal(f *ir.Function) bool {
	changed := false
	for _, b := range f.BlocksInOrder() {
		seen := make(map[string]ir.Reg)
		replace := make(map[ir.Reg]ir.Reg)
		var kept []*ir.Instruction
		for _, inst := range b.Insts {
			applyRegReplacements(inst, replace)
			if inst.HasResult && isCSECandidate(inst.Op) {
				key := exprKey(inst)
				if r, ok := seen[key]; ok {
					replace[inst.Result] = r
					changed = true
					continue
				}
				seen[key] = inst.Result
			}
			kept = append(kept, inst)
		}
		b.Insts = kept
	}
	return changed
}

// globalDomTree redoes the block-local walk but allows a match from any
// dominating block, not just the current one.
func (p *CSE) globalDomTree(f *ir.Function, am *analysis.Manager) bool {
	dom := am.Dominance(f)
	changed := false
	available := make(map[string]ir.Reg)

	var walk func(b ir.BlockID)
	walk = func(b ir.BlockID) {
		block := f.Blocks[b]
		if block == nil {
			return
		}
		var added []string
		var kept []*ir.Instruction
		for _, inst := range block.Insts {
			if inst.HasResult && isCSECandidate(inst.Op) {
				key := exprKey(inst)
				if r, ok := available[key]; ok {
					replaceRegEverywhere(f, inst.Result, r)
					changed = true
					continue
				}
				available[key] = inst.Result
				added = append(added, key)
			}
			kept = append(kept, inst)
		}
		block.Insts = kept

		for _, child := range dom.Children[b] {
			walk(child)
		}
		for _, key := range added {
			delete(available, key)
		}
	}
	walk(0)
	return changed
}

func applyRegReplacements(inst *ir.Instruction, replace map[ir.Reg]ir.Reg) {
	for idx, o := range inst.Operands {
		if o.Kind == ir.OperandReg {
			if r, ok := replace[o.Reg]; ok {
				inst.Operands[idx].Reg = r
			}
		}
	}
	for idx, o := range inst.PhiOperand {
		if o.Kind == ir.OperandReg {
			if r, ok := replace[o.Reg]; ok {
				inst.PhiOperand[idx].Reg = r
			}
		}
	}
}

func replaceRegEverywhere(f *ir.Function, from, to ir.Reg) {
	for _, b := range f.BlocksInOrder() {
		for _, inst := range b.Insts {
			for idx, o := range inst.Operands {
				if o.Kind == ir.OperandReg && o.Reg == from {
					inst.Operands[idx].Reg = to
				}
			}
			for idx, o := range inst.PhiOperand {
				if o.Kind == ir.OperandReg && o.Reg == from {
					inst.PhiOperand[idx].Reg = to
				}
			}
		}
	}
}
