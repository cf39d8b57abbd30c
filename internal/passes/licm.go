package passes

import (
	"nanoc/internal/analysis"
	"nanoc/internal/ir"
)

// LICM hoists loop-invariant instructions to a dedicated preheader. An
// instruction is invariant when every SSA operand is defined outside the
// loop or by an already-invariant instruction inside, and it has no side
// effects — a load is safe only when its pointer is a global the loop never
// stores to and the loop contains no call.
type LICM struct{}

func (*LICM) Name() string { return "licm" }

func (*LICM) RunOnFunction(f *ir.Function, am *analysis.Manager) bool {
	cfg := am.CFG(f)
	li := am.LoopInfo(f)
	changed := false

	defBlock := make(map[ir.Reg]ir.BlockID)
	for _, b := range f.BlocksInOrder() {
		for _, inst := range b.Insts {
			if inst.HasResult {
				defBlock[inst.Result] = b.ID
			}
		}
	}

	for _, loop := range li.Loops {
		if hoistLoop(f, cfg, loop, defBlock) {
			changed = true
		}
	}
	if changed {
		f.RecomputeEdges()
	}
	return changed
}

func hoistLoop(f *ir.Function, cfg *analysis.CFG, loop *analysis.Loop, defBlock map[ir.Reg]ir.BlockID) bool {
	hasCall := false
	storedGlobals := make(map[string]bool)
	for b := range loop.Body {
		block := f.Blocks[b]
		if block == nil {
			continue
		}
		for _, inst := range block.Insts {
			if inst.Op == ir.OpCall {
				hasCall = true
			}
			if inst.Op == ir.OpStore && inst.Operands[0].Kind == ir.OperandSymbol {
				storedGlobals[inst.Operands[0].Symbol] = true
			}
		}
	}

	invariant := make(map[*ir.Instruction]bool)
	for {
		progress := false
		for b := range loop.Body {
			block := f.Blocks[b]
			if block == nil {
				continue
			}
			for _, inst := range block.Insts {
				if invariant[inst] || inst.Op == ir.OpPhi || inst.IsTerminator() {
					continue
				}
				if !isHoistable(inst, hasCall, storedGlobals) {
					continue
				}
				allOutside := true
				for _, u := range inst.Uses() {
					if db, ok := defBlock[u]; ok && loop.Body[db] {
						srcInst := findDef(f, db, u)
						if srcInst == nil || !invariant[srcInst] {
							allOutside = false
							break
						}
					}
				}
				if allOutside {
					invariant[inst] = true
					progress = true
				}
			}
		}
		if !progress {
			break
		}
	}

	if len(invariant) == 0 {
		return false
	}

	preheader := insertPreheader(f, cfg, loop)

	for _, b := range loopOrder(f, loop) {
		block := f.Blocks[b]
		if block == nil {
			continue
		}
		var kept []*ir.Instruction
		for _, inst := range block.Insts {
			if invariant[inst] {
				preheader.InsertBeforeTerminator(inst)
				continue
			}
			kept = append(kept, inst)
		}
		block.Insts = kept
	}
	return true
}

func isHoistable(inst *ir.Instruction, hasCall bool, storedGlobals map[string]bool) bool {
	switch inst.Op {
	case ir.OpStore, ir.OpCall, ir.OpAlloca:
		return false
	case ir.OpLoad:
		if hasCall {
			return false
		}
		if inst.Operands[0].Kind != ir.OperandSymbol {
			return false
		}
		return !storedGlobals[inst.Operands[0].Symbol]
	default:
		return inst.HasResult
	}
}

func findDef(f *ir.Function, b ir.BlockID, r ir.Reg) *ir.Instruction {
	block := f.Blocks[b]
	if block == nil {
		return nil
	}
	for _, inst := range block.Insts {
		if inst.HasResult && inst.Result == r {
			return inst
		}
	}
	return nil
}

// insertPreheader creates a fresh block jumping unconditionally to the
// loop header, redirects every non-latch predecessor of the header to it
// instead, and fixes up the header's phi incoming labels accordingly.
func insertPreheader(f *ir.Function, cfg *analysis.CFG, loop *analysis.Loop) *ir.Block {
	preheader := f.NewBlock()
	preheader.Insts = append(preheader.Insts, ir.NewBrUncond(loop.Header))

	nonLatch := loop.NonLatchPreds(cfg)
	for _, p := range nonLatch {
		pb := f.Blocks[p]
		term := pb.Terminator()
		if term == nil {
			continue
		}
		switch term.Op {
		case ir.OpBrUncond:
			term.Operands[0] = ir.LabelOperand(preheader.ID)
		case ir.OpBrCond:
			if term.Operands[1].Label == loop.Header {
				term.Operands[1] = ir.LabelOperand(preheader.ID)
			}
			if term.Operands[2].Label == loop.Header {
				term.Operands[2] = ir.LabelOperand(preheader.ID)
			}
		}
	}

	header := f.Blocks[loop.Header]
	for _, phi := range header.Phis() {
		for idx, pb := range phi.PhiBlocks {
			for _, np := range nonLatch {
				if pb == np {
					phi.PhiBlocks[idx] = preheader.ID
				}
			}
		}
	}

	return preheader
}

// loopOrder returns the loop's body blocks in the function's stable order.
func loopOrder(f *ir.Function, loop *analysis.Loop) []ir.BlockID {
	var out []ir.BlockID
	for _, id := range f.Order {
		if loop.Body[id] {
			out = append(out, id)
		}
	}
	return out
}
