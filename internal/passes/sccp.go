package passes

import (
	"nanoc/internal/analysis"
	"nanoc/internal/ir"
)

// latticeKind is the three-point SCCP lattice: UNDEF ⊑ CONST(v) ⊑ OVERDEFINED.
type latticeKind int

const (
	latticeUndef latticeKind = iota
	latticeConst
	latticeOverdefined
)

type latticeValue struct {
	kind latticeKind
	val  ir.Operand
}

func meet(a, b latticeValue) latticeValue {
	if a.kind == latticeUndef {
		return b
	}
	if b.kind == latticeUndef {
		return a
	}
	if a.kind == latticeOverdefined || b.kind == latticeOverdefined {
		return latticeValue{kind: latticeOverdefined}
	}
	if a.val.Kind == b.val.Kind && a.val.ImmInt == b.val.ImmInt && a.val.ImmF32 == b.val.ImmF32 {
		return a
	}
	return latticeValue{kind: latticeOverdefined}
}

// SCCP is sparse conditional constant propagation: block/edge reachability
// and per-register lattice values are driven to fixpoint by block and
// instruction worklists, then CONST-valued uses are folded to immediates
// and CONST-conditioned branches are rewritten unconditional.
type SCCP struct{}

func (*SCCP) Name() string { return "sccp" }

func (p *SCCP) RunOnFunction(f *ir.Function, am *analysis.Manager) bool {
	reachableBlock := map[ir.BlockID]bool{0: true}
	reachableEdge := make(map[[2]ir.BlockID]bool)
	values := make(map[ir.Reg]latticeValue)

	instBlock := make(map[*ir.Instruction]ir.BlockID)
	uses := make(map[ir.Reg][]*ir.Instruction)
	for _, b := range f.BlocksInOrder() {
		for _, inst := range b.Insts {
			instBlock[inst] = b.ID
			for _, u := range inst.Uses() {
				uses[u] = append(uses[u], inst)
			}
		}
	}
	for _, param := range f.Params {
		values[param] = latticeValue{kind: latticeOverdefined}
	}

	var blockWL []ir.BlockID
	var instWorklist []*ir.Instruction
	blockWL = append(blockWL, 0)

	markOverdefined := func(r ir.Reg) {
		if values[r].kind != latticeOverdefined {
			values[r] = latticeValue{kind: latticeOverdefined}
			instWorklist = append(instWorklist, uses[r]...)
		}
	}
	markConst := func(r ir.Reg, v ir.Operand) {
		cur := values[r]
		next := meet(cur, latticeValue{kind: latticeConst, val: v})
		if next != cur {
			values[r] = next
			instWorklist = append(instWorklist, uses[r]...)
		}
	}

	resolve := func(o ir.Operand) latticeValue {
		if o.Kind != ir.OperandReg {
			return latticeValue{kind: latticeConst, val: o}
		}
		if lv, ok := values[o.Reg]; ok {
			return lv
		}
		return latticeValue{kind: latticeUndef}
	}

	visitInst := func(inst *ir.Instruction, blockID ir.BlockID) {
		switch inst.Op {
		case ir.OpPhi:
			merged := latticeValue{kind: latticeUndef}
			for idx, pb := range inst.PhiBlocks {
				if !reachableEdge[[2]ir.BlockID{pb, blockID}] {
					continue
				}
				merged = meet(merged, resolve(inst.PhiOperand[idx]))
			}
			if merged.kind == latticeOverdefined {
				markOverdefined(inst.Result)
			} else if merged.kind == latticeConst {
				markConst(inst.Result, merged.val)
			}
		case ir.OpBrCond:
			cond := resolve(inst.Operands[0])
			trueB, falseB := inst.Operands[1].Label, inst.Operands[2].Label
			switch cond.kind {
			case latticeConst:
				taken := trueB
				if cond.val.ImmInt == 0 {
					taken = falseB
				}
				if !reachableEdge[[2]ir.BlockID{blockID, taken}] {
					reachableEdge[[2]ir.BlockID{blockID, taken}] = true
					if !reachableBlock[taken] {
						reachableBlock[taken] = true
						blockWL = append(blockWL, taken)
					}
				}
			case latticeOverdefined:
				for _, t := range []ir.BlockID{trueB, falseB} {
					if !reachableEdge[[2]ir.BlockID{blockID, t}] {
						reachableEdge[[2]ir.BlockID{blockID, t}] = true
						if !reachableBlock[t] {
							reachableBlock[t] = true
							blockWL = append(blockWL, t)
						}
					}
				}
			}
		case ir.OpBrUncond:
			t := inst.Operands[0].Label
			if !reachableEdge[[2]ir.BlockID{blockID, t}] {
				reachableEdge[[2]ir.BlockID{blockID, t}] = true
				if !reachableBlock[t] {
					reachableBlock[t] = true
					blockWL = append(blockWL, t)
				}
			}
		case ir.OpRet, ir.OpStore, ir.OpAlloca, ir.OpCall:
			if inst.HasResult {
				markOverdefined(inst.Result)
			}
		default:
			if !inst.HasResult {
				return
			}
			allConst := true
			operands := make([]ir.Operand, 0, len(inst.Operands))
			for _, o := range inst.Operands {
				lv := resolve(o)
				if lv.kind == latticeOverdefined {
					markOverdefined(inst.Result)
					return
				}
				if lv.kind == latticeUndef {
					allConst = false
					continue
				}
				operands = append(operands, lv.val)
			}
			if !allConst {
				return
			}
			if v, ok := foldConstant(inst.Op, inst.Pred, operands); ok {
				markConst(inst.Result, v)
			} else {
				markOverdefined(inst.Result)
			}
		}
	}

	for len(blockWL) > 0 || len(instWorklist) > 0 {
		for len(blockWL) > 0 {
			b := blockWL[len(blockWL)-1]
			blockWL = blockWL[:len(blockWL)-1]
			block := f.Blocks[b]
			if block == nil {
				continue
			}
			for _, inst := range block.Insts {
				visitInst(inst, b)
			}
		}
		for len(instWorklist) > 0 {
			inst := instWorklist[len(instWorklist)-1]
			instWorklist = instWorklist[:len(instWorklist)-1]
			visitInst(inst, instBlock[inst])
		}
	}

	changed := false
	for _, b := range f.BlocksInOrder() {
		if !reachableBlock[b.ID] {
			continue
		}
		for _, inst := range b.Insts {
			if inst.Op == ir.OpPhi || inst.Op == ir.OpBrCond {
				continue
			}
			for idx, o := range inst.Operands {
				if o.Kind == ir.OperandReg {
					if lv, ok := values[o.Reg]; ok && lv.kind == latticeConst {
						inst.Operands[idx] = lv.val
						changed = true
					}
				}
			}
		}
		term := b.Terminator()
		if term != nil && term.Op == ir.OpBrCond {
			cond := resolve(term.Operands[0])
			if cond.kind == latticeConst {
				taken := term.Operands[1].Label
				if cond.val.ImmInt == 0 {
					taken = term.Operands[2].Label
				}
				b.Insts[len(b.Insts)-1] = ir.NewBrUncond(taken)
				changed = true
			}
		}
	}

	return changed
}

// foldConstant evaluates op over constant operands, returning (value, ok).
func foldConstant(op ir.Opcode, pred ir.Predicate, ops []ir.Operand) (ir.Operand, bool) {
	if len(ops) != 2 {
		return ir.Operand{}, false
	}
	a, b := ops[0], ops[1]
	if a.Kind != ir.OperandImmInt || b.Kind != ir.OperandImmInt {
		return ir.Operand{}, false
	}
	switch op {
	case ir.OpAdd:
		return ir.ImmInt(a.ImmInt+b.ImmInt, a.Type), true
	case ir.OpSub:
		return ir.ImmInt(a.ImmInt-b.ImmInt, a.Type), true
	case ir.OpMul:
		return ir.ImmInt(a.ImmInt*b.ImmInt, a.Type), true
	case ir.OpDiv:
		if b.ImmInt == 0 {
			return ir.Operand{}, false
		}
		return ir.ImmInt(a.ImmInt/b.ImmInt, a.Type), true
	case ir.OpMod:
		if b.ImmInt == 0 {
			return ir.Operand{}, false
		}
		return ir.ImmInt(a.ImmInt%b.ImmInt, a.Type), true
	case ir.OpAnd:
		return ir.ImmInt(a.ImmInt&b.ImmInt, a.Type), true
	case ir.OpOr:
		return ir.ImmInt(a.ImmInt|b.ImmInt, a.Type), true
	case ir.OpXor:
		return ir.ImmInt(a.ImmInt^b.ImmInt, a.Type), true
	case ir.OpShl:
		return ir.ImmInt(a.ImmInt<<uint(b.ImmInt), a.Type), true
	case ir.OpShr:
		return ir.ImmInt(a.ImmInt>>uint(b.ImmInt), a.Type), true
	case ir.OpICmp:
		return ir.ImmInt(boolToInt(evalICmp(pred, a.ImmInt, b.ImmInt)), ir.I32), true
	default:
		return ir.Operand{}, false
	}
}

func evalICmp(pred ir.Predicate, a, b int64) bool {
	switch pred {
	case ir.PredEQ:
		return a == b
	case ir.PredNE:
		return a != b
	case ir.PredSLT:
		return a < b
	case ir.PredSLE:
		return a <= b
	case ir.PredSGT:
		return a > b
	case ir.PredSGE:
		return a >= b
	case ir.PredULT:
		return uint64(a) < uint64(b)
	case ir.PredULE:
		return uint64(a) <= uint64(b)
	case ir.PredUGT:
		return uint64(a) > uint64(b)
	case ir.PredUGE:
		return uint64(a) >= uint64(b)
	default:
		return false
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
