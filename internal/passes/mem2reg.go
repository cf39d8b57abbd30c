package passes

import (
	"nanoc/internal/analysis"
	"nanoc/internal/ir"
)

// Mem2Reg promotes alloca'd scalars whose address never escapes (no use
// other than load/store through the alloca pointer) to SSA registers: insert
// phis at each promotable alloca's dominance-frontier blocks until fixpoint,
// then rename via a dominator-tree DFS carrying a per-alloca value stack.
type Mem2Reg struct{}

func (*Mem2Reg) Name() string { return "mem2reg" }

func (p *Mem2Reg) RunOnFunction(f *ir.Function, am *analysis.Manager) bool {
	promotable := findPromotableAllocas(f)
	if len(promotable) == 0 {
		return false
	}

	dom := am.Dominance(f)

	// defBlocks[alloca] = set of blocks containing a store to it.
	defBlocks := make(map[ir.Reg]map[ir.BlockID]bool)
	allocaType := make(map[ir.Reg]ir.DataType)
	for alloca := range promotable {
		defBlocks[alloca] = make(map[ir.BlockID]bool)
	}
	for _, b := range f.BlocksInOrder() {
		for _, inst := range b.Insts {
			if inst.Op == ir.OpStore && inst.Operands[0].Kind == ir.OperandReg {
				if _, ok := promotable[inst.Operands[0].Reg]; ok {
					defBlocks[inst.Operands[0].Reg][b.ID] = true
				}
			}
			if inst.Op == ir.OpAlloca {
				if _, ok := promotable[inst.Result]; ok {
					allocaType[inst.Result] = pointeeType(f, inst.Result)
				}
			}
		}
	}

	phiFor := make(map[ir.Reg]map[ir.BlockID]*ir.Instruction)
	for alloca, defs := range defBlocks {
		phiFor[alloca] = insertPhis(f, dom, defs, allocaType[alloca])
	}

	renameAllocas(f, dom, promotable, phiFor)

	// Delete the now-dead alloca/load/store instructions.
	removeSet := make(map[*ir.Instruction]bool)
	for _, b := range f.BlocksInOrder() {
		for _, inst := range b.Insts {
			switch inst.Op {
			case ir.OpAlloca:
				if _, ok := promotable[inst.Result]; ok {
					removeSet[inst] = true
				}
			case ir.OpStore:
				if inst.Operands[0].Kind == ir.OperandReg {
					if _, ok := promotable[inst.Operands[0].Reg]; ok {
						removeSet[inst] = true
					}
				}
			case ir.OpLoad:
				if inst.Operands[0].Kind == ir.OperandReg {
					if _, ok := promotable[inst.Operands[0].Reg]; ok {
						removeSet[inst] = true
					}
				}
			}
		}
	}
	for _, b := range f.BlocksInOrder() {
		var kept []*ir.Instruction
		for _, inst := range b.Insts {
			if !removeSet[inst] {
				kept = append(kept, inst)
			}
		}
		b.Insts = kept
	}

	// Drop the promoted allocas from the function's alloca list.
	var keptAllocas []*ir.Instruction
	for _, a := range f.AllocaInsts {
		if _, ok := promotable[a.Result]; !ok {
			keptAllocas = append(keptAllocas, a)
		}
	}
	f.AllocaInsts = keptAllocas

	return true
}

// findPromotableAllocas finds allocas whose only uses are loads and stores
// where the alloca itself is the pointer operand (never escaping into a
// call argument, a GEP base surviving past that, a return, etc.).
func findPromotableAllocas(f *ir.Function) map[ir.Reg]bool {
	allocas := make(map[ir.Reg]bool)
	for _, a := range f.AllocaInsts {
		allocas[a.Result] = true
	}
	if len(allocas) == 0 {
		return allocas
	}

	escapes := make(map[ir.Reg]bool)
	for _, b := range f.BlocksInOrder() {
		for _, inst := range b.Insts {
			switch inst.Op {
			case ir.OpLoad:
				continue
			case ir.OpStore:
				// operand[1] (the stored value) escapes if it is itself an alloca ptr
				if inst.Operands[1].Kind == ir.OperandReg && allocas[inst.Operands[1].Reg] {
					escapes[inst.Operands[1].Reg] = true
				}
				continue
			default:
				for _, u := range inst.Uses() {
					if allocas[u] {
						escapes[u] = true
					}
				}
			}
		}
	}

	promotable := make(map[ir.Reg]bool)
	for a := range allocas {
		if !escapes[a] {
			promotable[a] = true
		}
	}
	return promotable
}

func pointeeType(f *ir.Function, alloca ir.Reg) ir.DataType {
	for _, b := range f.BlocksInOrder() {
		for _, inst := range b.Insts {
			if inst.Op == ir.OpStore && inst.Operands[0].Kind == ir.OperandReg && inst.Operands[0].Reg == alloca {
				return inst.Operands[1].Type
			}
			if inst.Op == ir.OpLoad && inst.Operands[0].Kind == ir.OperandReg && inst.Operands[0].Reg == alloca {
				return inst.Type
			}
		}
	}
	return ir.I32
}

// insertPhis places a phi at the iterated dominance frontier of defs, until
// no new block is added.
func insertPhis(f *ir.Function, dom *analysis.DomInfo, defs map[ir.BlockID]bool, t ir.DataType) map[ir.BlockID]*ir.Instruction {
	hasPhi := make(map[ir.BlockID]*ir.Instruction)
	worklist := make([]ir.BlockID, 0, len(defs))
	for b := range defs {
		worklist = append(worklist, b)
	}
	onWorklist := make(map[ir.BlockID]bool)
	for _, b := range worklist {
		onWorklist[b] = true
	}

	for len(worklist) > 0 {
		b := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		onWorklist[b] = false

		for _, df := range dom.Frontier[b] {
			if hasPhi[df] != nil {
				continue
			}
			block := f.Blocks[df]
			if block == nil {
				continue
			}
			phi := ir.NewPhi(f.NewReg(t), t)
			block.InsertPhi(phi)
			hasPhi[df] = phi
			if !onWorklist[df] {
				worklist = append(worklist, df)
				onWorklist[df] = true
			}
		}
	}
	return hasPhi
}

// renameAllocas performs the dominator-tree DFS rename: a store pushes onto
// the alloca's value stack, a load reads the top, phi results push too, and
// the stack pops back to its entry state when the DFS ascends out of a
// child.
func renameAllocas(f *ir.Function, dom *analysis.DomInfo, promotable map[ir.Reg]bool, phiFor map[ir.Reg]map[ir.BlockID]*ir.Instruction) {
	stacks := make(map[ir.Reg][]ir.Operand)
	for a := range promotable {
		stacks[a] = nil
	}

	replacements := make(map[*ir.Instruction]ir.Operand) // load -> replacement value, applied after rename walk

	var walk func(b ir.BlockID)
	walk = func(b ir.BlockID) {
		block := f.Blocks[b]
		if block == nil {
			return
		}
		depth := make(map[ir.Reg]int)
		for a := range promotable {
			depth[a] = len(stacks[a])
		}

		for alloca, phis := range phiFor {
			if phi, ok := phis[b]; ok {
				stacks[alloca] = append(stacks[alloca], ir.RegOperand(phi.Result, phi.Type))
			}
		}

		for _, inst := range block.Insts {
			switch inst.Op {
			case ir.OpStore:
				if inst.Operands[0].Kind == ir.OperandReg {
					if a := inst.Operands[0].Reg; promotable[a] {
						stacks[a] = append(stacks[a], inst.Operands[1])
					}
				}
			case ir.OpLoad:
				if inst.Operands[0].Kind == ir.OperandReg {
					if a := inst.Operands[0].Reg; promotable[a] {
						if s := stacks[a]; len(s) > 0 {
							replacements[inst] = s[len(s)-1]
						}
					}
				}
			}
		}

		for _, succ := range f.Blocks[b].Succs {
			for alloca, phis := range phiFor {
				phi, ok := phis[succ]
				if !ok {
					continue
				}
				var val ir.Operand
				if s := stacks[alloca]; len(s) > 0 {
					val = s[len(s)-1]
				} else {
					val = ir.ImmInt(0, phi.Type)
				}
				phi.AddIncoming(b, val)
			}
		}

		for _, child := range dom.Children[b] {
			walk(child)
		}

		for a := range promotable {
			stacks[a] = stacks[a][:depth[a]]
		}
	}
	walk(0)

	// Replace each load's uses with its resolved value throughout the
	// function (a load's result register is used elsewhere; we rewrite
	// those uses directly since the load itself is deleted by the caller).
	loadReplacement := make(map[ir.Reg]ir.Operand)
	for load, val := range replacements {
		loadReplacement[load.Result] = val
	}

	// A replacement's value can itself be another (now-deleted) load's
	// result register — e.g. `int y = x;` pushes x's load result onto y's
	// alloca stack verbatim. Chase each chain to its non-load fixed point
	// before the single substitution pass below, or a promoted load's dead
	// register would survive as a dangling operand.
	resolve := func(o ir.Operand) ir.Operand {
		seen := make(map[ir.Reg]bool)
		for o.Kind == ir.OperandReg && !seen[o.Reg] {
			repl, ok := loadReplacement[o.Reg]
			if !ok {
				break
			}
			seen[o.Reg] = true
			o = repl
		}
		return o
	}
	for r := range loadReplacement {
		loadReplacement[r] = resolve(loadReplacement[r])
	}

	for _, b := range f.BlocksInOrder() {
		for _, inst := range b.Insts {
			for idx, o := range inst.Operands {
				if o.Kind == ir.OperandReg {
					if repl, ok := loadReplacement[o.Reg]; ok {
						inst.Operands[idx] = repl
					}
				}
			}
			for idx, o := range inst.PhiOperand {
				if o.Kind == ir.OperandReg {
					if repl, ok := loadReplacement[o.Reg]; ok {
						inst.PhiOperand[idx] = repl
					}
				}
			}
		}
	}
}
