package passes

import (
	"nanoc/internal/analysis"
	"nanoc/internal/ir"
)

const (
	inlineSizeThreshold = 25
	inlineLeafBonus     = 10
	inlineLoopBoost     = 15
	inlinePointerPenalty = 12
)

// funcInfo mirrors original_source's inline_strategy.h FunctionInfo: size,
// loop presence, pointer-parameter presence, and self-recursion.
type funcInfo struct {
	instCount   int
	hasLoop     bool
	hasPointer  bool
	isRecursive bool
	isLeaf      bool
}

// RunInline inlines profitable calls module-wide: the call graph is
// processed in reverse topological order so leaf callees are inlined into
// their callers before those callers are themselves considered as callees.
func RunInline(m *ir.Module, am *analysis.Manager) {
	infos := make(map[string]*funcInfo)
	for _, f := range m.Functions {
		infos[f.Name] = analyzeFunction(f, am)
	}

	// stampLoopDepth records each block's loop nesting depth (1 for an
	// outermost loop) in LoopDepthOf, which inlineOneCallSite reads for the
	// loop boost.
	stampLoopDepth := func(f *ir.Function) {
		for _, l := range am.LoopInfo(f).Loops {
			for b := range l.Body {
				if l.Depth+1 > f.LoopDepthOf[b] {
					f.LoopDepthOf[b] = l.Depth + 1
				}
			}
		}
	}

	order := topoOrderLeavesFirst(m)
	for _, name := range order {
		caller := m.FindFunction(name)
		if caller == nil {
			continue
		}
		stampLoopDepth(caller)
		for inlineOneCallSite(m, caller, infos) {
			am.Invalidate(caller)
			infos[caller.Name] = analyzeFunction(caller, am)
			stampLoopDepth(caller)
		}
		am.Invalidate(caller)
	}
}

func analyzeFunction(f *ir.Function, am *analysis.Manager) *funcInfo {
	info := &funcInfo{}
	for _, t := range f.ParamTypes {
		if t.Kind == ir.KindPointer {
			info.hasPointer = true
		}
	}
	leaf := true
	for _, b := range f.BlocksInOrder() {
		info.instCount += len(b.Insts)
		for _, inst := range b.Insts {
			if inst.Op == ir.OpCall {
				leaf = false
				if inst.Callee == f.Name {
					info.isRecursive = true
				}
			}
		}
	}
	info.isLeaf = leaf
	li := am.LoopInfo(f)
	info.hasLoop = len(li.Loops) > 0
	return info
}

func topoOrderLeavesFirst(m *ir.Module) []string {
	calls := make(map[string]map[string]bool)
	for _, f := range m.Functions {
		calls[f.Name] = make(map[string]bool)
		for _, b := range f.BlocksInOrder() {
			for _, inst := range b.Insts {
				if inst.Op == ir.OpCall && inst.Callee != f.Name {
					calls[f.Name][inst.Callee] = true
				}
			}
		}
	}

	var order []string
	visited := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for callee := range calls[name] {
			visit(callee)
		}
		order = append(order, name)
	}
	for _, f := range m.Functions {
		visit(f.Name)
	}
	return order
}

func shouldInline(callerInfo *funcInfo, calleeInfo *funcInfo, inLoop bool) bool {
	if calleeInfo.isRecursive {
		return false
	}
	budget := inlineSizeThreshold
	if calleeInfo.isLeaf {
		budget += inlineLeafBonus
	}
	if inLoop {
		budget += inlineLoopBoost
	}
	if calleeInfo.hasPointer {
		budget -= inlinePointerPenalty
	}
	return calleeInfo.instCount <= budget
}

// inlineOneCallSite finds and performs at most one inlining, returning
// whether it did, so the caller loop can re-derive fresh analyses (the
// callee list and instruction count change after every inline).
func inlineOneCallSite(m *ir.Module, caller *ir.Function, infos map[string]*funcInfo) bool {
	for _, b := range caller.BlocksInOrder() {
		for idx, inst := range b.Insts {
			if inst.Op != ir.OpCall || inst.Callee == caller.Name {
				continue
			}
			callee := m.FindFunction(inst.Callee)
			if callee == nil {
				continue
			}
			calleeInfo, ok := infos[callee.Name]
			if !ok {
				continue
			}
			inLoop := caller.LoopHeaderOf[b.ID] != 0 || caller.LoopDepthOf[b.ID] > 0
			if !shouldInline(infos[caller.Name], calleeInfo, inLoop) {
				continue
			}
			performInline(caller, b, idx, inst, callee)
			return true
		}
	}
	return false
}

// performInline splits the caller block at the call site, remaps callee
// register/label ids into the caller's fresh counters, rewrites callee
// returns to jumps to the post-call block (merging return values through a
// phi), and redirects the caller's own phi-successor incoming edges whose
// source block was the one split.
func performInline(caller *ir.Function, callBlock *ir.Block, callIdx int, call *ir.Instruction, callee *ir.Function) {
	before := callBlock.Insts[:callIdx]
	after := append([]*ir.Instruction{}, callBlock.Insts[callIdx+1:]...)

	cont := caller.NewBlock()
	cont.Insts = after
	if term := cont.Terminator(); term != nil {
		for _, t := range term.BranchTargets() {
			for _, phi := range caller.Blocks[t].Phis() {
				for i, pb := range phi.PhiBlocks {
					if pb == callBlock.ID {
						phi.PhiBlocks[i] = cont.ID
					}
				}
			}
		}
	}

	paramSubst := make(map[ir.Reg]ir.Operand)
	for i, p := range callee.Params {
		paramSubst[p] = call.Operands[i]
	}
	regMap := make(map[ir.Reg]ir.Reg)

	blockMap := make(map[ir.BlockID]ir.BlockID)
	for _, b := range callee.BlocksInOrder() {
		nb := caller.NewBlock()
		blockMap[b.ID] = nb.ID
	}

	var retPhi *ir.Instruction
	needsPhi := callee.ReturnType.Kind != ir.KindVoid && call.HasResult
	if needsPhi {
		retPhi = ir.NewPhi(caller.NewReg(callee.ReturnType), callee.ReturnType)
	}

	for _, b := range callee.BlocksInOrder() {
		nb := caller.Blocks[blockMap[b.ID]]
		for _, inst := range b.Insts {
			clone := cloneInstruction(inst, caller, regMap, blockMap, paramSubst)
			if clone.Op == ir.OpRet {
				if needsPhi && len(clone.Operands) > 0 {
					retPhi.AddIncoming(nb.ID, clone.Operands[0])
				}
				nb.Insts = append(nb.Insts, ir.NewBrUncond(cont.ID))
				continue
			}
			nb.Insts = append(nb.Insts, clone)
		}
	}

	callBlock.Insts = append(append([]*ir.Instruction{}, before...), ir.NewBrUncond(blockMap[0]))

	if needsPhi {
		cont.Insts = append([]*ir.Instruction{retPhi}, cont.Insts...)
		replaceRegEverywhereRemapped(caller, call.Result, retPhi.Result)
	}

	caller.RecomputeEdges()
}

func replaceRegEverywhereRemapped(f *ir.Function, from, to ir.Reg) {
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

// cloneInstruction copies inst with its register/argument operands remapped
// through regMap (materializing a fresh caller register for any callee
// register not already present, e.g. locals and intermediate results) and
// its label operands remapped through blockMap.
func cloneInstruction(inst *ir.Instruction, caller *ir.Function, regMap map[ir.Reg]ir.Reg, blockMap map[ir.BlockID]ir.BlockID, paramSubst map[ir.Reg]ir.Operand) *ir.Instruction {
	clone := &ir.Instruction{
		Op: inst.Op, Pred: inst.Pred, Type: inst.Type, Callee: inst.Callee,
		AllocaCount: inst.AllocaCount, Comment: inst.Comment,
	}
	if inst.HasResult {
		clone.HasResult = true
		clone.Result = remapReg(inst.Result, caller, regMap, inst.Type)
	}
	for _, o := range inst.Operands {
		clone.Operands = append(clone.Operands, remapOperand(o, caller, regMap, blockMap, paramSubst))
	}
	for idx, pb := range inst.PhiBlocks {
		clone.PhiBlocks = append(clone.PhiBlocks, blockMap[pb])
		clone.PhiOperand = append(clone.PhiOperand, remapOperand(inst.PhiOperand[idx], caller, regMap, blockMap, paramSubst))
	}
	if inst.Op == ir.OpAlloca {
		caller.AllocaInsts = append(caller.AllocaInsts, clone)
	}
	return clone
}

func remapReg(r ir.Reg, caller *ir.Function, regMap map[ir.Reg]ir.Reg, t ir.DataType) ir.Reg {
	if nr, ok := regMap[r]; ok {
		return nr
	}
	nr := caller.NewReg(t)
	regMap[r] = nr
	return nr
}

// remapOperand substitutes callee parameter registers with the actual
// call-site argument operand (which may itself be an immediate, not just a
// register), and otherwise remaps registers/labels into the caller's
// namespace.
func remapOperand(o ir.Operand, caller *ir.Function, regMap map[ir.Reg]ir.Reg, blockMap map[ir.BlockID]ir.BlockID, paramSubst map[ir.Reg]ir.Operand) ir.Operand {
	switch o.Kind {
	case ir.OperandReg:
		if sub, ok := paramSubst[o.Reg]; ok {
			return sub
		}
		return ir.RegOperand(remapReg(o.Reg, caller, regMap, o.Type), o.Type)
	case ir.OperandLabel:
		return ir.LabelOperand(blockMap[o.Label])
	default:
		return o
	}
}
