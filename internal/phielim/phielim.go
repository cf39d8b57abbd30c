// Package phielim lowers machine.Phi pseudo-instructions into ordinary
// copies on incoming edges, splitting critical edges where needed and
// resolving each predecessor's parallel-copy set respecting data
// dependencies, grounded on phi_elimination.h's pass shape
// (collectPhis/aggregateCopies/splitCriticalEdge/resolveParallelCopies).
package phielim

import (
	"nanoc/internal/fatal"
	"nanoc/internal/machine"
	"nanoc/internal/target"
)

// copyPair is one (destination, source) pair a predecessor must perform before
// jumping into the block that owns the phi.
type copyPair struct {
	dst machine.Register
	src machine.MachineOperand
}

// Run eliminates every phi in every function of m, using adapter to
// redirect branch targets when a critical edge must be split and to
// construct the move instructions the copies lower to.
func Run(m *machine.Module, adapter target.InstrAdapter) {
	for _, fn := range m.Functions {
		runOnFunction(fn, adapter)
	}
}

func runOnFunction(fn *machine.Function, adapter target.InstrAdapter) {
	for _, block := range fn.BlocksInOrder() {
		phis := collectPhis(block)
		if len(phis) == 0 {
			continue
		}
		byPred := aggregateCopies(phis)
		for pred, copies := range byPred {
			copies = removeSelfCopies(copies)
			if len(copies) == 0 {
				continue
			}
			insertBlock := fn.Blocks[pred]
			if isCriticalEdge(fn, pred, block.ID) {
				insertBlock = splitCriticalEdge(fn, pred, block.ID, adapter)
			}
			insts := resolveParallelCopies(fn, copies, adapter)
			idx := findInsertIndex(insertBlock, adapter)
			for i, inst := range insts {
				insertBlock.InsertAt(idx+i, inst)
			}
		}
		stripPhis(block)
	}
}

func collectPhis(block *machine.Block) []*machine.Phi {
	var out []*machine.Phi
	for _, inst := range block.Insts {
		if p, ok := inst.(*machine.Phi); ok {
			out = append(out, p)
		}
	}
	return out
}

func stripPhis(block *machine.Block) {
	var rest []machine.Instruction
	for _, inst := range block.Insts {
		if _, ok := inst.(*machine.Phi); ok {
			continue
		}
		rest = append(rest, inst)
	}
	block.Insts = rest
}

// aggregateCopies groups the (dest, src) pairs every phi in the block
// contributes, keyed by the predecessor block the source value comes in
// from — a predecessor with several phis targeting the same successor
// produces several copies all scheduled together.
func aggregateCopies(phis []*machine.Phi) map[int][]copyPair {
	out := make(map[int][]copyPair)
	for _, p := range phis {
		for i, blockID := range p.Blocks {
			out[blockID] = append(out[blockID], copyPair{dst: p.Dest, src: p.Incoming[i]})
		}
	}
	return out
}

func isCriticalEdge(fn *machine.Function, predID, succID int) bool {
	pred := fn.Blocks[predID]
	succ := fn.Blocks[succID]
	return len(pred.Succs) > 1 && len(succ.Preds) > 1
}

// splitCriticalEdge inserts a fresh block on the pred->succ edge holding a
// single unconditional jump to succ, and redirects pred's branch to it.
func splitCriticalEdge(fn *machine.Function, predID, succID int, adapter target.InstrAdapter) *machine.Block {
	pred := fn.Blocks[predID]
	newBlock := fn.NewBlock()
	newBlock.Append(adapter.NewUncondBranch(succID))
	newBlock.Succs = []int{succID}
	newBlock.Preds = []int{predID}

	for _, inst := range pred.Insts {
		adapter.RedirectBranchTarget(inst, succID, newBlock.ID)
	}
	for i, s := range pred.Succs {
		if s == succID {
			pred.Succs[i] = newBlock.ID
		}
	}
	succBlock := fn.Blocks[succID]
	for i, p := range succBlock.Preds {
		if p == predID {
			succBlock.Preds[i] = newBlock.ID
		}
	}
	return newBlock
}

// findInsertIndex returns the index of the block's terminator, the
// insertion point for copies — they must execute before the branch that
// leaves the block.
func findInsertIndex(block *machine.Block, adapter target.InstrAdapter) int {
	for i := len(block.Insts) - 1; i >= 0; i-- {
		inst := block.Insts[i]
		if adapter.IsUncondBranch(inst) || adapter.IsCondBranch(inst) || adapter.IsReturn(inst) {
			return i
		}
	}
	return len(block.Insts)
}

func removeSelfCopies(copies []copyPair) []copyPair {
	var out []copyPair
	for _, c := range copies {
		if c.src.Kind == machine.MOReg && c.src.Reg.Equal(c.dst) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// resolveParallelCopies schedules copies respecting data dependencies: a
// copy (d, s) with s a register depends on whichever copy in the set
// defines s, since that copy must execute after s is read (or s would be
// clobbered before it's used). Cycles are broken by copying one member to a
// fresh temporary, then closing the cycle from the temporary.
func resolveParallelCopies(fn *machine.Function, copies []copyPair, adapter target.InstrAdapter) []machine.Instruction {
	remaining := make(map[machine.Register]copyPair)
	for _, c := range copies {
		remaining[c.dst] = c
	}

	var out []machine.Instruction
	for len(remaining) > 0 {
		progressed := false
		for dst, c := range remaining {
			if !isReadBySomeoneElse(dst, remaining) {
				out = append(out, adapter.NewMove(c.dst, c.src))
				delete(remaining, dst)
				progressed = true
			}
		}
		if progressed {
			continue
		}
		// Every remaining copy's destination is read by another remaining
		// copy: a cycle. Break it by copying one member aside.
		var anyDst machine.Register
		for dst := range remaining {
			anyDst = dst
			break
		}
		c := remaining[anyDst]
		tmp := fn.VRegs.New(anyDst.Class)
		out = append(out, adapter.NewMove(tmp, machine.RegOperand(anyDst)))
		delete(remaining, anyDst)
		// Whoever was reading anyDst now reads tmp instead.
		for dst, oc := range remaining {
			if oc.src.Kind == machine.MOReg && oc.src.Reg.Equal(anyDst) {
				oc.src = machine.RegOperand(tmp)
				remaining[dst] = oc
			}
		}
		out = append(out, adapter.NewMove(c.dst, c.src))
	}
	if len(out) > 1000 {
		fatal.Unreachable("phielim: parallel-copy resolution did not converge")
	}
	return out
}

func isReadBySomeoneElse(dst machine.Register, remaining map[machine.Register]copyPair) bool {
	for otherDst, c := range remaining {
		if otherDst == dst {
			continue
		}
		if c.src.Kind == machine.MOReg && c.src.Reg.Equal(dst) {
			return true
		}
	}
	return false
}
