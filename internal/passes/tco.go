package passes

import (
	"nanoc/internal/analysis"
	"nanoc/internal/ir"
)

// TCO rewrites self tail calls into a loop: a new header block holds the
// function body (with every parameter replaced by a phi), the old entry
// becomes a jump into it, and each tail call site becomes a parallel copy of
// the call's arguments into the header's phis followed by a jump back to the
// header, instead of a call/return pair.
type TCO struct{}

func (*TCO) Name() string { return "tco" }

func (*TCO) RunOnFunction(f *ir.Function, am *analysis.Manager) bool {
	sites := findTailCallSites(f)
	if len(sites) == 0 {
		return false
	}

	entry := f.Entry()
	origInsts := entry.Insts

	header := f.NewBlock()
	header.Insts = origInsts

	phiFor := make([]*ir.Instruction, len(f.Params))
	for i, p := range f.Params {
		phi := ir.NewPhi(f.NewReg(f.ParamTypes[i]), f.ParamTypes[i])
		header.InsertPhi(phi)
		phiFor[i] = phi
		replaceRegEverywhereRemapped(f, p, phi.Result)
		phi.AddIncoming(entry.ID, ir.RegOperand(p, f.ParamTypes[i]))
	}

	entry.Insts = []*ir.Instruction{ir.NewBrUncond(header.ID)}

	for _, s := range sites {
		blockID := s.block
		if blockID == entry.ID {
			// the call+ret pair originally lived in entry, whose content was
			// moved into header above.
			blockID = header.ID
		}
		b := f.Blocks[blockID]
		args := make([]ir.Operand, len(s.call.Operands))
		copy(args, s.call.Operands)

		b.Insts = b.Insts[:len(b.Insts)-2] // drop call + ret
		b.Insts = append(b.Insts, ir.NewBrUncond(header.ID))

		for i, phi := range phiFor {
			phi.AddIncoming(b.ID, args[i])
		}
	}

	f.RecomputeEdges()
	return true
}

type tailCallSite struct {
	block ir.BlockID
	call  *ir.Instruction
}

// findTailCallSites scans every block for the pattern "call f(...); ret
// [result]" where the call is a direct self-recursive call and its result
// (if any) flows only into the immediately following return — the shape
// mem2reg/SCCP/CSE leave behind for a genuine tail call, never a call whose
// result is reused or stored through an alloca-derived pointer first.
func findTailCallSites(f *ir.Function) []tailCallSite {
	var sites []tailCallSite
	for _, b := range f.BlocksInOrder() {
		n := len(b.Insts)
		if n < 2 {
			continue
		}
		ret := b.Insts[n-1]
		call := b.Insts[n-2]
		if ret.Op != ir.OpRet || call.Op != ir.OpCall || call.Callee != f.Name {
			continue
		}
		if len(call.Operands) != len(f.Params) {
			continue
		}
		if call.HasResult {
			if len(ret.Operands) != 1 || ret.Operands[0].Kind != ir.OperandReg || ret.Operands[0].Reg != call.Result {
				continue
			}
			if countResultUses(f, call.Result) > 1 {
				continue
			}
		} else if len(ret.Operands) != 0 {
			continue
		}
		sites = append(sites, tailCallSite{block: b.ID, call: call})
	}
	return sites
}

// countResultUses counts every appearance of r as an operand across the
// whole function, used to confirm a tail call's result is consumed only by
// its immediately following return.
func countResultUses(f *ir.Function, r ir.Reg) int {
	count := 0
	for _, b := range f.BlocksInOrder() {
		for _, inst := range b.Insts {
			for _, u := range inst.Uses() {
				if u == r {
					count++
				}
			}
		}
	}
	return count
}
