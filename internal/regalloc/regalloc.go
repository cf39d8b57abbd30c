// Package regalloc implements linear-scan register allocation over
// internal/machine functions, per spec §4.8: reverse-post-order
// linearization, dataflow-computed live intervals (widened to a single
// contiguous range per register, as the spec permits for simplicity),
// active-set expiry, and spill-the-latest-end-interval when no free
// register of the right class remains.
package regalloc

import (
	"sort"

	"nanoc/internal/machine"
	"nanoc/internal/target"
)

// interval is one virtual register's live range, expressed as instruction
// indices into the function's linearized instruction order.
type interval struct {
	reg        machine.Register
	start, end int
	physReg    machine.Register
	spilled    bool
	frameIndex int
}

// Allocate replaces every virtual register in fn with a physical register
// from regInfo's register files, inserting spill/reload instructions
// through adapter wherever an interval could not keep a register for its
// full lifetime.
func Allocate(fn *machine.Function, regInfo target.RegInfo, adapter target.InstrAdapter) {
	order := linearize(fn)
	intervals := computeIntervals(order, adapter)
	if len(intervals) == 0 {
		return
	}

	intAlloc := newAllocator(reservedFiltered(regInfo.IntRegs(), regInfo.Reserved()))
	floatAlloc := newAllocator(reservedFiltered(regInfo.FloatRegs(), regInfo.Reserved()))

	sort.Slice(intervals, func(i, j int) bool { return intervals[i].start < intervals[j].start })

	var active []*interval
	assigned := make(map[machine.Register]*interval)
	for _, iv := range intervals {
		alloc := intAlloc
		if iv.reg.Class == machine.ClassFloat {
			alloc = floatAlloc
		}

		active = expireOld(active, iv.start, alloc, assigned)

		if phys, ok := alloc.takeFree(); ok {
			iv.physReg = phys
			active = append(active, iv)
			assigned[iv.reg] = iv
			continue
		}

		spillCandidate := latestEnding(active, iv.reg.Class)
		if spillCandidate != nil && spillCandidate.end > iv.end {
			iv.physReg = spillCandidate.physReg
			spillCandidate.spilled = true
			spillCandidate.frameIndex = fn.FrameInfo.NewSpillSlot(8)
			active = removeInterval(active, spillCandidate)
			active = append(active, iv)
			assigned[iv.reg] = iv
		} else {
			iv.spilled = true
			iv.frameIndex = fn.FrameInfo.NewSpillSlot(8)
			assigned[iv.reg] = iv
		}
	}

	rewrite(fn, order, assigned, adapter, regInfo)
	recordCalleeSaved(fn, assigned, regInfo)
}

func reservedFiltered(all, reserved []machine.Register) []machine.Register {
	skip := make(map[machine.Register]bool, len(reserved))
	for _, r := range reserved {
		skip[r] = true
	}
	var out []machine.Register
	for _, r := range all {
		if !skip[r] {
			out = append(out, r)
		}
	}
	return out
}

// linearize walks the function's blocks in reverse-post-order, the order
// liveness dataflow and interval construction both assume.
func linearize(fn *machine.Function) []machine.Instruction {
	rpo := reversePostOrder(fn)
	var out []machine.Instruction
	for _, id := range rpo {
		out = append(out, fn.Blocks[id].Insts...)
	}
	return out
}

func reversePostOrder(fn *machine.Function) []int {
	visited := make(map[int]bool)
	var post []int
	var visit func(id int)
	visit = func(id int) {
		if visited[id] {
			return
		}
		visited[id] = true
		b := fn.Blocks[id]
		if b == nil {
			return
		}
		for _, s := range b.Succs {
			visit(s)
		}
		post = append(post, id)
	}
	if len(fn.Order) > 0 {
		visit(fn.Order[0])
	}
	for _, id := range fn.Order {
		visit(id)
	}
	out := make([]int, len(post))
	for i, id := range post {
		out[len(post)-1-i] = id
	}
	return out
}

// computeIntervals derives one interval per virtual register spanning its
// first def to its last use in linear order — the "widen to a single
// contiguous range" simplification spec §4.8 step 2 explicitly permits.
func computeIntervals(order []machine.Instruction, adapter target.InstrAdapter) []*interval {
	bounds := make(map[machine.Register]*interval)
	for i, inst := range order {
		for _, r := range adapter.EnumDefs(inst) {
			if !r.IsVirtual {
				continue
			}
			iv := boundsFor(bounds, r)
			if iv.start == -1 || i < iv.start {
				iv.start = i
			}
			if i > iv.end {
				iv.end = i
			}
		}
		for _, r := range adapter.EnumUses(inst) {
			if !r.IsVirtual {
				continue
			}
			iv := boundsFor(bounds, r)
			if iv.start == -1 || i < iv.start {
				iv.start = i
			}
			if i > iv.end {
				iv.end = i
			}
		}
		if phi, ok := inst.(*machine.Phi); ok && phi.Dest.IsVirtual {
			iv := boundsFor(bounds, phi.Dest)
			if iv.start == -1 || i < iv.start {
				iv.start = i
			}
			if i > iv.end {
				iv.end = i
			}
		}
	}
	var out []*interval
	for _, iv := range bounds {
		out = append(out, iv)
	}
	return out
}

func boundsFor(bounds map[machine.Register]*interval, r machine.Register) *interval {
	iv, ok := bounds[r]
	if !ok {
		iv = &interval{reg: r, start: -1, end: -1}
		bounds[r] = iv
	}
	return iv
}

// allocator is a free-list of physical registers of one class.
type allocator struct {
	free []machine.Register
}

func newAllocator(regs []machine.Register) *allocator {
	out := make([]machine.Register, len(regs))
	copy(out, regs)
	return &allocator{free: out}
}

func (a *allocator) takeFree() (machine.Register, bool) {
	if len(a.free) == 0 {
		return machine.Register{}, false
	}
	r := a.free[0]
	a.free = a.free[1:]
	return r, true
}

func (a *allocator) release(r machine.Register) {
	a.free = append(a.free, r)
}

func expireOld(active []*interval, start int, alloc *allocator, assigned map[machine.Register]*interval) []*interval {
	var kept []*interval
	for _, iv := range active {
		if iv.end < start {
			if !iv.spilled {
				alloc.release(iv.physReg)
			}
			continue
		}
		kept = append(kept, iv)
	}
	return kept
}

func latestEnding(active []*interval, class machine.RegClass) *interval {
	var best *interval
	for _, iv := range active {
		if iv.reg.Class != class || iv.spilled {
			continue
		}
		if best == nil || iv.end > best.end {
			best = iv
		}
	}
	return best
}

func removeInterval(active []*interval, victim *interval) []*interval {
	var out []*interval
	for _, iv := range active {
		if iv == victim {
			continue
		}
		out = append(out, iv)
	}
	return out
}

// rewrite replaces every virtual register occurrence with its assigned
// physical register, inserting a reload before each use and a spill after
// each def for registers that did not keep a physical register throughout.
func rewrite(fn *machine.Function, order []machine.Instruction, assigned map[machine.Register]*interval, adapter target.InstrAdapter, regInfo target.RegInfo) {
	for _, b := range fn.BlocksInOrder() {
		for idx := 0; idx < len(b.Insts); idx++ {
			inst := b.Insts[idx]
			phi, isPhi := inst.(*machine.Phi)
			if isPhi {
				if iv, ok := assigned[phi.Dest]; ok && !iv.spilled {
					phi.Dest = iv.physReg
				}
				continue
			}
			for _, r := range adapter.EnumUses(inst) {
				if !r.IsVirtual {
					continue
				}
				iv, ok := assigned[r]
				if !ok {
					continue
				}
				if iv.spilled {
					tmp := scratchFor(r.Class, regInfo)
					adapter.InsertReloadBefore(b, idx, tmp, iv.frameIndex)
					adapter.ReplaceUse(inst, r, tmp)
					idx++
				} else {
					adapter.ReplaceUse(inst, r, iv.physReg)
				}
			}
			for _, r := range adapter.EnumDefs(inst) {
				if !r.IsVirtual {
					continue
				}
				iv, ok := assigned[r]
				if !ok {
					continue
				}
				if iv.spilled {
					tmp := scratchFor(r.Class, regInfo)
					adapter.ReplaceDef(inst, r, tmp)
					adapter.InsertSpillAfter(b, idx, tmp, iv.frameIndex)
					idx++
				} else {
					adapter.ReplaceDef(inst, r, iv.physReg)
				}
			}
		}
	}
}

// scratchFor returns the reserved register the target sets aside to
// shuttle a spilled value through a single reload/use or def/spill pair.
func scratchFor(class machine.RegClass, regInfo target.RegInfo) machine.Register {
	if class == machine.ClassFloat {
		return regInfo.ScratchFloat()
	}
	return regInfo.ScratchInt()
}

func recordCalleeSaved(fn *machine.Function, assigned map[machine.Register]*interval, regInfo target.RegInfo) {
	calleeSaved := make(map[machine.Register]bool)
	for _, r := range regInfo.CalleeSavedInt() {
		calleeSaved[r] = true
	}
	for _, r := range regInfo.CalleeSavedFloat() {
		calleeSaved[r] = true
	}
	seen := make(map[machine.Register]bool)
	for _, iv := range assigned {
		if iv.spilled {
			continue
		}
		if calleeSaved[iv.physReg] && !seen[iv.physReg] {
			seen[iv.physReg] = true
			fn.FrameInfo.UsedCalleeSaved = append(fn.FrameInfo.UsedCalleeSaved, iv.physReg)
		}
	}
}
