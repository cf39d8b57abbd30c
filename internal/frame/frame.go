// Package frame lowers each function's stack-frame layout, per spec §4.9:
// it sizes the spill-slot area, the callee-saved save area, and the saved
// return address slot, emits prologue/epilogue instructions, and replaces
// every pending frame-index operand with a concrete stack-pointer-relative
// immediate.
package frame

import (
	"nanoc/internal/machine"
	"nanoc/internal/target"
)

const alignment = 16

// Lower runs frame lowering over every function in m.
func Lower(m *machine.Module, regInfo target.RegInfo, adapter target.InstrAdapter) {
	for _, fn := range m.Functions {
		lowerFunction(fn, regInfo, adapter)
	}
}

func lowerFunction(fn *machine.Function, regInfo target.RegInfo, adapter target.InstrAdapter) {
	fi := &fn.FrameInfo
	calleeSavedBytes := len(fi.UsedCalleeSaved) * 8
	spillBytes := alignUp(fi.SpillAreaSize(), 8)
	frameSize := alignUp(calleeSavedBytes+spillBytes+8, alignment) // +8 for the saved return address

	fi.StackSize = frameSize
	fi.CalleeSavedArea = calleeSavedBytes

	resolveFrameIndices(fn, adapter)
	if frameSize == 0 {
		return
	}
	emitPrologue(fn, regInfo, adapter, frameSize)
	emitEpilogues(fn, regInfo, adapter, frameSize)
}

func alignUp(n, to int) int {
	if n%to == 0 {
		return n
	}
	return n + (to - n%to)
}

// resolveFrameIndices walks every instruction in fn and replaces any
// pending frame-index addressing with the concrete byte offset the spill
// slot occupies: slot 0 sits at the bottom of the frame, immediately above
// the outgoing stack pointer.
func resolveFrameIndices(fn *machine.Function, adapter target.InstrAdapter) {
	for _, b := range fn.BlocksInOrder() {
		for _, inst := range b.Insts {
			idx, pending := adapter.PendingFrameIndex(inst)
			if !pending {
				continue
			}
			adapter.ResolveFrameIndex(inst, fn.FrameInfo.SlotOffset(idx))
		}
	}
}

// emitPrologue prepends the stack-pointer adjustment, return-address save,
// and callee-saved register spills to the entry block.
func emitPrologue(fn *machine.Function, regInfo target.RegInfo, adapter target.InstrAdapter, frameSize int) {
	entry := fn.Blocks[fn.Order[0]]
	prologue := []machine.Instruction{
		adapter.NewFrameAdjust(regInfo.SPReg(), -int64(frameSize)),
		adapter.NewFrameStore(regInfo.SPReg(), regInfo.RAReg(), int64(frameSize-8)),
	}
	for i, r := range fn.FrameInfo.UsedCalleeSaved {
		off := int64(frameSize - 16 - i*8)
		prologue = append(prologue, adapter.NewFrameStore(regInfo.SPReg(), r, off))
	}
	entry.Insts = append(append([]machine.Instruction{}, prologue...), entry.Insts...)
}

// emitEpilogues inserts the mirrored restore sequence immediately before
// every return instruction in the function.
func emitEpilogues(fn *machine.Function, regInfo target.RegInfo, adapter target.InstrAdapter, frameSize int) {
	for _, b := range fn.BlocksInOrder() {
		for idx, inst := range b.Insts {
			if !adapter.IsReturn(inst) {
				continue
			}
			var epilogue []machine.Instruction
			for i, r := range fn.FrameInfo.UsedCalleeSaved {
				off := int64(frameSize - 16 - i*8)
				epilogue = append(epilogue, adapter.NewFrameLoad(r, regInfo.SPReg(), off))
			}
			epilogue = append(epilogue, adapter.NewFrameLoad(regInfo.RAReg(), regInfo.SPReg(), int64(frameSize-8)))
			epilogue = append(epilogue, adapter.NewFrameAdjust(regInfo.SPReg(), int64(frameSize)))

			rest := append([]machine.Instruction{}, b.Insts[idx:]...)
			b.Insts = append(append(b.Insts[:idx], epilogue...), rest...)
			break // one return per block (spec invariant)
		}
	}
}
