package ir

// Block owns an ordered instruction list and terminates with exactly one
// control instruction. Phi instructions, if any, are kept at the front of
// Insts so "first non-phi" is always a simple linear scan.
type Block struct {
	ID    BlockID
	Insts []*Instruction

	Preds []BlockID
	Succs []BlockID
}

// Phis returns the leading run of OpPhi instructions.
func (b *Block) Phis() []*Instruction {
	var out []*Instruction
	for _, inst := range b.Insts {
		if inst.Op != OpPhi {
			break
		}
		out = append(out, inst)
	}
	return out
}

// Terminator returns the block's last instruction, which callers assume is a
// terminator once IR construction has completed (spec invariant).
func (b *Block) Terminator() *Instruction {
	if len(b.Insts) == 0 {
		return nil
	}
	return b.Insts[len(b.Insts)-1]
}

// InsertPhi prepends a phi to the front of the instruction list, after any
// existing phis, preserving the phis-before-non-phis invariant.
func (b *Block) InsertPhi(inst *Instruction) {
	n := 0
	for n < len(b.Insts) && b.Insts[n].Op == OpPhi {
		n++
	}
	b.Insts = append(b.Insts, nil)
	copy(b.Insts[n+1:], b.Insts[n:])
	b.Insts[n] = inst
}

// InsertBeforeTerminator inserts inst immediately before the block's
// terminator, the standard insertion point for phi-elimination copies and
// LICM preheader code.
func (b *Block) InsertBeforeTerminator(inst *Instruction) {
	if len(b.Insts) == 0 {
		b.Insts = append(b.Insts, inst)
		return
	}
	n := len(b.Insts) - 1
	b.Insts = append(b.Insts, nil)
	copy(b.Insts[n+1:], b.Insts[n:])
	b.Insts[n] = inst
}

// RemoveInst deletes the first pointer-equal occurrence of inst.
func (b *Block) RemoveInst(inst *Instruction) {
	for idx, cur := range b.Insts {
		if cur == inst {
			b.Insts = append(b.Insts[:idx], b.Insts[idx+1:]...)
			return
		}
	}
}

// Function holds a definition header, its blocks, and monotonic id counters
// for registers and labels. Parameters are pre-defined virtual registers at
// the entry block (block 0).
type Function struct {
	Name       string
	ReturnType DataType
	Params     []Reg
	ParamTypes []DataType

	Blocks map[BlockID]*Block
	Order  []BlockID // insertion order, stable for deterministic iteration

	nextReg   Reg
	nextLabel BlockID

	// AllocaInsts lists every OpAlloca in the function, populated as they
	// are created; instruction selection's CollectAllocas walks this to
	// assign stack slots to whichever allocas survive mem2reg.
	AllocaInsts []*Instruction

	// LoopHeaderOf/LoopDepthOf are optional per-block loop markers; a block
	// nothing has stamped reads as 0. RunInline stamps LoopDepthOf from
	// LoopInfo for its loop boost; no pass stamps LoopHeaderOf.
	// Kept here instead of on Block to avoid widening the common case.
	LoopHeaderOf map[BlockID]BlockID
	LoopDepthOf  map[BlockID]int
}

func NewFunction(name string, ret DataType) *Function {
	return &Function{
		Name:         name,
		ReturnType:   ret,
		Blocks:       make(map[BlockID]*Block),
		LoopHeaderOf: make(map[BlockID]BlockID),
		LoopDepthOf:  make(map[BlockID]int),
	}
}

func (f *Function) NewReg(_ DataType) Reg {
	r := f.nextReg
	f.nextReg++
	return r
}

func (f *Function) NewBlock() *Block {
	id := f.nextLabel
	f.nextLabel++
	b := &Block{ID: id}
	f.Blocks[id] = b
	f.Order = append(f.Order, id)
	return b
}

// Entry returns block 0, the unique function entry.
func (f *Function) Entry() *Block { return f.Blocks[0] }

func (f *Function) AddParam(t DataType) Reg {
	r := f.NewReg(t)
	f.Params = append(f.Params, r)
	f.ParamTypes = append(f.ParamTypes, t)
	return r
}

// RemoveBlock deletes id from the function's block set and order list. It
// does not fix up predecessor/successor lists or phi incoming entries —
// callers (SimplifyCFG, ADCE) are responsible for that before calling this.
func (f *Function) RemoveBlock(id BlockID) {
	delete(f.Blocks, id)
	for i, b := range f.Order {
		if b == id {
			f.Order = append(f.Order[:i], f.Order[i+1:]...)
			break
		}
	}
}

// BlocksInOrder returns blocks in stable insertion order, the iteration order
// every pass should use for determinism.
func (f *Function) BlocksInOrder() []*Block {
	out := make([]*Block, 0, len(f.Order))
	for _, id := range f.Order {
		if b, ok := f.Blocks[id]; ok {
			out = append(out, b)
		}
	}
	return out
}

// RecomputeEdges rebuilds every block's Preds/Succs from its terminator. CFG
// mutating passes call this (or internal/analysis's CFG builder) after
// structural changes instead of maintaining edges incrementally.
func (f *Function) RecomputeEdges() {
	for _, b := range f.Blocks {
		b.Succs = nil
		b.Preds = nil
	}
	for _, id := range f.Order {
		b := f.Blocks[id]
		term := b.Terminator()
		if term == nil {
			continue
		}
		for _, t := range term.BranchTargets() {
			b.Succs = append(b.Succs, t)
			if tb, ok := f.Blocks[t]; ok {
				tb.Preds = append(tb.Preds, id)
			}
		}
	}
}

// GlobalVar is a module-level data declaration.
type GlobalVar struct {
	Name string
	Type DataType
	Init int64
}

// ExternFunc is a module-level function declaration with no body.
type ExternFunc struct {
	Name       string
	ReturnType DataType
	ParamTypes []DataType
}

// Module owns every global, external declaration, and defined function.
type Module struct {
	Globals   []*GlobalVar
	Externs   []*ExternFunc
	Functions []*Function
}

func NewModule() *Module { return &Module{} }

func (m *Module) AddFunction(f *Function) { m.Functions = append(m.Functions, f) }

func (m *Module) FindFunction(name string) *Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}
