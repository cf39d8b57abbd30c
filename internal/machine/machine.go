// Package machine implements the post-selection Machine IR (MIR): registers
// (virtual or physical), operands, a target-defined instruction marker
// interface, and the Function/Module containers instruction selection,
// PHI elimination, register allocation, and frame lowering all operate on.
package machine

import "fmt"

// RegClass distinguishes integer/pointer registers from floating ones, the
// two allocatable classes the register allocator tracks separately.
type RegClass int

const (
	ClassInt RegClass = iota
	ClassFloat
)

// Register is either virtual (pre-allocation) or physical (a target
// register id, meaningful only together with a TargetRegInfo).
type Register struct {
	ID       int
	Class    RegClass
	IsVirtual bool
}

func (r Register) String() string {
	if r.IsVirtual {
		return fmt.Sprintf("%%v%d", r.ID)
	}
	return fmt.Sprintf("%%p%d", r.ID)
}

func (r Register) Equal(o Register) bool {
	return r.IsVirtual == o.IsVirtual && r.ID == o.ID
}

// VRegAllocator hands out function-scoped virtual register ids, mirroring
// the teacher-domain original's global vreg counter but scoped per
// function to keep functions independently reusable (e.g. by inlining,
// which never touches machine IR, but by isel running functions in any
// order without cross-talk).
type VRegAllocator struct{ next int }

func (a *VRegAllocator) New(class RegClass) Register {
	id := a.next
	a.next++
	return Register{ID: id, Class: class, IsVirtual: true}
}

// OperandKind tags a MachineOperand's variant.
type OperandKind int

const (
	MOReg OperandKind = iota
	MOImmInt
	MOImmFloat
	MOSymbol
	MOLabel
	MOFrameIndex
	MOMemory
)

// MachineOperand is register | immediate (i32/f32) | symbol | label |
// frame-index | memory-address (base register + signed offset).
type MachineOperand struct {
	Kind   OperandKind
	Reg    Register
	ImmI   int64
	ImmF   float32
	Symbol string
	Label  int

	FrameIndex int

	// MOMemory: base register plus signed byte offset.
	Base   Register
	Offset int64
}

func RegOperand(r Register) MachineOperand          { return MachineOperand{Kind: MOReg, Reg: r} }
func ImmIntOperand(v int64) MachineOperand           { return MachineOperand{Kind: MOImmInt, ImmI: v} }
func ImmFloatOperand(v float32) MachineOperand        { return MachineOperand{Kind: MOImmFloat, ImmF: v} }
func SymbolOperand(name string) MachineOperand       { return MachineOperand{Kind: MOSymbol, Symbol: name} }
func LabelOperand(id int) MachineOperand             { return MachineOperand{Kind: MOLabel, Label: id} }
func FrameIndexOperand(idx int) MachineOperand       { return MachineOperand{Kind: MOFrameIndex, FrameIndex: idx} }
func MemoryOperand(base Register, off int64) MachineOperand {
	return MachineOperand{Kind: MOMemory, Base: base, Offset: off}
}

func (o MachineOperand) String() string {
	switch o.Kind {
	case MOReg:
		return o.Reg.String()
	case MOImmInt:
		return fmt.Sprintf("%d", o.ImmI)
	case MOImmFloat:
		return fmt.Sprintf("%g", o.ImmF)
	case MOSymbol:
		return o.Symbol
	case MOLabel:
		return fmt.Sprintf(".L%d", o.Label)
	case MOFrameIndex:
		return fmt.Sprintf("fi#%d", o.FrameIndex)
	case MOMemory:
		return fmt.Sprintf("%d(%s)", o.Offset, o.Base)
	default:
		return "?"
	}
}

// Instruction is the target-defined machine-instruction marker interface.
// Target packages (internal/target/riscv64) provide the concrete type; the
// register allocator and PHI elimination never inspect it directly, only
// through a TargetInstrAdapter.
type Instruction interface {
	fmt.Stringer
	isMachineInstruction()
}

// Phi is the one target-independent pseudo-instruction: a machine-level
// SSA phi surviving from instruction selection until internal/phielim
// lowers it to copies on incoming edges. Every target's instruction
// adapter treats it as opaque (phi elimination deletes it directly, never
// through the adapter).
type Phi struct {
	Dest     Register
	Blocks   []int
	Incoming []MachineOperand
}

func (p *Phi) isMachineInstruction() {}
func (p *Phi) String() string {
	return fmt.Sprintf("%s = phi %v", p.Dest, p.Incoming)
}

func (p *Phi) AddIncoming(block int, val MachineOperand) {
	p.Blocks = append(p.Blocks, block)
	p.Incoming = append(p.Incoming, val)
}

// Block is a basic block of machine instructions, a deque in spec terms but
// represented as a slice here since every mutation site already has direct
// index/splice access (inserts at a cursor happen via Block.InsertAt).
type Block struct {
	ID    int
	Insts []Instruction

	Preds []int
	Succs []int
}

func (b *Block) InsertAt(idx int, inst Instruction) {
	b.Insts = append(b.Insts, nil)
	copy(b.Insts[idx+1:], b.Insts[idx:])
	b.Insts[idx] = inst
}

func (b *Block) Append(inst Instruction) {
	b.Insts = append(b.Insts, inst)
}

// FrameInfo records a function's stack-frame layout, filled in by
// internal/frame during lowering.
type FrameInfo struct {
	StackSize        int
	SpillSlots       []int // byte size requested per spill slot index
	CalleeSavedArea  int
	OutgoingArgArea  int
	UsedCalleeSaved  []Register
	FramePointerUsed bool
}

// NewSpillSlot reserves a slot of size bytes and returns its index. The
// byte offset a given index resolves to is computed later by
// internal/frame once every slot for the function has been requested.
func (fi *FrameInfo) NewSpillSlot(size int) int {
	idx := len(fi.SpillSlots)
	fi.SpillSlots = append(fi.SpillSlots, size)
	return idx
}

// SlotOffset returns the byte offset of spill slot idx from the bottom of
// the spill-slot area: each slot's offset is the sum of the sizes of every
// slot allocated before it.
func (fi *FrameInfo) SlotOffset(idx int) int64 {
	var off int64
	for i := 0; i < idx; i++ {
		off += int64(fi.SpillSlots[i])
	}
	return off
}

// SpillAreaSize is the total byte size of every requested spill slot.
func (fi *FrameInfo) SpillAreaSize() int {
	total := 0
	for _, s := range fi.SpillSlots {
		total += s
	}
	return total
}

// Function owns blocks, parameters (virtual registers), and frame info.
// Frame lowering sizes stack slots from FrameInfo; AllocaInsts is not
// filled or read by the back end.
type Function struct {
	Name       string
	Params     []Register
	Blocks     map[int]*Block
	Order      []int
	FrameInfo  FrameInfo
	AllocaInsts []Instruction

	VRegs VRegAllocator
}

func NewFunction(name string) *Function {
	return &Function{Name: name, Blocks: make(map[int]*Block)}
}

func (f *Function) NewBlock() *Block {
	id := len(f.Order)
	b := &Block{ID: id}
	f.Blocks[id] = b
	f.Order = append(f.Order, id)
	return b
}

func (f *Function) BlocksInOrder() []*Block {
	out := make([]*Block, 0, len(f.Order))
	for _, id := range f.Order {
		out = append(out, f.Blocks[id])
	}
	return out
}

// GlobalVar is a module-level data declaration carried through from
// internal/ir unchanged, re-declared here so internal/machine has no
// dependency back on internal/ir.
type GlobalVar struct {
	Name string
	Size int
	Init int64
}

// Module aggregates functions and globals for one translation unit's
// machine representation.
type Module struct {
	Functions []*Function
	Globals   []*GlobalVar
}

func NewModule() *Module { return &Module{} }

func (m *Module) AddFunction(f *Function) { m.Functions = append(m.Functions, f) }
