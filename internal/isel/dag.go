package isel

import "nanoc/internal/ir"

// NodeOp is the target-independent selection-DAG opcode set, mirroring the
// ir.Opcode set plus the DAG-only bookkeeping opcodes ENTRY_TOKEN and
// TOKEN_FACTOR that chain side effects.
type NodeOp int

const (
	OpEntryToken NodeOp = iota
	OpTokenFactor
	OpCopyFromIR // wraps one ir.Instruction verbatim; selectors switch on Inst.Op
	OpRegRef     // reference to an already-selected ir register (leaf)
	OpConstInt
	OpConstFloat
	OpSymbol
	OpLabel
	OpFrameIndex
)

// SDNode is one selection-DAG node: either a token node (ENTRY_TOKEN,
// TOKEN_FACTOR) used only to order side effects, or a value/chain node
// wrapping one ir.Instruction. Operands are data dependencies; Chain is the
// token dependency enforcing memory ordering between loads/stores/calls.
type SDNode struct {
	Op       NodeOp
	Inst     *ir.Instruction // non-nil for OpCopyFromIR
	Operands []*SDNode       // data dependencies, in ir.Instruction.Operands order
	Chain    *SDNode         // token predecessor, nil for pure-value nodes

	ConstInt   int64
	ConstFloat float32
	Symbol     string
	Label      ir.BlockID
	FrameIdx   int
	RegRef     ir.Reg
	Type       ir.DataType
}

// SelectionDAG is one basic block's selection DAG: every ir.Instruction in
// the block becomes one SDNode, wired to its operands' producing nodes (or
// leaf nodes for registers defined in other blocks / constants / symbols)
// and threaded through a token chain for loads, stores, calls, and the
// block terminator.
type SelectionDAG struct {
	Entry *SDNode
	Nodes []*SDNode
	Root  *SDNode // the terminator's node; scheduling starts from here

	byResult map[ir.Reg]*SDNode
}

// BuildDAG constructs the selection DAG for one IR block. An ir.Reg defined
// in a different block (e.g. a phi incoming value, or any cross-block use —
// our blocks are straight-line once phi-handling is factored out) becomes an
// OpRegRef leaf node.
func BuildDAG(block *ir.Block) *SelectionDAG {
	dag := &SelectionDAG{byResult: make(map[ir.Reg]*SDNode)}
	dag.Entry = &SDNode{Op: OpEntryToken}
	dag.Nodes = append(dag.Nodes, dag.Entry)

	chain := dag.Entry
	for _, inst := range block.Insts {
		node := &SDNode{Op: OpCopyFromIR, Inst: inst, Type: inst.Type}
		for _, o := range inst.Operands {
			node.Operands = append(node.Operands, dag.operandNode(o))
		}
		for _, o := range inst.PhiOperand {
			node.Operands = append(node.Operands, dag.operandNode(o))
		}
		if instHasSideEffect(inst) {
			node.Chain = chain
			chain = node
		}
		dag.Nodes = append(dag.Nodes, node)
		if inst.HasResult {
			dag.byResult[inst.Result] = node
		}
	}
	dag.Root = chain
	return dag
}

func instHasSideEffect(inst *ir.Instruction) bool {
	switch inst.Op {
	case ir.OpLoad, ir.OpStore, ir.OpCall, ir.OpBrUncond, ir.OpBrCond, ir.OpRet:
		return true
	default:
		return false
	}
}

func (dag *SelectionDAG) operandNode(o ir.Operand) *SDNode {
	switch o.Kind {
	case ir.OperandReg:
		if n, ok := dag.byResult[o.Reg]; ok {
			return n
		}
		n := &SDNode{Op: OpRegRef, RegRef: o.Reg, Type: o.Type}
		dag.Nodes = append(dag.Nodes, n)
		return n
	case ir.OperandImmInt:
		n := &SDNode{Op: OpConstInt, ConstInt: o.ImmInt, Type: o.Type}
		dag.Nodes = append(dag.Nodes, n)
		return n
	case ir.OperandImmFloat:
		n := &SDNode{Op: OpConstFloat, ConstFloat: o.ImmF32, Type: o.Type}
		dag.Nodes = append(dag.Nodes, n)
		return n
	case ir.OperandSymbol:
		n := &SDNode{Op: OpSymbol, Symbol: o.Symbol}
		dag.Nodes = append(dag.Nodes, n)
		return n
	case ir.OperandLabel:
		n := &SDNode{Op: OpLabel, Label: o.Label}
		dag.Nodes = append(dag.Nodes, n)
		return n
	default:
		n := &SDNode{Op: OpConstInt}
		dag.Nodes = append(dag.Nodes, n)
		return n
	}
}
