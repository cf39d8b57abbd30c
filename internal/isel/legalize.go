package isel

import "nanoc/internal/ir"

// Legalize rewrites DAG operations the target cannot execute natively.
// RISC-V64 executes i32/i64 arithmetic, div/mod (M extension), and float
// ops directly, so the one real legalization this target needs is: an i32
// value flowing into a context expecting i64 (e.g. a zext-less promotion
// the front end left implicit after constant folding narrowed a width)
// gets an explicit ZExt node inserted, so instruction selection never has
// to special-case width mismatches.
func Legalize(dag *SelectionDAG) {
	for _, n := range dag.Nodes {
		if n.Op != OpCopyFromIR {
			continue
		}
		for i, operand := range n.Operands {
			if needsWidening(operand, n.Inst) {
				n.Operands[i] = wrapZExt(dag, operand)
			}
		}
	}
}

func needsWidening(operand *SDNode, user *ir.Instruction) bool {
	if operand.Op != OpCopyFromIR && operand.Op != OpRegRef {
		return false
	}
	if operand.Type.Kind != ir.KindInteger || operand.Type.Width != 32 {
		return false
	}
	return user.Type.Kind == ir.KindInteger && user.Type.Width == 64
}

func wrapZExt(dag *SelectionDAG, operand *SDNode) *SDNode {
	n := &SDNode{Op: OpCopyFromIR, Operands: []*SDNode{operand}, Type: ir.I64,
		Inst: &ir.Instruction{Op: ir.OpZExt, HasResult: true, Type: ir.I64}}
	dag.Nodes = append(dag.Nodes, n)
	return n
}
