package builder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanoc/internal/frontend/ast"
	"nanoc/internal/frontend/builder"
	"nanoc/internal/ir"
)

func pos(line int) ast.Position { return ast.Position{Filename: "t.nc", Line: line, Column: 1} }

// every block built must end in a terminator — the invariant every later
// pass and instruction selector relies on.
func assertWellFormed(t *testing.T, f *ir.Function) {
	t.Helper()
	for _, b := range f.BlocksInOrder() {
		require.NotEmpty(t, b.Insts, "block %d has no instructions", b.ID)
		last := b.Insts[len(b.Insts)-1]
		assert.True(t, last.Op.IsTerminator(), "block %d does not end in a terminator, ends in %v", b.ID, last.Op)
	}
}

func TestBuildStraightLineFunction(t *testing.T) {
	fn := &ast.Function{
		Position:   pos(1),
		Name:       "add",
		ReturnType: ast.Int,
		Params: []*ast.Param{
			{Position: pos(1), Type: ast.Int, Name: "a"},
			{Position: pos(1), Type: ast.Int, Name: "b"},
		},
		Body: &ast.Block{Statements: []ast.Stmt{
			&ast.ReturnStmt{Position: pos(2), Value: &ast.BinaryExpr{
				Position: pos(2), Op: "+",
				Left:  &ast.Ident{Position: pos(2), Name: "a"},
				Right: &ast.Ident{Position: pos(2), Name: "b"},
			}},
		}},
	}
	mod := builder.Build(&ast.Program{Functions: []*ast.Function{fn}})
	require.Len(t, mod.Functions, 1)
	f := mod.Functions[0]
	assert.Equal(t, "add", f.Name)
	assert.Len(t, f.Params, 2)
	assertWellFormed(t, f)
}

func TestBuildIfElse(t *testing.T) {
	fn := &ast.Function{
		Position:   pos(1),
		Name:       "max",
		ReturnType: ast.Int,
		Params:     []*ast.Param{{Position: pos(1), Type: ast.Int, Name: "a"}, {Position: pos(1), Type: ast.Int, Name: "b"}},
		Body: &ast.Block{Statements: []ast.Stmt{
			&ast.IfStmt{
				Position: pos(2),
				Cond: &ast.BinaryExpr{Position: pos(2), Op: ">",
					Left: &ast.Ident{Position: pos(2), Name: "a"}, Right: &ast.Ident{Position: pos(2), Name: "b"}},
				Then: &ast.ReturnStmt{Position: pos(3), Value: &ast.Ident{Position: pos(3), Name: "a"}},
				Else: &ast.ReturnStmt{Position: pos(5), Value: &ast.Ident{Position: pos(5), Name: "b"}},
			},
		}},
	}
	mod := builder.Build(&ast.Program{Functions: []*ast.Function{fn}})
	f := mod.Functions[0]
	assertWellFormed(t, f)
	// then/else/merge/entry — four blocks even though both branches return.
	assert.GreaterOrEqual(t, len(f.Blocks), 4)
}

func TestBuildWhileLoop(t *testing.T) {
	fn := &ast.Function{
		Position:   pos(1),
		Name:       "countDown",
		ReturnType: ast.Void,
		Params:     []*ast.Param{{Position: pos(1), Type: ast.Int, Name: "n"}},
		Body: &ast.Block{Statements: []ast.Stmt{
			&ast.WhileStmt{
				Position: pos(2),
				Cond:     &ast.BinaryExpr{Position: pos(2), Op: ">", Left: &ast.Ident{Position: pos(2), Name: "n"}, Right: &ast.IntLiteral{Position: pos(2), Value: 0}},
				Body:     &ast.CompoundAssignStmt{Position: pos(3), Name: "n", Op: "-=", Value: &ast.IntLiteral{Position: pos(3), Value: 1}},
			},
			&ast.ReturnStmt{Position: pos(5)},
		}},
	}
	mod := builder.Build(&ast.Program{Functions: []*ast.Function{fn}})
	f := mod.Functions[0]
	assertWellFormed(t, f)
	assert.GreaterOrEqual(t, len(f.Blocks), 3) // header/body/exit
}

func TestBuildShortCircuitAnd(t *testing.T) {
	fn := &ast.Function{
		Position:   pos(1),
		Name:       "both",
		ReturnType: ast.Bool,
		Params:     []*ast.Param{{Position: pos(1), Type: ast.Bool, Name: "a"}, {Position: pos(1), Type: ast.Bool, Name: "b"}},
		Body: &ast.Block{Statements: []ast.Stmt{
			&ast.ReturnStmt{Position: pos(2), Value: &ast.BinaryExpr{
				Position: pos(2), Op: "&&",
				Left:  &ast.Ident{Position: pos(2), Name: "a"},
				Right: &ast.Ident{Position: pos(2), Name: "b"},
			}},
		}},
	}
	mod := builder.Build(&ast.Program{Functions: []*ast.Function{fn}})
	f := mod.Functions[0]
	assertWellFormed(t, f)
	// entry + rhs + short + merge blocks from the short-circuit lowering.
	assert.GreaterOrEqual(t, len(f.Blocks), 4)
}
