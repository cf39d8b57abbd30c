package semantic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nanoc/internal/errors"
	"nanoc/internal/frontend/ast"
	"nanoc/internal/frontend/semantic"
)

func pos(line int) ast.Position { return ast.Position{Filename: "t.nc", Line: line, Column: 1} }

func hasCode(diags []errors.CompilerError, code string) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestCheckValidProgramHasNoErrors(t *testing.T) {
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
	diags := semantic.Check(&ast.Program{Functions: []*ast.Function{fn}})
	for _, d := range diags {
		assert.NotEqual(t, errors.Error, d.Level, d.Message)
	}
}

func TestCheckUndefinedVariable(t *testing.T) {
	fn := &ast.Function{
		Position:   pos(1),
		Name:       "bad",
		ReturnType: ast.Int,
		Body: &ast.Block{Statements: []ast.Stmt{
			&ast.ReturnStmt{Position: pos(2), Value: &ast.Ident{Position: pos(2), Name: "missing"}},
		}},
	}
	diags := semantic.Check(&ast.Program{Functions: []*ast.Function{fn}})
	assert.True(t, hasCode(diags, errors.ErrorUndefinedVariable))
}

func TestCheckMissingReturn(t *testing.T) {
	fn := &ast.Function{
		Position:   pos(1),
		Name:       "noReturn",
		ReturnType: ast.Int,
		Body:       &ast.Block{},
	}
	diags := semantic.Check(&ast.Program{Functions: []*ast.Function{fn}})
	assert.True(t, hasCode(diags, errors.ErrorMissingReturn))
}

func TestCheckUnusedVariableWarning(t *testing.T) {
	fn := &ast.Function{
		Position:   pos(1),
		Name:       "unused",
		ReturnType: ast.Void,
		Body: &ast.Block{Statements: []ast.Stmt{
			&ast.VarDeclStmt{Position: pos(2), Name: "x", Init: &ast.IntLiteral{Position: pos(2), Value: 1}},
		}},
	}
	diags := semantic.Check(&ast.Program{Functions: []*ast.Function{fn}})
	assert.True(t, hasCode(diags, errors.WarningUnusedVariable))
}

func TestCheckTypeMismatchOnReturn(t *testing.T) {
	fn := &ast.Function{
		Position:   pos(1),
		Name:       "wrong",
		ReturnType: ast.Bool,
		Body: &ast.Block{Statements: []ast.Stmt{
			&ast.ReturnStmt{Position: pos(2), Value: &ast.IntLiteral{Position: pos(2), Value: 1}},
		}},
	}
	diags := semantic.Check(&ast.Program{Functions: []*ast.Function{fn}})
	assert.True(t, hasCode(diags, errors.ErrorTypeMismatch))
}

func TestCheckDuplicateFunctionDeclaration(t *testing.T) {
	mk := func() *ast.Function {
		return &ast.Function{
			Position: pos(1), Name: "dup", ReturnType: ast.Void, Body: &ast.Block{},
		}
	}
	diags := semantic.Check(&ast.Program{Functions: []*ast.Function{mk(), mk()}})
	assert.True(t, hasCode(diags, errors.ErrorDuplicateDeclaration))
}
