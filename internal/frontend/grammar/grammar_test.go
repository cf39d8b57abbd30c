package grammar_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanoc/internal/frontend/grammar"
)

func parseSource(t *testing.T, src string) *grammar.Program {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "in.nc")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	prog, err := grammar.ParseFile(path)
	require.NoError(t, err)
	return prog
}

func TestParseSimpleFunction(t *testing.T) {
	prog := parseSource(t, `
int add(int a, int b) {
	return a + b;
}
`)
	require.Len(t, prog.Functions, 1)
	fn := prog.Functions[0]
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, "int", fn.ReturnType.Name)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, "a", fn.Params[0].Name)
	assert.Equal(t, "b", fn.Params[1].Name)
	require.Len(t, fn.Body.Statements, 1)
	require.NotNil(t, fn.Body.Statements[0].Return)
}

func TestParsePrecedence(t *testing.T) {
	prog := parseSource(t, `
bool check(int x) {
	return x + 1 * 2 > 3 && x != 0;
}
`)
	fn := prog.Functions[0]
	require.Len(t, fn.Body.Statements, 1)
	ret := fn.Body.Statements[0].Return
	require.NotNil(t, ret)
	// Top level is the && — OrExpr -> AndExpr with two rel-level operands.
	and := ret.Expr.Or.Left
	assert.Len(t, and.Rest, 1)
}

func TestParseControlFlow(t *testing.T) {
	prog := parseSource(t, `
int loop(int n) {
	let sum = 0;
	for (let i = 0; i < n; i += 1) {
		if (i % 2 == 0) {
			sum += i;
		} else {
			sum -= 1;
		}
	}
	while (sum > 100) {
		sum -= 1;
	}
	return sum;
}
`)
	fn := prog.Functions[0]
	assert.Equal(t, "loop", fn.Name)
	assert.Len(t, fn.Body.Statements, 4)
	assert.NotNil(t, fn.Body.Statements[1].For)
	assert.NotNil(t, fn.Body.Statements[2].While)
}
