package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"nanoc/internal/errors"
	"nanoc/internal/fatal"
	"nanoc/internal/frontend/ast"
	"nanoc/internal/frontend/builder"
	"nanoc/internal/frontend/grammar"
	"nanoc/internal/frontend/semantic"
	"nanoc/internal/passes"
	"nanoc/internal/target"
	_ "nanoc/internal/target/riscv64"
)

func main() {
	targetName := flag.String("target", "riscv64", "code generation target")
	optLevel := flag.Int("opt", 1, "optimization level (0 disables the pass pipeline)")
	outPath := flag.String("o", "", "output file (default: stdout)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Println("usage: nanoc [-target=riscv64] [-opt=1] [-o out.s] <file>")
		os.Exit(1)
	}
	path := flag.Arg(0)

	source, err := os.ReadFile(path)
	if err != nil {
		color.Red("failed to read %s: %s", path, err)
		os.Exit(1)
	}

	parseTree, err := grammar.ParseFile(path)
	if err != nil {
		os.Exit(1) // grammar.ParseFile already printed a caret-style diagnostic
	}

	prog, err := ast.FromProgram(parseTree, path)
	if err != nil {
		color.Red("internal error converting parse tree: %s", err)
		os.Exit(1)
	}

	reporter := errors.NewErrorReporter(path, string(source))
	diags := semantic.Check(prog)
	if !reportDiagnostics(reporter, diags) {
		os.Exit(1)
	}

	mod := builder.Build(prog)

	if *optLevel > 0 {
		passes.RunPipeline(mod)
	}

	t, ok := target.Lookup(*targetName)
	if !ok {
		fatal.Fatalf("unknown target %q", *targetName)
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			color.Red("failed to create %s: %s", *outPath, err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	if err := t.RunPipeline(mod, &stdoutWriter{out}); err != nil {
		color.Red("code generation failed: %s", err)
		os.Exit(1)
	}
}

// reportDiagnostics prints every diagnostic and reports whether compilation
// may continue (true iff none of them is Error-level).
func reportDiagnostics(reporter *errors.ErrorReporter, diags []errors.CompilerError) bool {
	ok := true
	for _, d := range diags {
		fmt.Print(reporter.FormatError(d))
		if d.Level == errors.Error {
			ok = false
		}
	}
	return ok
}

type stdoutWriter struct{ f *os.File }

func (w *stdoutWriter) WriteString(s string) (int, error) { return w.f.WriteString(s) }
