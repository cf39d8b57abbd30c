// Package fatal is the compiler's single exit point for unrecoverable
// conditions: malformed-IR invariant violations, unsupported target
// opcodes, register-pressure exhaustion, and unknown target names. Every
// pass and back-end stage reaches here instead of inventing its own
// panic/os.Exit convention.
package fatal

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Fatalf prints a red diagnostic and terminates the process. Callers never
// expect control to return.
func Fatalf(format string, args ...interface{}) {
	color.Red("fatal: %s", fmt.Sprintf(format, args...))
	os.Exit(1)
}

// Unreachable marks a code path the compiler assumes can never execute —
// any IR satisfying this core's invariants rules it out. Reaching it means
// an earlier pass produced malformed IR.
func Unreachable(format string, args ...interface{}) {
	color.Red("unreachable: %s", fmt.Sprintf(format, args...))
	os.Exit(1)
}
