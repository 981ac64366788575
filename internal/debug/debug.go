// Package debug provides zero-cost-when-disabled tracing and assertion
// helpers shared by the arena, def, and decode packages.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Enabled reports whether verbose tracing is compiled in. It is a plain
// variable rather than a build-tag const so that tests can flip it on
// without a separate build; production callers never set it.
var Enabled = false

// Log prints a trace line to stderr when Enabled is true.
//
// context, if non-empty, is a printf-style (format, args...) pair that is
// rendered before operation, for annotating a run of related log lines with
// shared state (e.g. an arena's current bounds).
func Log(context []any, operation string, format string, args ...any) {
	if !Enabled {
		return
	}

	_, file, line, ok := runtime.Caller(1)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "%s:%d", file, line)
	if len(context) >= 1 {
		fmt.Fprintf(&buf, " ["+context[0].(string)+"]", context[1:]...)
	}
	fmt.Fprintf(&buf, " %s: ", operation)
	fmt.Fprintf(&buf, format, args...)
	buf.WriteByte('\n')

	_, _ = os.Stderr.WriteString(buf.String())
}

// Assert panics with a formatted message if cond is false.
//
// Unlike Log, assertions are always active: they guard invariants whose
// violation means arena or schema corruption, not merely a noisy trace.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("protocore: internal assertion failed: "+format, args...))
	}
}
