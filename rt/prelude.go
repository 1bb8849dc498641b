// Package rt embeds the LLIR runtime prelude the code generator's
// output depends on: the allocator, an array-iteration helper, and the
// iterator protocol primitives §6 of SPEC_FULL.md names
// (runa.malloc/runa.free/runa.memcpy, runa.yield, runa.iter_next,
// runa.iter_value). It is kept as a verbatim text asset rather than
// built with github.com/llir/llvm because it never changes per
// compilation — there is no structural reason to round-trip it through
// an in-memory IR builder just to print it back out (see DESIGN.md).
package rt

import _ "embed"

//go:embed prelude.ll
var preludeText string

// Prelude returns the runtime prelude's LLIR source, unmodified.
func Prelude() string { return preludeText }

// Prepend concatenates the prelude ahead of a generated module's own
// textual IR, the shape the §6 external interface describes: one
// self-contained .ll file per compiled Module.
func Prepend(body string) string {
	return preludeText + "\n" + body
}
