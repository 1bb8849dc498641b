// Package harness gives spec.md §8's Testable Properties scenarios an
// executable home: it type-checks a hand-built ast.Module with
// runac.CheckOnly (never the unexercised LLIR codegen path — see
// scenarios.go) and, for scenarios that are expected to compile, walks
// the checked AST with the tree-walking evaluator in interp.go,
// diffing stdout and exit code against the scenario's expectation.
package harness

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/runalang/runac"
	"github.com/runalang/runac/ast"
)

// Expect is a scenario's expected outcome, parseable from a `# test:
// {json}` source header (§6).
type Expect struct {
	Stdout               string `json:"stdout"`
	ExitCode             *int   `json:"exit_code,omitempty"`
	CompileErrorContains string `json:"compile_error,omitempty"`
}

// Scenario is one §8 Testable Property: a documentation-only Source
// string carrying the `# test:` header (for readers and for
// ParseTestHeader round-trip tests), plus a Build func producing the
// equivalent hand-built AST the interpreter actually runs — there is no
// lexer/parser in scope to turn Source into that AST itself (§1).
type Scenario struct {
	Name   string
	Source string
	Build  func() *ast.Module
	Want   Expect
}

const headerPrefix = "# test: "

// ParseTestHeader extracts and decodes the `# test: {json}` header from
// the first line of src, reporting false if the line isn't present or
// doesn't parse.
func ParseTestHeader(src string) (Expect, bool) {
	line := src
	if i := strings.IndexByte(src, '\n'); i >= 0 {
		line = src[:i]
	}
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, headerPrefix) {
		return Expect{}, false
	}
	var e Expect
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, headerPrefix)), &e); err != nil {
		return Expect{}, false
	}
	return e, true
}

// Result is the outcome of running one Scenario.
type Result struct {
	Name   string
	Passed bool
	Detail string // empty when Passed
}

// Run type-checks sc's module and, if it was expected to compile,
// interprets main and compares stdout/exit code. If sc.Want names a
// CompileErrorContains substring, Run instead asserts CheckOnly failed
// with a matching diagnostic and never interprets anything (§8
// scenario 5: ownership transfer is a compile-time rejection, not a
// runtime one).
func Run(sc Scenario) Result {
	mod := sc.Build()
	diags := runac.New().CheckOnly(mod)

	if sc.Want.CompileErrorContains != "" {
		if diags.Empty() {
			return Result{sc.Name, false, "expected a compile error, got none"}
		}
		if !strings.Contains(diags.Error(), sc.Want.CompileErrorContains) {
			return Result{sc.Name, false, fmt.Sprintf("diagnostics %q do not contain %q", diags.Error(), sc.Want.CompileErrorContains)}
		}
		return Result{sc.Name, true, ""}
	}

	if !diags.Empty() {
		return Result{sc.Name, false, fmt.Sprintf("unexpected compile error: %s", diags.Error())}
	}

	mainFn := findMain(mod)
	if mainFn == nil {
		return Result{sc.Name, false, "module has no main function"}
	}

	out := &strings.Builder{}
	ip := newInterp(mod, out)
	ret := ip.call(mainFn, []any{&instance{typeName: "str"}, &arrayVal{}})

	if got := out.String(); got != sc.Want.Stdout {
		return Result{sc.Name, false, fmt.Sprintf("stdout mismatch: got %q want %q", got, sc.Want.Stdout)}
	}
	if sc.Want.ExitCode != nil {
		code, _ := ret.(int64)
		if int(code) != *sc.Want.ExitCode {
			return Result{sc.Name, false, fmt.Sprintf("exit code mismatch: got %d want %d", code, *sc.Want.ExitCode)}
		}
	}
	return Result{sc.Name, true, ""}
}

// RunAll runs every registered Scenario; used by harness_test.go to
// turn §8's six properties into one assertion per scenario.
func RunAll() []Result {
	out := make([]Result, 0, len(Scenarios))
	for _, sc := range Scenarios {
		out = append(out, Run(sc))
	}
	return out
}

func findMain(mod *ast.Module) *ast.Function {
	for _, fn := range mod.Functions {
		if fn.Name == "main" {
			return fn
		}
	}
	return nil
}
