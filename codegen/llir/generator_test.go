package llir_test

import (
	"regexp"
	"testing"

	"github.com/runalang/runac"
	"github.com/runalang/runac/ast"
	"github.com/runalang/runac/harness"
	"github.com/stretchr/testify/require"
)

// TestCompileDefinesMethodBodies is the regression test for generator.go's
// Generate() switching from g.mod.Functions to g.mod.AllFunctions():
// struct/trait method bodies must come out as `define`d LLVM functions,
// not merely `declare`d ones reachable only through a vtable slot or a
// direct call site.
func TestCompileDefinesMethodBodies(t *testing.T) {
	tests := []struct {
		scenario string
		irName   string
	}{
		{"struct method dispatch", "Point.sum"},
		{"trait virtual dispatch", "En.greet"},
		{"trait virtual dispatch", "Es.greet"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.irName, func(t *testing.T) {
			sc, ok := findScenario(tt.scenario)
			require.True(t, ok, "no scenario named %q", tt.scenario)

			out, diags := runac.New().Compile(sc.Build())
			require.True(t, diags.Empty(), "Compile(): %v", diags)
			require.NotNil(t, out)

			text := out.String()
			require.Contains(t, text, "@"+tt.irName,
				"method %s never appears in the emitted module", tt.irName)
			require.Regexp(t, "define [^\n]*@"+regexp.QuoteMeta(tt.irName)+`\(`, text, tt.irName+" must be defined, not merely declared")
		})
	}
}

// TestCompileAssignsDistinctBoolBlockLabels is the regression test for
// expr.go's tmpLabel bug: two independent And/Or expressions in the same
// function must not produce two LLVM blocks named identically
// (`bool.rhs`/`bool.cont` with no distinguishing suffix is invalid IR).
func TestCompileAssignsDistinctBoolBlockLabels(t *testing.T) {
	mod := twoBoolOpsModule()

	out, diags := runac.New().Compile(mod)
	require.True(t, diags.Empty(), "Compile(): %v", diags)
	require.NotNil(t, out)

	text := out.String()
	rhsLabels := countOccurrences(text, "bool.rhs")
	require.GreaterOrEqual(t, rhsLabels, 2, "expected at least two bool.rhs-prefixed labels, got %d", rhsLabels)

	// Every bool.rhs-prefixed label must be unique; duplicates mean the
	// counter suffix regressed back to a bare prefix.
	seen := map[string]bool{}
	for _, label := range labelsWithPrefix(text, "bool.rhs") {
		require.False(t, seen[label], "duplicate LLVM block label %q", label)
		seen[label] = true
	}
}

func countOccurrences(s, substr string) int {
	n := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			n++
		}
	}
	return n
}

// labelsWithPrefix extracts each block-label definition starting with
// prefix: the run of non-whitespace, non-colon characters at an
// occurrence of prefix, kept only when a ':' ends it (a `name:` block
// header, not a `label %name` branch target or phi operand) — enough to
// tell "bool.rhs.1" from "bool.rhs.3" without a full LLVM IR parser.
func labelsWithPrefix(s, prefix string) []string {
	var out []string
	for i := 0; i+len(prefix) <= len(s); i++ {
		if s[i:i+len(prefix)] != prefix {
			continue
		}
		j := i + len(prefix)
		for j < len(s) && s[j] != ':' && s[j] != ' ' && s[j] != '\n' && s[j] != ',' {
			j++
		}
		if j < len(s) && s[j] == ':' {
			out = append(out, s[i:j])
		}
	}
	return out
}

func findScenario(name string) (harness.Scenario, bool) {
	for _, sc := range harness.Scenarios {
		if sc.Name == name {
			return sc, true
		}
	}
	return harness.Scenario{}, false
}

// twoBoolOpsModule builds `fn f(a, b, c, d: bool) -> bool: x = a and b;
// y = c or d; return x and y` — three independent Bool nodes, forcing
// lowerBoolOp to allocate six short-circuit blocks across one function.
func twoBoolOpsModule() *ast.Module {
	mod := ast.NewModule("boolops")
	params := []ast.ParamDecl{
		{Name: "a", TypeName: "bool"},
		{Name: "b", TypeName: "bool"},
		{Name: "c", TypeName: "bool"},
		{Name: "d", TypeName: "bool"},
	}
	cfg := ast.NewCFG()
	b0 := ast.NewBlock(0)
	b0.Steps = []ast.Node{
		&ast.Assign{Target: &ast.Name{Ident: "x"}, Value: &ast.Bool{Op: ast.BoolAnd, Left: &ast.Name{Ident: "a"}, Right: &ast.Name{Ident: "b"}}},
		&ast.Assign{Target: &ast.Name{Ident: "y"}, Value: &ast.Bool{Op: ast.BoolOr, Left: &ast.Name{Ident: "c"}, Right: &ast.Name{Ident: "d"}}},
		&ast.Return{Value: &ast.Bool{Op: ast.BoolAnd, Left: &ast.Name{Ident: "x"}, Right: &ast.Name{Ident: "y"}}},
	}
	cfg.AddBlock(b0)
	fn := &ast.Function{Name: "f", IRName: "f", Args: params, RetName: "bool", CFG: cfg}
	mod.Functions = append(mod.Functions, fn)
	return mod
}
