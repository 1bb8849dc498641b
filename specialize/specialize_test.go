package specialize

import (
	"testing"

	"github.com/runalang/runac/ast"
	"github.com/runalang/runac/types"
)

func returningFunction(retName string, value ast.Expr) *ast.Function {
	cfg := ast.NewCFG()
	b0 := ast.NewBlock(0)
	b0.Steps = []ast.Node{&ast.Return{Value: value}}
	cfg.AddBlock(b0)
	return &ast.Function{Name: "f", IRName: "f", RetName: retName, CFG: cfg}
}

func TestRunResolvesAnyIntFromReturnContext(t *testing.T) {
	reg := types.NewRegistry()
	lit := &ast.IntLit{Value: 5}
	lit.SetType(reg.MustGet("anyint"))
	fn := returningFunction("i32", lit)

	diags := New(reg).Run([]*ast.Function{fn})
	if !diags.Empty() {
		t.Fatalf("Run(): unexpected diagnostics: %s", diags.Error())
	}

	got, _ := ast.Typed(lit).(*types.Type)
	want := reg.MustGet("i32")
	if got != want {
		t.Errorf("literal type = %v, want %v", got, want)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	reg := types.NewRegistry()
	lit := &ast.IntLit{Value: 5}
	lit.SetType(reg.MustGet("anyint"))
	fn := returningFunction("i32", lit)

	New(reg).Run([]*ast.Function{fn})
	firstPass, _ := ast.Typed(lit).(*types.Type)

	diags := New(reg).Run([]*ast.Function{fn})
	if !diags.Empty() {
		t.Fatalf("second Run(): unexpected diagnostics: %s", diags.Error())
	}
	secondPass, _ := ast.Typed(lit).(*types.Type)

	if firstPass != secondPass {
		t.Errorf("Run() is not idempotent: first pass %v, second pass %v", firstPass, secondPass)
	}
}

func TestRunReportsStillUnresolvedLiterals(t *testing.T) {
	reg := types.NewRegistry()
	lit := &ast.IntLit{Value: 5}
	lit.SetType(reg.MustGet("anyint"))
	// void return context gives the specializer nothing to resolve
	// against, so the literal should still be anyint after one pass.
	fn := returningFunction("void", lit)

	diags := New(reg).Run([]*ast.Function{fn})
	if diags.Empty() {
		t.Fatalf("Run(): expected a diagnostic for a still-unresolved literal, got none")
	}
}
