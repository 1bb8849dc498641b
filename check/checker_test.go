package check_test

import (
	"testing"

	"github.com/runalang/runac/ast"
	"github.com/runalang/runac/check"
	"github.com/runalang/runac/harness"
	"github.com/runalang/runac/internal/diag"
	"github.com/runalang/runac/types"
)

// registerModule mirrors runac.go's unexported registerTypes: add every
// declaration's placeholder, then fill them all, so forward/cyclic
// references between struct/trait decls resolve the same way the real
// Compiler does it.
func registerModule(t *testing.T, mod *ast.Module, reg *types.Registry) {
	t.Helper()
	for _, decl := range mod.Types {
		reg.Add(decl)
	}
	for _, decl := range mod.Types {
		if err := reg.Fill(decl, reg.Resolve); err != nil {
			t.Fatalf("Fill(%s): %v", decl.Name, err)
		}
	}
}

func TestCheckAllAcceptsWellTypedScenarios(t *testing.T) {
	for _, sc := range harness.Scenarios {
		sc := sc
		t.Run(sc.Name, func(t *testing.T) {
			mod := sc.Build()
			reg := types.NewRegistry()
			registerModule(t, mod, reg)

			diags := check.NewChecker(mod, reg).CheckAll()

			wantErr := sc.Want.CompileErrorContains != ""
			if wantErr && diags.Empty() {
				t.Fatalf("CheckAll(): expected a diagnostic containing %q, got none", sc.Want.CompileErrorContains)
			}
			if !wantErr && !diags.Empty() {
				t.Fatalf("CheckAll(): unexpected diagnostics: %s", diags.Error())
			}
		})
	}
}

// TestOwnershipTransferRejectsSecondUse pins down the exact diagnostic
// kind behind scenarioOwnershipTransfer's "undefined name" expectation:
// a moved-from binding's second use is rejected as diag.KindName, the
// same way the checker rejects any other unbound identifier, since a
// move simply removes the name from scope rather than flagging it with
// a distinct ownership-specific diagnostic kind.
func TestOwnershipTransferRejectsSecondUse(t *testing.T) {
	var sc harness.Scenario
	for _, s := range harness.Scenarios {
		if s.Name == "ownership transfer" {
			sc = s
		}
	}
	if sc.Name == "" {
		t.Fatal("no \"ownership transfer\" scenario found")
	}

	mod := sc.Build()
	reg := types.NewRegistry()
	registerModule(t, mod, reg)

	diags := check.NewChecker(mod, reg).CheckAll()
	if diags.Empty() {
		t.Fatalf("CheckAll(): expected a diagnostic for the moved-from use, got none")
	}
	found := false
	for _, d := range diags.Items() {
		if d.Kind == diag.KindName {
			found = true
		}
	}
	if !found {
		t.Errorf("CheckAll() diagnostics = %s, want a diag.KindName entry", diags.Error())
	}
}

// delTypeModule builds a single struct with a non-void __del__, which
// isVoidMethod's check must reject the same way the original compiler's
// typer.py VOID = {'__init__', '__del__'} set does.
func delTypeModule(delRet string) *ast.Module {
	cfg := ast.NewCFG()
	b0 := ast.NewBlock(0)
	b0.Steps = []ast.Node{&ast.Return{}}
	cfg.AddBlock(b0)
	delBody := &ast.Function{
		Name:    "__del__",
		IRName:  "Buf.__del__",
		Args:    []ast.ParamDecl{{Name: "self", TypeName: "owner(Buf)"}},
		RetName: delRet,
		CFG:     cfg,
	}

	mod := ast.NewModule("lifecycle")
	mod.Types["Buf"] = ast.TypeDecl{
		Name: "Buf",
		Kind: ast.DeclStruct,
		Methods: []ast.MethodDecl{
			{Name: "__del__", Params: nil, RetName: delRet, Body: delBody},
		},
	}
	return mod
}

func TestDelMustReturnVoid(t *testing.T) {
	mod := delTypeModule("i32")
	reg := types.NewRegistry()
	registerModule(t, mod, reg)

	diags := check.NewChecker(mod, reg).CheckAll()
	if diags.Empty() {
		t.Fatalf("CheckAll(): expected a signature error for a non-void __del__, got none")
	}
	found := false
	for _, d := range diags.Items() {
		if d.Kind == diag.KindSignature {
			found = true
		}
	}
	if !found {
		t.Errorf("CheckAll() diagnostics = %s, want a diag.KindSignature entry", diags.Error())
	}
}

func TestVoidDelIsAccepted(t *testing.T) {
	mod := delTypeModule("void")
	reg := types.NewRegistry()
	registerModule(t, mod, reg)

	diags := check.NewChecker(mod, reg).CheckAll()
	if !diags.Empty() {
		t.Errorf("CheckAll(): unexpected diagnostics for a void __del__: %s", diags.Error())
	}
}
