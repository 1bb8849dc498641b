package escape

import (
	"testing"

	"github.com/runalang/runac/ast"
	"github.com/runalang/runac/types"
)

// ownerParamCall builds a single-block function whose only step is a
// method call taking the struct self-receiver plus one owner(Buf)-typed
// argument — the shape analyzeCall's "owner-typed parameter marks its
// argument as escaping" rule matches.
func ownerParamCall(arg ast.Expr) *ast.Function {
	m := &types.Method{Params: []types.Param{{Name: "buf", Type: &types.Type{Kind: types.KOwner, Elem: &types.Type{Kind: types.KStruct, Name: "Buf"}}}}}
	call := &ast.Call{
		Kind: ast.CallMethod,
		Fun:  m,
		Args: []ast.Arg{{Expr: &ast.Name{Ident: "self"}}, {Expr: arg}},
	}
	cfg := ast.NewCFG()
	b0 := ast.NewBlock(0)
	b0.Steps = []ast.Node{call, &ast.Return{}}
	cfg.AddBlock(b0)
	return &ast.Function{Name: "f", IRName: "f", CFG: cfg}
}

func TestAnalyzeMarksOwnerArgumentAsEscaping(t *testing.T) {
	init := &ast.Init{TypeName: "Buf"}
	fn := ownerParamCall(init)

	Analyze([]*ast.Function{fn})

	if !init.Escapes {
		t.Errorf("Init.Escapes = false, want true: constructor passed to an owner-typed parameter must escape")
	}
}

func TestAnalyzeLeavesPurelyLocalInitAlone(t *testing.T) {
	init := &ast.Init{TypeName: "Buf"}
	cfg := ast.NewCFG()
	b0 := ast.NewBlock(0)
	b0.Steps = []ast.Node{
		&ast.Assign{Target: &ast.Name{Ident: "p"}, Value: init},
		&ast.Return{},
	}
	cfg.AddBlock(b0)
	fn := &ast.Function{Name: "f", IRName: "f", CFG: cfg}

	Analyze([]*ast.Function{fn})

	if init.Escapes {
		t.Errorf("Init.Escapes = true, want false: a binding never passed to an owner parameter or returned must stay stack-allocated")
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	init := &ast.Init{TypeName: "Buf"}
	fn := ownerParamCall(init)

	Analyze([]*ast.Function{fn})
	first := init.Escapes

	Analyze([]*ast.Function{fn})
	second := init.Escapes

	if first != second {
		t.Errorf("Analyze() is not idempotent: first run Escapes=%v, second run Escapes=%v", first, second)
	}
}
