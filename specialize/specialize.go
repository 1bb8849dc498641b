// Package specialize resolves anyint/anyfloat (width-unresolved numeric
// literal types) to concrete widths from context, after type checking
// and before escape analysis. See SPEC_FULL.md §4.3.
package specialize

import (
	"github.com/runalang/runac/ast"
	"github.com/runalang/runac/internal/diag"
	"github.com/runalang/runac/types"
)

// Specializer runs one pass per function. Running it twice must not
// alter any node's type (§8 "specializer idempotence") — every rule
// below only acts when the node's current type is still anyint/anyfloat,
// so a second pass is a no-op once the first has resolved everything.
type Specializer struct {
	reg   *types.Registry
	diags diag.List
}

func New(reg *types.Registry) *Specializer { return &Specializer{reg: reg} }

// Run specializes every function body in mod. It is safe to call twice.
func (s *Specializer) Run(fns []*ast.Function) *diag.List {
	for _, fn := range fns {
		retT, _ := s.reg.GetOrResolve(fn.RetName)
		for _, b := range fn.CFG.Blocks {
			for _, step := range b.Steps {
				s.visitStep(step, retT)
			}
		}
	}
	for _, fn := range fns {
		for _, b := range fn.CFG.Blocks {
			for _, step := range b.Steps {
				s.checkResolved(step)
			}
		}
	}
	return &s.diags
}

func (s *Specializer) visitStep(n ast.Node, retT *types.Type) {
	switch st := n.(type) {
	case *ast.Return:
		if st.Value != nil {
			s.visit(st.Value, retT)
		}
	case *ast.Assign:
		s.visit(st.Value, nil)
	case *ast.TupleAssign:
		s.visit(st.Value, nil)
	case ast.Expr:
		s.visit(st, nil)
	}
}

// visit walks e, resolving any anyint/anyfloat node using ctx (the
// destination type this expression is flowing into, if known) or
// sibling information for binary-shaped nodes.
func (s *Specializer) visit(e ast.Expr, ctx *types.Type) {
	if e == nil {
		return
	}
	if isUnresolved(e) && ctx != nil && isConcreteNumeric(ctx) {
		if lit, ok := e.(*ast.IntLit); ok && ctx.Kind == types.KInt {
			fits := types.ClampSigned(lit.Value, ctx.Bits)
			if !ctx.Signed {
				fits = types.ClampUnsigned(lit.Value, ctx.Bits)
			}
			if !fits {
				s.diags.Add(diag.New(diag.KindType, lit.Pos(), "literal %d does not fit in %s", lit.Value, ctx))
			}
		}
		resolve(e, ctx, s.reg)
	}
	switch n := e.(type) {
	case *ast.Binary:
		lt, rt := typeOf(n.Left), typeOf(n.Right)
		s.visit(n.Left, pick(rt, lt))
		s.visit(n.Right, pick(lt, rt))
	case *ast.Compare:
		lt, rt := typeOf(n.Left), typeOf(n.Right)
		s.visit(n.Left, pick(rt, lt))
		s.visit(n.Right, pick(lt, rt))
	case *ast.Bool:
		s.visit(n.Left, nil)
		s.visit(n.Right, nil)
	case *ast.Not:
		s.visit(n.X, nil)
	case *ast.Ternary:
		s.visit(n.Cond, nil)
		s.visit(n.Left, ctx)
		s.visit(n.Right, ctx)
	case *ast.Phi:
		s.visit(n.Left, ctx)
		s.visit(n.Right, ctx)
	case *ast.As:
		// n.X's destination is the cast target: always concrete.
		s.visit(n.X, typeOf(n))
	case *ast.Attrib:
		s.visit(n.Object, nil)
	case *ast.Elem:
		s.visit(n.Object, nil)
		s.visit(n.Key, nil)
	case *ast.Call:
		s.visitCall(n)
	}
}

func (s *Specializer) visitCall(n *ast.Call) {
	params := paramsOf(n.Fun)
	offset := 0
	if n.Kind == ast.CallMethod && len(params) > 0 {
		offset = 1 // self already typed; arg 0 in n.Args is the receiver
	}
	for i, a := range n.Args {
		var want *types.Type
		pi := i - offset
		if pi >= 0 && pi < len(params) {
			want = params[pi].Type
		}
		s.visit(a.Expr, want)
	}
}

func paramsOf(fun any) []types.Param {
	switch f := fun.(type) {
	case *types.Method:
		return f.Params
	}
	return nil
}

// pick returns other if it is a concrete numeric type, else nil —
// "literal used in comparison inherits the other side's type" (§4.3).
func pick(other, self *types.Type) *types.Type {
	if isConcreteNumeric(other) {
		return other
	}
	return nil
}

func isUnresolved(e ast.Expr) bool {
	t := typeOf(e)
	return t != nil && (t.Kind == types.KAnyInt || t.Kind == types.KAnyFloat)
}

func isConcreteNumeric(t *types.Type) bool {
	return t != nil && (t.Kind == types.KInt || t.Kind == types.KFloat)
}

func typeOf(e ast.Expr) *types.Type {
	if e == nil {
		return nil
	}
	t, _ := ast.Typed(e).(*types.Type)
	return t
}

func resolve(e ast.Expr, dst *types.Type, reg *types.Registry) {
	if settable, ok := e.(ast.Settable); ok {
		settable.SetType(dst)
	}
}

// checkResolved reports an Internal diagnostic for a node still
// anyint/anyfloat after the pass — "remaining unresolved types after
// one pass is an error" (§4.3). It inspects expression steps and return
// values, descending into Binary and Compare operands and Call
// arguments; assignment values and other nested nodes are not inspected.
func (s *Specializer) checkResolved(n ast.Node) {
	e, ok := n.(ast.Expr)
	if !ok {
		if ret, ok := n.(*ast.Return); ok && ret.Value != nil {
			s.checkResolved(ret.Value)
		}
		return
	}
	if isUnresolved(e) {
		s.diags.Add(diag.Internal(e.Pos(), "unresolved numeric literal after specialization"))
	}
	switch n := e.(type) {
	case *ast.Binary:
		s.checkResolved(n.Left)
		s.checkResolved(n.Right)
	case *ast.Compare:
		s.checkResolved(n.Left)
		s.checkResolved(n.Right)
	case *ast.Call:
		for _, a := range n.Args {
			s.checkResolved(a.Expr)
		}
	}
}
