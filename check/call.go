package check

import (
	"github.com/runalang/runac/ast"
	"github.com/runalang/runac/internal/diag"
	"github.com/runalang/runac/types"
)

// checkCall implements §4.2's three call shapes: free function, method
// call (receiver is an Attrib), and type constructor (Callee is a Name
// bound to a Type). It rewrites n in place: Kind, Virtual, Fun, and
// (for constructors) Init are all set here rather than by a later pass,
// matching "calls possibly rewritten" in the §4.2 output contract.
func (c *Checker) checkCall(b *ast.Block, sc *Scope, idx int, n *ast.Call) *types.Type {
	if attrib, ok := n.Callee.(*ast.Attrib); ok {
		return c.checkMethodCall(b, sc, idx, n, attrib)
	}
	if name, ok := n.Callee.(*ast.Name); ok {
		if t, isType := c.lookupTypeName(name.Ident); isType {
			return c.checkCtorCall(b, sc, idx, n, t)
		}
	}
	return c.checkFreeCall(b, sc, idx, n)
}

func (c *Checker) lookupTypeName(name string) (*types.Type, bool) {
	t, ok := c.reg.GetOrResolve(name)
	if !ok {
		return nil, false
	}
	if t.Kind == types.KStruct || t.Kind == types.KTrait {
		return t, true
	}
	return nil, false
}

func (c *Checker) checkFreeCall(b *ast.Block, sc *Scope, idx int, n *ast.Call) *types.Type {
	callee := c.typeExpr(b, sc, idx, n.Callee)
	if callee.Kind != types.KFunc {
		c.err(diag.KindType, n.Pos(), "call target is not a function: %s", callee)
		return c.reg.MustGet("NoType")
	}
	argTypes := c.typeArgs(b, sc, idx, n.Args)
	if !arityOK(len(argTypes), len(callee.Params), callee.Variadic) {
		c.err(diag.KindSignature, n.Pos(), "wrong number of arguments: got %d, want %d", len(argTypes), len(callee.Params))
		return callee.Ret
	}
	for i := 0; i < len(callee.Params); i++ {
		if !types.Compat(argTypes[i], callee.Params[i]) {
			c.err(diag.KindType, n.Args[i].Expr.Pos(), "argument %d: %s not compatible with %s", i, argTypes[i], callee.Params[i])
		}
		c.moveIfOwned(n.Args[i].Expr, callee.Params[i], sc)
	}
	n.Kind = ast.CallFunc
	return callee.Ret
}

func (c *Checker) checkMethodCall(b *ast.Block, sc *Scope, idx int, n *ast.Call, attrib *ast.Attrib) *types.Type {
	recvT := c.typeExpr(b, sc, idx, attrib.Object)
	u := types.Unwrap(recvT)
	if u == nil || (u.Kind != types.KStruct && u.Kind != types.KTrait) {
		c.err(diag.KindType, n.Pos(), "method call on non-struct/trait type %s", recvT)
		return c.reg.MustGet("NoType")
	}
	method, ok := u.Method(attrib.Field)
	if !ok {
		c.err(diag.KindName, n.Pos(), "no method %q on %s", attrib.Field, u.Name)
		return c.reg.MustGet("NoType")
	}

	argTypes := c.typeArgs(b, sc, idx, n.Args)
	wantParams := method.Params
	if len(wantParams) > 0 && wantParams[0].Name == "self" {
		wantParams = wantParams[1:]
	}
	if !arityOK(len(argTypes), len(wantParams), false) {
		c.err(diag.KindSignature, n.Pos(), "method %s.%s: wrong number of arguments: got %d, want %d", u.Name, attrib.Field, len(argTypes), len(wantParams))
	} else {
		for i := range wantParams {
			if !types.Compat(argTypes[i], wantParams[i].Type) {
				c.err(diag.KindType, n.Args[i].Expr.Pos(), "argument %d: %s not compatible with %s", i, argTypes[i], wantParams[i].Type)
			}
			c.moveIfOwned(n.Args[i].Expr, wantParams[i].Type, sc)
		}
	}

	// Insert the receiver as the first argument; a trait-typed receiver
	// marks the call virtual (dispatched through the vtable at a fixed
	// slot — see codegen/llir for the slot computation).
	n.Args = append([]ast.Arg{{Name: "self", Expr: attrib.Object}}, n.Args...)
	n.Kind = ast.CallMethod
	n.Fun = method
	if u.Kind == types.KTrait {
		n.Virtual = true
	}
	return method.Ret
}

func (c *Checker) checkCtorCall(b *ast.Block, sc *Scope, idx int, n *ast.Call, st *types.Type) *types.Type {
	argTypes := c.typeArgs(b, sc, idx, n.Args)
	init, ok := st.Method("__init__")
	if ok {
		wantParams := init.Params
		if len(wantParams) > 0 && wantParams[0].Name == "self" {
			wantParams = wantParams[1:]
		}
		if !arityOK(len(argTypes), len(wantParams), false) {
			c.err(diag.KindSignature, n.Pos(), "constructor %s: wrong number of arguments: got %d, want %d", st.Name, len(argTypes), len(wantParams))
		} else {
			for i := range wantParams {
				if !types.Compat(argTypes[i], wantParams[i].Type) {
					c.err(diag.KindType, n.Args[i].Expr.Pos(), "constructor argument %d: %s not compatible with %s", i, argTypes[i], wantParams[i].Type)
				}
			}
		}
		n.Fun = init
	}
	initNode := &ast.Init{TypeName: st.Name}
	initNode.SetType(c.reg.Owner(st))
	n.Init = initNode
	n.Kind = ast.CallCtor
	return c.reg.Owner(st)
}

func (c *Checker) typeArgs(b *ast.Block, sc *Scope, idx int, args []ast.Arg) []*types.Type {
	out := make([]*types.Type, len(args))
	for i, a := range args {
		out[i] = c.typeExpr(b, sc, idx, a.Expr)
	}
	return out
}

// moveIfOwned implements "when a parameter is owner(T) and the argument
// is a Name, remove that name from the scope" (§4.2 Call rule).
func (c *Checker) moveIfOwned(arg ast.Expr, paramType *types.Type, sc *Scope) {
	if paramType == nil || paramType.Kind != types.KOwner {
		return
	}
	if name, ok := arg.(*ast.Name); ok {
		sc.Move(name.Ident)
	}
}

func arityOK(got, want int, variadic bool) bool {
	if variadic {
		return got >= want
	}
	return got == want
}
