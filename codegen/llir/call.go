// Call lowering: free functions and externs resolved by name, method
// calls (direct for a struct receiver, virtual through the trait's
// vtable when Virtual is set), and constructor calls (Init followed by
// __init__, yielding the allocated pointer).
package llir

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/runalang/runac/ast"
	rtypes "github.com/runalang/runac/types"
)

func (g *Generator) lowerCall(fr *frame, n *ast.Call) value.Value {
	switch n.Kind {
	case ast.CallCtor:
		return g.lowerCtorCall(fr, n)
	case ast.CallMethod:
		if n.Virtual {
			return g.lowerVirtualCall(fr, n)
		}
		return g.lowerDirectMethodCall(fr, n)
	default:
		return g.lowerFreeCall(fr, n)
	}
}

func (g *Generator) lowerArgs(fr *frame, args []ast.Arg) []value.Value {
	out := make([]value.Value, len(args))
	for i, a := range args {
		out[i] = g.lowerExpr(fr, a.Expr)
	}
	return out
}

// lowerFreeCall resolves the callee by name against the module's own
// functions or externs — free calls carry no resolved Fun (see
// check/call.go's checkFreeCall), only a Name whose Ident the registry
// and module both index by.
func (g *Generator) lowerFreeCall(fr *frame, n *ast.Call) value.Value {
	name, ok := n.Callee.(*ast.Name)
	if !ok {
		return constant.NewInt(types.I64, 0)
	}
	args := g.lowerArgs(fr, n.Args)
	if fn, ok := g.funcByName(name.Ident); ok {
		return fr.cur.NewCall(fn, args...)
	}
	return constant.NewInt(types.I64, 0)
}

func (g *Generator) funcByName(name string) (*ir.Func, bool) {
	for _, fn := range g.mod.Functions {
		if fn.Name == name {
			f, ok := g.funcs[fn.IRName]
			return f, ok
		}
	}
	if ext, ok := g.mod.Externs[name]; ok {
		f, ok := g.externs[name]
		_ = ext
		return f, ok
	}
	return nil, false
}

func (g *Generator) lowerDirectMethodCall(fr *frame, n *ast.Call) value.Value {
	m, ok := n.Fun.(*rtypes.Method)
	if !ok {
		return constant.NewInt(types.I64, 0)
	}
	fn := g.funcOf(m)
	args := g.lowerArgs(fr, n.Args)
	return fr.cur.NewCall(fn, args...)
}

// lowerVirtualCall dispatches through the receiver trait value's
// vtable: load the vtable pointer from slot 0, the data pointer from
// slot 1, fetch the method's function pointer at its fixed
// (lexicographic, see types.Type.MethodNames) slot, bitcast it to the
// call's actual signature, and invoke it with the unpacked data pointer
// as the receiver.
func (g *Generator) lowerVirtualCall(fr *frame, n *ast.Call) value.Value {
	m, ok := n.Fun.(*rtypes.Method)
	if !ok || len(n.Args) == 0 {
		return constant.NewInt(types.I64, 0)
	}
	recvExpr := n.Args[0].Expr
	recvT := rtypes.Unwrap(g.exprRType(recvExpr))
	wrapT := g.wrapTypes[recvT.Name]
	wrapPtr := g.lowerExpr(fr, recvExpr)

	vtPtrField := fr.cur.NewGetElementPtr(wrapT, wrapPtr, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, 0))
	vt := fr.cur.NewLoad(types.NewPointer(g.vtTypes[recvT.Name]), vtPtrField)
	dataPtrField := fr.cur.NewGetElementPtr(wrapT, wrapPtr, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, 1))
	data := fr.cur.NewLoad(types.NewPointer(types.I8), dataPtrField)

	slot := vtableSlot(recvT, methodNameOf(recvT, m))
	slotPtr := fr.cur.NewGetElementPtr(g.vtTypes[recvT.Name], vt, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, int64(slot)))
	rawFn := fr.cur.NewLoad(types.NewPointer(types.I8), slotPtr)

	params := []types.Type{types.NewPointer(types.I8)}
	for i, p := range m.Params {
		if i == 0 && p.Name == "self" {
			continue
		}
		params = append(params, g.llType(p.Type))
	}
	sig := types.NewFunc(g.llType(m.Ret), params...)
	typedFn := fr.cur.NewBitCast(rawFn, types.NewPointer(sig))

	args := []value.Value{data}
	for _, a := range n.Args[1:] {
		args = append(args, g.lowerExpr(fr, a.Expr))
	}
	return fr.cur.NewCall(typedFn, args...)
}

// methodNameOf recovers the surface method name for a resolved *Method
// by re-searching the trait's method table — Method itself only stores
// the mangled IRName, not the surface name.
func methodNameOf(trait *rtypes.Type, m *rtypes.Method) string {
	for _, name := range trait.MethodNames() {
		if cand, ok := trait.Method(name); ok && cand.IRName == m.IRName {
			return name
		}
	}
	return ""
}

// lowerCtorCall lowers the synthetic Init node (stack alloca or heap
// malloc, decided by escape analysis), calls __init__ on the fresh
// pointer if one is declared, and yields the pointer as the
// constructor's result (§4.2/§4.4).
func (g *Generator) lowerCtorCall(fr *frame, n *ast.Call) value.Value {
	initNode, ok := n.Init.(*ast.Init)
	if !ok {
		return constant.NewInt(types.I64, 0)
	}
	ptr := g.lowerInit(fr, initNode)
	if m, ok := n.Fun.(*rtypes.Method); ok {
		fn := g.funcOf(m)
		args := []value.Value{ptr}
		for _, a := range n.Args {
			args = append(args, g.lowerExpr(fr, a.Expr))
		}
		fr.cur.NewCall(fn, args...)
	}
	return ptr
}

// lowerInit allocates the struct: a stack alloca when the escape
// analyzer left Escapes false, a heap allocation through the runtime's
// malloc sized by the struct's `.size` global otherwise (§4.4, §6).
func (g *Generator) lowerInit(fr *frame, n *ast.Init) value.Value {
	structT := g.structTypes[n.TypeName]
	if !n.Escapes {
		return fr.entry.NewAlloca(structT)
	}
	sizeG := g.sizeGlobals[n.TypeName]
	mallocFn, ok := g.externs["runa.malloc"]
	if !ok {
		return fr.entry.NewAlloca(structT)
	}
	size := fr.cur.NewLoad(types.I64, sizeG)
	raw := fr.cur.NewCall(mallocFn, size)
	return fr.cur.NewBitCast(raw, types.NewPointer(structT))
}
