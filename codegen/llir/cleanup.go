// Scope-exit cleanup: pairing every heap allocation the escape analyzer
// left Escapes=true with a release call at the point its owning local
// goes out of scope, per §3 Lifecycles ("heap allocations emitted by
// the code generator are paired with __del__ calls or free at points
// determined by scope exit and ownership transfer"). Grounded on the
// original compiler's lang/codegen.py cleanups() helper, which emits
// `call void @T.__del__(...)` for every non-variable, non-constant
// pointer temporary whose type declares __del__ — generalized here to
// fall back to a bare runa.free when the type declares none.
package llir

import (
	"sort"

	"github.com/llir/llvm/ir/types"
	"github.com/runalang/runac/ast"
)

// heapLocal is a function-local binding holding a heap-allocated,
// owner-typed struct — a candidate for scope-exit cleanup.
type heapLocal struct {
	name     string
	typeName string
}

// heapLocalsOf walks every Assign in fn's CFG looking for a struct
// constructor call whose synthetic Init escaped to the heap, bound
// directly to a Name. Sorted by name for deterministic emission order.
func heapLocalsOf(fn *ast.Function) []heapLocal {
	seen := make(map[string]string)
	for _, b := range fn.CFG.Blocks {
		for _, step := range b.Steps {
			asn, ok := step.(*ast.Assign)
			if !ok {
				continue
			}
			name, ok := asn.Target.(*ast.Name)
			if !ok {
				continue
			}
			if tn, ok := escapingCtorType(asn.Value); ok {
				seen[name.Ident] = tn
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]heapLocal, len(names))
	for i, n := range names {
		out[i] = heapLocal{name: n, typeName: seen[n]}
	}
	return out
}

// escapingCtorType reports the struct type name of v if v is a
// constructor call (or bare Init) whose allocation the escape analyzer
// routed to the heap.
func escapingCtorType(v ast.Expr) (string, bool) {
	switch n := v.(type) {
	case *ast.Init:
		if n.Escapes {
			return n.TypeName, true
		}
	case *ast.Call:
		if n.Kind != ast.CallCtor {
			return "", false
		}
		if init, ok := n.Init.(*ast.Init); ok && init.Escapes {
			return init.TypeName, true
		}
	}
	return "", false
}

// emitCleanups releases every heap local in fn that survived to this
// return point without being moved out by it: ownership transfer (the
// returned name itself) exempts a local from release the same way
// §4.2's scope-merge move rule exempts it from later use.
func (g *Generator) emitCleanups(fr *frame, fn *ast.Function, ret ast.Expr) {
	locals := heapLocalsOf(fn)
	if len(locals) == 0 {
		return
	}
	movedOut := ""
	if name, ok := ret.(*ast.Name); ok {
		movedOut = name.Ident
	}
	for _, loc := range locals {
		if loc.name == movedOut {
			continue
		}
		g.emitRelease(fr, loc)
	}
}

// emitRelease calls the struct's __del__ destructor if it declares one,
// otherwise frees the raw allocation directly through the runtime
// prelude's runa.free.
func (g *Generator) emitRelease(fr *frame, loc heapLocal) {
	st, ok := g.reg.Get(loc.typeName)
	if !ok {
		return
	}
	structT := g.structTypes[loc.typeName]
	if structT == nil {
		return
	}
	ptr := fr.load(loc.name, types.NewPointer(structT))
	if m, ok := st.Method("__del__"); ok {
		fn := g.funcOf(m)
		fr.cur.NewCall(fn, ptr)
		return
	}
	freeFn, ok := g.externs["runa.free"]
	if !ok {
		return
	}
	raw := fr.cur.NewBitCast(ptr, types.NewPointer(types.I8))
	fr.cur.NewCall(freeFn, raw)
}
