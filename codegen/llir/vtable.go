// Trait vtable construction: type declarations, per-struct vtable
// instances, and the "wrap into a trait value" / "dispatch through a
// trait value" lowering. Grounded on the malphas-lang vtables.go
// reference (other_examples) — a two-word fat pointer (laid out here as
// {vtable*, data*}), same "store every slot as a bare pointer, bitcast at the
// call site" trick, adapted here to Runa's trait-implements-by-method-
// set model (no explicit `impl` blocks — any struct whose method set is
// a superset of the trait's implements it, per §4.1).
package llir

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/runalang/runac/ast"
	rtypes "github.com/runalang/runac/types"
)

// declareTraits emits, for every trait T:
//
//	%vtable.T = type { i8*, i8*, ... }   (one i8* slot per MethodNames())
//	%T        = type { %vtable.T*, i8* } (fat pointer: vtable, data)
//
// and, for every struct S whose method set satisfies T (checked once by
// the type checker already; here we just recompute compatibility to
// decide which instances to emit), a vtable instance global.
func (g *Generator) declareTraits() {
	for _, name := range sortedKeys(g.mod.Types) {
		decl := g.mod.Types[name]
		if decl.Kind != ast.DeclTrait {
			continue
		}
		trait, ok := g.reg.Get(name)
		if !ok {
			continue
		}
		g.declareVtableType(trait)
		g.declareWrapType(trait)
	}
	for _, name := range sortedKeys(g.mod.Types) {
		decl := g.mod.Types[name]
		if decl.Kind != ast.DeclStruct {
			continue
		}
		st, ok := g.reg.Get(name)
		if !ok {
			continue
		}
		for _, tname := range sortedKeys(g.mod.Types) {
			if g.mod.Types[tname].Kind != ast.DeclTrait {
				continue
			}
			trait, ok := g.reg.Get(tname)
			if !ok || !implementsTrait(st, trait) {
				continue
			}
			g.declareVtableInstance(trait, st)
		}
	}
}

func implementsTrait(st, trait *rtypes.Type) bool {
	for _, name := range trait.MethodNames() {
		if _, ok := st.Method(name); !ok {
			return false
		}
	}
	return true
}

func (g *Generator) declareVtableType(trait *rtypes.Type) *types.StructType {
	if t, ok := g.vtTypes[trait.Name]; ok {
		return t
	}
	names := trait.MethodNames()
	fields := make([]types.Type, len(names))
	for i := range names {
		fields[i] = types.NewPointer(types.I8) // every slot stored as i8*, bitcast at call site
	}
	if len(fields) == 0 {
		fields = []types.Type{types.I8}
	}
	named := g.out.NewTypeDef("vtable."+trait.Name, types.NewStruct(fields...))
	g.vtTypes[trait.Name] = named
	return named
}

func (g *Generator) declareWrapType(trait *rtypes.Type) *types.StructType {
	if t, ok := g.wrapTypes[trait.Name]; ok {
		return t
	}
	vt := g.declareVtableType(trait)
	st := types.NewStruct(types.NewPointer(vt), types.NewPointer(types.I8))
	named := g.out.NewTypeDef(trait.Name, st)
	g.wrapTypes[trait.Name] = named
	return named
}

// declareVtableInstance emits `@vtable.T.for.S = constant %vtable.T {...}`
// populating each slot with S's implementation of the corresponding
// trait method, function-pointer-cast to i8*.
func (g *Generator) declareVtableInstance(trait, st *rtypes.Type) *ir.Global {
	if insts, ok := g.vtInstances[trait.Name]; ok {
		if gv, ok := insts[st.Name]; ok {
			return gv
		}
	}
	vtType := g.declareVtableType(trait)
	names := trait.MethodNames()
	i8ptr := types.NewPointer(types.I8)
	slots := make([]constant.Constant, 0, len(names))
	for _, mname := range names {
		impl, ok := st.Method(mname)
		if !ok {
			slots = append(slots, constant.NewNull(i8ptr))
			continue
		}
		fn, ok := g.funcs[impl.IRName]
		if !ok {
			// Forward reference: the vtable instance is declared before
			// every function body is emitted, so record a placeholder
			// and patch it once emitFunction runs (declareExterns-style
			// two pass would also work; deferring is simpler here since
			// ir.Func values are stable pointers once created).
			fn = g.predeclareFunc(impl)
		}
		slots = append(slots, constant.NewBitCast(fn, i8ptr))
	}
	var init constant.Constant
	if len(slots) == 0 {
		init = constant.NewStruct(vtType, constant.NewInt(types.I8, 0))
	} else {
		init = constant.NewStruct(vtType, slots...)
	}
	gv := g.out.NewGlobalDef(fmt.Sprintf("vtable.%s.for.%s", trait.Name, st.Name), init)
	gv.Immutable = true
	if g.vtInstances[trait.Name] == nil {
		g.vtInstances[trait.Name] = make(map[string]*ir.Global)
	}
	g.vtInstances[trait.Name][st.Name] = gv
	return gv
}

// predeclareFunc returns the ir.Func for a method not yet emitted,
// creating its signature now (emitFunction fills the body in later when
// it reaches this function in g.mod.AllFunctions(); g.funcs is keyed by
// IRName so the two paths converge on the same *ir.Func).
func (g *Generator) predeclareFunc(m *rtypes.Method) *ir.Func {
	params := make([]*ir.Param, len(m.Params))
	for i, p := range m.Params {
		params[i] = ir.NewParam(p.Name, g.llType(p.Type))
	}
	fn := g.out.NewFunc(m.IRName, g.llType(m.Ret), params...)
	g.funcs[m.IRName] = fn
	return fn
}

// vtableSlot returns the 0-based slot index of methodName within
// trait's vtable, matching §5's "methods sorted lexicographically by
// name" ordering invariant that types.Type.MethodNames() already
// enforces.
func vtableSlot(trait *rtypes.Type, methodName string) int {
	for i, name := range trait.MethodNames() {
		if name == methodName {
			return i
		}
	}
	return -1
}
