package llir

import (
	"fmt"
	"runtime"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/runalang/runac/ast"
	"github.com/runalang/runac/internal/diag"
	rtypes "github.com/runalang/runac/types"
)

// Options configures code generation. Grounded directly on the
// teacher's benc.go functional-options pattern (optFunc/Opts/
// WithBufferSize) — see SPEC_FULL.md's Ambient Stack / Configuration.
type Options struct {
	targetTriple string
	// shortCircuit selects how And/Or lower. True (the default,
	// resolving §9's first Open Question) always builds branches+phi so
	// side effects on either operand are preserved; false falls back to
	// a select, matching the Open Question's described-but-rejected
	// eager-evaluation behavior, kept only so a caller can reproduce the
	// original semantics for comparison/testing.
	shortCircuit bool
}

type OptFunc func(*Options)

func defaultOptions() Options {
	return Options{
		targetTriple: TripleForHost(),
		shortCircuit: true,
	}
}

// WithTargetTriple overrides the host-detected triple (§6).
func WithTargetTriple(triple string) OptFunc {
	return func(o *Options) { o.targetTriple = triple }
}

// WithSelectLowering disables short-circuit branch+phi lowering for
// And/Or in favor of select, reproducing the Open Question's original
// (side-effect-unsafe) behavior.
func WithSelectLowering() OptFunc {
	return func(o *Options) { o.shortCircuit = false }
}

// TripleForHost implements §6's target-triple selection.
func TripleForHost() string {
	switch runtime.GOOS {
	case "darwin":
		return "x86_64-apple-darwin11.0.0"
	default:
		return "x86_64-pc-linux-gnu"
	}
}

// Generator lowers one type-checked Module to LLIR.
type Generator struct {
	mod *ast.Module
	reg *rtypes.Registry
	opt Options

	out *ir.Module

	strType    types.Type
	structTypes map[string]*types.StructType
	wrapTypes   map[string]*types.StructType // trait existential {vtable*, i8*}
	vtTypes     map[string]*types.StructType // trait vtable type
	vtInstances map[string]map[string]*ir.Global
	arrayTypes  map[string]types.Type
	sizeGlobals map[string]*ir.Global
	externs     map[string]*ir.Func
	funcs       map[string]*ir.Func
	strLitCount int

	diags diag.List
}

// New builds a Generator for mod using reg (post type-check,
// post-specialize, post-escape-analysis).
func New(mod *ast.Module, reg *rtypes.Registry, opts ...OptFunc) *Generator {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	g := &Generator{
		mod:         mod,
		reg:         reg,
		opt:         o,
		out:         ir.NewModule(),
		structTypes: make(map[string]*types.StructType),
		wrapTypes:   make(map[string]*types.StructType),
		vtTypes:     make(map[string]*types.StructType),
		vtInstances: make(map[string]map[string]*ir.Global),
		arrayTypes:  make(map[string]types.Type),
		sizeGlobals: make(map[string]*ir.Global),
		externs:     make(map[string]*ir.Func),
		funcs:       make(map[string]*ir.Func),
	}
	g.out.TargetTriple = o.targetTriple
	g.strType = g.declareStrType()
	return g
}

// declareStrType emits the `str` representation the runtime prelude
// expects: `{length: uword, data: &byte}` (§3, §6).
func (g *Generator) declareStrType() types.Type {
	st := types.NewStruct(types.I64, types.NewPointer(types.I8))
	return g.out.NewTypeDef("str", st)
}

// Generate runs the full lowering: type declarations, trait
// declarations, external declarations, and per-function bodies (§4.5),
// returning the built module ready for String()-ing or for prepending
// the runtime prelude (see rt.Prepend).
func (g *Generator) Generate() (*ir.Module, error) {
	g.declareRuntimeExterns()
	g.declareTypes()
	g.declareTraits()
	g.declareExterns()
	for _, fn := range g.mod.AllFunctions() {
		if err := g.emitFunction(fn); err != nil {
			return nil, diag.Wrap(err, fmt.Sprintf("generating function %s", fn.Name))
		}
	}
	if !g.diags.Empty() {
		return nil, &g.diags
	}
	return g.out, nil
}

// declareTypes emits a named LLVM struct type and a size global for
// every user struct (§4.5 "Type declarations"): fields ordered by slot
// index, and
//
//	@T.size = constant i64 ptrtoint(T* getelementptr(T*, null, 1) to i64)
//
// so the runtime's allocator knows how many bytes a heap T needs.
func (g *Generator) declareTypes() {
	for _, name := range sortedKeys(g.mod.Types) {
		decl := g.mod.Types[name]
		if decl.Kind != ast.DeclStruct {
			continue
		}
		t, ok := g.reg.Get(name)
		if !ok {
			g.diags.Add(diag.Internal(ast.Span{}, "codegen: struct %s missing from registry", name))
			continue
		}
		fields := make([]types.Type, len(t.Attrs()))
		for i, a := range t.Attrs() {
			fields[i] = g.llType(a.Type)
		}
		st := types.NewStruct(fields...)
		named := g.out.NewTypeDef(name, st)
		g.structTypes[name] = named
		g.declareSizeGlobal(name, named)
	}
}

func (g *Generator) declareSizeGlobal(name string, st *types.StructType) {
	ptrT := types.NewPointer(st)
	nullPtr := constant.NewNull(ptrT)
	one := constant.NewInt(types.I64, 1)
	gepOne := constant.NewGetElementPtr(st, nullPtr, one)
	sizeVal := constant.NewPtrToInt(gepOne, types.I64)
	global := g.out.NewGlobalDef(name+".size", sizeVal)
	global.Immutable = true
	g.sizeGlobals[name] = global
}

// declareExterns emits `declare` lines for the module's own foreign
// prototypes (§4.5). The §6 runtime prelude's primitives
// (runa.malloc/runa.free/runa.memcpy and the iterator calls) are
// declared separately, by declareRuntimeExterns.
func (g *Generator) declareExterns() {
	for _, name := range sortedExternKeys(g.mod.Externs) {
		ext := g.mod.Externs[name]
		ret, _ := g.reg.GetOrResolve(ext.RetTypeName)
		params := make([]*ir.Param, len(ext.ParamTypes))
		for i, pn := range ext.ParamTypes {
			pt, _ := g.reg.GetOrResolve(pn)
			params[i] = ir.NewParam("", g.llType(pt))
		}
		f := g.out.NewFunc(ext.TargetName, g.llType(ret), params...)
		if ext.Variadic {
			f.Sig.Variadic = true
		}
		g.externs[name] = f
	}
}

// declareRuntimeExterns seeds g.externs with the prelude primitives
// rt.Prelude() declares textually (§6). Declaring them again here
// through the llir/llvm API produces a second, identical `declare` in
// the generator's own module output; LLVM tolerates repeated identical
// declarations the way repeated C extern prototypes do, and it lets
// expr.go/func.go/call.go reference them as ordinary *ir.Func values
// instead of hand-formatting call sites to a verbatim-text symbol.
func (g *Generator) declareRuntimeExterns() {
	i8ptr := types.NewPointer(types.I8)
	g.externs["runa.malloc"] = g.out.NewFunc("runa.malloc", i8ptr, ir.NewParam("size", types.I64))
	g.externs["runa.free"] = g.out.NewFunc("runa.free", types.Void, ir.NewParam("ptr", i8ptr))
	g.externs["runa.memcpy"] = g.out.NewFunc("runa.memcpy", i8ptr,
		ir.NewParam("dst", i8ptr), ir.NewParam("src", i8ptr), ir.NewParam("n", types.I64))
	g.externs["runa.yield"] = g.out.NewFunc("runa.yield", types.Void, ir.NewParam("v", types.I64))
	g.externs["runa.iter_next"] = g.out.NewFunc("runa.iter_next", types.I1, ir.NewParam("ctx", i8ptr))
	g.externs["runa.iter_value"] = g.out.NewFunc("runa.iter_value", i8ptr, ir.NewParam("ctx", i8ptr))
}

func sortedKeys(m map[string]ast.TypeDecl) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortStrings(out)
	return out
}

func sortedExternKeys(m map[string]ast.ExternDecl) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortStrings(out)
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
