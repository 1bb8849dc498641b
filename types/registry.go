package types

import (
	"fmt"
	"sort"

	"github.com/runalang/runac/ast"
	"golang.org/x/exp/maps"
)

// Registry interns every Type used within one compilation (§4.1, §5:
// "the type registry is per-compilation"). A fresh Registry per Module
// is what lets independent Modules compile concurrently with no shared
// mutable state (see runac.CompileAll).
type Registry struct {
	primitives map[string]*Type
	named      map[string]*Type // structs and traits, by name (register/fill phases)
	modules    map[string]*Type

	refs    map[*Type]*Type
	owners  map[*Type]*Type
	arrays  map[*Type]*Type
	iters   map[*Type]*Type
	tuples  map[string]*Type
	funcs   map[string]*Type
}

// NewRegistry builds a Registry with every primitive interned, per the
// primitive set in §4.1.
func NewRegistry() *Registry {
	r := &Registry{
		primitives: make(map[string]*Type),
		named:      make(map[string]*Type),
		modules:    make(map[string]*Type),
		refs:       make(map[*Type]*Type),
		owners:     make(map[*Type]*Type),
		arrays:     make(map[*Type]*Type),
		iters:      make(map[*Type]*Type),
		tuples:     make(map[string]*Type),
		funcs:      make(map[string]*Type),
	}

	intWidths := []int{8, 16, 32, 64, 0}
	for _, w := range intWidths {
		sName, uName := signedName(w), unsignedName(w)
		r.primitives[sName] = &Type{Kind: KInt, Signed: true, Bits: w}
		r.primitives[uName] = &Type{Kind: KInt, Signed: false, Bits: w}
	}
	r.primitives["f32"] = &Type{Kind: KFloat, Bits: 32}
	r.primitives["f64"] = &Type{Kind: KFloat, Bits: 64}
	r.primitives["bool"] = &Type{Kind: KBool}
	r.primitives["byte"] = &Type{Kind: KByte}
	r.primitives["void"] = &Type{Kind: KVoid}
	r.primitives["str"] = &Type{Kind: KStr}
	r.primitives["NoType"] = &Type{Kind: KNoType}
	r.primitives["anyint"] = &Type{Kind: KAnyInt}
	r.primitives["anyfloat"] = &Type{Kind: KAnyFloat}

	return r
}

func signedName(w int) string {
	if w == 0 {
		return "word"
	}
	return fmt.Sprintf("i%d", w)
}

func unsignedName(w int) string {
	if w == 0 {
		return "uword"
	}
	return fmt.Sprintf("u%d", w)
}

// Get returns the interned Type for a primitive or a previously
// registered struct/trait/module name.
func (r *Registry) Get(name string) (*Type, bool) {
	if t, ok := r.primitives[name]; ok {
		return t, true
	}
	if t, ok := r.named[name]; ok {
		return t, true
	}
	if t, ok := r.modules[name]; ok {
		return t, true
	}
	return nil, false
}

// MustGet panics on an unknown primitive name; only used for names this
// package itself controls (never surface-level user input).
func (r *Registry) MustGet(name string) *Type {
	t, ok := r.Get(name)
	if !ok {
		panic("types: unknown primitive " + name)
	}
	return t
}

// GetOrResolve returns the interned Type for name, parsing compound
// syntax (ref(T), owner(T), array[T], iter(T), tuples) via Resolve when
// name isn't already an interned primitive, struct, trait, or module.
// Call sites that accept an arbitrary surface type-name string —
// function parameter/return types, extern declarations, `as` targets —
// use this instead of Get, since those positions are never restricted
// to plain names the way a struct field's already-Fill-resolved Type
// is.
func (r *Registry) GetOrResolve(name string) (*Type, bool) {
	if t, ok := r.Get(name); ok {
		return t, true
	}
	t, err := r.Resolve(name)
	if err != nil {
		return nil, false
	}
	return t, true
}

// Add registers a named struct/trait placeholder so recursive type
// references (a struct holding ref(itself), a trait method returning
// its own interface) resolve during Fill without forward-declaration
// gymnastics (§9 "cyclic AST/type graphs").
func (r *Registry) Add(decl ast.TypeDecl) *Type {
	if t, ok := r.named[decl.Name]; ok {
		return t
	}
	kind := KStruct
	if decl.Kind == ast.DeclTrait {
		kind = KTrait
	}
	t := &Type{
		Kind:      kind,
		Name:      decl.Name,
		attrIndex: make(map[string]int),
		methods:   make(map[string]*Method),
	}
	r.named[decl.Name] = t
	return t
}

// Fill populates a previously-registered struct/trait placeholder's
// attributes and method table. Attribute slot indices are assigned here,
// in declaration order, and must not change afterward (§5).
func (r *Registry) Fill(decl ast.TypeDecl, resolve func(typeName string) (*Type, error)) error {
	t, ok := r.named[decl.Name]
	if !ok {
		return fmt.Errorf("types: Fill called before Add for %q", decl.Name)
	}

	for slot, f := range decl.Fields {
		ft, err := resolve(f.TypeName)
		if err != nil {
			return fmt.Errorf("types: field %s.%s: %w", decl.Name, f.Name, err)
		}
		t.attrIndex[f.Name] = slot
		t.attrs = append(t.attrs, Attr{Name: f.Name, Slot: slot, Type: ft})
	}

	for _, m := range decl.Methods {
		ret, err := resolve(m.RetName)
		if err != nil {
			return fmt.Errorf("types: method %s.%s return: %w", decl.Name, m.Name, err)
		}
		params := make([]Param, 0, len(m.Params))
		for _, p := range m.Params {
			pt, err := resolve(p.TypeName)
			if err != nil {
				return fmt.Errorf("types: method %s.%s param %s: %w", decl.Name, m.Name, p.Name, err)
			}
			params = append(params, Param{Name: p.Name, Type: pt})
		}
		irName := mangle(decl.Name, m.Name)
		t.methods[m.Name] = &Method{IRName: irName, Ret: ret, Params: params}
	}
	t.methodOrder = nil // invalidate memoized sort
	return nil
}

func mangle(typeName, methodName string) string {
	return "runa." + typeName + "." + methodName
}

// Ref builds ref(T), memoized by element identity so repeated references
// to the same T share one Type value and Equal can short-circuit on
// pointer identity.
func (r *Registry) Ref(t *Type) *Type {
	if w, ok := r.refs[t]; ok {
		return w
	}
	w := &Type{Kind: KRef, Elem: t}
	r.refs[t] = w
	return w
}

// Owner builds owner(T), memoized like Ref.
func (r *Registry) Owner(t *Type) *Type {
	if w, ok := r.owners[t]; ok {
		return w
	}
	w := &Type{Kind: KOwner, Elem: t}
	r.owners[t] = w
	return w
}

// Array builds array[T] (stored by the code generator as {length: uword,
// data: &T}), memoized by element identity.
func (r *Registry) Array(t *Type) *Type {
	if w, ok := r.arrays[t]; ok {
		return w
	}
	w := &Type{Kind: KArray, Elem: t}
	r.arrays[t] = w
	return w
}

// Iter builds iter(T), memoized by element identity.
func (r *Registry) Iter(t *Type) *Type {
	if w, ok := r.iters[t]; ok {
		return w
	}
	w := &Type{Kind: KIter, Elem: t}
	r.iters[t] = w
	return w
}

// BuildTuple builds an ordered tuple type, memoized by a name-joined key
// since tuple arity/content varies per call site unlike the single-slot
// wrapper constructors above.
func (r *Registry) BuildTuple(ts []*Type) *Type {
	key := tupleKey(ts)
	if w, ok := r.tuples[key]; ok {
		return w
	}
	w := &Type{Kind: KTuple, Elems: append([]*Type(nil), ts...)}
	r.tuples[key] = w
	return w
}

func tupleKey(ts []*Type) string {
	s := ""
	for _, t := range ts {
		s += t.String() + ";"
	}
	return s
}

// Func builds a function type: return type plus ordered parameter types,
// optionally variadic (the last entry is the element type repeated).
func (r *Registry) Func(ret *Type, params []*Type, variadic bool) *Type {
	key := tupleKey(params) + "->" + ret.String()
	if variadic {
		key += "..."
	}
	if w, ok := r.funcs[key]; ok {
		return w
	}
	w := &Type{Kind: KFunc, Ret: ret, Params: append([]*Type(nil), params...), Variadic: variadic}
	r.funcs[key] = w
	return w
}

// Module registers (or returns) a module type by name with the given
// exported function types.
func (r *Registry) Module(name string, exports map[string]*Type) *Type {
	if t, ok := r.modules[name]; ok {
		return t
	}
	t := &Type{Kind: KModule, Name: name, exports: exports}
	r.modules[name] = t
	return t
}

// Names reports every struct/trait name registered so far, sorted. Used
// for diagnostics and by tests asserting registration order is stable
// regardless of map iteration order.
func (r *Registry) Names() []string {
	names := maps.Keys(r.named)
	sort.Strings(names)
	return names
}
