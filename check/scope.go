// Package check implements the Runa type checker: per-function,
// per-block scopes chained to predecessors, expression typing, call
// resolution (free function / method / constructor), ownership
// tracking, and `for` desugaring. See SPEC_FULL.md §4.2.
package check

import (
	"github.com/runalang/runac/ast"
	"github.com/runalang/runac/types"
)

// binding is one name's live type in a Scope. An owner binding passed
// as an argument to an owner-typed parameter, or assigned to another
// name, is removed from scope entirely — a later reference then fails
// with "undefined name" (§3 invariants, §9 design note "ownership
// transfers in the checker"). Returning a binding or storing it into a
// field or element does not remove it.
type binding struct {
	typ *types.Type
}

// Scope maps name -> binding for one block. Scopes are per-block,
// chained to the block's predecessor scopes at construction time, and
// cease to exist once type checking completes (§3 Lifecycles).
type Scope struct {
	vars   map[string]binding
	parent *Scope
}

func newScope(parent *Scope) *Scope {
	return &Scope{vars: make(map[string]binding), parent: parent}
}

// lookupLocal looks up name only within this scope (not its parent) —
// used by checkAssign to tell a reassignment from a fresh binding.
func (s *Scope) lookupLocal(name string) (binding, bool) {
	b, ok := s.vars[name]
	return b, ok
}

// Lookup resolves name, walking to the parent (module) scope if not
// found locally. Block-to-block propagation does not use this; it
// happens in Checker.seed, which binds a name into a block's scope only
// when every predecessor supplies it with the same type (§3), not
// merely the nearest one.
func (s *Scope) Lookup(name string) (binding, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if b, ok := sc.vars[name]; ok {
			return b, true
		}
	}
	return binding{}, false
}

// Bind introduces or overwrites a binding in this scope.
func (s *Scope) Bind(name string, t *types.Type) {
	s.vars[name] = binding{typ: t}
}

// Move removes a binding — ownership transferred out of scope.
func (s *Scope) Move(name string) {
	delete(s.vars, name)
}

// moduleScope seeds the entry block's scope with externs, user types,
// and function definitions (§4.2 step 1).
func moduleScope(mod *ast.Module, reg *types.Registry, functions map[string]*types.Type) *Scope {
	s := newScope(nil)
	for name, ext := range mod.Externs {
		ret, _ := reg.GetOrResolve(ext.RetTypeName)
		var params []*types.Type
		for _, p := range ext.ParamTypes {
			pt, _ := reg.GetOrResolve(p)
			params = append(params, pt)
		}
		s.Bind(name, reg.Func(ret, params, ext.Variadic))
	}
	for name, t := range functions {
		s.Bind(name, t)
	}
	for name := range mod.Types {
		t, _ := reg.Get(name)
		if t != nil {
			// Binding a type name lets `TypeName(...)` resolve as a
			// constructor call in checkCall.
			s.Bind(name, t)
		}
	}
	return s
}
