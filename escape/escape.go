// Package escape implements the backward dataflow escape analyzer:
// deciding which owning allocations may be stack-allocated and which
// must be heap-allocated. See SPEC_FULL.md §4.4.
package escape

import (
	"github.com/runalang/runac/ast"
	"github.com/runalang/runac/types"
	"golang.org/x/exp/maps"
)

// MaxIterations bounds the fixed-point loop added per SPEC_FULL.md's
// "Escape analysis to fixed point" supplement (§9 Open Question,
// resolved): recursive escape through multiple owning aggregates can
// require more than one backward pass over the CFG to converge.
const MaxIterations = 8

// Analyze runs escape analysis over every function in fns, setting
// .Escapes on each Init node and each call to the runtime's malloc
// primitive. It iterates whole-function backward passes until the
// tracked-name set stops growing or MaxIterations is hit, rather than
// doing exactly one pass, so recursive escape through nested owning
// aggregates is still caught (conservative, not exactly fixed point,
// per the Open Question's own caveat).
func Analyze(fns []*ast.Function) {
	for _, fn := range fns {
		track := make(map[string]bool)
		for iter := 0; iter < MaxIterations; iter++ {
			before := len(track)
			analyzeFunction(fn, track)
			if len(track) == before {
				break
			}
		}
	}
}

func analyzeFunction(fn *ast.Function, track map[string]bool) {
	blocks := fn.CFG.Blocks
	for i := len(blocks) - 1; i >= 0; i-- {
		b := blocks[i]
		for j := len(b.Steps) - 1; j >= 0; j-- {
			analyzeStep(b.Steps[j], track)
		}
	}
}

func analyzeStep(n ast.Node, track map[string]bool) {
	switch s := n.(type) {
	case *ast.Return:
		if s.Value != nil && isOwner(s.Value) {
			markEscape(s.Value, track)
		}
	case *ast.Assign:
		analyzeAssign(s, track)
	case *ast.Call:
		analyzeCall(s, track)
	}
}

// analyzeAssign implements:
//   - `Assign left, right` where left is a tracked Name: escape
//     propagates to right.
//   - `Assign attrib(obj).x = v` where obj already escapes: v escapes.
func analyzeAssign(s *ast.Assign, track map[string]bool) {
	switch tgt := s.Target.(type) {
	case *ast.Name:
		if track[tgt.Ident] {
			markEscape(s.Value, track)
		}
	case *ast.Attrib:
		if objEscapes(tgt.Object, track) {
			markEscape(s.Value, track)
		}
	case *ast.Elem:
		if objEscapes(tgt.Object, track) {
			markEscape(s.Value, track)
		}
	}
}

// objEscapes reports whether obj (an Attrib/Elem target's receiver)
// already escapes, following through nested attribute accesses to the
// root Name.
func objEscapes(obj ast.Expr, track map[string]bool) bool {
	switch o := obj.(type) {
	case *ast.Name:
		return track[o.Ident]
	case *ast.Attrib:
		return objEscapes(o.Object, track)
	case *ast.Elem:
		return objEscapes(o.Object, track)
	}
	return false
}

// analyzeCall implements: for each parameter of owner type, the
// corresponding argument escapes. malloc and __init__ are special-cased
// per §4.4.
func analyzeCall(c *ast.Call, track map[string]bool) {
	if isMalloc(c) {
		// The destination annotation for malloc is the surrounding
		// Init's Escapes flag; malloc itself has no parameters to mark.
		if c.Init != nil {
			if initNode, ok := c.Init.(*ast.Init); ok {
				initNode.Escapes = true
			}
		}
		return
	}
	params := paramTypes(c.Fun)
	offset := 0
	if c.Kind == ast.CallMethod {
		offset = 1
		if isInit(c) && len(c.Args) > 0 {
			markEscape(c.Args[0].Expr, track) // __init__ propagates escape to self
		}
	}
	for i, a := range c.Args {
		pi := i - offset
		if pi < 0 || pi >= len(params) {
			continue
		}
		if params[pi].Kind == types.KOwner {
			markEscape(a.Expr, track)
		}
	}
}

func isMalloc(c *ast.Call) bool {
	name, ok := c.Callee.(*ast.Name)
	return ok && name.Ident == "malloc"
}

func isInit(c *ast.Call) bool {
	name, ok := c.Callee.(*ast.Attrib)
	return ok && name.Field == "__init__"
}

func paramTypes(fun any) []*types.Type {
	m, ok := fun.(*types.Method)
	if !ok {
		return nil
	}
	out := make([]*types.Type, len(m.Params))
	for i, p := range m.Params {
		out[i] = p.Type
	}
	return out
}

func isOwner(e ast.Expr) bool {
	t, _ := ast.Typed(e).(*types.Type)
	return t != nil && t.Kind == types.KOwner
}

// markEscape propagates the escape property to e: a bare Name is added
// to the tracked set (so future assignments into it also escape); a
// direct Init or constructor Call is flagged immediately since there is
// no further name to track.
func markEscape(e ast.Expr, track map[string]bool) {
	switch v := e.(type) {
	case *ast.Name:
		track[v.Ident] = true
	case *ast.Init:
		v.Escapes = true
	case *ast.Call:
		if v.Kind == ast.CallCtor {
			if initNode, ok := v.Init.(*ast.Init); ok {
				initNode.Escapes = true
			}
		}
	}
}

// TrackedNames is exposed for tests asserting escape conservatism
// without reaching into package-private state.
func TrackedNames(track map[string]bool) []string {
	return maps.Keys(track)
}
