// interp.go implements a small tree-walking evaluator over the *input*
// ast.Module — not the emitted LLIR, since there is no native backend
// in scope (see SPEC_FULL.md's Domain Stack note on why no VM/
// interpreter library from the pack was pulled in here). It exists
// only to give the six §8 scenarios an executable, diffable stdout.
package harness

import (
	"fmt"
	"strings"

	"github.com/runalang/runac/ast"
)

// instance is a struct's runtime value. The interpreter's values are
// int64, float64, string, bool, nil, *instance for a struct, and the
// array and cursor values that range and for-loops use.
type instance struct {
	typeName string
	fields   map[string]any
}

type interp struct {
	mod *ast.Module
	out *strings.Builder
}

func newInterp(mod *ast.Module, out *strings.Builder) *interp {
	return &interp{mod: mod, out: out}
}

// call runs fn with positional args bound to fn.Args in order,
// returning its Return value (nil for a bare/void return).
func (ip *interp) call(fn *ast.Function, args []any) any {
	env := make(map[string]any, len(fn.Args))
	for i, p := range fn.Args {
		if i < len(args) {
			env[p.Name] = args[i]
		}
	}
	blockID := 0
	for {
		block := fn.CFG.Block(blockID)
		if block == nil {
			return nil
		}
		next := -1
		terminated := false
		var result any
		for _, step := range block.Steps {
			switch s := step.(type) {
			case *ast.Assign:
				v := ip.eval(env, s.Value)
				ip.assign(env, s.Target, v)
			case *ast.TupleAssign:
				v := ip.eval(env, s.Value)
				tup, _ := v.([]any)
				for i, tgt := range s.Targets {
					var elem any
					if i < len(tup) {
						elem = tup[i]
					}
					ip.assign(env, tgt, elem)
				}
			case *ast.Return:
				if s.Value != nil {
					result = ip.eval(env, s.Value)
				}
				terminated = true
			case *ast.Yield:
				v := ip.eval(env, s.Value)
				fmt.Fprintf(ip.out, "%v\n", v)
			case *ast.Branch:
				next = s.Target
			case *ast.CondBranch:
				cond, _ := ip.eval(env, s.Cond).(bool)
				if cond {
					next = s.True
				} else {
					next = s.False
				}
			case *ast.LoopSetup:
				env[s.CtxName] = ip.eval(env, s.Src)
			case *ast.LoopHeader:
				more, elem := ip.iterNext(env[s.CtxName])
				if more {
					env[s.CtxName] = elem.rest
					env[s.ElemName] = elem.value
					next = s.Body
				} else {
					next = s.Exit
				}
			case ast.Expr:
				ip.eval(env, s)
			}
			if terminated || next >= 0 {
				break
			}
		}
		if terminated {
			return result
		}
		if next < 0 {
			return nil
		}
		blockID = next
	}
}

func (ip *interp) assign(env map[string]any, target ast.Expr, v any) {
	switch t := target.(type) {
	case *ast.Name:
		env[t.Ident] = v
	case *ast.Attrib:
		obj := ip.eval(env, t.Object)
		if inst, ok := obj.(*instance); ok {
			inst.fields[t.Field] = v
		}
	case *ast.Elem:
		obj := ip.eval(env, t.Object)
		key := ip.eval(env, t.Key)
		if arr, ok := obj.(*arrayVal); ok {
			idx, _ := key.(int64)
			if int(idx) >= 0 && int(idx) < len(arr.elems) {
				arr.elems[idx] = v
			}
		}
	}
}

type arrayVal struct{ elems []any }

type iterState struct {
	rest  any
	value any
}

// iterNext drives the simple range-over-array desugaring the six
// scenarios exercise: iterating an *arrayVal by index.
func (ip *interp) iterNext(ctx any) (bool, iterState) {
	switch c := ctx.(type) {
	case *arrIterCursor:
		if c.idx >= len(c.arr.elems) {
			return false, iterState{}
		}
		v := c.arr.elems[c.idx]
		c.idx++
		return true, iterState{rest: c, value: v}
	case *arrayVal:
		cur := &arrIterCursor{arr: c, idx: 0}
		return ip.iterNext(cur)
	}
	return false, iterState{}
}

type arrIterCursor struct {
	arr *arrayVal
	idx int
}

func (ip *interp) eval(env map[string]any, e ast.Expr) any {
	switch n := e.(type) {
	case *ast.IntLit:
		return n.Value
	case *ast.FloatLit:
		return n.Value
	case *ast.StringLit:
		return n.Value
	case *ast.BoolLit:
		return n.Value
	case *ast.NoneLit:
		return nil
	case *ast.Name:
		return env[n.Ident]
	case *ast.Attrib:
		obj := ip.eval(env, n.Object)
		if inst, ok := obj.(*instance); ok {
			return inst.fields[n.Field]
		}
		return nil
	case *ast.Elem:
		obj := ip.eval(env, n.Object)
		key := ip.eval(env, n.Key)
		if arr, ok := obj.(*arrayVal); ok {
			idx, _ := key.(int64)
			if int(idx) >= 0 && int(idx) < len(arr.elems) {
				return arr.elems[idx]
			}
		}
		return nil
	case *ast.Binary:
		return ip.evalBinary(env, n)
	case *ast.Compare:
		return ip.evalCompare(env, n)
	case *ast.Bool:
		l, _ := ip.eval(env, n.Left).(bool)
		if n.Op == ast.BoolAnd {
			if !l {
				return false
			}
			r, _ := ip.eval(env, n.Right).(bool)
			return r
		}
		if l {
			return true
		}
		r, _ := ip.eval(env, n.Right).(bool)
		return r
	case *ast.Not:
		v, _ := ip.eval(env, n.X).(bool)
		return !v
	case *ast.Is:
		return ip.eval(env, n.X) == nil
	case *ast.As:
		return ip.eval(env, n.X) // coercion is a no-op at this level of interpretation
	case *ast.Ternary:
		cond, _ := ip.eval(env, n.Cond).(bool)
		if cond {
			return ip.eval(env, n.Left)
		}
		return ip.eval(env, n.Right)
	case *ast.Call:
		return ip.evalCall(env, n)
	case *ast.Init:
		return &instance{typeName: n.TypeName, fields: make(map[string]any)}
	case *ast.Phi:
		// The interpreter never straddles a merge boundary mid-step the
		// way codegen's predecessor-aware lowering does; both arms are
		// pure re-reads of already-bound names so evaluating either is
		// safe whenever both are defined.
		if v := ip.eval(env, n.Left); v != nil {
			return v
		}
		return ip.eval(env, n.Right)
	}
	return nil
}

func (ip *interp) evalBinary(env map[string]any, n *ast.Binary) any {
	l, r := ip.eval(env, n.Left), ip.eval(env, n.Right)
	if lf, ok := numAsFloat(l); ok {
		rf, _ := numAsFloat(r)
		switch n.Op {
		case ast.OpAdd:
			return lf + rf
		case ast.OpSub:
			return lf - rf
		case ast.OpMul:
			return lf * rf
		case ast.OpDiv:
			return lf / rf
		}
	}
	li, _ := l.(int64)
	ri, _ := r.(int64)
	switch n.Op {
	case ast.OpAdd:
		return li + ri
	case ast.OpSub:
		return li - ri
	case ast.OpMul:
		return li * ri
	case ast.OpDiv:
		return li / ri
	case ast.OpMod:
		return li % ri
	}
	return nil
}

func numAsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	}
	return 0, false
}

func (ip *interp) evalCompare(env map[string]any, n *ast.Compare) any {
	l, r := ip.eval(env, n.Left), ip.eval(env, n.Right)
	li, liok := l.(int64)
	ri, riok := r.(int64)
	if liok && riok {
		switch n.Op {
		case ast.CmpEq:
			return li == ri
		case ast.CmpNe:
			return li != ri
		case ast.CmpLt:
			return li < ri
		case ast.CmpLe:
			return li <= ri
		case ast.CmpGt:
			return li > ri
		case ast.CmpGe:
			return li >= ri
		}
	}
	switch n.Op {
	case ast.CmpEq:
		return l == r
	case ast.CmpNe:
		return l != r
	}
	return false
}

func (ip *interp) evalCall(env map[string]any, n *ast.Call) any {
	if name, ok := n.Callee.(*ast.Name); ok {
		if fn := builtin(name.Ident); fn != nil {
			return fn(ip, ip.evalArgs(env, n.Args))
		}
	}
	switch n.Kind {
	case ast.CallCtor:
		initNode, _ := n.Init.(*ast.Init)
		inst := &instance{typeName: initNode.TypeName, fields: make(map[string]any)}
		if m := ip.findMethod(initNode.TypeName, "__init__"); m != nil {
			args := append([]any{inst}, ip.evalArgs(env, n.Args)...)
			ip.call(m, args)
		}
		return inst
	case ast.CallMethod:
		if attrib, ok := n.Callee.(*ast.Attrib); ok {
			recv := ip.eval(env, attrib.Object)
			inst, ok := recv.(*instance)
			if !ok {
				return nil
			}
			m := ip.findMethod(inst.typeName, attrib.Field)
			if m == nil {
				return nil
			}
			// n.Args already has self prepended by checkMethodCall; do not
			// prepend recv a second time.
			return ip.call(m, ip.evalArgs(env, n.Args))
		}
	case ast.CallFunc:
		if name, ok := n.Callee.(*ast.Name); ok {
			for _, fn := range ip.mod.Functions {
				if fn.Name == name.Ident {
					return ip.call(fn, ip.evalArgs(env, n.Args))
				}
			}
		}
	}
	return nil
}

func (ip *interp) evalArgs(env map[string]any, args []ast.Arg) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = ip.eval(env, a.Expr)
	}
	return out
}

// findMethod resolves a method body straight off the struct's TypeDecl
// by surface name, bypassing the registry's mangled IRName entirely —
// the interpreter dispatches dynamically on the receiver's own runtime
// type, the same way a trait call's vtable slot would resolve at
// codegen time, without needing a vtable to do it.
func (ip *interp) findMethod(typeName, methodName string) *ast.Function {
	decl, ok := ip.mod.Types[typeName]
	if !ok {
		return nil
	}
	for _, m := range decl.Methods {
		if m.Name == methodName {
			return m.Body
		}
	}
	return nil
}

func builtin(name string) func(*interp, []any) any {
	switch name {
	case "print":
		return func(ip *interp, args []any) any {
			for i, a := range args {
				if i > 0 {
					fmt.Fprint(ip.out, " ")
				}
				fmt.Fprint(ip.out, a)
			}
			fmt.Fprintln(ip.out)
			return nil
		}
	case "range":
		// Materializes eagerly into an *arrayVal rather than a lazy
		// cursor: range(lo, hi) is only ever used as a LoopSetup source
		// in the scenarios this interpreter runs, and iterNext already
		// knows how to walk an *arrayVal by index.
		return func(ip *interp, args []any) any {
			lo, _ := args[0].(int64)
			hi, _ := args[1].(int64)
			elems := make([]any, 0, hi-lo)
			for i := lo; i < hi; i++ {
				elems = append(elems, i)
			}
			return &arrayVal{elems: elems}
		}
	}
	return nil
}
