package check

import (
	"github.com/runalang/runac/ast"
	"github.com/runalang/runac/internal/diag"
	"github.com/runalang/runac/types"
)

// Checker walks one Module's functions over their already-built CFGs,
// assigning a concrete Type to every expression node (§4.2).
type Checker struct {
	reg       *types.Registry
	mod       *ast.Module
	moduleSc  *Scope
	diags     diag.List
	curFn     *ast.Function
	curRet    *types.Type
	curYields bool

	// loopBindings carries a LoopHeader's element binding forward to its
	// Body block's scope: the binding logically belongs to Body (§4.2
	// "the element binding is introduced for the body block's scope, not
	// this one"), but Body's scope is built by seed() from predecessor
	// scopes before Body is ever visited, so the header step records it
	// here to be merged in once CheckFunction reaches that block id.
	loopBindings map[int]map[string]*types.Type
}

// NewChecker prepares a Checker for mod using reg (already populated by
// the type registry's register/fill passes over mod.Types).
func NewChecker(mod *ast.Module, reg *types.Registry) *Checker {
	funcTypes := make(map[string]*types.Type)
	for _, fn := range mod.Functions {
		var params []*types.Type
		for _, p := range fn.Args {
			pt, _ := reg.GetOrResolve(p.TypeName)
			params = append(params, pt)
		}
		ret, _ := reg.GetOrResolve(fn.RetName)
		funcTypes[fn.Name] = reg.Func(ret, params, false)
	}
	c := &Checker{reg: reg, mod: mod}
	c.moduleSc = moduleScope(mod, reg, funcTypes)
	return c
}

func (c *Checker) bindLoop(blockID int, name string, t *types.Type) {
	if c.loopBindings == nil {
		c.loopBindings = make(map[int]map[string]*types.Type)
	}
	m := c.loopBindings[blockID]
	if m == nil {
		m = make(map[string]*types.Type)
		c.loopBindings[blockID] = m
	}
	m[name] = t
}

// CheckAll type-checks every function in the module, collecting
// diagnostics across all functions so a driver can report more than one
// failure per build (§7: the compiler halts at first error *within* a
// function, but may continue with the next function).
func (c *Checker) CheckAll() *diag.List {
	for _, fn := range c.mod.AllFunctions() {
		c.CheckFunction(fn)
	}
	if fn := findMain(c.mod); fn != nil {
		c.checkMainSignature(fn)
	}
	return &c.diags
}

// isVoidMethod reports whether name is a lifecycle method required to
// return void, mirroring the original compiler's VOID = {'__init__',
// '__del__'} set (§3 Lifecycles).
func isVoidMethod(name string) bool {
	return name == "__init__" || name == "__del__"
}

func findMain(mod *ast.Module) *ast.Function {
	for _, fn := range mod.Functions {
		if fn.Name == "main" {
			return fn
		}
	}
	return nil
}

// CheckFunction type-checks one function's CFG in block-id order,
// seeding each block's scope from its predecessors' exit scopes
// (§4.2 steps 1-3).
func (c *Checker) CheckFunction(fn *ast.Function) {
	// Collect into a fresh list so errors in earlier functions do not
	// halt this one; append it to the running total on return.
	prev := c.diags
	c.diags = diag.List{}
	defer func() {
		for _, d := range c.diags.Items() {
			prev.Add(d)
		}
		c.diags = prev
	}()
	c.curFn = fn
	c.curYields = fn.Yields
	ret, ok := c.reg.GetOrResolve(fn.RetName)
	if !ok {
		c.err(diag.KindType, ast.Span{}, "function %s: unknown return type %q", fn.Name, fn.RetName)
		return
	}
	if isVoidMethod(fn.Name) && ret.Kind != types.KVoid {
		c.err(diag.KindSignature, ast.Span{}, "method %q must return void", fn.Name)
		return
	}
	c.curRet = ret
	c.loopBindings = make(map[int]map[string]*types.Type)

	scopes := make(map[int]*Scope)
	for _, b := range fn.CFG.Blocks {
		var sc *Scope
		if b.ID == 0 {
			sc = newScope(c.moduleSc)
			for _, a := range fn.Args {
				at, ok := c.reg.GetOrResolve(a.TypeName)
				if !ok {
					c.err(diag.KindType, ast.Span{}, "function %s: unknown arg type %q for %s", fn.Name, a.TypeName, a.Name)
					continue
				}
				sc.Bind(a.Name, at)
			}
		} else {
			sc = c.seed(b, fn.CFG, scopes, c.moduleSc)
		}
		for name, t := range c.loopBindings[b.ID] {
			sc.Bind(name, t)
		}
		c.checkBlock(b, fn.CFG, sc)
		scopes[b.ID] = sc
		if !c.diags.Empty() {
			return // halt at first error within this function
		}
	}
}

func (c *Checker) seed(block *ast.Block, cfg *ast.CFG, scopes map[int]*Scope, moduleSc *Scope) *Scope {
	preds := cfg.Preds(block.ID)
	sc := newScope(moduleSc)
	if len(preds) == 0 {
		return sc
	}
	seen := make(map[string][]*types.Type)
	for _, p := range preds {
		ps, ok := scopes[p]
		if !ok {
			continue
		}
		for name, b := range ps.vars {
			seen[name] = append(seen[name], b.typ)
		}
	}
	for name, ts := range seen {
		if len(ts) != len(preds) {
			continue // not every predecessor supplies it; needs a Phi
		}
		agree := true
		for i := 1; i < len(ts); i++ {
			if !types.Equal(ts[0], ts[i]) {
				agree = false
				break
			}
		}
		if agree {
			sc.Bind(name, ts[0])
		}
	}
	return sc
}

func (c *Checker) checkBlock(b *ast.Block, cfg *ast.CFG, sc *Scope) {
	for i, step := range b.Steps {
		c.checkStep(b, cfg, sc, i, step)
		if !c.diags.Empty() {
			return
		}
	}
}

func (c *Checker) checkStep(b *ast.Block, cfg *ast.CFG, sc *Scope, idx int, n ast.Node) {
	switch s := n.(type) {
	case ast.Expr:
		c.typeExpr(b, sc, idx, s)
	case *ast.Assign:
		c.checkAssign(b, sc, idx, s)
	case *ast.TupleAssign:
		c.checkTupleAssign(b, sc, idx, s)
	case *ast.Return:
		c.checkReturn(b, sc, idx, s)
	case *ast.Yield:
		if s.Value != nil {
			c.typeExpr(b, sc, idx, s.Value)
		}
	case *ast.Branch, *ast.CondBranch:
		if cb, ok := n.(*ast.CondBranch); ok {
			c.typeExpr(b, sc, idx, cb.Cond)
		}
	case *ast.LoopSetup:
		c.checkLoopSetup(b, cfg, sc, idx, s)
	case *ast.LoopHeader:
		c.checkLoopHeader(sc, s)
	default:
		c.err(diag.KindInternal, ast.Span{}, "unhandled step kind %T", n)
	}
}

// typeExpr assigns .Type to e (and recursively to its children),
// dispatching on concrete node kind (§4.2 step 3).
func (c *Checker) typeExpr(b *ast.Block, sc *Scope, idx int, e ast.Expr) *types.Type {
	var t *types.Type
	switch n := e.(type) {
	case *ast.IntLit:
		t = c.reg.MustGet("anyint")
	case *ast.FloatLit:
		t = c.reg.MustGet("anyfloat")
	case *ast.StringLit:
		t = c.reg.Owner(c.reg.MustGet("str"))
	case *ast.BoolLit:
		t = c.reg.MustGet("bool")
	case *ast.NoneLit:
		t = c.reg.MustGet("NoType")
	case *ast.Name:
		t = c.checkName(b, sc, idx, n)
	case *ast.Attrib:
		t = c.checkAttrib(b, sc, idx, n)
	case *ast.Elem:
		t = c.checkElem(b, sc, idx, n)
	case *ast.Binary:
		t = c.checkBinary(b, sc, idx, n)
	case *ast.Compare:
		t = c.checkCompare(b, sc, idx, n)
	case *ast.Bool:
		t = c.checkBoolOp(b, sc, idx, n)
	case *ast.Not:
		c.typeExpr(b, sc, idx, n.X)
		t = c.reg.MustGet("bool")
	case *ast.Is:
		t = c.checkIs(b, sc, idx, n)
	case *ast.As:
		t = c.checkAs(b, sc, idx, n)
	case *ast.Ternary:
		t = c.checkTernary(b, sc, idx, n)
	case *ast.Call:
		t = c.checkCall(b, sc, idx, n)
	case *ast.Init:
		tt, ok := c.reg.GetOrResolve(n.TypeName)
		if !ok {
			c.err(diag.KindType, n.Pos(), "unknown constructed type %q", n.TypeName)
			tt = c.reg.MustGet("NoType")
		}
		t = c.reg.Owner(tt)
	case *ast.Phi:
		t = c.checkPhi(b, sc, idx, n)
	default:
		c.err(diag.KindInternal, e.Pos(), "unhandled expression kind %T", e)
		t = c.reg.MustGet("NoType")
	}
	if settable, ok := e.(ast.Settable); ok {
		settable.SetType(t)
	}
	return t
}


func (c *Checker) checkName(b *ast.Block, sc *Scope, idx int, n *ast.Name) *types.Type {
	preds := b.Origin[ast.NameAtStep{Name: n.Ident, Step: idx}]
	if len(preds) == 0 {
		if bd, ok := sc.Lookup(n.Ident); ok {
			return bd.typ
		}
		c.err(diag.KindName, n.Pos(), "undefined name %q", n.Ident)
		return c.reg.MustGet("NoType")
	}
	bd, ok := sc.Lookup(n.Ident)
	if !ok {
		c.err(diag.KindName, n.Pos(), "undefined name %q", n.Ident)
		return c.reg.MustGet("NoType")
	}
	return bd.typ
}

func (c *Checker) checkAttrib(b *ast.Block, sc *Scope, idx int, n *ast.Attrib) *types.Type {
	ot := c.typeExpr(b, sc, idx, n.Object)
	u := types.Unwrap(ot)
	if u == nil || (u.Kind != types.KStruct && u.Kind != types.KTrait) {
		c.err(diag.KindType, n.Pos(), "attribute access on non-struct type %s", ot)
		return c.reg.MustGet("NoType")
	}
	attr, ok := u.Attr(n.Field)
	if !ok {
		c.err(diag.KindName, n.Pos(), "no attribute %q on %s", n.Field, u.Name)
		return c.reg.MustGet("NoType")
	}
	// Reading an owner attribute yields a borrow: it does not move it.
	if attr.Type.Kind == types.KOwner {
		return c.reg.Ref(attr.Type.Elem)
	}
	return attr.Type
}

func (c *Checker) checkElem(b *ast.Block, sc *Scope, idx int, n *ast.Elem) *types.Type {
	ot := c.typeExpr(b, sc, idx, n.Object)
	c.typeExpr(b, sc, idx, n.Key)
	u := types.Unwrap(ot)
	if u == nil || u.Kind != types.KArray {
		c.err(diag.KindType, n.Pos(), "indexing non-array type %s", ot)
		return c.reg.MustGet("NoType")
	}
	return u.Elem
}

func (c *Checker) checkBinary(b *ast.Block, sc *Scope, idx int, n *ast.Binary) *types.Type {
	lt := c.typeExpr(b, sc, idx, n.Left)
	rt := c.typeExpr(b, sc, idx, n.Right)
	if !types.IsNumeric(lt) || !types.IsNumeric(rt) {
		// Non-primitive operands dispatch to the type's __add__ etc.
		// method table; the checker just needs a matching overload.
		u := types.Unwrap(lt)
		if u != nil && u.Kind == types.KStruct {
			if m, ok := u.Method(dunderFor(n.Op)); ok {
				return m.Ret
			}
		}
		c.err(diag.KindType, n.Pos(), "operator %s not defined for %s and %s", n.Op, lt, rt)
		return c.reg.MustGet("NoType")
	}
	common, ok := types.CommonNumeric(lt, rt)
	if !ok {
		c.err(diag.KindType, n.Pos(), "binary %s operands disagree: %s vs %s", n.Op, lt, rt)
		return c.reg.MustGet("NoType")
	}
	if n.Op == ast.OpMod && types.IsFloat(common) {
		c.err(diag.KindType, n.Pos(), "operator %% is integer-only, got %s", common)
	}
	return common
}

func dunderFor(op ast.BinOp) string {
	switch op {
	case ast.OpAdd:
		return "__add__"
	case ast.OpSub:
		return "__sub__"
	case ast.OpMul:
		return "__mul__"
	case ast.OpDiv:
		return "__div__"
	case ast.OpMod:
		return "__mod__"
	}
	return "__op__"
}

func (c *Checker) checkCompare(b *ast.Block, sc *Scope, idx int, n *ast.Compare) *types.Type {
	lt := c.typeExpr(b, sc, idx, n.Left)
	rt := c.typeExpr(b, sc, idx, n.Right)
	boolT := c.reg.MustGet("bool")
	if types.IsNumeric(lt) && types.IsNumeric(rt) {
		if _, ok := types.CommonNumeric(lt, rt); !ok {
			c.err(diag.KindType, n.Pos(), "cross-family comparison: %s vs %s", lt, rt)
		}
		return boolT
	}
	u := types.Unwrap(lt)
	if u != nil && u.Kind == types.KStruct {
		method := dunderCompare(n.Op)
		if _, ok := u.Method(method); ok {
			return boolT
		}
	}
	if !types.Equal(types.Unwrap(lt), types.Unwrap(rt)) {
		c.err(diag.KindType, n.Pos(), "cross-family comparison: %s vs %s", lt, rt)
	}
	return boolT
}

func dunderCompare(op ast.CmpOp) string {
	switch op {
	case ast.CmpEq:
		return "__eq__"
	case ast.CmpLt:
		return "__lt__"
	case ast.CmpGt:
		return "__gt__"
	}
	return "__cmp__"
}

func (c *Checker) checkBoolOp(b *ast.Block, sc *Scope, idx int, n *ast.Bool) *types.Type {
	lt := c.typeExpr(b, sc, idx, n.Left)
	rt := c.typeExpr(b, sc, idx, n.Right)
	if types.Equal(lt, rt) {
		return lt
	}
	return c.reg.MustGet("bool")
}

func (c *Checker) checkIs(b *ast.Block, sc *Scope, idx int, n *ast.Is) *types.Type {
	lt := c.typeExpr(b, sc, idx, n.X)
	if !lt.IsWrapper() {
		c.err(diag.KindType, n.Pos(), "`is none` requires a wrapped (optional) left side, got %s", lt)
	}
	return c.reg.MustGet("bool")
}

func (c *Checker) checkAs(b *ast.Block, sc *Scope, idx int, n *ast.As) *types.Type {
	xt := c.typeExpr(b, sc, idx, n.X)
	dst, ok := c.reg.GetOrResolve(n.DstName)
	if !ok {
		c.err(diag.KindType, n.Pos(), "unknown cast target type %q", n.DstName)
		return c.reg.MustGet("NoType")
	}
	if xt.Kind == types.KAnyInt || xt.Kind == types.KAnyFloat {
		return dst // resolved by the specializer
	}
	if !types.CanCoerce(xt, dst) {
		c.err(diag.KindType, n.Pos(), "no sanctioned `as` coercion from %s to %s", xt, dst)
	}
	return dst
}

func (c *Checker) checkTernary(b *ast.Block, sc *Scope, idx int, n *ast.Ternary) *types.Type {
	c.typeExpr(b, sc, idx, n.Cond)
	lt := c.typeExpr(b, sc, idx, n.Left)
	rt := c.typeExpr(b, sc, idx, n.Right)
	if !types.Equal(lt, rt) {
		c.err(diag.KindType, n.Pos(), "ternary branches disagree: %s vs %s", lt, rt)
	}
	return lt
}

func (c *Checker) checkPhi(b *ast.Block, sc *Scope, idx int, n *ast.Phi) *types.Type {
	lt := c.typeExpr(b, sc, idx, n.Left)
	rt := c.typeExpr(b, sc, idx, n.Right)
	if !types.Equal(lt, rt) {
		c.err(diag.KindType, n.Pos(), "phi arms disagree: %s vs %s", lt, rt)
	}
	return lt
}

func (c *Checker) checkAssign(b *ast.Block, sc *Scope, idx int, s *ast.Assign) {
	vt := c.typeExpr(b, sc, idx, s.Value)
	switch tgt := s.Target.(type) {
	case *ast.Name:
		if bd, ok := sc.lookupLocal(tgt.Ident); ok {
			if !types.Equal(bd.typ, vt) {
				c.err(diag.KindType, tgt.Pos(), "reassignment of %q with different type: %s vs %s", tgt.Ident, bd.typ, vt)
				return
			}
		}
		sc.Bind(tgt.Ident, vt)
		if name, ok := s.Value.(*ast.Name); ok && vt.Kind == types.KOwner {
			sc.Move(name.Ident) // ownership transfer out of the source binding
		}
		if settable, ok := tgt.(ast.Settable); ok {
			settable.SetType(vt)
		}
	case *ast.Attrib, *ast.Elem:
		tt := c.typeExpr(b, sc, idx, tgt)
		if !types.Compat(vt, tt) && !(tt.Kind == types.KOwner && types.Equal(tt.Elem, types.Unwrap(vt))) {
			c.err(diag.KindType, tgt.Pos(), "assignment target %s incompatible with value %s", tt, vt)
		}
	default:
		c.err(diag.KindInternal, s.Pos(), "unsupported assignment target %T", tgt)
	}
}

func (c *Checker) checkTupleAssign(b *ast.Block, sc *Scope, idx int, s *ast.TupleAssign) {
	vt := c.typeExpr(b, sc, idx, s.Value)
	if vt.Kind != types.KTuple || len(vt.Elems) != len(s.Targets) {
		c.err(diag.KindType, s.Pos(), "tuple destructuring arity mismatch")
		return
	}
	for i, tgt := range s.Targets {
		if name, ok := tgt.(*ast.Name); ok {
			sc.Bind(name.Ident, vt.Elems[i])
			if settable, ok := tgt.(ast.Settable); ok {
				settable.SetType(vt.Elems[i])
			}
		}
	}
}

func (c *Checker) checkReturn(b *ast.Block, sc *Scope, idx int, s *ast.Return) {
	if c.curYields {
		if s.Value != nil {
			c.err(diag.KindType, s.Pos(), "generator function must use bare `return`, not `return value`")
		}
		return
	}
	if s.Value == nil {
		if c.curRet.Kind != types.KVoid {
			c.err(diag.KindType, s.Pos(), "bare return in non-void function %s", c.curFn.Name)
		}
		return
	}
	if c.curRet.Kind == types.KVoid {
		c.err(diag.KindType, s.Pos(), "void function %s must not return a value", c.curFn.Name)
		return
	}
	vt := c.typeExpr(b, sc, idx, s.Value)
	if !types.Compat(vt, c.curRet) {
		c.err(diag.KindType, s.Pos(), "return value %s not compatible with declared return type %s", vt, c.curRet)
	}
}

func (c *Checker) checkLoopSetup(b *ast.Block, cfg *ast.CFG, sc *Scope, idx int, s *ast.LoopSetup) {
	srcT := c.typeExpr(b, sc, idx, s.Src)
	var ctxT *types.Type
	if srcT.Kind != types.KIter {
		u := types.Unwrap(srcT)
		if u != nil && u.Kind == types.KStruct {
			if m, ok := u.Method("__iter__"); ok {
				ctxT = c.ctxType(s.CtxName, m.Ret)
				iterCall := &ast.Call{Callee: &ast.Attrib{Object: s.Src, Field: "__iter__"}, Args: []ast.Arg{{Name: "self", Expr: s.Src}}, Kind: ast.CallMethod, Fun: m}
				iterCall.SetType(m.Ret)
				s.Src = iterCall
			}
		}
		if ctxT == nil {
			c.err(diag.KindType, s.Pos(), "for-loop source %s has no __iter__ method and is not already an iterator", srcT)
			return
		}
	} else {
		ctxT = c.ctxType(s.CtxName, srcT)
	}
	sc.Bind(s.CtxName, ctxT)
	// The header block that probes this context is reached by an
	// unconditional Branch in the same block the CFG builder emits right
	// after LoopSetup; its scope is seeded from predecessors before this
	// block finishes checking (and, once the loop body closes the back
	// edge, from a predecessor not yet visited at all), so seed() alone
	// cannot be trusted to carry CtxName forward the way it does for an
	// ordinary forward edge. Record it directly against every successor.
	for _, succ := range successorsOf(cfg, b.ID) {
		c.bindLoop(succ, s.CtxName, ctxT)
	}
}

// successorsOf finds every block listing id as a predecessor. CFG only
// stores reverse edges (Preds); this is the forward view checkLoopSetup
// needs to push a binding ahead of seed()'s own pass.
func successorsOf(cfg *ast.CFG, id int) []int {
	var out []int
	for _, blk := range cfg.Blocks {
		for _, p := range cfg.Preds(blk.ID) {
			if p == id {
				out = append(out, blk.ID)
				break
			}
		}
	}
	return out
}

// checkLoopHeader resolves CtxName's element type and records it against
// Body's block id so CheckFunction binds ElemName into Body's scope
// once it seeds that block — the element binding genuinely belongs to
// Body, not the header block checking this step (§4.2).
func (c *Checker) checkLoopHeader(sc *Scope, s *ast.LoopHeader) {
	bd, ok := sc.Lookup(s.CtxName)
	if !ok {
		c.err(diag.KindName, ast.Span{}, "undefined name %q", s.CtxName)
		return
	}
	elem := bd.typ
	if bd.typ.Kind == types.KIter {
		elem = bd.typ.Elem
	}
	c.bindLoop(s.Body, s.ElemName, elem)
}

// ctxType returns the loop context type for ctxName: a type already
// registered under `<ctxName>$ctx` if there is one, otherwise iter(elem)
// where elem is elemOrIter's element (§4.2 LoopSetup/LoopHeader
// desugaring). It registers no `$ctx` type itself.
func (c *Checker) ctxType(ctxName string, elemOrIter *types.Type) *types.Type {
	name := ctxName + "$ctx"
	if t, ok := c.reg.Get(name); ok {
		return t
	}
	elem := elemOrIter
	if elemOrIter.Kind == types.KIter {
		elem = elemOrIter.Elem
	}
	return c.reg.Iter(elem)
}

// checkMainSignature enforces §4.2 step 4.
func (c *Checker) checkMainSignature(fn *ast.Function) {
	if len(fn.Args) != 2 {
		c.err(diag.KindSignature, ast.Span{}, "main must take exactly 2 arguments, got %d", len(fn.Args))
		return
	}
	argv0, ok0 := c.reg.GetOrResolve(fn.Args[0].TypeName)
	argv1, ok1 := c.reg.GetOrResolve(fn.Args[1].TypeName)
	if !ok0 || argv0.Kind != types.KRef || types.Unwrap(argv0).Kind != types.KStr {
		c.err(diag.KindSignature, ast.Span{}, "main's first argument must be ref(str)")
	}
	if !ok1 || argv1.Kind != types.KRef || types.Unwrap(argv1).Kind != types.KArray || types.Unwrap(argv1).Elem.Kind != types.KStr {
		c.err(diag.KindSignature, ast.Span{}, "main's second argument must be ref(array[str])")
	}
	ret, ok := c.reg.GetOrResolve(fn.RetName)
	if !ok || (ret.Kind != types.KVoid && !(ret.Kind == types.KInt && ret.Signed && ret.Bits == 32)) {
		c.err(diag.KindSignature, ast.Span{}, "main must return void or i32")
	}
}

func (c *Checker) err(kind diag.Kind, span ast.Span, format string, args ...any) {
	c.diags.Add(diag.New(kind, span, format, args...))
}
