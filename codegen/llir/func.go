// Function and block emission: walks one ast.Function's CFG in block-id
// order, lowering each step and closing every block with the LLVM
// terminator its ast.Branch/CondBranch/Return/Yield step describes.
package llir

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/runalang/runac/ast"
	rtypes "github.com/runalang/runac/types"
)

func (g *Generator) emitFunction(fn *ast.Function) error {
	retT, _ := g.reg.GetOrResolve(fn.RetName)

	llFn, ok := g.funcs[fn.IRName]
	if !ok {
		params := make([]*ir.Param, len(fn.Args))
		for i, p := range fn.Args {
			pt, _ := g.reg.GetOrResolve(p.TypeName)
			params[i] = ir.NewParam(p.Name, g.llType(pt))
		}
		llFn = g.out.NewFunc(fn.IRName, g.llType(retT), params...)
		g.funcs[fn.IRName] = llFn
	}

	entry := llFn.NewBlock(blockLabel(0))
	fr := newFrame(llFn, entry)

	for i, p := range fn.Args {
		pt, _ := g.reg.GetOrResolve(p.TypeName)
		llT := g.llType(pt)
		fr.store(p.Name, llT, llFn.Params[i])
	}

	for _, b := range fn.CFG.Blocks {
		if b.ID == 0 {
			continue
		}
		fr.blocks[b.ID] = llFn.NewBlock(blockLabel(b.ID))
	}

	for _, b := range fn.CFG.Blocks {
		fr.cur = fr.blocks[b.ID]
		g.emitBlock(fn, b, fr, retT)
	}
	return nil
}

func blockLabel(id int) string {
	return fmt.Sprintf("bb%d", id)
}

// emitBlock lowers every step of b in order. Value-producing Expr steps
// evaluated purely for effect (a bare Call) are lowered and discarded;
// statements mutate frame state; the last step of a block is expected
// to be a terminator (Branch/CondBranch/Return) except for fallthrough
// blocks the CFG builder left implicitly falling into the next one, in
// which case emitBlock closes it with an unconditional branch to the
// next block in CFG.Blocks order.
func (g *Generator) emitBlock(fn *ast.Function, b *ast.Block, fr *frame, retT *rtypes.Type) {
	for _, step := range b.Steps {
		switch s := step.(type) {
		case *ast.Assign:
			g.emitAssign(fr, s)
		case *ast.TupleAssign:
			g.emitTupleAssign(fr, s)
		case *ast.Return:
			g.emitReturn(fn, fr, s)
			return
		case *ast.Yield:
			g.emitYield(fr, s)
		case *ast.Branch:
			fr.cur.NewBr(fr.blocks[s.Target])
			return
		case *ast.CondBranch:
			cond := g.lowerExpr(fr, s.Cond)
			fr.cur.NewCondBr(cond, fr.blocks[s.True], fr.blocks[s.False])
			return
		case *ast.LoopSetup:
			g.emitLoopSetup(fr, s)
		case *ast.LoopHeader:
			g.emitLoopHeader(fr, s)
			return
		case ast.Expr:
			g.lowerExpr(fr, s) // evaluated for effect (e.g. a bare Call)
		}
	}
	if next := nextBlockID(fn.CFG, b.ID); next >= 0 {
		fr.cur.NewBr(fr.blocks[next])
	}
}

func nextBlockID(cfg *ast.CFG, id int) int {
	for i, b := range cfg.Blocks {
		if b.ID == id && i+1 < len(cfg.Blocks) {
			return cfg.Blocks[i+1].ID
		}
	}
	return -1
}

func (g *Generator) emitReturn(fn *ast.Function, fr *frame, s *ast.Return) {
	if s.Value == nil {
		g.emitCleanups(fr, fn, nil)
		fr.cur.NewRet(nil)
		return
	}
	v := g.lowerExpr(fr, s.Value)
	g.emitCleanups(fr, fn, s.Value)
	fr.cur.NewRet(v)
}

// emitYield lowers a generator's `yield expr` into a call to the
// runtime's yield primitive (see the `rt` package's prelude) rather
// than a real stackful-coroutine suspend: a fully resumable generator
// needs its own stack or a state-machine transform, neither of which
// this module builds. The value is still evaluated and
// passed through so generator bodies that only ever run to completion
// (the §8 iterator-desugaring scenario) observe correct output.
func (g *Generator) emitYield(fr *frame, s *ast.Yield) {
	v := g.lowerExpr(fr, s.Value)
	yieldFn, ok := g.externs["runa.yield"]
	if !ok {
		return
	}
	fr.cur.NewCall(yieldFn, v)
}

func (g *Generator) emitAssign(fr *frame, s *ast.Assign) {
	v := g.lowerExpr(fr, s.Value)
	switch tgt := s.Target.(type) {
	case *ast.Name:
		fr.store(tgt.Ident, g.exprLLType(tgt), v)
	case *ast.Attrib:
		g.storeAttrib(fr, tgt, v)
	case *ast.Elem:
		g.storeElem(fr, tgt, v)
	}
}

// emitTupleAssign destructures a tuple call result element-wise. Tuple
// values arrive as SSA aggregates and are spilled here to a temporary
// stack slot (see addressOf) so the fields can be addressed with
// getelementptr.
func (g *Generator) emitTupleAssign(fr *frame, s *ast.TupleAssign) {
	v := g.lowerExpr(fr, s.Value)
	tupT := g.exprRType(s.Value)
	llT := g.llType(tupT)
	slot := addressOf(fr, v)
	for i, tgt := range s.Targets {
		idx := constant.NewInt(types.I32, int64(i))
		zero := constant.NewInt(types.I32, 0)
		elemPtr := fr.cur.NewGetElementPtr(llT, slot, zero, idx)
		var elemT types.Type = types.I8
		if tupT != nil && i < len(tupT.Elems) {
			elemT = g.llType(tupT.Elems[i])
		}
		loaded := fr.cur.NewLoad(elemT, elemPtr)
		if name, ok := tgt.(*ast.Name); ok {
			fr.store(name.Ident, elemT, loaded)
		}
	}
}

// addressOf materializes a temporary stack slot for an aggregate SSA
// value so it can be indexed with getelementptr.
func addressOf(fr *frame, v value.Value) *ir.InstAlloca {
	a := fr.entry.NewAlloca(v.Type())
	fr.cur.NewStore(v, a)
	return a
}

func (g *Generator) emitLoopSetup(fr *frame, s *ast.LoopSetup) {
	v := g.lowerExpr(fr, s.Src)
	t := g.exprRType(s.Src)
	fr.store(s.CtxName, g.llType(t), v)
}

// emitLoopHeader lowers the per-iteration `__next__` probe. The
// iterator context is an opaque i8* handle managed by the runtime
// prelude; `runa.iter_next` reports whether another element is
// available and `runa.iter_value`, when present, fetches it — a
// simplification of real generator-to-iterator desugaring, which would
// need the element's concrete type threaded through to avoid the i64
// fallback load below.
func (g *Generator) emitLoopHeader(fr *frame, s *ast.LoopHeader) {
	nextFn, ok := g.externs["runa.iter_next"]
	if !ok {
		fr.cur.NewBr(fr.blocks[s.Exit])
		return
	}
	ctxT := types.NewPointer(types.I8)
	ctx := fr.load(s.CtxName, ctxT)
	hasNext := fr.cur.NewCall(nextFn, ctx)
	if valueFn, ok := g.externs["runa.iter_value"]; ok {
		elemPtr := fr.cur.NewCall(valueFn, ctx)
		loaded := fr.cur.NewLoad(types.I64, elemPtr)
		fr.store(s.ElemName, types.I64, loaded)
	}
	fr.cur.NewCondBr(hasNext, fr.blocks[s.Body], fr.blocks[s.Exit])
}

func (g *Generator) exprLLType(e ast.Expr) types.Type {
	return g.llType(g.exprRType(e))
}

func (g *Generator) exprRType(e ast.Expr) *rtypes.Type {
	t, _ := ast.Typed(e).(*rtypes.Type)
	return t
}
