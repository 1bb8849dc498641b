// Per-node expression lowering: literals, names, field/element access,
// arithmetic and comparison (including the struct dunder-method
// fallback the checker already validated), short-circuit booleans,
// ternary, `is`/`as`, and the three call shapes (free, virtual method,
// constructor).
package llir

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/runalang/runac/ast"
	rtypes "github.com/runalang/runac/types"
)

// lowerExpr evaluates e into an SSA value in fr.cur, appending whatever
// instructions are needed. Aggregates (struct/array) are represented by
// pointer, matching how Init/malloc produce them; scalars are plain
// register values.
func (g *Generator) lowerExpr(fr *frame, e ast.Expr) value.Value {
	switch n := e.(type) {
	case *ast.IntLit:
		return constant.NewInt(intTypeOf(g, n), n.Value)
	case *ast.FloatLit:
		return constant.NewFloat(floatTypeOf(g, n), n.Value)
	case *ast.StringLit:
		return g.lowerStringLit(fr, n)
	case *ast.BoolLit:
		if n.Value {
			return constant.True
		}
		return constant.False
	case *ast.NoneLit:
		return constant.NewNull(types.NewPointer(types.I8))
	case *ast.Name:
		return fr.load(n.Ident, g.exprLLType(n))
	case *ast.Attrib:
		return g.loadAttrib(fr, n)
	case *ast.Elem:
		return g.loadElem(fr, n)
	case *ast.Binary:
		return g.lowerBinary(fr, n)
	case *ast.Compare:
		return g.lowerCompare(fr, n)
	case *ast.Bool:
		return g.lowerBoolOp(fr, n)
	case *ast.Not:
		return fr.cur.NewXor(g.lowerExpr(fr, n.X), constant.True)
	case *ast.Is:
		return g.lowerIs(fr, n)
	case *ast.As:
		return g.lowerAs(fr, n)
	case *ast.Ternary:
		return g.lowerTernary(fr, n)
	case *ast.Call:
		return g.lowerCall(fr, n)
	case *ast.Init:
		return g.lowerInit(fr, n)
	case *ast.Phi:
		return g.lowerPhi(fr, n)
	}
	return constant.NewInt(types.I64, 0)
}

func intTypeOf(g *Generator, n *ast.IntLit) *types.IntType {
	t := g.exprRType(n)
	if t == nil || (t.Kind != rtypes.KInt) {
		return types.I64
	}
	return intType(t.Bits)
}

func floatTypeOf(g *Generator, n *ast.FloatLit) *types.FloatType {
	t := g.exprRType(n)
	if t != nil && t.Kind == rtypes.KFloat && t.Bits == 32 {
		return types.Float
	}
	return types.Double
}

// lowerStringLit allocates a private constant byte array for the
// literal's contents and builds a `str` value {length, data} pointing
// at it, matching §3's representation.
func (g *Generator) lowerStringLit(fr *frame, n *ast.StringLit) value.Value {
	data := constant.NewCharArrayFromString(n.Value)
	g.strLitCount++
	gv := g.out.NewGlobalDef(g.strLitName(), data)
	gv.Immutable = true
	strT := g.strType
	slot := fr.entry.NewAlloca(strT)
	lenPtr := fr.cur.NewGetElementPtr(strT, slot, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, 0))
	fr.cur.NewStore(constant.NewInt(types.I64, int64(len(n.Value))), lenPtr)
	dataPtr := fr.cur.NewGetElementPtr(strT, slot, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, 1))
	zero := constant.NewInt(types.I64, 0)
	gep := constant.NewGetElementPtr(data.Type(), gv, zero, zero)
	fr.cur.NewStore(gep, dataPtr)
	return fr.cur.NewLoad(strT, slot)
}

func (g *Generator) strLitName() string {
	return "str.lit." + itoaGen(g.strLitCount)
}

func itoaGen(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// ---- field / element access ----

func (g *Generator) gepAttrib(fr *frame, n *ast.Attrib) (*ir.InstGetElementPtr, types.Type) {
	objT := g.exprRType(n.Object)
	u := rtypes.Unwrap(objT)
	st, _ := g.reg.Get(u.Name)
	attr, _ := st.Attr(n.Field)
	objPtr := g.lowerExpr(fr, n.Object)
	structT := g.structTypes[u.Name]
	fieldT := g.llType(attr.Type)
	ptr := fr.cur.NewGetElementPtr(structT, objPtr,
		constant.NewInt(types.I32, 0), constant.NewInt(types.I32, int64(attr.Slot)))
	return ptr, fieldT
}

func (g *Generator) loadAttrib(fr *frame, n *ast.Attrib) value.Value {
	ptr, fieldT := g.gepAttrib(fr, n)
	return fr.cur.NewLoad(fieldT, ptr)
}

func (g *Generator) storeAttrib(fr *frame, n *ast.Attrib, v value.Value) {
	ptr, _ := g.gepAttrib(fr, n)
	fr.cur.NewStore(v, ptr)
}

func (g *Generator) gepElem(fr *frame, n *ast.Elem) (*ir.InstGetElementPtr, types.Type) {
	objT := g.exprRType(n.Object)
	u := rtypes.Unwrap(objT)
	arrT := g.arrayType(u.Elem)
	objPtr := g.lowerExpr(fr, n.Object)
	dataFieldPtr := fr.cur.NewGetElementPtr(arrT, objPtr,
		constant.NewInt(types.I32, 0), constant.NewInt(types.I32, 1))
	elemT := g.llType(u.Elem)
	dataPtr := fr.cur.NewLoad(types.NewPointer(elemT), dataFieldPtr)
	key := g.lowerExpr(fr, n.Key)
	elemPtr := fr.cur.NewGetElementPtr(elemT, dataPtr, key)
	return elemPtr, elemT
}

func (g *Generator) loadElem(fr *frame, n *ast.Elem) value.Value {
	ptr, elemT := g.gepElem(fr, n)
	return fr.cur.NewLoad(elemT, ptr)
}

func (g *Generator) storeElem(fr *frame, n *ast.Elem, v value.Value) {
	ptr, _ := g.gepElem(fr, n)
	fr.cur.NewStore(v, ptr)
}

// ---- arithmetic / comparison ----

func (g *Generator) lowerBinary(fr *frame, n *ast.Binary) value.Value {
	lt := g.exprRType(n.Left)
	if rtypes.IsNumeric(lt) {
		l, r := g.lowerExpr(fr, n.Left), g.lowerExpr(fr, n.Right)
		return lowerNumericBinary(fr, n.Op, l, r, rtypes.IsFloat(lt), isSignedType(lt))
	}
	// Struct operand: dispatch to its __add__/__sub__/... method, already
	// resolved by the checker onto the node's inferred type.
	return g.lowerMethodBinary(fr, n)
}

func lowerNumericBinary(fr *frame, op ast.BinOp, l, r value.Value, isFloat, signed bool) value.Value {
	switch op {
	case ast.OpAdd:
		if isFloat {
			return fr.cur.NewFAdd(l, r)
		}
		return fr.cur.NewAdd(l, r)
	case ast.OpSub:
		if isFloat {
			return fr.cur.NewFSub(l, r)
		}
		return fr.cur.NewSub(l, r)
	case ast.OpMul:
		if isFloat {
			return fr.cur.NewFMul(l, r)
		}
		return fr.cur.NewMul(l, r)
	case ast.OpDiv:
		if isFloat {
			return fr.cur.NewFDiv(l, r)
		}
		if signed {
			return fr.cur.NewSDiv(l, r)
		}
		return fr.cur.NewUDiv(l, r)
	case ast.OpMod:
		if signed {
			return fr.cur.NewSRem(l, r)
		}
		return fr.cur.NewURem(l, r)
	}
	return l
}

func isSignedType(t *rtypes.Type) bool {
	u := rtypes.Unwrap(t)
	return u != nil && u.Kind == rtypes.KInt && u.Signed
}

// lowerMethodBinary calls the struct's dunder method for an operator
// overload, mirroring check/checker.go's dunderFor naming so the same
// method the checker validated is the one invoked here.
func (g *Generator) lowerMethodBinary(fr *frame, n *ast.Binary) value.Value {
	lt := rtypes.Unwrap(g.exprRType(n.Left))
	method, _ := lt.Method(dunderForOp(n.Op))
	fn := g.funcOf(method)
	self := g.lowerExpr(fr, n.Left)
	arg := g.lowerExpr(fr, n.Right)
	return fr.cur.NewCall(fn, self, arg)
}

func dunderForOp(op ast.BinOp) string {
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

func (g *Generator) lowerCompare(fr *frame, n *ast.Compare) value.Value {
	lt := g.exprRType(n.Left)
	if rtypes.IsNumeric(lt) {
		l, r := g.lowerExpr(fr, n.Left), g.lowerExpr(fr, n.Right)
		if rtypes.IsFloat(lt) {
			return fr.cur.NewFCmp(fcmpPred(n.Op), l, r)
		}
		return fr.cur.NewICmp(icmpPred(n.Op, isSignedType(lt)), l, r)
	}
	u := rtypes.Unwrap(lt)
	method, ok := u.Method(dunderForCmp(n.Op))
	if !ok {
		return constant.False
	}
	fn := g.funcOf(method)
	self := g.lowerExpr(fr, n.Left)
	arg := g.lowerExpr(fr, n.Right)
	return fr.cur.NewCall(fn, self, arg)
}

func dunderForCmp(op ast.CmpOp) string {
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

func icmpPred(op ast.CmpOp, signed bool) enum.IPred {
	switch op {
	case ast.CmpEq:
		return enum.IPredEQ
	case ast.CmpNe:
		return enum.IPredNE
	case ast.CmpLt:
		if signed {
			return enum.IPredSLT
		}
		return enum.IPredULT
	case ast.CmpLe:
		if signed {
			return enum.IPredSLE
		}
		return enum.IPredULE
	case ast.CmpGt:
		if signed {
			return enum.IPredSGT
		}
		return enum.IPredUGT
	case ast.CmpGe:
		if signed {
			return enum.IPredSGE
		}
		return enum.IPredUGE
	}
	return enum.IPredEQ
}

func fcmpPred(op ast.CmpOp) enum.FPred {
	switch op {
	case ast.CmpEq:
		return enum.FPredOEQ
	case ast.CmpNe:
		return enum.FPredONE
	case ast.CmpLt:
		return enum.FPredOLT
	case ast.CmpLe:
		return enum.FPredOLE
	case ast.CmpGt:
		return enum.FPredOGT
	case ast.CmpGe:
		return enum.FPredOGE
	}
	return enum.FPredOEQ
}

// ---- boolean / ternary / is / as ----

// lowerBoolOp always lowers to an explicit branch+phi (the §9 Open
// Question's resolved side-effect-preserving behavior), unless the
// generator was built WithSelectLowering, reproducing the eager select
// form for side-by-side comparison.
func (g *Generator) lowerBoolOp(fr *frame, n *ast.Bool) value.Value {
	if !g.opt.shortCircuit {
		l, r := g.lowerExpr(fr, n.Left), g.lowerExpr(fr, n.Right)
		if n.Op == ast.BoolAnd {
			return fr.cur.NewSelect(l, r, constant.False)
		}
		return fr.cur.NewSelect(l, constant.True, r)
	}
	l := g.lowerExpr(fr, n.Left)
	rhsBlock := fr.fn.NewBlock(g.tmpLabel(fr, "bool.rhs"))
	contBlock := fr.fn.NewBlock(g.tmpLabel(fr, "bool.cont"))
	entryBlock := fr.cur
	if n.Op == ast.BoolAnd {
		fr.cur.NewCondBr(l, rhsBlock, contBlock)
	} else {
		fr.cur.NewCondBr(l, contBlock, rhsBlock)
	}
	fr.cur = rhsBlock
	r := g.lowerExpr(fr, n.Right)
	rhsBlock.NewBr(contBlock)
	fr.cur = contBlock
	phi := contBlock.NewPhi(ir.NewIncoming(l, entryBlock), ir.NewIncoming(r, rhsBlock))
	return phi
}

func (g *Generator) tmpLabel(fr *frame, prefix string) string {
	fr.tmp++
	return fmt.Sprintf("%s.%d", prefix, fr.tmp)
}

func (g *Generator) lowerIs(fr *frame, n *ast.Is) value.Value {
	v := g.lowerExpr(fr, n.X)
	t := g.exprLLType(n.X)
	null := constant.NewNull(t.(*types.PointerType))
	return fr.cur.NewICmp(enum.IPredEQ, v, null)
}

// lowerAs applies the sanctioned coercion: same-family widening is a
// zext/sext/fpext, narrower-signed-to-wider-unsigned is a bit-preserving
// zext, anything already the destination type is a no-op.
func (g *Generator) lowerAs(fr *frame, n *ast.As) value.Value {
	v := g.lowerExpr(fr, n.X)
	srcT := g.exprRType(n.X)
	dstT := g.exprRType(n)
	dstLL := g.llType(dstT)
	su, du := rtypes.Unwrap(srcT), rtypes.Unwrap(dstT)
	if su == nil || du == nil || rtypes.Equal(su, du) {
		return v
	}
	if su.Kind == rtypes.KInt && du.Kind == rtypes.KInt {
		if su.Signed {
			return fr.cur.NewSExt(v, dstLL)
		}
		return fr.cur.NewZExt(v, dstLL)
	}
	if su.Kind == rtypes.KFloat && du.Kind == rtypes.KFloat {
		return fr.cur.NewFPExt(v, dstLL)
	}
	return fr.cur.NewBitCast(v, dstLL)
}

func (g *Generator) lowerTernary(fr *frame, n *ast.Ternary) value.Value {
	cond := g.lowerExpr(fr, n.Cond)
	thenBlock := fr.fn.NewBlock(g.tmpLabel(fr, "tern.then"))
	elseBlock := fr.fn.NewBlock(g.tmpLabel(fr, "tern.else"))
	contBlock := fr.fn.NewBlock(g.tmpLabel(fr, "tern.cont"))
	fr.cur.NewCondBr(cond, thenBlock, elseBlock)

	fr.cur = thenBlock
	lv := g.lowerExpr(fr, n.Left)
	thenBlock.NewBr(contBlock)
	thenExit := fr.cur

	fr.cur = elseBlock
	rv := g.lowerExpr(fr, n.Right)
	elseBlock.NewBr(contBlock)
	elseExit := fr.cur

	fr.cur = contBlock
	return contBlock.NewPhi(ir.NewIncoming(lv, thenExit), ir.NewIncoming(rv, elseExit))
}

// lowerPhi emits a genuine LLVM phi selecting between Left/Right based
// on which of PredLeft/PredRight's llvm blocks control actually arrived
// from — the one ast node kind where block-merge is explicit rather
// than implied by the alloca/load representation everywhere else.
func (g *Generator) lowerPhi(fr *frame, n *ast.Phi) value.Value {
	leftBlock, rightBlock := fr.blocks[n.PredLeft], fr.blocks[n.PredRight]
	lv := g.lowerExpr(fr, n.Left)
	rv := g.lowerExpr(fr, n.Right)
	return fr.cur.NewPhi(ir.NewIncoming(lv, leftBlock), ir.NewIncoming(rv, rightBlock))
}

func (g *Generator) funcOf(m *rtypes.Method) *ir.Func {
	if fn, ok := g.funcs[m.IRName]; ok {
		return fn
	}
	return g.predeclareFunc(m)
}
