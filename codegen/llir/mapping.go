// Package llir lowers a type-checked, escape-analyzed Runa CFG to
// textual LLIR by building a *ir.Module with github.com/llir/llvm and
// printing it (§4.5 of SPEC_FULL.md). The spec's instruction vocabulary
// — alloca, getelementptr, phi, br, icmp, zext, bitcast, declare,
// define, call, ret, store, load, named struct types, constant globals
// — is LLVM's own, so the generator builds real LLVM IR values instead
// of hand-formatting strings; see DESIGN.md for the one piece (the
// runtime prelude) that is still emitted as plain text because there is
// no structured IR to build for a verbatim-included file.
package llir

import (
	"fmt"

	"github.com/llir/llvm/ir/types"
	rtypes "github.com/runalang/runac/types"
)

// llType maps a Runa Type to its LLVM representation. Structs and
// traits are looked up in g.structTypes/g.wrapTypes (populated by
// declareTypes/declareTraits) rather than rebuilt here, so every
// reference to "Point" shares the one %Point named type the way the
// spec's §5 ordering invariants require (slot indices fixed at fill
// time, never rebuilt at codegen time).
func (g *Generator) llType(t *rtypes.Type) types.Type {
	if t == nil {
		return types.Void
	}
	switch t.Kind {
	case rtypes.KInt:
		return intType(t.Bits)
	case rtypes.KFloat:
		if t.Bits == 32 {
			return types.Float
		}
		return types.Double
	case rtypes.KBool:
		return types.I1
	case rtypes.KByte:
		return types.I8
	case rtypes.KVoid, rtypes.KNoType:
		return types.Void
	case rtypes.KStr:
		return g.strType
	case rtypes.KStruct:
		if named, ok := g.structTypes[t.Name]; ok {
			return named
		}
		return types.I8
	case rtypes.KTrait:
		if named, ok := g.wrapTypes[t.Name]; ok {
			return named
		}
		return types.I8
	case rtypes.KRef, rtypes.KOwner:
		return types.NewPointer(g.llType(t.Elem))
	case rtypes.KArray:
		return g.arrayType(t.Elem)
	case rtypes.KIter:
		return types.NewPointer(types.I8) // opaque iterator context handle
	case rtypes.KFunc:
		params := make([]types.Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = g.llType(p)
		}
		return types.NewPointer(types.NewFunc(g.llType(t.Ret), params...))
	default:
		return types.I8
	}
}

func intType(bits int) *types.IntType {
	switch bits {
	case 8:
		return types.I8
	case 16:
		return types.I16
	case 32:
		return types.I32
	case 64:
		return types.I64
	default: // word
		return types.I64
	}
}

// arrayType returns (and memoizes) the LLVM struct representing
// `array[T]`: `{length: uword, data: &T}` per §3.
func (g *Generator) arrayType(elem *rtypes.Type) types.Type {
	key := elem.String()
	if t, ok := g.arrayTypes[key]; ok {
		return t
	}
	st := types.NewStruct(types.I64, types.NewPointer(g.llType(elem)))
	named := g.out.NewTypeDef(fmt.Sprintf("array.%s", sanitize(key)), st)
	g.arrayTypes[key] = named
	return named
}

// sanitize strips characters LLVM identifiers disallow from a Runa type
// name used to build a synthetic LLVM type name.
func sanitize(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
