package types

// Compat implements the assignability relation described in §4.1:
//
//   - equal types are compatible;
//   - an unresolved numeric type (a) is compatible with any concrete
//     integer/float (b) of any width — specialization picks the width
//     later;
//   - a struct (a) is compatible with a trait (b) when a implements
//     every method b declares, with matching signatures (structural,
//     "implemented implicitly");
//   - owner(T) (a) is compatible with ref(T) (b): owning values may be
//     passed where a borrow is expected;
//   - tuples are compatible element-wise;
//   - a is compatible with the non-variadic prefix of variadic b.
func Compat(a, b *Type) bool {
	if Equal(a, b) {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	if a.Kind == KAnyInt && b.Kind == KInt {
		return true
	}
	if a.Kind == KAnyFloat && b.Kind == KFloat {
		return true
	}
	// Symmetric: context may supply the unresolved side as the
	// destination (e.g. comparing a literal against a concrete value).
	if b.Kind == KAnyInt && a.Kind == KInt {
		return true
	}
	if b.Kind == KAnyFloat && a.Kind == KFloat {
		return true
	}

	if a.Kind == KStruct && b.Kind == KTrait {
		return implementsTrait(a, b)
	}

	if a.Kind == KOwner && b.Kind == KRef {
		return Compat(a.Elem, b.Elem) || Equal(a.Elem, b.Elem)
	}

	if a.Kind == KTuple && b.Kind == KTuple {
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if !Compat(a.Elems[i], b.Elems[i]) {
				return false
			}
		}
		return true
	}

	if a.Kind == KFunc && b.Kind == KFunc {
		if len(a.Params) < len(b.Params) && !b.Variadic {
			return false
		}
		n := len(b.Params)
		if b.Variadic {
			n--
		}
		for i := 0; i < n; i++ {
			if !Compat(a.Params[i], b.Params[i]) {
				return false
			}
		}
		return Compat(a.Ret, b.Ret)
	}

	return false
}

// implementsTrait checks that every method trait declares is present on
// st with a compatible signature (return type compatible, parameters
// compatible positionally, arity equal). This is what lets a struct
// satisfy a trait without an explicit `impl` declaration.
func implementsTrait(st, trait *Type) bool {
	for _, name := range trait.MethodNames() {
		want := trait.methods[name]
		got, ok := st.methods[name]
		if !ok {
			return false
		}
		wantParams, gotParams := want.Params, got.Params
		// self's type is the receiver itself — ref(St) on the struct side
		// vs ref(Trait) on the trait side can never be structurally equal,
		// so it is never part of the comparison, matching how
		// checkMethodCall strips it before checking call-site arity.
		if len(wantParams) > 0 && wantParams[0].Name == "self" {
			wantParams = wantParams[1:]
		}
		if len(gotParams) > 0 && gotParams[0].Name == "self" {
			gotParams = gotParams[1:]
		}
		if len(gotParams) != len(wantParams) {
			return false
		}
		if !Compat(got.Ret, want.Ret) {
			return false
		}
		for i := range wantParams {
			if !Compat(gotParams[i].Type, wantParams[i].Type) {
				return false
			}
		}
	}
	return true
}

// CommonNumeric returns the concrete numeric type to adopt when one side
// of a binary operation is unresolved: if exactly one side is
// anyint/anyfloat, the other side's (concrete) type wins. Returns nil,
// false if neither side determines a common type (both unresolved, or
// families disagree).
func CommonNumeric(a, b *Type) (*Type, bool) {
	au, bu := Unwrap(a), Unwrap(b)
	aAny := au.Kind == KAnyInt || au.Kind == KAnyFloat
	bAny := bu.Kind == KAnyInt || bu.Kind == KAnyFloat
	switch {
	case !aAny && !bAny:
		if Equal(au, bu) {
			return au, true
		}
		return nil, false
	case aAny && !bAny:
		return bu, true
	case !aAny && bAny:
		return au, true
	default:
		return nil, false
	}
}

// CanCoerce implements the sanctioned `as` table (§9 Open Question, resolved in
// SPEC_FULL.md "Supplemented Features"): widening within a family is
// always allowed; narrower signed may widen into a same-or-larger
// unsigned (bit-preserving reinterpretation); float widening is allowed;
// int<->float is never implicit via `as` and must go through a runtime
// conversion call instead (not modeled here since it is a runtime-lib
// concern, out of scope).
func CanCoerce(src, dst *Type) bool {
	su, du := Unwrap(src), Unwrap(dst)
	if Equal(su, du) {
		return true
	}
	if su.Kind == KInt && du.Kind == KInt {
		if su.Signed == du.Signed {
			return width(su) <= width(du)
		}
		// narrower signed -> wider-or-equal unsigned: bit-preserving
		if su.Signed && !du.Signed {
			return width(su) <= width(du)
		}
		return false
	}
	if su.Kind == KFloat && du.Kind == KFloat {
		return width(su) <= width(du)
	}
	return false
}

// width treats word-sized ints (Bits == 0) as 64-bit for comparison
// purposes, matching a typical native pointer width.
func width(t *Type) int {
	if t.Bits == 0 {
		return 64
	}
	return t.Bits
}
