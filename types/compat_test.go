package types

import "testing"

func TestCanCoerce(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name     string
		src, dst string
		want     bool
	}{
		{"same width int widening is a no-op", "i32", "i32", true},
		{"signed widening within family", "i8", "i32", true},
		{"signed narrowing within family rejected", "i32", "i8", false},
		{"signed to wider-or-equal unsigned is bit-preserving", "i8", "u32", true},
		{"signed to narrower unsigned rejected", "i32", "u8", false},
		{"unsigned never implicitly narrows to signed", "u32", "i8", false},
		{"float widening", "f32", "f64", true},
		{"float narrowing rejected", "f64", "f32", false},
		{"int to float is never implicit via as", "i32", "f32", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, dst := reg.MustGet(tt.src), reg.MustGet(tt.dst)
			if got := CanCoerce(src, dst); got != tt.want {
				t.Errorf("CanCoerce(%s, %s) = %v, want %v", tt.src, tt.dst, got, tt.want)
			}
		})
	}
}

func TestCompatOwnerToRef(t *testing.T) {
	reg := NewRegistry()
	i32 := reg.MustGet("i32")
	owned := reg.Owner(i32)
	borrowed := reg.Ref(i32)
	if !Compat(owned, borrowed) {
		t.Errorf("Compat(owner(i32), ref(i32)) = false, want true")
	}
	if Compat(borrowed, owned) {
		t.Errorf("Compat(ref(i32), owner(i32)) = true, want false (borrows don't satisfy an owner-typed destination)")
	}
}

func TestCompatAnyIntIsSymmetric(t *testing.T) {
	reg := NewRegistry()
	anyInt := reg.MustGet("anyint")
	i64 := reg.MustGet("i64")
	if !Compat(anyInt, i64) {
		t.Errorf("Compat(anyint, i64) = false, want true")
	}
	if !Compat(i64, anyInt) {
		t.Errorf("Compat(i64, anyint) = false, want true")
	}
}

func TestCommonNumericPicksTheConcreteSide(t *testing.T) {
	reg := NewRegistry()
	anyInt := reg.MustGet("anyint")
	i32 := reg.MustGet("i32")

	got, ok := CommonNumeric(anyInt, i32)
	if !ok || got != i32 {
		t.Errorf("CommonNumeric(anyint, i32) = (%v, %v), want (i32, true)", got, ok)
	}

	if _, ok := CommonNumeric(anyInt, reg.MustGet("anyfloat")); ok {
		t.Errorf("CommonNumeric(anyint, anyfloat) should not resolve — families disagree")
	}
}
