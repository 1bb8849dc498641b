package types

import "golang.org/x/exp/constraints"

// WidthOf and the zero/sign-extension helpers below are generic over the
// constraint packages the teacher already depends on for bstd's
// EncodeZigZag/DecodeZigZag (golang.org/x/exp/constraints). The
// specializer uses ClampSigned/ClampUnsigned to check that an integer
// literal fits the width it resolves to; WidthOf has no caller in this
// module.

// WidthOf returns the bit width of a concrete Go integer type.
func WidthOf[T constraints.Integer](v T) int {
	var zero T
	switch any(zero).(type) {
	case int8, uint8:
		return 8
	case int16, uint16:
		return 16
	case int32, uint32:
		return 32
	case int64, uint64, int, uint:
		return 64
	}
	return 64
}

// ClampSigned reports whether v fits in a signed integer of bits width,
// the specializer's range check for a literal resolved to a signed
// width (ClampUnsigned below is its unsigned counterpart, §4.3).
func ClampSigned[T constraints.Signed](v T, bits int) bool {
	if bits <= 0 || bits >= 64 {
		return true
	}
	limit := int64(1) << (bits - 1)
	vi := int64(v)
	return vi >= -limit && vi < limit
}

// ClampUnsigned reports whether v fits in an unsigned integer of bits
// width and is non-negative (the specializer's non-negative check).
func ClampUnsigned[T constraints.Integer](v T, bits int) bool {
	if int64(v) < 0 {
		return false
	}
	if bits <= 0 || bits >= 64 {
		return true
	}
	limit := uint64(1) << bits
	return uint64(v) < limit
}
