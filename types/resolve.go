package types

import (
	"fmt"
	"strings"
)

// Resolve parses the small surface syntax used for TypeDecl field/param/
// return type names (plain names, ref(T), owner(T), array[T], iter(T),
// and tuples written "(A, B)") against an already-populated Registry.
// This is the resolve callback Fill expects; kept separate from Fill
// itself so the registry's own tests can exercise parsing independent
// of struct/trait materialization.
func (r *Registry) Resolve(name string) (*Type, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("types: empty type name")
	}
	if t, ok := r.Get(name); ok {
		return t, nil
	}
	switch {
	case strings.HasPrefix(name, "ref(") && strings.HasSuffix(name, ")"):
		inner, err := r.Resolve(name[4 : len(name)-1])
		if err != nil {
			return nil, err
		}
		return r.Ref(inner), nil
	case strings.HasPrefix(name, "owner(") && strings.HasSuffix(name, ")"):
		inner, err := r.Resolve(name[6 : len(name)-1])
		if err != nil {
			return nil, err
		}
		return r.Owner(inner), nil
	case strings.HasPrefix(name, "iter(") && strings.HasSuffix(name, ")"):
		inner, err := r.Resolve(name[5 : len(name)-1])
		if err != nil {
			return nil, err
		}
		return r.Iter(inner), nil
	case strings.HasPrefix(name, "array[") && strings.HasSuffix(name, "]"):
		inner, err := r.Resolve(name[6 : len(name)-1])
		if err != nil {
			return nil, err
		}
		return r.Array(inner), nil
	case strings.HasPrefix(name, "(") && strings.HasSuffix(name, ")"):
		parts := splitTopLevel(name[1 : len(name)-1])
		elems := make([]*Type, 0, len(parts))
		for _, p := range parts {
			et, err := r.Resolve(p)
			if err != nil {
				return nil, err
			}
			elems = append(elems, et)
		}
		return r.BuildTuple(elems), nil
	}
	return nil, fmt.Errorf("types: unknown type name %q", name)
}

// splitTopLevel splits s on top-level commas, respecting nested
// parens/brackets — "ref(owner(T)), i32" -> ["ref(owner(T))", "i32"].
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, ch := range s {
		switch ch {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if start < len(s) {
		parts = append(parts, strings.TrimSpace(s[start:]))
	}
	return parts
}
