package types

import (
	"testing"

	"github.com/runalang/runac/ast"
)

// cyclicNode is a self-referential struct: a field typed ref(Node). Add
// must leave a placeholder Fill can resolve against without a forward
// declaration (§9 "cyclic AST/type graphs").
func cyclicNode() ast.TypeDecl {
	return ast.TypeDecl{
		Name:   "Node",
		Kind:   ast.DeclStruct,
		Fields: []ast.FieldDecl{{Name: "next", TypeName: "ref(Node)"}},
	}
}

func TestRegistryAddFillResolvesCyclicReference(t *testing.T) {
	reg := NewRegistry()
	decl := cyclicNode()
	reg.Add(decl)

	if err := reg.Fill(decl, reg.Resolve); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	node, ok := reg.Get("Node")
	if !ok {
		t.Fatalf("Node not registered after Fill")
	}
	next, ok := node.Attr("next")
	if !ok {
		t.Fatalf("Node.next attribute missing")
	}
	if next.Type.Kind != KRef {
		t.Fatalf("Node.next type = %v, want KRef", next.Type.Kind)
	}
	if next.Type.Elem != node {
		t.Fatalf("Node.next does not resolve back to the same interned Node")
	}
}

func TestFillBeforeAddFails(t *testing.T) {
	reg := NewRegistry()
	decl := cyclicNode()
	if err := reg.Fill(decl, reg.Resolve); err == nil {
		t.Fatalf("Fill before Add: expected error, got nil")
	}
}

// TestMethodNamesLexicographic pins the vtable-slot-index invariant
// codegen/llir/vtable.go depends on: every pass that assigns or
// consults a slot index must agree on the same order, and they do
// because all of them call MethodNames() instead of ranging over a map.
func TestMethodNamesLexicographic(t *testing.T) {
	reg := NewRegistry()
	decl := ast.TypeDecl{
		Name: "Greeter",
		Kind: ast.DeclTrait,
		Methods: []ast.MethodDecl{
			{Name: "zulu", RetName: "void"},
			{Name: "alpha", RetName: "void"},
			{Name: "mike", RetName: "void"},
		},
	}
	reg.Add(decl)
	if err := reg.Fill(decl, reg.Resolve); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	trait, _ := reg.Get("Greeter")

	want := []string{"alpha", "mike", "zulu"}
	got := trait.MethodNames()
	if len(got) != len(want) {
		t.Fatalf("MethodNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MethodNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Memoized: a second call returns the identical slice contents even
	// though the underlying map iteration order is randomized per run.
	again := trait.MethodNames()
	for i := range want {
		if again[i] != got[i] {
			t.Errorf("MethodNames() not stable across calls: %v vs %v", got, again)
		}
	}
}

func TestUnwrapStripsRefAndOwner(t *testing.T) {
	reg := NewRegistry()
	i32 := reg.MustGet("i32")
	owned := reg.Owner(reg.Ref(i32))
	if got := Unwrap(owned); got != i32 {
		t.Errorf("Unwrap(owner(ref(i32))) = %v, want %v", got, i32)
	}
}
