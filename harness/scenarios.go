package harness

import "github.com/runalang/runac/ast"

// Scenarios holds the six concrete Testable Properties from spec.md §8,
// hand-built since there is no lexer/parser in scope (§1) to turn
// Source into the ast.Module its Build func returns. Source exists so a
// reader can see the Runa-level program each scenario models, and so
// ParseTestHeader has real text to parse in harness_test.go.
var Scenarios = []Scenario{
	scenarioHelloWorld(),
	scenarioIntegerArithmetic(),
	scenarioStructMethod(),
	scenarioTraitDispatch(),
	scenarioOwnershipTransfer(),
	scenarioIteratorDesugaring(),
}

// mainArgs is §4.2 step 4's required main signature: ref(str), then
// ref(array[str]) — not the single `argv` spec.md's own scenario 1
// snippet shows, since checkMainSignature binds the two conventional
// argc/argv-style parameters instead (see DESIGN.md).
func mainArgs() []ast.ParamDecl {
	return []ast.ParamDecl{
		{Name: "argv0", TypeName: "ref(str)"},
		{Name: "argv1", TypeName: "ref(array[str])"},
	}
}

func printExtern() ast.ExternDecl {
	return ast.ExternDecl{LocalName: "print", RetTypeName: "void", Variadic: true}
}

func str(v string) *ast.StringLit { return &ast.StringLit{Value: v} }
func intLit(v int64) *ast.IntLit  { return &ast.IntLit{Value: v} }
func name(n string) *ast.Name     { return &ast.Name{Ident: n} }
func arg(e ast.Expr) ast.Arg      { return ast.Arg{Expr: e} }

func callNode(callee ast.Expr, args ...ast.Arg) *ast.Call {
	return &ast.Call{Callee: callee, Args: args}
}

func singleBlockFunction(fnName, retName string, args []ast.ParamDecl, steps ...ast.Node) *ast.Function {
	cfg := ast.NewCFG()
	b0 := ast.NewBlock(0)
	b0.Steps = steps
	cfg.AddBlock(b0)
	return &ast.Function{Name: fnName, IRName: fnName, Args: args, RetName: retName, CFG: cfg}
}

// scenarioHelloWorld is spec.md §8 property 1: `print("hello")` prints
// exactly "hello\n" — the trailing newline is the runtime's `print`
// convention (every scenario relies on it uniformly), not something
// baked into the literal.
func scenarioHelloWorld() Scenario {
	return Scenario{
		Name:   "hello world",
		Source: "# test: {\"stdout\": \"hello\\n\"}\nfn main(argv0: ref(str), argv1: ref(array[str])) -> void:\n    print(\"hello\")\n",
		Want:   Expect{Stdout: "hello\n"},
		Build: func() *ast.Module {
			mod := ast.NewModule("hello")
			mod.Externs["print"] = printExtern()
			mainFn := singleBlockFunction("main", "void", mainArgs(),
				callNode(name("print"), arg(str("hello"))),
				&ast.Return{},
			)
			mod.Functions = append(mod.Functions, mainFn)
			return mod
		},
	}
}

// scenarioIntegerArithmetic is spec.md §8 property 2: `2 as i32 + 3 as
// i32` returns 5, surfaced as main's exit code.
func scenarioIntegerArithmetic() Scenario {
	five := 5
	return Scenario{
		Name:   "integer arithmetic",
		Source: "# test: {\"exit_code\": 5}\nfn main(argv0: ref(str), argv1: ref(array[str])) -> i32:\n    return 2 as i32 + 3 as i32\n",
		Want:   Expect{ExitCode: &five},
		Build: func() *ast.Module {
			mod := ast.NewModule("arith")
			lhs := &ast.As{X: intLit(2), DstName: "i32"}
			rhs := &ast.As{X: intLit(3), DstName: "i32"}
			sum := &ast.Binary{Op: ast.OpAdd, Left: lhs, Right: rhs}
			mainFn := singleBlockFunction("main", "i32", mainArgs(),
				&ast.Return{Value: sum},
			)
			mod.Functions = append(mod.Functions, mainFn)
			return mod
		},
	}
}

// pointType builds the Point struct: two i32 fields, an __init__ that
// assigns both from its (self-less, per MethodDecl.Params convention —
// see DESIGN.md) constructor arguments, and a sum() method.
func pointType() ast.TypeDecl {
	initBody := singleBlockFunction("Point.__init__", "void",
		[]ast.ParamDecl{{Name: "self", TypeName: "ref(Point)"}, {Name: "x", TypeName: "i32"}, {Name: "y", TypeName: "i32"}},
		&ast.Assign{Target: &ast.Attrib{Object: name("self"), Field: "x"}, Value: name("x")},
		&ast.Assign{Target: &ast.Attrib{Object: name("self"), Field: "y"}, Value: name("y")},
		&ast.Return{},
	)
	sumBody := singleBlockFunction("Point.sum", "i32",
		[]ast.ParamDecl{{Name: "self", TypeName: "ref(Point)"}},
		&ast.Return{Value: &ast.Binary{
			Op:    ast.OpAdd,
			Left:  &ast.Attrib{Object: name("self"), Field: "x"},
			Right: &ast.Attrib{Object: name("self"), Field: "y"},
		}},
	)
	return ast.TypeDecl{
		Name: "Point",
		Kind: ast.DeclStruct,
		Fields: []ast.FieldDecl{
			{Name: "x", TypeName: "i32"},
			{Name: "y", TypeName: "i32"},
		},
		Methods: []ast.MethodDecl{
			{Name: "__init__", Params: []ast.ParamDecl{{Name: "x", TypeName: "i32"}, {Name: "y", TypeName: "i32"}}, RetName: "void", Body: initBody},
			{Name: "sum", Params: nil, RetName: "i32", Body: sumBody},
		},
	}
}

// scenarioStructMethod is spec.md §8 property 3: Point(3, 4).sum()
// prints 7.
func scenarioStructMethod() Scenario {
	return Scenario{
		Name:   "struct method dispatch",
		Source: "# test: {\"stdout\": \"7\\n\"}\nfn main(argv0: ref(str), argv1: ref(array[str])) -> void:\n    p = Point(3, 4)\n    print(p.sum())\n",
		Want:   Expect{Stdout: "7\n"},
		Build: func() *ast.Module {
			mod := ast.NewModule("point")
			mod.Externs["print"] = printExtern()
			mod.Types["Point"] = pointType()
			mainFn := singleBlockFunction("main", "void", mainArgs(),
				&ast.Assign{Target: name("p"), Value: callNode(name("Point"), arg(intLit(3)), arg(intLit(4)))},
				callNode(name("print"), arg(callNode(&ast.Attrib{Object: name("p"), Field: "sum"}))),
				&ast.Return{},
			)
			mod.Functions = append(mod.Functions, mainFn)
			return mod
		},
	}
}

// greeterTypes builds the Greeter trait (one signature-only method,
// greet() -> owner(str)) and two structs implementing it structurally —
// no explicit `impl` declaration, per §3/§4.1 "implemented implicitly".
func greeterTypes() (trait, en, es ast.TypeDecl) {
	trait = ast.TypeDecl{
		Name: "Greeter",
		Kind: ast.DeclTrait,
		Methods: []ast.MethodDecl{
			{Name: "greet", Params: nil, RetName: "owner(str)", Body: nil},
		},
	}
	enBody := singleBlockFunction("En.greet", "owner(str)",
		[]ast.ParamDecl{{Name: "self", TypeName: "ref(En)"}},
		&ast.Return{Value: str("hello")},
	)
	en = ast.TypeDecl{
		Name:    "En",
		Kind:    ast.DeclStruct,
		Methods: []ast.MethodDecl{{Name: "greet", Params: nil, RetName: "owner(str)", Body: enBody}},
	}
	esBody := singleBlockFunction("Es.greet", "owner(str)",
		[]ast.ParamDecl{{Name: "self", TypeName: "ref(Es)"}},
		&ast.Return{Value: str("hola")},
	)
	es = ast.TypeDecl{
		Name:    "Es",
		Kind:    ast.DeclStruct,
		Methods: []ast.MethodDecl{{Name: "greet", Params: nil, RetName: "owner(str)", Body: esBody}},
	}
	return trait, en, es
}

// scenarioTraitDispatch is spec.md §8 property 4: a Greeter trait with
// En/Es implementations dispatches virtually to print "hello\nhola\n".
func scenarioTraitDispatch() Scenario {
	return Scenario{
		Name: "trait virtual dispatch",
		Source: "# test: {\"stdout\": \"hello\\nhola\\n\"}\n" +
			"trait Greeter:\n    fn greet(self: ref(Greeter)) -> owner(str)\n" +
			"fn greetAndPrint(g: ref(Greeter)) -> void:\n    print(g.greet())\n" +
			"fn main(argv0: ref(str), argv1: ref(array[str])) -> void:\n    greetAndPrint(En())\n    greetAndPrint(Es())\n",
		Want: Expect{Stdout: "hello\nhola\n"},
		Build: func() *ast.Module {
			mod := ast.NewModule("greet")
			mod.Externs["print"] = printExtern()
			trait, en, es := greeterTypes()
			mod.Types["Greeter"] = trait
			mod.Types["En"] = en
			mod.Types["Es"] = es

			gName := name("g")
			greetAndPrint := singleBlockFunction("greetAndPrint", "void",
				[]ast.ParamDecl{{Name: "g", TypeName: "ref(Greeter)"}},
				callNode(name("print"), arg(callNode(&ast.Attrib{Object: gName, Field: "greet"}))),
				&ast.Return{},
			)
			mainFn := singleBlockFunction("main", "void", mainArgs(),
				callNode(name("greetAndPrint"), arg(callNode(name("En")))),
				callNode(name("greetAndPrint"), arg(callNode(name("Es")))),
				&ast.Return{},
			)
			mod.Functions = append(mod.Functions, greetAndPrint, mainFn)
			return mod
		},
	}
}

// scenarioOwnershipTransfer is spec.md §8 property 5: a second use of a
// moved owner(Buf) binding is rejected at compile time with an
// "undefined name" diagnostic — never reaches the interpreter.
func scenarioOwnershipTransfer() Scenario {
	return Scenario{
		Name: "ownership transfer",
		Source: "# test: {\"compile_error\": \"undefined name\"}\n" +
			"struct Buf:\n    pass\n" +
			"fn main(argv0: ref(str), argv1: ref(array[str])) -> void:\n    b = Buf()\n    consume(b)\n    consume(b)\n",
		Want: Expect{CompileErrorContains: "undefined name"},
		Build: func() *ast.Module {
			mod := ast.NewModule("ownership")
			mod.Externs["consume"] = ast.ExternDecl{LocalName: "consume", RetTypeName: "void", ParamTypes: []string{"owner(Buf)"}}
			mod.Types["Buf"] = ast.TypeDecl{Name: "Buf", Kind: ast.DeclStruct}
			mainFn := singleBlockFunction("main", "void", mainArgs(),
				&ast.Assign{Target: name("b"), Value: callNode(name("Buf"))},
				callNode(name("consume"), arg(name("b"))),
				callNode(name("consume"), arg(name("b"))),
				&ast.Return{},
			)
			mod.Functions = append(mod.Functions, mainFn)
			return mod
		},
	}
}

// scenarioIteratorDesugaring is spec.md §8 property 6: `for i in
// range(0, 3): print(i)` prints "0\n1\n2\n", exercising the
// LoopSetup/LoopHeader desugaring over a 4-block loop CFG.
func scenarioIteratorDesugaring() Scenario {
	return Scenario{
		Name: "iterator desugaring",
		Source: "# test: {\"stdout\": \"0\\n1\\n2\\n\"}\n" +
			"fn main(argv0: ref(str), argv1: ref(array[str])) -> void:\n    for i in range(0 as i32, 3 as i32):\n        print(i)\n",
		Want: Expect{Stdout: "0\n1\n2\n"},
		Build: func() *ast.Module {
			mod := ast.NewModule("iter")
			mod.Externs["print"] = printExtern()
			mod.Externs["range"] = ast.ExternDecl{LocalName: "range", RetTypeName: "iter(i32)", ParamTypes: []string{"i32", "i32"}}

			cfg := ast.NewCFG()
			entry := ast.NewBlock(0)
			entry.Steps = []ast.Node{
				&ast.LoopSetup{CtxName: "it", Src: callNode(name("range"), arg(&ast.As{X: intLit(0), DstName: "i32"}), arg(&ast.As{X: intLit(3), DstName: "i32"}))},
				&ast.Branch{Target: 1},
			}
			header := ast.NewBlock(1)
			header.Steps = []ast.Node{
				&ast.LoopHeader{CtxName: "it", ElemName: "i", Body: 2, Exit: 3},
			}
			body := ast.NewBlock(2)
			body.Steps = []ast.Node{
				callNode(name("print"), arg(name("i"))),
				&ast.Branch{Target: 1},
			}
			exit := ast.NewBlock(3)
			exit.Steps = []ast.Node{&ast.Return{}}

			cfg.AddBlock(entry)
			cfg.AddBlock(header)
			cfg.AddBlock(body)
			cfg.AddBlock(exit)
			cfg.AddEdge(0, 1)
			cfg.AddEdge(1, 2)
			cfg.AddEdge(1, 3)
			cfg.AddEdge(2, 1)

			mainFn := &ast.Function{Name: "main", IRName: "main", Args: mainArgs(), RetName: "void", CFG: cfg}
			mod.Functions = append(mod.Functions, mainFn)
			return mod
		},
	}
}
