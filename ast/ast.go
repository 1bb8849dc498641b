// Package ast defines the node vocabulary the core compiler consumes.
//
// The lexer, parser, and CFG builder that actually produce these values
// are out of scope for this module (see SPEC_FULL.md §1); this package
// is the concrete shape of their output; a stand-in for the collaborator
// so the type checker, escape analyzer, and code generator have
// something real to walk.
package ast

// Span is a source location carried on every node so later passes can
// attach diagnostics without re-deriving position information.
type Span struct {
	File        string
	Line, Col   int
	EndL, EndC  int
}

// Node is implemented by every expression and statement kind. Dispatch
// on concrete type happens via a type switch in each pass, not via a
// method-per-operation interface — the node vocabulary is closed and a
// type switch keeps each pass's logic in one place instead of spreading
// it across N node types.
type Node interface {
	node()
	Pos() Span
}

type base struct {
	Span Span
}

func (base) node()         {}
func (b base) Pos() Span   { return b.Span }

// Expr is any Node that type checking assigns a .Type to.
type Expr interface {
	Node
	exprType() any // set via SetType/Type to avoid importing package types here
}

// typed is embedded by expression nodes; Type is `any` (concretely
// *types.Type) to avoid an import cycle between ast and types — the
// type checker is the only consumer that assigns or reads it, and it
// uses the Typed helpers below to keep the type assertion in one place.
type typed struct {
	base
	Type any
}

func (t typed) exprType() any { return t.Type }

// Typed returns the node's annotated type (nil before type checking).
func Typed(e Expr) any { return e.exprType() }

// SetType is used by the type checker to annotate an expression node in
// place. Node values are stored in Block.Steps as the Expr interface,
// so passes mutate through pointer receivers on the concrete node.
type Settable interface {
	SetType(any)
}

func (t *typed) SetType(v any) { t.Type = v }

// ---- Literals ----

type IntLit struct {
	typed
	Value int64
}

type FloatLit struct {
	typed
	Value float64
}

type StringLit struct {
	typed
	Value string
}

type BoolLit struct {
	typed
	Value bool
}

type NoneLit struct {
	typed
}

// ---- Names & access ----

// Name references a binding introduced earlier in the CFG. Ident is the
// surface name; the type checker resolves it through Block.Origin.
type Name struct {
	typed
	Ident string
}

// Attrib is `Object.Field`.
type Attrib struct {
	typed
	Object Expr
	Field  string
}

// Elem is `Object[Key]`.
type Elem struct {
	typed
	Object Expr
	Key    Expr
}

// ---- Operators ----

type BinOp string

const (
	OpAdd BinOp = "+"
	OpSub BinOp = "-"
	OpMul BinOp = "*"
	OpDiv BinOp = "/"
	OpMod BinOp = "%"
)

type Binary struct {
	typed
	Op          BinOp
	Left, Right Expr
}

type CmpOp string

const (
	CmpEq CmpOp = "=="
	CmpNe CmpOp = "!="
	CmpLt CmpOp = "<"
	CmpLe CmpOp = "<="
	CmpGt CmpOp = ">"
	CmpGe CmpOp = ">="
)

type Compare struct {
	typed
	Op          CmpOp
	Left, Right Expr
}

type BoolOp string

const (
	BoolAnd BoolOp = "and"
	BoolOr  BoolOp = "or"
)

// Bool is short-circuit `and`/`or`. SideEffects is set by the builder
// (out of scope) when either operand may run code with observable
// effects. The code generator does not read it: And/Or lower to
// branch+phi unless the generator is built WithSelectLowering, which
// uses a select (see DESIGN.md for the short-circuit decision).
type Bool struct {
	typed
	Op          BoolOp
	Left, Right Expr
	SideEffects bool
}

type Not struct {
	typed
	X Expr
}

// Is is `x is none`.
type Is struct {
	typed
	X Expr
}

// As is `x as T`. DstName is the surface type name; the checker
// resolves it through the registry.
type As struct {
	typed
	X       Expr
	DstName string
}

// Ternary is `cond ? left : right`.
type Ternary struct {
	typed
	Cond, Left, Right Expr
}

// ---- Calls & construction ----

// Arg is a call argument; Name is set for keyword arguments (rare) and
// empty for positional ones.
type Arg struct {
	Name string
	Expr Expr
}

// Call covers free functions, method calls (Callee is an Attrib), and
// type constructors (Callee is a Name bound to a Type in scope). The
// checker rewrites Kind/Virtual/Fun/Init in place.
type CallKind int

const (
	CallUnresolved CallKind = iota
	CallFunc
	CallMethod
	CallCtor
)

type Call struct {
	typed
	Callee  Expr
	Args    []Arg
	Kind    CallKind
	Virtual bool // set when Callee unwraps to a trait: dispatch via vtable
	Fun     any  // resolved *types.Method or *types.Function, set by checker
	Init    Expr // synthetic Init node prepended for constructor calls
}

// Init is a synthetic allocation-plus-initialization placeholder the
// checker inserts ahead of a constructor call's argument list.
type Init struct {
	typed
	TypeName string
	Escapes  bool // set by the escape analyzer
}

// ---- Statements ----

// Stmt is any Node used as a top-level block step that isn't itself an
// expression value (Assign, Return, Branch, ...). Expr values are also
// valid steps (an expression evaluated for effect).
type Stmt interface {
	Node
	stmt()
}

type stmtBase struct{ base }

func (stmtBase) stmt() {}

// AssignTarget is a Name, Attrib, or Elem.
type Assign struct {
	stmtBase
	Target Expr
	Value  Expr
}

// TupleAssign destructures Value element-wise into Targets.
type TupleAssign struct {
	stmtBase
	Targets []Expr
	Value   Expr
}

type Return struct {
	stmtBase
	Value Expr // nil for bare `return`
}

type Yield struct {
	stmtBase
	Value Expr
}

// Branch is an unconditional jump to Target block id.
type Branch struct {
	stmtBase
	Target int
}

// CondBranch jumps to True or False depending on Cond.
type CondBranch struct {
	stmtBase
	Cond        Expr
	True, False int
}

// Phi picks Left's value if control arrived from PredLeft, else Right's.
type Phi struct {
	typed
	PredLeft   int
	Left       Expr
	PredRight  int
	Right      Expr
}

// LoopSetup desugars the `for x in src` header: it binds a fresh
// generator-context name to src (wrapped in a synthetic __iter__ call
// if src isn't already an iterator).
type LoopSetup struct {
	stmtBase
	CtxName string
	Src     Expr
}

// LoopHeader is the per-iteration `__next__` probe: CtxName's iterator
// yields into ElemName, or control leaves the loop via Exit.
type LoopHeader struct {
	stmtBase
	CtxName  string
	ElemName string
	Body     int
	Exit     int
}
