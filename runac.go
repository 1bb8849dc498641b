// Package runac is the Runa compiler core: type registry, type
// checker, numeric specializer, escape analyzer, and LLIR code
// generator, wired into one Compile call per Module. See SPEC_FULL.md.
package runac

import (
	"context"
	"sort"

	"github.com/llir/llvm/ir"
	"github.com/runalang/runac/ast"
	"github.com/runalang/runac/check"
	"github.com/runalang/runac/codegen/llir"
	"github.com/runalang/runac/escape"
	"github.com/runalang/runac/internal/diag"
	"github.com/runalang/runac/internal/logging"
	"github.com/runalang/runac/specialize"
	"github.com/runalang/runac/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// optFunc configures a Compiler; named after the teacher's benc.go
// optFunc/Opts pattern (see DESIGN.md).
type optFunc func(*Opts)

// Opts holds compilation-wide settings independent of any one Module.
type Opts struct {
	genOpts          []llir.OptFunc
	escapeIterations int
}

func defaultOpts() Opts {
	return Opts{escapeIterations: escape.MaxIterations}
}

// WithTargetTriple overrides the host-detected LLVM target triple.
func WithTargetTriple(triple string) optFunc {
	return func(o *Opts) { o.genOpts = append(o.genOpts, llir.WithTargetTriple(triple)) }
}

// WithSelectLowering reproduces the §9 Open Question's original eager
// select-based lowering of and/or instead of branch+phi.
func WithSelectLowering() optFunc {
	return func(o *Opts) { o.genOpts = append(o.genOpts, llir.WithSelectLowering()) }
}

// Compiler runs the full pipeline — registry, check, specialize,
// escape, codegen — against one Module at a time, holding only
// immutable cross-call settings (never per-Module state, so the same
// Compiler value is safe to share across goroutines in CompileAll).
type Compiler struct {
	opts Opts
	log  *zap.SugaredLogger
}

// New builds a Compiler.
func New(opts ...optFunc) *Compiler {
	o := defaultOpts()
	for _, fn := range opts {
		fn(&o)
	}
	return &Compiler{opts: o, log: logging.Named("runac").Sugar()}
}

// Compile runs registry construction, type checking, numeric
// specialization, escape analysis, and code generation against mod,
// returning the built LLVM module or the diagnostics that stopped it.
func (c *Compiler) Compile(mod *ast.Module) (*ir.Module, *diag.List) {
	c.log.Infow("compiling module", "module", mod.Name)

	reg := types.NewRegistry()
	if err := registerTypes(mod, reg); err != nil {
		list := &diag.List{}
		list.Add(diag.Internal(ast.Span{}, "%v", err))
		return nil, list
	}

	c.log.Debugw("type checking", "module", mod.Name, "pass", "check")
	checker := check.NewChecker(mod, reg)
	if diags := checker.CheckAll(); !diags.Empty() {
		c.log.Warnw("type checking failed", "module", mod.Name, "diagnostics", len(diags.Items()))
		return nil, diags
	}

	c.log.Debugw("specializing numeric literals", "module", mod.Name, "pass", "specialize")
	spec := specialize.New(reg)
	if diags := spec.Run(mod.AllFunctions()); !diags.Empty() {
		c.log.Warnw("specialization failed", "module", mod.Name, "diagnostics", len(diags.Items()))
		return nil, diags
	}

	c.log.Debugw("running escape analysis", "module", mod.Name, "pass", "escape")
	escape.Analyze(mod.AllFunctions())

	c.log.Debugw("generating LLIR", "module", mod.Name, "pass", "codegen")
	gen := llir.New(mod, reg, c.opts.genOpts...)
	out, err := gen.Generate()
	if err != nil {
		if list, ok := err.(*diag.List); ok {
			return nil, list
		}
		list := &diag.List{}
		list.Add(diag.Internal(ast.Span{}, "%v", err))
		return nil, list
	}
	c.log.Infow("compiled module", "module", mod.Name, "functions", len(mod.AllFunctions()))
	return out, nil
}

// CheckOnly runs registry construction, type checking, numeric
// specialization, and escape analysis against mod — every pass except
// code generation — mutating mod's AST in place (types, resolved calls,
// escape decisions) the same way Compile does. It exists for consumers
// that only need the typed, analyzed tree and never touch the emitted
// LLIR, such as package harness's scenario interpreter.
func (c *Compiler) CheckOnly(mod *ast.Module) *diag.List {
	reg := types.NewRegistry()
	if err := registerTypes(mod, reg); err != nil {
		list := &diag.List{}
		list.Add(diag.Internal(ast.Span{}, "%v", err))
		return list
	}

	checker := check.NewChecker(mod, reg)
	if diags := checker.CheckAll(); !diags.Empty() {
		return diags
	}

	spec := specialize.New(reg)
	if diags := spec.Run(mod.AllFunctions()); !diags.Empty() {
		return diags
	}

	escape.Analyze(mod.AllFunctions())
	return &diag.List{}
}

// registerTypes runs the registry's two-phase Add-then-Fill over every
// struct/trait declaration so forward/recursive references resolve
// (§9 "cyclic AST/type graphs").
func registerTypes(mod *ast.Module, reg *types.Registry) error {
	for _, name := range typeNamesInDeclOrder(mod) {
		reg.Add(mod.Types[name])
	}
	for _, name := range typeNamesInDeclOrder(mod) {
		decl := mod.Types[name]
		if err := reg.Fill(decl, reg.Resolve); err != nil {
			return err
		}
	}
	return nil
}

// typeNamesInDeclOrder returns mod.Types' keys in a stable order.
// Add/Fill only require that every name is added before any is filled,
// not a particular order among themselves (forward and cyclic
// references both resolve against the placeholder each Add call
// leaves behind) — sorting just keeps diagnostics and registration
// order reproducible across runs instead of following map iteration.
func typeNamesInDeclOrder(mod *ast.Module) []string {
	names := make([]string, 0, len(mod.Types))
	for name := range mod.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Result pairs one Module's compiled output with the Module itself, for
// CompileAll's caller to tell results apart.
type Result struct {
	Module *ast.Module
	Out    *ir.Module
	Diags  *diag.List
}

// CompileAll compiles every Module in mods concurrently, each against
// its own fresh Registry (registries are never shared across Modules —
// §5 "the type registry is per-compilation"), stopping the whole batch
// only if ctx is canceled; a single Module's diagnostics do not abort
// its siblings.
func (c *Compiler) CompileAll(ctx context.Context, mods []*ast.Module) ([]Result, error) {
	results := make([]Result, len(mods))
	g, gctx := errgroup.WithContext(ctx)
	for i, mod := range mods {
		i, mod := i, mod
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, diags := c.Compile(mod)
			results[i] = Result{Module: mod, Out: out, Diags: diags}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
