// Package diag implements the compiler's error-reporting shape (§7 of
// SPEC_FULL.md): every diagnostic carries the source span of the
// offending node plus a human-readable message and a Kind matching one
// of the error families spec.md enumerates. Pass failures are wrapped
// with github.com/pkg/errors so a stack trace survives up to the
// driver even though the Diagnostic's own Span is the primary thing a
// Runa programmer sees.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/runalang/runac/ast"
)

// Kind is one of the error families from spec.md §7.
type Kind int

const (
	KindName Kind = iota
	KindType
	KindOwnership
	KindSignature
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindName:
		return "name"
	case KindType:
		return "type"
	case KindOwnership:
		return "ownership"
	case KindSignature:
		return "signature"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// Diagnostic is a single compiler error with the source span of the
// node that caused it.
type Diagnostic struct {
	Kind    Kind
	Span    ast.Span
	Message string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s error: %s", d.Span.File, d.Span.Line, d.Span.Col, d.Kind, d.Message)
}

// New builds a Diagnostic.
func New(kind Kind, span ast.Span, format string, args ...any) *Diagnostic {
	return &Diagnostic{Kind: kind, Span: span, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Go-level stack trace (via pkg/errors) to a pass
// failure that is not itself source-attributable — an internal
// invariant violation (§7 "Internal" family) rather than a user-facing
// diagnostic against a specific node.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, context)
}

// Internal reports an Internal-kind Diagnostic for invariant violations
// such as an unresolved anyint surviving specialization, or a vtable
// slot mismatch (§7).
func Internal(span ast.Span, format string, args ...any) *Diagnostic {
	return New(KindInternal, span, format, args...)
}

// List collects diagnostics for a pass that may continue past the first
// error within one function scope but halts per function as spec.md §7
// specifies ("halts at first error within a function").
type List struct {
	items []*Diagnostic
}

func (l *List) Add(d *Diagnostic) { l.items = append(l.items, d) }
func (l *List) Empty() bool       { return len(l.items) == 0 }
func (l *List) Items() []*Diagnostic { return l.items }

func (l *List) Error() string {
	if len(l.items) == 0 {
		return ""
	}
	s := l.items[0].Error()
	for _, d := range l.items[1:] {
		s += "\n" + d.Error()
	}
	return s
}
