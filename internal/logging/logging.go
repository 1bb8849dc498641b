// Package logging wraps zap with the small set of structured calls the
// rest of the compiler needs, replacing the teacher's bare log.Printf/
// log.Fatalf call sites one-for-one with fields instead of formatted
// strings (§9 Ambient Stack).
package logging

import "go.uber.org/zap"

var base *zap.Logger

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	base = l
}

// Named returns a child logger scoped to a compiler component, e.g.
// logging.Named("check") for the type checker's own diagnostics.
func Named(component string) *zap.Logger {
	return base.Named(component)
}

// Sync flushes any buffered log entries; call once before process exit.
func Sync() {
	_ = base.Sync()
}
