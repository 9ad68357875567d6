package checker

import (
	"fmt"

	"iris/internal/ast"
	"iris/internal/effect"
)

// TypeError is the single failure a check reports; checking stops at the
// first one.
type TypeError struct {
	Msg string
	// Err is the cause when the failure was found outside the checker,
	// such as an import cycle.
	Err error
}

func (e *TypeError) Error() string { return "TypeError: " + e.Msg }

func (e *TypeError) Unwrap() error { return e.Err }

func typeErrorf(format string, a ...interface{}) *TypeError {
	return &TypeError{Msg: fmt.Sprintf(format, a...)}
}

// EffectMismatch is raised when a body needs a stronger effect than its
// declaration allows.
func EffectMismatch(what string, inferred, declared effect.Effect) *TypeError {
	return typeErrorf("EffectMismatch: %s: Inferred %s but declared %s", what, inferred, declared)
}

func mismatch(msg string, expected, actual ast.Type) *TypeError {
	return typeErrorf("%s: Expected %s, got %s", msg, expected, actual)
}
