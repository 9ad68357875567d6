package evaluator

import (
	"context"
	"fmt"

	"iris/internal/process"
)

// RuntimeError aborts the call chain it is raised in. Only the boundary of
// a spawned process absorbs it.
type RuntimeError struct {
	Msg string
}

func (e *RuntimeError) Error() string { return "RuntimeError: " + e.Msg }

func newError(format string, a ...interface{}) *RuntimeError {
	return &RuntimeError{Msg: fmt.Sprintf(format, a...)}
}

// MaxDepth bounds non-tail recursion of a single process.
const MaxDepth = 10000

// task is the per-process state that travels with every evaluation step:
// who is running and how deep the host stack is.
type task struct {
	rt    *Runtime
	pid   process.Pid
	depth int
}

func (t *task) ctx() context.Context { return t.rt.ctx }

func (t *task) enter() error {
	t.depth++
	if t.depth > MaxDepth {
		t.depth--
		return newError("Maximum recursion depth exceeded (%d)", MaxDepth)
	}
	return nil
}

func (t *task) leave() {
	t.depth--
}
