// Package iris checks and runs programs of a small effect-typed
// expression language. Programs arrive already parsed, as *ast.Program;
// the host supplies the filesystem, network and tools they may use.
package iris

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"iris/internal/ast"
	"iris/internal/checker"
	"iris/internal/evaluator"
	"iris/internal/host"
	"iris/internal/linker"
	"iris/internal/logger"
	"iris/internal/object"
)

type Options struct {
	// Resolver finds imported modules; nil allows no imports.
	Resolver ast.Resolver
	// Entry is the function to run, "main" by default.
	Entry  string
	FS     host.FileSystem
	Net    host.Network
	Tools  host.ToolHost
	HTTP   *http.Client
	Args   []string
	Stdout io.Writer
	Logger *logger.Logger
}

// Check validates p and every module it imports.
func Check(p *ast.Program, resolver ast.Resolver) error {
	return linker.New(resolver, nil).Check(p)
}

// Run checks p, runs its entry function and renders the outcome as one
// line: the value in inspect form, or "<Kind>Error: message".
func Run(ctx context.Context, p *ast.Program, opts Options) string {
	out, err := Execute(ctx, p, opts)
	if err != nil {
		return Describe(err)
	}
	return out.Inspect()
}

// Execute is Run without the rendering. Type errors are *checker.TypeError
// and evaluation failures *evaluator.RuntimeError.
func Execute(ctx context.Context, p *ast.Program, opts Options) (object.Object, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	runID := uuid.NewString()
	log = log.With("run", runID)

	l := linker.New(opts.Resolver, log)
	if err := l.Check(p); err != nil {
		log.Debugf("check failed: %s", err)
		return nil, err
	}

	rt, err := evaluator.NewRuntime(evaluator.Options{
		Entry:    opts.Entry,
		Resolver: l,
		FS:       opts.FS,
		Net:      opts.Net,
		Tools:    opts.Tools,
		HTTP:     opts.HTTP,
		Args:     opts.Args,
		Stdout:   opts.Stdout,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	log.Debugf("running %s", p.Module.Name)
	out, err := rt.Run(ctx, p)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Describe renders an error from Check or Execute the way Run does.
func Describe(err error) string {
	var te *checker.TypeError
	if errors.As(err, &te) {
		return te.Error()
	}
	var re *evaluator.RuntimeError
	if errors.As(err, &re) {
		return re.Error()
	}
	return "RuntimeError: " + err.Error()
}
