// Package linker connects a program to the modules it imports: it finds
// import cycles, enforces version constraints and checks every module once.
package linker

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/singleflight"

	"iris/internal/ast"
	"iris/internal/checker"
	"iris/internal/logger"
)

// CycleError lists the import paths of a cycle, first path repeated last.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return "Circular import detected: " + strings.Join(e.Cycle, " -> ")
}

// ModuleError places a failure inside the imported module at Path.
type ModuleError struct {
	Path string
	Err  error
}

func (e *ModuleError) Error() string { return "In module '" + e.Path + "': " + message(e.Err) }

func (e *ModuleError) Unwrap() error { return e.Err }

// message drops the kind prefix so nested type errors read as one line.
func message(err error) string {
	if te, ok := err.(*checker.TypeError); ok {
		return te.Msg
	}
	return err.Error()
}

func typeError(err error) error {
	if err == nil {
		return nil
	}
	if te, ok := err.(*checker.TypeError); ok {
		return te
	}
	return &checker.TypeError{Msg: message(err), Err: err}
}

// Linker resolves imports for the checker and the evaluator alike. It is
// safe for concurrent use; each module is checked at most once.
type Linker struct {
	resolver ast.Resolver
	log      *logger.Logger

	group   singleflight.Group
	mu      sync.Mutex
	checked map[string]error
}

func New(resolver ast.Resolver, log *logger.Logger) *Linker {
	if log == nil {
		log = logger.Default()
	}
	return &Linker{resolver: resolver, log: log, checked: make(map[string]error)}
}

func (l *Linker) Resolve(path string) (*ast.Program, bool) {
	if l.resolver == nil {
		return nil, false
	}
	return l.resolver.Resolve(path)
}

// Check validates p together with everything it imports. Any failure is
// returned as a *checker.TypeError.
func (l *Linker) Check(p *ast.Program) error {
	roots := make([]string, len(p.Imports))
	for i, imp := range p.Imports {
		roots[i] = imp.Path
	}
	if err := l.detectCycles(roots); err != nil {
		return typeError(err)
	}
	return typeError(l.check(p))
}

// Load returns the checked module at path.
func (l *Linker) Load(path string) (*ast.Program, error) {
	if err := l.detectCycles([]string{path}); err != nil {
		return nil, typeError(err)
	}
	mod, err := l.load(path)
	return mod, typeError(err)
}

func (l *Linker) check(p *ast.Program) error {
	for _, imp := range p.Imports {
		mod, err := l.load(imp.Path)
		if err != nil {
			return err
		}
		if err := checkVersion(imp, mod); err != nil {
			return err
		}
	}
	return checker.New(l).Check(p)
}

// load must only run on acyclic import graphs: a cycle would re-enter the
// singleflight call for the same key and wait on itself.
func (l *Linker) load(path string) (*ast.Program, error) {
	mod, ok := l.Resolve(path)
	if !ok {
		return nil, fmt.Errorf("Module not found: %s", path)
	}
	if err, done := l.result(path); done {
		return mod, err
	}

	_, err, _ := l.group.Do(path, func() (interface{}, error) {
		// A call that finished since the first lookup already stored a result.
		if err, done := l.result(path); done {
			return nil, err
		}
		err := l.check(mod)
		if err != nil {
			err = &ModuleError{Path: path, Err: err}
		} else {
			l.log.Debugf("linked module %s (%s v%s)", path, mod.Module.Name, mod.Module.Version)
		}
		l.mu.Lock()
		l.checked[path] = err
		l.mu.Unlock()
		return nil, err
	})
	return mod, err
}

func (l *Linker) result(path string) (error, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	err, done := l.checked[path]
	return err, done
}

// detectCycles walks imports depth first from roots. A cycle is reported
// from the module where it closes, wrapped once per enclosing module.
func (l *Linker) detectCycles(roots []string) error {
	visited := make(map[string]bool)
	var stack []string

	var visit func(path string) error
	visit = func(path string) error {
		if i := slices.Index(stack, path); i >= 0 {
			return &CycleError{Cycle: append(slices.Clone(stack[i:]), path)}
		}
		if visited[path] {
			return nil
		}
		visited[path] = true
		stack = append(stack, path)
		if mod, ok := l.Resolve(path); ok {
			for _, imp := range mod.Imports {
				if err := visit(imp.Path); err != nil {
					return &ModuleError{Path: path, Err: err}
				}
			}
		}
		stack = stack[:len(stack)-1]
		return nil
	}

	for _, root := range roots {
		if err := visit(root); err != nil {
			return err
		}
	}
	return nil
}

func checkVersion(imp *ast.Import, mod *ast.Program) error {
	if imp.Version == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(imp.Version)
	if err != nil {
		return fmt.Errorf("Invalid version constraint %q for import %s", imp.Version, imp.Path)
	}
	v, err := semver.NewVersion(mod.Module.Version)
	if err != nil {
		return fmt.Errorf("Module %s has invalid version %q", imp.Path, mod.Module.Version)
	}
	if !constraint.Check(v) {
		return errors.New("Module " + imp.Path + " version " + mod.Module.Version + " does not satisfy " + imp.Version)
	}
	return nil
}
