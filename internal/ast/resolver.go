package ast

// Resolver maps an import path to its parsed program. Resolution failures
// report ok=false; the caller decides whether that is an error.
type Resolver interface {
	Resolve(path string) (*Program, bool)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(path string) (*Program, bool)

func (f ResolverFunc) Resolve(path string) (*Program, bool) { return f(path) }

// MapResolver resolves from an in-memory table of programs.
type MapResolver map[string]*Program

func (m MapResolver) Resolve(path string) (*Program, bool) {
	p, ok := m[path]
	return p, ok
}
