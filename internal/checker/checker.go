package checker

import (
	"strings"

	"iris/internal/ast"
	"iris/internal/effect"
)

// scope is the checker's immutable local type environment.
type scope struct {
	name  string
	t     ast.Type
	outer *scope
}

func (s *scope) extend(name string, t ast.Type) *scope {
	return &scope{name: name, t: t, outer: s}
}

func (s *scope) lookup(name string) (ast.Type, bool) {
	for cur := s; cur != nil; cur = cur.outer {
		if cur.name == name {
			return cur.t, true
		}
	}
	return nil, false
}

// Checker validates one program against its declared types and effects.
type Checker struct {
	functions map[string]*ast.FnType
	constants map[string]ast.Type
	types     map[string]ast.Type
	program   *ast.Program
	resolver  ast.Resolver
	assuming  map[[2]string]bool
}

// New returns a checker that resolves imports through resolver, which may
// be nil for programs without imports.
func New(resolver ast.Resolver) *Checker {
	return &Checker{resolver: resolver}
}

// Check validates p and returns the first *TypeError found.
func (c *Checker) Check(p *ast.Program) error {
	c.program = p
	c.functions = make(map[string]*ast.FnType)
	c.constants = make(map[string]ast.Type)
	c.types = make(map[string]ast.Type)
	c.assuming = make(map[[2]string]bool)

	c.registerImportedTypes()

	for _, def := range p.Defs {
		switch d := def.(type) {
		case *ast.DefConst:
			c.constants[d.Name] = d.Type
		case *ast.DefFn:
			if err := checkArgNames(d.Args); err != nil {
				return err
			}
			c.functions[d.Name], _ = ast.FnSignature(d)
		case *ast.DefTool:
			if err := checkArgNames(d.Args); err != nil {
				return err
			}
			c.functions[d.Name], _ = ast.FnSignature(d)
		case *ast.TypeDef:
			c.types[d.Name] = d.Type
		}
	}
	if err := c.checkAliasCycles(); err != nil {
		return err
	}

	for _, def := range p.Defs {
		switch d := def.(type) {
		case *ast.DefConst:
			t, eff, err := c.checkExpr(d.Value, nil, d.Type)
			if err != nil {
				return err
			}
			if err := c.expect(d.Type, t, "Constant "+d.Name+" type mismatch"); err != nil {
				return err
			}
			if !effect.Accepts(effect.Pure, eff) {
				return EffectMismatch("Constant "+d.Name+" must be Pure", eff, effect.Pure)
			}
		case *ast.DefFn:
			if err := c.checkFn(d); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkArgNames(args []*ast.Arg) error {
	seen := make(map[string]bool, len(args))
	for _, a := range args {
		if seen[a.Name] {
			return typeErrorf("Duplicate argument name: %s", a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

func (c *Checker) checkFn(d *ast.DefFn) error {
	var env *scope
	for _, a := range d.Args {
		env = env.extend(a.Name, a.Type)
	}
	bodyType, bodyEff, err := c.checkExpr(d.Body, env, d.Ret)
	if err != nil {
		return err
	}
	if err := c.expect(d.Ret, bodyType, "Function "+d.Name+" return type mismatch"); err != nil {
		return err
	}
	if d.Eff == effect.Infer {
		sig := *c.functions[d.Name]
		sig.Eff = bodyEff
		c.functions[d.Name] = &sig
		return nil
	}
	if !effect.Accepts(d.Eff, bodyEff) {
		return EffectMismatch("Function "+d.Name, bodyEff, d.Eff)
	}
	return nil
}

// registerImportedTypes makes every TypeDef of an imported module visible
// as alias.Name.
func (c *Checker) registerImportedTypes() {
	if c.resolver == nil {
		return
	}
	for _, imp := range c.program.Imports {
		mod, ok := c.resolver.Resolve(imp.Path)
		if !ok {
			continue
		}
		exported := mod.TypeNames()
		for _, def := range mod.Defs {
			if td, ok := def.(*ast.TypeDef); ok {
				c.types[imp.Alias+"."+td.Name] = qualifyType(td.Type, imp.Alias, exported)
			}
		}
	}
}

// importedSignature resolves "alias.fn" to the qualified signature of a
// function or tool in an imported module.
func (c *Checker) importedSignature(name string) (*ast.FnType, bool) {
	alias, fname, ok := splitQualified(name)
	if !ok || c.resolver == nil {
		return nil, false
	}
	imp, ok := c.program.Import(alias)
	if !ok {
		return nil, false
	}
	mod, ok := c.resolver.Resolve(imp.Path)
	if !ok {
		return nil, false
	}
	def, ok := mod.Callable(fname)
	if !ok {
		return nil, false
	}
	sig, _ := ast.FnSignature(def)
	exported := mod.TypeNames()
	q := &ast.FnType{Ret: qualifyType(sig.Ret, alias, exported), Eff: sig.Eff}
	for _, a := range sig.Args {
		q.Args = append(q.Args, qualifyType(a, alias, exported))
	}
	return q, true
}

func splitQualified(name string) (string, string, bool) {
	alias, fname, ok := strings.Cut(name, ".")
	return alias, fname, ok && alias != "" && fname != ""
}
