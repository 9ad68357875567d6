package evaluator

import (
	"strconv"
	"strings"

	"iris/internal/ast"
	"iris/internal/effect"
	"iris/internal/object"
)

// Interpreter evaluates one program on behalf of one process. The program
// is shared; the constants cache is not.
type Interpreter struct {
	rt        *Runtime
	program   *ast.Program
	path      string
	functions map[string]ast.Definition
	constants map[string]object.Object
}

// NewInterpreter prepares p for evaluation. path is the import path the
// program was linked under, or its module name for the main program.
func (rt *Runtime) NewInterpreter(p *ast.Program, path string) *Interpreter {
	in := &Interpreter{
		rt:        rt,
		program:   p,
		path:      path,
		functions: make(map[string]ast.Definition),
	}
	for _, def := range p.Defs {
		switch d := def.(type) {
		case *ast.DefFn, *ast.DefTool:
			in.functions[d.DefName()] = d
		}
	}
	return in
}

func (in *Interpreter) evalMain(t *task) (object.Object, error) {
	entry := in.rt.opts.Entry
	def, ok := in.functions[entry]
	if !ok {
		return nil, newError("No %s function defined", entry)
	}
	fn, ok := def.(*ast.DefFn)
	if !ok {
		return nil, newError("%s must be a function", entry)
	}
	if err := in.ensureConstants(t); err != nil {
		return nil, err
	}
	return in.run(t, fn.Eff, fn.Body, nil)
}

// CallFunction applies the function or tool name to already evaluated
// arguments.
func (in *Interpreter) CallFunction(t *task, name string, args []object.Object) (object.Object, error) {
	if err := in.ensureConstants(t); err != nil {
		return nil, err
	}
	def, ok := in.functions[name]
	if !ok {
		return nil, newError("Unknown function: %s", name)
	}
	return in.callee(name, def).apply(t, args)
}

// run picks the strategy the effect asks for.
func (in *Interpreter) run(t *task, eff effect.Effect, body ast.Expr, env *object.Environment) (object.Object, error) {
	if eff.Suspends() {
		return in.eval(t, body, env)
	}
	return in.evalTrampoline(t, body, env)
}

// ensureConstants evaluates every DefConst once, in declaration order.
// Constants are Pure, so the trampoline is always safe here.
func (in *Interpreter) ensureConstants(t *task) error {
	if in.constants != nil {
		return nil
	}
	in.constants = make(map[string]object.Object)
	for _, def := range in.program.Defs {
		c, ok := def.(*ast.DefConst)
		if !ok {
			continue
		}
		v, err := in.evalTrampoline(t, c.Value, nil)
		if err != nil {
			return err
		}
		in.constants[c.Name] = v
	}
	return nil
}

// lookup resolves a variable: the environment, then constants, then a
// dotted path through records and tuples.
func (in *Interpreter) lookup(name string, env *object.Environment) (object.Object, error) {
	if v, ok := env.Get(name); ok {
		return v, nil
	}
	if v, ok := in.constants[name]; ok {
		return v, nil
	}
	if !strings.Contains(name, ".") {
		return nil, newError("Unknown variable: %s", name)
	}

	parts := strings.Split(name, ".")
	cur, ok := env.Get(parts[0])
	if !ok {
		cur, ok = in.constants[parts[0]]
	}
	if !ok {
		return nil, newError("Unknown variable: %s", name)
	}
	for _, part := range parts[1:] {
		next, err := field(cur, part)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func field(v object.Object, part string) (object.Object, error) {
	switch v := v.(type) {
	case *object.Record:
		f, ok := v.Fields[part]
		if !ok {
			return nil, newError("Unknown field %s", part)
		}
		return f, nil
	case *object.Tuple:
		idx, err := strconv.Atoi(part)
		if err != nil {
			return nil, newError("Tuple index must be number, got %s", part)
		}
		if idx < 0 || idx >= len(v.Items) {
			return nil, newError("Tuple index out of bounds: %d", idx)
		}
		return v.Items[idx], nil
	}
	return nil, newError("Cannot access field %s of %s", part, v.Type())
}

// callee is what a call site resolved to.
type callee struct {
	name      string
	owner     *Interpreter
	fn        *ast.DefFn
	tool      *ast.DefTool
	lambda    *object.Lambda
	intrinsic bool
}

// resolveCall finds the target of a call: a lambda bound locally, a
// function of this program, an alias.fn export of an import, or an
// intrinsic in call position.
func (in *Interpreter) resolveCall(t *task, name string, env *object.Environment) (*callee, error) {
	if v, ok := env.Get(name); ok {
		l, isLambda := v.(*object.Lambda)
		if !isLambda {
			return nil, newError("%s is not a function (got %s)", name, v.Type())
		}
		return &callee{name: name, owner: in, lambda: l}, nil
	}
	if def, ok := in.functions[name]; ok {
		return in.callee(name, def), nil
	}
	if alias, fname, ok := strings.Cut(name, "."); ok {
		if imp, ok := in.program.Import(alias); ok {
			if sib, ok := in.rt.sibling(t.pid, imp.Path); ok {
				def, ok := sib.functions[fname]
				if !ok {
					return nil, newError("Unknown function: %s", name)
				}
				if err := sib.ensureConstants(t); err != nil {
					return nil, err
				}
				return sib.callee(fname, def), nil
			}
		}
	}
	if _, ok := intrinsics[name]; ok {
		return &callee{name: name, owner: in, intrinsic: true}, nil
	}
	return nil, newError("Unknown function: %s", name)
}

func (in *Interpreter) callee(name string, def ast.Definition) *callee {
	c := &callee{name: name, owner: in}
	switch d := def.(type) {
	case *ast.DefFn:
		c.fn = d
	case *ast.DefTool:
		c.tool = d
	}
	return c
}

// bind binds args to the parameters of a function or lambda callee and
// returns the body to continue with.
func (c *callee) bind(args []object.Object) (ast.Expr, *object.Environment, effect.Effect, error) {
	var params []*ast.Arg
	var env *object.Environment
	var body ast.Expr
	var eff effect.Effect
	if c.lambda != nil {
		params, env, body, eff = c.lambda.Args, c.lambda.Env, c.lambda.Body, c.lambda.Eff
	} else {
		params, body, eff = c.fn.Args, c.fn.Body, c.fn.Eff
	}
	if len(args) != len(params) {
		return nil, nil, eff, newError("Arity mismatch for %s: expected %d arguments, got %d", c.name, len(params), len(args))
	}
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return body, env.Bind(names, args), eff, nil
}

// apply runs the callee to completion.
func (c *callee) apply(t *task, args []object.Object) (object.Object, error) {
	switch {
	case c.intrinsic:
		return c.owner.intrinsic(t, c.name, args)
	case c.tool != nil:
		return c.owner.callTool(t, c.tool, args)
	}
	body, env, eff, err := c.bind(args)
	if err != nil {
		return nil, err
	}
	return c.owner.run(t, eff, body, env)
}
