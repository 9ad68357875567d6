package evaluator

import (
	"iris/internal/ast"
	"iris/internal/object"
)

// walker is one of the two evaluation strategies. Sub-expressions are
// evaluated with the strategy of the enclosing function.
type walker func(t *task, e ast.Expr, env *object.Environment) (object.Object, error)

// eval is the suspending strategy: a plain recursive walk. It is used for
// functions whose effect may reach a suspension point, so every native
// frame may block on the scheduler.
func (in *Interpreter) eval(t *task, e ast.Expr, env *object.Environment) (object.Object, error) {
	if err := t.enter(); err != nil {
		return nil, err
	}
	defer t.leave()

	switch node := e.(type) {
	case *ast.Let:
		val, err := in.eval(t, node.Value, env)
		if err != nil {
			return nil, err
		}
		return in.eval(t, node.Body, env.Extend(node.Name, val))

	case *ast.If:
		branch, err := in.branch(t, node, env, in.eval)
		if err != nil {
			return nil, err
		}
		return in.eval(t, branch, env)

	case *ast.Match:
		target, err := in.eval(t, node.Target, env)
		if err != nil {
			return nil, err
		}
		body, bound, err := matchCase(node, target, env)
		if err != nil {
			return nil, err
		}
		return in.eval(t, body, bound)

	case *ast.Call:
		args, err := in.evalAll(t, node.Args, env, in.eval)
		if err != nil {
			return nil, err
		}
		c, err := in.resolveCall(t, node.Fn, env)
		if err != nil {
			return nil, err
		}
		return c.apply(t, args)
	}
	return in.evalLeaf(t, e, env, in.eval)
}

// evalLeaf evaluates the node kinds without a tail position.
func (in *Interpreter) evalLeaf(t *task, e ast.Expr, env *object.Environment, walk walker) (object.Object, error) {
	switch node := e.(type) {
	case *ast.Literal:
		return literal(node), nil

	case *ast.Var:
		return in.lookup(node.Name, env)

	case *ast.Intrinsic:
		args, err := in.evalAll(t, node.Args, env, walk)
		if err != nil {
			return nil, err
		}
		return in.intrinsic(t, node.Op, args)

	case *ast.Record:
		fields := make(map[string]object.Object, len(node.Fields))
		for _, f := range node.Fields {
			v, err := walk(t, f.Value, env)
			if err != nil {
				return nil, err
			}
			fields[f.Key] = v
		}
		return &object.Record{Fields: fields}, nil

	case *ast.Tuple:
		items, err := in.evalAll(t, node.Items, env, walk)
		if err != nil {
			return nil, err
		}
		return &object.Tuple{Items: items}, nil

	case *ast.List:
		items, err := in.evalAll(t, node.Items, env, walk)
		if err != nil {
			return nil, err
		}
		return object.NewList(items...), nil

	case *ast.Tagged:
		if node.Value == nil {
			return &object.Tagged{Tag: node.Tag, Value: object.UNIT}, nil
		}
		v, err := walk(t, node.Value, env)
		if err != nil {
			return nil, err
		}
		return &object.Tagged{Tag: node.Tag, Value: v}, nil

	case *ast.Lambda:
		return &object.Lambda{Args: node.Args, Ret: node.Ret, Eff: node.Eff, Body: node.Body, Env: env}, nil
	}
	return nil, newError("Cannot evaluate %T", e)
}

// evalAll evaluates exprs left to right.
func (in *Interpreter) evalAll(t *task, exprs []ast.Expr, env *object.Environment, walk walker) ([]object.Object, error) {
	out := make([]object.Object, len(exprs))
	for i, e := range exprs {
		v, err := walk(t, e, env)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (in *Interpreter) branch(t *task, node *ast.If, env *object.Environment, walk walker) (ast.Expr, error) {
	cond, err := walk(t, node.Cond, env)
	if err != nil {
		return nil, err
	}
	b, ok := cond.(*object.Boolean)
	if !ok {
		return nil, newError("If condition must be Bool, got %s", cond.Type())
	}
	if b.Value {
		return node.Then, nil
	}
	return node.Else, nil
}

func literal(l *ast.Literal) object.Object {
	switch l.Kind {
	case ast.IntLit:
		return &object.I64{Value: l.Int}
	case ast.BoolLit:
		return object.NativeBool(l.Bool)
	case ast.StrLit:
		return object.NewString(l.Str)
	case ast.NilLit:
		return object.EMPTY_LIST
	}
	return object.NONE
}

// matchCase picks the first case whose pattern fits target, in declaration
// order, and returns its body with the binders added to env.
func matchCase(m *ast.Match, target object.Object, env *object.Environment) (ast.Expr, *object.Environment, error) {
	for _, c := range m.Cases {
		if c.Tag == "_" {
			return c.Body, env, nil
		}
		if bound, ok := bindPattern(c, target, env); ok {
			return c.Body, bound, nil
		}
	}
	return nil, nil, newError("No matching case for value %s", target.Inspect())
}

func bindPattern(c *ast.MatchCase, target object.Object, env *object.Environment) (*object.Environment, bool) {
	switch v := target.(type) {
	case *object.Option:
		switch {
		case c.Tag == "None" && !v.IsSome():
			return env, true
		case c.Tag == "Some" && v.IsSome():
			return bindFirst(c.Vars, v.Value, env), true
		}
		return nil, false

	case *object.Result:
		if (c.Tag == "Ok" && v.Ok) || (c.Tag == "Err" && !v.Ok) {
			return bindFirst(c.Vars, v.Value, env), true
		}
		return nil, false

	case *object.List:
		switch {
		case c.Tag == "nil" && v.IsEmpty():
			return env, true
		case c.Tag == "cons" && !v.IsEmpty():
			if len(c.Vars) >= 1 {
				env = env.Extend(c.Vars[0], v.Head())
			}
			if len(c.Vars) >= 2 {
				env = env.Extend(c.Vars[1], v.Tail())
			}
			return env, true
		}
		return nil, false

	case *object.Tuple:
		tagged, ok := object.AsTagged(v)
		if !ok || tagged.Tag != c.Tag {
			return nil, false
		}
		// The (tag, a, b) spelling binds its items positionally.
		if len(c.Vars) > 1 {
			for i, name := range c.Vars {
				if i+1 < len(v.Items) {
					env = env.Extend(name, v.Items[i+1])
				}
			}
			return env, true
		}
		return bindFirst(c.Vars, tagged.Value, env), true

	case *object.Tagged:
		if v.Tag != c.Tag {
			return nil, false
		}
		return bindFirst(c.Vars, v.Value, env), true
	}
	return nil, false
}

func bindFirst(vars []string, v object.Object, env *object.Environment) *object.Environment {
	if len(vars) == 0 || v == nil {
		return env
	}
	return env.Extend(vars[0], v)
}
