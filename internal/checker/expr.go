package checker

import (
	"strconv"
	"strings"

	"iris/internal/ast"
	"iris/internal/effect"
)

// checkExpr infers the type and effect of e. expected is a hint pushed down
// from the context; it may be nil and is never a substitute for checking.
func (c *Checker) checkExpr(e ast.Expr, env *scope, expected ast.Type) (ast.Type, effect.Effect, error) {
	switch e := e.(type) {
	case *ast.Literal:
		return c.checkLiteral(e, expected), effect.Pure, nil
	case *ast.Var:
		t, err := c.checkVar(e.Name, env)
		return t, effect.Pure, err
	case *ast.Let:
		vt, veff, err := c.checkExpr(e.Value, env, nil)
		if err != nil {
			return nil, veff, err
		}
		bt, beff, err := c.checkExpr(e.Body, env.extend(e.Name, vt), expected)
		return bt, effect.Join(veff, beff), err
	case *ast.If:
		return c.checkIf(e, env, expected)
	case *ast.Match:
		return c.checkMatch(e, env, expected)
	case *ast.Call:
		return c.checkCall(e, env, expected)
	case *ast.Intrinsic:
		return c.checkIntrinsic(e.Op, e.Args, env, expected)
	case *ast.Record:
		return c.checkRecord(e, env, expected)
	case *ast.Tagged:
		return c.checkTagged(e, env, expected)
	case *ast.Tuple:
		return c.checkTuple(e, env, expected)
	case *ast.List:
		return c.checkList(e, env, expected)
	case *ast.Lambda:
		return c.checkLambda(e, env)
	}
	return nil, effect.Pure, typeErrorf("Unsupported expression %T", e)
}

func (c *Checker) checkLiteral(l *ast.Literal, expected ast.Type) ast.Type {
	switch l.Kind {
	case ast.IntLit:
		return ast.I64
	case ast.BoolLit:
		return ast.Bool
	case ast.StrLit:
		return ast.Str
	case ast.NoneLit:
		if expected != nil {
			if _, ok := c.resolve(expected).(*ast.OptionType); ok {
				return expected
			}
		}
		return &ast.OptionType{Inner: ast.I64}
	case ast.NilLit:
		if expected != nil {
			if _, ok := c.resolve(expected).(*ast.ListType); ok {
				return expected
			}
		}
		return &ast.ListType{Inner: ast.I64}
	}
	return nil
}

func (c *Checker) checkVar(name string, env *scope) (ast.Type, error) {
	if t, ok := env.lookup(name); ok {
		return t, nil
	}
	if t, ok := c.constants[name]; ok {
		return t, nil
	}
	if strings.Contains(name, ".") {
		parts := strings.Split(name, ".")
		cur, ok := env.lookup(parts[0])
		if !ok {
			cur, ok = c.constants[parts[0]]
		}
		if ok {
			for i := 1; i < len(parts); i++ {
				switch t := c.resolve(cur).(type) {
				case *ast.TupleType:
					idx, err := strconv.Atoi(parts[i])
					if err != nil {
						return nil, typeErrorf("Tuple index must be number: %s", parts[i])
					}
					if idx < 0 || idx >= len(t.Items) {
						return nil, typeErrorf("Tuple index out of bounds: %d", idx)
					}
					cur = t.Items[idx]
				case *ast.RecordType:
					ft, ok := t.Fields[parts[i]]
					if !ok {
						return nil, typeErrorf("Unknown field %s in record", parts[i])
					}
					cur = ft
				default:
					return nil, typeErrorf("Cannot access field %s of non-record %s", parts[i], strings.Join(parts[:i], "."))
				}
			}
			return cur, nil
		}
	}
	return nil, typeErrorf("Unknown variable: %s", name)
}

func (c *Checker) checkIf(e *ast.If, env *scope, expected ast.Type) (ast.Type, effect.Effect, error) {
	ct, ceff, err := c.checkExpr(e.Cond, env, ast.Bool)
	if err != nil {
		return nil, ceff, err
	}
	if err := c.expect(ast.Bool, ct, "Type Error in If condition"); err != nil {
		return nil, ceff, err
	}
	tt, teff, err := c.checkExpr(e.Then, env, expected)
	if err != nil {
		return nil, teff, err
	}
	hint := expected
	if hint == nil {
		hint = tt
	}
	et, eeff, err := c.checkExpr(e.Else, env, hint)
	if err != nil {
		return nil, eeff, err
	}
	if err := c.expect(tt, et, "If branches mismatch"); err != nil {
		return nil, eeff, err
	}
	return tt, effect.JoinAll(ceff, teff, eeff), nil
}

func (c *Checker) checkMatch(e *ast.Match, env *scope, expected ast.Type) (ast.Type, effect.Effect, error) {
	targetType, eff, err := c.checkExpr(e.Target, env, nil)
	if err != nil {
		return nil, eff, err
	}
	target := c.resolve(targetType)
	switch target.(type) {
	case *ast.OptionType, *ast.ResultType, *ast.ListType, *ast.UnionType:
	default:
		return nil, eff, typeErrorf("Match target must be Option, Result, List, or Union (got %s)", target)
	}
	if len(e.Cases) == 0 {
		return nil, eff, typeErrorf("Match on %s has no cases", target)
	}

	var ret ast.Type
	for _, mc := range e.Cases {
		armEnv, err := c.bindCase(target, mc, env)
		if err != nil {
			return nil, eff, err
		}
		hint := ret
		if hint == nil {
			hint = expected
		}
		bt, beff, err := c.checkExpr(mc.Body, armEnv, hint)
		if err != nil {
			return nil, beff, err
		}
		if ret == nil {
			ret = bt
		} else if err := c.expect(ret, bt, "Match arms mismatch"); err != nil {
			return nil, beff, err
		}
		eff = effect.Join(eff, beff)
	}
	return ret, eff, nil
}

// bindCase validates a case against the target type and returns the arm's
// environment with its binders added.
func (c *Checker) bindCase(target ast.Type, mc *ast.MatchCase, env *scope) (*scope, error) {
	vars := mc.Vars
	if mc.Tag == "_" {
		if len(vars) != 0 {
			return nil, typeErrorf("Wildcard match cannot bind variables")
		}
		return env, nil
	}
	switch t := target.(type) {
	case *ast.OptionType:
		switch mc.Tag {
		case "Some":
			if len(vars) != 1 {
				return nil, typeErrorf("Some case expects 1 variable")
			}
			return env.extend(vars[0], t.Inner), nil
		case "None":
			if len(vars) != 0 {
				return nil, typeErrorf("None case expects 0 variables")
			}
			return env, nil
		}
		return nil, typeErrorf("Unknown option match tag: %s", mc.Tag)
	case *ast.ResultType:
		switch mc.Tag {
		case "Ok", "Err":
			if len(vars) != 1 {
				return nil, typeErrorf("%s case expects 1 variable", mc.Tag)
			}
			if mc.Tag == "Ok" {
				return env.extend(vars[0], t.Ok), nil
			}
			return env.extend(vars[0], t.Err), nil
		}
		return nil, typeErrorf("Unknown result match tag: %s", mc.Tag)
	case *ast.ListType:
		switch mc.Tag {
		case "nil":
			if len(vars) != 0 {
				return nil, typeErrorf("nil case expects 0 variables")
			}
			return env, nil
		case "cons":
			if len(vars) != 2 {
				return nil, typeErrorf("cons case expects 2 variables (head tail)")
			}
			return env.extend(vars[0], t.Inner).extend(vars[1], t), nil
		}
		return nil, typeErrorf("Unknown list match tag: %s", mc.Tag)
	case *ast.UnionType:
		vt, ok := t.Variants[mc.Tag]
		if !ok {
			return nil, typeErrorf("Union %s has no variant %s", t, mc.Tag)
		}
		switch len(vars) {
		case 0:
			return env, nil
		case 1:
			return env.extend(vars[0], vt), nil
		}
		return nil, typeErrorf("Match case %s expects 1 variable (payload binding)", mc.Tag)
	}
	return nil, typeErrorf("Cannot match on %s", target)
}

func (c *Checker) checkCall(e *ast.Call, env *scope, expected ast.Type) (ast.Type, effect.Effect, error) {
	var sig *ast.FnType
	if lt, ok := env.lookup(e.Fn); ok {
		ft, isFn := c.resolve(lt).(*ast.FnType)
		if !isFn {
			return nil, effect.Pure, typeErrorf("%s is not a function (got %s)", e.Fn, lt)
		}
		sig = ft
	} else if ft, ok := c.functions[e.Fn]; ok {
		sig = ft
	} else if ft, ok := c.importedSignature(e.Fn); ok {
		sig = ft
	} else if IsIntrinsic(e.Fn) {
		return c.checkIntrinsic(e.Fn, e.Args, env, expected)
	} else {
		return nil, effect.Pure, typeErrorf("Unknown function call: %s", e.Fn)
	}

	if len(e.Args) != len(sig.Args) {
		return nil, effect.Pure, typeErrorf("Arity mismatch for %s: expected %d arguments, got %d", e.Fn, len(sig.Args), len(e.Args))
	}
	eff := effect.Pure
	for i, arg := range e.Args {
		at, aeff, err := c.checkExpr(arg, env, sig.Args[i])
		if err != nil {
			return nil, aeff, err
		}
		if err := c.expect(sig.Args[i], at, "Argument "+strconv.Itoa(i)+" mismatch"); err != nil {
			return nil, aeff, err
		}
		eff = effect.Join(eff, aeff)
	}
	return sig.Ret, effect.Join(eff, effect.AtCallSite(sig.Eff)), nil
}

func (c *Checker) checkRecord(e *ast.Record, env *scope, expected ast.Type) (ast.Type, effect.Effect, error) {
	var hints map[string]ast.Type
	if expected != nil {
		if rt, ok := c.resolve(expected).(*ast.RecordType); ok {
			hints = rt.Fields
		}
	}
	fields := make(map[string]ast.Type, len(e.Fields))
	eff := effect.Pure
	for _, f := range e.Fields {
		ft, feff, err := c.checkExpr(f.Value, env, hints[f.Key])
		if err != nil {
			return nil, feff, err
		}
		fields[f.Key] = ft
		eff = effect.Join(eff, feff)
	}
	return &ast.RecordType{Fields: fields}, eff, nil
}

func (c *Checker) checkTagged(e *ast.Tagged, env *scope, expected ast.Type) (ast.Type, effect.Effect, error) {
	var resolved, hint ast.Type
	if expected != nil {
		resolved = c.resolve(expected)
		switch t := resolved.(type) {
		case *ast.UnionType:
			hint = t.Variants[e.Tag]
		case *ast.ResultType:
			switch e.Tag {
			case "Ok":
				hint = t.Ok
			case "Err":
				hint = t.Err
			}
		case *ast.OptionType:
			if e.Tag == "Some" {
				hint = t.Inner
			}
		}
	}
	vt, eff, err := c.checkExpr(e.Value, env, hint)
	if err != nil {
		return nil, eff, err
	}
	switch t := resolved.(type) {
	case *ast.UnionType:
		if variant, ok := t.Variants[e.Tag]; ok {
			if err := c.expect(variant, vt, "Variant "+e.Tag+" payload mismatch"); err != nil {
				return nil, eff, err
			}
			return expected, eff, nil
		}
	case *ast.ResultType:
		if e.Tag == "Ok" || e.Tag == "Err" {
			return expected, eff, nil
		}
	case *ast.OptionType:
		if e.Tag == "Some" || e.Tag == "None" {
			return expected, eff, nil
		}
	}
	return &ast.UnionType{Variants: map[string]ast.Type{e.Tag: vt}}, eff, nil
}

func (c *Checker) checkTuple(e *ast.Tuple, env *scope, expected ast.Type) (ast.Type, effect.Effect, error) {
	var hints []ast.Type
	if expected != nil {
		if tt, ok := c.resolve(expected).(*ast.TupleType); ok {
			hints = tt.Items
		}
	}
	items := make([]ast.Type, 0, len(e.Items))
	eff := effect.Pure
	for i, it := range e.Items {
		var hint ast.Type
		if i < len(hints) {
			hint = hints[i]
		}
		t, ieff, err := c.checkExpr(it, env, hint)
		if err != nil {
			return nil, ieff, err
		}
		items = append(items, t)
		eff = effect.Join(eff, ieff)
	}
	return &ast.TupleType{Items: items}, eff, nil
}

func (c *Checker) checkList(e *ast.List, env *scope, expected ast.Type) (ast.Type, effect.Effect, error) {
	var inner ast.Type
	if expected != nil {
		if lt, ok := c.resolve(expected).(*ast.ListType); ok {
			inner = lt.Inner
		}
	}
	if inner == nil && e.TypeArg != nil {
		inner = e.TypeArg
	}
	if len(e.Items) == 0 {
		if inner == nil {
			inner = ast.I64
		}
		return &ast.ListType{Inner: inner}, effect.Pure, nil
	}
	eff := effect.Pure
	for _, it := range e.Items {
		t, ieff, err := c.checkExpr(it, env, inner)
		if err != nil {
			return nil, ieff, err
		}
		if inner == nil {
			inner = t
		} else if err := c.expect(inner, t, "List item type mismatch"); err != nil {
			return nil, ieff, err
		}
		eff = effect.Join(eff, ieff)
	}
	return &ast.ListType{Inner: inner}, eff, nil
}

// checkLambda checks the body against the declared signature. Building the
// closure itself is Pure.
func (c *Checker) checkLambda(e *ast.Lambda, env *scope) (ast.Type, effect.Effect, error) {
	if err := checkArgNames(e.Args); err != nil {
		return nil, effect.Pure, err
	}
	inner := env
	ft := &ast.FnType{Ret: e.Ret, Eff: e.Eff}
	for _, a := range e.Args {
		inner = inner.extend(a.Name, a.Type)
		ft.Args = append(ft.Args, a.Type)
	}
	bt, beff, err := c.checkExpr(e.Body, inner, e.Ret)
	if err != nil {
		return nil, beff, err
	}
	if err := c.expect(e.Ret, bt, "Lambda body type mismatch"); err != nil {
		return nil, beff, err
	}
	if !effect.Accepts(e.Eff, beff) {
		return nil, beff, EffectMismatch("Lambda", beff, e.Eff)
	}
	return ft, effect.Pure, nil
}
