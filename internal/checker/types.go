package checker

import (
	"strings"

	"iris/internal/ast"
)

// resolve unwraps top-level named types through the alias table. Alias
// chains are validated for cycles when they are registered, so this loop
// terminates.
func (c *Checker) resolve(t ast.Type) ast.Type {
	for {
		n, ok := t.(*ast.NamedType)
		if !ok {
			return t
		}
		target, ok := c.types[n.Name]
		if !ok {
			return t
		}
		t = target
	}
}

// checkAliasCycles rejects aliases whose Named chain loops back on itself.
func (c *Checker) checkAliasCycles() error {
	for _, name := range ast.SortedKeys(c.types) {
		seen := map[string]bool{name: true}
		path := []string{name}
		t := c.types[name]
		for {
			n, ok := t.(*ast.NamedType)
			if !ok {
				break
			}
			if seen[n.Name] {
				path = append(path, n.Name)
				return typeErrorf("Cyclic type alias: %s", strings.Join(path, " -> "))
			}
			target, ok := c.types[n.Name]
			if !ok {
				break
			}
			seen[n.Name] = true
			path = append(path, n.Name)
			t = target
		}
	}
	return nil
}

// typesEqual is structural equality after alias resolution. A union also
// accepts a one-item tuple, or a (Str, payload) tuple, whose payload
// matches one of its variants.
func (c *Checker) typesEqual(t1, t2 ast.Type) bool {
	if t1 == nil || t2 == nil {
		return false
	}
	// Recursive aliases are compared coinductively: a pair of names already
	// under comparison is assumed equal.
	n1, named1 := t1.(*ast.NamedType)
	n2, named2 := t2.(*ast.NamedType)
	if named1 && named2 {
		pair := [2]string{n1.Name, n2.Name}
		if c.assuming[pair] {
			return true
		}
		c.assuming[pair] = true
		defer delete(c.assuming, pair)
	}
	t1 = c.resolve(t1)
	t2 = c.resolve(t2)
	if t1 == t2 {
		return true
	}

	switch a := t1.(type) {
	case *ast.I64Type:
		_, ok := t2.(*ast.I64Type)
		return ok
	case *ast.BoolType:
		_, ok := t2.(*ast.BoolType)
		return ok
	case *ast.StrType:
		_, ok := t2.(*ast.StrType)
		return ok
	case *ast.NamedType:
		b, ok := t2.(*ast.NamedType)
		return ok && a.Name == b.Name
	case *ast.OptionType:
		b, ok := t2.(*ast.OptionType)
		return ok && c.typesEqual(a.Inner, b.Inner)
	case *ast.ResultType:
		b, ok := t2.(*ast.ResultType)
		return ok && c.typesEqual(a.Ok, b.Ok) && c.typesEqual(a.Err, b.Err)
	case *ast.ListType:
		b, ok := t2.(*ast.ListType)
		return ok && c.typesEqual(a.Inner, b.Inner)
	case *ast.MapType:
		b, ok := t2.(*ast.MapType)
		return ok && c.typesEqual(a.Key, b.Key) && c.typesEqual(a.Value, b.Value)
	case *ast.TupleType:
		if u, ok := t2.(*ast.UnionType); ok {
			return c.unionAcceptsTuple(u, a)
		}
		b, ok := t2.(*ast.TupleType)
		if !ok || len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !c.typesEqual(a.Items[i], b.Items[i]) {
				return false
			}
		}
		return true
	case *ast.RecordType:
		b, ok := t2.(*ast.RecordType)
		return ok && c.tablesEqual(a.Fields, b.Fields)
	case *ast.UnionType:
		switch b := t2.(type) {
		case *ast.UnionType:
			return c.tablesEqual(a.Variants, b.Variants)
		case *ast.TupleType:
			return c.unionAcceptsTuple(a, b)
		}
		return false
	case *ast.FnType:
		b, ok := t2.(*ast.FnType)
		if !ok || len(a.Args) != len(b.Args) || a.Eff != b.Eff {
			return false
		}
		for i := range a.Args {
			if !c.typesEqual(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return c.typesEqual(a.Ret, b.Ret)
	}
	return false
}

func (c *Checker) tablesEqual(a, b map[string]ast.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for k, ta := range a {
		tb, ok := b[k]
		if !ok || !c.typesEqual(ta, tb) {
			return false
		}
	}
	return true
}

func (c *Checker) unionAcceptsTuple(u *ast.UnionType, t *ast.TupleType) bool {
	var payload ast.Type
	switch {
	case len(t.Items) == 1:
		payload = t.Items[0]
	case len(t.Items) == 2:
		if _, ok := c.resolve(t.Items[0]).(*ast.StrType); !ok {
			return false
		}
		payload = t.Items[1]
	default:
		return false
	}
	for _, k := range ast.SortedKeys(u.Variants) {
		if c.typesEqual(u.Variants[k], payload) {
			return true
		}
	}
	return false
}

func (c *Checker) expect(expected, actual ast.Type, msg string) error {
	if !c.typesEqual(expected, actual) {
		return mismatch(msg, expected, actual)
	}
	return nil
}

// qualifyType prefixes the names a module exports with its import alias so
// they stay distinct from the importer's own types.
func qualifyType(t ast.Type, alias string, exported map[string]bool) ast.Type {
	q := func(inner ast.Type) ast.Type { return qualifyType(inner, alias, exported) }
	switch t := t.(type) {
	case *ast.NamedType:
		if exported[t.Name] {
			return &ast.NamedType{Name: alias + "." + t.Name}
		}
		return t
	case *ast.OptionType:
		return &ast.OptionType{Inner: q(t.Inner)}
	case *ast.ResultType:
		return &ast.ResultType{Ok: q(t.Ok), Err: q(t.Err)}
	case *ast.ListType:
		return &ast.ListType{Inner: q(t.Inner)}
	case *ast.MapType:
		return &ast.MapType{Key: q(t.Key), Value: q(t.Value)}
	case *ast.TupleType:
		items := make([]ast.Type, len(t.Items))
		for i, it := range t.Items {
			items[i] = q(it)
		}
		return &ast.TupleType{Items: items}
	case *ast.RecordType:
		fields := make(map[string]ast.Type, len(t.Fields))
		for k, v := range t.Fields {
			fields[k] = q(v)
		}
		return &ast.RecordType{Fields: fields}
	case *ast.UnionType:
		vars := make(map[string]ast.Type, len(t.Variants))
		for k, v := range t.Variants {
			vars[k] = q(v)
		}
		return &ast.UnionType{Variants: vars}
	case *ast.FnType:
		args := make([]ast.Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = q(a)
		}
		return &ast.FnType{Args: args, Ret: q(t.Ret), Eff: t.Eff}
	}
	return t
}
