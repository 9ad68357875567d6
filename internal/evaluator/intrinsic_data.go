package evaluator

import (
	"strings"
	"unicode/utf8"

	"iris/internal/object"
)

var dataIntrinsics = map[string]intrinsicFn{
	"Some": pure(1, func(args []object.Object) (object.Object, error) { return object.Some(args[0]), nil }),
	"Ok":   pure(1, func(args []object.Object) (object.Object, error) { return object.Ok(args[0]), nil }),
	"Err":  pure(1, func(args []object.Object) (object.Object, error) { return object.Err(args[0]), nil }),
	"cons": pure(2, cons),

	// Strings index by code point.
	"str.len":       pure(1, strLen),
	"str.concat":    pure(2, strConcat),
	"str.get":       pure(2, strGet),
	"str.substring": pure(3, strSubstring),
	"str.from_code": pure(1, strFromCode),
	"str.index_of":  pure(2, strIndexOf),
	"str.contains":  pure(2, strPredicate("str.contains", strings.Contains)),
	"str.ends_with": pure(2, strPredicate("str.ends_with", strings.HasSuffix)),

	"list.length": pure(1, listLength),
	"list.get":    pure(2, listGet),
	"list.concat": pure(2, listConcat),
	"list.unique": pure(1, listUnique),

	// map.make takes a key and a value witness; only their types matter.
	"map.make":     pure(2, func(args []object.Object) (object.Object, error) { return object.NewMap(), nil }),
	"map.put":      pure(3, mapPut),
	"map.get":      pure(2, mapGet),
	"map.contains": pure(2, mapContains),
	"map.keys":     pure(1, mapKeys),

	"tuple.get":  pure(2, tupleGet),
	"record.get": pure(2, recordGet),
	"record.set": pure(3, recordSet),
}

// cons prepends without copying the tail. The tagged "nil" sentinel is
// accepted as the empty list.
func cons(args []object.Object) (object.Object, error) {
	switch tail := args[1].(type) {
	case *object.List:
		return object.Cons(args[0], tail), nil
	case *object.Tagged:
		if tail.Tag == "nil" {
			return object.Cons(args[0], object.EMPTY_LIST), nil
		}
	}
	return nil, newError("cons expects a List tail, got %s", args[1].Type())
}

func strLen(args []object.Object) (object.Object, error) {
	s, err := asStr("str.len", args[0])
	if err != nil {
		return nil, err
	}
	return object.NewI64(int64(utf8.RuneCountInString(s))), nil
}

func strConcat(args []object.Object) (object.Object, error) {
	a, err := asStr("str.concat", args[0])
	if err != nil {
		return nil, err
	}
	b, err := asStr("str.concat", args[1])
	if err != nil {
		return nil, err
	}
	return object.NewString(a + b), nil
}

func strGet(args []object.Object) (object.Object, error) {
	s, err := asStr("str.get", args[0])
	if err != nil {
		return nil, err
	}
	idx, err := asInt("str.get", args[1])
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	i, ok := idx.Int64()
	if !ok || i < 0 || i >= int64(len(runes)) {
		return object.NONE, nil
	}
	return object.Some(object.NewI64(int64(runes[i]))), nil
}

// strSubstring clamps both bounds into the string and swaps them when
// start is past end.
func strSubstring(args []object.Object) (object.Object, error) {
	s, err := asStr("str.substring", args[0])
	if err != nil {
		return nil, err
	}
	start, err := asInt("str.substring", args[1])
	if err != nil {
		return nil, err
	}
	end, err := asInt("str.substring", args[2])
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	from, to := clamp(start, len(runes)), clamp(end, len(runes))
	if from > to {
		from, to = to, from
	}
	return object.NewString(string(runes[from:to])), nil
}

func clamp(i *object.I64, n int) int {
	v, ok := i.Int64()
	switch {
	case !ok && i.Value.Sign() < 0, ok && v < 0:
		return 0
	case !ok, v > int64(n):
		return n
	}
	return int(v)
}

func strFromCode(args []object.Object) (object.Object, error) {
	code, err := asSmallInt("str.from_code", args[0])
	if err != nil {
		return nil, err
	}
	if code < 0 || code > utf8.MaxRune {
		return nil, newError("str.from_code: invalid code point %d", code)
	}
	return object.NewString(string(rune(code))), nil
}

func strIndexOf(args []object.Object) (object.Object, error) {
	s, err := asStr("str.index_of", args[0])
	if err != nil {
		return nil, err
	}
	sub, err := asStr("str.index_of", args[1])
	if err != nil {
		return nil, err
	}
	idx := strings.Index(s, sub)
	if idx < 0 {
		return object.NONE, nil
	}
	return object.Some(object.NewI64(int64(utf8.RuneCountInString(s[:idx])))), nil
}

func strPredicate(op string, pred func(s, sub string) bool) func([]object.Object) (object.Object, error) {
	return func(args []object.Object) (object.Object, error) {
		s, err := asStr(op, args[0])
		if err != nil {
			return nil, err
		}
		sub, err := asStr(op, args[1])
		if err != nil {
			return nil, err
		}
		return object.NativeBool(pred(s, sub)), nil
	}
}

func listLength(args []object.Object) (object.Object, error) {
	l, err := asList("list.length", args[0])
	if err != nil {
		return nil, err
	}
	return object.NewI64(int64(l.Len())), nil
}

func listGet(args []object.Object) (object.Object, error) {
	l, err := asList("list.get", args[0])
	if err != nil {
		return nil, err
	}
	idx, err := asInt("list.get", args[1])
	if err != nil {
		return nil, err
	}
	i, ok := idx.Int64()
	if !ok || i < 0 || i >= int64(l.Len()) {
		return object.NONE, nil
	}
	if v, ok := l.Get(int(i)); ok {
		return object.Some(v), nil
	}
	return object.NONE, nil
}

func listConcat(args []object.Object) (object.Object, error) {
	a, err := asList("list.concat", args[0])
	if err != nil {
		return nil, err
	}
	b, err := asList("list.concat", args[1])
	if err != nil {
		return nil, err
	}
	return a.Concat(b), nil
}

// listUnique keeps the first occurrence of every element.
func listUnique(args []object.Object) (object.Object, error) {
	l, err := asList("list.unique", args[0])
	if err != nil {
		return nil, err
	}
	seen := make(map[object.MapKey][]object.Object)
	var out []object.Object
next:
	for _, it := range l.Items() {
		key, err := object.KeyOf(it)
		if err != nil {
			return nil, newError("list.unique: %s", err)
		}
		for _, prev := range seen[key] {
			if object.Equal(prev, it) {
				continue next
			}
		}
		seen[key] = append(seen[key], it)
		out = append(out, it)
	}
	return object.NewList(out...), nil
}

func mapPut(args []object.Object) (object.Object, error) {
	m, err := asMap("map.put", args[0])
	if err != nil {
		return nil, err
	}
	out, err := m.Put(args[1], args[2])
	if err != nil {
		return nil, newError("map.put: %s", err)
	}
	return out, nil
}

func mapGet(args []object.Object) (object.Object, error) {
	m, err := asMap("map.get", args[0])
	if err != nil {
		return nil, err
	}
	v, found, err := m.Get(args[1])
	if err != nil {
		return nil, newError("map.get: %s", err)
	}
	if !found {
		return object.NONE, nil
	}
	return object.Some(v), nil
}

func mapContains(args []object.Object) (object.Object, error) {
	m, err := asMap("map.contains", args[0])
	if err != nil {
		return nil, err
	}
	found, err := m.Contains(args[1])
	if err != nil {
		return nil, newError("map.contains: %s", err)
	}
	return object.NativeBool(found), nil
}

func mapKeys(args []object.Object) (object.Object, error) {
	m, err := asMap("map.keys", args[0])
	if err != nil {
		return nil, err
	}
	return object.NewList(m.Keys()...), nil
}

func tupleGet(args []object.Object) (object.Object, error) {
	tup, ok := args[0].(*object.Tuple)
	if !ok {
		return nil, newError("tuple.get expects Tuple, got %s", args[0].Type())
	}
	i, err := asSmallInt("tuple.get", args[1])
	if err != nil || i < 0 || i >= int64(len(tup.Items)) {
		return nil, newError("Tuple index out of bounds: %s", args[1].Inspect())
	}
	return tup.Items[i], nil
}

func recordGet(args []object.Object) (object.Object, error) {
	rec, ok := args[0].(*object.Record)
	if !ok {
		return nil, newError("record.get expects Record, got %s", args[0].Type())
	}
	name, err := asStr("record.get", args[1])
	if err != nil {
		return nil, err
	}
	v, ok := rec.Fields[name]
	if !ok {
		return nil, newError("Field %s not found", name)
	}
	return v, nil
}

func recordSet(args []object.Object) (object.Object, error) {
	rec, ok := args[0].(*object.Record)
	if !ok {
		return nil, newError("record.set expects Record, got %s", args[0].Type())
	}
	name, err := asStr("record.set", args[1])
	if err != nil {
		return nil, err
	}
	return rec.With(name, args[2]), nil
}
