package evaluator

import (
	"iris/internal/object"
)

// intrinsicFn implements one built-in operation over evaluated arguments.
type intrinsicFn func(in *Interpreter, t *task, args []object.Object) (object.Object, error)

var intrinsics = map[string]intrinsicFn{}

func register(group map[string]intrinsicFn) {
	for op, fn := range group {
		intrinsics[op] = fn
	}
}

func init() {
	register(mathIntrinsics)
	register(dataIntrinsics)
	register(ioIntrinsics)
	register(sysIntrinsics)
	register(netIntrinsics)
	register(httpIntrinsics)
}

func (in *Interpreter) intrinsic(t *task, op string, args []object.Object) (object.Object, error) {
	fn, ok := intrinsics[op]
	if !ok {
		return nil, newError("Unknown intrinsic: %s", op)
	}
	return fn(in, t, args)
}

// arity wraps fn with an exact argument count check.
func arity(n int, fn intrinsicFn) intrinsicFn {
	return func(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
		if len(args) != n {
			return nil, newError("wrong number of arguments. got=%d, want=%d", len(args), n)
		}
		return fn(in, t, args)
	}
}

// pure lifts an operation that needs neither interpreter nor task.
func pure(n int, fn func(args []object.Object) (object.Object, error)) intrinsicFn {
	return arity(n, func(_ *Interpreter, _ *task, args []object.Object) (object.Object, error) {
		return fn(args)
	})
}

func asInt(op string, v object.Object) (*object.I64, error) {
	i, ok := v.(*object.I64)
	if !ok {
		return nil, newError("%s expects I64, got %s", op, v.Type())
	}
	return i, nil
}

// asSmallInt narrows an I64 argument used as an index, port or handle.
func asSmallInt(op string, v object.Object) (int64, error) {
	i, err := asInt(op, v)
	if err != nil {
		return 0, err
	}
	n, ok := i.Int64()
	if !ok {
		return 0, newError("%s: %s is out of range", op, i.Inspect())
	}
	return n, nil
}

func asStr(op string, v object.Object) (string, error) {
	s, ok := v.(*object.String)
	if !ok {
		return "", newError("%s expects Str, got %s", op, v.Type())
	}
	return s.Value, nil
}

func asBool(op string, v object.Object) (bool, error) {
	b, ok := v.(*object.Boolean)
	if !ok {
		return false, newError("%s expects Bool, got %s", op, v.Type())
	}
	return b.Value, nil
}

func asList(op string, v object.Object) (*object.List, error) {
	l, ok := v.(*object.List)
	if !ok {
		return nil, newError("%s expects List, got %s", op, v.Type())
	}
	return l, nil
}

func asMap(op string, v object.Object) (*object.Map, error) {
	m, ok := v.(*object.Map)
	if !ok {
		return nil, newError("%s expects Map, got %s", op, v.Type())
	}
	return m, nil
}
