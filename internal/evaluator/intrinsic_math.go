package evaluator

import (
	"math/big"
	"math/rand/v2"
	"strings"

	"iris/internal/object"
)

var mathIntrinsics = map[string]intrinsicFn{
	"+":  pure(2, arith("+")),
	"-":  pure(2, arith("-")),
	"*":  pure(2, arith("*")),
	"/":  pure(2, arith("/")),
	"%":  pure(2, arith("%")),
	"<":  pure(2, compare("<")),
	"<=": pure(2, compare("<=")),
	">":  pure(2, compare(">")),
	">=": pure(2, compare(">=")),
	"=":  pure(2, equals),

	"&&": pure(2, logic("&&")),
	"||": pure(2, logic("||")),
	"!":  pure(1, not),

	"i64.from_string": pure(1, i64FromString),
	"i64.to_string":   pure(1, i64ToString),
	"rand.u64":        pure(0, randU64),
}

func operands(op string, args []object.Object) (*big.Int, *big.Int, error) {
	a, aok := args[0].(*object.I64)
	b, bok := args[1].(*object.I64)
	if !aok || !bok {
		return nil, nil, newError("Math expects I64 for %s, got %s and %s", op, args[0].Type(), args[1].Type())
	}
	return a.Value, b.Value, nil
}

// arith uses truncated division: the quotient rounds toward zero and the
// remainder takes the sign of the dividend.
func arith(op string) func([]object.Object) (object.Object, error) {
	return func(args []object.Object) (object.Object, error) {
		a, b, err := operands(op, args)
		if err != nil {
			return nil, err
		}
		out := new(big.Int)
		switch op {
		case "+":
			out.Add(a, b)
		case "-":
			out.Sub(a, b)
		case "*":
			out.Mul(a, b)
		case "/":
			if b.Sign() == 0 {
				return nil, newError("Division by zero")
			}
			out.Quo(a, b)
		case "%":
			if b.Sign() == 0 {
				return nil, newError("Modulo by zero")
			}
			out.Rem(a, b)
		}
		return &object.I64{Value: out}, nil
	}
}

func compare(op string) func([]object.Object) (object.Object, error) {
	return func(args []object.Object) (object.Object, error) {
		a, b, err := operands(op, args)
		if err != nil {
			return nil, err
		}
		c := a.Cmp(b)
		switch op {
		case "<":
			return object.NativeBool(c < 0), nil
		case "<=":
			return object.NativeBool(c <= 0), nil
		case ">":
			return object.NativeBool(c > 0), nil
		}
		return object.NativeBool(c >= 0), nil
	}
}

// equals compares scalars only; any other pairing is false.
func equals(args []object.Object) (object.Object, error) {
	switch a := args[0].(type) {
	case *object.I64:
		if b, ok := args[1].(*object.I64); ok {
			return object.NativeBool(a.Value.Cmp(b.Value) == 0), nil
		}
	case *object.String:
		if b, ok := args[1].(*object.String); ok {
			return object.NativeBool(a.Value == b.Value), nil
		}
	case *object.Boolean:
		if b, ok := args[1].(*object.Boolean); ok {
			return object.NativeBool(a.Value == b.Value), nil
		}
	}
	return object.FALSE, nil
}

func logic(op string) func([]object.Object) (object.Object, error) {
	return func(args []object.Object) (object.Object, error) {
		a, err := asBool(op, args[0])
		if err != nil {
			return nil, err
		}
		b, err := asBool(op, args[1])
		if err != nil {
			return nil, err
		}
		if op == "&&" {
			return object.NativeBool(a && b), nil
		}
		return object.NativeBool(a || b), nil
	}
}

func not(args []object.Object) (object.Object, error) {
	b, err := asBool("!", args[0])
	if err != nil {
		return nil, err
	}
	return object.NativeBool(!b), nil
}

func i64FromString(args []object.Object) (object.Object, error) {
	s, err := asStr("i64.from_string", args[0])
	if err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, newError("i64.from_string: empty string")
	}
	n, ok := parseInteger(s)
	if !ok {
		return nil, newError("i64.from_string: invalid integer %q", s)
	}
	return &object.I64{Value: n}, nil
}

// parseInteger reads a decimal integer with an optional sign, or an
// unsigned 0x, 0o or 0b literal. Leading zeros stay decimal.
func parseInteger(s string) (*big.Int, bool) {
	if strings.Contains(s, "_") {
		return nil, false
	}
	base := 10
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
	}
	if base != 10 {
		s = s[2:]
		if s[0] == '+' || s[0] == '-' {
			return nil, false
		}
	}
	return new(big.Int).SetString(s, base)
}

func i64ToString(args []object.Object) (object.Object, error) {
	i, err := asInt("i64.to_string", args[0])
	if err != nil {
		return nil, err
	}
	return object.NewString(i.Value.String()), nil
}

func randU64(args []object.Object) (object.Object, error) {
	return &object.I64{Value: new(big.Int).SetUint64(rand.Uint64())}, nil
}
