package checker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iris/internal/ast"
	"iris/internal/effect"
)

func fn(name string, args []*ast.Arg, ret ast.Type, eff effect.Effect, body ast.Expr) *ast.DefFn {
	return &ast.DefFn{Name: name, Args: args, Ret: ret, Eff: eff, Body: body}
}

func arg(name string, t ast.Type) *ast.Arg { return &ast.Arg{Name: name, Type: t} }

func op(name string, args ...ast.Expr) *ast.Intrinsic { return &ast.Intrinsic{Op: name, Args: args} }

func call(name string, args ...ast.Expr) *ast.Call { return &ast.Call{Fn: name, Args: args} }

func v(name string) *ast.Var { return &ast.Var{Name: name} }

func program(defs ...ast.Definition) *ast.Program {
	return &ast.Program{Module: ast.ModuleInfo{Name: "main", Version: "0.1.0"}, Defs: defs}
}

func TestCheck(t *testing.T) {
	type testCase struct {
		name    string
		program *ast.Program
		wantErr string
	}

	shape := &ast.TypeDef{Name: "Shape", Type: &ast.UnionType{Variants: map[string]ast.Type{
		"circle": ast.I64,
		"square": ast.I64,
	}}}

	testCases := []testCase{
		{
			name: "add",
			program: program(
				fn("add", []*ast.Arg{arg("a", ast.I64), arg("b", ast.I64)}, ast.I64, effect.Pure, op("+", v("a"), v("b"))),
				fn("main", nil, ast.I64, effect.Pure, call("add", ast.IntLiteral(2), ast.IntLiteral(3))),
			),
		},
		{
			name: "division by zero is a runtime concern",
			program: program(
				fn("main", nil, ast.I64, effect.Pure, op("/", ast.IntLiteral(1), ast.IntLiteral(0))),
			),
		},
		{
			name: "match on result",
			program: program(
				fn("main", nil, ast.I64, effect.Pure, &ast.Match{
					Target: op("Ok", ast.IntLiteral(5)),
					Cases: []*ast.MatchCase{
						{Tag: "Ok", Vars: []string{"v"}, Body: v("v")},
						{Tag: "Err", Vars: []string{"e"}, Body: ast.IntLiteral(0)},
					},
				}),
			),
		},
		{
			name: "pure function printing",
			program: program(
				fn("main", nil, ast.I64, effect.Pure, op("io.print", ast.StrLiteral("hi"))),
			),
			wantErr: "TypeError: EffectMismatch: Function main: Inferred !IO but declared !Pure",
		},
		{
			name: "io function printing",
			program: program(
				fn("main", nil, ast.I64, effect.IO, op("io.print", ast.StrLiteral("hi"))),
			),
		},
		{
			name: "net accepts io",
			program: program(
				fn("main", nil, ast.I64, effect.Net, op("io.print", ast.StrLiteral("hi"))),
			),
		},
		{
			name: "io rejects net",
			program: program(
				fn("main", nil, ast.Str, effect.IO, &ast.Match{
					Target: op("net.read", ast.IntLiteral(1)),
					Cases: []*ast.MatchCase{
						{Tag: "Ok", Vars: []string{"s"}, Body: v("s")},
						{Tag: "Err", Vars: []string{"e"}, Body: v("e")},
					},
				}),
			),
			wantErr: "Inferred !Net but declared !IO",
		},
		{
			name: "constant must be pure",
			program: program(
				&ast.DefConst{Name: "c", Type: ast.I64, Value: op("io.print", ast.StrLiteral("x"))},
			),
			wantErr: "EffectMismatch: Constant c must be Pure",
		},
		{
			name: "constant type mismatch",
			program: program(
				&ast.DefConst{Name: "c", Type: ast.I64, Value: ast.StrLiteral("x")},
			),
			wantErr: "Constant c type mismatch: Expected I64, got Str",
		},
		{
			name: "duplicate argument",
			program: program(
				fn("f", []*ast.Arg{arg("a", ast.I64), arg("a", ast.I64)}, ast.I64, effect.Pure, v("a")),
			),
			wantErr: "Duplicate argument name: a",
		},
		{
			name: "unknown variable",
			program: program(
				fn("main", nil, ast.I64, effect.Pure, v("nope")),
			),
			wantErr: "Unknown variable: nope",
		},
		{
			name: "unknown function",
			program: program(
				fn("main", nil, ast.I64, effect.Pure, call("nope")),
			),
			wantErr: "Unknown function call: nope",
		},
		{
			name: "call arity",
			program: program(
				fn("id", []*ast.Arg{arg("x", ast.I64)}, ast.I64, effect.Pure, v("x")),
				fn("main", nil, ast.I64, effect.Pure, call("id")),
			),
			wantErr: "Arity mismatch for id",
		},
		{
			name: "argument type",
			program: program(
				fn("id", []*ast.Arg{arg("x", ast.I64)}, ast.I64, effect.Pure, v("x")),
				fn("main", nil, ast.I64, effect.Pure, call("id", ast.StrLiteral("s"))),
			),
			wantErr: "Argument 0 mismatch: Expected I64, got Str",
		},
		{
			name: "intrinsic in call position",
			program: program(
				fn("main", nil, ast.I64, effect.Pure, call("str.len", ast.StrLiteral("abc"))),
			),
		},
		{
			name: "if condition",
			program: program(
				fn("main", nil, ast.I64, effect.Pure, &ast.If{Cond: ast.IntLiteral(1), Then: ast.IntLiteral(1), Else: ast.IntLiteral(2)}),
			),
			wantErr: "Type Error in If condition",
		},
		{
			name: "if branches",
			program: program(
				fn("main", nil, ast.I64, effect.Pure, &ast.If{Cond: ast.BoolLiteral(true), Then: ast.IntLiteral(1), Else: ast.StrLiteral("x")}),
			),
			wantErr: "If branches mismatch",
		},
		{
			name: "some binds one variable",
			program: program(
				fn("main", nil, ast.I64, effect.Pure, &ast.Match{
					Target: op("Some", ast.IntLiteral(1)),
					Cases: []*ast.MatchCase{
						{Tag: "Some", Vars: []string{"a", "b"}, Body: v("a")},
						{Tag: "None", Body: ast.IntLiteral(0)},
					},
				}),
			),
			wantErr: "Some case expects 1 variable",
		},
		{
			name: "cons binds two variables",
			program: program(
				fn("main", nil, ast.I64, effect.Pure, &ast.Match{
					Target: &ast.List{Items: []ast.Expr{ast.IntLiteral(1)}},
					Cases: []*ast.MatchCase{
						{Tag: "cons", Vars: []string{"h"}, Body: v("h")},
						{Tag: "nil", Body: ast.IntLiteral(0)},
					},
				}),
			),
			wantErr: "cons case expects 2 variables",
		},
		{
			name: "list match with wildcard",
			program: program(
				fn("main", nil, ast.I64, effect.Pure, &ast.Match{
					Target: &ast.List{Items: []ast.Expr{ast.IntLiteral(1)}},
					Cases: []*ast.MatchCase{
						{Tag: "cons", Vars: []string{"h", "t"}, Body: op("list.length", v("t"))},
						{Tag: "_", Body: ast.IntLiteral(0)},
					},
				}),
			),
		},
		{
			name: "match arms",
			program: program(
				fn("main", nil, ast.I64, effect.Pure, &ast.Match{
					Target: ast.NoneLiteral(),
					Cases: []*ast.MatchCase{
						{Tag: "Some", Vars: []string{"x"}, Body: v("x")},
						{Tag: "None", Body: ast.StrLiteral("none")},
					},
				}),
			),
			wantErr: "Match arms mismatch",
		},
		{
			name: "match target kind",
			program: program(
				fn("main", nil, ast.I64, effect.Pure, &ast.Match{
					Target: ast.IntLiteral(1),
					Cases:  []*ast.MatchCase{{Tag: "_", Body: ast.IntLiteral(0)}},
				}),
			),
			wantErr: "Match target must be Option, Result, List, or Union (got I64)",
		},
		{
			name: "union from tagged tuple",
			program: program(
				shape,
				fn("main", nil, &ast.NamedType{Name: "Shape"}, effect.Pure,
					&ast.Tuple{Items: []ast.Expr{ast.StrLiteral("circle"), ast.IntLiteral(5)}}),
			),
		},
		{
			name: "union from tagged value",
			program: program(
				shape,
				fn("main", nil, &ast.NamedType{Name: "Shape"}, effect.Pure,
					&ast.Tagged{Tag: "square", Value: ast.IntLiteral(2)}),
			),
		},
		{
			name: "union payload mismatch",
			program: program(
				shape,
				fn("main", nil, &ast.NamedType{Name: "Shape"}, effect.Pure,
					&ast.Tagged{Tag: "square", Value: ast.StrLiteral("big")}),
			),
			wantErr: "Variant square payload mismatch",
		},
		{
			name: "union match",
			program: program(
				shape,
				fn("area", []*ast.Arg{arg("s", &ast.NamedType{Name: "Shape"})}, ast.I64, effect.Pure, &ast.Match{
					Target: v("s"),
					Cases: []*ast.MatchCase{
						{Tag: "circle", Vars: []string{"r"}, Body: op("*", v("r"), v("r"))},
						{Tag: "square", Vars: []string{"w"}, Body: op("*", v("w"), v("w"))},
					},
				}),
			),
		},
		{
			name: "unknown union variant",
			program: program(
				shape,
				fn("area", []*ast.Arg{arg("s", &ast.NamedType{Name: "Shape"})}, ast.I64, effect.Pure, &ast.Match{
					Target: v("s"),
					Cases:  []*ast.MatchCase{{Tag: "triangle", Body: ast.IntLiteral(0)}},
				}),
			),
			wantErr: "has no variant triangle",
		},
		{
			name: "record field order",
			program: program(
				fn("main", nil, &ast.RecordType{Fields: map[string]ast.Type{"a": ast.I64, "b": ast.Str}}, effect.Pure,
					&ast.Record{Fields: []*ast.RecordField{
						{Key: "b", Value: ast.StrLiteral("x")},
						{Key: "a", Value: ast.IntLiteral(1)},
					}}),
			),
		},
		{
			name: "dotted path",
			program: program(
				fn("main", nil, ast.Str, effect.Pure, &ast.Let{
					Name: "p",
					Value: &ast.Record{Fields: []*ast.RecordField{
						{Key: "pair", Value: &ast.Tuple{Items: []ast.Expr{ast.IntLiteral(1), ast.StrLiteral("s")}}},
					}},
					Body: v("p.pair.1"),
				}),
			),
		},
		{
			name: "dotted path unknown field",
			program: program(
				fn("main", nil, ast.I64, effect.Pure, &ast.Let{
					Name:  "p",
					Value: &ast.Record{Fields: []*ast.RecordField{{Key: "a", Value: ast.IntLiteral(1)}}},
					Body:  v("p.b"),
				}),
			),
			wantErr: "Unknown field b in record",
		},
		{
			name: "none takes expected type",
			program: program(
				fn("main", nil, &ast.OptionType{Inner: ast.Str}, effect.Pure, ast.NoneLiteral()),
			),
		},
		{
			name: "nil takes expected type",
			program: program(
				fn("main", nil, &ast.ListType{Inner: ast.Str}, effect.Pure, ast.NilLiteral()),
			),
		},
		{
			name: "list item mismatch",
			program: program(
				fn("main", nil, &ast.ListType{Inner: ast.I64}, effect.Pure,
					&ast.List{Items: []ast.Expr{ast.IntLiteral(1), ast.StrLiteral("x")}}),
			),
			wantErr: "List item type mismatch",
		},
		{
			name: "err takes expected ok type",
			program: program(
				fn("main", nil, &ast.ResultType{Ok: ast.Bool, Err: ast.Str}, effect.Pure, op("Err", ast.StrLiteral("bad"))),
			),
		},
		{
			name: "tuple index must be literal",
			program: program(
				fn("main", []*ast.Arg{arg("i", ast.I64)}, ast.I64, effect.Pure,
					op("tuple.get", &ast.Tuple{Items: []ast.Expr{ast.IntLiteral(1)}}, v("i"))),
			),
			wantErr: "tuple.get requires literal index for type safety",
		},
		{
			name: "tuple index out of bounds",
			program: program(
				fn("main", nil, ast.I64, effect.Pure,
					op("tuple.get", &ast.Tuple{Items: []ast.Expr{ast.IntLiteral(1)}}, ast.IntLiteral(3))),
			),
			wantErr: "Tuple index out of bounds: 3",
		},
		{
			name: "record get on non record",
			program: program(
				fn("main", []*ast.Arg{arg("x", ast.I64)}, ast.I64, effect.Pure,
					op("record.get", v("x"), ast.StrLiteral("f"))),
			),
			wantErr: "Cannot access field f of non-record x",
		},
		{
			name: "record set",
			program: program(
				fn("main", nil, &ast.RecordType{Fields: map[string]ast.Type{"a": ast.I64}}, effect.Pure,
					op("record.set", &ast.Record{Fields: []*ast.RecordField{{Key: "a", Value: ast.IntLiteral(1)}}}, ast.StrLiteral("a"), ast.IntLiteral(2))),
			),
		},
		{
			name: "map operations",
			program: program(
				fn("main", nil, &ast.OptionType{Inner: ast.I64}, effect.Pure, &ast.Let{
					Name:  "m",
					Value: op("map.put", op("map.make", ast.StrLiteral(""), ast.IntLiteral(0)), ast.StrLiteral("k"), ast.IntLiteral(1)),
					Body:  op("map.get", v("m"), ast.StrLiteral("k")),
				}),
			),
		},
		{
			name: "map key mismatch",
			program: program(
				fn("main", nil, ast.Bool, effect.Pure,
					op("map.contains", op("map.make", ast.StrLiteral(""), ast.IntLiteral(0)), ast.IntLiteral(1))),
			),
			wantErr: "map.contains key mismatch",
		},
		{
			name: "comparison needs integers",
			program: program(
				fn("main", nil, ast.Bool, effect.Pure, op("<", ast.StrLiteral("a"), ast.StrLiteral("b"))),
			),
			wantErr: "Type Error in < operand 1: Expected I64, got Str",
		},
		{
			name: "and with three operands",
			program: program(
				fn("main", nil, ast.Bool, effect.Pure, op("&&", ast.BoolLiteral(true), ast.BoolLiteral(true), ast.BoolLiteral(false))),
			),
			wantErr: "&& expects 2 arguments",
		},
		{
			name: "or without operands",
			program: program(
				fn("main", nil, ast.Bool, effect.Pure, op("||")),
			),
			wantErr: "|| expects 2 arguments",
		},
		{
			name: "and on booleans",
			program: program(
				fn("main", nil, ast.Bool, effect.Pure, op("&&", ast.BoolLiteral(true), ast.BoolLiteral(false))),
			),
		},
		{
			name: "spawn arity",
			program: program(
				fn("main", nil, ast.I64, effect.IO, op("sys.spawn")),
			),
			wantErr: "sys.spawn expects 1 argument",
		},
		{
			name: "unknown intrinsic",
			program: program(
				fn("main", nil, ast.I64, effect.Pure, op("str.reverse", ast.StrLiteral("x"))),
			),
			wantErr: "Unknown intrinsic: str.reverse",
		},
		{
			name: "http parse is pure",
			program: program(
				fn("main", nil, ast.Bool, effect.Pure, &ast.Match{
					Target: op("http.parse_request", ast.StrLiteral("GET / HTTP/1.1\r\n\r\n")),
					Cases: []*ast.MatchCase{
						{Tag: "Ok", Vars: []string{"r"}, Body: op("=", v("r.method"), ast.StrLiteral("GET"))},
						{Tag: "Err", Vars: []string{"e"}, Body: ast.BoolLiteral(false)},
					},
				}),
			),
		},
		{
			name: "lambda application",
			program: program(
				fn("main", nil, ast.I64, effect.Pure, &ast.Let{
					Name: "inc",
					Value: &ast.Lambda{
						Args: []*ast.Arg{arg("x", ast.I64)},
						Ret:  ast.I64,
						Eff:  effect.Pure,
						Body: op("+", v("x"), ast.IntLiteral(1)),
					},
					Body: call("inc", ast.IntLiteral(2)),
				}),
			),
		},
		{
			name: "lambda effect",
			program: program(
				fn("main", nil, ast.I64, effect.IO, &ast.Let{
					Name: "p",
					Value: &ast.Lambda{
						Ret:  ast.I64,
						Eff:  effect.Pure,
						Body: op("io.print", ast.StrLiteral("x")),
					},
					Body: ast.IntLiteral(0),
				}),
			),
			wantErr: "EffectMismatch: Lambda: Inferred !IO but declared !Pure",
		},
		{
			name: "inferred effect is back-patched",
			program: program(
				fn("log", nil, ast.I64, effect.Infer, op("io.print", ast.StrLiteral("x"))),
				fn("main", nil, ast.I64, effect.Pure, call("log")),
			),
			wantErr: "EffectMismatch: Function main: Inferred !IO but declared !Pure",
		},
		{
			name: "unresolved infer is any at call site",
			program: program(
				fn("main", nil, ast.I64, effect.Net, call("later")),
				fn("later", nil, ast.I64, effect.Infer, ast.IntLiteral(1)),
			),
			wantErr: "Inferred !Any but declared !Net",
		},
		{
			name: "alias cycle",
			program: program(
				&ast.TypeDef{Name: "A", Type: &ast.NamedType{Name: "B"}},
				&ast.TypeDef{Name: "B", Type: &ast.NamedType{Name: "A"}},
			),
			wantErr: "Cyclic type alias: A -> B -> A",
		},
		{
			name: "recursive type",
			program: program(
				&ast.TypeDef{Name: "Tree", Type: &ast.UnionType{Variants: map[string]ast.Type{
					"leaf": ast.I64,
					"node": &ast.ListType{Inner: &ast.NamedType{Name: "Tree"}},
				}}},
				fn("id", []*ast.Arg{arg("t", &ast.NamedType{Name: "Tree"})}, &ast.NamedType{Name: "Tree"}, effect.Pure, v("t")),
			),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := New(nil).Check(tc.program)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var te *TypeError
			require.True(t, errors.As(err, &te))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestCheckIsDeterministic(t *testing.T) {
	p := program(
		fn("main", nil, ast.I64, effect.Pure, op("io.print", ast.StrLiteral("x"))),
		fn("other", nil, ast.I64, effect.Pure, v("missing")),
	)
	c := New(nil)
	first := c.Check(p)
	second := c.Check(p)
	require.Error(t, first)
	assert.Equal(t, first.Error(), second.Error())
}

func TestQualifiedImports(t *testing.T) {
	point := &ast.RecordType{Fields: map[string]ast.Type{"x": ast.I64}}
	lib := &ast.Program{
		Module: ast.ModuleInfo{Name: "geo", Version: "1.0.0"},
		Defs: []ast.Definition{
			&ast.TypeDef{Name: "Point", Type: point},
			fn("origin", nil, &ast.NamedType{Name: "Point"}, effect.Pure,
				&ast.Record{Fields: []*ast.RecordField{{Key: "x", Value: ast.IntLiteral(0)}}}),
			&ast.DefTool{Name: "fetch", Args: []*ast.Arg{arg("url", ast.Str)}, Ret: ast.Str, Eff: effect.Net},
		},
	}
	resolver := ast.MapResolver{"geo": lib}

	type testCase struct {
		name    string
		body    ast.Expr
		ret     ast.Type
		eff     effect.Effect
		wantErr string
	}

	testCases := []testCase{
		{name: "qualified type", body: call("g.origin"), ret: &ast.NamedType{Name: "g.Point"}, eff: effect.Pure},
		{name: "structural match", body: call("g.origin"), ret: point, eff: effect.Pure},
		{name: "field access", body: op("record.get", call("g.origin"), ast.StrLiteral("x")), ret: ast.I64, eff: effect.Pure},
		{name: "tool effect", body: call("g.fetch", ast.StrLiteral("u")), ret: ast.Str, eff: effect.IO, wantErr: "Inferred !Net but declared !IO"},
		{name: "tool call", body: call("g.fetch", ast.StrLiteral("u")), ret: ast.Str, eff: effect.Net},
		{name: "unknown member", body: call("g.nope"), ret: ast.I64, eff: effect.Pure, wantErr: "Unknown function call: g.nope"},
		{name: "unknown alias", body: call("h.origin"), ret: ast.I64, eff: effect.Pure, wantErr: "Unknown function call: h.origin"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := program(fn("main", nil, tc.ret, tc.eff, tc.body))
			p.Imports = []*ast.Import{{Path: "geo", Alias: "g"}}
			err := New(resolver).Check(p)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestTypesEqual(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Check(program(
		&ast.TypeDef{Name: "Id", Type: ast.I64},
		&ast.TypeDef{Name: "Either", Type: &ast.UnionType{Variants: map[string]ast.Type{"l": ast.I64, "r": ast.Str}}},
	)))

	types := []ast.Type{
		ast.I64,
		ast.Str,
		&ast.NamedType{Name: "Id"},
		&ast.OptionType{Inner: ast.Bool},
		&ast.ResultType{Ok: ast.I64, Err: ast.Str},
		&ast.ListType{Inner: &ast.ListType{Inner: ast.I64}},
		&ast.TupleType{Items: []ast.Type{ast.I64, ast.Str}},
		&ast.RecordType{Fields: map[string]ast.Type{"a": ast.I64, "b": ast.Bool}},
		&ast.MapType{Key: ast.Str, Value: ast.I64},
		&ast.NamedType{Name: "Either"},
		&ast.FnType{Args: []ast.Type{ast.I64}, Ret: ast.I64, Eff: effect.IO},
	}
	for _, a := range types {
		assert.True(t, c.typesEqual(a, a), "reflexive %s", a)
		for _, b := range types {
			assert.Equal(t, c.typesEqual(a, b), c.typesEqual(b, a), "symmetric %s %s", a, b)
		}
	}

	assert.True(t, c.typesEqual(&ast.NamedType{Name: "Id"}, ast.I64))
	assert.True(t, c.typesEqual(
		&ast.NamedType{Name: "Either"},
		&ast.TupleType{Items: []ast.Type{ast.Str, ast.Str}},
	))
	assert.True(t, c.typesEqual(
		&ast.NamedType{Name: "Either"},
		&ast.TupleType{Items: []ast.Type{ast.I64}},
	))
	assert.False(t, c.typesEqual(
		&ast.NamedType{Name: "Either"},
		&ast.TupleType{Items: []ast.Type{ast.Bool}},
	))
	assert.False(t, c.typesEqual(
		&ast.FnType{Ret: ast.I64, Eff: effect.Pure},
		&ast.FnType{Ret: ast.I64, Eff: effect.IO},
	))
	assert.False(t, c.typesEqual(
		&ast.RecordType{Fields: map[string]ast.Type{"a": ast.I64}},
		&ast.RecordType{Fields: map[string]ast.Type{"a": ast.I64, "b": ast.I64}},
	))
}
