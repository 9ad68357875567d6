package evaluator

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"iris/internal/ast"
	"iris/internal/effect"
	"iris/internal/host"
	"iris/internal/logger"
	"iris/internal/process"
)

func fn(name string, eff effect.Effect, body ast.Expr, args ...string) *ast.DefFn {
	d := &ast.DefFn{Name: name, Ret: ast.I64, Eff: eff, Body: body}
	for _, a := range args {
		d.Args = append(d.Args, &ast.Arg{Name: a, Type: ast.I64})
	}
	return d
}

func op(name string, args ...ast.Expr) *ast.Intrinsic { return &ast.Intrinsic{Op: name, Args: args} }

func call(name string, args ...ast.Expr) *ast.Call { return &ast.Call{Fn: name, Args: args} }

func v(name string) *ast.Var { return &ast.Var{Name: name} }

func i(n int64) *ast.Literal { return ast.IntLiteral(n) }

func s(str string) *ast.Literal { return ast.StrLiteral(str) }

func let(name string, value, body ast.Expr) *ast.Let {
	return &ast.Let{Name: name, Value: value, Body: body}
}

func tuple(items ...ast.Expr) *ast.Tuple { return &ast.Tuple{Items: items} }

func list(items ...ast.Expr) *ast.List { return &ast.List{Items: items} }

func match(target ast.Expr, cases ...*ast.MatchCase) *ast.Match {
	return &ast.Match{Target: target, Cases: cases}
}

func arm(tag string, body ast.Expr, vars ...string) *ast.MatchCase {
	return &ast.MatchCase{Tag: tag, Vars: vars, Body: body}
}

// unwrap matches Ok(name) into body and returns the Err payload otherwise.
func unwrap(target ast.Expr, name string, body ast.Expr) *ast.Match {
	return match(target, arm("Ok", body, name), arm("Err", v("e"), "e"))
}

func program(defs ...ast.Definition) *ast.Program {
	return &ast.Program{Module: ast.ModuleInfo{Name: "test", Version: "0.1.0"}, Defs: defs}
}

// run executes p and renders the result the way the top level prints it.
func run(t *testing.T, p *ast.Program, opts Options) (string, *Runtime) {
	t.Helper()
	if opts.Stdout == nil {
		opts.Stdout = &bytes.Buffer{}
	}
	rt, err := NewRuntime(opts)
	require.NoError(t, err)
	out, err := rt.Run(context.Background(), p)
	if err != nil {
		return err.Error(), rt
	}
	return out.Inspect(), rt
}

func evalPure(t *testing.T, body ast.Expr) string {
	t.Helper()
	got, _ := run(t, program(fn("main", effect.Pure, body)), Options{})
	return got
}

func TestScenarios(t *testing.T) {
	type testCase struct {
		name string
		defs []ast.Definition
		want string
	}

	testCases := []testCase{
		{
			name: "add",
			defs: []ast.Definition{
				fn("add", effect.Pure, op("+", v("a"), v("b")), "a", "b"),
				fn("main", effect.Pure, call("add", i(2), i(3))),
			},
			want: "5",
		},
		{
			name: "match on Ok",
			defs: []ast.Definition{
				fn("main", effect.Pure, match(op("Ok", i(5)), arm("Ok", v("x"), "x"), arm("Err", i(0), "e"))),
			},
			want: "5",
		},
		{
			name: "division by zero",
			defs: []ast.Definition{fn("main", effect.Pure, op("/", i(1), i(0)))},
			want: "RuntimeError: Division by zero",
		},
		{
			name: "missing main",
			defs: []ast.Definition{fn("helper", effect.Pure, i(1))},
			want: "RuntimeError: No main function defined",
		},
		{
			name: "constants are evaluated lazily in order",
			defs: []ast.Definition{
				&ast.DefConst{Name: "base", Type: ast.I64, Value: i(40)},
				&ast.DefConst{Name: "answer", Type: ast.I64, Value: op("+", v("base"), i(2))},
				fn("main", effect.IO, v("answer")),
			},
			want: "42",
		},
		{
			name: "call through a local lambda",
			defs: []ast.Definition{
				fn("main", effect.Pure, let("double",
					&ast.Lambda{Args: []*ast.Arg{{Name: "x", Type: ast.I64}}, Ret: ast.I64, Eff: effect.Pure, Body: op("*", v("x"), i(2))},
					call("double", i(21)))),
			},
			want: "42",
		},
		{
			name: "lambda captures its environment",
			defs: []ast.Definition{
				fn("main", effect.Any, let("k", i(10), let("addK",
					&ast.Lambda{Args: []*ast.Arg{{Name: "x", Type: ast.I64}}, Ret: ast.I64, Eff: effect.Pure, Body: op("+", v("x"), v("k"))},
					let("k", i(99), call("addK", i(1)))))),
			},
			want: "11",
		},
		{
			name: "calling a non function binding",
			defs: []ast.Definition{fn("main", effect.Pure, let("f", i(1), call("f")))},
			want: "RuntimeError: f is not a function (got I64)",
		},
		{
			name: "intrinsic in call position",
			defs: []ast.Definition{fn("main", effect.Pure, call("str.len", s("four")))},
			want: "4",
		},
		{
			name: "unknown function",
			defs: []ast.Definition{fn("main", effect.Pure, call("nope", i(1)))},
			want: "RuntimeError: Unknown function: nope",
		},
		{
			name: "arity mismatch",
			defs: []ast.Definition{
				fn("id", effect.Pure, v("x"), "x"),
				fn("main", effect.Any, call("id")),
			},
			want: "RuntimeError: Arity mismatch for id: expected 1 arguments, got 0",
		},
		{
			name: "unknown variable",
			defs: []ast.Definition{fn("main", effect.Pure, v("ghost"))},
			want: "RuntimeError: Unknown variable: ghost",
		},
		{
			name: "if needs a Bool",
			defs: []ast.Definition{fn("main", effect.Pure, &ast.If{Cond: i(1), Then: i(2), Else: i(3)})},
			want: "RuntimeError: If condition must be Bool, got I64",
		},
		{
			name: "dotted record and tuple path",
			defs: []ast.Definition{
				fn("main", effect.Pure, let("r",
					&ast.Record{Fields: []*ast.RecordField{{Key: "pair", Value: tuple(i(7), i(8))}}},
					v("r.pair.1"))),
			},
			want: "8",
		},
		{
			name: "dotted path into a scalar",
			defs: []ast.Definition{fn("main", effect.Pure, let("n", i(1), v("n.x")))},
			want: "RuntimeError: Cannot access field x of I64",
		},
		{
			name: "tuple path out of bounds",
			defs: []ast.Definition{fn("main", effect.Pure, let("p", tuple(i(1)), v("p.3")))},
			want: "RuntimeError: Tuple index out of bounds: 3",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := run(t, program(tc.defs...), Options{})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMatch(t *testing.T) {
	type testCase struct {
		name string
		expr ast.Expr
		want string
	}

	testCases := []testCase{
		{
			name: "cons binds head and shared tail",
			expr: match(list(i(1), i(2), i(3)), arm("nil", i(0)), arm("cons", tuple(v("h"), v("t")), "h", "t")),
			want: "(tuple 1 (list 2 3))",
		},
		{
			name: "nil",
			expr: match(ast.NilLiteral(), arm("cons", i(1), "h", "t"), arm("nil", i(0))),
			want: "0",
		},
		{
			name: "None",
			expr: match(ast.NoneLiteral(), arm("Some", v("x"), "x"), arm("None", i(-1))),
			want: "-1",
		},
		{
			name: "Err binds its payload",
			expr: match(op("Err", s("boom")), arm("Ok", s("fine"), "x"), arm("Err", v("e"), "e")),
			want: `"boom"`,
		},
		{
			name: "tagged union variant",
			expr: match(&ast.Tagged{Tag: "Circle", Value: i(5)}, arm("Square", i(0), "s"), arm("Circle", v("r"), "r")),
			want: "5",
		},
		{
			name: "tagged variant without binder",
			expr: match(&ast.Tagged{Tag: "Empty"}, arm("Empty", i(1))),
			want: "1",
		},
		{
			name: "tuple spelling binds positionally",
			expr: match(tuple(s("Pair"), i(1), i(2)), arm("Pair", op("+", v("a"), v("b")), "a", "b")),
			want: "3",
		},
		{
			name: "tuple spelling with one payload",
			expr: match(tuple(s("Just"), i(9)), arm("Just", v("x"), "x")),
			want: "9",
		},
		{
			name: "wildcard",
			expr: match(op("Some", i(1)), arm("None", i(0)), arm("_", i(7))),
			want: "7",
		},
		{
			name: "first matching case wins",
			expr: match(op("Some", i(1)), arm("_", i(1)), arm("Some", i(2), "x")),
			want: "1",
		},
		{
			name: "no matching case",
			expr: match(op("Some", i(1)), arm("None", i(0))),
			want: "RuntimeError: No matching case for value (Some 1)",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, evalPure(t, tc.expr))
		})
	}
}

func TestIntrinsics(t *testing.T) {
	type testCase struct {
		name string
		expr ast.Expr
		want string
	}

	rec := &ast.Record{Fields: []*ast.RecordField{{Key: "a", Value: i(1)}}}
	maxI64 := i(9223372036854775807)

	testCases := []testCase{
		{name: "truncating division", expr: op("/", i(-7), i(2)), want: "-3"},
		{name: "remainder keeps dividend sign", expr: op("%", i(-7), i(2)), want: "-1"},
		{name: "modulo by zero", expr: op("%", i(1), i(0)), want: "RuntimeError: Modulo by zero"},
		{name: "arbitrary precision", expr: op("*", maxI64, i(2)), want: "18446744073709551614"},
		{name: "math on strings", expr: op("+", s("a"), i(1)), want: "RuntimeError: Math expects I64 for +, got Str and I64"},
		{name: "less or equal", expr: op("<=", i(2), i(2)), want: "true"},
		{name: "greater", expr: op(">", i(1), i(2)), want: "false"},
		{name: "equal strings", expr: op("=", s("a"), s("a")), want: "true"},
		{name: "equal across kinds", expr: op("=", i(1), s("1")), want: "false"},
		{name: "and", expr: op("&&", ast.BoolLiteral(true), ast.BoolLiteral(false)), want: "false"},
		{name: "or", expr: op("||", ast.BoolLiteral(true), ast.BoolLiteral(false)), want: "true"},
		{name: "not", expr: op("!", ast.BoolLiteral(true)), want: "false"},
		{name: "not on I64", expr: op("!", i(1)), want: "RuntimeError: ! expects Bool, got I64"},

		{name: "Some", expr: op("Some", i(1)), want: "(Some 1)"},
		{name: "Err", expr: op("Err", s("x")), want: `(Err "x")`},
		{name: "cons onto list", expr: op("cons", i(1), list(i(2))), want: "(list 1 2)"},
		{name: "cons onto nil sentinel", expr: op("cons", i(1), &ast.Tagged{Tag: "nil"}), want: "(list 1)"},

		{name: "str.len counts code points", expr: op("str.len", s("héllo")), want: "5"},
		{name: "str.concat", expr: op("str.concat", s("ab"), s("cd")), want: `"abcd"`},
		{name: "str.get", expr: op("str.get", s("abc"), i(1)), want: "(Some 98)"},
		{name: "str.get out of range", expr: op("str.get", s("abc"), i(3)), want: "None"},
		{name: "str.substring", expr: op("str.substring", s("hello"), i(1), i(3)), want: `"el"`},
		{name: "str.substring swaps bounds", expr: op("str.substring", s("hello"), i(3), i(1)), want: `"el"`},
		{name: "str.substring clamps", expr: op("str.substring", s("hello"), i(-2), i(99)), want: `"hello"`},
		{name: "str.from_code", expr: op("str.from_code", i(65)), want: `"A"`},
		{name: "str.index_of", expr: op("str.index_of", s("hello"), s("ll")), want: "(Some 2)"},
		{name: "str.index_of missing", expr: op("str.index_of", s("hello"), s("z")), want: "None"},
		{name: "str.contains", expr: op("str.contains", s("hello"), s("ell")), want: "true"},
		{name: "str.ends_with", expr: op("str.ends_with", s("hello"), s("lo")), want: "true"},
		{name: "i64.from_string", expr: op("i64.from_string", s(" 42 ")), want: "42"},
		{name: "i64.from_string empty", expr: op("i64.from_string", s("")), want: "RuntimeError: i64.from_string: empty string"},
		{name: "i64.from_string invalid", expr: op("i64.from_string", s("4x")), want: `RuntimeError: i64.from_string: invalid integer "4x"`},
		{name: "i64.from_string leading zero is decimal", expr: op("i64.from_string", s("010")), want: "10"},
		{name: "i64.from_string leading zero nine", expr: op("i64.from_string", s("09")), want: "9"},
		{name: "i64.from_string negative", expr: op("i64.from_string", s("-12")), want: "-12"},
		{name: "i64.from_string hex", expr: op("i64.from_string", s("0x1f")), want: "31"},
		{name: "i64.from_string binary", expr: op("i64.from_string", s("0b101")), want: "5"},
		{name: "i64.from_string underscores", expr: op("i64.from_string", s("1_000")), want: `RuntimeError: i64.from_string: invalid integer "1_000"`},
		{name: "i64.from_string signed hex", expr: op("i64.from_string", s("-0x10")), want: `RuntimeError: i64.from_string: invalid integer "-0x10"`},
		{name: "i64.to_string", expr: op("i64.to_string", i(-5)), want: `"-5"`},

		{name: "list.length", expr: op("list.length", list(i(1), i(2))), want: "2"},
		{name: "list.get", expr: op("list.get", list(i(1), i(2)), i(1)), want: "(Some 2)"},
		{name: "list.get out of range", expr: op("list.get", list(i(1)), i(5)), want: "None"},
		{name: "list.concat", expr: op("list.concat", list(i(1)), list(i(2), i(3))), want: "(list 1 2 3)"},
		{name: "list.unique keeps first occurrences", expr: op("list.unique", list(i(3), i(1), i(3), i(2), i(1))), want: "(list 3 1 2)"},
		{name: "list.unique on records", expr: op("list.unique", list(rec, rec)), want: "(list (record (a 1)))"},
		{name: "list.unique on nested lists", expr: op("list.unique", list(list(i(1)), list(i(1), i(2)), list(i(1)))), want: "(list (list 1) (list 1 2))"},

		{
			name: "map.put leaves the original untouched",
			expr: let("m", op("map.put", op("map.make", s(""), i(0)), s("a"), i(1)),
				let("m2", op("map.put", v("m"), s("b"), i(2)),
					tuple(op("map.contains", v("m"), s("b")), op("map.get", v("m2"), s("b")), op("map.keys", v("m2"))))),
			want: `(tuple false (Some 2) (list "a" "b"))`,
		},
		{
			name: "map.put overwrites in place of the old key",
			expr: let("m", op("map.put", op("map.put", op("map.make", i(0), s("")), i(1), s("x")), i(1), s("y")),
				tuple(op("map.get", v("m"), i(1)), op("map.keys", v("m")))),
			want: `(tuple (Some "y") (list 1))`,
		},
		{name: "map.get missing", expr: op("map.get", op("map.make", s(""), i(0)), s("k")), want: "None"},
		{name: "map.make needs witnesses", expr: op("map.make"), want: "RuntimeError: wrong number of arguments. got=0, want=2"},

		{name: "tuple.get", expr: op("tuple.get", tuple(i(1), i(2)), i(1)), want: "2"},
		{name: "tuple.get out of bounds", expr: op("tuple.get", tuple(i(1)), i(5)), want: "RuntimeError: Tuple index out of bounds: 5"},
		{name: "record.get", expr: op("record.get", rec, s("a")), want: "1"},
		{name: "record.get missing", expr: op("record.get", rec, s("z")), want: "RuntimeError: Field z not found"},
		{name: "record.set", expr: op("record.set", rec, s("b"), i(2)), want: "(record (a 1) (b 2))"},

		{name: "unknown intrinsic", expr: op("nope"), want: "RuntimeError: Unknown intrinsic: nope"},
		{name: "wrong arity", expr: op("+", i(1)), want: "RuntimeError: wrong number of arguments. got=1, want=2"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, evalPure(t, tc.expr))
		})
	}
}

func countdown(eff effect.Effect) []ast.Definition {
	return []ast.Definition{
		fn("sum", eff, &ast.If{
			Cond: op("<=", v("n"), i(0)),
			Then: v("acc"),
			Else: call("sum", op("-", v("n"), i(1)), op("+", v("acc"), v("n"))),
		}, "n", "acc"),
		fn("depth", eff, &ast.If{
			Cond: op("<=", v("n"), i(0)),
			Then: i(0),
			Else: op("+", i(1), call("depth", op("-", v("n"), i(1)))),
		}, "n"),
	}
}

func TestTrampoline(t *testing.T) {
	t.Run("tail recursion runs in bounded stack", func(t *testing.T) {
		defs := append(countdown(effect.Pure), fn("main", effect.Pure, call("sum", i(100000), i(0))))
		got, _ := run(t, program(defs...), Options{})
		assert.Equal(t, "5000050000", got)
	})

	t.Run("non tail recursion hits the depth limit", func(t *testing.T) {
		defs := append(countdown(effect.Pure), fn("main", effect.Pure, call("depth", i(20000))))
		got, _ := run(t, program(defs...), Options{})
		assert.Contains(t, got, "Maximum recursion depth exceeded")
	})

	t.Run("shallow non tail recursion is fine", func(t *testing.T) {
		defs := append(countdown(effect.IO), fn("main", effect.IO, call("depth", i(500))))
		got, _ := run(t, program(defs...), Options{})
		assert.Equal(t, "500", got)
	})

	t.Run("suspending walker does not loop tail calls", func(t *testing.T) {
		defs := append(countdown(effect.Any), fn("main", effect.Any, call("sum", i(20000), i(0))))
		got, _ := run(t, program(defs...), Options{})
		assert.Contains(t, got, "Maximum recursion depth exceeded")
	})
}

func TestIO(t *testing.T) {
	fs := host.NewMemFS(map[string]string{"in.txt": "hello"})
	var out bytes.Buffer

	body := let("_", op("io.print", s("start")),
		let("w", op("io.write_file", s("out.txt"), s("abc")),
			let("_", op("io.print", v("w")),
				tuple(
					op("io.read_file", s("in.txt")),
					op("io.read_file", s("missing.txt")),
					op("io.file_exists", s("out.txt")),
					op("io.read_dir", s(".")),
				))))

	got, _ := run(t, program(fn("main", effect.IO, body)), Options{FS: fs, Stdout: &out})
	assert.Equal(t, `(tuple (Ok "hello") (Err "ENOENT") true (Ok (list "in.txt" "out.txt")))`, got)
	assert.Equal(t, "start\n(Ok 3)\n", out.String())

	content, ok := fs.ReadFile("out.txt")
	require.True(t, ok)
	assert.Equal(t, "abc", content)
}

func TestSysArgsAndSelf(t *testing.T) {
	got, _ := run(t, program(fn("main", effect.IO, tuple(op("sys.self"), op("sys.args")))), Options{Args: []string{"a", "b"}})
	assert.Equal(t, `(tuple 1 (list "a" "b"))`, got)
}

func TestPingPong(t *testing.T) {
	worker := fn("worker", effect.Any,
		let("msg", op("sys.recv"),
			let("_", op("io.print", op("str.concat", s("Worker received: "), v("msg"))),
				let("p", op("sys.send", i(1), s("Pong")), i(0)))))
	main := fn("main", effect.Any,
		let("myself", op("sys.self"),
			let("child", op("sys.spawn", s("worker")),
				let("_", op("io.print", s("Main spawned worker")),
					let("sent", op("sys.send", v("child"), s("Ping")),
						let("reply", op("sys.recv"),
							let("_", op("io.print", op("str.concat", s("Main received: "), v("reply"))), i(0))))))))

	var out bytes.Buffer
	got, rt := run(t, program(worker, main), Options{Stdout: &out})
	assert.Equal(t, "0", got)
	assert.Equal(t, "Main spawned worker\nWorker received: Ping\nMain received: Pong\n", out.String())

	procs := rt.Processes()
	require.Len(t, procs, 2)
	assert.Equal(t, process.Completed, procs[0].State)
	assert.Equal(t, process.Completed, procs[1].State)
	assert.Equal(t, process.Pid(1), procs[1].Parent)
	assert.Equal(t, "worker", procs[1].Function)
}

func TestRecvReturnsEachMessageOnce(t *testing.T) {
	child := fn("child", effect.IO, op("sys.send", i(1), s("hi")))
	main := fn("main", effect.Any,
		let("c", op("sys.spawn", s("child")),
			let("m", op("sys.recv"),
				let("_", op("io.print", v("m")),
					op("sys.recv")))))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	var out bytes.Buffer
	rt, err := NewRuntime(Options{Stdout: &out})
	require.NoError(t, err)

	_, err = rt.Run(ctx, program(child, main))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "hi\n", out.String())
}

func TestSpawnedCrashIsIsolated(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := logger.NewWithCore("test", core)

	bad := fn("bad", effect.IO, let("_", op("sys.send", i(1), s("about to fail")), op("/", i(1), i(0))))
	main := fn("main", effect.Any,
		let("c", op("sys.spawn", s("bad")),
			let("m", op("sys.recv"), v("m"))))

	got, rt := run(t, program(bad, main), Options{Logger: log})
	assert.Equal(t, `"about to fail"`, got)

	crashed := logs.FilterMessage("Process 2 crashed: RuntimeError: Division by zero").All()
	assert.Len(t, crashed, 1)

	info, ok := rt.registry.Table().Get(2)
	require.True(t, ok)
	assert.Equal(t, process.Crashed, info.State)
	assert.Contains(t, info.Reason, "Division by zero")
}

func TestSpawnUnknownFunctionCrashesChildOnly(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	main := fn("main", effect.Any,
		let("c", op("sys.spawn", s("ghost")),
			let("_", op("sys.sleep", i(20)), v("c"))))

	got, _ := run(t, program(main), Options{Logger: logger.NewWithCore("test", core)})
	assert.Equal(t, "2", got)
	assert.Len(t, logs.FilterMessage("Process 2 crashed: RuntimeError: Unknown function: ghost").All(), 1)
}

func TestSpawnedProcessesOutliveMain(t *testing.T) {
	worker := fn("worker", effect.IO, op("io.print", s("worker ran")))
	main := fn("main", effect.IO, let("c", op("sys.spawn", s("worker")), i(1)))

	var out bytes.Buffer
	got, rt := run(t, program(worker, main), Options{Stdout: &out})
	assert.Equal(t, "1", got)
	assert.Equal(t, "worker ran\n", out.String())

	info, ok := rt.registry.Table().Get(2)
	require.True(t, ok)
	assert.Equal(t, process.Completed, info.State)
	assert.Empty(t, info.Reason)
}

func TestWaitsForSleepingChildren(t *testing.T) {
	child := fn("child", effect.Any,
		let("_", op("sys.sleep", i(20)),
			let("g", op("sys.spawn", s("grandchild")), i(0))))
	grandchild := fn("grandchild", effect.IO, op("io.print", s("grandchild ran")))
	main := fn("main", effect.Any, op("sys.spawn", s("child")))

	var out bytes.Buffer
	got, rt := run(t, program(child, grandchild, main), Options{Stdout: &out})
	assert.Equal(t, "2", got)
	assert.Equal(t, "grandchild ran\n", out.String())
	assert.Len(t, rt.Processes(), 3)
}

func TestAbandonedReceiversAreCancelled(t *testing.T) {
	waiter := fn("waiter", effect.Any, op("sys.recv"))
	main := fn("main", effect.IO, let("c", op("sys.spawn", s("waiter")), i(7)))

	got, rt := run(t, program(waiter, main), Options{})
	assert.Equal(t, "7", got)

	info, ok := rt.registry.Table().Get(2)
	require.True(t, ok)
	assert.Equal(t, process.Completed, info.State)
	assert.Contains(t, info.Reason, "context canceled")
}

func TestSendToUnknownPid(t *testing.T) {
	assert.Equal(t, "false", evalPure(t, op("sys.send", i(42), s("x"))))
}

func TestNetworkServer(t *testing.T) {
	netw := &host.MockNetwork{Request: "GET /hello HTTP/1.1\r\nHost: x\r\n\r\n"}

	body := unwrap(op("net.listen", i(8080)), "srv",
		unwrap(op("net.accept", v("srv")), "conn",
			unwrap(op("net.read", v("conn")), "raw",
				unwrap(op("http.parse_request", v("raw")), "req",
					let("_", op("net.write", v("conn"), op("str.concat", s("HTTP/1.1 200 OK\r\n\r\n"), v("req.path"))),
						op("net.close", v("conn")))))))

	got, _ := run(t, program(fn("main", effect.Net, body)), Options{Net: netw})
	assert.Equal(t, "(Ok true)", got)
	assert.Equal(t, []string{"HTTP/1.1 200 OK\r\n\r\n/hello"}, netw.Written())
}

func TestNetworkFailuresAreValues(t *testing.T) {
	type testCase struct {
		name string
		expr ast.Expr
		want string
	}

	testCases := []testCase{
		{name: "listen", expr: op("net.listen", i(80)), want: `(Err "Listen failed")`},
		{name: "accept", expr: op("net.accept", i(1)), want: `(Err "Accept failed")`},
		{name: "read", expr: op("net.read", i(1)), want: `(Err "Read failed")`},
		{name: "write", expr: op("net.write", i(1), s("x")), want: `(Err "Write failed")`},
		{name: "close", expr: op("net.close", i(1)), want: `(Err "Close failed")`},
		{name: "connect", expr: op("net.connect", s("localhost"), i(1)), want: `(Err "Connect failed")`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := run(t, program(fn("main", effect.Net, tc.expr)), Options{Net: &host.MockNetwork{Fail: true}})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHTTPFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Method", r.Method)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, "hello")
	}))
	defer srv.Close()

	body := unwrap(op("http.post", s(srv.URL), s("payload")), "r", tuple(v("r.status"), v("r.body")))
	got, _ := run(t, program(fn("main", effect.Net, body)), Options{HTTP: srv.Client()})
	assert.Equal(t, `(tuple 201 "hello")`, got)

	failed, _ := run(t, program(fn("main", effect.Net, op("http.get", s("http://127.0.0.1:1/")))), Options{})
	assert.Equal(t, `(Err "Fetch failed")`, failed)
}

func TestParseHTTP(t *testing.T) {
	type testCase struct {
		name  string
		parse func(string) string
		in    string
		want  string
	}

	req := func(s string) string { return ParseRequest(s).Inspect() }
	res := func(s string) string { return ParseResponse(s).Inspect() }

	testCases := []testCase{
		{
			name:  "request with headers and body",
			parse: req,
			in:    "POST /api HTTP/1.1\r\nHost: example.com\r\nbroken line\r\nX-A :  1 \r\n\r\nbody",
			want:  `(Ok (record (body "body") (headers (list (record (key "Host") (val "example.com")) (record (key "X-A") (val "1")))) (method "POST") (path "/api")))`,
		},
		{
			name:  "request line too short",
			parse: req,
			in:    "GET /\r\n\r\n",
			want:  `(Err "Invalid request line")`,
		},
		{
			name:  "empty request",
			parse: req,
			in:    "",
			want:  `(Err "Empty request")`,
		},
		{
			name:  "body keeps later blank lines",
			parse: req,
			in:    "GET / HTTP/1.1\n\na\n\nb",
			want:  `(Ok (record (body "a\n\nb") (headers (list)) (method "GET") (path "/")))`,
		},
		{
			name:  "response",
			parse: res,
			in:    "HTTP/1.1 200 OK\r\nX-Test: 1\r\n\r\nBody",
			want:  `(Ok (record (body "Body") (headers (list (record (key "X-Test") (val "1")))) (status 200) (version "HTTP/1.1")))`,
		},
		{
			name:  "status line too short",
			parse: res,
			in:    "HTTP/1.1\r\n\r\n",
			want:  `(Err "Invalid status line")`,
		},
		{
			name:  "status not a number",
			parse: res,
			in:    "HTTP/1.1 OK\r\n\r\n",
			want:  `(Err "Invalid status code")`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.parse(tc.in))
		})
	}
}

func TestTools(t *testing.T) {
	tool := &ast.DefTool{Name: "double", Args: []*ast.Arg{{Name: "n", Type: ast.I64}}, Ret: ast.I64, Eff: effect.Net}
	p := program(tool, fn("main", effect.Net, call("double", i(21))))

	registry := host.NewToolRegistry()
	registry.RegisterFunc("double", func(args ...interface{}) (interface{}, error) {
		return args[0].(int64) * 2, nil
	})

	got, _ := run(t, p, Options{Tools: registry})
	assert.Equal(t, "42", got)

	got, _ = run(t, p, Options{})
	assert.Equal(t, "RuntimeError: Tool not implemented: double", got)

	got, _ = run(t, p, Options{Tools: host.NewToolRegistry()})
	assert.Equal(t, "RuntimeError: Tool not found: double", got)

	failing := host.NewToolRegistry()
	failing.RegisterFunc("double", func(args ...interface{}) (interface{}, error) {
		return nil, fmt.Errorf("quota exceeded")
	})
	got, _ = run(t, p, Options{Tools: failing})
	assert.Equal(t, "RuntimeError: Tool double failed: quota exceeded", got)
}

func TestQualifiedCalls(t *testing.T) {
	lib := &ast.Program{
		Module: ast.ModuleInfo{Name: "lib", Version: "1.0.0"},
		Defs: []ast.Definition{
			&ast.DefConst{Name: "base", Type: ast.I64, Value: i(10)},
			fn("addBase", effect.Pure, op("+", v("x"), v("base")), "x"),
			fn("who", effect.IO, op("sys.self")),
		},
	}
	resolver := ast.MapResolver{"lib": lib}

	type testCase struct {
		name string
		body ast.Expr
		want string
	}

	testCases := []testCase{
		{name: "exported function sees its own constants", body: call("m.addBase", i(5)), want: "15"},
		{name: "sibling runs as the calling process", body: call("m.who"), want: "1"},
		{name: "unknown export", body: call("m.nope"), want: "RuntimeError: Unknown function: m.nope"},
		{name: "unknown alias", body: call("x.addBase", i(1)), want: "RuntimeError: Unknown function: x.addBase"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := program(fn("main", effect.IO, tc.body))
			p.Imports = []*ast.Import{{Path: "lib", Alias: "m"}}
			got, _ := run(t, p, Options{Resolver: resolver})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRuntimeIsSingleUse(t *testing.T) {
	rt, err := NewRuntime(Options{Stdout: &bytes.Buffer{}})
	require.NoError(t, err)
	p := program(fn("main", effect.Pure, i(1)))

	_, err = rt.Run(context.Background(), p)
	require.NoError(t, err)
	_, err = rt.Run(context.Background(), p)
	assert.Error(t, err)
}
