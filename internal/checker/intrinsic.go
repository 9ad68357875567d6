package checker

import (
	"iris/internal/ast"
	"iris/internal/effect"
)

// intrinsicCall is one application of an intrinsic: the argument
// expressions, their inferred types and the context's expected type.
type intrinsicCall struct {
	op       string
	args     []ast.Expr
	types    []ast.Type
	expected ast.Type
}

type intrinsicRule struct {
	eff   effect.Effect
	check func(c *Checker, in *intrinsicCall) (ast.Type, error)
}

var intrinsics map[string]intrinsicRule

func init() {
	intrinsics = map[string]intrinsicRule{
		// arithmetic
		"+": {effect.Pure, ruleArith},
		"-": {effect.Pure, ruleArith},
		"*": {effect.Pure, ruleArith},
		"/": {effect.Pure, ruleArith},
		"%": {effect.Pure, ruleArith},

		// comparison
		"<":  {effect.Pure, ruleOrder},
		"<=": {effect.Pure, ruleOrder},
		">":  {effect.Pure, ruleOrder},
		">=": {effect.Pure, ruleOrder},
		"=":  {effect.Pure, ruleEquals},

		// boolean
		"&&": {effect.Pure, ruleLogic},
		"||": {effect.Pure, ruleLogic},
		"!":  {effect.Pure, ruleNot},

		// constructors
		"Some": {effect.Pure, ruleSome},
		"Ok":   {effect.Pure, ruleOk},
		"Err":  {effect.Pure, ruleErr},
		"cons": {effect.Pure, ruleCons},

		// strings
		"str.len":       {effect.Pure, signature(ast.I64, ast.Str)},
		"str.concat":    {effect.Pure, signature(ast.Str, ast.Str, ast.Str)},
		"str.contains":  {effect.Pure, signature(ast.Bool, ast.Str, ast.Str)},
		"str.ends_with": {effect.Pure, signature(ast.Bool, ast.Str, ast.Str)},
		"str.get":       {effect.Pure, signature(optionOf(ast.I64), ast.Str, ast.I64)},
		"str.substring": {effect.Pure, signature(ast.Str, ast.Str, ast.I64, ast.I64)},
		"str.from_code": {effect.Pure, signature(ast.Str, ast.I64)},
		"str.index_of":  {effect.Pure, signature(optionOf(ast.I64), ast.Str, ast.Str)},

		"i64.from_string": {effect.Pure, signature(ast.I64, ast.Str)},
		"i64.to_string":   {effect.Pure, signature(ast.Str, ast.I64)},

		// lists
		"list.length": {effect.Pure, ruleListLength},
		"list.get":    {effect.Pure, ruleListGet},
		"list.concat": {effect.Pure, ruleListConcat},
		"list.unique": {effect.Pure, ruleListUnique},

		// maps
		"map.make":     {effect.Pure, ruleMapMake},
		"map.put":      {effect.Pure, ruleMapPut},
		"map.get":      {effect.Pure, ruleMapGet},
		"map.contains": {effect.Pure, ruleMapContains},
		"map.keys":     {effect.Pure, ruleMapKeys},

		// tuples and records
		"tuple.get":  {effect.Pure, ruleTupleGet},
		"record.get": {effect.Pure, ruleRecordGet},
		"record.set": {effect.Pure, ruleRecordSet},

		// io
		"io.read_file":   {effect.IO, signature(resultOf(ast.Str), ast.Str)},
		"io.write_file":  {effect.IO, signature(resultOf(ast.I64), ast.Str, ast.Str)},
		"io.file_exists": {effect.IO, signature(ast.Bool, ast.Str)},
		"io.read_dir":    {effect.IO, signature(resultOf(&ast.ListType{Inner: ast.Str}), ast.Str)},
		"io.print":       {effect.IO, rulePrint},

		// processes
		"sys.self":  {effect.IO, signature(ast.I64)},
		"sys.args":  {effect.IO, signature(&ast.ListType{Inner: ast.Str})},
		"sys.spawn": {effect.IO, signature(ast.I64, ast.Str)},
		"sys.send":  {effect.IO, signature(ast.Bool, ast.I64, ast.Str)},
		"sys.recv":  {effect.IO, signature(ast.Str)},
		"sys.sleep": {effect.IO, signature(ast.Bool, ast.I64)},
		"rand.u64":  {effect.IO, signature(ast.I64)},

		// network
		"net.listen":  {effect.Net, signature(resultOf(ast.I64), ast.I64)},
		"net.accept":  {effect.Net, signature(resultOf(ast.I64), ast.I64)},
		"net.read":    {effect.Net, signature(resultOf(ast.Str), ast.I64)},
		"net.write":   {effect.Net, signature(resultOf(ast.I64), ast.I64, ast.Str)},
		"net.close":   {effect.Net, signature(resultOf(ast.Bool), ast.I64)},
		"net.connect": {effect.Net, signature(resultOf(ast.I64), ast.Str, ast.I64)},

		// http
		"http.parse_request":  {effect.Pure, signature(resultOf(HTTPRequestType), ast.Str)},
		"http.parse_response": {effect.Pure, signature(resultOf(HTTPResponseType), ast.Str)},
		"http.get":            {effect.Net, signature(resultOf(HTTPResponseType), ast.Str)},
		"http.post":           {effect.Net, signature(resultOf(HTTPResponseType), ast.Str, ast.Str)},
	}
}

// HTTPHeaderType is the record type of one parsed header line.
var HTTPHeaderType = &ast.RecordType{Fields: map[string]ast.Type{"key": ast.Str, "val": ast.Str}}

// HTTPRequestType is the Ok payload of http.parse_request.
var HTTPRequestType = &ast.RecordType{Fields: map[string]ast.Type{
	"method":  ast.Str,
	"path":    ast.Str,
	"headers": &ast.ListType{Inner: HTTPHeaderType},
	"body":    ast.Str,
}}

// HTTPResponseType is the Ok payload of http.parse_response, http.get and
// http.post.
var HTTPResponseType = &ast.RecordType{Fields: map[string]ast.Type{
	"version": ast.Str,
	"status":  ast.I64,
	"headers": &ast.ListType{Inner: HTTPHeaderType},
	"body":    ast.Str,
}}

// IsIntrinsic reports whether op names a built-in operation.
func IsIntrinsic(op string) bool {
	_, ok := intrinsics[op]
	return ok
}

func optionOf(t ast.Type) ast.Type { return &ast.OptionType{Inner: t} }

func resultOf(ok ast.Type) ast.Type { return &ast.ResultType{Ok: ok, Err: ast.Str} }

func (c *Checker) checkIntrinsic(op string, args []ast.Expr, env *scope, expected ast.Type) (ast.Type, effect.Effect, error) {
	rule, ok := intrinsics[op]
	if !ok {
		return nil, effect.Pure, typeErrorf("Unknown intrinsic: %s", op)
	}
	hints := c.argHints(op, expected)

	in := &intrinsicCall{op: op, args: args, expected: expected}
	eff := effect.Pure
	for i, arg := range args {
		var hint ast.Type
		if i < len(hints) {
			hint = hints[i]
		}
		t, aeff, err := c.checkExpr(arg, env, hint)
		if err != nil {
			return nil, aeff, err
		}
		in.types = append(in.types, t)
		eff = effect.Join(eff, aeff)
	}
	t, err := rule.check(c, in)
	if err != nil {
		return nil, eff, err
	}
	return t, effect.Join(eff, rule.eff), nil
}

// argHints pushes the expected type into constructor arguments.
func (c *Checker) argHints(op string, expected ast.Type) []ast.Type {
	if expected == nil {
		return nil
	}
	switch t := c.resolve(expected).(type) {
	case *ast.ResultType:
		switch op {
		case "Ok":
			return []ast.Type{t.Ok}
		case "Err":
			return []ast.Type{t.Err}
		}
	case *ast.OptionType:
		if op == "Some" {
			return []ast.Type{t.Inner}
		}
	case *ast.ListType:
		if op == "cons" {
			return []ast.Type{t.Inner, expected}
		}
	}
	return nil
}

func (in *intrinsicCall) arity(n int) error {
	if len(in.types) != n {
		plural := "arguments"
		if n == 1 {
			plural = "argument"
		}
		return typeErrorf("%s expects %d %s", in.op, n, plural)
	}
	return nil
}

// kind resolves the i-th argument type through the alias table.
func (c *Checker) kind(in *intrinsicCall, i int) ast.Type {
	return c.resolve(in.types[i])
}

func (c *Checker) is(in *intrinsicCall, i int, want ast.Type) bool {
	return c.typesEqual(want, in.types[i])
}

// signature builds a rule for a monomorphic intrinsic.
func signature(ret ast.Type, params ...ast.Type) func(*Checker, *intrinsicCall) (ast.Type, error) {
	return func(c *Checker, in *intrinsicCall) (ast.Type, error) {
		if err := in.arity(len(params)); err != nil {
			return nil, err
		}
		for i, p := range params {
			if !c.is(in, i, p) {
				return nil, typeErrorf("%s argument %d: Expected %s, got %s", in.op, i+1, p, in.types[i])
			}
		}
		return ret, nil
	}
}

func ruleArith(c *Checker, in *intrinsicCall) (ast.Type, error) {
	for i := range in.types {
		if !c.is(in, i, ast.I64) {
			return nil, typeErrorf("Type Error in %s operand %d: Expected I64, got %s", in.op, i+1, in.types[i])
		}
	}
	if len(in.types) != 2 {
		return nil, typeErrorf("%s expects 2 operands", in.op)
	}
	return ast.I64, nil
}

func ruleOrder(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if len(in.types) != 2 {
		return nil, typeErrorf("%s expects 2 operands", in.op)
	}
	for i := range in.types {
		if !c.is(in, i, ast.I64) {
			return nil, typeErrorf("Type Error in %s operand %d: Expected I64, got %s", in.op, i+1, in.types[i])
		}
	}
	return ast.Bool, nil
}

func ruleEquals(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if len(in.types) != 2 {
		return nil, typeErrorf("= expects 2 operands")
	}
	if err := c.expect(in.types[0], in.types[1], "Type Error in ="); err != nil {
		return nil, err
	}
	return ast.Bool, nil
}

func ruleLogic(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if err := in.arity(2); err != nil {
		return nil, err
	}
	for i := range in.types {
		if !c.is(in, i, ast.Bool) {
			return nil, typeErrorf("Expected Bool for %s", in.op)
		}
	}
	return ast.Bool, nil
}

func ruleNot(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if len(in.types) != 1 || !c.is(in, 0, ast.Bool) {
		return nil, typeErrorf("! expects 1 Bool")
	}
	return ast.Bool, nil
}

func ruleSome(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if err := in.arity(1); err != nil {
		return nil, err
	}
	return &ast.OptionType{Inner: in.types[0]}, nil
}

func ruleOk(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if err := in.arity(1); err != nil {
		return nil, err
	}
	var errType ast.Type = ast.Str
	if rt, ok := c.expectedResult(in); ok {
		errType = rt.Err
	}
	return &ast.ResultType{Ok: in.types[0], Err: errType}, nil
}

func ruleErr(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if err := in.arity(1); err != nil {
		return nil, err
	}
	var okType ast.Type = ast.I64
	if rt, ok := c.expectedResult(in); ok {
		okType = rt.Ok
	}
	return &ast.ResultType{Ok: okType, Err: in.types[0]}, nil
}

func (c *Checker) expectedResult(in *intrinsicCall) (*ast.ResultType, bool) {
	if in.expected == nil {
		return nil, false
	}
	rt, ok := c.resolve(in.expected).(*ast.ResultType)
	return rt, ok
}

func ruleCons(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if err := in.arity(2); err != nil {
		return nil, err
	}
	list := &ast.ListType{Inner: in.types[0]}
	if _, ok := c.kind(in, 1).(*ast.ListType); ok {
		if err := c.expect(list, in.types[1], "cons tail mismatch"); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func rulePrint(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if err := in.arity(1); err != nil {
		return nil, err
	}
	return ast.I64, nil
}

func (c *Checker) listArg(in *intrinsicCall, i int) (*ast.ListType, error) {
	lt, ok := c.kind(in, i).(*ast.ListType)
	if !ok {
		return nil, typeErrorf("%s expects List", in.op)
	}
	return lt, nil
}

func ruleListLength(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if err := in.arity(1); err != nil {
		return nil, err
	}
	if _, err := c.listArg(in, 0); err != nil {
		return nil, err
	}
	return ast.I64, nil
}

func ruleListGet(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if err := in.arity(2); err != nil {
		return nil, err
	}
	lt, err := c.listArg(in, 0)
	if err != nil {
		return nil, err
	}
	if !c.is(in, 1, ast.I64) {
		return nil, typeErrorf("list.get expects I64 index")
	}
	return &ast.OptionType{Inner: lt.Inner}, nil
}

func ruleListConcat(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if err := in.arity(2); err != nil {
		return nil, err
	}
	_, err1 := c.listArg(in, 0)
	_, err2 := c.listArg(in, 1)
	if err1 != nil || err2 != nil {
		return nil, typeErrorf("list.concat expects two Lists")
	}
	if err := c.expect(in.types[0], in.types[1], "list.concat element mismatch"); err != nil {
		return nil, err
	}
	return in.types[0], nil
}

func ruleListUnique(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if err := in.arity(1); err != nil {
		return nil, err
	}
	if _, err := c.listArg(in, 0); err != nil {
		return nil, err
	}
	return in.types[0], nil
}

func (c *Checker) mapArg(in *intrinsicCall) (*ast.MapType, error) {
	mt, ok := c.kind(in, 0).(*ast.MapType)
	if !ok {
		return nil, typeErrorf("%s expects Map as first arg", in.op)
	}
	return mt, nil
}

// ruleMapMake takes a key and a value witness; only their types matter.
func ruleMapMake(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if len(in.types) != 2 {
		return nil, typeErrorf("map.make expects 2 arguments (key_witness, value_witness)")
	}
	if in.expected != nil {
		if _, ok := c.resolve(in.expected).(*ast.MapType); ok {
			return in.expected, nil
		}
	}
	return &ast.MapType{Key: in.types[0], Value: in.types[1]}, nil
}

func ruleMapPut(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if len(in.types) != 3 {
		return nil, typeErrorf("map.put expects 3 args (map, key, value)")
	}
	mt, err := c.mapArg(in)
	if err != nil {
		return nil, err
	}
	if err := c.expect(mt.Key, in.types[1], "map.put key mismatch"); err != nil {
		return nil, err
	}
	if err := c.expect(mt.Value, in.types[2], "map.put value mismatch"); err != nil {
		return nil, err
	}
	return in.types[0], nil
}

func ruleMapGet(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if len(in.types) != 2 {
		return nil, typeErrorf("map.get expects 2 args (map, key)")
	}
	mt, err := c.mapArg(in)
	if err != nil {
		return nil, err
	}
	if err := c.expect(mt.Key, in.types[1], "map.get key mismatch"); err != nil {
		return nil, err
	}
	return &ast.OptionType{Inner: mt.Value}, nil
}

func ruleMapContains(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if len(in.types) != 2 {
		return nil, typeErrorf("map.contains expects 2 args (map, key)")
	}
	mt, err := c.mapArg(in)
	if err != nil {
		return nil, err
	}
	if err := c.expect(mt.Key, in.types[1], "map.contains key mismatch"); err != nil {
		return nil, err
	}
	return ast.Bool, nil
}

func ruleMapKeys(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if len(in.types) != 1 {
		return nil, typeErrorf("map.keys expects 1 arg (map)")
	}
	mt, err := c.mapArg(in)
	if err != nil {
		return nil, err
	}
	return &ast.ListType{Inner: mt.Key}, nil
}

func ruleTupleGet(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if len(in.types) != 2 {
		return nil, typeErrorf("tuple.get expects 2 args (tuple, index)")
	}
	tt, ok := c.kind(in, 0).(*ast.TupleType)
	if !ok {
		return nil, typeErrorf("tuple.get expects Tuple")
	}
	if !c.is(in, 1, ast.I64) {
		return nil, typeErrorf("tuple.get expects I64 index")
	}
	idx, ok := ast.AsIntLiteral(in.args[1])
	if !ok {
		return nil, typeErrorf("tuple.get requires literal index for type safety")
	}
	if !idx.IsInt64() || idx.Int64() < 0 || idx.Int64() >= int64(len(tt.Items)) {
		return nil, typeErrorf("Tuple index out of bounds: %s", idx.String())
	}
	return tt.Items[idx.Int64()], nil
}

func ruleRecordGet(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if len(in.types) != 2 {
		return nil, typeErrorf("record.get expects 2 args")
	}
	key, literal := ast.AsStrLiteral(in.args[1])
	rt, ok := c.kind(in, 0).(*ast.RecordType)
	if !ok {
		field := "field"
		if literal {
			field = key
		}
		if v, isVar := in.args[0].(*ast.Var); isVar {
			return nil, typeErrorf("Cannot access field %s of non-record %s", field, v.Name)
		}
		return nil, typeErrorf("Cannot access field %s of non-record", field)
	}
	if !c.is(in, 1, ast.Str) {
		return nil, typeErrorf("record.get expects Str key")
	}
	if !literal {
		return nil, typeErrorf("record.get requires literal string key")
	}
	ft, ok := rt.Fields[key]
	if !ok {
		return nil, typeErrorf("Unknown field %s in record", key)
	}
	return ft, nil
}

func ruleRecordSet(c *Checker, in *intrinsicCall) (ast.Type, error) {
	if len(in.types) != 3 {
		return nil, typeErrorf("record.set expects 3 args (record, key, value)")
	}
	rt, ok := c.kind(in, 0).(*ast.RecordType)
	if !ok {
		return nil, typeErrorf("record.set expects Record")
	}
	if !c.is(in, 1, ast.Str) {
		return nil, typeErrorf("record.set expects Str key")
	}
	key, literal := ast.AsStrLiteral(in.args[1])
	if !literal {
		return nil, typeErrorf("record.set requires literal string key")
	}
	ft, ok := rt.Fields[key]
	if !ok {
		return nil, typeErrorf("Unknown field %s in record", key)
	}
	if err := c.expect(ft, in.types[2], "record.set value mismatch for '"+key+"'"); err != nil {
		return nil, err
	}
	return in.types[0], nil
}
