package ast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	"iris/internal/effect"
)

// The JSON interchange format is what external front ends emit after
// parsing surface syntax. Nodes carry a "kind" discriminator, types a
// "type" discriminator.

type rawNode map[string]json.RawMessage

// DecodeProgram reads a program in the JSON interchange format.
func DecodeProgram(data []byte) (*Program, error) {
	var raw rawNode
	if err := unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	p := &Program{}
	if m, ok := raw["module"]; ok {
		var mod struct {
			Name    string          `json:"name"`
			Version json.RawMessage `json:"version"`
		}
		if err := unmarshal(m, &mod); err != nil {
			return nil, fmt.Errorf("module: %w", err)
		}
		p.Module.Name = mod.Name
		v, err := decodeVersion(mod.Version)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", mod.Name, err)
		}
		p.Module.Version = v
	}
	if imps, ok := raw["imports"]; ok {
		var list []*Import
		var rawList []struct {
			Path    string `json:"path"`
			Alias   string `json:"alias"`
			Version string `json:"version"`
		}
		if err := unmarshal(imps, &rawList); err != nil {
			return nil, fmt.Errorf("imports: %w", err)
		}
		for _, imp := range rawList {
			list = append(list, &Import{Path: imp.Path, Alias: imp.Alias, Version: imp.Version})
		}
		p.Imports = list
	}
	var defs []json.RawMessage
	if d, ok := raw["defs"]; ok {
		if err := unmarshal(d, &defs); err != nil {
			return nil, fmt.Errorf("defs: %w", err)
		}
	}
	for i, d := range defs {
		def, err := decodeDef(d)
		if err != nil {
			return nil, fmt.Errorf("def %d: %w", i, err)
		}
		p.Defs = append(p.Defs, def)
	}
	return p, nil
}

func unmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func decodeVersion(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "0.0.0", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("version: %w", err)
	}
	return n.String() + ".0.0", nil
}

func str(n rawNode, key string) (string, error) {
	raw, ok := n[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("field %q: %w", key, err)
	}
	return s, nil
}

func optStr(n rawNode, key string) string {
	s, _ := str(n, key)
	return s
}

func decodeEffect(n rawNode) (effect.Effect, error) {
	s, err := str(n, "eff")
	if err != nil {
		return effect.Pure, err
	}
	return effect.Parse(s)
}

func decodeDef(data json.RawMessage) (Definition, error) {
	var n rawNode
	if err := unmarshal(data, &n); err != nil {
		return nil, err
	}
	kind, err := str(n, "kind")
	if err != nil {
		return nil, err
	}
	name, err := str(n, "name")
	if err != nil {
		return nil, err
	}
	switch kind {
	case "DefConst":
		t, err := decodeTypeField(n, "type")
		if err != nil {
			return nil, err
		}
		v, err := decodeExprField(n, "value")
		if err != nil {
			return nil, err
		}
		return &DefConst{Name: name, Type: t, Value: v, Doc: optStr(n, "doc")}, nil
	case "TypeDef":
		t, err := decodeTypeField(n, "type")
		if err != nil {
			return nil, err
		}
		return &TypeDef{Name: name, Type: t, Doc: optStr(n, "doc")}, nil
	case "DefFn", "DefTool":
		args, err := decodeArgs(n)
		if err != nil {
			return nil, err
		}
		ret, err := decodeTypeField(n, "ret")
		if err != nil {
			return nil, err
		}
		eff, err := decodeEffect(n)
		if err != nil {
			return nil, err
		}
		req, err := decodeOptExpr(n, "requires")
		if err != nil {
			return nil, err
		}
		ens, err := decodeOptExpr(n, "ensures")
		if err != nil {
			return nil, err
		}
		var caps []string
		if c, ok := n["caps"]; ok {
			if err := json.Unmarshal(c, &caps); err != nil {
				return nil, fmt.Errorf("caps: %w", err)
			}
		}
		if kind == "DefTool" {
			return &DefTool{Name: name, Args: args, Ret: ret, Eff: eff, Doc: optStr(n, "doc"), Requires: req, Ensures: ens, Caps: caps}, nil
		}
		body, err := decodeExprField(n, "body")
		if err != nil {
			return nil, err
		}
		return &DefFn{Name: name, Args: args, Ret: ret, Eff: eff, Body: body, Doc: optStr(n, "doc"), Requires: req, Ensures: ens, Caps: caps}, nil
	}
	return nil, fmt.Errorf("unknown definition kind %q", kind)
}

func decodeArgs(n rawNode) ([]*Arg, error) {
	var raws []rawNode
	if a, ok := n["args"]; ok {
		if err := unmarshal(a, &raws); err != nil {
			return nil, fmt.Errorf("args: %w", err)
		}
	}
	args := make([]*Arg, 0, len(raws))
	for _, r := range raws {
		name, err := str(r, "name")
		if err != nil {
			return nil, err
		}
		t, err := decodeTypeField(r, "type")
		if err != nil {
			return nil, fmt.Errorf("arg %s: %w", name, err)
		}
		args = append(args, &Arg{Name: name, Type: t})
	}
	return args, nil
}

func decodeTypeField(n rawNode, key string) (Type, error) {
	raw, ok := n[key]
	if !ok {
		return nil, fmt.Errorf("missing type field %q", key)
	}
	return decodeType(raw)
}

func decodeType(data json.RawMessage) (Type, error) {
	var n rawNode
	if err := unmarshal(data, &n); err != nil {
		return nil, err
	}
	tag, err := str(n, "type")
	if err != nil {
		return nil, err
	}
	switch tag {
	case "I64":
		return I64, nil
	case "Bool":
		return Bool, nil
	case "Str":
		return Str, nil
	case "Named":
		name, err := str(n, "name")
		if err != nil {
			return nil, err
		}
		return &NamedType{Name: name}, nil
	case "Option":
		inner, err := decodeTypeField(n, "inner")
		if err != nil {
			return nil, err
		}
		return &OptionType{Inner: inner}, nil
	case "List":
		inner, err := decodeTypeField(n, "inner")
		if err != nil {
			return nil, err
		}
		return &ListType{Inner: inner}, nil
	case "Result":
		ok, err := decodeTypeField(n, "ok")
		if err != nil {
			return nil, err
		}
		e, err := decodeTypeField(n, "err")
		if err != nil {
			return nil, err
		}
		return &ResultType{Ok: ok, Err: e}, nil
	case "Map":
		k, err := decodeTypeField(n, "key")
		if err != nil {
			return nil, err
		}
		v, err := decodeTypeField(n, "value")
		if err != nil {
			return nil, err
		}
		return &MapType{Key: k, Value: v}, nil
	case "Tuple":
		var raws []json.RawMessage
		if err := unmarshal(n["items"], &raws); err != nil {
			return nil, fmt.Errorf("tuple items: %w", err)
		}
		tt := &TupleType{Items: make([]Type, 0, len(raws))}
		for _, r := range raws {
			it, err := decodeType(r)
			if err != nil {
				return nil, err
			}
			tt.Items = append(tt.Items, it)
		}
		return tt, nil
	case "Record", "Union":
		field := "fields"
		if tag == "Union" {
			field = "variants"
		}
		var raws map[string]json.RawMessage
		if err := unmarshal(n[field], &raws); err != nil {
			return nil, fmt.Errorf("%s %s: %w", tag, field, err)
		}
		table := make(map[string]Type, len(raws))
		for k, r := range raws {
			t, err := decodeType(r)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			table[k] = t
		}
		if tag == "Union" {
			return &UnionType{Variants: table}, nil
		}
		return &RecordType{Fields: table}, nil
	case "Fn":
		var raws []json.RawMessage
		if err := unmarshal(n["args"], &raws); err != nil {
			return nil, fmt.Errorf("fn args: %w", err)
		}
		ft := &FnType{}
		for _, r := range raws {
			a, err := decodeType(r)
			if err != nil {
				return nil, err
			}
			ft.Args = append(ft.Args, a)
		}
		if ft.Ret, err = decodeTypeField(n, "ret"); err != nil {
			return nil, err
		}
		if ft.Eff, err = decodeEffect(n); err != nil {
			return nil, err
		}
		return ft, nil
	}
	return nil, fmt.Errorf("unknown type %q", tag)
}

func decodeExprField(n rawNode, key string) (Expr, error) {
	raw, ok := n[key]
	if !ok {
		return nil, fmt.Errorf("missing expression field %q", key)
	}
	return decodeExpr(raw)
}

func decodeOptExpr(n rawNode, key string) (Expr, error) {
	raw, ok := n[key]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	return decodeExpr(raw)
}

func decodeExprs(raw json.RawMessage) ([]Expr, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var raws []json.RawMessage
	if err := unmarshal(raw, &raws); err != nil {
		return nil, err
	}
	out := make([]Expr, 0, len(raws))
	for _, r := range raws {
		e, err := decodeExpr(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeExpr(data json.RawMessage) (Expr, error) {
	var n rawNode
	if err := unmarshal(data, &n); err != nil {
		return nil, err
	}
	kind, err := str(n, "kind")
	if err != nil {
		return nil, err
	}
	switch kind {
	case "Literal":
		return decodeLiteral(n["value"])
	case "Var":
		name, err := str(n, "name")
		if err != nil {
			return nil, err
		}
		return &Var{Name: name}, nil
	case "Let":
		name, err := str(n, "name")
		if err != nil {
			return nil, err
		}
		v, err := decodeExprField(n, "value")
		if err != nil {
			return nil, err
		}
		b, err := decodeExprField(n, "body")
		if err != nil {
			return nil, err
		}
		return &Let{Name: name, Value: v, Body: b}, nil
	case "If":
		c, err := decodeExprField(n, "cond")
		if err != nil {
			return nil, err
		}
		t, err := decodeExprField(n, "then")
		if err != nil {
			return nil, err
		}
		e, err := decodeExprField(n, "else")
		if err != nil {
			return nil, err
		}
		return &If{Cond: c, Then: t, Else: e}, nil
	case "Match":
		target, err := decodeExprField(n, "target")
		if err != nil {
			return nil, err
		}
		var raws []rawNode
		if err := unmarshal(n["cases"], &raws); err != nil {
			return nil, fmt.Errorf("match cases: %w", err)
		}
		m := &Match{Target: target}
		for _, r := range raws {
			tag, err := str(r, "tag")
			if err != nil {
				return nil, err
			}
			var vars []string
			if v, ok := r["vars"]; ok {
				if err := json.Unmarshal(v, &vars); err != nil {
					return nil, fmt.Errorf("case %s vars: %w", tag, err)
				}
			}
			body, err := decodeExprField(r, "body")
			if err != nil {
				return nil, err
			}
			m.Cases = append(m.Cases, &MatchCase{Tag: tag, Vars: vars, Body: body})
		}
		return m, nil
	case "Call":
		fn, err := str(n, "fn")
		if err != nil {
			return nil, err
		}
		args, err := decodeExprs(n["args"])
		if err != nil {
			return nil, err
		}
		return &Call{Fn: fn, Args: args}, nil
	case "Intrinsic":
		op, err := str(n, "op")
		if err != nil {
			return nil, err
		}
		args, err := decodeExprs(n["args"])
		if err != nil {
			return nil, err
		}
		return &Intrinsic{Op: op, Args: args}, nil
	case "Record":
		return decodeRecord(n)
	case "Tagged":
		tag, err := str(n, "tag")
		if err != nil {
			return nil, err
		}
		v, err := decodeOptExpr(n, "value")
		if err != nil {
			return nil, err
		}
		if v == nil {
			v = &Tuple{}
		}
		return &Tagged{Tag: tag, Value: v}, nil
	case "Tuple":
		items, err := decodeExprs(n["items"])
		if err != nil {
			return nil, err
		}
		return &Tuple{Items: items}, nil
	case "List":
		items, err := decodeExprs(n["items"])
		if err != nil {
			return nil, err
		}
		l := &List{Items: items}
		if ta, ok := n["typeArg"]; ok && string(ta) != "null" {
			if l.TypeArg, err = decodeType(ta); err != nil {
				return nil, err
			}
		}
		return l, nil
	case "Lambda":
		args, err := decodeArgs(n)
		if err != nil {
			return nil, err
		}
		ret, err := decodeTypeField(n, "ret")
		if err != nil {
			return nil, err
		}
		eff, err := decodeEffect(n)
		if err != nil {
			return nil, err
		}
		body, err := decodeExprField(n, "body")
		if err != nil {
			return nil, err
		}
		return &Lambda{Args: args, Ret: ret, Eff: eff, Body: body}, nil
	}
	return nil, fmt.Errorf("unknown expression kind %q", kind)
}

// decodeRecord accepts fields either as {"key","value"} objects or as
// two-item tuples whose first item is a string literal.
func decodeRecord(n rawNode) (Expr, error) {
	var raws []rawNode
	if err := unmarshal(n["fields"], &raws); err != nil {
		return nil, fmt.Errorf("record fields: %w", err)
	}
	rec := &Record{}
	for _, r := range raws {
		if _, ok := r["key"]; ok {
			key, err := str(r, "key")
			if err != nil {
				return nil, err
			}
			v, err := decodeExprField(r, "value")
			if err != nil {
				return nil, err
			}
			rec.Fields = append(rec.Fields, &RecordField{Key: key, Value: v})
			continue
		}
		items, err := decodeExprs(r["items"])
		if err != nil {
			return nil, err
		}
		if len(items) != 2 {
			return nil, fmt.Errorf("record field must be a (key, value) pair")
		}
		key, ok := AsStrLiteral(items[0])
		if !ok {
			return nil, fmt.Errorf("record keys must be string literals")
		}
		rec.Fields = append(rec.Fields, &RecordField{Key: key, Value: items[1]})
	}
	return rec, nil
}

func decodeLiteral(data json.RawMessage) (Expr, error) {
	var n rawNode
	if err := unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("literal: %w", err)
	}
	kind, err := str(n, "kind")
	if err != nil {
		return nil, err
	}
	switch kind {
	case "I64":
		var num json.Number
		if err := unmarshal(n["value"], &num); err != nil {
			var s string
			if err2 := json.Unmarshal(n["value"], &s); err2 != nil {
				return nil, fmt.Errorf("I64 literal: %w", err)
			}
			num = json.Number(s)
		}
		v, ok := new(big.Int).SetString(num.String(), 10)
		if !ok {
			return nil, fmt.Errorf("I64 literal: invalid integer %q", num.String())
		}
		return &Literal{Kind: IntLit, Int: v}, nil
	case "Bool":
		var b bool
		if err := json.Unmarshal(n["value"], &b); err != nil {
			return nil, fmt.Errorf("Bool literal: %w", err)
		}
		return BoolLiteral(b), nil
	case "Str":
		s, err := str(n, "value")
		if err != nil {
			return nil, err
		}
		return StrLiteral(s), nil
	case "Option":
		if v, ok := n["value"]; ok && string(v) != "null" {
			return nil, fmt.Errorf("only None option literals are supported")
		}
		return NoneLiteral(), nil
	case "List":
		return NilLiteral(), nil
	}
	return nil, fmt.Errorf("unknown literal kind %q", kind)
}

// Walk serialises a node into the interchange structure. It backs the
// -debug-ast flag and is the inverse of DecodeProgram.
func Walk(node interface{}) interface{} {
	switch n := node.(type) {
	case nil:
		return nil
	case *Program:
		imports := make([]interface{}, len(n.Imports))
		for i, imp := range n.Imports {
			m := map[string]interface{}{"path": imp.Path, "alias": imp.Alias}
			if imp.Version != "" {
				m["version"] = imp.Version
			}
			imports[i] = m
		}
		defs := make([]interface{}, len(n.Defs))
		for i, d := range n.Defs {
			defs[i] = Walk(d)
		}
		return map[string]interface{}{
			"module":  map[string]interface{}{"name": n.Module.Name, "version": n.Module.Version},
			"imports": imports,
			"defs":    defs,
		}
	case *DefConst:
		return withDoc(map[string]interface{}{"kind": "DefConst", "name": n.Name, "type": Walk(n.Type), "value": Walk(n.Value)}, n.Doc)
	case *TypeDef:
		return withDoc(map[string]interface{}{"kind": "TypeDef", "name": n.Name, "type": Walk(n.Type)}, n.Doc)
	case *DefFn:
		m := map[string]interface{}{"kind": "DefFn", "name": n.Name, "args": walkArgs(n.Args), "ret": Walk(n.Ret), "eff": n.Eff.String(), "body": Walk(n.Body)}
		return withContracts(withDoc(m, n.Doc), n.Requires, n.Ensures, n.Caps)
	case *DefTool:
		m := map[string]interface{}{"kind": "DefTool", "name": n.Name, "args": walkArgs(n.Args), "ret": Walk(n.Ret), "eff": n.Eff.String()}
		return withContracts(withDoc(m, n.Doc), n.Requires, n.Ensures, n.Caps)
	case Type:
		return walkType(n)
	case Expr:
		return walkExpr(n)
	}
	return fmt.Sprintf("<unknown %T>", node)
}

func withDoc(m map[string]interface{}, doc string) map[string]interface{} {
	if doc != "" {
		m["doc"] = doc
	}
	return m
}

func withContracts(m map[string]interface{}, req, ens Expr, caps []string) map[string]interface{} {
	if req != nil {
		m["requires"] = Walk(req)
	}
	if ens != nil {
		m["ensures"] = Walk(ens)
	}
	if len(caps) > 0 {
		m["caps"] = caps
	}
	return m
}

func walkArgs(args []*Arg) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		out[i] = map[string]interface{}{"name": a.Name, "type": Walk(a.Type)}
	}
	return out
}

func walkType(t Type) interface{} {
	switch t := t.(type) {
	case *I64Type:
		return map[string]interface{}{"type": "I64"}
	case *BoolType:
		return map[string]interface{}{"type": "Bool"}
	case *StrType:
		return map[string]interface{}{"type": "Str"}
	case *NamedType:
		return map[string]interface{}{"type": "Named", "name": t.Name}
	case *OptionType:
		return map[string]interface{}{"type": "Option", "inner": Walk(t.Inner)}
	case *ListType:
		return map[string]interface{}{"type": "List", "inner": Walk(t.Inner)}
	case *ResultType:
		return map[string]interface{}{"type": "Result", "ok": Walk(t.Ok), "err": Walk(t.Err)}
	case *MapType:
		return map[string]interface{}{"type": "Map", "key": Walk(t.Key), "value": Walk(t.Value)}
	case *TupleType:
		items := make([]interface{}, len(t.Items))
		for i, it := range t.Items {
			items[i] = Walk(it)
		}
		return map[string]interface{}{"type": "Tuple", "items": items}
	case *RecordType:
		fields := make(map[string]interface{}, len(t.Fields))
		for k, v := range t.Fields {
			fields[k] = Walk(v)
		}
		return map[string]interface{}{"type": "Record", "fields": fields}
	case *UnionType:
		vars := make(map[string]interface{}, len(t.Variants))
		for k, v := range t.Variants {
			vars[k] = Walk(v)
		}
		return map[string]interface{}{"type": "Union", "variants": vars}
	case *FnType:
		args := make([]interface{}, len(t.Args))
		for i, a := range t.Args {
			args[i] = Walk(a)
		}
		return map[string]interface{}{"type": "Fn", "args": args, "ret": Walk(t.Ret), "eff": t.Eff.String()}
	}
	return nil
}

func walkExprs(es []Expr) []interface{} {
	out := make([]interface{}, len(es))
	for i, e := range es {
		out[i] = Walk(e)
	}
	return out
}

func walkExpr(e Expr) interface{} {
	switch e := e.(type) {
	case *Literal:
		var v map[string]interface{}
		switch e.Kind {
		case IntLit:
			v = map[string]interface{}{"kind": "I64", "value": json.Number(e.Int.String())}
		case BoolLit:
			v = map[string]interface{}{"kind": "Bool", "value": e.Bool}
		case StrLit:
			v = map[string]interface{}{"kind": "Str", "value": e.Str}
		case NoneLit:
			v = map[string]interface{}{"kind": "Option", "value": nil}
		case NilLit:
			v = map[string]interface{}{"kind": "List", "items": []interface{}{}}
		}
		return map[string]interface{}{"kind": "Literal", "value": v}
	case *Var:
		return map[string]interface{}{"kind": "Var", "name": e.Name}
	case *Let:
		return map[string]interface{}{"kind": "Let", "name": e.Name, "value": Walk(e.Value), "body": Walk(e.Body)}
	case *If:
		return map[string]interface{}{"kind": "If", "cond": Walk(e.Cond), "then": Walk(e.Then), "else": Walk(e.Else)}
	case *Match:
		cases := make([]interface{}, len(e.Cases))
		for i, c := range e.Cases {
			vars := c.Vars
			if vars == nil {
				vars = []string{}
			}
			cases[i] = map[string]interface{}{"tag": c.Tag, "vars": vars, "body": Walk(c.Body)}
		}
		return map[string]interface{}{"kind": "Match", "target": Walk(e.Target), "cases": cases}
	case *Call:
		return map[string]interface{}{"kind": "Call", "fn": e.Fn, "args": walkExprs(e.Args)}
	case *Intrinsic:
		return map[string]interface{}{"kind": "Intrinsic", "op": e.Op, "args": walkExprs(e.Args)}
	case *Record:
		fields := make([]interface{}, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = map[string]interface{}{"key": f.Key, "value": Walk(f.Value)}
		}
		return map[string]interface{}{"kind": "Record", "fields": fields}
	case *Tagged:
		return map[string]interface{}{"kind": "Tagged", "tag": e.Tag, "value": Walk(e.Value)}
	case *Tuple:
		return map[string]interface{}{"kind": "Tuple", "items": walkExprs(e.Items)}
	case *List:
		m := map[string]interface{}{"kind": "List", "items": walkExprs(e.Items)}
		if e.TypeArg != nil {
			m["typeArg"] = Walk(e.TypeArg)
		}
		return m
	case *Lambda:
		return map[string]interface{}{"kind": "Lambda", "args": walkArgs(e.Args), "ret": Walk(e.Ret), "eff": e.Eff.String(), "body": Walk(e.Body)}
	}
	return nil
}

// EncodeProgram renders p as indented interchange JSON.
func EncodeProgram(p *Program) ([]byte, error) {
	return json.MarshalIndent(Walk(p), "", "  ")
}
