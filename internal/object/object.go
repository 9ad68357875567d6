package object

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"iris/internal/ast"
	"iris/internal/effect"
)

const (
	I64_OBJ     = "I64"
	BOOLEAN_OBJ = "Bool"
	STRING_OBJ  = "Str"
	OPTION_OBJ  = "Option"
	RESULT_OBJ  = "Result"
	LIST_OBJ    = "List"
	TUPLE_OBJ   = "Tuple"
	RECORD_OBJ  = "Record"
	MAP_OBJ     = "Map"
	TAGGED_OBJ  = "Tagged"
	LAMBDA_OBJ  = "Lambda"
)

var (
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
	NONE  = &Option{}
	// UNIT is the payload of a tagged value declared without one.
	UNIT = &Tuple{}
)

type ObjectType string

// Object is a runtime value. Values are immutable once built.
type Object interface {
	Type() ObjectType
	Inspect() string
}

type I64 struct {
	Value *big.Int
}

func (i *I64) Type() ObjectType { return I64_OBJ }
func (i *I64) Inspect() string  { return i.Value.String() }

// Int64 reports the value when it fits in an int64.
func (i *I64) Int64() (int64, bool) {
	if !i.Value.IsInt64() {
		return 0, false
	}
	return i.Value.Int64(), true
}

type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string  { return strconv.FormatBool(b.Value) }

type String struct {
	Value string
}

func (s *String) Type() ObjectType { return STRING_OBJ }
func (s *String) Inspect() string  { return `"` + escape(s.Value) + `"` }

// Option holds nil for None.
type Option struct {
	Value Object
}

func (o *Option) Type() ObjectType { return OPTION_OBJ }
func (o *Option) Inspect() string {
	if o.Value == nil {
		return "None"
	}
	return "(Some " + o.Value.Inspect() + ")"
}

func (o *Option) IsSome() bool { return o.Value != nil }

type Result struct {
	Ok    bool
	Value Object
}

func (r *Result) Type() ObjectType { return RESULT_OBJ }
func (r *Result) Inspect() string {
	if r.Ok {
		return "(Ok " + r.Value.Inspect() + ")"
	}
	return "(Err " + r.Value.Inspect() + ")"
}

type Tuple struct {
	Items []Object
}

func (t *Tuple) Type() ObjectType { return TUPLE_OBJ }
func (t *Tuple) Inspect() string  { return inspectSeq("tuple", t.Items) }

type Record struct {
	Fields map[string]Object
}

func (r *Record) Type() ObjectType { return RECORD_OBJ }
func (r *Record) Inspect() string {
	var out bytes.Buffer
	out.WriteString("(record")
	for _, k := range ast.SortedKeys(r.Fields) {
		out.WriteString(" (" + k + " " + r.Fields[k].Inspect() + ")")
	}
	out.WriteString(")")
	return out.String()
}

// With returns a copy of r with field set to v.
func (r *Record) With(field string, v Object) *Record {
	fields := make(map[string]Object, len(r.Fields)+1)
	for k, fv := range r.Fields {
		fields[k] = fv
	}
	fields[field] = v
	return &Record{Fields: fields}
}

// Tagged is the single runtime representation of union values.
type Tagged struct {
	Tag   string
	Value Object
}

func (t *Tagged) Type() ObjectType { return TAGGED_OBJ }
func (t *Tagged) Inspect() string {
	payload := "(tuple)"
	if t.Value != nil {
		payload = t.Value.Inspect()
	}
	return fmt.Sprintf("(tag %q %s)", t.Tag, payload)
}

// Lambda is a closure over the environment it was created in.
type Lambda struct {
	Args []*ast.Arg
	Ret  ast.Type
	Eff  effect.Effect
	Body ast.Expr
	Env  *Environment
}

func (l *Lambda) Type() ObjectType { return LAMBDA_OBJ }
func (l *Lambda) Inspect() string  { return "Lambda" }

func NewI64(v int64) *I64 {
	return &I64{Value: big.NewInt(v)}
}

func NewString(s string) *String {
	return &String{Value: s}
}

func NativeBool(b bool) *Boolean {
	if b {
		return TRUE
	}
	return FALSE
}

func Some(v Object) *Option { return &Option{Value: v} }
func Ok(v Object) *Result   { return &Result{Ok: true, Value: v} }
func Err(v Object) *Result  { return &Result{Ok: false, Value: v} }

// ErrString is the common failure shape host intrinsics return.
func ErrString(msg string) *Result { return Err(NewString(msg)) }

// AsTagged normalises a union value. The legacy (tag, payload...) tuple
// spelling is lowered to a Tagged carrying the remaining items.
func AsTagged(obj Object) (*Tagged, bool) {
	switch v := obj.(type) {
	case *Tagged:
		return v, true
	case *Tuple:
		if len(v.Items) == 0 {
			return nil, false
		}
		tag, ok := v.Items[0].(*String)
		if !ok {
			return nil, false
		}
		rest := v.Items[1:]
		switch len(rest) {
		case 0:
			return &Tagged{Tag: tag.Value, Value: UNIT}, true
		case 1:
			return &Tagged{Tag: tag.Value, Value: rest[0]}, true
		default:
			return &Tagged{Tag: tag.Value, Value: &Tuple{Items: rest}}, true
		}
	}
	return nil, false
}

// Display renders a value the way io.print shows it: strings and scalars
// bare, everything else in inspect form.
func Display(obj Object) string {
	if s, ok := obj.(*String); ok {
		return s.Value
	}
	return obj.Inspect()
}

func inspectSeq(head string, items []Object) string {
	var out bytes.Buffer
	out.WriteString("(" + head)
	for _, it := range items {
		out.WriteString(" ")
		out.WriteString(it.Inspect())
	}
	out.WriteString(")")
	return out.String()
}

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`, "\r", `\r`)

func escape(s string) string {
	return escaper.Replace(s)
}
