package ast

import (
	"bytes"
	"sort"
	"strings"

	"iris/internal/effect"
)

// Type is a node of the type language.
type Type interface {
	typeNode()
	String() string
}

type I64Type struct{}
type BoolType struct{}
type StrType struct{}

// NamedType refers to a TypeDef, possibly qualified as "alias.Name".
type NamedType struct {
	Name string
}

type OptionType struct {
	Inner Type
}

type ResultType struct {
	Ok  Type
	Err Type
}

type ListType struct {
	Inner Type
}

type TupleType struct {
	Items []Type
}

// RecordType fields are unordered; equality is driven by the key set.
type RecordType struct {
	Fields map[string]Type
}

type MapType struct {
	Key   Type
	Value Type
}

type UnionType struct {
	Variants map[string]Type
}

type FnType struct {
	Args []Type
	Ret  Type
	Eff  effect.Effect
}

var (
	I64  Type = &I64Type{}
	Bool Type = &BoolType{}
	Str  Type = &StrType{}
)

func (*I64Type) typeNode()    {}
func (*BoolType) typeNode()   {}
func (*StrType) typeNode()    {}
func (*NamedType) typeNode()  {}
func (*OptionType) typeNode() {}
func (*ResultType) typeNode() {}
func (*ListType) typeNode()   {}
func (*TupleType) typeNode()  {}
func (*RecordType) typeNode() {}
func (*MapType) typeNode()    {}
func (*UnionType) typeNode()  {}
func (*FnType) typeNode()     {}

func (*I64Type) String() string     { return "I64" }
func (*BoolType) String() string    { return "Bool" }
func (*StrType) String() string     { return "Str" }
func (t *NamedType) String() string { return t.Name }

func (t *OptionType) String() string {
	return "(Option " + typeString(t.Inner) + ")"
}

func (t *ResultType) String() string {
	return "(Result " + typeString(t.Ok) + " " + typeString(t.Err) + ")"
}

func (t *ListType) String() string {
	return "(List " + typeString(t.Inner) + ")"
}

func (t *TupleType) String() string {
	var out bytes.Buffer
	out.WriteString("(Tuple")
	for _, it := range t.Items {
		out.WriteString(" ")
		out.WriteString(typeString(it))
	}
	out.WriteString(")")
	return out.String()
}

func (t *RecordType) String() string {
	var out bytes.Buffer
	out.WriteString("(Record")
	for _, k := range SortedKeys(t.Fields) {
		out.WriteString(" (" + k + " " + typeString(t.Fields[k]) + ")")
	}
	out.WriteString(")")
	return out.String()
}

func (t *MapType) String() string {
	return "(Map " + typeString(t.Key) + " " + typeString(t.Value) + ")"
}

func (t *UnionType) String() string {
	var out bytes.Buffer
	out.WriteString("(Union")
	for _, k := range SortedKeys(t.Variants) {
		out.WriteString(" (tag \"" + k + "\" " + typeString(t.Variants[k]) + ")")
	}
	out.WriteString(")")
	return out.String()
}

func (t *FnType) String() string {
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = typeString(a)
	}
	return "(Fn (" + strings.Join(args, " ") + ") " + typeString(t.Ret) + " " + t.Eff.String() + ")"
}

func typeString(t Type) string {
	if t == nil {
		return "?"
	}
	return t.String()
}

// SortedKeys returns the keys of a field or variant table in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
