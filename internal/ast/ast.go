package ast

import (
	"iris/internal/effect"
)

// ModuleInfo names a program. Version is a semantic version string; the
// bare integers older programs used are accepted and normalised by the
// decoder.
type ModuleInfo struct {
	Name    string
	Version string
}

// Import binds the program at Path under Alias. Version, when set, is a
// constraint the imported module's version must satisfy.
type Import struct {
	Path    string
	Alias   string
	Version string
}

type Program struct {
	Module  ModuleInfo
	Imports []*Import
	Defs    []Definition
}

// Definition is a top-level declaration.
type Definition interface {
	defNode()
	DefName() string
}

type DefConst struct {
	Name  string
	Type  Type
	Value Expr
	Doc   string
}

type DefFn struct {
	Name     string
	Args     []*Arg
	Ret      Type
	Eff      effect.Effect
	Body     Expr
	Doc      string
	Requires Expr
	Ensures  Expr
	Caps     []string
}

// DefTool declares a host-provided capability; it has no body.
type DefTool struct {
	Name     string
	Args     []*Arg
	Ret      Type
	Eff      effect.Effect
	Doc      string
	Requires Expr
	Ensures  Expr
	Caps     []string
}

type TypeDef struct {
	Name string
	Type Type
	Doc  string
}

func (*DefConst) defNode() {}
func (*DefFn) defNode()    {}
func (*DefTool) defNode()  {}
func (*TypeDef) defNode()  {}

func (d *DefConst) DefName() string { return d.Name }
func (d *DefFn) DefName() string    { return d.Name }
func (d *DefTool) DefName() string  { return d.Name }
func (d *TypeDef) DefName() string  { return d.Name }

// Import returns the import bound to alias.
func (p *Program) Import(alias string) (*Import, bool) {
	for _, imp := range p.Imports {
		if imp.Alias == alias {
			return imp, true
		}
	}
	return nil, false
}

// Callable returns the function or tool definition named name.
func (p *Program) Callable(name string) (Definition, bool) {
	for _, d := range p.Defs {
		switch d := d.(type) {
		case *DefFn:
			if d.Name == name {
				return d, true
			}
		case *DefTool:
			if d.Name == name {
				return d, true
			}
		}
	}
	return nil, false
}

// TypeNames is the set of TypeDef names a module exports.
func (p *Program) TypeNames() map[string]bool {
	out := make(map[string]bool)
	for _, d := range p.Defs {
		if td, ok := d.(*TypeDef); ok {
			out[td.Name] = true
		}
	}
	return out
}

// FnSignature returns the type of a function-like definition.
func FnSignature(d Definition) (*FnType, bool) {
	var args []*Arg
	var ret Type
	var eff effect.Effect
	switch d := d.(type) {
	case *DefFn:
		args, ret, eff = d.Args, d.Ret, d.Eff
	case *DefTool:
		args, ret, eff = d.Args, d.Ret, d.Eff
	default:
		return nil, false
	}
	ft := &FnType{Ret: ret, Eff: eff}
	for _, a := range args {
		ft.Args = append(ft.Args, a.Type)
	}
	return ft, true
}
