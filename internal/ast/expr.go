package ast

import (
	"math/big"

	"iris/internal/effect"
)

// Expr is any expression node.
type Expr interface {
	exprNode()
}

type LiteralKind int

const (
	IntLit LiteralKind = iota
	BoolLit
	StrLit
	// NoneLit is the literal None option.
	NoneLit
	// NilLit is the literal empty list.
	NilLit
)

type Literal struct {
	Kind LiteralKind
	Int  *big.Int
	Bool bool
	Str  string
}

type Var struct {
	Name string
}

type Let struct {
	Name  string
	Value Expr
	Body  Expr
}

type If struct {
	Cond Expr
	Then Expr
	Else Expr
}

// MatchCase binds Vars positionally when Tag matches. The tag "_" is the
// wildcard and binds nothing.
type MatchCase struct {
	Tag  string
	Vars []string
	Body Expr
}

type Match struct {
	Target Expr
	Cases  []*MatchCase
}

// Call names a local function, a qualified "alias.fn" import, or an
// intrinsic used in call position.
type Call struct {
	Fn   string
	Args []Expr
}

type Intrinsic struct {
	Op   string
	Args []Expr
}

type RecordField struct {
	Key   string
	Value Expr
}

type Record struct {
	Fields []*RecordField
}

type Tagged struct {
	Tag   string
	Value Expr
}

type Tuple struct {
	Items []Expr
}

// List may carry an element type hint used when it is empty.
type List struct {
	Items   []Expr
	TypeArg Type
}

type Arg struct {
	Name string
	Type Type
}

type Lambda struct {
	Args []*Arg
	Ret  Type
	Eff  effect.Effect
	Body Expr
}

func (*Literal) exprNode()   {}
func (*Var) exprNode()       {}
func (*Let) exprNode()       {}
func (*If) exprNode()        {}
func (*Match) exprNode()     {}
func (*Call) exprNode()      {}
func (*Intrinsic) exprNode() {}
func (*Record) exprNode()    {}
func (*Tagged) exprNode()    {}
func (*Tuple) exprNode()     {}
func (*List) exprNode()      {}
func (*Lambda) exprNode()    {}

func IntLiteral(v int64) *Literal {
	return &Literal{Kind: IntLit, Int: big.NewInt(v)}
}

func BigLiteral(v *big.Int) *Literal {
	return &Literal{Kind: IntLit, Int: new(big.Int).Set(v)}
}

func BoolLiteral(v bool) *Literal {
	return &Literal{Kind: BoolLit, Bool: v}
}

func StrLiteral(v string) *Literal {
	return &Literal{Kind: StrLit, Str: v}
}

func NoneLiteral() *Literal { return &Literal{Kind: NoneLit} }
func NilLiteral() *Literal  { return &Literal{Kind: NilLit} }

// AsStrLiteral returns the string of a literal Str node.
func AsStrLiteral(e Expr) (string, bool) {
	lit, ok := e.(*Literal)
	if !ok || lit.Kind != StrLit {
		return "", false
	}
	return lit.Str, true
}

// AsIntLiteral returns the integer of a literal I64 node.
func AsIntLiteral(e Expr) (*big.Int, bool) {
	lit, ok := e.(*Literal)
	if !ok || lit.Kind != IntLit {
		return nil, false
	}
	return lit.Int, true
}
