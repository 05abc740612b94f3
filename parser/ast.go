package parser

import (
	"fmt"
	"go/constant"
	"text/scanner"
)

// ExpressionNode is a node in the AST for marker values. A value is either a
// literal, a reference to a named element, or an aggregate of other values.
type ExpressionNode interface {
	Pos() scanner.Position
}

// LiteralNode is an expression node that represents a literal value, such as a
// number, boolean, or string.
type LiteralNode struct {
	Val constant.Value // nil if literal nil
	pos scanner.Position
}

func (n LiteralNode) Pos() scanner.Position {
	return n.pos
}

// RefNode is an expression node that is a reference to an identifier, such
// as a constant or a field name. References are not resolved by the parser.
type RefNode struct {
	Ident Identifier
}

func (n RefNode) Pos() scanner.Position {
	return n.Ident.Pos
}

// AggregateNode is an expression node that represents an aggregate value. It
// is a list when its elements have no keys and a set of attributes when they
// do.
type AggregateNode struct {
	Contents []Element
	pos      scanner.Position
}

func (n AggregateNode) Pos() scanner.Position {
	return n.pos
}

// Identifier is an AST node that refers to an identifier, possibly qualified
// with a package name/alias.
type Identifier struct {
	PackageAlias string
	Name         string
	Pos          scanner.Position
}

func (id Identifier) String() string {
	if id.PackageAlias == "" {
		return id.Name
	}
	return fmt.Sprintf("%s.%s", id.PackageAlias, id.Name)
}

// Element is an AST node for a component of an aggregate value.
type Element struct {
	Key    ExpressionNode
	HasKey bool
	Value  ExpressionNode
}

func (e Element) Pos() scanner.Position {
	if e.HasKey {
		return e.Key.Pos()
	}
	return e.Value.Pos()
}

// Annotation is a fully parsed marker. It identifies the marker type and has
// an optional value. Markers without a value are flags: their presence is
// what matters.
type Annotation struct {
	Type  Identifier
	Value ExpressionNode
	Pos   scanner.Position
}
