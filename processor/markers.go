package processor

import (
	"fmt"
	"go/constant"
	"go/token"
	"reflect"

	"github.com/kenvix/pregen"
	"github.com/kenvix/pregen/parser"
)

var (
	// NotEmptyMarker is the qualified identity of @pregen.NotEmpty.
	NotEmptyMarker = MarkerName(reflect.TypeOf(pregen.NotEmpty(false)))
	// ErrorPromptMarker is the qualified identity of @pregen.ErrorPrompt.
	ErrorPromptMarker = MarkerName(reflect.TypeOf(pregen.ErrorPrompt("")))
)

// MarkerName returns the qualified marker identity for a named Go type, which
// is its package path and name joined by a dot.
func MarkerName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr && t.Name() == "" {
		t = t.Elem()
	}
	return t.PkgPath() + "." + t.Name()
}

// Marker is a marker attached to an element.
type Marker struct {
	// Type is the qualified identity of the marker, e.g.
	// "github.com/kenvix/pregen.NotEmpty". Markers whose package alias could
	// not be resolved keep the alias as written.
	Type string
	// Value is the marker's value. Its kind is KindNone for flag markers.
	Value MarkerValue
	// Pos is the location of the marker's '@' in source.
	Pos token.Position
}

// ValueKind indicates the type of underlying value for a marker.
type ValueKind int

const (
	KindNone ValueKind = iota
	KindNil
	KindBool
	KindInt
	KindFloat
	KindString
	KindRef
	KindAggregate
)

var valueKindNames = map[ValueKind]string{
	KindNone:      "none",
	KindNil:       "nil",
	KindBool:      "bool",
	KindInt:       "int",
	KindFloat:     "float",
	KindString:    "string",
	KindRef:       "reference",
	KindAggregate: "aggregate",
}

func (k ValueKind) String() string {
	if n, ok := valueKindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("?%d?", int(k))
}

// MarkerEntry is an element of an aggregate marker value. Entries of lists
// have a key of kind KindNone.
type MarkerEntry struct {
	Key   MarkerValue
	Value MarkerValue
}

// MarkerValue is the value of a marker. Values are untyped: they keep the
// shape they have in source and are interpreted by generators.
type MarkerValue struct {
	Kind ValueKind
	Pos  token.Position
	v    interface{}
}

// AsBool is a convenience function that type asserts the value as a bool.
func (v MarkerValue) AsBool() bool {
	return v.v.(bool)
}

// AsInt is a convenience function that type asserts the value as an int64.
// Rune literals are ints.
func (v MarkerValue) AsInt() int64 {
	return v.v.(int64)
}

// AsFloat is a convenience function that type asserts the value as a float64.
func (v MarkerValue) AsFloat() float64 {
	return v.v.(float64)
}

// AsString is a convenience function that type asserts the value as a string.
func (v MarkerValue) AsString() string {
	return v.v.(string)
}

// AsRef returns the referenced identifier, as written in source.
func (v MarkerValue) AsRef() string {
	return v.v.(string)
}

// Entries returns the contents of an aggregate value.
func (v MarkerValue) Entries() []MarkerEntry {
	return v.v.([]MarkerEntry)
}

// Attr returns the value of the keyed entry whose key is a reference to the
// given unqualified name, as in @Marker{Name: value}.
func (v MarkerValue) Attr(name string) (MarkerValue, bool) {
	if v.Kind != KindAggregate {
		return MarkerValue{}, false
	}
	for _, e := range v.Entries() {
		if e.Key.Kind == KindRef && e.Key.AsRef() == name {
			return e.Value, true
		}
	}
	return MarkerValue{}, false
}

// StringValue returns the marker's string value. Both @Marker("text") and
// @Marker{Value: "text"} are accepted.
func (m Marker) StringValue() (string, bool) {
	v := m.Value
	if v.Kind == KindAggregate {
		var ok bool
		if v, ok = v.Attr("Value"); !ok {
			return "", false
		}
	}
	if v.Kind != KindString {
		return "", false
	}
	return v.AsString(), true
}

// ErrorPromptFor returns the message given by a @pregen.ErrorPrompt marker on
// the element, or def if there is none.
func ErrorPromptFor(el *Element, def string) string {
	for _, m := range el.FindMarkers(ErrorPromptMarker) {
		if s, ok := m.StringValue(); ok {
			return s
		}
	}
	return def
}

type posAdjuster func(parser.ExpressionNode) token.Position

func convertExpression(node parser.ExpressionNode, adjust posAdjuster) (MarkerValue, error) {
	if node == nil {
		return MarkerValue{Kind: KindNone}, nil
	}
	pos := adjust(node)
	switch n := node.(type) {
	case parser.LiteralNode:
		return convertLiteral(n.Val, pos)
	case parser.RefNode:
		return MarkerValue{Kind: KindRef, Pos: pos, v: n.Ident.String()}, nil
	case parser.AggregateNode:
		entries := make([]MarkerEntry, len(n.Contents))
		for i, el := range n.Contents {
			if el.HasKey {
				k, err := convertExpression(el.Key, adjust)
				if err != nil {
					return MarkerValue{}, err
				}
				entries[i].Key = k
			}
			v, err := convertExpression(el.Value, adjust)
			if err != nil {
				return MarkerValue{}, err
			}
			entries[i].Value = v
		}
		return MarkerValue{Kind: KindAggregate, Pos: pos, v: entries}, nil
	default:
		panic(fmt.Sprintf("unexpected marker expression %T", node))
	}
}

func convertLiteral(c constant.Value, pos token.Position) (MarkerValue, error) {
	if c == nil {
		return MarkerValue{Kind: KindNil, Pos: pos}, nil
	}
	switch c.Kind() {
	case constant.Bool:
		return MarkerValue{Kind: KindBool, Pos: pos, v: constant.BoolVal(c)}, nil
	case constant.String:
		return MarkerValue{Kind: KindString, Pos: pos, v: constant.StringVal(c)}, nil
	case constant.Int:
		i, exact := constant.Int64Val(c)
		if !exact {
			return MarkerValue{}, NewErrorWithPosition(pos, fmt.Errorf("integer %s overflows int64", c.ExactString()))
		}
		return MarkerValue{Kind: KindInt, Pos: pos, v: i}, nil
	case constant.Float:
		f, _ := constant.Float64Val(c)
		return MarkerValue{Kind: KindFloat, Pos: pos, v: f}, nil
	default:
		return MarkerValue{}, NewErrorWithPosition(pos, fmt.Errorf("unsupported literal %s", c.ExactString()))
	}
}
