// Package pregen holds the marker vocabulary understood by the pregen
// processing framework. Markers are written in doc comments of top-level
// types and of their fields and methods:
//
//    import _ "github.com/kenvix/pregen"
//
//    type SignupForm struct {
//        // @pregen.NotEmpty
//        // @pregen.ErrorPrompt("please choose a user name")
//        UserName string
//    }
//
// The types in this package only give markers a stable, importable identity
// (for example "github.com/kenvix/pregen.NotEmpty"). They carry no runtime
// behavior. Generators declare which identities they support, and the
// processor package hands them every member carrying one of those markers.
// See the processor package for details.
package pregen

import "fmt"

// NotEmpty marks a field whose value must not be the zero value. For string
// fields, a value consisting only of white space is also treated as empty.
// It is consumed by the built-in "validate" generator.
type NotEmpty bool

// ErrorPrompt overrides the message a generator reports for a member. Both
// the positional and the struct form are accepted:
//
//    // @pregen.ErrorPrompt("name is required")
//    // @pregen.ErrorPrompt{Value: "name is required"}
type ErrorPrompt string

// ElementKind is an enumeration of the kinds of elements that can carry
// markers.
type ElementKind int

const (
	// Types are top-level, named, non-interface types. These are the root
	// elements that enclose members.
	Types ElementKind = iota

	// Interfaces are top-level, named interface types. They are root elements
	// too; their members are InterfaceMethods.
	Interfaces

	// Fields are fields of top-level struct types, in declaration order.
	// Embedded fields are named after their type.
	Fields

	// Methods are methods with bodies declared for top-level types. They are
	// members of their receiver's base type and follow the type's fields.
	Methods

	// InterfaceMethods are the methods that comprise an interface. Embedded
	// interfaces are not members.
	InterfaceMethods
)

// IsRoot reports whether elements of this kind enclose other elements.
func (k ElementKind) IsRoot() bool {
	return k == Types || k == Interfaces
}

func (k ElementKind) String() string {
	switch k {
	case Types:
		return "types"
	case Interfaces:
		return "interfaces"
	case Fields:
		return "fields"
	case Methods:
		return "methods"
	case InterfaceMethods:
		return "interface methods"
	default:
		return fmt.Sprintf("?%d?", int(k))
	}
}
