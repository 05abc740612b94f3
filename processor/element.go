package processor

import (
	"go/token"
	"go/types"

	"github.com/kenvix/pregen"
)

// Element is a declared program element: a top-level named type, or a field
// or method of one. Elements are created by the host for one execution and
// lent to generators for the duration of a round; their identity (the
// pointer) is stable within an execution but not across executions.
type Element struct {
	// Kind is the kind of element.
	Kind pregen.ElementKind
	// Name is the unqualified name of the element.
	Name string
	// Package is the import path of the package that declares the element.
	Package string
	// Parent is the enclosing type for members; nil for root elements.
	Parent *Element
	// Members are the direct members of a root element, in declaration order:
	// struct fields or interface methods first, then methods by source
	// position.
	Members []*Element
	// Markers are the markers attached to the element, in source order.
	Markers []Marker
	// Obj is the type-checked object for the element. It is nil for elements
	// that were not created from type-checked sources.
	Obj types.Object
	// Pos is the location of the element's name in source.
	Pos token.Position
}

// QualifiedName returns the fully-qualified name of the element, for example
// "example.com/app/models.User" or "example.com/app/models.User.Name".
func (e *Element) QualifiedName() string {
	if e.Parent != nil {
		return e.Parent.QualifiedName() + "." + e.Name
	}
	if e.Package == "" {
		return e.Name
	}
	return e.Package + "." + e.Name
}

func (e *Element) String() string {
	return e.QualifiedName()
}

// FindMarkers returns the markers on this element whose identity is the given
// qualified marker type.
func (e *Element) FindMarkers(markerType string) []Marker {
	var res []Marker
	for _, m := range e.Markers {
		if m.Type == markerType {
			res = append(res, m)
		}
	}
	return res
}

// HasMarker returns true if the element carries at least one marker of the
// given qualified type.
func (e *Element) HasMarker(markerType string) bool {
	for _, m := range e.Markers {
		if m.Type == markerType {
			return true
		}
	}
	return false
}
