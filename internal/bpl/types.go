package bpl

import "fmt"

// Type represents the semantic type of a variable or expression.
// The verifier only ever deals with booleans, fixed-width bit-vectors,
// and maps (arrays) over bit-vectors.
type Type interface {
	isType()
	String() string
	Equal(other Type) bool
}

// BoolType is the boolean type.
type BoolType struct{}

func (BoolType) isType() {}
func (BoolType) String() string {
	return "bool"
}

func (BoolType) Equal(other Type) bool {
	_, ok := other.(BoolType)
	return ok
}

// BVType is a fixed-width bit-vector type.
type BVType struct {
	Width int
}

func (BVType) isType() {}
func (t BVType) String() string {
	return fmt.Sprintf("bv%d", t.Width)
}

func (t BVType) Equal(other Type) bool {
	if o, ok := other.(BVType); ok {
		return t.Width == o.Width
	}
	return false
}

// MapType is a map (array) type from an index type to an element type.
type MapType struct {
	Index Type
	Elem  Type
}

func (MapType) isType() {}
func (t MapType) String() string {
	return "[" + t.Index.String() + "]" + t.Elem.String()
}

func (t MapType) Equal(other Type) bool {
	if o, ok := other.(MapType); ok {
		return t.Index.Equal(o.Index) && t.Elem.Equal(o.Elem)
	}
	return false
}

// Bool is the shared boolean type instance.
func Bool() Type {
	return BoolType{}
}

// BV creates a bit-vector type of the given width.
func BV(width int) Type {
	return BVType{Width: width}
}

// Map creates a map type.
func Map(index, elem Type) Type {
	return MapType{Index: index, Elem: elem}
}
