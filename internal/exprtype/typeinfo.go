// Package exprtype extends the primitive data types of internal/sql/types
// with the composite shapes the expression compiler and row resolver need:
// lists, maps and structs. A TypeInfo is the unit of type exchanged between
// the expression compiler, the row resolver and the operator descriptors.
package exprtype

import (
	"fmt"
	"strings"

	"github.com/dshills/hiveql-compiler/internal/sql/types"
)

// Category distinguishes the four shapes a TypeInfo can take.
type Category int

const (
	// Primitive wraps a types.DataType (INTEGER, TEXT, BOOLEAN, ...).
	Primitive Category = iota
	// List is a homogeneous array of Element.
	List
	// Map is a homogeneous association from Key to Element.
	Map
	// Struct is a named, ordered tuple of fields.
	Struct
)

// TypeInfo is the compiler's notion of a value's type. It is immutable once
// constructed and safe to share across descriptors.
type TypeInfo struct {
	Category Category

	// Primitive is set iff Category == Primitive.
	Primitive types.DataType

	// Element is set iff Category == List or Category == Map: for List it
	// is the element type, for Map it is the value type.
	Element *TypeInfo

	// Key is set iff Category == Map.
	Key *TypeInfo

	// Fields is set iff Category == Struct, in declaration order.
	Fields []StructField
}

// StructField is one named member of a Struct TypeInfo.
type StructField struct {
	Name string
	Type *TypeInfo
}

// OfPrimitive wraps a primitive data type.
func OfPrimitive(t types.DataType) *TypeInfo {
	return &TypeInfo{Category: Primitive, Primitive: t}
}

// OfList builds a list TypeInfo over element.
func OfList(element *TypeInfo) *TypeInfo {
	return &TypeInfo{Category: List, Element: element}
}

// OfMap builds a map TypeInfo from key to element.
func OfMap(key, element *TypeInfo) *TypeInfo {
	return &TypeInfo{Category: Map, Key: key, Element: element}
}

// OfStruct builds a struct TypeInfo with the given fields, in order.
func OfStruct(fields ...StructField) *TypeInfo {
	return &TypeInfo{Category: Struct, Fields: fields}
}

// IsPrimitive reports whether this is a scalar type.
func (t *TypeInfo) IsPrimitive() bool { return t != nil && t.Category == Primitive }

// IsList reports whether this is a list type.
func (t *TypeInfo) IsList() bool { return t != nil && t.Category == List }

// IsMap reports whether this is a map type.
func (t *TypeInfo) IsMap() bool { return t != nil && t.Category == Map }

// IsStruct reports whether this is a struct type.
func (t *TypeInfo) IsStruct() bool { return t != nil && t.Category == Struct }

// Field looks up a struct field by case-insensitive name.
func (t *TypeInfo) Field(name string) (StructField, bool) {
	if t == nil || t.Category != Struct {
		return StructField{}, false
	}
	for _, f := range t.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return StructField{}, false
}

// Equal reports structural equality between two TypeInfo values.
func Equal(a, b *TypeInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Category != b.Category {
		return false
	}
	switch a.Category {
	case Primitive:
		return a.Primitive != nil && b.Primitive != nil && a.Primitive.Name() == b.Primitive.Name()
	case List:
		return Equal(a.Element, b.Element)
	case Map:
		return Equal(a.Key, b.Key) && Equal(a.Element, b.Element)
	case Struct:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if !strings.EqualFold(a.Fields[i].Name, b.Fields[i].Name) {
				return false
			}
			if !Equal(a.Fields[i].Type, b.Fields[i].Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders a TypeInfo in the layout of Hive's TypeInfo.getTypeName(),
// with primitives spelled as their lower-cased internal/sql/types names,
// e.g. "array<integer>", "map<text,integer>", "struct<a:integer,b:text>".
func (t *TypeInfo) String() string {
	if t == nil {
		return "void"
	}
	switch t.Category {
	case Primitive:
		return strings.ToLower(t.Primitive.Name())
	case List:
		return fmt.Sprintf("array<%s>", t.Element.String())
	case Map:
		return fmt.Sprintf("map<%s,%s>", t.Key.String(), t.Element.String())
	case Struct:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = fmt.Sprintf("%s:%s", f.Name, f.Type.String())
		}
		return fmt.Sprintf("struct<%s>", strings.Join(parts, ","))
	default:
		return "unknown"
	}
}

// numericRank orders primitive numeric types by implicit widening order,
// mirroring the function registry's "common class" rule for numerics:
// integral types widen towards BIGINT, then towards DOUBLE.
func numericRank(name string) (int, bool) {
	switch name {
	case "SMALLINT":
		return 1, true
	case "INTEGER":
		return 2, true
	case "BIGINT":
		return 3, true
	case "FLOAT":
		return 4, true
	case "DOUBLE PRECISION":
		return 5, true
	default:
		if strings.HasPrefix(name, "DECIMAL") {
			return 6, true
		}
		return 0, false
	}
}

// CanonicalName returns a single lower-case identifier token for a
// primitive TypeInfo, suitable for building conversion-UDF names
// ("to_bigint") — unlike Primitive.Name(), it never contains spaces.
func CanonicalName(t *TypeInfo) string {
	if t == nil || t.Category != Primitive {
		return "void"
	}
	switch t.Primitive.Name() {
	case "DOUBLE PRECISION":
		return "double"
	default:
		return strings.ToLower(t.Primitive.Name())
	}
}

// CommonClass computes the function registry's "common class" of two
// primitive TypeInfo values: the smallest type both can be implicitly
// converted to. Returns (nil, false) when no common numeric/text class
// exists and the caller must fall back to an explicit conversion UDF.
func CommonClass(a, b *TypeInfo) (*TypeInfo, bool) {
	if a == nil || b == nil || a.Category != Primitive || b.Category != Primitive {
		return nil, false
	}
	if Equal(a, b) {
		return a, true
	}
	an, aok := numericRank(a.Primitive.Name())
	bn, bok := numericRank(b.Primitive.Name())
	if aok && bok {
		if an >= bn {
			return a, true
		}
		return b, true
	}
	// TEXT is the common class of any primitive paired with TEXT,
	// mirroring the string<->numeric conversion UDFs the registry exposes.
	if a.Primitive.Name() == "TEXT" || b.Primitive.Name() == "TEXT" {
		return Text, true
	}
	return nil, false
}

// Well-known primitive TypeInfo instances over the internal/sql/types
// registry, initialized as package-level variables.
var (
	Boolean   = OfPrimitive(types.Boolean)
	SmallInt  = OfPrimitive(types.SmallInt)
	Integer   = OfPrimitive(types.Integer)
	BigInt    = OfPrimitive(types.BigInt)
	Float     = OfPrimitive(types.Float)
	Double    = OfPrimitive(types.Double)
	Text      = OfPrimitive(types.Text)
	Decimal   = OfPrimitive(types.Decimal(38, 18))
	Timestamp = OfPrimitive(types.Timestamp)
	Void      = OfPrimitive(types.Unknown)
)
