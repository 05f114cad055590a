// Package types holds the primitive SQL data types the parser's literal
// and identifier nodes carry. This compiler never stores or serializes a
// row, so a DataType here is nothing more than a name: the expression
// compiler's type-inference layer (internal/exprtype) is what actually
// reasons about widening, common classes and display names.
package types

import "fmt"

// DataType is a column or literal's primitive SQL type.
type DataType interface {
	Name() string
}

type primitiveType struct {
	name string
}

func (p primitiveType) Name() string { return p.name }

// Well-known primitive types, named the way Hive's DDL and EXPLAIN output
// spell them.
var (
	Boolean   DataType = primitiveType{"BOOLEAN"}
	SmallInt  DataType = primitiveType{"SMALLINT"}
	Integer   DataType = primitiveType{"INTEGER"}
	BigInt    DataType = primitiveType{"BIGINT"}
	Float     DataType = primitiveType{"FLOAT"}
	Double    DataType = primitiveType{"DOUBLE PRECISION"}
	Text      DataType = primitiveType{"TEXT"}
	Timestamp DataType = primitiveType{"TIMESTAMP"}
	Unknown   DataType = primitiveType{"UNKNOWN"}
)

// Decimal returns the parameterized DECIMAL(precision,scale) type.
func Decimal(precision, scale int) DataType {
	return primitiveType{fmt.Sprintf("DECIMAL(%d,%d)", precision, scale)}
}

// Value is a literal value carried by a parsed expression: either SQL
// NULL, or a Go-native payload (bool, string, int64, float64).
type Value struct {
	Data interface{}
}

// NewValue wraps data as a non-null Value.
func NewValue(data interface{}) Value {
	return Value{Data: data}
}

// NewNullValue returns the null Value.
func NewNullValue() Value {
	return Value{Data: nil}
}

// IsNull reports whether v holds SQL NULL.
func (v Value) IsNull() bool {
	return v.Data == nil
}

// String renders v the way a literal's canonical text is built: the raw
// Go value for numbers and booleans, "NULL" for null.
func (v Value) String() string {
	if v.IsNull() {
		return "NULL"
	}
	return fmt.Sprintf("%v", v.Data)
}
