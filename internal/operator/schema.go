package operator

import (
	"fmt"

	"github.com/dshills/hiveql-compiler/internal/exprtype"
	"github.com/dshills/hiveql-compiler/internal/semantic/resolver"
)

// ColumnSpec names one output column an operator schema builder produces:
// the (alias, column) pair callers resolve against, plus its type.
type ColumnSpec struct {
	Alias  string
	Column string
	Type   *exprtype.TypeInfo
}

// DenseSchema builds the row resolver for an ordinary operator's output
// row: internal names are dense stringified integers "0".."n-1" within the
// row, per §4.3 ("Internal column names are dense stringified integers
// within an operator's output").
func DenseSchema(cols []ColumnSpec) *resolver.RowResolver {
	rr := resolver.New()
	for i, c := range cols {
		rr.Put(c.Alias, c.Column, &resolver.ColumnInfo{
			InternalName: fmt.Sprintf("%d", i),
			Type:         c.Type,
		})
	}
	return rr
}

// ReduceSinkSchema builds the row resolver for a ReduceSink's output: key
// columns become "KEY.0".."KEY.k-1" and value columns become
// "VALUE.0".."VALUE.v-1" (§4.3: "descending into reduce-sink, internal
// names become KEY.i / VALUE.j to model the physical key/value channels").
func ReduceSinkSchema(keyCols, valueCols []ColumnSpec) *resolver.RowResolver {
	rr := resolver.New()
	for i, c := range keyCols {
		rr.Put(c.Alias, c.Column, &resolver.ColumnInfo{
			InternalName: fmt.Sprintf("KEY.%d", i),
			Type:         c.Type,
		})
	}
	for i, c := range valueCols {
		rr.Put(c.Alias, c.Column, &resolver.ColumnInfo{
			InternalName: fmt.Sprintf("VALUE.%d", i),
			Type:         c.Type,
		})
	}
	return rr
}
