package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hiveql-compiler/internal/exprtype"
	"github.com/dshills/hiveql-compiler/internal/semantic/semerr"
)

func TestGetResolvesQualifiedColumn(t *testing.T) {
	r := New()
	r.Put("o", "id", &ColumnInfo{InternalName: "0", Type: exprtype.Integer})

	info, err := r.Get("O", "ID")
	require.NoError(t, err)
	assert.Equal(t, "0", info.InternalName)
}

func TestGetUnqualifiedSingleMatch(t *testing.T) {
	r := New()
	r.Put("o", "id", &ColumnInfo{InternalName: "0", Type: exprtype.Integer})
	r.Put("o", "name", &ColumnInfo{InternalName: "1", Type: exprtype.Text})

	info, err := r.Get("", "name")
	require.NoError(t, err)
	assert.Equal(t, "1", info.InternalName)
}

func TestGetUnqualifiedAmbiguous(t *testing.T) {
	r := New()
	r.Put("o", "id", &ColumnInfo{InternalName: "0", Type: exprtype.Integer})
	r.Put("c", "id", &ColumnInfo{InternalName: "1", Type: exprtype.Integer})

	_, err := r.Get("", "id")
	require.Error(t, err)
	var se *semerr.SemanticError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, semerr.AmbiguousColumn, se.Code)
}

func TestGetUnknownColumn(t *testing.T) {
	r := New()
	r.Put("o", "id", &ColumnInfo{InternalName: "0", Type: exprtype.Integer})

	_, err := r.Get("o", "missing")
	var se *semerr.SemanticError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, semerr.InvalidColumn, se.Code)
}

func TestGetUnknownAlias(t *testing.T) {
	r := New()
	r.Put("o", "id", &ColumnInfo{InternalName: "0", Type: exprtype.Integer})

	_, err := r.Get("missing", "id")
	var se *semerr.SemanticError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, semerr.InvalidTableAlias, se.Code)
}

func TestReverseLookup(t *testing.T) {
	r := New()
	r.Put("o", "id", &ColumnInfo{InternalName: "0", Type: exprtype.Integer})

	alias, column, ok := r.ReverseLookup("0")
	require.True(t, ok)
	assert.Equal(t, "o", alias)
	assert.Equal(t, "id", column)

	_, _, ok = r.ReverseLookup("nope")
	assert.False(t, ok)
}

func TestColumnsPreservesInsertionOrder(t *testing.T) {
	r := New()
	r.Put("o", "name", &ColumnInfo{InternalName: "0", Type: exprtype.Text})
	r.Put("o", "id", &ColumnInfo{InternalName: "1", Type: exprtype.Integer})
	r.Put("c", "id", &ColumnInfo{InternalName: "2", Type: exprtype.Integer})

	cols := r.Columns()
	require.Len(t, cols, 3)
	assert.Equal(t, "name", cols[0].Column)
	assert.Equal(t, "id", cols[1].Column)
	assert.Equal(t, "c", cols[2].Alias)
}

func TestColumnsForAliasPreservesOrder(t *testing.T) {
	r := New()
	r.Put("o", "name", &ColumnInfo{InternalName: "0", Type: exprtype.Text})
	r.Put("o", "id", &ColumnInfo{InternalName: "1", Type: exprtype.Integer})

	assert.Equal(t, []string{"name", "id"}, r.ColumnsForAlias("O"))
}
