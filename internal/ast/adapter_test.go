package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hiveql-compiler/internal/sql/parser"
)

func mustParseSelect(t *testing.T, sql string) *parser.SelectStmt {
	t.Helper()
	p := parser.NewParser(sql)
	stmt, err := p.Parse()
	require.NoError(t, err)
	sel, ok := stmt.(*parser.SelectStmt)
	require.True(t, ok, "expected SELECT statement, got %T", stmt)
	return sel
}

func TestAdaptSimpleSelect(t *testing.T) {
	sel := mustParseSelect(t, "SELECT a, b FROM t WHERE a = 1")
	root := Adapt(sel)

	require.Equal(t, KindQuery, root.Kind)
	insert := root.Child(0)
	require.Equal(t, KindInsert, insert.Kind)

	sel0 := insert.FirstChildOfKind(KindSelect)
	require.NotNil(t, sel0)
	assert.Len(t, sel0.Children, 2)

	where := insert.FirstChildOfKind(KindWhere)
	require.NotNil(t, where)
	assert.Equal(t, KindEqual, where.Child(0).Kind)
}

func TestAdaptJoinAndGroupBy(t *testing.T) {
	sel := mustParseSelect(t, "SELECT a.x, count(a.y) FROM a JOIN b ON a.k = b.k GROUP BY a.x")
	root := Adapt(sel)
	insert := root.Child(0)

	from := insert.FirstChildOfKind(KindFrom)
	require.NotNil(t, from)
	join := from.Child(0)
	assert.Equal(t, KindJoin, join.Kind)
	assert.Equal(t, KindTabRef, join.Child(0).Kind)
	assert.Equal(t, KindTabRef, join.Child(1).Kind)
	assert.Equal(t, KindEqual, join.Child(2).Kind)

	gb := insert.FirstChildOfKind(KindGroupBy)
	require.NotNil(t, gb)
	assert.Len(t, gb.Children, 1)
}

func TestCanonicalStringDeterministic(t *testing.T) {
	sel := mustParseSelect(t, "SELECT count(x) FROM t")
	a := Adapt(sel)
	b := Adapt(mustParseSelect(t, "SELECT count(x) FROM t"))
	assert.Equal(t, a.CanonicalString(), b.CanonicalString())
}
