package qb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextDestinationNameAllocatesSequentially(t *testing.T) {
	q := New("", "", false)
	a := q.NextDestinationName()
	b := q.NextDestinationName()
	assert.Equal(t, "insclause-0", a)
	assert.Equal(t, "insclause-1", b)
	assert.Equal(t, []string{"insclause-0", "insclause-1"}, q.DestinationNames())
}

func TestGetOrCreateDestinationIsIdempotent(t *testing.T) {
	q := New("", "", false)
	d1 := q.GetOrCreateDestination("insclause-0")
	d2 := q.GetOrCreateDestination("insclause-0")
	assert.Same(t, d1, d2)
	assert.Equal(t, []string{"insclause-0"}, q.DestinationNames())
}

func TestAddTabAliasRejectsDuplicate(t *testing.T) {
	q := New("", "", false)
	require.NoError(t, q.AddTabAlias("o", "orders"))
	err := q.AddTabAlias("O", "orders2")
	assert.Error(t, err)

	name, ok := q.TabNameForAlias("O")
	require.True(t, ok)
	assert.Equal(t, "orders", name)
}

func TestTabAliasesPreservesInsertionOrder(t *testing.T) {
	q := New("", "", false)
	require.NoError(t, q.AddTabAlias("b", "tb"))
	require.NoError(t, q.AddTabAlias("a", "ta"))
	assert.Equal(t, []string{"b", "a"}, q.TabAliases())
}

func TestSubqAliasBindsQBExpression(t *testing.T) {
	outer := New("", "", false)
	inner := New("1", "s", true)
	expr := NullOpExpr(inner)

	require.NoError(t, outer.AddSubqAlias("s", expr))
	got, ok := outer.SubqForAlias("S")
	require.True(t, ok)
	assert.Equal(t, NullOp, got.Kind)
	assert.Same(t, inner, got.QB)
}

func TestUnionExprWrapsTwoBranches(t *testing.T) {
	left := NullOpExpr(New("1", "", true))
	right := NullOpExpr(New("2", "", true))
	u := UnionExpr(left, right)
	assert.Equal(t, UnionAll, u.Kind)
	assert.Same(t, left, u.Left)
	assert.Same(t, right, u.Right)
}

func TestAllAliasesOrdersTablesBeforeSubqueries(t *testing.T) {
	q := New("", "", false)
	require.NoError(t, q.AddTabAlias("t", "tbl"))
	require.NoError(t, q.AddSubqAlias("s", NullOpExpr(New("1", "s", true))))
	assert.Equal(t, []string{"t", "s"}, q.AllAliases())
}
