package join_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hiveql-compiler/internal/exprtype"
	"github.com/dshills/hiveql-compiler/internal/funcreg"
	"github.com/dshills/hiveql-compiler/internal/join"
	"github.com/dshills/hiveql-compiler/internal/semantic/expr"
)

// threeWayChain builds the left-deep tree phase1 produces for
// "a JOIN b ON a.k=b.k JOIN c ON a.k=c.k": a node joining (a,b) on a.k=b.k,
// with a second node nesting it on the left and joining c on a.k=c.k.
func threeWayChain() *join.Tree {
	ab := join.NewLeaf("a", "b")
	ab.Expressions[0] = []join.Expr{{InternalName: "a.k"}}
	ab.Expressions[1] = []join.Expr{{InternalName: "b.k"}}
	ab.JoinCond = []join.Type{join.Inner}

	abc := &join.Tree{
		LeftAlias:    "a",
		LeftAliases:  ab.Aliases(),
		RightAliases: []string{"c"},
		BaseSrc:      []string{"", "c"},
		JoinSrc:      ab,
		Expressions:  [][]join.Expr{{{InternalName: "a.k"}}, {{InternalName: "c.k"}}},
		Filters:      make([][]join.Expr, 2),
		JoinCond:     []join.Type{join.Inner},
		NoOuterJoin:  true,
		NextTag:      2,
	}
	return abc
}

func TestMergeProducesThreeWayJoin(t *testing.T) {
	merged := join.Merge(threeWayChain())

	require.Equal(t, 3, merged.Width())
	assert.Equal(t, []string{"a", "b", "c"}, merged.BaseSrc)
	require.Len(t, merged.Expressions, 3)
	for _, exprs := range merged.Expressions {
		require.Len(t, exprs, 1)
	}
	assert.Equal(t, "a.k", merged.Expressions[0][0].InternalName)
	assert.Equal(t, "b.k", merged.Expressions[1][0].InternalName)
	assert.Equal(t, "c.k", merged.Expressions[2][0].InternalName)
	assert.Equal(t, 3, merged.NextTag)
	assert.True(t, merged.NoOuterJoin)
	assert.Nil(t, merged.JoinSrc)
	assert.False(t, join.CanMerge(merged))
}

func TestMergeLeavesDistinctKeysUnmerged(t *testing.T) {
	ab := join.NewLeaf("a", "b")
	ab.Expressions[0] = []join.Expr{{InternalName: "a.k"}}
	ab.Expressions[1] = []join.Expr{{InternalName: "b.k"}}

	abc := &join.Tree{
		LeftAlias:    "a",
		LeftAliases:  ab.Aliases(),
		RightAliases: []string{"c"},
		BaseSrc:      []string{"", "c"},
		JoinSrc:      ab,
		// Different join key (a.other), so it must not merge with ab.
		Expressions: [][]join.Expr{{{InternalName: "a.other"}}, {{InternalName: "c.k"}}},
		Filters:     make([][]join.Expr, 2),
		JoinCond:    []join.Type{join.Inner},
		NoOuterJoin: true,
	}

	merged := join.Merge(abc)
	require.NotNil(t, merged.JoinSrc)
	assert.Equal(t, 2, merged.Width())
	assert.Equal(t, 2, merged.JoinSrc.Width())
}

func TestKeyUnifierWidensToCommonClass(t *testing.T) {
	registry := funcreg.NewBuiltinRegistry()
	unifier := join.NewKeyUnifier(registry)

	intKey := &expr.Desc{Kind: expr.KindColumn, Type: exprtype.Integer, InternalName: "0"}
	bigintKey := &expr.Desc{Kind: expr.KindColumn, Type: exprtype.BigInt, InternalName: "0"}

	unified, err := unifier.Unify([][]*expr.Desc{{intKey}, {bigintKey}})
	require.NoError(t, err)

	require.Len(t, unified, 2)
	assert.True(t, exprtype.Equal(unified[0][0].Type, exprtype.BigInt))
	assert.Equal(t, expr.KindFunc, unified[0][0].Kind)
	assert.Equal(t, "to_bigint", unified[0][0].FuncName)
	assert.True(t, exprtype.Equal(unified[1][0].Type, exprtype.BigInt))
	assert.Equal(t, expr.KindColumn, unified[1][0].Kind)
}
