package prune_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hiveql-compiler/internal/exprtype"
	"github.com/dshills/hiveql-compiler/internal/metastore"
	"github.com/dshills/hiveql-compiler/internal/prune"
	"github.com/dshills/hiveql-compiler/internal/semantic/expr"
	"github.com/dshills/hiveql-compiler/internal/semantic/qb"
	"github.com/dshills/hiveql-compiler/internal/semantic/semerr"
)

func partitionedTable() *metastore.Table {
	return &metastore.Table{
		Name:          "events",
		Columns:       []metastore.Column{{Name: "user_id", Type: exprtype.Integer}},
		PartitionCols: []metastore.Column{{Name: "ds", Type: exprtype.Text}},
	}
}

func col(name string, t *exprtype.TypeInfo) *expr.Desc {
	return &expr.Desc{Kind: expr.KindColumn, Column: name, Type: t}
}

func lit(v string, t *exprtype.TypeInfo) *expr.Desc {
	return &expr.Desc{Kind: expr.KindConstant, Literal: v, Type: t}
}

func eq(a, b *expr.Desc) *expr.Desc {
	return &expr.Desc{Kind: expr.KindFunc, FuncName: "=", Type: exprtype.Boolean, Args: []*expr.Desc{a, b}}
}

func and(a, b *expr.Desc) *expr.Desc {
	return &expr.Desc{Kind: expr.KindFunc, FuncName: "and", Type: exprtype.Boolean, Args: []*expr.Desc{a, b}}
}

func TestExtractPrunablePredicateSplitsMixedAnd(t *testing.T) {
	table := partitionedTable()
	pred := and(eq(col("ds", exprtype.Text), lit("2026-01-01", exprtype.Text)), eq(col("user_id", exprtype.Integer), lit("5", exprtype.Integer)))

	prunable := prune.ExtractPrunablePredicate(pred, table)
	require.NotNil(t, prunable)
	assert.Equal(t, "ds", prunable.Args[0].Column)
}

func TestExtractPrunablePredicateDropsNonPartitionOnly(t *testing.T) {
	table := partitionedTable()
	pred := eq(col("user_id", exprtype.Integer), lit("5", exprtype.Integer))

	assert.Nil(t, prune.ExtractPrunablePredicate(pred, table))
	assert.False(t, prune.HasPartitionPredicate(table, pred))
}

func TestRequirePartitionPredicateStrictMode(t *testing.T) {
	table := partitionedTable()
	err := prune.RequirePartitionPredicate(table, nil, true)
	require.Error(t, err)
	var semErr *semerr.SemanticError
	require.ErrorAs(t, err, &semErr)
	assert.Equal(t, semerr.NoPartitionPredicate, semErr.Code)

	pred := eq(col("ds", exprtype.Text), lit("2026-01-01", exprtype.Text))
	assert.NoError(t, prune.RequirePartitionPredicate(table, pred, true))
	assert.NoError(t, prune.RequirePartitionPredicate(table, nil, false))
}

func TestPruneExcludesNonMatchingPartitions(t *testing.T) {
	table := partitionedTable()
	partitions := []*metastore.Partition{
		{Values: []string{"2026-01-01"}, Location: "/a"},
		{Values: []string{"2026-01-02"}, Location: "/b"},
	}
	pred := eq(col("ds", exprtype.Text), lit("2026-01-01", exprtype.Text))

	kept := prune.Prune(table, partitions, pred)
	require.Len(t, kept, 1)
	assert.Equal(t, "/a", kept[0].Location)
}

func TestPruneKeepsAllWhenUnprunable(t *testing.T) {
	table := partitionedTable()
	partitions := []*metastore.Partition{
		{Values: []string{"2026-01-01"}},
		{Values: []string{"2026-01-02"}},
	}
	pred := eq(col("user_id", exprtype.Integer), lit("5", exprtype.Integer))

	kept := prune.Prune(table, partitions, pred)
	assert.Len(t, kept, 2)
}

func bucketedTable() *metastore.Table {
	return &metastore.Table{
		Name:       "clicks",
		Columns:    []metastore.Column{{Name: "user_id", Type: exprtype.Integer}},
		BucketCols: []string{"user_id"},
		NumBuckets: 32,
	}
}

func TestSamplePrunerValidate(t *testing.T) {
	p := prune.NewSamplePruner()
	table := bucketedTable()

	require.NoError(t, p.Validate(table, &qb.TableSample{BucketNum: 1, NumBuckets: 8, OnCols: []string{"user_id"}}))

	err := p.Validate(table, &qb.TableSample{BucketNum: 1, NumBuckets: 8, OnCols: []string{"a", "b", "c"}})
	require.Error(t, err)
	var semErr *semerr.SemanticError
	require.ErrorAs(t, err, &semErr)
	assert.Equal(t, semerr.SampleRestriction, semErr.Code)

	err = p.Validate(table, &qb.TableSample{BucketNum: 1, NumBuckets: 8, OnCols: []string{"missing"}})
	require.ErrorAs(t, err, &semErr)
	assert.Equal(t, semerr.SampleColumnNotFound, semErr.Code)

	unbucketed := &metastore.Table{Name: "t", Columns: []metastore.Column{{Name: "x", Type: exprtype.Integer}}}
	err = p.Validate(unbucketed, &qb.TableSample{BucketNum: 1, NumBuckets: 4, OnCols: []string{"x"}})
	require.ErrorAs(t, err, &semErr)
	assert.Equal(t, semerr.NonBucketedTable, semErr.Code)
}

func TestSamplePrunerBucketFilesDirectSelection(t *testing.T) {
	p := prune.NewSamplePruner()
	table := bucketedTable()
	sample := &qb.TableSample{BucketNum: 2, NumBuckets: 8, OnCols: []string{"user_id"}}

	files, ok := p.BucketFiles(table, sample)
	require.True(t, ok)
	assert.Equal(t, []int{1, 9, 17, 25}, files)
}

func TestSamplePrunerFallsBackToHashPredicate(t *testing.T) {
	p := prune.NewSamplePruner()
	table := bucketedTable()
	sample := &qb.TableSample{BucketNum: 1, NumBuckets: 5, OnCols: []string{"user_id"}}

	_, ok := p.BucketFiles(table, sample)
	assert.False(t, ok)

	pred := p.HashPredicate([]*expr.Desc{col("user_id", exprtype.Integer)}, sample)
	require.Equal(t, "=", pred.FuncName)
	assert.Equal(t, "0", pred.Args[1].Literal)

	modCall := pred.Args[0]
	require.Equal(t, "%", modCall.FuncName)
	maskedCall := modCall.Args[0]
	require.Equal(t, "&", maskedCall.FuncName)
	assert.Equal(t, "hash", maskedCall.Args[0].FuncName)
	assert.Equal(t, "2147483647", maskedCall.Args[1].Literal)
}

func TestResolvedColumnsDefaultsToBucketColumns(t *testing.T) {
	table := &metastore.Table{
		Name: "clicks",
		Columns: []metastore.Column{
			{Name: "user_id", Type: exprtype.Integer},
			{Name: "url", Type: exprtype.Text},
		},
		BucketCols: []string{"user_id"},
		NumBuckets: 32,
	}
	cols := prune.ResolvedColumns(table, &qb.TableSample{BucketNum: 1, NumBuckets: 4})
	assert.Equal(t, []string{"user_id"}, cols)
}

func TestResolvedColumnsUsesExplicitOnCols(t *testing.T) {
	table := bucketedTable()
	cols := prune.ResolvedColumns(table, &qb.TableSample{BucketNum: 1, NumBuckets: 4, OnCols: []string{"other_col"}})
	assert.Equal(t, []string{"other_col"}, cols)
}
