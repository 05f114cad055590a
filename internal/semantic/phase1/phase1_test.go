package phase1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hiveql-compiler/internal/ast"
	"github.com/dshills/hiveql-compiler/internal/funcreg"
	"github.com/dshills/hiveql-compiler/internal/semantic/qb"
	"github.com/dshills/hiveql-compiler/internal/semantic/semerr"
	"github.com/dshills/hiveql-compiler/internal/sql/parser"
)

func mustParseQuery(t *testing.T, sql string) *ast.Node {
	t.Helper()
	p := parser.NewParser(sql)
	stmt, err := p.Parse()
	require.NoError(t, err)
	sel, ok := stmt.(*parser.SelectStmt)
	require.True(t, ok)
	return ast.Adapt(sel)
}

func newAnalyzer() *Analyzer {
	return New(funcreg.NewBuiltinRegistry())
}

func tabRef(table, alias string) *ast.Node {
	return ast.New(ast.KindTabRef, "", ast.New(ast.KindIdentifier, table), ast.New(ast.KindAlias, alias))
}

func dotRef(alias, col string) *ast.Node {
	return ast.New(ast.KindDot, "",
		ast.New(ast.KindTabColRef, "", ast.New(ast.KindIdentifier, alias)),
		ast.New(ast.KindIdentifier, col))
}

func allColSelect() *ast.Node {
	return ast.New(ast.KindSelect, "", ast.New(ast.KindSelExpr, "", ast.New(ast.KindAllColRef, "")))
}

func implicitDest() *ast.Node {
	return ast.New(ast.KindDestination, "", ast.New(ast.KindDir, "insclause-0"))
}

func TestAnalyzeSimpleSelectFromParsedSQL(t *testing.T) {
	root := mustParseQuery(t, "SELECT a, b FROM t WHERE a = 1")

	expr, err := newAnalyzer().Analyze(root)
	require.NoError(t, err)
	require.Equal(t, qb.NullOp, expr.Kind)

	q := expr.QB
	assert.Equal(t, []string{"t"}, q.TabAliases())

	dest, ok := q.Destination(qb.ImplicitDestination)
	require.True(t, ok)
	assert.NotNil(t, dest.WhereExpr)
	assert.NotNil(t, dest.SelectExpr)
}

func TestAnalyzeCollectsAggregation(t *testing.T) {
	root := mustParseQuery(t, "SELECT count(x) FROM t")

	expr, err := newAnalyzer().Analyze(root)
	require.NoError(t, err)

	dest, ok := expr.QB.Destination(qb.ImplicitDestination)
	require.True(t, ok)
	assert.Len(t, dest.AggregationExprs, 1)
}

func TestAnalyzeRejectsMultipleDistinctAggregates(t *testing.T) {
	root := mustParseQuery(t, "SELECT count(DISTINCT a), count(DISTINCT b) FROM t GROUP BY g")

	_, err := newAnalyzer().Analyze(root)
	require.Error(t, err)
	var se *semerr.SemanticError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, semerr.UnsupportedMultipleDistincts, se.Code)
}

func TestAnalyzeRejectsDuplicateTableAlias(t *testing.T) {
	from := ast.New(ast.KindFrom, "", ast.New(ast.KindJoin, "", tabRef("a", "x"), tabRef("b", "x")))
	insert := ast.New(ast.KindInsert, "", implicitDest(), allColSelect(), from)
	root := ast.New(ast.KindQuery, "", insert)

	_, err := newAnalyzer().Analyze(root)
	require.Error(t, err)
	var se *semerr.SemanticError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, semerr.InvalidTableAlias, se.Code)
}

func TestAnalyzeRejectsTopLevelUnion(t *testing.T) {
	leaf := ast.New(ast.KindQuery, "", ast.New(ast.KindInsert, "", implicitDest(), allColSelect(),
		ast.New(ast.KindFrom, "", tabRef("t", "t"))))
	union := ast.New(ast.KindUnion, "", leaf, leaf)

	_, err := newAnalyzer().Analyze(union)
	require.Error(t, err)
	var se *semerr.SemanticError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, semerr.UnionNotInSubquery, se.Code)
}

func TestAnalyzeJoinSplitsEqualityAndFilter(t *testing.T) {
	eq := ast.New(ast.KindEqual, "", dotRef("a", "k"), dotRef("b", "k"))
	filter := ast.New(ast.KindGreater, "", dotRef("a", "x"), ast.New(ast.KindNumber, "10"))
	cond := ast.New(ast.KindAnd, "", eq, filter)
	join := ast.New(ast.KindJoin, "", tabRef("a", "a"), tabRef("b", "b"), cond)
	from := ast.New(ast.KindFrom, "", join)
	insert := ast.New(ast.KindInsert, "", implicitDest(), allColSelect(), from)
	root := ast.New(ast.KindQuery, "", insert)

	expr, err := newAnalyzer().Analyze(root)
	require.NoError(t, err)

	tree := expr.QB.JoinTree
	require.NotNil(t, tree)
	require.Len(t, tree.Expressions[0], 1)
	require.Len(t, tree.Expressions[1], 1)
	require.Len(t, tree.Filters[0], 1)
	assert.Empty(t, tree.Filters[1])
}

func TestAnalyzeJoinRejectsTopLevelOr(t *testing.T) {
	eq1 := ast.New(ast.KindEqual, "", dotRef("a", "k"), dotRef("b", "k"))
	eq2 := ast.New(ast.KindEqual, "", dotRef("a", "j"), dotRef("b", "j"))
	cond := ast.New(ast.KindOr, "", eq1, eq2)
	join := ast.New(ast.KindJoin, "", tabRef("a", "a"), tabRef("b", "b"), cond)
	from := ast.New(ast.KindFrom, "", join)
	insert := ast.New(ast.KindInsert, "", implicitDest(), allColSelect(), from)
	root := ast.New(ast.KindQuery, "", insert)

	_, err := newAnalyzer().Analyze(root)
	require.Error(t, err)
	var se *semerr.SemanticError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, semerr.InvalidJoinCondition3, se.Code)
}

func TestAnalyzeJoinRejectsNonEqualitySpanningBothSides(t *testing.T) {
	cond := ast.New(ast.KindGreater, "", dotRef("a", "x"), dotRef("b", "y"))
	join := ast.New(ast.KindJoin, "", tabRef("a", "a"), tabRef("b", "b"), cond)
	from := ast.New(ast.KindFrom, "", join)
	insert := ast.New(ast.KindInsert, "", implicitDest(), allColSelect(), from)
	root := ast.New(ast.KindQuery, "", insert)

	_, err := newAnalyzer().Analyze(root)
	require.Error(t, err)
	var se *semerr.SemanticError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, semerr.InvalidJoinCondition1, se.Code)
}

func TestAnalyzeClusterByDistributeByConflict(t *testing.T) {
	clusterBy := ast.New(ast.KindClusterBy, "", dotRef("t", "a"))
	distBy := ast.New(ast.KindDistributeBy, "", dotRef("t", "a"))
	insert := ast.New(ast.KindInsert, "", implicitDest(), allColSelect(),
		ast.New(ast.KindFrom, "", tabRef("t", "t")), clusterBy, distBy)
	root := ast.New(ast.KindQuery, "", insert)

	_, err := newAnalyzer().Analyze(root)
	require.Error(t, err)
	var se *semerr.SemanticError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, semerr.ClusterByDistributeByConflict, se.Code)
}

func TestAnalyzeTableSampleAttachesToAlias(t *testing.T) {
	sample := ast.New(ast.KindTableSample, "",
		ast.New(ast.KindNumber, "1"), ast.New(ast.KindNumber, "4"), ast.New(ast.KindIdentifier, "id"))
	ref := ast.New(ast.KindTabRef, "", ast.New(ast.KindIdentifier, "t"), ast.New(ast.KindAlias, "t"), sample)
	insert := ast.New(ast.KindInsert, "", implicitDest(), allColSelect(), ast.New(ast.KindFrom, "", ref))
	root := ast.New(ast.KindQuery, "", insert)

	expr, err := newAnalyzer().Analyze(root)
	require.NoError(t, err)

	ts, ok := expr.QB.TableSamples["t"]
	require.True(t, ok)
	assert.Equal(t, 1, ts.BucketNum)
	assert.Equal(t, 4, ts.NumBuckets)
	assert.Equal(t, []string{"id"}, ts.OnCols)
}

func TestAnalyzeMultiInsertAllocatesSequentialDestinations(t *testing.T) {
	from := ast.New(ast.KindFrom, "", tabRef("t", "t"))
	insert1 := ast.New(ast.KindInsert, "", implicitDest(), allColSelect())
	insert2 := ast.New(ast.KindInsert, "",
		ast.New(ast.KindDestination, "", ast.New(ast.KindDir, "insclause-1")), allColSelect())
	root := ast.New(ast.KindQuery, "", from, insert1, insert2)

	expr, err := newAnalyzer().Analyze(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"insclause-0", "insclause-1"}, expr.QB.DestinationNames())
}

func TestAnalyzeSubqueryRequiresTempFileDestination(t *testing.T) {
	innerDest := ast.New(ast.KindDestination, "", ast.New(ast.KindTab, "", ast.New(ast.KindIdentifier, "t2")))
	innerInsert := ast.New(ast.KindInsert, "", innerDest, allColSelect())
	innerQuery := ast.New(ast.KindQuery, "", innerInsert)
	subq := ast.New(ast.KindSubquery, "", innerQuery, ast.New(ast.KindIdentifier, "s"))

	outerFrom := ast.New(ast.KindFrom, "", subq)
	outerInsert := ast.New(ast.KindInsert, "", implicitDest(), allColSelect(), outerFrom)
	root := ast.New(ast.KindQuery, "", outerInsert)

	_, err := newAnalyzer().Analyze(root)
	require.Error(t, err)
	var se *semerr.SemanticError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, semerr.NoInsertInSubquery, se.Code)
}

func TestAnalyzeUnionInsideSubquery(t *testing.T) {
	branch := ast.New(ast.KindQuery, "", ast.New(ast.KindInsert, "", implicitDest(), allColSelect(),
		ast.New(ast.KindFrom, "", tabRef("t", "t"))))
	union := ast.New(ast.KindUnion, "", branch, branch)
	subq := ast.New(ast.KindSubquery, "", union, ast.New(ast.KindIdentifier, "s"))

	outerFrom := ast.New(ast.KindFrom, "", subq)
	outerInsert := ast.New(ast.KindInsert, "", implicitDest(), allColSelect(), outerFrom)
	root := ast.New(ast.KindQuery, "", outerInsert)

	expr, err := newAnalyzer().Analyze(root)
	require.NoError(t, err)

	sub, ok := expr.QB.SubqForAlias("s")
	require.True(t, ok)
	assert.Equal(t, qb.UnionAll, sub.Kind)
}
