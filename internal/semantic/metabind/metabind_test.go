package metabind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hiveql-compiler/internal/ast"
	"github.com/dshills/hiveql-compiler/internal/config"
	"github.com/dshills/hiveql-compiler/internal/exprtype"
	"github.com/dshills/hiveql-compiler/internal/funcreg"
	"github.com/dshills/hiveql-compiler/internal/metastore"
	"github.com/dshills/hiveql-compiler/internal/semantic/phase1"
	"github.com/dshills/hiveql-compiler/internal/semantic/qb"
	"github.com/dshills/hiveql-compiler/internal/semantic/semerr"
	"github.com/dshills/hiveql-compiler/internal/session"
)

func newStore() *metastore.MemoryMetastore {
	store := metastore.NewMemoryMetastore()
	store.PutTable(&metastore.Table{
		Name:         "orders",
		Columns:      []metastore.Column{{Name: "id", Type: exprtype.Integer}, {Name: "amount", Type: exprtype.Double}},
		InputFormat:  metastore.TextInputFormat,
		OutputFormat: metastore.TextOutputFormat,
		Location:     "/warehouse/orders",
	})
	store.PutTable(&metastore.Table{
		Name:          "events",
		Columns:       []metastore.Column{{Name: "id", Type: exprtype.Integer}},
		PartitionCols: []metastore.Column{{Name: "ds", Type: exprtype.Text}},
		InputFormat:   metastore.TextInputFormat,
		OutputFormat:  metastore.TextOutputFormat,
		Location:      "/warehouse/events",
	})
	store.PutPartitions("events", []*metastore.Partition{
		{Values: []string{"2026-01-01"}, Location: "/warehouse/events/ds=2026-01-01"},
		{Values: []string{"2026-01-02"}, Location: "/warehouse/events/ds=2026-01-02"},
	})
	return store
}

func newSession() *session.Session {
	return session.New(config.DefaultConfig(), nil)
}

func tabRef(table, alias string) *ast.Node {
	return ast.New(ast.KindTabRef, "", ast.New(ast.KindIdentifier, table), ast.New(ast.KindAlias, alias))
}

func allColSelect() *ast.Node {
	return ast.New(ast.KindSelect, "", ast.New(ast.KindSelExpr, "", ast.New(ast.KindAllColRef, "")))
}

func implicitDest() *ast.Node {
	return ast.New(ast.KindDestination, "", ast.New(ast.KindDir, "insclause-0"))
}

func analyzeSimpleSelect(t *testing.T, table, alias string) *qb.Expr {
	t.Helper()
	insert := ast.New(ast.KindInsert, "", implicitDest(), allColSelect(), ast.New(ast.KindFrom, "", tabRef(table, alias)))
	root := ast.New(ast.KindQuery, "", insert)
	expr, err := phase1.New(funcreg.NewBuiltinRegistry()).Analyze(root)
	require.NoError(t, err)
	return expr
}

func TestBindResolvesTableForAlias(t *testing.T) {
	expr := analyzeSimpleSelect(t, "orders", "o")

	b := New(newStore(), newSession())
	require.NoError(t, b.Bind(expr))

	table, ok := expr.QB.MetaData.TableForAlias["o"]
	require.True(t, ok)
	assert.Equal(t, "orders", table.Name)
}

func TestBindListsPartitionsForPartitionedTable(t *testing.T) {
	expr := analyzeSimpleSelect(t, "events", "e")

	b := New(newStore(), newSession())
	require.NoError(t, b.Bind(expr))

	parts, ok := expr.QB.MetaData.PartitionsForAlias["e"]
	require.True(t, ok)
	assert.Len(t, parts, 2)
}

func TestBindRejectsUnknownTable(t *testing.T) {
	expr := analyzeSimpleSelect(t, "missing", "m")

	b := New(newStore(), newSession())
	err := b.Bind(expr)
	require.Error(t, err)
	var se *semerr.SemanticError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, semerr.InvalidTable, se.Code)
}

func TestBindAllocatesSessionScratchPathForImplicitDestination(t *testing.T) {
	expr := analyzeSimpleSelect(t, "orders", "o")

	sess := newSession()
	b := New(newStore(), sess)
	require.NoError(t, b.Bind(expr))

	path, ok := expr.QB.MetaData.DestinationPath[qb.ImplicitDestination]
	require.True(t, ok)
	assert.Contains(t, path, sess.ID())
	assert.Contains(t, path, qb.ImplicitDestination)
}

func TestBindResolvesTableDestination(t *testing.T) {
	insert := ast.New(ast.KindInsert, "",
		ast.New(ast.KindDestination, "", ast.New(ast.KindTab, "", ast.New(ast.KindIdentifier, "orders"))),
		allColSelect(),
		ast.New(ast.KindFrom, "", tabRef("events", "e")))
	root := ast.New(ast.KindQuery, "", insert)
	expr, err := phase1.New(funcreg.NewBuiltinRegistry()).Analyze(root)
	require.NoError(t, err)

	b := New(newStore(), newSession())
	require.NoError(t, b.Bind(expr))

	path, ok := expr.QB.MetaData.DestinationPath[qb.ImplicitDestination]
	require.True(t, ok)
	assert.Equal(t, "/warehouse/orders", path)
}

func TestBindResolvesTableDestinationHandle(t *testing.T) {
	insert := ast.New(ast.KindInsert, "",
		ast.New(ast.KindDestination, "", ast.New(ast.KindTab, "", ast.New(ast.KindIdentifier, "orders"))),
		allColSelect(),
		ast.New(ast.KindFrom, "", tabRef("events", "e")))
	root := ast.New(ast.KindQuery, "", insert)
	expr, err := phase1.New(funcreg.NewBuiltinRegistry()).Analyze(root)
	require.NoError(t, err)

	b := New(newStore(), newSession())
	require.NoError(t, b.Bind(expr))

	table, ok := expr.QB.MetaData.DestinationTable[qb.ImplicitDestination]
	require.True(t, ok)
	assert.Equal(t, "orders", table.Name)
}

func TestBindLeavesDestinationTableUnsetForDirectoryDestination(t *testing.T) {
	expr := analyzeSimpleSelect(t, "orders", "o")

	b := New(newStore(), newSession())
	require.NoError(t, b.Bind(expr))

	_, ok := expr.QB.MetaData.DestinationTable[qb.ImplicitDestination]
	assert.False(t, ok)
}

func TestBindRejectsUnrecognizedInputFormat(t *testing.T) {
	store := newStore()
	store.PutTable(&metastore.Table{
		Name:         "weird",
		Columns:      []metastore.Column{{Name: "id", Type: exprtype.Integer}},
		InputFormat:  metastore.InputFormat("CustomInputFormat"),
		OutputFormat: metastore.TextOutputFormat,
		Location:     "/warehouse/weird",
	})
	expr := analyzeSimpleSelect(t, "weird", "w")

	b := New(store, newSession())
	err := b.Bind(expr)
	require.Error(t, err)
	var se *semerr.SemanticError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, semerr.InvalidInputFormatType, se.Code)
}

func TestBindRecursesIntoSubqueryAlias(t *testing.T) {
	innerInsert := ast.New(ast.KindInsert, "", implicitDest(), allColSelect(), ast.New(ast.KindFrom, "", tabRef("orders", "o")))
	innerQuery := ast.New(ast.KindQuery, "", innerInsert)
	subq := ast.New(ast.KindSubquery, "", innerQuery, ast.New(ast.KindIdentifier, "s"))

	outerInsert := ast.New(ast.KindInsert, "", implicitDest(), allColSelect(), ast.New(ast.KindFrom, "", subq))
	root := ast.New(ast.KindQuery, "", outerInsert)
	expr, err := phase1.New(funcreg.NewBuiltinRegistry()).Analyze(root)
	require.NoError(t, err)

	b := New(newStore(), newSession())
	require.NoError(t, b.Bind(expr))

	sub, ok := expr.QB.SubqForAlias("s")
	require.True(t, ok)
	table, ok := sub.QB.MetaData.TableForAlias["o"]
	require.True(t, ok)
	assert.Equal(t, "orders", table.Name)
}
