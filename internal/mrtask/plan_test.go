package mrtask_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hiveql-compiler/internal/ast"
	"github.com/dshills/hiveql-compiler/internal/exprtype"
	"github.com/dshills/hiveql-compiler/internal/funcreg"
	"github.com/dshills/hiveql-compiler/internal/metastore"
	"github.com/dshills/hiveql-compiler/internal/mrtask"
	"github.com/dshills/hiveql-compiler/internal/operator"
	"github.com/dshills/hiveql-compiler/internal/plan"
	"github.com/dshills/hiveql-compiler/internal/semantic/qb"
)

func tabColRef(name string) *ast.Node {
	return ast.New(ast.KindTabColRef, "", ast.New(ast.KindIdentifier, name))
}

func qualifiedColRef(table, name string) *ast.Node {
	return ast.New(ast.KindDot, "", tabColRef(table), ast.New(ast.KindIdentifier, name))
}

func selectStar() *ast.Node {
	return ast.New(ast.KindSelect, "", ast.New(ast.KindSelExpr, "", ast.New(ast.KindAllColRef, "")))
}

func selExpr(e *ast.Node, alias string) *ast.Node {
	if alias == "" {
		return ast.New(ast.KindSelExpr, "", e)
	}
	return ast.New(ast.KindSelExpr, "", e, ast.New(ast.KindIdentifier, alias))
}

func eventsTable() *metastore.Table {
	return &metastore.Table{
		Name:    "events",
		Columns: []metastore.Column{{Name: "user_id", Type: exprtype.Integer}, {Name: "amount", Type: exprtype.Integer}},
	}
}

func baseQB(t *testing.T, table *metastore.Table, alias string) *qb.QB {
	t.Helper()
	q := qb.New("1", "", false)
	require.NoError(t, q.AddTabAlias(alias, table.Name))
	q.MetaData.TableForAlias[alias] = table
	return q
}

func TestPlanFastPathSelectStarUnpartitioned(t *testing.T) {
	table := eventsTable()
	q := baseQB(t, table, "e")
	dest, _ := q.Destination(q.NextDestinationName())
	dest.SelectExpr = selectStar()
	q.MetaData.DestinationPath[dest.Name] = "/scratch/out0"

	registry := funcreg.NewBuiltinRegistry()
	factory := operator.NewFactory()
	sinks, err := plan.New(registry, nil).Plan(factory, q)
	require.NoError(t, err)

	tasks, err := mrtask.New(registry).Plan(factory, q, sinks)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, mrtask.KindFetch, tasks[0].Kind)
	assert.Equal(t, "/scratch/out0", tasks[0].Fetch.Path)
	assert.Same(t, table, tasks[0].Fetch.Table)
}

func TestPlanGeneralSimpleSelectEndsInMove(t *testing.T) {
	table := eventsTable()
	q := baseQB(t, table, "e")
	dest, _ := q.Destination(q.NextDestinationName())
	dest.SelectExpr = selectStar()
	dest.WhereExpr = ast.New(ast.KindEqual, "", qualifiedColRef("e", "user_id"), ast.New(ast.KindNumber, "5"))
	q.MetaData.DestinationPath[dest.Name] = "/scratch/out0"

	registry := funcreg.NewBuiltinRegistry()
	factory := operator.NewFactory()
	sinks, err := plan.New(registry, nil).Plan(factory, q)
	require.NoError(t, err)

	tasks, err := mrtask.New(registry).Plan(factory, q, sinks)
	require.NoError(t, err)

	var stage, move *mrtask.Task
	for _, tk := range tasks {
		switch tk.Kind {
		case mrtask.KindMapRed:
			stage = tk
		case mrtask.KindMove:
			move = tk
		}
	}
	require.NotNil(t, stage)
	require.NotNil(t, move)
	require.Len(t, stage.Roots, 1)
	assert.Equal(t, operator.KindTableScan, stage.Roots[0].Kind)
	require.Len(t, stage.Sinks, 1)
	require.Empty(t, stage.ReduceSinks)
	require.Contains(t, stage.Children, move)
	assert.Equal(t, "/scratch/out0", move.Move.Path)
}

func unionBranch(t *testing.T, table *metastore.Table, alias string) *qb.Expr {
	t.Helper()
	sub := qb.New("1", "", true)
	require.NoError(t, sub.AddTabAlias(alias, table.Name))
	sub.MetaData.TableForAlias[alias] = table
	dest, _ := sub.Destination(sub.NextDestinationName())
	dest.SelectExpr = ast.New(ast.KindSelect, "", selExpr(qualifiedColRef(alias, "user_id"), ""))
	return qb.NullOpExpr(sub)
}

func TestPlanGeneralUnionAllBranchesShareOneMapTask(t *testing.T) {
	table := eventsTable()
	outer := qb.New("1", "", false)
	require.NoError(t, outer.AddSubqAlias("u", qb.UnionExpr(unionBranch(t, table, "a"), unionBranch(t, table, "b"))))
	dest, _ := outer.Destination(outer.NextDestinationName())
	dest.SelectExpr = selectStar()
	outer.MetaData.DestinationPath[dest.Name] = "/scratch/out0"

	registry := funcreg.NewBuiltinRegistry()
	factory := operator.NewFactory()
	sinks, err := plan.New(registry, nil).Plan(factory, outer)
	require.NoError(t, err)

	tasks, err := mrtask.New(registry).Plan(factory, outer, sinks)
	require.NoError(t, err)

	var stages []*mrtask.Task
	var move *mrtask.Task
	for _, tk := range tasks {
		switch tk.Kind {
		case mrtask.KindMapRed:
			stages = append(stages, tk)
		case mrtask.KindMove:
			move = tk
		}
	}
	require.Len(t, stages, 1, "both UNION ALL branches converge before any shuffle, so they share one map task")
	require.NotNil(t, move)

	stage := stages[0]
	require.Len(t, stage.Roots, 2)
	assert.Equal(t, operator.KindTableScan, stage.Roots[0].Kind)
	assert.Equal(t, operator.KindTableScan, stage.Roots[1].Kind)
	require.Empty(t, stage.ReduceSinks)
	require.Len(t, stage.Sinks, 1, "the shared FileSink downstream of the Forward merge must be recorded once, not once per branch")
	require.Contains(t, stage.Children, move)
}

func TestPlanGeneralGroupByChainsTwoStages(t *testing.T) {
	table := eventsTable()
	q := baseQB(t, table, "e")
	dest, _ := q.Destination(q.NextDestinationName())

	groupKey := qualifiedColRef("e", "user_id")
	sumCall := ast.New(ast.KindFunction, "", ast.New(ast.KindIdentifier, "sum"), qualifiedColRef("e", "amount"))
	dest.SelectExpr = ast.New(ast.KindSelect, "", selExpr(groupKey, ""), selExpr(sumCall, "total"))
	dest.GroupByExprs = []*ast.Node{groupKey}
	dest.AggregationExprs = map[string]*ast.Node{sumCall.CanonicalString(): sumCall}
	q.MetaData.DestinationPath[dest.Name] = "/scratch/out0"

	registry := funcreg.NewBuiltinRegistry()
	factory := operator.NewFactory()
	sinks, err := plan.New(registry, nil).Plan(factory, q)
	require.NoError(t, err)

	tasks, err := mrtask.New(registry).Plan(factory, q, sinks)
	require.NoError(t, err)

	var stages []*mrtask.Task
	var move *mrtask.Task
	for _, tk := range tasks {
		switch tk.Kind {
		case mrtask.KindMapRed:
			stages = append(stages, tk)
		case mrtask.KindMove:
			move = tk
		}
	}
	require.NotEmpty(t, stages)
	require.NotNil(t, move)

	var root *mrtask.Task
	for _, s := range stages {
		if len(s.Roots) == 1 && s.Roots[0].Kind == operator.KindTableScan {
			root = s
		}
	}
	require.NotNil(t, root, "expected one stage rooted at the TableScan")
	require.NotEmpty(t, root.ReduceSinks)
	require.NotEmpty(t, root.Children)

	seen := map[*mrtask.Task]bool{}
	var reachesMove func(tk *mrtask.Task) bool
	reachesMove = func(tk *mrtask.Task) bool {
		if seen[tk] {
			return false
		}
		seen[tk] = true
		for _, c := range tk.Children {
			if c == move || reachesMove(c) {
				return true
			}
		}
		return false
	}
	assert.True(t, reachesMove(root), "expected the TableScan stage to eventually depend into the Move task")
}
