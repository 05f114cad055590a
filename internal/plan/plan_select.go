package plan

import (
	"fmt"
	"sort"

	"github.com/dshills/hiveql-compiler/internal/ast"
	"github.com/dshills/hiveql-compiler/internal/exprtype"
	"github.com/dshills/hiveql-compiler/internal/groupby"
	"github.com/dshills/hiveql-compiler/internal/operator"
	"github.com/dshills/hiveql-compiler/internal/semantic/expr"
	"github.com/dshills/hiveql-compiler/internal/semantic/qb"
	"github.com/dshills/hiveql-compiler/internal/semantic/resolver"
	"github.com/dshills/hiveql-compiler/internal/semantic/semerr"
)

// planBody runs one destination's WHERE -> GROUP BY -> SELECT/TRANSFORM ->
// CLUSTER/DISTRIBUTE/SORT BY -> LIMIT pipeline over source (§4.9 steps
// 1-6). It does not attach the terminal FileSink; callers wrap the result
// themselves (a top-level destination wraps it in a FileSink, a subquery
// instead re-aliases its schema).
func (p *Planner) planBody(factory *operator.Factory, q *qb.QB, dest *qb.DestinationInfo, source *operator.Operator) (*operator.Operator, error) {
	cur := source

	if dest.WhereExpr != nil {
		c := expr.New(p.registry, cur.Schema)
		pred, err := c.Compile(dest.WhereExpr)
		if err != nil {
			return nil, err
		}
		cur = factory.Filter(&operator.FilterDesc{Predicate: pred}, cur.Schema, cur)
	}

	bindings, err := p.planGroupBy(factory, dest, &cur)
	if err != nil {
		return nil, err
	}

	selOp, err := p.planSelectOrTransform(factory, dest, cur, bindings)
	if err != nil {
		return nil, err
	}
	cur = selOp

	if dest.IsSelectDistinct {
		cur, err = p.applySelectDistinct(factory, cur)
		if err != nil {
			return nil, err
		}
	}

	cur, err = p.applySortCluster(factory, cur, dest)
	if err != nil {
		return nil, err
	}

	if dest.Limit != nil {
		cur = factory.Limit(&operator.LimitDesc{N: *dest.Limit}, cur.Schema, cur)
		if q.IsSubQuery {
			cur = p.applyGlobalLimitShuffle(factory, cur, *dest.Limit)
		}
	}

	return cur, nil
}

// applyGlobalLimitShuffle implements §4.9 step 6's "not in an outer query"
// case: a LIMIT inside a subquery only caps rows per map task, so a
// single-reducer ReduceSink + Extract funnels every surviving row through
// one reducer before a second Limit re-applies the cap globally. A
// top-level query's LIMIT is instead enforced exactly by the fetch/move
// task that materializes its result, so this only runs for subqueries.
func (p *Planner) applyGlobalLimitShuffle(factory *operator.Factory, cur *operator.Operator, limit int) *operator.Operator {
	cols := cur.Schema.Columns()
	valueExprs := make([]*expr.Desc, len(cols))
	valueCols := make([]operator.ColumnSpec, len(cols))
	for i, ce := range cols {
		valueExprs[i] = &expr.Desc{Kind: expr.KindColumn, Type: ce.Info.Type, InternalName: ce.Info.InternalName}
		valueCols[i] = operator.ColumnSpec{Alias: ce.Alias, Column: ce.Column, Type: ce.Info.Type}
	}
	rsSchema := operator.ReduceSinkSchema(nil, valueCols)
	rs := factory.ReduceSink(&operator.ReduceSinkDesc{
		ValueExprs:  valueExprs,
		Tag:         -1,
		NumReducers: 1,
	}, rsSchema, cur)

	extractCols := make([]operator.ColumnSpec, len(cols))
	colNames := make([]string, len(cols))
	for i, ce := range cols {
		extractCols[i] = operator.ColumnSpec{Alias: ce.Alias, Column: ce.Column, Type: ce.Info.Type}
		colNames[i] = ce.Column
	}
	extractSchema := operator.DenseSchema(extractCols)
	extract := factory.Extract(&operator.ExtractDesc{ColumnNames: colNames}, extractSchema, rs)

	return factory.Limit(&operator.LimitDesc{N: limit}, extract.Schema, extract)
}

// planGroupBy compiles dest's GROUP BY keys and aggregation subtrees
// against *cur's current schema, runs the group-by planner if either is
// present, advances *cur to its output, and returns the canonical-text ->
// output-column bindings the SELECT list compiler needs to resolve
// aggregation/key subtrees against the post-group-by row instead of the
// original one (§4.4's BindExpr reuse rule).
func (p *Planner) planGroupBy(factory *operator.Factory, dest *qb.DestinationInfo, cur **operator.Operator) (map[string]*resolver.ColumnInfo, error) {
	if len(dest.GroupByExprs) == 0 && len(dest.AggregationExprs) == 0 {
		return nil, nil
	}

	c := expr.New(p.registry, (*cur).Schema)

	seenKeys := make(map[string]bool, len(dest.GroupByExprs))
	keys := make([]groupby.KeySpec, len(dest.GroupByExprs))
	keyNodes := make([]*ast.Node, len(dest.GroupByExprs))
	for i, node := range dest.GroupByExprs {
		text := node.CanonicalString()
		if seenKeys[text] {
			return nil, semerr.DuplicateGroupByKeyError(text)
		}
		seenKeys[text] = true

		d, err := c.Compile(node)
		if err != nil {
			return nil, err
		}
		keys[i] = groupby.KeySpec{Expr: d, Column: fmt.Sprintf("_key%d", i)}
		keyNodes[i] = node
	}

	aggTexts := make([]string, 0, len(dest.AggregationExprs))
	for text := range dest.AggregationExprs {
		aggTexts = append(aggTexts, text)
	}
	sort.Strings(aggTexts)

	aggs := make([]groupby.AggregationSpec, len(aggTexts))
	aggNodes := make([]*ast.Node, len(aggTexts))
	var distinctArgs []*expr.Desc
	for i, text := range aggTexts {
		node := dest.AggregationExprs[text]
		nameNode := node.Child(0)
		if nameNode == nil {
			return nil, fmt.Errorf("plan: aggregation call %q has no function name", text)
		}
		argNodes := node.Children[1:]
		args := make([]*expr.Desc, len(argNodes))
		for j, a := range argNodes {
			d, err := c.Compile(a)
			if err != nil {
				return nil, err
			}
			args[j] = d
		}
		distinct := dest.DistinctFuncExpr != nil && node.CanonicalString() == dest.DistinctFuncExpr.CanonicalString()
		if distinct {
			distinctArgs = args
		}
		aggs[i] = groupby.AggregationSpec{FuncName: nameNode.Text, Args: args, Distinct: distinct}
		aggNodes[i] = node
	}

	gp := groupby.New(p.registry, factory, p.cfg)
	out, _, err := gp.Build(*cur, keys, aggs, distinctArgs, p.cfg.MapSideAggregate)
	if err != nil {
		return nil, err
	}
	*cur = out

	outCols := out.Schema.Columns()
	if len(outCols) != len(keys)+len(aggs) {
		return nil, fmt.Errorf("plan: group-by output has %d columns, expected %d keys + %d aggregations", len(outCols), len(keys), len(aggs))
	}
	bindings := make(map[string]*resolver.ColumnInfo, len(outCols))
	for i, node := range keyNodes {
		bindings[node.CanonicalString()] = outCols[i].Info
	}
	for i, node := range aggNodes {
		bindings[node.CanonicalString()] = outCols[len(keys)+i].Info
	}
	return bindings, nil
}

func (p *Planner) planSelectOrTransform(factory *operator.Factory, dest *qb.DestinationInfo, cur *operator.Operator, bindings map[string]*resolver.ColumnInfo) (*operator.Operator, error) {
	if dest.IsTransform {
		return p.buildTransform(factory, dest, cur)
	}
	c := expr.New(p.registry, cur.Schema)
	for text, info := range bindings {
		c.BindExpr(text, info)
	}
	return p.buildSelect(factory, dest, cur, c)
}

// buildTransform wires a TOK_TRANSFORM clause to a Script operator. Hive's
// TRANSFORM has no grammar analogue in the teacher's parser and no
// TOK_TRANSFORM tree appears anywhere in this codebase's test fixtures;
// this models it the way a direct ast.New(...) caller would build one: the
// clause node's own Text carries the shell command, and an explicit
// "AS (col, ...)" child list of Identifier nodes names the output columns,
// defaulting to {"key", "value"} when absent (§4.9 step 4).
func (p *Planner) buildTransform(factory *operator.Factory, dest *qb.DestinationInfo, cur *operator.Operator) (*operator.Operator, error) {
	node := dest.SelectExpr
	outputNames := []string{"key", "value"}
	if idents := node.ChildrenOfKind(ast.KindIdentifier); len(idents) > 0 {
		outputNames = make([]string, len(idents))
		for i, id := range idents {
			outputNames[i] = id.Text
		}
	}
	cols := make([]operator.ColumnSpec, len(outputNames))
	for i, name := range outputNames {
		cols[i] = operator.ColumnSpec{Column: name, Type: exprtype.Text}
	}
	schema := operator.DenseSchema(cols)
	return factory.Script(&operator.ScriptDesc{Command: node.Text, OutputColumnNames: outputNames}, schema, cur), nil
}

// buildSelect projects dest's select list (§4.9 step 3). A bare "*" or
// "alias.*" TOK_ALLCOLREF item expands to every column the referenced
// scope currently carries rather than compiling to a single expression.
func (p *Planner) buildSelect(factory *operator.Factory, dest *qb.DestinationInfo, cur *operator.Operator, c *expr.Compiler) (*operator.Operator, error) {
	node := dest.SelectExpr
	var exprs []*expr.Desc
	var outputNames []string
	var outCols []operator.ColumnSpec

	selExprs := node.ChildrenOfKind(ast.KindSelExpr)
	for i, se := range selExprs {
		target := se.Child(0)
		if target != nil && target.Kind == ast.KindAllColRef {
			star, err := p.expandStar(target, cur.Schema)
			if err != nil {
				return nil, err
			}
			for _, s := range star {
				exprs = append(exprs, s.expr)
				outputNames = append(outputNames, s.name)
				outCols = append(outCols, operator.ColumnSpec{Column: s.name, Type: s.expr.Type})
			}
			continue
		}
		d, err := c.Compile(target)
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("_c%d", i)
		if alias := se.Child(1); alias != nil {
			name = alias.Text
		} else if id := columnRefName(target); id != "" {
			name = id
		}
		exprs = append(exprs, d)
		outputNames = append(outputNames, name)
		outCols = append(outCols, operator.ColumnSpec{Column: name, Type: d.Type})
	}

	selectStar := len(selExprs) == 1 && selExprs[0].Child(0) != nil && selExprs[0].Child(0).Kind == ast.KindAllColRef
	schema := operator.DenseSchema(outCols)
	return factory.Select(&operator.SelectDesc{Exprs: exprs, OutputColumnNames: outputNames, SelectStar: selectStar}, schema, cur), nil
}

// columnRefName returns the column name an unaliased select item should
// take by default when target is a plain (possibly qualified) column
// reference, matching how Hive derives "user_id" rather than "_c0" for a
// bare column but still falls back to "_cN" for a computed expression.
func columnRefName(target *ast.Node) string {
	switch target.Kind {
	case ast.KindTabColRef:
		if id := target.FirstChildOfKind(ast.KindIdentifier); id != nil {
			return id.Text
		}
	case ast.KindDot:
		if right := target.Child(1); right != nil && right.Kind == ast.KindIdentifier {
			return right.Text
		}
	}
	return ""
}

type starColumn struct {
	name string
	expr *expr.Desc
}

func (p *Planner) expandStar(target *ast.Node, schema *resolver.RowResolver) ([]starColumn, error) {
	var alias string
	if id := target.FirstChildOfKind(ast.KindIdentifier); id != nil {
		alias = id.Text
	}
	var out []starColumn
	for _, ce := range schema.Columns() {
		if ce.Info.IsHiddenVirtual {
			continue
		}
		if alias != "" && ce.Alias != alias {
			continue
		}
		out = append(out, starColumn{
			name: ce.Column,
			expr: &expr.Desc{Kind: expr.KindColumn, Type: ce.Info.Type, Alias: ce.Alias, Column: ce.Column, InternalName: ce.Info.InternalName},
		})
	}
	return out, nil
}

// applySelectDistinct dedups whole output rows by treating every SELECT
// output column as a group-by key with no aggregators (SELECT DISTINCT
// and GROUP BY are mutually exclusive per phase-1, so there is no
// pre-existing group-by to fold this into).
func (p *Planner) applySelectDistinct(factory *operator.Factory, cur *operator.Operator) (*operator.Operator, error) {
	cols := cur.Schema.Columns()
	keys := make([]groupby.KeySpec, len(cols))
	for i, ce := range cols {
		keys[i] = groupby.KeySpec{
			Expr:   &expr.Desc{Kind: expr.KindColumn, Type: ce.Info.Type, InternalName: ce.Info.InternalName},
			Column: ce.Column,
		}
	}
	gp := groupby.New(p.registry, factory, p.cfg)
	out, _, err := gp.Build(cur, keys, nil, nil, p.cfg.MapSideAggregate)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// applySortCluster implements CLUSTER BY / DISTRIBUTE BY / SORT BY as a
// ReduceSink + Extract pair (§4.9 step 5). CLUSTER BY supplies both the
// partition and sort keys; DISTRIBUTE BY/SORT BY may each be present
// independently.
func (p *Planner) applySortCluster(factory *operator.Factory, cur *operator.Operator, dest *qb.DestinationInfo) (*operator.Operator, error) {
	if len(dest.ClusterByExprs) == 0 && len(dest.DistributeByExprs) == 0 && len(dest.SortByExprs) == 0 {
		return cur, nil
	}
	c := expr.New(p.registry, cur.Schema)

	var keyExprs []*expr.Desc
	var orders []operator.Order
	var partitionExprs []*expr.Desc

	switch {
	case len(dest.ClusterByExprs) > 0:
		for _, node := range dest.ClusterByExprs {
			d, err := c.Compile(node)
			if err != nil {
				return nil, err
			}
			keyExprs = append(keyExprs, d)
			orders = append(orders, operator.Ascending)
		}
		partitionExprs = keyExprs
	default:
		for _, node := range dest.DistributeByExprs {
			d, err := c.Compile(node)
			if err != nil {
				return nil, err
			}
			partitionExprs = append(partitionExprs, d)
		}
		for _, node := range dest.SortByExprs {
			d, order, err := compileSortKey(c, node)
			if err != nil {
				return nil, err
			}
			keyExprs = append(keyExprs, d)
			orders = append(orders, order)
		}
		if len(keyExprs) == 0 {
			keyExprs = partitionExprs
			orders = make([]operator.Order, len(keyExprs))
		}
	}

	cols := cur.Schema.Columns()
	valueExprs := make([]*expr.Desc, len(cols))
	valueCols := make([]operator.ColumnSpec, len(cols))
	for i, ce := range cols {
		valueExprs[i] = &expr.Desc{Kind: expr.KindColumn, Type: ce.Info.Type, InternalName: ce.Info.InternalName}
		valueCols[i] = operator.ColumnSpec{Alias: ce.Alias, Column: ce.Column, Type: ce.Info.Type}
	}
	keyCols := make([]operator.ColumnSpec, len(keyExprs))
	for i, d := range keyExprs {
		keyCols[i] = operator.ColumnSpec{Column: fmt.Sprintf("_sort%d", i), Type: d.Type}
	}

	rsSchema := operator.ReduceSinkSchema(keyCols, valueCols)
	rs := factory.ReduceSink(&operator.ReduceSinkDesc{
		KeyExprs:       keyExprs,
		ValueExprs:     valueExprs,
		PartitionExprs: partitionExprs,
		Order:          orders,
		Tag:            -1,
		NumReducers:    -1,
	}, rsSchema, cur)

	extractCols := make([]operator.ColumnSpec, len(cols))
	colNames := make([]string, len(cols))
	for i, ce := range cols {
		extractCols[i] = operator.ColumnSpec{Alias: ce.Alias, Column: ce.Column, Type: ce.Info.Type}
		colNames[i] = ce.Column
	}
	extractSchema := operator.DenseSchema(extractCols)
	return factory.Extract(&operator.ExtractDesc{ColumnNames: colNames}, extractSchema, rs), nil
}

func compileSortKey(c *expr.Compiler, node *ast.Node) (*expr.Desc, operator.Order, error) {
	order := operator.Ascending
	target := node
	switch node.Kind {
	case ast.KindTabSortDesc:
		order = operator.Descending
		target = node.Child(0)
	case ast.KindTabSortAsc:
		target = node.Child(0)
	}
	d, err := c.Compile(target)
	return d, order, err
}
