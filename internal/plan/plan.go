// Package plan implements the operator-tree planner of §4.9: it turns one
// bound QB (or a UNION ALL chain of QBs) into the physical operator DAG
// internal/mrtask later cuts into map/reduce tasks. It assumes
// internal/semantic/phase1 and internal/semantic/metabind have already run
// (the QB's parseInfo and MetaData are populated).
package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/hiveql-compiler/internal/ast"
	"github.com/dshills/hiveql-compiler/internal/config"
	"github.com/dshills/hiveql-compiler/internal/exprtype"
	"github.com/dshills/hiveql-compiler/internal/funcreg"
	"github.com/dshills/hiveql-compiler/internal/metastore"
	"github.com/dshills/hiveql-compiler/internal/operator"
	"github.com/dshills/hiveql-compiler/internal/prune"
	"github.com/dshills/hiveql-compiler/internal/semantic/expr"
	"github.com/dshills/hiveql-compiler/internal/semantic/qb"
	"github.com/dshills/hiveql-compiler/internal/semantic/resolver"
	"github.com/dshills/hiveql-compiler/internal/semantic/semerr"
)

// Planner builds operator trees for bound query blocks.
type Planner struct {
	registry     funcreg.Registry
	cfg          *config.CompilerConfig
	samplePruner *prune.SamplePruner
}

// New creates a Planner. cfg supplies the partition-pruning strictness,
// map-side-aggregation preference and result compression flag; pass nil to
// use config.DefaultConfig's values.
func New(registry funcreg.Registry, cfg *config.CompilerConfig) *Planner {
	if cfg == nil {
		c := config.DefaultConfig().Compiler
		cfg = &c
	}
	return &Planner{registry: registry, cfg: cfg, samplePruner: prune.NewSamplePruner()}
}

// PlanExpr builds every destination's operator tree for a QB-expression,
// recursing through UNION ALL. Each UNION branch is planned independently
// and the resulting destination maps are merged; a query that lets both
// branches of a UNION ALL write the same implicit destination name relies
// on the outer query providing distinct destination names, since this
// planner does not merge two branches into one shared reduce stage.
func (p *Planner) PlanExpr(factory *operator.Factory, e *qb.Expr) (map[string]*operator.Operator, error) {
	if e == nil {
		return nil, fmt.Errorf("plan: nil QB-expression")
	}
	switch e.Kind {
	case qb.UnionAll:
		left, err := p.PlanExpr(factory, e.Left)
		if err != nil {
			return nil, err
		}
		right, err := p.PlanExpr(factory, e.Right)
		if err != nil {
			return nil, err
		}
		merged := make(map[string]*operator.Operator, len(left)+len(right))
		for k, v := range left {
			merged[k] = v
		}
		for k, v := range right {
			merged[k] = v
		}
		return merged, nil
	default:
		return p.Plan(factory, e.QB)
	}
}

// Plan builds one operator tree per destination of q, sharing the FROM
// clause's scan/join operators across every destination the way a
// multi-insert query's branches fan out from a common source (§4.9).
// Returns the terminal FileSink operator for each destination, keyed by
// destination name.
func (p *Planner) Plan(factory *operator.Factory, q *qb.QB) (map[string]*operator.Operator, error) {
	strict := p.cfg.PartitionPruner == "strict"
	source, err := p.planSource(factory, q, strict)
	if err != nil {
		return nil, err
	}

	names := q.DestinationNames()
	sort.Strings(names)

	out := make(map[string]*operator.Operator, len(names))
	for _, name := range names {
		dest, _ := q.Destination(name)
		body, err := p.planBody(factory, q, dest, source)
		if err != nil {
			return nil, err
		}
		path := q.MetaData.DestinationPath[name]
		tableWrite := dest.Destination != nil && dest.Destination.Kind == ast.KindTab
		if tableWrite {
			if table, ok := q.MetaData.DestinationTable[name]; ok {
				body, err = p.applyTargetConversion(factory, table, body)
				if err != nil {
					return nil, err
				}
			}
		}
		sink := factory.FileSink(&operator.FileSinkDesc{
			Path:       path,
			Compress:   p.cfg.CompressResult,
			TableWrite: tableWrite,
		}, body.Schema, body)
		out[name] = sink
	}
	return out, nil
}

// applyTargetConversion implements §4.9 step 7's "conversion Select (if
// column types differ), then FileSink" rule for a write into an existing
// table: body's output columns are compared positionally against table's
// declared columns, and any position whose type doesn't already match is
// wrapped in the §4.4 implicit-conversion UDF the same way join.KeyUnifier
// wraps a mismatched join key. A column with no such conversion raises
// TargetTableColumnMismatch (§7). A column-count mismatch is left for an
// earlier phase to have already rejected; this only adapts types.
func (p *Planner) applyTargetConversion(factory *operator.Factory, table *metastore.Table, body *operator.Operator) (*operator.Operator, error) {
	outCols := body.Schema.Columns()
	if len(table.Columns) != len(outCols) {
		return body, nil
	}

	exprs := make([]*expr.Desc, len(outCols))
	outputNames := make([]string, len(outCols))
	specs := make([]operator.ColumnSpec, len(outCols))
	changed := false
	for i, ce := range outCols {
		targetType := table.Columns[i].Type
		d := &expr.Desc{Kind: expr.KindColumn, Type: ce.Info.Type, InternalName: ce.Info.InternalName}
		if !exprtype.Equal(ce.Info.Type, targetType) {
			m, err := p.registry.GetUDFMethod(exprtype.CanonicalName(targetType), ce.Info.Type)
			if err != nil {
				return nil, semerr.TargetTableColumnMismatchError(table.Name, table.Columns[i].Name, targetType.String(), ce.Info.Type.String())
			}
			d = &expr.Desc{Kind: expr.KindFunc, Type: m.ReturnType, FuncName: m.Name, Args: []*expr.Desc{d}}
			changed = true
		}
		exprs[i] = d
		outputNames[i] = table.Columns[i].Name
		specs[i] = operator.ColumnSpec{Column: table.Columns[i].Name, Type: d.Type}
	}
	if !changed {
		return body, nil
	}

	schema := operator.DenseSchema(specs)
	return factory.Select(&operator.SelectDesc{Exprs: exprs, OutputColumnNames: outputNames}, schema, body), nil
}

// planSource resolves q's FROM clause to a single operator: a join chain,
// a lone table scan, or a lone subquery, re-aliased under its FROM-list
// alias. A FROM clause with more than one alias and no join tree (an
// implicit cross-join list) is not a shape phase-1 produces and is
// rejected here.
func (p *Planner) planSource(factory *operator.Factory, q *qb.QB, strict bool) (*operator.Operator, error) {
	if q.JoinTree != nil {
		return p.buildJoin(factory, q, q.JoinTree, strict)
	}
	aliases := q.AllAliases()
	if len(aliases) != 1 {
		return nil, fmt.Errorf("plan: query block %s has no join tree and %d FROM aliases (expected 1)", q.ID, len(aliases))
	}
	return p.resolveAlias(factory, q, aliases[0], strict)
}

func (p *Planner) resolveAlias(factory *operator.Factory, q *qb.QB, alias string, strict bool) (*operator.Operator, error) {
	if _, ok := q.TabNameForAlias(alias); ok {
		var pruneDest *qb.DestinationInfo
		if names := q.DestinationNames(); len(names) == 1 {
			pruneDest, _ = q.Destination(names[0])
		}
		return p.buildScan(factory, q, alias, pruneDest, strict)
	}
	if sub, ok := q.SubqForAlias(alias); ok {
		return p.planSubquery(factory, sub, alias, strict)
	}
	return nil, fmt.Errorf("plan: unresolved FROM alias %q", alias)
}

func (p *Planner) planSubquery(factory *operator.Factory, e *qb.Expr, outerAlias string, strict bool) (*operator.Operator, error) {
	body, err := p.planUnionBody(factory, e, strict)
	if err != nil {
		return nil, err
	}
	body.Schema = reAliasSchema(body.Schema, outerAlias)
	return body, nil
}

// planUnionBody plans one qb.Expr appearing in a subquery FROM position:
// a plain QB plans straight through planSource/planBody, and a UNION ALL
// plans both branches and merges them with a shared Forward operator
// (§4.1's "Only UNION ALL inside a subquery is permitted"), the way
// Hive's genUnionPlan sets a single ForwardOperator as the common child of
// both branches' final operators rather than emitting a distinct Union
// operator kind. Both branches must agree on output column count and
// internal names — the same "schema of both sides of union should match"
// check genUnionPlan performs.
func (p *Planner) planUnionBody(factory *operator.Factory, e *qb.Expr, strict bool) (*operator.Operator, error) {
	if e.Kind == qb.UnionAll {
		left, err := p.planUnionBody(factory, e.Left, strict)
		if err != nil {
			return nil, err
		}
		right, err := p.planUnionBody(factory, e.Right, strict)
		if err != nil {
			return nil, err
		}
		leftCols := left.Schema.Columns()
		rightCols := right.Schema.Columns()
		if len(leftCols) != len(rightCols) {
			return nil, fmt.Errorf("plan: UNION ALL branches have %d and %d output columns, schemas must match", len(leftCols), len(rightCols))
		}
		for i := range leftCols {
			if leftCols[i].Info.InternalName != rightCols[i].Info.InternalName {
				return nil, fmt.Errorf("plan: UNION ALL branches disagree on column %d (%s vs %s)", i, leftCols[i].Info.InternalName, rightCols[i].Info.InternalName)
			}
		}
		return factory.ForwardUnion(left.Schema, left, right), nil
	}

	q := e.QB
	names := q.DestinationNames()
	if len(names) != 1 {
		return nil, fmt.Errorf("plan: subquery %q must have exactly one destination, got %d", q.ID, len(names))
	}
	dest, _ := q.Destination(names[0])

	source, err := p.planSource(factory, q, strict)
	if err != nil {
		return nil, err
	}
	return p.planBody(factory, q, dest, source)
}

func reAliasSchema(schema *resolver.RowResolver, alias string) *resolver.RowResolver {
	rr := resolver.New()
	for _, c := range schema.Columns() {
		rr.Put(alias, c.Column, c.Info)
	}
	return rr
}

func tableSchema(alias string, table *metastore.Table) *resolver.RowResolver {
	cols := make([]operator.ColumnSpec, 0, len(table.Columns)+len(table.PartitionCols))
	for _, c := range table.Columns {
		cols = append(cols, operator.ColumnSpec{Alias: alias, Column: c.Name, Type: c.Type})
	}
	for _, c := range table.PartitionCols {
		cols = append(cols, operator.ColumnSpec{Alias: alias, Column: c.Name, Type: c.Type})
	}
	return operator.DenseSchema(cols)
}

// buildScan creates the table-scan operator for one FROM-list alias,
// applying partition pruning (using pruneDest's WHERE clause, when q has
// exactly one destination) and TABLESAMPLE filtering (§4.7, §4.8).
func (p *Planner) buildScan(factory *operator.Factory, q *qb.QB, alias string, pruneDest *qb.DestinationInfo, strict bool) (*operator.Operator, error) {
	table := q.MetaData.TableForAlias[alias]
	if table == nil {
		return nil, fmt.Errorf("plan: no bound metadata for alias %q", alias)
	}
	schema := tableSchema(alias, table)

	var wherePred *expr.Desc
	if pruneDest != nil && pruneDest.WhereExpr != nil && len(table.PartitionCols) > 0 {
		c := expr.New(p.registry, schema)
		if pred, err := c.Compile(pruneDest.WhereExpr); err == nil {
			wherePred = pred
		}
	}
	if err := prune.RequirePartitionPredicate(table, wherePred, strict); err != nil {
		return nil, err
	}

	partitions := q.MetaData.PartitionsForAlias[alias]
	if len(table.PartitionCols) > 0 {
		partitions = prune.Prune(table, partitions, wherePred)
	}

	scanDesc := &operator.TableScanDesc{Alias: alias, Table: table, Partitions: partitions}

	sample, ok := q.TableSamples[strings.ToLower(alias)]
	if !ok {
		return factory.TableScan(scanDesc, schema), nil
	}
	if err := p.samplePruner.Validate(table, sample); err != nil {
		return nil, err
	}
	if files, ok := p.samplePruner.BucketFiles(table, sample); ok {
		// Direct bucket-file selection narrows which files the scan
		// reads; no additional filter operator is needed.
		scanDesc.BucketFiles = files
		return factory.TableScan(scanDesc, schema), nil
	}
	scan := factory.TableScan(scanDesc, schema)
	cols := make([]*expr.Desc, 0, len(sample.OnCols))
	for _, name := range prune.ResolvedColumns(table, sample) {
		info, err := schema.Get(alias, name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, &expr.Desc{Kind: expr.KindColumn, Type: info.Type, Column: name, InternalName: info.InternalName})
	}
	hashPred := p.samplePruner.HashPredicate(cols, sample)
	return factory.Filter(&operator.FilterDesc{Predicate: hashPred}, schema, scan), nil
}
