// Package qb implements the Query Block model of §3: one QB per SELECT,
// addressed by a path-like id for nested-subquery naming, plus the
// QB-expression sum type (NULLOP(QB) | UNION(QBExpr, QBExpr)) that lets a
// subquery alias resolve to either a single query block or a UNION ALL
// chain of them.
package qb

import (
	"fmt"

	"github.com/dshills/hiveql-compiler/internal/ast"
	"github.com/dshills/hiveql-compiler/internal/join"
	"github.com/dshills/hiveql-compiler/internal/metastore"
)

// ImplicitDestination is the destination name phase-1 uses for a SELECT
// with no explicit INSERT clause (§3's "implicit selects synthesize a
// temporary-file destination").
const ImplicitDestination = "insclause-0"

// ReduceDestination is the reserved destination name "reduce". Phase-1
// names every destination it records "insclause-N" (the implicit one
// included), so no DestinationInfo in this repository carries this name.
const ReduceDestination = "reduce"

// TableSample is a parsed TOK_TABLESAMPLE clause: "BUCKET n OUT OF d [ON
// cols]". An absent ON clause is not rejected: OnCols stays empty and
// prune.ResolvedColumns samples on the table's bucketing columns.
type TableSample struct {
	BucketNum  int
	NumBuckets int
	OnCols     []string
}

// DestinationInfo is one parseInfo entry: everything phase-1 recorded for
// a single destination name ("insclause-N").
type DestinationInfo struct {
	Name string

	SelectExpr       *ast.Node
	IsSelectDistinct bool

	// IsTransform marks a TOK_TRANSFORM clause in place of a regular
	// select list: the row is piped through an external script instead
	// of projected by expression.
	IsTransform bool

	WhereExpr *ast.Node

	GroupByExprs      []*ast.Node
	ClusterByExprs    []*ast.Node
	DistributeByExprs []*ast.Node
	SortByExprs       []*ast.Node

	// Limit is nil when no LIMIT clause was present.
	Limit *int

	// AggregationExprs holds every aggregation-function subtree found
	// under the select list, keyed by its canonical structural text so
	// duplicate aggregations collapse to one entry (§4.1).
	AggregationExprs map[string]*ast.Node

	// DistinctFuncExpr is set when the select list contains a DISTINCT
	// aggregation, e.g. COUNT(DISTINCT x).
	DistinctFuncExpr *ast.Node

	// Destination is the target node under TOK_DESTINATION (a TOK_TAB or
	// TOK_DIR node); nil when the TOK_INSERT has no TOK_DESTINATION child.
	Destination *ast.Node

	TableSample *TableSample
}

// ExprKind discriminates the QB-expression sum type.
type ExprKind int

const (
	// NullOp wraps a single query block.
	NullOp ExprKind = iota
	// UnionAll chains two QB-expressions; only legal inside a subquery.
	UnionAll
)

// Expr is the QB-expression sum type of §3: NULLOP(QB) | UNION(Expr, Expr).
type Expr struct {
	Kind  ExprKind
	QB    *QB
	Left  *Expr
	Right *Expr
}

// NullOpExpr wraps a single query block as a QB-expression leaf.
func NullOpExpr(q *QB) *Expr { return &Expr{Kind: NullOp, QB: q} }

// UnionExpr joins two QB-expressions under UNION ALL.
func UnionExpr(left, right *Expr) *Expr { return &Expr{Kind: UnionAll, Left: left, Right: right} }

// MetaData is the per-alias resolved metadata a QB accumulates once the
// metadata binder has run (§4.2): table handles, the partitions a
// partitioned table resolves to, and the materialized path for each
// destination.
type MetaData struct {
	TableForAlias      map[string]*metastore.Table
	PartitionsForAlias map[string][]*metastore.Partition
	DestinationPath    map[string]string

	// DestinationTable holds the target table handle for a destination
	// writing into a table/partition, keyed by destination name. Nil for
	// a destination whose target is a directory/temp file. internal/plan
	// consults this to compare the write's output schema against the
	// table's declared column types (§4.9 step 7).
	DestinationTable map[string]*metastore.Table
}

func newMetaData() *MetaData {
	return &MetaData{
		TableForAlias:      make(map[string]*metastore.Table),
		PartitionsForAlias: make(map[string][]*metastore.Partition),
		DestinationPath:    make(map[string]string),
		DestinationTable:   make(map[string]*metastore.Table),
	}
}

// QB is one query block: the attributes of §3 plus the bookkeeping needed
// to allocate destination names and reject duplicate aliases.
type QB struct {
	ID         string
	Alias      string
	IsSubQuery bool
	IsQuery    bool

	parseInfo     map[string]*DestinationInfo
	destNameOrder []string
	destCounter   int

	tabAliasOrder   []string
	tabNameForAlias map[string]string

	subqAliasOrder []string
	subqForAlias   map[string]*Expr

	// TableSamples holds the TOK_TABLESAMPLE clause attached to a table
	// alias, if any. Keyed by alias rather than nested in parseInfo: a
	// sample clause is a property of a FROM-list table reference, and
	// the sample pruner (§4.8) consumes it per alias, not per
	// destination.
	TableSamples map[string]*TableSample

	JoinTree *join.Tree

	MetaData *MetaData
}

// New creates an empty QB with the given path-like id.
func New(id, alias string, isSubQuery bool) *QB {
	return &QB{
		ID:              id,
		Alias:           alias,
		IsSubQuery:      isSubQuery,
		IsQuery:         !isSubQuery,
		parseInfo:       make(map[string]*DestinationInfo),
		tabNameForAlias: make(map[string]string),
		subqForAlias:    make(map[string]*Expr),
		TableSamples:    make(map[string]*TableSample),
		MetaData:        newMetaData(),
	}
}

// NextDestinationName allocates the next "insclause-N" destination name
// and creates its (empty) DestinationInfo, per §4.1's DESTINATION action.
func (q *QB) NextDestinationName() string {
	name := fmt.Sprintf("insclause-%d", q.destCounter)
	q.destCounter++
	q.GetOrCreateDestination(name)
	return name
}

// GetOrCreateDestination returns the DestinationInfo for name, creating it
// (in first-seen order) if this is the first reference.
func (q *QB) GetOrCreateDestination(name string) *DestinationInfo {
	if d, ok := q.parseInfo[name]; ok {
		return d
	}
	d := &DestinationInfo{Name: name, AggregationExprs: make(map[string]*ast.Node)}
	q.parseInfo[name] = d
	q.destNameOrder = append(q.destNameOrder, name)
	return d
}

// Destination looks up an existing destination by name.
func (q *QB) Destination(name string) (*DestinationInfo, bool) {
	d, ok := q.parseInfo[name]
	return d, ok
}

// DestinationNames returns every destination name in first-seen order.
// Per §3's invariant, this set equals the TOK_DESTINATION tokens under
// the QB's body (including the synthetic "insclause-0" for an implicit
// select).
func (q *QB) DestinationNames() []string {
	out := make([]string, len(q.destNameOrder))
	copy(out, q.destNameOrder)
	return out
}

// AddTabAlias registers a table alias, rejecting a duplicate (§4.1: "reject
// duplicate aliases").
func (q *QB) AddTabAlias(alias, tableName string) error {
	key := normalize(alias)
	if _, exists := q.tabNameForAlias[key]; exists {
		return fmt.Errorf("duplicate table alias %q", alias)
	}
	q.tabNameForAlias[key] = tableName
	q.tabAliasOrder = append(q.tabAliasOrder, alias)
	return nil
}

// TabAliases returns every table alias in first-seen order.
func (q *QB) TabAliases() []string {
	out := make([]string, len(q.tabAliasOrder))
	copy(out, q.tabAliasOrder)
	return out
}

// TabNameForAlias resolves a table alias to the table name it names.
func (q *QB) TabNameForAlias(alias string) (string, bool) {
	name, ok := q.tabNameForAlias[normalize(alias)]
	return name, ok
}

// AddSubqAlias registers a subquery alias bound to a QB-expression,
// rejecting a duplicate alias (subqueries share the alias namespace with
// tables at the FROM-list level, so callers should also check
// TabNameForAlias before calling this).
func (q *QB) AddSubqAlias(alias string, expr *Expr) error {
	key := normalize(alias)
	if _, exists := q.subqForAlias[key]; exists {
		return fmt.Errorf("duplicate subquery alias %q", alias)
	}
	q.subqForAlias[key] = expr
	q.subqAliasOrder = append(q.subqAliasOrder, alias)
	return nil
}

// SubqAliases returns every subquery alias in first-seen order.
func (q *QB) SubqAliases() []string {
	out := make([]string, len(q.subqAliasOrder))
	copy(out, q.subqAliasOrder)
	return out
}

// SubqForAlias resolves a subquery alias to its QB-expression.
func (q *QB) SubqForAlias(alias string) (*Expr, bool) {
	e, ok := q.subqForAlias[normalize(alias)]
	return e, ok
}

// AllAliases returns every table and subquery alias, table aliases first,
// both in first-seen order — the full FROM-list alias namespace.
func (q *QB) AllAliases() []string {
	out := make([]string, 0, len(q.tabAliasOrder)+len(q.subqAliasOrder))
	out = append(out, q.tabAliasOrder...)
	out = append(out, q.subqAliasOrder...)
	return out
}

func normalize(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
