// Package phase1 implements the single-pass AST walk of §4.1: it turns an
// AST rooted at TOK_QUERY into a qb.Expr (a QB, or a UNION ALL chain of
// QBs), populating each QB's parseInfo, table/subquery alias sets and
// join tree as it descends. It does not touch the metastore, resolve
// expression types or build operators — those are later stages.
package phase1

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/hiveql-compiler/internal/ast"
	"github.com/dshills/hiveql-compiler/internal/funcreg"
	"github.com/dshills/hiveql-compiler/internal/join"
	"github.com/dshills/hiveql-compiler/internal/semantic/qb"
	"github.com/dshills/hiveql-compiler/internal/semantic/semerr"
)

// Analyzer runs the phase-1 walk. It needs the function registry only to
// recognize which TOK_FUNCTION/TOK_FUNCTIONDI subtrees are aggregations
// (§4.1's "scan for aggregation function subtrees"); it never resolves a
// full signature.
type Analyzer struct {
	registry funcreg.Registry
}

// New creates a phase-1 Analyzer backed by registry's aggregate-name
// lookup.
func New(registry funcreg.Registry) *Analyzer {
	return &Analyzer{registry: registry}
}

// Analyze walks root (expected to be a TOK_QUERY, or TOK_UNIONALL only
// when called recursively for a subquery) and returns the resulting
// QB-expression.
func (a *Analyzer) Analyze(root *ast.Node) (*qb.Expr, error) {
	return a.analyzeQBExpr(root, "", "", false)
}

func (a *Analyzer) analyzeQBExpr(node *ast.Node, id, alias string, isSubQuery bool) (*qb.Expr, error) {
	if node == nil {
		return nil, fmt.Errorf("phase1: nil AST node")
	}
	switch node.Kind {
	case ast.KindUnion:
		if !isSubQuery {
			return nil, semerr.UnionNotInSubqueryError()
		}
		left, err := a.analyzeQBExpr(node.Child(0), id+".0", alias, isSubQuery)
		if err != nil {
			return nil, err
		}
		right, err := a.analyzeQBExpr(node.Child(1), id+".1", alias, isSubQuery)
		if err != nil {
			return nil, err
		}
		return qb.UnionExpr(left, right), nil
	case ast.KindQuery:
		q, err := a.analyzeQuery(node, id, alias, isSubQuery)
		if err != nil {
			return nil, err
		}
		return qb.NullOpExpr(q), nil
	default:
		return nil, fmt.Errorf("phase1: expected TOK_QUERY or TOK_UNIONALL, got %s", node.Kind)
	}
}

func (a *Analyzer) analyzeQuery(node *ast.Node, id, alias string, isSubQuery bool) (*qb.QB, error) {
	q := qb.New(id, alias, isSubQuery)

	inserts := node.ChildrenOfKind(ast.KindInsert)
	if len(inserts) == 0 {
		return nil, fmt.Errorf("phase1: TOK_QUERY has no TOK_INSERT body")
	}

	fromNode := node.FirstChildOfKind(ast.KindFrom)
	if fromNode == nil {
		// Single-INSERT queries may carry FROM nested under the INSERT
		// rather than shared at the QUERY level (this is the shape
		// internal/ast.Adapt produces).
		fromNode = inserts[0].FirstChildOfKind(ast.KindFrom)
	}
	if fromNode != nil {
		if err := a.processFrom(q, fromNode.Child(0)); err != nil {
			return nil, err
		}
	}

	for _, insertNode := range inserts {
		if err := a.processInsert(q, insertNode, isSubQuery); err != nil {
			return nil, err
		}
	}

	return q, nil
}

func (a *Analyzer) processInsert(q *qb.QB, insertNode *ast.Node, isSubQuery bool) error {
	destName := q.NextDestinationName()
	dest, _ := q.Destination(destName)

	if destNode := insertNode.FirstChildOfKind(ast.KindDestination); destNode != nil {
		target := destNode.Child(0)
		dest.Destination = target
		if isSubQuery && target != nil && target.Kind != ast.KindDir {
			return semerr.NoInsertInSubqueryError()
		}
	}

	selectNode := insertNode.FirstChildOfKind(ast.KindSelect)
	if selectDI := insertNode.FirstChildOfKind(ast.KindSelectDI); selectDI != nil {
		dest.IsSelectDistinct = true
		selectNode = selectDI
	}
	if transformNode := insertNode.FirstChildOfKind(ast.KindTransform); transformNode != nil {
		dest.IsTransform = true
		selectNode = transformNode
	}
	if selectNode == nil {
		return fmt.Errorf("phase1: INSERT %s has no SELECT/TRANSFORM clause", destName)
	}
	dest.SelectExpr = selectNode
	if err := a.collectAggregations(dest, selectNode); err != nil {
		return err
	}

	if whereNode := insertNode.FirstChildOfKind(ast.KindWhere); whereNode != nil {
		dest.WhereExpr = whereNode.Child(0)
	}

	if gbNode := insertNode.FirstChildOfKind(ast.KindGroupBy); gbNode != nil {
		dest.GroupByExprs = gbNode.Children
	}
	if dest.IsSelectDistinct && len(dest.GroupByExprs) > 0 {
		return semerr.SelectDistinctWithGroupByError()
	}

	clusterNode := insertNode.FirstChildOfKind(ast.KindClusterBy)
	distributeNode := insertNode.FirstChildOfKind(ast.KindDistributeBy)
	sortNode := insertNode.FirstChildOfKind(ast.KindSortBy)
	if clusterNode != nil && distributeNode != nil {
		return semerr.ClusterByDistributeByConflictError()
	}
	if clusterNode != nil && sortNode != nil {
		return semerr.ClusterBySortByConflictError()
	}
	if clusterNode != nil {
		dest.ClusterByExprs = clusterNode.Children
	}
	if distributeNode != nil {
		dest.DistributeByExprs = distributeNode.Children
	}
	if sortNode != nil {
		dest.SortByExprs = sortNode.Children
	}

	if limitNode := insertNode.FirstChildOfKind(ast.KindLimit); limitNode != nil {
		n, err := strconv.Atoi(limitNode.Text)
		if err != nil {
			return fmt.Errorf("phase1: invalid LIMIT %q: %w", limitNode.Text, err)
		}
		dest.Limit = &n
	}

	return nil
}

// collectAggregations walks a select (or transform) subtree recording
// every aggregation-function application, canonicalized by structural
// text so repeated identical aggregations collapse to one entry (§4.1).
// It does not descend into an aggregation's own arguments: nested
// aggregates are not a case this compiler supports.
//
// Hive only ever lowers one DISTINCT aggregate per group-by (the other
// distinct columns it would need to carry through the same reducer);
// a second DISTINCT aggregate over a different canonical expression is
// rejected rather than silently planned as a plain aggregate.
func (a *Analyzer) collectAggregations(dest *qb.DestinationInfo, node *ast.Node) error {
	if node == nil {
		return nil
	}
	if node.Kind == ast.KindFunction || node.Kind == ast.KindFunctionDI {
		if name := node.Child(0); name != nil && a.registry.HasAggregate(name.Text) {
			dest.AggregationExprs[node.CanonicalString()] = node
			if node.Kind == ast.KindFunctionDI {
				if dest.DistinctFuncExpr != nil && dest.DistinctFuncExpr.CanonicalString() != node.CanonicalString() {
					return semerr.UnsupportedMultipleDistinctsError()
				}
				dest.DistinctFuncExpr = node
			}
			return nil
		}
	}
	for _, c := range node.Children {
		if err := a.collectAggregations(dest, c); err != nil {
			return err
		}
	}
	return nil
}

// processFrom dispatches on the single child of TOK_FROM: a table
// reference, a subquery, or a (possibly left-deep nested) join.
func (a *Analyzer) processFrom(q *qb.QB, node *ast.Node) error {
	switch node.Kind {
	case ast.KindTabRef, ast.KindSubquery:
		_, err := a.processFromLeaf(q, node)
		return err
	case ast.KindJoin, ast.KindLeftOuter, ast.KindRightOuter, ast.KindFullOuter:
		tree, err := a.processJoin(q, node)
		if err != nil {
			return err
		}
		q.JoinTree = tree
		return nil
	default:
		return fmt.Errorf("phase1: unsupported FROM clause node %s", node.Kind)
	}
}

func (a *Analyzer) processFromLeaf(q *qb.QB, node *ast.Node) (string, error) {
	switch node.Kind {
	case ast.KindTabRef:
		return a.processTabRef(q, node)
	case ast.KindSubquery:
		return a.processSubqueryRef(q, node)
	default:
		return "", fmt.Errorf("phase1: expected table reference or subquery, got %s", node.Kind)
	}
}

func (a *Analyzer) processTabRef(q *qb.QB, node *ast.Node) (string, error) {
	identifier := node.FirstChildOfKind(ast.KindIdentifier)
	if identifier == nil {
		return "", fmt.Errorf("phase1: TOK_TABREF has no table name")
	}
	tableName := identifier.Text
	alias := tableName
	if aliasNode := node.FirstChildOfKind(ast.KindAlias); aliasNode != nil && aliasNode.Text != "" {
		alias = aliasNode.Text
	}
	if err := q.AddTabAlias(alias, tableName); err != nil {
		return "", semerr.InvalidTableAliasError(alias)
	}

	if sampleNode := node.FirstChildOfKind(ast.KindTableSample); sampleNode != nil {
		ts, err := parseTableSample(sampleNode)
		if err != nil {
			return "", err
		}
		q.TableSamples[strings.ToLower(alias)] = ts
	}

	return alias, nil
}

func parseTableSample(node *ast.Node) (*qb.TableSample, error) {
	if node.ChildCount() < 2 {
		return nil, semerr.SampleRestrictionError()
	}
	bucketNum, err := strconv.Atoi(node.Child(0).Text)
	if err != nil {
		return nil, fmt.Errorf("phase1: invalid TABLESAMPLE bucket number %q: %w", node.Child(0).Text, err)
	}
	numBuckets, err := strconv.Atoi(node.Child(1).Text)
	if err != nil {
		return nil, fmt.Errorf("phase1: invalid TABLESAMPLE bucket count %q: %w", node.Child(1).Text, err)
	}
	var cols []string
	for _, c := range node.Children[2:] {
		cols = append(cols, c.Text)
	}
	if len(cols) > 2 {
		return nil, semerr.SampleRestrictionError()
	}
	return &qb.TableSample{BucketNum: bucketNum, NumBuckets: numBuckets, OnCols: cols}, nil
}

func (a *Analyzer) processSubqueryRef(q *qb.QB, node *ast.Node) (string, error) {
	queryNode := node.Child(0)
	aliasNode := node.FirstChildOfKind(ast.KindIdentifier)
	if aliasNode == nil || aliasNode.Text == "" {
		return "", semerr.NoSubqueryAliasError()
	}
	alias := aliasNode.Text

	childID := alias
	if q.ID != "" {
		childID = q.ID + ":" + alias
	}
	expr, err := a.analyzeQBExpr(queryNode, childID, alias, true)
	if err != nil {
		return "", err
	}
	if err := q.AddSubqAlias(alias, expr); err != nil {
		return "", semerr.InvalidTableAliasError(alias)
	}
	return alias, nil
}

func (a *Analyzer) processJoin(q *qb.QB, node *ast.Node) (*join.Tree, error) {
	if node.ChildCount() < 2 {
		return nil, fmt.Errorf("phase1: join node %s has fewer than 2 children", node.Kind)
	}
	leftNode := node.Child(0)
	rightNode := node.Child(1)
	var condNode *ast.Node
	if node.ChildCount() > 2 {
		condNode = node.Child(2)
	}

	var leftTree *join.Tree
	var leftAlias string
	var err error
	switch leftNode.Kind {
	case ast.KindJoin, ast.KindLeftOuter, ast.KindRightOuter, ast.KindFullOuter:
		leftTree, err = a.processJoin(q, leftNode)
		if err != nil {
			return nil, err
		}
		leftAlias = leftTree.LeftAlias
	default:
		leftAlias, err = a.processFromLeaf(q, leftNode)
		if err != nil {
			return nil, err
		}
	}

	rightAlias, err := a.processFromLeaf(q, rightNode)
	if err != nil {
		return nil, err
	}

	tree := &join.Tree{
		LeftAlias:    leftAlias,
		RightAliases: []string{rightAlias},
		Expressions:  make([][]join.Expr, 2),
		Filters:      make([][]join.Expr, 2),
		JoinCond:     []join.Type{joinTypeForKind(node.Kind)},
		NoOuterJoin:  node.Kind == ast.KindJoin,
		NextTag:      2,
	}
	if leftTree != nil {
		tree.JoinSrc = leftTree
		tree.LeftAliases = leftTree.Aliases()
		tree.BaseSrc = []string{"", rightAlias}
	} else {
		tree.LeftAliases = []string{leftAlias}
		tree.BaseSrc = []string{leftAlias, rightAlias}
	}

	if condNode != nil {
		leftSet := toSet(tree.LeftAliases)
		rightSet := toSet(tree.RightAliases)
		if err := classifyJoinCondition(tree, condNode, leftSet, rightSet, true); err != nil {
			return nil, err
		}
	}

	return tree, nil
}

func joinTypeForKind(k ast.Kind) join.Type {
	switch k {
	case ast.KindLeftOuter:
		return join.LeftOuter
	case ast.KindRightOuter:
		return join.RightOuter
	case ast.KindFullOuter:
		return join.FullOuter
	default:
		return join.Inner
	}
}

type side int

const (
	sideNone side = iota
	sideLeft
	sideRight
	sideBoth
)

func sideOf(refs map[string]bool, leftSet, rightSet map[string]bool) side {
	touchesLeft, touchesRight := false, false
	for alias := range refs {
		if leftSet[alias] {
			touchesLeft = true
		}
		if rightSet[alias] {
			touchesRight = true
		}
	}
	switch {
	case touchesLeft && touchesRight:
		return sideBoth
	case touchesLeft:
		return sideLeft
	case touchesRight:
		return sideRight
	default:
		return sideNone
	}
}

// classifyJoinCondition walks a join's ON expression, splitting it at top-
// level ANDs and assigning each conjunct either to Expressions (an
// equality referencing exactly one alias from each side) or to Filters
// (a predicate referencing only one side, or neither) per §4.1. OR at the
// top level, and any non-equality predicate spanning both sides, are
// rejected.
func classifyJoinCondition(tree *join.Tree, node *ast.Node, leftSet, rightSet map[string]bool, top bool) error {
	if node.Kind == ast.KindAnd {
		if err := classifyJoinCondition(tree, node.Child(0), leftSet, rightSet, false); err != nil {
			return err
		}
		return classifyJoinCondition(tree, node.Child(1), leftSet, rightSet, false)
	}
	if node.Kind == ast.KindOr && top {
		return semerr.InvalidJoinCondition3Error()
	}

	if node.Kind == ast.KindEqual && node.ChildCount() == 2 {
		l, r := node.Child(0), node.Child(1)
		lSide := sideOf(referencedAliases(l), leftSet, rightSet)
		rSide := sideOf(referencedAliases(r), leftSet, rightSet)
		switch {
		case lSide == sideLeft && rSide == sideRight:
			tree.Expressions[0] = append(tree.Expressions[0], join.Expr{InternalName: l.CanonicalString(), Node: l})
			tree.Expressions[1] = append(tree.Expressions[1], join.Expr{InternalName: r.CanonicalString(), Node: r})
			return nil
		case lSide == sideRight && rSide == sideLeft:
			tree.Expressions[0] = append(tree.Expressions[0], join.Expr{InternalName: r.CanonicalString(), Node: r})
			tree.Expressions[1] = append(tree.Expressions[1], join.Expr{InternalName: l.CanonicalString(), Node: l})
			return nil
		case lSide == sideBoth || rSide == sideBoth:
			return semerr.InvalidJoinCondition1Error(node.CanonicalString())
		}
	}

	refs := referencedAliases(node)
	switch sideOf(refs, leftSet, rightSet) {
	case sideBoth:
		return semerr.InvalidJoinCondition1Error(node.CanonicalString())
	case sideRight:
		tree.Filters[1] = append(tree.Filters[1], join.Expr{InternalName: node.CanonicalString(), Node: node})
	default:
		tree.Filters[0] = append(tree.Filters[0], join.Expr{InternalName: node.CanonicalString(), Node: node})
	}
	return nil
}

// referencedAliases collects the table aliases qualifying a dotted column
// reference (alias.column) anywhere under node. Bare, unqualified column
// references cannot be attributed to a side at this phase and are
// ignored; they are resolved later, against the row resolver, by the
// expression compiler.
func referencedAliases(node *ast.Node) map[string]bool {
	out := make(map[string]bool)
	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}
		if n.Kind == ast.KindDot && n.ChildCount() == 2 {
			if tc := n.Child(0); tc != nil && tc.Kind == ast.KindTabColRef {
				if id := tc.Child(0); id != nil {
					out[strings.ToLower(id.Text)] = true
				}
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(node)
	return out
}

func toSet(aliases []string) map[string]bool {
	out := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		out[strings.ToLower(a)] = true
	}
	return out
}
