// Package join models the join-tree data structure described in §3 and
// the planner that builds and merges it (§4.6). A Tree node is binary at
// construction time — exactly two sides, "left" and "right" — but after
// merging adjacent tree nodes that share a join key it becomes effectively
// multi-way: side indexes run 0..N and baseSrc/expressions/filters grow to
// match.
package join

import (
	"github.com/dshills/hiveql-compiler/internal/ast"
	"github.com/dshills/hiveql-compiler/internal/exprtype"
)

// Type enumerates the join kinds this compiler recognizes.
type Type int

const (
	Inner Type = iota
	LeftOuter
	RightOuter
	FullOuter
)

func (t Type) String() string {
	switch t {
	case LeftOuter:
		return "LEFT OUTER"
	case RightOuter:
		return "RIGHT OUTER"
	case FullOuter:
		return "FULL OUTER"
	default:
		return "INNER"
	}
}

// Key is one equality condition's pair of typed sides, one slot per join
// position: Key.Exprs[i] is the expression evaluated on position i's rows.
type Key struct {
	Exprs []Expr
	Type  *exprtype.TypeInfo
}

// Expr is the minimal typed-expression reference a join tree needs: the
// internal column name a ReduceSink will key on, plus its type. The
// expression compiler (internal/semantic/expr) produces the full typed
// descriptor tree; the join tree only needs this projection of it to plan
// key unification and filter placement.
type Expr struct {
	InternalName string
	Type         *exprtype.TypeInfo

	// Node is the original AST subtree this expression was classified
	// from, kept so the operator planner can compile it against the
	// side's row resolver (phase1 only needs the canonical text to
	// classify and merge; InternalName alone can't be recompiled).
	Node *ast.Node
}

// Tree is one node of the join tree. A leaf baseSrc entry names a
// table/subquery alias directly; a non-leaf position instead has a nested
// Tree in JoinSrc (exactly one recursive left child, §3).
type Tree struct {
	// LeftAlias is the alias rooting this node's leftmost base source;
	// Merge uses it to find the ancestor position this node joins against.
	LeftAlias string

	// LeftAliases and RightAliases list every table/subquery alias under
	// this node's left and right subtrees respectively.
	LeftAliases  []string
	RightAliases []string

	// BaseSrc has one entry per side (2 initially, up to N after
	// merging). BaseSrc[i] is non-empty iff position i is a table or
	// subquery alias rather than a nested join.
	BaseSrc []string

	// JoinSrc is the recursive left child when this node's left side is
	// itself a join rather than a base source (BaseSrc[0] == "").
	JoinSrc *Tree

	// JoinCond holds one Type per equality condition, in position order.
	JoinCond []Type

	// Expressions[i] are the join-key expressions contributed by side i;
	// len(Expressions[i]) is identical across sides (§3 invariant).
	Expressions [][]Expr

	// Filters[i] are the non-join-key predicates that reference only
	// side i (or neither side), to be pushed down as a Filter operator
	// on that side rather than evaluated as part of the join condition.
	Filters [][]Expr

	// NoOuterJoin is true once every condition at this node is an inner
	// join; it gates whether the join planner may push filters on top of
	// the scan instead of after the join.
	NoOuterJoin bool

	// NextTag is the next unused ReduceSink tag this node's descendants
	// should allocate from; tags identify which join-tree side a row
	// shuffled through a ReduceSink came from.
	NextTag int
}

// NewLeaf creates a two-sided join tree node with both sides initially
// base sources (no join yet) — the starting point before Merge folds
// additional FROM-list entries in.
func NewLeaf(leftAlias, rightAlias string) *Tree {
	return &Tree{
		LeftAlias:    leftAlias,
		LeftAliases:  []string{leftAlias},
		RightAliases: []string{rightAlias},
		BaseSrc:      []string{leftAlias, rightAlias},
		Expressions:  make([][]Expr, 2),
		Filters:      make([][]Expr, 2),
		NoOuterJoin:  true,
		NextTag:      2,
	}
}

// Width returns the number of sides (positions) this node currently has.
func (t *Tree) Width() int {
	return len(t.BaseSrc)
}

// Aliases returns every table/subquery alias reachable from this node, in
// left-to-right position order.
func (t *Tree) Aliases() []string {
	out := make([]string, 0, len(t.LeftAliases)+len(t.RightAliases))
	out = append(out, t.LeftAliases...)
	out = append(out, t.RightAliases...)
	return out
}
