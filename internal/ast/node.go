// Package ast provides the compiler's uniform view of an already-parsed
// query: a token-kind, text, source-position and ordered-children tree, in
// the shape Apache Hive's parser hands its semantic analyzer (ASTNode over
// TOK_* token kinds). The lexer/parser that produces this tree is an
// external collaborator (see spec §1, §6); this package is only the
// adapter other compiler stages consume. Adapt builds one from the
// teacher's typed parser.Statement for the subset of syntax it supports;
// tests and callers that need Hive-only constructs the teacher's grammar
// doesn't have (CLUSTER BY, TRANSFORM, TABLESAMPLE, multi-insert) build the
// tree directly with the New* constructors below.
package ast

import (
	"fmt"
	"strings"
)

// Kind identifies the token a node was produced from. The map/reduce task
// planner and the phase-1 analyzer dispatch on these names.
type Kind string

// The token kinds the semantic analyzer understands. Named after Hive's
// TOK_* grammar tokens where a direct analogue exists.
const (
	KindQuery        Kind = "TOK_QUERY"
	KindInsert       Kind = "TOK_INSERT"
	KindDestination  Kind = "TOK_DESTINATION"
	KindDir          Kind = "TOK_DIR"
	KindTab          Kind = "TOK_TAB"
	KindSelect       Kind = "TOK_SELECT"
	KindSelectDI     Kind = "TOK_SELECTDI"
	KindSelExpr      Kind = "TOK_SELEXPR"
	KindAllColRef    Kind = "TOK_ALLCOLREF"
	KindWhere        Kind = "TOK_WHERE"
	KindFrom         Kind = "TOK_FROM"
	KindTabRef       Kind = "TOK_TABREF"
	KindSubquery     Kind = "TOK_SUBQUERY"
	KindJoin         Kind = "TOK_JOIN"
	KindLeftOuter    Kind = "TOK_LEFTOUTERJOIN"
	KindRightOuter   Kind = "TOK_RIGHTOUTERJOIN"
	KindFullOuter    Kind = "TOK_FULLOUTERJOIN"
	KindGroupBy      Kind = "TOK_GROUPBY"
	KindClusterBy    Kind = "TOK_CLUSTERBY"
	KindDistributeBy Kind = "TOK_DISTRIBUTEBY"
	KindSortBy       Kind = "TOK_SORTBY"
	KindOrderBy      Kind = "TOK_ORDERBY"
	KindTabSortAsc   Kind = "TOK_TABSORTCOLNAMEASC"
	KindTabSortDesc  Kind = "TOK_TABSORTCOLNAMEDESC"
	KindLimit        Kind = "TOK_LIMIT"
	KindUnion        Kind = "TOK_UNIONALL"
	KindTransform    Kind = "TOK_TRANSFORM"
	KindTableSample  Kind = "TOK_TABLESAMPLE"
	KindFunction     Kind = "TOK_FUNCTION"
	KindFunctionDI   Kind = "TOK_FUNCTIONDI"
	KindTabColRef    Kind = "TOK_TABLE_OR_COL"
	KindDot          Kind = "."
	KindLSquare      Kind = "["
	KindAnd          Kind = "KW_AND"
	KindOr           Kind = "KW_OR"
	KindEqual        Kind = "="
	KindNotEqual     Kind = "<>"
	KindLess         Kind = "<"
	KindLessEq       Kind = "<="
	KindGreater      Kind = ">"
	KindGreaterEq    Kind = ">="
	KindNot          Kind = "KW_NOT"
	KindNull         Kind = "TOK_NULL"
	KindTrue         Kind = "KW_TRUE"
	KindFalse        Kind = "KW_FALSE"
	KindNumber       Kind = "Number"
	KindStringLit    Kind = "StringLiteral"
	KindCharSetLit   Kind = "CharSetLiteral"
	KindIdentifier   Kind = "Identifier"
	KindAlias        Kind = "TOK_ALIAS"
)

// Node is one element of the parse tree: a token kind, its literal text
// (for leaves), its source position, and its ordered children. Immutable
// once built.
type Node struct {
	Kind     Kind
	Text     string
	Line     int
	Col      int
	Children []*Node
}

// New creates a leaf or interior node with the given children.
func New(kind Kind, text string, children ...*Node) *Node {
	return &Node{Kind: kind, Text: text, Children: children}
}

// NewAt is New with an explicit source position. The teacher-parser adapter
// builds its nodes with New, so they carry no line/col.
func NewAt(kind Kind, text string, line, col int, children ...*Node) *Node {
	return &Node{Kind: kind, Text: text, Line: line, Col: col, Children: children}
}

// Child returns the i-th child, or nil if out of range.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// ChildCount returns the number of children.
func (n *Node) ChildCount() int {
	if n == nil {
		return 0
	}
	return len(n.Children)
}

// FirstChildOfKind returns the first direct child with the given kind.
func (n *Node) FirstChildOfKind(k Kind) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Kind == k {
			return c
		}
	}
	return nil
}

// ChildrenOfKind returns all direct children with the given kind.
func (n *Node) ChildrenOfKind(k Kind) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == k {
			out = append(out, c)
		}
	}
	return out
}

// CanonicalString renders a structural, whitespace-normalized text of the
// subtree rooted at n. The phase-1 analyzer uses this to canonicalize
// aggregation subtrees (§4.1) and the expression compiler uses it to find
// subexpressions already bound by an ancestor operator (§4.4).
func (n *Node) CanonicalString() string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	n.writeCanonical(&b)
	return b.String()
}

func (n *Node) writeCanonical(b *strings.Builder) {
	b.WriteByte('(')
	b.WriteString(string(n.Kind))
	if n.Text != "" {
		b.WriteByte(' ')
		b.WriteString(n.Text)
	}
	for _, c := range n.Children {
		b.WriteByte(' ')
		c.writeCanonical(b)
	}
	b.WriteByte(')')
}

// String renders a debug form: kind and text, for error messages.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	if n.Text == "" {
		return string(n.Kind)
	}
	return fmt.Sprintf("%s(%s)", n.Kind, n.Text)
}

// Pos renders a "line:col" position string for error reporting.
func (n *Node) Pos() string {
	if n == nil || (n.Line == 0 && n.Col == 0) {
		return ""
	}
	return fmt.Sprintf("%d:%d", n.Line, n.Col)
}
