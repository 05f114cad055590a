package parser

import (
	"fmt"
	"strings"

	"github.com/dshills/hiveql-compiler/internal/sql/types"
)

// Node is the base interface for all AST nodes.
type Node interface {
	String() string
}

// Statement is the base interface for all SQL statements. This grammar
// only ever produces *SelectStmt, but the interface mirrors the teacher's
// shape so a caller type-asserts the same way.
type Statement interface {
	Node
	statementNode()
}

// Expression is the base interface for all SQL expressions.
type Expression interface {
	Node
	expressionNode()
}

// SelectStmt represents a SELECT statement.
type SelectStmt struct {
	Distinct bool
	Columns  []SelectColumn
	From     TableExpression
	Where    Expression
	GroupBy  []Expression
	OrderBy  []OrderByClause
	Limit    *int
}

func (s *SelectStmt) statementNode() {}
func (s *SelectStmt) String() string {
	var parts []string

	distinct := ""
	if s.Distinct {
		distinct = "DISTINCT "
	}
	var cols []string //nolint:prealloc
	for _, col := range s.Columns {
		cols = append(cols, col.String())
	}
	parts = append(parts, fmt.Sprintf("SELECT %s%s", distinct, strings.Join(cols, ", ")))

	if s.From != nil {
		parts = append(parts, fmt.Sprintf("FROM %s", s.From.String()))
	}
	if s.Where != nil {
		parts = append(parts, fmt.Sprintf("WHERE %s", s.Where.String()))
	}
	if len(s.GroupBy) > 0 {
		var groupCols []string
		for _, g := range s.GroupBy {
			groupCols = append(groupCols, g.String())
		}
		parts = append(parts, fmt.Sprintf("GROUP BY %s", strings.Join(groupCols, ", ")))
	}
	if len(s.OrderBy) > 0 {
		var orderCols []string
		for _, o := range s.OrderBy {
			orderCols = append(orderCols, o.String())
		}
		parts = append(parts, fmt.Sprintf("ORDER BY %s", strings.Join(orderCols, ", ")))
	}
	if s.Limit != nil {
		parts = append(parts, fmt.Sprintf("LIMIT %d", *s.Limit))
	}

	return strings.Join(parts, " ")
}

// SelectColumn is one column in a SELECT statement's column list.
type SelectColumn struct {
	Expr  Expression
	Alias string
}

func (c SelectColumn) String() string {
	if c.Alias != "" {
		return fmt.Sprintf("%s AS %s", c.Expr.String(), c.Alias)
	}
	return c.Expr.String()
}

// OrderByClause is one ORDER BY item.
type OrderByClause struct {
	Expr Expression
	Desc bool
}

func (o OrderByClause) String() string {
	if o.Desc {
		return fmt.Sprintf("%s DESC", o.Expr.String())
	}
	return fmt.Sprintf("%s ASC", o.Expr.String())
}

// TableExpression is the base interface for everything that can appear in
// a FROM clause: a bare table, a subquery, or a join tree.
type TableExpression interface {
	tableExpressionNode()
	String() string
}

// TableRef is a simple table reference with an optional alias.
type TableRef struct {
	TableName string
	Alias     string
}

func (t *TableRef) tableExpressionNode() {}
func (t *TableRef) String() string {
	if t.Alias != "" {
		return fmt.Sprintf("%s AS %s", t.TableName, t.Alias)
	}
	return t.TableName
}

// SubqueryRef is a parenthesized SELECT in the FROM clause; Hive requires
// an alias on every such subquery.
type SubqueryRef struct {
	Query *SelectStmt
	Alias string
}

func (s *SubqueryRef) tableExpressionNode() {}
func (s *SubqueryRef) String() string {
	return fmt.Sprintf("(%s) AS %s", s.Query.String(), s.Alias)
}

// JoinType is the kind of JOIN a JoinExpr performs.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	FullJoin
	CrossJoin
)

func (jt JoinType) String() string {
	switch jt {
	case InnerJoin:
		return "INNER JOIN"
	case LeftJoin:
		return "LEFT JOIN"
	case RightJoin:
		return "RIGHT JOIN"
	case FullJoin:
		return "FULL JOIN"
	case CrossJoin:
		return "CROSS JOIN"
	default:
		return "UNKNOWN JOIN"
	}
}

// JoinExpr is a binary join of two table expressions.
type JoinExpr struct {
	Left      TableExpression
	Right     TableExpression
	JoinType  JoinType
	Condition Expression
}

func (j *JoinExpr) tableExpressionNode() {}
func (j *JoinExpr) String() string {
	result := fmt.Sprintf("%s %s %s", j.Left.String(), j.JoinType.String(), j.Right.String())
	if j.Condition != nil {
		result += fmt.Sprintf(" ON %s", j.Condition.String())
	}
	return result
}

// Literal is a constant value: a number, string, boolean or NULL.
type Literal struct {
	Value types.Value
}

func (l *Literal) expressionNode() {}
func (l *Literal) String() string {
	if l.Value.IsNull() {
		return "NULL"
	}
	switch v := l.Value.Data.(type) {
	case string:
		return fmt.Sprintf("'%s'", strings.ReplaceAll(v, "'", "''"))
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("%v", l.Value.Data)
	}
}

// Identifier is a column reference, optionally qualified by a table alias.
type Identifier struct {
	Name  string
	Table string
}

func (i *Identifier) expressionNode() {}
func (i *Identifier) String() string {
	if i.Table != "" {
		return fmt.Sprintf("%s.%s", i.Table, i.Name)
	}
	return i.Name
}

// Star is the "*" column in "SELECT *" or the sole argument of "count(*)".
type Star struct{}

func (s *Star) expressionNode() {}
func (s *Star) String() string  { return "*" }

// BinaryExpr is a binary arithmetic or boolean-connective expression.
type BinaryExpr struct {
	Left     Expression
	Operator TokenType
	Right    Expression
}

func (b *BinaryExpr) expressionNode() {}
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left.String(), b.Operator.String(), b.Right.String())
}

// ComparisonExpr is a relational comparison (=, <>, <, <=, >, >=).
type ComparisonExpr struct {
	Left     Expression
	Operator TokenType
	Right    Expression
}

func (c *ComparisonExpr) expressionNode() {}
func (c *ComparisonExpr) String() string {
	return fmt.Sprintf("%s %s %s", c.Left.String(), c.Operator.String(), c.Right.String())
}

// ParenExpr is a parenthesized expression, kept as its own node so the
// adapter can unwrap it without losing precedence information during
// parsing.
type ParenExpr struct {
	Expr Expression
}

func (p *ParenExpr) expressionNode() {}
func (p *ParenExpr) String() string  { return fmt.Sprintf("(%s)", p.Expr.String()) }

// FunctionCall is a named function or aggregate application, e.g.
// "count(DISTINCT x)" or "upper(name)".
type FunctionCall struct {
	Name     string
	Args     []Expression
	Distinct bool
}

func (f *FunctionCall) expressionNode() {}
func (f *FunctionCall) String() string {
	var args []string
	for _, arg := range f.Args {
		args = append(args, arg.String())
	}
	distinct := ""
	if f.Distinct {
		distinct = "DISTINCT "
	}
	return fmt.Sprintf("%s(%s%s)", f.Name, distinct, strings.Join(args, ", "))
}
