// Package parser implements a recursive-descent parser for the subset of
// HiveQL's SELECT grammar this compiler plans: single SELECT statements
// with DISTINCT, joins, WHERE, GROUP BY, ORDER BY and LIMIT. It does not
// parse DDL, DML other than SELECT, or prepared statements.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/hiveql-compiler/internal/sql/types"
)

// Parser turns a token stream from a Lexer into an AST.
type Parser struct {
	lexer    *Lexer
	current  Token
	previous Token
	errors   []error
}

// NewParser creates a Parser for the given SQL text.
func NewParser(sql string) *Parser {
	p := &Parser{lexer: NewLexer(sql)}
	p.advance()
	return p
}

// Parse parses a single statement and returns it, or the first error
// encountered.
func (p *Parser) Parse() (Statement, error) {
	stmt := p.parseStatement()
	if err := p.lastError(); err != nil {
		return nil, err
	}
	if !p.check(TokenEOF) && !p.check(TokenSemicolon) {
		p.error(fmt.Sprintf("unexpected token %s after statement", p.current.String()))
		return nil, p.lastError()
	}
	return stmt, nil
}

func (p *Parser) parseStatement() Statement {
	if !p.check(TokenSelect) {
		p.error(fmt.Sprintf("expected SELECT, got %s", p.current.String()))
		return nil
	}
	return p.parseSelect()
}

func (p *Parser) parseSelect() *SelectStmt {
	p.consume(TokenSelect, "expected SELECT")

	stmt := &SelectStmt{}
	if p.match(TokenDistinct) {
		stmt.Distinct = true
	}

	stmt.Columns = p.parseSelectColumns()

	if p.match(TokenFrom) {
		stmt.From = p.parseTableExpression()
	}

	if p.match(TokenWhere) {
		stmt.Where = p.parseExpression()
	}

	if p.match(TokenGroupBy) {
		stmt.GroupBy = p.parseExpressionList()
	}

	if p.match(TokenOrderBy) {
		stmt.OrderBy = p.parseOrderByList()
	}

	if p.match(TokenLimit) {
		stmt.Limit = p.parseLimit()
	}

	return stmt
}

func (p *Parser) parseSelectColumns() []SelectColumn {
	var cols []SelectColumn
	for {
		cols = append(cols, p.parseSelectColumn())
		if !p.match(TokenComma) {
			break
		}
	}
	return cols
}

func (p *Parser) parseSelectColumn() SelectColumn {
	expr := p.parseExpression()
	col := SelectColumn{Expr: expr}

	if p.match(TokenAs) {
		col.Alias = p.consumeIdentifierName("expected alias after AS")
	} else if p.check(TokenIdentifier) {
		col.Alias = p.consumeIdentifierName("expected alias")
	}

	return col
}

func (p *Parser) parseExpressionList() []Expression {
	var exprs []Expression
	for {
		exprs = append(exprs, p.parseExpression())
		if !p.match(TokenComma) {
			break
		}
	}
	return exprs
}

func (p *Parser) parseOrderByList() []OrderByClause {
	var clauses []OrderByClause
	for {
		expr := p.parseExpression()
		clause := OrderByClause{Expr: expr}
		if p.match(TokenDesc) {
			clause.Desc = true
		} else {
			p.match(TokenAsc)
		}
		clauses = append(clauses, clause)
		if !p.match(TokenComma) {
			break
		}
	}
	return clauses
}

func (p *Parser) parseLimit() *int {
	tok := p.consume(TokenNumber, "expected integer after LIMIT")
	n, err := strconv.Atoi(tok.Value)
	if err != nil {
		p.error(fmt.Sprintf("invalid LIMIT value %q", tok.Value))
		return nil
	}
	return &n
}

// parseTableExpression parses a FROM clause's table tree, folding in JOINs
// and comma-separated cross joins left-associatively.
func (p *Parser) parseTableExpression() TableExpression {
	left := p.parseTableOrSubquery()

	for {
		if p.match(TokenComma) {
			right := p.parseTableOrSubquery()
			left = &JoinExpr{Left: left, Right: right, JoinType: CrossJoin}
			continue
		}

		joinType, ok := p.peekJoinType()
		if !ok {
			break
		}
		p.consumeJoinKeyword(joinType)

		right := p.parseTableOrSubquery()
		join := &JoinExpr{Left: left, Right: right, JoinType: joinType}
		if joinType != CrossJoin && p.match(TokenOn) {
			join.Condition = p.parseExpression()
		}
		left = join
	}

	return left
}

func (p *Parser) parseTableOrSubquery() TableExpression {
	if p.match(TokenLeftParen) {
		inner := p.parseSelect()
		p.consume(TokenRightParen, "expected ')' after subquery")
		alias := p.parseRequiredAlias("subquery")
		return &SubqueryRef{Query: inner, Alias: alias}
	}
	return p.parseTableRef()
}

func (p *Parser) parseTableRef() *TableRef {
	name := p.consumeIdentifierName("expected table name")
	ref := &TableRef{TableName: name}
	if p.match(TokenAs) {
		ref.Alias = p.consumeIdentifierName("expected alias after AS")
	} else if p.check(TokenIdentifier) {
		ref.Alias = p.consumeIdentifierName("expected alias")
	}
	return ref
}

func (p *Parser) parseRequiredAlias(context string) string {
	if p.match(TokenAs) {
		return p.consumeIdentifierName("expected alias after AS")
	}
	return p.consumeIdentifierName(fmt.Sprintf("expected alias for %s", context))
}

// peekJoinType reports the JoinType the current token introduces, without
// consuming anything.
func (p *Parser) peekJoinType() (JoinType, bool) {
	switch p.current.Type {
	case TokenJoin, TokenInner:
		return InnerJoin, true
	case TokenLeft:
		return LeftJoin, true
	case TokenRight:
		return RightJoin, true
	case TokenFull:
		return FullJoin, true
	case TokenCross:
		return CrossJoin, true
	default:
		return InnerJoin, false
	}
}

func (p *Parser) consumeJoinKeyword(joinType JoinType) {
	switch joinType {
	case InnerJoin:
		p.match(TokenInner)
	case LeftJoin:
		p.consume(TokenLeft, "expected LEFT")
	case RightJoin:
		p.consume(TokenRight, "expected RIGHT")
	case FullJoin:
		p.consume(TokenFull, "expected FULL")
	case CrossJoin:
		p.consume(TokenCross, "expected CROSS")
	}
	p.match(TokenOuter)
	p.consume(TokenJoin, "expected JOIN")
}

// Expression precedence, loosest to tightest:
// OR > AND > comparison > +/- > * / % > unary > primary.

func (p *Parser) parseExpression() Expression {
	return p.parseOr()
}

func (p *Parser) parseOr() Expression {
	left := p.parseAnd()
	for p.match(TokenOr) {
		right := p.parseAnd()
		left = &BinaryExpr{Left: left, Operator: TokenOr, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() Expression {
	left := p.parseComparison()
	for p.match(TokenAnd) {
		right := p.parseComparison()
		left = &BinaryExpr{Left: left, Operator: TokenAnd, Right: right}
	}
	return left
}

var comparisonOps = []TokenType{
	TokenEqual, TokenNotEqual, TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual,
}

func (p *Parser) parseComparison() Expression {
	left := p.parseTerm()
	for p.matchAny(comparisonOps...) {
		op := p.previous.Type
		right := p.parseTerm()
		left = &ComparisonExpr{Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) parseTerm() Expression {
	left := p.parseFactor()
	for p.matchAny(TokenPlus, TokenMinus) {
		op := p.previous.Type
		right := p.parseFactor()
		left = &BinaryExpr{Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) parseFactor() Expression {
	left := p.parseUnary()
	for p.matchAny(TokenStar, TokenSlash, TokenPercent) {
		op := p.previous.Type
		right := p.parseUnary()
		left = &BinaryExpr{Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() Expression {
	if p.match(TokenMinus) {
		zero := &Literal{Value: types.NewValue(int64(0))}
		operand := p.parseUnary()
		return &BinaryExpr{Left: zero, Operator: TokenMinus, Right: operand}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() Expression {
	switch {
	case p.match(TokenNumber):
		return p.parseNumberLiteral(p.previous.Value)
	case p.match(TokenString):
		return &Literal{Value: types.NewValue(p.previous.Value)}
	case p.match(TokenTrue):
		return &Literal{Value: types.NewValue(true)}
	case p.match(TokenFalse):
		return &Literal{Value: types.NewValue(false)}
	case p.match(TokenNull):
		return &Literal{Value: types.NewNullValue()}
	case p.match(TokenStar):
		return &Star{}
	case p.match(TokenLeftParen):
		expr := p.parseExpression()
		p.consume(TokenRightParen, "expected ')'")
		return &ParenExpr{Expr: expr}
	case p.check(TokenIdentifier):
		return p.parseIdentifierOrCall()
	default:
		p.error(fmt.Sprintf("unexpected token %s in expression", p.current.String()))
		p.advance()
		return &Literal{Value: types.NewNullValue()}
	}
}

func (p *Parser) parseNumberLiteral(text string) Expression {
	if strings.Contains(text, ".") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			p.error(fmt.Sprintf("invalid numeric literal %q", text))
			return &Literal{Value: types.NewNullValue()}
		}
		return &Literal{Value: types.NewValue(f)}
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		p.error(fmt.Sprintf("invalid numeric literal %q", text))
		return &Literal{Value: types.NewNullValue()}
	}
	return &Literal{Value: types.NewValue(n)}
}

func (p *Parser) parseIdentifierOrCall() Expression {
	name := p.consumeIdentifierName("expected identifier")

	if p.match(TokenDot) {
		field := p.consumeIdentifierName("expected column name after '.'")
		return &Identifier{Table: name, Name: field}
	}

	if p.match(TokenLeftParen) {
		call := &FunctionCall{Name: name}
		if p.match(TokenDistinct) {
			call.Distinct = true
		}
		if p.check(TokenStar) {
			p.advance()
			call.Args = []Expression{&Star{}}
		} else if !p.check(TokenRightParen) {
			call.Args = p.parseExpressionList()
		}
		p.consume(TokenRightParen, "expected ')' after function arguments")
		return call
	}

	return &Identifier{Name: name}
}

// --- token stream helpers ---

func (p *Parser) advance() Token {
	p.previous = p.current
	p.current = p.lexer.NextToken()
	if p.current.Type == TokenError {
		p.error(p.current.Value)
	}
	return p.previous
}

func (p *Parser) check(t TokenType) bool {
	return p.current.Type == t
}

func (p *Parser) match(t TokenType) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) matchAny(tokenTypes ...TokenType) bool {
	for _, t := range tokenTypes {
		if p.match(t) {
			return true
		}
	}
	return false
}

func (p *Parser) consume(t TokenType, msg string) Token {
	if p.check(t) {
		return p.advance()
	}
	p.error(fmt.Sprintf("%s, got %s", msg, p.current.String()))
	return p.current
}

// consumeIdentifierName consumes an identifier token (bare or
// double-quoted); a reserved word such as ASC or DESC is not accepted.
func (p *Parser) consumeIdentifierName(msg string) string {
	if p.check(TokenIdentifier) {
		tok := p.advance()
		return tok.Value
	}
	p.error(fmt.Sprintf("%s, got %s", msg, p.current.String()))
	return ""
}

func (p *Parser) error(msg string) {
	p.errors = append(p.errors, NewParseError(msg, p.current.Line, p.current.Column))
}

func (p *Parser) lastError() error {
	if len(p.errors) == 0 {
		return nil
	}
	return p.errors[0]
}
