package parser

import "fmt"

// ParseError reports a syntax error at a specific line/column.
type ParseError struct {
	Msg    string
	Line   int
	Column int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s (line %d, column %d)", e.Msg, e.Line, e.Column)
}

// NewParseError builds a ParseError at the given position.
func NewParseError(msg string, line, column int) *ParseError {
	return &ParseError{Msg: msg, Line: line, Column: column}
}
