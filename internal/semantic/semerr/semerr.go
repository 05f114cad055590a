// Package semerr implements the single error kind the compiler raises:
// SemanticError, carrying a taxonomy code, message, optional source
// position and optional cause (§7). It mirrors the field set and fluent
// builder style of internal/errors.Error, the teacher's SQLSTATE-coded
// error type, but keys on the enumerated Code taxonomy instead of SQLSTATE
// strings since this compiler has no wire protocol to report SQLSTATEs
// over.
package semerr

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Code enumerates the error taxonomy of §7.
type Code int

const (
	Generic Code = iota
	InvalidTable
	InvalidColumn
	AmbiguousColumn
	AmbiguousTableAlias
	InvalidTableAlias
	NoSubqueryAlias
	NoInsertInSubquery
	InvalidFunction
	InvalidFunctionSignature
	InvalidOperatorSignature
	InvalidJoinCondition1
	InvalidJoinCondition2
	InvalidJoinCondition3
	InvalidTransform
	DuplicateGroupByKey
	UnsupportedMultipleDistincts
	NonKeyExprInGroupBy
	InvalidXPath
	InvalidPath
	InvalidNumericalConstant
	InvalidArrayIndexConstant
	InvalidMapIndexConstant
	InvalidMapIndexType
	NonCollectionType
	SelectDistinctWithGroupBy
	ColumnRepeatedInPartitioningCols
	DuplicateColumnNames
	ColumnRepeatedInClusterSort
	SampleRestriction
	SampleColumnNotFound
	NoPartitionPredicate
	InvalidDot
	InvalidTblDdlSerde
	TargetTableColumnMismatch
	TableAliasNotAllowed
	ClusterByDistributeByConflict
	ClusterBySortByConflict
	UnionNotInSubquery
	InvalidInputFormatType
	InvalidOutputFormatType
	NonBucketedTable
)

var codeNames = map[Code]string{
	Generic:                           "Generic",
	InvalidTable:                      "InvalidTable",
	InvalidColumn:                     "InvalidColumn",
	AmbiguousColumn:                   "AmbiguousColumn",
	AmbiguousTableAlias:               "AmbiguousTableAlias",
	InvalidTableAlias:                 "InvalidTableAlias",
	NoSubqueryAlias:                   "NoSubqueryAlias",
	NoInsertInSubquery:                "NoInsertInSubquery",
	InvalidFunction:                   "InvalidFunction",
	InvalidFunctionSignature:          "InvalidFunctionSignature",
	InvalidOperatorSignature:          "InvalidOperatorSignature",
	InvalidJoinCondition1:             "InvalidJoinCondition1",
	InvalidJoinCondition2:             "InvalidJoinCondition2",
	InvalidJoinCondition3:             "InvalidJoinCondition3",
	InvalidTransform:                  "InvalidTransform",
	DuplicateGroupByKey:               "DuplicateGroupByKey",
	UnsupportedMultipleDistincts:      "UnsupportedMultipleDistincts",
	NonKeyExprInGroupBy:               "NonKeyExprInGroupBy",
	InvalidXPath:                      "InvalidXPath",
	InvalidPath:                       "InvalidPath",
	InvalidNumericalConstant:          "InvalidNumericalConstant",
	InvalidArrayIndexConstant:         "InvalidArrayIndexConstant",
	InvalidMapIndexConstant:           "InvalidMapIndexConstant",
	InvalidMapIndexType:               "InvalidMapIndexType",
	NonCollectionType:                 "NonCollectionType",
	SelectDistinctWithGroupBy:         "SelectDistinctWithGroupBy",
	ColumnRepeatedInPartitioningCols:  "ColumnRepeatedInPartitioningCols",
	DuplicateColumnNames:              "DuplicateColumnNames",
	ColumnRepeatedInClusterSort:       "ColumnRepeatedInClusterSort",
	SampleRestriction:                 "SampleRestriction",
	SampleColumnNotFound:              "SampleColumnNotFound",
	NoPartitionPredicate:              "NoPartitionPredicate",
	InvalidDot:                        "InvalidDot",
	InvalidTblDdlSerde:                "InvalidTblDdlSerde",
	TargetTableColumnMismatch:         "TargetTableColumnMismatch",
	TableAliasNotAllowed:              "TableAliasNotAllowed",
	ClusterByDistributeByConflict:     "ClusterByDistributeByConflict",
	ClusterBySortByConflict:           "ClusterBySortByConflict",
	UnionNotInSubquery:                "UnionNotInSubquery",
	InvalidInputFormatType:            "InvalidInputFormatType",
	InvalidOutputFormatType:           "InvalidOutputFormatType",
	NonBucketedTable:                  "NonBucketedTable",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "Unknown"
}

// SemanticError is the single error type the compiler raises. All analysis
// errors abort the current compilation; no partial plan is ever emitted.
type SemanticError struct {
	Code    Code
	Message string
	Detail  string
	Line    int
	Col     int
	Token   string
	Cause   error
}

// New creates a SemanticError with the given code and message.
func New(code Code, message string) *SemanticError {
	return &SemanticError{Code: code, Message: message}
}

// Newf creates a SemanticError with a formatted message.
func Newf(code Code, format string, args ...interface{}) *SemanticError {
	return &SemanticError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches additional detail to the error.
func (e *SemanticError) WithDetail(detail string) *SemanticError {
	e.Detail = detail
	return e
}

// WithPosition attaches a source position.
func (e *SemanticError) WithPosition(line, col int) *SemanticError {
	e.Line = line
	e.Col = col
	return e
}

// WithToken attaches the offending token's text.
func (e *SemanticError) WithToken(token string) *SemanticError {
	e.Token = token
	return e
}

// WithCause attaches an upstream error (metastore/IO failures wrapped as
// Generic per §7).
func (e *SemanticError) WithCause(cause error) *SemanticError {
	e.Cause = cause
	return e
}

// Error implements the error interface.
func (e *SemanticError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Line != 0 || e.Col != 0 {
		msg = fmt.Sprintf("%s (at %d:%d)", msg, e.Line, e.Col)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	return msg
}

// Unwrap exposes the cause to errors.Is/errors.As.
func (e *SemanticError) Unwrap() error {
	return e.Cause
}

// Wrap wraps an upstream collaborator failure (metastore, IO) as a Generic
// semantic error, preserving the cause the way §7 requires.
func Wrap(cause error, context string) *SemanticError {
	return New(Generic, context).WithCause(pkgerrors.WithMessage(cause, context))
}

// Category-specific constructors, in the style of internal/errors'
// categories.go.

func InvalidColumnError(name string) *SemanticError {
	return Newf(InvalidColumn, "Invalid column reference %s", name).WithToken(name)
}

func AmbiguousColumnError(name string) *SemanticError {
	return Newf(AmbiguousColumn, "Ambiguous column reference %s", name).WithToken(name)
}

func InvalidTableAliasError(alias string) *SemanticError {
	return Newf(InvalidTableAlias, "Table alias %q is invalid or already in use", alias).WithToken(alias)
}

func AmbiguousTableAliasError(alias string) *SemanticError {
	return Newf(AmbiguousTableAlias, "Ambiguous table alias %q", alias).WithToken(alias)
}

func InvalidTableError(name string) *SemanticError {
	return Newf(InvalidTable, "Table not found %s", name).WithToken(name)
}

func NoSubqueryAliasError() *SemanticError {
	return New(NoSubqueryAlias, "No alias for subquery, every subquery in the FROM clause must have an alias")
}

func SelectDistinctWithGroupByError() *SemanticError {
	return New(SelectDistinctWithGroupBy, "SELECT DISTINCT and GROUP BY can not be in the same query")
}

func NoPartitionPredicateError(table string) *SemanticError {
	return Newf(NoPartitionPredicate, "No partition predicate for partitioned table %s found (strict mode)", table)
}

func InvalidJoinCondition1Error(expr string) *SemanticError {
	return Newf(InvalidJoinCondition1, "Both left and right aliases encountered in join condition %s", expr)
}

func InvalidJoinCondition3Error() *SemanticError {
	return New(InvalidJoinCondition3, "OR is not supported at the top level of a join condition")
}

func DuplicateGroupByKeyError(expr string) *SemanticError {
	return Newf(DuplicateGroupByKey, "Duplicate group-by key %s", expr)
}

func UnsupportedMultipleDistinctsError() *SemanticError {
	return New(UnsupportedMultipleDistincts, "DISTINCT on different columns is not supported with multiple distinct aggregates over the same column set")
}

func InvalidFunctionSignatureError(name, argTypes string) *SemanticError {
	return Newf(InvalidFunctionSignature, "No matching signature for function %s with argument types %s", name, argTypes)
}

func InvalidFunctionError(name string) *SemanticError {
	return Newf(InvalidFunction, "Unknown function %s", name)
}

func ClusterByDistributeByConflictError() *SemanticError {
	return New(ClusterByDistributeByConflict, "CLUSTER BY cannot be combined with DISTRIBUTE BY")
}

func ClusterBySortByConflictError() *SemanticError {
	return New(ClusterBySortByConflict, "CLUSTER BY cannot be combined with SORT BY")
}

func SampleRestrictionError() *SemanticError {
	return New(SampleRestriction, "Sampling on more than two columns is not supported")
}

func SampleColumnNotFoundError(col string) *SemanticError {
	return Newf(SampleColumnNotFound, "Sample column %s not found in table", col)
}

func UnionNotInSubqueryError() *SemanticError {
	return New(UnionNotInSubquery, "Top-level UNION is not supported, only UNION ALL inside a subquery")
}

func NonBucketedTableError(table string) *SemanticError {
	return Newf(NonBucketedTable, "Table %s is not bucketed, TABLESAMPLE requires bucketing metadata", table)
}

func NoInsertInSubqueryError() *SemanticError {
	return New(NoInsertInSubquery, "A subquery's destination must be a synthetic temp file, not a table/partition/directory INSERT target")
}

func InvalidJoinCondition2Error(expr string) *SemanticError {
	return Newf(InvalidJoinCondition2, "Invalid join condition, neither left nor right alias found in %s", expr)
}

func InvalidDotError(expr string) *SemanticError {
	return Newf(InvalidDot, "Invalid dot notation %s: parent is not a struct", expr)
}

func NonCollectionTypeError(expr string) *SemanticError {
	return Newf(NonCollectionType, "Invalid index expression %s: parent is not a list or map", expr)
}

func InvalidArrayIndexConstantError() *SemanticError {
	return New(InvalidArrayIndexConstant, "Array index must be a non-negative constant integer")
}

func InvalidMapIndexConstantError() *SemanticError {
	return New(InvalidMapIndexConstant, "Map index must be a constant")
}

func InvalidMapIndexTypeError(expected, got string) *SemanticError {
	return Newf(InvalidMapIndexType, "Map index type mismatch: expected %s, got %s", expected, got)
}

func InvalidNumericalConstantError(text string) *SemanticError {
	return Newf(InvalidNumericalConstant, "Invalid numerical constant %s", text)
}

func InvalidInputFormatTypeError(table, format string) *SemanticError {
	return Newf(InvalidInputFormatType, "Table %s has unrecognized input format %s", table, format)
}

func InvalidOutputFormatTypeError(table, format string) *SemanticError {
	return Newf(InvalidOutputFormatType, "Table %s has unrecognized output format %s", table, format)
}

func TargetTableColumnMismatchError(table, column, wantType, gotType string) *SemanticError {
	return Newf(TargetTableColumnMismatch, "Cannot insert into target table %s: column %s is type %s, value is type %s with no implicit conversion", table, column, wantType, gotType)
}
