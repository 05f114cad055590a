// Package expr implements the expression compiler of §4.4: a rule
// dispatcher that walks an expression AST depth-first and produces a typed
// Desc tree, resolving columns through a row resolver and function/
// operator calls through the function registry's overload and
// implicit-conversion rules. It never evaluates an expression — only types
// and binds it.
package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/hiveql-compiler/internal/ast"
	"github.com/dshills/hiveql-compiler/internal/exprtype"
	"github.com/dshills/hiveql-compiler/internal/funcreg"
	"github.com/dshills/hiveql-compiler/internal/semantic/resolver"
	"github.com/dshills/hiveql-compiler/internal/semantic/semerr"
)

// Kind discriminates the typed expression descriptor sum type.
type Kind int

const (
	KindNull Kind = iota
	KindConstant
	KindColumn
	KindFunc
	KindField
	KindIndex
)

// Desc is one node of a compiled expression tree. Which fields are
// meaningful depends on Kind: Constant uses Literal; Column uses
// Alias/Column/InternalName; Func uses FuncName/Args; Field/Index use
// Base plus FieldName or Index.
type Desc struct {
	Kind Kind
	Type *exprtype.TypeInfo

	// Literal is the textual form of a Constant's value.
	Literal string

	// Alias/Column/InternalName identify a Column descriptor: the source
	// table alias (possibly "" for an unqualified or aliasless
	// reference), the column name, and the dense name it resolves to
	// within the owning operator's output row.
	Alias        string
	Column       string
	InternalName string

	// FuncName and Args describe a Func descriptor: the resolved overload
	// name (which may differ in case from the written call) and its
	// already-compiled, already-converted arguments.
	FuncName string
	Args     []*Desc

	// Base is the struct or collection expression a Field/Index
	// descriptor projects from.
	Base      *Desc
	FieldName string
	Index     *Desc
}

// Compiler binds one expression AST against a function registry and a row
// resolver, memoizing subexpressions an upstream operator has already
// registered via BindExpr.
type Compiler struct {
	registry   funcreg.Registry
	resolver   *resolver.RowResolver
	boundExprs map[string]*resolver.ColumnInfo
}

// New creates a Compiler resolving columns against rr and functions
// against registry.
func New(registry funcreg.Registry, rr *resolver.RowResolver) *Compiler {
	return &Compiler{
		registry:   registry,
		resolver:   rr,
		boundExprs: make(map[string]*resolver.ColumnInfo),
	}
}

// BindExpr registers that the subtree whose canonical text is
// canonicalText (see ast.Node.CanonicalString) has already been
// materialized by an upstream operator as info, so Compile returns a
// column reference to it instead of recompiling (§4.4's reuse rule; the
// group-by planner uses this for aggregation subtrees the map-side
// aggregator has already reduced).
func (c *Compiler) BindExpr(canonicalText string, info *resolver.ColumnInfo) {
	c.boundExprs[canonicalText] = info
}

// Compile walks node depth-first and returns its typed descriptor.
func (c *Compiler) Compile(node *ast.Node) (*Desc, error) {
	if node == nil {
		return nil, fmt.Errorf("expr: nil AST node")
	}
	if info, ok := c.boundExprs[node.CanonicalString()]; ok {
		return &Desc{Kind: KindColumn, Type: info.Type, InternalName: info.InternalName}, nil
	}

	switch node.Kind {
	case ast.KindNull:
		return &Desc{Kind: KindNull, Type: exprtype.Void}, nil
	case ast.KindNumber:
		return compileNumber(node.Text)
	case ast.KindStringLit, ast.KindCharSetLit, ast.KindIdentifier:
		return &Desc{Kind: KindConstant, Type: exprtype.Text, Literal: node.Text}, nil
	case ast.KindTrue:
		return &Desc{Kind: KindConstant, Type: exprtype.Boolean, Literal: "true"}, nil
	case ast.KindFalse:
		return &Desc{Kind: KindConstant, Type: exprtype.Boolean, Literal: "false"}, nil
	case ast.KindTabColRef:
		return c.compileColumn(node)
	case ast.KindDot:
		return c.compileDot(node)
	case ast.KindLSquare:
		return c.compileIndex(node)
	case ast.KindFunction, ast.KindFunctionDI:
		name := node.Child(0)
		if name == nil {
			return nil, fmt.Errorf("expr: function call has no name")
		}
		return c.compileFunction(name.Text, node.Children[1:])
	default:
		return c.compileOperator(node)
	}
}

func compileNumber(text string) (*Desc, error) {
	if _, err := strconv.ParseInt(text, 10, 32); err == nil {
		return &Desc{Kind: KindConstant, Type: exprtype.Integer, Literal: text}, nil
	}
	if _, err := strconv.ParseInt(text, 10, 64); err == nil {
		return &Desc{Kind: KindConstant, Type: exprtype.BigInt, Literal: text}, nil
	}
	if _, err := strconv.ParseFloat(text, 64); err == nil {
		return &Desc{Kind: KindConstant, Type: exprtype.Double, Literal: text}, nil
	}
	return nil, semerr.InvalidNumericalConstantError(text)
}

// compileColumn resolves an unqualified TOK_TABLE_OR_COL reference,
// failing with InvalidColumn/AmbiguousColumn if the row resolver can't
// resolve it to exactly one column (§4.4).
func (c *Compiler) compileColumn(node *ast.Node) (*Desc, error) {
	id := node.FirstChildOfKind(ast.KindIdentifier)
	if id == nil {
		return nil, fmt.Errorf("expr: TOK_TABLE_OR_COL has no identifier")
	}
	info, err := c.resolver.Get("", id.Text)
	if err != nil {
		return nil, err
	}
	return &Desc{Kind: KindColumn, Type: info.Type, Column: id.Text, InternalName: info.InternalName}, nil
}

// compileDot handles "a.b": if "a" is a known table alias this is a
// qualified column reference; otherwise "a" is compiled as its own
// expression and "b" must be one of its struct type's fields.
func (c *Compiler) compileDot(node *ast.Node) (*Desc, error) {
	left, right := node.Child(0), node.Child(1)
	if right == nil {
		return nil, fmt.Errorf("expr: dot expression has no right-hand identifier")
	}

	if left != nil && left.Kind == ast.KindTabColRef && left.ChildCount() == 1 {
		aliasID := left.Child(0)
		if c.resolver.HasAlias(aliasID.Text) {
			info, err := c.resolver.Get(aliasID.Text, right.Text)
			if err != nil {
				return nil, err
			}
			return &Desc{Kind: KindColumn, Type: info.Type, Alias: aliasID.Text, Column: right.Text, InternalName: info.InternalName}, nil
		}
	}

	base, err := c.Compile(left)
	if err != nil {
		return nil, err
	}
	if !base.Type.IsStruct() {
		return nil, semerr.InvalidDotError(node.CanonicalString())
	}
	field, ok := base.Type.Field(right.Text)
	if !ok {
		return nil, semerr.InvalidDotError(node.CanonicalString())
	}
	return &Desc{Kind: KindField, Type: field.Type, Base: base, FieldName: right.Text}, nil
}

// compileIndex handles "base[index]": a list index must be a non-negative
// constant integer, a map index must be a constant of the map's key type
// (§4.4).
func (c *Compiler) compileIndex(node *ast.Node) (*Desc, error) {
	base, err := c.Compile(node.Child(0))
	if err != nil {
		return nil, err
	}
	indexNode := node.Child(1)

	switch {
	case base.Type.IsList():
		if indexNode == nil || indexNode.Kind != ast.KindNumber {
			return nil, semerr.InvalidArrayIndexConstantError()
		}
		n, err := strconv.Atoi(indexNode.Text)
		if err != nil || n < 0 {
			return nil, semerr.InvalidArrayIndexConstantError()
		}
		idx, err := c.Compile(indexNode)
		if err != nil {
			return nil, err
		}
		return &Desc{Kind: KindIndex, Type: base.Type.Element, Base: base, Index: idx}, nil

	case base.Type.IsMap():
		if indexNode == nil {
			return nil, semerr.InvalidMapIndexConstantError()
		}
		idx, err := c.Compile(indexNode)
		if err != nil || idx.Kind != KindConstant {
			return nil, semerr.InvalidMapIndexConstantError()
		}
		if !exprtype.Equal(idx.Type, base.Type.Key) {
			return nil, semerr.InvalidMapIndexTypeError(base.Type.Key.String(), idx.Type.String())
		}
		return &Desc{Kind: KindIndex, Type: base.Type.Element, Base: base, Index: idx}, nil

	default:
		return nil, semerr.NonCollectionTypeError(node.CanonicalString())
	}
}

// compileOperator treats a binary/unary operator node (AND, OR, =, +, ...)
// as a function call on its children, named by its canonical operator
// text (§4.4's "default" dispatch rule).
func (c *Compiler) compileOperator(node *ast.Node) (*Desc, error) {
	return c.compileFunction(operatorFuncName(node.Kind), node.Children)
}

func operatorFuncName(k ast.Kind) string {
	switch k {
	case ast.KindAnd:
		return "and"
	case ast.KindOr:
		return "or"
	case ast.KindNot:
		return "not"
	default:
		return string(k)
	}
}

// compileFunction resolves name against the function registry. If no
// overload matches the arguments' exact or numerically-widened types, it
// tries converting both arguments of a binary call to their common class
// via an explicit conversion UDF (the registry's numeric/string widening
// rule) and retries once (§4.4).
func (c *Compiler) compileFunction(name string, argNodes []*ast.Node) (*Desc, error) {
	args := make([]*Desc, len(argNodes))
	argTypes := make([]*exprtype.TypeInfo, len(argNodes))
	for i, a := range argNodes {
		d, err := c.Compile(a)
		if err != nil {
			return nil, err
		}
		args[i] = d
		argTypes[i] = d.Type
	}

	if m, err := c.registry.GetUDF(name, argTypes); err == nil {
		return &Desc{Kind: KindFunc, Type: m.ReturnType, FuncName: m.Name, Args: args}, nil
	}

	if converted, convTypes, ok := c.convertToCommonClass(args, argTypes); ok {
		if m, err := c.registry.GetUDF(name, convTypes); err == nil {
			return &Desc{Kind: KindFunc, Type: m.ReturnType, FuncName: m.Name, Args: converted}, nil
		}
	}

	return nil, semerr.InvalidFunctionSignatureError(name, typeListString(argTypes))
}

// convertToCommonClass wraps each of a binary call's arguments that isn't
// already the pair's common class in an explicit conversion-UDF call,
// mirroring the registry's implicit numeric/string widening (§4.4). Only
// applies to exactly two arguments; wider arities fall straight through to
// InvalidFunctionSignature.
func (c *Compiler) convertToCommonClass(args []*Desc, argTypes []*exprtype.TypeInfo) ([]*Desc, []*exprtype.TypeInfo, bool) {
	if len(args) != 2 {
		return nil, nil, false
	}
	common, ok := c.registry.GetCommonClass(argTypes[0], argTypes[1])
	if !ok {
		return nil, nil, false
	}

	converted := make([]*Desc, 2)
	types := make([]*exprtype.TypeInfo, 2)
	for i := range args {
		if exprtype.Equal(argTypes[i], common) {
			converted[i], types[i] = args[i], argTypes[i]
			continue
		}
		m, err := c.registry.GetUDFMethod(exprtype.CanonicalName(common), argTypes[i])
		if err != nil {
			return nil, nil, false
		}
		converted[i] = &Desc{Kind: KindFunc, Type: m.ReturnType, FuncName: m.Name, Args: []*Desc{args[i]}}
		types[i] = m.ReturnType
	}
	return converted, types, true
}

func typeListString(types []*exprtype.TypeInfo) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
