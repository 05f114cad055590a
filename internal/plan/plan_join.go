package plan

import (
	"fmt"

	"github.com/dshills/hiveql-compiler/internal/exprtype"
	"github.com/dshills/hiveql-compiler/internal/join"
	"github.com/dshills/hiveql-compiler/internal/operator"
	"github.com/dshills/hiveql-compiler/internal/semantic/expr"
	"github.com/dshills/hiveql-compiler/internal/semantic/qb"
	"github.com/dshills/hiveql-compiler/internal/semantic/resolver"
)

// buildJoin merges tree's left-deep chain (§4.6) and lowers the result to
// a ReduceSink-per-position plus a single multi-way Join operator.
func (p *Planner) buildJoin(factory *operator.Factory, q *qb.QB, tree *join.Tree, strict bool) (*operator.Operator, error) {
	merged := join.Merge(tree)
	return p.buildJoinNode(factory, q, merged, strict)
}

func (p *Planner) buildJoinNode(factory *operator.Factory, q *qb.QB, tree *join.Tree, strict bool) (*operator.Operator, error) {
	width := tree.Width()
	positions := make([]*operator.Operator, width)

	if tree.JoinSrc != nil && tree.BaseSrc[0] == "" {
		left, err := p.buildJoinNode(factory, q, tree.JoinSrc, strict)
		if err != nil {
			return nil, err
		}
		positions[0] = left
		for i := 1; i < width; i++ {
			op, err := p.resolveAlias(factory, q, tree.BaseSrc[i], strict)
			if err != nil {
				return nil, err
			}
			positions[i] = op
		}
	} else {
		for i := 0; i < width; i++ {
			op, err := p.resolveAlias(factory, q, tree.BaseSrc[i], strict)
			if err != nil {
				return nil, err
			}
			positions[i] = op
		}
	}

	// Inner-only chains push each side's non-key filters down onto the
	// scan before the shuffle; an outer join must see every row at the
	// join itself, so its filters are applied to the joined output
	// instead (§4.6).
	if tree.NoOuterJoin {
		for i, f := range tree.Filters {
			pred, err := p.compileFilterConj(positions[i].Schema, f)
			if err != nil {
				return nil, err
			}
			if pred != nil {
				positions[i] = factory.Filter(&operator.FilterDesc{Predicate: pred}, positions[i].Schema, positions[i])
			}
		}
	}

	perSideKeys := make([][]*expr.Desc, width)
	for i := 0; i < width; i++ {
		c := expr.New(p.registry, positions[i].Schema)
		keys := make([]*expr.Desc, len(tree.Expressions[i]))
		for k, e := range tree.Expressions[i] {
			if e.Node == nil {
				return nil, fmt.Errorf("plan: join key %d on position %d has no source expression", k, i)
			}
			d, err := c.Compile(e.Node)
			if err != nil {
				return nil, err
			}
			keys[k] = d
		}
		perSideKeys[i] = keys
	}
	unifier := join.NewKeyUnifier(p.registry)
	unifiedKeys, err := unifier.Unify(perSideKeys)
	if err != nil {
		return nil, err
	}

	rsOps := make([]*operator.Operator, width)
	for i := 0; i < width; i++ {
		cols := positions[i].Schema.Columns()
		valueExprs := make([]*expr.Desc, len(cols))
		valueCols := make([]operator.ColumnSpec, len(cols))
		for j, ce := range cols {
			valueExprs[j] = &expr.Desc{Kind: expr.KindColumn, Type: ce.Info.Type, InternalName: ce.Info.InternalName}
			valueCols[j] = operator.ColumnSpec{Alias: ce.Alias, Column: ce.Column, Type: ce.Info.Type}
		}
		keyCols := make([]operator.ColumnSpec, len(unifiedKeys[i]))
		for k, d := range unifiedKeys[i] {
			keyCols[k] = operator.ColumnSpec{Column: fmt.Sprintf("_key%d", k), Type: d.Type}
		}
		rsSchema := operator.ReduceSinkSchema(keyCols, valueCols)
		rsOps[i] = factory.ReduceSink(&operator.ReduceSinkDesc{
			KeyExprs:       unifiedKeys[i],
			ValueExprs:     valueExprs,
			PartitionExprs: unifiedKeys[i],
			Tag:            i,
			NumReducers:    -1,
		}, rsSchema, positions[i])
	}

	outCols := make([]operator.ColumnSpec, 0)
	joinKeyExprs := make([][]*expr.Desc, width)
	joinValueExprs := make([][]*expr.Desc, width)
	tags := make([]int, width)
	for i := 0; i < width; i++ {
		tags[i] = i
		cols := positions[i].Schema.Columns()
		refs := make([]*expr.Desc, len(cols))
		for j, ce := range cols {
			refs[j] = &expr.Desc{Kind: expr.KindColumn, Type: ce.Info.Type, InternalName: fmt.Sprintf("VALUE.%d", j)}
			outCols = append(outCols, operator.ColumnSpec{Alias: ce.Alias, Column: ce.Column, Type: ce.Info.Type})
		}
		joinValueExprs[i] = refs
		keyRefs := make([]*expr.Desc, len(unifiedKeys[i]))
		for k, d := range unifiedKeys[i] {
			keyRefs[k] = &expr.Desc{Kind: expr.KindColumn, Type: d.Type, InternalName: fmt.Sprintf("KEY.%d", k)}
		}
		joinKeyExprs[i] = keyRefs
	}
	joinCond := make([]int, len(tree.JoinCond))
	for i, jc := range tree.JoinCond {
		joinCond[i] = int(jc)
	}

	outSchema := operator.DenseSchema(outCols)
	joinOp := factory.Join(&operator.JoinDesc{
		KeyExprs:    joinKeyExprs,
		ValueExprs:  joinValueExprs,
		JoinCond:    joinCond,
		NoOuterJoin: tree.NoOuterJoin,
		Tags:        tags,
	}, outSchema, rsOps...)

	if tree.NoOuterJoin {
		return joinOp, nil
	}

	cur := joinOp
	for _, f := range tree.Filters {
		pred, err := p.compileFilterConj(outSchema, f)
		if err != nil {
			return nil, err
		}
		if pred != nil {
			cur = factory.Filter(&operator.FilterDesc{Predicate: pred}, outSchema, cur)
		}
	}
	return cur, nil
}

// compileFilterConj compiles every join.Expr in exprs against schema and
// ANDs them together, returning nil if exprs is empty.
func (p *Planner) compileFilterConj(schema *resolver.RowResolver, exprs []join.Expr) (*expr.Desc, error) {
	c := expr.New(p.registry, schema)
	var out *expr.Desc
	for _, e := range exprs {
		if e.Node == nil {
			continue
		}
		d, err := c.Compile(e.Node)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = d
			continue
		}
		out = andExpr(out, d)
	}
	return out, nil
}

func andExpr(a, b *expr.Desc) *expr.Desc {
	return &expr.Desc{Kind: expr.KindFunc, FuncName: "and", Type: exprtype.Boolean, Args: []*expr.Desc{a, b}}
}
