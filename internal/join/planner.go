package join

import (
	"github.com/dshills/hiveql-compiler/internal/exprtype"
	"github.com/dshills/hiveql-compiler/internal/funcreg"
	"github.com/dshills/hiveql-compiler/internal/semantic/expr"
)

// Merge folds a left-deep chain of binary join-tree nodes produced by
// phase1 into the widest multi-way node the §4.6 rule allows: a node
// merges into its left ancestor when its LeftAlias names one of the
// ancestor's positions and its own left-side key expressions are
// structurally identical to that position's key expressions — the
// "multi-way equi-joins sharing a left key" case named in §1. Nodes that do
// not share a key (different join columns) are left as separate Tree nodes
// linked by JoinSrc. The join type does not block a merge: outer joins
// merge like inner ones, and the merged node is NoOuterJoin only when both
// inputs were.
func Merge(tree *Tree) *Tree {
	if tree == nil {
		return nil
	}
	if tree.JoinSrc != nil {
		tree.JoinSrc = Merge(tree.JoinSrc)
	}
	ancestor := tree.JoinSrc
	if ancestor == nil || ancestor.BaseSrc[0] == "" {
		// Ancestor itself didn't fully flatten (its own merge attempt
		// failed further up the chain); nothing further to merge here.
		return tree
	}

	pos := indexOf(ancestor.BaseSrc, tree.LeftAlias)
	if pos < 0 || !exprSlicesEqual(ancestor.Expressions[pos], tree.Expressions[0]) {
		return tree
	}

	return mergeAt(ancestor, tree, pos)
}

func indexOf(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}

func exprSlicesEqual(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].InternalName != b[i].InternalName {
			return false
		}
	}
	return true
}

// mergeAt absorbs node's right side into ancestor at position pos,
// producing the N+1-wide node the merge rule describes: right aliases,
// baseSrc, per-side expressions, per-side filters and join conditions are
// concatenated, re-based onto the target (§4.6).
func mergeAt(ancestor, node *Tree, pos int) *Tree {
	width := ancestor.Width()
	merged := &Tree{
		LeftAlias:    ancestor.LeftAlias,
		LeftAliases:  append([]string{}, ancestor.Aliases()...),
		RightAliases: append([]string{}, node.RightAliases...),
		BaseSrc:      append(append([]string{}, ancestor.BaseSrc...), node.BaseSrc[1]),
		Expressions:  make([][]Expr, width+1),
		Filters:      make([][]Expr, width+1),
		JoinCond:     append(append([]Type{}, ancestor.JoinCond...), node.JoinCond...),
		NoOuterJoin:  ancestor.NoOuterJoin && node.NoOuterJoin,
		NextTag:      width + 1,
	}
	for i := 0; i < width; i++ {
		merged.Expressions[i] = append([]Expr{}, ancestor.Expressions[i]...)
		merged.Filters[i] = append([]Expr{}, ancestor.Filters[i]...)
	}
	merged.Expressions[width] = append([]Expr{}, node.Expressions[1]...)
	merged.Filters[width] = append([]Expr{}, node.Filters[1]...)
	// Filters node attached to its own left side (referencing any alias
	// already inside ancestor) are re-based onto the position where the
	// shared key lives.
	merged.Filters[pos] = append(merged.Filters[pos], node.Filters[0]...)
	return merged
}

// CanMerge reports whether tree still has an unmerged ancestor chain that
// Merge's rule would fold further — used by tests asserting the §8
// "no two Join operators remain that could merge" property.
func CanMerge(tree *Tree) bool {
	if tree == nil || tree.JoinSrc == nil {
		return false
	}
	ancestor := tree.JoinSrc
	if ancestor.BaseSrc[0] == "" {
		return false
	}
	pos := indexOf(ancestor.BaseSrc, tree.LeftAlias)
	return pos >= 0 && exprSlicesEqual(ancestor.Expressions[pos], tree.Expressions[0])
}

// KeyUnifier performs the join-key type unification of §4.6: across every
// input position, compute the common class of the k-th key expression and
// wrap any non-conforming position in an explicit conversion call before
// the key is serialized into a ReduceSink's sort key.
type KeyUnifier struct {
	registry funcreg.Registry
}

// NewKeyUnifier creates a KeyUnifier resolving conversions against
// registry.
func NewKeyUnifier(registry funcreg.Registry) *KeyUnifier {
	return &KeyUnifier{registry: registry}
}

// Unify takes perSideKeys[i][k], the compiled k-th key expression of
// position i, and returns a new slice where every position's k-th key has
// been converted (if needed) to the common class across all positions.
// perSideKeys[i] must all have the same length (the join's key arity).
func (u *KeyUnifier) Unify(perSideKeys [][]*expr.Desc) ([][]*expr.Desc, error) {
	if len(perSideKeys) == 0 {
		return perSideKeys, nil
	}
	arity := len(perSideKeys[0])
	out := make([][]*expr.Desc, len(perSideKeys))
	for i := range out {
		out[i] = make([]*expr.Desc, arity)
		copy(out[i], perSideKeys[i])
	}

	for k := 0; k < arity; k++ {
		common := out[0][k].Type
		for i := 1; i < len(out); i++ {
			c, ok := u.registry.GetCommonClass(common, out[i][k].Type)
			if !ok {
				continue
			}
			common = c
		}
		for i := range out {
			d := out[i][k]
			if exprtype.Equal(d.Type, common) {
				continue
			}
			m, err := u.registry.GetUDFMethod(exprtype.CanonicalName(common), d.Type)
			if err != nil {
				continue
			}
			out[i][k] = &expr.Desc{Kind: expr.KindFunc, Type: m.ReturnType, FuncName: m.Name, Args: []*expr.Desc{d}}
		}
	}
	return out, nil
}
