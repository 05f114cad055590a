// Package prune implements the two pruners of §4.7/§4.8: the partition
// pruner, which drops from a partitioned table's scan the partitions a
// WHERE/ON predicate provably cannot match, and the sample pruner, which
// turns a TABLESAMPLE clause into either a direct bucket-file subset or a
// hash-predicate filter.
package prune

import (
	"strconv"
	"strings"

	"github.com/dshills/hiveql-compiler/internal/exprtype"
	"github.com/dshills/hiveql-compiler/internal/metastore"
	"github.com/dshills/hiveql-compiler/internal/semantic/expr"
	"github.com/dshills/hiveql-compiler/internal/semantic/semerr"
)

// ExtractPrunablePredicate walks pred and returns the largest sub-predicate
// that references only partition columns of table, folding nested AND
// conjuncts independently so a predicate mixing partition and
// non-partition conjuncts still prunes on the partition-only part (§4.7).
// A conjunct combined with OR, or any other function mixing partition and
// non-partition columns, is dropped wholesale — its truth value is
// "unknown" with respect to partition columns alone, so it must not be
// used to exclude a partition. Returns nil when nothing is prunable.
func ExtractPrunablePredicate(pred *expr.Desc, table *metastore.Table) *expr.Desc {
	if pred == nil {
		return nil
	}
	if pred.Kind == expr.KindFunc && strings.EqualFold(pred.FuncName, "and") && len(pred.Args) == 2 {
		left := ExtractPrunablePredicate(pred.Args[0], table)
		right := ExtractPrunablePredicate(pred.Args[1], table)
		switch {
		case left != nil && right != nil:
			return &expr.Desc{Kind: expr.KindFunc, FuncName: "and", Type: exprtype.Boolean, Args: []*expr.Desc{left, right}}
		case left != nil:
			return left
		case right != nil:
			return right
		default:
			return nil
		}
	}
	if isPartitionOnly(pred, table) {
		return pred
	}
	return nil
}

func isPartitionOnly(d *expr.Desc, table *metastore.Table) bool {
	if d == nil {
		return true
	}
	switch d.Kind {
	case expr.KindNull, expr.KindConstant:
		return true
	case expr.KindColumn:
		return table.IsPartitionColumn(d.Column)
	case expr.KindFunc:
		for _, a := range d.Args {
			if !isPartitionOnly(a, table) {
				return false
			}
		}
		return true
	case expr.KindField:
		return isPartitionOnly(d.Base, table)
	case expr.KindIndex:
		return isPartitionOnly(d.Base, table) && isPartitionOnly(d.Index, table)
	default:
		return false
	}
}

// HasPartitionPredicate reports whether pred contains a sub-predicate that
// references only table's partition columns. An unpartitioned table always
// reports true (there is nothing to require a predicate over).
func HasPartitionPredicate(table *metastore.Table, pred *expr.Desc) bool {
	if len(table.PartitionCols) == 0 {
		return true
	}
	return ExtractPrunablePredicate(pred, table) != nil
}

// RequirePartitionPredicate enforces HIVEPARTITIONPRUNER=strict (§4.7): a
// partitioned table reached with no partition predicate at all is
// rejected. Non-strict mode never errors here — it falls back to scanning
// every partition.
func RequirePartitionPredicate(table *metastore.Table, pred *expr.Desc, strict bool) error {
	if !strict || len(table.PartitionCols) == 0 {
		return nil
	}
	if !HasPartitionPredicate(table, pred) {
		return semerr.NoPartitionPredicateError(table.Name)
	}
	return nil
}

// Prune filters partitions down to those the prunable sub-predicate of pred
// does not provably exclude. A partition is dropped only when the
// predicate evaluates definitely false against its partition-column
// values; any error or indeterminate comparison keeps the partition,
// mirroring the confirmed/unknown distinction (§4.7): only the "confirmed
// false" set is ever excluded.
func Prune(table *metastore.Table, partitions []*metastore.Partition, pred *expr.Desc) []*metastore.Partition {
	if len(table.PartitionCols) == 0 {
		return partitions
	}
	prunable := ExtractPrunablePredicate(pred, table)
	if prunable == nil {
		return partitions
	}

	kept := make([]*metastore.Partition, 0, len(partitions))
	for _, p := range partitions {
		values := make(map[string]string, len(table.PartitionCols))
		for i, col := range table.PartitionCols {
			if i < len(p.Values) {
				values[col.Name] = p.Values[i]
			}
		}
		result, ok := evaluate(prunable, values, table)
		if ok && !result {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// PartitionsFullyResolved reports whether every partition in partitions is
// "confirmed" by pred — provably true against its column values — rather
// than merely "not excluded" (§4.7's confirmed/unknown distinction). The
// map/reduce task planner's fetch fast path (§4.10) requires this: a
// partition list Prune could not fully resolve must still go through a map
// task in case the predicate is actually false on some row.
func PartitionsFullyResolved(table *metastore.Table, partitions []*metastore.Partition, pred *expr.Desc) bool {
	if len(table.PartitionCols) == 0 {
		return true
	}
	prunable := ExtractPrunablePredicate(pred, table)
	if prunable == nil {
		return len(partitions) == 0
	}
	for _, p := range partitions {
		values := make(map[string]string, len(table.PartitionCols))
		for i, col := range table.PartitionCols {
			if i < len(p.Values) {
				values[col.Name] = p.Values[i]
			}
		}
		result, ok := evaluate(prunable, values, table)
		if !ok || !result {
			return false
		}
	}
	return true
}

// evaluate attempts to statically evaluate a prunable predicate (built only
// from partition columns and constants) against one partition's column
// values. ok is false when the predicate uses a shape this evaluator does
// not model (e.g. an unsupported function), in which case the partition
// must be kept.
func evaluate(d *expr.Desc, values map[string]string, table *metastore.Table) (result bool, ok bool) {
	if d.Kind != expr.KindFunc {
		return false, false
	}
	switch strings.ToLower(d.FuncName) {
	case "and":
		if len(d.Args) != 2 {
			return false, false
		}
		l, lok := evaluate(d.Args[0], values, table)
		r, rok := evaluate(d.Args[1], values, table)
		if !lok || !rok {
			return false, false
		}
		return l && r, true
	case "or":
		if len(d.Args) != 2 {
			return false, false
		}
		l, lok := evaluate(d.Args[0], values, table)
		r, rok := evaluate(d.Args[1], values, table)
		if !lok || !rok {
			return false, false
		}
		return l || r, true
	case "not":
		if len(d.Args) != 1 {
			return false, false
		}
		v, vok := evaluate(d.Args[0], values, table)
		if !vok {
			return false, false
		}
		return !v, true
	case "=", "<>", "<", "<=", ">", ">=":
		if len(d.Args) != 2 {
			return false, false
		}
		left, leftOK := resolveValue(d.Args[0], values)
		right, rightOK := resolveValue(d.Args[1], values)
		if !leftOK || !rightOK {
			return false, false
		}
		cmp := compareValues(left, right, columnType(d.Args[0], table))
		switch strings.ToLower(d.FuncName) {
		case "=":
			return cmp == 0, true
		case "<>":
			return cmp != 0, true
		case "<":
			return cmp < 0, true
		case "<=":
			return cmp <= 0, true
		case ">":
			return cmp > 0, true
		case ">=":
			return cmp >= 0, true
		}
	}
	return false, false
}

func resolveValue(d *expr.Desc, values map[string]string) (string, bool) {
	switch d.Kind {
	case expr.KindColumn:
		v, ok := values[d.Column]
		return v, ok
	case expr.KindConstant:
		return d.Literal, true
	default:
		return "", false
	}
}

func columnType(d *expr.Desc, table *metastore.Table) *exprtype.TypeInfo {
	if d.Kind == expr.KindColumn {
		if c, ok := table.Column(d.Column); ok {
			return c.Type
		}
	}
	return d.Type
}

func isNumeric(t *exprtype.TypeInfo) bool {
	if t == nil || !t.IsPrimitive() {
		return false
	}
	switch exprtype.CanonicalName(t) {
	case "smallint", "integer", "bigint", "float", "double":
		return true
	default:
		return strings.HasPrefix(exprtype.CanonicalName(t), "decimal")
	}
}

// compareValues compares two partition-value strings, numerically when t
// names a numeric type and lexicographically otherwise (TEXT, DATE-shaped
// strings compare correctly in ISO form).
func compareValues(a, b string, t *exprtype.TypeInfo) int {
	if isNumeric(t) {
		af, aerr := strconv.ParseFloat(a, 64)
		bf, berr := strconv.ParseFloat(b, 64)
		if aerr == nil && berr == nil {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(a, b)
}
