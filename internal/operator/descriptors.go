package operator

import (
	"github.com/dshills/hiveql-compiler/internal/metastore"
	"github.com/dshills/hiveql-compiler/internal/semantic/expr"
)

// TableScanDesc is the source operator reading one table alias (§4.9 step
// "create table-scan operators for every base alias").
type TableScanDesc struct {
	Alias string
	Table *metastore.Table

	// Partitions is the set of partitions this scan is pruned to, nil for
	// an unpartitioned table. Populated by internal/prune.
	Partitions []*metastore.Partition

	// BucketFiles is the 0-based bucket-file indices this scan is
	// narrowed to, when a TABLESAMPLE clause was satisfiable by direct
	// file selection (§4.8). Nil when no TABLESAMPLE applies or the
	// sample required a hash predicate instead.
	BucketFiles []int
}

// FilterDesc evaluates Predicate against each row, dropping rows for which
// it is false (§4.9 step 1, and join filter pushdown §4.6).
type FilterDesc struct {
	Predicate *expr.Desc
}

// SelectDesc projects Exprs into OutputColumnNames (§4.9 step 3). SelectStar
// marks a bare "*" or "alias.*" expansion, where Exprs is the already
// expanded column list rather than a literal "*" expression.
type SelectDesc struct {
	Exprs             []*expr.Desc
	OutputColumnNames []string
	SelectStar        bool
}

// GroupByMode is the aggregator state pentad of §4.5.
type GroupByMode int

const (
	ModeHash GroupByMode = iota
	ModePartial1
	ModePartial2
	ModeFinal
	ModeComplete
)

func (m GroupByMode) String() string {
	switch m {
	case ModeHash:
		return "HASH"
	case ModePartial1:
		return "PARTIAL1"
	case ModePartial2:
		return "PARTIAL2"
	case ModeFinal:
		return "FINAL"
	case ModeComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// IterateMethod and TerminateMethod return the pair of evaluator method
// names a mode uses, per §4.5's table. A DISTINCT aggregator always
// iterates non-merged regardless of mode, except in FINAL where it
// collapses to a non-distinct merge (handled by the caller, since that
// depends on the individual AggregatorDesc.Distinct flag, not the mode
// alone).
func (m GroupByMode) IterateMethod() string {
	switch m {
	case ModeHash, ModePartial1, ModeComplete:
		return "iterate"
	default:
		return "merge"
	}
}

func (m GroupByMode) TerminateMethod() string {
	switch m {
	case ModeHash, ModePartial1, ModePartial2:
		return "terminatePartial"
	default:
		return "terminate"
	}
}

// AggregatorDesc is one aggregate function application within a GroupBy
// operator, carrying the evaluator methods resolved for its owning mode
// (§4.5).
type AggregatorDesc struct {
	FuncName  string
	Args      []*expr.Desc
	Distinct  bool
	Iterate   string
	Terminate string

	// ResultType is the type this aggregator instance produces at this
	// stage of the pipeline: the partial-aggregation type in HASH/
	// PARTIAL1/PARTIAL2, the final return type in FINAL/COMPLETE.
	ResultType interface{ String() string }
}

// GroupByDesc is the physical group-by operator's configuration: its mode,
// its grouping keys and its aggregator list (§3, §4.5).
type GroupByDesc struct {
	Mode        GroupByMode
	Keys        []*expr.Desc
	Aggregators []*AggregatorDesc

	// HashMemory carries a map-side (HASH) group-by's estimated
	// per-entry size model; nil for non-HASH modes. Populated by
	// internal/groupby's capacity estimator.
	HashMemory *HashMemoryModel
}

// HashMemoryModel is the map-side HASH aggregator's capacity-estimation
// result (§4.5): the fixed per-entry overhead, the entry capacity computed
// from it, and the heap fraction that capacity is sized against. The
// running average of observed string lengths lives in
// groupby.HashEstimator, not here.
type HashMemoryModel struct {
	FixedOverheadPerEntry int64
	MaxEntries            int64
	FlushFraction         float64
}

// Order is a ReduceSink key column's sort direction.
type Order int

const (
	Ascending Order = iota
	Descending
)

// ReduceSinkDesc is the shuffle-boundary operator: it sorts/partitions
// Key/Value rows by KeyExprs and ships them to NumReducers reducers,
// partitioned by PartitionExprs (§3, §4.5, §4.6).
type ReduceSinkDesc struct {
	KeyExprs       []*expr.Desc
	ValueExprs     []*expr.Desc
	PartitionExprs []*expr.Desc
	Order          []Order

	// Tag identifies which join-tree side this ReduceSink's rows came
	// from, for a downstream multi-way Join (§3's "Tag"). -1 when this
	// ReduceSink is not part of a join (a plain group-by/sort shuffle).
	Tag int

	// NumReducers is the number of reduce tasks this shuffle fans out to.
	// -1 means "let the runtime decide" (unset); 1 is used for the
	// single-reducer shuffles LIMIT and the group-by fast path require.
	NumReducers int

	// RandomPartition marks a partition key deliberately left unbound to
	// spread rows evenly (the 2-MR group-by's first shuffle when there is
	// no DISTINCT, §4.5).
	RandomPartition bool
}

// JoinDesc is the multi-way join operator's configuration: one key list and
// one set of non-key value expressions per input position, plus the
// per-position join-condition types and outer-join flag (§3, §4.6).
type JoinDesc struct {
	// KeyExprs[i] is position i's (already type-unified) join-key
	// expressions, referencing that position's ReduceSink KEY.j columns.
	KeyExprs [][]*expr.Desc

	// ValueExprs[i] is position i's non-key row payload, referencing that
	// position's ReduceSink VALUE.j columns.
	ValueExprs [][]*expr.Desc

	// JoinCond holds one join type per merged binary condition, in
	// position order (§3 join tree node JoinCond).
	JoinCond []int

	NoOuterJoin bool

	// Tags is this join's input tags, position-aligned with KeyExprs.
	Tags []int
}

// FileSinkDesc writes the operator's input rows to Path, optionally
// compressed, as the final step of a destination's plan (§4.9 step 7).
type FileSinkDesc struct {
	Path       string
	Compress   bool
	ColumnSep  byte
	TableWrite bool
}

// LimitDesc caps the number of rows that pass through to N (§4.9 step 6).
type LimitDesc struct {
	N int
}

// ForwardDesc passes rows through unchanged; Factory.ForwardUnion uses it
// as the shared child that merges the branches of a UNION ALL subquery.
type ForwardDesc struct{}

// ScriptDesc pipes rows through an external TRANSFORM script (§4.9 step 4).
// OutputColumnNames defaults to {"key", "value"} when the TRANSFORM clause
// declares no explicit output column list.
type ScriptDesc struct {
	Command           string
	OutputColumnNames []string
}

// ExtractDesc re-exposes a ReduceSink's KEY.i/VALUE.j physical columns as
// positional output columns, the operator inserted right after a
// ReduceSink whose output isn't consumed by a GroupBy or Join (CLUSTER
// BY/DISTRIBUTE BY/SORT BY, §4.9 step 5).
type ExtractDesc struct {
	ColumnNames []string
}
