// Package groupby implements the group-by planner of §4.5: selection among
// the four physical strategies (fast path, 1-MR, 2-MR, 4-MR with map-side
// hash) based on (hasGroupKeys, hasDistinct, mapAggrEnabled), plus the
// map-side HASH aggregator's capacity/flush model.
package groupby

import (
	"fmt"

	"github.com/dshills/hiveql-compiler/internal/config"
	"github.com/dshills/hiveql-compiler/internal/exprtype"
	"github.com/dshills/hiveql-compiler/internal/funcreg"
	"github.com/dshills/hiveql-compiler/internal/operator"
	"github.com/dshills/hiveql-compiler/internal/semantic/expr"
)

// defaultMaxHeapBytes and fixedOverheadPerEntry ground the HASH aggregator's
// capacity estimate in a fixed assumed mapper heap size, since this
// compiler never observes the runtime's actual JVM heap (§4.5).
const (
	defaultMaxHeapBytes   = 256 << 20
	fixedOverheadPerEntry = 64
)

// Strategy is one of the four physical group-by plans of §4.5.
type Strategy int

const (
	// Fast skips the middle shuffle stages entirely: there are neither
	// group keys nor a distinct aggregate, so a single HASH -> ReduceSink
	// (1 reducer) -> GroupBy(FINAL) chain suffices.
	Fast Strategy = iota
	// OneMR is genGroupByPlan1MR: a GROUP BY combined with a DISTINCT
	// aggregate must sort group keys and distinct argument together in a
	// single shuffle, since partial map-side aggregation of a distinct
	// cannot be split safely across two reduce stages.
	OneMR
	// TwoMR is genGroupByPlan2MR: two reduce stages, partial then final.
	// Used either for a DISTINCT with no group keys (partitioning the
	// first shuffle on the distinct argument so every value for a group
	// lands on one reducer) or for a plain GROUP BY with map-side
	// aggregation disabled (partitioning the first shuffle randomly to
	// spread skew, since there is no distinct requiring colocation).
	TwoMR
	// FourMR is genGroupByPlan4MR: a map-side HASH pre-aggregation stage
	// ahead of the 2-MR shuffle pair, chosen when map-side aggregation is
	// enabled and no DISTINCT forces the 1-MR/2-MR paths instead.
	FourMR
)

func (s Strategy) String() string {
	switch s {
	case Fast:
		return "fast-path"
	case OneMR:
		return "1-MR"
	case TwoMR:
		return "2-MR"
	case FourMR:
		return "4-MR"
	default:
		return "unknown"
	}
}

// SelectStrategy implements §4.5's decision table. DISTINCT aggregates
// always win over map-side aggregation: a map-side HASH pre-aggregate
// cannot deduplicate a DISTINCT argument across partial shards, so any
// query with a DISTINCT aggregate takes the 1-MR or 2-MR path regardless
// of HIVEMAPSIDEAGGREGATE.
func SelectStrategy(hasGroupKeys, hasDistinct, mapAggrEnabled bool) Strategy {
	switch {
	case !hasGroupKeys && !hasDistinct:
		return Fast
	case hasDistinct && hasGroupKeys:
		return OneMR
	case hasDistinct:
		return TwoMR
	case mapAggrEnabled:
		return FourMR
	default:
		return TwoMR
	}
}

// AggregationSpec is one aggregate function application the planner turns
// into a mode-appropriate AggregatorDesc at each stage.
type AggregationSpec struct {
	FuncName string
	Args     []*expr.Desc
	Distinct bool
}

// Planner builds the physical group-by operator chain selected by
// SelectStrategy, wiring ReduceSink/GroupBy operators through an
// operator.Factory and resolving aggregate overloads against a function
// registry (§4.5, §4.11).
type Planner struct {
	registry      funcreg.Registry
	factory       *operator.Factory
	flushFraction float64
}

// New creates a Planner. cfg supplies HIVEMAPAGGRHASHMEMORY; pass nil to use
// config.DefaultConfig's value.
func New(registry funcreg.Registry, factory *operator.Factory, cfg *config.CompilerConfig) *Planner {
	flushFraction := config.DefaultConfig().Compiler.MapAggrHashMemory
	if cfg != nil {
		flushFraction = cfg.MapAggrHashMemory
	}
	return &Planner{registry: registry, factory: factory, flushFraction: flushFraction}
}

func (p *Planner) hashMemoryModel() *operator.HashMemoryModel {
	return &operator.HashMemoryModel{
		FixedOverheadPerEntry: fixedOverheadPerEntry,
		MaxEntries:            NewHashEstimator(defaultMaxHeapBytes, p.flushFraction, fixedOverheadPerEntry).Capacity(),
		FlushFraction:         p.flushFraction,
	}
}

// KeySpec names one group-by key: its compiled expression and the output
// alias/column it projects under (for the final GroupBy's output schema).
type KeySpec struct {
	Expr   *expr.Desc
	Column string
}

// Build constructs the group-by chain over parent, returning its final
// output operator (always a GroupBy). distinctArgs is non-empty only when
// one DISTINCT aggregation is present, per §1's single-column-DISTINCT
// scope.
func (p *Planner) Build(parent *operator.Operator, keys []KeySpec, aggs []AggregationSpec, distinctArgs []*expr.Desc, mapAggrEnabled bool) (*operator.Operator, Strategy, error) {
	hasGroupKeys := len(keys) > 0
	hasDistinct := len(distinctArgs) > 0
	strategy := SelectStrategy(hasGroupKeys, hasDistinct, mapAggrEnabled)

	switch strategy {
	case Fast:
		op, err := p.buildFast(parent, aggs)
		return op, strategy, err
	case OneMR:
		op, err := p.buildOneMR(parent, keys, aggs, distinctArgs)
		return op, strategy, err
	case TwoMR:
		op, err := p.buildTwoMR(parent, keys, aggs, distinctArgs, hasDistinct)
		return op, strategy, err
	default:
		op, err := p.buildFourMR(parent, keys, aggs)
		return op, strategy, err
	}
}

func (p *Planner) evaluator(spec AggregationSpec) (*funcreg.UDAFEvaluator, error) {
	argTypes := make([]*exprtype.TypeInfo, len(spec.Args))
	for i, a := range spec.Args {
		argTypes[i] = a.Type
	}
	return p.registry.GetUDAFEvaluator(spec.FuncName, argTypes)
}

// aggregatorDesc builds one stage's AggregatorDesc: the iterate/terminate
// method pair for mode, with a DISTINCT aggregator always using iterate
// except at FINAL, where it collapses to a non-distinct merge (§4.5).
func (p *Planner) aggregatorDesc(spec AggregationSpec, ev *funcreg.UDAFEvaluator, mode operator.GroupByMode, args []*expr.Desc) *operator.AggregatorDesc {
	iterate := mode.IterateMethod()
	terminate := mode.TerminateMethod()
	if spec.Distinct {
		if mode == operator.ModeFinal {
			iterate = "merge"
		} else {
			iterate = "iterate"
		}
	}
	var resultType *exprtype.TypeInfo
	if mode == operator.ModeFinal || mode == operator.ModeComplete {
		resultType = ev.ReturnType
	} else {
		resultType = ev.PartialType
	}
	return &operator.AggregatorDesc{
		FuncName:   spec.FuncName,
		Args:       args,
		Distinct:   spec.Distinct,
		Iterate:    iterate,
		Terminate:  terminate,
		ResultType: resultType,
	}
}

func keyColumnSpecs(keys []KeySpec) []operator.ColumnSpec {
	out := make([]operator.ColumnSpec, len(keys))
	for i, k := range keys {
		out[i] = operator.ColumnSpec{Column: k.Column, Type: k.Expr.Type}
	}
	return out
}

func keyRefs(keys []KeySpec, prefix string) []*expr.Desc {
	out := make([]*expr.Desc, len(keys))
	for i, k := range keys {
		out[i] = &expr.Desc{Kind: expr.KindColumn, Type: k.Expr.Type, InternalName: fmt.Sprintf("%s.%d", prefix, i)}
	}
	return out
}

// buildFast implements the fast path: HASH -> ReduceSink(1 reducer) ->
// GroupBy(FINAL), with no group keys and no distinct.
func (p *Planner) buildFast(parent *operator.Operator, aggs []AggregationSpec) (*operator.Operator, error) {
	evs := make([]*funcreg.UDAFEvaluator, len(aggs))
	hashAggs := make([]*operator.AggregatorDesc, len(aggs))
	hashCols := make([]operator.ColumnSpec, len(aggs))
	for i, a := range aggs {
		ev, err := p.evaluator(a)
		if err != nil {
			return nil, err
		}
		evs[i] = ev
		hashAggs[i] = p.aggregatorDesc(a, ev, operator.ModeHash, a.Args)
		hashCols[i] = operator.ColumnSpec{Column: a.FuncName, Type: ev.PartialType}
	}
	hashSchema := operator.DenseSchema(hashCols)
	mapGB := p.factory.GroupBy(&operator.GroupByDesc{Mode: operator.ModeHash, Aggregators: hashAggs, HashMemory: p.hashMemoryModel()}, hashSchema, parent)

	valueRefs := make([]*expr.Desc, len(aggs))
	valueCols := make([]operator.ColumnSpec, len(aggs))
	for i, ev := range evs {
		valueRefs[i] = &expr.Desc{Kind: expr.KindColumn, Type: ev.PartialType, InternalName: fmt.Sprintf("%d", i)}
		valueCols[i] = operator.ColumnSpec{Column: aggs[i].FuncName, Type: ev.PartialType}
	}
	rsSchema := operator.ReduceSinkSchema(nil, valueCols)
	rs := p.factory.ReduceSink(&operator.ReduceSinkDesc{ValueExprs: valueRefs, Tag: -1, NumReducers: 1}, rsSchema, mapGB)

	finalAggs := make([]*operator.AggregatorDesc, len(aggs))
	finalCols := make([]operator.ColumnSpec, len(aggs))
	for i, a := range aggs {
		ref := &expr.Desc{Kind: expr.KindColumn, Type: evs[i].PartialType, InternalName: fmt.Sprintf("VALUE.%d", i)}
		finalAggs[i] = p.aggregatorDesc(a, evs[i], operator.ModeFinal, []*expr.Desc{ref})
		finalCols[i] = operator.ColumnSpec{Column: a.FuncName, Type: evs[i].ReturnType}
	}
	finalSchema := operator.DenseSchema(finalCols)
	return p.factory.GroupBy(&operator.GroupByDesc{Mode: operator.ModeFinal, Aggregators: finalAggs}, finalSchema, rs), nil
}

// buildOneMR implements genGroupByPlan1MR: ReduceSink(key = groupKeys ⊕
// distinctArgs, value = aggArgs) -> GroupBy(COMPLETE), partitioned on the
// group keys.
func (p *Planner) buildOneMR(parent *operator.Operator, keys []KeySpec, aggs []AggregationSpec, distinctArgs []*expr.Desc) (*operator.Operator, error) {
	keyExprs := make([]*expr.Desc, 0, len(keys)+len(distinctArgs))
	keyColSpecs := make([]operator.ColumnSpec, 0, len(keys)+len(distinctArgs))
	for _, k := range keys {
		keyExprs = append(keyExprs, k.Expr)
		keyColSpecs = append(keyColSpecs, operator.ColumnSpec{Column: k.Column, Type: k.Expr.Type})
	}
	for i, d := range distinctArgs {
		keyExprs = append(keyExprs, d)
		keyColSpecs = append(keyColSpecs, operator.ColumnSpec{Column: fmt.Sprintf("_distinct_%d", i), Type: d.Type})
	}
	partitionExprs := make([]*expr.Desc, len(keys))
	for i, k := range keys {
		partitionExprs[i] = k.Expr
	}

	evs := make([]*funcreg.UDAFEvaluator, len(aggs))
	valueExprs := make([]*expr.Desc, 0)
	valueCols := make([]operator.ColumnSpec, 0)
	argOffsets := make([][]int, len(aggs))
	for i, a := range aggs {
		ev, err := p.evaluator(a)
		if err != nil {
			return nil, err
		}
		evs[i] = ev
		offsets := make([]int, len(a.Args))
		for j, arg := range a.Args {
			offsets[j] = len(valueExprs)
			valueExprs = append(valueExprs, arg)
			valueCols = append(valueCols, operator.ColumnSpec{Column: fmt.Sprintf("_arg_%d_%d", i, j), Type: arg.Type})
		}
		argOffsets[i] = offsets
	}

	rsSchema := operator.ReduceSinkSchema(keyColSpecs, valueCols)
	rs := p.factory.ReduceSink(&operator.ReduceSinkDesc{
		KeyExprs:       keyExprs,
		ValueExprs:     valueExprs,
		PartitionExprs: partitionExprs,
		Tag:            -1,
		NumReducers:    -1,
	}, rsSchema, parent)

	aggDescs := make([]*operator.AggregatorDesc, len(aggs))
	finalCols := make([]operator.ColumnSpec, 0, len(keys)+len(aggs))
	for _, k := range keys {
		finalCols = append(finalCols, operator.ColumnSpec{Column: k.Column, Type: k.Expr.Type})
	}
	for i, a := range aggs {
		args := make([]*expr.Desc, len(argOffsets[i]))
		for j, off := range argOffsets[i] {
			args[j] = &expr.Desc{Kind: expr.KindColumn, Type: valueCols[off].Type, InternalName: fmt.Sprintf("VALUE.%d", off)}
		}
		aggDescs[i] = p.aggregatorDesc(a, evs[i], operator.ModeComplete, args)
		finalCols = append(finalCols, operator.ColumnSpec{Column: a.FuncName, Type: evs[i].ReturnType})
	}
	finalSchema := operator.DenseSchema(finalCols)
	return p.factory.GroupBy(&operator.GroupByDesc{Mode: operator.ModeComplete, Keys: keyRefs(keys, "KEY"), Aggregators: aggDescs}, finalSchema, rs), nil
}

// buildTwoMR implements genGroupByPlan2MR: ReduceSink1(partition = distinct
// ? key : random) -> GroupBy(PARTIAL1) -> ReduceSink2(partition =
// groupKeys) -> GroupBy(FINAL).
func (p *Planner) buildTwoMR(parent *operator.Operator, keys []KeySpec, aggs []AggregationSpec, distinctArgs []*expr.Desc, hasDistinct bool) (*operator.Operator, error) {
	keyExprs := make([]*expr.Desc, 0, len(keys)+len(distinctArgs))
	keyColSpecs := make([]operator.ColumnSpec, 0, len(keys)+len(distinctArgs))
	for _, k := range keys {
		keyExprs = append(keyExprs, k.Expr)
		keyColSpecs = append(keyColSpecs, operator.ColumnSpec{Column: k.Column, Type: k.Expr.Type})
	}
	for i, d := range distinctArgs {
		keyExprs = append(keyExprs, d)
		keyColSpecs = append(keyColSpecs, operator.ColumnSpec{Column: fmt.Sprintf("_distinct_%d", i), Type: d.Type})
	}

	var partition1 []*expr.Desc
	if hasDistinct {
		partition1 = keyExprs
	}

	evs := make([]*funcreg.UDAFEvaluator, len(aggs))
	valueExprs1 := make([]*expr.Desc, 0)
	valueCols1 := make([]operator.ColumnSpec, 0)
	argOffsets := make([][]int, len(aggs))
	for i, a := range aggs {
		ev, err := p.evaluator(a)
		if err != nil {
			return nil, err
		}
		evs[i] = ev
		offsets := make([]int, len(a.Args))
		for j, arg := range a.Args {
			offsets[j] = len(valueExprs1)
			valueExprs1 = append(valueExprs1, arg)
			valueCols1 = append(valueCols1, operator.ColumnSpec{Column: fmt.Sprintf("_arg_%d_%d", i, j), Type: arg.Type})
		}
		argOffsets[i] = offsets
	}

	rs1Schema := operator.ReduceSinkSchema(keyColSpecs, valueCols1)
	rs1 := p.factory.ReduceSink(&operator.ReduceSinkDesc{
		KeyExprs:        keyExprs,
		ValueExprs:      valueExprs1,
		PartitionExprs:  partition1,
		RandomPartition: !hasDistinct,
		Tag:             -1,
		NumReducers:     -1,
	}, rs1Schema, parent)

	partial1Aggs := make([]*operator.AggregatorDesc, len(aggs))
	partial1Cols := make([]operator.ColumnSpec, 0, len(keys)+len(aggs))
	for _, k := range keys {
		partial1Cols = append(partial1Cols, operator.ColumnSpec{Column: k.Column, Type: k.Expr.Type})
	}
	for i, a := range aggs {
		args := make([]*expr.Desc, len(argOffsets[i]))
		for j, off := range argOffsets[i] {
			args[j] = &expr.Desc{Kind: expr.KindColumn, Type: valueCols1[off].Type, InternalName: fmt.Sprintf("VALUE.%d", off)}
		}
		partial1Aggs[i] = p.aggregatorDesc(a, evs[i], operator.ModePartial1, args)
		partial1Cols = append(partial1Cols, operator.ColumnSpec{Column: a.FuncName, Type: evs[i].PartialType})
	}
	partial1Schema := operator.DenseSchema(partial1Cols)
	gbPartial1 := p.factory.GroupBy(&operator.GroupByDesc{Mode: operator.ModePartial1, Keys: keyRefs(keys, "KEY"), Aggregators: partial1Aggs}, partial1Schema, rs1)

	rs2KeyExprs := make([]*expr.Desc, len(keys))
	rs2KeyCols := make([]operator.ColumnSpec, len(keys))
	for i, k := range keys {
		rs2KeyExprs[i] = &expr.Desc{Kind: expr.KindColumn, Type: k.Expr.Type, InternalName: fmt.Sprintf("%d", i)}
		rs2KeyCols[i] = operator.ColumnSpec{Column: k.Column, Type: k.Expr.Type}
	}
	rs2ValueExprs := make([]*expr.Desc, len(aggs))
	rs2ValueCols := make([]operator.ColumnSpec, len(aggs))
	for i, a := range aggs {
		rs2ValueExprs[i] = &expr.Desc{Kind: expr.KindColumn, Type: evs[i].PartialType, InternalName: fmt.Sprintf("%d", len(keys)+i)}
		rs2ValueCols[i] = operator.ColumnSpec{Column: a.FuncName, Type: evs[i].PartialType}
	}
	rs2Schema := operator.ReduceSinkSchema(rs2KeyCols, rs2ValueCols)
	rs2 := p.factory.ReduceSink(&operator.ReduceSinkDesc{
		KeyExprs:       rs2KeyExprs,
		ValueExprs:     rs2ValueExprs,
		PartitionExprs: rs2KeyExprs,
		Tag:            -1,
		NumReducers:    -1,
	}, rs2Schema, gbPartial1)

	finalAggs := make([]*operator.AggregatorDesc, len(aggs))
	finalCols := make([]operator.ColumnSpec, 0, len(keys)+len(aggs))
	for _, k := range keys {
		finalCols = append(finalCols, operator.ColumnSpec{Column: k.Column, Type: k.Expr.Type})
	}
	for i, a := range aggs {
		ref := &expr.Desc{Kind: expr.KindColumn, Type: evs[i].PartialType, InternalName: fmt.Sprintf("VALUE.%d", i)}
		finalAggs[i] = p.aggregatorDesc(a, evs[i], operator.ModeFinal, []*expr.Desc{ref})
		finalCols = append(finalCols, operator.ColumnSpec{Column: a.FuncName, Type: evs[i].ReturnType})
	}
	finalSchema := operator.DenseSchema(finalCols)
	return p.factory.GroupBy(&operator.GroupByDesc{Mode: operator.ModeFinal, Keys: keyRefs(keys, "KEY"), Aggregators: finalAggs}, finalSchema, rs2), nil
}

// buildFourMR implements genGroupByPlan4MR: MapGroupBy(HASH) -> ReduceSink
// -> GroupBy(PARTIAL2) -> ReduceSink -> GroupBy(FINAL).
func (p *Planner) buildFourMR(parent *operator.Operator, keys []KeySpec, aggs []AggregationSpec) (*operator.Operator, error) {
	evs := make([]*funcreg.UDAFEvaluator, len(aggs))
	hashAggs := make([]*operator.AggregatorDesc, len(aggs))
	hashCols := make([]operator.ColumnSpec, 0, len(keys)+len(aggs))
	for _, k := range keys {
		hashCols = append(hashCols, operator.ColumnSpec{Column: k.Column, Type: k.Expr.Type})
	}
	for i, a := range aggs {
		ev, err := p.evaluator(a)
		if err != nil {
			return nil, err
		}
		evs[i] = ev
		hashAggs[i] = p.aggregatorDesc(a, ev, operator.ModeHash, a.Args)
		hashCols = append(hashCols, operator.ColumnSpec{Column: a.FuncName, Type: ev.PartialType})
	}
	hashSchema := operator.DenseSchema(hashCols)
	mapGB := p.factory.GroupBy(&operator.GroupByDesc{
		Mode:        operator.ModeHash,
		Keys:        keyRefs(keys, "KEY"),
		Aggregators: hashAggs,
		HashMemory:  p.hashMemoryModel(),
	}, hashSchema, parent)

	rs1KeyExprs := make([]*expr.Desc, len(keys))
	rs1KeyCols := make([]operator.ColumnSpec, len(keys))
	for i, k := range keys {
		rs1KeyExprs[i] = &expr.Desc{Kind: expr.KindColumn, Type: k.Expr.Type, InternalName: fmt.Sprintf("%d", i)}
		rs1KeyCols[i] = operator.ColumnSpec{Column: k.Column, Type: k.Expr.Type}
	}
	rs1ValueExprs := make([]*expr.Desc, len(aggs))
	rs1ValueCols := make([]operator.ColumnSpec, len(aggs))
	for i, a := range aggs {
		rs1ValueExprs[i] = &expr.Desc{Kind: expr.KindColumn, Type: evs[i].PartialType, InternalName: fmt.Sprintf("%d", len(keys)+i)}
		rs1ValueCols[i] = operator.ColumnSpec{Column: a.FuncName, Type: evs[i].PartialType}
	}
	rs1Schema := operator.ReduceSinkSchema(rs1KeyCols, rs1ValueCols)
	rs1 := p.factory.ReduceSink(&operator.ReduceSinkDesc{
		KeyExprs:       rs1KeyExprs,
		ValueExprs:     rs1ValueExprs,
		PartitionExprs: rs1KeyExprs,
		Tag:            -1,
		NumReducers:    -1,
	}, rs1Schema, mapGB)

	partial2Aggs := make([]*operator.AggregatorDesc, len(aggs))
	partial2Cols := make([]operator.ColumnSpec, 0, len(keys)+len(aggs))
	for _, k := range keys {
		partial2Cols = append(partial2Cols, operator.ColumnSpec{Column: k.Column, Type: k.Expr.Type})
	}
	for i, a := range aggs {
		ref := &expr.Desc{Kind: expr.KindColumn, Type: evs[i].PartialType, InternalName: fmt.Sprintf("VALUE.%d", i)}
		partial2Aggs[i] = p.aggregatorDesc(a, evs[i], operator.ModePartial2, []*expr.Desc{ref})
		partial2Cols = append(partial2Cols, operator.ColumnSpec{Column: a.FuncName, Type: evs[i].PartialType})
	}
	partial2Schema := operator.DenseSchema(partial2Cols)
	gbPartial2 := p.factory.GroupBy(&operator.GroupByDesc{Mode: operator.ModePartial2, Keys: keyRefs(keys, "KEY"), Aggregators: partial2Aggs}, partial2Schema, rs1)

	rs2KeyExprs := make([]*expr.Desc, len(keys))
	rs2KeyCols := make([]operator.ColumnSpec, len(keys))
	for i, k := range keys {
		rs2KeyExprs[i] = &expr.Desc{Kind: expr.KindColumn, Type: k.Expr.Type, InternalName: fmt.Sprintf("%d", i)}
		rs2KeyCols[i] = operator.ColumnSpec{Column: k.Column, Type: k.Expr.Type}
	}
	rs2ValueExprs := make([]*expr.Desc, len(aggs))
	rs2ValueCols := make([]operator.ColumnSpec, len(aggs))
	for i, a := range aggs {
		rs2ValueExprs[i] = &expr.Desc{Kind: expr.KindColumn, Type: evs[i].PartialType, InternalName: fmt.Sprintf("%d", len(keys)+i)}
		rs2ValueCols[i] = operator.ColumnSpec{Column: a.FuncName, Type: evs[i].PartialType}
	}
	rs2Schema := operator.ReduceSinkSchema(rs2KeyCols, rs2ValueCols)
	rs2 := p.factory.ReduceSink(&operator.ReduceSinkDesc{
		KeyExprs:       rs2KeyExprs,
		ValueExprs:     rs2ValueExprs,
		PartitionExprs: rs2KeyExprs,
		Tag:            -1,
		NumReducers:    -1,
	}, rs2Schema, gbPartial2)

	finalAggs := make([]*operator.AggregatorDesc, len(aggs))
	finalCols := make([]operator.ColumnSpec, 0, len(keys)+len(aggs))
	for _, k := range keys {
		finalCols = append(finalCols, operator.ColumnSpec{Column: k.Column, Type: k.Expr.Type})
	}
	for i, a := range aggs {
		ref := &expr.Desc{Kind: expr.KindColumn, Type: evs[i].PartialType, InternalName: fmt.Sprintf("VALUE.%d", i)}
		finalAggs[i] = p.aggregatorDesc(a, evs[i], operator.ModeFinal, []*expr.Desc{ref})
		finalCols = append(finalCols, operator.ColumnSpec{Column: a.FuncName, Type: evs[i].ReturnType})
	}
	finalSchema := operator.DenseSchema(finalCols)
	return p.factory.GroupBy(&operator.GroupByDesc{Mode: operator.ModeFinal, Keys: keyRefs(keys, "KEY"), Aggregators: finalAggs}, finalSchema, rs2), nil
}
