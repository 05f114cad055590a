package operator

import (
	"fmt"

	"github.com/dshills/hiveql-compiler/internal/semantic/resolver"
)

// Factory creates operators, assigning each a stable name and wiring it to
// its parents (§4.11). One Factory is owned by a single compilation (the
// same scope as internal/session.Session); its counter is not safe for
// concurrent use.
type Factory struct {
	counter int
	all     []*Operator
}

// NewFactory creates an empty operator Factory.
func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) nextName(kind Kind) string {
	f.counter++
	return fmt.Sprintf("%s_%d", kind, f.counter)
}

func (f *Factory) build(kind Kind, conf interface{}, schema *resolver.RowResolver, parents []*Operator) *Operator {
	op := &Operator{
		Name:   f.nextName(kind),
		Kind:   kind,
		Conf:   conf,
		Schema: schema,
	}
	for _, p := range parents {
		AddChild(p, op)
	}
	f.all = append(f.all, op)
	return op
}

// All returns every operator this factory has built, in creation order.
// internal/mrtask uses this to find every ReduceSink when cutting the DAG.
func (f *Factory) All() []*Operator {
	out := make([]*Operator, len(f.all))
	copy(out, f.all)
	return out
}

// TableScan creates a root table-scan operator for one FROM-list alias.
func (f *Factory) TableScan(conf *TableScanDesc, schema *resolver.RowResolver) *Operator {
	return f.build(KindTableScan, conf, schema, nil)
}

// Filter creates a filter operator with one parent.
func (f *Factory) Filter(conf *FilterDesc, schema *resolver.RowResolver, parent *Operator) *Operator {
	return f.build(KindFilter, conf, schema, []*Operator{parent})
}

// Select creates a projection operator with one parent.
func (f *Factory) Select(conf *SelectDesc, schema *resolver.RowResolver, parent *Operator) *Operator {
	return f.build(KindSelect, conf, schema, []*Operator{parent})
}

// GroupBy creates a group-by operator with one parent.
func (f *Factory) GroupBy(conf *GroupByDesc, schema *resolver.RowResolver, parent *Operator) *Operator {
	return f.build(KindGroupBy, conf, schema, []*Operator{parent})
}

// ReduceSink creates a shuffle-boundary operator with one parent. Per §3's
// invariant, any walk that forms map tasks must not traverse a ReduceSink's
// children — internal/mrtask enforces that at cut time, not here.
func (f *Factory) ReduceSink(conf *ReduceSinkDesc, schema *resolver.RowResolver, parent *Operator) *Operator {
	return f.build(KindReduceSink, conf, schema, []*Operator{parent})
}

// Join creates a multi-way join operator over one ReduceSink per input
// position, in position order.
func (f *Factory) Join(conf *JoinDesc, schema *resolver.RowResolver, parents ...*Operator) *Operator {
	return f.build(KindJoin, conf, schema, parents)
}

// FileSink creates the terminal write operator for one destination.
func (f *Factory) FileSink(conf *FileSinkDesc, schema *resolver.RowResolver, parent *Operator) *Operator {
	return f.build(KindFileSink, conf, schema, []*Operator{parent})
}

// Limit creates a row-count-capping operator with one parent.
func (f *Factory) Limit(conf *LimitDesc, schema *resolver.RowResolver, parent *Operator) *Operator {
	return f.build(KindLimit, conf, schema, []*Operator{parent})
}

// Forward creates a pass-through operator with one parent.
func (f *Factory) Forward(schema *resolver.RowResolver, parent *Operator) *Operator {
	return f.build(KindForward, &ForwardDesc{}, schema, []*Operator{parent})
}

// ForwardUnion creates a pass-through operator with one parent per UNION
// ALL branch (§4.6's non-join analogue: Hive's genUnionPlan sets a single
// ForwardOperator as the shared child of both branches' final operators,
// rather than emitting a distinct Union operator kind).
func (f *Factory) ForwardUnion(schema *resolver.RowResolver, parents ...*Operator) *Operator {
	return f.build(KindForward, &ForwardDesc{}, schema, parents)
}

// Script creates a TRANSFORM operator with one parent.
func (f *Factory) Script(conf *ScriptDesc, schema *resolver.RowResolver, parent *Operator) *Operator {
	return f.build(KindScript, conf, schema, []*Operator{parent})
}

// Extract creates the operator re-exposing a ReduceSink's KEY/VALUE columns
// positionally, with one parent (always a ReduceSink).
func (f *Factory) Extract(conf *ExtractDesc, schema *resolver.RowResolver, parent *Operator) *Operator {
	return f.build(KindExtract, conf, schema, []*Operator{parent})
}
