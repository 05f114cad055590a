// Package mrtask implements the map/reduce task planner of §4.10: it walks
// the operator DAG internal/plan built and cuts it at ReduceSink boundaries
// into a dependency graph of Task descriptors, or emits a single Fetch task
// when the fast-path condition applies.
package mrtask

import (
	"github.com/dshills/hiveql-compiler/internal/metastore"
	"github.com/dshills/hiveql-compiler/internal/operator"
)

// Kind enumerates the task kinds §6's "Output" lists: map/reduce job plans,
// move tasks and fetch tasks.
type Kind int

const (
	KindMapRed Kind = iota
	KindFetch
	KindMove
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "Fetch"
	case KindMove:
		return "Move"
	default:
		return "MapRed"
	}
}

// FetchWork is a read-only plan that streams a table's partition files
// directly, bypassing map/reduce (§4.10's fast path).
type FetchWork struct {
	Table      *metastore.Table
	Partitions []*metastore.Partition
	Path       string
}

// MoveWork materializes one destination's scratch output: a loadTableWork
// (writing into a table/partition) or loadFileWork (a final result
// directory), per §6's "Destination layout".
type MoveWork struct {
	Path       string
	TableWrite bool
}

// Task is one node of the output task graph (§6 "a list of Task
// descriptors ... with dependency edges"). A KindMapRed task's work is the
// operator subtree rooted at Roots, already fully described by the
// operator descriptors internal/operator carries; Task only adds the
// scheduling structure operators themselves don't have.
type Task struct {
	Name string
	Kind Kind

	// Roots are this task's entry operators: usually a single TableScan
	// starting a fresh map phase (R1), or the operator a prior
	// ReduceSink's CutChildren detached (R2/R3) for a task fed by an
	// upstream shuffle's intermediate output. More than one entry happens
	// when a UNION ALL subquery's branches each read their own table but
	// converge at a shared Forward operator before any shuffle — one map
	// phase with several table aliases, not a shuffle boundary, so they
	// share a single task. Nil/empty for Fetch/Move tasks.
	Roots []*operator.Operator

	// ReduceSinks are every ReduceSink this task's walk reaches (R2/R3):
	// each one ends this task's responsibility along that branch, and its
	// cut-off children seed a new dependent task.
	ReduceSinks []*operator.Operator

	// Sinks are every FileSink this task's walk reaches directly (R4).
	// More than one only happens when a shared map phase feeds two
	// multi-insert destinations that neither needed a shuffle of their
	// own.
	Sinks []*operator.Operator

	Fetch *FetchWork
	Move  *MoveWork

	Children []*Task
	Parents  []*Task
}

// String renders a debug form: "Name(Kind)".
func (t *Task) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Name + "(" + t.Kind.String() + ")"
}
