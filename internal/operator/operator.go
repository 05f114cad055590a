// Package operator implements the physical dataflow operator tree of §3/§4.11:
// the polymorphic Operator node (table-scan, filter, select, group-by,
// reduce-sink, join, file-sink, limit, forward, script, extract), wired into
// a DAG by the operator factory. Execution (process/initialize/close at
// runtime) is the execution runtime's job, out of scope per §1 — this
// package only carries the typed descriptor each operator is planned with
// and the parent/child edges the map/reduce task planner (internal/mrtask)
// later cuts.
package operator

import (
	"fmt"

	"github.com/dshills/hiveql-compiler/internal/semantic/resolver"
)

// Kind enumerates the physical operator kinds of §3.
type Kind int

const (
	KindTableScan Kind = iota
	KindFilter
	KindSelect
	KindGroupBy
	KindReduceSink
	KindJoin
	KindFileSink
	KindLimit
	KindForward
	KindScript
	KindExtract
)

func (k Kind) String() string {
	switch k {
	case KindTableScan:
		return "TableScan"
	case KindFilter:
		return "Filter"
	case KindSelect:
		return "Select"
	case KindGroupBy:
		return "GroupBy"
	case KindReduceSink:
		return "ReduceSink"
	case KindJoin:
		return "Join"
	case KindFileSink:
		return "FileSink"
	case KindLimit:
		return "Limit"
	case KindForward:
		return "Forward"
	case KindScript:
		return "Script"
	case KindExtract:
		return "Extract"
	default:
		return "Unknown"
	}
}

// Operator is one node of the physical operator DAG. Conf holds one of the
// descriptor types in descriptors.go, selected by Kind; callers type-assert
// it the way a deep class hierarchy's double-dispatch would otherwise
// require (§9 "deep class hierarchies -> sum types with exhaustive pattern
// matching").
type Operator struct {
	Name string
	Kind Kind
	Conf interface{}

	Parents  []*Operator
	Children []*Operator

	// Schema is this operator's output row resolver: the name-resolution
	// context downstream operators' expression compilation resolves
	// against (§4.3).
	Schema *resolver.RowResolver
}

// GetName implements the operator capability set's getName (§3).
func (o *Operator) GetName() string { return o.Name }

// GenColLists returns the operator's output row schema in row order,
// standing in for the operator capability set's genColLists (§3): the
// dense internal column names and types downstream operators project.
func (o *Operator) GenColLists() []resolver.ColumnEntry {
	if o.Schema == nil {
		return nil
	}
	return o.Schema.Columns()
}

// AddChild wires child as a child of parent and parent as a parent of
// child, in the order operators are connected during planning.
func AddChild(parent, child *Operator) {
	parent.Children = append(parent.Children, child)
	child.Parents = append(child.Parents, parent)
}

// IsReduceSink reports whether this operator terminates a map stage (§3's
// invariant: "An operator with kind ReduceSink always terminates a map
// stage").
func (o *Operator) IsReduceSink() bool { return o.Kind == KindReduceSink }

// CutChildren detaches every child of a ReduceSink operator, returning
// them. Used by internal/mrtask when cutting the DAG at shuffle
// boundaries (§3's Lifecycles: "the reduce-sink's child list is cleared;
// the child subtrees are attached to the next task's plan").
func (o *Operator) CutChildren() []*Operator {
	children := o.Children
	o.Children = nil
	for _, c := range children {
		out := c.Parents[:0]
		for _, p := range c.Parents {
			if p != o {
				out = append(out, p)
			}
		}
		c.Parents = out
	}
	return children
}

// String renders a debug form: "Name(Kind)".
func (o *Operator) String() string {
	if o == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s(%s)", o.Name, o.Kind)
}
