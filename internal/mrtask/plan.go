package mrtask

import (
	"fmt"
	"sort"

	"github.com/dshills/hiveql-compiler/internal/funcreg"
	"github.com/dshills/hiveql-compiler/internal/operator"
	"github.com/dshills/hiveql-compiler/internal/prune"
	"github.com/dshills/hiveql-compiler/internal/semantic/expr"
	"github.com/dshills/hiveql-compiler/internal/semantic/qb"
)

// Planner cuts an operator DAG into a Task dependency graph.
type Planner struct {
	registry funcreg.Registry
}

// New creates a Planner. registry is only consulted to recompile a
// destination's WHERE clause when checking the fast-path partition
// condition; it is the same registry the operator plan was built with.
func New(registry funcreg.Registry) *Planner {
	return &Planner{registry: registry}
}

// Plan builds the task graph for q, given the operator DAG factory built it
// in and the terminal FileSink per destination (as returned by
// internal/plan.Planner.Plan).
func (p *Planner) Plan(factory *operator.Factory, q *qb.QB, sinks map[string]*operator.Operator) ([]*Task, error) {
	if len(sinks) == 1 {
		for name, sink := range sinks {
			task, ok, err := p.tryFastPath(q, name, sink)
			if err != nil {
				return nil, err
			}
			if ok {
				return []*Task{task}, nil
			}
		}
	}
	return p.planGeneral(factory)
}

// tryFastPath recognizes §4.10's fast path: a bare "SELECT * FROM t" with no
// WHERE-driven shuffle, over an unpartitioned table or a partition list the
// pruner could fully resolve (no unknown partitions left).
func (p *Planner) tryFastPath(q *qb.QB, destName string, sink *operator.Operator) (*Task, bool, error) {
	if len(sink.Parents) != 1 {
		return nil, false, nil
	}
	selOp := sink.Parents[0]
	if selOp.Kind != operator.KindSelect {
		return nil, false, nil
	}
	selDesc, ok := selOp.Conf.(*operator.SelectDesc)
	if !ok || !selDesc.SelectStar {
		return nil, false, nil
	}
	if len(selOp.Parents) != 1 {
		return nil, false, nil
	}
	scanOp := selOp.Parents[0]
	if scanOp.Kind != operator.KindTableScan {
		return nil, false, nil
	}
	scanDesc, ok := scanOp.Conf.(*operator.TableScanDesc)
	if !ok {
		return nil, false, nil
	}
	table := scanDesc.Table

	if len(table.PartitionCols) > 0 {
		dest, ok := q.Destination(destName)
		if !ok {
			return nil, false, nil
		}
		var wherePred *expr.Desc
		if dest.WhereExpr != nil {
			c := expr.New(p.registry, scanOp.Schema)
			pred, err := c.Compile(dest.WhereExpr)
			if err != nil {
				return nil, false, err
			}
			wherePred = pred
		}
		if !prune.PartitionsFullyResolved(table, scanDesc.Partitions, wherePred) {
			return nil, false, nil
		}
	}

	fsDesc, ok := sink.Conf.(*operator.FileSinkDesc)
	if !ok {
		return nil, false, nil
	}
	return &Task{
		Name: "Fetch-1",
		Kind: KindFetch,
		Fetch: &FetchWork{
			Table:      table,
			Partitions: scanDesc.Partitions,
			Path:       fsDesc.Path,
		},
	}, true, nil
}

// planGeneral cuts the whole DAG at every ReduceSink and builds one task
// per resulting connected component, wiring dependency edges at each cut
// and appending a Move task for every FileSink reached (R1-R4).
func (p *Planner) planGeneral(factory *operator.Factory) ([]*Task, error) {
	all := factory.All()

	cutFrom := make(map[*operator.Operator][]*operator.Operator)
	for _, op := range all {
		if op.Kind == operator.KindReduceSink {
			cutFrom[op] = op.CutChildren()
		}
	}

	var roots []*operator.Operator
	for _, op := range all {
		if len(op.Parents) == 0 {
			roots = append(roots, op)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Name < roots[j].Name })

	// Group roots into connected components over the post-cut graph: a
	// UNION ALL subquery's branches each start their own TableScan but
	// converge at a shared Forward operator before any ReduceSink, so
	// they belong to the same map task rather than one task apiece.
	// CutChildren already severed both directions of every ReduceSink
	// edge, so undirected adjacency via Children+Parents respects those
	// cuts without any extra bookkeeping here.
	componentOf := make(map[*operator.Operator]int)
	var components [][]*operator.Operator
	for _, root := range roots {
		if _, ok := componentOf[root]; ok {
			continue
		}
		idx := len(components)
		var members []*operator.Operator
		visited := make(map[*operator.Operator]bool)
		queue := []*operator.Operator{root}
		visited[root] = true
		for len(queue) > 0 {
			op := queue[0]
			queue = queue[1:]
			members = append(members, op)
			if len(op.Parents) == 0 {
				componentOf[op] = idx
			}
			for _, n := range append(append([]*operator.Operator{}, op.Children...), op.Parents...) {
				if !visited[n] {
					visited[n] = true
					queue = append(queue, n)
				}
			}
		}
		components = append(components, members)
	}

	segOf := make(map[*operator.Operator]*Task, len(roots))
	tasks := make([]*Task, 0, len(components))
	for i, members := range components {
		var compRoots []*operator.Operator
		for _, op := range members {
			if len(op.Parents) == 0 {
				compRoots = append(compRoots, op)
			}
		}
		sort.Slice(compRoots, func(a, b int) bool { return compRoots[a].Name < compRoots[b].Name })
		task := &Task{Name: fmt.Sprintf("Stage-%d", i+1), Kind: KindMapRed, Roots: compRoots}
		collect(compRoots, task)
		tasks = append(tasks, task)
		for _, r := range compRoots {
			segOf[r] = task
		}
	}

	var moves []*Task
	moveCounter := 0
	for _, task := range tasks {
		for _, rs := range task.ReduceSinks {
			for _, child := range cutFrom[rs] {
				childTask, ok := segOf[child]
				if !ok {
					return nil, fmt.Errorf("mrtask: no task segment rooted at %s", child)
				}
				task.Children = append(task.Children, childTask)
				childTask.Parents = append(childTask.Parents, task)
			}
		}
		for _, sink := range task.Sinks {
			fsDesc, ok := sink.Conf.(*operator.FileSinkDesc)
			if !ok {
				return nil, fmt.Errorf("mrtask: FileSink %s has unexpected descriptor type", sink.Name)
			}
			moveCounter++
			mv := &Task{
				Name: fmt.Sprintf("Move-%d", moveCounter),
				Kind: KindMove,
				Move: &MoveWork{Path: fsDesc.Path, TableWrite: fsDesc.TableWrite},
			}
			task.Children = append(task.Children, mv)
			mv.Parents = append(mv.Parents, task)
			moves = append(moves, mv)
		}
	}
	tasks = append(tasks, moves...)
	return tasks, nil
}

// collect walks each root's descendants, recording every ReduceSink and
// FileSink this task's segment reaches. A ReduceSink's children are
// already empty (CutChildren ran before any task was built), so the walk
// naturally stops at each cut boundary. All roots share one visited map so
// a descendant reachable from more than one root (e.g. the Forward
// operator merging a UNION ALL's branches) is only recorded once.
func collect(roots []*operator.Operator, task *Task) {
	visited := make(map[*operator.Operator]bool)
	var walk func(op *operator.Operator)
	walk = func(op *operator.Operator) {
		if visited[op] {
			return
		}
		visited[op] = true
		switch op.Kind {
		case operator.KindReduceSink:
			task.ReduceSinks = append(task.ReduceSinks, op)
			return
		case operator.KindFileSink:
			task.Sinks = append(task.Sinks, op)
			return
		}
		for _, c := range op.Children {
			walk(c)
		}
	}
	for _, root := range roots {
		walk(root)
	}
}
