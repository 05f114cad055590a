// Package compiler glues every analysis stage together behind one
// Compile call: phase-1 (AST -> QB-expression), metadata binding, operator
// planning and map/reduce task planning (§6's "Output" contract). It owns
// no state itself beyond what it is handed — the caller's session.Session
// carries the scratch-path counter and config, matching §5's single-
// threaded-per-session model.
package compiler

import (
	"fmt"
	"time"

	"github.com/dshills/hiveql-compiler/internal/ast"
	"github.com/dshills/hiveql-compiler/internal/funcreg"
	"github.com/dshills/hiveql-compiler/internal/log"
	"github.com/dshills/hiveql-compiler/internal/metastore"
	"github.com/dshills/hiveql-compiler/internal/mrtask"
	"github.com/dshills/hiveql-compiler/internal/operator"
	"github.com/dshills/hiveql-compiler/internal/plan"
	"github.com/dshills/hiveql-compiler/internal/semantic/metabind"
	"github.com/dshills/hiveql-compiler/internal/semantic/phase1"
	"github.com/dshills/hiveql-compiler/internal/semantic/qb"
	"github.com/dshills/hiveql-compiler/internal/session"
)

// Result is everything a caller (the CLI, EXPLAIN) needs after a
// successful Compile: the operator factory that owns every operator built,
// the per-destination terminal FileSink operator, and the final task
// graph.
type Result struct {
	Factory *operator.Factory
	Sinks   map[string]*operator.Operator
	Tasks   []*mrtask.Task
}

// Compiler runs the four analysis stages in order: phase1, metabind, plan,
// mrtask.
type Compiler struct {
	registry funcreg.Registry
	store    metastore.Metastore
	session  *session.Session
}

// New creates a Compiler. registry and store are the function registry and
// metastore collaborators of §6; sess supplies scratch-path allocation and
// the compiler config internal/plan and internal/groupby consult.
func New(registry funcreg.Registry, store metastore.Metastore, sess *session.Session) *Compiler {
	return &Compiler{registry: registry, store: store, session: sess}
}

// Compile runs root (expected to be rooted at ast.KindQuery) through every
// analysis stage and returns the resulting task graph.
func (c *Compiler) Compile(root *ast.Node) (*Result, error) {
	logger := c.session.Log()
	if root == nil || root.Kind != ast.KindQuery {
		return nil, fmt.Errorf("compiler: expected a %s root, got %v", ast.KindQuery, root)
	}

	stageStart := time.Now()
	analyzer := phase1.New(c.registry)
	qbExpr, err := analyzer.Analyze(root)
	if err != nil {
		return nil, err
	}
	log.Stage(logger, stageStart, "phase1")

	stageStart = time.Now()
	binder := metabind.New(c.store, c.session)
	if err := binder.Bind(qbExpr); err != nil {
		return nil, err
	}
	log.Stage(logger, stageStart, "metabind")

	stageStart = time.Now()
	factory := operator.NewFactory()
	planner := plan.New(c.registry, &c.session.Config().Compiler)
	sinks, err := planner.PlanExpr(factory, qbExpr)
	if err != nil {
		return nil, err
	}
	logger.Debug("operator plan complete", "destinations", len(sinks))
	log.Stage(logger, stageStart, "plan")

	stageStart = time.Now()
	taskPlanner := mrtask.New(c.registry)
	tasks, err := c.planTasks(taskPlanner, factory, qbExpr, sinks)
	if err != nil {
		return nil, err
	}
	logger.Debug("task plan complete", "tasks", len(tasks))
	log.Stage(logger, stageStart, "mrtask")

	return &Result{Factory: factory, Sinks: sinks, Tasks: tasks}, nil
}

// planTasks recurses through a UNION ALL chain, running mrtask's per-QB DAG
// cut once per query block and filtering the shared sinks map down to each
// block's own destinations — a union's two branches were planned (and will
// be task-cut) entirely independently (see internal/plan's PlanExpr).
func (c *Compiler) planTasks(tp *mrtask.Planner, factory *operator.Factory, e *qb.Expr, sinks map[string]*operator.Operator) ([]*mrtask.Task, error) {
	if e == nil {
		return nil, nil
	}
	switch e.Kind {
	case qb.UnionAll:
		left, err := c.planTasks(tp, factory, e.Left, sinks)
		if err != nil {
			return nil, err
		}
		right, err := c.planTasks(tp, factory, e.Right, sinks)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	default:
		own := make(map[string]*operator.Operator)
		for _, name := range e.QB.DestinationNames() {
			if sink, ok := sinks[name]; ok {
				own[name] = sink
			}
		}
		return tp.Plan(factory, e.QB, own)
	}
}
