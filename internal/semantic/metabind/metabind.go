// Package metabind implements the metadata binder of §4.2: the pass that
// walks every QB phase-1 produced and resolves its table aliases and
// destinations against the metastore, filling in QB.MetaData. It never
// parses or reasons about expressions — that is the row resolver's and the
// expression compiler's job, run after binding.
package metabind

import (
	"github.com/dshills/hiveql-compiler/internal/ast"
	"github.com/dshills/hiveql-compiler/internal/metastore"
	"github.com/dshills/hiveql-compiler/internal/semantic/qb"
	"github.com/dshills/hiveql-compiler/internal/semantic/semerr"
	"github.com/dshills/hiveql-compiler/internal/session"
)

// recognizedInputFormats and recognizedOutputFormats are the handler
// classes this compiler accepts. It never loads or executes a format
// handler (§4.2); it only checks a table declares one it recognizes.
var recognizedInputFormats = map[metastore.InputFormat]bool{
	metastore.TextInputFormat:     true,
	metastore.SequenceInputFormat: true,
}

var recognizedOutputFormats = map[metastore.OutputFormat]bool{
	metastore.TextOutputFormat:     true,
	metastore.SequenceOutputFormat: true,
}

// Binder resolves QB table aliases and destinations against a Metastore.
type Binder struct {
	store   metastore.Metastore
	session *session.Session
}

// New creates a Binder backed by store, allocating scratch paths for
// directory destinations through sess.
func New(store metastore.Metastore, sess *session.Session) *Binder {
	return &Binder{store: store, session: sess}
}

// Bind walks expr (a QB, or a UNION ALL chain of QBs) binding every QB it
// reaches, including subqueries.
func (b *Binder) Bind(expr *qb.Expr) error {
	if expr == nil {
		return nil
	}
	switch expr.Kind {
	case qb.UnionAll:
		if err := b.Bind(expr.Left); err != nil {
			return err
		}
		return b.Bind(expr.Right)
	default:
		return b.bindQB(expr.QB)
	}
}

func (b *Binder) bindQB(q *qb.QB) error {
	for _, alias := range q.TabAliases() {
		tableName, _ := q.TabNameForAlias(alias)
		table, err := b.store.GetTable(tableName)
		if err != nil {
			return semerr.InvalidTableError(tableName)
		}
		if !recognizedInputFormats[table.InputFormat] {
			return semerr.InvalidInputFormatTypeError(table.Name, string(table.InputFormat))
		}
		if !recognizedOutputFormats[table.OutputFormat] {
			return semerr.InvalidOutputFormatTypeError(table.Name, string(table.OutputFormat))
		}
		q.MetaData.TableForAlias[alias] = table

		if len(table.PartitionCols) > 0 {
			parts, err := b.store.ListPartitions(table)
			if err != nil {
				return semerr.Wrap(err, "listing partitions for "+table.Name)
			}
			q.MetaData.PartitionsForAlias[alias] = parts
		}
	}

	for _, alias := range q.SubqAliases() {
		sub, _ := q.SubqForAlias(alias)
		if err := b.Bind(sub); err != nil {
			return err
		}
	}

	for _, destName := range q.DestinationNames() {
		dest, _ := q.Destination(destName)
		path, table, err := b.bindDestination(dest)
		if err != nil {
			return err
		}
		q.MetaData.DestinationPath[destName] = path
		if table != nil {
			q.MetaData.DestinationTable[destName] = table
		}
	}

	return nil
}

// bindDestination resolves one destination's target: a table fetches its
// existing handle's location (and its column types, for the write-time
// conversion check in internal/plan), a directory (including the implicit
// destination of a plain SELECT) materializes a fresh scratch path (§4.2,
// §6's scratch-path layout).
func (b *Binder) bindDestination(dest *qb.DestinationInfo) (string, *metastore.Table, error) {
	target := dest.Destination
	if target == nil || target.Kind != ast.KindTab {
		return b.session.NextScratchPath(dest.Name), nil, nil
	}

	identifier := target.FirstChildOfKind(ast.KindIdentifier)
	if identifier == nil {
		return "", nil, semerr.InvalidTableError(dest.Name)
	}
	table, err := b.store.GetTable(identifier.Text)
	if err != nil {
		return "", nil, semerr.InvalidTableError(identifier.Text)
	}
	return table.Location, table, nil
}
