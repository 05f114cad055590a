// Package pgmetastore implements the metastore.Metastore contract against
// a Postgres-compatible catalog, demonstrating that the contract in §6 can
// be backed by a real database rather than only the in-memory fixture.
// Partition and bucketing metadata for a Hive-style table has no
// Postgres-native representation, so this implementation expects three
// sidecar tables a deployment is responsible for maintaining:
//
//	hive_tables(name, input_format, output_format, location,
//	            bucket_cols text[], num_buckets int)
//	hive_table_columns(table_name, name, type_name, is_partition_col, ordinal)
//	hive_table_partitions(table_name, part_values text[], location)
//
// This package only reads them; DDL to create/maintain them is out of
// scope, same as the rest of the metastore in this repository.
package pgmetastore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/dshills/hiveql-compiler/internal/exprtype"
	"github.com/dshills/hiveql-compiler/internal/metastore"
	"github.com/dshills/hiveql-compiler/internal/sql/types"
)

// rows is the minimal subset of *sql.Rows this package needs; it lets
// tests supply a fake without standing up a real database/sql driver.
type rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// queryer abstracts *sql.DB's QueryContext for testability.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (rows, error)
}

// dbQueryer adapts *sql.DB to queryer (its QueryContext returns a concrete
// *sql.Rows, which satisfies the rows interface structurally).
type dbQueryer struct{ db *sql.DB }

func (q dbQueryer) QueryContext(ctx context.Context, query string, args ...interface{}) (rows, error) {
	return q.db.QueryContext(ctx, query, args...)
}

// Metastore is a Postgres-backed metastore.Metastore.
type Metastore struct {
	q   queryer
	ctx context.Context
}

// New wraps an open *sql.DB (registered with lib/pq's "postgres" driver) as
// a metastore.Metastore.
func New(ctx context.Context, db *sql.DB) *Metastore {
	return &Metastore{q: dbQueryer{db}, ctx: ctx}
}

func typeInfoForName(name string) *exprtype.TypeInfo {
	switch name {
	case "smallint":
		return exprtype.OfPrimitive(types.SmallInt)
	case "integer", "int":
		return exprtype.OfPrimitive(types.Integer)
	case "bigint":
		return exprtype.OfPrimitive(types.BigInt)
	case "boolean":
		return exprtype.Boolean
	case "double":
		return exprtype.Double
	case "float", "real":
		return exprtype.Float
	case "timestamp":
		return exprtype.Timestamp
	default:
		return exprtype.Text
	}
}

// GetTable implements metastore.Metastore.
func (m *Metastore) GetTable(name string) (*metastore.Table, error) {
	r, err := m.q.QueryContext(m.ctx,
		`SELECT input_format, output_format, location, bucket_cols, num_buckets
		   FROM hive_tables WHERE name = $1`, name)
	if err != nil {
		return nil, fmt.Errorf("pgmetastore: querying hive_tables: %w", err)
	}
	defer r.Close()

	if !r.Next() {
		return nil, &metastore.InvalidTableError{Name: name}
	}

	var inputFormat, outputFormat, location string
	var bucketCols pq.StringArray
	var numBuckets int
	if err := r.Scan(&inputFormat, &outputFormat, &location, &bucketCols, &numBuckets); err != nil {
		return nil, fmt.Errorf("pgmetastore: scanning hive_tables row: %w", err)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}

	table := &metastore.Table{
		Name:         name,
		InputFormat:  metastore.InputFormat(inputFormat),
		OutputFormat: metastore.OutputFormat(outputFormat),
		Location:     location,
		BucketCols:   []string(bucketCols),
		NumBuckets:   numBuckets,
	}

	cr, err := m.q.QueryContext(m.ctx,
		`SELECT name, type_name, is_partition_col
		   FROM hive_table_columns WHERE table_name = $1 ORDER BY ordinal`, name)
	if err != nil {
		return nil, fmt.Errorf("pgmetastore: querying hive_table_columns: %w", err)
	}
	defer cr.Close()

	for cr.Next() {
		var colName, typeName string
		var isPartition bool
		if err := cr.Scan(&colName, &typeName, &isPartition); err != nil {
			return nil, fmt.Errorf("pgmetastore: scanning hive_table_columns row: %w", err)
		}
		col := metastore.Column{Name: colName, Type: typeInfoForName(typeName)}
		if isPartition {
			table.PartitionCols = append(table.PartitionCols, col)
		} else {
			table.Columns = append(table.Columns, col)
		}
	}
	if err := cr.Err(); err != nil {
		return nil, err
	}

	return table, nil
}

// ListPartitions implements metastore.Metastore.
func (m *Metastore) ListPartitions(table *metastore.Table) ([]*metastore.Partition, error) {
	r, err := m.q.QueryContext(m.ctx,
		`SELECT part_values, location FROM hive_table_partitions
		   WHERE table_name = $1 ORDER BY location`, table.Name)
	if err != nil {
		return nil, fmt.Errorf("pgmetastore: querying hive_table_partitions: %w", err)
	}
	defer r.Close()

	var out []*metastore.Partition
	for r.Next() {
		var values pq.StringArray
		var location string
		if err := r.Scan(&values, &location); err != nil {
			return nil, fmt.Errorf("pgmetastore: scanning hive_table_partitions row: %w", err)
		}
		out = append(out, &metastore.Partition{Values: []string(values), Location: location})
	}
	return out, r.Err()
}
