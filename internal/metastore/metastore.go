// Package metastore defines the pull-only collaborator the compiler uses
// to resolve table aliases and enumerate partitions (§6). The metastore
// itself — DDL handling, on-disk bookkeeping — is out of scope for this
// repository; only the contract and fixtures needed to exercise the
// compiler live here. Grounded on the teacher's internal/catalog.Catalog
// and internal/catalog.Table, extended with the partition/bucketing
// metadata Hive-style tables carry that the teacher's relational catalog
// has no analogue for.
package metastore

import (
	"github.com/dshills/hiveql-compiler/internal/exprtype"
)

// InputFormat and OutputFormat name the handler classes a table is read
// and written with. The compiler only checks that these are among the
// formats it recognizes (§4.2); it never loads or executes them.
type InputFormat string
type OutputFormat string

const (
	TextInputFormat     InputFormat  = "TextInputFormat"
	SequenceInputFormat InputFormat  = "SequenceFileInputFormat"
	TextOutputFormat    OutputFormat = "TextOutputFormat"
	SequenceOutputFormat OutputFormat = "SequenceFileOutputFormat"
)

// Column describes one column of a table's schema (data columns; partition
// columns are listed separately in Table.PartitionCols since Hive keeps
// them out of the data files).
type Column struct {
	Name string
	Type *exprtype.TypeInfo
}

// Table is the metadata the binder fetches for a table alias.
type Table struct {
	Name string

	// Columns are the table's non-partition columns, in declared order.
	Columns []Column

	// PartitionCols are the partitioning columns, in declared order. A
	// table with no partition columns is unpartitioned.
	PartitionCols []Column

	// BucketCols are the clustering (bucketing) columns, in declared
	// order. Empty if the table is not bucketed.
	BucketCols []string

	// NumBuckets is the number of buckets the table is clustered into.
	// Zero (or BucketCols empty) means "not bucketed".
	NumBuckets int

	InputFormat  InputFormat
	OutputFormat OutputFormat

	// Location is the table's root directory.
	Location string
}

// ColumnNames returns Columns plus PartitionCols, in that order — the full
// logical row schema a scan over this table produces.
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns)+len(t.PartitionCols))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	for _, c := range t.PartitionCols {
		names = append(names, c.Name)
	}
	return names
}

// Column looks up a column (data or partition) by case-insensitive name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if equalFold(c.Name, name) {
			return c, true
		}
	}
	for _, c := range t.PartitionCols {
		if equalFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// IsPartitionColumn reports whether name is one of the table's partition
// columns.
func (t *Table) IsPartitionColumn(name string) bool {
	for _, c := range t.PartitionCols {
		if equalFold(c.Name, name) {
			return true
		}
	}
	return false
}

// IsBucketed reports whether the table is clustered into buckets.
func (t *Table) IsBucketed() bool {
	return len(t.BucketCols) > 0 && t.NumBuckets > 0
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Partition is one subdirectory of a partitioned table, keyed by the
// partition columns' values.
type Partition struct {
	// Values holds one value per PartitionCols entry, in the same order,
	// formatted the way Hive partition directory names are (e.g. "2009-01-01").
	Values   []string
	Location string
}

// InvalidTableError is returned by GetTable when the table does not exist.
type InvalidTableError struct {
	Name string
}

func (e *InvalidTableError) Error() string {
	return "invalid table: " + e.Name
}

// Metastore is the pull-only collaborator contract of §6.
type Metastore interface {
	GetTable(name string) (*Table, error)
	ListPartitions(table *Table) ([]*Partition, error)
}
