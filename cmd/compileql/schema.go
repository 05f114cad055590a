package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dshills/hiveql-compiler/internal/exprtype"
	"github.com/dshills/hiveql-compiler/internal/metastore"
)

// schemaFile is the on-disk shape a --schema JSON file is parsed into: a
// flat list of table definitions, loaded wholesale into a
// metastore.MemoryMetastore before compiling.
type schemaFile struct {
	Tables []schemaTable `json:"tables"`
}

type schemaTable struct {
	Name          string          `json:"name"`
	Location      string          `json:"location"`
	InputFormat   string          `json:"input_format"`
	OutputFormat  string          `json:"output_format"`
	Columns       []schemaColumn  `json:"columns"`
	PartitionCols []schemaColumn  `json:"partition_cols"`
	BucketCols    []string        `json:"bucket_cols"`
	NumBuckets    int             `json:"num_buckets"`
	Partitions    []schemaPartDef `json:"partitions"`
}

type schemaColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type schemaPartDef struct {
	Values   []string `json:"values"`
	Location string   `json:"location"`
}

// loadMetastore reads path and registers every table (and its partitions,
// if any) into a fresh metastore.MemoryMetastore.
func loadMetastore(path string) (*metastore.MemoryMetastore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}

	var sf schemaFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing schema file: %w", err)
	}

	store := metastore.NewMemoryMetastore()
	for _, st := range sf.Tables {
		table, err := st.toTable()
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", st.Name, err)
		}
		store.PutTable(table)

		if len(st.Partitions) > 0 {
			parts := make([]*metastore.Partition, len(st.Partitions))
			for i, p := range st.Partitions {
				parts[i] = &metastore.Partition{Values: p.Values, Location: p.Location}
			}
			store.PutPartitions(st.Name, parts)
		}
	}
	return store, nil
}

func (st schemaTable) toTable() (*metastore.Table, error) {
	cols, err := toColumns(st.Columns)
	if err != nil {
		return nil, err
	}
	partCols, err := toColumns(st.PartitionCols)
	if err != nil {
		return nil, err
	}

	return &metastore.Table{
		Name:          st.Name,
		Columns:       cols,
		PartitionCols: partCols,
		BucketCols:    st.BucketCols,
		NumBuckets:    st.NumBuckets,
		InputFormat:   inputFormat(st.InputFormat),
		OutputFormat:  outputFormat(st.OutputFormat),
		Location:      st.Location,
	}, nil
}

func toColumns(cols []schemaColumn) ([]metastore.Column, error) {
	out := make([]metastore.Column, len(cols))
	for i, c := range cols {
		t, err := parseColumnType(c.Type)
		if err != nil {
			return nil, err
		}
		out[i] = metastore.Column{Name: c.Name, Type: t}
	}
	return out, nil
}

// parseColumnType maps the Hive-style type names a schema file spells out
// onto the exprtype.TypeInfo instances the binder and expression compiler
// already know how to work with.
func parseColumnType(name string) (*exprtype.TypeInfo, error) {
	switch strings.ToUpper(name) {
	case "BOOLEAN":
		return exprtype.Boolean, nil
	case "SMALLINT":
		return exprtype.SmallInt, nil
	case "INT", "INTEGER":
		return exprtype.Integer, nil
	case "BIGINT":
		return exprtype.BigInt, nil
	case "FLOAT":
		return exprtype.Float, nil
	case "DOUBLE":
		return exprtype.Double, nil
	case "STRING", "TEXT", "VARCHAR":
		return exprtype.Text, nil
	case "DECIMAL":
		return exprtype.Decimal, nil
	case "TIMESTAMP":
		return exprtype.Timestamp, nil
	default:
		return nil, fmt.Errorf("unrecognized column type %q", name)
	}
}

func inputFormat(name string) metastore.InputFormat {
	if name == "" {
		return metastore.TextInputFormat
	}
	return metastore.InputFormat(name)
}

func outputFormat(name string) metastore.OutputFormat {
	if name == "" {
		return metastore.TextOutputFormat
	}
	return metastore.OutputFormat(name)
}
