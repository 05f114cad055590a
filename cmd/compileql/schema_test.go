package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hiveql-compiler/internal/exprtype"
)

func TestLoadMetastoreParsesTablesAndPartitions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"tables": [
			{
				"name": "events",
				"location": "/warehouse/events",
				"columns": [
					{"name": "user_id", "type": "INT"},
					{"name": "amount", "type": "DOUBLE"}
				],
				"partition_cols": [
					{"name": "ds", "type": "STRING"}
				],
				"partitions": [
					{"values": ["2024-01-01"], "location": "/warehouse/events/ds=2024-01-01"}
				]
			}
		]
	}`), 0o644))

	store, err := loadMetastore(path)
	require.NoError(t, err)

	table, err := store.GetTable("events")
	require.NoError(t, err)
	assert.Equal(t, "/warehouse/events", table.Location)
	require.Len(t, table.Columns, 2)
	assert.Same(t, exprtype.Integer, table.Columns[0].Type)
	assert.Same(t, exprtype.Double, table.Columns[1].Type)
	require.Len(t, table.PartitionCols, 1)
	assert.Same(t, exprtype.Text, table.PartitionCols[0].Type)

	parts, err := store.ListPartitions(table)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, []string{"2024-01-01"}, parts[0].Values)
}

func TestLoadMetastoreRejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"tables": [{"name": "t", "columns": [{"name": "c", "type": "BOGUS"}]}]
	}`), 0o644))

	_, err := loadMetastore(path)
	assert.Error(t, err)
}
