package pgmetastore

import (
	"context"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRows is a minimal in-memory stand-in for *sql.Rows, letting the
// queries in pgmetastore.go be tested without a live Postgres connection.
type fakeRows struct {
	data [][]interface{}
	pos  int
}

func (r *fakeRows) Next() bool {
	if r == nil {
		return false
	}
	r.pos++
	return r.pos <= len(r.data)
}
func (r *fakeRows) Close() error { return nil }
func (r *fakeRows) Err() error   { return nil }
func (r *fakeRows) Scan(dest ...interface{}) error {
	row := r.data[r.pos-1]
	for i, d := range dest {
		switch v := d.(type) {
		case *string:
			*v = row[i].(string)
		case *int:
			*v = row[i].(int)
		case *bool:
			*v = row[i].(bool)
		default:
			assignStringArray(d, row[i])
		}
	}
	return nil
}

func assignStringArray(dest interface{}, val interface{}) {
	switch p := dest.(type) {
	case *[]string:
		*p = val.([]string)
	case *pq.StringArray:
		*p = pq.StringArray(val.([]string))
	}
}

type fakeQueryer struct {
	tables      map[string]*fakeRows
	columns     map[string]*fakeRows
	partitions  map[string]*fakeRows
}

func (q fakeQueryer) QueryContext(_ context.Context, query string, args ...interface{}) (rows, error) {
	name := args[0].(string)
	switch {
	case contains(query, "hive_tables"):
		return q.tables[name], nil
	case contains(query, "hive_table_columns"):
		return q.columns[name], nil
	case contains(query, "hive_table_partitions"):
		return q.partitions[name], nil
	}
	return &fakeRows{}, nil
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestGetTable(t *testing.T) {
	q := fakeQueryer{
		tables: map[string]*fakeRows{
			"orders": {data: [][]interface{}{
				{"TextInputFormat", "TextOutputFormat", "/warehouse/orders", []string{"order_id"}, 16},
			}},
		},
		columns: map[string]*fakeRows{
			"orders": {data: [][]interface{}{
				{"order_id", "integer", false},
				{"dt", "text", true},
			}},
		},
	}
	m := &Metastore{q: q, ctx: context.Background()}

	table, err := m.GetTable("orders")
	require.NoError(t, err)
	assert.Equal(t, "/warehouse/orders", table.Location)
	assert.Equal(t, 16, table.NumBuckets)
	require.Len(t, table.Columns, 1)
	require.Len(t, table.PartitionCols, 1)
	assert.Equal(t, "dt", table.PartitionCols[0].Name)
}

func TestGetTableNotFound(t *testing.T) {
	q := fakeQueryer{tables: map[string]*fakeRows{}}
	m := &Metastore{q: q, ctx: context.Background()}
	_, err := m.GetTable("missing")
	require.Error(t, err)
}
