package metastore

import (
	"sort"
	"strings"
	"sync"
)

// MemoryMetastore is an in-memory Metastore, useful for tests and for the
// compileql CLI demo. Grounded on the teacher's MemoryCatalog: a
// mutex-guarded map keyed by table name, plus a parallel map of
// partitions.
type MemoryMetastore struct {
	mu         sync.RWMutex
	tables     map[string]*Table
	partitions map[string][]*Partition
}

// NewMemoryMetastore creates an empty in-memory metastore.
func NewMemoryMetastore() *MemoryMetastore {
	return &MemoryMetastore{
		tables:     make(map[string]*Table),
		partitions: make(map[string][]*Partition),
	}
}

// PutTable registers (or replaces) a table definition.
func (m *MemoryMetastore) PutTable(t *Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[strings.ToLower(t.Name)] = t
}

// PutPartitions registers the partition list for a table, sorted
// deterministically by their directory name (Hive's part-NNNNN /
// value-path ordering) so pruning and sampling results are reproducible.
func (m *MemoryMetastore) PutPartitions(tableName string, parts []*Partition) {
	sorted := make([]*Partition, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Location < sorted[j].Location })

	m.mu.Lock()
	defer m.mu.Unlock()
	m.partitions[strings.ToLower(tableName)] = sorted
}

// GetTable implements Metastore.
func (m *MemoryMetastore) GetTable(name string) (*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[strings.ToLower(name)]
	if !ok {
		return nil, &InvalidTableError{Name: name}
	}
	return t, nil
}

// ListPartitions implements Metastore.
func (m *MemoryMetastore) ListPartitions(table *Table) ([]*Partition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.partitions[strings.ToLower(table.Name)], nil
}
