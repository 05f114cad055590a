// Package resolver implements the row resolver of §3 and §4.3: the
// two-level alias/column mapping an operator's output row carries, plus
// the reverse lookup from a dense internal column name back to its
// (alias, column) origin that the expression compiler and EEXPLAIN output
// both need.
package resolver

import (
	"strings"

	"github.com/dshills/hiveql-compiler/internal/exprtype"
	"github.com/dshills/hiveql-compiler/internal/semantic/semerr"
)

// ColumnInfo is what the resolver returns for one resolved column
// reference: its dense internal name within the owning operator's output
// row, and its type.
type ColumnInfo struct {
	InternalName string
	Type         *exprtype.TypeInfo

	// IsHiddenVirtual marks columns synthesized for internal use (e.g. a
	// partition column projected for pruning only) that SELECT * should
	// skip.
	IsHiddenVirtual bool
}

type entry struct {
	alias  string
	column string
	info   *ColumnInfo
}

// RowResolver is a single operator's output row schema: which columns
// exist, under which table aliases, and what each maps to. Lookups are
// case-insensitive; Columns() replays entries in the order they were put,
// so projections built from it are deterministic.
type RowResolver struct {
	byAliasAndColumn map[string]map[string]*ColumnInfo
	aliasOrder       []string
	columnOrder      map[string][]string
	byInternalName   map[string]entry
	order            []entry
}

// New creates an empty RowResolver.
func New() *RowResolver {
	return &RowResolver{
		byAliasAndColumn: make(map[string]map[string]*ColumnInfo),
		columnOrder:      make(map[string][]string),
		byInternalName:   make(map[string]entry),
	}
}

// Put registers column under alias (use "" for an aliasless projected
// expression, e.g. a computed SELECT item), mapping it to info. Put
// overwrites a prior mapping for the same (alias, column) pair but does
// not reorder it.
func (r *RowResolver) Put(alias, column string, info *ColumnInfo) {
	aliasKey := normalize(alias)
	colKey := normalize(column)

	if _, ok := r.byAliasAndColumn[aliasKey]; !ok {
		r.byAliasAndColumn[aliasKey] = make(map[string]*ColumnInfo)
		r.aliasOrder = append(r.aliasOrder, alias)
	}
	if _, exists := r.byAliasAndColumn[aliasKey][colKey]; !exists {
		r.columnOrder[aliasKey] = append(r.columnOrder[aliasKey], column)
	}
	r.byAliasAndColumn[aliasKey][colKey] = info

	e := entry{alias: alias, column: column, info: info}
	if _, exists := r.byInternalName[info.InternalName]; !exists {
		r.order = append(r.order, e)
	}
	r.byInternalName[info.InternalName] = e
}

// Get resolves a column reference. If alias is "", every registered
// alias is searched; more than one match is an AmbiguousColumn error, and
// zero matches is an InvalidColumn error (§4.4). If alias is non-empty,
// only that alias's columns are searched.
func (r *RowResolver) Get(alias, column string) (*ColumnInfo, error) {
	colKey := normalize(column)

	if alias != "" {
		cols, ok := r.byAliasAndColumn[normalize(alias)]
		if !ok {
			return nil, semerr.InvalidTableAliasError(alias)
		}
		info, ok := cols[colKey]
		if !ok {
			return nil, semerr.InvalidColumnError(alias + "." + column)
		}
		return info, nil
	}

	var found *ColumnInfo
	matches := 0
	for _, a := range r.aliasOrder {
		cols := r.byAliasAndColumn[normalize(a)]
		if info, ok := cols[colKey]; ok {
			found = info
			matches++
		}
	}
	switch matches {
	case 0:
		return nil, semerr.InvalidColumnError(column)
	case 1:
		return found, nil
	default:
		return nil, semerr.AmbiguousColumnError(column)
	}
}

// HasAlias reports whether alias has any columns registered.
func (r *RowResolver) HasAlias(alias string) bool {
	_, ok := r.byAliasAndColumn[normalize(alias)]
	return ok
}

// ReverseLookup resolves a dense internal column name back to the
// (alias, column) pair it was registered under.
func (r *RowResolver) ReverseLookup(internalName string) (alias, column string, ok bool) {
	e, found := r.byInternalName[internalName]
	if !found {
		return "", "", false
	}
	return e.alias, e.column, true
}

// ColumnEntry is one resolved (alias, column) pair in row order.
type ColumnEntry struct {
	Alias  string
	Column string
	Info   *ColumnInfo
}

// Columns returns every registered (alias, column, info) triple, in
// insertion order — the deterministic projection list for this row.
func (r *RowResolver) Columns() []ColumnEntry {
	out := make([]ColumnEntry, len(r.order))
	for i, e := range r.order {
		out[i] = ColumnEntry{Alias: e.alias, Column: e.column, Info: e.info}
	}
	return out
}

// ColumnsForAlias returns the column names registered under alias, in
// insertion order.
func (r *RowResolver) ColumnsForAlias(alias string) []string {
	cols := r.columnOrder[normalize(alias)]
	out := make([]string, len(cols))
	copy(out, cols)
	return out
}

func normalize(s string) string {
	return strings.ToLower(s)
}
