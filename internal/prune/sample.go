package prune

import (
	"strconv"
	"strings"

	"github.com/dshills/hiveql-compiler/internal/exprtype"
	"github.com/dshills/hiveql-compiler/internal/metastore"
	"github.com/dshills/hiveql-compiler/internal/semantic/expr"
	"github.com/dshills/hiveql-compiler/internal/semantic/qb"
	"github.com/dshills/hiveql-compiler/internal/semantic/semerr"
)

// SamplePruner implements §4.8: validating a TOK_TABLESAMPLE clause against
// a table's bucketing metadata and turning it into either a direct subset
// of bucket files (when the sample's columns and count align with the
// table's own bucketing) or a hash predicate every row must pass.
type SamplePruner struct{}

// NewSamplePruner creates a SamplePruner.
func NewSamplePruner() *SamplePruner { return &SamplePruner{} }

// ResolvedColumns returns sample.OnCols, or table's own bucketing columns
// when the ON clause was omitted (§4.8: a bare `TABLESAMPLE(BUCKET n OUT
// OF d)` samples on the table's clustering columns, not every column).
func ResolvedColumns(table *metastore.Table, sample *qb.TableSample) []string {
	if len(sample.OnCols) > 0 {
		return sample.OnCols
	}
	return table.BucketCols
}

// Validate checks a TABLESAMPLE clause against table's metadata (§4.8):
// at most two sample columns, every named column must exist, and the table
// must carry bucketing metadata (legacy Hive sampling is bucket-based
// only).
func (p *SamplePruner) Validate(table *metastore.Table, sample *qb.TableSample) error {
	if len(sample.OnCols) > 2 {
		return semerr.SampleRestrictionError()
	}
	for _, col := range sample.OnCols {
		if _, ok := table.Column(col); !ok {
			return semerr.SampleColumnNotFoundError(col)
		}
	}
	if !table.IsBucketed() {
		return semerr.NonBucketedTableError(table.Name)
	}
	return nil
}

// sameColumns reports whether a and b name the same columns in the same
// order, case-insensitively.
func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

// BucketFiles returns the bucket-file indices (0-based) the sample reads
// directly, when sample.OnCols exactly match table's bucketing columns and
// either sample.NumBuckets equals the table's own bucket count (the sample
// names exactly one file) or it evenly divides the table's bucket count
// (the sample spans several files at a fixed stride). ok is false when the
// sample cannot be satisfied by direct file selection and must fall back
// to HashPredicate instead.
func (p *SamplePruner) BucketFiles(table *metastore.Table, sample *qb.TableSample) (files []int, ok bool) {
	resolved := ResolvedColumns(table, sample)
	if !sameColumns(resolved, table.BucketCols) {
		return nil, false
	}
	if sample.NumBuckets <= 0 {
		return nil, false
	}
	if sample.NumBuckets == table.NumBuckets {
		return []int{sample.BucketNum - 1}, true
	}
	if table.NumBuckets%sample.NumBuckets != 0 {
		return nil, false
	}
	multiplier := table.NumBuckets / sample.NumBuckets
	files = make([]int, 0, multiplier)
	for k := 0; k < multiplier; k++ {
		files = append(files, (sample.BucketNum-1)+k*sample.NumBuckets)
	}
	return files, true
}

// int32Mask is Hive's INT32_MAX (0x7FFFFFFF), masked over the hash value
// before the modulo so a negative hash still lands in [0, numBuckets)
// the same way default_sample_hashfn's "& Integer.MAX_VALUE" does.
const int32Mask = 0x7FFFFFFF

// HashPredicate builds the fallback filter predicate "(hash(cols) &
// 0x7FFFFFFF) % numBuckets = bucketNum-1" (§8's hash predicate law) for a
// sample that BucketFiles could not satisfy directly. cols is the compiled
// column reference for each of sample's ON columns, in order.
func (p *SamplePruner) HashPredicate(cols []*expr.Desc, sample *qb.TableSample) *expr.Desc {
	hashCall := &expr.Desc{Kind: expr.KindFunc, FuncName: "hash", Type: exprtype.Integer, Args: append([]*expr.Desc{}, cols...)}
	maskConst := &expr.Desc{Kind: expr.KindConstant, Type: exprtype.Integer, Literal: strconv.Itoa(int32Mask)}
	maskedCall := &expr.Desc{Kind: expr.KindFunc, FuncName: "&", Type: exprtype.Integer, Args: []*expr.Desc{hashCall, maskConst}}
	modConst := &expr.Desc{Kind: expr.KindConstant, Type: exprtype.Integer, Literal: strconv.Itoa(sample.NumBuckets)}
	modCall := &expr.Desc{Kind: expr.KindFunc, FuncName: "%", Type: exprtype.Integer, Args: []*expr.Desc{maskedCall, modConst}}
	bucketConst := &expr.Desc{Kind: expr.KindConstant, Type: exprtype.Integer, Literal: strconv.Itoa(sample.BucketNum - 1)}
	return &expr.Desc{Kind: expr.KindFunc, FuncName: "=", Type: exprtype.Boolean, Args: []*expr.Desc{modCall, bucketConst}}
}
