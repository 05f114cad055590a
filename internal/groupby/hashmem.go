package groupby

import "math"

// HashEstimator models the map-side HASH aggregator's capacity and flush
// behavior (§4.5, §8's "HASH flush law"): the hash table is allowed to grow
// until it would exceed FlushFraction of MaxHeapBytes given the currently
// estimated per-entry size, at which point it flushes the smallest 10% of
// its entries by count rather than emptying entirely, to avoid immediately
// refilling from the same skewed keys.
type HashEstimator struct {
	MaxHeapBytes          int64
	FlushFraction         float64
	FixedOverheadPerEntry int64

	// keyLenTotal/keyLenCount and aggLenTotal/aggLenCount accumulate the
	// running average length of string-typed key and aggregator-field
	// components actually observed, per §4.5's "variable component
	// averaged over string-typed positions actually seen".
	keyLenTotal, keyLenCount int64
	aggLenTotal, aggLenCount int64
}

// NewHashEstimator creates an estimator for one map-side HASH group-by
// operator.
func NewHashEstimator(maxHeapBytes int64, flushFraction float64, fixedOverheadPerEntry int64) *HashEstimator {
	return &HashEstimator{
		MaxHeapBytes:          maxHeapBytes,
		FlushFraction:         flushFraction,
		FixedOverheadPerEntry: fixedOverheadPerEntry,
	}
}

// ObserveStringKey folds one string-typed key value's length into the
// running average.
func (e *HashEstimator) ObserveStringKey(length int) {
	e.keyLenTotal += int64(length)
	e.keyLenCount++
}

// ObserveStringAggField folds one string-typed aggregator field's length
// into the running average.
func (e *HashEstimator) ObserveStringAggField(length int) {
	e.aggLenTotal += int64(length)
	e.aggLenCount++
}

func average(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// EstimatedEntrySize returns the fixed per-entry overhead plus the running
// average of the variable components observed so far.
func (e *HashEstimator) EstimatedEntrySize() int64 {
	return e.FixedOverheadPerEntry + average(e.keyLenTotal, e.keyLenCount) + average(e.aggLenTotal, e.aggLenCount)
}

// Capacity returns the number of entries the hash table may hold before a
// flush is triggered, given the current estimated entry size.
func (e *HashEstimator) Capacity() int64 {
	size := e.EstimatedEntrySize()
	if size <= 0 {
		return 0
	}
	budget := float64(e.MaxHeapBytes) * e.FlushFraction
	return int64(budget / float64(size))
}

// ShouldFlush reports whether a table holding currentEntries has reached
// capacity and must flush.
func (e *HashEstimator) ShouldFlush(currentEntries int64) bool {
	return currentEntries >= e.Capacity()
}

// FlushCount returns the number of entries a flush evicts: the smallest 10%
// of the table by count, rounded up, and always at least one entry when the
// table is non-empty.
func FlushCount(tableSize int64) int64 {
	if tableSize <= 0 {
		return 0
	}
	n := int64(math.Ceil(0.1 * float64(tableSize)))
	if n < 1 {
		n = 1
	}
	return n
}
