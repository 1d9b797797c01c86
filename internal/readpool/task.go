// Package readpool implements the read pool & worker scheduler (spec
// §4.4): pre-distribution of a MergeTree query's mark-ranges across a
// fixed number of worker threads, with work-stealing task acquisition
// guarded by a single mutex, modeled on mergetree's own per-part
// mark-range bookkeeping the way internal/agg models its hash table on
// internal/column's block layout.
package readpool

import (
	"github.com/Henry2SS/granitetree/internal/column"
	"github.com/Henry2SS/granitetree/internal/mergetree"
)

// PartRanges is one part's mark-ranges selected for a query (spec §4.4
// "ranges-in-parts list"). NewPool does not take it: the pool's input is
// PoolInputs.PartsInOrder with the parallel PoolInputs.RangesPerPart.
type PartRanges struct {
	Part       *mergetree.Part
	PartIndex  int // stable identity of this part within the query, for downstream consumers keyed by index
	Ranges     []mergetree.MarkRange
	MarksCount int // sum of Ranges[i].Len(), cached so ranges can be taken from the back without recomputing it
}

// Task is what GetTask hands to one worker: a part, the mark-ranges it
// must read this round, and the column plan needed to decode them
// (spec §4.4 "Task acquisition", point 4).
type Task struct {
	Part      *mergetree.Part
	PartIndex int
	Ranges    []mergetree.MarkRange

	// OrderedColumns is the column list in the order the consumer must
	// reorder output to, possibly including columns injected by
	// InjectRequiredColumns.
	OrderedColumns []string
	ColumnTypes    []column.TypeInfo

	PrewhereColumns []string
	PrewhereTypes   []column.TypeInfo

	// RemovePrewhereColumn reports whether the prewhere column(s) were
	// injected purely to filter rows and must be dropped before the
	// block reaches the rest of the pipeline.
	RemovePrewhereColumn bool
	// ShouldReorder reports whether OrderedColumns differs from the
	// query's originally requested column order, e.g. because
	// InjectRequiredColumns appended columns at the end.
	ShouldReorder bool
}

func marksIn(ranges []mergetree.MarkRange) int {
	total := 0
	for _, r := range ranges {
		total += r.Len()
	}
	return total
}
