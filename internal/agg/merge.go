package agg

import (
	"github.com/cockroachdb/errors"

	"github.com/Henry2SS/granitetree/internal/column"
)

// ErrMismatchedVariants corresponds to ClickHouse's
// CANNOT_MERGE_DIFFERENT_AGGREGATED_DATA_VARIANTS: merging two partial
// aggregations whose block shapes disagree (different key count, or a
// function's state arriving under another function's name) would silently
// fold the wrong bytes together, so it is refused outright.
var ErrMismatchedVariants = errors.New("granitetree: cannot merge different aggregated data variants")

// Merge folds one partial-aggregation block — as produced by Result(false):
// key columns followed by one AggregateState column per function, in the
// same order as the receiver's functions — into the receiver's groups. This
// is the second phase of spec §4.2's two-phase merge: every worker runs its
// own Aggregator over a slice of the input and emits non-final blocks; a
// single merging Aggregator folds them together before producing the final
// result.
func (a *Aggregator) Merge(block *column.Block) error {
	if block.Empty() {
		return nil
	}
	if block.NumColumns() != len(a.keyTypes)+len(a.funcs) {
		return ErrMismatchedVariants
	}

	keyCols := make([]column.Column, len(a.keyTypes))
	for i := range a.keyTypes {
		keyCols[i] = block.Column(i)
	}
	if a.method == nil {
		a.method = newMethod(selectMethod(keyCols), keyCols)
		a.capturePrototypes(keyCols)
	}

	stateCols := make([]*column.AggregateState, len(a.funcs))
	for i, f := range a.funcs {
		as, ok := block.Column(len(a.keyTypes) + i).(*column.AggregateState)
		if !ok || as.FunctionName != f.Name() {
			return ErrMismatchedVariants
		}
		stateCols[i] = as
	}

	newState := func() ([]byte, error) { return a.arena.Allocate() }
	for row := 0; row < block.Rows(); row++ {
		dst, _, err := a.method.lookup(keyCols, row, newState)
		if err != nil {
			return err
		}
		for i, f := range a.funcs {
			src := ptrToSlice(stateCols[i].PtrAt(row), f.StateSize())
			f.Merge(dst[a.layout.Offsets[i]:], src)
		}
	}
	return nil
}
