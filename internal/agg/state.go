package agg

import "github.com/Henry2SS/granitetree/internal/column"

// Function is the capability set every aggregate function implements
// (spec glossary "Aggregate state... produced by create, mutated by
// add/merge, finalized by insert_result_into, destroyed by destroy").
// Implementations operate on a raw byte region handed to them by the
// owning Arena at a fixed offset; they must not retain the slice beyond
// the call (the arena may resize in ways that change backing arrays for
// regions allocated afterward, though never for the region already
// handed out — see Arena.reserve).
type Function interface {
	// Name is the function's catalog name, e.g. "sum", "count".
	Name() string

	// StateSize is the number of bytes this function's state occupies.
	StateSize() int

	// TriviallyDestructible reports whether Destroy is a no-op, letting
	// the arena's destructor walk skip this field entirely (spec §4.2
	// "Unless an aggregate function is declared trivially-destructible").
	TriviallyDestructible() bool

	// Create initializes state at the front of region.
	Create(region []byte)

	// Add updates state with the value(s) found in row of the given
	// argument columns (positions within the input block resolved once at
	// planning time).
	Add(state []byte, args []column.Column, row int)

	// AddDelta is an optimized shortcut for COUNT()-with-no-arguments:
	// "add n to the running count" applied once per block rather than once
	// per row (spec §4.2). Functions that have no such shortcut return
	// false and the caller falls back to per-row Add.
	AddDelta(state []byte, n uint64) bool

	// Merge folds src's state into dst's (dst ← merge(dst, src)); src is
	// left untouched and stays owned by its own arena, which destroys it
	// when that arena is released (spec §4.2 "Two-phase merge").
	Merge(dst, src []byte)

	// InsertResultInto finalizes state into one row of the given output
	// column ("final" mode).
	InsertResultInto(state []byte, out column.Column)

	// SerializeState appends state's wire representation to dst. The
	// functions in this package write the raw fixed-size state with no
	// length prefix; DeserializeState reads back StateSize bytes.
	SerializeState(dst []byte, state []byte) []byte

	// DeserializeState reads one state from src (as produced by
	// SerializeState) into state, returning the number of bytes consumed.
	DeserializeState(state []byte, src []byte) (n int, err error)

	// Destroy releases any resources state holds (e.g. a nested slice).
	// Never called if TriviallyDestructible returns true.
	Destroy(state []byte)
}

// StateLayout computes the cumulative byte offsets for N aggregate
// function states packed into one group record (spec §4.2 "State
// layout"): offset[0..N-1] and Total = sum(sizeof(state_i)).
type StateLayout struct {
	Funcs   []Function
	Offsets []int
	Total   int
}

// NewStateLayout computes offsets for funcs in order.
func NewStateLayout(funcs []Function) *StateLayout {
	offsets := make([]int, len(funcs))
	total := 0
	for i, f := range funcs {
		offsets[i] = total
		total += f.StateSize()
	}
	return &StateLayout{Funcs: funcs, Offsets: offsets, Total: total}
}
