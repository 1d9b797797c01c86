package agg

import (
	"github.com/cockroachdb/errors"

	"github.com/Henry2SS/granitetree/internal/column"
)

// GroupByOverflowMode selects what happens when the number of distinct
// groups exceeds MaxRows (spec §4.2 "group_by_overflow_mode"): the method's
// hash table would otherwise grow without bound under a pathological
// high-cardinality GROUP BY.
type GroupByOverflowMode int

const (
	// OverflowModeThrow aborts the query once MaxRows groups exist.
	OverflowModeThrow GroupByOverflowMode = iota
	// OverflowModeBreak silently stops creating new groups; rows that would
	// start a new group are dropped from the result.
	OverflowModeBreak
	// OverflowModeAny routes rows that would start a new group beyond
	// MaxRows into one synthetic "overflow row" whose key columns are left
	// at their default (zero) value, same as ClickHouse's overflow_row.
	OverflowModeAny
)

// ErrTooManyGroups is returned in OverflowModeThrow once MaxRows distinct
// groups have already been created and a row would start a new one.
var ErrTooManyGroups = errors.New("granitetree: too many rows to GROUP BY (overflow mode throw)")

// Aggregator is the engine behind the block-level Aggregating operator
// (spec §4.2): it picks one of the six key strategies, owns an Arena of
// packed per-group aggregate-function states, and folds input blocks into
// that arena row by row. It is a plain accumulator, not a stream.InputStream
// itself — AggregatingStream in internal/stream wraps it as a
// pipeline-breaking operator.
type Aggregator struct {
	keyPositions []int
	keyTypes     []column.TypeInfo
	funcs        []Function
	argPositions [][]int // per-function argument column positions

	layout *StateLayout
	arena  *Arena
	method method

	maxRows      uint64
	overflowMode GroupByOverflowMode

	overflowState []byte // only used in OverflowModeAny
	hasOverflow   bool

	keyColsScratch []column.Column // reused per Update call
	keyProtos      []column.Column // one empty same-kind prototype per key, captured on first Update/Merge
}

// Config describes how to build an Aggregator for one query.
type Config struct {
	KeyPositions []int
	KeyTypes     []column.TypeInfo
	Funcs        []Function
	ArgPositions [][]int
	MaxRows      uint64
	OverflowMode GroupByOverflowMode
}

// NewAggregator builds an Aggregator. The concrete method (WITHOUT_KEY,
// KEY_64, ...) is chosen lazily on the first Update call, once the actual
// key columns (and hence their Kind) are known.
func NewAggregator(cfg Config) *Aggregator {
	layout := NewStateLayout(cfg.Funcs)
	return &Aggregator{
		keyPositions: cfg.KeyPositions,
		keyTypes:     cfg.KeyTypes,
		funcs:        cfg.Funcs,
		argPositions: cfg.ArgPositions,
		layout:       layout,
		arena:        NewArena(layout),
		maxRows:      cfg.MaxRows,
		overflowMode: cfg.OverflowMode,
	}
}

// Update folds one input block into the aggregator's groups.
func (a *Aggregator) Update(block *column.Block) error {
	if block.Empty() {
		return nil
	}
	keyCols := a.keyColumnsOf(block)
	if a.method == nil {
		a.method = newMethod(selectMethod(keyCols), keyCols)
		a.capturePrototypes(keyCols)
	}

	argCols := make([][]column.Column, len(a.funcs))
	for i, positions := range a.argPositions {
		cols := make([]column.Column, len(positions))
		for j, pos := range positions {
			cols[j] = block.Column(pos)
		}
		argCols[i] = cols
	}

	// COUNT()-with-no-arguments shortcut: apply once for the whole block
	// rather than once per row (spec §4.2), but only in WITHOUT_KEY mode
	// where there is exactly one group to credit.
	if len(keyCols) == 0 {
		state, _, err := a.lookupOrOverflow(keyCols, 0)
		if err != nil {
			return err
		}
		return a.updateWithoutKeyFields(state, argCols, block.Rows())
	}

	for row := 0; row < block.Rows(); row++ {
		state, isNew, err := a.lookupOrOverflow(keyCols, row)
		if err != nil {
			return err
		}
		if state == nil {
			continue // OverflowModeBreak: row dropped
		}
		_ = isNew
		for i, f := range a.funcs {
			f.Add(state[a.layout.Offsets[i]:], argCols[i], row)
		}
	}
	return nil
}

// updateWithoutKeyFields applies Add/AddDelta per function at its own
// offset within the single WITHOUT_KEY state region. Kept separate from the
// row loop above because the COUNT shortcut in Update operates on the
// region as a whole and must not be double-applied.
func (a *Aggregator) updateWithoutKeyFields(state []byte, argCols [][]column.Column, rows int) error {
	if state == nil || rows == 0 {
		return nil
	}
	for i, f := range a.funcs {
		field := state[a.layout.Offsets[i]:]
		if f.AddDelta(field, uint64(rows)) {
			continue
		}
		for row := 0; row < rows; row++ {
			f.Add(field, argCols[i], row)
		}
	}
	return nil
}

func (a *Aggregator) keyColumnsOf(block *column.Block) []column.Column {
	if cap(a.keyColsScratch) < len(a.keyPositions) {
		a.keyColsScratch = make([]column.Column, len(a.keyPositions))
	}
	cols := a.keyColsScratch[:len(a.keyPositions)]
	for i, pos := range a.keyPositions {
		cols[i] = block.Column(pos)
	}
	return cols
}

// lookupOrOverflow wraps method.lookup with group_by_overflow_mode
// enforcement: once a.maxRows distinct groups already exist, a row that
// would start a new one is handled per a.overflowMode instead of growing
// the method's table further.
func (a *Aggregator) lookupOrOverflow(keyCols []column.Column, row int) (state []byte, isNew bool, err error) {
	newState := func() ([]byte, error) { return a.arena.Allocate() }

	if a.maxRows == 0 || uint64(a.method.len()) < a.maxRows {
		return a.method.lookup(keyCols, row, newState)
	}

	// Would this row hit an existing group? If so it's fine even over the
	// limit (the limit bounds distinct-group creation, not total rows).
	probe := func() ([]byte, error) { return nil, errProbeOnly }
	state, isNew, err = a.method.lookup(keyCols, row, probe)
	if err == nil {
		return state, isNew, nil
	}
	if !errors.Is(err, errProbeOnly) {
		return nil, false, err
	}

	switch a.overflowMode {
	case OverflowModeThrow:
		return nil, false, ErrTooManyGroups
	case OverflowModeBreak:
		return nil, false, nil
	default: // OverflowModeAny
		if !a.hasOverflow {
			region, aerr := a.arena.Allocate()
			if aerr != nil {
				return nil, false, aerr
			}
			a.overflowState = region
			a.hasOverflow = true
		}
		return a.overflowState, false, nil
	}
}

// errProbeOnly is a sentinel newState returns to signal "this key does not
// exist yet and I decline to allocate", letting lookupOrOverflow
// distinguish a genuine miss from an allocation failure without growing the
// table.
var errProbeOnly = errors.New("granitetree: probe miss")

// Arena exposes the aggregator's backing arena, e.g. for wrapping result
// columns as AggregateState (non-final mode) that must keep it alive.
func (a *Aggregator) Arena() *Arena { return a.arena }

// Groups reports the current number of distinct groups (excluding the
// overflow row, if any).
func (a *Aggregator) Groups() int {
	if a.method == nil {
		return 0
	}
	return a.method.len()
}

// capturePrototypes remembers one empty same-concrete-type column per key
// column, so Result can rebuild key columns of the right width (e.g.
// FixedString(N)) even though column.TypeInfo alone does not carry that.
func (a *Aggregator) capturePrototypes(keyCols []column.Column) {
	a.keyProtos = make([]column.Column, len(keyCols))
	for i, c := range keyCols {
		a.keyProtos[i] = column.NewLike(c)
	}
}
