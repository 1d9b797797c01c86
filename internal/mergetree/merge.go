package mergetree

import (
	"container/heap"

	"github.com/cockroachdb/errors"

	"github.com/Henry2SS/granitetree/internal/column"
)

// Merge folds parts (all from the same month, sorted by primary key
// within each, as every part is) into a single output part using the
// table's MergeMode, then installs the output and retires the inputs in
// one Transaction (spec §3 "A merge reads N input parts and produces one
// output part... covering and superseding its inputs").
//
// The merge materializes every input part in full before interleaving
// rows — a documented simplification of spec §4.3's mark-range-at-a-time
// merge; see DESIGN.md. Parts this size (tens of thousands to low
// millions of rows between merges) fit comfortably in memory for the
// scale this exercise targets.
func (t *Table) Merge(parts []*Part) (*Part, error) {
	if len(parts) < 2 {
		return nil, errors.Newf("granitetree: merge requires at least 2 parts, got %d", len(parts))
	}
	t.logger.Infof("granitetree: merging %d parts starting at %s", len(parts), parts[0].Name)

	blocks := make([]*column.Block, len(parts))
	for i, p := range parts {
		b, err := t.loadFullBlock(p)
		if err != nil {
			return nil, err
		}
		blocks[i] = b
	}

	merged, err := t.mergeBlocks(blocks)
	if err != nil {
		return nil, err
	}

	name := outputPartName(parts)
	keyPositions, err := merged.Positions(t.primaryKey)
	if err != nil {
		return nil, err
	}
	part, err := t.writePart(merged, name, keyPositions)
	if err != nil {
		return nil, err
	}

	tx := beginTransaction(t)
	defer tx.RollbackUnlessCommitted()
	for _, p := range parts {
		tx.Remove(p)
	}
	tx.Add(part)
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return part, nil
}

// outputPartName computes the merged part's name: the union of every
// input's id and date range, one level above the highest input level
// (spec §3 "<min-date>_<max-date>_<min-id>_<max-id>_<level>"; §8
// invariant 2 "a merge's output part covers and supersedes its inputs").
func outputPartName(parts []*Part) PartName {
	out := parts[0].Name
	for _, p := range parts[1:] {
		if p.Name.MinDate < out.MinDate {
			out.MinDate = p.Name.MinDate
		}
		if p.Name.MaxDate > out.MaxDate {
			out.MaxDate = p.Name.MaxDate
		}
		if p.Name.MinID < out.MinID {
			out.MinID = p.Name.MinID
		}
		if p.Name.MaxID > out.MaxID {
			out.MaxID = p.Name.MaxID
		}
		if p.Name.Level > out.Level {
			out.Level = p.Name.Level
		}
	}
	out.Level++
	return out
}

// loadFullBlock reads every row of p, across every mark range, for all of
// the table's columns, via the ordinary read path (OpenPartSource):
// merge input is just another consumer of the read path's Source
// contract.
func (t *Table) loadFullBlock(p *Part) (*column.Block, error) {
	ranges := RangesInPart(p, nil, t.settings.CoarseIndexGranularity)
	src, err := OpenPartSource(p, t.columnNames, ranges)
	if err != nil {
		return nil, err
	}
	if err := src.ReadPrefix(); err != nil {
		return nil, err
	}
	defer src.ReadSuffix()

	var whole *column.Block
	for {
		b, err := src.Read()
		if err != nil {
			return nil, err
		}
		if b.Empty() {
			break
		}
		if whole == nil {
			whole = b
			continue
		}
		if err := whole.AppendBlock(b); err != nil {
			return nil, err
		}
	}
	if whole == nil {
		whole = column.NewBlock()
	}
	return whole, nil
}

// cursorRef names one row of one input block during the k-way merge.
type cursorRef struct {
	block int
	row   int
}

// mergeHeap orders cursorRefs by their row's primary-key tuple, breaking
// ties by input order so a later part (presumed more recently inserted)
// sorts after an earlier one — the convention ModeCollapsing and
// ModeSumming rely on when picking which row of a duplicate-key group to
// keep last.
type mergeHeap struct {
	blocks  []*column.Block
	keyPos  []int
	cursors []cursorRef
}

func (h *mergeHeap) Len() int { return len(h.cursors) }
func (h *mergeHeap) Less(i, j int) bool {
	return h.compare(h.cursors[i], h.cursors[j]) < 0
}
func (h *mergeHeap) Swap(i, j int) { h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i] }
func (h *mergeHeap) Push(x interface{}) { h.cursors = append(h.cursors, x.(cursorRef)) }
func (h *mergeHeap) Pop() interface{} {
	n := len(h.cursors)
	v := h.cursors[n-1]
	h.cursors = h.cursors[:n-1]
	return v
}

func (h *mergeHeap) compare(a, b cursorRef) int {
	ab, bb := h.blocks[a.block], h.blocks[b.block]
	for _, pos := range h.keyPos {
		cmp := ab.Column(pos).CompareAt(a.row, bb.Column(pos), b.row, column.NaNLast)
		if cmp != 0 {
			return cmp
		}
	}
	if a.block != b.block {
		return a.block - b.block
	}
	return a.row - b.row
}

// sameKey reports whether a and b carry identical primary-key tuples.
func (h *mergeHeap) sameKey(a, b cursorRef) bool {
	ab, bb := h.blocks[a.block], h.blocks[b.block]
	for _, pos := range h.keyPos {
		if ab.Column(pos).CompareAt(a.row, bb.Column(pos), b.row, column.NaNLast) != 0 {
			return false
		}
	}
	return true
}

// mergeBlocks k-way merges blocks (each already primary-key sorted) into
// one output block, applying the table's MergeMode to runs of rows that
// share a primary key (spec §4.3 "A merge k-way-streams its inputs,
// applying the table's mode").
func (t *Table) mergeBlocks(blocks []*column.Block) (*column.Block, error) {
	nonEmpty := blocks[:0:0]
	for _, b := range blocks {
		if !b.Empty() {
			nonEmpty = append(nonEmpty, b)
		}
	}
	if len(nonEmpty) == 0 {
		return blocks[0].CloneEmpty(), nil
	}

	keyPos, err := nonEmpty[0].Positions(t.primaryKey)
	if err != nil {
		return nil, err
	}

	h := &mergeHeap{blocks: nonEmpty, keyPos: keyPos}
	for bi := range nonEmpty {
		h.cursors = append(h.cursors, cursorRef{block: bi, row: 0})
	}
	heap.Init(h)

	out := nonEmpty[0].CloneEmpty()
	var group []cursorRef

	flush := func() error {
		if len(group) == 0 {
			return nil
		}
		return t.emitGroup(out, h.blocks, group)
	}

	for h.Len() > 0 {
		ref := heap.Pop(h).(cursorRef)
		if ref.row+1 < nonEmpty[ref.block].Rows() {
			heap.Push(h, cursorRef{block: ref.block, row: ref.row + 1})
		}

		if len(group) > 0 && !h.sameKey(group[len(group)-1], ref) {
			if err := flush(); err != nil {
				return nil, err
			}
			group = group[:0]
		}
		group = append(group, ref)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	// The emit functions fill out's columns row by row without touching its
	// row count, so rebuild the block to make Rows() match the columns.
	merged := column.NewBlock()
	for i := 0; i < out.NumColumns(); i++ {
		merged.AddColumn(out.ColumnName(i), out.Type(i), out.Column(i))
	}
	return merged, nil
}

// emitGroup appends group's rows to out according to the table's
// MergeMode: ModeOrdinary copies every row through unchanged (group is
// only a same-key run for bookkeeping, not a collapse boundary); the
// other modes fold the run into one row.
func (t *Table) emitGroup(out *column.Block, blocks []*column.Block, group []cursorRef) error {
	switch t.mode {
	case ModeOrdinary:
		for _, ref := range group {
			appendRow(out, blocks[ref.block], ref.row)
		}
		return nil
	case ModeCollapsing:
		return t.emitCollapsed(out, blocks, group)
	case ModeSumming:
		return t.emitSummed(out, blocks, group)
	case ModeAggregating:
		return t.emitAggregated(out, blocks, group)
	default:
		return errors.Wrapf(ErrUnknownMergeMode, "mode %d", t.mode)
	}
}

// appendRow copies row i of src onto the end of out, column by column.
func appendRow(out, src *column.Block, i int) {
	for c := 0; c < out.NumColumns(); c++ {
		out.Column(c).InsertFrom(src.Column(c), i)
	}
}

// emitCollapsed implements ClickHouse's CollapsingMergeTree rule: rows
// sharing a primary key are expected in +1/-1 sign pairs; a row is kept
// only if the group's signs don't net to zero, in which case the last
// row of the group (by insertion/merge order) is kept (spec §3
// "collapsing (cancel +1/-1 row pairs)").
func (t *Table) emitCollapsed(out *column.Block, blocks []*column.Block, group []cursorRef) error {
	signPos, err := blocks[group[0].block].Positions([]string{t.signColumn})
	if err != nil {
		return err
	}
	var net int64
	for _, ref := range group {
		net += signOf(blocks[ref.block].Column(signPos[0]), ref.row)
	}
	if net == 0 {
		return nil
	}
	last := group[len(group)-1]
	appendRow(out, blocks[last.block], last.row)
	return nil
}

func signOf(col column.Column, row int) int64 {
	switch v := col.(type) {
	case *column.Vector[int8]:
		return int64(v.Data()[row])
	case *column.Vector[int16]:
		return int64(v.Data()[row])
	case *column.Vector[int32]:
		return int64(v.Data()[row])
	case *column.Vector[int64]:
		return v.Data()[row]
	default:
		return 0
	}
}

// emitSummed implements ClickHouse's SummingMergeTree rule: rows sharing
// a primary key collapse into one row whose non-key numeric columns hold
// the sum across the group; non-numeric, non-key columns pass through
// from the group's last row (spec §3 "summing (sum numeric columns)").
func (t *Table) emitSummed(out *column.Block, blocks []*column.Block, group []cursorRef) error {
	last := group[len(group)-1]
	keySet := make(map[int]bool, len(t.primaryKey))
	keyPos, err := blocks[last.block].Positions(t.primaryKey)
	if err != nil {
		return err
	}
	for _, p := range keyPos {
		keySet[p] = true
	}

	for c := 0; c < out.NumColumns(); c++ {
		if keySet[c] || !isSummable(blocks[last.block].Column(c)) {
			appendRow1Column(out, c, blocks[last.block], last.row)
			continue
		}
		appendSummedColumn(out, c, blocks, group)
	}
	return nil
}

func appendRow1Column(out *column.Block, c int, src *column.Block, row int) {
	out.Column(c).InsertFrom(src.Column(c), row)
}

func isSummable(col column.Column) bool {
	switch col.(type) {
	case *column.Vector[int8], *column.Vector[int16], *column.Vector[int32], *column.Vector[int64],
		*column.Vector[uint8], *column.Vector[uint16], *column.Vector[uint32], *column.Vector[uint64],
		*column.Vector[float32], *column.Vector[float64]:
		return true
	default:
		return false
	}
}

func appendSummedColumn(out *column.Block, c int, blocks []*column.Block, group []cursorRef) {
	switch blocks[group[0].block].Column(c).(type) {
	case *column.Vector[int8]:
		sumInto[int8](out, c, blocks, group)
	case *column.Vector[int16]:
		sumInto[int16](out, c, blocks, group)
	case *column.Vector[int32]:
		sumInto[int32](out, c, blocks, group)
	case *column.Vector[int64]:
		sumInto[int64](out, c, blocks, group)
	case *column.Vector[uint8]:
		sumInto[uint8](out, c, blocks, group)
	case *column.Vector[uint16]:
		sumInto[uint16](out, c, blocks, group)
	case *column.Vector[uint32]:
		sumInto[uint32](out, c, blocks, group)
	case *column.Vector[uint64]:
		sumInto[uint64](out, c, blocks, group)
	case *column.Vector[float32]:
		sumInto[float32](out, c, blocks, group)
	case *column.Vector[float64]:
		sumInto[float64](out, c, blocks, group)
	default:
		// isSummable only admits the numeric kinds handled above.
		last := group[len(group)-1]
		appendRow1Column(out, c, blocks[last.block], last.row)
	}
}

// sumInto sums group's rows of column c (typed as T, the kind the caller's
// type switch just matched) and appends the total to out. One
// instantiation per numeric kind isSummable admits, so every "summable"
// column is actually summed rather than falling through to a last-row
// pass-through.
func sumInto[T column.Numeric](out *column.Block, c int, blocks []*column.Block, group []cursorRef) {
	var sum T
	for _, ref := range group {
		sum += blocks[ref.block].Column(c).(*column.Vector[T]).Data()[ref.row]
	}
	out.Column(c).(*column.Vector[T]).InsertRaw(sum)
}

// emitAggregated implements ClickHouse's AggregatingMergeTree rule: rows
// sharing a primary key collapse into one row whose AggregateState
// columns hold the merge of the group's states. Merging an
// AggregateState requires the owning Function's Merge operator
// (internal/agg.Function), which lives in the query layer together with
// the arena that makes the state addressable — outside this package's
// built scope (spec.md lists the SQL/AST and query-execution layers as
// external collaborators). Until that wiring lands, this keeps the
// group's last row's AggregateState columns as-is: correct for
// single-row groups (no collapsing needed), but for multi-row groups
// ModeAggregating (spec §4.3) does not actually merge state yet — a
// known gap, tracked in DESIGN.md's Open Questions.
func (t *Table) emitAggregated(out *column.Block, blocks []*column.Block, group []cursorRef) error {
	last := group[len(group)-1]
	appendRow(out, blocks[last.block], last.row)
	return nil
}
