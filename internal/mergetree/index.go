package mergetree

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/Henry2SS/granitetree/internal/column"
)

// PrimaryIndex is the sparse primary index (spec glossary): the primary
// key tuple of every IndexGranularity-th row, one column per key field,
// held in memory for the life of the open part.
type PrimaryIndex struct {
	Columns []column.Column // parallel, one per primary-key column
}

// BuildPrimaryIndex samples keyCols (already sorted by primary key) every
// granularity rows, producing the index a part's primary.idx file
// persists (spec §4.3 "write primary.idx sampling every
// index_granularity-th row").
func BuildPrimaryIndex(keyCols []column.Column, granularity int) *PrimaryIndex {
	idx := &PrimaryIndex{Columns: make([]column.Column, len(keyCols))}
	if len(keyCols) == 0 {
		return idx
	}
	rows := keyCols[0].Len()
	for i, kc := range keyCols {
		sampled := column.NewLike(kc)
		for row := 0; row < rows; row += granularity {
			sampled.InsertFrom(kc, row)
		}
		idx.Columns[i] = sampled
	}
	return idx
}

// NumMarks returns the number of sampled rows (marks) in the index.
func (idx *PrimaryIndex) NumMarks() int {
	if len(idx.Columns) == 0 {
		return 0
	}
	return idx.Columns[0].Len()
}

// MarkRange is a half-open [Begin, End) interval of mark indices, the unit
// of work the read pool (internal/readpool) distributes across threads
// (spec glossary "Granule/Mark range").
type MarkRange struct {
	Begin, End int
}

// Len reports the number of marks the range spans.
func (r MarkRange) Len() int { return r.End - r.Begin }

// RangePredicate reports whether the primary-key range sampled at marks
// [lo, hi] (inclusive) of idx might contain rows satisfying a query's
// WHERE condition. Returning true means "do not exclude this range";
// returning true unconditionally degenerates to a full scan, which is
// always a safe (if slow) answer — no predicate evaluator lives in this
// package, matching spec.md's "the SQL parser and AST" being an external
// collaborator out of this module's scope.
type RangePredicate func(idx *PrimaryIndex, lo, hi int) bool

// SelectRanges implements spec §4.3's read-path range selection:
// recursively evaluate pred against the sparse index, splitting each
// surviving candidate into up to coarseGranularity pieces and keeping
// only the pieces that may contain matching rows.
func SelectRanges(idx *PrimaryIndex, pred RangePredicate, coarseGranularity int) []MarkRange {
	total := idx.NumMarks()
	if total == 0 {
		return nil
	}
	if pred == nil {
		return []MarkRange{{0, total}}
	}
	if coarseGranularity < 1 {
		coarseGranularity = 1
	}
	return selectRange(idx, pred, 0, total, coarseGranularity)
}

// WritePrimaryIndex serializes primary.idx: varint(rows), then per key
// column varint(marks) followed by that many length-prefixed
// GetDataAt(i) payloads. This is a private, simple binary layout — spec
// §6 only pins down that the file holds "key tuples at every
// index_granularity-th row, binary", not its exact byte format.
func WritePrimaryIndex(path string, idx *PrimaryIndex, rows int) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "granitetree: create %s", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	var scratch [binary.MaxVarintLen64]byte
	writeUvarint := func(v uint64) error {
		n := binary.PutUvarint(scratch[:], v)
		_, err := w.Write(scratch[:n])
		return err
	}
	if err := writeUvarint(uint64(rows)); err != nil {
		return err
	}
	for _, col := range idx.Columns {
		if err := writeUvarint(uint64(col.Len())); err != nil {
			return err
		}
		for i := 0; i < col.Len(); i++ {
			data := col.GetDataAt(i)
			if err := writeUvarint(uint64(len(data))); err != nil {
				return err
			}
			if _, err := w.Write(data); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

// ReadPrimaryIndex parses a primary.idx file written by WritePrimaryIndex,
// given the ordered primary-key TypeInfo to reconstruct each column.
func ReadPrimaryIndex(path string, keyTypes []column.TypeInfo) (idx *PrimaryIndex, rows int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "granitetree: open %s", path)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	rowsU, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "granitetree: read %s", path)
	}
	idx = &PrimaryIndex{Columns: make([]column.Column, len(keyTypes))}
	for ci, kt := range keyTypes {
		col, err := newColumnForType(kt)
		if err != nil {
			return nil, 0, err
		}
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "granitetree: read %s", path)
		}
		for i := uint64(0); i < n; i++ {
			length, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, 0, errors.Wrapf(err, "granitetree: read %s", path)
			}
			buf := make([]byte, length)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, 0, errors.Wrapf(err, "granitetree: read %s", path)
			}
			appendRawRow(col, buf)
		}
		idx.Columns[ci] = col
	}
	return idx, int(rowsU), nil
}

// appendRawRow appends one raw GetDataAt-encoded row to col. Every
// concrete Column in this package's closed type set stores rows as either
// fixed-width records or length-prefixed variable records, so a type
// switch here mirrors newColumnForType's dispatch instead of requiring a
// further Column method just for index rehydration.
func appendRawRow(col column.Column, data []byte) {
	switch c := col.(type) {
	case *column.ByteString:
		c.Append(data)
	case *column.FixedString:
		c.Append(data)
	default:
		appendRawNumericRow(col, data)
	}
}

func selectRange(idx *PrimaryIndex, pred RangePredicate, begin, end, pieces int) []MarkRange {
	if begin >= end {
		return nil
	}
	if !pred(idx, begin, end-1) {
		return nil
	}
	n := end - begin
	if n <= pieces {
		return []MarkRange{{begin, end}}
	}
	step := (n + pieces - 1) / pieces
	var out []MarkRange
	for s := begin; s < end; s += step {
		e := s + step
		if e > end {
			e = end
		}
		out = append(out, selectRange(idx, pred, s, e, pieces)...)
	}
	return out
}
