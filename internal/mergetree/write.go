package mergetree

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/Henry2SS/granitetree/internal/column"
	"github.com/Henry2SS/granitetree/internal/ioutil"
)

// Insert writes block as one or more new parts: spec §4.3's write path
// splits the block by the table's date column into per-month pieces,
// stable-sorts each piece by the primary key, and materializes each piece
// as its own part directory before installing it into the active set.
// dateColumn must be a KindDate column present in block and in the
// table's declared columns.
func (t *Table) Insert(block *column.Block, dateColumn string) error {
	if err := t.checkColumns(block); err != nil {
		return err
	}

	datePos, err := block.Positions([]string{dateColumn})
	if err != nil {
		return err
	}
	groups, err := splitByMonth(block, datePos[0])
	if err != nil {
		return err
	}

	for _, g := range groups {
		if err := t.insertOneMonth(g); err != nil {
			return err
		}
	}
	return nil
}

// checkColumns verifies block carries exactly the table's declared
// columns, by name (spec §8 invariant 4 extended to the write path: a
// block offered to a table must match its schema).
func (t *Table) checkColumns(block *column.Block) error {
	if block.NumColumns() != len(t.columnNames) {
		return errors.Wrapf(ErrMismatchedColumns, "block has %d columns, table has %d", block.NumColumns(), len(t.columnNames))
	}
	for _, name := range t.columnNames {
		if _, err := block.ColumnByName(name); err != nil {
			return errors.Wrapf(ErrMismatchedColumns, "missing column %q", name)
		}
	}
	return nil
}

// splitByMonth partitions block's rows into contiguous runs sharing the
// same calendar month of their date column, preserving relative order so
// each run can be handed to Block.Slice directly.
func splitByMonth(block *column.Block, datePos int) ([]*column.Block, error) {
	dateCol := block.Column(datePos)
	rows := block.Rows()
	if rows == 0 {
		return nil, nil
	}
	dateVec, ok := dateCol.(*column.Vector[int32])
	if !ok {
		return nil, errors.Newf("granitetree: date column is not a Date column")
	}

	var groups []*column.Block
	begin := 0
	month := column.MonthKey(dateVec.Data()[0])
	for row := 1; row <= rows; row++ {
		var rowMonth int
		if row < rows {
			rowMonth = column.MonthKey(dateVec.Data()[row])
		}
		if row == rows || rowMonth != month {
			groups = append(groups, block.Slice(begin, row))
			if row < rows {
				begin = row
				month = rowMonth
			}
		}
	}
	return groups, nil
}

// insertOneMonth sorts, writes, and installs a single-month block as one
// new part.
func (t *Table) insertOneMonth(block *column.Block) error {
	keyPositions, err := block.Positions(t.primaryKey)
	if err != nil {
		return err
	}
	order := sortedRowOrder(block, keyPositions)
	sorted := block.Permute(order, 0)

	minDate, maxDate, err := dateBoundsOf(sorted, t.columnNames, t.columns)
	if err != nil {
		return err
	}
	id := t.allocateID()
	name := PartName{
		MinDate: minDate,
		MaxDate: maxDate,
		MinID:   id,
		MaxID:   id,
		Level:   0,
	}

	part, err := t.writePart(sorted, name, keyPositions)
	if err != nil {
		return err
	}

	tx := beginTransaction(t)
	defer tx.RollbackUnlessCommitted()
	tx.Add(part)
	if err := tx.Commit(); err != nil {
		return err
	}

	t.delayInsertIfNeeded(column.MonthKey(minDate))
	return nil
}

// dateBoundsOf finds the min/max value of the table's date-kind column in
// a sorted block; with no date column among the table's columns it falls
// back to month 0 (a table without a Date column is not this engine's
// target shape, but Insert should not panic on one).
func dateBoundsOf(block *column.Block, columnNames []string, columns []column.TypeInfo) (min, max int32, err error) {
	for i, typ := range columns {
		if typ.Kind != column.KindDate {
			continue
		}
		col, cerr := block.ColumnByName(columnNames[i])
		if cerr != nil {
			return 0, 0, cerr
		}
		vec, ok := col.(*column.Vector[int32])
		if !ok || vec.Len() == 0 {
			return 0, 0, nil
		}
		lo, hi := vec.Data()[0], vec.Data()[0]
		for _, d := range vec.Data() {
			if d < lo {
				lo = d
			}
			if d > hi {
				hi = d
			}
		}
		return lo, hi, nil
	}
	return 0, 0, nil
}

// sortedRowOrder returns a stable permutation of block's rows ordered by
// keyPositions, the write path's analogue of internal/stream.SortStream
// (spec §4.3 "sort each piece by the primary key expression").
func sortedRowOrder(block *column.Block, keyPositions []int) []int {
	order := make([]int, block.Rows())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		for _, pos := range keyPositions {
			cmp := block.Column(pos).CompareAt(a, block.Column(pos), b, column.NaNLast)
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
	return order
}

// writePart materializes sorted (already primary-key ordered) as a new
// part directory under a tmp-prefixed name, then renames it to its final
// PartName once every file and checksum is durable (spec §4.3 "write to a
// tmp-prefixed directory... rename once durable").
func (t *Table) writePart(sorted *column.Block, name PartName, keyPositions []int) (*Part, error) {
	tmpDir := filepath.Join(t.dataDir, fmt.Sprintf("tmp_insert_%s", name))
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "granitetree: create %s", tmpDir)
	}

	var checksums []ioutil.FileChecksum
	marks := make(map[string][]ioutil.Mark, len(t.columnNames))

	for i, colName := range t.columnNames {
		col := sorted.Column(i)
		m, err := writeColumnFiles(tmpDir, colName, col, t.settings.IndexGranularity, t.settings.Codec)
		if err != nil {
			return nil, err
		}
		marks[colName] = m
		for _, fname := range []string{colName + ".bin", colName + ".mrk"} {
			cs, err := ioutil.ChecksumFile(filepath.Join(tmpDir, fname))
			if err != nil {
				return nil, err
			}
			checksums = append(checksums, cs)
		}
	}

	keyCols := make([]column.Column, len(keyPositions))
	for i, pos := range keyPositions {
		keyCols[i] = sorted.Column(pos)
	}
	idx := BuildPrimaryIndex(keyCols, t.settings.IndexGranularity)
	idxPath := filepath.Join(tmpDir, primaryIndexFileName)
	if err := WritePrimaryIndex(idxPath, idx, sorted.Rows()); err != nil {
		return nil, err
	}
	cs, err := ioutil.ChecksumFile(idxPath)
	if err != nil {
		return nil, err
	}
	checksums = append(checksums, cs)

	columnsPath := filepath.Join(tmpDir, columnsFileName)
	if err := writeColumnsFile(columnsPath, t.columns, t.columnNames); err != nil {
		return nil, err
	}

	checksumsPath := filepath.Join(tmpDir, checksumsFileName)
	if err := ioutil.WriteChecksumsFile(checksumsPath, checksums); err != nil {
		return nil, err
	}

	finalDir := filepath.Join(t.dataDir, name.String())
	if err := os.Rename(tmpDir, finalDir); err != nil {
		return nil, errors.Wrapf(err, "granitetree: rename %s to %s", tmpDir, finalDir)
	}

	part := newOpenPart(name, finalDir, t.columns, t.primaryKey, t.settings.IndexGranularity)
	part.Marks = marks
	part.Checksums = checksums
	part.Rows = sorted.Rows()
	part.Index = idx
	return part, nil
}

// writeColumnFiles writes one column's .bin and .mrk pair: a mark is
// emitted every granularity rows, each mark's CompressedOffset pointing
// at the start of its frame and DecompressedOffset pointing at the
// row's offset within that frame's decompressed payload (spec glossary
// "Mark"; spec §6 ".bin # framed compressed blocks"). Within a frame,
// each row is written as uvarint(len)+GetDataAt(row) — the same
// length-prefixed convention primary.idx uses — so that variable-width
// columns (ByteString) decode the same way fixed-width ones do, without
// read.go needing a second per-Kind row-framing rule.
func writeColumnFiles(dir, colName string, col column.Column, granularity int, codec ioutil.Codec) ([]ioutil.Mark, error) {
	bw, err := ioutil.NewBufferedWriter(filepath.Join(dir, colName+".bin"))
	if err != nil {
		return nil, err
	}
	defer bw.Close()

	rows := col.Len()
	var marks []ioutil.Mark
	var compressedOffset uint64

	for begin := 0; begin < rows; begin += granularity {
		end := begin + granularity
		if end > rows {
			end = rows
		}
		payload := encodeRowRange(col, begin, end)
		marks = append(marks, ioutil.Mark{CompressedOffset: compressedOffset, DecompressedOffset: 0})
		n, err := ioutil.WriteFrame(bw, codec, payload)
		if err != nil {
			return nil, err
		}
		compressedOffset += uint64(n)
	}

	if err := bw.Sync(); err != nil {
		return nil, err
	}

	markPath := filepath.Join(dir, colName+".mrk")
	if err := ioutil.WriteMarksFile(markPath, marks); err != nil {
		return nil, err
	}
	return marks, nil
}

// encodeRowRange renders rows [begin, end) of col as
// uvarint(len)+GetDataAt(row) pairs back to back, the row framing
// read.go's decodeRowsInto inverts.
func encodeRowRange(col column.Column, begin, end int) []byte {
	var out []byte
	var scratch [binary.MaxVarintLen64]byte
	for row := begin; row < end; row++ {
		data := col.GetDataAt(row)
		n := binary.PutUvarint(scratch[:], uint64(len(data)))
		out = append(out, scratch[:n]...)
		out = append(out, data...)
	}
	return out
}

// delayInsertIfNeeded sleeps insert_delay_step^k milliseconds, k being how
// far the month's active part count sits above PartsToDelayInsert (spec
// §4.3 "parts_to_delay_insert... insert_delay_step^k backoff").
func (t *Table) delayInsertIfNeeded(month int) {
	n := len(t.ActivePartsInMonth(month))
	excess := n - t.settings.PartsToDelayInsert
	if excess <= 0 {
		return
	}
	delay := t.settings.InsertDelayStepMillis
	for k := 1; k < excess; k++ {
		delay *= t.settings.InsertDelayStepMillis
		if delay <= 0 || delay > 60_000 {
			delay = 60_000
			break
		}
	}
	time.Sleep(time.Duration(delay) * time.Millisecond)
}
