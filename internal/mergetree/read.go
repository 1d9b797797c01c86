package mergetree

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/Henry2SS/granitetree/internal/column"
	"github.com/Henry2SS/granitetree/internal/ioutil"
	"github.com/Henry2SS/granitetree/internal/stream"
)

// RangesInPart selects the mark ranges of p that pred cannot rule out,
// the read path's entry point into the primary index (spec §4.3 "select
// ranges by walking the sparse primary index... splitting each candidate
// range"). A nil pred selects the whole part.
func RangesInPart(p *Part, pred RangePredicate, coarseGranularity int) []MarkRange {
	return SelectRanges(p.Index, pred, coarseGranularity)
}

// OpenPartSource builds a Source that reads columnNames from p restricted
// to ranges, in mark order, one block per mark range (spec §4.1 "Source
// over a MergeTree part range"). The part is Acquired for the life of the
// returned Source and Released on cancellation or exhaustion.
func OpenPartSource(p *Part, columnNames []string, ranges []MarkRange) (stream.Source, error) {
	p.Acquire()
	released := false
	release := func() {
		if !released {
			released = true
			p.Release()
		}
	}

	readers := make([]*columnReader, len(columnNames))
	for i, name := range columnNames {
		r, err := newColumnReader(p, name)
		if err != nil {
			release()
			closeReaders(readers[:i])
			return nil, err
		}
		readers[i] = r
	}

	pos := 0
	readFn := func() (*column.Block, error) {
		if pos >= len(ranges) {
			return column.NewBlock(), nil
		}
		r := ranges[pos]
		pos++
		block := column.NewBlock()
		for i, name := range columnNames {
			col, err := readers[i].readRange(r)
			if err != nil {
				return nil, err
			}
			block.AddColumn(name, p.typeOf(name), col)
		}
		return block, nil
	}
	suffixFn := func() error {
		release()
		closeReaders(readers)
		return nil
	}
	return stream.NewFuncSource(readFn, nil, suffixFn, func() {
		release()
		closeReaders(readers)
	}), nil
}

func closeReaders(readers []*columnReader) {
	for _, r := range readers {
		if r != nil {
			r.Close()
		}
	}
}

// typeOf resolves a column's TypeInfo by name, used when materializing a
// read-path block (Part.Columns/PrimaryKey carry types and key names but
// not a name->type index, since a part rarely looks up more than a
// handful of columns per query).
func (p *Part) typeOf(name string) column.TypeInfo {
	for i, n := range p.columnNames() {
		if n == name {
			return p.Columns[i]
		}
	}
	return column.TypeInfo{}
}

// columnNames reconstructs the column-name order loaded from columns.txt;
// Part itself only stores Columns ([]TypeInfo) and the part's own
// directory carries the authoritative name list, so this re-reads it
// rather than duplicating storage on every Part. Cheap: columns.txt is a
// handful of short lines.
func (p *Part) columnNames() []string {
	names, _, err := readColumnsFile(filepath.Join(p.Dir, columnsFileName))
	if err != nil {
		return nil
	}
	return names
}

// columnReader decodes one column's .bin file mark-range by mark-range,
// using random access seeks keyed by each mark's CompressedOffset.
type columnReader struct {
	f     *os.File
	marks []ioutil.Mark
	proto column.Column // zero-length column of the right concrete type
}

func newColumnReader(p *Part, name string) (*columnReader, error) {
	typ := p.typeOf(name)
	proto, err := newColumnForType(typ)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(p.Dir, name+".bin"))
	if err != nil {
		return nil, errors.Wrapf(err, "granitetree: open column %s in part %s", name, p.Name)
	}
	return &columnReader{f: f, marks: p.Marks[name], proto: proto}, nil
}

func (r *columnReader) Close() {
	if r.f != nil {
		_ = r.f.Close()
	}
}

// readRange decodes the frames spanning marks [rng.Begin, rng.End) and
// returns their rows as one freshly built column, since a MarkRange's
// boundaries always line up with frame boundaries (one frame per mark,
// written by writeColumnFiles).
func (r *columnReader) readRange(rng MarkRange) (column.Column, error) {
	out := column.NewLike(r.proto)
	if rng.Begin >= len(r.marks) {
		return out, nil
	}
	end := rng.End
	if end > len(r.marks) {
		end = len(r.marks)
	}
	if _, err := r.f.Seek(int64(r.marks[rng.Begin].CompressedOffset), io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "granitetree: seek column file")
	}
	for i := rng.Begin; i < end; i++ {
		payload, err := ioutil.ReadFrame(r.f)
		if err != nil {
			return nil, errors.Wrapf(err, "granitetree: read frame %d", i)
		}
		if err := decodeRowsInto(out, payload); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// decodeRowsInto appends every uvarint(len)+payload row encodeRowRange
// wrote into data, onto col.
func decodeRowsInto(col column.Column, data []byte) error {
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		length, err := binary.ReadUvarint(r)
		if err != nil {
			return errors.Wrap(err, "granitetree: malformed row framing")
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return errors.Wrap(err, "granitetree: malformed row framing")
		}
		appendRawRow(col, buf)
	}
	return nil
}
