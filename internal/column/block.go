package column

import "github.com/cockroachdb/errors"

// ErrColumnNotFound is returned when a block is asked for a column name it
// does not carry.
var ErrColumnNotFound = errors.New("granitetree: column not found in block")

// TypeInfo is the minimal type metadata carried alongside a Column in a
// Block: enough to round-trip through the wire format and columns.txt
// without requiring a full type-factory lookup (spec §9 "Global state":
// the type factory itself lives in internal/mergetree/typefactory.go,
// outside the core Block/Column model).
type TypeInfo struct {
	Name string // e.g. "Int32", "String", "Array(UInt64)"
	Kind Kind
}

// constColumn materializes a single repeated value into a full column on
// demand, implementing spec §3's "Blocks may carry constant-columns...that
// must be materializable to a full column on demand".
type constColumn struct {
	value Column // length-1 column holding the repeated value
	size  int
}

func (c *constColumn) materialize() Column {
	out := newLikeColumn(c.value)
	for i := 0; i < c.size; i++ {
		out.InsertFrom(c.value, 0)
	}
	return out
}

// entry is one (name, type, column) triple of a Block. If constant is
// non-nil the column is logically a repeated scalar; Column lazily
// materializes it on first access that needs a real column (Filter,
// Permute, hashing, etc.).
type entry struct {
	name     string
	typ      TypeInfo
	column   Column
	constant *constColumn
}

// Block is an ordered list of (name, type, column) triples, all with the
// same row count. Blocks are the unit of streaming between operators
// (spec §3, §4.1).
type Block struct {
	entries []entry
	rows    int
}

// NewBlock creates an empty block with no columns and zero rows.
func NewBlock() *Block { return &Block{} }

// AddColumn appends a materialized column to the block. The first column
// added determines Rows(); subsequent columns must agree or AddColumn
// panics (a Block with mismatched column lengths is a construction bug,
// spec §8 invariant 4).
func (b *Block) AddColumn(name string, typ TypeInfo, col Column) {
	if len(b.entries) == 0 {
		b.rows = col.Len()
	} else if col.Len() != b.rows {
		panic(errors.Newf("granitetree: block column %q has %d rows, want %d", name, col.Len(), b.rows))
	}
	b.entries = append(b.entries, entry{name: name, typ: typ, column: col})
}

// AddConstColumn appends a constant column: value must be a length-1
// column holding the repeated scalar, and size must equal the block's row
// count convention (or establishes it, if this is the first column).
func (b *Block) AddConstColumn(name string, typ TypeInfo, value Column, size int) {
	if len(b.entries) == 0 {
		b.rows = size
	} else if size != b.rows {
		panic(errors.Newf("granitetree: block const column %q has %d rows, want %d", name, size, b.rows))
	}
	b.entries = append(b.entries, entry{name: name, typ: typ, constant: &constColumn{value: value, size: size}})
}

// Rows returns the block's row count.
func (b *Block) Rows() int { return b.rows }

// NumColumns returns the number of (name, type, column) entries.
func (b *Block) NumColumns() int { return len(b.entries) }

// Empty reports whether the block carries zero rows; an empty block
// signals end-of-stream per the block-stream protocol (spec §4.1).
func (b *Block) Empty() bool { return b.rows == 0 }

// ColumnName returns the name of the i-th column.
func (b *Block) ColumnName(i int) string { return b.entries[i].name }

// Type returns the type metadata of the i-th column.
func (b *Block) Type(i int) TypeInfo { return b.entries[i].typ }

// Column returns the i-th column, materializing it first if it is a
// constant column.
func (b *Block) Column(i int) Column {
	e := &b.entries[i]
	if e.constant != nil {
		e.column = e.constant.materialize()
		e.constant = nil
	}
	return e.column
}

// IsConst reports whether the i-th column is (still) represented as a
// constant.
func (b *Block) IsConst(i int) bool { return b.entries[i].constant != nil }

// indexOf returns the position of a column by name, or -1.
func (b *Block) indexOf(name string) int {
	for i := range b.entries {
		if b.entries[i].name == name {
			return i
		}
	}
	return -1
}

// ColumnByName looks up a column by name.
func (b *Block) ColumnByName(name string) (Column, error) {
	i := b.indexOf(name)
	if i < 0 {
		return nil, errors.Wrapf(ErrColumnNotFound, "column %q", name)
	}
	return b.Column(i), nil
}

// Positions resolves a list of column names to their positions, used once
// per query by operators that otherwise address columns positionally
// (Filter mask column, Aggregator key columns, Sort comparators).
func (b *Block) Positions(names []string) ([]int, error) {
	out := make([]int, len(names))
	for i, name := range names {
		pos := b.indexOf(name)
		if pos < 0 {
			return nil, errors.Wrapf(ErrColumnNotFound, "column %q", name)
		}
		out[i] = pos
	}
	return out, nil
}

// CloneEmpty returns a new block with the same columns (name, type) but
// zero rows, useful as an accumulator for Filter/Permute/Replicate-style
// operators that build their output column-by-column.
func (b *Block) CloneEmpty() *Block {
	out := &Block{entries: make([]entry, len(b.entries))}
	for i, e := range b.entries {
		col := e.column
		if e.constant != nil {
			col = e.constant.value
		}
		out.entries[i] = entry{name: e.name, typ: e.typ, column: newLikeColumn(col)}
	}
	return out
}

// Filter applies a UInt8 mask in lockstep across every column, returning a
// new block. Fails with ErrSizeMismatch if len(mask) != Rows() (spec §4.1
// Filter operator contract, §8 invariant 5 "filter idempotence").
func (b *Block) Filter(mask []uint8) (*Block, error) {
	if len(mask) != b.rows {
		return nil, ErrSizeMismatch
	}
	out := &Block{entries: make([]entry, len(b.entries))}
	rows := 0
	for _, m := range mask {
		if m != 0 {
			rows++
		}
	}
	for i, e := range b.entries {
		col := b.Column(i)
		filtered, err := col.Filter(mask)
		if err != nil {
			return nil, err
		}
		out.entries[i] = entry{name: e.name, typ: e.typ, column: filtered}
	}
	out.rows = rows
	return out, nil
}

// Permute reorders (and optionally truncates to limit) every column
// according to perm, used by Sort to materialize its final permutation.
func (b *Block) Permute(perm []int, limit int) *Block {
	n := len(perm)
	if limit > 0 && limit < n {
		n = limit
	}
	out := &Block{entries: make([]entry, len(b.entries)), rows: n}
	for i, e := range b.entries {
		out.entries[i] = entry{name: e.name, typ: e.typ, column: b.Column(i).Permute(perm, limit)}
	}
	return out
}

// Replicate expands every column according to offsets (row i repeated
// offsets[i]-offsets[i-1] times).
func (b *Block) Replicate(offsets []uint64) *Block {
	rows := 0
	if len(offsets) > 0 {
		rows = int(offsets[len(offsets)-1])
	}
	out := &Block{entries: make([]entry, len(b.entries)), rows: rows}
	for i, e := range b.entries {
		out.entries[i] = entry{name: e.name, typ: e.typ, column: b.Column(i).Replicate(offsets)}
	}
	return out
}

// AppendBlock appends every row of other to the receiver in place,
// column-by-column, and advances Rows() accordingly. other must have the
// same columns, in the same order, as the receiver. Used to concatenate
// accumulated blocks before a pipeline-breaking permute (Sort).
func (b *Block) AppendBlock(other *Block) error {
	if other.NumColumns() != len(b.entries) {
		return errors.New("granitetree: AppendBlock column count mismatch")
	}
	for i := range b.entries {
		b.Column(i).InsertRangeFrom(other.Column(i), 0, other.Rows())
	}
	b.rows += other.Rows()
	return nil
}

// Slice returns the sub-block of rows [begin, end), used by the write path
// to carve a block into per-month sub-blocks.
func (b *Block) Slice(begin, end int) *Block {
	out := &Block{entries: make([]entry, len(b.entries)), rows: end - begin}
	for i, e := range b.entries {
		col := newLikeColumn(b.Column(i))
		col.InsertRangeFrom(b.Column(i), begin, end-begin)
		out.entries[i] = entry{name: e.name, typ: e.typ, column: col}
	}
	return out
}
