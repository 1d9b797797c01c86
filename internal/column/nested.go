package column

import "github.com/cockroachdb/errors"

// Nested represents NESTED(col1 T1, col2 T2, ...): a group of parallel
// array columns that share one offsets column (spec §3). It holds the
// named element columns directly, all indexed by one shared offsets
// slice; NewNested does not check that the element columns agree in
// length.
type Nested struct {
	names   []string
	columns []Column // each element column (not wrapped in Array)
	offsets []uint64
}

// NewNested builds a nested column from parallel (name, element-column)
// pairs. The element columns must start empty.
func NewNested(names []string, elems []Column) *Nested {
	return &Nested{names: names, columns: elems}
}

func (c *Nested) Kind() Kind { return KindNested }
func (c *Nested) Len() int   { return len(c.offsets) }
func (c *Nested) ByteSize() int {
	n := len(c.offsets) * 8
	for _, col := range c.columns {
		n += col.ByteSize()
	}
	return n
}

func (c *Nested) rowBounds(i int) (uint64, uint64) {
	if i == 0 {
		return 0, c.offsets[0]
	}
	return c.offsets[i-1], c.offsets[i]
}

func (c *Nested) InsertDefault() {
	last := uint64(0)
	if len(c.offsets) > 0 {
		last = c.offsets[len(c.offsets)-1]
	}
	c.offsets = append(c.offsets, last)
}

// AppendRow appends one nested row consuming rows [begin, end) from each
// sibling source column, in the same order as c.names.
func (c *Nested) AppendRow(sources []Column, begin, end int) error {
	if len(sources) != len(c.columns) {
		return errors.New("granitetree: nested column arity mismatch")
	}
	for i, src := range sources {
		c.columns[i].InsertRangeFrom(src, begin, end-begin)
	}
	c.offsets = append(c.offsets, uint64(c.columns[0].Len()))
	return nil
}

func (c *Nested) InsertFrom(other Column, i int) {
	o := other.(*Nested)
	s, e := o.rowBounds(i)
	_ = c.AppendRow(o.columns, int(s), int(e))
}

func (c *Nested) InsertRangeFrom(other Column, begin, length int) {
	o := other.(*Nested)
	for i := begin; i < begin+length; i++ {
		c.InsertFrom(o, i)
	}
}

func (c *Nested) GetDataAt(i int) []byte {
	s, e := c.rowBounds(i)
	var buf []byte
	for _, col := range c.columns {
		for j := s; j < e; j++ {
			buf = append(buf, col.GetDataAt(int(j))...)
			buf = append(buf, 0)
		}
	}
	return buf
}

func (c *Nested) cloneEmpty() *Nested {
	cols := make([]Column, len(c.columns))
	for i, col := range c.columns {
		cols[i] = newLikeColumn(col)
	}
	return NewNested(append([]string(nil), c.names...), cols)
}

func (c *Nested) Filter(mask []uint8) (Column, error) {
	if len(mask) != c.Len() {
		return nil, ErrSizeMismatch
	}
	out := c.cloneEmpty()
	for i, m := range mask {
		if m != 0 {
			out.InsertFrom(c, i)
		}
	}
	return out, nil
}

func (c *Nested) Permute(perm []int, limit int) Column {
	n := len(perm)
	if limit > 0 && limit < n {
		n = limit
	}
	out := c.cloneEmpty()
	for i := 0; i < n; i++ {
		out.InsertFrom(c, perm[i])
	}
	return out
}

func (c *Nested) Replicate(offsets []uint64) Column {
	out := c.cloneEmpty()
	var prev uint64
	for i, off := range offsets {
		count := off - prev
		prev = off
		for j := uint64(0); j < count; j++ {
			out.InsertFrom(c, i)
		}
	}
	return out
}

func (c *Nested) CompareAt(i int, other Column, j int, nanDir NaNDirection) int {
	checkSameKind(c, other)
	o := other.(*Nested)
	as, ae := c.rowBounds(i)
	bs, be := o.rowBounds(j)
	alen, blen := int(ae-as), int(be-bs)
	n := alen
	if blen < n {
		n = blen
	}
	for _, idx := range []int{0} {
		_ = idx
		for k := 0; k < n; k++ {
			if cmp := c.columns[0].CompareAt(int(as)+k, o.columns[0], int(bs)+k, nanDir); cmp != 0 {
				return cmp
			}
		}
	}
	switch {
	case alen < blen:
		return -1
	case alen > blen:
		return 1
	default:
		return 0
	}
}

func (c *Nested) Extremes() (min, max Column) {
	return c.cloneEmpty(), c.cloneEmpty()
}
