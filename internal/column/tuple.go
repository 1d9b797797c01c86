package column

// Tuple represents TUPLE(T1, T2, ...) as parallel columns of possibly
// different types sharing one row count (spec §3).
type Tuple struct {
	columns []Column
}

// NewTuple builds a tuple column from its element columns, which must all
// start with the same length.
func NewTuple(elems []Column) *Tuple { return &Tuple{columns: elems} }

// Elements exposes the underlying parallel columns, e.g. for key-column
// extraction in the KEYS_128 aggregation method.
func (c *Tuple) Elements() []Column { return c.columns }

func (c *Tuple) Kind() Kind { return KindTuple }
func (c *Tuple) Len() int {
	if len(c.columns) == 0 {
		return 0
	}
	return c.columns[0].Len()
}
func (c *Tuple) ByteSize() int {
	n := 0
	for _, col := range c.columns {
		n += col.ByteSize()
	}
	return n
}

func (c *Tuple) InsertDefault() {
	for _, col := range c.columns {
		col.InsertDefault()
	}
}

func (c *Tuple) InsertFrom(other Column, i int) {
	o := other.(*Tuple)
	for k, col := range c.columns {
		col.InsertFrom(o.columns[k], i)
	}
}

func (c *Tuple) InsertRangeFrom(other Column, begin, length int) {
	o := other.(*Tuple)
	for k, col := range c.columns {
		col.InsertRangeFrom(o.columns[k], begin, length)
	}
}

func (c *Tuple) GetDataAt(i int) []byte {
	var buf []byte
	for _, col := range c.columns {
		buf = append(buf, col.GetDataAt(i)...)
		buf = append(buf, 0)
	}
	return buf
}

func (c *Tuple) cloneEmpty() *Tuple {
	cols := make([]Column, len(c.columns))
	for i, col := range c.columns {
		cols[i] = newLikeColumn(col)
	}
	return NewTuple(cols)
}

func (c *Tuple) Filter(mask []uint8) (Column, error) {
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

func (c *Tuple) Permute(perm []int, limit int) Column {
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

func (c *Tuple) Replicate(offsets []uint64) Column {
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

func (c *Tuple) CompareAt(i int, other Column, j int, nanDir NaNDirection) int {
	checkSameKind(c, other)
	o := other.(*Tuple)
	for k, col := range c.columns {
		if cmp := col.CompareAt(i, o.columns[k], j, nanDir); cmp != 0 {
			return cmp
		}
	}
	return 0
}

func (c *Tuple) Extremes() (min, max Column) {
	return c.cloneEmpty(), c.cloneEmpty()
}
