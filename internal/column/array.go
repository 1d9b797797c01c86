package column

// Array represents ARRAY(T): a values column plus an offsets column where
// offsets[i] is the end of the i-th row within values (spec §3).
type Array struct {
	values  Column
	offsets []uint64
}

// NewArray wraps a (typically empty) values column as an array column.
func NewArray(values Column) *Array { return &Array{values: values} }

func (c *Array) Kind() Kind { return KindArray }
func (c *Array) Len() int   { return len(c.offsets) }
func (c *Array) ByteSize() int {
	return c.values.ByteSize() + len(c.offsets)*8
}

func (c *Array) rowBounds(i int) (uint64, uint64) {
	if i == 0 {
		return 0, c.offsets[0]
	}
	return c.offsets[i-1], c.offsets[i]
}

func (c *Array) InsertDefault() {
	last := uint64(0)
	if len(c.offsets) > 0 {
		last = c.offsets[len(c.offsets)-1]
	}
	c.offsets = append(c.offsets, last)
}

// AppendRow appends one array row whose elements are rows [begin, end) of
// the given values column.
func (c *Array) AppendRow(values Column, begin, end int) {
	c.values.InsertRangeFrom(values, begin, end-begin)
	c.offsets = append(c.offsets, uint64(c.values.Len()))
}

func (c *Array) InsertFrom(other Column, i int) {
	o := other.(*Array)
	s, e := o.rowBounds(i)
	c.AppendRow(o.values, int(s), int(e))
}

func (c *Array) InsertRangeFrom(other Column, begin, length int) {
	o := other.(*Array)
	for i := begin; i < begin+length; i++ {
		c.InsertFrom(o, i)
	}
}

// GetDataAt is not well-defined for a nested array row as a single byte
// span in general; it returns the raw element range as a best-effort
// encoding used only for hashing purposes (Distinct over array columns).
func (c *Array) GetDataAt(i int) []byte {
	s, e := c.rowBounds(i)
	var buf []byte
	for j := s; j < e; j++ {
		buf = append(buf, c.values.GetDataAt(int(j))...)
		buf = append(buf, 0)
	}
	return buf
}

func (c *Array) Filter(mask []uint8) (Column, error) {
	if len(mask) != c.Len() {
		return nil, ErrSizeMismatch
	}
	out := NewArray(newLikeColumn(c.values))
	for i, m := range mask {
		if m != 0 {
			out.InsertFrom(c, i)
		}
	}
	return out, nil
}

func (c *Array) Permute(perm []int, limit int) Column {
	n := len(perm)
	if limit > 0 && limit < n {
		n = limit
	}
	out := NewArray(newLikeColumn(c.values))
	for i := 0; i < n; i++ {
		out.InsertFrom(c, perm[i])
	}
	return out
}

func (c *Array) Replicate(offsets []uint64) Column {
	out := NewArray(newLikeColumn(c.values))
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

func (c *Array) CompareAt(i int, other Column, j int, nanDir NaNDirection) int {
	checkSameKind(c, other)
	o := other.(*Array)
	as, ae := c.rowBounds(i)
	bs, be := o.rowBounds(j)
	alen, blen := int(ae-as), int(be-bs)
	n := alen
	if blen < n {
		n = blen
	}
	for k := 0; k < n; k++ {
		if cmp := c.values.CompareAt(int(as)+k, o.values, int(bs)+k, nanDir); cmp != 0 {
			return cmp
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

func (c *Array) Extremes() (min, max Column) {
	// Arrays have no natural scalar extreme; return empty columns of the
	// same shape, mirroring ClickHouse's treatment of non-orderable types.
	return NewArray(newLikeColumn(c.values)), NewArray(newLikeColumn(c.values))
}

// NewLike returns a new, empty column of the same concrete type as proto.
// Exported for callers outside this package (e.g. internal/agg's key
// reconstruction) that need to build a column whose element type mirrors
// an existing one.
func NewLike(proto Column) Column { return newLikeColumn(proto) }

// Snapshot returns a length-1 column holding a copy of row i of proto,
// used by the Aggregator to remember a group's key so it can rebuild the
// key columns at result-production time without holding the whole input
// block alive.
func Snapshot(proto Column, i int) Column {
	out := newLikeColumn(proto)
	out.InsertFrom(proto, i)
	return out
}

// newLikeColumn returns a new, empty column of the same concrete type as
// proto. Used whenever an operator needs to build an output column whose
// element type mirrors an existing column (Filter/Permute/Replicate on
// Array and Nested).
func newLikeColumn(proto Column) Column {
	switch p := proto.(type) {
	case *Vector[int8]:
		return NewVector[int8](p.kind)
	case *Vector[int16]:
		return NewVector[int16](p.kind)
	case *Vector[int32]:
		return NewVector[int32](p.kind)
	case *Vector[int64]:
		return NewVector[int64](p.kind)
	case *Vector[uint8]:
		return NewVector[uint8](p.kind)
	case *Vector[uint16]:
		return NewVector[uint16](p.kind)
	case *Vector[uint32]:
		return NewVector[uint32](p.kind)
	case *Vector[uint64]:
		return NewVector[uint64](p.kind)
	case *Vector[float32]:
		return NewVector[float32](p.kind)
	case *Vector[float64]:
		return NewVector[float64](p.kind)
	case *ByteString:
		return NewByteString()
	case *FixedString:
		return NewFixedString(p.Width)
	case *Array:
		return NewArray(newLikeColumn(p.values))
	default:
		panic("granitetree: unsupported element type for array/nested column")
	}
}
