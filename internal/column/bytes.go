package column

// ByteString is a variable-length byte-string column: a values buffer plus
// end-offsets, analogous to ClickHouse's ColumnString (spec §3:
// "variable-length byte string").
type ByteString struct {
	chars   []byte
	offsets []uint64 // offsets[i] is the end of row i's data in chars
}

// NewByteString creates an empty variable-length byte-string column.
func NewByteString() *ByteString { return &ByteString{} }

func (c *ByteString) Kind() Kind { return KindString }
func (c *ByteString) Len() int   { return len(c.offsets) }
func (c *ByteString) ByteSize() int {
	return len(c.chars) + len(c.offsets)*8
}

func (c *ByteString) rowBounds(i int) (start, end uint64) {
	if i == 0 {
		return 0, c.offsets[0]
	}
	return c.offsets[i-1], c.offsets[i]
}

func (c *ByteString) InsertDefault() {
	last := uint64(0)
	if len(c.offsets) > 0 {
		last = c.offsets[len(c.offsets)-1]
	}
	c.offsets = append(c.offsets, last)
}

// Append adds one row with the given bytes, copying them into the shared
// buffer.
func (c *ByteString) Append(val []byte) {
	c.chars = append(c.chars, val...)
	c.offsets = append(c.offsets, uint64(len(c.chars)))
}

func (c *ByteString) InsertFrom(other Column, i int) {
	o := other.(*ByteString)
	start, end := o.rowBounds(i)
	c.Append(o.chars[start:end])
}

func (c *ByteString) InsertRangeFrom(other Column, begin, length int) {
	o := other.(*ByteString)
	for i := begin; i < begin+length; i++ {
		c.InsertFrom(o, i)
	}
}

func (c *ByteString) GetDataAt(i int) []byte {
	start, end := c.rowBounds(i)
	return c.chars[start:end]
}

func (c *ByteString) Filter(mask []uint8) (Column, error) {
	if len(mask) != c.Len() {
		return nil, ErrSizeMismatch
	}
	out := NewByteString()
	for i, m := range mask {
		if m != 0 {
			out.InsertFrom(c, i)
		}
	}
	return out, nil
}

func (c *ByteString) Permute(perm []int, limit int) Column {
	n := len(perm)
	if limit > 0 && limit < n {
		n = limit
	}
	out := NewByteString()
	for i := 0; i < n; i++ {
		out.InsertFrom(c, perm[i])
	}
	return out
}

func (c *ByteString) Replicate(offsets []uint64) Column {
	out := NewByteString()
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

func (c *ByteString) CompareAt(i int, other Column, j int, _ NaNDirection) int {
	checkSameKind(c, other)
	o := other.(*ByteString)
	as, ae := c.rowBounds(i)
	bs, be := o.rowBounds(j)
	a, b := c.chars[as:ae], o.chars[bs:be]
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for k := 0; k < n; k++ {
		if a[k] != b[k] {
			if a[k] < b[k] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func (c *ByteString) Extremes() (min, max Column) {
	minOut, maxOut := NewByteString(), NewByteString()
	if c.Len() == 0 {
		return minOut, maxOut
	}
	minIdx, maxIdx := 0, 0
	for i := 1; i < c.Len(); i++ {
		if c.CompareAt(i, c, minIdx, NaNLast) < 0 {
			minIdx = i
		}
		if c.CompareAt(i, c, maxIdx, NaNLast) > 0 {
			maxIdx = i
		}
	}
	minOut.InsertFrom(c, minIdx)
	maxOut.InsertFrom(c, maxIdx)
	return minOut, maxOut
}

// FixedString is a fixed-length byte-string column: every row occupies
// exactly Width bytes (spec §3: "fixed-length byte string").
type FixedString struct {
	Width int
	data  []byte
}

// NewFixedString creates an empty fixed-length byte-string column of the
// given per-row width.
func NewFixedString(width int) *FixedString { return &FixedString{Width: width} }

func (c *FixedString) Kind() Kind      { return KindFixedString }
func (c *FixedString) Len() int        { return len(c.data) / c.Width }
func (c *FixedString) ByteSize() int   { return len(c.data) }
func (c *FixedString) InsertDefault()  { c.data = append(c.data, make([]byte, c.Width)...) }
func (c *FixedString) Append(v []byte) {
	row := make([]byte, c.Width)
	copy(row, v)
	c.data = append(c.data, row...)
}

func (c *FixedString) InsertFrom(other Column, i int) {
	o := other.(*FixedString)
	c.data = append(c.data, o.data[i*c.Width:(i+1)*c.Width]...)
}

func (c *FixedString) InsertRangeFrom(other Column, begin, length int) {
	o := other.(*FixedString)
	c.data = append(c.data, o.data[begin*c.Width:(begin+length)*c.Width]...)
}

func (c *FixedString) GetDataAt(i int) []byte {
	return c.data[i*c.Width : (i+1)*c.Width]
}

func (c *FixedString) Filter(mask []uint8) (Column, error) {
	if len(mask) != c.Len() {
		return nil, ErrSizeMismatch
	}
	out := NewFixedString(c.Width)
	for i, m := range mask {
		if m != 0 {
			out.InsertFrom(c, i)
		}
	}
	return out, nil
}

func (c *FixedString) Permute(perm []int, limit int) Column {
	n := len(perm)
	if limit > 0 && limit < n {
		n = limit
	}
	out := NewFixedString(c.Width)
	for i := 0; i < n; i++ {
		out.InsertFrom(c, perm[i])
	}
	return out
}

func (c *FixedString) Replicate(offsets []uint64) Column {
	out := NewFixedString(c.Width)
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

func (c *FixedString) CompareAt(i int, other Column, j int, _ NaNDirection) int {
	checkSameKind(c, other)
	o := other.(*FixedString)
	a := c.data[i*c.Width : (i+1)*c.Width]
	b := o.data[j*o.Width : (j+1)*o.Width]
	for k := range a {
		if a[k] != b[k] {
			if a[k] < b[k] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (c *FixedString) Extremes() (min, max Column) {
	minOut, maxOut := NewFixedString(c.Width), NewFixedString(c.Width)
	if c.Len() == 0 {
		return minOut, maxOut
	}
	minIdx, maxIdx := 0, 0
	for i := 1; i < c.Len(); i++ {
		if c.CompareAt(i, c, minIdx, NaNLast) < 0 {
			minIdx = i
		}
		if c.CompareAt(i, c, maxIdx, NaNLast) > 0 {
			maxIdx = i
		}
	}
	minOut.InsertFrom(c, minIdx)
	maxOut.InsertFrom(c, maxIdx)
	return minOut, maxOut
}
