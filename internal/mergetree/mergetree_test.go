package mergetree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Henry2SS/granitetree/internal/column"
	"github.com/Henry2SS/granitetree/internal/ioutil"
)

func dateCol(days ...int32) column.Column {
	return column.NewVectorFromSlice[int32](column.KindDate, days)
}

func int64Col(vals ...int64) column.Column {
	return column.NewVectorFromSlice[int64](column.KindInt64, vals)
}

func strCol(vals ...string) column.Column {
	c := column.NewByteString()
	for _, v := range vals {
		c.Append([]byte(v))
	}
	return c
}

func blockOf(names []string, cols []column.Column) *column.Block {
	b := column.NewBlock()
	for i, name := range names {
		b.AddColumn(name, column.TypeInfo{Name: nameForKind(cols[i].Kind()), Kind: cols[i].Kind()}, cols[i])
	}
	return b
}

func nameForKind(k column.Kind) string {
	switch k {
	case column.KindDate:
		return "Date"
	case column.KindInt64:
		return "Int64"
	case column.KindString:
		return "String"
	default:
		return "Unknown"
	}
}

func newTestTable(t *testing.T, granularity int) *Table {
	t.Helper()
	dir := t.TempDir()
	settings := DefaultSettings()
	settings.IndexGranularity = granularity
	settings.CoarseIndexGranularity = 2
	settings.Codec = ioutil.CodecNone
	table := NewTable(
		dir,
		[]string{"d", "id", "v", "name"},
		[]column.TypeInfo{
			{Name: "Date", Kind: column.KindDate},
			{Name: "Int64", Kind: column.KindInt64},
			{Name: "Int64", Kind: column.KindInt64},
			{Name: "String", Kind: column.KindString},
		},
		[]string{"d", "id"},
		ModeOrdinary,
		"",
		settings,
	)
	require.NoError(t, table.Open())
	return table
}

// sameDayBlock builds a 100-row, single-day, pre-sorted-by-id block, the
// fixture for scenario S4 (MergeTree roundtrip: write, reopen, read back).
func sameDayBlock(day int32, n int) *column.Block {
	dates := make([]int32, n)
	ids := make([]int64, n)
	vals := make([]int64, n)
	names := make([]string, n)
	for i := 0; i < n; i++ {
		dates[i] = day
		ids[i] = int64(i)
		vals[i] = int64(i * 10)
		names[i] = "row"
	}
	nameColumn := column.NewByteString()
	for _, s := range names {
		nameColumn.Append([]byte(s))
	}
	return blockOf([]string{"d", "id", "v", "name"}, []column.Column{
		column.NewVectorFromSlice[int32](column.KindDate, dates),
		column.NewVectorFromSlice[int64](column.KindInt64, ids),
		column.NewVectorFromSlice[int64](column.KindInt64, vals),
		nameColumn,
	})
}

func TestInsertAndReadRoundTrip(t *testing.T) {
	table := newTestTable(t, 10)
	day := column.DateFromTime(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	block := sameDayBlock(day, 100)

	require.NoError(t, table.Insert(block, "d"))

	active := table.ActiveParts()
	require.Len(t, active, 1)
	part := active[0]
	defer part.Release()

	require.Equal(t, 100, part.Rows)
	require.NoError(t, ioutil.Verify(part.Dir, part.Checksums))

	ranges := RangesInPart(part, nil, table.settings.CoarseIndexGranularity)
	require.NotEmpty(t, ranges)

	src, err := OpenPartSource(part, []string{"d", "id", "v", "name"}, ranges)
	require.NoError(t, err)
	require.NoError(t, src.ReadPrefix())

	gotIDs := make([]int64, 0, 100)
	for {
		b, err := src.Read()
		require.NoError(t, err)
		if b.Empty() {
			break
		}
		idCol := b.Column(1).(*column.Vector[int64])
		gotIDs = append(gotIDs, idCol.Data()...)
	}
	require.NoError(t, src.ReadSuffix())
	require.Len(t, gotIDs, 100)
	for i, id := range gotIDs {
		require.Equal(t, int64(i), id)
	}
}

func TestInsertSplitsByMonth(t *testing.T) {
	table := newTestTable(t, 10)
	march := column.DateFromTime(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	april := column.DateFromTime(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	block := blockOf([]string{"d", "id", "v", "name"}, []column.Column{
		dateCol(march, march, april, april),
		int64Col(0, 1, 2, 3),
		int64Col(10, 20, 30, 40),
		strCol("a", "b", "c", "d"),
	})

	require.NoError(t, table.Insert(block, "d"))

	active := table.ActiveParts()
	defer func() {
		for _, p := range active {
			p.Release()
		}
	}()
	require.Len(t, active, 2)
	total := 0
	for _, p := range active {
		total += p.Rows
	}
	require.Equal(t, 4, total)
}

func TestPartNameRoundTrip(t *testing.T) {
	day := column.DateFromTime(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	name := PartName{MinDate: day, MaxDate: day, MinID: 5, MaxID: 9, Level: 1}
	parsed, err := ParsePartName(name.String())
	require.NoError(t, err)
	require.Equal(t, name, parsed)
}

func TestPartOverlapAndCover(t *testing.T) {
	a := PartName{MinID: 0, MaxID: 9}
	b := PartName{MinID: 10, MaxID: 19}
	c := PartName{MinID: 5, MaxID: 14}
	require.False(t, a.Overlaps(b))
	require.True(t, a.Overlaps(c))
	require.True(t, b.Overlaps(c))

	merged := PartName{MinID: 0, MaxID: 19}
	require.True(t, merged.Covers(a))
	require.True(t, merged.Covers(b))
	require.False(t, a.Covers(merged))
}

// TestMergeOrdinaryCombinesParts mirrors scenario S5: three adjacent
// same-month parts are merged into one, preserving every row in primary
// key order.
func TestMergeOrdinaryCombinesParts(t *testing.T) {
	table := newTestTable(t, 10)
	day := column.DateFromTime(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))

	for base := 0; base < 30; base += 10 {
		dates := make([]int32, 10)
		ids := make([]int64, 10)
		vals := make([]int64, 10)
		names := make([]string, 10)
		for i := 0; i < 10; i++ {
			dates[i] = day
			ids[i] = int64(base + i)
			vals[i] = int64(base + i)
			names[i] = "row"
		}
		nameColumn := column.NewByteString()
		for _, s := range names {
			nameColumn.Append([]byte(s))
		}
		block := blockOf([]string{"d", "id", "v", "name"}, []column.Column{
			column.NewVectorFromSlice[int32](column.KindDate, dates),
			column.NewVectorFromSlice[int64](column.KindInt64, ids),
			column.NewVectorFromSlice[int64](column.KindInt64, vals),
			nameColumn,
		})
		require.NoError(t, table.Insert(block, "d"))
	}

	active := table.ActiveParts()
	require.Len(t, active, 3)

	merged, err := table.Merge(active)
	require.NoError(t, err)
	require.Equal(t, 30, merged.Rows)
	require.Equal(t, 1, merged.Name.Level)

	stillActive := table.ActiveParts()
	defer func() {
		for _, p := range stillActive {
			p.Release()
		}
	}()
	require.Len(t, stillActive, 1)
	require.Equal(t, merged.Name, stillActive[0].Name)
}

func TestPickMergeSelectsMultiPartContiguousGroup(t *testing.T) {
	table := newTestTable(t, 10)
	day := column.DateFromTime(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))

	for base := 0; base < 50; base += 10 {
		block := blockOf([]string{"d", "id", "v", "name"}, []column.Column{
			dateCol(day, day, day, day, day),
			int64Col(int64(base), int64(base+1), int64(base+2), int64(base+3), int64(base+4)),
			int64Col(1, 2, 3, 4, 5),
			strCol("a", "b", "c", "d", "e"),
		})
		require.NoError(t, table.Insert(block, "d"))
	}

	group := table.PickMerge(time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC), nil)
	require.NotNil(t, group)
	for _, p := range group {
		p.Release()
	}
	require.GreaterOrEqual(t, len(group), 2)
}

// TestMergeSummingSumsEveryNumericKind covers the narrower integer/float
// widths isSummable admits (Int8, Int16, UInt8, UInt16, UInt32, Float32)
// that appendSummedColumn's type switch once silently skipped (keeping the
// group's last row instead of summing). Two parts share the same "key"
// value so emitSummed collapses them into one row per key.
func TestMergeSummingSumsEveryNumericKind(t *testing.T) {
	dir := t.TempDir()
	settings := DefaultSettings()
	settings.IndexGranularity = 10
	settings.CoarseIndexGranularity = 2
	settings.Codec = ioutil.CodecNone
	columnNames := []string{"d", "key", "m_i8", "m_i16", "m_u8", "m_u16", "m_u32", "m_f32", "name"}
	table := NewTable(
		dir,
		columnNames,
		[]column.TypeInfo{
			{Name: "Date", Kind: column.KindDate},
			{Name: "Int64", Kind: column.KindInt64},
			{Name: "Int8", Kind: column.KindInt8},
			{Name: "Int16", Kind: column.KindInt16},
			{Name: "UInt8", Kind: column.KindUint8},
			{Name: "UInt16", Kind: column.KindUint16},
			{Name: "UInt32", Kind: column.KindUint32},
			{Name: "Float32", Kind: column.KindFloat32},
			{Name: "String", Kind: column.KindString},
		},
		[]string{"d", "key"},
		ModeSumming,
		"",
		settings,
	)
	require.NoError(t, table.Open())
	day := column.DateFromTime(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))

	insert := func(i8 int8, i16 int16, u8 uint8, u16 uint16, u32 uint32, f32 float32, name string) {
		block := blockOf(columnNames, []column.Column{
			dateCol(day),
			int64Col(1),
			column.NewVectorFromSlice[int8](column.KindInt8, []int8{i8}),
			column.NewVectorFromSlice[int16](column.KindInt16, []int16{i16}),
			column.NewVectorFromSlice[uint8](column.KindUint8, []uint8{u8}),
			column.NewVectorFromSlice[uint16](column.KindUint16, []uint16{u16}),
			column.NewVectorFromSlice[uint32](column.KindUint32, []uint32{u32}),
			column.NewVectorFromSlice[float32](column.KindFloat32, []float32{f32}),
			strCol(name),
		})
		require.NoError(t, table.Insert(block, "d"))
	}
	insert(1, 100, 2, 200, 1000, 1.5, "first")
	insert(3, 300, 4, 400, 2000, 2.5, "second")

	active := table.ActiveParts()
	require.Len(t, active, 2)

	merged, err := table.Merge(active)
	require.NoError(t, err)
	require.Equal(t, 1, merged.Rows)

	full, err := merged.readColumnFull("m_i8")
	require.NoError(t, err)
	require.Equal(t, int8(4), full.(*column.Vector[int8]).Data()[0])

	full, err = merged.readColumnFull("m_i16")
	require.NoError(t, err)
	require.Equal(t, int16(400), full.(*column.Vector[int16]).Data()[0])

	full, err = merged.readColumnFull("m_u8")
	require.NoError(t, err)
	require.Equal(t, uint8(6), full.(*column.Vector[uint8]).Data()[0])

	full, err = merged.readColumnFull("m_u16")
	require.NoError(t, err)
	require.Equal(t, uint16(600), full.(*column.Vector[uint16]).Data()[0])

	full, err = merged.readColumnFull("m_u32")
	require.NoError(t, err)
	require.Equal(t, uint32(3000), full.(*column.Vector[uint32]).Data()[0])

	full, err = merged.readColumnFull("m_f32")
	require.NoError(t, err)
	require.Equal(t, float32(4), full.(*column.Vector[float32]).Data()[0])
}
