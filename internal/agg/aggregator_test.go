package agg

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Henry2SS/granitetree/internal/column"
)

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
		b.AddColumn(name, column.TypeInfo{Name: name, Kind: cols[i].Kind()}, cols[i])
	}
	return b
}

// TestWithoutKeyCountShortcut exercises WITHOUT_KEY (no GROUP BY) with
// count(): the AddDelta shortcut should credit the whole block at once.
func TestWithoutKeyCountShortcut(t *testing.T) {
	a := NewAggregator(Config{
		Funcs: []Function{CountFunc{}},
	})
	block := blockOf([]string{"v"}, []column.Column{int64Col(1, 2, 3, 4)})
	require.NoError(t, a.Update(block))

	out := a.Result(true)
	require.Equal(t, 1, out.Rows())
	require.Equal(t, []int64{4}, out.Column(0).(*column.Vector[int64]).Data())
}

// TestHashedGroupBySumCount mirrors scenario S1: GROUP BY a two-column key
// wide enough to force the HASHED method, with both sum() and count().
func TestHashedGroupBySumCount(t *testing.T) {
	a := NewAggregator(Config{
		KeyPositions: []int{0, 1},
		KeyTypes: []column.TypeInfo{
			{Name: "k1", Kind: column.KindString},
			{Name: "k2", Kind: column.KindString},
		},
		Funcs:        []Function{CountFunc{}, SumInt64Func{ArgPos: 0}},
		ArgPositions: [][]int{nil, {2}},
	})
	block := blockOf(
		[]string{"k1", "k2", "v"},
		[]column.Column{
			strCol("aaaaaaaaa", "aaaaaaaaa", "bbbbbbbbb"),
			strCol("xxxxxxxxx", "xxxxxxxxx", "yyyyyyyyy"),
			int64Col(10, 20, 5),
		},
	)
	require.NoError(t, a.Update(block))
	require.Equal(t, MethodHashed, a.method.kind())

	out := a.Result(true)
	require.Equal(t, 2, out.Rows())

	type row struct {
		k1, k2 string
		count  int64
		sum    int64
	}
	var rows []row
	k1c := out.Column(0).(*column.ByteString)
	k2c := out.Column(1).(*column.ByteString)
	countc := out.Column(2).(*column.Vector[int64])
	sumc := out.Column(3).(*column.Vector[int64])
	for i := 0; i < out.Rows(); i++ {
		rows = append(rows, row{
			k1:    string(k1c.GetDataAt(i)),
			k2:    string(k2c.GetDataAt(i)),
			count: countc.Data()[i],
			sum:   sumc.Data()[i],
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].k1 < rows[j].k1 })
	require.Equal(t, "aaaaaaaaa", rows[0].k1)
	require.EqualValues(t, 2, rows[0].count)
	require.EqualValues(t, 30, rows[0].sum)
	require.Equal(t, "bbbbbbbbb", rows[1].k1)
	require.EqualValues(t, 1, rows[1].count)
	require.EqualValues(t, 5, rows[1].sum)
}

// TestKey64GroupBy exercises the single-fixed-width-key fast path.
func TestKey64GroupBy(t *testing.T) {
	a := NewAggregator(Config{
		KeyPositions: []int{0},
		KeyTypes:     []column.TypeInfo{{Name: "k", Kind: column.KindInt64}},
		Funcs:        []Function{CountFunc{}},
	})
	block := blockOf([]string{"k", "v"}, []column.Column{
		int64Col(1, 1, 2),
		int64Col(0, 0, 0),
	})
	require.NoError(t, a.Update(block))
	require.Equal(t, MethodKey64, a.method.kind())
	out := a.Result(true)
	require.Equal(t, 2, out.Rows())
}

// TestGroupByOverflowThrow exercises group_by_overflow_mode=throw: once
// max_rows_to_group_by distinct groups exist, a new one errors out.
func TestGroupByOverflowThrow(t *testing.T) {
	a := NewAggregator(Config{
		KeyPositions: []int{0},
		KeyTypes:     []column.TypeInfo{{Name: "k", Kind: column.KindInt64}},
		Funcs:        []Function{CountFunc{}},
		MaxRows:      1,
		OverflowMode: OverflowModeThrow,
	})
	block := blockOf([]string{"k"}, []column.Column{int64Col(1, 2)})
	err := a.Update(block)
	require.ErrorIs(t, err, ErrTooManyGroups)
}

// TestGroupByOverflowAny routes rows beyond the group limit into one
// synthetic overflow row instead of erroring or dropping them.
func TestGroupByOverflowAny(t *testing.T) {
	a := NewAggregator(Config{
		KeyPositions: []int{0},
		KeyTypes:     []column.TypeInfo{{Name: "k", Kind: column.KindInt64}},
		Funcs:        []Function{CountFunc{}},
		MaxRows:      1,
		OverflowMode: OverflowModeAny,
	})
	block := blockOf([]string{"k"}, []column.Column{int64Col(1, 1, 2, 3)})
	require.NoError(t, a.Update(block))

	out := a.Result(true)
	require.Equal(t, 2, out.Rows()) // the one real group + the overflow row
	total := int64(0)
	countc := out.Column(1).(*column.Vector[int64])
	for _, v := range countc.Data() {
		total += v
	}
	require.EqualValues(t, 4, total)
}

// TestMergeTwoPhase builds two partial (non-final) aggregations over
// disjoint halves of the same logical dataset and checks that merging them
// produces the same result as a single-pass aggregation.
func TestMergeTwoPhase(t *testing.T) {
	cfg := Config{
		KeyPositions: []int{0},
		KeyTypes:     []column.TypeInfo{{Name: "k", Kind: column.KindInt64}},
		Funcs:        []Function{CountFunc{}, SumInt64Func{ArgPos: 0}},
		ArgPositions: [][]int{nil, {1}},
	}

	part1 := NewAggregator(cfg)
	require.NoError(t, part1.Update(blockOf([]string{"k", "v"}, []column.Column{
		int64Col(1, 1, 2), int64Col(10, 20, 5),
	})))
	part2 := NewAggregator(cfg)
	require.NoError(t, part2.Update(blockOf([]string{"k", "v"}, []column.Column{
		int64Col(2, 3), int64Col(7, 1),
	})))

	merged := NewAggregator(cfg)
	require.NoError(t, merged.Merge(part1.Result(false)))
	require.NoError(t, merged.Merge(part2.Result(false)))

	out := merged.Result(true)
	require.Equal(t, 3, out.Rows())

	sums := map[int64]int64{}
	counts := map[int64]int64{}
	kc := out.Column(0).(*column.Vector[int64])
	countc := out.Column(1).(*column.Vector[int64])
	sumc := out.Column(2).(*column.Vector[int64])
	for i := 0; i < out.Rows(); i++ {
		k := kc.Data()[i]
		counts[k] = countc.Data()[i]
		sums[k] = sumc.Data()[i]
	}
	require.EqualValues(t, 2, counts[1])
	require.EqualValues(t, 30, sums[1])
	require.EqualValues(t, 2, counts[2])
	require.EqualValues(t, 12, sums[2])
	require.EqualValues(t, 1, counts[3])
	require.EqualValues(t, 1, sums[3])
}

// TestMergeMismatchedVariants checks that merging a block shaped for a
// different Config is refused rather than silently corrupting state.
func TestMergeMismatchedVariants(t *testing.T) {
	cfg1 := Config{
		KeyPositions: []int{0},
		KeyTypes:     []column.TypeInfo{{Name: "k", Kind: column.KindInt64}},
		Funcs:        []Function{CountFunc{}},
	}
	a := NewAggregator(cfg1)
	bogus := blockOf([]string{"k", "extra"}, []column.Column{int64Col(1), int64Col(2)})
	err := a.Merge(bogus)
	require.ErrorIs(t, err, ErrMismatchedVariants)
}
