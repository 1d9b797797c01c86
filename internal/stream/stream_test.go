package stream

import (
	"testing"

	"github.com/Henry2SS/granitetree/internal/column"
	"github.com/stretchr/testify/require"
)

func int64Col(vals ...int64) column.Column {
	return column.NewVectorFromSlice[int64](column.KindInt64, vals)
}

func uint8Col(vals ...uint8) column.Column {
	return column.NewVectorFromSlice[uint8](column.KindUint8, vals)
}

func blockOf(cols map[string]column.Column, order []string) *column.Block {
	b := column.NewBlock()
	for _, name := range order {
		b.AddColumn(name, column.TypeInfo{}, cols[name])
	}
	return b
}

func TestFilterStream(t *testing.T) {
	src := NewSliceSource([]*column.Block{
		blockOf(map[string]column.Column{"v": int64Col(1, 2, 3), "m": uint8Col(1, 0, 1)}, []string{"v", "m"}),
	})
	f := NewFilterStream(src, 1)
	require.NoError(t, f.ReadPrefix())
	out, err := f.Read()
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3}, out.Column(0).(*column.Vector[int64]).Data())

	done, err := f.Read()
	require.NoError(t, err)
	require.True(t, done.Empty())
}

func TestLimitStreamWithOffset(t *testing.T) {
	src := NewSliceSource([]*column.Block{
		blockOf(map[string]column.Column{"v": int64Col(1, 2, 3, 4, 5)}, []string{"v"}),
	})
	l := NewLimitStream(src, 2, 1)
	out, err := l.Read()
	require.NoError(t, err)
	require.Equal(t, []int64{2, 3}, out.Column(0).(*column.Vector[int64]).Data())

	done, err := l.Read()
	require.NoError(t, err)
	require.True(t, done.Empty())
}

func TestDistinctStream(t *testing.T) {
	// S3: x=[1,1,2,2,3], y=["p","p","p","q","q"] -> [(1,p),(2,p),(2,q),(3,q)]
	src := NewSliceSource([]*column.Block{
		blockOf(map[string]column.Column{
			"x": int64Col(1, 1, 2, 2, 3),
			"y": newStrCol("p", "p", "p", "q", "q"),
		}, []string{"x", "y"}),
	})
	d := NewDistinctStream(src, []int{0, 1}, 0, OverflowThrow)
	out, err := d.Read()
	require.NoError(t, err)
	require.Equal(t, 4, out.Rows())
}

func TestSortStreamFullAndPartial(t *testing.T) {
	src := NewSliceSource([]*column.Block{
		blockOf(map[string]column.Column{"v": int64Col(5, 3, 1, 4, 2)}, []string{"v"}),
	})
	s := NewSortStream(src, []SortKey{{Position: 0}}, 0)
	out, err := s.Read()
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3, 4, 5}, out.Column(0).(*column.Vector[int64]).Data())

	src2 := NewSliceSource([]*column.Block{
		blockOf(map[string]column.Column{"v": int64Col(5, 3, 1, 4, 2)}, []string{"v"}),
	})
	top := NewSortStream(src2, []SortKey{{Position: 0}}, 2)
	out2, err := top.Read()
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, out2.Column(0).(*column.Vector[int64]).Data())
}

func newStrCol(vals ...string) column.Column {
	c := column.NewByteString()
	for _, v := range vals {
		c.Append([]byte(v))
	}
	return c
}
