package column

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVectorFilterPermute(t *testing.T) {
	v := NewVectorFromSlice[int64](KindInt64, []int64{10, 20, 30, 40})
	filtered, err := v.Filter([]uint8{1, 0, 1, 0})
	require.NoError(t, err)
	require.Equal(t, []int64{10, 30}, filtered.(*Vector[int64]).Data())

	_, err = v.Filter([]uint8{1, 0})
	require.ErrorIs(t, err, ErrSizeMismatch)

	perm := v.Permute([]int{3, 2, 1, 0}, 0)
	require.Equal(t, []int64{40, 30, 20, 10}, perm.(*Vector[int64]).Data())

	limited := v.Permute([]int{3, 2, 1, 0}, 2)
	require.Equal(t, []int64{40, 30}, limited.(*Vector[int64]).Data())
}

func TestVectorCompareWithNaN(t *testing.T) {
	v := NewVectorFromSlice[float64](KindFloat64, []float64{1, 0.0 / zero(), 2})
	require.Less(t, v.CompareAt(1, v, 0, NaNFirst), 0)
	require.Greater(t, v.CompareAt(1, v, 0, NaNLast), 0)
}

func zero() float64 { return 0 }

func TestByteStringRoundTrip(t *testing.T) {
	s := NewByteString()
	s.Append([]byte("alpha"))
	s.Append([]byte("beta"))
	require.Equal(t, 2, s.Len())
	require.Equal(t, []byte("alpha"), s.GetDataAt(0))
	require.Equal(t, []byte("beta"), s.GetDataAt(1))

	filtered, err := s.Filter([]uint8{0, 1})
	require.NoError(t, err)
	require.Equal(t, 1, filtered.Len())
	require.Equal(t, []byte("beta"), filtered.GetDataAt(0))
}

func TestBlockFilterIdempotence(t *testing.T) {
	b := NewBlock()
	b.AddColumn("k", TypeInfo{Name: "Int64", Kind: KindInt64}, NewVectorFromSlice[int64](KindInt64, []int64{1, 2, 3}))

	allOnes, err := b.Filter([]uint8{1, 1, 1})
	require.NoError(t, err)
	require.Equal(t, b.Rows(), allOnes.Rows())

	allZeros, err := b.Filter([]uint8{0, 0, 0})
	require.NoError(t, err)
	require.True(t, allZeros.Empty())

	_, err = b.Filter([]uint8{1, 1})
	require.ErrorIs(t, err, ErrSizeMismatch)
}

func TestBlockConstColumnMaterializes(t *testing.T) {
	b := NewBlock()
	b.AddColumn("k", TypeInfo{Kind: KindInt64}, NewVectorFromSlice[int64](KindInt64, []int64{1, 2, 3}))
	val := NewVectorFromSlice[int64](KindInt64, []int64{7})
	b.AddConstColumn("c", TypeInfo{Kind: KindInt64}, val, 3)
	require.True(t, b.IsConst(1))
	mat := b.Column(1)
	require.Equal(t, []int64{7, 7, 7}, mat.(*Vector[int64]).Data())
	require.False(t, b.IsConst(1))
}

func TestArrayRowCompare(t *testing.T) {
	a := NewArray(NewVector[int64](KindInt64))
	a.AppendRow(NewVectorFromSlice[int64](KindInt64, []int64{1, 2}), 0, 2)
	a.AppendRow(NewVectorFromSlice[int64](KindInt64, []int64{1, 2, 3}), 0, 3)
	require.Less(t, a.CompareAt(0, a, 1, NaNLast), 0)
}
