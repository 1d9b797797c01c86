package column

import (
	"encoding/binary"
	"math"
)

// Numeric is the set of fixed-width Go types backing the numeric column
// families (§3: "fixed-width numeric (signed/unsigned integer widths
// 8/16/32/64, float 32/64)").
type Numeric interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Vector is a dense, contiguous column of a fixed-width numeric type. Date
// and DateTime reuse Vector[int32]/Vector[int64] with a distinct Kind (see
// date.go), exactly as spec.md describes them ("day count since epoch",
// "seconds since epoch") rather than as distinct representations.
type Vector[T Numeric] struct {
	kind Kind
	data []T
}

// NewVector creates an empty numeric vector column of the given kind. kind
// must be one of the fixed-width numeric Kinds (or KindDate/KindDateTime
// when T is int32/int64 respectively).
func NewVector[T Numeric](kind Kind) *Vector[T] {
	return &Vector[T]{kind: kind}
}

// NewVectorFromSlice wraps an existing slice without copying.
func NewVectorFromSlice[T Numeric](kind Kind, data []T) *Vector[T] {
	return &Vector[T]{kind: kind, data: data}
}

func (v *Vector[T]) Kind() Kind { return v.kind }
func (v *Vector[T]) Len() int   { return len(v.data) }
func (v *Vector[T]) ByteSize() int {
	var zero T
	return len(v.data) * sizeofT(zero)
}

func sizeofT[T Numeric](zero T) int {
	switch any(zero).(type) {
	case int8, uint8:
		return 1
	case int16, uint16:
		return 2
	case int32, uint32, float32:
		return 4
	default:
		return 8
	}
}

// Data exposes the backing slice directly; used by codecs and the write
// path which need raw byte access without per-value dispatch.
func (v *Vector[T]) Data() []T { return v.data }

// InsertRaw appends a single already-decoded value of the vector's native
// type, used by internal/mergetree to rehydrate a primary index column
// from its on-disk GetDataAt encoding without a per-Kind constructor.
func (v *Vector[T]) InsertRaw(val T) { v.data = append(v.data, val) }

func (v *Vector[T]) InsertDefault() {
	var zero T
	v.data = append(v.data, zero)
}

func (v *Vector[T]) InsertFrom(other Column, i int) {
	o := other.(*Vector[T])
	v.data = append(v.data, o.data[i])
}

func (v *Vector[T]) InsertRangeFrom(other Column, begin, length int) {
	o := other.(*Vector[T])
	v.data = append(v.data, o.data[begin:begin+length]...)
}

func (v *Vector[T]) GetDataAt(i int) []byte {
	var zero T
	n := sizeofT(zero)
	buf := make([]byte, n)
	putNumeric(buf, v.data[i])
	return buf
}

func putNumeric[T Numeric](buf []byte, val T) {
	switch x := any(val).(type) {
	case int8:
		buf[0] = byte(x)
	case uint8:
		buf[0] = x
	case int16:
		binary.LittleEndian.PutUint16(buf, uint16(x))
	case uint16:
		binary.LittleEndian.PutUint16(buf, x)
	case int32:
		binary.LittleEndian.PutUint32(buf, uint32(x))
	case uint32:
		binary.LittleEndian.PutUint32(buf, x)
	case float32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(x))
	case int64:
		binary.LittleEndian.PutUint64(buf, uint64(x))
	case uint64:
		binary.LittleEndian.PutUint64(buf, x)
	case float64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(x))
	}
}

func (v *Vector[T]) Filter(mask []uint8) (Column, error) {
	if len(mask) != len(v.data) {
		return nil, ErrSizeMismatch
	}
	out := &Vector[T]{kind: v.kind, data: make([]T, 0, len(v.data))}
	for i, m := range mask {
		if m != 0 {
			out.data = append(out.data, v.data[i])
		}
	}
	return out, nil
}

func (v *Vector[T]) Permute(perm []int, limit int) Column {
	n := len(perm)
	if limit > 0 && limit < n {
		n = limit
	}
	out := &Vector[T]{kind: v.kind, data: make([]T, n)}
	for i := 0; i < n; i++ {
		out.data[i] = v.data[perm[i]]
	}
	return out
}

func (v *Vector[T]) Replicate(offsets []uint64) Column {
	out := &Vector[T]{kind: v.kind, data: make([]T, 0, offsets[len(offsets)-1])}
	var prev uint64
	for i, off := range offsets {
		count := off - prev
		prev = off
		for j := uint64(0); j < count; j++ {
			out.data = append(out.data, v.data[i])
		}
	}
	return out
}

func (v *Vector[T]) CompareAt(i int, other Column, j int, nanDir NaNDirection) int {
	checkSameKind(v, other)
	o := other.(*Vector[T])
	a, b := v.data[i], o.data[j]
	return compareNumeric(a, b, nanDir)
}

func compareNumeric[T Numeric](a, b T, nanDir NaNDirection) int {
	af, aIsFloat := any(a).(float64)
	bf, bIsFloat := any(b).(float64)
	if !aIsFloat {
		if f32, ok := any(a).(float32); ok {
			af, aIsFloat = float64(f32), true
		}
	}
	if !bIsFloat {
		if f32, ok := any(b).(float32); ok {
			bf, bIsFloat = float64(f32), true
		}
	}
	if aIsFloat || bIsFloat {
		aNaN, bNaN := math.IsNaN(af), math.IsNaN(bf)
		if aNaN && bNaN {
			return 0
		}
		if aNaN {
			if nanDir == NaNFirst {
				return -1
			}
			return 1
		}
		if bNaN {
			if nanDir == NaNFirst {
				return 1
			}
			return -1
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (v *Vector[T]) Extremes() (min, max Column) {
	if len(v.data) == 0 {
		return &Vector[T]{kind: v.kind}, &Vector[T]{kind: v.kind}
	}
	lo, hi := v.data[0], v.data[0]
	for _, x := range v.data[1:] {
		if compareNumeric(x, lo, NaNLast) < 0 {
			lo = x
		}
		if compareNumeric(x, hi, NaNLast) > 0 {
			hi = x
		}
	}
	return &Vector[T]{kind: v.kind, data: []T{lo}}, &Vector[T]{kind: v.kind, data: []T{hi}}
}
