package agg

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/Henry2SS/granitetree/internal/column"
)

// ErrShortState is a data-integrity error (spec §7) raised when a
// DeserializeState call runs out of bytes mid-read — a truncated or
// corrupt aggregate-state wire payload.
var ErrShortState = errors.New("granitetree: truncated aggregate state")

// CountFunc implements count(): an 8-byte running counter with the
// add_delta(state, n) shortcut spec §4.2 calls out explicitly.
type CountFunc struct{}

func (CountFunc) Name() string                { return "count" }
func (CountFunc) StateSize() int              { return 8 }
func (CountFunc) TriviallyDestructible() bool { return true }
func (CountFunc) Create(region []byte)        { binary.LittleEndian.PutUint64(region, 0) }
func (CountFunc) Destroy([]byte)              {}

func (CountFunc) Add(state []byte, args []column.Column, row int) {
	n := binary.LittleEndian.Uint64(state)
	binary.LittleEndian.PutUint64(state, n+1)
}

func (CountFunc) AddDelta(state []byte, n uint64) bool {
	cur := binary.LittleEndian.Uint64(state)
	binary.LittleEndian.PutUint64(state, cur+n)
	return true
}

func (CountFunc) Merge(dst, src []byte) {
	a := binary.LittleEndian.Uint64(dst)
	b := binary.LittleEndian.Uint64(src)
	binary.LittleEndian.PutUint64(dst, a+b)
}

func (CountFunc) InsertResultInto(state []byte, out column.Column) {
	appendInt64(out, int64(binary.LittleEndian.Uint64(state)))
}

func (CountFunc) SerializeState(dst []byte, state []byte) []byte {
	return append(dst, state[:8]...)
}

func (CountFunc) DeserializeState(state []byte, src []byte) (int, error) {
	if len(src) < 8 {
		return 0, ErrShortState
	}
	copy(state[:8], src[:8])
	return 8, nil
}

// SumInt64Func implements sum() over an Int64 argument column: an 8-byte
// running total.
type SumInt64Func struct {
	ArgPos int
}

func (SumInt64Func) Name() string                { return "sum" }
func (SumInt64Func) StateSize() int              { return 8 }
func (SumInt64Func) TriviallyDestructible() bool { return true }
func (SumInt64Func) Create(region []byte)        { binary.LittleEndian.PutUint64(region, 0) }
func (SumInt64Func) Destroy([]byte)              {}

func (f SumInt64Func) Add(state []byte, args []column.Column, row int) {
	v := args[f.ArgPos].(*column.Vector[int64]).Data()[row]
	cur := int64(binary.LittleEndian.Uint64(state))
	binary.LittleEndian.PutUint64(state, uint64(cur+v))
}

func (SumInt64Func) AddDelta(state []byte, n uint64) bool { return false }

func (SumInt64Func) Merge(dst, src []byte) {
	a := int64(binary.LittleEndian.Uint64(dst))
	b := int64(binary.LittleEndian.Uint64(src))
	binary.LittleEndian.PutUint64(dst, uint64(a+b))
}

func (SumInt64Func) InsertResultInto(state []byte, out column.Column) {
	v := int64(binary.LittleEndian.Uint64(state))
	appendInt64(out, v)
}

func (SumInt64Func) SerializeState(dst []byte, state []byte) []byte {
	return append(dst, state[:8]...)
}

func (SumInt64Func) DeserializeState(state []byte, src []byte) (int, error) {
	if len(src) < 8 {
		return 0, ErrShortState
	}
	copy(state[:8], src[:8])
	return 8, nil
}

func appendInt64(out column.Column, v int64) {
	vec := out.(*column.Vector[int64])
	tmp := column.NewVectorFromSlice[int64](vec.Kind(), []int64{v})
	vec.InsertFrom(tmp, 0)
}
