package column

import "github.com/cockroachdb/errors"

// ArenaRef is an opaque reference into an aggregation arena, held by an
// AggregateState column so the arena's lifetime is extended for as long as
// any column built from it is alive (§9 "Shared ownership of arenas" —
// modeled with reference-counted arenas rather than raw back-pointers).
type ArenaRef interface {
	// Retain increments the arena's reference count.
	Retain()
	// Release decrements it; the last release destroys the arena's
	// remaining group states.
	Release()
}

// AggregateState is the opaque-byte-blob column family used to carry
// non-final (intermediate) aggregation results between pipeline stages and
// across the wire (spec §3 "aggregate-state (opaque byte blob for an
// in-progress aggregation)"). Each row is a pointer into an arena owned
// jointly by every AggregateState column sliced from the same aggregation.
type AggregateState struct {
	FunctionName string
	arena        ArenaRef
	ptrs         []uintptr
}

// NewAggregateState creates an aggregate-state column backed by the given
// arena; the column retains a reference to the arena for its own lifetime.
func NewAggregateState(functionName string, arena ArenaRef) *AggregateState {
	if arena != nil {
		arena.Retain()
	}
	return &AggregateState{FunctionName: functionName, arena: arena}
}

func (c *AggregateState) Kind() Kind         { return KindAggregateState }
func (c *AggregateState) Len() int           { return len(c.ptrs) }
func (c *AggregateState) ByteSize() int       { return len(c.ptrs) * 8 }
func (c *AggregateState) Append(ptr uintptr) { c.ptrs = append(c.ptrs, ptr) }
func (c *AggregateState) PtrAt(i int) uintptr { return c.ptrs[i] }

// Release drops this column's reference to its arena. Call exactly once
// when the column is no longer reachable; it is safe to call on a nil
// arena.
func (c *AggregateState) Release() {
	if c.arena != nil {
		c.arena.Release()
		c.arena = nil
	}
}

func (c *AggregateState) InsertDefault() {
	panic(errors.New("granitetree: aggregate-state columns have no default value"))
}

func (c *AggregateState) InsertFrom(other Column, i int) {
	o := other.(*AggregateState)
	c.ptrs = append(c.ptrs, o.ptrs[i])
}

func (c *AggregateState) InsertRangeFrom(other Column, begin, length int) {
	o := other.(*AggregateState)
	c.ptrs = append(c.ptrs, o.ptrs[begin:begin+length]...)
}

func (c *AggregateState) GetDataAt(i int) []byte {
	panic(errors.New("granitetree: aggregate-state values are not directly addressable as bytes"))
}

func (c *AggregateState) Filter(mask []uint8) (Column, error) {
	if len(mask) != c.Len() {
		return nil, ErrSizeMismatch
	}
	out := &AggregateState{FunctionName: c.FunctionName, arena: c.arena}
	if out.arena != nil {
		out.arena.Retain()
	}
	for i, m := range mask {
		if m != 0 {
			out.ptrs = append(out.ptrs, c.ptrs[i])
		}
	}
	return out, nil
}

func (c *AggregateState) Permute(perm []int, limit int) Column {
	n := len(perm)
	if limit > 0 && limit < n {
		n = limit
	}
	out := &AggregateState{FunctionName: c.FunctionName, arena: c.arena}
	if out.arena != nil {
		out.arena.Retain()
	}
	for i := 0; i < n; i++ {
		out.ptrs = append(out.ptrs, c.ptrs[perm[i]])
	}
	return out
}

func (c *AggregateState) Replicate(offsets []uint64) Column {
	out := &AggregateState{FunctionName: c.FunctionName, arena: c.arena}
	if out.arena != nil {
		out.arena.Retain()
	}
	var prev uint64
	for i, off := range offsets {
		count := off - prev
		prev = off
		for j := uint64(0); j < count; j++ {
			out.ptrs = append(out.ptrs, c.ptrs[i])
		}
	}
	return out
}

func (c *AggregateState) CompareAt(i int, other Column, j int, _ NaNDirection) int {
	panic(errors.New("granitetree: aggregate-state columns are not ordered"))
}

func (c *AggregateState) Extremes() (min, max Column) {
	return &AggregateState{FunctionName: c.FunctionName}, &AggregateState{FunctionName: c.FunctionName}
}
