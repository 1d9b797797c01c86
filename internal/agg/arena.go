// Package agg implements the hash-based group-by Aggregator (spec §4.2): a
// multi-strategy hash aggregation over blocks, with intermediate state that
// can be serialized, shipped, and merged.
package agg

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Arena is a flat byte buffer holding per-group concatenated aggregate
// function states at declared offsets (spec §4.2 "State layout"). It is
// reference-counted (spec §9 "Shared ownership of arenas... model this
// with reference-counted arenas... never raw back-pointers") so that
// AggregateState columns sliced off a still-live aggregation keep the
// arena alive after the Aggregator itself goes out of scope.
//
// States are bump-allocated from fixed-size chunks and handed out as stable
// byte-slice regions; a chunk is never reallocated once groups have been
// constructed into it, and a new chunk is appended when the current one is
// full (see reserve()).
type Arena struct {
	mu      sync.Mutex
	chunks  [][]byte
	refs    atomic.Int32
	layout  *StateLayout
	groups  [][]byte // one slice per live group, for the destructor walk
	destroyed bool
}

// NewArena creates an empty arena for a given aggregate-function state
// layout (StateLayout below). The arena starts with a reference count of
// 1, owned by its creator (typically the Aggregator itself). Each
// AggregateState column built over the arena takes its own reference
// (column.NewAggregateState calls Retain) and releases it when done.
func NewArena(layout *StateLayout) *Arena {
	a := &Arena{layout: layout}
	a.refs.Store(1)
	return a
}

const arenaChunkSize = 64 << 10

// Allocate reserves one group's worth of bytes (layout.Total) and runs
// each aggregate function's constructor over the region at its declared
// offset. If any constructor panics, already-constructed fields in this
// region are destructed and the panic is recovered and returned as err.
func (a *Arena) Allocate() (region []byte, err error) {
	a.mu.Lock()
	region = a.reserve(a.layout.Total)
	a.groups = append(a.groups, region)
	a.mu.Unlock()

	constructed := 0
	defer func() {
		if r := recover(); r != nil {
			for i := 0; i < constructed; i++ {
				f := a.layout.Funcs[i]
				f.Destroy(region[a.layout.Offsets[i]:])
			}
			err = errors.Newf("granitetree: aggregate state constructor failed: %v", r)
		}
	}()
	for i, f := range a.layout.Funcs {
		f.Create(region[a.layout.Offsets[i]:])
		constructed++
	}
	return region, nil
}

// reserve returns n fresh bytes from the current (or a new) chunk. Chunks
// are never reallocated once handed out, so every previously returned
// region remains valid for the arena's lifetime — the property
// AggregateState's shared ownership depends on.
func (a *Arena) reserve(n int) []byte {
	if len(a.chunks) == 0 || len(a.chunks[len(a.chunks)-1])+n > cap(a.chunks[len(a.chunks)-1]) {
		size := arenaChunkSize
		if n > size {
			size = n
		}
		a.chunks = append(a.chunks, make([]byte, 0, size))
	}
	last := &a.chunks[len(a.chunks)-1]
	start := len(*last)
	*last = (*last)[:start+n]
	return (*last)[start : start+n : start+n]
}

// Retain implements column.ArenaRef.
func (a *Arena) Retain() { a.refs.Add(1) }

// Release implements column.ArenaRef: the last release runs the
// destructor over every remaining group (spec §4.2 "Destructors").
func (a *Arena) Release() {
	if a.refs.Add(-1) == 0 {
		a.destroyAll()
	}
}

func (a *Arena) destroyAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}
	a.destroyed = true
	for _, region := range a.groups {
		for i, f := range a.layout.Funcs {
			if f.TriviallyDestructible() {
				continue
			}
			f.Destroy(region[a.layout.Offsets[i]:])
		}
	}
	a.groups = nil
}
