package agg

import "unsafe"

// sliceDataPtr and ptrToSlice convert between an arena-owned byte region and
// the uintptr handle an AggregateState column stores per row (spec §3
// "aggregate-state (opaque byte blob)"). This is sound only because the
// Arena itself — via the AggregateState column's ArenaRef — keeps the
// backing chunk alive for as long as any uintptr into it is reachable;
// Arena.reserve (arena.go) never reallocates a chunk once bytes from it have
// been handed out, so the address a uintptr captures here stays valid.
func sliceDataPtr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

func ptrToSlice(ptr uintptr, size int) []byte {
	if ptr == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size)
}
