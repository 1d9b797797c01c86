package query

import "sync/atomic"

// Progress accumulates a running query's row/byte counters (spec §5/§9
// "progress" reporting referenced alongside settings snapshots). Safe
// for concurrent use by every worker goroutine touching one query,
// mirroring the atomic-counter style pebble uses for its own
// lock-free bookkeeping (e.g. compactionPickerByScore's atomic stats).
type Progress struct {
	rowsRead  atomic.Uint64
	bytesRead atomic.Uint64

	totalRowsToRead atomic.Uint64

	rowsWritten  atomic.Uint64
	bytesWritten atomic.Uint64
}

// AddRead records rows/bytes consumed from storage.
func (p *Progress) AddRead(rows, bytes uint64) {
	p.rowsRead.Add(rows)
	p.bytesRead.Add(bytes)
}

// AddWritten records rows/bytes produced by an INSERT.
func (p *Progress) AddWritten(rows, bytes uint64) {
	p.rowsWritten.Add(rows)
	p.bytesWritten.Add(bytes)
}

// SetTotalRowsToRead records the estimated total, once known (e.g.
// after the read pool's mark-range selection completes), for a
// percentage-complete display.
func (p *Progress) SetTotalRowsToRead(rows uint64) {
	p.totalRowsToRead.Store(rows)
}

// Snapshot is an immutable point-in-time read of Progress's counters.
type Snapshot struct {
	RowsRead, BytesRead       uint64
	TotalRowsToRead           uint64
	RowsWritten, BytesWritten uint64
}

// Snapshot returns the current counter values.
func (p *Progress) Snapshot() Snapshot {
	return Snapshot{
		RowsRead:        p.rowsRead.Load(),
		BytesRead:       p.bytesRead.Load(),
		TotalRowsToRead: p.totalRowsToRead.Load(),
		RowsWritten:     p.rowsWritten.Load(),
		BytesWritten:    p.bytesWritten.Load(),
	}
}
