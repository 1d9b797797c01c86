// Package stream implements the pull-based block stream protocol that
// every operator in the engine follows (spec §4.1): a tree of Streams
// rooted at the client read loop, each pulling blocks from its children.
package stream

import (
	"sync/atomic"

	"github.com/Henry2SS/granitetree/internal/column"
)

// InputStream is the capability set every block-producing operator
// implements. Contracts, verbatim from spec §4.1:
//
//   - Read returns the next block; an empty block signals end-of-stream;
//     after end-of-stream subsequent calls keep returning empty.
//   - ReadPrefix performs setup that may error; ReadSuffix performs
//     finalization that may error. Both are invoked exactly once per stream
//     in normal completion; ReadSuffix is skipped on early cancellation.
//   - Cancel asks the stream (and, recursively, its children) to stop
//     producing as soon as possible; it is idempotent and callable
//     concurrently with Read.
type InputStream interface {
	ReadPrefix() error
	Read() (*column.Block, error)
	ReadSuffix() error
	Cancel()
}

// base provides the atomic cancellation flag every concrete operator
// embeds (spec §5 "Cancellation... one atomic boolean per operator,
// checked at every I/O and every block boundary").
type base struct {
	cancelled atomic.Bool
}

// Cancelled reports whether Cancel has been called on this stream.
func (b *base) Cancelled() bool { return b.cancelled.Load() }

// Cancel sets the cancellation flag. Idempotent; safe to call
// concurrently with Read.
func (b *base) Cancel() { b.cancelled.Store(true) }

// emptyBlock is the canonical end-of-stream sentinel returned by Read once
// a stream is exhausted or cancelled.
func emptyBlock() *column.Block { return column.NewBlock() }

// Source is implemented by leaf streams that read blocks from a storage
// (MergeTree part range, or an in-memory table) rather than from another
// Stream.
type Source interface {
	InputStream
}
