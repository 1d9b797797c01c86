// Package mergetree implements the MergeTree storage engine (spec §3,
// §4.3): immutable, sorted, date-bucketed parts with a sparse primary
// index and per-column files, a write path that splits and sorts incoming
// blocks, a read path that selects mark-ranges against the primary index,
// and a background compactor that merges adjacent parts.
package mergetree

import "github.com/cockroachdb/errors"

// Error taxonomy, abstract per spec §7. Each sentinel below corresponds to
// one kind named there; callers wrap these with errors.Wrapf for context
// the way the rest of this engine does (internal/agg, internal/ioutil).
var (
	// ErrMalformedPartName is a logical error: a directory name under the
	// table's data directory does not parse as <min>_<max>_<id>_<id>_<level>.
	ErrMalformedPartName = errors.New("granitetree: malformed part name")

	// ErrInvariantViolation is a logical error: a part fails one of the
	// invariants spec §8 requires of every active part.
	ErrInvariantViolation = errors.New("granitetree: part invariant violation")

	// ErrOverlappingParts is a logical error: two parts intended to be
	// simultaneously active have overlapping id ranges (spec §3 "two active
	// parts with overlapping id ranges may not coexist").
	ErrOverlappingParts = errors.New("granitetree: overlapping active parts")

	// ErrBrokenPart is a data-integrity error: the part failed checksum
	// verification or otherwise cannot be trusted; it is marked broken and
	// excluded from reads (spec §7 "mark the part broken; refuse to read it").
	ErrBrokenPart = errors.New("granitetree: part is broken")

	// ErrTooManyParts is a resource-limit error for rejecting an insert when
	// a table has too many active parts. Nothing in this package returns
	// it: the write path's backpressure only delays inserts.
	ErrTooManyParts = errors.New("granitetree: too many parts, insert rejected")

	// ErrUnknownMergeMode is a logical error: an unrecognized MergeMode value
	// reached the merge path.
	ErrUnknownMergeMode = errors.New("granitetree: unknown merge mode")

	// ErrMismatchedColumns is an argument/type error: a block offered to
	// Insert does not carry every column the table declares.
	ErrMismatchedColumns = errors.New("granitetree: block does not match table columns")

	// ErrAlterInProgress is a concurrency error for a second ALTER on a part
	// that already has one staged. Nothing in this package returns it: a
	// second Stage waits on the table's ALTER lock instead.
	ErrAlterInProgress = errors.New("granitetree: alter already in progress on this part")
)
