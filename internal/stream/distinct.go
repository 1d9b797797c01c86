package stream

import (
	"github.com/Henry2SS/granitetree/internal/column"
	"github.com/cockroachdb/errors"
	"github.com/dchest/siphash"
)

// OverflowMode selects what DistinctStream (and the Aggregator, see
// internal/agg) does once its row/byte cap is exceeded (spec §4.1
// Distinct, §4.2 group_by_overflow_mode).
type OverflowMode int

const (
	OverflowThrow OverflowMode = iota
	OverflowBreak
)

// ErrTooManyRows is the resource-limit error (spec §7) raised by
// DistinctStream under OverflowThrow once the configured row cap is
// exceeded (the Aggregator reports agg.ErrTooManyGroups instead).
var ErrTooManyRows = errors.New("granitetree: TOO_MUCH_ROWS")

// fingerprint is the 128-bit row fingerprint DistinctStream (and the
// Aggregator's HASHED method) use to identify a row by its selected
// columns: two 64-bit halves from siphash's 128-bit variant over the
// terminator-padded concatenation of the selected columns' encoded bytes
// (spec §4.1: "non-cryptographic 128-bit hash... terminator-padded
// concatenation"; collisions are tolerated, documented as approximate).
type fingerprint struct {
	lo, hi uint64
}

// sipKey is a fixed, process-wide key for the fingerprint hash; since
// fingerprints never leave the process (unlike the aggregate-state wire
// format) a fixed key is sufficient and keeps results reproducible across
// runs, which the data-driven tests rely on.
var sipKey0, sipKey1 uint64 = 0x9e3779b97f4a7c15, 0xbf58476d1ce4e5b9

func rowFingerprint(cols []column.Column, row int) fingerprint {
	var buf []byte
	for _, c := range cols {
		buf = append(buf, c.GetDataAt(row)...)
		buf = append(buf, 0) // terminator, so ("ab","c") != ("a","bc")
	}
	lo, hi := siphash.Hash128(sipKey0, sipKey1, buf)
	return fingerprint{lo: lo, hi: hi}
}

// DistinctStream emits only the first occurrence of each distinct
// combination of its selected columns, tracked via a hash set of 128-bit
// fingerprints (spec §4.1 "Distinct", §8 S3, §9 Open Question 1:
// documented as approximate under hash collisions and embedded NULs).
type DistinctStream struct {
	base
	child        InputStream
	keyPositions []int
	maxRows      uint64
	overflow     OverflowMode

	seen map[fingerprint]struct{}
}

// NewDistinctStream wraps child, deduplicating on the columns at
// keyPositions. maxRows == 0 means unlimited.
func NewDistinctStream(child InputStream, keyPositions []int, maxRows uint64, overflow OverflowMode) *DistinctStream {
	return &DistinctStream{
		child:        child,
		keyPositions: keyPositions,
		maxRows:      maxRows,
		overflow:     overflow,
		seen:         make(map[fingerprint]struct{}),
	}
}

func (s *DistinctStream) ReadPrefix() error { return s.child.ReadPrefix() }
func (s *DistinctStream) ReadSuffix() error { return s.child.ReadSuffix() }

func (s *DistinctStream) Cancel() {
	s.base.Cancel()
	s.child.Cancel()
}

func (s *DistinctStream) Read() (*column.Block, error) {
	for {
		if s.Cancelled() {
			return emptyBlock(), nil
		}
		block, err := s.child.Read()
		if err != nil {
			return nil, err
		}
		if block.Empty() {
			return block, nil
		}

		keyCols := make([]column.Column, len(s.keyPositions))
		for i, pos := range s.keyPositions {
			keyCols[i] = block.Column(pos)
		}

		mask := make([]uint8, block.Rows())
		any := false
		for row := 0; row < block.Rows(); row++ {
			fp := rowFingerprint(keyCols, row)
			if _, dup := s.seen[fp]; dup {
				continue
			}
			if s.maxRows > 0 && uint64(len(s.seen)) >= s.maxRows {
				switch s.overflow {
				case OverflowBreak:
					s.Cancel()
					return emptyBlock(), nil
				default:
					return nil, ErrTooManyRows
				}
			}
			s.seen[fp] = struct{}{}
			mask[row] = 1
			any = true
		}
		if !any {
			continue
		}
		return block.Filter(mask)
	}
}
