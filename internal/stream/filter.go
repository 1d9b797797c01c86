package stream

import (
	"github.com/Henry2SS/granitetree/internal/column"
)

// FilterStream applies a boolean mask column to every block pulled from
// its child, dropping rows where the mask is zero/false (spec §4.1
// "Filter"). The mask column must be UInt8-typed and is identified by
// position, resolved once against the first block's column list.
type FilterStream struct {
	base
	child     InputStream
	maskIndex int
}

// NewFilterStream wraps child, filtering on the column at maskIndex within
// each block it produces.
func NewFilterStream(child InputStream, maskIndex int) *FilterStream {
	return &FilterStream{child: child, maskIndex: maskIndex}
}

func (s *FilterStream) ReadPrefix() error { return s.child.ReadPrefix() }
func (s *FilterStream) ReadSuffix() error { return s.child.ReadSuffix() }

func (s *FilterStream) Cancel() {
	s.base.Cancel()
	s.child.Cancel()
}

// Read pulls blocks from the child until it finds one with at least one
// surviving row (or the child is exhausted), applying the mask in
// lockstep across every column. Fails with column.ErrSizeMismatch if the
// mask column's length disagrees with the block's row count (spec §8 S6).
func (s *FilterStream) Read() (*column.Block, error) {
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
		mask := block.Column(s.maskIndex)
		maskBytes := make([]uint8, mask.Len())
		for i := 0; i < mask.Len(); i++ {
			if b := mask.GetDataAt(i); len(b) > 0 && b[0] != 0 {
				maskBytes[i] = 1
			}
		}
		out, err := block.Filter(maskBytes)
		if err != nil {
			return nil, err
		}
		if !out.Empty() {
			return out, nil
		}
		// All rows dropped; pull the next block rather than returning a
		// spurious (but non-EOF) empty block, preserving the contract
		// that only true end-of-stream yields Empty()==true.
	}
}
