package stream

import (
	"github.com/Henry2SS/granitetree/internal/agg"
	"github.com/Henry2SS/granitetree/internal/column"
)

// MergingAggregatedStream is the second half of spec §4.2's two-phase
// merge: each child stream produces non-final AggregateState blocks (one
// per worker's partial aggregation, or one per MergeTree part read in
// parallel); this operator folds them all into a single merging Aggregator
// and emits one finalized result block.
type MergingAggregatedStream struct {
	base
	children []InputStream
	agger    *agg.Aggregator

	done bool
}

// NewMergingAggregatedStream builds a MergingAggregatedStream over one
// merging Aggregator (built with the same Config — same functions, same
// key count — as every child's own partial-aggregation Aggregator).
func NewMergingAggregatedStream(children []InputStream, agger *agg.Aggregator) *MergingAggregatedStream {
	return &MergingAggregatedStream{children: children, agger: agger}
}

func (s *MergingAggregatedStream) ReadPrefix() error {
	for _, c := range s.children {
		if err := c.ReadPrefix(); err != nil {
			return err
		}
	}
	return nil
}

func (s *MergingAggregatedStream) ReadSuffix() error {
	for _, c := range s.children {
		if err := c.ReadSuffix(); err != nil {
			return err
		}
	}
	return nil
}

func (s *MergingAggregatedStream) Cancel() {
	s.base.Cancel()
	for _, c := range s.children {
		c.Cancel()
	}
}

func (s *MergingAggregatedStream) Read() (*column.Block, error) {
	if s.done || s.Cancelled() {
		return emptyBlock(), nil
	}
	for _, c := range s.children {
		for {
			block, err := c.Read()
			if err != nil {
				return nil, err
			}
			if block.Empty() {
				break
			}
			if err := s.agger.Merge(block); err != nil {
				return nil, err
			}
		}
	}
	s.done = true
	result := s.agger.Result(true)
	if result.Empty() {
		return emptyBlock(), nil
	}
	return result, nil
}
