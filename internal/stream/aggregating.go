package stream

import (
	"github.com/Henry2SS/granitetree/internal/agg"
	"github.com/Henry2SS/granitetree/internal/column"
)

// AggregatingStream is a pipeline-breaking operator (spec §4.1 "Aggregating
// ... consumes its entire input before producing any output"): it pulls
// every block from its child, folds each into an Aggregator, and then
// yields exactly one result block (or, if Final is false, one non-final
// AggregateState block for a downstream MergingAggregatedStream).
type AggregatingStream struct {
	base
	child InputStream
	agger *agg.Aggregator
	final bool

	done bool
}

// NewAggregatingStream builds an AggregatingStream. final selects between
// the two result modes of Aggregator.Result.
func NewAggregatingStream(child InputStream, agger *agg.Aggregator, final bool) *AggregatingStream {
	return &AggregatingStream{child: child, agger: agger, final: final}
}

func (s *AggregatingStream) ReadPrefix() error { return s.child.ReadPrefix() }
func (s *AggregatingStream) ReadSuffix() error { return s.child.ReadSuffix() }

func (s *AggregatingStream) Cancel() {
	s.base.Cancel()
	s.child.Cancel()
}

func (s *AggregatingStream) Read() (*column.Block, error) {
	if s.done || s.Cancelled() {
		return emptyBlock(), nil
	}
	for {
		block, err := s.child.Read()
		if err != nil {
			return nil, err
		}
		if block.Empty() {
			break
		}
		if err := s.agger.Update(block); err != nil {
			return nil, err
		}
	}
	s.done = true
	result := s.agger.Result(s.final)
	if result.Empty() {
		return emptyBlock(), nil
	}
	return result, nil
}
