package stream

import "github.com/Henry2SS/granitetree/internal/column"

// FuncSource adapts a plain block-producing function (and optional
// prefix/suffix hooks) into a leaf Source, used by internal/mergetree to
// expose "a MergeTree part range for a chosen column set" (spec §4.1
// "Source over a MergeTree part range") without this package needing to
// depend on the storage layer.
type FuncSource struct {
	base
	readFn   func() (*column.Block, error)
	prefixFn func() error
	suffixFn func() error
	onCancel func()
}

// NewFuncSource builds a Source around readFn. prefixFn, suffixFn, and
// onCancel may be nil.
func NewFuncSource(readFn func() (*column.Block, error), prefixFn, suffixFn func() error, onCancel func()) *FuncSource {
	return &FuncSource{readFn: readFn, prefixFn: prefixFn, suffixFn: suffixFn, onCancel: onCancel}
}

func (s *FuncSource) ReadPrefix() error {
	if s.prefixFn != nil {
		return s.prefixFn()
	}
	return nil
}

func (s *FuncSource) ReadSuffix() error {
	if s.suffixFn != nil {
		return s.suffixFn()
	}
	return nil
}

func (s *FuncSource) Cancel() {
	s.base.Cancel()
	if s.onCancel != nil {
		s.onCancel()
	}
}

func (s *FuncSource) Read() (*column.Block, error) {
	if s.Cancelled() {
		return emptyBlock(), nil
	}
	return s.readFn()
}

// SliceSource is a Source that replays a fixed, pre-built list of blocks —
// used by in-memory tables and by tests that need a deterministic leaf
// stream.
type SliceSource struct {
	base
	blocks []*column.Block
	pos    int
}

// NewSliceSource builds a Source that yields blocks in order, then empty
// blocks forever.
func NewSliceSource(blocks []*column.Block) *SliceSource {
	return &SliceSource{blocks: blocks}
}

func (s *SliceSource) ReadPrefix() error { return nil }
func (s *SliceSource) ReadSuffix() error { return nil }

func (s *SliceSource) Read() (*column.Block, error) {
	if s.Cancelled() || s.pos >= len(s.blocks) {
		return emptyBlock(), nil
	}
	b := s.blocks[s.pos]
	s.pos++
	return b, nil
}
