package stream

import (
	"container/heap"
	gosort "sort"

	"github.com/Henry2SS/granitetree/internal/column"
)

// SortKey names one ORDER BY term: the column position and whether it
// sorts descending.
type SortKey struct {
	Position int
	Reverse  bool
	NaNDir   column.NaNDirection
}

// SortStream is a pipeline breaker: it accumulates all input blocks, then
// produces a single permutation over the concatenated input using
// per-column comparators, materializing the result through
// Block.Permute (spec §4.1 "Sort (partial or full)"). When Limit > 0 a
// bounded max-heap keeps only the current top-Limit candidates, the
// "partial sort" spec.md names; Limit == 0 sorts the whole input.
type SortStream struct {
	base
	child InputStream
	keys  []SortKey
	limit int

	accumulated []*column.Block
	rowBlock    []int
	rowIndex    []int

	resultRead bool
}

// NewSortStream wraps child, producing one fully sorted output block (or
// the top Limit rows if Limit > 0) ordered by keys.
func NewSortStream(child InputStream, keys []SortKey, limit int) *SortStream {
	return &SortStream{child: child, keys: keys, limit: limit}
}

func (s *SortStream) ReadPrefix() error { return s.child.ReadPrefix() }
func (s *SortStream) ReadSuffix() error { return s.child.ReadSuffix() }

func (s *SortStream) Cancel() {
	s.base.Cancel()
	s.child.Cancel()
}

func (s *SortStream) compareRows(a, b int) int {
	ab, ai := s.accumulated[s.rowBlock[a]], s.rowIndex[a]
	bb, bi := s.accumulated[s.rowBlock[b]], s.rowIndex[b]
	for _, k := range s.keys {
		cmp := ab.Column(k.Position).CompareAt(ai, bb.Column(k.Position), bi, k.NaNDir)
		if k.Reverse {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp
		}
	}
	return 0
}

// Read accumulates the entire child stream on its first call, sorts, and
// returns the (possibly limited) result as a single block; subsequent
// calls return empty, honoring the end-of-stream contract.
func (s *SortStream) Read() (*column.Block, error) {
	if s.resultRead || s.Cancelled() {
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
		blockIdx := len(s.accumulated)
		s.accumulated = append(s.accumulated, block)
		for i := 0; i < block.Rows(); i++ {
			s.rowBlock = append(s.rowBlock, blockIdx)
			s.rowIndex = append(s.rowIndex, i)
		}
	}
	s.resultRead = true

	total := len(s.rowBlock)
	if total == 0 {
		return emptyBlock(), nil
	}

	var order []int
	if s.limit > 0 && s.limit < total {
		order = s.partialSort(total)
	} else {
		order = make([]int, total)
		for i := range order {
			order[i] = i
		}
		gosort.Slice(order, func(i, j int) bool { return s.compareRows(order[i], order[j]) < 0 })
	}

	return s.materialize(order), nil
}

// partialSort keeps the smallest Limit rows using a bounded max-heap over
// the "worse than current worst" comparator, then sorts that small set —
// the standard top-k approach and the Go analogue of ClickHouse's
// std::partial_sort.
func (s *SortStream) partialSort(total int) []int {
	h := &topKHeap{s: s}
	for i := 0; i < total; i++ {
		if h.Len() < s.limit {
			heap.Push(h, i)
			continue
		}
		if s.compareRows(i, h.items[0]) < 0 {
			h.items[0] = i
			heap.Fix(h, 0)
		}
	}
	out := append([]int(nil), h.items...)
	gosort.Slice(out, func(i, j int) bool { return s.compareRows(out[i], out[j]) < 0 })
	return out
}

type topKHeap struct {
	s     *SortStream
	items []int
}

func (h *topKHeap) Len() int { return len(h.items) }
func (h *topKHeap) Less(i, j int) bool {
	// Max-heap on the sort order so the current worst-of-the-best sits at
	// the root and can be evicted in O(log k).
	return h.s.compareRows(h.items[i], h.items[j]) > 0
}
func (h *topKHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *topKHeap) Push(x interface{}) { h.items = append(h.items, x.(int)) }
func (h *topKHeap) Pop() interface{} {
	n := len(h.items)
	v := h.items[n-1]
	h.items = h.items[:n-1]
	return v
}

func (s *SortStream) materialize(order []int) *column.Block {
	// Build one unified block view by first concatenating all accumulated
	// blocks column-wise, then permuting — simplest correct approach given
	// Block.Permute operates on a single block.
	unified := s.accumulated[0].CloneEmpty()
	for _, b := range s.accumulated {
		_ = unified.AppendBlock(b)
	}
	perm := make([]int, len(order))
	for i, idx := range order {
		perm[i] = s.globalRowToUnifiedIndex(idx)
	}
	return unified.Permute(perm, 0)
}

// globalRowToUnifiedIndex converts a (block, row) pair back into the flat
// row index within the concatenation built by materialize.
func (s *SortStream) globalRowToUnifiedIndex(flatIdx int) int {
	blockIdx, rowIdx := s.rowBlock[flatIdx], s.rowIndex[flatIdx]
	offset := 0
	for i := 0; i < blockIdx; i++ {
		offset += s.accumulated[i].Rows()
	}
	return offset + rowIdx
}
