package stream

import "github.com/Henry2SS/granitetree/internal/column"

// LimitStream stops producing rows once `limit` rows (after skipping the
// first `offset`) have been emitted (spec §4.1 "Limit").
type LimitStream struct {
	base
	child  InputStream
	limit  uint64
	offset uint64

	skipped uint64
	emitted uint64
	done    bool
}

// NewLimitStream wraps child, emitting at most limit rows after skipping
// the first offset rows. limit == 0 means unlimited.
func NewLimitStream(child InputStream, limit, offset uint64) *LimitStream {
	return &LimitStream{child: child, limit: limit, offset: offset}
}

func (s *LimitStream) ReadPrefix() error { return s.child.ReadPrefix() }
func (s *LimitStream) ReadSuffix() error { return s.child.ReadSuffix() }

func (s *LimitStream) Cancel() {
	s.base.Cancel()
	s.child.Cancel()
}

func (s *LimitStream) Read() (*column.Block, error) {
	if s.done || s.Cancelled() {
		return emptyBlock(), nil
	}
	for {
		block, err := s.child.Read()
		if err != nil {
			return nil, err
		}
		if block.Empty() {
			s.done = true
			return block, nil
		}
		rows := block.Rows()

		// Skip rows still within the offset.
		begin := 0
		if s.skipped < s.offset {
			toSkip := s.offset - s.skipped
			if toSkip >= uint64(rows) {
				s.skipped += uint64(rows)
				continue
			}
			begin = int(toSkip)
			s.skipped = s.offset
		}

		end := rows
		if s.limit > 0 {
			remaining := s.limit - s.emitted
			if uint64(end-begin) > remaining {
				end = begin + int(remaining)
			}
		}
		out := block.Slice(begin, end)
		s.emitted += uint64(out.Rows())
		if s.limit > 0 && s.emitted >= s.limit {
			s.done = true
			s.child.Cancel()
		}
		return out, nil
	}
}
