package readpool

import (
	"sort"
	"sync"

	"github.com/Henry2SS/granitetree/internal/column"
	"github.com/Henry2SS/granitetree/internal/mergetree"
)

// Pool pre-distributes a query's mark-ranges across a fixed number of
// worker threads and serves them out one Task at a time, stealing from
// another thread's queue when the caller's own queue runs dry (spec
// §4.4). One mutex guards every queue; this package has no lock-free
// path, matching spec §5's "one mutex guarding the per-thread queues;
// all work-stealing decisions happen under it."
type Pool struct {
	minMarksForConcurrentRead int
	doNotStealTasks           bool

	orderedColumns []string
	columnTypes    []column.TypeInfo

	prewhereColumns []string
	prewhereTypes   []column.TypeInfo

	mu      sync.Mutex
	queues  [][]partQueueEntry // per-thread queue, right-to-left: pop from the back
	parts   []*mergetree.Part  // indexed by PartIndex, for stable identity
	remain  []int              // remaining marks per thread's queue, cached for stealing order
}

// partQueueEntry is one part's still-unclaimed ranges sitting in a
// thread's queue.
type partQueueEntry struct {
	partIndex int
	ranges    []mergetree.MarkRange // right-to-left: ranges[len-1] is taken first
}

// PoolInputs bundles Pool's construction-time inputs (spec §4.4
// "Inputs").
type PoolInputs struct {
	Threads                   int
	MinMarksForConcurrentRead int
	DoNotStealTasks           bool

	PartsInOrder    []*mergetree.Part // already filtered to this query's matching parts
	RangesPerPart   [][]mergetree.MarkRange

	OrderedColumns []string
	ColumnTypes    []column.TypeInfo

	PrewhereColumns []string
	PrewhereTypes   []column.TypeInfo
}

// NewPool pre-distributes ranges across threads (spec §4.4
// "Pre-distribution"): compute per-thread target ≈ ceil(M/T), then
// iterate parts largest-index-down, biting off mark-ranges from the
// back of the next part until each thread's target is met.
func NewPool(in PoolInputs) *Pool {
	threads := in.Threads
	if threads < 1 {
		threads = 1
	}

	totalMarks := 0
	for _, ranges := range in.RangesPerPart {
		totalMarks += marksIn(ranges)
	}
	target := ceilDiv(totalMarks, threads)

	p := &Pool{
		minMarksForConcurrentRead: in.MinMarksForConcurrentRead,
		doNotStealTasks:           in.DoNotStealTasks,
		orderedColumns:            in.OrderedColumns,
		columnTypes:               in.ColumnTypes,
		prewhereColumns:           in.PrewhereColumns,
		prewhereTypes:             in.PrewhereTypes,
		parts:                     in.PartsInOrder,
		queues:                    make([][]partQueueEntry, threads),
		remain:                    make([]int, threads),
	}

	// Walk parts from the largest index down over copies of each part's
	// ranges; every segment biteOff hands back (back-to-front) is reversed
	// before it is queued, so queued ranges are in left-to-right order.
	remaining := make([][]mergetree.MarkRange, len(in.RangesPerPart))
	for i, ranges := range in.RangesPerPart {
		remaining[i] = append([]mergetree.MarkRange(nil), ranges...)
	}

	thread := 0
	for idx := len(in.PartsInOrder) - 1; idx >= 0 && thread < threads; idx-- {
		for marksIn(remaining[idx]) > 0 && thread < threads {
			need := target - p.remain[thread]
			if need <= 0 {
				thread++
				continue
			}
			taken, rest := biteOff(remaining[idx], need, p.minMarksForConcurrentRead)
			remaining[idx] = rest
			if len(taken) == 0 {
				break
			}
			reverseRanges(taken)
			p.queues[thread] = append(p.queues[thread], partQueueEntry{partIndex: idx, ranges: taken})
			p.remain[thread] += rangesLen(taken)
			if marksIn(remaining[idx]) == 0 {
				break
			}
		}
	}
	return p
}

// GetTask implements spec §4.4's "Task acquisition": serve from the
// calling thread's own queue; if empty and stealing is allowed, serve
// from any thread still holding tasks; otherwise return nil.
func (p *Pool) GetTask(minMarks, threadID int) *Task {
	p.mu.Lock()
	defer p.mu.Unlock()

	if threadID < 0 || threadID >= len(p.queues) {
		return nil
	}
	if len(p.queues[threadID]) == 0 {
		if p.doNotStealTasks {
			return nil
		}
		threadID = p.pickVictimLocked()
		if threadID < 0 {
			return nil
		}
	}
	return p.popTaskLocked(threadID, minMarks)
}

// pickVictimLocked returns the index of some other thread still holding
// a nonempty queue, or -1 if none remain. Called with mu held.
func (p *Pool) pickVictimLocked() int {
	best := -1
	for i, q := range p.queues {
		if len(q) == 0 {
			continue
		}
		if best == -1 || p.remain[i] > p.remain[best] {
			best = i
		}
	}
	return best
}

// popTaskLocked pops the next part-and-ranges entry from queues[idx],
// takes up to min(marks_in_part, minMarks) with the "don't leave
// fragments" rule, and builds a Task. Called with mu held.
func (p *Pool) popTaskLocked(idx, minMarks int) *Task {
	q := p.queues[idx]
	entry := q[len(q)-1]

	taken, rest := biteOff(entry.ranges, minMarks, p.minMarksForConcurrentRead)
	p.remain[idx] -= rangesLen(taken)
	if len(rest) == 0 {
		p.queues[idx] = q[:len(q)-1]
	} else {
		entry.ranges = rest
		q[len(q)-1] = entry
		p.queues[idx] = q
	}

	// biteOff hands the taken segment back right-to-left; put it back in
	// left-to-right order for the reader (spec §4.4 point 3).
	reverseRanges(taken)

	part := p.parts[entry.partIndex]
	orderedColumns, shouldReorder := InjectRequiredColumns(part, p.orderedColumns)

	return &Task{
		Part:            part,
		PartIndex:       entry.partIndex,
		Ranges:          taken,
		OrderedColumns:  orderedColumns,
		ColumnTypes:     p.columnTypes,
		PrewhereColumns: p.prewhereColumns,
		PrewhereTypes:   p.prewhereTypes,
		ShouldReorder:   shouldReorder,
	}
}

// biteOff takes up to want marks from the back of ranges (right-to-left
// as stored), never leaving fewer than minConcurrent marks behind in the
// segment unless the whole remainder is taken (spec §4.4
// "Pre-distribution" and "Task acquisition" point 2). Returns the taken
// ranges (back-to-front order, matching ranges' own order) and whatever
// is left.
func biteOff(ranges []mergetree.MarkRange, want, minConcurrent int) (taken, rest []mergetree.MarkRange) {
	total := marksIn(ranges)
	if total == 0 {
		return nil, nil
	}
	if want >= total || total-want < minConcurrent {
		taken = append([]mergetree.MarkRange(nil), ranges...)
		reverseRanges(taken)
		return taken, nil
	}

	rest = append([]mergetree.MarkRange(nil), ranges...)
	var acc int
	for acc < want && len(rest) > 0 {
		last := rest[len(rest)-1]
		need := want - acc
		if last.Len() <= need {
			taken = append(taken, last)
			acc += last.Len()
			rest = rest[:len(rest)-1]
			continue
		}
		// Split the last range: the tail (need marks) is taken, the head
		// stays in rest, unless that would leave a too-small fragment.
		if last.Len()-need < minConcurrent {
			taken = append(taken, last)
			acc += last.Len()
			rest = rest[:len(rest)-1]
			continue
		}
		splitAt := last.End - need
		taken = append(taken, mergetree.MarkRange{Begin: splitAt, End: last.End})
		rest[len(rest)-1] = mergetree.MarkRange{Begin: last.Begin, End: splitAt}
		acc += need
	}
	return taken, rest
}

func rangesLen(ranges []mergetree.MarkRange) int {
	return marksIn(ranges)
}

func reverseRanges(ranges []mergetree.MarkRange) {
	for i, j := 0, len(ranges)-1; i < j; i, j = i+1, j-1 {
		ranges[i], ranges[j] = ranges[j], ranges[i]
	}
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

// InjectRequiredColumns implements spec §4.4's "Required-column
// injection": for a part that has none of the requested columns' files,
// inject the smallest on-disk column as a row-count carrier; if only some
// are missing, the missing names are dropped from the list. This package
// has no DEFAULT-expression evaluator (the SQL parser/AST is an external
// collaborator per spec.md), so a column present in the table's schema
// but absent from this part's files is not backfilled. Returns the
// (possibly appended-to or reduced) column list and whether the caller
// must reorder output to match the originally requested order.
func InjectRequiredColumns(part *mergetree.Part, requested []string) (ordered []string, shouldReorder bool) {
	present := make(map[string]bool, len(requested))
	anyPresent := false
	for _, name := range requested {
		if part.HasColumn(name) {
			present[name] = true
			anyPresent = true
		}
	}
	if anyPresent {
		if len(present) == len(requested) {
			return requested, false
		}
		// At least one column is missing its files but others are
		// present: reads proceed on what's available; there is nothing
		// meaningful to inject in its place without a default-expression
		// evaluator, so the missing names are simply dropped here.
		out := make([]string, 0, len(requested))
		for _, name := range requested {
			if present[name] {
				out = append(out, name)
			}
		}
		return out, true
	}

	// None of the requested columns are on disk for this part: inject
	// the cheapest column, purely to recover the part's row count.
	carrier := smallestColumn(part)
	if carrier == "" {
		return requested, false
	}
	return append(append([]string(nil), requested...), carrier), true
}

func smallestColumn(part *mergetree.Part) string {
	names := part.ColumnNames()
	if len(names) == 0 {
		return ""
	}
	sort.Slice(names, func(i, j int) bool {
		return part.OnDiskBytes(names[i]) < part.OnDiskBytes(names[j])
	})
	return names[0]
}
