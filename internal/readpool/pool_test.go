package readpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Henry2SS/granitetree/internal/column"
	"github.com/Henry2SS/granitetree/internal/ioutil"
	"github.com/Henry2SS/granitetree/internal/mergetree"
)

func newTestPart(t *testing.T, rows int) *mergetree.Part {
	t.Helper()
	dir := t.TempDir()
	settings := mergetree.DefaultSettings()
	settings.IndexGranularity = 10
	settings.Codec = ioutil.CodecNone
	table := mergetree.NewTable(
		dir,
		[]string{"d", "id", "v"},
		[]column.TypeInfo{
			{Name: "Date", Kind: column.KindDate},
			{Name: "Int64", Kind: column.KindInt64},
			{Name: "Int64", Kind: column.KindInt64},
		},
		[]string{"d", "id"},
		mergetree.ModeOrdinary,
		"",
		settings,
	)
	require.NoError(t, table.Open())

	day := column.DateFromTime(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	dates := make([]int32, rows)
	ids := make([]int64, rows)
	vals := make([]int64, rows)
	for i := 0; i < rows; i++ {
		dates[i] = day
		ids[i] = int64(i)
		vals[i] = int64(i)
	}
	block := column.NewBlock()
	block.AddColumn("d", column.TypeInfo{Name: "Date", Kind: column.KindDate}, column.NewVectorFromSlice[int32](column.KindDate, dates))
	block.AddColumn("id", column.TypeInfo{Name: "Int64", Kind: column.KindInt64}, column.NewVectorFromSlice[int64](column.KindInt64, ids))
	block.AddColumn("v", column.TypeInfo{Name: "Int64", Kind: column.KindInt64}, column.NewVectorFromSlice[int64](column.KindInt64, vals))

	require.NoError(t, table.Insert(block, "d"))

	active := table.ActiveParts()
	require.Len(t, active, 1)
	return active[0]
}

// TestBiteOffRespectsMinConcurrent mirrors spec §4.4's "never leave fewer
// than min_marks_for_concurrent_read marks in a part unless taking the
// whole remainder".
func TestBiteOffRespectsMinConcurrent(t *testing.T) {
	ranges := []mergetree.MarkRange{{Begin: 0, End: 10}}

	taken, rest := biteOff(ranges, 7, 5)
	require.Equal(t, 10, rangesLen(taken)+rangesLen(rest))
	require.True(t, rangesLen(rest) == 0 || rangesLen(rest) >= 5)

	taken, rest = biteOff(ranges, 3, 5)
	require.Equal(t, 10, rangesLen(taken)+rangesLen(rest))
	require.True(t, rangesLen(rest) == 0 || rangesLen(rest) >= 5)
}

func TestBiteOffTakesWholeRemainderWhenSmall(t *testing.T) {
	ranges := []mergetree.MarkRange{{Begin: 0, End: 4}}
	taken, rest := biteOff(ranges, 100, 5)
	require.Equal(t, 4, rangesLen(taken))
	require.Empty(t, rest)
}

// TestPoolGetTaskServesOwnQueueFirst mirrors scenario S6: a pool built
// over one part's ranges, split across two threads, serves each
// thread's own queue before any stealing is considered.
func TestPoolGetTaskServesOwnQueueFirst(t *testing.T) {
	part := newTestPart(t, 100)
	defer part.Release()

	ranges := mergetree.RangesInPart(part, nil, 2)
	require.NotEmpty(t, ranges)

	pool := NewPool(PoolInputs{
		Threads:                   2,
		MinMarksForConcurrentRead: 1,
		PartsInOrder:              []*mergetree.Part{part},
		RangesPerPart:             [][]mergetree.MarkRange{ranges},
		OrderedColumns:            []string{"d", "id", "v"},
	})

	var gotMarks int
	for thread := 0; thread < 2; thread++ {
		for {
			task := pool.GetTask(2, thread)
			if task == nil {
				break
			}
			for _, r := range task.Ranges {
				gotMarks += r.Len()
			}
		}
	}
	require.Equal(t, marksIn(ranges), gotMarks)
}

// TestPoolGetTaskSteals mirrors scenario S6's work-stealing half: one
// thread exhausts its own queue and drains a sibling's instead, so the
// total marks served still equals the total available.
func TestPoolGetTaskSteals(t *testing.T) {
	part := newTestPart(t, 200)
	defer part.Release()

	ranges := mergetree.RangesInPart(part, nil, 2)
	pool := NewPool(PoolInputs{
		Threads:                   2,
		MinMarksForConcurrentRead: 1,
		PartsInOrder:              []*mergetree.Part{part},
		RangesPerPart:             [][]mergetree.MarkRange{ranges},
		OrderedColumns:            []string{"d", "id", "v"},
	})

	var gotMarks int
	for {
		task := pool.GetTask(1000, 0) // thread 0 asks for everything, stealing once its own queue is dry
		if task == nil {
			break
		}
		for _, r := range task.Ranges {
			gotMarks += r.Len()
		}
	}
	require.Equal(t, marksIn(ranges), gotMarks)
}

func TestPoolDoNotStealTasks(t *testing.T) {
	part := newTestPart(t, 200)
	defer part.Release()

	ranges := mergetree.RangesInPart(part, nil, 2)
	pool := NewPool(PoolInputs{
		Threads:                   2,
		MinMarksForConcurrentRead: 1,
		DoNotStealTasks:           true,
		PartsInOrder:              []*mergetree.Part{part},
		RangesPerPart:             [][]mergetree.MarkRange{ranges},
		OrderedColumns:            []string{"d", "id", "v"},
	})

	task := pool.GetTask(1000, 0)
	require.NotNil(t, task)
	// thread 0's single task should not have drained thread 1's queue
	// too, since stealing is disabled.
	task2 := pool.GetTask(1000, 1)
	require.NotNil(t, task2)
}

func TestInjectRequiredColumnsAllPresent(t *testing.T) {
	part := newTestPart(t, 10)
	defer part.Release()

	ordered, reorder := InjectRequiredColumns(part, []string{"d", "id", "v"})
	require.Equal(t, []string{"d", "id", "v"}, ordered)
	require.False(t, reorder)
}

func TestInjectRequiredColumnsNoneOnDisk(t *testing.T) {
	part := newTestPart(t, 10)
	defer part.Release()

	ordered, reorder := InjectRequiredColumns(part, []string{"missing"})
	require.True(t, reorder)
	require.Len(t, ordered, 2)
	require.Equal(t, "missing", ordered[0])
}
