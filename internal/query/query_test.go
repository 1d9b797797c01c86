package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSettingsEnsureDefaults(t *testing.T) {
	var s Settings
	s.EnsureDefaults()
	require.Equal(t, uint64(65536), s.MaxBlockSize)
	require.Equal(t, uint64(8), s.MaxThreads)
	require.Equal(t, uint64(24), s.MinMarksForConcurrentRead)
	require.Equal(t, 60.0, s.QuotaIntervalSeconds)
}

func TestSettingsSnapshotIsIndependent(t *testing.T) {
	base := (&Settings{}).EnsureDefaults()
	snap := base.Snapshot()
	snap.MaxThreads = 1
	require.NotEqual(t, base.MaxThreads, snap.MaxThreads)
}

func TestProgressAccumulates(t *testing.T) {
	var p Progress
	p.AddRead(10, 100)
	p.AddRead(5, 50)
	p.SetTotalRowsToRead(1000)

	snap := p.Snapshot()
	require.Equal(t, uint64(15), snap.RowsRead)
	require.Equal(t, uint64(150), snap.BytesRead)
	require.Equal(t, uint64(1000), snap.TotalRowsToRead)
}

func TestQuotaChargeWithinBudget(t *testing.T) {
	q := NewQuota(1000, 1_000_000, 10, 60)
	require.NoError(t, q.ChargeRows(500))
	require.NoError(t, q.ChargeBytes(500_000))
}

func TestQuotaChargeExceedsBudget(t *testing.T) {
	q := NewQuota(100, 1_000_000, 10, 60)
	require.NoError(t, q.ChargeRows(90))
	err := q.ChargeRows(50)
	require.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestExecutionSpeedWatchdogGracePeriod(t *testing.T) {
	start := time.Now()
	w := NewExecutionSpeedWatchdog(1000, 5*time.Second, start)
	require.True(t, w.Check(start.Add(1*time.Second), 1)) // well under min speed but still in grace
}

func TestExecutionSpeedWatchdogTripsAfterGrace(t *testing.T) {
	start := time.Now()
	w := NewExecutionSpeedWatchdog(1000, time.Second, start)
	require.False(t, w.Check(start.Add(2*time.Second), 10)) // 5 rows/sec, far under 1000
}

func TestNewQueryIDIsUnique(t *testing.T) {
	a := NewQueryID()
	b := NewQueryID()
	require.NotEqual(t, a, b)
}

func TestLimiterChecksMaxExecutionTime(t *testing.T) {
	settings := (&Settings{MaxExecutionTime: 10, ExecutionTimePolicy: OverflowThrow}).EnsureDefaults()
	progress := &Progress{}
	start := time.Now()
	limiter := NewLimiter(settings, progress, nil, start)

	err := limiter.Check(1, 1, 50*time.Millisecond, func() {})
	require.ErrorIs(t, err, ErrExecutionTimeExceeded)
}

func TestLimiterBreakPolicyCancelsInsteadOfErroring(t *testing.T) {
	settings := (&Settings{MaxExecutionTime: 10, ExecutionTimePolicy: OverflowBreak}).EnsureDefaults()
	progress := &Progress{}
	start := time.Now()
	limiter := NewLimiter(settings, progress, nil, start)

	cancelled := false
	err := limiter.Check(1, 1, 50*time.Millisecond, func() { cancelled = true })
	require.NoError(t, err)
	require.True(t, cancelled)
}
