package query

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	xrate "golang.org/x/time/rate"

	"github.com/Henry2SS/granitetree/internal/stream"
)

// ErrExecutionTimeExceeded is raised (OverflowThrow) or used to trigger
// Cancel (OverflowBreak) once max_execution_time has elapsed.
var ErrExecutionTimeExceeded = errors.New("granitetree: max_execution_time exceeded")

// ErrExecutionTooSlow is raised when min_execution_speed's floor check
// fails after the configured grace period.
var ErrExecutionTooSlow = errors.New("granitetree: execution speed below min_execution_speed")

// QueryID uniquely identifies one query for progress reporting, quota
// attribution, and replace_running_query handling; a plain type alias
// over uuid.UUID, matching how sneller/icedb/bunbase all thread
// google/uuid IDs through their own request-scoped types rather than
// inventing an ID format.
type QueryID = uuid.UUID

// NewQueryID returns a fresh random query identifier.
func NewQueryID() QueryID { return uuid.New() }

// Limiter is the internal/query implementation of stream.ProgressLimiter
// (spec §4.1 paragraph 4's "profiling wrapper" contract): it enforces
// max_execution_time, min_execution_speed, and an optional Quota against
// one query's running ProfilingStream, and feeds the same counters into
// a Progress accumulator for external reporting.
//
// Checking quotas and the execution-speed floor on every single block
// is unnecessary overhead for small blocks at high throughput, so the
// actual check logic is throttled to at most 20 times per second
// via golang.org/x/time/rate — the rate limiter governs how often this
// Limiter does work, not how fast the query itself is allowed to run.
type Limiter struct {
	settings *Settings
	progress *Progress
	watchdog *ExecutionSpeedWatchdog
	quota    *Quota

	maxExecutionTime time.Duration
	checkThrottle    *xrate.Limiter
}

// NewLimiter builds a Limiter from a query's settings snapshot, start
// time, and (optional) quota tracker.
func NewLimiter(settings *Settings, progress *Progress, quota *Quota, start time.Time) *Limiter {
	grace := time.Duration(settings.TimeoutBeforeCheckingExecutionSpeed) * time.Millisecond
	return &Limiter{
		settings:         settings,
		progress:         progress,
		quota:            quota,
		watchdog:         NewExecutionSpeedWatchdog(settings.MinExecutionSpeed, grace, start),
		maxExecutionTime: time.Duration(settings.MaxExecutionTime) * time.Millisecond,
		checkThrottle:    xrate.NewLimiter(xrate.Limit(20), 1), // at most 20 checks/sec
	}
}

// Check implements stream.ProgressLimiter.
func (l *Limiter) Check(rows, bytes uint64, elapsed time.Duration, cancel func()) error {
	l.progress.AddRead(rows, bytes)

	if !l.checkThrottle.Allow() {
		return nil
	}

	if l.maxExecutionTime > 0 && elapsed > l.maxExecutionTime {
		if l.settings.ExecutionTimePolicy == OverflowBreak {
			cancel()
			return nil
		}
		return errors.Wrapf(ErrExecutionTimeExceeded, "after %s", elapsed)
	}

	if !l.watchdog.Check(l.watchdog.start.Add(elapsed), rows) {
		return errors.Wrapf(ErrExecutionTooSlow, "after %s, %d rows", elapsed, rows)
	}

	if l.quota != nil {
		if err := l.quota.ChargeRows(rows); err != nil {
			return err
		}
		if err := l.quota.ChargeBytes(bytes); err != nil {
			return err
		}
	}
	return nil
}

var _ stream.ProgressLimiter = (*Limiter)(nil)
