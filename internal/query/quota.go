package query

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tokenbucket"
)

// ErrQuotaExceeded is raised by Quota's ChargeRows, ChargeBytes and
// ChargeErrors when an interval's rows,
// bytes, or errors budget runs out (spec §5 "Quotas track rows/bytes/
// time/errors per interval; exceeding either raises"). This package only
// does the mechanical accounting; the policy of which quota applies to
// which user/role is an external collaborator (an authn/quota-policy
// catalog), out of scope per spec.md.
var ErrQuotaExceeded = errors.New("granitetree: quota exceeded")

// Quota tracks one query's (or one query-class's) rows/bytes/errors
// consumption against a per-interval budget, each dimension its own
// token bucket refilled continuously at the rate that restores the full
// budget over QuotaIntervalSeconds (see NewQuota). Grounded
// directly on pebble's internal/rate.Limiter, which wraps exactly one
// cockroachdb/tokenbucket.TokenBucket behind a mutex; Quota runs three
// of them side by side for the three countable dimensions spec §5 names
// (time is handled separately by ExecutionSpeedWatchdog below, since it
// is a rate check against elapsed wall time rather than a consumable
// budget).
type Quota struct {
	mu struct {
		sync.Mutex
		rows   tokenbucket.TokenBucket
		bytes  tokenbucket.TokenBucket
		errors tokenbucket.TokenBucket
	}
}

// NewQuota builds a Quota that allows up to maxRows/maxBytes/maxErrors
// per intervalSeconds, refilling continuously at that average rate
// (maxRows/intervalSeconds tokens per second, etc.), with the full
// per-interval budget available as burst.
func NewQuota(maxRows, maxBytes, maxErrors uint64, intervalSeconds float64) *Quota {
	if intervalSeconds <= 0 {
		intervalSeconds = 60
	}
	q := &Quota{}
	q.mu.rows.Init(tokenbucket.TokensPerSecond(float64(maxRows)/intervalSeconds), tokenbucket.Tokens(maxRows))
	q.mu.bytes.Init(tokenbucket.TokensPerSecond(float64(maxBytes)/intervalSeconds), tokenbucket.Tokens(maxBytes))
	q.mu.errors.Init(tokenbucket.TokensPerSecond(float64(maxErrors)/intervalSeconds), tokenbucket.Tokens(maxErrors))
	return q
}

// ChargeRows deducts rows from the rows budget, returning
// ErrQuotaExceeded if that would go negative. Unlike pebble's
// Limiter.Wait, a quota charge never blocks: this package mirrors spec
// §5's "exceeding either raises", not a backpressure sleep.
func (q *Quota) ChargeRows(n uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ok, _ := q.mu.rows.TryToFulfill(tokenbucket.Tokens(n)); !ok {
		return errors.Wrapf(ErrQuotaExceeded, "rows")
	}
	return nil
}

// ChargeBytes deducts bytes from the bytes budget.
func (q *Quota) ChargeBytes(n uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ok, _ := q.mu.bytes.TryToFulfill(tokenbucket.Tokens(n)); !ok {
		return errors.Wrapf(ErrQuotaExceeded, "bytes")
	}
	return nil
}

// ChargeErrors deducts from the errors budget, letting a caller cap how
// many failed queries a quota-tracked principal may rack up per
// interval before further attempts are rejected outright.
func (q *Quota) ChargeErrors(n uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ok, _ := q.mu.errors.TryToFulfill(tokenbucket.Tokens(n)); !ok {
		return errors.Wrapf(ErrQuotaExceeded, "errors")
	}
	return nil
}

// ExecutionSpeedWatchdog implements spec §5's "min_execution_speed
// checked after timeout_before_checking_execution_speed": a query whose
// observed rows/second falls below the configured floor, once the grace
// period has elapsed, should be aborted.
type ExecutionSpeedWatchdog struct {
	minRowsPerSecond float64
	grace            time.Duration
	start            time.Time
}

// NewExecutionSpeedWatchdog returns a watchdog that only starts
// evaluating minRowsPerSecond once grace has elapsed since start.
func NewExecutionSpeedWatchdog(minRowsPerSecond float64, grace time.Duration, start time.Time) *ExecutionSpeedWatchdog {
	return &ExecutionSpeedWatchdog{
		minRowsPerSecond: minRowsPerSecond,
		grace:            grace,
		start:            start,
	}
}

// Check reports whether, given rowsSoFar read by now, the query is
// still meeting its minimum execution speed. Returns true (healthy)
// until the grace period elapses and the measured rate falls below the
// floor; a zero minRowsPerSecond disables the check entirely.
func (w *ExecutionSpeedWatchdog) Check(now time.Time, rowsSoFar uint64) bool {
	if w.minRowsPerSecond <= 0 {
		return true
	}
	elapsed := now.Sub(w.start)
	if elapsed < w.grace {
		return true
	}
	observed := float64(rowsSoFar) / elapsed.Seconds()
	return observed >= w.minRowsPerSecond
}
