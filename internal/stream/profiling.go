package stream

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/Henry2SS/granitetree/internal/column"
)

// ProgressCallback is invoked at leaf streams with (rows, bytes) read,
// and propagates to a per-query accumulator that enforces rate limits,
// execution-time limits, and quotas (spec §4.1 paragraph 4).
type ProgressCallback func(rows, bytes uint64)

// ProgressLimiter is the per-query accumulator's view from a
// ProfilingStream: a hook that can demand cancellation once a configured
// limit (rows/bytes/time cap, quota, min execution speed) is exceeded. A
// concrete implementation lives in internal/query, which this package
// does not import, to keep the operator tree independent of the settings
// subsystem.
type ProgressLimiter interface {
	// Check is called after every block; returning an error aborts the
	// query with that error (a resource-limit error per spec §7). The
	// limiter itself decides throw-vs-break semantics and may instead call
	// the supplied cancel func and return nil ("break").
	Check(rows, bytes uint64, elapsed time.Duration, cancel func()) error
}

// ProfilingStream wraps any InputStream, recording rows/blocks/bytes/wall
// time and invoking a progress callback plus an optional ProgressLimiter
// after every block, exactly as spec §4.1's "profiling wrapper" contract
// describes.
type ProfilingStream struct {
	base
	child    InputStream
	progress ProgressCallback
	limiter  ProgressLimiter

	rows, blocks, bytes uint64
	startedAt           time.Time
	wallTime            time.Duration
	latencies           *hdrhistogram.Histogram
}

// NewProfilingStream wraps child. progress and limiter may be nil.
func NewProfilingStream(child InputStream, progress ProgressCallback, limiter ProgressLimiter) *ProfilingStream {
	return &ProfilingStream{
		child:     child,
		progress:  progress,
		limiter:   limiter,
		latencies: hdrhistogram.New(1, 10_000_000, 3), // 1us .. 10s, microsecond resolution
	}
}

func (s *ProfilingStream) ReadPrefix() error {
	s.startedAt = time.Now()
	return s.child.ReadPrefix()
}

func (s *ProfilingStream) ReadSuffix() error { return s.child.ReadSuffix() }

func (s *ProfilingStream) Cancel() {
	s.base.Cancel()
	s.child.Cancel()
}

func (s *ProfilingStream) Read() (*column.Block, error) {
	if s.Cancelled() {
		return emptyBlock(), nil
	}
	t0 := time.Now()
	block, err := s.child.Read()
	elapsed := time.Since(t0)
	s.wallTime += elapsed
	_ = s.latencies.RecordValue(elapsed.Microseconds())
	if err != nil {
		return nil, err
	}
	if block.Empty() {
		return block, nil
	}

	rows := uint64(block.Rows())
	var bytes uint64
	for i := 0; i < block.NumColumns(); i++ {
		bytes += uint64(block.Column(i).ByteSize())
	}
	s.rows += rows
	s.blocks++
	s.bytes += bytes

	if s.progress != nil {
		s.progress(rows, bytes)
	}
	if s.limiter != nil {
		if limitErr := s.limiter.Check(s.rows, s.bytes, time.Since(s.startedAt), s.Cancel); limitErr != nil {
			return nil, limitErr
		}
	}
	return block, nil
}

// Stats is a snapshot of a ProfilingStream's running totals, used for
// EXPLAIN PIPELINE-style introspection and the CLI's part/query reports.
type Stats struct {
	Rows, Blocks, Bytes uint64
	WallTime            time.Duration
	P50Micros, P99Micros int64
}

// Stats returns the current accumulated statistics.
func (s *ProfilingStream) Stats() Stats {
	return Stats{
		Rows:       s.rows,
		Blocks:     s.blocks,
		Bytes:      s.bytes,
		WallTime:   s.wallTime,
		P50Micros:  s.latencies.ValueAtQuantile(50),
		P99Micros:  s.latencies.ValueAtQuantile(99),
	}
}
