package column

import "time"

// epoch is the reference point for Date (day count) and DateTime (second
// count) columns, matching spec.md §3 ("day count since epoch", "seconds
// since epoch").
var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// NewDateColumn creates an empty Date column: a day-count-since-epoch
// column backed by int32.
func NewDateColumn() *Vector[int32] { return NewVector[int32](KindDate) }

// NewDateTimeColumn creates an empty DateTime column: a
// second-count-since-epoch column backed by int64.
func NewDateTimeColumn() *Vector[int64] { return NewVector[int64](KindDateTime) }

// DateFromTime converts a wall-clock time to a Date day count.
func DateFromTime(t time.Time) int32 {
	days := t.UTC().Sub(epoch).Hours() / 24
	return int32(days)
}

// TimeFromDate converts a Date day count back to a wall-clock time at
// midnight UTC.
func TimeFromDate(d int32) time.Time {
	return epoch.AddDate(0, 0, int(d))
}

// DateTimeFromTime converts a wall-clock time to a DateTime second count.
func DateTimeFromTime(t time.Time) int64 {
	return t.UTC().Unix()
}

// TimeFromDateTime converts a DateTime second count back to a wall-clock
// time.
func TimeFromDateTime(s int64) time.Time {
	return time.Unix(s, 0).UTC()
}

// MonthKey returns the calendar month identifier (YYYYMM) a Date falls
// into; the write path uses this to split a block into per-month
// sub-blocks and a part's name encodes the (min-date, max-date) bound of
// exactly one such month (part.go's Invariant 1).
func MonthKey(d int32) int {
	t := TimeFromDate(d)
	return t.Year()*100 + int(t.Month())
}
