package mergetree

import (
	"time"

	"github.com/Henry2SS/granitetree/internal/ioutil"
)

// MergeMode selects how the k-way part merge collapses rows that share a
// primary key (spec §4.3 "A merge k-way-streams its inputs, applying the
// table's mode").
type MergeMode int

const (
	// ModeOrdinary performs a straight merge-sort on the primary key; no
	// rows are collapsed.
	ModeOrdinary MergeMode = iota
	// ModeCollapsing cancels pairs of rows with identical primary key and
	// opposite sign (SignColumn).
	ModeCollapsing
	// ModeSumming collapses rows with identical primary key, summing their
	// non-key numeric columns.
	ModeSumming
	// ModeAggregating collapses rows with identical primary key into the
	// group's last row; AggregateState columns are taken from that row and
	// are not combined with the other rows' states.
	ModeAggregating
)

// Settings is the MergeTree configuration area of spec §6's option table:
// read planning, the compaction heuristic, and insert backpressure.
type Settings struct {
	// IndexGranularity is the row stride at which primary.idx and every
	// .mrk file sample a mark (spec glossary "Mark").
	IndexGranularity int
	// CoarseIndexGranularity bounds how finely SelectRanges subdivides a
	// candidate mark range while pruning against the primary index.
	CoarseIndexGranularity int
	// MinRowsForConcurrentRead is min_marks_for_concurrent_read expressed in
	// rows. Nothing reads it: the read pool (internal/readpool) takes its
	// own minimum directly in marks.
	MinRowsForConcurrentRead int
	MinRowsForSeek           int

	// MaxPartsToMergeAtOnce bounds how many parts one compaction may fold
	// together.
	MaxPartsToMergeAtOnce int
	// MaxBytesToMergeParts bounds the total input size of one compaction.
	MaxBytesToMergeParts int64
	// MaxBytesToMergePartsSmall is the tighter bound applied when none of
	// the candidate parts individually exceeds it (keeps small, frequent
	// merges cheap rather than letting them grow to MaxBytesToMergeParts).
	MaxBytesToMergePartsSmall int64
	// SizeRatioCoefficientToMergeParts bounds, for every part in a
	// candidate merge group, how far its size may sit from the group's
	// geometric mean (spec §4.3 "prevents pathologically unbalanced
	// merges").
	SizeRatioCoefficientToMergeParts float64
	// MergePartsAtNightInc divides SizeRatioCoefficientToMergeParts during
	// the configured night window, widening the balanced-group size-ratio
	// window and biasing toward larger merges when query load is expected
	// to be low. Values > 1 loosen the bound; 1.0 (the default) disables
	// the night bias entirely.
	MergePartsAtNightInc float64
	NightWindowStartHour int
	NightWindowEndHour   int

	// PartsToDelayInsert is the active-part-count threshold (per month)
	// above which Insert sleeps before writing the next block.
	PartsToDelayInsert int
	// InsertDelayStepMillis is the base of the insert_delay_step^k backoff
	// (k = parts in excess of PartsToDelayInsert).
	InsertDelayStepMillis int64

	// OldPartsLifetime is the grace period for inactive (superseded) parts.
	// Nothing in this package reads it: retired parts stay in the table's
	// all-parts set and on disk, and no code removes them.
	OldPartsLifetime time.Duration

	// Codec compresses every column .bin file this table writes.
	Codec ioutil.Codec
}

// DefaultSettings returns conservative values in the spirit of the
// teacher's own Options defaults (internal/base/options.go): safe for a
// small to medium table, tunable per deployment.
func DefaultSettings() Settings {
	return Settings{
		IndexGranularity:                 8192,
		CoarseIndexGranularity:           8,
		MinRowsForConcurrentRead:         20 * 8192,
		MinRowsForSeek:                   2 * 8192,
		MaxPartsToMergeAtOnce:            100,
		MaxBytesToMergeParts:             150 << 30,
		MaxBytesToMergePartsSmall:        1 << 30,
		SizeRatioCoefficientToMergeParts: 0.5,
		MergePartsAtNightInc:             1.0,
		NightWindowStartHour:             22,
		NightWindowEndHour:               6,
		PartsToDelayInsert:               150,
		InsertDelayStepMillis:            1,
		OldPartsLifetime:                 8 * time.Minute,
		Codec:                            ioutil.CodecS2,
	}
}
