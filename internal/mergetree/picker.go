package mergetree

import (
	"math"
	"sort"
	"time"

	"github.com/Henry2SS/granitetree/internal/column"
)

// PartSize is the size of a part in bytes, used by the compaction
// heuristic (spec §4.3's byte-budget and size-ratio rules) and by the
// CLI's show-parts listing — computed as the sum of a part's Checksums
// sizes rather than stored on Part itself.
func PartSize(p *Part) int64 {
	var total int64
	for _, c := range p.Checksums {
		total += c.Size
	}
	return total
}

// ConcurrencyVeto is a caller-supplied predicate that can reject an
// otherwise-eligible candidate merge group, e.g. because one of its parts
// is already involved in another in-flight merge (spec §4.3 "a
// concurrency predicate provided by the caller... can veto a pair").
type ConcurrencyVeto func(parts []*Part) bool

// PickMerge selects the next group of adjacent, same-month active parts
// to compact, or nil if none qualifies (spec §4.3's compaction
// heuristic): candidates must be contiguous in (min-date, min-id) order
// with non-overlapping id ranges, bounded by MaxPartsToMergeAtOnce and a
// byte budget, and balanced so no part's size strays further than
// SizeRatioCoefficientToMergeParts from the group's geometric mean
// (loosened by MergePartsAtNightInc during the configured night window).
func (t *Table) PickMerge(now time.Time, veto ConcurrencyVeto) []*Part {
	t.mu.RLock()
	active := append([]*Part(nil), t.active...)
	t.mu.RUnlock()
	if len(active) < 2 {
		return nil
	}
	sortParts(active)

	ratio := t.settings.SizeRatioCoefficientToMergeParts
	if inNightWindow(now, t.settings.NightWindowStartHour, t.settings.NightWindowEndHour) {
		// ratio is the balanced() lower bound of [ratio, 1/ratio]; dividing
		// it shrinks the bound and so widens the accepted window, biasing
		// toward larger, less-balanced merges (spec §4.3's night bias).
		ratio /= t.settings.MergePartsAtNightInc
	}

	byMonth := groupByMonth(active)
	var best []*Part
	for _, month := range sortedMonthKeys(byMonth) {
		parts := byMonth[month]
		for start := 0; start < len(parts); start++ {
			// MaxBytesToMergePartsSmall is the tighter budget, used as long
			// as the candidate's own size doesn't already exceed it; a part
			// that size shows the table is past its "small, frequent merge"
			// phase for this run, so the looser budget applies instead.
			byteBudget := t.settings.MaxBytesToMergePartsSmall
			if PartSize(parts[start]) > byteBudget {
				byteBudget = t.settings.MaxBytesToMergeParts
			}
			group := growGroup(parts, start, t.settings.MaxPartsToMergeAtOnce, byteBudget, ratio)
			if len(group) < 2 {
				continue
			}
			if veto != nil && veto(group) {
				continue
			}
			if best == nil || len(group) > len(best) {
				best = group
			}
		}
	}
	return best
}

// growGroup extends a candidate merge group starting at parts[start] as
// far as the byte budget, part-count cap, and size-ratio balance allow.
func growGroup(parts []*Part, start, maxParts int, byteBudget int64, ratio float64) []*Part {
	group := []*Part{parts[start]}
	sizes := []int64{PartSize(parts[start])}
	total := sizes[0]

	for i := start + 1; i < len(parts) && len(group) < maxParts; i++ {
		if parts[i].Name.MinID <= group[len(group)-1].Name.MaxID {
			break // overlapping id ranges never coexist; a contiguous run stops here
		}
		size := PartSize(parts[i])
		if total+size > byteBudget {
			break
		}
		candidateSizes := append(append([]int64(nil), sizes...), size)
		if !balanced(candidateSizes, ratio) {
			break
		}
		group = append(group, parts[i])
		sizes = candidateSizes
		total += size
	}
	return group
}

// balanced reports whether every size in sizes sits within ratio of the
// group's geometric mean — spec §4.3's guard "prevents pathologically
// unbalanced merges" (e.g. merging one huge part with many tiny ones).
func balanced(sizes []int64, ratio float64) bool {
	if len(sizes) < 2 || ratio <= 0 {
		return true
	}
	var logSum float64
	for _, s := range sizes {
		if s <= 0 {
			return false
		}
		logSum += math.Log(float64(s))
	}
	mean := math.Exp(logSum / float64(len(sizes)))
	for _, s := range sizes {
		f := float64(s) / mean
		if f < ratio || f > 1/ratio {
			return false
		}
	}
	return true
}

// inNightWindow reports whether now's local hour falls in
// [startHour, endHour), wrapping past midnight when endHour < startHour
// (spec §4.3 "a configurable night window during which merges may grow
// larger").
func inNightWindow(now time.Time, startHour, endHour int) bool {
	h := now.Hour()
	if startHour <= endHour {
		return h >= startHour && h < endHour
	}
	return h >= startHour || h < endHour
}

// groupByMonth partitions parts (already sorted) by calendar month;
// merges never cross month boundaries (spec §8 invariant 1).
func groupByMonth(parts []*Part) map[int][]*Part {
	out := make(map[int][]*Part)
	for _, p := range parts {
		month := monthKeyOf(p)
		out[month] = append(out[month], p)
	}
	return out
}

func monthKeyOf(p *Part) int {
	return column.MonthKey(p.Name.MinDate)
}

func sortedMonthKeys(byMonth map[int][]*Part) []int {
	keys := make([]int, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
