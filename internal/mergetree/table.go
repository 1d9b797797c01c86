package mergetree

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/Henry2SS/granitetree/internal/column"
	"github.com/Henry2SS/granitetree/internal/ioutil"
)

// BrokenPartFunc is invoked when a part fails checksum verification; it
// can be wired to request a replacement part from a peer (spec §7 "mark
// the part broken... can be wired to request replacement from a peer").
type BrokenPartFunc func(p *Part, cause error)

// Table is a MergeTree table: a data directory holding immutable parts,
// the active and all-parts sets that index them, and the settings that
// govern the write, read, and compaction paths (spec §3 "Table", §5
// "Shared-resource policy").
//
// data_parts/all_data_parts are kept as slices sorted by (MinDate, MinID)
// rather than a third-party ordered map — see DESIGN.md's entry on the
// dropped github.com/RaduBerinde/btreemap dependency for why: the
// teacher never actually imports that package, and the collection here
// (tens to low thousands of parts) doesn't need more than stdlib `sort`
// gives it.
type Table struct {
	// mu is the structure lock (spec §5): readers take RLock, ALTER and
	// part install/retire take Lock.
	mu sync.RWMutex

	dataDir     string
	columnNames []string
	columns     []column.TypeInfo
	primaryKey  []string
	mode        MergeMode
	signColumn  string // ModeCollapsing
	settings    Settings

	active []*Part // sorted by (MinDate, MinID); the live, queryable set
	all    []*Part // active ∪ retired; retired parts are never removed from it

	nextID       atomic.Uint64
	onBrokenPart BrokenPartFunc
	logger       Logger
}

// NewTable creates a Table rooted at dataDir. columnNames/columns are
// parallel and must include every primaryKey column; mode selects the
// merge behavior and, for ModeCollapsing, signColumn names the
// sign-of-row column.
func NewTable(dataDir string, columnNames []string, columns []column.TypeInfo, primaryKey []string, mode MergeMode, signColumn string, settings Settings) *Table {
	return &Table{
		dataDir:     dataDir,
		columnNames: columnNames,
		columns:     columns,
		primaryKey:  primaryKey,
		mode:       mode,
		signColumn: signColumn,
		settings:   settings,
		logger:     DefaultLogger{},
	}
}

// OnBrokenPart installs the callback invoked when a part fails checksum
// verification.
func (t *Table) OnBrokenPart(fn BrokenPartFunc) { t.onBrokenPart = fn }

// SetLogger replaces the table's Logger (DefaultLogger by default).
func (t *Table) SetLogger(l Logger) { t.logger = l }

// Open scans dataDir, loading every well-formed part directory and
// reclaiming (deleting) every `tmp*`-prefixed directory left behind by a
// process that died mid-write (spec §4.3 "If the merge process dies
// mid-write, temporary directories... are reclaimed on restart"; spec §6
// "Part directories beginning with tmp are never visible").
func (t *Table) Open() error {
	entries, err := os.ReadDir(t.dataDir)
	if errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(t.dataDir, 0o755)
	}
	if err != nil {
		return errors.Wrapf(err, "granitetree: open table dir %s", t.dataDir)
	}

	var loaded []*Part
	var maxID uint64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "tmp") {
			dir := filepath.Join(t.dataDir, e.Name())
			t.logger.Infof("granitetree: reclaiming stale temporary directory %s", dir)
			removeAll(t.logger, dir)
			continue
		}
		name, err := ParsePartName(e.Name())
		if err != nil {
			continue // not a part directory (e.g. stray file); ignore
		}
		p, err := loadPart(filepath.Join(t.dataDir, e.Name()), name, t.primaryKey, t.settings.IndexGranularity)
		if err != nil {
			return err
		}
		if err := ioutil.Verify(p.Dir, p.Checksums); err != nil {
			p.MarkBroken()
			if t.onBrokenPart != nil {
				t.onBrokenPart(p, err)
			}
			continue
		}
		loaded = append(loaded, p)
		if name.MaxID > maxID {
			maxID = name.MaxID
		}
	}

	pruneCoveredParts(&loaded)
	sortParts(loaded)

	t.mu.Lock()
	t.active = loaded
	t.all = append([]*Part(nil), loaded...)
	t.mu.Unlock()
	t.nextID.Store(maxID + 1)
	return nil
}

// sortParts orders parts by (MinDate, MinID), the table's data_parts
// ordering (spec §3 "A set of active parts ordered by (min-date, min-id)").
func sortParts(parts []*Part) {
	sort.Slice(parts, func(i, j int) bool {
		a, b := parts[i].Name, parts[j].Name
		if a.MinDate != b.MinDate {
			return a.MinDate < b.MinDate
		}
		return a.MinID < b.MinID
	})
}

// pruneCoveredParts drops any loaded part whose id range is fully covered
// by another loaded part of a higher level — the on-disk remnant of a
// merge whose inputs were not yet cleaned up (spec §3 "A merged part's
// range covers and supersedes its inputs").
func pruneCoveredParts(parts *[]*Part) {
	kept := (*parts)[:0]
outer:
	for _, p := range *parts {
		for _, q := range *parts {
			if p == q {
				continue
			}
			if q.Name.Level > p.Name.Level && q.Name.Covers(p.Name) {
				continue outer
			}
		}
		kept = append(kept, p)
	}
	*parts = kept
}

// allocateID returns the next monotonic part id.
func (t *Table) allocateID() uint64 { return t.nextID.Add(1) - 1 }

// ActiveParts returns a snapshot of the currently active parts, each
// Acquired so they stay resident until the caller Releases them.
func (t *Table) ActiveParts() []*Part {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Part, len(t.active))
	for i, p := range t.active {
		p.Acquire()
		out[i] = p
	}
	return out
}

// ActivePartsInMonth returns the active parts whose month equals
// column.MonthKey(anyDateInMonth), used by the write path to compute
// per-month backpressure (spec §4.3 "parts_to_delay_insert").
func (t *Table) ActivePartsInMonth(month int) []*Part {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*Part
	for _, p := range t.active {
		if column.MonthKey(p.Name.MinDate) == month {
			out = append(out, p)
		}
	}
	return out
}

// installLocked inserts a newly written part into both sets, refusing if
// it would overlap an existing active part (spec §3 invariant, §8
// invariant 2). Caller holds t.mu.
func (t *Table) installLocked(p *Part) error {
	for _, q := range t.active {
		if q.Name.Overlaps(p.Name) {
			return errors.Wrapf(ErrOverlappingParts, "new part %s overlaps active part %s", p.Name, q.Name)
		}
	}
	t.active = append(t.active, p)
	sortParts(t.active)
	t.all = append(t.all, p)
	return nil
}

// retireLocked removes p from the active set. p remains in all and on
// disk; nothing in this package reclaims retired parts. Caller holds t.mu.
func (t *Table) retireLocked(p *Part) {
	p.active.Store(false)
	for i, q := range t.active {
		if q == p {
			t.active = append(t.active[:i], t.active[i+1:]...)
			break
		}
	}
}

// removeAll deletes a directory tree, logging (rather than propagating)
// any failure: spec §5 requires destructors (the closest Go analogue:
// best-effort cleanup paths) to complete without propagating failures
// ("log-and-swallow", pebble's own cleaner.go pattern for background
// removal failures).
func removeAll(logger Logger, dir string) {
	if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		logger.Infof("granitetree: remove %s: %v", dir, err)
	}
}
