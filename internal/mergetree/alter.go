package mergetree

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/Henry2SS/granitetree/internal/column"
	"github.com/Henry2SS/granitetree/internal/ioutil"
)

// ColumnOpKind names one file-level operation an ALTER plan performs on a
// part (spec §4.3 "compute a plan of file-level operations").
type ColumnOpKind int

const (
	// ColumnOpDrop removes a column's .bin/.mrk files.
	ColumnOpDrop ColumnOpKind = iota
	// ColumnOpAdd writes a new column's .bin/.mrk files, filled with a
	// default value evaluated once up front (DefaultValue) and replicated
	// across the part's row count.
	ColumnOpAdd
	// ColumnOpChangeType rewrites a column's .bin/.mrk files under a new
	// TypeInfo, re-encoding every existing row.
	ColumnOpChangeType
)

// ColumnOp is one step of an ALTER plan.
type ColumnOp struct {
	Kind         ColumnOpKind
	Name         string
	NewType      column.TypeInfo // ColumnOpAdd, ColumnOpChangeType
	DefaultValue column.Column   // ColumnOpAdd: a length-1 column holding the default
}

// AlterPlan is the column-list diff PlanAlter computes for one part: a
// sequence of ColumnOps that, applied in order, take the part from its
// current column list to the target one.
type AlterPlan struct {
	part *Part
	ops  []ColumnOp
}

// PlanAlter diffs p's current columns against targetNames/targetTypes
// (both in the new column order) and returns the file-level operations
// needed to get there: drop removed columns, add new ones (filled via
// defaults, supplied by the caller keyed by column name since this
// package has no default-expression evaluator — spec.md lists the SQL
// parser/AST as an external collaborator), and rewrite any column whose
// type changed (spec §4.3 "compute a plan of file-level operations").
func PlanAlter(p *Part, targetNames []string, targetTypes []column.TypeInfo, defaults map[string]column.Column) (*AlterPlan, error) {
	oldNames := p.columnNames()
	oldByName := make(map[string]column.TypeInfo, len(oldNames))
	for i, n := range oldNames {
		oldByName[n] = p.Columns[i]
	}
	newByName := make(map[string]column.TypeInfo, len(targetNames))
	for i, n := range targetNames {
		newByName[n] = targetTypes[i]
	}

	plan := &AlterPlan{part: p}
	for _, n := range oldNames {
		if _, ok := newByName[n]; !ok {
			plan.ops = append(plan.ops, ColumnOp{Kind: ColumnOpDrop, Name: n})
		}
	}
	for i, n := range targetNames {
		oldType, existed := oldByName[n]
		switch {
		case !existed:
			def, ok := defaults[n]
			if !ok {
				return nil, errors.Newf("granitetree: alter adds column %q with no default supplied", n)
			}
			plan.ops = append(plan.ops, ColumnOp{Kind: ColumnOpAdd, Name: n, NewType: targetTypes[i], DefaultValue: def})
		case oldType.Kind != targetTypes[i].Kind || oldType.Name != targetTypes[i].Name:
			plan.ops = append(plan.ops, ColumnOp{Kind: ColumnOpChangeType, Name: n, NewType: targetTypes[i]})
		}
	}
	return plan, nil
}

// Stage writes every op's output under a tmp-prefixed directory alongside
// the part, without touching the part's existing files (spec §4.3 "the
// plan is staged to temporary files under the part's alter mutex").
// Stage acquires the part's alter-mutex and does not release it:
// Commit/Abort must be called exactly once to release it.
func (plan *AlterPlan) Stage(codec ioutil.Codec, granularity int) (*stagedAlter, error) {
	plan.part.alterMu.Lock()

	tmpDir := filepath.Join(filepath.Dir(plan.part.Dir), "tmp_alter_"+plan.part.Name.String())
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		plan.part.alterMu.Unlock()
		return nil, errors.Wrapf(err, "granitetree: create %s", tmpDir)
	}

	staged := &stagedAlter{plan: plan, tmpDir: tmpDir, newMarks: make(map[string][]ioutil.Mark)}
	for _, op := range plan.ops {
		switch op.Kind {
		case ColumnOpDrop:
			staged.dropped = append(staged.dropped, op.Name)
		case ColumnOpAdd:
			col := materializeDefault(op.DefaultValue, plan.part.Rows)
			marks, err := writeColumnFiles(tmpDir, op.Name, col, granularity, codec)
			if err != nil {
				staged.abortFiles()
				plan.part.alterMu.Unlock()
				return nil, err
			}
			staged.newMarks[op.Name] = marks
			staged.added = append(staged.added, op)
		case ColumnOpChangeType:
			col, err := plan.part.readColumnFull(op.Name)
			if err != nil {
				staged.abortFiles()
				plan.part.alterMu.Unlock()
				return nil, err
			}
			recoded, err := recodeColumn(col, op.NewType)
			if err != nil {
				staged.abortFiles()
				plan.part.alterMu.Unlock()
				return nil, err
			}
			marks, err := writeColumnFiles(tmpDir, op.Name, recoded, granularity, codec)
			if err != nil {
				staged.abortFiles()
				plan.part.alterMu.Unlock()
				return nil, err
			}
			staged.newMarks[op.Name] = marks
			staged.changed = append(staged.changed, op)
		}
	}
	return staged, nil
}

// stagedAlter holds the result of Stage, ready for Commit or Abort.
type stagedAlter struct {
	plan     *AlterPlan
	tmpDir   string
	dropped  []string
	added    []ColumnOp
	changed  []ColumnOp
	newMarks map[string][]ioutil.Mark
}

func (s *stagedAlter) abortFiles() { removeAll(DefaultLogger{}, s.tmpDir) }

// Commit renames every staged file into the part's directory, removes
// dropped columns' files, and rewrites columns.txt/checksums.txt to
// describe the new schema (spec §4.3 "on commit, temporaries are renamed
// and checksums.txt/columns.txt are updated"). Releases the alter-mutex
// unconditionally.
func (s *stagedAlter) Commit() error {
	defer s.plan.part.alterMu.Unlock()
	p := s.plan.part

	for _, name := range s.dropped {
		_ = os.Remove(filepath.Join(p.Dir, name+".bin"))
		_ = os.Remove(filepath.Join(p.Dir, name+".mrk"))
		delete(p.Marks, name)
	}
	for _, op := range append(append([]ColumnOp(nil), s.added...), s.changed...) {
		for _, ext := range []string{".bin", ".mrk"} {
			src := filepath.Join(s.tmpDir, op.Name+ext)
			dst := filepath.Join(p.Dir, op.Name+ext)
			if err := os.Rename(src, dst); err != nil {
				return errors.Wrapf(err, "granitetree: commit alter rename %s", src)
			}
		}
		p.Marks[op.Name] = s.newMarks[op.Name]
	}
	removeAll(DefaultLogger{}, s.tmpDir)

	names, types := applySchemaOps(p, s.dropped, s.added, s.changed)
	if err := writeColumnsFile(filepath.Join(p.Dir, columnsFileName), types, names); err != nil {
		return err
	}
	p.Columns = types

	var checksums []ioutil.FileChecksum
	for _, name := range names {
		for _, ext := range []string{".bin", ".mrk"} {
			cs, err := ioutil.ChecksumFile(filepath.Join(p.Dir, name+ext))
			if err != nil {
				return err
			}
			checksums = append(checksums, cs)
		}
	}
	idxCS, err := ioutil.ChecksumFile(filepath.Join(p.Dir, primaryIndexFileName))
	if err != nil {
		return err
	}
	checksums = append(checksums, idxCS)
	if err := ioutil.WriteChecksumsFile(filepath.Join(p.Dir, checksumsFileName), checksums); err != nil {
		return err
	}
	p.Checksums = checksums
	return nil
}

// Abort discards every staged file without touching the part, releasing
// the alter-mutex (spec §4.3 "if the commit does not run, the destructor
// removes temporaries").
func (s *stagedAlter) Abort() {
	defer s.plan.part.alterMu.Unlock()
	removeAll(DefaultLogger{}, s.tmpDir)
}

// applySchemaOps computes the part's new (names, types) in its original
// column order with drops removed, additions appended, and type changes
// applied in place.
func applySchemaOps(p *Part, dropped []string, added, changed []ColumnOp) ([]string, []column.TypeInfo) {
	oldNames := p.columnNames()
	droppedSet := make(map[string]bool, len(dropped))
	for _, n := range dropped {
		droppedSet[n] = true
	}
	changedType := make(map[string]column.TypeInfo, len(changed))
	for _, op := range changed {
		changedType[op.Name] = op.NewType
	}

	var names []string
	var types []column.TypeInfo
	for i, n := range oldNames {
		if droppedSet[n] {
			continue
		}
		typ := p.Columns[i]
		if nt, ok := changedType[n]; ok {
			typ = nt
		}
		names = append(names, n)
		types = append(types, typ)
	}
	for _, op := range added {
		names = append(names, op.Name)
		types = append(types, op.NewType)
	}
	return names, types
}

// materializeDefault expands a length-1 default-value column into count
// repeated rows, the value ALTER ADD COLUMN backfills into every
// already-written row.
func materializeDefault(def column.Column, count int) column.Column {
	out := column.NewLike(def)
	for i := 0; i < count; i++ {
		out.InsertFrom(def, 0)
	}
	return out
}

// readColumnFull decodes every row of one column of p, independent of
// any particular read-path mark-range selection (ALTER always rewrites a
// whole column at once).
func (p *Part) readColumnFull(name string) (column.Column, error) {
	ranges := []MarkRange{{0, len(p.Marks[name])}}
	r, err := newColumnReader(p, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.readRange(ranges[0])
}

// recodeColumn re-encodes every row of col under newType; supported only
// between column kinds whose GetDataAt payloads are already compatible
// byte-for-byte (e.g. FixedString width changes re-pad/truncate), since a
// true numeric-to-numeric cast belongs to the scalar-function catalog
// spec.md excludes from this module's scope.
func recodeColumn(col column.Column, newType column.TypeInfo) (column.Column, error) {
	out, err := newColumnForType(newType)
	if err != nil {
		return nil, err
	}
	if out.Kind() != col.Kind() {
		return nil, errors.Newf("granitetree: alter type change kind %d -> %d requires a cast function, out of scope for this package", col.Kind(), newType.Kind)
	}
	for i := 0; i < col.Len(); i++ {
		if fs, ok := out.(*column.FixedString); ok {
			fs.Append(col.GetDataAt(i))
			continue
		}
		out.InsertFrom(col, i)
	}
	return out, nil
}

// AlterColumns runs one ALTER end to end on every active part carrying
// the old schema: plan, stage, and commit, part by part under each
// part's own alter-mutex, then updates the table's own column list so
// future Insert calls produce parts matching the new schema.
func (t *Table) AlterColumns(targetNames []string, targetTypes []column.TypeInfo, defaults map[string]column.Column) error {
	parts := t.ActiveParts()
	defer func() {
		for _, p := range parts {
			p.Release()
		}
	}()

	for _, p := range parts {
		plan, err := PlanAlter(p, targetNames, targetTypes, defaults)
		if err != nil {
			return err
		}
		if len(plan.ops) == 0 {
			continue
		}
		staged, err := plan.Stage(t.settings.Codec, t.settings.IndexGranularity)
		if err != nil {
			return err
		}
		// Commit releases the alter-mutex itself, on both success and
		// failure, so there is no Abort-on-error path here: Abort is for
		// the caller that decides not to commit at all.
		if err := staged.Commit(); err != nil {
			return err
		}
		t.logger.Infof("granitetree: committed alter of part %s (%d ops)", p.Name, len(plan.ops))
	}

	t.mu.Lock()
	t.columnNames = append([]string(nil), targetNames...)
	t.columns = append([]column.TypeInfo(nil), targetTypes...)
	t.mu.Unlock()
	return nil
}
