package mergetree

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/Henry2SS/granitetree/internal/column"
	"github.com/Henry2SS/granitetree/internal/ioutil"
)

const columnsFileName = "columns.txt"
const checksumsFileName = "checksums.txt"
const primaryIndexFileName = "primary.idx"

// writeColumnsFile writes columns.txt: one "name TypeName" line per
// column, in table column order (spec §6 "columns.txt # textual column
// list with types").
func writeColumnsFile(path string, columns []column.TypeInfo, names []string) error {
	var sb strings.Builder
	for i, name := range names {
		fmt.Fprintf(&sb, "%s %s\n", name, TypeName(columns[i]))
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

// readColumnsFile parses columns.txt into parallel name/type slices.
func readColumnsFile(path string) (names []string, types []column.TypeInfo, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "granitetree: open %s", path)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			return nil, nil, errors.Newf("granitetree: malformed columns.txt line %q", line)
		}
		names = append(names, fields[0])
		types = append(types, typeByName(fields[1]))
	}
	return names, types, sc.Err()
}

// loadPart opens an on-disk part directory: columns.txt, checksums.txt,
// every column's .mrk file, and primary.idx. It does not itself verify
// checksums — Table.Open does that separately so a broken part can still
// be reported with its metadata intact.
func loadPart(dir string, name PartName, primaryKey []string, granularity int) (*Part, error) {
	colNames, colTypes, err := readColumnsFile(filepath.Join(dir, columnsFileName))
	if err != nil {
		return nil, err
	}
	checksums, err := ioutil.ReadChecksumsFile(filepath.Join(dir, checksumsFileName))
	if err != nil {
		return nil, err
	}

	p := newOpenPart(name, dir, colTypes, primaryKey, granularity)
	p.Checksums = checksums

	for _, colName := range colNames {
		marks, err := ioutil.ReadMarksFile(filepath.Join(dir, colName+".mrk"))
		if err != nil {
			return nil, err
		}
		p.Marks[colName] = marks
	}

	keyTypes := make([]column.TypeInfo, len(primaryKey))
	for i, kn := range primaryKey {
		keyTypes[i] = typeInfoByName(colNames, colTypes, kn)
	}
	idx, rows, err := ReadPrimaryIndex(filepath.Join(dir, primaryIndexFileName), keyTypes)
	if err != nil {
		return nil, err
	}
	p.Index = idx
	p.Rows = rows

	if err := p.ValidateInvariants(); err != nil {
		return nil, err
	}
	return p, nil
}

func typeInfoByName(names []string, types []column.TypeInfo, name string) column.TypeInfo {
	for i, n := range names {
		if n == name {
			return types[i]
		}
	}
	return column.TypeInfo{}
}
