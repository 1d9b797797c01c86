package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"sigs.k8s.io/yaml"

	"github.com/Henry2SS/granitetree/internal/column"
	"github.com/Henry2SS/granitetree/internal/mergetree"
)

// TableDescriptor is the YAML schema file an operator points this CLI
// at, since spec §6's on-disk layout has no self-describing primary
// key or merge mode (columns.txt names types, not roles) — the same gap
// a real ClickHouse CLI fills from its separate DDL/metadata store, out
// of scope here. Loaded with sigs.k8s.io/yaml, the same library
// internal/query uses for its own Settings file.
type TableDescriptor struct {
	DataDir    string             `json:"data_dir"`
	Columns    []ColumnDescriptor `json:"columns"`
	PrimaryKey []string           `json:"primary_key"`
	Mode       string             `json:"mode"`
	SignColumn string             `json:"sign_column,omitempty"`
}

// ColumnDescriptor names one column and its ClickHouse-style type
// (the same spelling columns.txt and mergetree.TypeName use).
type ColumnDescriptor struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// LoadTableDescriptor reads and parses a table descriptor YAML file.
func LoadTableDescriptor(path string) (*TableDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "granitetree: read table descriptor %s", path)
	}
	var d TableDescriptor
	if err := yaml.UnmarshalStrict(data, &d); err != nil {
		return nil, errors.Wrapf(err, "granitetree: parse table descriptor %s", path)
	}
	if d.DataDir == "" {
		return nil, errors.Newf("granitetree: table descriptor %s has no data_dir", path)
	}
	return &d, nil
}

func (d *TableDescriptor) columnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

func (d *TableDescriptor) columnTypes() []column.TypeInfo {
	types := make([]column.TypeInfo, len(d.Columns))
	for i, c := range d.Columns {
		types[i] = mergetree.ParseTypeName(c.Type)
	}
	return types
}

func (d *TableDescriptor) mergeMode() (mergetree.MergeMode, error) {
	switch d.Mode {
	case "", "ordinary":
		return mergetree.ModeOrdinary, nil
	case "collapsing":
		return mergetree.ModeCollapsing, nil
	case "summing":
		return mergetree.ModeSumming, nil
	case "aggregating":
		return mergetree.ModeAggregating, nil
	default:
		return 0, errors.Newf("granitetree: unrecognized merge mode %q", d.Mode)
	}
}

// openTable builds and opens a mergetree.Table from a descriptor file,
// using the library's own default settings for anything the descriptor
// doesn't override.
func openTable(descriptorPath string) (*mergetree.Table, error) {
	d, err := LoadTableDescriptor(descriptorPath)
	if err != nil {
		return nil, err
	}
	mode, err := d.mergeMode()
	if err != nil {
		return nil, err
	}
	table := mergetree.NewTable(d.DataDir, d.columnNames(), d.columnTypes(), d.PrimaryKey, mode, d.SignColumn, mergetree.DefaultSettings())
	if err := table.Open(); err != nil {
		return nil, err
	}
	return table, nil
}
