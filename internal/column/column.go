// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package column implements the typed columnar container that is the unit
// of storage and computation for the engine: a Column is a contiguous
// sequence of values of one type, and a Block (see block.go) is a named set
// of equal-length Columns.
package column

import "github.com/cockroachdb/errors"

// NaNDirection tells a Column.CompareAt implementation how to order NaN
// values relative to everything else, since IEEE-754 NaN has no natural
// total order.
type NaNDirection int

const (
	// NaNFirst orders NaN values before all non-NaN values.
	NaNFirst NaNDirection = iota
	// NaNLast orders NaN values after all non-NaN values.
	NaNLast
)

// Kind identifies a Column's runtime type. The set is closed: new column
// families are added here, not by an open interface hierarchy, so that
// dispatch on Kind can be an exhaustive switch.
type Kind int

const (
	KindInt8 Kind = iota
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindDate
	KindDateTime
	KindFixedString
	KindString
	KindArray
	KindNested
	KindTuple
	KindAggregateState
)

// ErrSizeMismatch is returned when two columns (or a column and a mask)
// that are expected to describe the same set of rows disagree on size. It
// always indicates a construction bug upstream, never a data condition.
var ErrSizeMismatch = errors.New("granitetree: column size mismatch")

// Column is the capability set every concrete column type implements. The
// set of concrete kinds is closed (Kind above); Column itself stays a small
// interface so generic block-level code (filter, permute, replicate,
// compare) never needs to know the concrete representation.
type Column interface {
	// Kind reports the column's runtime type tag.
	Kind() Kind

	// Len returns the number of rows (values) in the column.
	Len() int

	// ByteSize estimates the column's resident memory footprint in bytes,
	// used for memory accounting and resource-limit checks.
	ByteSize() int

	// InsertDefault appends one default (zero) value.
	InsertDefault()

	// InsertFrom appends a copy of row i of other. Panics if other is not
	// the same Kind.
	InsertFrom(other Column, i int)

	// InsertRangeFrom appends rows [begin, begin+length) of other in bulk.
	// Equivalent to length calls to InsertFrom but without per-row
	// dispatch overhead. Block.Slice and Block.AppendBlock use it; the
	// merge path copies row by row with InsertFrom.
	InsertRangeFrom(other Column, begin, length int)

	// GetDataAt returns the raw encoded bytes of row i, valid until the
	// column is next mutated. Used by hashing (Distinct, HASHED
	// aggregation) and by the sparse index writer.
	GetDataAt(i int) []byte

	// Filter returns a new column containing only the rows where mask[i]
	// is non-zero. len(mask) must equal Len(), else ErrSizeMismatch.
	Filter(mask []uint8) (Column, error)

	// Permute returns a new column with rows reordered (and optionally
	// truncated) according to perm: result[i] = this[perm[i]]. If limit > 0
	// and limit < len(perm), only the first limit entries of perm are
	// applied (used by partial sort with LIMIT).
	Permute(perm []int, limit int) Column

	// Replicate returns a new column where row i of the receiver is
	// repeated (offsets[i] - offsets[i-1]) times (offsets[-1] == 0). Used
	// to expand a column to ARRAY JOIN / nested-array cardinality.
	Replicate(offsets []uint64) Column

	// CompareAt compares row i of the receiver with row j of other,
	// returning <0, 0, >0. Both columns must share Kind. nanDir controls
	// where floating point NaNs sort.
	CompareAt(i int, other Column, j int, nanDir NaNDirection) int

	// Extremes returns the minimum and maximum value columns (each of
	// length 1, or 0 if the column is empty). Array, Nested, Tuple and
	// AggregateState always return two empty columns.
	Extremes() (min, max Column)
}

func checkSameKind(a, b Column) {
	if a.Kind() != b.Kind() {
		panic(errors.Newf("granitetree: column kind mismatch: %v vs %v", a.Kind(), b.Kind()))
	}
}
