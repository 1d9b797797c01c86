package mergetree

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/Henry2SS/granitetree/internal/column"
)

var kindNames = map[column.Kind]string{
	column.KindInt8:    "Int8",
	column.KindInt16:   "Int16",
	column.KindInt32:   "Int32",
	column.KindInt64:   "Int64",
	column.KindUint8:   "UInt8",
	column.KindUint16:  "UInt16",
	column.KindUint32:  "UInt32",
	column.KindUint64:  "UInt64",
	column.KindFloat32: "Float32",
	column.KindFloat64: "Float64",
	column.KindDate:     "Date",
	column.KindDateTime: "DateTime",
	column.KindString:   "String",
}

// TypeName renders a TypeInfo the way columns.txt persists it (spec §6
// "columns.txt # textual column list with types"): the ClickHouse-style
// type names original_source uses ("Int64", "FixedString(16)", ...).
func TypeName(t column.TypeInfo) string {
	if t.Name != "" {
		return t.Name
	}
	if name, ok := kindNames[t.Kind]; ok {
		return name
	}
	return "Unknown"
}

// FixedStringType builds the TypeInfo for a FixedString column of the
// given width; TypeInfo carries no width field of its own, so this
// package folds it into Name the way columns.txt needs to round-trip it.
func FixedStringType(width int) column.TypeInfo {
	return column.TypeInfo{Name: fmt.Sprintf("FixedString(%d)", width), Kind: column.KindFixedString}
}

// newColumnForType constructs an empty column matching t, the inverse of
// TypeName: used to materialize a column while loading a part's on-disk
// columns.txt and primary.idx.
func newColumnForType(t column.TypeInfo) (column.Column, error) {
	switch t.Kind {
	case column.KindInt8:
		return column.NewVector[int8](t.Kind), nil
	case column.KindInt16:
		return column.NewVector[int16](t.Kind), nil
	case column.KindInt32:
		return column.NewVector[int32](t.Kind), nil
	case column.KindInt64:
		return column.NewVector[int64](t.Kind), nil
	case column.KindUint8:
		return column.NewVector[uint8](t.Kind), nil
	case column.KindUint16:
		return column.NewVector[uint16](t.Kind), nil
	case column.KindUint32:
		return column.NewVector[uint32](t.Kind), nil
	case column.KindUint64:
		return column.NewVector[uint64](t.Kind), nil
	case column.KindFloat32:
		return column.NewVector[float32](t.Kind), nil
	case column.KindFloat64:
		return column.NewVector[float64](t.Kind), nil
	case column.KindDate:
		return column.NewDateColumn(), nil
	case column.KindDateTime:
		return column.NewDateTimeColumn(), nil
	case column.KindString:
		return column.NewByteString(), nil
	case column.KindFixedString:
		width, err := fixedStringWidth(t.Name)
		if err != nil {
			return nil, err
		}
		return column.NewFixedString(width), nil
	default:
		return nil, errors.Newf("granitetree: column type %s cannot be reconstructed from columns.txt", TypeName(t))
	}
}

func fixedStringWidth(name string) (int, error) {
	open, closeIdx := strings.IndexByte(name, '('), strings.IndexByte(name, ')')
	if open < 0 || closeIdx < 0 || closeIdx < open {
		return 0, errors.Newf("granitetree: malformed FixedString type name %q", name)
	}
	return strconv.Atoi(name[open+1 : closeIdx])
}

// appendRawNumericRow appends one little-endian-encoded scalar (the
// layout column.Vector[T].GetDataAt produces) to a numeric/date/datetime
// column, the inverse decode index.go's appendRawRow needs for primary
// index rehydration.
func appendRawNumericRow(col column.Column, data []byte) {
	switch c := col.(type) {
	case *column.Vector[int8]:
		c.InsertRaw(int8(data[0]))
	case *column.Vector[uint8]:
		c.InsertRaw(data[0])
	case *column.Vector[int16]:
		c.InsertRaw(int16(binary.LittleEndian.Uint16(data)))
	case *column.Vector[uint16]:
		c.InsertRaw(binary.LittleEndian.Uint16(data))
	case *column.Vector[int32]:
		c.InsertRaw(int32(binary.LittleEndian.Uint32(data)))
	case *column.Vector[uint32]:
		c.InsertRaw(binary.LittleEndian.Uint32(data))
	case *column.Vector[float32]:
		c.InsertRaw(math.Float32frombits(binary.LittleEndian.Uint32(data)))
	case *column.Vector[int64]:
		c.InsertRaw(int64(binary.LittleEndian.Uint64(data)))
	case *column.Vector[uint64]:
		c.InsertRaw(binary.LittleEndian.Uint64(data))
	case *column.Vector[float64]:
		c.InsertRaw(math.Float64frombits(binary.LittleEndian.Uint64(data)))
	}
}

// ParseTypeName resolves a ClickHouse-style type name (as columns.txt
// or a table descriptor YAML file spells it, e.g. "Int64",
// "FixedString(16)") back to a TypeInfo. Exported for cmd/granitetree,
// which needs to turn an operator-supplied schema descriptor into the
// TypeInfo slice NewTable expects.
func ParseTypeName(name string) column.TypeInfo { return typeByName(name) }

// typeByName resolves a columns.txt type name back to a TypeInfo.
func typeByName(name string) column.TypeInfo {
	for k, n := range kindNames {
		if n == name {
			return column.TypeInfo{Name: name, Kind: k}
		}
	}
	if strings.HasPrefix(name, "FixedString(") {
		return column.TypeInfo{Name: name, Kind: column.KindFixedString}
	}
	return column.TypeInfo{Name: name, Kind: column.KindString}
}
