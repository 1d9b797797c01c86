package ioutil

import (
	"encoding/binary"
	"os"

	"github.com/cockroachdb/errors"
)

// Mark is one (compressed_offset, decompressed_offset) pair written every
// `index_granularity` rows (spec §3, §6: "Mark file entries are fixed 16
// bytes").
type Mark struct {
	CompressedOffset   uint64
	DecompressedOffset uint64
}

// markSize is the fixed on-disk size of one Mark.
const markSize = 16

// WriteMarksFile writes a .mrk file: marks back to back, 16 bytes each.
func WriteMarksFile(path string, marks []Mark) error {
	buf := make([]byte, len(marks)*markSize)
	for i, m := range marks {
		binary.LittleEndian.PutUint64(buf[i*markSize:], m.CompressedOffset)
		binary.LittleEndian.PutUint64(buf[i*markSize+8:], m.DecompressedOffset)
	}
	return os.WriteFile(path, buf, 0o644)
}

// ReadMarksFile parses a .mrk file in full; mark files are small enough
// (one entry per `index_granularity` rows) to load wholesale, exactly as
// the sparse primary index is (spec glossary "Sparse primary index...held
// in memory per open part").
func ReadMarksFile(path string) ([]Mark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "granitetree: read marks %s", path)
	}
	if len(data)%markSize != 0 {
		return nil, errors.Newf("granitetree: marks file %s has size %d, not a multiple of %d", path, len(data), markSize)
	}
	n := len(data) / markSize
	marks := make([]Mark, n)
	for i := 0; i < n; i++ {
		marks[i] = Mark{
			CompressedOffset:   binary.LittleEndian.Uint64(data[i*markSize:]),
			DecompressedOffset: binary.LittleEndian.Uint64(data[i*markSize+8:]),
		}
	}
	return marks, nil
}
