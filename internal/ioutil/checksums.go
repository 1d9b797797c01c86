package ioutil

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// FileChecksum is one line of a part's checksums.txt: the on-disk size and
// 64-bit content hash of one file, plus (for .bin files) the uncompressed
// size and hash of the decompressed stream (spec §3, §6).
type FileChecksum struct {
	Name               string
	Size               int64
	Hash               uint64
	UncompressedSize   int64
	UncompressedHash   uint64
	HasUncompressed    bool
}

// ChecksumFile reads the raw bytes of path and computes its FileChecksum
// entry (size + xxhash64 over the whole file).
func ChecksumFile(path string) (FileChecksum, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileChecksum{}, errors.Wrapf(err, "granitetree: checksum %s", path)
	}
	return FileChecksum{
		Name: filepathBase(path),
		Size: int64(len(data)),
		Hash: xxhash.Sum64(data),
	}, nil
}

func filepathBase(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return path
	}
	return path[i+1:]
}

// WriteChecksumsFile writes checksums.txt, one line per file:
// "<name> <size> <hash>" or, for columns with an uncompressed pair,
// "<name> <size> <hash> <uncompressed_size> <uncompressed_hash>".
func WriteChecksumsFile(path string, entries []FileChecksum) error {
	var sb strings.Builder
	for _, e := range entries {
		if e.HasUncompressed {
			fmt.Fprintf(&sb, "%s %d %x %d %x\n", e.Name, e.Size, e.Hash, e.UncompressedSize, e.UncompressedHash)
		} else {
			fmt.Fprintf(&sb, "%s %d %x\n", e.Name, e.Size, e.Hash)
		}
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

// ReadChecksumsFile parses checksums.txt.
func ReadChecksumsFile(path string) ([]FileChecksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "granitetree: open %s", path)
	}
	defer f.Close()

	var out []FileChecksum
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 && len(fields) != 5 {
			return nil, errors.Newf("granitetree: malformed checksums line %q", line)
		}
		size, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "granitetree: parse size in %q", line)
		}
		hash, err := strconv.ParseUint(fields[2], 16, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "granitetree: parse hash in %q", line)
		}
		entry := FileChecksum{Name: fields[0], Size: size, Hash: hash}
		if len(fields) == 5 {
			entry.HasUncompressed = true
			entry.UncompressedSize, err = strconv.ParseInt(fields[3], 10, 64)
			if err != nil {
				return nil, err
			}
			uh, err := strconv.ParseUint(fields[4], 16, 64)
			if err != nil {
				return nil, err
			}
			entry.UncompressedHash = uh
		}
		out = append(out, entry)
	}
	return out, sc.Err()
}

// Verify checks that every entry matches the file currently on disk in
// dir, returning an error wrapping the data-integrity taxonomy (spec §7)
// on the first mismatch or missing file.
func Verify(dir string, entries []FileChecksum) error {
	for _, e := range entries {
		got, err := ChecksumFile(dir + "/" + e.Name)
		if err != nil {
			return errors.Wrapf(err, "granitetree: missing required file in part %s", dir)
		}
		if got.Size != e.Size || got.Hash != e.Hash {
			return errors.Wrapf(ErrChecksumMismatch, "part %s file %s", dir, e.Name)
		}
	}
	return nil
}
