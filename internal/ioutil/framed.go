package ioutil

import (
	"encoding/binary"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// ErrUnexpectedEOF is a data-integrity error (spec §7): a frame header
// promised more bytes than the underlying reader produced.
var ErrUnexpectedEOF = errors.New("granitetree: unexpected EOF reading framed block")

// ErrChecksumMismatch is a data-integrity error (spec §7): the decoded
// bytes do not hash to the checksum recorded in the frame, which marks the
// owning part broken (see mergetree.Table.OnBrokenPart).
var ErrChecksumMismatch = errors.New("granitetree: checksum mismatch")

// frameHeaderSize is the fixed size, in bytes, of a compressed block's
// frame header: codec (1) + compressed size (4) + decompressed size (4) +
// xxhash64 checksum of the compressed payload (8).
const frameHeaderSize = 1 + 4 + 4 + 8

// WriteFrame compresses data with codec and writes one self-describing,
// checksummed frame to w, returning the number of bytes written. This is
// the framing spec.md §2/§6 calls for: "framed compressed blocks" backing
// every `.bin` file.
func WriteFrame(w io.Writer, codec Codec, data []byte) (int, error) {
	compressed, err := Compress(codec, nil, data)
	if err != nil {
		return 0, err
	}
	header := make([]byte, frameHeaderSize)
	header[0] = byte(codec)
	binary.LittleEndian.PutUint32(header[1:], uint32(len(compressed)))
	binary.LittleEndian.PutUint32(header[5:], uint32(len(data)))
	binary.LittleEndian.PutUint64(header[9:], xxhash.Sum64(compressed))
	if _, err := w.Write(header); err != nil {
		return 0, errors.Wrap(err, "granitetree: write frame header")
	}
	if _, err := w.Write(compressed); err != nil {
		return 0, errors.Wrap(err, "granitetree: write frame payload")
	}
	return frameHeaderSize + len(compressed), nil
}

// ReadFrame reads and decompresses one frame from r, verifying its
// checksum.
func ReadFrame(r io.Reader) (data []byte, err error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, errors.Wrap(ErrUnexpectedEOF, err.Error())
	}
	codec := Codec(header[0])
	compressedSize := binary.LittleEndian.Uint32(header[1:])
	decompressedSize := binary.LittleEndian.Uint32(header[5:])
	wantSum := binary.LittleEndian.Uint64(header[9:])

	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, errors.Wrap(ErrUnexpectedEOF, err.Error())
	}
	if got := xxhash.Sum64(compressed); got != wantSum {
		return nil, ErrChecksumMismatch
	}
	return Decompress(codec, compressed, int(decompressedSize))
}
