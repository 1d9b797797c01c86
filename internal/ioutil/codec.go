// Package ioutil implements buffered reads/writes over file descriptors
// and the framed-compressed-block codec used by column .bin files (spec
// §2 "IO buffers & codecs", §6 on-disk layout).
package ioutil

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Codec identifies a column data compression algorithm. The MergeTree
// table setting Settings.Codec selects one of these for every column of
// the table.
type Codec uint8

const (
	CodecNone Codec = iota
	// CodecS2 is klauspost/compress's Snappy-compatible, SIMD-accelerated
	// codec: the default for hot write paths where CPU cost dominates.
	CodecS2
	// CodecZSTD trades encode speed for a higher compression ratio. It is
	// used only when the table's codec setting names it; merges write with
	// the same table codec.
	CodecZSTD
	// CodecSnappy is the reference Snappy implementation, kept for
	// interoperability with files produced by other Snappy-based tools.
	CodecSnappy
)

// ErrUnknownCodec is a logical error (spec §7): an unrecognized codec byte
// in a .bin file header indicates either corruption or a future format
// this binary does not understand.
var ErrUnknownCodec = errors.New("granitetree: unknown block codec")

// Compress encodes src with the given codec, appending to dst and
// returning the result.
func Compress(codec Codec, dst, src []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return append(dst, src...), nil
	case CodecS2:
		return append(dst, s2.Encode(nil, src)...), nil
	case CodecZSTD:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(src, dst), nil
	case CodecSnappy:
		return append(dst, snappy.Encode(nil, src)...), nil
	default:
		return nil, ErrUnknownCodec
	}
}

// Decompress decodes src (encoded with codec) into a freshly allocated
// buffer sized decompressedSize.
func Decompress(codec Codec, src []byte, decompressedSize int) ([]byte, error) {
	switch codec {
	case CodecNone:
		return append([]byte(nil), src...), nil
	case CodecS2:
		out, err := s2.Decode(make([]byte, 0, decompressedSize), src)
		if err != nil {
			return nil, errors.Wrap(err, "granitetree: decompress block")
		}
		return out, nil
	case CodecZSTD:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(src, make([]byte, 0, decompressedSize))
		if err != nil {
			return nil, errors.Wrap(err, "granitetree: decompress block")
		}
		return out, nil
	case CodecSnappy:
		out, err := snappy.Decode(make([]byte, 0, decompressedSize), src)
		if err != nil {
			return nil, errors.Wrap(err, "granitetree: decompress block")
		}
		return out, nil
	default:
		return nil, ErrUnknownCodec
	}
}

// CopyAll drains r into a single buffer, for small reads where streaming
// isn't worth the complexity.
func CopyAll(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
