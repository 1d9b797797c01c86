package ioutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	for _, codec := range []Codec{CodecNone, CodecS2, CodecZSTD, CodecSnappy} {
		var buf bytes.Buffer
		payload := bytes.Repeat([]byte("granitetree"), 100)
		_, err := WriteFrame(&buf, codec, payload)
		require.NoError(t, err)

		got, err := ReadFrame(&buf)
		require.NoError(t, err)
		require.Equal(t, payload, got)
	}
}

func TestFrameChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteFrame(&buf, CodecNone, []byte("hello"))
	require.NoError(t, err)
	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF
	_, err = ReadFrame(bytes.NewReader(corrupted))
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestMarksRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/col.mrk"
	marks := []Mark{{CompressedOffset: 0, DecompressedOffset: 0}, {CompressedOffset: 128, DecompressedOffset: 8192}}
	require.NoError(t, WriteMarksFile(path, marks))
	got, err := ReadMarksFile(path)
	require.NoError(t, err)
	require.Equal(t, marks, got)
}

func TestChecksumsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	entries := []FileChecksum{
		{Name: "columns.txt", Size: 10, Hash: 0xdeadbeef},
		{Name: "x.bin", Size: 100, Hash: 0x1234, UncompressedSize: 400, UncompressedHash: 0x5678, HasUncompressed: true},
	}
	path := dir + "/checksums.txt"
	require.NoError(t, WriteChecksumsFile(path, entries))
	got, err := ReadChecksumsFile(path)
	require.NoError(t, err)
	require.Equal(t, entries, got)
}
