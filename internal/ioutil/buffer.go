package ioutil

import (
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// DefaultBufferSize mirrors the teacher's (and ClickHouse's)
// DBMS_DEFAULT_BUFFER_SIZE-sized buffered writer, used for every part file
// written on the write and merge paths.
const DefaultBufferSize = 1 << 20

// BufferedWriter wraps an *os.File with an in-memory buffer, flushing full
// buffers with retry-on-short-write, grounded on
// original_source/dbms/include/DB/IO/WriteBufferFromFileDescriptor.h.
type BufferedWriter struct {
	f   *os.File
	buf []byte
}

// NewBufferedWriter opens path for writing (creating it) with a buffer of
// DefaultBufferSize.
func NewBufferedWriter(path string) (*BufferedWriter, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "granitetree: create %s", path)
	}
	return &BufferedWriter{f: f, buf: make([]byte, 0, DefaultBufferSize)}, nil
}

// Write buffers p, flushing to the file whenever the buffer fills.
func (w *BufferedWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		free := cap(w.buf) - len(w.buf)
		if free == 0 {
			if err := w.flush(); err != nil {
				return 0, err
			}
			free = cap(w.buf)
		}
		take := free
		if take > len(p) {
			take = len(p)
		}
		w.buf = append(w.buf, p[:take]...)
		p = p[take:]
	}
	return n, nil
}

func (w *BufferedWriter) flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	written := 0
	for written != len(w.buf) {
		n, err := w.f.Write(w.buf[written:])
		if n > 0 {
			written += n
		}
		if err != nil {
			return errors.Wrapf(err, "granitetree: write to %s", w.f.Name())
		}
	}
	w.buf = w.buf[:0]
	return nil
}

// Sync flushes buffered bytes and fdatasyncs the underlying file, the
// durability point for a part's write path before it is renamed visible.
func (w *BufferedWriter) Sync() error {
	if err := w.flush(); err != nil {
		return err
	}
	if err := unix.Fdatasync(int(w.f.Fd())); err != nil {
		return errors.Wrapf(err, "granitetree: fdatasync %s", w.f.Name())
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *BufferedWriter) Close() error {
	if err := w.flush(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}

// Name returns the path of the underlying file.
func (w *BufferedWriter) Name() string { return w.f.Name() }
