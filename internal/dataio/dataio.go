// Package dataio provides the small set of random-access byte stores used
// throughout the archive and script codecs: an on-disk file, a fixed-size
// buffer, and a growable in-memory buffer. Every codec in this module
// works against the IO interface rather than *os.File directly so the same
// code paths exercise on-disk archives and in-memory round-trip tests.
package dataio

import (
	"errors"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// ErrFixedOverflow is returned by a FixedBuffer write that would grow past
// its preallocated capacity.
var ErrFixedOverflow = errors.New("dataio: fixed buffer overflow")

// IO is a random-access byte store with an explicit cursor, matching the
// read/write/seek surface the archive and bitstream codecs need.
type IO interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
	// Len reports the current total size of the store.
	Len() int64
	// Map returns a zero-copy-where-possible view of the store starting at
	// offset, or ok=false if offset lies outside the store.
	Map(offset int64) (view []byte, ok bool)
}

// File adapts *os.File to IO. Map is backed by a lazily-created, cached
// read-only mmap of the whole file, torn down on Close.
type File struct {
	f       *os.File
	mapping mmap.MMap
}

// NewFile wraps an already-open file.
func NewFile(f *os.File) *File { return &File{f: f} }

func (fio *File) Read(p []byte) (int, error)              { return fio.f.Read(p) }
func (fio *File) Write(p []byte) (int, error)              { return fio.f.Write(p) }
func (fio *File) Seek(off int64, whence int) (int64, error) { return fio.f.Seek(off, whence) }

func (fio *File) Close() error {
	if fio.mapping != nil {
		fio.mapping.Unmap()
		fio.mapping = nil
	}
	return fio.f.Close()
}

func (fio *File) Len() int64 {
	fi, err := fio.f.Stat()
	if err != nil {
		return 0
	}
	return fi.Size()
}

func (fio *File) Map(offset int64) ([]byte, bool) {
	if fio.mapping == nil {
		m, err := mmap.Map(fio.f, mmap.RDONLY, 0)
		if err != nil {
			return nil, false
		}
		fio.mapping = m
	}
	if offset < 0 || offset > int64(len(fio.mapping)) {
		return nil, false
	}
	return fio.mapping[offset:], true
}

// FixedBuffer is a read/write store over a caller-supplied slice. Writes
// past the end of the slice fail with ErrFixedOverflow rather than growing,
// mirroring bitstream_init_fixed in the original bit-stream implementation.
type FixedBuffer struct {
	buf    []byte
	cursor int64
}

// NewFixedBuffer wraps buf for reading and in-place writing.
func NewFixedBuffer(buf []byte) *FixedBuffer {
	return &FixedBuffer{buf: buf}
}

func (b *FixedBuffer) Read(p []byte) (int, error) {
	if b.cursor >= int64(len(b.buf)) {
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.cursor:])
	b.cursor += int64(n)
	return n, nil
}

func (b *FixedBuffer) Write(p []byte) (int, error) {
	end := b.cursor + int64(len(p))
	if end > int64(len(b.buf)) {
		return 0, ErrFixedOverflow
	}
	n := copy(b.buf[b.cursor:end], p)
	b.cursor = end
	return n, nil
}

func (b *FixedBuffer) Seek(off int64, whence int) (int64, error) {
	pos, err := seekTo(b.cursor, int64(len(b.buf)), off, whence)
	if err != nil {
		return 0, err
	}
	b.cursor = pos
	return pos, nil
}

func (b *FixedBuffer) Close() error { return nil }
func (b *FixedBuffer) Len() int64   { return int64(len(b.buf)) }

func (b *FixedBuffer) Map(offset int64) ([]byte, bool) {
	if offset < 0 || offset > int64(len(b.buf)) {
		return nil, false
	}
	return b.buf[offset:], true
}

// Bytes returns the backing slice.
func (b *FixedBuffer) Bytes() []byte { return b.buf }

// GrowingBuffer is a read/write store that doubles its backing array on
// overflow, mirroring buffer_add's *buffer_size *= 2 growth rule.
type GrowingBuffer struct {
	buf    []byte
	cursor int64
}

// NewGrowingBuffer allocates a growable buffer with the given initial
// capacity hint.
func NewGrowingBuffer(initialCap int) *GrowingBuffer {
	if initialCap < 16 {
		initialCap = 16
	}
	return &GrowingBuffer{buf: make([]byte, 0, initialCap)}
}

func (b *GrowingBuffer) Read(p []byte) (int, error) {
	if b.cursor >= int64(len(b.buf)) {
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.cursor:])
	b.cursor += int64(n)
	return n, nil
}

func (b *GrowingBuffer) Write(p []byte) (int, error) {
	end := b.cursor + int64(len(p))
	if end > int64(cap(b.buf)) {
		newCap := 2 * int64(cap(b.buf))
		if newCap < end {
			newCap = end
		}
		grown := make([]byte, len(b.buf), newCap)
		copy(grown, b.buf)
		b.buf = grown
	}
	if end > int64(len(b.buf)) {
		b.buf = b.buf[:end]
	}
	n := copy(b.buf[b.cursor:end], p)
	b.cursor = end
	return n, nil
}

func (b *GrowingBuffer) Seek(off int64, whence int) (int64, error) {
	pos, err := seekTo(b.cursor, int64(len(b.buf)), off, whence)
	if err != nil {
		return 0, err
	}
	b.cursor = pos
	return pos, nil
}

func (b *GrowingBuffer) Close() error { return nil }
func (b *GrowingBuffer) Len() int64   { return int64(len(b.buf)) }

// Map returns a view into the current backing array; like Bytes, it is
// invalidated by a subsequent Write that triggers a grow.
func (b *GrowingBuffer) Map(offset int64) ([]byte, bool) {
	if offset < 0 || offset > int64(len(b.buf)) {
		return nil, false
	}
	return b.buf[offset:], true
}

// Bytes returns a view of the data written so far.
func (b *GrowingBuffer) Bytes() []byte { return b.buf }

func seekTo(cur, size, off int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = off
	case io.SeekCurrent:
		pos = cur + off
	case io.SeekEnd:
		pos = size + off
	default:
		return 0, errors.New("dataio: invalid whence")
	}
	if pos < 0 {
		return 0, errors.New("dataio: negative seek position")
	}
	return pos, nil
}
