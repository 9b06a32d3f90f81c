// Package v75 implements the TH7.5 (Immaterial and Missing Power) archive
// format, grounded on datpacker-th75.c: an uncompressed, unencrypted body
// store with a separately XOR-obfuscated directory of fixed 108-byte
// records (100-byte name, size, offset), keyed by a quadratic advancing
// keystream (k += t; t += 77) rather than the byte-interleaved cipher used
// elsewhere in the series.
package v75

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/reimuhak/bultk/archive"
)

const recordSize = 108
const nameSize = 100

type Module struct{}

func (Module) Open(stream io.ReadWriteSeeker, version uint) (*archive.Archive, error) {
	var countBuf [2]byte
	if _, err := io.ReadFull(stream, countBuf[:]); err != nil {
		return nil, err
	}
	count := binary.LittleEndian.Uint16(countBuf[:])

	list := make([]byte, int(count)*recordSize)
	if _, err := io.ReadFull(stream, list); err != nil {
		return nil, err
	}
	unscramble(list)

	a := &archive.Archive{Stream: stream, Offset: 2 + uint32(len(list))}
	for i := 0; i < int(count); i++ {
		rec := list[i*recordSize : (i+1)*recordSize]
		name, _ := readNulString(rec[:nameSize])
		a.Entries = append(a.Entries, &archive.Entry{
			Name:   name,
			Size:   binary.LittleEndian.Uint32(rec[nameSize : nameSize+4]),
			Offset: binary.LittleEndian.Uint32(rec[nameSize+4 : nameSize+8]),
		})
	}
	return a, nil
}

func (Module) Extract(a *archive.Archive, e *archive.Entry, w io.Writer) error {
	data, err := a.ReadAt(e.Offset, int(e.Size))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (Module) Create(stream io.ReadWriteSeeker, version uint, count int) (*archive.Archive, error) {
	headerSize := int64(2 + recordSize*count)
	if _, err := stream.Seek(headerSize, io.SeekStart); err != nil {
		return nil, err
	}
	return &archive.Archive{Stream: stream, Offset: uint32(headerSize)}, nil
}

func (Module) Write(a *archive.Archive, name string, r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	name = strings.ReplaceAll(name, "/", `\`)
	if len(name) > nameSize-1 {
		return fmt.Errorf("v75: entry name %q longer than %d bytes", name, nameSize-1)
	}

	e := &archive.Entry{Name: name, Size: uint32(len(raw)), Offset: a.Offset}
	if _, err := a.Stream.Seek(int64(a.Offset), io.SeekStart); err != nil {
		return err
	}
	if _, err := a.Stream.Write(raw); err != nil {
		return err
	}
	a.Offset += e.Size
	a.Entries = append(a.Entries, e)
	return nil
}

func (Module) Close(a *archive.Archive) error {
	list := make([]byte, len(a.Entries)*recordSize)
	for i, e := range a.Entries {
		rec := list[i*recordSize : (i+1)*recordSize]
		copy(rec[:nameSize], e.Name)
		binary.LittleEndian.PutUint32(rec[nameSize:nameSize+4], e.Size)
		binary.LittleEndian.PutUint32(rec[nameSize+4:nameSize+8], e.Offset)
	}
	unscramble(list) // XOR is its own inverse

	if _, err := a.Stream.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var countBuf [2]byte
	binary.LittleEndian.PutUint16(countBuf[:], uint16(len(a.Entries)))
	if _, err := a.Stream.Write(countBuf[:]); err != nil {
		return err
	}
	_, err := a.Stream.Write(list)
	return err
}

// unscramble applies (and, being XOR, reverses) the quadratic keystream
// obfuscation over the whole directory buffer in place, grounded on
// th75_close's k/t advance.
func unscramble(buf []byte) {
	k, t := byte(100), byte(100)
	for i := range buf {
		buf[i] ^= k
		k += t
		t += 77
	}
}

func readNulString(data []byte) (string, int) {
	end := bytes.IndexByte(data, 0)
	if end < 0 {
		return string(data), len(data)
	}
	return string(data[:end]), end
}
