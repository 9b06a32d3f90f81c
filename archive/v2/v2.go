// Package v2 implements the TH02 (Seihou) archive format, grounded on
// datpacker-th02.c: a directory of 32-byte fixed records (8.3 filename
// XORed with 0xFF, possibly-RLE'd size/zsize/offset), stored at the very
// start of the file. Entry bodies are RLE-compressed then whole-body XORed
// with a single constant byte.
package v2

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/reimuhak/bultk/archive"
	"github.com/reimuhak/bultk/internal/rle"
)

const recordSize = 32
const nameSize = 13

const bodyXOR = 0x12

// magic1 marks an uncompressed entry (zsize == size), magic2 an RLE'd one,
// grounded on th02_close's magic1/magic2 constants.
const (
	magic1 = 0xf388
	magic2 = 0x9595
)

type Module struct{}

func (Module) Open(stream io.ReadWriteSeeker, version uint) (*archive.Archive, error) {
	a := &archive.Archive{Version: 2, Stream: stream}

	for {
		rec := make([]byte, recordSize)
		n, err := io.ReadFull(stream, rec)
		if err == io.EOF || n == 0 {
			break
		}
		if err != nil {
			return nil, err
		}

		magic := binary.LittleEndian.Uint16(rec[0:2])
		if magic != magic1 && magic != magic2 {
			break // directory terminator / padding record
		}

		name := make([]byte, nameSize)
		for i := 0; i < nameSize; i++ {
			if rec[3+i] == 0 {
				break // unset tail byte, never XORed by Close since the plaintext byte was 0
			}
			name[i] = rec[3+i] ^ 0xff
		}
		nameStr, _ := readNulString(name)

		e := &archive.Entry{
			Name:   nameStr,
			Zsize:  binary.LittleEndian.Uint32(rec[16:20]),
			Size:   binary.LittleEndian.Uint32(rec[20:24]),
			Offset: binary.LittleEndian.Uint32(rec[24:28]),
		}
		a.Entries = append(a.Entries, e)
	}
	return a, nil
}

func (Module) Extract(a *archive.Archive, e *archive.Entry, w io.Writer) error {
	zdata, err := a.ReadAt(e.Offset, int(e.Zsize))
	if err != nil {
		return err
	}
	for i := range zdata {
		zdata[i] ^= bodyXOR
	}

	data := zdata
	if e.Zsize != e.Size {
		data = rle.Decode(zdata)
		if uint32(len(data)) != e.Size {
			return fmt.Errorf("v2: %s: decoded %d bytes, want %d", e.Name, len(data), e.Size)
		}
	}

	_, err = w.Write(data)
	return err
}

func (Module) Create(stream io.ReadWriteSeeker, version uint, count int) (*archive.Archive, error) {
	headerSize := int64((count + 1) * recordSize)
	if _, err := stream.Seek(headerSize, io.SeekStart); err != nil {
		return nil, err
	}
	return &archive.Archive{Version: 2, Offset: uint32(headerSize), Stream: stream}, nil
}

func (Module) Write(a *archive.Archive, name string, r io.Reader) error {
	if len(name) > nameSize {
		return fmt.Errorf("v2: entry name %q longer than %d bytes (8.3 filenames only)", name, nameSize)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	zdata := rle.Encode(raw)
	if len(zdata) >= len(raw) {
		zdata = append([]byte(nil), raw...)
	}
	for i := range zdata {
		zdata[i] ^= bodyXOR
	}

	e := &archive.Entry{Name: name, Size: uint32(len(raw)), Zsize: uint32(len(zdata)), Offset: a.Offset}
	if _, err := a.Stream.Seek(int64(a.Offset), io.SeekStart); err != nil {
		return err
	}
	if _, err := a.Stream.Write(zdata); err != nil {
		return err
	}
	a.Offset += e.Zsize
	a.Entries = append(a.Entries, e)
	return nil
}

func (Module) Close(a *archive.Archive) error {
	list := make([]byte, (len(a.Entries)+1)*recordSize)
	for i, e := range a.Entries {
		rec := list[i*recordSize : (i+1)*recordSize]
		magic := uint16(magic2)
		if e.Zsize == e.Size {
			magic = magic1
		}
		binary.LittleEndian.PutUint16(rec[0:2], magic)
		rec[2] = 3
		copy(rec[3:3+nameSize], e.Name)
		for j := 0; j < nameSize && j < len(e.Name); j++ {
			rec[3+j] ^= 0xff
		}
		binary.LittleEndian.PutUint32(rec[16:20], e.Zsize)
		binary.LittleEndian.PutUint32(rec[20:24], e.Size)
		binary.LittleEndian.PutUint32(rec[24:28], e.Offset)
	}
	// The trailing record stays all-zero, terminating the directory scan
	// in Open the same way th02_close's one extra blank record does.

	if _, err := a.Stream.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := a.Stream.Write(list)
	return err
}

func readNulString(data []byte) (string, int) {
	end := bytes.IndexByte(data, 0)
	if end < 0 {
		return string(data), len(data)
	}
	return string(data[:end]), end
}
