// Package v95plus implements the "THA1" archive family (TH9.5 and later),
// grounded on thdat95.c: a biased, whole-header-encrypted magic+size+count
// block followed by an LZSS- and XOR-compressed directory trailer, with
// per-entry body encryption keyed by a hash of the entry's own name.
package v95plus

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/reimuhak/bultk/archive"
	"github.com/reimuhak/bultk/internal/lzss"
	"github.com/reimuhak/bultk/internal/xorcipher"
)

const headerSize = 16

const (
	sizeBias  = 123456789
	zsizeBias = 987654321
	countBias = 135792468
)

type cryptParams struct {
	key, step    byte
	block, limit uint32
}

var th95CryptParams = [8]cryptParams{
	{0x1b, 0x37, 0x40, 0x2800},
	{0x51, 0xe9, 0x40, 0x3000},
	{0xc1, 0x51, 0x80, 0x3200},
	{0x03, 0x19, 0x400, 0x7800},
	{0xab, 0xcd, 0x200, 0x2800},
	{0x12, 0x34, 0x80, 0x3200},
	{0x35, 0x97, 0x80, 0x2800},
	{0x99, 0x37, 0x400, 0x2000},
}

var th12CryptParams = [8]cryptParams{
	{0x1b, 0x73, 0x40, 0x3800},
	{0x51, 0x9e, 0x40, 0x4000},
	{0xc1, 0x15, 0x400, 0x2c00},
	{0x03, 0x91, 0x80, 0x6400},
	{0xab, 0xdc, 0x80, 0x6e00},
	{0x12, 0x43, 0x200, 0x3c00},
	{0x35, 0x79, 0x400, 0x3c00},
	{0x99, 0x7d, 0x80, 0x2800},
}

var th13CryptParams = [8]cryptParams{
	{0x1b, 0x73, 0x100, 0x3800},
	{0x12, 0x43, 0x200, 0x3e00},
	{0x35, 0x79, 0x400, 0x3c00},
	{0x03, 0x91, 0x80, 0x6400},
	{0xab, 0xdc, 0x80, 0x6e00},
	{0x51, 0x9e, 0x100, 0x4000},
	{0xc1, 0x15, 0x400, 0x2c00},
	{0x99, 0x7d, 0x80, 0x4400},
}

// paramsFor selects the per-version crypt table, grounded on
// th95_decrypt_data's version switch.
func paramsFor(version uint) [8]cryptParams {
	switch {
	case version == 95 || version == 10 || version == 11:
		return th95CryptParams
	case version == 12 || version == 125 || version == 128:
		return th12CryptParams
	default:
		return th13CryptParams
	}
}

// cryptIndex sums name's bytes mod 8, grounded on th95_get_crypt_param_index.
func cryptIndex(name string) int {
	var sum byte
	for i := 0; i < len(name); i++ {
		sum += name[i]
	}
	return int(sum & 7)
}

type Module struct{}

func (Module) Open(stream io.ReadWriteSeeker, version uint) (*archive.Archive, error) {
	filesize, err := streamSize(stream)
	if err != nil {
		return nil, err
	}

	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(stream, header); err != nil {
		return nil, err
	}
	xorcipher.Decrypt(header, 0x1b, 0x37, headerSize, headerSize)

	if string(header[:4]) != "THA1" {
		return nil, fmt.Errorf("v95plus: wrong magic %q", header[:4])
	}
	size := binary.LittleEndian.Uint32(header[4:8]) - sizeBias
	zsize := binary.LittleEndian.Uint32(header[8:12]) - zsizeBias
	count := binary.LittleEndian.Uint32(header[12:16]) - countBias

	if _, err := stream.Seek(filesize-int64(zsize), io.SeekStart); err != nil {
		return nil, err
	}
	zdata := make([]byte, zsize)
	if _, err := io.ReadFull(stream, zdata); err != nil {
		return nil, err
	}
	xorcipher.Decrypt(zdata, 0x3e, 0x9b, 0x80, zsize)

	data, err := lzss.Decompress(zdata, int(size))
	if err != nil {
		return nil, fmt.Errorf("v95plus: directory: %w", err)
	}

	a := &archive.Archive{Version: version, Stream: stream}
	pos := 0
	for i := uint32(0); i < count; i++ {
		name, n := readNulString(data[pos:])
		pos += n + (4 - n%4) // always 1-4 bytes of NUL padding, even when n is already a multiple of 4
		if pos+8 > len(data) {
			return nil, fmt.Errorf("v95plus: truncated directory entry %d", i)
		}
		e := &archive.Entry{
			Name:   name,
			Offset: binary.LittleEndian.Uint32(data[pos:]),
			Size:   binary.LittleEndian.Uint32(data[pos+4:]),
		}
		pos += 12 // offset, size, and a reserved zero field
		a.Entries = append(a.Entries, e)
	}

	for i, e := range a.Entries {
		if i+1 < len(a.Entries) {
			e.Zsize = a.Entries[i+1].Offset - e.Offset
		} else {
			e.Zsize = uint32(filesize-int64(zsize)) - e.Offset
		}
	}

	return a, nil
}

func (Module) Extract(a *archive.Archive, e *archive.Entry, w io.Writer) error {
	zdata, err := a.ReadAt(e.Offset, int(e.Zsize))
	if err != nil {
		return err
	}

	params := paramsFor(a.Version)[cryptIndex(e.Name)]
	xorcipher.Decrypt(zdata, params.key, params.step, params.block, params.limit)

	var data []byte
	if e.Zsize == e.Size {
		data = zdata
	} else {
		data, err = lzss.Decompress(zdata, int(e.Size))
		if err != nil {
			return fmt.Errorf("v95plus: %s: %w", e.Name, err)
		}
	}

	_, err = w.Write(data)
	return err
}

func (Module) Create(stream io.ReadWriteSeeker, version uint, count int) (*archive.Archive, error) {
	if _, err := stream.Seek(headerSize, io.SeekStart); err != nil {
		return nil, err
	}
	return &archive.Archive{Version: version, Offset: headerSize, Stream: stream}, nil
}

func (Module) Write(a *archive.Archive, name string, r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	zdata, err := lzss.Compress(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("v95plus: %s: %w", name, err)
	}

	e := &archive.Entry{Name: name, Size: uint32(len(raw)), Zsize: uint32(len(zdata))}
	if e.Zsize >= e.Size {
		zdata = raw
		e.Zsize = e.Size
	}

	params := paramsFor(a.Version)[cryptIndex(name)]
	xorcipher.Encrypt(zdata, params.key, params.step, params.block, params.limit)

	e.Offset = a.Offset
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
	a.Sort()

	var buf bytes.Buffer
	for _, e := range a.Entries {
		pad := (4 - len(e.Name)%4)
		buf.WriteString(e.Name)
		buf.Write(make([]byte, pad))
		var tmp [12]byte
		binary.LittleEndian.PutUint32(tmp[0:4], e.Offset)
		binary.LittleEndian.PutUint32(tmp[4:8], e.Size)
		buf.Write(tmp[:])
	}

	zbuffer, err := lzss.Compress(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return err
	}
	listSize := uint32(buf.Len())
	listZsize := uint32(len(zbuffer))
	xorcipher.Encrypt(zbuffer, 0x3e, 0x9b, 0x80, listSize)

	if _, err := a.Stream.Seek(int64(a.Offset), io.SeekStart); err != nil {
		return err
	}
	if _, err := a.Stream.Write(zbuffer); err != nil {
		return err
	}

	var header [headerSize]byte
	copy(header[0:4], "THA1")
	binary.LittleEndian.PutUint32(header[4:8], listSize+sizeBias)
	binary.LittleEndian.PutUint32(header[8:12], listZsize+zsizeBias)
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(a.Entries))+countBias)
	xorcipher.Encrypt(header[:], 0x1b, 0x37, headerSize, headerSize)

	if _, err := a.Stream.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err = a.Stream.Write(header[:])
	return err
}

func streamSize(stream io.ReadWriteSeeker) (int64, error) {
	size, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	return size, nil
}

func readNulString(data []byte) (string, int) {
	end := bytes.IndexByte(data, 0)
	if end < 0 {
		return string(data), len(data)
	}
	return string(data[:end]), end
}
