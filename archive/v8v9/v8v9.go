// Package v8v9 implements the "PBGZ" archive family (TH08/TH09), grounded
// on thdat08.c: an XOR-obfuscated three-field header, an LZSS+XOR directory
// trailer, and per-entry bodies prefixed with an "edz"+type tag selecting
// one of a small per-extension cipher-parameter table.
package v8v9

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/reimuhak/bultk/archive"
	"github.com/reimuhak/bultk/internal/lzss"
	"github.com/reimuhak/bultk/internal/xorcipher"
)

const (
	countBias  = 123456
	offsetBias = 345678
	sizeBias   = 567891
)

type cryptParams struct {
	tag          byte
	key, step    byte
	block, limit uint32
}

// Index into the per-extension table, named after thdat08.c's TYPE_ constants.
const (
	typeETC = iota
	typeANM
	typeECL
	typeJPG
	typeMSG
	typeTXT
	typeWAV
)

var th08CryptParams = [7]cryptParams{
	{'-', 0x35, 0x97, 0x80, 0x2800},
	{'A', 0xc1, 0x51, 0x1400, 0x2000},
	{'E', 0xab, 0xcd, 0x200, 0x1000},
	{'J', 0x03, 0x19, 0x1400, 0x7800},
	{'M', 0x1b, 0x37, 0x40, 0x2000},
	{'T', 0x51, 0xe9, 0x40, 0x3000},
	{'W', 0x12, 0x34, 0x400, 0x2800},
}

var th09CryptParams = [7]cryptParams{
	{'-', 0x35, 0x97, 0x80, 0x2800},
	{'A', 0xc1, 0x51, 0x400, 0x400},
	{'E', 0xab, 0xcd, 0x200, 0x1000},
	{'J', 0x03, 0x19, 0x400, 0x400},
	{'M', 0x1b, 0x37, 0x40, 0x2800},
	{'T', 0x51, 0xe9, 0x40, 0x3000},
	{'W', 0x12, 0x34, 0x400, 0x400},
}

func paramsFor(version uint) [7]cryptParams {
	if version == 8 {
		return th08CryptParams
	}
	return th09CryptParams
}

func typeForName(name string) int {
	ext := strings.ToLower(name)
	if i := strings.LastIndexByte(ext, '.'); i >= 0 {
		ext = ext[i:]
	} else {
		ext = ""
	}
	switch ext {
	case ".anm":
		return typeANM
	case ".ecl":
		return typeECL
	case ".jpg":
		return typeJPG
	case ".msg":
		return typeMSG
	case ".txt":
		return typeTXT
	case ".wav":
		return typeWAV
	default:
		return typeETC
	}
}

type Module struct{}

func (Module) Open(stream io.ReadWriteSeeker, version uint) (*archive.Archive, error) {
	filesize, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	magic := make([]byte, 4)
	if _, err := io.ReadFull(stream, magic); err != nil {
		return nil, err
	}
	if string(magic) != "PBGZ" {
		return nil, fmt.Errorf("v8v9: wrong magic %q", magic)
	}

	header := make([]byte, 12)
	if _, err := io.ReadFull(stream, header); err != nil {
		return nil, err
	}
	xorcipher.Decrypt(header, 0x1b, 0x37, 12, 0x400)

	count := binary.LittleEndian.Uint32(header[0:4]) - countBias
	offset := binary.LittleEndian.Uint32(header[4:8]) - offsetBias
	size := binary.LittleEndian.Uint32(header[8:12]) - sizeBias

	if _, err := stream.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, err
	}
	zsize := uint32(filesize) - offset
	zdata := make([]byte, zsize)
	if _, err := io.ReadFull(stream, zdata); err != nil {
		return nil, err
	}
	xorcipher.Decrypt(zdata, 0x3e, 0x9b, 0x80, 0x400)

	data, err := lzss.Decompress(zdata, int(size))
	if err != nil {
		return nil, fmt.Errorf("v8v9: directory: %w", err)
	}

	a := &archive.Archive{Version: version, Offset: offset, Stream: stream}
	pos := 0
	for i := uint32(0); i < count; i++ {
		name, n := readNulString(data[pos:])
		pos += n + 1
		if pos+8 > len(data) {
			return nil, fmt.Errorf("v8v9: truncated directory entry %d", i)
		}
		e := &archive.Entry{
			Name:   name,
			Offset: binary.LittleEndian.Uint32(data[pos:]),
			Size:   binary.LittleEndian.Uint32(data[pos+4:]),
		}
		pos += 12
		a.Entries = append(a.Entries, e)
	}
	return a, nil
}

func (Module) Extract(a *archive.Archive, e *archive.Entry, w io.Writer) error {
	// The body's true compressed length isn't recorded in the directory;
	// th_unlz_file instead reads LZSS tokens directly off the stream until
	// e.Size decompressed bytes have been produced. Emulate that by asking
	// the shared stream for a generous upper bound and decompressing with
	// a bounded reader, matching the original's inline streaming decoder.
	// The directory carries no zsize for this family; decode straight off
	// the shared stream, mirroring th_unlz_file's inline streaming decode.
	raw, err := a.DecompressLZSSAt(e.Offset, int(e.Size)+4)
	if err != nil {
		return err
	}

	if len(raw) < 4 || string(raw[:3]) != "edz" {
		return fmt.Errorf("v8v9: %s: entry did not start with \"edz\"", e.Name)
	}
	body := raw[4:]

	params := paramsFor(a.Version)
	typ := -1
	for i, p := range params {
		if p.tag == raw[3] {
			typ = i
			break
		}
	}
	if typ < 0 {
		return fmt.Errorf("v8v9: %s: unsupported entry key %q", e.Name, raw[3])
	}

	xorcipher.Decrypt(body, params[typ].key, params[typ].step, params[typ].block, params[typ].limit)

	_, err = w.Write(body)
	return err
}

func (Module) Create(stream io.ReadWriteSeeker, version uint, count int) (*archive.Archive, error) {
	if _, err := stream.Seek(16, io.SeekStart); err != nil {
		return nil, err
	}
	return &archive.Archive{Version: version, Offset: 16, Stream: stream}, nil
}

func (Module) Write(a *archive.Archive, name string, r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	typ := typeForName(name)
	params := paramsFor(a.Version)[typ]

	tagged := make([]byte, 0, len(raw)+4)
	tagged = append(tagged, 'e', 'd', 'z', params.tag)
	tagged = append(tagged, raw...)
	xorcipher.Encrypt(tagged[4:], params.key, params.step, params.block, params.limit)

	zdata, err := lzss.Compress(bytes.NewReader(tagged))
	if err != nil {
		return fmt.Errorf("v8v9: %s: %w", name, err)
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
	a.Sort()

	var buf bytes.Buffer
	for _, e := range a.Entries {
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		var tmp [12]byte
		binary.LittleEndian.PutUint32(tmp[0:4], e.Offset)
		binary.LittleEndian.PutUint32(tmp[4:8], e.Size+4) // body carries the "edz"+type prefix
		buf.Write(tmp[:])
	}
	buf.Write(make([]byte, 4)) // trailing padding expected by third-party packers

	zbuffer, err := lzss.Compress(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return err
	}
	xorcipher.Encrypt(zbuffer, 0x3e, 0x9b, 0x80, 0x400)

	if _, err := a.Stream.Seek(int64(a.Offset), io.SeekStart); err != nil {
		return err
	}
	if _, err := a.Stream.Write(zbuffer); err != nil {
		return err
	}

	var header [12]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(a.Entries))+countBias)
	binary.LittleEndian.PutUint32(header[4:8], a.Offset+offsetBias)
	binary.LittleEndian.PutUint32(header[8:12], uint32(buf.Len())+sizeBias)
	xorcipher.Encrypt(header[:], 0x1b, 0x37, 12, 0x400)

	if _, err := a.Stream.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := a.Stream.Write([]byte("PBGZ")); err != nil {
		return err
	}
	_, err = a.Stream.Write(header[:])
	return err
}

func readNulString(data []byte) (string, int) {
	end := bytes.IndexByte(data, 0)
	if end < 0 {
		return string(data), len(data)
	}
	return string(data[:end]), end
}
