// Package v6v7 implements the "PBG3"/"PBG4" archive family (TH06/TH07),
// grounded on thdat06.c: v6 ("PBG3") stores its directory as a bitstream of
// variable-width integers and strings with no compression; v7 ("PBG4")
// stores a conventional fixed 12-byte header followed by an LZSS-compressed
// directory. Both variants' entry bodies are raw LZSS streams with no
// additional cipher layer.
package v6v7

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/reimuhak/bultk/archive"
	"github.com/reimuhak/bultk/internal/bitio"
	"github.com/reimuhak/bultk/internal/dataio"
	"github.com/reimuhak/bultk/internal/lzss"
)

// readVarUint reads a th06-style self-describing integer: a 2-bit size
// selector (0..3) followed by (size+1)*8 bits of value, grounded on
// th06_read_uint32.
func readVarUint(r *bitio.Reader) (uint32, error) {
	size, err := r.Read(2)
	if err != nil {
		return 0, err
	}
	return r.Read(uint(size+1) * 8)
}

func writeVarUint(w *bitio.Writer, value uint32) error {
	size := uint(1)
	switch {
	case value&0xff000000 != 0:
		size = 4
	case value&0xff0000 != 0:
		size = 3
	case value&0xff00 != 0:
		size = 2
	}
	if err := w.Write(2, uint32(size-1)); err != nil {
		return err
	}
	return w.Write(size*8, value)
}

func readFixedString(r *bitio.Reader, length int) (string, error) {
	buf := make([]byte, 0, length)
	for i := 0; i < length; i++ {
		c, err := r.Read(8)
		if err != nil {
			return "", err
		}
		if c == 0 {
			break
		}
		buf = append(buf, byte(c))
	}
	return string(buf), nil
}

type Module struct{}

func (Module) Open(stream io.ReadWriteSeeker, version uint) (*archive.Archive, error) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(stream, magic); err != nil {
		return nil, err
	}

	switch string(magic) {
	case "PBG3":
		return openV6(stream)
	case "PBG4":
		return openV7(stream)
	default:
		return nil, fmt.Errorf("v6v7: wrong magic %q", magic)
	}
}

func openV6(stream io.ReadWriteSeeker) (*archive.Archive, error) {
	r := bitio.NewReader(streamIO{stream})
	count, err := readVarUint(r)
	if err != nil {
		return nil, err
	}
	offset, err := readVarUint(r)
	if err != nil {
		return nil, err
	}

	if _, err := stream.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, err
	}
	r = bitio.NewReader(streamIO{stream})

	a := &archive.Archive{Version: 6, Offset: offset, Stream: stream}
	for i := uint32(0); i < count; i++ {
		if _, err := readVarUint(r); err != nil { // unused field, mirrors th06_open's two discarded reads
			return nil, err
		}
		if _, err := readVarUint(r); err != nil {
			return nil, err
		}
		extra, err := readVarUint(r)
		if err != nil {
			return nil, err
		}
		off, err := readVarUint(r)
		if err != nil {
			return nil, err
		}
		size, err := readVarUint(r)
		if err != nil {
			return nil, err
		}
		name, err := readFixedString(r, 255)
		if err != nil {
			return nil, err
		}
		a.Entries = append(a.Entries, &archive.Entry{Name: name, Offset: off, Size: size, Extra: extra})
	}
	return a, nil
}

func openV7(stream io.ReadWriteSeeker) (*archive.Archive, error) {
	header := make([]byte, 12)
	if _, err := io.ReadFull(stream, header); err != nil {
		return nil, err
	}
	count := binary.LittleEndian.Uint32(header[0:4])
	offset := binary.LittleEndian.Uint32(header[4:8])
	size := binary.LittleEndian.Uint32(header[8:12])

	if _, err := stream.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, err
	}
	zdata, err := io.ReadAll(stream)
	if err != nil {
		return nil, err
	}
	data, err := lzss.Decompress(zdata, int(size))
	if err != nil {
		return nil, fmt.Errorf("v6v7: directory: %w", err)
	}

	a := &archive.Archive{Version: 7, Offset: offset, Stream: stream}
	pos := 0
	for i := uint32(0); i < count; i++ {
		name, n := readNulString(data[pos:])
		pos += n + 1
		if pos+8 > len(data) {
			return nil, fmt.Errorf("v6v7: truncated directory entry %d", i)
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
	raw, err := a.DecompressLZSSAt(e.Offset, int(e.Size))
	if err != nil {
		return err
	}
	_, err = w.Write(raw)
	return err
}

// Create and the remaining write path target v7 only: v6's bitstream
// directory format is obsolete even among the old family, and thtk's own
// packer only ever emits PBG4 going forward.
func (Module) Create(stream io.ReadWriteSeeker, version uint, count int) (*archive.Archive, error) {
	if _, err := stream.Seek(16, io.SeekStart); err != nil {
		return nil, err
	}
	return &archive.Archive{Version: 7, Offset: 16, Stream: stream}, nil
}

func (Module) Write(a *archive.Archive, name string, r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	zdata, err := lzss.Compress(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("v6v7: %s: %w", name, err)
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
		binary.LittleEndian.PutUint32(tmp[4:8], e.Size)
		buf.Write(tmp[:])
	}

	zbuffer, err := lzss.Compress(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return err
	}

	if _, err := a.Stream.Seek(int64(a.Offset), io.SeekStart); err != nil {
		return err
	}
	if _, err := a.Stream.Write(zbuffer); err != nil {
		return err
	}

	var header [16]byte
	copy(header[0:4], "PBG4")
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(a.Entries)))
	binary.LittleEndian.PutUint32(header[8:12], a.Offset)
	binary.LittleEndian.PutUint32(header[12:16], uint32(buf.Len()))

	if _, err := a.Stream.Seek(0, io.SeekStart); err != nil {
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

// streamIO adapts an io.ReadWriteSeeker to dataio.IO for bitio, which needs
// Len/Close as well; Close is a no-op since the archive owns the stream's
// lifetime.
type streamIO struct {
	io.ReadWriteSeeker
}

func (s streamIO) Close() error { return nil }
func (s streamIO) Len() int64 {
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0
	}
	s.Seek(cur, io.SeekStart)
	return end
}

// Map materializes a copy rather than a true zero-copy view: streamIO only
// has an io.ReadWriteSeeker to work with, which offers no addressable
// backing array to slice into.
func (s streamIO) Map(offset int64) ([]byte, bool) {
	size := s.Len()
	if offset < 0 || offset > size {
		return nil, false
	}
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, false
	}
	defer s.Seek(cur, io.SeekStart)

	if _, err := s.Seek(offset, io.SeekStart); err != nil {
		return nil, false
	}
	buf := make([]byte, size-offset)
	if _, err := io.ReadFull(s, buf); err != nil {
		return nil, false
	}
	return buf, true
}

var _ dataio.IO = streamIO{}
