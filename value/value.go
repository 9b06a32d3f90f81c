// Package value implements the tagged value type used in opcode parameter
// lists: a small sum type over signed/unsigned integers of several widths,
// floats, doubles, strings, and opaque byte blobs, with both binary and
// textual encodings.
package value

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type identifies which field of a Value is populated, named after the
// format-string letters used throughout the opcode tables.
type Type byte

const (
	TypeS8     Type = 'c' // signed byte
	TypeU8     Type = 'b' // unsigned byte
	TypeS16    Type = 's' // signed 16-bit
	TypeU16    Type = 'u' // unsigned 16-bit
	TypeS32    Type = 'S' // signed 32-bit
	TypeU32    Type = 'U' // unsigned 32-bit
	TypeF32    Type = 'f' // float32
	TypeF64    Type = 'd' // float64
	TypeString Type = 'z' // NUL-terminated string
	TypeBlob   Type = 'm' // length-prefixed opaque blob
)

// Value is a tagged union over the wire value types.
type Value struct {
	Type Type
	I64  int64   // s8/u8/s16/u16/s32/u32, sign/zero-extended
	F64  float64 // f32 (narrowed on write)/f64
	Str  string  // z
	Blob []byte  // m
}

// ErrShortRead is returned by FromData when fewer bytes remain than the
// type requires.
var ErrShortRead = errors.New("value: short read")

// ErrUnknownType is returned for an unrecognised type letter.
var ErrUnknownType = errors.New("value: unknown type")

// FromData parses one value of the given type from the front of data and
// returns it along with the number of bytes consumed.
func FromData(data []byte, typ Type) (Value, int, error) {
	need := func(n int) error {
		if len(data) < n {
			return ErrShortRead
		}
		return nil
	}

	switch typ {
	case TypeS8:
		if err := need(1); err != nil {
			return Value{}, 0, err
		}
		return Value{Type: typ, I64: int64(int8(data[0]))}, 1, nil
	case TypeU8:
		if err := need(1); err != nil {
			return Value{}, 0, err
		}
		return Value{Type: typ, I64: int64(data[0])}, 1, nil
	case TypeS16:
		if err := need(2); err != nil {
			return Value{}, 0, err
		}
		return Value{Type: typ, I64: int64(int16(binary.LittleEndian.Uint16(data)))}, 2, nil
	case TypeU16:
		if err := need(2); err != nil {
			return Value{}, 0, err
		}
		return Value{Type: typ, I64: int64(binary.LittleEndian.Uint16(data))}, 2, nil
	case TypeS32:
		if err := need(4); err != nil {
			return Value{}, 0, err
		}
		return Value{Type: typ, I64: int64(int32(binary.LittleEndian.Uint32(data)))}, 4, nil
	case TypeU32:
		if err := need(4); err != nil {
			return Value{}, 0, err
		}
		return Value{Type: typ, I64: int64(binary.LittleEndian.Uint32(data))}, 4, nil
	case TypeF32:
		if err := need(4); err != nil {
			return Value{}, 0, err
		}
		bits := binary.LittleEndian.Uint32(data)
		return Value{Type: typ, F64: float64(math.Float32frombits(bits))}, 4, nil
	case TypeF64:
		if err := need(8); err != nil {
			return Value{}, 0, err
		}
		bits := binary.LittleEndian.Uint64(data)
		return Value{Type: typ, F64: math.Float64frombits(bits)}, 8, nil
	case TypeString:
		end := 0
		for end < len(data) && data[end] != 0 {
			end++
		}
		if end >= len(data) {
			return Value{}, 0, ErrShortRead
		}
		return Value{Type: typ, Str: string(data[:end])}, end + 1, nil
	case TypeBlob:
		if err := need(4); err != nil {
			return Value{}, 0, err
		}
		length := binary.LittleEndian.Uint32(data)
		total := 4 + int(length)
		if err := need(total); err != nil {
			return Value{}, 0, err
		}
		blob := make([]byte, length)
		copy(blob, data[4:total])
		return Value{Type: typ, Blob: blob}, total, nil
	default:
		return Value{}, 0, fmt.Errorf("%w: %q", ErrUnknownType, byte(typ))
	}
}

// ToData appends the wire encoding of v to buf and returns the extended
// slice.
func ToData(buf []byte, v Value) ([]byte, error) {
	switch v.Type {
	case TypeS8, TypeU8:
		return append(buf, byte(v.I64)), nil
	case TypeS16, TypeU16:
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], uint16(v.I64))
		return append(buf, tmp[:]...), nil
	case TypeS32, TypeU32:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(v.I64))
		return append(buf, tmp[:]...), nil
	case TypeF32:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(float32(v.F64)))
		return append(buf, tmp[:]...), nil
	case TypeF64:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v.F64))
		return append(buf, tmp[:]...), nil
	case TypeString:
		buf = append(buf, v.Str...)
		return append(buf, 0), nil
	case TypeBlob:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(v.Blob)))
		buf = append(buf, tmp[:]...)
		return append(buf, v.Blob...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, byte(v.Type))
	}
}

// Known keys for the layered m-blob transform, selected by call site rather
// than by blob length alone (two distinct 48-byte forms exist, see
// SPEC_FULL.md §3.7).
const (
	BlobKeyA = 0xaa // 48-byte form
	BlobKeyB = 0xbb // other 48-byte form
	BlobKeyD = 0xdd // 64-byte form
	BlobKeyE = 0xee // other 64-byte form
)

// FromBlobKeyed reverses the layered XOR-then-string transform applied to
// short m-blobs in the old script format: the blob is XORed with key and
// the result is treated as a NUL-terminated string.
func FromBlobKeyed(blob []byte, key byte) string {
	out := make([]byte, len(blob))
	for i, b := range blob {
		out[i] = b ^ key
	}
	end := len(out)
	if idx := indexByte(out, 0); idx >= 0 {
		end = idx
	}
	return string(out[:end])
}

// ToBlobKeyed produces the obfuscated blob form of s for the given key and
// total blob length, NUL-padding as needed.
func ToBlobKeyed(s string, key byte, length int) []byte {
	out := make([]byte, length)
	copy(out, s)
	for i := range out {
		out[i] ^= key
	}
	return out
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// FromText parses a textual representation of typ from text.
func FromText(text string, typ Type) (Value, error) {
	text = strings.TrimSpace(text)
	switch typ {
	case TypeS8, TypeS16, TypeS32:
		n, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("value: parse int %q: %w", text, err)
		}
		return Value{Type: typ, I64: n}, nil
	case TypeU8, TypeU16, TypeU32:
		n, err := strconv.ParseUint(text, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("value: parse uint %q: %w", text, err)
		}
		return Value{Type: typ, I64: int64(n)}, nil
	case TypeF32, TypeF64:
		f, err := strconv.ParseFloat(strings.TrimSuffix(text, "f"), 64)
		if err != nil {
			return Value{}, fmt.Errorf("value: parse float %q: %w", text, err)
		}
		return Value{Type: typ, F64: f}, nil
	case TypeString:
		return Value{Type: typ, Str: unquote(text)}, nil
	default:
		return Value{}, fmt.Errorf("%w: %q", ErrUnknownType, byte(typ))
	}
}

// ToText renders v in the DSL's textual form.
func ToText(v Value) string {
	switch v.Type {
	case TypeS8, TypeS16, TypeS32:
		return strconv.FormatInt(v.I64, 10)
	case TypeU8, TypeU16, TypeU32:
		return strconv.FormatUint(uint64(v.I64), 10)
	case TypeF32:
		return strconv.FormatFloat(v.F64, 'g', -1, 32) + "f"
	case TypeF64:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	case TypeString:
		return quote(v.Str)
	case TypeBlob:
		return fmt.Sprintf("<%d bytes>", len(v.Blob))
	default:
		return ""
	}
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func unquote(s string) string {
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\\`, `\`)
	return s
}
