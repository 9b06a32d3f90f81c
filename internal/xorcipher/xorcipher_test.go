package xorcipher

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name               string
		key, step          byte
		block, limit       uint32
		size               int
	}{
		{"th95 slot 0", 0x1b, 0x37, 0x40, 0x2800, 500},
		{"th95 slot 3", 0x03, 0x19, 0x400, 0x7800, 10000},
		{"directory cipher", 0x3e, 0x9b, 0x80, 0x100000, 37},
		{"odd block", 0x12, 0x34, 7, 64, 29},
		{"tiny input below quarter block", 0x10, 0x20, 64, 256, 3},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			orig := make([]byte, c.size)
			for i := range orig {
				orig[i] = byte(i*7 + 13)
			}
			data := append([]byte(nil), orig...)

			Encrypt(data, c.key, c.step, c.block, c.limit)
			Decrypt(data, c.key, c.step, c.block, c.limit)

			if !bytes.Equal(data, orig) {
				t.Errorf("round trip mismatch:\norig=%v\ngot =%v", orig, data)
			}
		})
	}
}

func TestZeroBlockNoOp(t *testing.T) {
	data := []byte{1, 2, 3}
	orig := append([]byte(nil), data...)
	Encrypt(data, 1, 1, 0, 10)
	if !bytes.Equal(data, orig) {
		t.Error("block==0 must leave data untouched")
	}
}
