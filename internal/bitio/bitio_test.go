package bitio

import (
	"testing"

	"github.com/reimuhak/bultk/internal/dataio"
)

func TestWriteReadRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		n    uint
		v    uint32
	}{
		{"single bit set", 1, 1},
		{"single bit clear", 1, 0},
		{"nibble", 4, 0xA},
		{"thirteen bits", 13, 0x1ABC & 0x1FFF},
		{"full word", 32, 0xDEADBEEF},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf := dataio.NewGrowingBuffer(8)
			w := NewWriter(buf)
			if err := w.Write(c.n, c.v); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := w.Finish(); err != nil {
				t.Fatalf("finish: %v", err)
			}

			buf.Seek(0, 0)
			r := NewReader(buf)
			got, err := r.Read(c.n)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			want := c.v
			if c.n < 32 {
				want &= (1 << c.n) - 1
			}
			if got != want {
				t.Errorf("got %#x, want %#x", got, want)
			}
		})
	}
}

func TestMSBFirstOrdering(t *testing.T) {
	buf := dataio.NewGrowingBuffer(8)
	w := NewWriter(buf)
	// 0b10110000 written as individual bits must reassemble to 0xB0.
	bits := []uint32{1, 0, 1, 1, 0, 0, 0, 0}
	for _, b := range bits {
		if err := w.Write1(b); err != nil {
			t.Fatalf("write1: %v", err)
		}
	}
	got := buf.Bytes()
	if len(got) != 1 || got[0] != 0xB0 {
		t.Fatalf("got %v, want [0xB0]", got)
	}
}

func TestReaderEOF(t *testing.T) {
	buf := dataio.NewFixedBuffer(nil)
	r := NewReader(buf)
	if _, err := r.Read1(); err == nil {
		t.Fatal("expected error reading from empty buffer")
	}
}
