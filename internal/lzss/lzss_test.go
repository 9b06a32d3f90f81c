package lzss

import (
	"bytes"
	"testing"

	"github.com/reimuhak/bultk/internal/mtrand"
)

func TestRoundTripSmall(t *testing.T) {
	cases := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		[]byte("the quick brown fox jumps over the lazy dog, the quick brown fox"),
		bytes.Repeat([]byte{0x00}, 100),
	}
	for _, c := range cases {
		compressed, err := Compress(bytes.NewReader(c))
		if err != nil {
			t.Fatalf("compress: %v", err)
		}
		got, err := Decompress(compressed, len(c))
		if err != nil {
			t.Fatalf("decompress: %v", err)
		}
		if !bytes.Equal(got, c) {
			t.Errorf("round trip mismatch for %q: got %q", c, got)
		}
	}
}

func TestRoundTripRandom(t *testing.T) {
	rng := mtrand.New(20260730)
	for trial := 0; trial < 10; trial++ {
		n := int(rng.Uint32()%4000) + 1
		data := make([]byte, n)
		for i := range data {
			// Biased toward repeats so match search is actually exercised.
			if i > 4 && rng.Uint32()%3 == 0 {
				data[i] = data[i-int(rng.Uint32()%4)-1]
			} else {
				data[i] = byte(rng.Uint32())
			}
		}

		compressed, err := Compress(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("trial %d: compress: %v", trial, err)
		}
		got, err := Decompress(compressed, len(data))
		if err != nil {
			t.Fatalf("trial %d: decompress: %v", trial, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("trial %d: round trip mismatch (n=%d)", trial, n)
		}
	}
}

func TestDecompressTerminatesEarlyOnZeroOffset(t *testing.T) {
	compressed, err := Compress(bytes.NewReader([]byte("hi")))
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	// Ask for more than was encoded; the zero-offset terminator must stop
	// the decoder rather than reading past the dictionary.
	got, err := Decompress(compressed, 64)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(got, []byte("hi")) {
		t.Errorf("got %q, want %q", got, "hi")
	}
}
