package v75

import (
	"bytes"
	"testing"

	"github.com/reimuhak/bultk/internal/dataio"
)

func TestWriteOpenExtractRoundTrip(t *testing.T) {
	buf := dataio.NewGrowingBuffer(512)
	var m Module

	a, err := m.Create(buf, 75, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Write(a, "ascii.anm", bytes.NewReader([]byte("hello from stage 1"))); err != nil {
		t.Fatal(err)
	}
	if err := m.Write(a, "sub/dir/name.ecl", bytes.NewReader([]byte{0, 1, 2, 3})); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(a); err != nil {
		t.Fatal(err)
	}

	buf.Seek(0, 0)
	reopened, err := m.Open(buf, 75)
	if err != nil {
		t.Fatal(err)
	}
	if len(reopened.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(reopened.Entries))
	}

	e, ok := reopened.ByName("ascii.anm")
	if !ok {
		t.Fatal("ascii.anm not found after reopen")
	}
	var out bytes.Buffer
	if err := m.Extract(reopened, e, &out); err != nil {
		t.Fatal(err)
	}
	if out.String() != "hello from stage 1" {
		t.Fatalf("extracted %q, want original", out.String())
	}
}

func TestWriteNormalizesForwardSlashes(t *testing.T) {
	buf := dataio.NewGrowingBuffer(512)
	var m Module
	a, err := m.Create(buf, 75, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Write(a, "sub/dir/name.ecl", bytes.NewReader(nil)); err != nil {
		t.Fatal(err)
	}
	if a.Entries[0].Name != `sub\dir\name.ecl` {
		t.Fatalf("name = %q, want backslash-normalized", a.Entries[0].Name)
	}
}

func TestUnscrambleIsSelfInverse(t *testing.T) {
	orig := []byte("the directory bytes that get XORed by the quadratic keystream")
	buf := append([]byte(nil), orig...)

	unscramble(buf)
	if bytes.Equal(buf, orig) {
		t.Fatal("unscramble did not change the buffer")
	}
	unscramble(buf)
	if !bytes.Equal(buf, orig) {
		t.Fatal("applying unscramble twice did not restore the original bytes")
	}
}
