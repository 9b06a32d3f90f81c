package v2

import (
	"bytes"
	"testing"

	"github.com/reimuhak/bultk/internal/dataio"
)

func TestWriteOpenExtractRoundTrip(t *testing.T) {
	buf := dataio.NewGrowingBuffer(256)
	var m Module

	a, err := m.Create(buf, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Write(a, "STAGE1.STD", bytes.NewReader([]byte("aaaaaaaaaabbbbbbbbbbccccc"))); err != nil {
		t.Fatal(err)
	}
	if err := m.Write(a, "MUSIC.PCM", bytes.NewReader([]byte{1, 2, 3, 4, 5})); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(a); err != nil {
		t.Fatal(err)
	}

	buf.Seek(0, 0)
	reopened, err := m.Open(buf, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(reopened.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(reopened.Entries))
	}

	e, ok := reopened.ByName("STAGE1.STD")
	if !ok {
		t.Fatal("STAGE1.STD not found after reopen")
	}

	var out bytes.Buffer
	if err := m.Extract(reopened, e, &out); err != nil {
		t.Fatal(err)
	}
	if out.String() != "aaaaaaaaaabbbbbbbbbbccccc" {
		t.Fatalf("extracted %q, want original content", out.String())
	}
}

func TestWriteRejectsNameLongerThan13Bytes(t *testing.T) {
	buf := dataio.NewGrowingBuffer(256)
	var m Module
	a, err := m.Create(buf, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Write(a, "THIS_NAME_IS_WAY_TOO_LONG.TXT", bytes.NewReader(nil)); err == nil {
		t.Fatal("expected an error for an over-length 8.3 name")
	}
}
