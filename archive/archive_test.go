package archive

import (
	"bytes"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/reimuhak/bultk/internal/dataio"
	"github.com/reimuhak/bultk/internal/lzss"
)

func TestArchiveSortOrdersByOffset(t *testing.T) {
	a := &Archive{Entries: []*Entry{
		{Name: "c", Offset: 300},
		{Name: "a", Offset: 100},
		{Name: "b", Offset: 200},
	}}
	a.Sort()

	var got []string
	for _, e := range a.Entries {
		got = append(got, e.Name)
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Sort order = %v, want %v", got, want)
		}
	}
}

func TestArchiveByName(t *testing.T) {
	a := &Archive{Entries: []*Entry{{Name: "foo.txt", Size: 4}}}

	e, ok := a.ByName("foo.txt")
	if !ok || e.Size != 4 {
		t.Fatalf("ByName(foo.txt) = %v, %v", e, ok)
	}
	if _, ok := a.ByName("missing"); ok {
		t.Fatal("ByName(missing) reported found")
	}
}

func TestArchiveReadAtSeeksToOffset(t *testing.T) {
	buf := dataio.NewGrowingBuffer(16)
	buf.Write([]byte("0123456789"))
	a := &Archive{Stream: buf}

	got, err := a.ReadAt(3, 4)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "3456" {
		t.Fatalf("ReadAt = %q, want %q", got, "3456")
	}
}

func TestArchiveDecompressLZSSAtStopsAtOutSize(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog, the quick brown fox again")
	zdata, err := lzss.Compress(bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}

	buf := dataio.NewGrowingBuffer(len(zdata) + 8)
	buf.Write([]byte("hdr!")) // leading bytes before the compressed region
	buf.Write(zdata)
	buf.Write([]byte("trailing-garbage-that-a-generous-read-would-also-pick-up"))

	a := &Archive{Stream: buf}
	got, err := a.DecompressLZSSAt(4, len(payload))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("DecompressLZSSAt = %q, want %q", got, payload)
	}
}

func TestExtractAllRunsEveryEntryAndCollectsOneError(t *testing.T) {
	a := &Archive{Entries: []*Entry{
		{Name: "ok1"},
		{Name: "bad"},
		{Name: "ok2"},
	}}
	m := extractStub{fail: "bad"}

	var opened int64
	err := ExtractAll(m, a, func(e *Entry) (io.WriteCloser, error) {
		atomic.AddInt64(&opened, 1)
		return nopWriteCloser{io.Discard}, nil
	})
	if err == nil {
		t.Fatal("expected an error from the failing entry")
	}
	if opened != 3 {
		t.Fatalf("opened %d entries, want 3 (every goroutine must still run)", opened)
	}
}

func TestCandidateDetectNarrowsOnUniqueMagic(t *testing.T) {
	c := Detect([]byte("PBG3rest-of-file"))
	if !c.Has(6) {
		t.Fatal("PBG3 magic should narrow to version 6")
	}
	if c.Has(7) {
		t.Fatal("PBG3 magic should not leave version 7 a candidate")
	}
}

func TestCandidateDetectAmbiguousMagicKeepsBothVersions(t *testing.T) {
	c := Detect([]byte("PBGZrest-of-file"))
	if !c.Has(8) || !c.Has(9) {
		t.Fatal("PBGZ magic should leave both v8 and v9 as candidates")
	}
}

func TestCandidateDetectFilenameNarrows(t *testing.T) {
	c := Detect([]byte("PBGZ..."))
	narrowed := DetectFilename(c, "th09.dat")
	if !narrowed.Has(9) || narrowed.Has(8) {
		t.Fatalf("DetectFilename(th09.dat) did not narrow to just v9: %v", narrowed.Versions())
	}
}

func TestCandidateDetectUnrecognizedMagicLeavesEverythingCandidate(t *testing.T) {
	c := Detect([]byte("???!"))
	if len(c.Versions()) != len(versionBit) {
		t.Fatalf("unrecognized magic should leave all %d versions candidate, got %d", len(versionBit), len(c.Versions()))
	}
}

type extractStub struct {
	fail string
}

func (extractStub) Open(stream io.ReadWriteSeeker, version uint) (*Archive, error) {
	return nil, nil
}
func (extractStub) Create(stream io.ReadWriteSeeker, version uint, count int) (*Archive, error) {
	return nil, nil
}
func (e extractStub) Extract(a *Archive, ent *Entry, w io.Writer) error {
	if ent.Name == e.fail {
		return errors.New("boom")
	}
	_, err := w.Write([]byte("data"))
	return err
}
func (extractStub) Write(a *Archive, name string, r io.Reader) error { return nil }
func (extractStub) Close(a *Archive) error                           { return nil }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
