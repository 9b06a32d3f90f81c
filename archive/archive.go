// Package archive defines the version-independent archive model shared by
// the five variant packages (v2, v6v7, v75, v8v9, v95plus), grounded on
// thdat.h's entry_t/archive_t/archive_module_t triple. Where the original
// keeps one archive_module_t function-pointer table per version compiled
// into a single binary, this module keeps one Go package per variant
// family and a small Module interface each implements.
package archive

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/reimuhak/bultk/internal/lzss"
)

// Entry is one directory record, grounded on entry_t.
type Entry struct {
	Name   string
	Size   uint32
	Zsize  uint32
	Offset uint32
	Extra  uint32
}

// Archive is the in-memory directory of an open archive, grounded on
// archive_t. Stream holds the backing file so Extract can be called
// concurrently per entry; see ExtractAll.
type Archive struct {
	Version uint
	Offset  uint32
	Entries []*Entry
	Stream  io.ReadWriteSeeker

	// mu serialises seek+read pairs against the shared Stream cursor,
	// grounded on thdat95.c's "#pragma omp critical" around file_seek +
	// file_read; Go has no equivalent of OpenMP's worksharing pragmas, so
	// the critical section becomes an explicit mutex held only for the
	// duration of the seek+read, not the decompress/decrypt work after it.
	mu sync.Mutex
}

// ReadAt performs a locked seek-then-read against the archive's shared
// stream, safe to call from multiple goroutines at once.
func (a *Archive) ReadAt(offset uint32, n int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.Stream.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(a.Stream, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// DecompressLZSSAt locks the stream, reads from offset to end of file, and
// LZSS-decompresses outSize bytes from it. Used by variants (v6/v7, v8/v9)
// whose directory doesn't record a per-entry compressed length, mirroring
// th_unlz_file's direct streaming decode off the archive's file handle: the
// LZSS decoder stops consuming input the moment outSize bytes are produced,
// so reading "too far" past the entry's real end is harmless.
func (a *Archive) DecompressLZSSAt(offset uint32, outSize int) ([]byte, error) {
	a.mu.Lock()
	end, err := a.Stream.Seek(0, io.SeekEnd)
	if err != nil {
		a.mu.Unlock()
		return nil, err
	}
	if _, err := a.Stream.Seek(int64(offset), io.SeekStart); err != nil {
		a.mu.Unlock()
		return nil, err
	}
	buf := make([]byte, end-int64(offset))
	_, err = io.ReadFull(a.Stream, buf)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return lzss.Decompress(buf, outSize)
}

// ByName looks up an entry by its stored name.
func (a *Archive) ByName(name string) (*Entry, bool) {
	for _, e := range a.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// Sort orders entries by their on-disk offset, grounded on thdat_sort.
func (a *Archive) Sort() {
	sort.Slice(a.Entries, func(i, j int) bool { return a.Entries[i].Offset < a.Entries[j].Offset })
}

// Module is the per-variant open/extract/create/write/close surface,
// generalizing archive_module_t's five function pointers into methods.
type Module interface {
	// Open reads the directory of an already-opened archive stream.
	Open(stream io.ReadWriteSeeker, version uint) (*Archive, error)
	// Extract decompresses/decrypts one entry's body to w.
	Extract(a *Archive, e *Entry, w io.Writer) error
	// Create prepares stream for writing a new archive and seeks past the
	// space reserved for the header or directory; stream is not truncated,
	// and count is used only by variants whose directory size is fixed up
	// front.
	Create(stream io.ReadWriteSeeker, version uint, count int) (*Archive, error)
	// Write compresses/encrypts r's full contents as the named entry and
	// appends it to the archive.
	Write(a *Archive, name string, r io.Reader) error
	// Close finalizes and writes out the directory.
	Close(a *Archive) error
}

// ExtractAll extracts every entry of a concurrently, calling open(e) to
// obtain each entry's output writer. Extraction runs with one goroutine per
// entry; Archive.ReadAt's internal lock serialises the only shared mutable
// state (the stream cursor). A fatal error in any goroutine is recorded
// once (sticky) and the first one is returned after every goroutine has
// finished, grounded on thdat95.c's error-then-continue loop body under
// OpenMP, adapted to Go's errgroup-less goroutine+WaitGroup idiom.
func ExtractAll(m Module, a *Archive, open func(e *Entry) (io.WriteCloser, error)) error {
	var wg sync.WaitGroup
	var once sync.Once
	var fatal error

	for _, e := range a.Entries {
		e := e
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := open(e)
			if err != nil {
				once.Do(func() { fatal = err })
				return
			}
			defer w.Close()
			if err := m.Extract(a, e, w); err != nil {
				once.Do(func() { fatal = fmt.Errorf("archive: extracting %q: %w", e.Name, err) })
			}
		}()
	}
	wg.Wait()
	return fatal
}

// Candidate is a 128-bit set of plausible archive versions, one bit per
// enumerated version: 2, 3, 4, 5, 6, 7, 75, 8, 9, 95, 10, 11, 12, 125, 128,
// 13, 14, 143, 15, 16, 165, 17.
type Candidate [2]uint64

var versionBit = map[uint]int{
	2: 0, 3: 1, 4: 2, 5: 3, 6: 4, 7: 5, 75: 6, 8: 7, 9: 8, 95: 9,
	10: 10, 11: 11, 12: 12, 125: 13, 128: 14, 13: 15, 14: 16,
	143: 17, 15: 18, 16: 19, 165: 20, 17: 21,
}

func (c *Candidate) set(version uint) {
	bit, ok := versionBit[version]
	if !ok {
		return
	}
	if bit < 64 {
		c[0] |= 1 << uint(bit)
	} else {
		c[1] |= 1 << uint(bit-64)
	}
}

// Has reports whether version remains a candidate.
func (c Candidate) Has(version uint) bool {
	bit, ok := versionBit[version]
	if !ok {
		return false
	}
	if bit < 64 {
		return c[0]&(1<<uint(bit)) != 0
	}
	return c[1]&(1<<uint(bit-64)) != 0
}

// Versions returns every version still set in c, ascending.
func (c Candidate) Versions() []uint {
	var out []uint
	for v, bit := range versionBit {
		word, shift := 0, bit
		if bit >= 64 {
			word, shift = 1, bit-64
		}
		if c[word]&(1<<uint(shift)) != 0 {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Detect narrows the full version set to those whose magic bytes match the
// first few bytes of data: magic-only match narrows to a family, a unique
// magic collapses to one version, and an ambiguous magic (PBGZ, shared by
// th08 and th09) is narrowed further by the game number in the filename via
// DetectFilename.
func Detect(data []byte) Candidate {
	var c Candidate
	switch {
	case len(data) >= 4 && string(data[:4]) == "PBG3":
		c.set(6)
	case len(data) >= 4 && string(data[:4]) == "PBG4":
		c.set(7)
	case len(data) >= 4 && string(data[:4]) == "PBGZ":
		// PBGZ's header is itself XOR-obfuscated; the magic bytes are the
		// only unobfuscated signal, and both th08 and th09 share it.
		c.set(8)
		c.set(9)
	default:
		// THA1 archives encrypt their header too, so magic sniffing alone
		// cannot confirm them; every remaining version stays a candidate
		// for DetectFilename / explicit version selection to narrow.
		for v := range versionBit {
			c.set(v)
		}
	}
	return c
}

// DetectFilename narrows c using the conventional on-disk archive filename
// (e.g. "th06.dat", "th143.dat", "alcostg.dat").
func DetectFilename(c Candidate, filename string) Candidate {
	lower := strings.ToLower(filename)
	var narrowed Candidate
	for _, v := range c.Versions() {
		if strings.Contains(lower, fmt.Sprintf("th%02d", v)) || strings.Contains(lower, fmt.Sprintf("th%d", v)) {
			narrowed.set(v)
		}
	}
	if narrowed == (Candidate{}) {
		return c
	}
	return narrowed
}
