// Package lzss implements the sliding-window compressor used for archive
// entry bodies and v6/v7 directories: an 8192-byte ring dictionary, 13-bit
// offsets, 4-bit lengths (minimum match 3, maximum 18), one flag bit per
// token, and a zero-offset terminator. Forward-looking matches are legal:
// the encoder may emit a copy whose source bytes have not been written to
// the dictionary yet, provided they have already been scheduled.
package lzss

import (
	"errors"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/reimuhak/bultk/internal/bitio"
	"github.com/reimuhak/bultk/internal/dataio"
)

const (
	dictSize     = 0x2000
	dictSizeMask = 0x1fff
	minMatch     = 3
	maxMatch     = 18
	hashSize     = 0x10000
	hashNull     = 0
)

// ErrTruncated is returned by Decompress when the bitstream ends before
// outSize bytes have been produced and no terminator token was seen.
var ErrTruncated = errors.New("lzss: truncated stream")

// hashTable mirrors hash_t: a bucket table plus prev/next linked lists over
// dictionary offsets, used to accelerate match search. Bucket selection
// XORs the original's key with an xxhash of the key's upper bytes, so the
// bucket is still a function of the key alone: windows with equal keys
// share a bucket, and distinct keys may also land in one. The emitted
// (offset, length) tokens are unaffected because matches are still
// verified byte-by-byte against the dictionary before being accepted.
type hashTable struct {
	buckets [hashSize]uint32
	prev    [dictSize]uint32
	next    [dictSize]uint32
}

func bucketFor(key uint32) uint32 {
	var buf [3]byte
	buf[0] = byte(key >> 16)
	buf[1] = byte(key >> 8)
	buf[2] = byte(key)
	mixed := uint32(xxhash.Sum64(buf[:2])) ^ key
	return mixed & (hashSize - 1)
}

func (h *hashTable) remove(key, offset uint32) {
	h.next[h.prev[offset]] = hashNull
	if h.prev[offset] == hashNull {
		b := bucketFor(key)
		if h.buckets[b] == offset {
			h.buckets[b] = hashNull
		}
	}
}

func (h *hashTable) add(key, offset uint32) {
	b := bucketFor(key)
	h.next[offset] = h.buckets[b]
	h.prev[offset] = hashNull
	h.prev[h.buckets[b]] = offset
	h.buckets[b] = offset
}

func (h *hashTable) head(key uint32) uint32 {
	return h.buckets[bucketFor(key)]
}

func generateKey(dict []byte, base uint32) uint32 {
	return (uint32(dict[(base+1)&dictSizeMask])<<8|
		uint32(dict[(base+2)&dictSizeMask]))^(uint32(dict[base])<<4)
}

// Compress reads all of r and returns the LZSS-encoded bytes.
func Compress(r io.ByteReader) ([]byte, error) {
	out := dataio.NewGrowingBuffer(4096)
	bw := bitio.NewWriter(out)

	hash := &hashTable{}
	var dict [dictSize]byte
	dictHead := uint32(1)
	waiting := uint32(0)

	readErr := error(nil)
	readByte := func() (byte, bool) {
		if readErr != nil {
			return 0, false
		}
		c, err := r.ReadByte()
		if err != nil {
			if err != io.EOF {
				readErr = err
			}
			return 0, false
		}
		return c, true
	}

	for i := uint32(0); i < maxMatch; i++ {
		c, ok := readByte()
		if !ok {
			break
		}
		dict[dictHead+i] = c
		waiting++
	}
	if readErr != nil {
		return nil, readErr
	}

	dictHeadKey := generateKey(dict[:], dictHead)

	for waiting > 0 {
		matchLen := uint32(minMatch - 1)
		matchOffset := uint32(0)

		for off := hash.head(dictHeadKey); off != hashNull; off = hash.next[off] {
			var tmp uint32
			for i := uint32(0); i < waiting; i++ {
				if dict[(dictHead+i)&dictSizeMask] != dict[(off+i)&dictSizeMask] {
					break
				}
				tmp++
			}
			if tmp > matchLen {
				matchLen = tmp
				matchOffset = off
				if matchLen == waiting {
					break
				}
			}
		}

		if matchLen < minMatch {
			matchLen = 1
			if err := bw.Write1(1); err != nil {
				return nil, err
			}
			if err := bw.Write(8, uint32(dict[dictHead])); err != nil {
				return nil, err
			}
		} else {
			if err := bw.Write1(0); err != nil {
				return nil, err
			}
			if err := bw.Write(13, matchOffset); err != nil {
				return nil, err
			}
			if err := bw.Write(4, matchLen-minMatch); err != nil {
				return nil, err
			}
		}

		for i := uint32(0); i < matchLen; i++ {
			evictOffset := (dictHead + maxMatch) & dictSizeMask
			if evictOffset != hashNull {
				hash.remove(generateKey(dict[:], evictOffset), evictOffset)
			}
			if dictHead != hashNull {
				hash.add(dictHeadKey, dictHead)
			}

			if c, ok := readByte(); ok {
				dict[evictOffset] = c
			} else {
				waiting--
			}

			dictHead = (dictHead + 1) & dictSizeMask
			dictHeadKey = generateKey(dict[:], dictHead)
		}
	}
	if readErr != nil {
		return nil, readErr
	}

	if err := bw.Write1(0); err != nil {
		return nil, err
	}
	if err := bw.Write(13, hashNull); err != nil {
		return nil, err
	}
	if err := bw.Write(4, 0); err != nil {
		return nil, err
	}
	if err := bw.Finish(); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}

// Decompress reads an LZSS stream from in and returns at most outSize bytes
// of decoded output; decoding stops early at a zero-offset terminator token.
func Decompress(in []byte, outSize int) ([]byte, error) {
	buf := dataio.NewFixedBuffer(in)
	br := bitio.NewReader(buf)

	out := make([]byte, 0, outSize)
	var dict [dictSize]byte
	dictHead := uint32(1)

	for len(out) < outSize {
		flag, err := br.Read1()
		if err != nil {
			return nil, ErrTruncated
		}
		if flag != 0 {
			c, err := br.Read(8)
			if err != nil {
				return nil, ErrTruncated
			}
			out = append(out, byte(c))
			dict[dictHead] = byte(c)
			dictHead = (dictHead + 1) & dictSizeMask
		} else {
			matchOffset, err := br.Read(13)
			if err != nil {
				return nil, ErrTruncated
			}
			matchLenRaw, err := br.Read(4)
			if err != nil {
				return nil, ErrTruncated
			}
			matchLen := matchLenRaw + minMatch

			if matchOffset == 0 {
				return out, nil
			}

			for i := uint32(0); i < matchLen && len(out) < outSize; i++ {
				c := dict[(matchOffset+i)&dictSizeMask]
				out = append(out, c)
				dict[dictHead] = c
				dictHead = (dictHead + 1) & dictSizeMask
			}
		}
	}
	return out, nil
}
