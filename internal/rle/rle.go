// Package rle implements the byte-oriented run-length scheme used by the
// earliest archive variant: a literal byte stream where two identical
// consecutive bytes are followed by a count byte giving the number of
// additional repeats (0 meaning "just those two bytes").
package rle

// Encode compresses in, grounded on th_rle.
func Encode(in []byte) []byte {
	out := make([]byte, 0, len(in))
	prevc := -1
	rl := 0

	for _, b := range in {
		c := int(b)
		if rl != 0 {
			if c != prevc || rl == 0x100 {
				out = append(out, byte(rl-1))
				rl = 0
				out = append(out, byte(c))
			}
		} else {
			out = append(out, byte(c))
		}

		if c == prevc {
			rl++
		}
		prevc = c
	}

	if rl != 0 {
		out = append(out, byte(rl-1))
	}

	return out
}

// Decode reverses Encode, grounded on th_unrle.
func Decode(in []byte) []byte {
	if len(in) < 3 {
		out := make([]byte, len(in))
		copy(out, in)
		return out
	}

	out := make([]byte, 0, len(in)*2)
	pos := 0
	prev := in[pos]
	out = append(out, prev)
	pos++
	cur := in[pos]
	out = append(out, cur)
	pos++

	for pos < len(in) {
		if prev == cur {
			count := in[pos]
			pos++
			for i := 0; i < int(count); i++ {
				out = append(out, cur)
			}
			if pos == len(in) {
				break
			}
		}
		prev = cur
		cur = in[pos]
		pos++
		out = append(out, cur)
	}

	return out
}
