// Package xorcipher implements the byte-interleaved XOR stream cipher used
// to obfuscate archive directories and entry bodies. It is not a general
// purpose cipher: the interleave pattern, key schedule, and short-tail
// truncation rule are all part of the wire format and must match bit for
// bit.
package xorcipher

// Encrypt obfuscates data in place using the given key schedule. block must
// be non-zero.
func Encrypt(data []byte, key, step byte, block, limit uint32) {
	crypt(data, key, step, block, limit, true)
}

// Decrypt reverses Encrypt in place. block must be non-zero.
func Decrypt(data []byte, key, step byte, block, limit uint32) {
	crypt(data, key, step, block, limit, false)
}

func crypt(data []byte, key, step byte, block, limit uint32, encrypt bool) {
	if block == 0 {
		return
	}

	size := uint32(len(data))
	if size < block>>2 {
		size = 0
	} else {
		cond := uint32(0)
		if size%block < block>>2 {
			cond = 1
		}
		size -= (cond*size)%block + size%2
	}

	if limit%block != 0 {
		limit += block - (limit % block)
	}

	end := size
	if limit < end {
		end = limit
	}

	temp := make([]byte, block)
	var pos uint32
	for pos < end {
		curBlock := block
		if end-pos < curBlock {
			curBlock = end - pos
		}
		increment := (curBlock >> 1) + (curBlock & 1)

		if encrypt {
			encryptBlock(data[pos:pos+curBlock], temp[:curBlock], curBlock, increment, &key, step)
		} else {
			decryptBlock(data[pos:pos+curBlock], temp[:curBlock], curBlock, increment, &key, step)
		}

		copy(data[pos:pos+curBlock], temp[:curBlock])
		pos += curBlock
	}
}

func encryptBlock(data, temp []byte, block, increment uint32, key *byte, step byte) {
	out := uint32(0)
	rel := int64(block) - 1
	for rel > 0 {
		temp[out] = data[rel] ^ *key
		rel--
		temp[out+increment] = data[rel] ^ (*key + step*byte(increment))
		rel--
		out++
		*key += step
	}
	if block&1 != 0 {
		temp[out] = data[rel] ^ *key
		*key += step
	}
	*key += step * byte(increment)
}

func decryptBlock(data, temp []byte, block, increment uint32, key *byte, step byte) {
	outRel := int64(block) - 1
	inRel := int64(0)
	for outRel > 0 {
		temp[outRel] = data[inRel] ^ *key
		outRel--
		temp[outRel] = data[inRel+int64(increment)] ^ (*key + step*byte(increment))
		outRel--
		inRel++
		*key += step
	}
	if block&1 != 0 {
		temp[outRel] = data[inRel] ^ *key
		*key += step
	}
	*key += step * byte(increment)
}
