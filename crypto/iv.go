// Package crypto implements the two stream ciphers BLTE's encrypted chunk
// mode ('E') supports: Salsa20 and ARC4. Both share the same IV derivation
// rule (spec.md §4.1.1): the stored IV bytes are XORed, as a little-endian
// 32-bit integer over however many bytes are available (up to 4), with the
// chunk's block index. This binds each chunk's ciphertext to its position
// in the BLTE chunk table, so a chunk can't be replayed at a different
// index without the decryption producing garbage.
package crypto

// DeriveIV returns a copy of iv with its first min(len(iv), 4) bytes XORed,
// interpreted as a little-endian uint32, against blockIndex. Bytes beyond
// the first 4 (an 8-byte IV is occasionally seen) are left untouched.
func DeriveIV(iv []byte, blockIndex int) []byte {
	out := make([]byte, len(iv))
	copy(out, iv)

	n := len(out)
	if n > 4 {
		n = 4
	}

	idx := uint32(blockIndex)

	for i := 0; i < n; i++ {
		out[i] ^= byte(idx >> (8 * i))
	}

	return out
}
