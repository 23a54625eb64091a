package crypto

import (
	"fmt"

	"golang.org/x/crypto/salsa20/salsa"
)

// salsaNonceSize is Salsa20's 8-byte nonce. BLTE's stored IV is shorter
// (typically 4 bytes), so DecryptSalsa20 zero-extends it to 8 bytes,
// matching how the original NGDP client derives the nonce from the
// block-indexed IV. The nonce fills the first half of the 16-byte
// nonce-and-counter block salsa.XORKeyStream takes; the counter starts
// at zero.
const salsaNonceSize = 8

// DecryptSalsa20 decrypts data using Salsa20/20 with the key service's
// 16-byte key and block-indexed IV (see DeriveIV). The 16-byte key is
// doubled into Salsa20's 32-byte key slot (key || key), matching the
// well-known NGDP client convention for TACT key material. Salsa20 is a
// symmetric stream cipher, so encryption uses the same operation.
func DecryptSalsa20(key, iv []byte, blockIndex int, data []byte) ([]byte, error) {
	if len(key) != 16 {
		return nil, fmt.Errorf("crypto: salsa20 key must be 16 bytes, got %d", len(key))
	}

	derivedIV := DeriveIV(iv, blockIndex)

	var counter [16]byte
	copy(counter[:salsaNonceSize], derivedIV)

	var k [32]byte
	copy(k[:16], key)
	copy(k[16:], key)

	out := make([]byte, len(data))
	salsa.XORKeyStream(out, data, &counter, &k)

	return out, nil
}
