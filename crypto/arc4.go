package crypto

import (
	"crypto/rc4"
	"fmt"
)

// DecryptARC4 decrypts data using ARC4 (RC4) with the key service's key and
// block-indexed IV (see DeriveIV), which is used here as the RC4 key
// schedule's effective key material appended after key. ARC4 has no
// dedicated library in the example pack's dependency stack, and the
// standard library's crypto/rc4 already implements the exact algorithm
// BLTE mode E's 0x41 cipher selector names, so reaching for a third-party
// package here would add a dependency without adding behavior.
func DecryptARC4(key, iv []byte, blockIndex int, data []byte) ([]byte, error) {
	derivedIV := DeriveIV(iv, blockIndex)

	c, err := rc4.NewCipher(append(append([]byte{}, key...), derivedIV...))
	if err != nil {
		return nil, fmt.Errorf("crypto: arc4 key schedule: %w", err)
	}

	out := make([]byte, len(data))
	c.XORKeyStream(out, data)

	return out, nil
}
