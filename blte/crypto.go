package blte

import (
	"encoding/binary"
	"fmt"

	"github.com/wowemulation-dev/cascette-go/crypto"
	"github.com/wowemulation-dev/cascette-go/format"
	"github.com/wowemulation-dev/cascette-go/internal/cerr"
)

const (
	keyNameSize = 8
	minIVSize   = 1
	maxIVSize   = 8
)

// decodeEncryptedChunk parses the mode 'E' layout (key-name, IV, cipher
// selector, ciphertext), decrypts with the key the KeyService resolves,
// and recurses into decodeChunk when the plaintext's first byte is a
// valid mode other than 'E'. Any other plaintext is returned as-is.
func decodeEncryptedChunk(rest []byte, blockIndex int, keys KeyService, depth int) ([]byte, error) {
	if keys == nil {
		return nil, &cerr.CipherError{Kind: cerr.ErrKeyNotFound, Detail: "no key service configured"}
	}

	if len(rest) < 1 {
		return nil, cerr.NewFormat(cerr.ErrTruncated, 0, "blte: encrypted chunk missing key-name-size")
	}

	keyNameSizeField := int(rest[0])
	if keyNameSizeField != keyNameSize {
		return nil, cerr.NewFormat(cerr.ErrInvalidField, 0, "blte: key-name-size %d, want %d", keyNameSizeField, keyNameSize)
	}

	if len(rest) < 1+keyNameSize+1 {
		return nil, cerr.NewFormat(cerr.ErrTruncated, 0, "blte: encrypted chunk truncated before IV")
	}

	keyName := binary.LittleEndian.Uint64(rest[1 : 1+keyNameSize])
	pos := 1 + keyNameSize

	ivSize := int(rest[pos])
	pos++

	if ivSize < minIVSize || ivSize > maxIVSize {
		return nil, cerr.NewFormat(cerr.ErrInvalidField, int64(pos), "blte: iv-size %d out of range [%d,%d]", ivSize, minIVSize, maxIVSize)
	}

	if len(rest) < pos+ivSize+1 {
		return nil, cerr.NewFormat(cerr.ErrTruncated, int64(pos), "blte: encrypted chunk truncated before enc-type")
	}

	iv := rest[pos : pos+ivSize]
	pos += ivSize

	encType := format.EncryptionType(rest[pos])
	pos++

	ciphertext := rest[pos:]

	key, err := keys.Lookup(keyName)
	if err != nil {
		return nil, &cerr.CipherError{Kind: cerr.ErrKeyNotFound, Detail: fmt.Sprintf("key-name %016X: %v", keyName, err)}
	}

	var plaintext []byte

	switch encType {
	case format.EncryptionSalsa20:
		plaintext, err = crypto.DecryptSalsa20(key, iv, blockIndex, ciphertext)
	case format.EncryptionARC4:
		plaintext, err = crypto.DecryptARC4(key, iv, blockIndex, ciphertext)
	default:
		return nil, &cerr.CipherError{Kind: cerr.ErrUnsupportedCipher, Detail: fmt.Sprintf("0x%02X", byte(encType))}
	}

	if err != nil {
		return nil, &cerr.CipherError{Kind: cerr.ErrUnsupportedCipher, Detail: err.Error()}
	}

	if len(plaintext) == 0 {
		return plaintext, nil
	}

	if format.BLTEMode(plaintext[0]).Valid() && format.BLTEMode(plaintext[0]) != format.ModeEncrypted {
		return decodeChunk(plaintext, blockIndex, keys, depth+1)
	}

	return plaintext, nil
}
