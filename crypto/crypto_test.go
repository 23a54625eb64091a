package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveIV(t *testing.T) {
	iv := []byte{0x9C, 0x3D, 0xE9, 0x42}

	out0 := DeriveIV(iv, 0)
	assert.Equal(t, iv, out0)

	out1 := DeriveIV(iv, 1)
	assert.NotEqual(t, iv, out1)
	assert.Equal(t, iv, DeriveIV(iv, 0), "DeriveIV must not mutate its input")
}

func TestDeriveIVShortInput(t *testing.T) {
	iv := []byte{0x01, 0x02}
	out := DeriveIV(iv, 0x0102)
	require.Len(t, out, 2)
}

func TestSalsa20RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0xAB}, 16)
	iv := []byte{0x9C, 0x3D, 0xE9, 0x42}
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	ciphertext, err := DecryptSalsa20(key, iv, 0, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := DecryptSalsa20(key, iv, 0, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestSalsa20DifferentBlockIndexProducesDifferentCiphertext(t *testing.T) {
	key := bytes.Repeat([]byte{0xAB}, 16)
	iv := []byte{0x9C, 0x3D, 0xE9, 0x42}
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	ct0, err := DecryptSalsa20(key, iv, 0, plaintext)
	require.NoError(t, err)

	ct1, err := DecryptSalsa20(key, iv, 1, plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, ct0, ct1)
}

func TestSalsa20BadKeySize(t *testing.T) {
	_, err := DecryptSalsa20([]byte{1, 2, 3}, []byte{0, 0, 0, 0}, 0, []byte("x"))
	assert.Error(t, err)
}

func TestARC4RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0xCD}, 16)
	iv := []byte{0x01, 0x02, 0x03, 0x04}
	plaintext := []byte("ARC4 is not Salsa20")

	ciphertext, err := DecryptARC4(key, iv, 3, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := DecryptARC4(key, iv, 3, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}
