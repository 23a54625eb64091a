package blte

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wowemulation-dev/cascette-go/compress"
	"github.com/wowemulation-dev/cascette-go/crypto"
	"github.com/wowemulation-dev/cascette-go/format"
)

func TestSingleChunkZlibRoundTrip(t *testing.T) {
	orig := []byte("single chunk zlib payload, single chunk zlib payload")

	built, err := Build([]ChunkSpec{{Data: orig, Mode: format.ModeZlib}})
	require.NoError(t, err)

	f, err := Parse(built)
	require.NoError(t, err)
	require.Len(t, f.Chunks(), 1)

	decoded, err := f.Decompress(nil)
	require.NoError(t, err)
	assert.Equal(t, orig, decoded)
}

func TestMultiChunkMixedModesRoundTrip(t *testing.T) {
	chunkNone := []byte("verbatim bytes")
	chunkZlib := []byte("zlib compressible data zlib compressible data zlib compressible data")
	chunkLZ4 := []byte("lz4 compressible data lz4 compressible data lz4 compressible data")

	built, err := Build([]ChunkSpec{
		{Data: chunkNone, Mode: format.ModeNone},
		{Data: chunkZlib, Mode: format.ModeZlib},
		{Data: chunkLZ4, Mode: format.ModeLZ4},
	})
	require.NoError(t, err)

	f, err := Parse(built)
	require.NoError(t, err)
	require.Len(t, f.Chunks(), 3)

	decoded, err := f.Decompress(nil)
	require.NoError(t, err)

	want := append(append(append([]byte{}, chunkNone...), chunkZlib...), chunkLZ4...)
	assert.Equal(t, want, decoded)
}

func TestParseBadMagic(t *testing.T) {
	_, err := Parse([]byte("NOPE0000"))
	assert.Error(t, err)
}

func TestParseTruncated(t *testing.T) {
	_, err := Parse([]byte("BLTE"))
	assert.Error(t, err)
}

func TestChecksumMismatchFails(t *testing.T) {
	// Single-chunk files carry no stored checksum, so use a multi-chunk
	// build, whose chunk-table entries do carry one, and corrupt a payload
	// byte after parsing.
	built, err := Build([]ChunkSpec{
		{Data: []byte("hello"), Mode: format.ModeNone},
		{Data: []byte("world"), Mode: format.ModeNone},
	})
	require.NoError(t, err)

	f, err := Parse(built)
	require.NoError(t, err)

	raw, err := f.ChunkBytes(0)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF

	_, err = f.Decompress(nil)
	assert.Error(t, err)
}

type staticKeyService struct {
	keyName uint64
	key     []byte
}

func (s staticKeyService) Lookup(keyName uint64) ([]byte, error) {
	if keyName != s.keyName {
		return nil, assertErr{}
	}

	return s.key, nil
}

type assertErr struct{}

func (assertErr) Error() string { return "key not found" }

func TestEncryptedChunkRoundTrip(t *testing.T) {
	const keyName = 0xDFEBCAC54990E8C3

	key := bytes.Repeat([]byte{0x11}, 16)
	iv := []byte{0x9C, 0x3D, 0xE9, 0x42}

	plaintext := []byte("Z-mode payload that would normally be zlib compressed first")

	zlibCodec, err := compress.CreateCodec(format.ModeZlib)
	require.NoError(t, err)

	compressed, err := zlibCodec.Compress(plaintext)
	require.NoError(t, err)

	inner := append([]byte{byte(format.ModeZlib)}, compressed...)

	ciphertext, err := crypto.DecryptSalsa20(key, iv, 0, inner)
	require.NoError(t, err)

	rest := []byte{8}
	rest = appendUint64LE(rest, keyName)
	rest = append(rest, byte(len(iv)))
	rest = append(rest, iv...)
	rest = append(rest, byte(format.EncryptionSalsa20))
	rest = append(rest, ciphertext...)

	chunk := append([]byte{byte(format.ModeEncrypted)}, rest...)

	keys := staticKeyService{keyName: keyName, key: key}

	decoded, err := DecompressChunk(chunk, 0, keys)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decoded)

	// Decoding at the wrong block index must not reproduce the plaintext.
	wrong, err := DecompressChunk(chunk, 1, keys)
	if err == nil {
		assert.NotEqual(t, plaintext, wrong)
	}
}

func TestDecompressChunkStandalone(t *testing.T) {
	// DecompressChunk decodes chunk bytes handed over in isolation (no
	// surrounding File/chunk table needed), matching the package's
	// documented decompress_chunk(chunk-bytes, block-index, key-service)
	// entry point.
	raw := append([]byte{byte(format.ModeNone)}, []byte("standalone chunk bytes")...)

	decoded, err := DecompressChunk(raw, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("standalone chunk bytes"), decoded)
}

func appendUint64LE(b []byte, v uint64) []byte {
	for i := 0; i < 8; i++ {
		b = append(b, byte(v>>(8*i)))
	}

	return b
}
