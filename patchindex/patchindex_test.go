package patchindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wowemulation-dev/cascette-go/internal/md5key"
)

func sampleKey(b byte) md5key.Key {
	var k md5key.Key
	for i := range k {
		k[i] = b
	}

	return k
}

func sampleFile() *File {
	return &File{
		Header: Header{Version: 1},
		KeySize: 16,
		Config:  []byte{1, 2, 3, 4, 5, 6, 7},
		Entries: []Entry{
			{
				SourceEKey:   sampleKey(0x01),
				SourceSize:   1000,
				TargetEKey:   sampleKey(0x02),
				TargetSize:   1100,
				PatchEKey:    sampleKey(0x03),
				EncodedSize:  50,
				SuffixOffset: 1,
			},
			{
				SourceEKey:   sampleKey(0x04),
				SourceSize:   2000,
				TargetEKey:   sampleKey(0x05),
				TargetSize:   2200,
				PatchEKey:    sampleKey(0x03),
				EncodedSize:  60,
				SuffixOffset: 1,
			},
		},
	}
}

func TestPatchIndexRoundTrip(t *testing.T) {
	f := sampleFile()
	raw := f.Build()

	parsed, err := Parse(raw, WithCrossCheck(true))
	require.NoError(t, err)
	assert.Equal(t, uint8(16), parsed.KeySize)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7}, parsed.Config)
	require.Len(t, parsed.Entries, 2)
	assert.Equal(t, sampleKey(0x01), parsed.Entries[0].SourceEKey)
	assert.Equal(t, uint32(1100), parsed.Entries[0].TargetSize)
}

func TestPatchIndexHeaderSizeFormula(t *testing.T) {
	f := sampleFile()
	raw := f.Build()

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, 43, int(parsed.Header.HeaderSize))
	assert.Equal(t, len(raw), int(parsed.Header.DataSize))

	expectedB2 := 5 + len(f.Entries)*entrySize
	expectedB8 := 14 + len(f.Entries)*entrySize
	assert.Equal(t, expectedB2, int(parsed.Header.Blocks[1].Size))
	assert.Equal(t, expectedB8, int(parsed.Header.Blocks[2].Size))
}

func TestPatchIndexUniquePatchEKeys(t *testing.T) {
	f := sampleFile()
	uniq := f.UniquePatchEKeys()
	assert.Len(t, uniq, 1)
}

func TestPatchIndexFindBySourceAndPatch(t *testing.T) {
	f := sampleFile()

	found := f.FindBySourceEKey(sampleKey(0x04))
	require.Len(t, found, 1)
	assert.Equal(t, uint32(2000), found[0].SourceSize)

	byPatch := f.FindByPatchEKey(sampleKey(0x03))
	assert.Len(t, byPatch, 2)
}

func TestPatchIndexCrossCheckMismatch(t *testing.T) {
	f := sampleFile()
	raw := f.Build()

	// Corrupt one byte inside block 8's entries region so block2/block8 disagree.
	headerSize := 43
	block2Size := 5 + len(f.Entries)*entrySize
	corruptAt := headerSize + len(f.Config) + block2Size + block8PreambleSize
	raw[corruptAt] ^= 0xFF

	_, err := Parse(raw, WithCrossCheck(true))
	assert.Error(t, err)
}
