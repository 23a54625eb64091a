package patcharchive

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key16(b byte) []byte {
	k := make([]byte, 16)
	for i := range k {
		k[i] = b
	}

	return k
}

func key9(b byte) []byte {
	k := make([]byte, 9)
	for i := range k {
		k[i] = b
	}

	return k
}

func sampleFile() *File {
	h := Header{
		Version:       1,
		FileKeySize:   16,
		OldKeySize:    9,
		PatchKeySize:  9,
		BlockSizeBits: 11, // 2048-byte blocks
		Flags:         0,
		BlockCount:    2,
	}

	blocks := []Block{
		{Entries: []Entry{
			{
				TargetCKey:  key16(0x01),
				DecodedSize: 100,
				Patches: []PatchEntry{
					{SourceEKey: key9(0x02), SourceDecodedSize: 90, PatchEKey: key9(0x03), PatchSize: 40, PatchIndex: 0},
				},
			},
		}},
		{Entries: []Entry{
			{
				TargetCKey:  key16(0x10),
				DecodedSize: 200,
				Patches: []PatchEntry{
					{SourceEKey: key9(0x11), SourceDecodedSize: 150, PatchEKey: key9(0x12), PatchSize: 70, PatchIndex: 0},
					{SourceEKey: key9(0x13), SourceDecodedSize: 160, PatchEKey: key9(0x14), PatchSize: 80, PatchIndex: 1},
				},
			},
		}},
	}

	return &File{Header: h, Blocks: blocks}
}

func TestPatchArchiveRoundTrip(t *testing.T) {
	f := sampleFile()
	raw := f.Build()

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, f.Header, parsed.Header)
	require.Len(t, parsed.Blocks, 2)
	assert.Equal(t, key16(0x01), parsed.Blocks[0].Entries[0].TargetCKey)
	assert.Equal(t, uint64(100), parsed.Blocks[0].Entries[0].DecodedSize)
	require.Len(t, parsed.Blocks[1].Entries[0].Patches, 2)
	assert.Equal(t, uint32(80), parsed.Blocks[1].Entries[0].Patches[1].PatchSize)
}

func TestPatchArchiveBlockOrderValidation(t *testing.T) {
	f := sampleFile()
	// Reverse block order so the second block's target key sorts before the first's.
	f.Blocks[0], f.Blocks[1] = f.Blocks[1], f.Blocks[0]
	raw := f.Build()

	_, err := Parse(raw)
	assert.Error(t, err)
}

func TestPatchArchiveStreamReader(t *testing.T) {
	f := sampleFile()
	raw := f.Build()

	sr, err := NewStreamReader(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, f.Header, sr.Header())

	var entries []Entry

	require.NoError(t, sr.ForEachEntry(func(e Entry) error {
		entries = append(entries, e)
		return nil
	}))

	require.Len(t, entries, 2)
	assert.False(t, sr.HasMoreBlocks())
}

func TestPatchArchiveExtendedHeader(t *testing.T) {
	f := sampleFile()
	f.Header.Flags |= FlagExtendedHeader
	f.EncodingInfo = &EncodingInfo{
		CKey:        [16]byte{0xAA},
		EKey:        [16]byte{0xBB},
		DecodedSize: 1234,
		EncodedSize: 567,
		ESpec:       "b:{1024*=z}",
	}

	raw := f.Build()

	parsed, err := Parse(raw)
	require.NoError(t, err)
	require.NotNil(t, parsed.EncodingInfo)
	assert.Equal(t, "b:{1024*=z}", parsed.EncodingInfo.ESpec)

	n := parsed.HeaderRegionSize()
	assert.Equal(t, headerSize+16+16+5+4+len("b:{1024*=z}")+1, n)
}

func TestPatchArchiveAllEntries(t *testing.T) {
	f := sampleFile()
	all := f.AllEntries()
	assert.Len(t, all, 2)
}
