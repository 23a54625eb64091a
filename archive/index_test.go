package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wowemulation-dev/cascette-go/internal/md5key"
)

// buildRegularIndex serializes a minimal single-page, 4-byte-offset index
// file (the `.idx` shape) holding the given entries.
func buildRegularIndex(t *testing.T, entries []Entry, ekeyLen int) []byte {
	t.Helper()

	const pageSizeKB = 4

	page := make([]byte, 0, pageSizeKB*1024)

	for _, e := range entries {
		page = append(page, e.EKey...)
		page = appendBE32(page, uint32(e.Location.Offset))
		page = appendBE32(page, e.Location.Size)
	}

	page = append(page, make([]byte, pageSizeKB*1024-len(page))...)

	out := append([]byte(nil), page...)

	footer := make([]byte, 0, 20)
	footer = append(footer, make([]byte, 8)...)
	footer = append(footer, 1)
	footer = append(footer, 0, 0)
	footer = append(footer, pageSizeKB)
	footer = append(footer, 4) // offset_bytes
	footer = append(footer, 4) // size_bytes
	footer = append(footer, byte(ekeyLen))
	footer = append(footer, 8) // footer_hash_bytes
	footer = append(footer, byte(len(entries)), 0, 0, 0)
	footer = append(footer, make([]byte, 8)...)

	return append(out, footer...)
}

func sampleIndexEntries(n int, archiveID uint16) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		key := md5key.Sum([]byte{byte(i), byte(archiveID)})
		entries[i] = Entry{
			EKey:     append([]byte(nil), key[:9]...),
			Location: Location{ArchiveID: archiveID, Offset: uint64(i * 100), Size: 50},
		}
	}

	return entries
}

func TestParseIndexFileRoundTrip(t *testing.T) {
	entries := sampleIndexEntries(3, 1)
	raw := buildRegularIndex(t, entries, 9)

	footer, parsed, err := ParseIndexFile(raw)
	require.NoError(t, err)
	assert.Equal(t, uint8(9), footer.EKeyLength)
	assert.False(t, footer.IsArchiveGroup())
	require.Len(t, parsed, 3)
	assert.Equal(t, entries[0].EKey, parsed[0].EKey)
	assert.Equal(t, entries[1].Location.Offset, parsed[1].Location.Offset)
}

func TestIndexSetLookupAcceptsFullKeyForTruncatedEntries(t *testing.T) {
	full := md5key.Sum([]byte("some content"))

	set := NewIndexSet()
	set.Put(full.Truncated(9), Location{ArchiveID: 2, Offset: 77, Size: 123})

	loc, ok := set.Lookup(full)
	require.True(t, ok)
	assert.Equal(t, uint16(2), loc.ArchiveID)
	assert.Equal(t, uint64(77), loc.Offset)
}

func TestIndexSetPutFirstWriterWins(t *testing.T) {
	full := md5key.Sum([]byte("dup"))

	set := NewIndexSet()
	set.Put(full.Truncated(9), Location{ArchiveID: 1, Offset: 1, Size: 1})
	set.Put(full.Truncated(9), Location{ArchiveID: 9, Offset: 9, Size: 9})

	loc, ok := set.Lookup(full)
	require.True(t, ok)
	assert.Equal(t, uint16(1), loc.ArchiveID)
}

func TestLoadIndicesDirMergesIdxBeforeIndex(t *testing.T) {
	dir := t.TempDir()

	full := md5key.Sum([]byte("merge-order-key"))

	idxEntries := []Entry{{EKey: full.Truncated(9), Location: Location{ArchiveID: 1, Offset: 10, Size: 5}}}
	groupEntries := []Entry{{EKey: full.Truncated(9), Location: Location{ArchiveID: 99, Offset: 999, Size: 5}}}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "00.idx"), buildRegularIndex(t, idxEntries, 9), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "archive-group.index"), buildRegularIndex(t, groupEntries, 9), 0o644))

	set, err := LoadIndicesDir(dir)
	require.NoError(t, err)

	loc, ok := set.Lookup(full)
	require.True(t, ok)
	assert.Equal(t, uint64(10), loc.Offset, "idx-sourced entry must win over a later .index duplicate")
}

func TestSplitAppendGroupOffsetRoundTrip(t *testing.T) {
	b := AppendGroupOffset(nil, 0xABCD, 0x01020304)
	require.Len(t, b, 6)

	id, off := SplitGroupOffset(b)
	assert.Equal(t, uint16(0xABCD), id)
	assert.Equal(t, uint32(0x01020304), off)
}

func TestAssignArchiveIndexDeterministic(t *testing.T) {
	key := []byte("some encoding key bytes")
	assert.Equal(t, AssignArchiveIndex(key), AssignArchiveIndex(key))
}

func TestBucketOfMatchesMd5KeyBucket(t *testing.T) {
	full := md5key.Sum([]byte("bucket-consistency"))
	assert.Equal(t, full.Bucket(), bucketOf(full.Truncated(9)))
	assert.Equal(t, full.Bucket(), bucketOf(full[:]))
}
