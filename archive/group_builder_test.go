package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wowemulation-dev/cascette-go/internal/md5key"
)

func TestGroupBuilderDedupesAcrossArchives(t *testing.T) {
	shared := md5key.Sum([]byte("shared-key"))

	b := NewGroupBuilder()
	b.AddArchive(1, []Entry{{EKey: shared[:], Location: Location{Offset: 10, Size: 5}}})
	b.AddArchive(2, []Entry{{EKey: shared[:], Location: Location{Offset: 20, Size: 5}}})

	assert.Equal(t, 1, b.Len())
}

func TestGroupBuilderBuildRoundTrip(t *testing.T) {
	b := NewGroupBuilder()

	for i := 0; i < 5; i++ {
		key := md5key.Sum([]byte{byte(i)})
		b.AddEntry(key, Location{ArchiveID: uint16(i), Offset: uint64(i * 1000), Size: uint32(i + 1)})
	}

	raw := b.Build()

	footer, entries, err := ParseIndexFile(raw)
	require.NoError(t, err)
	assert.True(t, footer.IsArchiveGroup())
	require.Len(t, entries, 5)

	// Entries come back sorted by encoding key, not insertion order.
	for i := 1; i < len(entries); i++ {
		assert.LessOrEqual(t, string(entries[i-1].EKey), string(entries[i].EKey))
	}
}

func TestGroupBuilderAddEntryWithHashAssignment(t *testing.T) {
	key := md5key.Sum([]byte("hash-assigned"))

	b := NewGroupBuilder()
	b.AddEntryWithHashAssignment(key, 42, 7)

	raw := b.Build()

	footer, entries, err := ParseIndexFile(raw)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	id, offset := SplitGroupOffset(raw[16 : 16+6])
	assert.Equal(t, AssignArchiveIndex(key[:]), id)
	assert.Equal(t, uint32(42), offset)
	assert.Equal(t, uint8(16), footer.EKeyLength)
}
