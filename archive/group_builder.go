package archive

import (
	"crypto/md5"
	"sort"

	"github.com/wowemulation-dev/cascette-go/internal/md5key"
)

const groupChunkSize = 0x1000

const groupEntrySize = md5key.Size + 6 + 4 // key + 6-byte composite offset + size

// GroupEntry is one deduplicated record in a built archive-group index:
// an encoding key and the archive+offset+size it resolves to.
type GroupEntry struct {
	EncodingKey md5key.Key
	Location    Location
}

// GroupBuilder merges entries from multiple archive indices into a single
// archive-group mega-index, deduplicating by encoding key on a
// first-writer-wins basis.
type GroupBuilder struct {
	order   []md5key.Key
	entries map[md5key.Key]GroupEntry
}

// NewGroupBuilder returns an empty builder.
func NewGroupBuilder() *GroupBuilder {
	return &GroupBuilder{entries: make(map[md5key.Key]GroupEntry)}
}

// AddArchive merges every entry of one archive's decoded index, tagging
// them with that archive's id.
func (b *GroupBuilder) AddArchive(archiveID uint16, entries []Entry) {
	for _, e := range entries {
		var key md5key.Key

		copy(key[:], e.EKey)

		loc := e.Location
		loc.ArchiveID = archiveID

		b.addEntry(key, loc)
	}
}

// AddEntry adds a single (key, location) pair, keeping the existing entry
// if key was already added.
func (b *GroupBuilder) AddEntry(key md5key.Key, loc Location) {
	b.addEntry(key, loc)
}

// AddEntryWithHashAssignment adds a single entry whose archive id is
// derived via AssignArchiveIndex rather than supplied explicitly.
func (b *GroupBuilder) AddEntryWithHashAssignment(key md5key.Key, offset uint64, size uint32) {
	loc := Location{ArchiveID: AssignArchiveIndex(key[:]), Offset: offset, Size: size}
	b.addEntry(key, loc)
}

func (b *GroupBuilder) addEntry(key md5key.Key, loc Location) {
	if _, exists := b.entries[key]; exists {
		return
	}

	b.order = append(b.order, key)
	b.entries[key] = GroupEntry{EncodingKey: key, Location: loc}
}

// Len returns the number of distinct entries added so far.
func (b *GroupBuilder) Len() int { return len(b.entries) }

// Build serializes the merged entries (sorted by encoding key, matching
// the client's own archive-group layout) as a complete `.index` file: one
// or more 4 KiB entry chunks, zero-padded, followed by the 28-byte footer.
func (b *GroupBuilder) Build() []byte {
	entries := make([]GroupEntry, 0, len(b.entries))
	for _, key := range b.order {
		entries = append(entries, b.entries[key])
	}

	sort.Slice(entries, func(i, j int) bool {
		return string(entries[i].EncodingKey[:]) < string(entries[j].EncodingKey[:])
	})

	perChunk := groupChunkSize / groupEntrySize

	var out []byte

	for start := 0; start < len(entries); start += perChunk {
		end := start + perChunk
		if end > len(entries) {
			end = len(entries)
		}

		chunk := make([]byte, 0, groupChunkSize)

		for _, e := range entries[start:end] {
			chunk = append(chunk, e.EncodingKey[:]...)
			chunk = AppendGroupOffset(chunk, e.Location.ArchiveID, uint32(e.Location.Offset))
			chunk = appendBE32(chunk, e.Location.Size)
		}

		chunk = append(chunk, make([]byte, groupChunkSize-len(chunk))...)
		out = append(out, chunk...)
	}

	out = appendGroupFooter(out, uint32(len(entries)))

	return out
}

func appendBE32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendGroupFooter(out []byte, elementCount uint32) []byte {
	footer := make([]byte, 0, footerFixedSize)
	footer = append(footer, make([]byte, 8)...) // toc_hash: unused for archive-groups
	footer = append(footer, 1)                  // version
	footer = append(footer, 0, 0)                // reserved
	footer = append(footer, 4)                   // page_size_kb: matches the 4KiB entry chunking above
	footer = append(footer, 6)                   // offset_bytes: 6-byte composite
	footer = append(footer, 4)                   // size_bytes
	footer = append(footer, md5key.Size)         // ekey_length
	footer = append(footer, 8)                   // footer_hash_bytes

	footer = append(footer,
		byte(elementCount), byte(elementCount>>8), byte(elementCount>>16), byte(elementCount>>24))

	sum := md5.Sum(footer)
	footer = append(footer, sum[:8]...)

	return append(out, footer...)
}
