package tvfs

import (
	"github.com/wowemulation-dev/cascette-go/endian"
	"github.com/wowemulation-dev/cascette-go/internal/cerr"
)

// ContainerEntry is one container-file-table record: where a span's bytes
// live and its sizes, plus whatever optional fields the header's flags
// enable.
type ContainerEntry struct {
	EKey              []byte
	DecodedSize       uint64
	CompressedSize    uint64
	HasCompressedSize bool
	CKey              []byte // present only when the header's include-ckey flag is set
	ESpecIndex        uint32
	HasESpecIndex     bool
}

// ContainerTable is indexed by span index (the unit the VFS table's
// span-offset/span-count addresses).
type ContainerTable struct {
	Entries []ContainerEntry
}

// Entry returns the container entry at span index i.
func (t *ContainerTable) Entry(i uint32) (ContainerEntry, bool) {
	if int(i) >= len(t.Entries) {
		return ContainerEntry{}, false
	}

	return t.Entries[i], true
}

// entryFixedSize is the portion of a container entry present on every
// record: EKey + decoded-size uint40 + has-compressed-size flag byte.
func entryFixedSize(h Header) int {
	return int(h.EKeySize) + 5 + 1
}

func parseContainerTable(data []byte, offset, size uint32, h Header) (*ContainerTable, error) {
	if size == 0 {
		return &ContainerTable{}, nil
	}

	region, err := slice(data, offset, size, "container file table")
	if err != nil {
		return nil, err
	}

	be := endian.BigEndian

	var entries []ContainerEntry

	pos := 0
	for pos < len(region) {
		if pos+entryFixedSize(h) > len(region) {
			return nil, cerr.NewFormat(cerr.ErrTruncated, int64(offset)+int64(pos), "tvfs: container table: entry %d truncated", len(entries))
		}

		ekey := append([]byte(nil), region[pos:pos+int(h.EKeySize)]...)
		pos += int(h.EKeySize)

		decodedSize := endian.ReadUint40(region[pos : pos+5])
		pos += 5

		hasCompressed := region[pos] != 0
		pos++

		entry := ContainerEntry{EKey: ekey, DecodedSize: decodedSize}

		if hasCompressed {
			if pos+5 > len(region) {
				return nil, cerr.NewFormat(cerr.ErrTruncated, int64(offset)+int64(pos), "tvfs: container table: entry %d missing compressed size", len(entries))
			}

			entry.CompressedSize = endian.ReadUint40(region[pos : pos+5])
			entry.HasCompressedSize = true
			pos += 5
		}

		if h.HasContentKey() {
			if pos+int(h.PKeySize) > len(region) {
				return nil, cerr.NewFormat(cerr.ErrTruncated, int64(offset)+int64(pos), "tvfs: container table: entry %d missing ckey", len(entries))
			}

			entry.CKey = append([]byte(nil), region[pos:pos+int(h.PKeySize)]...)
			pos += int(h.PKeySize)
		}

		if h.HasEncodingSpec() {
			if pos+4 > len(region) {
				return nil, cerr.NewFormat(cerr.ErrTruncated, int64(offset)+int64(pos), "tvfs: container table: entry %d missing espec index", len(entries))
			}

			entry.ESpecIndex = be.Uint32(region[pos : pos+4])
			entry.HasESpecIndex = true
			pos += 4
		}

		entries = append(entries, entry)
	}

	return &ContainerTable{Entries: entries}, nil
}

func appendContainerTable(out []byte, t *ContainerTable, h Header) []byte {
	be := endian.BigEndian

	for _, e := range t.Entries {
		out = append(out, e.EKey[:h.EKeySize]...)
		out = endian.AppendUint40(out, e.DecodedSize)

		if e.HasCompressedSize {
			out = append(out, 1)
			out = endian.AppendUint40(out, e.CompressedSize)
		} else {
			out = append(out, 0)
		}

		if h.HasContentKey() {
			out = append(out, e.CKey[:h.PKeySize]...)
		}

		if h.HasEncodingSpec() {
			out = be.AppendUint32(out, e.ESpecIndex)
		}
	}

	return out
}
