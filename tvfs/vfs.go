package tvfs

import (
	"github.com/wowemulation-dev/cascette-go/endian"
	"github.com/wowemulation-dev/cascette-go/internal/cerr"
)

// vfsEntrySize is the fixed on-disk size of one VFS table entry:
// span-offset u32 BE + span-count u16 BE.
const vfsEntrySize = 4 + 2

// VFSEntry maps a file-id to a contiguous run of container-table spans.
type VFSEntry struct {
	SpanOffset uint32
	SpanCount  uint16
}

// VFSTable is indexed by file-id; VFSTable.Entries[id] is the span run for
// that file.
type VFSTable struct {
	Entries []VFSEntry
}

// Entry returns the VFS entry for fileID, or false if out of range.
func (t *VFSTable) Entry(fileID uint32) (VFSEntry, bool) {
	if int(fileID) >= len(t.Entries) {
		return VFSEntry{}, false
	}

	return t.Entries[fileID], true
}

func parseVFSTable(data []byte, offset, size uint32) (*VFSTable, error) {
	if size == 0 {
		return &VFSTable{}, nil
	}

	region, err := slice(data, offset, size, "vfs table")
	if err != nil {
		return nil, err
	}

	if len(region)%vfsEntrySize != 0 {
		return nil, cerr.NewFormat(cerr.ErrInvalidField, int64(offset), "tvfs: vfs table size %d not a multiple of entry size %d", len(region), vfsEntrySize)
	}

	be := endian.BigEndian
	n := len(region) / vfsEntrySize
	entries := make([]VFSEntry, n)

	for i := 0; i < n; i++ {
		pos := i * vfsEntrySize
		entries[i] = VFSEntry{
			SpanOffset: be.Uint32(region[pos : pos+4]),
			SpanCount:  be.Uint16(region[pos+4 : pos+6]),
		}
	}

	return &VFSTable{Entries: entries}, nil
}

func appendVFSTable(out []byte, t *VFSTable) []byte {
	be := endian.BigEndian

	for _, e := range t.Entries {
		out = be.AppendUint32(out, e.SpanOffset)
		out = be.AppendUint16(out, e.SpanCount)
	}

	return out
}
