package root

import (
	"encoding/binary"
	"sort"

	"github.com/wowemulation-dev/cascette-go/format"
)

// NewFile constructs a File with a single block containing entries, ready
// for Build. Useful for programmatically generating a root mapping rather
// than parsing one. When version < V2, no header is emitted.
func NewFile(version format.RootVersion, entries []Entry) *File {
	f := &File{
		Version: version,
		Blocks:  []Block{{Entries: entries}},
		byID:    make(map[uint32][]*Entry),
		byHash:  make(map[uint64][]*Entry),
	}

	if len(entries) > 0 {
		f.Blocks[0].ContentFlags = entries[0].ContentFlags
		f.Blocks[0].LocaleFlags = entries[0].LocaleFlags
	}

	if version >= format.RootV2 {
		f.Header = &Header{
			Version:        version,
			TotalFileCount: uint32(len(entries)),
			NamedFileCount: uint32(countNamed(entries)),
		}
	}

	f.buildIndex()

	return f
}

func countNamed(entries []Entry) int {
	n := 0

	for _, e := range entries {
		if e.HasNameHash {
			n++
		}
	}

	return n
}

// Build re-serializes a parsed File, preserving block partitioning so a
// round-tripped file is structurally identical: each block is re-sorted
// by FileDataID and delta-re-encoded, but blocks themselves are emitted
// in their original order with their original flag pairs.
func (f *File) Build() []byte {
	var out []byte

	if f.Header != nil {
		out = appendHeader(out, *f.Header)
	}

	for _, block := range f.Blocks {
		out = appendBlock(out, block, f.Version)
	}

	return out
}

func appendHeader(out []byte, h Header) []byte {
	magic := magicMFST

	out = append(out, magic...)
	out = appendUint32BE(out, uint32(h.Version))
	out = appendUint32BE(out, h.TotalFileCount)

	return appendUint32BE(out, h.NamedFileCount)
}

func appendBlock(out []byte, block Block, version format.RootVersion) []byte {
	entries := append([]Entry(nil), block.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].FileDataID < entries[j].FileDataID })

	out = appendUint32LE(out, uint32(len(entries)))

	cfWidth := contentFlagsWidth(version)
	if cfWidth == 5 {
		cf := uint64(block.ContentFlags)
		out = append(out, byte(cf), byte(cf>>8), byte(cf>>16), byte(cf>>24), byte(cf>>32))
	} else {
		out = appendUint32LE(out, uint32(block.ContentFlags))
	}

	out = appendUint32LE(out, uint32(block.LocaleFlags))

	runningID := int64(-1)

	for _, e := range entries {
		delta := int64(e.FileDataID) - runningID - 1
		out = appendUint32LE(out, uint32(int32(delta)))
		runningID = int64(e.FileDataID)
	}

	hasNameHash := block.ContentFlags&format.ContentFlagNoNameHash == 0

	for _, e := range entries {
		out = append(out, e.CKey[:]...)

		if hasNameHash {
			out = appendUint64LE(out, e.NameHash)
		}
	}

	return out
}

func appendUint32BE(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)

	return append(b, tmp[:]...)
}

func appendUint32LE(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)

	return append(b, tmp[:]...)
}

func appendUint64LE(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)

	return append(b, tmp[:]...)
}
