package manifest

import (
	"bytes"
	"fmt"

	"github.com/wowemulation-dev/cascette-go/endian"
	"github.com/wowemulation-dev/cascette-go/internal/cerr"
)

const (
	sizeMagic      = "DS"
	sizeHeaderSize = 2 + 1 + 1 + 4 + 2 + 5
)

// SizeHeader is the fixed preamble of a size manifest.
type SizeHeader struct {
	Version    uint8
	EKeySize   uint8
	EntryCount uint32
	TagCount   uint16
	TotalSize  uint64 // uint40
}

// SizeEntry is one on-disk size record, keyed by a (possibly truncated)
// encoding key.
type SizeEntry struct {
	EKey           []byte
	CompressedSize uint32
}

// SizeFile is a parsed size manifest.
type SizeFile struct {
	Header  SizeHeader
	Tags    []Tag
	Entries []SizeEntry
}

// ParseSize decodes a decompressed size-manifest blob.
func ParseSize(data []byte) (*SizeFile, error) {
	if len(data) < sizeHeaderSize || string(data[0:2]) != sizeMagic {
		return nil, cerr.NewFormat(cerr.ErrBadMagic, 0, "manifest: missing DS magic")
	}

	h := SizeHeader{
		Version:    data[2],
		EKeySize:   data[3],
		EntryCount: endian.BigEndian.Uint32(data[4:8]),
		TagCount:   endian.BigEndian.Uint16(data[8:10]),
		TotalSize:  endian.ReadUint40(data[10:15]),
	}

	pos := sizeHeaderSize

	tags, pos, err := parseTagTable(data, pos, int(h.TagCount), int(h.EntryCount))
	if err != nil {
		return nil, fmt.Errorf("manifest: size: %w", err)
	}

	entries := make([]SizeEntry, h.EntryCount)
	entrySize := int(h.EKeySize) + 4

	for i := range entries {
		if pos+entrySize > len(data) {
			return nil, cerr.NewFormat(cerr.ErrTruncated, int64(pos), "manifest: size: entry %d truncated", i)
		}

		ekey := append([]byte(nil), data[pos:pos+int(h.EKeySize)]...)
		pos += int(h.EKeySize)

		compressedSize := endian.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		entries[i] = SizeEntry{EKey: ekey, CompressedSize: compressedSize}
	}

	return &SizeFile{Header: h, Tags: tags, Entries: entries}, nil
}

// Build re-serializes the manifest.
func (f *SizeFile) Build() []byte {
	h := f.Header

	out := make([]byte, 0, sizeHeaderSize)
	out = append(out, sizeMagic...)
	out = append(out, h.Version, h.EKeySize)
	out = endian.BigEndian.AppendUint32(out, h.EntryCount)
	out = endian.BigEndian.AppendUint16(out, h.TagCount)
	out = endian.AppendUint40(out, h.TotalSize)

	out = appendTagTable(out, f.Tags)

	for _, e := range f.Entries {
		out = append(out, e.EKey...)
		out = endian.BigEndian.AppendUint32(out, e.CompressedSize)
	}

	return out
}

// Find looks up ekey, truncating it to the manifest's declared key size
// before comparing, per spec.md's "lookup truncates the query key"
// contract.
func (f *SizeFile) Find(ekey []byte) (SizeEntry, bool) {
	n := int(f.Header.EKeySize)
	if len(ekey) > n {
		ekey = ekey[:n]
	}

	for _, e := range f.Entries {
		if bytes.Equal(e.EKey, ekey) {
			return e, true
		}
	}

	return SizeEntry{}, false
}

// SumSize returns the sum of every entry's compressed size, for
// cross-checking against Header.TotalSize.
func (f *SizeFile) SumSize() uint64 {
	var sum uint64

	for _, e := range f.Entries {
		sum += uint64(e.CompressedSize)
	}

	return sum
}
