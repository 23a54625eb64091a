package manifest

import (
	"fmt"
	"sort"

	"github.com/wowemulation-dev/cascette-go/endian"
	"github.com/wowemulation-dev/cascette-go/internal/cerr"
	"github.com/wowemulation-dev/cascette-go/internal/md5key"
)

const downloadMagic = "DL"

// DownloadHeader is the version-dependent preamble of a download
// manifest. FlagSize is 0 before version 2; BasePriority and Unknown are
// 0 before version 3.
type DownloadHeader struct {
	Version      uint8
	EKeySize     uint8
	HasChecksum  bool
	EntryCount   uint32
	TagCount     uint16
	FlagSize     uint8
	BasePriority int8
	Unknown      uint32 // 24-bit, version 3+
}

func (h DownloadHeader) size() int {
	n := 2 + 1 + 1 + 1 + 4 + 2
	if h.Version >= 2 {
		n++
	}

	if h.Version >= 3 {
		n += 4
	}

	return n
}

// DownloadEntry is one downloadable blob: its encoding key, compressed
// size, raw on-disk priority byte, and optional checksum/flags.
type DownloadEntry struct {
	EKey           md5key.Key
	CompressedSize uint64
	RawPriority    int8
	Checksum       uint32
	HasChecksum    bool
	Flags          []byte
}

// Priority returns the entry's effective download priority: the raw
// stored byte offset by the header's base priority. Lower is higher
// priority; 0 is highest.
func (e DownloadEntry) Priority(h DownloadHeader) int {
	return int(e.RawPriority) - int(h.BasePriority)
}

// DownloadFile is a parsed download manifest.
type DownloadFile struct {
	Header  DownloadHeader
	Tags    []Tag
	Entries []DownloadEntry
}

// ParseDownload decodes a decompressed download-manifest blob.
func ParseDownload(data []byte) (*DownloadFile, error) {
	if len(data) < 11 || string(data[0:2]) != downloadMagic {
		return nil, cerr.NewFormat(cerr.ErrBadMagic, 0, "manifest: missing DL magic")
	}

	h := DownloadHeader{
		Version:     data[2],
		EKeySize:    data[3],
		HasChecksum: data[4] != 0,
		EntryCount:  endian.BigEndian.Uint32(data[5:9]),
		TagCount:    endian.BigEndian.Uint16(data[9:11]),
	}

	pos := 11

	if h.Version >= 2 {
		if pos >= len(data) {
			return nil, cerr.NewFormat(cerr.ErrTruncated, int64(pos), "manifest: download: missing flag-size")
		}

		h.FlagSize = data[pos]
		pos++
	}

	if h.Version >= 3 {
		if pos+4 > len(data) {
			return nil, cerr.NewFormat(cerr.ErrTruncated, int64(pos), "manifest: download: missing base-priority/unknown")
		}

		h.BasePriority = int8(data[pos])
		pos++
		h.Unknown = uint32(data[pos])<<16 | uint32(data[pos+1])<<8 | uint32(data[pos+2])
		pos += 3
	}

	tags, pos, err := parseTagTable(data, pos, int(h.TagCount), int(h.EntryCount))
	if err != nil {
		return nil, fmt.Errorf("manifest: download: %w", err)
	}

	entries := make([]DownloadEntry, h.EntryCount)

	for i := range entries {
		entrySize := int(h.EKeySize) + 5 + 1
		if h.HasChecksum {
			entrySize += 4
		}

		if h.Version >= 2 {
			entrySize += int(h.FlagSize)
		}

		if pos+entrySize > len(data) {
			return nil, cerr.NewFormat(cerr.ErrTruncated, int64(pos), "manifest: download: entry %d truncated", i)
		}

		var ekey md5key.Key
		copy(ekey[:], data[pos:pos+int(h.EKeySize)])
		pos += int(h.EKeySize)

		compressedSize := endian.ReadUint40(data[pos : pos+5])
		pos += 5

		rawPriority := int8(data[pos])
		pos++

		entry := DownloadEntry{EKey: ekey, CompressedSize: compressedSize, RawPriority: rawPriority}

		if h.HasChecksum {
			entry.Checksum = endian.BigEndian.Uint32(data[pos : pos+4])
			entry.HasChecksum = true
			pos += 4
		}

		if h.Version >= 2 && h.FlagSize > 0 {
			entry.Flags = append([]byte(nil), data[pos:pos+int(h.FlagSize)]...)
			pos += int(h.FlagSize)
		}

		entries[i] = entry
	}

	return &DownloadFile{Header: h, Tags: tags, Entries: entries}, nil
}

// Build re-serializes the manifest.
func (f *DownloadFile) Build() []byte {
	h := f.Header

	out := make([]byte, 0, h.size())
	out = append(out, downloadMagic...)
	out = append(out, h.Version, h.EKeySize, boolByte(h.HasChecksum))
	out = endian.BigEndian.AppendUint32(out, h.EntryCount)
	out = endian.BigEndian.AppendUint16(out, h.TagCount)

	if h.Version >= 2 {
		out = append(out, h.FlagSize)
	}

	if h.Version >= 3 {
		out = append(out, byte(h.BasePriority))
		out = append(out, byte(h.Unknown>>16), byte(h.Unknown>>8), byte(h.Unknown))
	}

	out = appendTagTable(out, f.Tags)

	for _, e := range f.Entries {
		out = append(out, e.EKey[:h.EKeySize]...)
		out = endian.AppendUint40(out, e.CompressedSize)
		out = append(out, byte(e.RawPriority))

		if h.HasChecksum {
			out = endian.BigEndian.AppendUint32(out, e.Checksum)
		}

		if h.Version >= 2 && h.FlagSize > 0 {
			out = append(out, e.Flags...)
		}
	}

	return out
}

func boolByte(b bool) byte {
	if b {
		return 1
	}

	return 0
}

// DownloadPlan returns the manifest's entries sorted by ascending
// effective priority (lower is higher priority), stable on ties so
// entries of equal priority keep their manifest order.
func (f *DownloadFile) DownloadPlan() []DownloadEntry {
	plan := append([]DownloadEntry(nil), f.Entries...)

	sort.SliceStable(plan, func(i, j int) bool {
		return plan[i].Priority(f.Header) < plan[j].Priority(f.Header)
	})

	return plan
}
