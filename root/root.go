// Package root decodes and encodes the WoW-specific root mapping: the
// manifest translating a FileDataID or path name hash into the content
// key (CKey) that identifies that file's logical content.
//
// Versions V1 through V4 share the same per-block structure (delta-encoded
// FileDataIDs, CKey plus optional name hash, content/locale flag filtering)
// and differ only in whether a header precedes the blocks and how wide the
// content-flags field is.
package root

import (
	"encoding/binary"
	"fmt"

	"github.com/wowemulation-dev/cascette-go/format"
	"github.com/wowemulation-dev/cascette-go/internal/cerr"
	"github.com/wowemulation-dev/cascette-go/internal/jenkins96"
	"github.com/wowemulation-dev/cascette-go/internal/md5key"
)

const (
	magicMFST = "MFST"
	magicTSFM = "TSFM"

	// headerSize is the fixed V2+ header: magic, version, total file
	// count, named file count, each a big-endian u32 (magic counts as
	// one 4-byte field).
	headerSize = 16
)

// Header is the optional V2+ preamble.
type Header struct {
	Version        format.RootVersion
	TotalFileCount uint32
	NamedFileCount uint32
}

// Entry is one decoded record: a FileDataID, its CKey, optional name
// hash, and the content/locale flags of the block it came from.
type Entry struct {
	FileDataID   uint32
	CKey         md5key.Key
	NameHash     uint64
	HasNameHash  bool
	ContentFlags format.ContentFlags
	LocaleFlags  format.LocaleFlags
}

// Block is one parsed block: shared content/locale flags plus its
// strictly-increasing-FileDataID entries.
type Block struct {
	ContentFlags format.ContentFlags
	LocaleFlags  format.LocaleFlags
	Entries      []Entry
}

// File is a parsed root mapping.
type File struct {
	Version format.RootVersion
	Header  *Header // nil for V1
	Blocks  []Block

	byID   map[uint32][]*Entry
	byHash map[uint64][]*Entry
}

// Parse decodes a decompressed root-mapping blob.
func Parse(data []byte) (*File, error) {
	if len(data) >= 4 && (string(data[0:4]) == magicMFST || string(data[0:4]) == magicTSFM) {
		return parseVersioned(data)
	}

	return parseBlocks(data, format.RootV1, nil)
}

func parseVersioned(data []byte) (*File, error) {
	if len(data) < headerSize {
		return nil, cerr.NewFormat(cerr.ErrTruncated, 0, "root: header truncated")
	}

	version := format.RootVersion(binary.BigEndian.Uint32(data[4:8]))
	if !version.Valid() {
		return nil, cerr.NewFormat(cerr.ErrUnknownVersion, 4, "root: version %d", version)
	}

	h := &Header{
		Version:        version,
		TotalFileCount: binary.BigEndian.Uint32(data[8:12]),
		NamedFileCount: binary.BigEndian.Uint32(data[12:16]),
	}

	return parseBlocks(data[headerSize:], version, h)
}

func parseBlocks(data []byte, version format.RootVersion, header *Header) (*File, error) {
	f := &File{
		Version: version,
		Header:  header,
		byID:    make(map[uint32][]*Entry),
		byHash:  make(map[uint64][]*Entry),
	}

	pos := 0

	for pos < len(data) {
		block, n, err := parseBlock(data[pos:], version)
		if err != nil {
			return nil, fmt.Errorf("root: block at offset %d: %w", pos, err)
		}

		f.Blocks = append(f.Blocks, block)
		pos += n
	}

	f.buildIndex()

	return f, nil
}

func contentFlagsWidth(version format.RootVersion) int {
	if version == format.RootV4 {
		return 5
	}

	return 4
}

func parseBlock(data []byte, version format.RootVersion) (Block, int, error) {
	cfWidth := contentFlagsWidth(version)

	if len(data) < 4+cfWidth+4 {
		return Block{}, 0, cerr.NewFormat(cerr.ErrTruncated, 0, "root: block header truncated")
	}

	numRecords := binary.LittleEndian.Uint32(data[0:4])
	pos := 4

	var contentFlags uint64
	if cfWidth == 5 {
		contentFlags = uint64(data[pos]) | uint64(data[pos+1])<<8 | uint64(data[pos+2])<<16 |
			uint64(data[pos+3])<<24 | uint64(data[pos+4])<<32
	} else {
		contentFlags = uint64(binary.LittleEndian.Uint32(data[pos : pos+4]))
	}

	pos += cfWidth

	localeFlags := binary.LittleEndian.Uint32(data[pos : pos+4])
	pos += 4

	block := Block{
		ContentFlags: format.ContentFlags(contentFlags),
		LocaleFlags:  format.LocaleFlags(localeFlags),
	}

	deltaBytes := int(numRecords) * 4
	if len(data) < pos+deltaBytes {
		return Block{}, 0, cerr.NewFormat(cerr.ErrTruncated, int64(pos), "root: fileDataId deltas truncated")
	}

	ids := make([]int64, 0, numRecords)

	runningID := int64(-1)

	for i := 0; i < int(numRecords); i++ {
		delta := int32(binary.LittleEndian.Uint32(data[pos : pos+4]))
		pos += 4

		runningID += int64(delta) + 1
		ids = append(ids, runningID)
	}

	hasNameHash := block.ContentFlags&format.ContentFlagNoNameHash == 0

	entries := make([]Entry, 0, len(ids))

	for _, id := range ids {
		if len(data) < pos+16 {
			return Block{}, 0, cerr.NewFormat(cerr.ErrTruncated, int64(pos), "root: record truncated")
		}

		var ckey md5key.Key
		copy(ckey[:], data[pos:pos+16])
		pos += 16

		entry := Entry{
			FileDataID:   uint32(id),
			CKey:         ckey,
			ContentFlags: block.ContentFlags,
			LocaleFlags:  block.LocaleFlags,
		}

		if hasNameHash {
			if len(data) < pos+8 {
				return Block{}, 0, cerr.NewFormat(cerr.ErrTruncated, int64(pos), "root: name hash truncated")
			}

			entry.NameHash = binary.LittleEndian.Uint64(data[pos : pos+8])
			entry.HasNameHash = true
			pos += 8
		}

		if id < 0 || id > 0xFFFFFFFF {
			// Skip records whose id overflows rather than aborting the
			// whole block; the record's bytes are still consumed.
			continue
		}

		entries = append(entries, entry)
	}

	block.Entries = entries

	return block, pos, nil
}

func (f *File) buildIndex() {
	for bi := range f.Blocks {
		b := &f.Blocks[bi]
		for ei := range b.Entries {
			e := &b.Entries[ei]
			f.byID[e.FileDataID] = append(f.byID[e.FileDataID], e)

			if e.HasNameHash {
				f.byHash[e.NameHash] = append(f.byHash[e.NameHash], e)
			}
		}
	}
}

// HashPath computes the root name-hash for a file path: uppercase ASCII,
// backslash-to-slash normalized, Jenkins96, half-swapped.
func HashPath(path string) uint64 {
	return jenkins96.HashPath(path)
}

// ResolveByID returns the CKey for fileDataID whose entry satisfies the
// required locale and content flags, or false if none match.
func (f *File) ResolveByID(fileDataID uint32, requiredLocale format.LocaleFlags, requiredContent format.ContentFlags) (md5key.Key, bool) {
	return resolve(f.byID[fileDataID], requiredLocale, requiredContent)
}

// ResolveByPath hashes path and resolves it the same way as ResolveByID.
func (f *File) ResolveByPath(path string, requiredLocale format.LocaleFlags, requiredContent format.ContentFlags) (md5key.Key, bool) {
	return resolve(f.byHash[HashPath(path)], requiredLocale, requiredContent)
}

func resolve(candidates []*Entry, requiredLocale format.LocaleFlags, requiredContent format.ContentFlags) (md5key.Key, bool) {
	for _, e := range candidates {
		if e.LocaleFlags&requiredLocale == 0 {
			continue
		}

		if e.ContentFlags&requiredContent != requiredContent {
			continue
		}

		return e.CKey, true
	}

	return md5key.Key{}, false
}
