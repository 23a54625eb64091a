// Package archive implements the content-addressed archive engine: local
// `data.NNN` blob files plus the bucket-sharded `.idx`/`.index` indices
// mapping encoding keys to (archive, offset, size). It composes an index
// loader, an archive-file reader/writer, and a bounded LRU content cache
// into the read/write/verify operations the resolver pipeline drives.
package archive

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wowemulation-dev/cascette-go/internal/cerr"
	"github.com/wowemulation-dev/cascette-go/internal/md5key"
)

// Location pinpoints a blob within an archive file.
type Location struct {
	ArchiveID uint16
	Offset    uint64
	Size      uint32
}

// Footer is the fixed 28-byte trailer every `.idx`/`.index` file carries,
// describing how its TOC and data pages are laid out.
type Footer struct {
	TOCHash         [8]byte
	Version         uint8
	Reserved        [2]byte
	PageSizeKB      uint8
	OffsetBytes     uint8 // 4 for regular indices, 6 for archive-groups
	SizeBytes       uint8
	EKeyLength      uint8
	FooterHashBytes uint8
	ElementCount    uint32
	FooterHash      []byte
}

const footerFixedSize = 8 + 1 + 2 + 1 + 1 + 1 + 1 + 1 + 4

// footerHashSize is the length of the footer hash that closes the trailer.
const footerHashSize = 8

// IsArchiveGroup reports whether f describes an archive-group mega-index
// (6-byte composite offsets) rather than a regular per-bucket index.
func (f Footer) IsArchiveGroup() bool { return f.OffsetBytes == 6 }

func parseFooter(data []byte) (Footer, int, error) {
	if len(data) < footerFixedSize+footerHashSize {
		return Footer{}, 0, cerr.NewFormat(cerr.ErrTruncated, 0, "archive: index footer truncated")
	}

	start := len(data) - footerFixedSize - footerHashSize
	pos := start

	var f Footer

	copy(f.TOCHash[:], data[pos:pos+8])
	pos += 8
	f.Version = data[pos]
	pos++
	copy(f.Reserved[:], data[pos:pos+2])
	pos += 2
	f.PageSizeKB = data[pos]
	pos++
	f.OffsetBytes = data[pos]
	pos++
	f.SizeBytes = data[pos]
	pos++
	f.EKeyLength = data[pos]
	pos++
	f.FooterHashBytes = data[pos]
	pos++
	f.ElementCount = binary.LittleEndian.Uint32(data[pos : pos+4])
	pos += 4

	if int(f.FooterHashBytes) != footerHashSize {
		return Footer{}, 0, cerr.NewFormat(cerr.ErrInvalidField, int64(start), "archive: footer hash size %d, want %d", f.FooterHashBytes, footerHashSize)
	}

	f.FooterHash = append([]byte(nil), data[pos:pos+footerHashSize]...)

	return f, start, nil
}

// Entry is one decoded index record: an encoding key (possibly truncated
// to the footer's declared EKeyLength) and its archive location.
type Entry struct {
	EKey     []byte
	Location Location
}

// ParseIndexFile decodes a single `.idx` or `.index` file's bytes. Regular
// indices use 4-byte offsets; archive-group indices (`.index`) use the
// 6-byte composite offset split into a 2-byte archive id and a 4-byte
// offset, both big-endian.
func ParseIndexFile(data []byte) (Footer, []Entry, error) {
	footer, dataEnd, err := parseFooter(data)
	if err != nil {
		return Footer{}, nil, err
	}

	entrySize := int(footer.EKeyLength) + int(footer.OffsetBytes) + int(footer.SizeBytes)
	pageSize := int(footer.PageSizeKB) * 1024

	entries := make([]Entry, 0, footer.ElementCount)

	for pageStart := 0; pageStart < dataEnd; pageStart += pageSize {
		pageEnd := pageStart + pageSize
		if pageEnd > dataEnd {
			pageEnd = dataEnd
		}

		page := data[pageStart:pageEnd]

		for pos := 0; pos+entrySize <= len(page); pos += entrySize {
			rec := page[pos : pos+entrySize]

			key := rec[:footer.EKeyLength]
			if allZero(key) {
				break
			}

			offBytes := rec[footer.EKeyLength : int(footer.EKeyLength)+int(footer.OffsetBytes)]

			var loc Location

			if footer.IsArchiveGroup() {
				loc.ArchiveID = binary.BigEndian.Uint16(offBytes[0:2])
				loc.Offset = uint64(binary.BigEndian.Uint32(offBytes[2:6]))
			} else {
				loc.Offset = uint64(binary.BigEndian.Uint32(offBytes))
			}

			sizeBytes := rec[int(footer.EKeyLength)+int(footer.OffsetBytes):]
			loc.Size = binary.BigEndian.Uint32(pad4(sizeBytes))

			entries = append(entries, Entry{EKey: append([]byte(nil), key...), Location: loc})
		}
	}

	return footer, entries, nil
}

func pad4(b []byte) []byte {
	if len(b) == 4 {
		return b
	}

	out := make([]byte, 4)
	copy(out[4-len(b):], b)

	return out
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}

	return true
}

// SplitGroupOffset decodes a 6-byte archive-group composite offset.
func SplitGroupOffset(b []byte) (archiveID uint16, offset uint32) {
	return binary.BigEndian.Uint16(b[0:2]), binary.BigEndian.Uint32(b[2:6])
}

// AppendGroupOffset encodes an archive-group composite offset.
func AppendGroupOffset(out []byte, archiveID uint16, offset uint32) []byte {
	out = binary.BigEndian.AppendUint16(out, archiveID)
	out = binary.BigEndian.AppendUint32(out, offset)

	return out
}

// AssignArchiveIndex returns the archive a new entry should be written
// into, by Blizzard's deterministic hash-based rule: the big-endian
// uint16 of the first two bytes of MD5(encodingKey).
func AssignArchiveIndex(encodingKey []byte) uint16 {
	sum := md5.Sum(encodingKey)
	return binary.BigEndian.Uint16(sum[0:2])
}

// bucketIndex holds one bucket's entries keyed by the raw (possibly
// truncated) on-disk encoding-key bytes. keyLen records the declared
// EKeyLength of whichever index file first populated this bucket, so
// Lookup knows how many bytes of a full query key to compare against.
type bucketIndex struct {
	keyLen  int
	entries map[string]Location
}

// IndexSet is every bucket's merged index, built by loading an `indices/`
// directory. Per spec, encoding keys may be stored truncated (typically 9
// bytes); Lookup accepts full 16-byte keys and truncates internally to
// match.
type IndexSet struct {
	buckets [16]bucketIndex
}

// NewIndexSet returns an empty set.
func NewIndexSet() *IndexSet {
	var s IndexSet

	for i := range s.buckets {
		s.buckets[i] = bucketIndex{entries: make(map[string]Location)}
	}

	return &s
}

// Lookup finds the archive location for a full encoding key, or reports
// !ok if none is indexed.
func (s *IndexSet) Lookup(ekey md5key.Key) (Location, bool) {
	b := &s.buckets[ekey.Bucket()]
	if b.keyLen == 0 {
		return Location{}, false
	}

	loc, ok := b.entries[string(ekey.Truncated(b.keyLen))]

	return loc, ok
}

// Put records (or, per first-writer-wins, ignores a duplicate of) an
// entry in its key's bucket. rawKey is the on-disk key as read from the
// index file, which may be shorter than a full 16-byte key; its first
// 9 bytes still determine the bucket, matching md5key.Key.Bucket's use of
// the key's leading bytes.
func (s *IndexSet) Put(rawKey []byte, loc Location) {
	b := &s.buckets[bucketOf(rawKey)]
	if b.keyLen == 0 {
		b.keyLen = len(rawKey)
	}

	k := string(rawKey)
	if _, exists := b.entries[k]; exists {
		return
	}

	b.entries[k] = loc
}

// bucketOf computes the same bucket a full md5key.Key would hash to,
// from a possibly-truncated on-disk key. md5key.Key.Bucket XORs the
// first 9 bytes of the key together and nibble-folds the result; a
// truncated key (always >= 9 bytes on disk) carries enough of the key
// to reproduce that computation exactly.
func bucketOf(key []byte) byte {
	var x byte
	for i := 0; i < 9 && i < len(key); i++ {
		x ^= key[i]
	}

	return (x & 0x0F) ^ (x >> 4)
}

// Len returns the total number of indexed entries across all buckets.
func (s *IndexSet) Len() int {
	n := 0
	for _, b := range s.buckets {
		n += len(b.entries)
	}

	return n
}

// All returns every indexed (key-as-stored, location) pair, for
// verification scans. Order is unspecified.
func (s *IndexSet) All() map[string]Location {
	out := make(map[string]Location, s.Len())
	for _, b := range s.buckets {
		for k, v := range b.entries {
			out[k] = v
		}
	}

	return out
}

// LoadIndicesDir scans dir for `.idx` and `.index` files and merges their
// entries into a fresh IndexSet. `.idx` buckets are loaded first, then
// `.index` archive-groups, and within each source the first-inserted
// encoding key wins on duplicates — matching Blizzard client behaviour
// (spec: archive index merge order is deterministic).
func LoadIndicesDir(dir string) (*IndexSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("archive: reading indices dir: %w", err)
	}

	var idxFiles, groupFiles []string

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		name := e.Name()

		switch {
		case strings.HasSuffix(name, ".idx"):
			idxFiles = append(idxFiles, name)
		case strings.HasSuffix(name, ".index"):
			groupFiles = append(groupFiles, name)
		}
	}

	sort.Strings(idxFiles)
	sort.Strings(groupFiles)

	set := NewIndexSet()

	for _, name := range idxFiles {
		if err := loadOneIndexFile(filepath.Join(dir, name), set); err != nil {
			return nil, fmt.Errorf("archive: %s: %w", name, err)
		}
	}

	for _, name := range groupFiles {
		if err := loadOneIndexFile(filepath.Join(dir, name), set); err != nil {
			return nil, fmt.Errorf("archive: %s: %w", name, err)
		}
	}

	return set, nil
}

func loadOneIndexFile(path string, set *IndexSet) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	_, entries, err := ParseIndexFile(data)
	if err != nil {
		return err
	}

	for _, e := range entries {
		set.Put(e.EKey, e.Location)
	}

	return nil
}
