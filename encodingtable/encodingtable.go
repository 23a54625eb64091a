// Package encodingtable decodes and encodes the encoding-table manifest:
// the self-contained file mapping content keys (CKey) to one or more
// encoding keys (EKey) and, separately, encoding keys to the ESpec string
// describing how their BLTE blob is laid out.
//
// The file is "two-halved": a CKey->EKey half and an EKey->ESpec half,
// each independently paged at a fixed page size with its own sparse
// index. Re-encoding a parsed table is byte-identical because each page's
// original bytes are preserved verbatim (Page.Original) rather than
// rebuilt from the decoded entries.
package encodingtable

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/wowemulation-dev/cascette-go/internal/cerr"
	"github.com/wowemulation-dev/cascette-go/internal/md5key"
)

const (
	magic          = "EN"
	supportedVers  = 1
	headerSize     = 22
	ckeyEntryMinSz = 1 + 5 + 16 // key-count + file-size + CKey, zero EKeys
	ekeyEntrySize  = 16 + 4 + 5 // EKey + espec-index + file-size
)

// Header mirrors the fixed fields at the start of an encoding table.
type Header struct {
	Version        uint8
	CKeySize       uint8
	EKeySize       uint8
	CKeyPageSizeKB uint16
	EKeyPageSizeKB uint16
	CKeyPageCount  uint32
	EKeyPageCount  uint32
	ESpecBlockSize uint32
}

func (h Header) ckeyPageSize() int { return int(h.CKeyPageSizeKB) * 1024 }
func (h Header) ekeyPageSize() int { return int(h.EKeyPageSizeKB) * 1024 }

// IndexEntry is one sparse-index row: the first key on a page, and that
// page's MD5 checksum.
type IndexEntry struct {
	FirstKey [16]byte
	Checksum [16]byte
}

// CKeyEntry is one CKey-half record: a content key and its alternative
// encoding keys (policy callers use first-wins when multiple exist).
type CKeyEntry struct {
	FileSize uint64
	CKey     md5key.Key
	EKeys    []md5key.Key
}

// EKeyEntry is one EKey-half record: an encoding key, its ESpec-pool
// index, and the decoded file size.
type EKeyEntry struct {
	EKey       md5key.Key
	ESpecIndex uint32
	FileSize   uint64
}

// Page holds a page's decoded entries alongside its original on-wire
// bytes, so a later Build can re-emit it unchanged.
type Page[T any] struct {
	Entries  []T
	Original []byte
}

// Table is a parsed encoding table.
type Table struct {
	Header       Header
	ESpecStrings []string

	CKeyIndex []IndexEntry
	CKeyPages []Page[CKeyEntry]

	EKeyIndex []IndexEntry
	EKeyPages []Page[EKeyEntry]

	// TrailingESpec is the optional self-describing ESpec string found
	// after the EKey pages.
	TrailingESpec string
}

// Parse decodes a fully-decompressed encoding-table blob (the caller has
// already run it through blte.Decompress).
func Parse(data []byte) (*Table, error) {
	if len(data) < headerSize || string(data[0:2]) != magic {
		return nil, cerr.NewFormat(cerr.ErrBadMagic, 0, "encodingtable: missing EN magic")
	}

	h := Header{
		Version:        data[2],
		CKeySize:       data[3],
		EKeySize:       data[4],
		CKeyPageSizeKB: binary.BigEndian.Uint16(data[5:7]),
		EKeyPageSizeKB: binary.BigEndian.Uint16(data[7:9]),
		CKeyPageCount:  binary.BigEndian.Uint32(data[9:13]),
		EKeyPageCount:  binary.BigEndian.Uint32(data[13:17]),
		ESpecBlockSize: binary.BigEndian.Uint32(data[18:22]),
	}

	if h.Version != supportedVers {
		return nil, cerr.NewFormat(cerr.ErrUnknownVersion, 2, "encodingtable: version %d", h.Version)
	}

	if h.CKeySize != 16 || h.EKeySize != 16 {
		return nil, cerr.NewFormat(cerr.ErrInvalidField, 3, "encodingtable: unsupported key sizes %d/%d", h.CKeySize, h.EKeySize)
	}

	pos := headerSize

	especData, err := sliceAt(data, pos, int(h.ESpecBlockSize))
	if err != nil {
		return nil, fmt.Errorf("encodingtable: espec block: %w", err)
	}

	pos += int(h.ESpecBlockSize)

	especStrings := splitNulPool(especData)

	ckeyIndex, n, err := parseIndex(data, pos, int(h.CKeyPageCount))
	if err != nil {
		return nil, fmt.Errorf("encodingtable: ckey index: %w", err)
	}

	pos += n

	ckeyPages, n, err := parseCKeyPages(data, pos, h, ckeyIndex)
	if err != nil {
		return nil, err
	}

	pos += n

	ekeyIndex, n, err := parseIndex(data, pos, int(h.EKeyPageCount))
	if err != nil {
		return nil, fmt.Errorf("encodingtable: ekey index: %w", err)
	}

	pos += n

	ekeyPages, n, err := parseEKeyPages(data, pos, h, ekeyIndex)
	if err != nil {
		return nil, err
	}

	pos += n

	trailing := ""
	if pos < len(data) {
		trailing = string(data[pos:])
	}

	return &Table{
		Header:        h,
		ESpecStrings:  especStrings,
		CKeyIndex:     ckeyIndex,
		CKeyPages:     ckeyPages,
		EKeyIndex:     ekeyIndex,
		EKeyPages:     ekeyPages,
		TrailingESpec: trailing,
	}, nil
}

func sliceAt(data []byte, offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > len(data) {
		return nil, cerr.NewFormat(cerr.ErrTruncated, int64(offset), "need %d bytes, have %d", length, len(data)-offset)
	}

	return data[offset : offset+length], nil
}

func splitNulPool(data []byte) []string {
	var out []string

	start := 0

	for i, b := range data {
		if b == 0 {
			if i > start {
				out = append(out, string(data[start:i]))
			}

			start = i + 1
		}
	}

	if start < len(data) {
		out = append(out, string(data[start:]))
	}

	return out
}

func parseIndex(data []byte, offset, count int) ([]IndexEntry, int, error) {
	const entrySize = 32

	buf, err := sliceAt(data, offset, entrySize*count)
	if err != nil {
		return nil, 0, err
	}

	entries := make([]IndexEntry, count)

	for i := 0; i < count; i++ {
		e := buf[i*entrySize : (i+1)*entrySize]

		var entry IndexEntry
		copy(entry.FirstKey[:], e[0:16])
		copy(entry.Checksum[:], e[16:32])
		entries[i] = entry
	}

	return entries, entrySize * count, nil
}

func parseCKeyPages(data []byte, offset int, h Header, index []IndexEntry) ([]Page[CKeyEntry], int, error) {
	pageSize := h.ckeyPageSize()
	pages := make([]Page[CKeyEntry], len(index))

	pos := offset

	for i, idx := range index {
		page, err := sliceAt(data, pos, pageSize)
		if err != nil {
			return nil, 0, fmt.Errorf("encodingtable: ckey page %d: %w", i, err)
		}

		pos += pageSize

		if got := md5.Sum(page); got != idx.Checksum {
			return nil, 0, &cerr.IntegrityError{
				Context:  fmt.Sprintf("encodingtable ckey page %d", i),
				Expected: fmt.Sprintf("%x", idx.Checksum),
				Actual:   fmt.Sprintf("%x", got),
			}
		}

		entries, err := decodeCKeyPage(page)
		if err != nil {
			return nil, 0, fmt.Errorf("encodingtable: ckey page %d: %w", i, err)
		}

		pages[i] = Page[CKeyEntry]{Entries: entries, Original: page}
	}

	return pages, pageSize * len(index), nil
}

func decodeCKeyPage(page []byte) ([]CKeyEntry, error) {
	var entries []CKeyEntry

	pos := 0
	for pos < len(page) {
		if len(page)-pos < ckeyEntryMinSz {
			break
		}

		keyCount := int(page[pos])
		if keyCount == 0 {
			break
		}

		entrySize := 1 + 5 + 16 + 16*keyCount
		if pos+entrySize > len(page) {
			return nil, cerr.NewFormat(cerr.ErrTruncated, int64(pos), "ckey entry overruns page")
		}

		fileSize := read40BE(page[pos+1 : pos+6])

		var ckey md5key.Key
		copy(ckey[:], page[pos+6:pos+22])

		ekeys := make([]md5key.Key, keyCount)
		ep := pos + 22

		for k := 0; k < keyCount; k++ {
			copy(ekeys[k][:], page[ep+16*k:ep+16*(k+1)])
		}

		entries = append(entries, CKeyEntry{FileSize: fileSize, CKey: ckey, EKeys: ekeys})
		pos += entrySize
	}

	return entries, nil
}

func parseEKeyPages(data []byte, offset int, h Header, index []IndexEntry) ([]Page[EKeyEntry], int, error) {
	pageSize := h.ekeyPageSize()
	pages := make([]Page[EKeyEntry], len(index))

	pos := offset

	for i, idx := range index {
		page, err := sliceAt(data, pos, pageSize)
		if err != nil {
			return nil, 0, fmt.Errorf("encodingtable: ekey page %d: %w", i, err)
		}

		pos += pageSize

		if got := md5.Sum(page); got != idx.Checksum {
			return nil, 0, &cerr.IntegrityError{
				Context:  fmt.Sprintf("encodingtable ekey page %d", i),
				Expected: fmt.Sprintf("%x", idx.Checksum),
				Actual:   fmt.Sprintf("%x", got),
			}
		}

		entries, err := decodeEKeyPage(page)
		if err != nil {
			return nil, 0, fmt.Errorf("encodingtable: ekey page %d: %w", i, err)
		}

		pages[i] = Page[EKeyEntry]{Entries: entries, Original: page}
	}

	return pages, pageSize * len(index), nil
}

func decodeEKeyPage(page []byte) ([]EKeyEntry, error) {
	var entries []EKeyEntry

	pos := 0
	for pos+ekeyEntrySize <= len(page) {
		var ekey md5key.Key
		copy(ekey[:], page[pos:pos+16])

		if ekey.IsZero() {
			break
		}

		especIndex := binary.BigEndian.Uint32(page[pos+16 : pos+20])
		fileSize := read40BE(page[pos+20 : pos+25])

		entries = append(entries, EKeyEntry{EKey: ekey, ESpecIndex: especIndex, FileSize: fileSize})
		pos += ekeyEntrySize
	}

	return entries, nil
}

func read40BE(b []byte) uint64 {
	return uint64(b[0])<<32 | uint64(b[1])<<24 | uint64(b[2])<<16 | uint64(b[3])<<8 | uint64(b[4])
}

// FindEncoding returns the first EKey recorded for ckey, first-wins
// policy, by binary-searching the CKey index then the matched page.
func (t *Table) FindEncoding(ckey md5key.Key) (md5key.Key, bool) {
	keys := t.FindAllEncodings(ckey)
	if len(keys) == 0 {
		return md5key.Key{}, false
	}

	return keys[0], true
}

// FindAllEncodings returns every EKey recorded as an alternative encoding
// of ckey.
func (t *Table) FindAllEncodings(ckey md5key.Key) []md5key.Key {
	pageIdx := searchPageIndex(t.CKeyIndex, ckey[:])
	if pageIdx < 0 {
		return nil
	}

	entries := t.CKeyPages[pageIdx].Entries
	i := sort.Search(len(entries), func(i int) bool {
		return bytes.Compare(entries[i].CKey[:], ckey[:]) >= 0
	})

	if i < len(entries) && entries[i].CKey == ckey {
		return entries[i].EKeys
	}

	return nil
}

// FindESpec returns the ESpec string for ekey.
func (t *Table) FindESpec(ekey md5key.Key) (string, bool) {
	pageIdx := searchPageIndex(t.EKeyIndex, ekey[:])
	if pageIdx < 0 {
		return "", false
	}

	entries := t.EKeyPages[pageIdx].Entries
	i := sort.Search(len(entries), func(i int) bool {
		return bytes.Compare(entries[i].EKey[:], ekey[:]) >= 0
	})

	if i < len(entries) && entries[i].EKey == ekey {
		idx := entries[i].ESpecIndex
		if int(idx) < len(t.ESpecStrings) {
			return t.ESpecStrings[idx], true
		}
	}

	return "", false
}

// searchPageIndex finds the page whose first_key <= key < next.first_key.
func searchPageIndex(index []IndexEntry, key []byte) int {
	i := sort.Search(len(index), func(i int) bool {
		return bytes.Compare(index[i].FirstKey[:], key) > 0
	})

	if i == 0 {
		return -1
	}

	return i - 1
}

// Build re-serializes the table. CKey and EKey pages are emitted using
// their preserved Original bytes, so re-encoding a parsed table is
// byte-identical to its source.
func (t *Table) Build() ([]byte, error) {
	var buf bytes.Buffer

	writeHeader(&buf, t.Header)
	buf.WriteString(joinNulPool(t.ESpecStrings))

	if err := writePages(&buf, t.CKeyIndex, t.CKeyPages); err != nil {
		return nil, err
	}

	if err := writePages(&buf, t.EKeyIndex, t.EKeyPages); err != nil {
		return nil, err
	}

	buf.WriteString(t.TrailingESpec)

	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, h Header) {
	var b [headerSize]byte

	copy(b[0:2], magic)
	b[2] = h.Version
	b[3] = h.CKeySize
	b[4] = h.EKeySize
	binary.BigEndian.PutUint16(b[5:7], h.CKeyPageSizeKB)
	binary.BigEndian.PutUint16(b[7:9], h.EKeyPageSizeKB)
	binary.BigEndian.PutUint32(b[9:13], h.CKeyPageCount)
	binary.BigEndian.PutUint32(b[13:17], h.EKeyPageCount)
	binary.BigEndian.PutUint32(b[18:22], h.ESpecBlockSize)

	buf.Write(b[:])
}

func joinNulPool(strs []string) string {
	var buf bytes.Buffer

	for _, s := range strs {
		buf.WriteString(s)
		buf.WriteByte(0)
	}

	return buf.String()
}

func writePages[T any](buf *bytes.Buffer, index []IndexEntry, pages []Page[T]) error {
	if len(index) != len(pages) {
		return fmt.Errorf("encodingtable: index/page count mismatch: %d vs %d", len(index), len(pages))
	}

	for _, idx := range index {
		buf.Write(idx.FirstKey[:])
		buf.Write(idx.Checksum[:])
	}

	for _, p := range pages {
		buf.Write(p.Original)
	}

	return nil
}
