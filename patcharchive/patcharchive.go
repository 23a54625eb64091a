// Package patcharchive decodes patch archives: content-addressed bundles
// of binary patches that let a client upgrade an old content-keyed blob to
// a new one without downloading the full new blob. The format is
// big-endian outer framing around little-endian block/entry data.
package patcharchive

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/wowemulation-dev/cascette-go/endian"
	"github.com/wowemulation-dev/cascette-go/internal/cerr"
)

const magic = "PA"

// Header flag bits.
const (
	// FlagExtendedHeader marks the presence of an ExtendedHeader describing
	// the archive's own encoding-file entry.
	FlagExtendedHeader uint8 = 1 << 1
)

// Header is the fixed, big-endian outer preamble.
type Header struct {
	Version       uint8
	FileKeySize   uint8 // target CKey size
	OldKeySize    uint8 // source EKey size
	PatchKeySize  uint8
	BlockSizeBits uint8
	Flags         uint8
	BlockCount    uint16
}

// HasExtendedHeader reports whether an ExtendedHeader follows.
func (h Header) HasExtendedHeader() bool { return h.Flags&FlagExtendedHeader != 0 }

// BlockSize returns the fixed byte size of each block region.
func (h Header) BlockSize() int { return 1 << h.BlockSizeBits }

const headerSize = 2 + 1 + 1 + 1 + 1 + 1 + 1 + 2

func parseHeader(data []byte) (Header, error) {
	if len(data) < headerSize || string(data[0:2]) != magic {
		return Header{}, cerr.NewFormat(cerr.ErrBadMagic, 0, "patcharchive: missing PA magic")
	}

	be := endian.BigEndian

	return Header{
		Version:       data[2],
		FileKeySize:   data[3],
		OldKeySize:    data[4],
		PatchKeySize:  data[5],
		BlockSizeBits: data[6],
		Flags:         data[7],
		BlockCount:    be.Uint16(data[8:10]),
	}, nil
}

func appendHeader(out []byte, h Header) []byte {
	be := endian.BigEndian

	out = append(out, magic...)
	out = append(out, h.Version, h.FileKeySize, h.OldKeySize, h.PatchKeySize, h.BlockSizeBits, h.Flags)
	out = be.AppendUint16(out, h.BlockCount)

	return out
}

// EncodingInfo is the optional extended header: a description of the
// encoding-file entry this patch archive itself patches, used for
// content-addressing the archive by its own CKey.
type EncodingInfo struct {
	CKey        [16]byte
	EKey        [16]byte
	DecodedSize uint64 // uint40
	EncodedSize uint32
	ESpec       string
}

func parseEncodingInfo(data []byte, pos int) (EncodingInfo, int, error) {
	if pos+16+16+5+4 > len(data) {
		return EncodingInfo{}, 0, cerr.NewFormat(cerr.ErrTruncated, int64(pos), "patcharchive: truncated extended header")
	}

	var info EncodingInfo

	copy(info.CKey[:], data[pos:pos+16])
	pos += 16

	copy(info.EKey[:], data[pos:pos+16])
	pos += 16

	info.DecodedSize = endian.ReadUint40(data[pos : pos+5])
	pos += 5

	info.EncodedSize = endian.BigEndian.Uint32(data[pos : pos+4])
	pos += 4

	espec, next, err := readCString(data, pos)
	if err != nil {
		return EncodingInfo{}, 0, fmt.Errorf("patcharchive: extended header espec: %w", err)
	}

	info.ESpec = espec

	return info, next, nil
}

func appendEncodingInfo(out []byte, info EncodingInfo) []byte {
	out = append(out, info.CKey[:]...)
	out = append(out, info.EKey[:]...)
	out = endian.AppendUint40(out, info.DecodedSize)
	out = endian.BigEndian.AppendUint32(out, info.EncodedSize)
	out = append(out, info.ESpec...)
	out = append(out, 0)

	return out
}

// File is a fully parsed, in-memory patch archive.
type File struct {
	Header       Header
	EncodingInfo *EncodingInfo
	Blocks       []Block
}

// Parse decodes a complete patch-archive blob into memory. For archives
// too large to hold comfortably, use NewStreamReader instead.
func Parse(data []byte) (*File, error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	pos := headerSize

	var info *EncodingInfo

	if h.HasExtendedHeader() {
		parsed, next, err := parseEncodingInfo(data, pos)
		if err != nil {
			return nil, err
		}

		info = &parsed
		pos = next
	}

	blocks := make([]Block, 0, h.BlockCount)

	var prevTarget []byte

	for i := 0; i < int(h.BlockCount); i++ {
		blockSize := h.BlockSize()
		if pos+blockSize > len(data) {
			return nil, cerr.NewFormat(cerr.ErrTruncated, int64(pos), "patcharchive: block %d truncated", i)
		}

		block, err := parseBlock(data[pos:pos+blockSize], h)
		if err != nil {
			return nil, fmt.Errorf("patcharchive: block %d: %w", i, err)
		}

		if len(block.Entries) > 0 {
			first := block.Entries[0].TargetCKey
			if prevTarget != nil && compareBytes(first, prevTarget) <= 0 {
				return nil, cerr.NewFormat(cerr.ErrInvalidField, int64(pos), "patcharchive: block %d out of sort order", i)
			}

			prevTarget = first
		}

		blocks = append(blocks, block)
		pos += blockSize
	}

	return &File{Header: h, EncodingInfo: info, Blocks: blocks}, nil
}

// Build re-serializes f.
func (f *File) Build() []byte {
	out := appendHeader(nil, f.Header)

	if f.Header.HasExtendedHeader() && f.EncodingInfo != nil {
		out = appendEncodingInfo(out, *f.EncodingInfo)
	}

	for _, b := range f.Blocks {
		out = appendBlock(out, b, f.Header)
	}

	return out
}

// HeaderRegionSize returns the byte length of the header plus the optional
// extended header, used to content-address the archive by hashing just
// that region.
func (f *File) HeaderRegionSize() int {
	n := headerSize
	if f.Header.HasExtendedHeader() && f.EncodingInfo != nil {
		n += 16 + 16 + 5 + 4 + len(f.EncodingInfo.ESpec) + 1
	}

	return n
}

// VerifyHeaderHash reports whether MD5(raw[:HeaderRegionSize()]) equals
// expected, the archive's own content key.
func (f *File) VerifyHeaderHash(raw []byte, expected [16]byte) error {
	n := f.HeaderRegionSize()
	if n > len(raw) {
		return cerr.NewFormat(cerr.ErrTruncated, 0, "patcharchive: header region exceeds archive length")
	}

	sum := md5.Sum(raw[:n])
	if sum != expected {
		return &cerr.IntegrityError{
			Context:  "patcharchive: header region",
			Expected: hex.EncodeToString(expected[:]),
			Actual:   hex.EncodeToString(sum[:]),
		}
	}

	return nil
}

// AllEntries flattens every file entry across every block, in block order.
func (f *File) AllEntries() []Entry {
	var out []Entry

	for _, b := range f.Blocks {
		out = append(out, b.Entries...)
	}

	return out
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}

			return 1
		}
	}

	return len(a) - len(b)
}

func readCString(data []byte, pos int) (string, int, error) {
	for i := pos; i < len(data); i++ {
		if data[i] == 0 {
			return string(data[pos:i]), i + 1, nil
		}
	}

	return "", 0, fmt.Errorf("unterminated string at offset %d", pos)
}
