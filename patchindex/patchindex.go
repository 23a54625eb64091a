// Package patchindex decodes patch indices: small manifests that list every
// binary patch held by a patch archive, stored redundantly across two block
// types (2 and 8) for the client's two access patterns (build-time streaming
// and random lookup). A third block (type 1) carries an opaque fixed-size
// config blob.
//
// Every known patch index on Blizzard's CDN carries exactly three blocks,
// types 1, 2, and 8 in that order. Parse does not check that shape: it
// dispatches each block by type, in whatever order the header lists them,
// and skips unknown types.
package patchindex

import (
	"fmt"

	"github.com/wowemulation-dev/cascette-go/endian"
	"github.com/wowemulation-dev/cascette-go/internal/cerr"
	"github.com/wowemulation-dev/cascette-go/internal/md5key"
)

// Block type identifiers.
const (
	BlockTypeConfig  = 1
	BlockTypeEntries = 2
	BlockTypeLookup  = 8
)

const configBlockSize = 7

const entrySize = 16 + 4 + 16 + 4 + 16 + 4 + 1

const block2PreambleSize = 5

const block8PreambleSize = 14

// BlockDescriptor names one block's type and on-disk size, as carried in
// the header's block table.
type BlockDescriptor struct {
	Type uint8
	Size uint32
}

// Header is the fixed big-endian outer preamble, followed immediately by
// the blocks it describes.
type Header struct {
	Version     uint8
	KeySize     uint8
	DataSize    uint32
	HeaderSize  uint32
	Reserved    uint8
	Checksum    [16]byte
	Blocks      []BlockDescriptor
}

func (h Header) size() int {
	return 1 + 1 + 1 + 4 + 4 + 1 + 16 + len(h.Blocks)*5
}

// BlockOffset returns the byte offset of the i-th block, measured from the
// start of the file.
func (h Header) BlockOffset(i int) int {
	off := int(h.HeaderSize)
	for j := 0; j < i; j++ {
		off += int(h.Blocks[j].Size)
	}

	return off
}

func parseHeader(data []byte) (Header, error) {
	if len(data) < 3 {
		return Header{}, cerr.NewFormat(cerr.ErrTruncated, 0, "patchindex: header truncated")
	}

	be := endian.BigEndian

	h := Header{
		Version:    data[0],
		KeySize:    data[1],
	}

	blockCount := int(data[2])
	pos := 3

	if pos+4+4+1+16 > len(data) {
		return Header{}, cerr.NewFormat(cerr.ErrTruncated, 0, "patchindex: header truncated")
	}

	h.DataSize = be.Uint32(data[pos : pos+4])
	pos += 4
	h.HeaderSize = be.Uint32(data[pos : pos+4])
	pos += 4
	h.Reserved = data[pos]
	pos++

	copy(h.Checksum[:], data[pos:pos+16])
	pos += 16

	if pos+blockCount*5 > len(data) {
		return Header{}, cerr.NewFormat(cerr.ErrTruncated, 0, "patchindex: block table truncated")
	}

	h.Blocks = make([]BlockDescriptor, blockCount)

	for i := 0; i < blockCount; i++ {
		h.Blocks[i] = BlockDescriptor{
			Type: data[pos],
			Size: be.Uint32(data[pos+1 : pos+5]),
		}
		pos += 5
	}

	return h, nil
}

func appendHeader(out []byte, h Header) []byte {
	be := endian.BigEndian

	out = append(out, h.Version, h.KeySize, byte(len(h.Blocks)))
	out = be.AppendUint32(out, h.DataSize)
	out = be.AppendUint32(out, h.HeaderSize)
	out = append(out, h.Reserved)
	out = append(out, h.Checksum[:]...)

	for _, b := range h.Blocks {
		out = append(out, b.Type)
		out = be.AppendUint32(out, b.Size)
	}

	return out
}

// Entry is one patch: the content it upgrades from, the content it
// upgrades to, and the patch blob that performs the upgrade.
type Entry struct {
	SourceEKey   md5key.Key
	SourceSize   uint32
	TargetEKey   md5key.Key
	TargetSize   uint32
	PatchEKey    md5key.Key
	EncodedSize  uint32
	SuffixOffset uint8
}

func parseEntry(data []byte) (Entry, error) {
	if len(data) < entrySize {
		return Entry{}, cerr.NewFormat(cerr.ErrTruncated, 0, "patchindex: entry truncated")
	}

	le := endian.LittleEndian

	var e Entry

	pos := 0
	copy(e.SourceEKey[:], data[pos:pos+16])
	pos += 16
	e.SourceSize = le.Uint32(data[pos : pos+4])
	pos += 4
	copy(e.TargetEKey[:], data[pos:pos+16])
	pos += 16
	e.TargetSize = le.Uint32(data[pos : pos+4])
	pos += 4
	copy(e.PatchEKey[:], data[pos:pos+16])
	pos += 16
	e.EncodedSize = le.Uint32(data[pos : pos+4])
	pos += 4
	e.SuffixOffset = data[pos]

	return e, nil
}

func appendEntry(out []byte, e Entry) []byte {
	le := endian.LittleEndian

	out = append(out, e.SourceEKey[:]...)
	out = le.AppendUint32(out, e.SourceSize)
	out = append(out, e.TargetEKey[:]...)
	out = le.AppendUint32(out, e.TargetSize)
	out = append(out, e.PatchEKey[:]...)
	out = le.AppendUint32(out, e.EncodedSize)
	out = append(out, e.SuffixOffset)

	return out
}

// File is a fully parsed patch index.
type File struct {
	Header  Header
	KeySize uint8
	Config  []byte // the opaque type-1 block, verbatim
	Entries []Entry
}

// ParseOption configures Parse.
type ParseOption func(*parseOptions)

type parseOptions struct {
	crossCheck bool
}

// WithCrossCheck makes Parse independently decode the type-8 lookup block
// and verify it holds the same entries, in the same order, as the type-2
// block. Doubles parse cost; off by default.
func WithCrossCheck(v bool) ParseOption {
	return func(o *parseOptions) { o.crossCheck = v }
}

// Parse decodes a complete patch-index blob.
func Parse(data []byte, opts ...ParseOption) (*File, error) {
	var po parseOptions
	for _, o := range opts {
		o(&po)
	}

	h, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	if int(h.HeaderSize) != h.size() {
		return nil, cerr.NewFormat(cerr.ErrInvalidField, 0, "patchindex: header_size %d does not match computed %d", h.HeaderSize, h.size())
	}

	f := &File{Header: h, KeySize: h.KeySize}

	var entries []Entry

	var block8Entries []Entry

	for i, b := range h.Blocks {
		off := h.BlockOffset(i)
		if off+int(b.Size) > len(data) {
			return nil, cerr.NewFormat(cerr.ErrTruncated, int64(off), "patchindex: block %d truncated", i)
		}

		region := data[off : off+int(b.Size)]

		switch b.Type {
		case BlockTypeConfig:
			if len(region) != configBlockSize {
				return nil, cerr.NewFormat(cerr.ErrInvalidField, int64(off), "patchindex: config block size %d, want %d", len(region), configBlockSize)
			}

			f.Config = append([]byte(nil), region...)
		case BlockTypeEntries:
			parsed, err := parseEntryBlock(region, block2PreambleSize)
			if err != nil {
				return nil, fmt.Errorf("patchindex: block 2: %w", err)
			}

			entries = parsed
		case BlockTypeLookup:
			if po.crossCheck {
				keySize, parsed, err := ParseBlock8(region)
				if err != nil {
					return nil, fmt.Errorf("patchindex: block 8: %w", err)
				}

				if keySize != h.KeySize {
					return nil, cerr.NewFormat(cerr.ErrInvalidField, int64(off), "patchindex: block 8 key_size %d != header key_size %d", keySize, h.KeySize)
				}

				block8Entries = parsed
			}
		}
	}

	f.Entries = entries

	if po.crossCheck {
		if err := crossCheck(entries, block8Entries); err != nil {
			return nil, err
		}
	}

	return f, nil
}

func parseEntryBlock(region []byte, preamble int) ([]Entry, error) {
	if len(region) < preamble {
		return nil, cerr.NewFormat(cerr.ErrTruncated, 0, "patchindex: block preamble truncated")
	}

	body := region[preamble:]
	if len(body)%entrySize != 0 {
		return nil, cerr.NewFormat(cerr.ErrInvalidField, int64(preamble), "patchindex: block body %d not a multiple of entry size %d", len(body), entrySize)
	}

	n := len(body) / entrySize
	entries := make([]Entry, n)

	for i := 0; i < n; i++ {
		e, err := parseEntry(body[i*entrySize : (i+1)*entrySize])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}

		entries[i] = e
	}

	return entries, nil
}

// ParseBlock8 decodes a type-8 lookup block independently of a full File,
// returning its declared key size and entries. Exposed so callers (and
// Parse's WithCrossCheck option) can validate block 2 and block 8 agree
// without re-parsing the whole file.
func ParseBlock8(region []byte) (uint8, []Entry, error) {
	if len(region) < block8PreambleSize {
		return 0, nil, cerr.NewFormat(cerr.ErrTruncated, 0, "patchindex: block 8 preamble truncated")
	}

	keySize := region[1]

	entries, err := parseEntryBlock(region, block8PreambleSize)
	if err != nil {
		return 0, nil, err
	}

	return keySize, entries, nil
}

func crossCheck(a, b []Entry) error {
	if len(a) != len(b) {
		return cerr.NewFormat(cerr.ErrInvalidField, 0, "patchindex: block 2 has %d entries, block 8 has %d", len(a), len(b))
	}

	for i := range a {
		if a[i] != b[i] {
			return cerr.NewFormat(cerr.ErrInvalidField, int64(i), "patchindex: entry %d differs between block 2 and block 8", i)
		}
	}

	return nil
}

// Build re-serializes f: header, type-1 config block verbatim, a type-2
// entries block, and a type-8 lookup block holding the same entries.
func (f *File) Build() []byte {
	block2 := make([]byte, block2PreambleSize)
	block2[0] = f.Header.Version
	block2[1] = f.KeySize

	for _, e := range f.Entries {
		block2 = appendEntry(block2, e)
	}

	block8 := make([]byte, block8PreambleSize)
	block8[0] = f.Header.Version
	block8[1] = f.KeySize

	for _, e := range f.Entries {
		block8 = appendEntry(block8, e)
	}

	h := f.Header
	h.KeySize = f.KeySize
	h.Blocks = []BlockDescriptor{
		{Type: BlockTypeConfig, Size: configBlockSize},
		{Type: BlockTypeEntries, Size: uint32(len(block2))},
		{Type: BlockTypeLookup, Size: uint32(len(block8))},
	}
	h.HeaderSize = uint32(h.size())
	h.DataSize = uint32(h.size() + len(f.Config) + len(block2) + len(block8))

	out := appendHeader(nil, h)
	out = append(out, f.Config...)
	out = append(out, block2...)
	out = append(out, block8...)

	return out
}

// FindBySourceEKey returns every entry whose source matches key.
func (f *File) FindBySourceEKey(key md5key.Key) []Entry {
	var out []Entry

	for _, e := range f.Entries {
		if e.SourceEKey == key {
			out = append(out, e)
		}
	}

	return out
}

// FindByPatchEKey returns every entry whose patch blob matches key.
func (f *File) FindByPatchEKey(key md5key.Key) []Entry {
	var out []Entry

	for _, e := range f.Entries {
		if e.PatchEKey == key {
			out = append(out, e)
		}
	}

	return out
}

// UniquePatchEKeys returns the distinct set of patch keys referenced by
// f's entries, since several target upgrades can share the same patch blob.
func (f *File) UniquePatchEKeys() []md5key.Key {
	seen := make(map[md5key.Key]struct{})

	var out []md5key.Key

	for _, e := range f.Entries {
		if _, ok := seen[e.PatchEKey]; !ok {
			seen[e.PatchEKey] = struct{}{}

			out = append(out, e.PatchEKey)
		}
	}

	return out
}
