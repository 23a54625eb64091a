// Package tvfs decodes the TACT Virtual File System manifest: the
// namespace-based successor to the plain root mapping, introduced for
// multi-product builds. A TVFS file is a header plus four tables (path,
// VFS, container file, and an optional encoding-spec table) that together
// resolve a virtual path to a container entry describing where its bytes
// live.
//
// Every structure in this package is big-endian, including the path and
// VFS tables; this is a deliberate divergence from one retrieved reference
// implementation that used little-endian varint framing for those tables,
// since the specification this package follows states the format is
// big-endian throughout.
package tvfs

import (
	"fmt"

	"github.com/wowemulation-dev/cascette-go/endian"
	"github.com/wowemulation-dev/cascette-go/internal/cerr"
)

const (
	magic          = "TVFS"
	formatVersion1 = 1

	// headerBaseSize is the header length with no EST table pair:
	// magic(4) + version(1) + ekeySize(1) + pkeySize(1) + flags(1)
	// + 3*(offset u32 + size u32) + maxDepth u16.
	headerBaseSize = 4 + 1 + 1 + 1 + 1 + 3*8 + 2
	// headerESTExtra is the additional offset/size pair present when
	// TVFS_FLAG_ENCODING_SPEC is set.
	headerESTExtra = 8
)

// Header flag bits.
const (
	FlagEncodingSpec uint8 = 1 << 0
	FlagIncludeCKey  uint8 = 1 << 1
	FlagPatchSupport uint8 = 1 << 2
	FlagWriteSupport uint8 = 1 << 3
)

// Header is the fixed preamble of a TVFS manifest.
type Header struct {
	FormatVersion uint8
	EKeySize      uint8
	PKeySize      uint8
	Flags         uint8

	PathTableOffset uint32
	PathTableSize   uint32
	VFSTableOffset  uint32
	VFSTableSize    uint32
	CFTTableOffset  uint32
	CFTTableSize    uint32

	MaxDepth uint16

	ESTTableOffset uint32
	ESTTableSize   uint32
}

// HasEncodingSpec reports whether the manifest carries an encoding-spec
// table and per-entry ESpec indices.
func (h Header) HasEncodingSpec() bool { return h.Flags&FlagEncodingSpec != 0 }

// HasContentKey reports whether container entries carry a content key.
func (h Header) HasContentKey() bool { return h.Flags&FlagIncludeCKey != 0 }

// HasPatchSupport reports whether the manifest was built with patch
// references enabled.
func (h Header) HasPatchSupport() bool { return h.Flags&FlagPatchSupport != 0 }

// HasWriteSupport reports whether the manifest permits incremental writes.
func (h Header) HasWriteSupport() bool { return h.Flags&FlagWriteSupport != 0 }

func (h Header) size() int {
	if h.HasEncodingSpec() {
		return headerBaseSize + headerESTExtra
	}

	return headerBaseSize
}

func parseHeader(data []byte) (Header, int, error) {
	if len(data) < headerBaseSize || string(data[0:4]) != magic {
		return Header{}, 0, cerr.NewFormat(cerr.ErrBadMagic, 0, "tvfs: missing TVFS magic")
	}

	h := Header{
		FormatVersion: data[4],
		EKeySize:      data[5],
		PKeySize:      data[6],
		Flags:         data[7],
	}

	if h.FormatVersion != formatVersion1 {
		return Header{}, 0, cerr.NewFormat(cerr.ErrUnknownVersion, 4, "tvfs: unsupported format version %d", h.FormatVersion)
	}

	be := endian.BigEndian
	pos := 8

	h.PathTableOffset = be.Uint32(data[pos : pos+4])
	h.PathTableSize = be.Uint32(data[pos+4 : pos+8])
	pos += 8

	h.VFSTableOffset = be.Uint32(data[pos : pos+4])
	h.VFSTableSize = be.Uint32(data[pos+4 : pos+8])
	pos += 8

	h.CFTTableOffset = be.Uint32(data[pos : pos+4])
	h.CFTTableSize = be.Uint32(data[pos+4 : pos+8])
	pos += 8

	h.MaxDepth = be.Uint16(data[pos : pos+2])
	pos += 2

	if h.HasEncodingSpec() {
		if pos+8 > len(data) {
			return Header{}, 0, cerr.NewFormat(cerr.ErrTruncated, int64(pos), "tvfs: missing EST table offset/size")
		}

		h.ESTTableOffset = be.Uint32(data[pos : pos+4])
		h.ESTTableSize = be.Uint32(data[pos+4 : pos+8])
		pos += 8
	}

	return h, pos, nil
}

func appendHeader(out []byte, h Header) []byte {
	be := endian.BigEndian

	out = append(out, magic...)
	out = append(out, h.FormatVersion, h.EKeySize, h.PKeySize, h.Flags)
	out = be.AppendUint32(out, h.PathTableOffset)
	out = be.AppendUint32(out, h.PathTableSize)
	out = be.AppendUint32(out, h.VFSTableOffset)
	out = be.AppendUint32(out, h.VFSTableSize)
	out = be.AppendUint32(out, h.CFTTableOffset)
	out = be.AppendUint32(out, h.CFTTableSize)
	out = be.AppendUint16(out, h.MaxDepth)

	if h.HasEncodingSpec() {
		out = be.AppendUint32(out, h.ESTTableOffset)
		out = be.AppendUint32(out, h.ESTTableSize)
	}

	return out
}

func (h Header) validate() error {
	if h.EKeySize == 0 {
		return fmt.Errorf("tvfs: ekey size must be nonzero")
	}

	if h.HasContentKey() && h.PKeySize == 0 {
		return fmt.Errorf("tvfs: include-ckey flag set but pkey size is zero")
	}

	return nil
}
