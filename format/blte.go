// Package format defines the shared, dependency-free enums used across the
// BLTE, encoding-table, and root decoders: chunk compression modes,
// encrypted-chunk cipher identifiers, and root content/locale flag bitsets.
package format

// BLTEMode identifies how a single BLTE chunk's payload is encoded.
type BLTEMode byte

const (
	// ModeNone stores the chunk payload verbatim.
	ModeNone BLTEMode = 'N'
	// ModeZlib stores the chunk payload zlib-deflated.
	ModeZlib BLTEMode = 'Z'
	// ModeLZ4 stores the chunk payload as a raw LZ4 block, prefixed by two
	// little-endian uint32 sizes (decompressed, compressed).
	ModeLZ4 BLTEMode = '4'
	// ModeFrame stores another complete BLTE stream as the chunk payload.
	ModeFrame BLTEMode = 'F'
	// ModeEncrypted wraps an inner mode behind a Salsa20 or ARC4 cipher.
	ModeEncrypted BLTEMode = 'E'
)

// String returns a human-readable name for m.
func (m BLTEMode) String() string {
	switch m {
	case ModeNone:
		return "None"
	case ModeZlib:
		return "Zlib"
	case ModeLZ4:
		return "LZ4"
	case ModeFrame:
		return "Frame"
	case ModeEncrypted:
		return "Encrypted"
	default:
		return "Unknown"
	}
}

// Valid reports whether m is one of the five defined chunk modes.
func (m BLTEMode) Valid() bool {
	switch m {
	case ModeNone, ModeZlib, ModeLZ4, ModeFrame, ModeEncrypted:
		return true
	default:
		return false
	}
}

// EncryptionType identifies the stream cipher used by an encrypted ('E') chunk.
type EncryptionType byte

const (
	// EncryptionSalsa20 is Salsa20 stream encryption.
	EncryptionSalsa20 EncryptionType = 0x53
	// EncryptionARC4 is ARC4 (RC4) stream encryption.
	EncryptionARC4 EncryptionType = 0x41
)

// String returns a human-readable name for t.
func (t EncryptionType) String() string {
	switch t {
	case EncryptionSalsa20:
		return "Salsa20"
	case EncryptionARC4:
		return "ARC4"
	default:
		return "Unknown"
	}
}
