// Package endian provides byte-order utilities for the binary formats in
// this module.
//
// NGDP/CASC mixes byte orders within a single artefact: BLTE and the
// encoding-table headers are big-endian, root blocks are little-endian,
// TVFS tables are big-endian, and patch-archive entries are little-endian
// inside a big-endian outer header. Rather than hand-rolling offset math at
// every call site, decoders that use this package pick their format's fixed
// byte order once, as BigEndian or LittleEndian.
//
// This extends Go's standard encoding/binary package by combining
// ByteOrder and AppendByteOrder into one interface, which both documents
// intent and avoids an extra allocate-then-append round trip when building
// output buffers.
package endian

import "encoding/binary"

// EndianEngine combines ByteOrder and AppendByteOrder from encoding/binary
// into a single interface. binary.LittleEndian and binary.BigEndian both
// satisfy it directly.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// BigEndian is the big-endian EndianEngine, used for BLTE headers, the
// encoding-table header and pages, TVFS, and the outer framing of
// install/download/size/patch-archive manifests.
var BigEndian EndianEngine = binary.BigEndian

// LittleEndian is the little-endian EndianEngine, used for root blocks and
// patch-archive entries.
var LittleEndian EndianEngine = binary.LittleEndian

// ReadUint40 reads a 5-byte big-endian unsigned integer from the first 5
// bytes of b. It panics if len(b) < 5, matching the panic-on-short-slice
// convention of encoding/binary's own Uint32/Uint64.
//
// uint40 fields appear throughout NGDP/CASC (file sizes in the encoding
// table, install/download/size manifests, TVFS, and the patch-archive
// header) and are stored big-endian there; patch-archive entries are the
// one exception (see ReadUint40LE).
func ReadUint40(b []byte) uint64 {
	_ = b[4]

	return uint64(b[0])<<32 | uint64(b[1])<<24 | uint64(b[2])<<16 | uint64(b[3])<<8 | uint64(b[4])
}

// PutUint40 writes the low 40 bits of v into the first 5 bytes of b as a
// big-endian unsigned integer. It panics if len(b) < 5.
func PutUint40(b []byte, v uint64) {
	_ = b[4]

	b[0] = byte(v >> 32)
	b[1] = byte(v >> 24)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 8)
	b[4] = byte(v)
}

// AppendUint40 appends the low 40 bits of v to b as a big-endian unsigned
// integer and returns the extended slice.
func AppendUint40(b []byte, v uint64) []byte {
	return append(b, byte(v>>32), byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// MaxUint40 is the largest value representable in 40 bits.
const MaxUint40 = 1<<40 - 1

// ReadUint40LE reads a 5-byte little-endian unsigned integer from the
// first 5 bytes of b. It panics if len(b) < 5.
//
// Patch-archive entries are the one section of the format family that
// stores its uint40 fields little-endian, matching the little-endian
// entry framing inside that format's otherwise big-endian outer header.
func ReadUint40LE(b []byte) uint64 {
	_ = b[4]

	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 | uint64(b[4])<<32
}

// AppendUint40LE appends the low 40 bits of v to b as a little-endian
// unsigned integer and returns the extended slice.
func AppendUint40LE(b []byte, v uint64) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24), byte(v>>32))
}
