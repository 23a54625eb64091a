// Package blte implements the BLTE container format: the chunked
// compression/encryption envelope wrapping every downloadable CASC blob.
//
// A BLTE file is either single-chunk (an 8-byte header with no chunk
// table, the whole remainder being one chunk) or multi-chunk (a header
// naming a chunk count, followed by a table of per-chunk sizes and
// checksums, followed by the chunk payloads themselves). Each chunk opens
// with a one-byte mode selecting how its payload was transformed: 'N'one,
// 'Z'lib, LZ4 ('4'), recursive 'F'rame, or 'E'ncrypted.
//
// # Basic usage
//
//	f, err := blte.Parse(raw)
//	if err != nil {
//	    return err
//	}
//	plain, err := f.Decompress(nil)
//
// Encrypted content ('E' chunks) requires a KeyService to resolve the
// chunk's key-name to key bytes; pass nil when no encrypted chunk is
// expected.
package blte

import (
	"encoding/binary"
	"fmt"

	"github.com/wowemulation-dev/cascette-go/internal/cerr"
)

const (
	magic = "BLTE"

	// headerFixedSize is the size of the fixed portion of a multi-chunk
	// header: 4-byte magic, 4-byte header-size, 1-byte flag, 3-byte
	// big-endian chunk count.
	headerFixedSize = 12

	// chunkTableEntrySize is the size of one chunk-table entry: 4-byte
	// compressed size, 4-byte decompressed size, 16-byte MD5 checksum.
	chunkTableEntrySize = 24

	// chunkTableFlag is the required flag byte value for a multi-chunk
	// header's chunk table.
	chunkTableFlag = 0x0F

	// maxRecursionDepth bounds mode 'F' and mode 'E' recursive decoding
	// to foreclose pathological nesting.
	maxRecursionDepth = 8
)

// ChunkInfo describes one chunk's position and metadata within a BLTE
// file, as recorded in the chunk table (or synthesized for single-chunk
// files).
type ChunkInfo struct {
	CompressedSize   uint32
	DecompressedSize uint32
	Checksum         [16]byte

	// Offset is the byte offset of this chunk's payload (mode byte
	// inclusive) within the original file, relative to the end of the
	// header/chunk-table region.
	Offset int64
}

// File is a parsed BLTE container: validated header and chunk table, plus
// a reference to the backing bytes. Parsed files are immutable.
type File struct {
	raw    []byte
	chunks []ChunkInfo

	// payloadStart is the byte offset into raw where chunk payloads
	// begin (immediately after the header, or after the chunk table for
	// multi-chunk files).
	payloadStart int64
}

// Chunks returns the parsed chunk table. Callers must not modify the
// returned slice.
func (f *File) Chunks() []ChunkInfo { return f.chunks }

// ChunkBytes returns the raw on-wire bytes (mode byte inclusive) for the
// chunk at index i.
func (f *File) ChunkBytes(i int) ([]byte, error) {
	if i < 0 || i >= len(f.chunks) {
		return nil, fmt.Errorf("blte: %w: chunk index %d", cerr.ErrChunkOutOfRange, i)
	}

	c := f.chunks[i]
	start := f.payloadStart + c.Offset
	end := start + int64(c.CompressedSize)

	if end > int64(len(f.raw)) {
		return nil, cerr.NewFormat(cerr.ErrTruncated, start, "blte: chunk %d extends past end of file", i)
	}

	return f.raw[start:end], nil
}

// Parse validates a BLTE container's magic, header size, and chunk table,
// returning a File whose chunks are addressable by index without
// decoding their payloads.
func Parse(data []byte) (*File, error) {
	if len(data) < 8 || string(data[0:4]) != magic {
		return nil, cerr.NewFormat(cerr.ErrBadMagic, 0, "blte: missing BLTE magic")
	}

	headerSize := binary.BigEndian.Uint32(data[4:8])

	if headerSize == 0 {
		return &File{
			raw: data,
			chunks: []ChunkInfo{{
				CompressedSize:   uint32(len(data) - 8),
				DecompressedSize: 0,
				Offset:           0,
			}},
			payloadStart: 8,
		}, nil
	}

	if int(headerSize) < headerFixedSize {
		return nil, cerr.NewFormat(cerr.ErrInvalidField, 8, "blte: header size %d below minimum %d", headerSize, headerFixedSize)
	}

	if len(data) < int(headerSize) {
		return nil, cerr.NewFormat(cerr.ErrTruncated, 8, "blte: header size %d exceeds file length %d", headerSize, len(data))
	}

	flag := data[8]
	if flag != chunkTableFlag {
		return nil, cerr.NewFormat(cerr.ErrInvalidField, 8, "blte: chunk table flag 0x%02X, want 0x%02X", flag, chunkTableFlag)
	}

	count := int(data[9])<<16 | int(data[10])<<8 | int(data[11])
	if count < 1 {
		return nil, cerr.NewFormat(cerr.ErrInvalidField, 9, "blte: chunk count is zero")
	}

	wantSize := headerFixedSize + chunkTableEntrySize*count
	if int(headerSize) < wantSize {
		return nil, cerr.NewFormat(cerr.ErrInvalidField, 8, "blte: header size %d too small for %d chunks", headerSize, count)
	}

	chunks := make([]ChunkInfo, count)

	pos := headerFixedSize
	var offset int64

	for i := 0; i < count; i++ {
		entry := data[pos : pos+chunkTableEntrySize]

		c := ChunkInfo{
			CompressedSize:   binary.BigEndian.Uint32(entry[0:4]),
			DecompressedSize: binary.BigEndian.Uint32(entry[4:8]),
			Offset:           offset,
		}
		copy(c.Checksum[:], entry[8:24])

		chunks[i] = c
		offset += int64(c.CompressedSize)
		pos += chunkTableEntrySize
	}

	if int64(headerSize)+offset > int64(len(data)) {
		return nil, cerr.NewFormat(cerr.ErrTruncated, int64(headerSize), "blte: chunk payloads extend past end of file")
	}

	return &File{
		raw:          data,
		chunks:       chunks,
		payloadStart: int64(headerSize),
	}, nil
}

// KeyService resolves an encrypted chunk's key-name to its key bytes.
// Implementations must return cerr.ErrKeyNotFound (wrapped) when the
// key-name is unknown; there is no silent fallback.
type KeyService interface {
	Lookup(keyName uint64) ([]byte, error)
}
