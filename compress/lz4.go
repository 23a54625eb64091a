package compress

import (
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/wowemulation-dev/cascette-go/endian"
)

// lz4CompressorPool pools lz4.Compressor instances, adapted from the
// teacher's compress/lz4.go: the compressor carries internal hash-table
// state that benefits from reuse across calls.
var lz4CompressorPool = sync.Pool{
	New: func() any { return &lz4.Compressor{} },
}

// LZ4Codec compresses and decompresses BLTE mode '4' chunk payloads.
//
// Unlike the teacher's LZ4Compressor (which produces/consumes raw LZ4
// blocks with no size framing), BLTE wraps the raw block in an 8-byte
// little-endian (decompressedSize, compressedSize) header (spec.md §4.1),
// so Compress/Decompress here include that framing.
type LZ4Codec struct{}

var _ Codec = LZ4Codec{}

// NewLZ4Codec creates an LZ4 codec for BLTE mode '4' chunks.
func NewLZ4Codec() LZ4Codec { return LZ4Codec{} }

// Compress LZ4-compresses data and prefixes the BLTE size header.
func (c LZ4Codec) Compress(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(data, dst)
	if err != nil {
		return nil, fmt.Errorf("compress: lz4 compress: %w", err)
	}

	if n == 0 && len(data) > 0 {
		// pierrec/lz4 returns n == 0 when the input would not shrink.
		// BLTE mode '4' has no "stored" sub-variant; callers that hit this
		// should fall back to mode 'N' for this chunk instead.
		return nil, fmt.Errorf("compress: lz4: %d bytes incompressible, use mode N instead", len(data))
	}

	dst = dst[:n]

	out := make([]byte, 8, 8+len(dst))
	endian.LittleEndian.PutUint32(out[0:4], uint32(len(data)))
	endian.LittleEndian.PutUint32(out[4:8], uint32(len(dst)))
	out = append(out, dst...)

	return out, nil
}

// Decompress reads the BLTE size header and LZ4-decompresses the block.
// decompressedSize is ignored; BLTE always carries its own size header.
func (c LZ4Codec) Decompress(data []byte, _ int) ([]byte, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("compress: lz4 chunk too short: %d bytes", len(data))
	}

	decompressedSize := endian.LittleEndian.Uint32(data[0:4])
	compressedSize := endian.LittleEndian.Uint32(data[4:8])

	if int(compressedSize)+8 != len(data) {
		return nil, fmt.Errorf("compress: lz4 size mismatch: header says %d, have %d", compressedSize, len(data)-8)
	}

	dst := make([]byte, decompressedSize)

	n, err := lz4.UncompressBlock(data[8:], dst)
	if err != nil {
		return nil, fmt.Errorf("compress: lz4 decompress: %w", err)
	}

	return dst[:n], nil
}
