// Package compress provides the per-chunk compressors BLTE chunks use:
// zlib (mode 'Z') and raw-block LZ4 (mode '4'). Modes 'N' (verbatim),
// 'F' (recursive frame), and 'E' (encrypted) are handled directly by the
// blte package, since they aren't simple byte-transform codecs.
package compress

import (
	"fmt"

	"github.com/wowemulation-dev/cascette-go/format"
)

// Compressor compresses a chunk payload.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor decompresses a chunk payload, given its known decompressed
// size (0 if unknown, in which case the decompressor must discover it from
// the encoded stream).
type Decompressor interface {
	Decompress(data []byte, decompressedSize int) ([]byte, error)
}

// Codec combines both directions.
type Codec interface {
	Compressor
	Decompressor
}

// CreateCodec returns the Codec for the given BLTE chunk mode. Only 'Z' and
// '4' are byte-transform codecs in this sense; other modes return an error.
func CreateCodec(mode format.BLTEMode) (Codec, error) {
	switch mode {
	case format.ModeZlib:
		return NewZlibCodec(), nil
	case format.ModeLZ4:
		return NewLZ4Codec(), nil
	default:
		return nil, fmt.Errorf("compress: no byte-transform codec for chunk mode %s", mode)
	}
}
