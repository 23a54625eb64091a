package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// ZlibCodec compresses and decompresses BLTE mode 'Z' chunk payloads using
// klauspost/compress/zlib, a drop-in, faster replacement for the standard
// library's compress/zlib that the teacher package's own compression stack
// (github.com/klauspost/compress) already depends on.
type ZlibCodec struct{ level int }

var _ Codec = ZlibCodec{}

// NewZlibCodec creates a zlib codec using the default compression level.
func NewZlibCodec() ZlibCodec {
	return ZlibCodec{level: zlib.DefaultCompression}
}

// NewZlibCodecLevel creates a zlib codec using an explicit compression level
// (zlib.BestSpeed..zlib.BestCompression).
func NewZlibCodecLevel(level int) ZlibCodec {
	return ZlibCodec{level: level}
}

// Compress zlib-deflates data.
func (c ZlibCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := zlib.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("compress: zlib writer: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compress: zlib write: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress: zlib close: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress zlib-inflates data. decompressedSize is an optional capacity
// hint and may be zero.
func (c ZlibCodec) Decompress(data []byte, decompressedSize int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("compress: zlib reader: %w", err)
	}
	defer r.Close()

	out := bytes.NewBuffer(make([]byte, 0, decompressedSize))
	if _, err := io.Copy(out, r); err != nil {
		return nil, fmt.Errorf("compress: zlib inflate: %w", err)
	}

	return out.Bytes(), nil
}
