package blte

import (
	"crypto/md5"
	"fmt"

	"github.com/wowemulation-dev/cascette-go/compress"
	"github.com/wowemulation-dev/cascette-go/format"
)

// ChunkSpec is one logical chunk a Builder will compress and frame.
type ChunkSpec struct {
	Data []byte
	Mode format.BLTEMode
}

// Build compresses each chunk per its requested mode, computes per-chunk
// MD5 (over the mode byte plus the compressed payload), and writes a
// complete BLTE container. A single chunk is written with header-size 0
// and no chunk table, matching the single-chunk convention Parse expects.
func Build(chunks []ChunkSpec) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("blte: build: no chunks given")
	}

	payloads := make([][]byte, len(chunks))

	for i, c := range chunks {
		encoded, err := encodeChunkPayload(c.Data, c.Mode)
		if err != nil {
			return nil, fmt.Errorf("blte: build: chunk %d: %w", i, err)
		}

		payloads[i] = append([]byte{byte(c.Mode)}, encoded...)
	}

	if len(chunks) == 1 {
		out := make([]byte, 0, 8+len(payloads[0]))
		out = append(out, magic...)
		out = append(out, 0, 0, 0, 0)
		out = append(out, payloads[0]...)

		return out, nil
	}

	headerSize := headerFixedSize + chunkTableEntrySize*len(chunks)

	out := make([]byte, 0, headerSize+totalLen(payloads))
	out = append(out, magic...)
	out = appendUint32BE(out, uint32(headerSize))
	out = append(out, chunkTableFlag)
	out = appendUint24BE(out, len(chunks))

	for i, payload := range payloads {
		sum := md5.Sum(payload)

		out = appendUint32BE(out, uint32(len(payload)))
		out = appendUint32BE(out, uint32(len(chunks[i].Data)))
		out = append(out, sum[:]...)
	}

	for _, payload := range payloads {
		out = append(out, payload...)
	}

	return out, nil
}

// encodeChunkPayload compresses data per mode, returning the bytes that
// follow the mode byte. Mode F and E are not supported by Build; callers
// needing encryption or framing compose BLTE streams at a higher level.
func encodeChunkPayload(data []byte, mode format.BLTEMode) ([]byte, error) {
	switch mode {
	case format.ModeNone:
		return data, nil
	case format.ModeZlib, format.ModeLZ4:
		codec, err := compress.CreateCodec(mode)
		if err != nil {
			return nil, err
		}

		return codec.Compress(data)
	default:
		return nil, fmt.Errorf("blte: build: unsupported chunk mode %s", mode)
	}
}

func appendUint32BE(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendUint24BE(b []byte, v int) []byte {
	return append(b, byte(v>>16), byte(v>>8), byte(v))
}

func totalLen(bufs [][]byte) int {
	n := 0
	for _, b := range bufs {
		n += len(b)
	}

	return n
}
