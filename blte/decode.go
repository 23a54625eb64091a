package blte

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"

	"github.com/wowemulation-dev/cascette-go/compress"
	"github.com/wowemulation-dev/cascette-go/format"
	"github.com/wowemulation-dev/cascette-go/internal/cerr"
)

// Decompress concatenates every chunk's decoded output in table order.
// keys may be nil if no chunk is expected to use mode 'E'.
func (f *File) Decompress(keys KeyService) ([]byte, error) {
	var buf bytes.Buffer

	if err := f.ExtractTo(&buf, keys); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// ExtractTo decodes every chunk in table order and writes the result to w,
// without materialising the whole decoded blob in one allocation beyond
// what each chunk's own decode requires.
func (f *File) ExtractTo(w io.Writer, keys KeyService) error {
	for i := range f.chunks {
		raw, err := f.ChunkBytes(i)
		if err != nil {
			return err
		}

		if err := verifyChecksum(raw, f.chunks[i].Checksum); err != nil {
			return fmt.Errorf("blte: chunk %d: %w", i, err)
		}

		decoded, err := decodeChunk(raw, i, keys, 0)
		if err != nil {
			return fmt.Errorf("blte: chunk %d: %w", i, err)
		}

		if _, err := w.Write(decoded); err != nil {
			return fmt.Errorf("blte: write chunk %d: %w", i, err)
		}
	}

	return nil
}

// DecompressChunk decodes a single chunk's raw on-wire bytes (mode byte
// inclusive) in isolation, given its position in the original chunk table
// (blockIndex, used to derive encrypted-chunk IVs). keys may be nil if the
// chunk is not expected to use mode 'E'. Unlike ExtractTo/Decompress, the
// caller is responsible for any checksum verification, since standalone
// chunk bytes carry no chunk-table entry to verify against.
func DecompressChunk(raw []byte, blockIndex int, keys KeyService) ([]byte, error) {
	return decodeChunk(raw, blockIndex, keys, 0)
}

// verifyChecksum checks a chunk's MD5 against the chunk-table entry. An
// all-zero stored checksum means verification is skipped (the
// single-chunk-with-unknown-hash convention).
func verifyChecksum(raw []byte, want [16]byte) error {
	var zero [16]byte
	if want == zero {
		return nil
	}

	got := md5.Sum(raw)
	if got != want {
		return &cerr.IntegrityError{
			Context:  "blte chunk",
			Expected: fmt.Sprintf("%x", want),
			Actual:   fmt.Sprintf("%x", got),
		}
	}

	return nil
}

// decodeChunk dispatches on the chunk's mode byte. blockIndex is the
// chunk's position in the table, used to derive encrypted-chunk IVs.
// depth bounds mode 'F'/'E' recursion.
func decodeChunk(raw []byte, blockIndex int, keys KeyService, depth int) ([]byte, error) {
	if depth > maxRecursionDepth {
		return nil, &cerr.CipherError{Kind: cerr.ErrRecursionLimit}
	}

	if len(raw) < 1 {
		return nil, cerr.NewFormat(cerr.ErrTruncated, 0, "blte: empty chunk")
	}

	mode := format.BLTEMode(raw[0])
	rest := raw[1:]

	switch mode {
	case format.ModeNone:
		return rest, nil

	case format.ModeZlib:
		codec, err := compress.CreateCodec(format.ModeZlib)
		if err != nil {
			return nil, err
		}

		return codec.Decompress(rest, 0)

	case format.ModeLZ4:
		codec, err := compress.CreateCodec(format.ModeLZ4)
		if err != nil {
			return nil, err
		}

		return codec.Decompress(rest, 0)

	case format.ModeFrame:
		inner, err := Parse(rest)
		if err != nil {
			return nil, fmt.Errorf("blte: frame chunk: %w", err)
		}

		var buf bytes.Buffer
		for i := range inner.chunks {
			raw, err := inner.ChunkBytes(i)
			if err != nil {
				return nil, err
			}

			if err := verifyChecksum(raw, inner.chunks[i].Checksum); err != nil {
				return nil, err
			}

			decoded, err := decodeChunk(raw, i, keys, depth+1)
			if err != nil {
				return nil, err
			}

			buf.Write(decoded)
		}

		return buf.Bytes(), nil

	case format.ModeEncrypted:
		return decodeEncryptedChunk(rest, blockIndex, keys, depth)

	default:
		return nil, cerr.NewFormat(cerr.ErrInvalidField, 0, "blte: unknown chunk mode %q", raw[0])
	}
}
