package patcharchive

import (
	"github.com/wowemulation-dev/cascette-go/endian"
	"github.com/wowemulation-dev/cascette-go/internal/cerr"
)

// PatchEntry is one candidate binary patch that upgrades a specific source
// blob to the entry's target content. A target may carry several of these,
// one per source version a client might be upgrading from.
type PatchEntry struct {
	SourceEKey        []byte
	SourceDecodedSize uint64 // uint40
	PatchEKey         []byte
	PatchSize         uint32
	PatchIndex        uint8
}

// Entry is one patchable target: its content key, decoded size, and the
// list of patches that can produce it.
type Entry struct {
	TargetCKey  []byte
	DecodedSize uint64 // uint40
	Patches     []PatchEntry
}

// Block is a fixed-size (Header.BlockSize) region holding entries sorted by
// TargetCKey, zero-padded at the end.
type Block struct {
	Entries []Entry
}

func entryHeaderSize(h Header) int {
	return int(h.FileKeySize) + 5 + 1
}

func patchEntrySize(h Header) int {
	return int(h.OldKeySize) + 5 + int(h.PatchKeySize) + 4 + 1
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}

	return true
}

// parseBlock decodes one fixed-size block region. Entries are read
// sequentially, little-endian, until the remaining bytes can no longer hold
// an entry header or the next entry's target key is all-zero (the padding
// sentinel).
func parseBlock(data []byte, h Header) (Block, error) {
	le := endian.LittleEndian
	hdrSize := entryHeaderSize(h)
	patchSize := patchEntrySize(h)

	var block Block

	pos := 0
	for pos+hdrSize <= len(data) {
		targetCKey := data[pos : pos+int(h.FileKeySize)]
		if isZero(targetCKey) {
			break
		}

		entryPos := pos + int(h.FileKeySize)
		decodedSize := endian.ReadUint40LE(data[entryPos : entryPos+5])
		entryPos += 5

		numPatches := int(data[entryPos])
		entryPos++

		if entryPos+numPatches*patchSize > len(data) {
			return Block{}, cerr.NewFormat(cerr.ErrTruncated, int64(pos), "patcharchive: block: entry patch list truncated")
		}

		patches := make([]PatchEntry, numPatches)

		for i := 0; i < numPatches; i++ {
			sourceEKey := append([]byte(nil), data[entryPos:entryPos+int(h.OldKeySize)]...)
			entryPos += int(h.OldKeySize)

			sourceDecodedSize := endian.ReadUint40LE(data[entryPos : entryPos+5])
			entryPos += 5

			patchEKey := append([]byte(nil), data[entryPos:entryPos+int(h.PatchKeySize)]...)
			entryPos += int(h.PatchKeySize)

			patchSizeField := le.Uint32(data[entryPos : entryPos+4])
			entryPos += 4

			patchIndex := data[entryPos]
			entryPos++

			patches[i] = PatchEntry{
				SourceEKey:        sourceEKey,
				SourceDecodedSize: sourceDecodedSize,
				PatchEKey:         patchEKey,
				PatchSize:         patchSizeField,
				PatchIndex:        patchIndex,
			}
		}

		block.Entries = append(block.Entries, Entry{
			TargetCKey:  append([]byte(nil), targetCKey...),
			DecodedSize: decodedSize,
			Patches:     patches,
		})

		pos = entryPos
	}

	return block, nil
}

// appendBlock serializes a block's entries little-endian and zero-pads to
// the header's fixed block size.
func appendBlock(out []byte, b Block, h Header) []byte {
	le := endian.LittleEndian
	start := len(out)

	for _, e := range b.Entries {
		out = append(out, e.TargetCKey[:h.FileKeySize]...)
		out = endian.AppendUint40LE(out, e.DecodedSize)
		out = append(out, byte(len(e.Patches)))

		for _, p := range e.Patches {
			out = append(out, p.SourceEKey[:h.OldKeySize]...)
			out = endian.AppendUint40LE(out, p.SourceDecodedSize)
			out = append(out, p.PatchEKey[:h.PatchKeySize]...)
			out = le.AppendUint32(out, p.PatchSize)
			out = append(out, p.PatchIndex)
		}
	}

	written := len(out) - start
	if pad := h.BlockSize() - written; pad > 0 {
		out = append(out, make([]byte, pad)...)
	}

	return out
}
