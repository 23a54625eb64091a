package patcharchive

import (
	"fmt"
	"io"

	"github.com/wowemulation-dev/cascette-go/internal/cerr"
)

// StreamReader reads a patch archive block-by-block without materialising
// the whole file, for archives too large (100+ MiB) to hold comfortably.
type StreamReader struct {
	r          io.Reader
	header     Header
	encoding   *EncodingInfo
	blocksRead int
	blockBuf   []byte
}

// NewStreamReader parses the header (and optional extended header) from r
// and returns a reader positioned at the first block.
func NewStreamReader(r io.Reader) (*StreamReader, error) {
	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("patcharchive: reading header: %w", err)
	}

	h, err := parseHeader(hdr)
	if err != nil {
		return nil, err
	}

	sr := &StreamReader{r: r, header: h, blockBuf: make([]byte, h.BlockSize())}

	if h.HasExtendedHeader() {
		// EncodingInfo is variable-length (NUL-terminated ESpec string), so
		// read byte-by-byte until the terminator instead of guessing a size.
		buf := make([]byte, 0, 64)

		fixed := make([]byte, 16+16+5+4)
		if _, err := io.ReadFull(r, fixed); err != nil {
			return nil, fmt.Errorf("patcharchive: reading extended header: %w", err)
		}

		buf = append(buf, fixed...)

		one := make([]byte, 1)

		for {
			if _, err := io.ReadFull(r, one); err != nil {
				return nil, fmt.Errorf("patcharchive: reading extended header espec: %w", err)
			}

			buf = append(buf, one[0])

			if one[0] == 0 {
				break
			}
		}

		info, _, err := parseEncodingInfo(buf, 0)
		if err != nil {
			return nil, err
		}

		sr.encoding = &info
	}

	return sr, nil
}

// Header returns the archive's outer header.
func (sr *StreamReader) Header() Header { return sr.header }

// EncodingInfo returns the optional extended-header encoding-file
// description, or nil if the header did not declare one.
func (sr *StreamReader) EncodingInfo() *EncodingInfo { return sr.encoding }

// HasMoreBlocks reports whether NextBlock has more blocks to yield.
func (sr *StreamReader) HasMoreBlocks() bool {
	return sr.blocksRead < int(sr.header.BlockCount)
}

// NextBlock reads and decodes the next fixed-size block region, or returns
// io.EOF once every declared block has been read.
func (sr *StreamReader) NextBlock() (Block, error) {
	if !sr.HasMoreBlocks() {
		return Block{}, io.EOF
	}

	if _, err := io.ReadFull(sr.r, sr.blockBuf); err != nil {
		return Block{}, fmt.Errorf("patcharchive: block %d: %w", sr.blocksRead, err)
	}

	block, err := parseBlock(sr.blockBuf, sr.header)
	if err != nil {
		return Block{}, fmt.Errorf("patcharchive: block %d: %w", sr.blocksRead, err)
	}

	sr.blocksRead++

	return block, nil
}

// ForEachEntry streams every entry across every block in order, invoking fn
// for each. fn's error stops iteration and is returned as-is.
func (sr *StreamReader) ForEachEntry(fn func(Entry) error) error {
	for sr.HasMoreBlocks() {
		block, err := sr.NextBlock()
		if err != nil {
			return err
		}

		for _, e := range block.Entries {
			if err := fn(e); err != nil {
				return err
			}
		}
	}

	return nil
}

// FindByTargetCKey scans forward from the reader's current position for an
// entry whose TargetCKey equals key, without materialising the rest of the
// archive. A previous partial scan is not rewound.
func (sr *StreamReader) FindByTargetCKey(key []byte) (Entry, error) {
	var found Entry

	err := sr.ForEachEntry(func(e Entry) error {
		if bytesEqual(e.TargetCKey, key) {
			found = e
			return errStop
		}

		return nil
	})

	if err == errStop {
		return found, nil
	}

	if err != nil {
		return Entry{}, err
	}

	return Entry{}, &cerr.LookupError{Context: "patcharchive", Key: fmt.Sprintf("%x", key)}
}

var errStop = fmt.Errorf("patcharchive: stop iteration")

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
