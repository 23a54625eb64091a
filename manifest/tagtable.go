// Package manifest decodes and encodes the install, download, and size
// manifests: three formats that share a common tag-mask idiom. After a
// format-specific header, each carries a table of named tags (each a
// bitmask over the entry array) followed by the entries themselves.
//
// Bit order within a tag's mask is MSB-first: entry i's membership in a
// tag is bit 7-(i mod 8) of byte i/8.
package manifest

import (
	"bytes"
	"fmt"

	"github.com/wowemulation-dev/cascette-go/endian"
)

// Tag is one parsed tag: a name, a type (the format's own classification,
// e.g. locale vs platform), and a bitmask over the entry array.
type Tag struct {
	Name string
	Type uint16
	Mask []byte
}

// Has reports whether entry index i is a member of t, per the MSB-first
// bit convention.
func (t Tag) Has(i int) bool {
	byteIdx := i / 8
	if byteIdx >= len(t.Mask) {
		return false
	}

	bit := uint(7 - (i % 8))

	return t.Mask[byteIdx]&(1<<bit) != 0
}

// maskBytes returns the number of mask bytes needed for n entries.
func maskBytes(n int) int {
	return (n + 7) / 8
}

// readCString reads a NUL-terminated string starting at data[pos], returning
// the string and the position immediately after the terminator.
func readCString(data []byte, pos int) (string, int, error) {
	end := bytes.IndexByte(data[pos:], 0)
	if end < 0 {
		return "", 0, fmt.Errorf("manifest: unterminated string at offset %d", pos)
	}

	return string(data[pos : pos+end]), pos + end + 1, nil
}

// parseTagTable reads tagCount tags, each sized against entryCount, from
// data starting at pos. Returns the tags and the position immediately
// after the table.
func parseTagTable(data []byte, pos int, tagCount int, entryCount int) ([]Tag, int, error) {
	bpt := maskBytes(entryCount)
	tags := make([]Tag, tagCount)

	for i := 0; i < tagCount; i++ {
		name, next, err := readCString(data, pos)
		if err != nil {
			return nil, 0, fmt.Errorf("manifest: tag %d: %w", i, err)
		}

		pos = next

		if pos+2+bpt > len(data) {
			return nil, 0, fmt.Errorf("manifest: tag %d: truncated", i)
		}

		tagType := endian.BigEndian.Uint16(data[pos : pos+2])
		pos += 2

		mask := append([]byte(nil), data[pos:pos+bpt]...)
		pos += bpt

		tags[i] = Tag{Name: name, Type: tagType, Mask: mask}
	}

	return tags, pos, nil
}

// appendTagTable writes tags in the same layout parseTagTable reads.
func appendTagTable(out []byte, tags []Tag) []byte {
	for _, t := range tags {
		out = append(out, t.Name...)
		out = append(out, 0)
		out = endian.BigEndian.AppendUint16(out, t.Type)
		out = append(out, t.Mask...)
	}

	return out
}

// tagsForEntry returns the names of every tag that includes entry index i,
// in table order.
func tagsForEntry(tags []Tag, i int) []string {
	var names []string

	for _, t := range tags {
		if t.Has(i) {
			names = append(names, t.Name)
		}
	}

	return names
}
