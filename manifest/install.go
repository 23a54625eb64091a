package manifest

import (
	"fmt"

	"github.com/wowemulation-dev/cascette-go/endian"
	"github.com/wowemulation-dev/cascette-go/internal/cerr"
	"github.com/wowemulation-dev/cascette-go/internal/md5key"
)

const (
	installMagic      = "IN"
	installHeaderSize = 2 + 1 + 1 + 2 + 4
)

// InstallHeader is the fixed preamble of an install manifest.
type InstallHeader struct {
	Version    uint8
	CKeySize   uint8
	TagCount   uint16
	EntryCount uint32
}

// InstallEntry is one file to place on disk: its path, content key, and
// decoded size.
type InstallEntry struct {
	Path string
	CKey md5key.Key
	Size uint32
}

// InstallFile is a parsed install manifest.
type InstallFile struct {
	Header  InstallHeader
	Tags    []Tag
	Entries []InstallEntry
}

// ParseInstall decodes a decompressed install-manifest blob.
func ParseInstall(data []byte) (*InstallFile, error) {
	if len(data) < installHeaderSize || string(data[0:2]) != installMagic {
		return nil, cerr.NewFormat(cerr.ErrBadMagic, 0, "manifest: missing IN magic")
	}

	h := InstallHeader{
		Version:    data[2],
		CKeySize:   data[3],
		TagCount:   endian.BigEndian.Uint16(data[4:6]),
		EntryCount: endian.BigEndian.Uint32(data[6:10]),
	}

	pos := installHeaderSize

	tags, pos, err := parseTagTable(data, pos, int(h.TagCount), int(h.EntryCount))
	if err != nil {
		return nil, fmt.Errorf("manifest: install: %w", err)
	}

	entries := make([]InstallEntry, h.EntryCount)

	for i := range entries {
		path, next, err := readCString(data, pos)
		if err != nil {
			return nil, fmt.Errorf("manifest: install: entry %d: %w", i, err)
		}

		pos = next

		if pos+int(h.CKeySize)+4 > len(data) {
			return nil, cerr.NewFormat(cerr.ErrTruncated, int64(pos), "manifest: install: entry %d truncated", i)
		}

		var ckey md5key.Key
		copy(ckey[:], data[pos:pos+int(h.CKeySize)])
		pos += int(h.CKeySize)

		size := endian.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		entries[i] = InstallEntry{Path: path, CKey: ckey, Size: size}
	}

	return &InstallFile{Header: h, Tags: tags, Entries: entries}, nil
}

// Build re-serializes the manifest.
func (f *InstallFile) Build() []byte {
	out := make([]byte, 0, installHeaderSize)
	out = append(out, installMagic...)
	out = append(out, f.Header.Version, f.Header.CKeySize)
	out = endian.BigEndian.AppendUint16(out, f.Header.TagCount)
	out = endian.BigEndian.AppendUint32(out, f.Header.EntryCount)

	out = appendTagTable(out, f.Tags)

	for _, e := range f.Entries {
		out = append(out, e.Path...)
		out = append(out, 0)
		out = append(out, e.CKey[:f.Header.CKeySize]...)
		out = endian.BigEndian.AppendUint32(out, e.Size)
	}

	return out
}

// TagsForEntry returns the names of every tag entry i belongs to.
func (f *InstallFile) TagsForEntry(i int) []string {
	return tagsForEntry(f.Tags, i)
}

// FilesForPlatform returns every entry that is a member of all of
// requiredTags (e.g. {"Windows", "enUS"}).
func (f *InstallFile) FilesForPlatform(requiredTags ...string) []InstallEntry {
	var out []InstallEntry

	for i, e := range f.Entries {
		if hasAllTags(f.Tags, i, requiredTags) {
			out = append(out, e)
		}
	}

	return out
}

func hasAllTags(tags []Tag, i int, names []string) bool {
	for _, name := range names {
		found := false

		for _, t := range tags {
			if t.Name == name && t.Has(i) {
				found = true

				break
			}
		}

		if !found {
			return false
		}
	}

	return true
}
