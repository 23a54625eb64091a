package tvfs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wowemulation-dev/cascette-go/internal/cerr"
)

// File is a fully parsed TVFS manifest.
type File struct {
	Header    Header
	Paths     *PathTable
	VFS       *VFSTable
	Container *ContainerTable
	EST       *ESTTable // nil unless Header.HasEncodingSpec()
}

// Parse decodes a decompressed TVFS blob.
func Parse(data []byte) (*File, error) {
	h, _, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	if err := h.validate(); err != nil {
		return nil, fmt.Errorf("tvfs: %w", err)
	}

	paths, err := parsePathTable(data, h.PathTableOffset, h.PathTableSize)
	if err != nil {
		return nil, err
	}

	vfsTable, err := parseVFSTable(data, h.VFSTableOffset, h.VFSTableSize)
	if err != nil {
		return nil, err
	}

	container, err := parseContainerTable(data, h.CFTTableOffset, h.CFTTableSize, h)
	if err != nil {
		return nil, err
	}

	var est *ESTTable

	if h.HasEncodingSpec() {
		est, err = parseESTTable(data, h.ESTTableOffset, h.ESTTableSize)
		if err != nil {
			return nil, err
		}
	}

	return &File{Header: h, Paths: paths, VFS: vfsTable, Container: container, EST: est}, nil
}

// Build re-serializes f, recomputing table offsets from the header's
// declared region order: header, path table, VFS table, container table,
// then the optional EST table.
func (f *File) Build() []byte {
	h := f.Header

	h.PathTableOffset = uint32(h.size())
	h.PathTableSize = uint32(len(appendPathTable(nil, f.Paths)))

	h.VFSTableOffset = h.PathTableOffset + h.PathTableSize
	h.VFSTableSize = uint32(len(appendVFSTable(nil, f.VFS)))

	h.CFTTableOffset = h.VFSTableOffset + h.VFSTableSize
	h.CFTTableSize = uint32(len(appendContainerTable(nil, f.Container, h)))

	if h.HasEncodingSpec() && f.EST != nil {
		h.ESTTableOffset = h.CFTTableOffset + h.CFTTableSize
		h.ESTTableSize = uint32(len(appendESTTable(nil, f.EST)))
	}

	out := appendHeader(nil, h)
	out = appendPathTable(out, f.Paths)
	out = appendVFSTable(out, f.VFS)
	out = appendContainerTable(out, f.Container, h)

	if h.HasEncodingSpec() && f.EST != nil {
		out = appendESTTable(out, f.EST)
	}

	return out
}

// ResolvePath walks the path table for a virtual path like "a/b/c.dat" and
// returns its span run, or false if no such path exists.
func (f *File) ResolvePath(path string) (spans []ContainerEntry, ok bool) {
	components := splitPath(path)

	node := f.Paths.Root()

	for _, comp := range components {
		child, found := f.findChild(node, comp)
		if !found {
			return nil, false
		}

		node = child
	}

	if !node.HasFile() {
		return nil, false
	}

	return f.spansForFile(uint32(node.FileID))
}

func (f *File) findChild(parent Node, name string) (Node, bool) {
	for _, id := range parent.Children {
		child, ok := f.Paths.Node(id)
		if !ok {
			continue
		}

		if child.Name == name {
			return child, true
		}
	}

	return Node{}, false
}

func (f *File) spansForFile(fileID uint32) ([]ContainerEntry, bool) {
	vfsEntry, ok := f.VFS.Entry(fileID)
	if !ok {
		return nil, false
	}

	spans := make([]ContainerEntry, 0, vfsEntry.SpanCount)

	for i := uint32(0); i < uint32(vfsEntry.SpanCount); i++ {
		entry, ok := f.Container.Entry(vfsEntry.SpanOffset + i)
		if !ok {
			return nil, false
		}

		spans = append(spans, entry)
	}

	return spans, true
}

// Entry pairs a resolved virtual path with its span run, as yielded by
// Iterate.
type Entry struct {
	Path  string
	Spans []ContainerEntry
}

// Iterate performs a pre-order traversal of the path table, yielding every
// node with a file reference alongside its resolved spans. Traversal
// order is deterministic: children are visited in ascending name order,
// independent of how the manifest stored child-id order on disk.
func (f *File) Iterate() ([]Entry, error) {
	var out []Entry

	var walk func(node Node, prefix string) error

	walk = func(node Node, prefix string) error {
		children := make([]Node, 0, len(node.Children))

		for _, id := range node.Children {
			child, ok := f.Paths.Node(id)
			if !ok {
				return cerr.NewFormat(cerr.ErrInvalidField, int64(id), "tvfs: dangling child node id %d", id)
			}

			children = append(children, child)
		}

		sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })

		for _, child := range children {
			full := child.Name
			if prefix != "" {
				full = prefix + "/" + child.Name
			}

			if child.HasFile() {
				spans, ok := f.spansForFile(uint32(child.FileID))
				if ok {
					out = append(out, Entry{Path: full, Spans: spans})
				}
			}

			if err := walk(child, full); err != nil {
				return err
			}
		}

		return nil
	}

	if err := walk(f.Paths.Root(), ""); err != nil {
		return nil, err
	}

	return out, nil
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
