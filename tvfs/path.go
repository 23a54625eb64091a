package tvfs

import (
	"fmt"

	"github.com/wowemulation-dev/cascette-go/endian"
	"github.com/wowemulation-dev/cascette-go/internal/cerr"
)

// noFileID is the sentinel FileID for a directory node with no associated
// file reference.
const noFileID = -1

// Node is one path-table record: a single path component, an optional
// reference into the VFS table, and its children.
type Node struct {
	Name     string
	FileID   int32 // noFileID when this node carries no file reference
	Children []uint32
}

// HasFile reports whether the node references a VFS entry.
func (n Node) HasFile() bool { return n.FileID != noFileID }

// PathTable is the prefix tree of path components. Node 0 is always the
// root.
type PathTable struct {
	Nodes []Node
}

// Root returns the table's root node.
func (t *PathTable) Root() Node { return t.Nodes[0] }

// Node returns the node at index id, or false if id is out of range.
func (t *PathTable) Node(id uint32) (Node, bool) {
	if int(id) >= len(t.Nodes) {
		return Node{}, false
	}

	return t.Nodes[id], true
}

// parsePathTable decodes the slice at data[offset:offset+size]. Each node
// is encoded as: name-length u16 BE, name bytes, file-id i32 BE (-1
// sentinel), child-count u16 BE, children [u32 BE]*. Nodes are stored in a
// flat array, referenced by index; node 0 is the root.
func parsePathTable(data []byte, offset, size uint32) (*PathTable, error) {
	if size == 0 {
		return &PathTable{Nodes: []Node{{FileID: noFileID}}}, nil
	}

	region, err := slice(data, offset, size, "path table")
	if err != nil {
		return nil, err
	}

	be := endian.BigEndian

	var nodes []Node

	pos := 0
	for pos < len(region) {
		if pos+2 > len(region) {
			return nil, cerr.NewFormat(cerr.ErrTruncated, int64(offset)+int64(pos), "tvfs: path table: truncated name length")
		}

		nameLen := int(be.Uint16(region[pos : pos+2]))
		pos += 2

		if pos+nameLen > len(region) {
			return nil, cerr.NewFormat(cerr.ErrTruncated, int64(offset)+int64(pos), "tvfs: path table: truncated name")
		}

		name := string(region[pos : pos+nameLen])
		pos += nameLen

		if pos+4+2 > len(region) {
			return nil, cerr.NewFormat(cerr.ErrTruncated, int64(offset)+int64(pos), "tvfs: path table: truncated node tail")
		}

		fileID := int32(be.Uint32(region[pos : pos+4]))
		pos += 4

		childCount := int(be.Uint16(region[pos : pos+2]))
		pos += 2

		if pos+childCount*4 > len(region) {
			return nil, cerr.NewFormat(cerr.ErrTruncated, int64(offset)+int64(pos), "tvfs: path table: truncated children")
		}

		children := make([]uint32, childCount)
		for i := range children {
			children[i] = be.Uint32(region[pos : pos+4])
			pos += 4
		}

		nodes = append(nodes, Node{Name: name, FileID: fileID, Children: children})
	}

	if len(nodes) == 0 {
		nodes = []Node{{FileID: noFileID}}
	}

	return &PathTable{Nodes: nodes}, nil
}

func appendPathTable(out []byte, t *PathTable) []byte {
	be := endian.BigEndian

	for _, n := range t.Nodes {
		out = be.AppendUint16(out, uint16(len(n.Name)))
		out = append(out, n.Name...)
		out = be.AppendUint32(out, uint32(n.FileID))
		out = be.AppendUint16(out, uint16(len(n.Children)))

		for _, c := range n.Children {
			out = be.AppendUint32(out, c)
		}
	}

	return out
}

func slice(data []byte, offset, size uint32, what string) ([]byte, error) {
	start := int(offset)
	end := start + int(size)

	if start < 0 || end > len(data) || end < start {
		return nil, fmt.Errorf("tvfs: %s region [%d,%d) out of bounds (len %d)", what, start, end, len(data))
	}

	return data[start:end], nil
}
