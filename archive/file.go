package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/wowemulation-dev/cascette-go/blte"
)

// File wraps one `data.NNN` archive blob file, serializing reads and
// writes through a mutex since *os.File's read/write position is shared
// state across concurrent callers.
type File struct {
	mu   sync.Mutex
	f    *os.File
	id   uint16
	path string
	size int64
}

// OpenFile opens an existing archive file for reading and appending.
func OpenFile(path string, id uint16) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("archive: stat %s: %w", path, err)
	}

	return &File{f: f, id: id, path: path, size: info.Size()}, nil
}

// CreateFile creates a new, empty archive file.
func CreateFile(path string, id uint16) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("archive: create %s: %w", path, err)
	}

	return &File{f: f, id: id, path: path}, nil
}

// ID returns the archive's numeric id, as encoded in its `data.NNN` name.
func (af *File) ID() uint16 { return af.id }

// Size returns the archive's current length in bytes.
func (af *File) Size() int64 {
	af.mu.Lock()
	defer af.mu.Unlock()

	return af.size
}

// Close closes the underlying file handle.
func (af *File) Close() error {
	af.mu.Lock()
	defer af.mu.Unlock()

	return af.f.Close()
}

// ReadAt reads the size bytes stored at offset, the BLTE-compressed blob
// an index entry points at.
func (af *File) ReadAt(offset uint64, size uint32) ([]byte, error) {
	af.mu.Lock()
	defer af.mu.Unlock()

	buf := make([]byte, size)
	if _, err := af.f.ReadAt(buf, int64(offset)); err != nil {
		return nil, fmt.Errorf("archive: read %s at %d: %w", af.path, offset, err)
	}

	return buf, nil
}

// ReadContent reads and BLTE-decodes the content at a Location, using
// keys to resolve any encrypted chunks.
func (af *File) ReadContent(loc Location, keys blte.KeyService) ([]byte, error) {
	raw, err := af.ReadAt(loc.Offset, loc.Size)
	if err != nil {
		return nil, err
	}

	bf, err := blte.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("archive: parsing BLTE at offset %d: %w", loc.Offset, err)
	}

	return bf.Decompress(keys)
}

// StreamContent BLTE-decodes the content at a Location directly into w,
// without materializing the full decompressed payload in memory.
func (af *File) StreamContent(w io.Writer, loc Location, keys blte.KeyService) error {
	raw, err := af.ReadAt(loc.Offset, loc.Size)
	if err != nil {
		return err
	}

	bf, err := blte.Parse(raw)
	if err != nil {
		return fmt.Errorf("archive: parsing BLTE at offset %d: %w", loc.Offset, err)
	}

	return bf.ExtractTo(w, keys)
}

// Append writes data to the end of the archive and returns the offset it
// was written at.
func (af *File) Append(data []byte) (offset uint64, err error) {
	af.mu.Lock()
	defer af.mu.Unlock()

	offset = uint64(af.size)

	n, err := af.f.WriteAt(data, int64(offset))
	if err != nil {
		return 0, fmt.Errorf("archive: append to %s: %w", af.path, err)
	}

	af.size += int64(n)

	return offset, nil
}

// archiveFileName returns the canonical `data.NNN` name for an archive id.
func archiveFileName(id uint16) string {
	return fmt.Sprintf("data.%03d", id)
}

// archiveFilePath joins dataDir with an archive id's canonical file name.
func archiveFilePath(dataDir string, id uint16) string {
	return filepath.Join(dataDir, archiveFileName(id))
}
