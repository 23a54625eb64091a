package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wowemulation-dev/cascette-go/blte"
	"github.com/wowemulation-dev/cascette-go/format"
	"github.com/wowemulation-dev/cascette-go/internal/cerr"
	"github.com/wowemulation-dev/cascette-go/internal/md5key"
)

// DefaultMaxArchiveSize is the rollover threshold a new Engine uses if
// none is given via WithMaxArchiveSize: the conventional CDN archive
// size cap.
const DefaultMaxArchiveSize = 256 * 1024 * 1024

// EngineOption configures an Engine constructed by Open.
type EngineOption func(*engineOptions)

type engineOptions struct {
	maxArchiveSize int64
	cacheSize      int
	keys           blte.KeyService
	readOnly       bool
}

// WithMaxArchiveSize overrides the archive rollover threshold.
func WithMaxArchiveSize(n int64) EngineOption {
	return func(o *engineOptions) { o.maxArchiveSize = n }
}

// WithCacheSize overrides the content cache's total entry capacity.
func WithCacheSize(n int) EngineOption {
	return func(o *engineOptions) { o.cacheSize = n }
}

// WithKeyService supplies the key service used to decrypt encrypted BLTE
// chunks. Archives with no encrypted content never need one.
func WithKeyService(keys blte.KeyService) EngineOption {
	return func(o *engineOptions) { o.keys = keys }
}

// WithReadOnly opens the engine without permitting Write.
func WithReadOnly(v bool) EngineOption {
	return func(o *engineOptions) { o.readOnly = v }
}

// Engine is the content-addressed archive store: the merged index set,
// the open `data.NNN` archive files, and the content cache sitting in
// front of them.
type Engine struct {
	root     string
	indices  *IndexSet
	cache    *ContentCache
	keys     blte.KeyService
	readOnly bool
	maxSize  int64

	mu          sync.Mutex
	files       map[uint16]*File
	currentID   uint16
	haveCurrent bool
}

// Open loads an existing `indices/` directory and scans `data/` for
// archive files rooted at dir (an on-disk CASC storage directory).
func Open(dir string, opts ...EngineOption) (*Engine, error) {
	o := engineOptions{
		maxArchiveSize: DefaultMaxArchiveSize,
		cacheSize:      4096,
	}
	for _, opt := range opts {
		opt(&o)
	}

	indices, err := LoadIndicesDir(filepath.Join(dir, "indices"))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		root:     dir,
		indices:  indices,
		cache:    NewContentCache(o.cacheSize),
		keys:     o.keys,
		readOnly: o.readOnly,
		maxSize:  o.maxArchiveSize,
		files:    make(map[uint16]*File),
	}

	if err := e.scanArchives(); err != nil {
		return nil, err
	}

	return e, nil
}

func (e *Engine) scanArchives() error {
	dataDir := filepath.Join(e.root, "data")

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("archive: reading data dir: %w", err)
	}

	var maxID uint16

	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}

		var id uint16
		if _, err := fmt.Sscanf(ent.Name(), "data.%d", &id); err != nil {
			continue
		}

		if !e.haveCurrent || id > maxID {
			maxID = id
			e.haveCurrent = true
		}
	}

	if e.haveCurrent {
		e.currentID = maxID
	}

	return nil
}

func (e *Engine) fileFor(id uint16) (*File, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if f, ok := e.files[id]; ok {
		return f, nil
	}

	path := archiveFilePath(filepath.Join(e.root, "data"), id)

	f, err := OpenFile(path, id)
	if err != nil {
		return nil, err
	}

	e.files[id] = f

	return f, nil
}

// Close releases all open archive file handles.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error

	for _, f := range e.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Read returns the decompressed content for a full (untruncated) encoding
// key, consulting the content cache before the on-disk index and archive
// files.
func (e *Engine) Read(ekey md5key.Key) ([]byte, error) {
	if v, ok := e.cache.Get(ekey[:]); ok {
		return append([]byte(nil), v...), nil
	}

	loc, ok := e.indices.Lookup(ekey)
	if !ok {
		return nil, cerr.NewFormat(cerr.ErrNotFound, 0, "archive: encoding key %s not indexed", ekey.String())
	}

	f, err := e.fileFor(loc.ArchiveID)
	if err != nil {
		return nil, err
	}

	content, err := f.ReadContent(loc, e.keys)
	if err != nil {
		return nil, fmt.Errorf("archive: reading %s: %w", ekey.String(), err)
	}

	e.cache.Put(ekey[:], content)

	return content, nil
}

// Write BLTE-compresses data (single-chunk zlib) and appends it to the
// current archive, creating a new archive if the current one would
// exceed the configured max size, or none is open yet. A write for an
// already-indexed key is a no-op, matching client dedup behaviour.
func (e *Engine) Write(ekey md5key.Key, data []byte) error {
	if e.readOnly {
		return fmt.Errorf("archive: engine is read-only")
	}

	if _, ok := e.indices.Lookup(ekey); ok {
		return nil
	}

	compressed, err := blte.Build([]blte.ChunkSpec{{Data: data, Mode: format.ModeZlib}})
	if err != nil {
		return fmt.Errorf("archive: compressing %s: %w", ekey.String(), err)
	}

	loc, err := e.writeToArchive(compressed)
	if err != nil {
		return err
	}

	e.indices.Put(ekey[:], loc)
	e.cache.Put(ekey[:], data)

	return nil
}

func (e *Engine) writeToArchive(data []byte) (Location, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var f *File

	if e.haveCurrent {
		cur, ok := e.files[e.currentID]
		if !ok {
			opened, err := OpenFile(archiveFilePath(filepath.Join(e.root, "data"), e.currentID), e.currentID)
			if err != nil {
				return Location{}, err
			}

			e.files[e.currentID] = opened
			cur = opened
		}

		if cur.Size()+int64(len(data)) <= e.maxSize {
			f = cur
		}
	}

	if f == nil {
		nextID := e.currentID
		if e.haveCurrent {
			nextID++
		}

		created, err := CreateFile(archiveFilePath(filepath.Join(e.root, "data"), nextID), nextID)
		if err != nil {
			return Location{}, err
		}

		e.files[nextID] = created
		e.currentID = nextID
		e.haveCurrent = true
		f = created
	}

	offset, err := f.Append(data)
	if err != nil {
		return Location{}, err
	}

	return Location{ArchiveID: f.ID(), Offset: offset, Size: uint32(len(data))}, nil
}

// Verify decodes every indexed entry and returns the keys, as stored in
// the index (truncated or full), of any that fail to decode. It never
// stops at the first failure.
func (e *Engine) Verify() []string {
	var failed []string

	for key, loc := range e.indices.All() {
		f, err := e.fileFor(loc.ArchiveID)
		if err != nil {
			failed = append(failed, key)
			continue
		}

		if _, err := f.ReadContent(loc, e.keys); err != nil {
			failed = append(failed, key)
		}
	}

	return failed
}
