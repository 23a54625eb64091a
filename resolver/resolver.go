// Package resolver composes the root/TVFS lookup, encoding table, and
// archive engine into the single multi-hop pipeline CASC content access
// follows: a file-data-id or virtual path resolves to a content key, the
// content key resolves to one or more encoding keys, and an encoding key
// resolves to archive bytes.
package resolver

import (
	"fmt"

	"github.com/wowemulation-dev/cascette-go/archive"
	"github.com/wowemulation-dev/cascette-go/encodingtable"
	"github.com/wowemulation-dev/cascette-go/format"
	"github.com/wowemulation-dev/cascette-go/internal/cerr"
	"github.com/wowemulation-dev/cascette-go/internal/md5key"
	"github.com/wowemulation-dev/cascette-go/root"
	"github.com/wowemulation-dev/cascette-go/tvfs"
)

// Resolver chains a name index (root or TVFS, whichever the build uses),
// an encoding table, and an archive engine, so callers can go straight
// from a path or file-data-id to file bytes.
type Resolver struct {
	root     *root.File
	tvfs     *tvfs.File
	encoding *encodingtable.Table
	archives *archive.Engine
}

// New builds a Resolver. Exactly one of root or tvfsFile should be
// non-nil, matching which name index the build shipped; encoding and
// archives are required.
func New(rootFile *root.File, tvfsFile *tvfs.File, encoding *encodingtable.Table, archives *archive.Engine) *Resolver {
	return &Resolver{root: rootFile, tvfs: tvfsFile, encoding: encoding, archives: archives}
}

// ResolveByFileDataID walks the root manifest from a file-data-id to raw
// bytes, decoding every encoding-key candidate through the archive engine
// until one succeeds.
func (r *Resolver) ResolveByFileDataID(fileDataID uint32, locale format.LocaleFlags, content format.ContentFlags) ([]byte, error) {
	if r.root == nil {
		return nil, fmt.Errorf("resolver: no root manifest loaded")
	}

	ckey, ok := r.root.ResolveByID(fileDataID, locale, content)
	if !ok {
		return nil, cerr.NewFormat(cerr.ErrNotFound, 0, "resolver: file-data-id %d has no matching root entry", fileDataID)
	}

	return r.readByCKey(ckey)
}

// ResolveByPath walks the root manifest from a virtual path, hashing it
// the same way the client does.
func (r *Resolver) ResolveByPath(path string, locale format.LocaleFlags, content format.ContentFlags) ([]byte, error) {
	if r.root == nil {
		return nil, fmt.Errorf("resolver: no root manifest loaded")
	}

	ckey, ok := r.root.ResolveByPath(path, locale, content)
	if !ok {
		return nil, cerr.NewFormat(cerr.ErrNotFound, 0, "resolver: path %q has no matching root entry", path)
	}

	return r.readByCKey(ckey)
}

// ResolveTVFSPath walks the TVFS path table instead of root, for builds
// that ship a virtual filesystem manifest.
func (r *Resolver) ResolveTVFSPath(path string) ([]byte, error) {
	if r.tvfs == nil {
		return nil, fmt.Errorf("resolver: no TVFS manifest loaded")
	}

	spans, ok := r.tvfs.ResolvePath(path)
	if !ok {
		return nil, cerr.NewFormat(cerr.ErrNotFound, 0, "resolver: path %q not found in TVFS", path)
	}

	var out []byte

	for _, span := range spans {
		var ekey md5key.Key

		copy(ekey[:], span.EKey)

		content, err := r.archives.Read(ekey)
		if err != nil {
			return nil, fmt.Errorf("resolver: reading TVFS span for %q: %w", path, err)
		}

		out = append(out, content...)
	}

	return out, nil
}

// readByCKey resolves a content key to its encoding keys and reads the
// first one the archive engine can decode.
func (r *Resolver) readByCKey(ckey md5key.Key) ([]byte, error) {
	ekeys := r.encoding.FindAllEncodings(ckey)
	if len(ekeys) == 0 {
		return nil, cerr.NewFormat(cerr.ErrNotFound, 0, "resolver: content key %s has no encoding-table entry", ckey.String())
	}

	var lastErr error

	for _, ekey := range ekeys {
		content, err := r.archives.Read(ekey)
		if err == nil {
			return content, nil
		}

		lastErr = err
	}

	return nil, fmt.Errorf("resolver: all %d encoding keys for %s failed: %w", len(ekeys), ckey.String(), lastErr)
}

// ResolveEncodingKey reads raw archive content for an already-known
// encoding key, skipping the root/TVFS and encoding-table hops. Useful
// when a caller already holds an encoding key (e.g. from a download or
// install manifest entry).
func (r *Resolver) ResolveEncodingKey(ekey md5key.Key) ([]byte, error) {
	return r.archives.Read(ekey)
}
