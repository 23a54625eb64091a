// Package cascette provides a complete, from-scratch Go implementation of
// Blizzard's NGDP/CASC content-distribution format: the BLTE chunk codec,
// the paged encoding table, the root and TVFS name indexes, install/
// download/size/patch manifests, the CDN build-config parser, and the
// archive engine that stores and serves the underlying content.
//
// # Core Features
//
//   - BLTE parsing, per-chunk decoding (none/zlib/lz4/encrypted), and
//     encoding from raw chunks back to the wire format
//   - Encoding-table lookups between content keys and encoding keys
//   - Root and TVFS decoders for file-data-id/path → content-key resolution
//   - Install, download, size, patch-archive, and patch-index manifests
//   - ESpec parser for the compression mini-language embedded in manifests
//   - Keyring config and key service for encrypted-chunk key lookup
//   - A bucket-sharded archive engine: index loading, archive file I/O,
//     an LRU content cache, and append-with-rollover writes
//   - A resolver that chains name index → encoding table → archive engine
//     into a single call from path or file-data-id to file bytes
//
// # Basic Usage
//
// Opening a local CASC storage directory and resolving a file by path:
//
//	import "github.com/wowemulation-dev/cascette-go"
//
//	store, err := cascette.OpenStorage("/path/to/Data", cascette.WithCacheSize(4096))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	cfg, err := cascette.LoadBuildConfig("/path/to/config/xx/yy/<build-config-hash>")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resolver, err := cascette.NewResolver(store, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	data, err := resolver.ResolveByPath("World\\Maps\\Azeroth\\Azeroth.wdt",
//	    format.LocaleEnUS, format.ContentFlagInstall)
//
// # Package Structure
//
// This file provides convenient top-level wrappers around the lower-level
// packages (archive, resolver, keyring, cdnconfig, root, tvfs,
// encodingtable, blte, espec). For fine-grained control, import and use
// those packages directly.
package cascette

import (
	"fmt"
	"os"

	"github.com/wowemulation-dev/cascette-go/archive"
	"github.com/wowemulation-dev/cascette-go/cdnconfig"
	"github.com/wowemulation-dev/cascette-go/encodingtable"
	"github.com/wowemulation-dev/cascette-go/internal/md5key"
	"github.com/wowemulation-dev/cascette-go/keyring"
	"github.com/wowemulation-dev/cascette-go/resolver"
	"github.com/wowemulation-dev/cascette-go/root"
	"github.com/wowemulation-dev/cascette-go/tvfs"
)

// StorageOption configures OpenStorage.
type StorageOption func(*storageOptions)

type storageOptions struct {
	archiveOpts []archive.EngineOption
	keys        *keyring.KeyService
}

// WithCacheSize sets the archive engine's content cache capacity, in
// decoded entries. See archive.WithCacheSize.
func WithCacheSize(n int) StorageOption {
	return func(o *storageOptions) {
		o.archiveOpts = append(o.archiveOpts, archive.WithCacheSize(n))
	}
}

// WithMaxArchiveSize caps how large a single data.NNN archive file grows
// before writes roll over to the next one. See archive.WithMaxArchiveSize.
func WithMaxArchiveSize(n int64) StorageOption {
	return func(o *storageOptions) {
		o.archiveOpts = append(o.archiveOpts, archive.WithMaxArchiveSize(n))
	}
}

// WithReadOnly opens the archive engine without permitting Write. See
// archive.WithReadOnly.
func WithReadOnly(v bool) StorageOption {
	return func(o *storageOptions) {
		o.archiveOpts = append(o.archiveOpts, archive.WithReadOnly(v))
	}
}

// WithKeyService supplies a keyring.KeyService for decrypting encrypted
// BLTE chunks encountered while reading archive content. Without one,
// reads of encrypted content fail.
func WithKeyService(keys *keyring.KeyService) StorageOption {
	return func(o *storageOptions) {
		o.keys = keys
	}
}

// Storage is an opened CASC archive engine plus the key service used to
// decrypt its encrypted content, ready to be combined with a build's
// manifests into a Resolver.
type Storage struct {
	Engine *archive.Engine
	Keys   *keyring.KeyService
}

// OpenStorage opens the CASC archive storage rooted at dir (the directory
// containing "indices" and "data" subdirectories, as laid out by the
// Blizzard CDN and local game clients) and returns a Storage ready for
// resolver construction.
//
// Parameters:
//   - dir: path to the storage root (parent of "indices" and "data")
//   - opts: functional options; see WithCacheSize, WithMaxArchiveSize,
//     WithReadOnly, WithKeyService
//
// Returns the opened Storage, or an error if the index files could not be
// loaded.
func OpenStorage(dir string, opts ...StorageOption) (*Storage, error) {
	var so storageOptions

	for _, opt := range opts {
		opt(&so)
	}

	if so.keys == nil {
		so.keys = keyring.NewKeyService()
	}

	engineOpts := append([]archive.EngineOption{archive.WithKeyService(so.keys)}, so.archiveOpts...)

	engine, err := archive.Open(dir, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("cascette: opening storage at %q: %w", dir, err)
	}

	return &Storage{Engine: engine, Keys: so.keys}, nil
}

// Close releases the underlying archive file handles.
func (s *Storage) Close() error {
	return s.Engine.Close()
}

// LoadBuildConfig reads and parses a CDN build configuration file (the
// key=value document referenced by a build's .build.info, commonly named
// by its content hash under "config/xx/yy/<hash>").
func LoadBuildConfig(path string) (*cdnconfig.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cascette: opening build config %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := cdnconfig.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("cascette: parsing build config %q: %w", path, err)
	}

	return cfg, nil
}

// LoadKeyring reads and validates an encrypted-chunk keyring config file
// (`key-<16 hex> = <32 hex>` lines mapping key names to key values; other
// lines are ignored) and returns a KeyService primed with its entries.
func LoadKeyring(path string) (*keyring.KeyService, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cascette: opening keyring %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := keyring.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("cascette: parsing keyring %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cascette: validating keyring %q: %w", path, err)
	}

	svc := keyring.NewKeyService()
	if err := svc.LoadConfig(cfg); err != nil {
		return nil, fmt.Errorf("cascette: loading keyring %q: %w", path, err)
	}

	return svc, nil
}

// NewResolver assembles a resolver.Resolver for a build by reading the
// build's encoding table and root manifest out of storage, per the
// file references named in cfg.
//
// Parameters:
//   - store: an opened Storage (see OpenStorage)
//   - cfg: the build's parsed CDN config (see LoadBuildConfig)
//
// Returns a ready-to-query Resolver, or an error if the encoding table or
// root manifest could not be located and decoded.
//
// Example:
//
//	store, _ := cascette.OpenStorage(dataDir)
//	cfg, _ := cascette.LoadBuildConfig(buildConfigPath)
//	r, err := cascette.NewResolver(store, cfg)
func NewResolver(store *Storage, cfg *cdnconfig.Config) (*resolver.Resolver, error) {
	encodingRef, ok := cfg.Encoding()
	if !ok {
		return nil, fmt.Errorf("cascette: build config has no encoding reference")
	}

	encodingEKey, err := md5key.ParseKey(encodingRef.EncodingKey)
	if err != nil {
		return nil, fmt.Errorf("cascette: parsing encoding table key: %w", err)
	}

	encodingBytes, err := store.Engine.Read(encodingEKey)
	if err != nil {
		return nil, fmt.Errorf("cascette: reading encoding table: %w", err)
	}

	table, err := encodingtable.Parse(encodingBytes)
	if err != nil {
		return nil, fmt.Errorf("cascette: parsing encoding table: %w", err)
	}

	rootCKey, err := md5key.ParseKey(cfg.Root())
	if err != nil {
		return nil, fmt.Errorf("cascette: parsing root content key: %w", err)
	}

	rootEKey, ok := table.FindEncoding(rootCKey)
	if !ok {
		return nil, fmt.Errorf("cascette: root content key has no encoding-table entry")
	}

	rootBytes, err := store.Engine.Read(rootEKey)
	if err != nil {
		return nil, fmt.Errorf("cascette: reading root manifest: %w", err)
	}

	rootFile, err := root.Parse(rootBytes)
	if err != nil {
		return nil, fmt.Errorf("cascette: parsing root manifest: %w", err)
	}

	var tvfsFile *tvfs.File

	return resolver.New(rootFile, tvfsFile, table, store.Engine), nil
}

// NewTVFSResolver is like NewResolver, but builds the name index from a
// TVFS manifest instead of root. Use this for builds whose CDN config
// lacks a "root" key and instead ships a virtual filesystem under the
// "vfs-root" reference.
func NewTVFSResolver(store *Storage, encodingEKey md5key.Key, tvfsEKey md5key.Key) (*resolver.Resolver, error) {
	encodingBytes, err := store.Engine.Read(encodingEKey)
	if err != nil {
		return nil, fmt.Errorf("cascette: reading encoding table: %w", err)
	}

	table, err := encodingtable.Parse(encodingBytes)
	if err != nil {
		return nil, fmt.Errorf("cascette: parsing encoding table: %w", err)
	}

	tvfsBytes, err := store.Engine.Read(tvfsEKey)
	if err != nil {
		return nil, fmt.Errorf("cascette: reading TVFS manifest: %w", err)
	}

	tvfsFile, err := tvfs.Parse(tvfsBytes)
	if err != nil {
		return nil, fmt.Errorf("cascette: parsing TVFS manifest: %w", err)
	}

	var rootFile *root.File

	return resolver.New(rootFile, tvfsFile, table, store.Engine), nil
}

// Verify checks every indexed encoding key in store against its archive
// file, returning the keys (as stored in the index, truncated or full)
// that failed to decode. It never
// aborts on the first failure, so a single corrupt archive doesn't hide
// the rest of the report.
func Verify(store *Storage) []string {
	return store.Engine.Verify()
}
