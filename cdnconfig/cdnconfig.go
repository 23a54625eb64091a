// Package cdnconfig parses build-config and cdn-config files: flat
// line-oriented `key = value value ...` text consumed (never written back
// verbatim by the core; Build exists for test round-trips) from
// <root>/config/HH/HH/<hex32>. Most values are whitespace-separated pairs
// of (content-key, encoding-key) with an optional sibling "<key>-size"
// field carrying matching sizes.
package cdnconfig

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Config is a parsed build/cdn config: an ordered set of key to
// space-separated-value-list entries.
type Config struct {
	keys    []string
	entries map[string][]string
}

// FileRef is one referenced content/encoding key pair with its optional
// declared size, the shape shared by root/install/download/size/patch*
// fields in a build config.
type FileRef struct {
	ContentKey     string
	EncodingKey    string
	HasEncodingKey bool
	Size           uint64
	HasSize        bool
}

// Parse reads a build-config or cdn-config text blob. Every line of the
// form `key = value [value ...]` is recorded; blank lines, lines starting
// with '#', and lines without '=' are skipped.
func Parse(r io.Reader) (*Config, error) {
	c := &Config{entries: make(map[string][]string)}

	scanner := bufio.NewScanner(r)
	// CDN configs can carry long archive lists on the "archives" line.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		i := strings.IndexByte(line, '=')
		if i < 0 {
			continue
		}

		key := strings.TrimSpace(line[:i])
		values := strings.Fields(strings.TrimSpace(line[i+1:]))

		c.set(key, values)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cdnconfig: read: %w", err)
	}

	return c, nil
}

func (c *Config) set(key string, values []string) {
	if _, ok := c.entries[key]; !ok {
		c.keys = append(c.keys, key)
	}

	c.entries[key] = values
}

// Get returns the raw space-separated values for key, and whether key was
// present at all.
func (c *Config) Get(key string) ([]string, bool) {
	v, ok := c.entries[key]
	return v, ok
}

// First returns the first value for key, or "" if key is absent or empty.
func (c *Config) First(key string) string {
	v, ok := c.entries[key]
	if !ok || len(v) == 0 {
		return ""
	}

	return v[0]
}

// Set replaces (or adds) key's values.
func (c *Config) Set(key string, values []string) {
	c.set(key, values)
}

// fieldOrder is the canonical field ordering Blizzard's own tooling emits
// build configs in; any keys outside this set are appended afterward,
// sorted, so Build is deterministic for keys this package doesn't know
// about.
var fieldOrder = []string{
	"root",
	"install", "install-size",
	"download", "download-size",
	"size", "size-size",
	"encoding", "encoding-size",
	"patch", "patch-size",
	"patch-config",
	"patch-index", "patch-index-size",
	"build-name", "build-uid", "build-product", "build-playbuild-installer",
}

// Build re-serializes the config as `key = value value ...` lines, known
// fields first in canonical order, then any remaining keys sorted
// alphabetically.
func (c *Config) Build() []byte {
	var buf strings.Builder

	seen := make(map[string]bool, len(fieldOrder))

	for _, key := range fieldOrder {
		values, ok := c.entries[key]
		if !ok {
			continue
		}

		seen[key] = true

		fmt.Fprintf(&buf, "%s = %s\n", key, strings.Join(values, " "))
	}

	var remaining []string

	for _, key := range c.keys {
		if !seen[key] {
			remaining = append(remaining, key)
		}
	}

	sort.Strings(remaining)

	for _, key := range remaining {
		fmt.Fprintf(&buf, "%s = %s\n", key, strings.Join(c.entries[key], " "))
	}

	return []byte(buf.String())
}

// fileRefs decodes the common (contentKey, encodingKey)* + matching
// "<key>-size" pairing shared by root/install/download/size/patch-index
// fields.
func (c *Config) fileRefs(key string) []FileRef {
	values, ok := c.entries[key]
	if !ok {
		return nil
	}

	sizes, _ := c.entries[key+"-size"]

	var out []FileRef

	for i := 0; i+1 < len(values); i += 2 {
		ref := FileRef{ContentKey: values[i], EncodingKey: values[i+1], HasEncodingKey: true}

		if idx := i / 2; idx < len(sizes) {
			if n, err := strconv.ParseUint(sizes[idx], 10, 64); err == nil {
				ref.Size = n
				ref.HasSize = true
			}
		}

		out = append(out, ref)
	}

	if len(values)%2 == 1 {
		out = append(out, FileRef{ContentKey: values[len(values)-1]})
	}

	return out
}

// Root returns the root manifest's content key.
func (c *Config) Root() string { return c.First("root") }

// Encoding returns the encoding table's content and encoding keys, if
// present.
func (c *Config) Encoding() (FileRef, bool) {
	refs := c.fileRefs("encoding")
	if len(refs) == 0 {
		return FileRef{}, false
	}

	return refs[0], true
}

// Install returns every referenced install-manifest file.
func (c *Config) Install() []FileRef { return c.fileRefs("install") }

// Download returns every referenced download-manifest file.
func (c *Config) Download() []FileRef { return c.fileRefs("download") }

// Size returns every referenced size-manifest file.
func (c *Config) Size() []FileRef { return c.fileRefs("size") }

// PatchIndex returns every referenced patch-index file.
func (c *Config) PatchIndex() []FileRef { return c.fileRefs("patch-index") }

// Patch returns the patch archive's content and encoding keys, if present.
func (c *Config) Patch() (FileRef, bool) {
	refs := c.fileRefs("patch")
	if len(refs) == 0 {
		return FileRef{}, false
	}

	return refs[0], true
}

// BuildName returns the build-name metadata field.
func (c *Config) BuildName() string { return c.First("build-name") }

// BuildUID returns the build-uid metadata field.
func (c *Config) BuildUID() string { return c.First("build-uid") }
