package cascette

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wowemulation-dev/cascette-go/format"
	"github.com/wowemulation-dev/cascette-go/internal/md5key"
	"github.com/wowemulation-dev/cascette-go/root"
)

// buildEncodingTable assembles a minimal one-page-per-half encoding table
// covering every (ckey, ekey) pair given, mirroring the on-wire layout
// encodingtable.Parse expects.
func buildEncodingTable(t *testing.T, pairs map[md5key.Key]md5key.Key) []byte {
	t.Helper()

	type kv struct{ ckey, ekey md5key.Key }

	sorted := make([]kv, 0, len(pairs))
	for c, e := range pairs {
		sorted = append(sorted, kv{c, e})
	}

	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].ckey[:], sorted[j].ckey[:]) < 0
	})

	const pageSizeKB = 4
	const pageSize = pageSizeKB * 1024

	espec := "n"

	ckeyPage := make([]byte, pageSize)
	pos := 0

	for _, e := range sorted {
		ckeyPage[pos] = 1
		put40BE(ckeyPage[pos+1:pos+6], 100)
		copy(ckeyPage[pos+6:pos+22], e.ckey[:])
		copy(ckeyPage[pos+22:pos+38], e.ekey[:])
		pos += 38
	}

	ekeySorted := append([]kv(nil), sorted...)
	sort.Slice(ekeySorted, func(i, j int) bool {
		return bytes.Compare(ekeySorted[i].ekey[:], ekeySorted[j].ekey[:]) < 0
	})

	ekeyPage := make([]byte, pageSize)
	pos = 0

	for _, e := range ekeySorted {
		copy(ekeyPage[pos:pos+16], e.ekey[:])
		binary.BigEndian.PutUint32(ekeyPage[pos+16:pos+20], 0)
		put40BE(ekeyPage[pos+20:pos+25], 100)
		pos += 25
	}

	var buf bytes.Buffer

	header := [22]byte{}
	copy(header[0:2], "EN")
	header[2] = 1
	header[3] = 16
	header[4] = 16
	binary.BigEndian.PutUint16(header[5:7], pageSizeKB)
	binary.BigEndian.PutUint16(header[7:9], pageSizeKB)
	binary.BigEndian.PutUint32(header[9:13], 1)
	binary.BigEndian.PutUint32(header[13:17], 1)
	binary.BigEndian.PutUint32(header[18:22], uint32(len(espec)+1))

	buf.Write(header[:])
	buf.WriteString(espec)
	buf.WriteByte(0)

	ckeySum := md5.Sum(ckeyPage)
	buf.Write(sorted[0].ckey[:])
	buf.Write(ckeySum[:])
	buf.Write(ckeyPage)

	ekeySum := md5.Sum(ekeyPage)
	buf.Write(ekeySorted[0].ekey[:])
	buf.Write(ekeySum[:])
	buf.Write(ekeyPage)

	return buf.Bytes()
}

func put40BE(b []byte, v uint64) {
	b[0] = byte(v >> 32)
	b[1] = byte(v >> 24)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 8)
	b[4] = byte(v)
}

func newTestStorageDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "indices"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))

	return dir
}

func TestOpenStorageAndResolver(t *testing.T) {
	dir := newTestStorageDir(t)

	store, err := OpenStorage(dir)
	require.NoError(t, err)
	defer store.Close()

	content := []byte("azeroth.wdt contents")
	contentEKey := md5key.Sum(content)
	contentCKey := md5key.Sum([]byte("content-ckey-seed"))
	require.NoError(t, store.Engine.Write(contentEKey, content))

	entry := root.Entry{
		FileDataID:   42,
		CKey:         contentCKey,
		NameHash:     root.HashPath(`World\Maps\Azeroth\Azeroth.wdt`),
		HasNameHash:  true,
		ContentFlags: format.ContentFlagInstall,
		LocaleFlags:  format.LocaleEnUS,
	}
	rootFile := root.NewFile(format.RootV2, []root.Entry{entry})
	rootBytes := rootFile.Build()
	rootEKey := md5key.Sum(rootBytes)
	rootCKey := md5key.Sum([]byte("root-ckey-seed"))
	require.NoError(t, store.Engine.Write(rootEKey, rootBytes))

	encodingTableBytes := buildEncodingTable(t, map[md5key.Key]md5key.Key{
		contentCKey: contentEKey,
		rootCKey:    rootEKey,
	})
	encodingEKey := md5key.Sum(encodingTableBytes)
	encodingCKey := md5key.Sum([]byte("encoding-ckey-seed"))
	require.NoError(t, store.Engine.Write(encodingEKey, encodingTableBytes))

	cfgText := "root = " + rootCKey.String() + "\n" +
		"encoding = " + encodingCKey.String() + " " + encodingEKey.String() + "\n"

	cfgPath := filepath.Join(t.TempDir(), "build.config")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgText), 0o644))

	cfg, err := LoadBuildConfig(cfgPath)
	require.NoError(t, err)

	r, err := NewResolver(store, cfg)
	require.NoError(t, err)

	got, err := r.ResolveByPath(`World\Maps\Azeroth\Azeroth.wdt`, format.LocaleEnUS, format.ContentFlagInstall)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	got, err = r.ResolveByFileDataID(42, format.LocaleEnUS, format.ContentFlagInstall)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestVerifyReportsFailuresWithoutAborting(t *testing.T) {
	dir := newTestStorageDir(t)

	store, err := OpenStorage(dir)
	require.NoError(t, err)
	defer store.Close()

	good := []byte("good content")
	require.NoError(t, store.Engine.Write(md5key.Sum(good), good))

	failed := Verify(store)
	assert.Empty(t, failed)
}

func TestLoadKeyringRoundTrip(t *testing.T) {
	cfgText := "key-0123456789ABCDEF = 00112233445566778899AABBCCDDEEFF\n"
	cfgPath := filepath.Join(t.TempDir(), "keyring.txt")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgText), 0o644))

	svc, err := LoadKeyring(cfgPath)
	require.NoError(t, err)

	key, err := svc.Lookup(0x0123456789ABCDEF)
	require.NoError(t, err)
	assert.Len(t, key, 16)
}
