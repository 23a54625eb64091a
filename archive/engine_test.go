package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wowemulation-dev/cascette-go/internal/md5key"
)

func newTestStorageDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "indices"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))

	return dir
}

func TestEngineWriteThenRead(t *testing.T) {
	dir := newTestStorageDir(t)

	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	content := []byte("hello, archive engine")
	key := md5key.Sum(content)

	require.NoError(t, e.Write(key, content))

	got, err := e.Read(key)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestEngineWriteIsIdempotent(t *testing.T) {
	dir := newTestStorageDir(t)

	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	content := []byte("repeat write")
	key := md5key.Sum(content)

	require.NoError(t, e.Write(key, content))
	require.NoError(t, e.Write(key, content))

	got, err := e.Read(key)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestEngineReadMissingKey(t *testing.T) {
	dir := newTestStorageDir(t)

	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Read(md5key.Sum([]byte("never written")))
	assert.Error(t, err)
}

func TestEngineReadOnlyRejectsWrite(t *testing.T) {
	dir := newTestStorageDir(t)

	e, err := Open(dir, WithReadOnly(true))
	require.NoError(t, err)
	defer e.Close()

	err = e.Write(md5key.Sum([]byte("x")), []byte("x"))
	assert.Error(t, err)
}

func TestEngineArchiveRollover(t *testing.T) {
	dir := newTestStorageDir(t)

	e, err := Open(dir, WithMaxArchiveSize(16))
	require.NoError(t, err)
	defer e.Close()

	for i := 0; i < 5; i++ {
		content := []byte{byte(i), byte(i), byte(i), byte(i), byte(i), byte(i), byte(i), byte(i), byte(i), byte(i)}
		require.NoError(t, e.Write(md5key.Sum(content), content))
	}

	assert.Greater(t, len(e.files), 1, "small max archive size should force rollover across multiple archives")
}

func TestEngineVerifyCollectsAllFailures(t *testing.T) {
	dir := newTestStorageDir(t)

	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	good := []byte("good content")
	require.NoError(t, e.Write(md5key.Sum(good), good))

	// Inject a bogus index entry pointing nowhere, alongside the real one.
	bogus := md5key.Sum([]byte("bogus"))
	e.indices.Put(bogus.Truncated(9), Location{ArchiveID: 9999, Offset: 0, Size: 4})

	failed := e.Verify()
	require.Len(t, failed, 1)
	assert.Equal(t, string(bogus.Truncated(9)), failed[0])
}
