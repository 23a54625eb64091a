package root

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wowemulation-dev/cascette-go/format"
	"github.com/wowemulation-dev/cascette-go/internal/md5key"
)

func TestRootV2BuildParseResolve(t *testing.T) {
	ckey, err := md5key.ParseKey("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	path := "Test\\File\\Path.blp"

	entry := Entry{
		FileDataID:   12345,
		CKey:         ckey,
		NameHash:     HashPath(path),
		HasNameHash:  true,
		ContentFlags: format.ContentFlagInstall,
		LocaleFlags:  format.LocaleEnUS,
	}

	f := NewFile(format.RootV2, []Entry{entry})

	data := f.Build()

	parsed, err := Parse(data)
	require.NoError(t, err)
	require.NotNil(t, parsed.Header)
	assert.Equal(t, format.RootV2, parsed.Version)

	gotByID, ok := parsed.ResolveByID(12345, format.LocaleEnUS, format.ContentFlagInstall)
	require.True(t, ok)
	assert.Equal(t, ckey, gotByID)

	gotByPath, ok := parsed.ResolveByPath("test/file/path.blp", format.LocaleEnUS, format.ContentFlagInstall)
	require.True(t, ok)
	assert.Equal(t, ckey, gotByPath)

	_, ok = parsed.ResolveByID(12345, format.LocaleFrFR, format.ContentFlagInstall)
	assert.False(t, ok)
}

func TestHashPathCaseAndSeparatorInsensitive(t *testing.T) {
	assert.Equal(t, HashPath(`Interface\Icons\Test.blp`), HashPath("interface/icons/test.blp"))
}

func TestRootV1NoHeader(t *testing.T) {
	ckey := md5key.Sum([]byte("content"))

	entry := Entry{
		FileDataID:   1,
		CKey:         ckey,
		ContentFlags: 0,
		LocaleFlags:  format.LocaleAll,
	}

	f := NewFile(format.RootV1, []Entry{entry})
	data := f.Build()

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Nil(t, parsed.Header)
	assert.Equal(t, format.RootV1, parsed.Version)

	got, ok := parsed.ResolveByID(1, format.LocaleEnUS, 0)
	require.True(t, ok)
	assert.Equal(t, ckey, got)
}

func TestResolveMissingLocaleFails(t *testing.T) {
	ckey := md5key.Sum([]byte("x"))

	entry := Entry{
		FileDataID:   1,
		CKey:         ckey,
		ContentFlags: format.ContentFlagInstall,
		LocaleFlags:  format.LocaleEnUS,
	}

	f := NewFile(format.RootV1, []Entry{entry})
	_, ok := f.ResolveByID(1, format.LocaleDeDE, format.ContentFlagInstall)
	assert.False(t, ok)
}
