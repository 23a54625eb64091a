package cdnconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBuildConfig = `# Build Configuration

root = abc123
encoding = def456 ghi789
encoding-size = 100 90
install = aaa111 bbb222 ccc333 ddd444
install-size = 10 20
build-name = WOW-12345patch10.0.0
build-uid = wow
`

func TestParseCDNConfigFields(t *testing.T) {
	c, err := Parse(strings.NewReader(sampleBuildConfig))
	require.NoError(t, err)

	assert.Equal(t, "abc123", c.Root())

	enc, ok := c.Encoding()
	require.True(t, ok)
	assert.Equal(t, "def456", enc.ContentKey)
	assert.Equal(t, "ghi789", enc.EncodingKey)
	assert.True(t, enc.HasSize)
	assert.Equal(t, uint64(100), enc.Size)

	install := c.Install()
	require.Len(t, install, 2)
	assert.Equal(t, "aaa111", install[0].ContentKey)
	assert.Equal(t, "bbb222", install[0].EncodingKey)
	assert.Equal(t, uint64(10), install[0].Size)
	assert.Equal(t, "ccc333", install[1].ContentKey)
	assert.Equal(t, uint64(20), install[1].Size)

	assert.Equal(t, "WOW-12345patch10.0.0", c.BuildName())
	assert.Equal(t, "wow", c.BuildUID())
}

func TestCDNConfigIgnoresCommentsAndBlankLines(t *testing.T) {
	c, err := Parse(strings.NewReader("# comment\n\nroot = xyz\n"))
	require.NoError(t, err)
	assert.Equal(t, "xyz", c.Root())
}

func TestCDNConfigBuildRoundTrip(t *testing.T) {
	c, err := Parse(strings.NewReader(sampleBuildConfig))
	require.NoError(t, err)

	rebuilt := c.Build()

	reparsed, err := Parse(strings.NewReader(string(rebuilt)))
	require.NoError(t, err)
	assert.Equal(t, c.Root(), reparsed.Root())

	install := reparsed.Install()
	require.Len(t, install, 2)
	assert.Equal(t, "aaa111", install[0].ContentKey)
}

func TestCDNConfigMissingFieldsReturnEmpty(t *testing.T) {
	c, err := Parse(strings.NewReader("root = abc\n"))
	require.NoError(t, err)

	_, ok := c.Encoding()
	assert.False(t, ok)
	assert.Empty(t, c.Install())
	assert.Equal(t, "", c.BuildName())
}
