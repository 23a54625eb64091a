package espec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNone(t *testing.T) {
	spec, err := Parse("n")
	require.NoError(t, err)
	assert.Equal(t, NoneSpec{}, spec)
	assert.Equal(t, "n", spec.String())
}

func TestParseZlibBare(t *testing.T) {
	spec, err := Parse("z")
	require.NoError(t, err)
	assert.Equal(t, ZlibSpec{}, spec)
}

func TestParseZlibLevel(t *testing.T) {
	spec, err := Parse("z:{9}")
	require.NoError(t, err)
	assert.Equal(t, ZlibSpec{Level: 9}, spec)
	assert.Equal(t, "z:{9}", spec.String())
}

func TestParseZlibLevelAndWindow(t *testing.T) {
	spec, err := Parse("z:{6,mpq}")
	require.NoError(t, err)
	assert.Equal(t, ZlibSpec{Level: 6, Window: WindowMPQ}, spec)
	assert.Equal(t, "z:{6,mpq}", spec.String())
}

func TestParseZlibLevelOutOfRange(t *testing.T) {
	_, err := Parse("z:{42}")
	assert.Error(t, err)
}

func TestParseBlockSingleVariable(t *testing.T) {
	spec, err := Parse("b:{16K=z,*=n}")
	require.NoError(t, err)

	bs, ok := spec.(BlockSpec)
	require.True(t, ok)
	require.Len(t, bs.Entries, 2)

	assert.Equal(t, int64(16*1024), bs.Entries[0].Size)
	assert.Equal(t, ZlibSpec{}, bs.Entries[0].Spec)
	assert.True(t, bs.Entries[1].Variable)
	assert.Equal(t, NoneSpec{}, bs.Entries[1].Spec)
}

func TestParseBlockTwoVariableRejected(t *testing.T) {
	_, err := Parse("b:{*=n,*=z}")
	assert.Error(t, err)
}

func TestParseBlockRepeatCount(t *testing.T) {
	spec, err := Parse("b:{1M*3=n,*=z}")
	require.NoError(t, err)

	bs := spec.(BlockSpec)
	assert.Equal(t, int64(1024*1024), bs.Entries[0].Size)
	assert.Equal(t, 3, bs.Entries[0].Repeat)
}

func TestParseEncrypt(t *testing.T) {
	spec, err := Parse("e:{1234567890ABCDEF,aabbccdd,z}")
	require.NoError(t, err)

	es, ok := spec.(EncryptSpec)
	require.True(t, ok)
	assert.Equal(t, "1234567890ABCDEF", es.KeyID)
	assert.Equal(t, "aabbccdd", es.IVHex)
	assert.Equal(t, ZlibSpec{}, es.Inner)
}

func TestParseEncryptBadKeyID(t *testing.T) {
	_, err := Parse("e:{short,aabbccdd,n}")
	assert.Error(t, err)
}

func TestParseNestedBlockInBlock(t *testing.T) {
	spec, err := Parse("b:{16K=b:{8K=z,*=n},*=n}")
	require.NoError(t, err)

	bs := spec.(BlockSpec)
	_, ok := bs.Entries[0].Spec.(BlockSpec)
	assert.True(t, ok)
}

func TestCanonicalRoundTrip(t *testing.T) {
	const in = "b:{16K=z:{9,mpq},*=n}"

	spec, err := Parse(in)
	require.NoError(t, err)
	assert.Equal(t, in, spec.String())
}

func TestParseTrailingGarbage(t *testing.T) {
	_, err := Parse("n garbage")
	assert.Error(t, err)
}
