package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeWALPut(t *testing.T) {
	r := Record{Kind: Put, Key: "a", Value: "1"}
	line := EncodeWAL(r)
	assert.Equal(t, "PUT\ta\t1\n", string(line))

	got, err := DecodeWAL("PUT\ta\t1")
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestEncodeDecodeWALDelete(t *testing.T) {
	r := Record{Kind: Del, Key: "a"}
	line := EncodeWAL(r)
	assert.Equal(t, "DEL\ta\t\n", string(line))

	got, err := DecodeWAL("DEL\ta\t")
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestDecodeWALMalformed(t *testing.T) {
	cases := []string{
		"",
		"PUT",
		"PUT\ta",
		"XYZ\ta\tb",
		"PUT\ta\tb\tc",
	}
	for _, c := range cases {
		_, err := DecodeWAL(c)
		assert.Error(t, err, "input: %q", c)
	}
}

func TestEncodeDecodeSST(t *testing.T) {
	line := EncodeSST("k", "v")
	assert.Equal(t, "k\tv\n", string(line))

	key, value, err := DecodeSST("k\tv")
	require.NoError(t, err)
	assert.Equal(t, "k", key)
	assert.Equal(t, "v", value)
}

func TestEncodeDecodeSSTValueContainsTab(t *testing.T) {
	// SplitN(..., 2) ensures only the first tab separates key from value,
	// so a value is free to contain tabs even though ValidateKeyValue
	// would reject one at the API boundary.
	key, value, err := DecodeSST("k\tv1\tv2")
	require.NoError(t, err)
	assert.Equal(t, "k", key)
	assert.Equal(t, "v1\tv2", value)
}

func TestValidateKeyValue(t *testing.T) {
	assert.NoError(t, ValidateKeyValue("k", "v"))
	assert.NoError(t, ValidateKeyValue("k", ""))
	assert.Error(t, ValidateKeyValue("", "v"))
	assert.Error(t, ValidateKeyValue("k\tx", "v"))
	assert.Error(t, ValidateKeyValue("k\nx", "v"))
	assert.Error(t, ValidateKeyValue("k", "v\tx"))
	assert.Error(t, ValidateKeyValue("k", "v\nx"))
}

func TestIsTombstone(t *testing.T) {
	assert.True(t, IsTombstone(Tombstone))
	assert.False(t, IsTombstone("value"))
}
