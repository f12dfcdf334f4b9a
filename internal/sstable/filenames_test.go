package sstable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileNameRoundTrip(t *testing.T) {
	name := FileName(42)
	assert.Equal(t, "sst_000042.sst", name)

	ord, ok := ParseOrdinal(name)
	assert.True(t, ok)
	assert.Equal(t, Ordinal(42), ord)
}

func TestParseOrdinalRejectsOther(t *testing.T) {
	cases := []string{"wal.log", "sst_000001.sst.tmp", "sst_abc.sst", "sst_1.txt"}
	for _, c := range cases {
		_, ok := ParseOrdinal(c)
		assert.False(t, ok, "input: %q", c)
	}
}

func TestDiscoverSortsAscending(t *testing.T) {
	names := []string{FileName(3), "wal.log", FileName(1), FileName(2), "sst_1.tmp"}
	ords := Discover(names)
	assert.Equal(t, []Ordinal{1, 2, 3}, ords)
}
