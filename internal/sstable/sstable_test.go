package sstable

import (
	"os"
	"testing"

	"github.com/dnguyen-labs/minikv/internal/record"
	"github.com/stretchr/testify/require"
)

func TestWriterFinishIsAtomicAndSorted(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir, 1)
	require.NoError(t, err)
	require.NoError(t, w.Add("a", "1"))
	require.NoError(t, w.Add("b", "2"))
	require.NoError(t, w.Add("c", record.Tombstone))

	_, err = os.Stat(Path(dir, 1))
	require.True(t, os.IsNotExist(err), "final file must not exist before Finish")

	ord, err := w.Finish()
	require.NoError(t, err)
	require.Equal(t, Ordinal(1), ord)

	_, err = os.Stat(TempPath(dir, 1))
	require.True(t, os.IsNotExist(err), "temp file must be gone after Finish")

	r := Open(dir, 1)
	var keys []string
	require.NoError(t, r.Each(func(key, value string) bool {
		keys = append(keys, key)
		return true
	}))
	require.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestWriterAbortLeavesNoFinalFile(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir, 1)
	require.NoError(t, err)
	require.NoError(t, w.Add("a", "1"))
	w.Abort()

	_, err = os.Stat(Path(dir, 1))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(TempPath(dir, 1))
	require.True(t, os.IsNotExist(err))
}

func TestReaderLookup(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, 1)
	require.NoError(t, err)
	require.NoError(t, w.Add("a", "1"))
	require.NoError(t, w.Add("m", record.Tombstone))
	require.NoError(t, w.Add("z", "26"))
	_, err = w.Finish()
	require.NoError(t, err)

	r := Open(dir, 1)

	value, result, err := r.Lookup("a")
	require.NoError(t, err)
	require.Equal(t, FoundValue, result)
	require.Equal(t, "1", value)

	_, result, err = r.Lookup("m")
	require.NoError(t, err)
	require.Equal(t, FoundTombstone, result)

	_, result, err = r.Lookup("missing")
	require.NoError(t, err)
	require.Equal(t, NotFound, result)

	// out of [min,max] range, pruned without a scan
	_, result, err = r.Lookup("zz")
	require.NoError(t, err)
	require.Equal(t, NotFound, result)
}

func TestReaderLookupEmptyFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, 1)
	require.NoError(t, err)
	_, err = w.Finish()
	require.NoError(t, err)

	r := Open(dir, 1)
	_, result, err := r.Lookup("a")
	require.NoError(t, err)
	require.Equal(t, NotFound, result)
}
