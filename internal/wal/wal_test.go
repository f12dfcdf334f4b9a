package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dnguyen-labs/minikv/internal/record"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(dir, WithPolicy(Sync))
	require.NoError(t, err)

	require.NoError(t, w.Append(record.Record{Kind: record.Put, Key: "a", Value: "1"}))
	require.NoError(t, w.Append(record.Record{Kind: record.Put, Key: "b", Value: "2"}))
	require.NoError(t, w.Append(record.Record{Kind: record.Del, Key: "a"}))
	require.NoError(t, w.Close())

	var got []record.Record
	require.NoError(t, Replay(dir, func(r record.Record) error {
		got = append(got, r)
		return nil
	}))

	require.Equal(t, []record.Record{
		{Kind: record.Put, Key: "a", Value: "1"},
		{Kind: record.Put, Key: "b", Value: "2"},
		{Kind: record.Del, Key: "a"},
	}, got)
}

func TestReplayEmptyWAL(t *testing.T) {
	dir := t.TempDir()
	var got []record.Record
	require.NoError(t, Replay(dir, func(r record.Record) error {
		got = append(got, r)
		return nil
	}))
	require.Empty(t, got)
}

func TestReplayTolerantOfTornTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, fileName)

	content := "PUT\ta\t1\nPUT\tb\t2\nPUT\tc\t" // torn: missing final newline and value
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	var got []record.Record
	require.NoError(t, Replay(dir, func(r record.Record) error {
		got = append(got, r)
		return nil
	}))

	require.Equal(t, []record.Record{
		{Kind: record.Put, Key: "a", Value: "1"},
		{Kind: record.Put, Key: "b", Value: "2"},
	}, got)
}

func TestReplayCorruptionMidFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, fileName)

	content := "PUT\ta\t1\nNOTANOP\n\tbad\nPUT\tc\t3\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	err := Replay(dir, func(record.Record) error { return nil })
	require.Error(t, err)
}

func TestTruncateResetsWAL(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, WithPolicy(Sync))
	require.NoError(t, err)
	require.NoError(t, w.Append(record.Record{Kind: record.Put, Key: "a", Value: "1"}))
	require.NoError(t, w.Truncate())
	require.NoError(t, w.Close())

	info, err := os.Stat(filepath.Join(dir, fileName))
	require.NoError(t, err)
	require.Zero(t, info.Size())
}

func TestBatchPolicySyncsEveryNAppends(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, WithPolicy(Batch), WithBatchN(3), WithBatchIntervalMs(0))
	require.NoError(t, err)
	defer w.Close()

	bp, ok := w.policy.(*batchPolicy)
	require.True(t, ok)

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Append(record.Record{Kind: record.Put, Key: "k", Value: "v"}))
	}
	// After 5 appends with N=3: one sync fired at append 3, sinceSync is
	// now 2 (appends 4 and 5).
	require.Equal(t, 2, bp.sinceSync)
}
