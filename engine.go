// Package minikv implements an embedded, single-writer, persistent
// key-value store organized as a log-structured merge tree: a
// write-ahead log feeding an in-memory sorted MemTable, flushed into
// immutable SSTs and periodically compacted.
package minikv

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/dnguyen-labs/minikv/internal/compaction"
	"github.com/dnguyen-labs/minikv/internal/ctxlock"
	"github.com/dnguyen-labs/minikv/internal/kverrors"
	"github.com/dnguyen-labs/minikv/internal/memtable"
	"github.com/dnguyen-labs/minikv/internal/record"
	"github.com/dnguyen-labs/minikv/internal/sstable"
	"github.com/dnguyen-labs/minikv/internal/wal"
	"go.uber.org/zap"
)

// State is the engine's lifecycle state.
type State byte

const (
	Closed State = iota
	Recovering
	Ready
	Flushing
	Compacting
)

// Engine is a MiniKV storage engine scoped to one data directory. Multiple
// Engines over different directories may coexist; opening the same
// directory from more than one Engine is unsupported.
type Engine struct {
	dir  string
	opts options

	gate  *ctxlock.Lock
	state State

	mt  *memtable.MemTable
	log *wal.WAL

	// ssts holds ordinals ascending (oldest first); the last element is
	// the newest SST.
	ssts        []sstable.Ordinal
	nextOrdinal sstable.Ordinal
}

// Open scans dir for existing SSTs, opens (or creates) the WAL, replays it
// into a fresh MemTable, and returns a ready-to-use Engine.
func Open(ctx context.Context, dir string, optFns ...OptionFn) (*Engine, error) {
	o := defaultOptions
	for _, fn := range optFns {
		fn(&o)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, kverrors.Wrap(kverrors.Io, "create data directory", err)
	}

	e := &Engine{
		dir:   dir,
		opts:  o,
		state: Recovering,
		mt:    memtable.New(),
	}
	e.gate = ctxlock.New(e.ensureReady)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, kverrors.Wrap(kverrors.Io, "read data directory", err)
	}
	names := make([]string, 0, len(entries))
	for _, ent := range entries {
		if !ent.IsDir() {
			names = append(names, ent.Name())
		}
	}
	e.ssts = sstable.Discover(names)
	e.nextOrdinal = 1
	if len(e.ssts) > 0 {
		e.nextOrdinal = e.ssts[len(e.ssts)-1] + 1
	}

	cleanupStaleTempFiles(dir, names)

	w, err := wal.Open(dir, o.walOpts...)
	if err != nil {
		return nil, err
	}
	e.log = w

	if err := wal.Replay(dir, func(r record.Record) error {
		switch r.Kind {
		case record.Put:
			e.mt.Put(r.Key, r.Value)
		case record.Del:
			e.mt.Delete(r.Key)
		}
		return nil
	}); err != nil {
		_ = w.Close()
		return nil, err
	}

	e.state = Ready
	zap.L().Info("engine opened", zap.String("dir", dir), zap.Int("sst_count", len(e.ssts)))
	return e, nil
}

// cleanupStaleTempFiles removes every "*.tmp" file in dir; the SST writer
// is the only component that stages files under that extension, so these
// are left behind by a writer that died mid-write in a previous process: a temp file that
// never got its final rename carries no durability guarantee and is safe
// to discard on open.
func cleanupStaleTempFiles(dir string, names []string) {
	for _, name := range names {
		if filepath.Ext(name) == ".tmp" {
			path := filepath.Join(dir, name)
			if err := os.Remove(path); err != nil {
				zap.L().Warn("failed to remove stale sst temp file", zap.String("path", path), zap.Error(err))
			} else {
				zap.L().Info("removed stale sst temp file", zap.String("path", path))
			}
		}
	}
}

func (e *Engine) acquire(ctx context.Context) error {
	return e.gate.AcquireCtx(ctx)
}

func (e *Engine) release(ctx context.Context) {
	_ = e.gate.ReleaseCtx(ctx)
}

// ensureReady is the gate's admission check: it runs while e.gate's slot
// is held, so a state change and an acquire can never race past each
// other.
func (e *Engine) ensureReady() error {
	if e.state != Ready {
		return kverrors.ErrEngineClosed
	}
	return nil
}

// Put appends a PUT to the WAL, applies it to the MemTable, and triggers a
// flush if the configured threshold has been crossed.
func (e *Engine) Put(ctx context.Context, key, value string) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release(ctx)

	if err := record.ValidateKeyValue(key, value); err != nil {
		return err
	}

	if err := e.log.Append(record.Record{Kind: record.Put, Key: key, Value: value}); err != nil {
		return err
	}
	e.mt.Put(key, value)

	return e.maybeFlushLocked()
}

// Delete appends a tombstone DEL to the WAL, applies it to the MemTable,
// and triggers a flush if the configured threshold has been crossed.
func (e *Engine) Delete(ctx context.Context, key string) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release(ctx)

	if err := record.ValidateKeyValue(key, ""); err != nil {
		return err
	}

	if err := e.log.Append(record.Record{Kind: record.Del, Key: key}); err != nil {
		return err
	}
	e.mt.Delete(key)

	return e.maybeFlushLocked()
}

// Get probes the MemTable, then the SST stack newest-to-oldest, and
// returns the first hit under the newest-wins rule.
func (e *Engine) Get(ctx context.Context, key string) (string, bool, error) {
	if err := e.acquire(ctx); err != nil {
		return "", false, err
	}
	defer e.release(ctx)

	switch v, res := e.mt.Get(key); res {
	case memtable.Found:
		return v, true, nil
	case memtable.FoundTombstone:
		return "", false, nil
	}

	for i := len(e.ssts) - 1; i >= 0; i-- {
		r := sstable.Open(e.dir, e.ssts[i])
		value, result, err := r.Lookup(key)
		if err != nil {
			return "", false, err
		}
		switch result {
		case sstable.FoundValue:
			return value, true, nil
		case sstable.FoundTombstone:
			return "", false, nil
		}
	}
	return "", false, nil
}

// WALSyncCount reports how many times the WAL has fsynced since Open, for
// comparing durability policies' sync overhead under the same workload.
func (e *Engine) WALSyncCount() uint64 {
	return e.log.SyncCount()
}

func (e *Engine) maybeFlushLocked() error {
	if e.mt.Size() < e.opts.flushThresholdOps {
		return nil
	}
	return e.flushLocked()
}

// Flush forces an immediate flush of the current MemTable to a new SST,
// regardless of the configured threshold.
func (e *Engine) Flush(ctx context.Context) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release(ctx)

	return e.flushLocked()
}

func (e *Engine) flushLocked() error {
	if e.mt.Size() == 0 {
		return nil
	}
	e.state = Flushing
	defer func() { e.state = Ready }()

	// 1. Ensure the WAL's tail is synced before the checkpoint.
	if err := e.log.Sync(); err != nil {
		return err
	}

	// 2-3. Write the MemTable to a new SST and rename it into place.
	ord := e.nextOrdinal
	w, err := sstable.NewWriter(e.dir, ord)
	if err != nil {
		return err
	}

	var addErr error
	e.mt.DrainSorted(func(key string, ent memtable.Entry) {
		if addErr != nil {
			return
		}
		value := ent.Value
		if ent.Kind == record.Del {
			value = record.Tombstone
		}
		addErr = w.Add(key, value)
	})
	if addErr != nil {
		w.Abort()
		return addErr
	}

	if _, err := w.Finish(); err != nil {
		return err
	}
	e.ssts = append(e.ssts, ord)
	e.nextOrdinal++

	// 4. Truncate the WAL.
	if err := e.log.Truncate(); err != nil {
		return err
	}

	// 5. Reset the MemTable.
	e.mt.Reset()

	zap.L().Info("flushed memtable", zap.String("dir", e.dir), zap.Uint64("ordinal", uint64(ord)))
	return nil
}

// Compact merges every SST into a single newest-wins snapshot, dropping
// tombstoned keys, then checkpoints the WAL. Any pending
// MemTable content is flushed first so the snapshot reflects the complete
// engine state.
func (e *Engine) Compact(ctx context.Context) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release(ctx)

	if err := e.flushLocked(); err != nil {
		return err
	}
	if len(e.ssts) == 0 {
		return nil
	}

	e.state = Compacting
	defer func() { e.state = Ready }()

	inputs := append([]sstable.Ordinal(nil), e.ssts...)
	sort.Slice(inputs, func(i, j int) bool { return inputs[i] < inputs[j] })

	result, err := compaction.Compact(ctx, e.dir, inputs, e.nextOrdinal)
	if err != nil {
		return err
	}

	for _, ord := range inputs {
		path := sstable.Path(e.dir, ord)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return kverrors.Wrap(kverrors.Io, "remove superseded sst", err)
		}
	}

	if result.Wrote {
		e.ssts = []sstable.Ordinal{result.OutputOrdinal}
		e.nextOrdinal++
	} else {
		e.ssts = nil
	}

	if err := e.log.Truncate(); err != nil {
		return err
	}

	zap.L().Info("compacted ssts", zap.String("dir", e.dir), zap.Int("inputs", len(inputs)), zap.Bool("wrote", result.Wrote))
	return nil
}

// Close syncs and releases the WAL's file handle. The MemTable is left
// unflushed; a subsequent Open replays the WAL to rebuild it. Closing an
// already-closed Engine returns the same ErrEngineClosed the gate would
// report for any other operation issued after Close.
func (e *Engine) Close(ctx context.Context) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release(ctx)

	err := e.log.Close()
	e.state = Closed
	return err
}
