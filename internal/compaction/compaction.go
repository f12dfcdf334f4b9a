// Package compaction implements MiniKV's full compaction: a k-way merge of
// every existing SST into a single newest-wins snapshot, dropping
// tombstoned keys entirely.
package compaction

import (
	"container/heap"
	"context"

	"github.com/dnguyen-labs/minikv/internal/kverrors"
	"github.com/dnguyen-labs/minikv/internal/record"
	"github.com/dnguyen-labs/minikv/internal/sstable"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// stream is one SST's fully materialized, still-sorted (key, value)
// sequence, plus a read cursor. Loading the whole file up front keeps the
// merge itself allocation-free and lets the per-file loads run
// concurrently.
type stream struct {
	ordinal sstable.Ordinal
	keys    []string
	values  []string
	pos     int
}

func (s *stream) done() bool { return s.pos >= len(s.keys) }
func (s *stream) key() string { return s.keys[s.pos] }
func (s *stream) value() string { return s.values[s.pos] }
func (s *stream) advance() { s.pos++ }

func loadStream(dir string, ord sstable.Ordinal) (*stream, error) {
	r := sstable.Open(dir, ord)
	s := &stream{ordinal: ord}
	err := r.Each(func(key, value string) bool {
		s.keys = append(s.keys, key)
		s.values = append(s.values, value)
		return true
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// mergeHeap is a min-heap over the current head of each stream, ordered
// by key ascending and, for equal keys, by ordinal descending so the
// newest SST's record for a key is popped first: on a key tie, the
// greater ordinal wins the value and every smaller-ordinal duplicate is
// drained silently.
type mergeHeap []*stream

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].key() != h[j].key() {
		return h[i].key() < h[j].key()
	}
	return h[i].ordinal > h[j].ordinal
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)   { *h = append(*h, x.(*stream)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Result reports the outcome of a compaction run.
type Result struct {
	// OutputOrdinal is the ordinal of the freshly written snapshot SST.
	// Valid only if Wrote is true.
	OutputOrdinal sstable.Ordinal
	// Wrote is false when the merged result contained no surviving keys
	// (every key present was tombstoned), in which case no output SST is
	// written at all.
	Wrote bool
}

// Compact merges every SST named by inputs (ascending ordinal, oldest
// first) into one new SST at outputOrdinal under dir, retaining for each
// key only the newest surviving record and dropping tombstoned keys
// entirely. The caller is responsible for deleting the input files only
// after Compact returns successfully, and for truncating the WAL as the
// compaction checkpoint.
func Compact(ctx context.Context, dir string, inputs []sstable.Ordinal, outputOrdinal sstable.Ordinal) (Result, error) {
	if len(inputs) == 0 {
		return Result{}, nil
	}

	streams, err := loadStreamsConcurrently(ctx, dir, inputs)
	if err != nil {
		return Result{}, err
	}

	w, err := sstable.NewWriter(dir, outputOrdinal)
	if err != nil {
		return Result{}, err
	}

	wrote, err := mergeInto(w, streams)
	if err != nil {
		w.Abort()
		return Result{}, err
	}
	if !wrote {
		w.Abort()
		return Result{}, nil
	}

	ord, err := w.Finish()
	if err != nil {
		return Result{}, err
	}
	return Result{OutputOrdinal: ord, Wrote: true}, nil
}

func loadStreamsConcurrently(ctx context.Context, dir string, inputs []sstable.Ordinal) ([]*stream, error) {
	streams := make([]*stream, len(inputs))
	g, _ := errgroup.WithContext(ctx)
	for i, ord := range inputs {
		i, ord := i, ord
		g.Go(func() error {
			s, err := loadStream(dir, ord)
			if err != nil {
				return err
			}
			streams[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, kverrors.Wrap(kverrors.Io, "load sst streams for compaction", err)
	}
	return streams, nil
}

// mergeInto drains streams in newest-wins, ascending-key order into w,
// dropping tombstoned keys, and reports whether anything was written.
func mergeInto(w *sstable.Writer, streams []*stream) (bool, error) {
	h := make(mergeHeap, 0, len(streams))
	for _, s := range streams {
		if !s.done() {
			h = append(h, s)
		}
	}
	heap.Init(&h)

	wrote := false
	for h.Len() > 0 {
		top := h[0]
		key := top.key()
		value := top.value()

		// Drain every stream currently positioned at key: the heap's
		// descending-ordinal tie-break guarantees top carries the
		// newest record, so every subsequent pop of the same key is a
		// strictly older duplicate that must advance silently.
		for h.Len() > 0 && h[0].key() == key {
			s := heap.Pop(&h).(*stream)
			s.advance()
			if !s.done() {
				heap.Push(&h, s)
			}
		}

		if record.IsTombstone(value) {
			continue
		}
		if err := w.Add(key, value); err != nil {
			return false, err
		}
		wrote = true
	}

	if !wrote {
		zap.L().Debug("compaction produced no surviving keys")
	}
	return wrote, nil
}
