// Package memtable implements MiniKV's in-memory sorted Key -> (kind,
// value) mapping: the single source of truth for keys not yet flushed to
// an SST.
package memtable

import (
	"strings"
	"sync/atomic"

	"github.com/dnguyen-labs/minikv/internal/record"
	"github.com/zhangyunhao116/skipmap"
)

// Entry is the value side of the memtable's mapping.
type Entry struct {
	Kind  record.Kind
	Value string
}

// Lookup is the three-way result of Get.
type Lookup byte

const (
	Absent Lookup = iota
	Found
	FoundTombstone
)

// MemTable is an ordered Key -> Entry mapping. It is not safe for
// concurrent writers: this engine models exactly one logical writer.
type MemTable struct {
	data *skipmap.FuncMap[string, Entry]
	ops  atomic.Uint64
}

func newOrdered() *skipmap.FuncMap[string, Entry] {
	return skipmap.NewFunc[string, Entry](func(a, b string) bool {
		return strings.Compare(a, b) < 0
	})
}

func New() *MemTable {
	return &MemTable{data: newOrdered()}
}

// Put records a PUT of key/value, replacing any prior entry for key.
func (m *MemTable) Put(key, value string) {
	m.data.Store(key, Entry{Kind: record.Put, Value: value})
	m.ops.Add(1)
}

// Delete records a tombstone for key, replacing any prior entry.
func (m *MemTable) Delete(key string) {
	m.data.Store(key, Entry{Kind: record.Del})
	m.ops.Add(1)
}

// Get returns the current state of key in the memtable.
func (m *MemTable) Get(key string) (string, Lookup) {
	e, ok := m.data.Load(key)
	if !ok {
		return "", Absent
	}
	if e.Kind == record.Del {
		return "", FoundTombstone
	}
	return e.Value, Found
}

// Size returns the number of logical writes absorbed since the last
// Reset, not the number of distinct keys. This drives the flush
// threshold.
func (m *MemTable) Size() int {
	return int(m.ops.Load())
}

// DrainSorted invokes fn for every entry in ascending key order. It clears
// neither the data nor the op counter; Reset does both.
func (m *MemTable) DrainSorted(fn func(key string, e Entry)) {
	m.data.Range(func(key string, e Entry) bool {
		fn(key, e)
		return true
	})
}

// Reset clears the memtable, producing a fresh, empty table. Called by the
// engine after a successful flush.
func (m *MemTable) Reset() {
	m.data = newOrdered()
	m.ops.Store(0)
}
